// Package config provides configuration management for go-cue
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration structure
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Audio    AudioConfig    `mapstructure:"audio"`
	Tone     ToneConfig     `mapstructure:"tone"`
	Beep     BeepConfig     `mapstructure:"beep"`
	Mapping  MappingConfig  `mapstructure:"mapping"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Listener ListenerConfig `mapstructure:"listener"`
	Tracking TrackingConfig `mapstructure:"tracking"`
	Announce AnnounceConfig `mapstructure:"announce"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
}

// AudioConfig configures the output device
type AudioConfig struct {
	SampleRate        int           `mapstructure:"sample_rate"`
	Channels          int           `mapstructure:"channels"`
	Sink              string        `mapstructure:"sink"`         // oto, exec, null
	PlaybackCmd       string        `mapstructure:"playback_cmd"` // exec sink only
	Buffer            time.Duration `mapstructure:"buffer"`
	RearAttenuation   float64       `mapstructure:"rear_attenuation"`
	RestartBackoff    time.Duration `mapstructure:"restart_backoff"`
	MaxRestartBackoff time.Duration `mapstructure:"max_restart_backoff"`
}

// ToneConfig configures beep synthesis
type ToneConfig struct {
	Amplitude float64 `mapstructure:"amplitude"`
	Attack    float64 `mapstructure:"attack"`  // Fraction of the beep
	Release   float64 `mapstructure:"release"` // Fraction of the beep
	Harmonics bool    `mapstructure:"harmonics"`
	PanWobble float64 `mapstructure:"pan_wobble"` // 0 = off
	CacheSize int     `mapstructure:"cache_size"`
}

// BeepConfig configures the per-voice beep loop
type BeepConfig struct {
	Duration           time.Duration `mapstructure:"duration"`
	Interval           time.Duration `mapstructure:"interval"`
	PitchMode          string        `mapstructure:"pitch_mode"` // distance, fixed
	ReferenceFrequency float64       `mapstructure:"reference_frequency"`
}

// MappingConfig configures distance to volume/pitch mapping
type MappingConfig struct {
	MinDistance  float64 `mapstructure:"min_distance"`
	MaxDistance  float64 `mapstructure:"max_distance"`
	MinVolume    float64 `mapstructure:"min_volume"`
	MaxVolume    float64 `mapstructure:"max_volume"`
	MinFrequency float64 `mapstructure:"min_frequency"`
	MaxFrequency float64 `mapstructure:"max_frequency"`
	PitchCurve   string  `mapstructure:"pitch_curve"`  // exponential, linear
	VolumeCurve  string  `mapstructure:"volume_curve"` // linear, inverse, exponential
}

// EngineConfig configures update cycle behavior
type EngineConfig struct {
	RecomputeDistance bool `mapstructure:"recompute_distance"`
}

// ListenerConfig configures the listener refresh loop
type ListenerConfig struct {
	RefreshHz float64 `mapstructure:"refresh_hz"`
	Smoothing float64 `mapstructure:"smoothing"` // EMA alpha, 1 = off
}

// TrackingConfig configures where object snapshots come from
type TrackingConfig struct {
	Source           string        `mapstructure:"source"` // push, remote, mock
	RemoteURL        string        `mapstructure:"remote_url"`
	ReconnectBackoff time.Duration `mapstructure:"reconnect_backoff"`
	MaxBackoff       time.Duration `mapstructure:"max_backoff"`
	PingInterval     time.Duration `mapstructure:"ping_interval"`
	QueueDepth       int           `mapstructure:"queue_depth"`
	MockInterval     time.Duration `mapstructure:"mock_interval"`
}

// AnnounceConfig configures spoken announcements
type AnnounceConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Command  string        `mapstructure:"command"` // Empty = log only
	Cooldown time.Duration `mapstructure:"cooldown"`
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            9100,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			GracefulTimeout: 5 * time.Second,
		},
		Audio: AudioConfig{
			SampleRate:        48000,
			Channels:          2,
			Sink:              "oto",
			PlaybackCmd:       "aplay",
			Buffer:            50 * time.Millisecond,
			RearAttenuation:   0.7,
			RestartBackoff:    500 * time.Millisecond,
			MaxRestartBackoff: 30 * time.Second,
		},
		Tone: ToneConfig{
			Amplitude: 0.25,
			Attack:    0.1,
			Release:   0.15,
			Harmonics: true,
			PanWobble: 0,
			CacheSize: 64,
		},
		Beep: BeepConfig{
			Duration:           150 * time.Millisecond,
			Interval:           350 * time.Millisecond,
			PitchMode:          "distance",
			ReferenceFrequency: 880,
		},
		Mapping: MappingConfig{
			MinDistance:  0.5,
			MaxDistance:  10,
			MinVolume:    0.3,
			MaxVolume:    1.0,
			MinFrequency: 300,
			MaxFrequency: 1000,
			PitchCurve:   "exponential",
			VolumeCurve:  "linear",
		},
		Engine: EngineConfig{
			RecomputeDistance: true,
		},
		Listener: ListenerConfig{
			RefreshHz: 50,
			Smoothing: 1,
		},
		Tracking: TrackingConfig{
			Source:           "push",
			RemoteURL:        "ws://localhost:8080/objects",
			ReconnectBackoff: 1 * time.Second,
			MaxBackoff:       30 * time.Second,
			PingInterval:     10 * time.Second,
			QueueDepth:       4,
			MockInterval:     250 * time.Millisecond,
		},
		Announce: AnnounceConfig{
			Enabled:  true,
			Command:  "",
			Cooldown: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from file and environment
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Config file
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			// Config file not found is okay, use defaults
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				fmt.Printf("Warning: config file not found at %s, using defaults\n", path)
			}
		}
	}

	// Environment variable overrides
	v.SetEnvPrefix("GOCUE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()

	// Server defaults
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.graceful_timeout", d.Server.GracefulTimeout)

	// Audio defaults
	v.SetDefault("audio.sample_rate", d.Audio.SampleRate)
	v.SetDefault("audio.channels", d.Audio.Channels)
	v.SetDefault("audio.sink", d.Audio.Sink)
	v.SetDefault("audio.playback_cmd", d.Audio.PlaybackCmd)
	v.SetDefault("audio.buffer", d.Audio.Buffer)
	v.SetDefault("audio.rear_attenuation", d.Audio.RearAttenuation)
	v.SetDefault("audio.restart_backoff", d.Audio.RestartBackoff)
	v.SetDefault("audio.max_restart_backoff", d.Audio.MaxRestartBackoff)

	// Tone defaults
	v.SetDefault("tone.amplitude", d.Tone.Amplitude)
	v.SetDefault("tone.attack", d.Tone.Attack)
	v.SetDefault("tone.release", d.Tone.Release)
	v.SetDefault("tone.harmonics", d.Tone.Harmonics)
	v.SetDefault("tone.pan_wobble", d.Tone.PanWobble)
	v.SetDefault("tone.cache_size", d.Tone.CacheSize)

	// Beep defaults
	v.SetDefault("beep.duration", d.Beep.Duration)
	v.SetDefault("beep.interval", d.Beep.Interval)
	v.SetDefault("beep.pitch_mode", d.Beep.PitchMode)
	v.SetDefault("beep.reference_frequency", d.Beep.ReferenceFrequency)

	// Mapping defaults
	v.SetDefault("mapping.min_distance", d.Mapping.MinDistance)
	v.SetDefault("mapping.max_distance", d.Mapping.MaxDistance)
	v.SetDefault("mapping.min_volume", d.Mapping.MinVolume)
	v.SetDefault("mapping.max_volume", d.Mapping.MaxVolume)
	v.SetDefault("mapping.min_frequency", d.Mapping.MinFrequency)
	v.SetDefault("mapping.max_frequency", d.Mapping.MaxFrequency)
	v.SetDefault("mapping.pitch_curve", d.Mapping.PitchCurve)
	v.SetDefault("mapping.volume_curve", d.Mapping.VolumeCurve)

	v.SetDefault("engine.recompute_distance", d.Engine.RecomputeDistance)

	v.SetDefault("listener.refresh_hz", d.Listener.RefreshHz)
	v.SetDefault("listener.smoothing", d.Listener.Smoothing)

	// Tracking defaults
	v.SetDefault("tracking.source", d.Tracking.Source)
	v.SetDefault("tracking.remote_url", d.Tracking.RemoteURL)
	v.SetDefault("tracking.reconnect_backoff", d.Tracking.ReconnectBackoff)
	v.SetDefault("tracking.max_backoff", d.Tracking.MaxBackoff)
	v.SetDefault("tracking.ping_interval", d.Tracking.PingInterval)
	v.SetDefault("tracking.queue_depth", d.Tracking.QueueDepth)
	v.SetDefault("tracking.mock_interval", d.Tracking.MockInterval)

	v.SetDefault("announce.enabled", d.Announce.Enabled)
	v.SetDefault("announce.command", d.Announce.Command)
	v.SetDefault("announce.cooldown", d.Announce.Cooldown)

	// Logging defaults
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// Validate validates the configuration. Component packages check their own
// value ranges when constructed; this catches the settings main dispatches on.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Audio.SampleRate < 8000 || c.Audio.SampleRate > 192000 {
		return fmt.Errorf("sample_rate must be between 8000 and 192000, got %d", c.Audio.SampleRate)
	}

	switch c.Audio.Sink {
	case "oto", "exec", "null":
	default:
		return fmt.Errorf("unknown audio sink %q", c.Audio.Sink)
	}

	if c.Beep.Duration <= 0 || c.Beep.Interval <= 0 {
		return fmt.Errorf("beep duration and interval must be positive")
	}

	switch c.Beep.PitchMode {
	case "distance", "fixed":
	default:
		return fmt.Errorf("unknown pitch_mode %q", c.Beep.PitchMode)
	}

	if c.Listener.RefreshHz < 1 || c.Listener.RefreshHz > 1000 {
		return fmt.Errorf("listener refresh_hz must be between 1 and 1000, got %v", c.Listener.RefreshHz)
	}

	switch c.Tracking.Source {
	case "push", "mock":
	case "remote":
		if c.Tracking.RemoteURL == "" {
			return fmt.Errorf("tracking.remote_url required for remote source")
		}
	default:
		return fmt.Errorf("unknown tracking source %q", c.Tracking.Source)
	}

	return nil
}
