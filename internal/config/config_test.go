package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Port != 9100 {
		t.Errorf("expected port 9100, got %d", cfg.Server.Port)
	}

	if cfg.Audio.SampleRate != 48000 {
		t.Errorf("expected sample_rate 48000, got %d", cfg.Audio.SampleRate)
	}

	if cfg.Beep.Interval != 350*time.Millisecond {
		t.Errorf("expected beep interval 350ms, got %v", cfg.Beep.Interval)
	}

	if cfg.Mapping.MinDistance != 0.5 || cfg.Mapping.MaxDistance != 10 {
		t.Errorf("expected distance range 0.5-10, got %v-%v", cfg.Mapping.MinDistance, cfg.Mapping.MaxDistance)
	}

	if cfg.Listener.RefreshHz != 50 {
		t.Errorf("expected refresh_hz 50, got %v", cfg.Listener.RefreshHz)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("expected level info, got %s", cfg.Logging.Level)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoad_NoFile(t *testing.T) {
	// Load with non-existent file should use defaults
	cfg, err := Load("/nonexistent/path.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 9100 {
		t.Errorf("expected default port 9100, got %d", cfg.Server.Port)
	}

	if cfg.Tracking.Source != "push" {
		t.Errorf("expected default source push, got %s", cfg.Tracking.Source)
	}

	if !cfg.Engine.RecomputeDistance {
		t.Error("expected recompute_distance default true")
	}
}

func TestLoad_MatchesDefault(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	d := Default()
	if cfg.Audio != d.Audio {
		t.Errorf("audio = %+v, want %+v", cfg.Audio, d.Audio)
	}
	if cfg.Tone != d.Tone {
		t.Errorf("tone = %+v, want %+v", cfg.Tone, d.Tone)
	}
	if cfg.Beep != d.Beep {
		t.Errorf("beep = %+v, want %+v", cfg.Beep, d.Beep)
	}
	if cfg.Mapping != d.Mapping {
		t.Errorf("mapping = %+v, want %+v", cfg.Mapping, d.Mapping)
	}
	if cfg.Tracking != d.Tracking {
		t.Errorf("tracking = %+v, want %+v", cfg.Tracking, d.Tracking)
	}
	if cfg.Announce != d.Announce {
		t.Errorf("announce = %+v, want %+v", cfg.Announce, d.Announce)
	}
}

func TestLoad_WithFile(t *testing.T) {
	// Create temp config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: 8080
audio:
  sink: "null"
  sample_rate: 44100
beep:
  interval: 200ms
  pitch_mode: fixed
mapping:
  max_frequency: 1200
  volume_curve: inverse
tracking:
  source: remote
  remote_url: ws://tracker.local:8080/objects
announce:
  command: espeak -s 160
logging:
  level: debug
  format: text
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}

	if cfg.Audio.Sink != "null" {
		t.Errorf("expected sink null, got %q", cfg.Audio.Sink)
	}

	if cfg.Audio.SampleRate != 44100 {
		t.Errorf("expected sample_rate 44100, got %d", cfg.Audio.SampleRate)
	}

	if cfg.Beep.Interval != 200*time.Millisecond {
		t.Errorf("expected interval 200ms, got %v", cfg.Beep.Interval)
	}

	if cfg.Beep.PitchMode != "fixed" {
		t.Errorf("expected pitch_mode fixed, got %s", cfg.Beep.PitchMode)
	}

	// Unset keys in a set section keep their defaults
	if cfg.Beep.Duration != 150*time.Millisecond {
		t.Errorf("expected default duration 150ms, got %v", cfg.Beep.Duration)
	}

	if cfg.Mapping.MaxFrequency != 1200 || cfg.Mapping.VolumeCurve != "inverse" {
		t.Errorf("mapping = %+v", cfg.Mapping)
	}

	if cfg.Tracking.RemoteURL != "ws://tracker.local:8080/objects" {
		t.Errorf("expected remote url, got %s", cfg.Tracking.RemoteURL)
	}

	if cfg.Announce.Command != "espeak -s 160" {
		t.Errorf("expected announce command, got %q", cfg.Announce.Command)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("expected level debug, got %s", cfg.Logging.Level)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config invalid: %v", err)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("GOCUE_SERVER_PORT", "7777")
	t.Setenv("GOCUE_BEEP_PITCH_MODE", "fixed")
	t.Setenv("GOCUE_AUDIO_SINK", "exec")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 7777 {
		t.Errorf("expected port 7777 from env, got %d", cfg.Server.Port)
	}

	if cfg.Beep.PitchMode != "fixed" {
		t.Errorf("expected pitch_mode fixed from env, got %s", cfg.Beep.PitchMode)
	}

	if cfg.Audio.Sink != "exec" {
		t.Errorf("expected sink exec from env, got %s", cfg.Audio.Sink)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "invalid port too low",
			modify: func(c *Config) {
				c.Server.Port = 0
			},
			wantErr: true,
		},
		{
			name: "invalid port too high",
			modify: func(c *Config) {
				c.Server.Port = 70000
			},
			wantErr: true,
		},
		{
			name: "sample rate too low",
			modify: func(c *Config) {
				c.Audio.SampleRate = 100
			},
			wantErr: true,
		},
		{
			name: "unknown sink",
			modify: func(c *Config) {
				c.Audio.Sink = "pulse"
			},
			wantErr: true,
		},
		{
			name: "zero beep interval",
			modify: func(c *Config) {
				c.Beep.Interval = 0
			},
			wantErr: true,
		},
		{
			name: "unknown pitch mode",
			modify: func(c *Config) {
				c.Beep.PitchMode = "chromatic"
			},
			wantErr: true,
		},
		{
			name: "refresh too slow",
			modify: func(c *Config) {
				c.Listener.RefreshHz = 0
			},
			wantErr: true,
		},
		{
			name: "remote without url",
			modify: func(c *Config) {
				c.Tracking.Source = "remote"
				c.Tracking.RemoteURL = ""
			},
			wantErr: true,
		},
		{
			name: "mock source",
			modify: func(c *Config) {
				c.Tracking.Source = "mock"
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestServerConfig_Timeouts(t *testing.T) {
	cfg := Default()

	if cfg.Server.ReadTimeout != 10*time.Second {
		t.Errorf("expected read_timeout 10s, got %v", cfg.Server.ReadTimeout)
	}

	if cfg.Server.WriteTimeout != 10*time.Second {
		t.Errorf("expected write_timeout 10s, got %v", cfg.Server.WriteTimeout)
	}

	if cfg.Server.GracefulTimeout != 5*time.Second {
		t.Errorf("expected graceful_timeout 5s, got %v", cfg.Server.GracefulTimeout)
	}
}
