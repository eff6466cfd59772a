// go-cue: spatial audio cue daemon
// Turns tracked objects into positioned, distance-coded beeps
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-cue/internal/announce"
	"github.com/teslashibe/go-cue/internal/audio"
	"github.com/teslashibe/go-cue/internal/config"
	"github.com/teslashibe/go-cue/internal/engine"
	"github.com/teslashibe/go-cue/internal/health"
	"github.com/teslashibe/go-cue/internal/mapping"
	"github.com/teslashibe/go-cue/internal/server"
	"github.com/teslashibe/go-cue/internal/tone"
	"github.com/teslashibe/go-cue/internal/tracking"
)

var (
	version     = "0.3.0"
	configPath  = flag.String("config", "/etc/go-cue/config.yaml", "config file path")
	showVersion = flag.Bool("version", false, "print version and exit")
	debug       = flag.Bool("debug", false, "enable debug logging")
	useMock     = flag.Bool("mock", false, "use scripted demo objects (for testing)")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("go-cue %s\n", version)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config from %s: %v\n", *configPath, err)
		cfg = config.Default()
	}

	if *debug {
		cfg.Logging.Level = "debug"
	}
	if *useMock {
		cfg.Tracking.Source = "mock"
	}

	logger := setupLogger(cfg.Logging)

	logger.Info("starting go-cue",
		"version", version,
		"config", *configPath,
		"port", cfg.Server.Port,
		"sink", cfg.Audio.Sink,
		"tracking", cfg.Tracking.Source,
	)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	checker := health.NewChecker(version)
	checker.MarkCritical(engine.HealthComponent)

	eng, mixer, err := buildEngine(cfg, logger)
	if err != nil {
		logger.Error("failed to build engine", "error", err)
		os.Exit(1)
	}
	eng.SetHealth(checker)

	// Listener pose flows store -> driver -> engine
	poses := tracking.NewPoseStore()
	driver := tracking.NewPoseDriver(poses, eng, tracking.PoseDriverConfig{
		RefreshHz: cfg.Listener.RefreshHz,
		Smoothing: cfg.Listener.Smoothing,
	}, logger)
	go func() {
		if err := driver.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("listener driver error", "error", err)
		}
	}()

	// Object snapshots flow source -> pump -> engine
	var feed *tracking.Feed
	var remote *tracking.RemoteSource
	var source tracking.Source

	switch cfg.Tracking.Source {
	case "remote":
		remote = tracking.NewRemoteSource(tracking.RemoteConfig{
			URL:              cfg.Tracking.RemoteURL,
			ReconnectBackoff: cfg.Tracking.ReconnectBackoff,
			MaxBackoff:       cfg.Tracking.MaxBackoff,
			PingInterval:     cfg.Tracking.PingInterval,
			WriteTimeout:     tracking.DefaultRemoteConfig().WriteTimeout,
			HandshakeTimeout: tracking.DefaultRemoteConfig().HandshakeTimeout,
		}, poses, logger)
		source = remote
	case "mock":
		source = tracking.NewScripted(cfg.Tracking.MockInterval, true, tracking.DemoScript(40)...)
	default:
		feed = tracking.NewFeed(cfg.Tracking.QueueDepth)
		source = feed
	}

	pump := tracking.NewPump(source, eng, logger)
	checker.SetComponent("tracker", true, source.Name())
	go func() {
		err := pump.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("tracking source error", "source", source.Name(), "error", err)
			checker.SetComponent("tracker", false, err.Error())
		}
	}()

	var announcer *announce.Announcer
	if cfg.Announce.Enabled {
		announcer, err = startAnnouncer(ctx, cfg.Announce, eng, logger)
		if err != nil {
			logger.Warn("announcements disabled", "error", err)
		}
	}

	srv := server.New(cfg.Server, server.Deps{
		Engine:    eng,
		Feed:      feed,
		Poses:     poses,
		Health:    checker,
		Settings:  cfg,
		Pump:      pump,
		Remote:    remote,
		Announcer: announcer,
		Mixer:     mixer,
	}, logger, version)

	go srv.WSHub().Run(ctx)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	printStartupBanner(cfg, version)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		cfg.Server.GracefulTimeout,
	)
	defer shutdownCancel()

	// Stop in order: server -> drivers -> engine
	logger.Info("shutting down server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown error", "error", err)
	}

	logger.Info("stopping tracking...")
	driver.Stop()
	cancel()

	logger.Info("closing engine...")
	if err := eng.Close(); err != nil {
		logger.Warn("engine close error", "error", err)
	}

	logger.Info("go-cue stopped")
}

func buildEngine(cfg *config.Config, logger *slog.Logger) (*engine.Engine, *audio.Mixer, error) {
	sink, err := audio.NewSink(cfg.Audio.Sink, audio.SinkConfig{
		SampleRate:  cfg.Audio.SampleRate,
		Channels:    2,
		Buffer:      cfg.Audio.Buffer,
		PlaybackCmd: cfg.Audio.PlaybackCmd,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	if ex, ok := sink.(*audio.ExecSink); ok && !ex.IsAvailable() {
		logger.Warn("playback command not found, audio stays silent until it is installed",
			"cmd", cfg.Audio.PlaybackCmd,
		)
	}

	mixer := audio.NewMixer(audio.MixerConfig{
		SampleRate:      cfg.Audio.SampleRate,
		RearAttenuation: cfg.Audio.RearAttenuation,
		MasterGain:      1.0,
	}, sink, logger)

	toneCfg := tone.DefaultConfig()
	toneCfg.Amplitude = cfg.Tone.Amplitude
	toneCfg.Attack = cfg.Tone.Attack
	toneCfg.Release = cfg.Tone.Release
	toneCfg.PanWobbleDepth = cfg.Tone.PanWobble
	if !cfg.Tone.Harmonics {
		toneCfg.Harmonics = nil
	}
	synth, err := tone.NewSynthesizer(toneCfg)
	if err != nil {
		mixer.Close()
		return nil, nil, err
	}

	mapper, err := mapping.New(mapping.Config{
		MinDistance:  cfg.Mapping.MinDistance,
		MaxDistance:  cfg.Mapping.MaxDistance,
		MinVolume:    cfg.Mapping.MinVolume,
		MaxVolume:    cfg.Mapping.MaxVolume,
		MinFrequency: cfg.Mapping.MinFrequency,
		MaxFrequency: cfg.Mapping.MaxFrequency,
		VolumeCurve:  mapping.Curve(cfg.Mapping.VolumeCurve),
		PitchCurve:   mapping.Curve(cfg.Mapping.PitchCurve),
	})
	if err != nil {
		mixer.Close()
		return nil, nil, err
	}

	eng, err := engine.New(engine.Config{
		BeepDuration:       cfg.Beep.Duration,
		BeepInterval:       cfg.Beep.Interval,
		SampleRate:         cfg.Audio.SampleRate,
		Channels:           cfg.Audio.Channels,
		PitchMode:          engine.PitchMode(cfg.Beep.PitchMode),
		ReferenceFrequency: cfg.Beep.ReferenceFrequency,
		CacheSize:          cfg.Tone.CacheSize,
		RecomputeDistance:  cfg.Engine.RecomputeDistance,
		RestartBackoff:     cfg.Audio.RestartBackoff,
		MaxRestartBackoff:  cfg.Audio.MaxRestartBackoff,
	}, mixer, synth, mapper, logger)
	if err != nil {
		mixer.Close()
		return nil, nil, err
	}
	return eng, mixer, nil
}

func startAnnouncer(ctx context.Context, cfg config.AnnounceConfig, eng *engine.Engine, logger *slog.Logger) (*announce.Announcer, error) {
	var speaker announce.Speaker = announce.NewLogSpeaker(logger)
	if cfg.Command != "" {
		cmd, err := announce.NewCommandSpeaker(cfg.Command)
		if err != nil {
			return nil, err
		}
		speaker = cmd
	}

	annCfg := announce.DefaultConfig()
	annCfg.Cooldown = cfg.Cooldown
	announcer := announce.New(speaker, eng, annCfg, logger)

	events := eng.Subscribe()
	go func() {
		defer eng.Unsubscribe(events)
		if err := announcer.Run(ctx, events); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("announcer stopped", "error", err)
		}
	}()

	logger.Info("announcements enabled", "speaker", speaker.Name())
	return announcer, nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func printStartupBanner(cfg *config.Config, version string) {
	fmt.Println()
	fmt.Println("🔊 go-cue v" + version)
	fmt.Println("   Spatial audio cues for tracked objects")
	fmt.Println()
	fmt.Printf("🚀 Running at http://0.0.0.0:%d\n", cfg.Server.Port)
	fmt.Println()
	fmt.Println("   Endpoints:")
	fmt.Println("   GET  /health              - Health check")
	fmt.Println("   POST /api/objects         - Push an object snapshot")
	fmt.Println("   POST /api/listener        - Push the listener pose")
	fmt.Println("   GET  /api/voices          - Active voices")
	fmt.Println("   POST /api/audio/:action   - interrupt, resume, restart")
	fmt.Println("   WS   /api/stream          - Ingest and voice events")
	fmt.Println("   GET  /api/stats           - Engine statistics")
	fmt.Println("   GET  /metrics             - Prometheus metrics")
	fmt.Println()
	fmt.Println("   Press Ctrl+C to stop")
	fmt.Println()
}
