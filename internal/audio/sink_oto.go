//go:build !headless

package audio

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/ebitengine/oto/v3"
)

// The platform allows a single oto context per process
var (
	otoMu  sync.Mutex
	otoCtx *oto.Context
)

func sharedOtoContext(cfg SinkConfig) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx != nil {
		return otoCtx, nil
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   cfg.SampleRate,
		ChannelCount: cfg.Channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   cfg.Buffer,
	})
	if err != nil {
		return nil, fmt.Errorf("oto context: %w", err)
	}
	<-ready

	otoCtx = ctx
	return ctx, nil
}

// OtoSink plays the stream through the system output via oto
type OtoSink struct {
	cfg    SinkConfig
	logger *slog.Logger

	mu     sync.Mutex
	ctx    *oto.Context
	player *oto.Player
}

// NewOtoSink creates an oto-backed sink. The device is opened on Start.
func NewOtoSink(cfg SinkConfig, logger *slog.Logger) *OtoSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &OtoSink{cfg: cfg, logger: logger}
}

// Start opens the device on first use, or resumes it after Pause
func (o *OtoSink) Start(src io.Reader) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.ctx == nil {
		ctx, err := sharedOtoContext(o.cfg)
		if err != nil {
			return err
		}
		o.ctx = ctx
	}

	if err := o.ctx.Resume(); err != nil {
		return fmt.Errorf("oto resume: %w", err)
	}
	if err := o.ctx.Err(); err != nil {
		return fmt.Errorf("oto device: %w", err)
	}

	if o.player == nil {
		o.player = o.ctx.NewPlayer(src)
		o.logger.Info("oto sink started",
			"sample_rate", o.cfg.SampleRate,
			"channels", o.cfg.Channels,
			"buffer", o.cfg.Buffer,
		)
	}
	o.player.Play()

	return nil
}

// Pause suspends the player and the device
func (o *OtoSink) Pause() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player != nil {
		o.player.Pause()
	}
	if o.ctx != nil {
		if err := o.ctx.Suspend(); err != nil {
			return fmt.Errorf("oto suspend: %w", err)
		}
	}
	return nil
}

// Name returns the backend name
func (o *OtoSink) Name() string { return "oto" }

// Close releases the player. The shared context lives for the process.
func (o *OtoSink) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player != nil {
		err := o.player.Close()
		o.player = nil
		return err
	}
	return nil
}
