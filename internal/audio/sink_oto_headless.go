//go:build headless

package audio

import (
	"errors"
	"io"
	"log/slog"
)

// OtoSink is unavailable in headless builds
type OtoSink struct{}

// NewOtoSink returns a sink that always fails to start
func NewOtoSink(cfg SinkConfig, logger *slog.Logger) *OtoSink {
	return &OtoSink{}
}

// Start always fails
func (o *OtoSink) Start(src io.Reader) error {
	return errors.New("audio: oto sink not available in headless build")
}

// Pause does nothing
func (o *OtoSink) Pause() error { return nil }

// Name returns the backend name
func (o *OtoSink) Name() string { return "oto" }

// Close does nothing
func (o *OtoSink) Close() error { return nil }
