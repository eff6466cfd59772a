package engine

import (
	"fmt"
	"time"
)

// PitchMode selects how beep buffers are produced
type PitchMode string

const (
	// PitchDistance generates each beep at the voice's distance-mapped pitch
	PitchDistance PitchMode = "distance"

	// PitchFixed reuses one cached beep at ReferenceFrequency for every voice
	PitchFixed PitchMode = "fixed"
)

// Config holds engine configuration
type Config struct {
	BeepDuration       time.Duration // Length of one beep
	BeepInterval       time.Duration // Silence between consecutive beeps
	SampleRate         int
	Channels           int
	PitchMode          PitchMode
	ReferenceFrequency float64 // Hz, fixed mode only
	CacheSize          int     // Tone buffers kept for reuse
	RecomputeDistance  bool    // Derive distance from positions instead of trusting the tracker
	RestartBackoff     time.Duration
	MaxRestartBackoff  time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		BeepDuration:       150 * time.Millisecond,
		BeepInterval:       350 * time.Millisecond,
		SampleRate:         48000,
		Channels:           2,
		PitchMode:          PitchDistance,
		ReferenceFrequency: 880,
		CacheSize:          64,
		RecomputeDistance:  true,
		RestartBackoff:     500 * time.Millisecond,
		MaxRestartBackoff:  30 * time.Second,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.BeepDuration <= 0 {
		return fmt.Errorf("beep duration must be positive, got %s", c.BeepDuration)
	}
	if c.BeepInterval <= 0 {
		return fmt.Errorf("beep interval must be positive, got %s", c.BeepInterval)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels != 1 && c.Channels != 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", c.Channels)
	}
	switch c.PitchMode {
	case PitchDistance:
	case PitchFixed:
		if c.ReferenceFrequency <= 0 {
			return fmt.Errorf("reference frequency must be positive, got %v", c.ReferenceFrequency)
		}
	default:
		return fmt.Errorf("unknown pitch mode %q", c.PitchMode)
	}
	if c.RestartBackoff <= 0 {
		return fmt.Errorf("restart backoff must be positive, got %s", c.RestartBackoff)
	}
	if c.MaxRestartBackoff < c.RestartBackoff {
		return fmt.Errorf("max restart backoff %s is below restart backoff %s", c.MaxRestartBackoff, c.RestartBackoff)
	}
	return nil
}
