// Package tone synthesizes the short enveloped beeps used as spatial cues.
//
// Buffers are interleaved float32 frames in [-1, 1]. Every buffer ramps in
// from silence and back out to silence so that starting or cutting a beep
// never produces a click.
package tone

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Sentinel errors for invalid synthesis parameters.
var (
	ErrInvalidFrequency  = errors.New("tone: frequency must be positive and below the Nyquist limit")
	ErrInvalidDuration   = errors.New("tone: duration must be positive")
	ErrInvalidSampleRate = errors.New("tone: sample rate must be positive")
	ErrInvalidChannels   = errors.New("tone: channel count must be 1 or 2")
)

// Harmonic is an overtone layered on the fundamental
type Harmonic struct {
	Multiple float64 // Frequency multiple of the fundamental
	Weight   float64 // Amplitude relative to the fundamental
}

// DefaultHarmonics adds a soft octave and twelfth
var DefaultHarmonics = []Harmonic{
	{Multiple: 2, Weight: 0.3},
	{Multiple: 3, Weight: 0.1},
}

// Config shapes the synthesized beep
type Config struct {
	Amplitude float64    // Peak amplitude after mixing partials (0-1)
	Attack    float64    // Fraction of frames ramping in
	Release   float64    // Fraction of frames ramping out
	Harmonics []Harmonic // Optional overtones

	// Stereo only: slow left/right gain oscillation
	PanWobbleDepth float64 // 0 disables, 1 swings fully to either side
	PanWobbleHz    float64
}

// DefaultConfig returns the beep shape used by the engine
func DefaultConfig() Config {
	return Config{
		Amplitude:      0.25,
		Attack:         0.1,
		Release:        0.15,
		Harmonics:      DefaultHarmonics,
		PanWobbleDepth: 0,
		PanWobbleHz:    4,
	}
}

// Validate checks the envelope and amplitude settings
func (c Config) Validate() error {
	if c.Amplitude <= 0 || c.Amplitude > 1 {
		return fmt.Errorf("tone: amplitude must be in (0, 1], got %f", c.Amplitude)
	}
	if c.Attack <= 0 || c.Release <= 0 || c.Attack+c.Release > 1 {
		return fmt.Errorf("tone: attack (%f) and release (%f) must be positive and sum to at most 1", c.Attack, c.Release)
	}
	if c.PanWobbleDepth < 0 || c.PanWobbleDepth > 1 {
		return fmt.Errorf("tone: pan wobble depth must be in [0, 1], got %f", c.PanWobbleDepth)
	}
	for _, h := range c.Harmonics {
		if h.Multiple <= 0 || h.Weight < 0 {
			return fmt.Errorf("tone: invalid harmonic %+v", h)
		}
	}
	return nil
}

// Buffer is an immutable block of synthesized audio
type Buffer struct {
	Samples    []float32 // Interleaved, len = Frames * Channels
	Frames     int
	Channels   int
	SampleRate int
	Frequency  float64
}

// Duration returns the playback length
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(b.Frames) / float64(b.SampleRate) * float64(time.Second))
}

// Frame returns the samples of frame i
func (b *Buffer) Frame(i int) []float32 {
	return b.Samples[i*b.Channels : (i+1)*b.Channels]
}

// Mono returns frame i averaged across channels
func (b *Buffer) Mono(i int) float32 {
	if b.Channels == 1 {
		return b.Samples[i]
	}
	var sum float32
	for _, s := range b.Frame(i) {
		sum += s
	}
	return sum / float32(b.Channels)
}

// Peak returns the largest absolute sample
func (b *Buffer) Peak() float32 {
	var peak float32
	for _, s := range b.Samples {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak
}

// Synthesizer generates enveloped tone buffers. It is stateless and safe
// for concurrent use.
type Synthesizer struct {
	cfg  Config
	norm float64
}

// NewSynthesizer creates a synthesizer with the given shape
func NewSynthesizer(cfg Config) (*Synthesizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sum := 1.0
	for _, h := range cfg.Harmonics {
		sum += h.Weight
	}

	return &Synthesizer{
		cfg:  cfg,
		norm: cfg.Amplitude / sum,
	}, nil
}

// Config returns the synthesizer shape
func (s *Synthesizer) Config() Config {
	return s.cfg
}

// Frames returns the frame count Generate produces for the given duration
func Frames(duration time.Duration, sampleRate int) int {
	return int(math.Round(duration.Seconds() * float64(sampleRate)))
}

// Generate synthesizes a tone of round(duration*sampleRate) frames.
// Overtones at or above the Nyquist limit are skipped.
func (s *Synthesizer) Generate(frequency float64, duration time.Duration, sampleRate, channels int) (*Buffer, error) {
	if sampleRate <= 0 {
		return nil, ErrInvalidSampleRate
	}
	if math.IsNaN(frequency) || frequency <= 0 || frequency >= float64(sampleRate)/2 {
		return nil, fmt.Errorf("%w: %f Hz at %d Hz", ErrInvalidFrequency, frequency, sampleRate)
	}
	if duration <= 0 {
		return nil, ErrInvalidDuration
	}
	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChannels, channels)
	}

	frames := Frames(duration, sampleRate)
	if frames < 2 {
		return nil, fmt.Errorf("%w: %s is shorter than two frames at %d Hz", ErrInvalidDuration, duration, sampleRate)
	}

	attack := max(1, int(math.Round(float64(frames)*s.cfg.Attack)))
	release := max(1, int(math.Round(float64(frames)*s.cfg.Release)))

	nyquist := float64(sampleRate) / 2
	sr := float64(sampleRate)
	samples := make([]float32, frames*channels)

	for i := 0; i < frames; i++ {
		t := float64(i) / sr
		phase := 2 * math.Pi * frequency * t

		v := math.Sin(phase)
		for _, h := range s.cfg.Harmonics {
			if frequency*h.Multiple >= nyquist {
				continue
			}
			v += h.Weight * math.Sin(phase*h.Multiple)
		}
		v *= s.norm * envelope(i, frames, attack, release)

		if channels == 1 {
			samples[i] = float32(v)
			continue
		}

		left, right := v, v
		if s.cfg.PanWobbleDepth > 0 {
			w := math.Sin(2 * math.Pi * s.cfg.PanWobbleHz * t)
			left *= 1 - s.cfg.PanWobbleDepth*(0.5+0.5*w)
			right *= 1 - s.cfg.PanWobbleDepth*(0.5-0.5*w)
		}
		samples[2*i] = float32(left)
		samples[2*i+1] = float32(right)
	}

	return &Buffer{
		Samples:    samples,
		Frames:     frames,
		Channels:   channels,
		SampleRate: sampleRate,
		Frequency:  frequency,
	}, nil
}

// envelope is 0 at the first and last frame and 1 across the sustain
func envelope(i, frames, attack, release int) float64 {
	g := 1.0
	if i < attack {
		g = float64(i) / float64(attack)
	}
	if tail := frames - 1 - i; tail < release {
		g = math.Min(g, float64(tail)/float64(release))
	}
	return g
}
