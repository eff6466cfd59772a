// Package mapping converts an object's distance into the loudness and pitch
// of its cue. Closer objects are louder and higher. Both outputs are
// monotonically non-increasing in distance and bounded for any input,
// including NaN and negative distances.
package mapping

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfig is returned for inconsistent mapper settings
var ErrInvalidConfig = errors.New("mapping: invalid config")

// Curve selects an interpolation shape
type Curve string

const (
	// CurveLinear interpolates linearly between the extremes
	CurveLinear Curve = "linear"
	// CurveExponential interpolates geometrically (equal ratios per meter).
	// Used for pitch, where it gives perceptually even steps.
	CurveExponential Curve = "exponential"
	// CurveInverse follows inverse-distance attenuation, rescaled so the
	// range ends exactly at the configured extremes. Used for volume.
	CurveInverse Curve = "inverse"
)

// Config holds the tunable mapping constants
type Config struct {
	MinDistance  float64 // Meters; at or below this the cue is at its closest extreme
	MaxDistance  float64 // Meters; at or above this the cue is at its farthest extreme
	MinVolume    float64 // Volume at MaxDistance
	MaxVolume    float64 // Volume at MinDistance
	MinFrequency float64 // Hz at MaxDistance
	MaxFrequency float64 // Hz at MinDistance
	VolumeCurve  Curve
	PitchCurve   Curve
}

// DefaultConfig returns the default mapping
func DefaultConfig() Config {
	return Config{
		MinDistance:  0.5,
		MaxDistance:  10,
		MinVolume:    0.3,
		MaxVolume:    1.0,
		MinFrequency: 300,
		MaxFrequency: 1000,
		VolumeCurve:  CurveLinear,
		PitchCurve:   CurveExponential,
	}
}

// Validate checks ranges and curve names
func (c Config) Validate() error {
	if !(c.MinDistance > 0) || !(c.MaxDistance > c.MinDistance) || math.IsInf(c.MaxDistance, 0) {
		return fmt.Errorf("%w: distance range [%f, %f]", ErrInvalidConfig, c.MinDistance, c.MaxDistance)
	}
	if !(c.MinVolume >= 0) || !(c.MaxVolume >= c.MinVolume) || c.MaxVolume > 1 {
		return fmt.Errorf("%w: volume range [%f, %f]", ErrInvalidConfig, c.MinVolume, c.MaxVolume)
	}
	if !(c.MinFrequency > 0) || !(c.MaxFrequency >= c.MinFrequency) || math.IsInf(c.MaxFrequency, 0) {
		return fmt.Errorf("%w: frequency range [%f, %f]", ErrInvalidConfig, c.MinFrequency, c.MaxFrequency)
	}
	switch c.VolumeCurve {
	case CurveLinear, CurveExponential, CurveInverse:
	default:
		return fmt.Errorf("%w: unknown volume curve %q", ErrInvalidConfig, c.VolumeCurve)
	}
	switch c.PitchCurve {
	case CurveLinear, CurveExponential:
	default:
		return fmt.Errorf("%w: unknown pitch curve %q", ErrInvalidConfig, c.PitchCurve)
	}
	return nil
}

// Params are the audio parameters for one distance
type Params struct {
	Distance  float64 `json:"distance"` // Clamped distance used for mapping
	Volume    float64 `json:"volume"`
	Frequency float64 `json:"frequency"`
}

// Mapper maps distances to cue parameters. It is immutable and safe for
// concurrent use.
type Mapper struct {
	cfg Config
}

// New creates a mapper
func New(cfg Config) (*Mapper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Mapper{cfg: cfg}, nil
}

// Config returns the mapping constants
func (m *Mapper) Config() Config {
	return m.cfg
}

// Clamp limits a distance to the configured range. NaN is treated as
// out of range on the far side.
func (m *Mapper) Clamp(distance float64) float64 {
	if math.IsNaN(distance) {
		return m.cfg.MaxDistance
	}
	return math.Max(m.cfg.MinDistance, math.Min(distance, m.cfg.MaxDistance))
}

// Volume returns the cue volume in [MinVolume, MaxVolume] ⊆ [0, 1]
func (m *Mapper) Volume(distance float64) float64 {
	d := m.Clamp(distance)
	lo, hi := m.cfg.MinVolume, m.cfg.MaxVolume

	var v float64
	switch m.cfg.VolumeCurve {
	case CurveInverse:
		// min/d runs from 1 at MinDistance down to min/max at MaxDistance
		floor := m.cfg.MinDistance / m.cfg.MaxDistance
		k := (m.cfg.MinDistance/d - floor) / (1 - floor)
		v = lo + (hi-lo)*k
	case CurveExponential:
		if lo > 0 {
			v = hi * math.Pow(lo/hi, m.progress(d))
		} else {
			v = hi + (lo-hi)*m.progress(d)
		}
	default:
		v = hi + (lo-hi)*m.progress(d)
	}

	return math.Max(lo, math.Min(v, hi))
}

// Pitch returns the cue frequency in [MinFrequency, MaxFrequency]
func (m *Mapper) Pitch(distance float64) float64 {
	d := m.Clamp(distance)
	lo, hi := m.cfg.MinFrequency, m.cfg.MaxFrequency

	var f float64
	switch m.cfg.PitchCurve {
	case CurveLinear:
		f = hi + (lo-hi)*m.progress(d)
	default:
		f = hi * math.Pow(lo/hi, m.progress(d))
	}

	return math.Max(lo, math.Min(f, hi))
}

// Map returns volume and pitch for a distance
func (m *Mapper) Map(distance float64) Params {
	return Params{
		Distance:  m.Clamp(distance),
		Volume:    m.Volume(distance),
		Frequency: m.Pitch(distance),
	}
}

// progress is 0 at MinDistance and 1 at MaxDistance
func (m *Mapper) progress(clamped float64) float64 {
	return (clamped - m.cfg.MinDistance) / (m.cfg.MaxDistance - m.cfg.MinDistance)
}
