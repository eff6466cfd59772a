// Package audio provides the positional output capability the cue engine
// plays through, and a software spatial mixer that implements it on top of
// a plain stereo sink.
package audio

import (
	"errors"
	"time"

	"github.com/teslashibe/go-cue/internal/spatial"
	"github.com/teslashibe/go-cue/internal/tone"
)

// Sentinel errors for device and output state.
var (
	ErrNotStarted = errors.New("audio: device not started")
	ErrClosed     = errors.New("audio: device closed")
	ErrReleased   = errors.New("audio: output released")
)

// Device is a 3D audio output graph with one listener and any number of
// positioned outputs.
type Device interface {
	// Start brings the device to a running state from stopped, paused or
	// failed. Starting a running device is a no-op.
	Start() error

	// Pause silences the device. Outputs stay attached.
	Pause() error

	// Running reports whether the device is producing audio
	Running() bool

	// NewOutput attaches a positioned output. The device must be running.
	NewOutput(name string) (Output, error)

	// SetListener moves the listener all outputs are spatialized against
	SetListener(pose spatial.Pose)

	// Name returns the backend name
	Name() string

	// Close detaches every output and releases the device
	Close() error
}

// Output is one positioned emitter owned by a single voice
type Output interface {
	// SetPosition moves the emitter (world coordinates)
	SetPosition(p spatial.Vec3)

	// SetVolume sets the gain in [0, 1]
	SetVolume(v float64)

	// Play schedules a buffer from its start, replacing anything playing
	Play(buf *tone.Buffer) error

	// IsPlaying reports whether a buffer is still being rendered
	IsPlaying() bool

	// Stop cuts playback. Safe to call repeatedly.
	Stop()

	// Release detaches the output from the device. Safe to call repeatedly.
	Release()
}

// SinkConfig describes the PCM stream a sink consumes
type SinkConfig struct {
	SampleRate  int           // Hz
	Channels    int           // Always 2 for the mixer
	Buffer      time.Duration // Device buffer size hint
	PlaybackCmd string        // Exec sink only
}

// DefaultSinkConfig returns sensible defaults
func DefaultSinkConfig() SinkConfig {
	return SinkConfig{
		SampleRate:  48000,
		Channels:    2,
		Buffer:      50 * time.Millisecond,
		PlaybackCmd: "aplay",
	}
}

// BytesPerFrame is the size of one float32 stereo frame
const BytesPerFrame = 8
