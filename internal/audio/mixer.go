package audio

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-cue/internal/spatial"
	"github.com/teslashibe/go-cue/internal/tone"
)

// MixerConfig configures the software spatializer
type MixerConfig struct {
	SampleRate      int
	RearAttenuation float64 // Gain for sources behind the listener (0-1)
	MasterGain      float64
}

// DefaultMixerConfig returns sensible defaults
func DefaultMixerConfig() MixerConfig {
	return MixerConfig{
		SampleRate:      48000,
		RearAttenuation: 0.7,
		MasterGain:      1.0,
	}
}

// Mixer is a Device that pans each output by its azimuth relative to the
// listener and sums them into a stereo stream pulled by a Sink.
type Mixer struct {
	cfg    MixerConfig
	sink   Sink
	logger *slog.Logger

	mu          sync.Mutex
	listener    spatial.Pose
	outputs     map[*mixerOutput]struct{}
	running     bool
	sinkStarted bool
	closed      bool

	framesMixed atomic.Uint64
	clipped     atomic.Uint64
}

// NewMixer creates a mixer rendering into sink
func NewMixer(cfg MixerConfig, sink Sink, logger *slog.Logger) *Mixer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MasterGain <= 0 {
		cfg.MasterGain = 1
	}

	return &Mixer{
		cfg:      cfg,
		sink:     sink,
		logger:   logger,
		listener: spatial.DefaultPose(),
		outputs:  make(map[*mixerOutput]struct{}),
	}
}

// Start starts or resumes the sink
func (m *Mixer) Start() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	// The sink may pull from Read synchronously, so it is started unlocked
	if err := m.sink.Start(m); err != nil {
		return fmt.Errorf("start %s sink: %w", m.sink.Name(), err)
	}

	m.mu.Lock()
	first := !m.sinkStarted
	m.running = true
	m.sinkStarted = true
	outputs := len(m.outputs)
	m.mu.Unlock()

	m.logger.Info("mixer running",
		"sink", m.sink.Name(),
		"resumed", !first,
		"outputs", outputs,
	)
	return nil
}

// Pause silences the mixer. Outputs keep their state.
func (m *Mixer) Pause() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	m.mu.Unlock()

	if err := m.sink.Pause(); err != nil {
		return fmt.Errorf("pause %s sink: %w", m.sink.Name(), err)
	}
	return nil
}

// Running reports whether the sink is pulling audio
func (m *Mixer) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// NewOutput attaches a positioned output
func (m *Mixer) NewOutput(name string) (Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	if !m.running {
		return nil, ErrNotStarted
	}

	o := &mixerOutput{m: m, name: name, volume: 1}
	o.updateGainsLocked()
	m.outputs[o] = struct{}{}
	return o, nil
}

// SetListener moves the listener and re-pans every output
func (m *Mixer) SetListener(pose spatial.Pose) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.listener = pose
	for o := range m.outputs {
		o.updateGainsLocked()
	}
}

// Listener returns the current listener pose
func (m *Mixer) Listener() spatial.Pose {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listener
}

// Name returns the backend name
func (m *Mixer) Name() string {
	return "mixer/" + m.sink.Name()
}

// Close detaches all outputs and closes the sink
func (m *Mixer) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.running = false
	for o := range m.outputs {
		o.released = true
		o.buf = nil
	}
	m.outputs = make(map[*mixerOutput]struct{})
	m.mu.Unlock()

	return m.sink.Close()
}

// Read renders interleaved float32 little-endian stereo frames
func (m *Mixer) Read(p []byte) (int, error) {
	frames := len(p) / BytesPerFrame

	m.mu.Lock()
	running := m.running
	for i := 0; i < frames; i++ {
		var l, r float64
		if running {
			for o := range m.outputs {
				ol, or := o.nextLocked()
				l += ol
				r += or
			}
		}
		l = m.limit(l * m.cfg.MasterGain)
		r = m.limit(r * m.cfg.MasterGain)

		off := i * BytesPerFrame
		binary.LittleEndian.PutUint32(p[off:], math.Float32bits(float32(l)))
		binary.LittleEndian.PutUint32(p[off+4:], math.Float32bits(float32(r)))
	}
	m.mu.Unlock()

	for i := frames * BytesPerFrame; i < len(p); i++ {
		p[i] = 0
	}

	if running {
		m.framesMixed.Add(uint64(frames))
	}
	return len(p), nil
}

func (m *Mixer) limit(v float64) float64 {
	if v > 1 {
		m.clipped.Add(1)
		return 1
	}
	if v < -1 {
		m.clipped.Add(1)
		return -1
	}
	return v
}

// MixerStats contains mixer statistics
type MixerStats struct {
	Running        bool       `json:"running"`
	Outputs        int        `json:"outputs"`
	FramesMixed    uint64     `json:"frames_mixed"`
	ClippedSamples uint64     `json:"clipped_samples"`
	Sink           string     `json:"sink"`
	SinkStats      *SinkStats `json:"sink_stats,omitempty"`
}

// Stats returns mixer statistics
func (m *Mixer) Stats() MixerStats {
	m.mu.Lock()
	stats := MixerStats{
		Running:        m.running,
		Outputs:        len(m.outputs),
		FramesMixed:    m.framesMixed.Load(),
		ClippedSamples: m.clipped.Load(),
		Sink:           m.sink.Name(),
	}
	m.mu.Unlock()

	// Sink locks are never taken under the mixer lock
	if s, ok := m.sink.(StatsSink); ok {
		ss := s.Stats()
		stats.SinkStats = &ss
	}
	return stats
}

// mixerOutput fields are guarded by the owning mixer's mutex
type mixerOutput struct {
	m    *Mixer
	name string

	position spatial.Vec3
	volume   float64
	gainL    float64
	gainR    float64

	buf      *tone.Buffer
	cursor   int
	released bool
}

func (o *mixerOutput) SetPosition(p spatial.Vec3) {
	o.m.mu.Lock()
	defer o.m.mu.Unlock()

	o.position = p
	o.updateGainsLocked()
}

func (o *mixerOutput) SetVolume(v float64) {
	o.m.mu.Lock()
	defer o.m.mu.Unlock()

	o.volume = spatial.Clamp(v, 0, 1)
	o.updateGainsLocked()
}

func (o *mixerOutput) Play(buf *tone.Buffer) error {
	o.m.mu.Lock()
	defer o.m.mu.Unlock()

	if o.released {
		return ErrReleased
	}
	if buf.SampleRate != o.m.cfg.SampleRate {
		return fmt.Errorf("audio: buffer sample rate %d does not match mixer rate %d", buf.SampleRate, o.m.cfg.SampleRate)
	}

	o.buf = buf
	o.cursor = 0
	return nil
}

func (o *mixerOutput) IsPlaying() bool {
	o.m.mu.Lock()
	defer o.m.mu.Unlock()
	return o.buf != nil
}

func (o *mixerOutput) Stop() {
	o.m.mu.Lock()
	defer o.m.mu.Unlock()

	o.buf = nil
	o.cursor = 0
}

func (o *mixerOutput) Release() {
	o.m.mu.Lock()
	defer o.m.mu.Unlock()

	o.released = true
	o.buf = nil
	delete(o.m.outputs, o)
}

// updateGainsLocked applies equal-power panning from the listener-relative
// azimuth, attenuating sources behind the listener
func (o *mixerOutput) updateGainsLocked() {
	dir := o.m.listener.DirectionTo(o.position)
	pan := spatial.Pan(dir.Azimuth)

	theta := (pan + 1) * math.Pi / 4
	g := o.volume
	if math.Abs(dir.Azimuth) > math.Pi/2 {
		g *= o.m.cfg.RearAttenuation
	}

	o.gainL = math.Cos(theta) * g
	o.gainR = math.Sin(theta) * g
}

func (o *mixerOutput) nextLocked() (float64, float64) {
	if o.buf == nil {
		return 0, 0
	}

	var l, r float64
	if o.buf.Channels == 2 {
		f := o.buf.Frame(o.cursor)
		l, r = float64(f[0]), float64(f[1])
	} else {
		l = float64(o.buf.Samples[o.cursor])
		r = l
	}

	o.cursor++
	if o.cursor >= o.buf.Frames {
		o.buf = nil
		o.cursor = 0
	}

	return l * o.gainL, r * o.gainR
}
