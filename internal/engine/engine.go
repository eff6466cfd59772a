// Package engine renders tracked objects as spatialized, distance-modulated
// beeps.
//
// Each identity in the object stream gets exactly one voice. An update cycle
// reconciles the newest snapshot against the registry: new identities get a
// positioned output and a beep loop, persisting identities are re-synced in
// place, and missing identities are destroyed within the same cycle. Cycles
// are serialized; readers see a snapshot published at the end of each cycle.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-cue/internal/audio"
	"github.com/teslashibe/go-cue/internal/mapping"
	"github.com/teslashibe/go-cue/internal/spatial"
	"github.com/teslashibe/go-cue/internal/tone"
	"github.com/teslashibe/go-cue/internal/tracking"
	"github.com/teslashibe/go-cue/internal/voice"
)

// Sentinel errors for engine state.
var (
	ErrDeviceUnavailable = errors.New("engine: audio device unavailable")
	ErrInterrupted       = errors.New("engine: audio interrupted")
	ErrClosed            = errors.New("engine: closed")
)

// HealthComponent is the name the engine reports device health under
const HealthComponent = "audio_device"

// HealthReporter receives device health transitions
type HealthReporter interface {
	SetComponent(name string, healthy bool, message string)
}

// Engine owns the audio device and every voice
type Engine struct {
	cfg    Config
	device audio.Device
	synth  *tone.Synthesizer
	cache  *tone.Cache
	mapper *mapping.Mapper
	logger *slog.Logger

	sessionID string
	now       func() time.Time

	// Update cycle state, single writer
	updateMu sync.Mutex
	registry *voice.Registry
	closed   bool

	published atomic.Pointer[[]voice.State]

	listenerMu sync.RWMutex
	listener   spatial.Pose

	// Device state
	devMu       sync.Mutex
	interrupted atomic.Bool
	failing     bool
	backoff     time.Duration
	nextAttempt time.Time
	health      HealthReporter

	// Beep loop lifetime
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	subsMu sync.RWMutex
	subs   map[chan voice.Event]struct{}

	cycles          atomic.Uint64
	created         atomic.Uint64
	destroyed       atomic.Uint64
	beepsPlayed     atomic.Uint64
	beepsSkipped    atomic.Uint64
	deviceFailures  atomic.Uint64
	registerErrors  atomic.Uint64
	listenerUpdates atomic.Uint64
}

// New creates an engine that owns device. The device is started lazily on
// the first new identity.
func New(cfg Config, device audio.Device, synth *tone.Synthesizer, mapper *mapping.Mapper, logger *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	if device == nil {
		return nil, errors.New("engine: nil device")
	}
	if synth == nil || mapper == nil {
		return nil, errors.New("engine: synthesizer and mapper are required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		cfg:       cfg,
		device:    device,
		synth:     synth,
		cache:     tone.NewCache(synth, cfg.CacheSize),
		mapper:    mapper,
		logger:    logger,
		sessionID: uuid.NewString(),
		now:       time.Now,
		registry:  voice.NewRegistry(),
		listener:  spatial.DefaultPose(),
		backoff:   cfg.RestartBackoff,
		ctx:       ctx,
		cancel:    cancel,
		subs:      make(map[chan voice.Event]struct{}),
	}
	empty := []voice.State{}
	e.published.Store(&empty)

	return e, nil
}

// SetHealth registers a health reporter for device state
func (e *Engine) SetHealth(h HealthReporter) {
	e.devMu.Lock()
	e.health = h
	e.devMu.Unlock()
}

// SessionID identifies this engine instance
func (e *Engine) SessionID() string {
	return e.sessionID
}

// Update runs one update cycle against the full set of currently visible
// objects. Objects absent from the set lose their voice in this cycle.
// If an identity appears more than once, the last occurrence wins.
func (e *Engine) Update(ctx context.Context, objects []tracking.TrackedObject) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.updateMu.Lock()
	defer e.updateMu.Unlock()

	if e.closed {
		return ErrClosed
	}

	now := e.now()

	latest := make(map[voice.Identity]tracking.TrackedObject, len(objects))
	order := make([]voice.Identity, 0, len(objects))
	for _, obj := range objects {
		if obj.ID == "" {
			e.logger.Debug("ignoring object without identity", "label", obj.Label)
			continue
		}
		id := voice.Identity(obj.ID)
		if _, seen := latest[id]; !seen {
			order = append(order, id)
		}
		latest[id] = obj
	}

	current := voice.NewIdentitySet(order...)
	toCreate, toDestroy := e.registry.Reconcile(current)

	for _, id := range toDestroy.Sorted() {
		e.destroy(id, now)
	}

	// Only identities that can actually get a voice count as new arrivals
	creatable := false
	for id := range toCreate {
		if latest[id].Position.IsFinite() {
			creatable = true
			break
		}
	}
	if creatable {
		if err := e.ensureDevice(false); err == nil {
			e.attachDetached()
		}
	}

	listener := e.Listener()
	for _, id := range order {
		obj := latest[id]

		// Unusable positions keep an existing voice where it was
		if !obj.Position.IsFinite() {
			e.logger.Debug("ignoring non-finite position", "identity", id)
			continue
		}

		params := e.mapper.Map(e.distance(listener, obj))

		if v := e.registry.Voice(id); v != nil {
			v.Sync(obj.Label, obj.Position, params, now)
			continue
		}
		e.create(id, obj, params, now)
	}

	e.cycles.Add(1)
	e.publish()
	return nil
}

func (e *Engine) distance(listener spatial.Pose, obj tracking.TrackedObject) float64 {
	if e.cfg.RecomputeDistance || obj.Distance <= 0 {
		return listener.Position.Distance(obj.Position)
	}
	return obj.Distance
}

func (e *Engine) create(id voice.Identity, obj tracking.TrackedObject, params mapping.Params, now time.Time) {
	var out audio.Output
	if e.device.Running() && !e.interrupted.Load() {
		o, err := e.device.NewOutput(string(id))
		if err != nil {
			e.logger.Warn("output unavailable, voice stays silent", "identity", id, "error", err)
		} else {
			out = o
		}
	}

	v := voice.New(id, obj.Label, out, now)
	if err := e.registry.Register(v); err != nil {
		e.registerErrors.Add(1)
		e.logger.Error("voice registration failed", "identity", id, "error", err)
		if out != nil {
			out.Stop()
			out.Release()
		}
		return
	}

	v.Sync(obj.Label, obj.Position, params, now)
	e.created.Add(1)
	e.startLoop(v)

	e.logger.Debug("voice activated",
		"identity", id,
		"label", obj.Label,
		"distance", params.Distance,
		"frequency", params.Frequency,
		"attached", out != nil,
	)

	e.emit(voice.Event{
		Kind:     voice.EventActivated,
		Identity: id,
		Label:    obj.Label,
		Position: obj.Position,
		Distance: params.Distance,
		Time:     now,
	})
}

func (e *Engine) destroy(id voice.Identity, now time.Time) {
	v := e.registry.Unregister(id)
	if v == nil {
		return
	}

	state := v.State()
	if !v.Kill() {
		e.logger.Error("voice destroyed twice", "identity", id)
		return
	}
	e.destroyed.Add(1)

	e.logger.Debug("voice deactivated", "identity", id, "label", state.Label, "beeps", state.Beeps)

	e.emit(voice.Event{
		Kind:     voice.EventDeactivated,
		Identity: id,
		Label:    state.Label,
		Position: state.Position,
		Distance: state.Distance,
		Time:     now,
	})
}

// attachDetached gives an output to every live voice created while the
// device was down. Caller holds updateMu.
func (e *Engine) attachDetached() {
	for _, v := range e.registry.Voices() {
		if v.Attached() || !v.Alive() {
			continue
		}

		out, err := e.device.NewOutput(string(v.Identity))
		if err != nil {
			e.logger.Warn("reattach failed", "identity", v.Identity, "error", err)
			return
		}
		if !v.Attach(out) {
			out.Release()
			continue
		}
		e.startLoop(v)
	}
}

func (e *Engine) publish() {
	voices := e.registry.Voices()
	states := make([]voice.State, len(voices))
	for i, v := range voices {
		states[i] = v.State()
	}
	e.published.Store(&states)
}

// Voices returns the voice snapshot published by the last update cycle,
// ordered by identity
func (e *Engine) Voices() []voice.State {
	states := *e.published.Load()
	out := make([]voice.State, len(states))
	copy(out, states)
	return out
}

// UpdateListener moves the listener. Voices are not touched.
func (e *Engine) UpdateListener(pose spatial.Pose) {
	if !pose.Position.IsFinite() {
		return
	}
	pose.Orientation = pose.Orientation.Normalize()

	e.listenerMu.Lock()
	e.listener = pose
	e.listenerMu.Unlock()

	e.device.SetListener(pose)
	e.listenerUpdates.Add(1)
}

// Listener returns the current listener pose
func (e *Engine) Listener() spatial.Pose {
	e.listenerMu.RLock()
	defer e.listenerMu.RUnlock()
	return e.listener
}

// Subscribe returns a channel that receives voice lifecycle events
func (e *Engine) Subscribe() chan voice.Event {
	ch := make(chan voice.Event, 32)

	e.subsMu.Lock()
	e.subs[ch] = struct{}{}
	e.subsMu.Unlock()

	return ch
}

// Unsubscribe removes a subscriber
func (e *Engine) Unsubscribe(ch chan voice.Event) {
	e.subsMu.Lock()
	if _, exists := e.subs[ch]; exists {
		delete(e.subs, ch)
		close(ch)
	}
	e.subsMu.Unlock()
}

func (e *Engine) emit(ev voice.Event) {
	e.subsMu.RLock()
	defer e.subsMu.RUnlock()

	for ch := range e.subs {
		select {
		case ch <- ev:
		default:
			// Drop if subscriber is slow
		}
	}
}

// Close destroys every voice, waits for the beep loops to exit and closes
// the device
func (e *Engine) Close() error {
	e.updateMu.Lock()
	if e.closed {
		e.updateMu.Unlock()
		return nil
	}
	e.closed = true

	now := e.now()
	for _, id := range e.registry.Identities() {
		e.destroy(id, now)
	}
	e.publish()
	e.updateMu.Unlock()

	e.cancel()
	e.wg.Wait()

	e.subsMu.Lock()
	for ch := range e.subs {
		close(ch)
		delete(e.subs, ch)
	}
	e.subsMu.Unlock()

	e.logger.Info("engine closed",
		"cycles", e.cycles.Load(),
		"voices_created", e.created.Load(),
		"beeps_played", e.beepsPlayed.Load(),
	)
	return e.device.Close()
}
