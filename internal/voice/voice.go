// Package voice tracks the persistent audio voices bound to tracked-object
// identities.
//
// A Voice owns one positioned output for as long as its identity is known.
// Killing a voice marks it dead and releases the output under the voice's
// lock, so a concurrently waking beep loop that re-checks liveness through
// PlayIfAlive can never touch a released output.
package voice

import (
	"sort"
	"sync"
	"time"

	"github.com/teslashibe/go-cue/internal/audio"
	"github.com/teslashibe/go-cue/internal/mapping"
	"github.com/teslashibe/go-cue/internal/spatial"
	"github.com/teslashibe/go-cue/internal/tone"
)

// Identity is the stable opaque token of one tracked object
type Identity string

// IdentitySet is a set of identities
type IdentitySet map[Identity]struct{}

// NewIdentitySet builds a set from ids
func NewIdentitySet(ids ...Identity) IdentitySet {
	s := make(IdentitySet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports membership
func (s IdentitySet) Has(id Identity) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the members in lexical order
func (s IdentitySet) Sorted() []Identity {
	ids := make([]Identity, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Voice is the engine-owned audio state of one identity
type Voice struct {
	Identity  Identity
	Label     string
	CreatedAt time.Time

	mu        sync.Mutex
	output    audio.Output
	position  spatial.Vec3
	params    mapping.Params
	updatedAt time.Time
	alive     bool
	scheduled bool
	done      chan struct{}
	beeps     uint64
}

// New creates a live voice. output may be nil while no device is available.
func New(id Identity, label string, output audio.Output, now time.Time) *Voice {
	return &Voice{
		Identity:  id,
		Label:     label,
		CreatedAt: now,
		output:    output,
		updatedAt: now,
		alive:     true,
		done:      make(chan struct{}),
	}
}

// Sync records the latest sighting and applies position and volume to
// the output. The pitch is only used by the next beep.
func (v *Voice) Sync(label string, position spatial.Vec3, params mapping.Params, now time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.alive {
		return
	}
	if label != "" {
		v.Label = label
	}
	v.position = position
	v.params = params
	v.updatedAt = now

	if v.output != nil {
		v.output.SetPosition(position)
		v.output.SetVolume(params.Volume)
	}
}

// Attach binds an output to a detached voice. It returns false if the voice
// is dead or already attached; the caller then still owns out.
func (v *Voice) Attach(out audio.Output) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.alive || v.output != nil {
		return false
	}
	v.output = out
	out.SetPosition(v.position)
	out.SetVolume(v.params.Volume)
	return true
}

// Attached reports whether the voice holds an output
func (v *Voice) Attached() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.output != nil
}

// Params returns the latest mapped parameters
func (v *Voice) Params() mapping.Params {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.params
}

// PlayIfAlive plays buf only if the voice is alive and attached
func (v *Voice) PlayIfAlive(buf *tone.Buffer) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.alive || v.output == nil {
		return false, nil
	}
	if err := v.output.Play(buf); err != nil {
		return false, err
	}
	v.beeps++
	return true, nil
}

// Alive reports whether the voice has not been killed
func (v *Voice) Alive() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.alive
}

// Done is closed when the voice is killed
func (v *Voice) Done() <-chan struct{} {
	return v.done
}

// MarkScheduled claims the voice's beep loop. It returns false if a loop
// is already pending or the voice is dead.
func (v *Voice) MarkScheduled() bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.alive || v.scheduled {
		return false
	}
	v.scheduled = true
	return true
}

// ClearScheduled releases the beep loop claim
func (v *Voice) ClearScheduled() {
	v.mu.Lock()
	v.scheduled = false
	v.mu.Unlock()
}

// Scheduled reports whether a beep loop is pending
func (v *Voice) Scheduled() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.scheduled
}

// Kill marks the voice dead, cancels its beep loop and stops and releases
// the output before returning. It returns false if already dead.
func (v *Voice) Kill() bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.alive {
		return false
	}
	v.alive = false
	close(v.done)

	if v.output != nil {
		v.output.Stop()
		v.output.Release()
		v.output = nil
	}
	return true
}

// State is an immutable view of a voice
type State struct {
	Identity  Identity     `json:"identity"`
	Label     string       `json:"label"`
	Position  spatial.Vec3 `json:"position"`
	Distance  float64      `json:"distance"`
	Volume    float64      `json:"volume"`
	Frequency float64      `json:"frequency"`
	Attached  bool         `json:"attached"`
	Scheduled bool         `json:"scheduled"`
	Beeps     uint64       `json:"beeps"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// State returns a snapshot of the voice
func (v *Voice) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()

	return State{
		Identity:  v.Identity,
		Label:     v.Label,
		Position:  v.position,
		Distance:  v.params.Distance,
		Volume:    v.params.Volume,
		Frequency: v.params.Frequency,
		Attached:  v.output != nil,
		Scheduled: v.scheduled,
		Beeps:     v.beeps,
		CreatedAt: v.CreatedAt,
		UpdatedAt: v.updatedAt,
	}
}

// EventKind distinguishes voice lifecycle events
type EventKind string

const (
	EventActivated   EventKind = "activated"
	EventDeactivated EventKind = "deactivated"
)

// Event announces a voice becoming active or inactive
type Event struct {
	Kind     EventKind    `json:"kind"`
	Identity Identity     `json:"identity"`
	Label    string       `json:"label"`
	Position spatial.Vec3 `json:"position"`
	Distance float64      `json:"distance"`
	Time     time.Time    `json:"time"`
}
