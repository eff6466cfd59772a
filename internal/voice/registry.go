package voice

import (
	"errors"
	"fmt"
)

// Sentinel errors for registry invariant violations.
var (
	ErrDuplicateVoice = errors.New("voice: identity already has a voice")
	ErrUnknownVoice   = errors.New("voice: no voice for identity")
)

// Registry maps identities to their single voice. It performs no audio I/O
// and no locking: all calls must come from the engine's update cycle.
type Registry struct {
	voices map[Identity]*Voice
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{voices: make(map[Identity]*Voice)}
}

// Reconcile diffs the identities of the latest update against the
// registered voices
func (r *Registry) Reconcile(current IdentitySet) (toCreate, toDestroy IdentitySet) {
	toCreate = make(IdentitySet)
	toDestroy = make(IdentitySet)

	for id := range current {
		if _, ok := r.voices[id]; !ok {
			toCreate[id] = struct{}{}
		}
	}
	for id := range r.voices {
		if !current.Has(id) {
			toDestroy[id] = struct{}{}
		}
	}
	return toCreate, toDestroy
}

// Voice returns the voice for id, or nil
func (r *Registry) Voice(id Identity) *Voice {
	return r.voices[id]
}

// Register adds v under its identity. Registering an identity that already
// has a voice fails without touching either voice.
func (r *Registry) Register(v *Voice) error {
	if v == nil {
		return errors.New("voice: cannot register nil voice")
	}
	if _, ok := r.voices[v.Identity]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateVoice, v.Identity)
	}
	r.voices[v.Identity] = v
	return nil
}

// Unregister removes and returns the voice for id so the caller can
// release it. Returns nil if none was registered.
func (r *Registry) Unregister(id Identity) *Voice {
	v, ok := r.voices[id]
	if !ok {
		return nil
	}
	delete(r.voices, id)
	return v
}

// Len returns the number of voices
func (r *Registry) Len() int {
	return len(r.voices)
}

// Identities returns the registered identities in lexical order
func (r *Registry) Identities() []Identity {
	s := make(IdentitySet, len(r.voices))
	for id := range r.voices {
		s[id] = struct{}{}
	}
	return s.Sorted()
}

// Voices returns the registered voices ordered by identity
func (r *Registry) Voices() []*Voice {
	ids := r.Identities()
	out := make([]*Voice, len(ids))
	for i, id := range ids {
		out[i] = r.voices[id]
	}
	return out
}
