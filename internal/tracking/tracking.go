// Package tracking carries tracked-object snapshots and listener poses from
// external trackers to the cue engine.
//
// Object detection itself is not done here. Trackers push snapshots through
// a Feed, a RemoteSource dials one over WebSocket, and Scripted replays a
// fixed sequence for tests and demos. A Pump delivers snapshots from one
// source to the engine in order on a single goroutine.
package tracking

import (
	"context"
	"time"

	"github.com/teslashibe/go-cue/internal/protocol"
	"github.com/teslashibe/go-cue/internal/spatial"
)

// TrackedObject is one detected object in a snapshot
type TrackedObject struct {
	ID       string       `json:"id"`       // Stable across the object's visible lifetime
	Label    string       `json:"label"`    // Classification, e.g. "chair"
	Position spatial.Vec3 `json:"position"` // World coordinates, meters
	Distance float64      `json:"distance"` // As reported; 0 = unknown
}

// Snapshot is the full set of objects visible in one detection cycle
type Snapshot struct {
	Stream  uint64          `json:"stream,omitempty"` // Changes when the tracker's numbering starts over
	Seq     uint64          `json:"seq"`
	Objects []TrackedObject `json:"objects"`
	Time    time.Time       `json:"time"`
}

// FromProtocol converts a wire snapshot
func FromProtocol(data *protocol.ObjectsData) Snapshot {
	objects := make([]TrackedObject, len(data.Objects))
	for i, o := range data.Objects {
		objects[i] = TrackedObject{
			ID:       o.ID,
			Label:    o.Label,
			Position: o.Position,
			Distance: o.Distance,
		}
	}
	return Snapshot{Seq: data.Seq, Objects: objects, Time: time.Now()}
}

// ToProtocol converts a snapshot for the wire
func (s Snapshot) ToProtocol() []protocol.ObjectData {
	out := make([]protocol.ObjectData, len(s.Objects))
	for i, o := range s.Objects {
		out[i] = protocol.ObjectData{
			ID:       o.ID,
			Label:    o.Label,
			Position: o.Position,
			Distance: o.Distance,
		}
	}
	return out
}

// Source produces snapshots
type Source interface {
	// Run sends snapshots to out until ctx is done or the source ends.
	// A finished source returns nil.
	Run(ctx context.Context, out chan<- Snapshot) error

	// Name returns the source type name
	Name() string
}

// Consumer receives snapshots, one cycle at a time
type Consumer interface {
	Update(ctx context.Context, objects []TrackedObject) error
}
