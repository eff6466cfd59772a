package tracking

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-cue/internal/spatial"
)

// Scripted replays a fixed sequence of snapshots at a fixed interval
type Scripted struct {
	frames   [][]TrackedObject
	interval time.Duration
	loop     bool
}

// NewScripted creates a scripted source
func NewScripted(interval time.Duration, loop bool, frames ...[]TrackedObject) *Scripted {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Scripted{
		frames:   frames,
		interval: interval,
		loop:     loop,
	}
}

// Name returns the source type name
func (s *Scripted) Name() string { return "scripted" }

// Run emits every frame, returning nil once the script ends
func (s *Scripted) Run(ctx context.Context, out chan<- Snapshot) error {
	if len(s.frames) == 0 {
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var seq uint64
	for {
		for _, frame := range s.frames {
			seq++
			snap := Snapshot{Seq: seq, Objects: frame, Time: time.Now()}

			select {
			case out <- snap:
			case <-ctx.Done():
				return ctx.Err()
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if !s.loop {
			return nil
		}
	}
}

// DemoScript builds a scene for --mock runs: a chair approaching from
// 8 m ahead, a door fixed to the right, a person walking behind the
// listener from left to right and a cup that flickers in and out of view.
func DemoScript(frames int) [][]TrackedObject {
	if frames < 2 {
		frames = 2
	}

	chair := uuid.NewString()
	door := uuid.NewString()
	person := uuid.NewString()
	cup := uuid.NewString()

	script := make([][]TrackedObject, frames)
	for i := range script {
		t := float64(i) / float64(frames-1)

		objects := []TrackedObject{
			{ID: chair, Label: "chair", Position: spatial.Vec3{X: -0.5, Z: -(8 - 7.5*t)}},
			{ID: door, Label: "door", Position: spatial.Vec3{X: 3, Z: -1}},
			{ID: person, Label: "person", Position: spatial.Vec3{X: -4 + 8*t, Z: 2}},
		}

		// Visible for 3 frames out of every 5
		if i%5 < 3 {
			angle := 2 * math.Pi * t
			objects = append(objects, TrackedObject{
				ID:       cup,
				Label:    "cup",
				Position: spatial.Vec3{X: 1.5 * math.Sin(angle), Y: 0.8, Z: -1.5 * math.Cos(angle)},
			})
		}

		script[i] = objects
	}
	return script
}
