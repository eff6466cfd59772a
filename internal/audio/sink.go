package audio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Sink plays an interleaved float32 little-endian stereo stream
type Sink interface {
	// Start begins pulling from src. A paused sink resumes with the same src.
	Start(src io.Reader) error

	// Pause stops pulling until the next Start
	Pause() error

	// Name returns the backend name
	Name() string

	// Close releases the sink
	io.Closer
}

// SinkStats are counters reported by sinks that keep them
type SinkStats struct {
	Running bool   `json:"running"`
	Bytes   uint64 `json:"bytes"`
	Errors  uint64 `json:"errors"`
}

// StatsSink is implemented by sinks that report SinkStats
type StatsSink interface {
	Sink
	Stats() SinkStats
}

// NewSink creates a sink by backend name: oto, exec or null
func NewSink(kind string, cfg SinkConfig, logger *slog.Logger) (Sink, error) {
	switch kind {
	case "oto":
		return NewOtoSink(cfg, logger), nil
	case "exec":
		return NewExecSink(cfg, logger), nil
	case "null", "":
		return NewNullSink(cfg), nil
	default:
		return nil, fmt.Errorf("unknown audio sink %q", kind)
	}
}

// NullSink consumes the stream in real time and discards it. Used headless
// and in tests so playback state still advances.
type NullSink struct {
	cfg SinkConfig

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	bytesRead atomic.Uint64
}

// NewNullSink creates a discarding sink
func NewNullSink(cfg SinkConfig) *NullSink {
	return &NullSink{cfg: cfg}
}

// Start begins the consume loop
func (n *NullSink) Start(src io.Reader) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	n.done = make(chan struct{})

	go n.run(ctx, src, n.done)
	return nil
}

func (n *NullSink) run(ctx context.Context, src io.Reader, done chan struct{}) {
	defer close(done)

	const tick = 10 * time.Millisecond
	chunk := make([]byte, n.cfg.SampleRate/100*BytesPerFrame)

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r, err := src.Read(chunk)
			n.bytesRead.Add(uint64(r))
			if err != nil {
				return
			}
		}
	}
}

// Pause stops the consume loop
func (n *NullSink) Pause() error {
	n.mu.Lock()
	cancel, done := n.cancel, n.done
	n.cancel = nil
	n.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}

// Stats returns sink statistics
func (n *NullSink) Stats() SinkStats {
	n.mu.Lock()
	running := n.cancel != nil
	n.mu.Unlock()

	return SinkStats{
		Running: running,
		Bytes:   n.bytesRead.Load(),
	}
}

// Name returns the backend name
func (n *NullSink) Name() string { return "null" }

// Close stops the sink
func (n *NullSink) Close() error {
	return n.Pause()
}
