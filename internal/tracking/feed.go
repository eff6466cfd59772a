package tracking

import (
	"context"
	"sync/atomic"
)

// Feed is a push source: trackers call Publish (e.g. from the HTTP and
// WebSocket handlers) and the pump drains it. When the consumer falls
// behind, the oldest queued snapshot is dropped since only the newest
// reflects what is visible now.
type Feed struct {
	ch chan Snapshot

	published atomic.Uint64
	dropped   atomic.Uint64
}

// NewFeed creates a feed queueing up to depth snapshots
func NewFeed(depth int) *Feed {
	if depth < 1 {
		depth = 1
	}
	return &Feed{ch: make(chan Snapshot, depth)}
}

// Publish queues a snapshot without blocking
func (f *Feed) Publish(s Snapshot) {
	f.published.Add(1)
	for {
		select {
		case f.ch <- s:
			return
		default:
		}

		select {
		case <-f.ch:
			f.dropped.Add(1)
		default:
		}
	}
}

// Run forwards published snapshots until ctx is done
func (f *Feed) Run(ctx context.Context, out chan<- Snapshot) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s := <-f.ch:
			select {
			case out <- s:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Name returns the source type name
func (f *Feed) Name() string { return "push" }

// FeedStats contains feed statistics
type FeedStats struct {
	Published uint64 `json:"published"`
	Dropped   uint64 `json:"dropped"`
}

// Stats returns feed statistics
func (f *Feed) Stats() FeedStats {
	return FeedStats{
		Published: f.published.Load(),
		Dropped:   f.dropped.Load(),
	}
}
