package tracking

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
)

// Pump is the object-update driver: it runs a source and delivers each
// snapshot to the consumer from a single goroutine, so update cycles never
// interleave.
type Pump struct {
	source   Source
	consumer Consumer
	logger   *slog.Logger

	stream  uint64
	lastSeq uint64

	delivered atomic.Uint64
	stale     atomic.Uint64
	failed    atomic.Uint64
	restarts  atomic.Uint64
}

// StaleWindow is how far below the newest sequence number a snapshot may
// fall and still be treated as a late arrival. Anything further back is a
// tracker that started counting again.
const StaleWindow = 16

// NewPump creates a pump
func NewPump(source Source, consumer Consumer, logger *slog.Logger) *Pump {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pump{
		source:   source,
		consumer: consumer,
		logger:   logger,
	}
}

// Run blocks until ctx is done or the source ends
func (p *Pump) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	snapshots := make(chan Snapshot, 4)
	srcErr := make(chan error, 1)

	go func() {
		srcErr <- p.source.Run(ctx, snapshots)
		close(snapshots)
	}()

	p.logger.Info("object pump started", "source", p.source.Name())

	for snap := range snapshots {
		p.deliver(ctx, snap)
	}

	err := <-srcErr
	p.logger.Info("object pump stopped",
		"source", p.source.Name(),
		"delivered", p.delivered.Load(),
		"stale", p.stale.Load(),
		"restarts", p.restarts.Load(),
	)

	if errors.Is(err, context.Canceled) {
		return ctx.Err()
	}
	return err
}

func (p *Pump) deliver(ctx context.Context, snap Snapshot) {
	if snap.Seq != 0 {
		switch {
		case snap.Stream != p.stream:
			p.logger.Info("tracker stream changed", "stream", snap.Stream, "seq", snap.Seq)
			p.stream = snap.Stream

		case snap.Seq <= p.lastSeq && p.lastSeq-snap.Seq < StaleWindow:
			p.stale.Add(1)
			p.logger.Debug("dropping stale snapshot", "seq", snap.Seq, "last_seq", p.lastSeq)
			return

		case snap.Seq <= p.lastSeq:
			p.restarts.Add(1)
			p.logger.Info("tracker sequence restarted", "seq", snap.Seq, "last_seq", p.lastSeq)
		}
		p.lastSeq = snap.Seq
	}

	if err := p.consumer.Update(ctx, snap.Objects); err != nil {
		p.failed.Add(1)
		p.logger.Warn("update cycle failed", "seq", snap.Seq, "error", err)
		return
	}
	p.delivered.Add(1)
}

// PumpStats contains pump statistics
type PumpStats struct {
	Source    string `json:"source"`
	Delivered uint64 `json:"delivered"`
	Stale     uint64 `json:"stale"`
	Failed    uint64 `json:"failed"`
	Restarts  uint64 `json:"restarts"`
}

// Stats returns pump statistics
func (p *Pump) Stats() PumpStats {
	return PumpStats{
		Source:    p.source.Name(),
		Delivered: p.delivered.Load(),
		Stale:     p.stale.Load(),
		Failed:    p.failed.Load(),
		Restarts:  p.restarts.Load(),
	}
}
