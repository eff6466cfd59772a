package tracking

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-cue/internal/spatial"
)

// PoseStore holds the latest reported listener pose
type PoseStore struct {
	mu        sync.RWMutex
	pose      spatial.Pose
	version   uint64
	updatedAt time.Time
}

// NewPoseStore creates a store holding the default pose
func NewPoseStore() *PoseStore {
	return &PoseStore{pose: spatial.DefaultPose()}
}

// Set records a new pose. Non-finite positions are ignored.
func (s *PoseStore) Set(pose spatial.Pose) bool {
	if !pose.Position.IsFinite() {
		return false
	}
	pose.Orientation = pose.Orientation.Normalize()

	s.mu.Lock()
	s.pose = pose
	s.version++
	s.updatedAt = time.Now()
	s.mu.Unlock()
	return true
}

// Latest returns the newest pose and its version (0 = never set)
func (s *PoseStore) Latest() (spatial.Pose, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pose, s.version
}

// UpdatedAt returns when the pose was last set
func (s *PoseStore) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// ListenerSink receives listener poses
type ListenerSink interface {
	UpdateListener(pose spatial.Pose)
}

// PoseDriverConfig configures the listener refresh loop
type PoseDriverConfig struct {
	RefreshHz float64 // Listener update rate
	Smoothing float64 // EMA alpha for position, 1 = off
}

// DefaultPoseDriverConfig returns sensible defaults
func DefaultPoseDriverConfig() PoseDriverConfig {
	return PoseDriverConfig{
		RefreshHz: 50,
		Smoothing: 1,
	}
}

// PoseDriver forwards the latest listener pose to the engine at a fixed
// rate, independent of object update cycles.
type PoseDriver struct {
	store  *PoseStore
	sink   ListenerSink
	cfg    PoseDriverConfig
	logger *slog.Logger

	mu          sync.Mutex
	lastVersion uint64
	smoothed    spatial.Vec3
	primed      bool
	updates     int64

	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoseDriver creates a driver
func NewPoseDriver(store *PoseStore, sink ListenerSink, cfg PoseDriverConfig, logger *slog.Logger) *PoseDriver {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RefreshHz <= 0 {
		cfg.RefreshHz = DefaultPoseDriverConfig().RefreshHz
	}
	if cfg.Smoothing <= 0 || cfg.Smoothing > 1 {
		cfg.Smoothing = 1
	}

	return &PoseDriver{
		store:  store,
		sink:   sink,
		cfg:    cfg,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Run starts the refresh loop (blocking, use goroutine)
func (d *PoseDriver) Run(ctx context.Context) error {
	d.mu.Lock()
	ctx, d.cancel = context.WithCancel(ctx)
	d.mu.Unlock()
	defer close(d.done)

	interval := time.Duration(float64(time.Second) / d.cfg.RefreshHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.logger.Info("listener driver started", "refresh_hz", d.cfg.RefreshHz)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("listener driver stopped", "updates", d.Updates())
			return ctx.Err()
		case <-ticker.C:
			d.tick()
		}
	}
}

func (d *PoseDriver) tick() {
	pose, version := d.store.Latest()

	d.mu.Lock()
	if version == 0 || (version == d.lastVersion && d.settled(pose.Position)) {
		d.mu.Unlock()
		return
	}
	d.lastVersion = version

	if !d.primed {
		d.smoothed = pose.Position
		d.primed = true
	} else {
		a := d.cfg.Smoothing
		d.smoothed = pose.Position.Scale(a).Add(d.smoothed.Scale(1 - a))
	}
	pose.Position = d.smoothed
	d.updates++
	d.mu.Unlock()

	d.sink.UpdateListener(pose)
}

// settled reports whether smoothing has converged on target
func (d *PoseDriver) settled(target spatial.Vec3) bool {
	return d.smoothed.Distance(target) < 1e-3
}

// Updates returns how many poses were forwarded
func (d *PoseDriver) Updates() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.updates
}

// Stop stops the driver gracefully
func (d *PoseDriver) Stop() {
	d.mu.Lock()
	cancel := d.cancel
	d.mu.Unlock()

	if cancel != nil {
		cancel()
		<-d.done
	}
}
