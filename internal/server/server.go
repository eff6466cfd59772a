// Package server provides the HTTP and WebSocket surface for go-cue
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/teslashibe/go-cue/internal/announce"
	"github.com/teslashibe/go-cue/internal/audio"
	"github.com/teslashibe/go-cue/internal/config"
	"github.com/teslashibe/go-cue/internal/engine"
	"github.com/teslashibe/go-cue/internal/health"
	"github.com/teslashibe/go-cue/internal/protocol"
	"github.com/teslashibe/go-cue/internal/tracking"
)

// Deps are the components the server exposes
type Deps struct {
	Engine   *engine.Engine
	Feed     *tracking.Feed      // nil when objects come from another source
	Poses    *tracking.PoseStore // nil when the listener is not driven externally
	Health   *health.Checker
	Settings *config.Config // Served at /api/config

	// Optional components reported under /api/stats and /metrics
	Pump      *tracking.Pump
	Remote    *tracking.RemoteSource
	Announcer *announce.Announcer
	Mixer     *audio.Mixer
}

// Server is the HTTP server for go-cue
type Server struct {
	app       *fiber.App
	cfg       config.ServerConfig
	deps      Deps
	logger    *slog.Logger
	wsHub     *WSHub
	startTime time.Time
	version   string
}

// New creates a new HTTP server
func New(cfg config.ServerConfig, deps Deps, logger *slog.Logger, version string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Health == nil {
		deps.Health = health.NewChecker(version)
	}

	app := fiber.New(fiber.Config{
		AppName:               "go-cue",
		DisableStartupMessage: true,
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(LoggingMiddleware(logger))

	s := &Server{
		app:       app,
		cfg:       cfg,
		deps:      deps,
		logger:    logger,
		wsHub:     NewWSHub(deps, logger),
		startTime: time.Now(),
		version:   version,
	}

	// Register routes
	s.registerRoutes()

	return s
}

// registerRoutes sets up all API routes
func (s *Server) registerRoutes() {
	// Health check
	s.app.Get("/health", s.healthHandler)

	// Metrics endpoint
	s.app.Get("/metrics", s.metricsHandler)

	api := s.app.Group("/api")

	// Tracker ingest
	api.Post("/objects", s.objectsHandler)
	api.Post("/listener", s.listenerHandler)

	// Voices and device control
	api.Get("/voices", s.voicesHandler)
	audio := api.Group("/audio")
	audio.Post("/:action", s.controlHandler)

	// Bidirectional stream: ingest in, voice events out
	api.Get("/stream", s.wsHub.UpgradeHandler())

	// Config endpoint
	api.Get("/config", s.configHandler)

	// Stats endpoint
	api.Get("/stats", s.statsHandler)
}

// healthHandler returns service health
func (s *Server) healthHandler(c *fiber.Ctx) error {
	status := s.deps.Health.GetStatus()
	if status.Status == health.StatusUnhealthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(status)
	}
	return c.JSON(status)
}

// objectsHandler accepts a full object snapshot from a tracker
func (s *Server) objectsHandler(c *fiber.Ctx) error {
	if s.deps.Feed == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "objects are not accepted over HTTP with the configured tracking source",
		})
	}

	msg := protocol.Message{Type: protocol.TypeObjects, Data: c.Body()}
	data, err := msg.GetObjects()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("invalid snapshot: %v", err),
		})
	}

	s.deps.Feed.Publish(tracking.FromProtocol(data))

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"accepted": len(data.Objects),
		"seq":      data.Seq,
	})
}

// listenerHandler accepts a listener pose
func (s *Server) listenerHandler(c *fiber.Ctx) error {
	if s.deps.Poses == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "listener pose is not accepted over HTTP",
		})
	}

	msg := protocol.Message{Type: protocol.TypeListener, Data: c.Body()}
	data, err := msg.GetListener()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("invalid pose: %v", err),
		})
	}

	if !s.deps.Poses.Set(data.Pose()) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "listener position must be finite",
		})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// voicesHandler returns the active voices
func (s *Server) voicesHandler(c *fiber.Ctx) error {
	if s.deps.Engine == nil {
		return c.Status(503).JSON(fiber.Map{
			"error": "engine not available",
		})
	}

	return c.JSON(fiber.Map{
		"voices": s.deps.Engine.Voices(),
	})
}

// controlHandler interrupts, resumes or restarts audio
func (s *Server) controlHandler(c *fiber.Ctx) error {
	if s.deps.Engine == nil {
		return c.Status(503).JSON(fiber.Map{
			"error": "engine not available",
		})
	}

	action := c.Params("action")
	if err := runControl(s.deps.Engine, action); err != nil {
		status := fiber.StatusServiceUnavailable
		if errors.Is(err, errUnknownAction) {
			status = fiber.StatusNotFound
		}
		return c.Status(status).JSON(fiber.Map{
			"action": action,
			"error":  err.Error(),
		})
	}

	s.logger.Info("audio control", "action", action)

	return c.JSON(fiber.Map{
		"action":         action,
		"interrupted":    s.deps.Engine.Interrupted(),
		"device_running": s.deps.Engine.Stats().DeviceRunning,
	})
}

var errUnknownAction = errors.New("unknown action")

func runControl(e *engine.Engine, action string) error {
	switch strings.ToLower(action) {
	case protocol.ActionInterrupt:
		return e.Interrupt()
	case protocol.ActionResume:
		return e.Resume()
	case protocol.ActionRestart:
		return e.Restart()
	default:
		return fmt.Errorf("%w %q", errUnknownAction, action)
	}
}

// configHandler returns current configuration
func (s *Server) configHandler(c *fiber.Ctx) error {
	if s.deps.Settings != nil {
		return c.JSON(s.deps.Settings)
	}

	return c.JSON(fiber.Map{
		"server": fiber.Map{
			"port":             s.cfg.Port,
			"read_timeout_ms":  s.cfg.ReadTimeout.Milliseconds(),
			"write_timeout_ms": s.cfg.WriteTimeout.Milliseconds(),
		},
	})
}

// statsHandler returns engine and ingest statistics
func (s *Server) statsHandler(c *fiber.Ctx) error {
	if s.deps.Engine == nil {
		return c.Status(503).JSON(fiber.Map{
			"error": "engine not available",
		})
	}

	stats := fiber.Map{
		"engine":            s.deps.Engine.Stats(),
		"websocket_clients": s.wsHub.ClientCount(),
		"uptime_seconds":    int64(time.Since(s.startTime).Seconds()),
	}
	if s.deps.Feed != nil {
		stats["feed"] = s.deps.Feed.Stats()
	}
	if s.deps.Pump != nil {
		stats["pump"] = s.deps.Pump.Stats()
	}
	if s.deps.Remote != nil {
		stats["remote"] = s.deps.Remote.Stats()
	}
	if s.deps.Announcer != nil {
		stats["announcer"] = s.deps.Announcer.Stats()
	}
	if s.deps.Mixer != nil {
		stats["mixer"] = s.deps.Mixer.Stats()
	}
	if s.deps.Poses != nil {
		_, version := s.deps.Poses.Latest()
		listener := fiber.Map{"version": version}
		if updated := s.deps.Poses.UpdatedAt(); !updated.IsZero() {
			listener["age_ms"] = time.Since(updated).Milliseconds()
		}
		stats["listener"] = listener
	}

	return c.JSON(stats)
}

// metricsHandler returns Prometheus-format metrics
func (s *Server) metricsHandler(c *fiber.Ctx) error {
	if s.deps.Engine == nil {
		return c.Status(503).SendString("# no engine available\n")
	}

	stats := s.deps.Engine.Stats()

	metrics := fmt.Sprintf(`# HELP go_cue_voices Active voices
# TYPE go_cue_voices gauge
go_cue_voices %d

# HELP go_cue_update_cycles_total Object update cycles processed
# TYPE go_cue_update_cycles_total counter
go_cue_update_cycles_total %d

# HELP go_cue_voices_created_total Voices created
# TYPE go_cue_voices_created_total counter
go_cue_voices_created_total %d

# HELP go_cue_voices_destroyed_total Voices destroyed
# TYPE go_cue_voices_destroyed_total counter
go_cue_voices_destroyed_total %d

# HELP go_cue_beeps_played_total Beeps played
# TYPE go_cue_beeps_played_total counter
go_cue_beeps_played_total %d

# HELP go_cue_beeps_skipped_total Beeps skipped (interrupted, detached or failed)
# TYPE go_cue_beeps_skipped_total counter
go_cue_beeps_skipped_total %d

# HELP go_cue_device_failures_total Audio device start failures
# TYPE go_cue_device_failures_total counter
go_cue_device_failures_total %d

# HELP go_cue_device_running Audio device state (1=running, 0=stopped)
# TYPE go_cue_device_running gauge
go_cue_device_running %d

# HELP go_cue_interrupted Audio interruption state (1=interrupted, 0=normal)
# TYPE go_cue_interrupted gauge
go_cue_interrupted %d

# HELP go_cue_listener_updates_total Listener pose updates applied
# TYPE go_cue_listener_updates_total counter
go_cue_listener_updates_total %d

# HELP go_cue_uptime_seconds Server uptime in seconds
# TYPE go_cue_uptime_seconds gauge
go_cue_uptime_seconds %d

# HELP go_cue_websocket_clients Current WebSocket client count
# TYPE go_cue_websocket_clients gauge
go_cue_websocket_clients %d
`,
		stats.Voices,
		stats.Cycles,
		stats.VoicesCreated,
		stats.VoicesDestroyed,
		stats.BeepsPlayed,
		stats.BeepsSkipped,
		stats.DeviceFailures,
		boolToInt(stats.DeviceRunning),
		boolToInt(stats.Interrupted),
		stats.ListenerUpdates,
		int64(time.Since(s.startTime).Seconds()),
		s.wsHub.ClientCount(),
	)

	var b strings.Builder
	b.WriteString(metrics)

	if p := s.deps.Pump; p != nil {
		ps := p.Stats()
		writeMetric(&b, "go_cue_snapshots_delivered_total", "counter", "Object snapshots delivered to the engine", ps.Delivered)
		writeMetric(&b, "go_cue_snapshots_stale_total", "counter", "Object snapshots dropped as stale", ps.Stale)
		writeMetric(&b, "go_cue_snapshots_failed_total", "counter", "Object snapshots the engine rejected", ps.Failed)
		writeMetric(&b, "go_cue_sequence_restarts_total", "counter", "Tracker sequence restarts detected", ps.Restarts)
	}
	if r := s.deps.Remote; r != nil {
		rs := r.Stats()
		writeMetric(&b, "go_cue_tracker_connected", "gauge", "Remote tracker connection (1=connected, 0=disconnected)", boolToInt(rs.Connected))
		writeMetric(&b, "go_cue_tracker_reconnects_total", "counter", "Remote tracker reconnect attempts", rs.Reconnects)
		writeMetric(&b, "go_cue_tracker_rejected_total", "counter", "Remote tracker messages rejected", rs.Rejected)
	}
	if a := s.deps.Announcer; a != nil {
		as := a.Stats()
		writeMetric(&b, "go_cue_announcements_total", "counter", "Announcements spoken", as.Spoken)
		writeMetric(&b, "go_cue_announcements_suppressed_total", "counter", "Announcements suppressed by cooldown", as.Suppressed)
		writeMetric(&b, "go_cue_announcements_failed_total", "counter", "Announcements that failed to speak", as.Failed)
	}
	if m := s.deps.Mixer; m != nil {
		ms := m.Stats()
		writeMetric(&b, "go_cue_mixer_outputs", "gauge", "Outputs attached to the mixer", ms.Outputs)
		writeMetric(&b, "go_cue_mixer_frames_total", "counter", "Frames mixed", ms.FramesMixed)
		writeMetric(&b, "go_cue_mixer_clipped_samples_total", "counter", "Samples clipped by the limiter", ms.ClippedSamples)
		if ms.SinkStats != nil {
			writeMetric(&b, "go_cue_sink_errors_total", "counter", "Audio sink playback errors", ms.SinkStats.Errors)
		}
	}

	c.Set("Content-Type", "text/plain; charset=utf-8")
	return c.SendString(b.String())
}

func writeMetric(b *strings.Builder, name, kind, help string, value interface{}) {
	fmt.Fprintf(b, "\n# HELP %s %s\n# TYPE %s %s\n%s %v\n", name, help, name, kind, name, value)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server",
		"port", s.cfg.Port,
	)

	return s.app.Listen(fmt.Sprintf(":%d", s.cfg.Port))
}

// WSHub returns the WebSocket hub
func (s *Server) WSHub() *WSHub {
	return s.wsHub
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	// Close WebSocket hub
	s.wsHub.Close()

	// Shutdown Fiber with timeout from context
	done := make(chan error, 1)
	go func() {
		done <- s.app.Shutdown()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
