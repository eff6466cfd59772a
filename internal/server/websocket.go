package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-cue/internal/protocol"
	"github.com/teslashibe/go-cue/internal/tracking"
	"github.com/teslashibe/go-cue/internal/voice"
)

// snapshotInterval is how often the full voice list is pushed to clients
const snapshotInterval = time.Second

// WSHub manages WebSocket connections. Clients may push object snapshots,
// listener poses and control commands; every client receives voice
// lifecycle events and a periodic voice snapshot.
type WSHub struct {
	deps   Deps
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[*websocket.Conn]*sync.Mutex // per-connection write lock

	cancel context.CancelFunc
	done   chan struct{}
}

// NewWSHub creates a new WebSocket hub
func NewWSHub(deps Deps, logger *slog.Logger) *WSHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHub{
		deps:    deps,
		logger:  logger,
		clients: make(map[*websocket.Conn]*sync.Mutex),
		done:    make(chan struct{}),
	}
}

// Run starts the broadcast loop
func (h *WSHub) Run(ctx context.Context) {
	ctx, h.cancel = context.WithCancel(ctx)
	defer close(h.done)

	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()

	var events chan voice.Event
	if h.deps.Engine != nil {
		sub := h.deps.Engine.Subscribe()
		defer h.deps.Engine.Unsubscribe(sub)
		events = sub
	}

	h.logger.Info("websocket hub started")

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("websocket hub stopped")
			return

		case ev, ok := <-events:
			if !ok {
				// Engine closed
				events = nil
				continue
			}
			msg, err := protocol.NewMessage(protocol.TypeVoice, ev)
			if err != nil {
				h.logger.Warn("websocket marshal error", "error", err)
				continue
			}
			h.broadcast(msg)

		case <-ticker.C:
			if h.deps.Engine == nil || h.ClientCount() == 0 {
				continue
			}
			msg, err := protocol.NewMessage(protocol.TypeVoices, h.deps.Engine.Voices())
			if err != nil {
				continue
			}
			h.broadcast(msg)
		}
	}
}

func (h *WSHub) broadcast(msg *protocol.Message) {
	data, err := msg.Bytes()
	if err != nil {
		h.logger.Warn("websocket marshal error", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for conn, wmu := range h.clients {
		wmu.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		wmu.Unlock()
		if err != nil {
			// Will be cleaned up when connection closes
			h.logger.Debug("websocket write error", "error", err)
		}
	}
}

// UpgradeHandler returns the WebSocket upgrade handler
func (h *WSHub) UpgradeHandler() fiber.Handler {
	// Middleware to check if request is a WebSocket upgrade
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return websocket.New(h.handleConnection)(c)
		}

		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{
			"error":   "WebSocket upgrade required",
			"message": "Connect via WebSocket to stream objects and receive voice events",
		})
	}
}

func (h *WSHub) handleConnection(c *websocket.Conn) {
	wmu := &sync.Mutex{}

	h.mu.Lock()
	h.clients[c] = wmu
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("websocket client connected",
		"remote_addr", c.RemoteAddr().String(),
		"clients", clientCount,
	)

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		clientCount := len(h.clients)
		h.mu.Unlock()

		h.logger.Info("websocket client disconnected",
			"remote_addr", c.RemoteAddr().String(),
			"clients", clientCount,
		)
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			// Connection closed
			break
		}

		if reply := h.handleCommand(data); reply != nil {
			h.reply(c, wmu, reply)
		}
	}
}

func (h *WSHub) reply(c *websocket.Conn, wmu *sync.Mutex, msg *protocol.Message) {
	data, err := msg.Bytes()
	if err != nil {
		return
	}

	wmu.Lock()
	defer wmu.Unlock()
	if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
		h.logger.Debug("websocket write error", "error", err)
	}
}

// handleCommand applies one client message and returns the reply, if any
func (h *WSHub) handleCommand(data []byte) *protocol.Message {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		return protocol.NewErrorMessage(err)
	}

	switch msg.Type {
	case protocol.TypeObjects:
		if h.deps.Feed == nil {
			return protocol.NewErrorMessage(errors.New("objects are not accepted with the configured tracking source"))
		}
		objects, err := msg.GetObjects()
		if err != nil {
			return protocol.NewErrorMessage(err)
		}
		h.deps.Feed.Publish(tracking.FromProtocol(objects))
		return nil

	case protocol.TypeListener:
		if h.deps.Poses == nil {
			return protocol.NewErrorMessage(errors.New("listener pose is not accepted"))
		}
		listener, err := msg.GetListener()
		if err != nil {
			return protocol.NewErrorMessage(err)
		}
		if !h.deps.Poses.Set(listener.Pose()) {
			return protocol.NewErrorMessage(errors.New("listener position must be finite"))
		}
		return nil

	case protocol.TypeControl:
		cmd, err := msg.GetControl()
		if err != nil {
			return protocol.NewErrorMessage(err)
		}
		if h.deps.Engine == nil {
			return protocol.NewErrorMessage(errors.New("engine not available"))
		}
		if err := runControl(h.deps.Engine, cmd.Action); err != nil {
			return protocol.NewErrorMessage(fmt.Errorf("%s: %w", cmd.Action, err))
		}
		return h.statsMessage()

	case protocol.TypeStats:
		return h.statsMessage()

	case protocol.TypeVoices:
		if h.deps.Engine == nil {
			return protocol.NewErrorMessage(errors.New("engine not available"))
		}
		reply, _ := protocol.NewMessage(protocol.TypeVoices, h.deps.Engine.Voices())
		return reply

	case protocol.TypePing:
		return &protocol.Message{Type: protocol.TypePong, Timestamp: time.Now().UnixMilli()}

	default:
		return protocol.NewErrorMessage(fmt.Errorf("unsupported message type %q", msg.Type))
	}
}

func (h *WSHub) statsMessage() *protocol.Message {
	if h.deps.Engine == nil {
		return protocol.NewErrorMessage(errors.New("engine not available"))
	}
	reply, _ := protocol.NewMessage(protocol.TypeStats, h.deps.Engine.Stats())
	return reply
}

// ClientCount returns the number of connected WebSocket clients
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close shuts down the WebSocket hub
func (h *WSHub) Close() {
	if h.cancel != nil {
		h.cancel()
		<-h.done
	}

	// Close all client connections
	h.mu.Lock()
	for conn := range h.clients {
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]*sync.Mutex)
	h.mu.Unlock()
}
