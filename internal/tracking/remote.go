package tracking

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teslashibe/go-cue/internal/protocol"
)

// RemoteConfig configures a RemoteSource
type RemoteConfig struct {
	URL              string        // Tracker WebSocket URL (e.g., "ws://tracker.local:8080/objects")
	ReconnectBackoff time.Duration // Initial reconnect delay
	MaxBackoff       time.Duration // Maximum reconnect delay
	PingInterval     time.Duration // Ping interval for keepalive
	WriteTimeout     time.Duration
	HandshakeTimeout time.Duration
}

// DefaultRemoteConfig returns sensible defaults
func DefaultRemoteConfig() RemoteConfig {
	return RemoteConfig{
		URL:              "ws://localhost:8080/objects",
		ReconnectBackoff: 1 * time.Second,
		MaxBackoff:       30 * time.Second,
		PingInterval:     10 * time.Second,
		WriteTimeout:     5 * time.Second,
		HandshakeTimeout: 10 * time.Second,
	}
}

// RemoteSource dials an external tracker and reads object snapshots and
// listener poses from it, reconnecting with exponential backoff.
type RemoteSource struct {
	cfg    RemoteConfig
	poses  *PoseStore
	logger *slog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool

	messagesReceived atomic.Uint64
	snapshots        atomic.Uint64
	rejected         atomic.Uint64
	reconnects       atomic.Uint64
	streams          atomic.Uint64
}

// NewRemoteSource creates a remote source. Listener messages are written
// to poses when it is non-nil.
func NewRemoteSource(cfg RemoteConfig, poses *PoseStore, logger *slog.Logger) *RemoteSource {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReconnectBackoff <= 0 {
		cfg.ReconnectBackoff = time.Second
	}
	if cfg.MaxBackoff < cfg.ReconnectBackoff {
		cfg.MaxBackoff = cfg.ReconnectBackoff
	}

	return &RemoteSource{
		cfg:    cfg,
		poses:  poses,
		logger: logger,
	}
}

// Name returns the source type name
func (r *RemoteSource) Name() string { return "remote" }

// Run manages the connection with auto-reconnect until ctx is done
func (r *RemoteSource) Run(ctx context.Context, out chan<- Snapshot) error {
	backoff := r.cfg.ReconnectBackoff

	for {
		select {
		case <-ctx.Done():
			r.closeConnection()
			return ctx.Err()
		default:
		}

		conn, err := r.connect(ctx)
		if err != nil {
			r.logger.Warn("tracker connection failed",
				"error", err,
				"retry_in", backoff,
			)

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}

			// Exponential backoff
			backoff *= 2
			if backoff > r.cfg.MaxBackoff {
				backoff = r.cfg.MaxBackoff
			}
			r.reconnects.Add(1)
			continue
		}

		// Reset backoff on successful connection
		backoff = r.cfg.ReconnectBackoff

		// Each connection starts a new stream
		r.session(ctx, conn, r.streams.Add(1), out)
	}
}

func (r *RemoteSource) connect(ctx context.Context) (*websocket.Conn, error) {
	r.logger.Info("connecting to tracker", "url", r.cfg.URL)

	dialer := websocket.Dialer{
		HandshakeTimeout: r.cfg.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, r.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	r.mu.Lock()
	r.conn = conn
	r.connected = true
	r.mu.Unlock()

	r.logger.Info("connected to tracker")
	return conn, nil
}

// session reads until the connection drops or ctx is done
func (r *RemoteSource) session(ctx context.Context, conn *websocket.Conn, stream uint64, out chan<- Snapshot) {
	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Unblock ReadMessage on shutdown
	go func() {
		<-sessCtx.Done()
		r.closeConn(conn)
	}()

	if r.cfg.PingInterval > 0 {
		go r.pingLoop(sessCtx, conn)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if sessCtx.Err() == nil {
				r.logger.Warn("tracker read error", "error", err)
			}
			return
		}

		r.messagesReceived.Add(1)
		snap, ok := r.handleMessage(conn, data)
		if !ok {
			continue
		}
		snap.Stream = stream

		select {
		case out <- snap:
			r.snapshots.Add(1)
		case <-sessCtx.Done():
			return
		}
	}
}

// handleMessage processes one tracker message, returning a snapshot when it carries one
func (r *RemoteSource) handleMessage(conn *websocket.Conn, data []byte) (Snapshot, bool) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		r.reject(conn, err)
		return Snapshot{}, false
	}

	switch msg.Type {
	case protocol.TypeObjects:
		objects, err := msg.GetObjects()
		if err != nil {
			r.reject(conn, err)
			return Snapshot{}, false
		}
		return FromProtocol(objects), true

	case protocol.TypeListener:
		listener, err := msg.GetListener()
		if err != nil {
			r.reject(conn, err)
			return Snapshot{}, false
		}
		if r.poses != nil && !r.poses.Set(listener.Pose()) {
			r.reject(conn, fmt.Errorf("listener position is not finite"))
		}

	case protocol.TypePing:
		r.write(conn, &protocol.Message{Type: protocol.TypePong, Timestamp: time.Now().UnixMilli()})

	case protocol.TypePong:

	default:
		r.logger.Debug("ignoring tracker message", "type", msg.Type)
	}

	return Snapshot{}, false
}

func (r *RemoteSource) reject(conn *websocket.Conn, err error) {
	r.rejected.Add(1)
	r.logger.Warn("rejected tracker message", "error", err)
	r.write(conn, protocol.NewErrorMessage(err))
}

func (r *RemoteSource) write(conn *websocket.Conn, msg *protocol.Message) {
	data, err := msg.Bytes()
	if err != nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn != conn {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(r.cfg.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		r.logger.Debug("tracker write failed", "error", err)
	}
}

// pingLoop sends periodic pings
func (r *RemoteSource) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(r.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.mu.Lock()
			current := r.conn
			r.mu.Unlock()
			if current != conn {
				return
			}

			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(r.cfg.WriteTimeout)); err != nil {
				r.logger.Debug("ping failed", "error", err)
				return
			}
		}
	}
}

// closeConn closes conn if it is still the current connection
func (r *RemoteSource) closeConn(conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn.Close()
	if r.conn == conn {
		r.conn = nil
		r.connected = false
	}
}

func (r *RemoteSource) closeConnection() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.connected = false
	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}
}

// IsConnected returns connection status
func (r *RemoteSource) IsConnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected
}

// RemoteStats contains remote source statistics
type RemoteStats struct {
	Connected        bool   `json:"connected"`
	MessagesReceived uint64 `json:"messages_received"`
	Snapshots        uint64 `json:"snapshots"`
	Rejected         uint64 `json:"rejected"`
	Reconnects       uint64 `json:"reconnects"`
	Streams          uint64 `json:"streams"`
}

// Stats returns remote source statistics
func (r *RemoteSource) Stats() RemoteStats {
	return RemoteStats{
		Connected:        r.IsConnected(),
		MessagesReceived: r.messagesReceived.Load(),
		Snapshots:        r.snapshots.Load(),
		Rejected:         r.rejected.Load(),
		Reconnects:       r.reconnects.Load(),
		Streams:          r.streams.Load(),
	}
}
