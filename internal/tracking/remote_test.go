package tracking

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teslashibe/go-cue/internal/protocol"
	"github.com/teslashibe/go-cue/internal/spatial"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func TestDefaultRemoteConfig(t *testing.T) {
	cfg := DefaultRemoteConfig()

	if cfg.ReconnectBackoff <= 0 {
		t.Error("ReconnectBackoff should be positive")
	}
	if cfg.MaxBackoff < cfg.ReconnectBackoff {
		t.Error("MaxBackoff should not be below ReconnectBackoff")
	}
}

func TestRemoteSourceReadsTracker(t *testing.T) {
	replies := make(chan *protocol.Message, 4)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("Upgrade error: %v", err)
			return
		}
		defer conn.Close()

		listener, _ := protocol.NewListenerMessage(spatial.Pose{
			Position:    spatial.Vec3{X: 1},
			Orientation: spatial.Identity,
		})
		objects, _ := protocol.NewObjectsMessage(3, []protocol.ObjectData{
			{ID: "chair-1", Label: "chair", Position: spatial.Vec3{Z: -2}},
		})

		for _, msg := range []*protocol.Message{listener, objects} {
			data, _ := msg.Bytes()
			conn.WriteMessage(websocket.TextMessage, data)
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"objects","data":{"objects":[{"label":"x"}]}}`))

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if msg, err := protocol.ParseMessage(data); err == nil {
				replies <- msg
			}
		}
	}))
	defer server.Close()

	cfg := DefaultRemoteConfig()
	cfg.URL = "ws" + strings.TrimPrefix(server.URL, "http")
	cfg.ReconnectBackoff = 50 * time.Millisecond

	poses := NewPoseStore()
	src := NewRemoteSource(cfg, poses, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan Snapshot, 4)
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, out) }()

	select {
	case snap := <-out:
		if snap.Seq != 3 || snap.Stream != 1 {
			t.Errorf("Seq = %d Stream = %d, want 3 on stream 1", snap.Seq, snap.Stream)
		}
		if len(snap.Objects) != 1 || snap.Objects[0].ID != "chair-1" {
			t.Errorf("Objects = %+v", snap.Objects)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}

	// Listener precedes objects on the same connection
	if pose, version := poses.Latest(); version != 1 || pose.Position.X != 1 {
		t.Errorf("pose = %+v version %d", pose, version)
	}

	select {
	case reply := <-replies:
		if reply.Type != protocol.TypeError {
			t.Errorf("reply type = %s, want error", reply.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("invalid snapshot was not rejected")
	}

	if !src.IsConnected() {
		t.Error("source should report connected")
	}
	stats := src.Stats()
	if stats.Snapshots != 1 || stats.Rejected != 1 || stats.Streams != 1 {
		t.Errorf("stats = %+v", stats)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRemoteSourceRetriesUnreachable(t *testing.T) {
	cfg := DefaultRemoteConfig()
	cfg.URL = "ws://127.0.0.1:1/objects"
	cfg.ReconnectBackoff = 10 * time.Millisecond
	cfg.MaxBackoff = 20 * time.Millisecond
	cfg.HandshakeTimeout = 100 * time.Millisecond

	src := NewRemoteSource(cfg, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	err := src.Run(ctx, make(chan Snapshot))
	if err == nil {
		t.Fatal("Run should return the context error")
	}
	if src.Stats().Reconnects == 0 {
		t.Error("expected reconnect attempts")
	}
	if src.IsConnected() {
		t.Error("should not be connected")
	}
}
