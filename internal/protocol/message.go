// Package protocol defines the WebSocket/HTTP message types exchanged with
// object trackers and cue clients.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/teslashibe/go-cue/internal/spatial"
)

// MessageType identifies the type of message
type MessageType string

const (
	// Tracker → daemon messages
	TypeObjects  MessageType = "objects"  // Tracked object snapshot
	TypeListener MessageType = "listener" // Listener pose

	// Daemon → client messages
	TypeVoice  MessageType = "voice"  // Voice activated/deactivated
	TypeVoices MessageType = "voices" // Active voice snapshot
	TypeStats  MessageType = "stats"  // Engine statistics
	TypeError  MessageType = "error"  // Rejected message

	// Client → daemon
	TypeControl MessageType = "control" // interrupt, resume, restart

	// Bidirectional
	TypePing MessageType = "ping"
	TypePong MessageType = "pong"
)

// Message is the base wrapper for all messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// ObjectData is one tracked object as reported by a tracker
type ObjectData struct {
	ID       string       `json:"id"`
	Label    string       `json:"label"`
	Position spatial.Vec3 `json:"position"`
	Distance float64      `json:"distance,omitempty"`
}

// ObjectsData is a full snapshot of the currently tracked objects
type ObjectsData struct {
	Seq     uint64       `json:"seq,omitempty"`
	Objects []ObjectData `json:"objects"`
}

// NewObjectsMessage creates an objects snapshot message
func NewObjectsMessage(seq uint64, objects []ObjectData) (*Message, error) {
	if objects == nil {
		objects = []ObjectData{}
	}
	return NewMessage(TypeObjects, ObjectsData{Seq: seq, Objects: objects})
}

// GetObjects extracts an objects snapshot from a message
func (m *Message) GetObjects() (*ObjectsData, error) {
	var data ObjectsData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	for i, o := range data.Objects {
		if o.ID == "" {
			return nil, fmt.Errorf("object %d has no id", i)
		}
	}
	return &data, nil
}

// ListenerData is the listener pose
type ListenerData struct {
	Position    spatial.Vec3  `json:"position"`
	Orientation *spatial.Quat `json:"orientation,omitempty"`
}

// Pose converts the message into a pose. A missing orientation is forward.
func (l ListenerData) Pose() spatial.Pose {
	pose := spatial.Pose{Position: l.Position, Orientation: spatial.Identity}
	if l.Orientation != nil {
		pose.Orientation = l.Orientation.Normalize()
	}
	return pose
}

// NewListenerMessage creates a listener pose message
func NewListenerMessage(pose spatial.Pose) (*Message, error) {
	q := pose.Orientation
	return NewMessage(TypeListener, ListenerData{Position: pose.Position, Orientation: &q})
}

// GetListener extracts a listener pose from a message
func (m *Message) GetListener() (*ListenerData, error) {
	var data ListenerData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Control actions
const (
	ActionInterrupt = "interrupt"
	ActionResume    = "resume"
	ActionRestart   = "restart"
)

// ControlCommand asks the engine to change device state
type ControlCommand struct {
	Action string `json:"action"`
}

// GetControl extracts a control command from a message
func (m *Message) GetControl() (*ControlCommand, error) {
	var data ControlCommand
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	switch data.Action {
	case ActionInterrupt, ActionResume, ActionRestart:
		return &data, nil
	default:
		return nil, fmt.Errorf("unknown control action %q", data.Action)
	}
}

// ErrorData reports a rejected message
type ErrorData struct {
	Error string `json:"error"`
}

// NewErrorMessage creates an error message
func NewErrorMessage(err error) *Message {
	msg, _ := NewMessage(TypeError, ErrorData{Error: err.Error()})
	return msg
}
