package protocol

import (
	"testing"

	"github.com/teslashibe/go-cue/internal/spatial"
)

func TestNewMessage(t *testing.T) {
	msg, err := NewMessage(TypePing, nil)
	if err != nil {
		t.Fatalf("NewMessage() error = %v", err)
	}

	if msg.Type != TypePing {
		t.Errorf("Type = %v, want %v", msg.Type, TypePing)
	}

	if msg.Timestamp == 0 {
		t.Error("Timestamp should be set")
	}
}

func TestObjectsMessage(t *testing.T) {
	msg, err := NewObjectsMessage(7, []ObjectData{
		{ID: "a", Label: "chair", Position: spatial.Vec3{X: 1, Z: -2}, Distance: 2.2},
		{ID: "b", Label: "door", Position: spatial.Vec3{Z: -4}},
	})
	if err != nil {
		t.Fatalf("NewObjectsMessage() error = %v", err)
	}

	bytes, err := msg.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}

	parsed, err := ParseMessage(bytes)
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}

	data, err := parsed.GetObjects()
	if err != nil {
		t.Fatalf("GetObjects() error = %v", err)
	}

	if data.Seq != 7 || len(data.Objects) != 2 {
		t.Fatalf("unexpected snapshot: %+v", data)
	}
	if data.Objects[0].Position.Z != -2 {
		t.Errorf("Position.Z = %v, want -2", data.Objects[0].Position.Z)
	}
}

func TestObjectsMessage_Empty(t *testing.T) {
	msg, err := NewObjectsMessage(1, nil)
	if err != nil {
		t.Fatalf("NewObjectsMessage() error = %v", err)
	}
	if string(msg.Data) != `{"seq":1,"objects":[]}` {
		t.Errorf("unexpected data: %s", msg.Data)
	}
}

func TestGetObjects_MissingID(t *testing.T) {
	msg, err := ParseMessage([]byte(`{"type":"objects","data":{"objects":[{"label":"chair"}]}}`))
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}
	if _, err := msg.GetObjects(); err == nil {
		t.Error("expected error for object without id")
	}
}

func TestListenerData_Pose(t *testing.T) {
	msg, err := ParseMessage([]byte(`{"type":"listener","data":{"position":{"x":1,"y":1.6,"z":0}}}`))
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}

	data, err := msg.GetListener()
	if err != nil {
		t.Fatalf("GetListener() error = %v", err)
	}

	pose := data.Pose()
	if pose.Orientation != spatial.Identity {
		t.Errorf("missing orientation should be identity, got %+v", pose.Orientation)
	}
	if pose.Position.Y != 1.6 {
		t.Errorf("Position.Y = %v, want 1.6", pose.Position.Y)
	}
}

func TestListenerData_NormalizesOrientation(t *testing.T) {
	q := spatial.Quat{W: 2}
	pose := ListenerData{Orientation: &q}.Pose()
	if pose.Orientation != spatial.Identity {
		t.Errorf("expected normalized identity, got %+v", pose.Orientation)
	}
}

func TestGetControl(t *testing.T) {
	msg, _ := NewMessage(TypeControl, ControlCommand{Action: ActionRestart})
	cmd, err := msg.GetControl()
	if err != nil {
		t.Fatalf("GetControl() error = %v", err)
	}
	if cmd.Action != ActionRestart {
		t.Errorf("Action = %v, want %v", cmd.Action, ActionRestart)
	}

	bad, _ := NewMessage(TypeControl, ControlCommand{Action: "reboot"})
	if _, err := bad.GetControl(); err == nil {
		t.Error("expected error for unknown action")
	}
}

func TestParseMessage_Invalid(t *testing.T) {
	if _, err := ParseMessage([]byte("not json")); err == nil {
		t.Error("expected error for invalid JSON")
	}
	if _, err := ParseMessage([]byte(`{"data":{}}`)); err == nil {
		t.Error("expected error for missing type")
	}
}
