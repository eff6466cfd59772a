package spatial

import (
	"math"
	"testing"
)

const eps = 1e-9

func TestDirectionTo_Identity(t *testing.T) {
	pose := DefaultPose()

	tests := []struct {
		name    string
		point   Vec3
		azimuth float64
	}{
		{"front", Vec3{Z: -2}, 0},
		{"right", Vec3{X: 2}, math.Pi / 2},
		{"left", Vec3{X: -2}, -math.Pi / 2},
		{"behind", Vec3{Z: 2}, math.Pi},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := pose.DirectionTo(tt.point)
			if math.Abs(d.Azimuth-tt.azimuth) > eps {
				t.Errorf("expected azimuth %f, got %f", tt.azimuth, d.Azimuth)
			}
			if math.Abs(d.Distance-2) > eps {
				t.Errorf("expected distance 2, got %f", d.Distance)
			}
		})
	}
}

func TestDirectionTo_RotatedListener(t *testing.T) {
	// Turned 90° left, now facing -X
	pose := Pose{Position: Vec3{X: 1}, Orientation: QuatFromYaw(math.Pi / 2)}

	d := pose.DirectionTo(Vec3{X: -1})
	if math.Abs(d.Azimuth) > eps {
		t.Errorf("expected object straight ahead, got azimuth %f", d.Azimuth)
	}
	if math.Abs(d.Distance-2) > eps {
		t.Errorf("expected distance 2, got %f", d.Distance)
	}

	// Original forward (-Z) is now on the listener's right
	d = pose.DirectionTo(Vec3{X: 1, Z: -1})
	if math.Abs(d.Azimuth-math.Pi/2) > eps {
		t.Errorf("expected azimuth π/2, got %f", d.Azimuth)
	}
}

func TestDirectionTo_Elevation(t *testing.T) {
	d := DefaultPose().DirectionTo(Vec3{Y: 1, Z: -1})
	if math.Abs(d.Elevation-math.Pi/4) > eps {
		t.Errorf("expected elevation π/4, got %f", d.Elevation)
	}
}

func TestDirectionTo_AtListener(t *testing.T) {
	d := DefaultPose().DirectionTo(Vec3{})
	if d.Distance != 0 || d.Azimuth != 0 || d.Elevation != 0 {
		t.Errorf("expected zero direction, got %+v", d)
	}
}

func TestQuatNormalize_Zero(t *testing.T) {
	if q := (Quat{}).Normalize(); q != Identity {
		t.Errorf("expected identity, got %+v", q)
	}
}

func TestPan(t *testing.T) {
	if p := Pan(math.Pi / 2); math.Abs(p-1) > eps {
		t.Errorf("expected full right, got %f", p)
	}
	if p := Pan(-math.Pi / 2); math.Abs(p+1) > eps {
		t.Errorf("expected full left, got %f", p)
	}
	if p := Pan(0); math.Abs(p) > eps {
		t.Errorf("expected center, got %f", p)
	}
}

func TestNormalizeAngle(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{3 * math.Pi, math.Pi},
		{-3 * math.Pi / 2, math.Pi / 2},
		{math.NaN(), 0},
	}

	for _, tt := range tests {
		if got := NormalizeAngle(tt.in); math.Abs(got-tt.want) > eps {
			t.Errorf("NormalizeAngle(%f) = %f, want %f", tt.in, got, tt.want)
		}
	}
}

func TestClamp(t *testing.T) {
	if Clamp(5, 0, 1) != 1 {
		t.Error("expected clamp to max")
	}
	if Clamp(-5, 0, 1) != 0 {
		t.Error("expected clamp to min")
	}
	if Clamp(0.5, 0, 1) != 0.5 {
		t.Error("expected value unchanged")
	}
}
