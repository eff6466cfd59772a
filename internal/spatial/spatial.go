// Package spatial provides the geometry shared by the cue engine and its
// output devices.
//
// Coordinates follow the head-tracking convention of the tracking feed:
// right-handed, +X right, +Y up, -Z forward.
package spatial

import "math"

// Vec3 is a point or direction in meters
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns v + o
func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

// Sub returns v - o
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

// Scale returns v * s
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

// Dot returns the dot product
func (v Vec3) Dot(o Vec3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

// Cross returns the cross product
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

// Length returns the euclidean norm
func (v Vec3) Length() float64 { return math.Sqrt(v.Dot(v)) }

// Distance returns the euclidean distance between v and o
func (v Vec3) Distance(o Vec3) float64 { return v.Sub(o).Length() }

// IsFinite reports whether every component is a finite number
func (v Vec3) IsFinite() bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}

// Quat is a unit quaternion describing an orientation
type Quat struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Identity is the orientation looking down -Z with +Y up
var Identity = Quat{W: 1}

// QuatFromAxisAngle builds a rotation of angle radians around axis
func QuatFromAxisAngle(axis Vec3, angle float64) Quat {
	l := axis.Length()
	if l == 0 {
		return Identity
	}
	axis = axis.Scale(1 / l)
	s := math.Sin(angle / 2)
	return Quat{W: math.Cos(angle / 2), X: axis.X * s, Y: axis.Y * s, Z: axis.Z * s}
}

// QuatFromYaw builds a rotation around +Y. Positive yaw turns the listener left.
func QuatFromYaw(yaw float64) Quat {
	return QuatFromAxisAngle(Vec3{Y: 1}, yaw)
}

// Normalize returns q scaled to unit length. A zero quaternion becomes Identity.
func (q Quat) Normalize() Quat {
	n := math.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
	if n == 0 || !isFinite(n) {
		return Identity
	}
	return Quat{W: q.W / n, X: q.X / n, Y: q.Y / n, Z: q.Z / n}
}

// Conjugate returns the inverse rotation of a unit quaternion
func (q Quat) Conjugate() Quat { return Quat{W: q.W, X: -q.X, Y: -q.Y, Z: -q.Z} }

// Rotate applies the rotation to v
func (q Quat) Rotate(v Vec3) Vec3 {
	u := Vec3{q.X, q.Y, q.Z}
	t := u.Cross(v).Scale(2)
	return v.Add(t.Scale(q.W)).Add(u.Cross(t))
}

// Pose is a listener position and orientation
type Pose struct {
	Position    Vec3 `json:"position"`
	Orientation Quat `json:"orientation"`
}

// DefaultPose is the origin looking forward
func DefaultPose() Pose {
	return Pose{Orientation: Identity}
}

// Local transforms a world point into the listener's frame
func (p Pose) Local(world Vec3) Vec3 {
	return p.Orientation.Normalize().Conjugate().Rotate(world.Sub(p.Position))
}

// Direction describes where a point lies relative to the listener
type Direction struct {
	Azimuth   float64 `json:"azimuth"`   // Radians, 0=front, +right, -left, ±π behind
	Elevation float64 `json:"elevation"` // Radians, +up
	Distance  float64 `json:"distance"`  // Meters
}

// DirectionTo returns the listener-relative direction to a world point
func (p Pose) DirectionTo(world Vec3) Direction {
	l := p.Local(world)
	horizontal := math.Hypot(l.X, l.Z)
	d := Direction{Distance: l.Length()}
	if d.Distance == 0 {
		return d
	}
	d.Azimuth = math.Atan2(l.X, -l.Z)
	d.Elevation = math.Atan2(l.Y, horizontal)
	return d
}

// Pan maps an azimuth to a stereo position in [-1, 1] (left to right).
// Sources behind the listener fold onto the same side as their front mirror.
func Pan(azimuth float64) float64 {
	return Clamp(math.Sin(NormalizeAngle(azimuth)), -1, 1)
}

// NormalizeAngle normalizes an angle to [-π, π]
func NormalizeAngle(angle float64) float64 {
	if !isFinite(angle) {
		return 0
	}
	for angle > math.Pi {
		angle -= 2 * math.Pi
	}
	for angle < -math.Pi {
		angle += 2 * math.Pi
	}
	return angle
}

// Clamp clamps a value to [min, max]
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
