package math

import (
	"math"
	"testing"
)

func TestQuatIdentity(t *testing.T) {
	q := QuatIdentity()
	if q.X != 0 || q.Y != 0 || q.Z != 0 || q.W != 1 {
		t.Errorf("Identity quaternion should be (0,0,0,1), got (%v,%v,%v,%v)", q.X, q.Y, q.Z, q.W)
	}
}

func TestQuatNormalize(t *testing.T) {
	q := Quat{X: 1, Y: 2, Z: 3, W: 4}
	n := q.Normalize()

	length := float32(math.Sqrt(float64(n.X*n.X + n.Y*n.Y + n.Z*n.Z + n.W*n.W)))
	if math.Abs(float64(length-1.0)) > 0.0001 {
		t.Errorf("Normalized quaternion length should be 1, got %v", length)
	}
}

func TestQuatNormalizeDegenerate(t *testing.T) {
	if got := (Quat{}).Normalize(); got != QuatIdentity() {
		t.Errorf("zero quaternion normalized to %v, want identity", got)
	}
	nan := float32(math.NaN())
	if got := (Quat{X: nan, W: 1}).Normalize(); got != QuatIdentity() {
		t.Errorf("NaN quaternion normalized to %v, want identity", got)
	}
}

func TestQuatFromMat3RoundTrip(t *testing.T) {
	axes := []Vec3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, Vec3{1, 1, 1}.Normalize()}
	angles := []float32{0.3, 1.5, 3.0, -2.2}
	for _, axis := range axes {
		for _, angle := range angles {
			q := QuatFromAxisAngle(axis, angle)
			got := QuatFromMat3(q.ToMat3())
			// q and -q encode the same rotation.
			if got.Dot(q) < 0 {
				got = got.Neg()
			}
			if math.Abs(float64(got.Dot(q)-1)) > 1e-4 {
				t.Errorf("axis %v angle %v: got %v, want %v", axis, angle, got, q)
			}
		}
	}
}

func TestQuatRotate(t *testing.T) {
	q := QuatFromAxisAngle(Vec3{0, 0, 1}, float32(math.Pi/2))
	got := q.Rotate(Vec3{1, 0, 0})
	if abs(got.X) > 1e-5 || abs(got.Y-1) > 1e-5 || abs(got.Z) > 1e-5 {
		t.Errorf("Rotate = %v, want (0, 1, 0)", got)
	}
	back := q.Conjugate().Rotate(got)
	if abs(back.X-1) > 1e-5 || abs(back.Y) > 1e-5 {
		t.Errorf("Conjugate rotate = %v, want (1, 0, 0)", back)
	}
}

func TestQuatToMat4(t *testing.T) {
	// Identity quaternion should produce identity matrix
	q := QuatIdentity()
	m := q.ToMat4()

	identity := Identity()
	for i := 0; i < 16; i++ {
		if math.Abs(float64(m[i]-identity[i])) > 0.0001 {
			t.Errorf("Identity quat should produce identity matrix, element %d: got %v, want %v", i, m[i], identity[i])
		}
	}
}

func TestQuatFromAxisAngle(t *testing.T) {
	// 90 degrees around Y axis
	q := QuatFromAxisAngle(Vec3{X: 0, Y: 1, Z: 0}, float32(math.Pi/2))

	// Should have Y component and W = cos(45deg)
	expectedW := float32(math.Cos(math.Pi / 4))
	expectedY := float32(math.Sin(math.Pi / 4))

	if math.Abs(float64(q.W-expectedW)) > 0.001 {
		t.Errorf("QuatFromAxisAngle W: expected %v, got %v", expectedW, q.W)
	}
	if math.Abs(float64(q.Y-expectedY)) > 0.001 {
		t.Errorf("QuatFromAxisAngle Y: expected %v, got %v", expectedY, q.Y)
	}
}
