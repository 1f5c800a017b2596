package skeleton

import (
	"errors"
	gomath "math"
	"testing"

	"github.com/Faultbox/mmdvr/internal/engine/buffer"
	"github.com/Faultbox/mmdvr/internal/engine/model"
	"github.com/Faultbox/mmdvr/pkg/math"
)

func approxMat(a, b math.Mat4) bool {
	for i := range a {
		if gomath.Abs(float64(a[i]-b[i])) > 1e-5 {
			return false
		}
	}
	return true
}

func TestRestPosePaletteIsIdentity(t *testing.T) {
	m := model.BuildTube(model.DefaultTubeOptions())
	s := New(m)
	pal := buffer.NewFixed[math.Mat4]("bones", 246)
	if err := s.Evaluate(pal); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if pal.Len() != len(m.Bones) {
		t.Fatalf("palette has %d entries, want %d", pal.Len(), len(m.Bones))
	}
	for i := 0; i < pal.Len(); i++ {
		// Identity affine part with the identity quaternion in the bottom
		// row is exactly the identity matrix.
		if !approxMat(pal.At(i), math.Identity()) {
			t.Errorf("bone %d palette = %v, want identity", i, pal.At(i))
		}
	}
}

func TestHierarchy(t *testing.T) {
	m := &model.Model{Bones: []model.Bone{
		{Parent: model.NoParent, Local: math.Translate(0, 1, 0)},
		{Parent: 0, Local: math.Translate(0, 1, 0)},
	}}
	m.BindRestPose()
	s := New(m)

	q := math.QuatFromAxisAngle(math.Vec3{Z: 1}, gomath.Pi/2)
	s.SetRotation(0, q, math.Vec3{})
	pal := buffer.NewDynamic[math.Mat4]()
	if err := s.Evaluate(pal); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	// Root: local * anim.
	if want := math.Translate(0, 1, 0).Mul(q.ToMat4()); !approxMat(s.World(0), want) {
		t.Errorf("root world = %v, want %v", s.World(0), want)
	}
	// The child origin swings from (0,2,0) to (-1,1,0).
	tip := s.World(1).TransformVec3(math.Vec3{})
	if tip.Sub(math.Vec3{X: -1, Y: 1}).Length() > 1e-5 {
		t.Errorf("child origin = %v, want (-1, 1, 0)", tip)
	}
	// The child's palette carries the inherited rotation.
	got := pal.At(1).PackedQuat()
	if gomath.Abs(float64(gomath.Abs(float64(got.Dot(q)))-1)) > 1e-5 {
		t.Errorf("packed orientation = %v, want %v", got, q)
	}
	// Skinning a rest point bound to the child follows the bone.
	p := math.AffineFromMat4(pal.At(1)).TransformPoint(math.Vec3{Y: 2})
	if p.Sub(math.Vec3{X: -1, Y: 1}).Length() > 1e-5 {
		t.Errorf("skinned rest point = %v, want (-1, 1, 0)", p)
	}
}

func TestOverride(t *testing.T) {
	m := &model.Model{Bones: []model.Bone{
		{Parent: model.NoParent, Local: math.Identity()},
		{Parent: 0, Local: math.Translate(1, 0, 0)},
	}}
	m.BindRestPose()
	s := New(m)
	s.SetOverride(0, math.Translate(0, 5, 0))

	pal := buffer.NewDynamic[math.Mat4]()
	if err := s.Evaluate(pal); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got := s.World(1).Translation(); got != (math.Vec3{X: 1, Y: 5}) {
		t.Errorf("child inherits override: got %v", got)
	}

	s.ClearOverride(0)
	_ = s.Evaluate(pal)
	if got := s.World(1).Translation(); got != (math.Vec3{X: 1}) {
		t.Errorf("after ClearOverride: got %v", got)
	}
}

func TestPaletteCapacity(t *testing.T) {
	m := model.BuildTube(model.DefaultTubeOptions())
	err := New(m).Evaluate(buffer.NewFixed[math.Mat4]("bones", 2))
	if !errors.Is(err, buffer.ErrCapacity) {
		t.Errorf("Evaluate into small palette: got %v, want ErrCapacity", err)
	}
}

func TestOrientationStripsScale(t *testing.T) {
	q := math.QuatFromAxisAngle(math.Vec3{Y: 1}, 0.7)
	got := Orientation(q.ToMat4().Mul(math.Scale(3, 3, 3)))
	if gomath.Abs(float64(got.Dot(q))-1) > 1e-5 {
		t.Errorf("Orientation = %v, want %v", got, q)
	}
	if Orientation(math.Scale(0, 1, 1)) != math.QuatIdentity() {
		t.Error("collapsed matrix should give identity")
	}
}
