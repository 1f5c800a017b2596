package skinning

import (
	"context"
	gomath "math"
	"testing"

	"github.com/Faultbox/mmdvr/internal/engine/buffer"
	"github.com/Faultbox/mmdvr/internal/engine/model"
	"github.com/Faultbox/mmdvr/internal/engine/morph"
	"github.com/Faultbox/mmdvr/pkg/math"
)

const tolerance = 1e-5

func approxVec(a, b math.Vec3) bool {
	return a.Sub(b).Length() < tolerance
}

func palette(t *testing.T, variant string, bones ...math.Mat4) buffer.Store[math.Mat4] {
	t.Helper()
	s := buffer.New[math.Mat4]("bones", variant, 246)
	if err := s.Set(bones); err != nil {
		t.Fatalf("palette Set: %v", err)
	}
	return s
}

func bone(q math.Quat, tx, ty, tz float32) math.Mat4 {
	return math.PackQuat(math.Translate(tx, ty, tz).Mul(q.ToMat4()), q)
}

func TestSingleBoneIdentityBlend(t *testing.T) {
	q := math.QuatFromAxisAngle(math.Vec3{X: 1, Y: 1}.Normalize(), 0.9)
	b := bone(q, 0.5, -1, 2)
	raw := math.Translate(0.5, -1, 2).Mul(q.ToMat4())
	v := model.Vertex{
		Position: math.Vec3{X: 0.3, Y: 1.2, Z: -0.4},
		Normal:   math.Vec3{Z: 1},
		Weights:  [4]float32{1},
	}

	got := SkinVertex(&v, palette(t, "fixed", b), math.Vec3{})
	if want := raw.TransformVec3(v.Position); !approxVec(got.Position, want) {
		t.Errorf("position = %v, want %v", got.Position, want)
	}
	if want := q.Rotate(v.Normal); !approxVec(got.Normal, want) {
		t.Errorf("normal = %v, want %v", got.Normal, want)
	}
}

func TestBdefWeightsNotNormalized(t *testing.T) {
	v := model.Vertex{
		Position: math.Vec3{X: 2},
		Normal:   math.Vec3{Y: 1},
		Weights:  [4]float32{0.5},
	}
	got := SkinVertex(&v, palette(t, "dynamic", math.Identity()), math.Vec3{})
	if !approxVec(got.Position, math.Vec3{X: 1}) {
		t.Errorf("position = %v, want (1, 0, 0)", got.Position)
	}
	// The final normal is renormalized.
	if !approxVec(got.Normal, math.Vec3{Y: 1}) {
		t.Errorf("normal = %v, want (0, 1, 0)", got.Normal)
	}
}

func TestSdefIdenticalBonesMatchesBdef(t *testing.T) {
	q := math.QuatFromAxisAngle(math.Vec3{Z: 1}, 1.1)
	b := bone(q, 0, 1, 0)
	pal := palette(t, "fixed", b, b)

	base := model.Vertex{
		Position: math.Vec3{X: 0.1, Y: 0.9, Z: 0.05},
		Normal:   math.Vec3{X: 1},
		Bones:    [4]uint32{0, 1},
		Weights:  [4]float32{0.3, 0.7},
	}
	sdef := base
	sdef.SdefC = math.Vec3{Y: 1}
	sdef.SdefR0 = math.Vec3{X: 0.2, Y: 1}
	sdef.SdefR1 = math.Vec3{X: -0.1, Y: 1}

	want := SkinVertex(&base, pal, math.Vec3{})
	got := SkinVertex(&sdef, pal, math.Vec3{})
	if !approxVec(got.Position, want.Position) {
		t.Errorf("SDEF position = %v, BDEF %v", got.Position, want.Position)
	}
	if !approxVec(got.Normal, want.Normal) {
		t.Errorf("SDEF normal = %v, BDEF %v", got.Normal, want.Normal)
	}
}

func TestSdefCorrectionTerm(t *testing.T) {
	// Two unrotated bones that differ by a translation: the rotation part
	// is identity, so only the correction term depends on r0 - r1.
	b0 := SdefBone{Transform: math.AffineFromMat4(math.Translate(1, 0, 0)), Rotation: math.QuatIdentity(), Weight: 0.5}
	b1 := SdefBone{Transform: math.AffineIdentity(), Rotation: math.QuatIdentity(), Weight: 0.5}
	pos := math.Vec3{X: 0.2, Y: 0.3}
	c := math.Vec3{Y: 0.3}
	r0 := math.Vec3{X: 1, Y: 0.3}
	r1 := math.Vec3{Y: 0.3}

	got := BlendSDEF(b0, b1, pos, math.Vec3{Y: 1}, c, r0, r1)
	// bmat*c = (0.5, 0.3, 0); rot*(pos-c) = (0.2, 0, 0); the translation
	// difference vanishes for the direction r0-r1, so the correction is 0.
	if want := (math.Vec3{X: 0.7, Y: 0.3}); !approxVec(got.Position, want) {
		t.Errorf("position = %v, want %v", got.Position, want)
	}

	// A linear difference between the bones does contribute.
	b0.Transform = math.AffineFromMat4(math.Scale(2, 1, 1))
	got = BlendSDEF(b0, b1, pos, math.Vec3{Y: 1}, c, r0, r1)
	// bmat = diag(1.5,1,1): bmat*c = (0, 0.3, 0); correction =
	// 0.25 * (diag(1,0,0) * (1,0,0)) / 2 = (0.125, 0, 0).
	if want := (math.Vec3{X: 0.325, Y: 0.3}); !approxVec(got.Position, want) {
		t.Errorf("position with scale difference = %v, want %v", got.Position, want)
	}
}

func TestQuatBlendSignInvariant(t *testing.T) {
	q0 := math.QuatFromAxisAngle(math.Vec3{Y: 1}, 0.4)
	q1 := math.QuatFromAxisAngle(math.Vec3{X: 1}, 2.6)
	want := BlendQuat(q0, q1, 0.35, 0.65).ToMat3()

	cases := map[string][2]math.Quat{
		"negate first":  {q0.Neg(), q1},
		"negate second": {q0, q1.Neg()},
		"negate both":   {q0.Neg(), q1.Neg()},
	}
	for name, qs := range cases {
		got := BlendQuat(qs[0], qs[1], 0.35, 0.65).ToMat3()
		for i := range got {
			if gomath.Abs(float64(got[i]-want[i])) > tolerance {
				t.Errorf("%s: element %d = %v, want %v", name, i, got[i], want[i])
			}
		}
	}
}

func TestBlendQuatDegenerate(t *testing.T) {
	q := math.QuatFromAxisAngle(math.Vec3{Z: 1}, 0.5)
	if got := BlendQuat(q, q, 0, 0); got != math.QuatIdentity() {
		t.Errorf("zero-weight blend = %v, want identity", got)
	}
}

func TestOutline(t *testing.T) {
	p := Posed{Position: math.Vec3{Z: -2}, Normal: math.Vec3{X: 3}}
	got := Outline(p, math.Identity(), 1, 0.1)
	if want := (math.Vec3{X: 0.2, Z: -2}); !approxVec(got, want) {
		t.Errorf("Outline = %v, want %v", got, want)
	}

	// Twice as far, twice the push.
	p.Position.Z = -4
	got = Outline(p, math.Identity(), 1, 0.1)
	if want := (math.Vec3{X: 0.4, Z: -4}); !approxVec(got, want) {
		t.Errorf("Outline far = %v, want %v", got, want)
	}

	// Off axis the push follows the distance to the eye, not the depth.
	p = Posed{Position: math.Vec3{X: 3, Z: -4}, Normal: math.Vec3{Y: 1}}
	got = Outline(p, math.Identity(), 1, 0.1)
	if want := (math.Vec3{X: 3, Y: 0.5, Z: -4}); !approxVec(got, want) {
		t.Errorf("Outline off axis = %v, want %v", got, want)
	}
}

func TestOutlineScale(t *testing.T) {
	got := OutlineScale(gomath.Pi/2, 0.001, 2)
	if gomath.Abs(float64(got-0.004)) > 1e-7 {
		t.Errorf("OutlineScale = %v, want 0.004", got)
	}
}

func runFrame(t *testing.T, m *model.Model, weights []float32) []Posed {
	t.Helper()
	stage := morph.NewStage(morph.BuildTable(m), morph.DefaultOptions())
	if err := stage.SetWeights(weights); err != nil {
		t.Fatalf("SetWeights: %v", err)
	}
	offsets, err := stage.Run(context.Background(), morph.NewAccumulator(len(m.Vertices)))
	if err != nil {
		t.Fatalf("morph Run: %v", err)
	}
	out := make([]Posed, len(m.Vertices))
	if err := NewPass(2).Run(context.Background(), m, palette(t, "fixed", math.Identity()), offsets, out); err != nil {
		t.Fatalf("skinning Run: %v", err)
	}
	return out
}

func oneBoneRig() *model.Model {
	return &model.Model{
		Name:  "one",
		Bones: []model.Bone{{Parent: model.NoParent, Local: math.Identity(), InverseModel: math.Identity()}},
		Vertices: []model.Vertex{{
			Normal:  math.Vec3{X: 0.6, Y: 0.8},
			Weights: [4]float32{1},
		}},
		Morphs: []model.MorphTarget{{
			Offsets: []model.MorphOffset{{Vertex: 0, Offset: math.Vec3{X: 1}}},
		}},
	}
}

func TestIdentityRigZeroMorph(t *testing.T) {
	m := oneBoneRig()
	out := runFrame(t, m, []float32{0})
	if out[0].Position != (math.Vec3{}) {
		t.Errorf("position = %v, want origin", out[0].Position)
	}
	if !approxVec(out[0].Normal, m.Vertices[0].Normal) {
		t.Errorf("normal = %v, want %v", out[0].Normal, m.Vertices[0].Normal)
	}
}

func TestIdentityRigHalfMorph(t *testing.T) {
	out := runFrame(t, oneBoneRig(), []float32{0.5})
	if out[0].Position != (math.Vec3{X: 0.5}) {
		t.Errorf("position = %v, want (0.5, 0, 0)", out[0].Position)
	}
}

func TestPassPaletteTooSmall(t *testing.T) {
	m := model.BuildTube(model.DefaultTubeOptions())
	out := make([]Posed, len(m.Vertices))
	err := NewPass(1).Run(context.Background(), m, palette(t, "dynamic", math.Identity()), morph.Offsets{}, out)
	if err == nil {
		t.Error("expected error for short palette")
	}
}

func TestPassMatchesSerial(t *testing.T) {
	m := model.BuildTube(model.DefaultTubeOptions())
	bones := make([]math.Mat4, len(m.Bones))
	for i := range bones {
		q := math.QuatFromAxisAngle(math.Vec3{Z: 1}, 0.3*float32(i))
		bones[i] = bone(q, 0, 0.1*float32(i), 0)
	}
	pal := palette(t, "fixed", bones...)

	out := make([]Posed, len(m.Vertices))
	if err := NewPass(4).Run(context.Background(), m, pal, morph.Offsets{}, out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i := range m.Vertices {
		want := SkinVertex(&m.Vertices[i], pal, math.Vec3{})
		if out[i] != want {
			t.Fatalf("vertex %d: parallel %v, serial %v", i, out[i], want)
		}
	}
}
