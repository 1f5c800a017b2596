// Package skinning poses rest vertices with up to four bone influences,
// using linear blending (BDEF) or two-bone spherical blending (SDEF).
package skinning

import (
	"github.com/Faultbox/mmdvr/internal/engine/buffer"
	"github.com/Faultbox/mmdvr/internal/engine/model"
	"github.com/Faultbox/mmdvr/pkg/math"
)

// BdefBone is one weighted influence for linear blending.
type BdefBone struct {
	Transform math.Affine
	Weight    float32
}

// SdefBone is one weighted influence for spherical blending.
type SdefBone struct {
	Transform math.Affine
	Rotation  math.Quat
	Weight    float32
}

// NewBdefBone reads palette entry idx.
func NewBdefBone(palette buffer.Store[math.Mat4], idx uint32, weight float32) BdefBone {
	return BdefBone{Transform: math.AffineFromMat4(palette.At(int(idx))), Weight: weight}
}

// NewSdefBone reads palette entry idx and its packed orientation.
func NewSdefBone(palette buffer.Store[math.Mat4], idx uint32, weight float32) SdefBone {
	m := palette.At(int(idx))
	return SdefBone{Transform: math.AffineFromMat4(m), Rotation: m.PackedQuat(), Weight: weight}
}

// Posed is a deformed vertex in model space.
type Posed struct {
	Position math.Vec3
	Normal   math.Vec3
}

// BlendBDEF applies the weight-summed transform to pos once. The normal is
// transformed by the summed linear parts and normalized only at the end.
// Weights are used as given.
func BlendBDEF(bones [model.MaxInfluences]BdefBone, pos, normal math.Vec3) Posed {
	var mat math.Affine
	for _, b := range bones {
		if b.Weight == 0 {
			continue
		}
		mat = mat.Add(b.Transform.Scale(b.Weight))
	}
	return Posed{
		Position: mat.TransformPoint(pos),
		Normal:   mat.TransformVector(normal).Normalize(),
	}
}

// BlendQuat blends two orientations along the shortest arc and
// renormalizes. A degenerate blend yields the identity.
func BlendQuat(q0, q1 math.Quat, w0, w1 float32) math.Quat {
	if q0.Dot(q1) < 0 {
		q1 = q1.Neg()
	}
	return q0.Scale(w0).Add(q1.Scale(w1)).Normalize()
}

// BlendSDEF blends two bones spherically around the center c. r0 and r1
// are the per-vertex correction points.
func BlendSDEF(b0, b1 SdefBone, pos, normal, c, r0, r1 math.Vec3) Posed {
	rot := BlendQuat(b0.Rotation, b1.Rotation, b0.Weight, b1.Weight).ToMat3()
	bmat := b0.Transform.Scale(b0.Weight).Add(b1.Transform.Scale(b1.Weight))

	p := bmat.TransformPoint(c).Add(rot.MulVec3(pos.Sub(c)))
	corr := b0.Transform.Sub(b1.Transform).TransformVector(r0.Sub(r1))
	p = p.Add(corr.Scale(b0.Weight * b1.Weight / 2))

	return Posed{Position: p, Normal: rot.MulVec3(normal)}
}

// SkinVertex poses v with the given palette and accumulated morph offset.
func SkinVertex(v *model.Vertex, palette buffer.Store[math.Mat4], offset math.Vec3) Posed {
	pos := v.Position.Add(offset)
	if v.IsSdef() {
		return BlendSDEF(
			NewSdefBone(palette, v.Bones[0], v.Weights[0]),
			NewSdefBone(palette, v.Bones[1], v.Weights[1]),
			pos, v.Normal, v.SdefC, v.SdefR0, v.SdefR1,
		)
	}
	var bones [model.MaxInfluences]BdefBone
	for k := range bones {
		bones[k] = NewBdefBone(palette, v.Bones[k], v.Weights[k])
	}
	return BlendBDEF(bones, pos, v.Normal)
}
