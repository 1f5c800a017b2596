package model

import (
	"errors"
	"fmt"
	gomath "math"

	"go.uber.org/multierr"

	"github.com/Faultbox/mmdvr/pkg/math"
)

// ErrMalformedAsset matches every AssetError.
var ErrMalformedAsset = errors.New("malformed asset")

// MaxMorphOffset is the largest displacement component that survives
// fixed-point encoding in an int32 slot. It bounds each offset and, per
// vertex, the sum of |offset| over every target, so that all targets at
// unit weight still fit the accumulator.
const MaxMorphOffset = gomath.MaxInt32 / 1e6

// Kind names the part of a model an AssetError refers to.
type Kind string

const (
	KindVertex Kind = "vertex"
	KindIndex  Kind = "index"
	KindBone   Kind = "bone"
	KindMorph  Kind = "morph"
)

// AssetError describes one reason a model was rejected.
type AssetError struct {
	Asset  string
	Kind   Kind
	Index  int
	Reason string
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("model %q: %s %d: %s", e.Asset, e.Kind, e.Index, e.Reason)
}

// Is makes errors.Is(err, ErrMalformedAsset) match.
func (e *AssetError) Is(target error) bool {
	return target == ErrMalformedAsset
}

// Validate checks every invariant the deformation stages rely on and returns
// all violations combined. A nil result means the model is safe to upload.
func (m *Model) Validate() error {
	var err error
	fail := func(kind Kind, idx int, format string, args ...any) {
		err = multierr.Append(err, &AssetError{
			Asset:  m.Name,
			Kind:   kind,
			Index:  idx,
			Reason: fmt.Sprintf(format, args...),
		})
	}

	if len(m.Vertices) == 0 {
		fail(KindVertex, 0, "model has no vertices")
	}

	for i := range m.Bones {
		b := &m.Bones[i]
		switch {
		case b.Parent == NoParent:
		case b.Parent < 0 || b.Parent >= len(m.Bones):
			fail(KindBone, i, "parent %d out of range (%d bones)", b.Parent, len(m.Bones))
		case b.Parent >= i:
			fail(KindBone, i, "parent %d does not precede child", b.Parent)
		}
		if !mat4Finite(b.Local) || !mat4Finite(b.InverseModel) {
			fail(KindBone, i, "non-finite rest transform")
		}
	}

	numBones := uint32(len(m.Bones))
	for i := range m.Vertices {
		v := &m.Vertices[i]
		if !v.Position.IsFinite() || !v.Normal.IsFinite() || !finite(v.EdgeScale) {
			fail(KindVertex, i, "non-finite attribute")
		}
		for k, bone := range v.Bones {
			if bone >= numBones {
				fail(KindVertex, i, "bone index %d out of range (%d bones)", bone, numBones)
			}
			if !finite(v.Weights[k]) {
				fail(KindVertex, i, "non-finite weight in slot %d", k)
			}
		}
		if v.IsSdef() {
			if !v.SdefC.IsFinite() || !v.SdefR0.IsFinite() || !v.SdefR1.IsFinite() {
				fail(KindVertex, i, "non-finite SDEF parameters")
			}
			if !(v.Weights[0]+v.Weights[1] > 0) {
				fail(KindVertex, i, "SDEF weights %v+%v blend to a zero-length rotation", v.Weights[0], v.Weights[1])
			}
		}
	}

	if len(m.Indices)%3 != 0 {
		fail(KindIndex, len(m.Indices), "index count is not a multiple of 3")
	}
	for i, idx := range m.Indices {
		if int(idx) >= len(m.Vertices) {
			fail(KindIndex, i, "vertex %d out of range (%d vertices)", idx, len(m.Vertices))
		}
	}

	reach := make(map[uint32]*[3]float64)
	for i := range m.Morphs {
		for j, off := range m.Morphs[i].Offsets {
			if int(off.Vertex) >= len(m.Vertices) {
				fail(KindMorph, i, "offset %d targets vertex %d of %d", j, off.Vertex, len(m.Vertices))
				continue
			}
			if !off.Offset.IsFinite() ||
				abs32(off.Offset.X) > MaxMorphOffset ||
				abs32(off.Offset.Y) > MaxMorphOffset ||
				abs32(off.Offset.Z) > MaxMorphOffset {
				fail(KindMorph, i, "offset %d %v not representable in fixed point", j, off.Offset)
				continue
			}
			r := reach[off.Vertex]
			if r == nil {
				r = new([3]float64)
				reach[off.Vertex] = r
			}
			r[0] += float64(abs32(off.Offset.X))
			r[1] += float64(abs32(off.Offset.Y))
			r[2] += float64(abs32(off.Offset.Z))
		}
	}
	for v := range m.Vertices {
		r := reach[uint32(v)]
		if r != nil && max(r[0], r[1], r[2]) > MaxMorphOffset {
			fail(KindVertex, v, "morph offsets sum to %.1f m, beyond fixed point at unit weight", max(r[0], r[1], r[2]))
		}
	}

	return err
}

func mat4Finite(m math.Mat4) bool {
	for _, f := range m {
		if !finite(f) {
			return false
		}
	}
	return true
}

func finite(f float32) bool {
	return !gomath.IsNaN(float64(f)) && !gomath.IsInf(float64(f), 0)
}

func abs32(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
