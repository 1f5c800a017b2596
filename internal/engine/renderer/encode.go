package renderer

import (
	"encoding/binary"
	"fmt"
	gomath "math"

	"github.com/Faultbox/mmdvr/internal/engine/buffer"
	"github.com/Faultbox/mmdvr/internal/engine/model"
	"github.com/Faultbox/mmdvr/internal/engine/skinning"
	"github.com/Faultbox/mmdvr/internal/engine/std140"
	"github.com/Faultbox/mmdvr/internal/engine/stereo"
	"github.com/Faultbox/mmdvr/pkg/math"
)

// Buffer strides as laid out by the compute shaders.
const (
	vertexStride  = 128
	boneStride    = 64
	posedStride   = 32
	offsetsStride = 12
	outlineStride = 16
)

// encodeVertices packs the static vertex attributes:
//
//	position.xyz edge_scale | normal.xyz sdef | uv.xy | bones | weights | sdef c | r0 | r1
func encodeVertices(vertices []model.Vertex) []byte {
	w := std140.NewWriter(len(vertices) * vertexStride)
	for i := range vertices {
		v := &vertices[i]
		var sdef float32
		if v.IsSdef() {
			sdef = 1
		}
		w.Vec4(math.Vec4{v.Position.X, v.Position.Y, v.Position.Z, v.EdgeScale})
		w.Vec4(math.Vec4{v.Normal.X, v.Normal.Y, v.Normal.Z, sdef})
		w.Vec4(math.Vec4{v.UV.X, v.UV.Y, 0, 0})
		w.Align(16)
		for _, b := range v.Bones {
			w.Uint(b)
		}
		w.Vec4(math.Vec4(v.Weights))
		w.Vec4(math.Direction(v.SdefC))
		w.Vec4(math.Direction(v.SdefR0))
		w.Vec4(math.Direction(v.SdefR1))
	}
	return w.Bytes()
}

// encodePalette packs every palette entry as a column-major mat4.
func encodePalette(palette buffer.Store[math.Mat4]) []byte {
	w := std140.NewWriter(palette.Len() * boneStride)
	for _, m := range palette.Items() {
		w.Mat4(m)
	}
	return w.Bytes()
}

// decodePosed unpacks the skinning output into out.
func decodePosed(b []byte, out []skinning.Posed) error {
	if len(b) < len(out)*posedStride {
		return fmt.Errorf("posed readback: %d bytes for %d vertices", len(b), len(out))
	}
	f := func(off int) float32 {
		return gomath.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
	}
	for i := range out {
		base := i * posedStride
		out[i] = skinning.Posed{
			Position: math.Vec3{X: f(base), Y: f(base + 4), Z: f(base + 8)},
			Normal:   math.Vec3{X: f(base + 16), Y: f(base + 20), Z: f(base + 24)},
		}
	}
	return nil
}

// decodeOutlines unpacks the per-eye outline positions, eye-major, into
// out. Every entry of out must have the same length.
func decodeOutlines(b []byte, out [stereo.Eyes][]math.Vec3) error {
	n := len(out[stereo.Left])
	if len(b) < stereo.Eyes*n*outlineStride {
		return fmt.Errorf("outline readback: %d bytes for %d vertices", len(b), n)
	}
	f := func(off int) float32 {
		return gomath.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
	}
	for eye := range out {
		for i := range out[eye] {
			base := (eye*n + i) * outlineStride
			out[eye][i] = math.Vec3{X: f(base), Y: f(base + 4), Z: f(base + 8)}
		}
	}
	return nil
}
