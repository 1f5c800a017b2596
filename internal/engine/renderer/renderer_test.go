package renderer

import (
	"encoding/binary"
	"errors"
	gomath "math"
	"testing"

	"github.com/go-gl/gl/v4.3-core/gl"

	"github.com/Faultbox/mmdvr/internal/engine/buffer"
	"github.com/Faultbox/mmdvr/internal/engine/model"
	"github.com/Faultbox/mmdvr/internal/engine/pipeline"
	"github.com/Faultbox/mmdvr/internal/engine/skinning"
	"github.com/Faultbox/mmdvr/internal/engine/stereo"
	"github.com/Faultbox/mmdvr/pkg/math"
)

func f32(b []byte, off int) float32 {
	return gomath.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
}

func TestEncodeVertices(t *testing.T) {
	vertices := []model.Vertex{
		{
			Position:  math.Vec3{X: 1, Y: 2, Z: 3},
			Normal:    math.Vec3{Y: 1},
			UV:        math.Vec2{X: 0.25, Y: 0.75},
			EdgeScale: 0.5,
			Bones:     [4]uint32{7, 1, 0, 0},
			Weights:   [4]float32{0.6, 0.4},
			SdefC:     math.Vec3{Y: 1},
		},
		{Position: math.Vec3{X: -1}, Weights: [4]float32{1}},
	}
	b := encodeVertices(vertices)
	if len(b) != 2*vertexStride {
		t.Fatalf("len = %d, want %d", len(b), 2*vertexStride)
	}

	checks := []struct {
		name string
		off  int
		want float32
	}{
		{"position.y", 4, 2},
		{"edge scale", 12, 0.5},
		{"sdef flag", 28, 1},
		{"uv.y", 36, 0.75},
		{"weight 1", 68, 0.4},
		{"sdef c.y", 84, 1},
		{"second position.x", vertexStride, -1},
		{"second sdef flag", vertexStride + 28, 0},
	}
	for _, c := range checks {
		if got := f32(b, c.off); got != c.want {
			t.Errorf("%s at %d = %v, want %v", c.name, c.off, got, c.want)
		}
	}
	if got := binary.LittleEndian.Uint32(b[48:]); got != 7 {
		t.Errorf("bone 0 = %d, want 7", got)
	}
}

func TestEncodePalette(t *testing.T) {
	pal := buffer.New[math.Mat4]("bones", buffer.VariantDynamic, 0)
	if err := pal.Set([]math.Mat4{math.Identity(), math.Translate(1, 2, 3)}); err != nil {
		t.Fatal(err)
	}
	b := encodePalette(pal)
	if len(b) != 2*boneStride {
		t.Fatalf("len = %d, want %d", len(b), 2*boneStride)
	}
	if got := f32(b, boneStride+13*4); got != 2 {
		t.Errorf("second bone translation y = %v, want 2", got)
	}
}

func TestDecodePosed(t *testing.T) {
	b := make([]byte, 2*posedStride)
	put := func(off int, v float32) {
		binary.LittleEndian.PutUint32(b[off:], gomath.Float32bits(v))
	}
	put(posedStride+0, 0.5)
	put(posedStride+24, -1)

	out := make([]skinning.Posed, 2)
	if err := decodePosed(b, out); err != nil {
		t.Fatal(err)
	}
	if out[1].Position != (math.Vec3{X: 0.5}) || out[1].Normal != (math.Vec3{Z: -1}) {
		t.Errorf("decoded %+v", out[1])
	}
	if err := decodePosed(b[:posedStride], out); err == nil {
		t.Error("short readback: expected error")
	}
}

func TestDecodeOutlines(t *testing.T) {
	b := make([]byte, stereo.Eyes*2*outlineStride)
	put := func(off int, v float32) {
		binary.LittleEndian.PutUint32(b[off:], gomath.Float32bits(v))
	}
	// Right eye, second vertex.
	put(3*outlineStride+4, 0.25)
	put(0, -1)

	out := [stereo.Eyes][]math.Vec3{make([]math.Vec3, 2), make([]math.Vec3, 2)}
	if err := decodeOutlines(b, out); err != nil {
		t.Fatal(err)
	}
	if out[stereo.Right][1] != (math.Vec3{Y: 0.25}) || out[stereo.Left][0] != (math.Vec3{X: -1}) {
		t.Errorf("decoded %+v", out)
	}
	if err := decodeOutlines(b[:outlineStride], out); err == nil {
		t.Error("short readback: expected error")
	}
}

func TestUniformBlockSizes(t *testing.T) {
	f := stereo.Frame{Ambient: 0.25}
	if got := len(f.Marshal()); got != stereo.CommonsSize {
		t.Errorf("Commons block = %d bytes, want %d", got, stereo.CommonsSize)
	}
	if got := len(stereo.DefaultDrawParams().Marshal()); got != stereo.DrawParamsSize {
		t.Errorf("Draw block = %d bytes, want %d", got, stereo.DrawParamsSize)
	}
}

func TestGLErrorMapping(t *testing.T) {
	tests := []struct {
		name        string
		codes       []uint32
		wantNil     bool
		recoverable bool
		sentinel    error
	}{
		{name: "none", wantNil: true},
		{name: "out of memory", codes: []uint32{gl.OUT_OF_MEMORY}, recoverable: true, sentinel: pipeline.ErrOutOfMemory},
		{name: "context lost", codes: []uint32{gl.INVALID_OPERATION, glContextLost}, recoverable: true, sentinel: pipeline.ErrDeviceLost},
		{name: "invalid value", codes: []uint32{gl.INVALID_VALUE}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := worstError("dispatch", tt.codes)
			if tt.wantNil {
				if err != nil {
					t.Fatalf("err = %v, want nil", err)
				}
				return
			}
			var de *pipeline.DeviceError
			if !errors.As(err, &de) || de.Op != "dispatch" {
				t.Fatalf("err = %v, want DeviceError for dispatch", err)
			}
			if got := pipeline.Recoverable(err); got != tt.recoverable {
				t.Errorf("Recoverable = %v, want %v", got, tt.recoverable)
			}
			if tt.sentinel != nil && !errors.Is(err, tt.sentinel) {
				t.Errorf("err = %v, want %v", err, tt.sentinel)
			}
		})
	}
}
