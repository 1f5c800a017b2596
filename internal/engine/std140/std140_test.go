package std140

import (
	"encoding/binary"
	gomath "math"
	"testing"

	"github.com/Faultbox/mmdvr/pkg/math"
)

func TestAlignment(t *testing.T) {
	w := NewWriter(64)
	w.Float(1)
	w.Vec2(math.Vec2{X: 2, Y: 3})
	w.Vec4(math.Vec4{4, 5, 6, 7})
	w.Float(8)
	buf := w.Bytes()

	if len(buf) != 48 {
		t.Fatalf("block is %d bytes, want 48", len(buf))
	}
	at := func(off int) float32 {
		return gomath.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
	}
	// vec2 aligns to 8, vec4 to 16.
	for off, want := range map[int]float32{0: 1, 8: 2, 12: 3, 16: 4, 28: 7, 32: 8} {
		if got := at(off); got != want {
			t.Errorf("offset %d = %v, want %v", off, got, want)
		}
	}
}

func TestMat4ColumnMajor(t *testing.T) {
	buf := NewWriter(64).Mat4(math.Translate(1, 2, 3)).Bytes()
	got := gomath.Float32frombits(binary.LittleEndian.Uint32(buf[52:]))
	if got != 2 {
		t.Errorf("translation y at offset 52 = %v, want 2", got)
	}
}
