// Package std140 serializes uniform and storage blocks for GPU upload using
// the std140 layout rules. All values are little-endian.
package std140

import (
	"encoding/binary"
	gomath "math"

	"github.com/Faultbox/mmdvr/pkg/math"
)

// Writer appends block members at their aligned offsets.
type Writer struct {
	buf []byte
}

// NewWriter returns a writer with room for size bytes.
func NewWriter(size int) *Writer {
	return &Writer{buf: make([]byte, 0, size)}
}

// Bytes returns the block padded to a 16-byte multiple.
func (w *Writer) Bytes() []byte {
	w.Align(16)
	return w.buf
}

// Len is the current offset.
func (w *Writer) Len() int { return len(w.buf) }

// Align pads with zeros up to the next multiple of n.
func (w *Writer) Align(n int) *Writer {
	for len(w.buf)%n != 0 {
		w.buf = append(w.buf, 0)
	}
	return w
}

// Float writes a 4-byte float.
func (w *Writer) Float(f float32) *Writer {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, gomath.Float32bits(f))
	return w
}

// Uint writes a 4-byte unsigned integer.
func (w *Writer) Uint(u uint32) *Writer {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, u)
	return w
}

// Int writes a 4-byte signed integer.
func (w *Writer) Int(i int32) *Writer {
	return w.Uint(uint32(i))
}

// Vec2 writes a vec2 at 8-byte alignment.
func (w *Writer) Vec2(v math.Vec2) *Writer {
	w.Align(8)
	return w.Float(v.X).Float(v.Y)
}

// Vec4 writes a vec4 at 16-byte alignment.
func (w *Writer) Vec4(v math.Vec4) *Writer {
	w.Align(16)
	for _, f := range v {
		w.Float(f)
	}
	return w
}

// Mat4 writes a column-major mat4.
func (w *Writer) Mat4(m math.Mat4) *Writer {
	w.Align(16)
	for _, f := range m {
		w.Float(f)
	}
	return w
}
