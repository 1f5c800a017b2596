// Package morph accumulates weighted morph-target displacements into a
// per-vertex fixed-point buffer.
//
// Displacements are stored pre-scaled by FixedPointScale. Each contribution
// is rounded to an integer before it is added, so the accumulated value is
// independent of the order in which contributions arrive. Values that
// would leave the int32 range saturate instead of wrapping.
package morph

import (
	"encoding/binary"

	"github.com/Faultbox/mmdvr/internal/engine/model"
	"github.com/Faultbox/mmdvr/pkg/math"
)

// FixedPointScale converts meters to accumulator units.
const FixedPointScale = 1e6

// GroupSize is the number of records one work group processes.
const GroupSize = 32

// RecordSize is the encoded size of a Record in bytes.
const RecordSize = 16

// Record is one descriptor entry: fixed-point x, y, z and the target vertex.
type Record [4]int32

// Vertex returns the vertex the record displaces.
func (r Record) Vertex() uint32 { return uint32(r[3]) }

// Encode converts a displacement to fixed point, rounding half to even and
// saturating at the int32 limits.
func Encode(off math.Vec3) [3]int32 {
	return [3]int32{
		toFixed(float64(off.X) * FixedPointScale),
		toFixed(float64(off.Y) * FixedPointScale),
		toFixed(float64(off.Z) * FixedPointScale),
	}
}

// Decode converts accumulator units back to meters.
func Decode(v [3]int32) math.Vec3 {
	return math.Vec3{
		X: float32(float64(v[0]) / FixedPointScale),
		Y: float32(float64(v[1]) / FixedPointScale),
		Z: float32(float64(v[2]) / FixedPointScale),
	}
}

// Table is the dense descriptor table: Targets() rows of MaxSize() records.
// Rows are padded with zero records, which contribute nothing.
type Table struct {
	records []Record
	maxSize int
	targets int
}

// BuildTable lays out the model's morph targets. A model without morphs gets
// a single empty target so the table is never zero-sized.
func BuildTable(m *model.Model) *Table {
	targets := m.Morphs
	if len(targets) == 0 {
		targets = []model.MorphTarget{{Name: "null"}}
	}

	maxSize := GroupSize
	for i := range targets {
		if n := padToGroup(len(targets[i].Offsets)); n > maxSize {
			maxSize = n
		}
	}

	t := &Table{
		records: make([]Record, maxSize*len(targets)),
		maxSize: maxSize,
		targets: len(targets),
	}
	for i := range targets {
		row := t.records[i*maxSize : (i+1)*maxSize]
		for j, off := range targets[i].Offsets {
			fx := Encode(off.Offset)
			row[j] = Record{fx[0], fx[1], fx[2], int32(off.Vertex)}
		}
	}
	return t
}

func padToGroup(n int) int {
	return (n + GroupSize - 1) / GroupSize * GroupSize
}

// MaxSize is the padded per-target record count.
func (t *Table) MaxSize() int { return t.maxSize }

// Targets is the number of rows.
func (t *Table) Targets() int { return t.targets }

// Groups is the number of work groups needed to cover one row.
func (t *Table) Groups() int { return t.maxSize / GroupSize }

// Row returns the records of target id.
func (t *Table) Row(id int) []Record {
	return t.records[id*t.maxSize : (id+1)*t.maxSize]
}

// AppendBinary appends the little-endian ivec4 encoding of every record.
func (t *Table) AppendBinary(dst []byte) []byte {
	for _, r := range t.records {
		for _, v := range r {
			dst = binary.LittleEndian.AppendUint32(dst, uint32(v))
		}
	}
	return dst
}
