package morph

import (
	"encoding/binary"
	gomath "math"

	"github.com/Faultbox/mmdvr/internal/engine/buffer"
)

// DefaultEpsilon is the weight magnitude at or below which a target is idle.
const DefaultEpsilon = 1e-5

// ErrCapacity is returned when a fixed active set overflows.
var ErrCapacity = buffer.ErrCapacity

// Active is a target with a non-negligible weight.
type Active struct {
	ID     int
	Weight float32
}

// Activate returns the targets whose |weight| exceeds eps, in id order.
// Non-finite weights are treated as idle.
func Activate(weights []float32, eps float32) []Active {
	var out []Active
	for id, w := range weights {
		if gomath.IsNaN(float64(w)) || gomath.IsInf(float64(w), 0) {
			continue
		}
		if w > eps || w < -eps {
			out = append(out, Active{ID: id, Weight: w})
		}
	}
	return out
}

// Pack encodes the active set two entries per ivec4 as
// (id, weightBits, id, weightBits). An odd trailing slot is zero.
func Pack(active []Active) [][4]int32 {
	out := make([][4]int32, (len(active)+1)/2)
	for i, a := range active {
		out[i/2][(i%2)*2] = int32(a.ID)
		out[i/2][(i%2)*2+1] = int32(gomath.Float32bits(a.Weight))
	}
	return out
}

// Unpack reverses Pack for n entries.
func Unpack(packed [][4]int32, n int) []Active {
	out := make([]Active, n)
	for i := range out {
		v := packed[i/2]
		out[i] = Active{
			ID:     int(v[(i%2)*2]),
			Weight: gomath.Float32frombits(uint32(v[(i%2)*2+1])),
		}
	}
	return out
}

// AppendPacked appends the little-endian encoding of Pack(active).
func AppendPacked(dst []byte, active []Active) []byte {
	for _, v := range Pack(active) {
		for _, c := range v {
			dst = binary.LittleEndian.AppendUint32(dst, uint32(c))
		}
	}
	return dst
}

// Contribution is the fixed-point amount one record adds to its vertex
// slot for the given weight. It matches roundEven(float(offset) * weight)
// evaluated in single precision, saturated to the int32 range.
func Contribution(offset int32, weight float32) int32 {
	return toFixed(float64(float32(offset) * weight))
}

// toFixed rounds f half to even and saturates it to the int32 range. NaN
// becomes zero.
func toFixed(f float64) int32 {
	f = gomath.RoundToEven(f)
	switch {
	case gomath.IsNaN(f):
		return 0
	case f >= gomath.MaxInt32:
		return gomath.MaxInt32
	case f <= gomath.MinInt32:
		return gomath.MinInt32
	}
	return int32(f)
}
