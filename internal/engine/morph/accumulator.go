package morph

import (
	"encoding/binary"
	gomath "math"
	"sync/atomic"

	"github.com/Faultbox/mmdvr/pkg/math"
)

// Accumulator is an arena of three int32 slots per vertex.
//
// A frame uses it in two phases. Begin zeroes the arena and hands out a
// Writer; any number of goroutines may Add through it concurrently. Seal is
// the barrier: it must be called after every writer has returned, and the
// Offsets it returns are the only way to read the result.
type Accumulator struct {
	slots  []atomic.Int32
	sealed atomic.Bool
	frame  uint64
}

// NewAccumulator allocates slots for n vertices.
func NewAccumulator(n int) *Accumulator {
	a := &Accumulator{slots: make([]atomic.Int32, 3*n)}
	a.sealed.Store(true)
	return a
}

// Len is the number of vertex slots.
func (a *Accumulator) Len() int { return len(a.slots) / 3 }

// Begin zeroes every slot and opens the write phase.
func (a *Accumulator) Begin() *Writer {
	for i := range a.slots {
		a.slots[i].Store(0)
	}
	a.frame++
	a.sealed.Store(false)
	return &Writer{acc: a, frame: a.frame}
}

// Writer adds contributions during the write phase.
type Writer struct {
	acc   *Accumulator
	frame uint64
}

// Add atomically adds d to the slot of vertex v. Components are added
// independently and saturate at the int32 limits instead of wrapping.
// Sums that stay in range are exact and independent of write order.
func (w *Writer) Add(v uint32, d [3]int32) {
	if w.acc.sealed.Load() || w.frame != w.acc.frame {
		panic("morph: write to sealed accumulator")
	}
	base := int(v) * 3
	for k, c := range d {
		if c != 0 {
			addSaturating(&w.acc.slots[base+k], c)
		}
	}
}

func addSaturating(slot *atomic.Int32, d int32) {
	for {
		old := slot.Load()
		if slot.CompareAndSwap(old, SaturatingAdd(old, d)) {
			return
		}
	}
}

// SaturatingAdd returns a+b clamped to the int32 range.
func SaturatingAdd(a, b int32) int32 {
	s := int64(a) + int64(b)
	switch {
	case s > gomath.MaxInt32:
		return gomath.MaxInt32
	case s < gomath.MinInt32:
		return gomath.MinInt32
	}
	return int32(s)
}

// Seal closes the write phase and returns the read view.
func (w *Writer) Seal() Offsets {
	w.acc.sealed.Store(true)
	return Offsets{acc: w.acc, frame: w.frame}
}

// Offsets is the sealed result of one accumulation pass.
type Offsets struct {
	acc   *Accumulator
	frame uint64
}

// Len is the number of vertex slots. The zero Offsets has none.
func (o Offsets) Len() int {
	if o.acc == nil {
		return 0
	}
	return o.acc.Len()
}

// Fixed returns the raw fixed-point sum for vertex v. Vertices beyond Len
// read as zero.
func (o Offsets) Fixed(v int) [3]int32 {
	if v >= o.Len() {
		return [3]int32{}
	}
	o.check()
	base := v * 3
	return [3]int32{
		o.acc.slots[base].Load(),
		o.acc.slots[base+1].Load(),
		o.acc.slots[base+2].Load(),
	}
}

// At returns the accumulated displacement of vertex v in meters.
func (o Offsets) At(v int) math.Vec3 {
	return Decode(o.Fixed(v))
}

// AppendBinary appends the little-endian int32 slots, three per vertex, as
// consumed by the skinning shader.
func (o Offsets) AppendBinary(dst []byte) []byte {
	for v := 0; v < o.Len(); v++ {
		for _, c := range o.Fixed(v) {
			dst = binary.LittleEndian.AppendUint32(dst, uint32(c))
		}
	}
	return dst
}

func (o Offsets) check() {
	if !o.acc.sealed.Load() || o.frame != o.acc.frame {
		panic("morph: read of stale or unsealed offsets")
	}
}
