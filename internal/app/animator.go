package app

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/mmdvr/internal/engine/model"
	"github.com/Faultbox/mmdvr/pkg/math"
)

// Animator produces a looping demo motion for a bone chain: every bone
// below the root sways about Z and the morph weights pulse.
type Animator struct {
	t       float32
	bones   []math.Mat4
	weights []float32

	// Amplitude is the peak sway per bone, in radians.
	Amplitude float32
	// Speed is the cycle rate in radians per second.
	Speed float32
}

// NewAnimator creates an animator sized for m.
func NewAnimator(m *model.Model) *Animator {
	a := &Animator{
		bones:     make([]math.Mat4, len(m.Bones)),
		weights:   make([]float32, len(m.Morphs)),
		Amplitude: 0.4,
		Speed:     2,
	}
	a.Advance(0)
	return a
}

// Advance moves the clock by dt seconds and recomputes the pose.
func (a *Animator) Advance(dt float32) {
	a.t += dt * a.Speed
	sway := a.Amplitude * math32.Sin(a.t)
	for i := range a.bones {
		if i == 0 {
			a.bones[i] = math.Identity()
			continue
		}
		a.bones[i] = math.RotateAxis([3]float32{0, 0, 1}, sway)
	}
	for i := range a.weights {
		switch i {
		case 0:
			a.weights[i] = 0.5 + 0.5*math32.Sin(a.t)
		default:
			a.weights[i] = 0.25
		}
	}
}

// Time is the animation phase in radians.
func (a *Animator) Time() float32 { return a.t }

// Bones returns the current per-bone animation transforms. The slice is
// reused by the next Advance.
func (a *Animator) Bones() []math.Mat4 { return a.bones }

// Weights returns the current morph weights. The slice is reused by the
// next Advance.
func (a *Animator) Weights() []float32 { return a.weights }
