package stereo

import (
	"github.com/Faultbox/mmdvr/internal/engine/std140"
	"github.com/Faultbox/mmdvr/pkg/math"
)

// DrawParamsSize is the std140 size of DrawParams.
const DrawParamsSize = 96

// DrawParams are the per-draw parameters. They are passed by value with
// every draw or dispatch and never persist between calls.
//
//	Field         Effect
//	Model         object-to-world transform applied before the eye view
//	Color         tint for color draws, line color for outline draws
//	EyeOverride   eye index used when no hardware multiview index exists
//	OutlineScale  silhouette push width, see skinning.OutlineScale
type DrawParams struct {
	Model        math.Mat4
	Color        math.Vec4
	EyeOverride  uint32
	OutlineScale float32
}

// DefaultDrawParams returns an identity, untinted draw for the left eye.
func DefaultDrawParams() DrawParams {
	return DrawParams{Model: math.Identity(), Color: math.Vec4{1, 1, 1, 1}}
}

// ActiveEye names the eye a stage is producing. With hardware multiview the
// index comes from the active output target; otherwise from the draw's
// EyeOverride. Either way the stage sees a plain index.
type ActiveEye struct {
	hardware    uint32
	hasHardware bool
}

// HardwareEye is the eye selected by a multiview output target.
func HardwareEye(i int) ActiveEye {
	return ActiveEye{hardware: uint32(i), hasHardware: true}
}

// NoHardwareEye defers to the draw parameters.
func NoHardwareEye() ActiveEye {
	return ActiveEye{}
}

// Resolve returns the eye index for a draw. Out-of-range overrides clamp to
// the right eye.
func (a ActiveEye) Resolve(p DrawParams) int {
	i := p.EyeOverride
	if a.hasHardware {
		i = a.hardware
	}
	if i >= Eyes {
		return Right
	}
	return int(i)
}

// Marshal serializes the parameters in std140 layout.
func (p DrawParams) Marshal() []byte {
	return std140.NewWriter(DrawParamsSize).
		Mat4(p.Model).
		Vec4(p.Color).
		Uint(p.EyeOverride).
		Float(p.OutlineScale).
		Bytes()
}

// ModelView composes the draw's model transform with eye i's view.
func (f *Frame) ModelView(i int, p DrawParams) math.Mat4 {
	return f.View[i].Mul(p.Model)
}
