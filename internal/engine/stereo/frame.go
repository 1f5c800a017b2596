package stereo

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/mmdvr/internal/engine/std140"
	"github.com/Faultbox/mmdvr/pkg/math"
)

// CommonsSize is the std140 size of the Commons block.
const CommonsSize = 304

// Frame is the Commons block: one consistent set of per-eye transforms for
// a rendered frame. It is built once and never changed afterwards.
type Frame struct {
	Projection     [Eyes]math.Mat4
	View           [Eyes]math.Mat4
	LightDirection [Eyes]math.Vec4
	Ambient        float32
}

// Marshal serializes the Frame in std140 layout:
// projection[2] at 0, view[2] at 128, light_direction[2] at 256,
// ambient at 288.
func (f *Frame) Marshal() []byte {
	w := std140.NewWriter(CommonsSize)
	for _, m := range f.Projection {
		w.Mat4(m)
	}
	for _, m := range f.View {
		w.Mat4(m)
	}
	for _, v := range f.LightDirection {
		w.Vec4(v)
	}
	w.Float(f.Ambient)
	return w.Bytes()
}

// Options configures a Builder.
type Options struct {
	Near, Far      float32
	Clip           ClipConvention
	LightDirection math.Vec3
	Ambient        float32
}

// DefaultOptions returns the stock light and clip settings.
func DefaultOptions() Options {
	return Options{
		Near:           0.1,
		Far:            100,
		Clip:           ClipOpenGL,
		LightDirection: math.Vec3{X: 0.5, Y: -0.5, Z: -1.5},
		Ambient:        0.25,
	}
}

// Builder turns a tracked head pose into Frames.
type Builder struct {
	opts Options
	eyes [Eyes]EyePose
	// light is the normalized world-space light direction.
	light math.Vec4
}

// NewBuilder creates a builder for a fixed eye configuration.
func NewBuilder(opts Options, eyes [Eyes]EyePose) *Builder {
	return &Builder{
		opts:  opts,
		eyes:  eyes,
		light: math.Direction(opts.LightDirection.Normalize()),
	}
}

// Eyes returns the eye configuration.
func (b *Builder) Eyes() [Eyes]EyePose { return b.eyes }

// SetEyes replaces the eye configuration, for runtimes that report IPD or
// FOV changes.
func (b *Builder) SetEyes(eyes [Eyes]EyePose) { b.eyes = eyes }

// Build computes a Frame for the head-to-world transform head.
func (b *Builder) Build(head math.Mat4) Frame {
	f := Frame{Ambient: b.opts.Ambient}
	for i, eye := range b.eyes {
		eyeToWorld := mgl32.Mat4(head).Mul4(mgl32.Mat4(eye.Offset))
		f.View[i] = math.Mat4(eyeToWorld.Inv())
		f.Projection[i] = b.opts.Clip.Apply(eye.Fov.Projection(b.opts.Near, b.opts.Far))
		f.LightDirection[i] = f.View[i].MulVec4(b.light)
	}
	return f
}
