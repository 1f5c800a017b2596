// Package stereo maintains the per-eye transforms shared by every drawing
// stage. Index 0 is always the left eye and 1 the right eye.
package stereo

import (
	"fmt"
	gomath "math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/mmdvr/pkg/math"
)

const (
	Left  = 0
	Right = 1
	Eyes  = 2
)

// Fov holds the tangents of the four half-angles of an eye frustum as
// positive magnitudes.
type Fov struct {
	Left, Right, Up, Down float32
}

// SymmetricFov derives a centered frustum from a horizontal field of view
// (radians) and a width/height aspect ratio. The vertical angle is
// fovX/aspect, scaled linearly, so pixels are square only for narrow
// fields of view.
func SymmetricFov(fovX, aspect float32) Fov {
	tx := float32(gomath.Tan(float64(fovX) / 2))
	ty := float32(gomath.Tan(float64(fovX) / float64(aspect) / 2))
	return Fov{Left: tx, Right: tx, Up: ty, Down: ty}
}

// HorizontalAngle is the full horizontal field of view in radians.
func (f Fov) HorizontalAngle() float32 {
	return float32(gomath.Atan(float64(f.Left)) + gomath.Atan(float64(f.Right)))
}

// Raw packs the tangents as (left, right, up, down).
func (f Fov) Raw() math.Vec4 {
	return math.Vec4{f.Left, f.Right, f.Up, f.Down}
}

// Projection builds an OpenGL-convention off-axis projection.
func (f Fov) Projection(near, far float32) math.Mat4 {
	return math.Mat4(mgl32.Frustum(-f.Left*near, f.Right*near, -f.Down*near, f.Up*near, near, far))
}

// ClipConvention selects the clip-space target of projection matrices.
type ClipConvention int

const (
	// ClipOpenGL keeps y up and depth in [-1, 1].
	ClipOpenGL ClipConvention = iota
	// ClipVulkan flips y and maps depth to [0, 1].
	ClipVulkan
)

// ParseClip parses "opengl" or "vulkan".
func ParseClip(s string) (ClipConvention, error) {
	switch s {
	case "opengl", "":
		return ClipOpenGL, nil
	case "vulkan":
		return ClipVulkan, nil
	}
	return ClipOpenGL, fmt.Errorf("unknown clip convention %q", s)
}

// vulkanClip converts OpenGL clip space to Vulkan clip space.
var vulkanClip = math.Mat4{
	1, 0, 0, 0,
	0, -1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// Apply converts an OpenGL projection to this convention.
func (c ClipConvention) Apply(proj math.Mat4) math.Mat4 {
	if c == ClipVulkan {
		return vulkanClip.Mul(proj)
	}
	return proj
}

// EyePose places one eye relative to the head.
type EyePose struct {
	// Offset is the eye-to-head transform.
	Offset math.Mat4
	Fov    Fov
}

// DesktopEyes builds a non-VR eye pair from a horizontal field of view,
// separated by ipd meters along the head's x axis.
func DesktopEyes(fovX, aspect, ipd float32) [Eyes]EyePose {
	fov := SymmetricFov(fovX, aspect)
	return [Eyes]EyePose{
		Left:  {Offset: math.Translate(-ipd/2, 0, 0), Fov: fov},
		Right: {Offset: math.Translate(ipd/2, 0, 0), Fov: fov},
	}
}
