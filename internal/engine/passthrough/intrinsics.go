package passthrough

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/Faultbox/mmdvr/internal/engine/std140"
	"github.com/Faultbox/mmdvr/internal/engine/stereo"
	"github.com/Faultbox/mmdvr/pkg/math"
)

// IntrinsicsSize is the std140 size of the two-eye intrinsics block:
//
//	rawproj[2] vec4    0
//	focal      vec4   32  (left.xy, right.xy)
//	coeffs[2]  vec4   48
//	scale      vec4   80  (left.xy, right.xy)
//	center     vec4   96  (left.xy, right.xy)
const IntrinsicsSize = 112

// Intrinsics is one camera's calibration normalized to texture space.
// Focal is in units of the camera image, Scale converts the camera image
// to the frame and Center is the principal point within the frame.
type Intrinsics struct {
	Focal  math.Vec2
	Scale  math.Vec2
	Center math.Vec2
	Coeffs Coeffs
}

// Project maps a distorted image-plane point to a frame texture coordinate.
func (in Intrinsics) Project(q math.Vec2) math.Vec2 {
	return q.Mul(in.Focal).Mul(in.Scale).Add(in.Center)
}

// Undistort maps a point of an eye's output image to a frame texture
// coordinate. screen is in [0,1]² with v pointing up, raw holds the eye's
// projection tangents and shift rotates the view ray into the camera. ok is
// false when the ray does not hit the camera's front hemisphere.
func (in Intrinsics) Undistort(raw stereo.Fov, shift math.Mat4, screen math.Vec2) (uv math.Vec2, ok bool) {
	ray := math.Vec3{
		X: lerp(-raw.Left, raw.Right, screen.X),
		Y: lerp(-raw.Down, raw.Up, screen.Y),
		Z: -1,
	}
	ray = shift.Mat3().MulVec3(ray)
	if ray.Z >= 0 {
		return math.Vec2{}, false
	}
	// Image rows grow downwards.
	p := math.Vec2{X: ray.X / -ray.Z, Y: -ray.Y / -ray.Z}
	return in.Project(in.Coeffs.Distortion(p)), true
}

// FovSpec describes a camera by its horizontal and diagonal field of view
// in radians instead of raw projection bounds.
type FovSpec struct {
	Horizontal float32
	Diagonal   float32
}

// Tangents returns the horizontal and vertical half-angle tangents.
func (f FovSpec) Tangents() math.Vec2 {
	tx := math32.Tan(f.Horizontal / 2)
	td := math32.Tan(f.Diagonal / 2)
	return math.Vec2{X: tx, Y: math32.Sqrt(math32.Max(td*td-tx*tx, 0))}
}

// Validate checks that both angles are in (0, π) and the diagonal is at
// least as wide as the horizontal.
func (f FovSpec) Validate() error {
	if !(f.Horizontal > 0 && f.Horizontal < math32.Pi) || !(f.Diagonal >= f.Horizontal && f.Diagonal < math32.Pi) {
		return fmt.Errorf("%w: field of view %v horizontal, %v diagonal", ErrCalibration, f.Horizontal, f.Diagonal)
	}
	return nil
}

// Raw returns the symmetric projection tangents the field of view spans.
func (f FovSpec) Raw() stereo.Fov {
	t := f.Tangents()
	return stereo.Fov{Left: t.X, Right: t.X, Up: t.Y, Down: t.Y}
}

// UndistortFov maps normalized device coordinates in [-1,1]² straight onto
// the image plane through the field of view, then applies the same
// distortion and projection as Undistort.
func (in Intrinsics) UndistortFov(fov FovSpec, ndc math.Vec2) math.Vec2 {
	p := ndc.Mul(fov.Tangents())
	p.Y = -p.Y
	return in.Project(in.Coeffs.Distortion(p))
}

// MarshalIntrinsics encodes both eyes as one std140 block.
func MarshalIntrinsics(raw [stereo.Eyes]stereo.Fov, eyes [stereo.Eyes]Intrinsics) []byte {
	l, r := eyes[stereo.Left], eyes[stereo.Right]
	w := std140.NewWriter(IntrinsicsSize)
	w.Vec4(raw[stereo.Left].Raw()).Vec4(raw[stereo.Right].Raw())
	w.Vec4(pair(l.Focal, r.Focal))
	w.Vec4(math.Vec4(l.Coeffs)).Vec4(math.Vec4(r.Coeffs))
	w.Vec4(pair(l.Scale, r.Scale))
	w.Vec4(pair(l.Center, r.Center))
	return w.Bytes()
}

func pair(a, b math.Vec2) math.Vec4 {
	return math.Vec4{a.X, a.Y, b.X, b.Y}
}

func lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}
