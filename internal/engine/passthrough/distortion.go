// Package passthrough maps output pixels of each eye back into the stereo
// fisheye camera frame so the camera image can be drawn as a background
// plate behind the model.
package passthrough

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/mmdvr/pkg/math"
)

// minRadius is the image-plane radius below which the radial ratio is
// replaced by its limit.
const minRadius = 1e-7

// Coeffs are the four fisheye polynomial coefficients k0..k3.
type Coeffs [4]float32

// Distort maps an undistorted angle theta to the distorted angle
// theta·(1 + k0θ² + k1θ⁴ + k2θ⁶ + k3θ⁸).
func (c Coeffs) Distort(theta float32) float32 {
	t2 := theta * theta
	poly := 1 + t2*(c[0]+t2*(c[1]+t2*(c[2]+t2*c[3])))
	return theta * poly
}

// RadialRatio is θ'/r for an image-plane radius r. At r = 0 it returns the
// limit 1.
func (c Coeffs) RadialRatio(r float32) float32 {
	if r < minRadius {
		return 1
	}
	return c.Distort(math32.Atan(r)) / r
}

// Distortion applies the fisheye model to a point on the z = 1 image plane.
func (c Coeffs) Distortion(p math.Vec2) math.Vec2 {
	return p.Scale(c.RadialRatio(p.Length()))
}

// IsZero reports whether every coefficient is zero.
func (c Coeffs) IsZero() bool {
	return c == Coeffs{}
}
