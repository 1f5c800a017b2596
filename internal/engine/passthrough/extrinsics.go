package passthrough

import (
	"fmt"

	"github.com/Faultbox/mmdvr/internal/engine/stereo"
	"github.com/Faultbox/mmdvr/pkg/math"
)

// flipXZ negates the x and z rows of every column. Calibration axes use
// the camera's convention, the renderer looks down -z.
var flipXZ = math.Mat3{
	-1, 1, -1,
	-1, 1, -1,
	-1, 1, -1,
}

// Extrinsics builds the head-to-camera rotation from the calibrated +x
// (right) and +z (back) axes of a camera.
func Extrinsics(right, back math.Vec3) (math.Mat3, error) {
	basis := math.Mat3FromColumns(right, back.Cross(right), back)
	for i := range basis {
		basis[i] *= flipXZ[i]
	}
	inv, ok := basis.Inverse()
	if !ok {
		return math.Mat3{}, fmt.Errorf("%w: singular camera basis right=%v back=%v", ErrCalibration, right, back)
	}
	return inv, nil
}

// Shift is the per-eye transform applied to view rays: the head rotation
// since the camera frame was captured followed by the camera extrinsics.
func Shift(captured, current math.Quat, extrinsics math.Mat3) math.Mat4 {
	delta := captured.Normalize().Conjugate().Mul(current.Normalize())
	return math.FromMat3(delta.ToMat3().Mul(extrinsics))
}

// Rig tracks both cameras' extrinsics and the head orientation at the
// time the current camera frame was captured. It is written once per frame
// by the frame driver.
type Rig struct {
	extrinsics [stereo.Eyes]math.Mat3
	captured   math.Quat
}

// NewRig derives extrinsics for both cameras of a calibration.
func NewRig(cal *Calibration) (*Rig, error) {
	r := &Rig{captured: math.QuatIdentity()}
	for eye := range cal.Eyes {
		ext, err := Extrinsics(math.V3(cal.Eyes[eye].Right), math.V3(cal.Eyes[eye].Back))
		if err != nil {
			return nil, fmt.Errorf("%s eye: %w", eyeName(eye), err)
		}
		r.extrinsics[eye] = ext
	}
	return r, nil
}

// Extrinsics returns one camera's head-to-camera rotation.
func (r *Rig) Extrinsics(eye int) math.Mat3 {
	return r.extrinsics[eye]
}

// FrameCaptured records the head orientation of a newly captured camera
// frame.
func (r *Rig) FrameCaptured(head math.Quat) {
	r.captured = head
}

// Shifts returns both eyes' shift transforms for the current head pose.
func (r *Rig) Shifts(head math.Quat) [stereo.Eyes]math.Mat4 {
	var out [stereo.Eyes]math.Mat4
	for eye := range out {
		out[eye] = Shift(r.captured, head, r.extrinsics[eye])
	}
	return out
}

func eyeName(eye int) string {
	if eye == stereo.Left {
		return "left"
	}
	return "right"
}
