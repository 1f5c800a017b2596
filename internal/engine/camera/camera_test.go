package camera

import (
	"testing"

	"github.com/Faultbox/mmdvr/internal/engine/model"
	"github.com/Faultbox/mmdvr/pkg/math"
)

func TestHeadPoseInvertsView(t *testing.T) {
	c := NewOrbitCamera()
	c.HandleDrag(120, -40)
	head := c.HeadPose()

	if p := head.TransformVec3(math.Vec3{}); p.Sub(c.Position()).Length() > 1e-5 {
		t.Errorf("head origin = %v, want %v", p, c.Position())
	}
	// The head looks down its -Z axis at the center.
	fwd := head.RotateVec3(math.Vec3{Z: -1})
	want := c.Center.Sub(c.Position()).Normalize()
	if fwd.Sub(want).Length() > 1e-5 {
		t.Errorf("forward = %v, want %v", fwd, want)
	}
}

func TestPitchClamp(t *testing.T) {
	c := NewOrbitCamera()
	c.HandleDrag(0, 1e6)
	if c.RotationX != c.MaxPitch {
		t.Errorf("pitch = %v, want %v", c.RotationX, c.MaxPitch)
	}
}

func TestZoomClamp(t *testing.T) {
	c := NewOrbitCamera()
	c.HandleZoom(100)
	if c.Distance != c.MinDistance {
		t.Errorf("distance = %v, want %v", c.Distance, c.MinDistance)
	}
}

func TestFitToBounds(t *testing.T) {
	c := NewOrbitCamera()
	c.FitToBounds(model.Bounds{Min: math.Vec3{X: -1, Y: 0, Z: -1}, Max: math.Vec3{X: 1, Y: 4, Z: 1}})
	if c.Center != (math.Vec3{Y: 2}) {
		t.Errorf("center = %v", c.Center)
	}
	if c.Distance != 6 {
		t.Errorf("distance = %v, want 6", c.Distance)
	}
}
