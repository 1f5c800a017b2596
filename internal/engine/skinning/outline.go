package skinning

import (
	gomath "math"

	"github.com/Faultbox/mmdvr/pkg/math"
)

// OutlineScale is the per-draw outline width for a horizontal field of view
// fovX (radians): one pixel at unit distance times the edge size.
func OutlineScale(fovX, pixelScale, edgeScale float32) float32 {
	return float32(gomath.Tan(float64(fovX)/2)) * 2 * pixelScale * edgeScale
}

// Outline pushes a posed vertex outwards along its view-space normal for the
// silhouette draw. The push grows with the vertex's distance from the eye,
// not its depth along the view axis, so off-axis vertices get the same
// angular width as centered ones. modelView must not contain non-uniform
// scale.
func Outline(p Posed, modelView math.Mat4, edgeScale, outlineScale float32) math.Vec3 {
	posView := modelView.TransformVec3(p.Position)
	normalView := modelView.RotateVec3(p.Normal).Normalize()
	return posView.Add(normalView.Scale(edgeScale * outlineScale * posView.Length()))
}
