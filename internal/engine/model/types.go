// Package model holds rig data (vertices, bones, morph targets) as delivered
// to the deformation pipeline, and validates it at load time.
package model

import "github.com/Faultbox/mmdvr/pkg/math"

// NoParent marks a root bone.
const NoParent = -1

// MaxInfluences is the number of bone slots per vertex.
const MaxInfluences = 4

// Vertex is a rest-pose vertex with up to four bone influences.
// Weights are used as given and are not normalized.
type Vertex struct {
	Position  math.Vec3
	Normal    math.Vec3
	UV        math.Vec2
	EdgeScale float32
	Bones     [MaxInfluences]uint32
	Weights   [MaxInfluences]float32

	// SDEF parameters. Only meaningful when SdefC is non-zero, in which
	// case the vertex is blended spherically between Bones[0] and Bones[1].
	SdefC  math.Vec3
	SdefR0 math.Vec3
	SdefR1 math.Vec3
}

// IsSdef reports whether the vertex opts into spherical blending.
func (v *Vertex) IsSdef() bool {
	return v.SdefC.LengthSq() > 0
}

// Bone is a node of the rest skeleton. Bones are addressed by index only;
// Name is kept for logs and errors.
type Bone struct {
	Name   string
	Parent int
	// Local is the rest transform relative to the parent bone.
	Local math.Mat4
	// InverseModel maps model space into this bone's rest frame.
	InverseModel math.Mat4
}

// MorphOffset displaces one vertex of a morph target.
type MorphOffset struct {
	Vertex uint32
	Offset math.Vec3
}

// MorphTarget is a sparse per-vertex displacement field.
type MorphTarget struct {
	Name    string
	Offsets []MorphOffset
}

// Bounds holds the axis-aligned bounding box of the rest pose.
type Bounds struct {
	Min math.Vec3
	Max math.Vec3
}

// Model is an immutable-topology rig. Only bone animation transforms and
// morph weights change per frame, and those live outside this type.
type Model struct {
	Name     string
	Vertices []Vertex
	Indices  []uint32
	Bones    []Bone
	Morphs   []MorphTarget
	Bounds   Bounds
}

// BindRestPose fills every bone's InverseModel from the chain of Local
// transforms. Parents must precede children.
func (m *Model) BindRestPose() {
	world := make([]math.Mat4, len(m.Bones))
	for i := range m.Bones {
		b := &m.Bones[i]
		if b.Parent == NoParent || b.Parent >= i || b.Parent < 0 {
			world[i] = b.Local
		} else {
			world[i] = world[b.Parent].Mul(b.Local)
		}
		b.InverseModel = world[i].Inverse()
	}
}

// ComputeBounds recalculates Bounds from the rest positions.
func (m *Model) ComputeBounds() {
	if len(m.Vertices) == 0 {
		m.Bounds = Bounds{}
		return
	}
	b := Bounds{Min: m.Vertices[0].Position, Max: m.Vertices[0].Position}
	for i := range m.Vertices {
		updateBounds(&b, m.Vertices[i].Position)
	}
	m.Bounds = b
}

func updateBounds(b *Bounds, p math.Vec3) {
	if p.X < b.Min.X {
		b.Min.X = p.X
	}
	if p.Y < b.Min.Y {
		b.Min.Y = p.Y
	}
	if p.Z < b.Min.Z {
		b.Min.Z = p.Z
	}
	if p.X > b.Max.X {
		b.Max.X = p.X
	}
	if p.Y > b.Max.Y {
		b.Max.Y = p.Y
	}
	if p.Z > b.Max.Z {
		b.Max.Z = p.Z
	}
}
