package model

import (
	"fmt"
	gomath "math"

	"github.com/Faultbox/mmdvr/pkg/math"
)

// TubeOptions describes a procedural test rig: a capped-less cylinder along
// +Y driven by a chain of bones.
type TubeOptions struct {
	Name   string
	Bones  int // chain length
	Rings  int // rings per bone segment
	Sides  int
	Radius float32
	Length float32
	// Sdef enables spherical blending on two-bone joint vertices.
	Sdef bool
}

// DefaultTubeOptions returns a small three-bone arm.
func DefaultTubeOptions() TubeOptions {
	return TubeOptions{
		Name:   "tube",
		Bones:  3,
		Rings:  4,
		Sides:  12,
		Radius: 0.1,
		Length: 1.2,
		Sdef:   true,
	}
}

// BuildTube creates a skinned tube with two morph targets, "bulge" and
// "stretch". Returns nil if the options describe an empty mesh.
func BuildTube(opts TubeOptions) *Model {
	if opts.Bones < 1 || opts.Rings < 1 || opts.Sides < 3 || opts.Length <= 0 {
		return nil
	}

	m := &Model{Name: opts.Name}
	seg := opts.Length / float32(opts.Bones)

	for i := 0; i < opts.Bones; i++ {
		b := Bone{Name: boneName(i), Parent: i - 1, Local: math.Translate(0, seg, 0)}
		if i == 0 {
			b.Parent = NoParent
			b.Local = math.Identity()
		}
		m.Bones = append(m.Bones, b)
	}
	m.BindRestPose()

	rings := opts.Bones*opts.Rings + 1
	for r := 0; r < rings; r++ {
		y := opts.Length * float32(r) / float32(rings-1)
		bones, weights, joint := ringWeights(y/seg, opts.Bones)

		for s := 0; s < opts.Sides; s++ {
			a := 2 * gomath.Pi * float64(s) / float64(opts.Sides)
			v := Vertex{
				Position: math.Vec3{
					X: opts.Radius * float32(gomath.Cos(a)),
					Y: y,
					Z: opts.Radius * float32(gomath.Sin(a)),
				},
				UV:        math.Vec2{X: float32(s) / float32(opts.Sides), Y: float32(r) / float32(rings-1)},
				EdgeScale: 1,
				Bones:     bones,
				Weights:   weights,
			}
			if opts.Sdef && joint > 0 {
				c := math.Vec3{Y: float32(joint) * seg}
				v.SdefC, v.SdefR0, v.SdefR1 = c, c, c
			}
			m.Vertices = append(m.Vertices, v)
		}
	}

	sides := uint32(opts.Sides)
	for r := uint32(0); r < uint32(rings-1); r++ {
		for s := uint32(0); s < sides; s++ {
			a := r*sides + s
			b := r*sides + (s+1)%sides
			c := (r+1)*sides + s
			d := (r+1)*sides + (s+1)%sides
			m.Indices = append(m.Indices, a, c, b, b, c, d)
		}
	}

	AccumulateNormals(m.Vertices, m.Indices)
	m.ComputeBounds()

	mid := opts.Length / 2
	var bulge, stretch MorphTarget
	bulge.Name, stretch.Name = "bulge", "stretch"
	for i := range m.Vertices {
		p := m.Vertices[i].Position
		if d := abs32(p.Y - mid); d < opts.Length/4 {
			falloff := 1 - d/(opts.Length/4)
			radial := math.Vec3{X: p.X, Z: p.Z}.Normalize()
			bulge.Offsets = append(bulge.Offsets, MorphOffset{
				Vertex: uint32(i),
				Offset: radial.Scale(0.5 * opts.Radius * falloff),
			})
		}
		if p.Y >= opts.Length-seg/2 {
			stretch.Offsets = append(stretch.Offsets, MorphOffset{
				Vertex: uint32(i),
				Offset: math.Vec3{Y: 0.25 * seg},
			})
		}
	}
	m.Morphs = []MorphTarget{bulge, stretch}

	return m
}

// ringWeights blends linearly across each joint. joint is the index of the
// child bone of the blended pair, or 0 when a single bone owns the ring.
func ringWeights(t float32, numBones int) (bones [MaxInfluences]uint32, weights [MaxInfluences]float32, joint int) {
	j := int(gomath.Round(float64(t)))
	d := t - float32(j)
	if j >= 1 && j < numBones && abs32(d) < 0.5 {
		bones[0], bones[1] = uint32(j-1), uint32(j)
		weights[0], weights[1] = 0.5-d, 0.5+d
		return bones, weights, j
	}
	b := int(t)
	if b >= numBones {
		b = numBones - 1
	}
	bones[0] = uint32(b)
	weights[0] = 1
	return bones, weights, 0
}

// AccumulateNormals sets each vertex normal to the normalized sum of the
// face normals of the triangles sharing it. Degenerate triangles are skipped.
func AccumulateNormals(vertices []Vertex, indices []uint32) {
	sums := make([]math.Vec3, len(vertices))
	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
		v0 := vertices[i0].Position
		e1 := vertices[i1].Position.Sub(v0)
		e2 := vertices[i2].Position.Sub(v0)
		n := e1.Cross(e2)
		if n.Length() < 1e-10 {
			continue
		}
		n = n.Normalize()
		sums[i0] = sums[i0].Add(n)
		sums[i1] = sums[i1].Add(n)
		sums[i2] = sums[i2].Add(n)
	}
	for i := range vertices {
		n := sums[i].Normalize()
		if n.LengthSq() == 0 {
			n = math.Vec3{Y: 1}
		}
		vertices[i].Normal = n
	}
}

func boneName(i int) string {
	return fmt.Sprintf("bone%d", i)
}
