// Package skeleton evaluates the bone hierarchy into the per-frame bone
// palette consumed by skinning.
package skeleton

import (
	"fmt"

	"github.com/Faultbox/mmdvr/internal/engine/buffer"
	"github.com/Faultbox/mmdvr/internal/engine/model"
	"github.com/Faultbox/mmdvr/pkg/math"
)

// Skeleton holds the animation state of one model. It is owned by the
// animation writer; readers only see the palettes it evaluates.
type Skeleton struct {
	bones    []model.Bone
	anim     []math.Mat4
	override []math.Mat4
	hasOver  []bool
	world    []math.Mat4
	scratch  []math.Mat4
}

// New creates a skeleton in its rest pose.
func New(m *model.Model) *Skeleton {
	n := len(m.Bones)
	s := &Skeleton{
		bones:    m.Bones,
		anim:     make([]math.Mat4, n),
		override: make([]math.Mat4, n),
		hasOver:  make([]bool, n),
		world:    make([]math.Mat4, n),
		scratch:  make([]math.Mat4, n),
	}
	s.Reset()
	return s
}

// Len is the number of bones.
func (s *Skeleton) Len() int { return len(s.bones) }

// Reset returns every bone to its rest pose and drops overrides.
func (s *Skeleton) Reset() {
	for i := range s.anim {
		s.anim[i] = math.Identity()
		s.hasOver[i] = false
	}
}

// SetAnimation sets bone i's animation transform, applied after its local
// rest transform.
func (s *Skeleton) SetAnimation(i int, m math.Mat4) {
	s.anim[i] = m
}

// SetRotation sets bone i's animation to a rotation and translation.
func (s *Skeleton) SetRotation(i int, q math.Quat, t math.Vec3) {
	s.anim[i] = math.Translate(t.X, t.Y, t.Z).Mul(q.ToMat4())
}

// SetOverride replaces bone i's model-space transform, typically with a
// physics result. Children still inherit from it.
func (s *Skeleton) SetOverride(i int, m math.Mat4) {
	s.override[i] = m
	s.hasOver[i] = true
}

// ClearOverride drops bone i's override.
func (s *Skeleton) ClearOverride(i int) {
	s.hasOver[i] = false
}

// World returns bone i's model-space transform from the last Evaluate.
func (s *Skeleton) World(i int) math.Mat4 {
	return s.world[i]
}

// Evaluate computes world transforms (parent * local * anim; roots use
// local * anim) and writes palette entries world * inverseModel into dst,
// with each entry's orientation packed into its bottom row.
func (s *Skeleton) Evaluate(dst buffer.Store[math.Mat4]) error {
	for i := range s.bones {
		b := &s.bones[i]
		switch {
		case s.hasOver[i]:
			s.world[i] = s.override[i]
		case b.Parent == model.NoParent:
			s.world[i] = b.Local.Mul(s.anim[i])
		default:
			s.world[i] = s.world[b.Parent].Mul(b.Local).Mul(s.anim[i])
		}
		p := s.world[i].Mul(b.InverseModel)
		s.scratch[i] = math.PackQuat(p, Orientation(p))
	}
	if err := dst.Set(s.scratch); err != nil {
		return fmt.Errorf("bone palette: %w", err)
	}
	return nil
}

// Orientation extracts the rotation of m's linear part. Scale is removed
// per column first; a collapsed column yields the identity.
func Orientation(m math.Mat4) math.Quat {
	l := m.Mat3()
	c0, c1, c2 := l.Column(0).Normalize(), l.Column(1).Normalize(), l.Column(2).Normalize()
	if c0.LengthSq() == 0 || c1.LengthSq() == 0 || c2.LengthSq() == 0 {
		return math.QuatIdentity()
	}
	return math.QuatFromMat3(math.Mat3FromColumns(c0, c1, c2))
}
