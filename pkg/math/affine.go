package math

// Affine is a 4x3 affine transform: three linear columns followed by the
// translation column, column-major. There is no projective row.
type Affine [12]float32

// AffineIdentity returns the identity transform.
func AffineIdentity() Affine {
	return Affine{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
		0, 0, 0,
	}
}

// AffineFromMat4 drops the bottom row of m.
func AffineFromMat4(m Mat4) Affine {
	return Affine{
		m[0], m[1], m[2],
		m[4], m[5], m[6],
		m[8], m[9], m[10],
		m[12], m[13], m[14],
	}
}

// Mat4 expands the transform with a (0,0,0,1) bottom row.
func (a Affine) Mat4() Mat4 {
	return Mat4{
		a[0], a[1], a[2], 0,
		a[3], a[4], a[5], 0,
		a[6], a[7], a[8], 0,
		a[9], a[10], a[11], 1,
	}
}

// Add returns the element-wise sum.
func (a Affine) Add(b Affine) Affine {
	for i := range a {
		a[i] += b[i]
	}
	return a
}

// Sub returns the element-wise difference.
func (a Affine) Sub(b Affine) Affine {
	for i := range a {
		a[i] -= b[i]
	}
	return a
}

// Scale multiplies every element by s.
func (a Affine) Scale(s float32) Affine {
	for i := range a {
		a[i] *= s
	}
	return a
}

// TransformPoint applies the transform to p with w=1.
func (a Affine) TransformPoint(p Vec3) Vec3 {
	return Vec3{
		a[0]*p.X + a[3]*p.Y + a[6]*p.Z + a[9],
		a[1]*p.X + a[4]*p.Y + a[7]*p.Z + a[10],
		a[2]*p.X + a[5]*p.Y + a[8]*p.Z + a[11],
	}
}

// TransformVector applies only the linear part (w=0).
func (a Affine) TransformVector(v Vec3) Vec3 {
	return Vec3{
		a[0]*v.X + a[3]*v.Y + a[6]*v.Z,
		a[1]*v.X + a[4]*v.Y + a[7]*v.Z,
		a[2]*v.X + a[5]*v.Y + a[8]*v.Z,
	}
}

// Linear returns the 3x3 linear part.
func (a Affine) Linear() Mat3 {
	var m Mat3
	copy(m[:], a[:9])
	return m
}

// Translation returns the translation column.
func (a Affine) Translation() Vec3 {
	return Vec3{a[9], a[10], a[11]}
}

// Mul composes a after b (a * b).
func (a Affine) Mul(b Affine) Affine {
	l := a.Linear().Mul(b.Linear())
	t := a.TransformPoint(b.Translation())
	var out Affine
	copy(out[:9], l[:])
	out[9], out[10], out[11] = t.X, t.Y, t.Z
	return out
}

// IsFinite reports whether every element is finite.
func (a Affine) IsFinite() bool {
	for _, f := range a {
		if !finite(f) {
			return false
		}
	}
	return true
}
