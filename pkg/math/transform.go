package math

// Transform is a translation, rotation and scale applied in S, R, T order.
type Transform struct {
	Translation Vec3
	Rotation    Quat
	Scale       Vec3
}

// TransformIdentity returns the transform that leaves points unchanged.
func TransformIdentity() Transform {
	return Transform{Rotation: QuatIdentity(), Scale: Vec3One()}
}

// Mul composes t (parent) with child, returning the child expressed in
// t's parent space. Non-uniform scale is propagated component-wise and
// never produces shear.
func (t Transform) Mul(child Transform) Transform {
	return Transform{
		Translation: t.Translation.Add(t.Rotation.Rotate(t.Scale.Mul(child.Translation))),
		Rotation:    t.Rotation.Mul(child.Rotation).Normalize(),
		Scale:       t.Scale.Mul(child.Scale),
	}
}

// Lerp blends two transforms: translation and scale linearly, rotation by
// shortest-arc slerp. w<=0 returns t and w>=1 returns other exactly.
func (t Transform) Lerp(other Transform, w float32) Transform {
	if w <= 0 {
		return t
	}
	if w >= 1 {
		return other
	}
	return Transform{
		Translation: t.Translation.Lerp(other.Translation, w),
		Rotation:    t.Rotation.Slerp(other.Rotation, w),
		Scale:       t.Scale.Lerp(other.Scale, w),
	}
}

// Delta returns d such that t.AddDelta(d, 1) reproduces target.
func (t Transform) Delta(target Transform) Transform {
	return Transform{
		Translation: target.Translation.Sub(t.Translation),
		Rotation:    t.Rotation.Conjugate().Mul(target.Rotation).Normalize(),
		Scale:       target.Scale.Div(t.Scale),
	}
}

// AddDelta applies an additive delta scaled by weight w in [0, 1].
func (t Transform) AddDelta(d Transform, w float32) Transform {
	if w <= 0 {
		return t
	}
	rot := d.Rotation
	scale := d.Scale
	if w < 1 {
		rot = QuatIdentity().Slerp(d.Rotation, w)
		scale = Vec3One().Lerp(d.Scale, w)
	}
	return Transform{
		Translation: t.Translation.Add(d.Translation.Scale(w)),
		Rotation:    t.Rotation.Mul(rot).Normalize(),
		Scale:       t.Scale.Mul(scale),
	}
}

// Matrix returns the column-major matrix T * R * S.
func (t Transform) Matrix() Mat4 {
	m := t.Rotation.ToMat4()
	for col := 0; col < 3; col++ {
		s := [3]float32{t.Scale.X, t.Scale.Y, t.Scale.Z}[col]
		m[col*4+0] *= s
		m[col*4+1] *= s
		m[col*4+2] *= s
	}
	m[12] = t.Translation.X
	m[13] = t.Translation.Y
	m[14] = t.Translation.Z
	return m
}

// ApproxEqual compares all three components within eps.
func (t Transform) ApproxEqual(other Transform, eps float32) bool {
	return t.Translation.ApproxEqual(other.Translation, eps) &&
		t.Rotation.ApproxEqual(other.Rotation, eps) &&
		t.Scale.ApproxEqual(other.Scale, eps)
}
