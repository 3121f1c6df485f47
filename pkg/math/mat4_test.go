package math

import (
	"math"
	"testing"
)

func TestIdentity(t *testing.T) {
	m := Identity()
	// Diagonal should be 1
	if m[0] != 1 || m[5] != 1 || m[10] != 1 || m[15] != 1 {
		t.Error("Identity diagonal should be 1")
	}
	// Off-diagonal should be 0
	if m[1] != 0 || m[4] != 0 {
		t.Error("Identity off-diagonal should be 0")
	}
}

func TestMulIdentity(t *testing.T) {
	m := Translate(1, 2, 3)
	result := m.Mul(Identity())

	for i := 0; i < 16; i++ {
		if result[i] != m[i] {
			t.Errorf("M * I should equal M, element %d: got %f, want %f", i, result[i], m[i])
		}
	}
}

func TestTransformPoint(t *testing.T) {
	m := Translate(10, 20, 30).Mul(Scale(2, 2, 2))
	got := m.TransformPoint(Vec3{1, 2, 3})
	want := Vec3{12, 24, 36}
	if got != want {
		t.Errorf("TransformPoint: got %v, want %v", got, want)
	}
}

func TestTransformMatrixMatchesMul(t *testing.T) {
	parent := Transform{
		Translation: Vec3{1, 0, 0},
		Rotation:    QuatFromAxisAngle(Vec3{0, 1, 0}, math.Pi/2),
		Scale:       Vec3{2, 2, 2},
	}
	child := Transform{
		Translation: Vec3{0, 0, 1},
		Rotation:    QuatFromAxisAngle(Vec3{1, 0, 0}, math.Pi/4),
		Scale:       Vec3One(),
	}

	viaTRS := parent.Mul(child).Matrix().TransformPoint(Vec3{0, 1, 0})
	viaMat := parent.Matrix().Mul(child.Matrix()).TransformPoint(Vec3{0, 1, 0})

	if !viaTRS.ApproxEqual(viaMat, 0.0001) {
		t.Errorf("composed transform %v differs from matrix product %v", viaTRS, viaMat)
	}
}
