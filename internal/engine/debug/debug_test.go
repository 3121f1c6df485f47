package debug

import (
	"testing"

	"github.com/Faultbox/midgard-anim/internal/engine/skeleton"
	"github.com/Faultbox/midgard-anim/pkg/math"
)

func restAt(x, y, z float32) math.Transform {
	return math.Transform{Translation: math.Vec3{X: x, Y: y, Z: z}, Rotation: math.QuatIdentity(), Scale: math.Vec3One()}
}

// arm is a root with a two-bone chain and a second root.
func arm() *skeleton.Pose {
	return skeleton.NewPose(skeleton.MustNew([]skeleton.Joint{
		{Name: "root", Parent: skeleton.NoParent, Rest: restAt(0, 1, 0)},
		{Name: "upper", Parent: 0, Rest: restAt(1, 0, 0)},
		{Name: "lower", Parent: 1, Rest: restAt(0, 0, -2)},
		{Name: "prop", Parent: skeleton.NoParent, Rest: restAt(-1, 0, 0)},
	}))
}

func TestBoneLines(t *testing.T) {
	got := BoneLines(arm())
	want := []float32{
		0, 1, 0, 1, 1, 0,
		1, 1, 0, 1, 1, -2,
	}
	if len(got) != len(want) {
		t.Fatalf("got %d floats, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("float %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestPoseBounds(t *testing.T) {
	p := arm()
	lo, hi := PoseBounds(p, 0)
	if lo != (math.Vec3{X: -1, Y: 0, Z: -2}) || hi != (math.Vec3{X: 1, Y: 1, Z: 0}) {
		t.Errorf("bounds = %v %v", lo, hi)
	}

	p.SetLocal(3, restAt(5, 5, 5))
	lo, hi = PoseBounds(p, 0.5)
	if lo != (math.Vec3{X: -0.5, Y: 0.5, Z: -2.5}) || hi != (math.Vec3{X: 5.5, Y: 5.5, Z: 5.5}) {
		t.Errorf("bounds after moving prop = %v %v", lo, hi)
	}
}

func TestBBoxWireframe(t *testing.T) {
	v := BBoxWireframe(math.Vec3{}, math.Vec3{X: 1, Y: 2, Z: 3})
	if len(v) != BBoxWireframeVertexCount*3 {
		t.Fatalf("got %d floats, want %d", len(v), BBoxWireframeVertexCount*3)
	}
	for i := 0; i < len(v); i += 3 {
		x, y, z := v[i], v[i+1], v[i+2]
		if (x != 0 && x != 1) || (y != 0 && y != 2) || (z != 0 && z != 3) {
			t.Errorf("vertex %d = (%v, %v, %v) is not a corner", i/3, x, y, z)
		}
	}
}
