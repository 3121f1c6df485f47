package skeleton

import (
	"math/rand"
	"testing"

	"github.com/Faultbox/midgard-anim/pkg/math"
)

// branching builds root -> {a -> a1, b -> b1 -> b2}.
func branching() *Skeleton {
	rest := func(x, y float32) math.Transform {
		return math.Transform{
			Translation: math.Vec3{X: x, Y: y},
			Rotation:    math.QuatIdentity(),
			Scale:       math.Vec3One(),
		}
	}
	return MustNew([]Joint{
		{Name: "root", Parent: NoParent, Rest: rest(0, 0)},
		{Name: "a", Parent: 0, Rest: rest(1, 0)},
		{Name: "b", Parent: 0, Rest: rest(-1, 0)},
		{Name: "a1", Parent: 1, Rest: rest(0, 1)},
		{Name: "b1", Parent: 2, Rest: rest(0, 1)},
		{Name: "b2", Parent: 4, Rest: rest(0, 1)},
	})
}

// worldFromScratch composes the ancestor chain without any caching.
func worldFromScratch(p *Pose, i int) math.Transform {
	parent := p.Skeleton().Parent(i)
	if parent == NoParent {
		return p.Local(i)
	}
	return worldFromScratch(p, parent).Mul(p.Local(i))
}

func randomTransform(rng *rand.Rand) math.Transform {
	axis := math.Vec3{X: rng.Float32() - 0.5, Y: rng.Float32() - 0.5, Z: rng.Float32() - 0.5}.Normalize()
	return math.Transform{
		Translation: math.Vec3{X: rng.Float32(), Y: rng.Float32(), Z: rng.Float32()},
		Rotation:    math.QuatFromAxisAngle(axis, rng.Float32()*3),
		Scale:       math.Vec3{X: 0.5 + rng.Float32(), Y: 0.5 + rng.Float32(), Z: 0.5 + rng.Float32()},
	}
}

func TestNewPoseIsRest(t *testing.T) {
	s := branching()
	p := NewPose(s)
	for i := 0; i < s.Len(); i++ {
		if p.Local(i) != s.Rest(i) {
			t.Errorf("joint %d local = %+v, want rest", i, p.Local(i))
		}
	}
	// b2 = root(0,0) + b(-1,0) + b1(0,1) + b2(0,1)
	want := math.Vec3{X: -1, Y: 2}
	if got := p.World(5).Translation; !got.ApproxEqual(want, 1e-6) {
		t.Errorf("b2 world translation = %v, want %v", got, want)
	}
}

func TestWorldCacheMatchesRecompute(t *testing.T) {
	s := branching()
	p := NewPose(s)
	rng := rand.New(rand.NewSource(3))

	for step := 0; step < 200; step++ {
		// Interleave writes and reads in random order.
		if rng.Intn(2) == 0 {
			p.SetLocal(rng.Intn(s.Len()), randomTransform(rng))
			continue
		}
		i := rng.Intn(s.Len())
		got := p.World(i)
		want := worldFromScratch(p, i)
		if !got.ApproxEqual(want, 1e-4) {
			t.Fatalf("step %d joint %d: cached %+v, recomputed %+v", step, i, got, want)
		}
	}
}

func TestDirtyIndex(t *testing.T) {
	p := NewPose(branching())
	if p.DirtyIndex() != 0 {
		t.Fatalf("new pose dirty = %d, want 0", p.DirtyIndex())
	}

	p.World(3)
	if p.DirtyIndex() != 4 {
		t.Errorf("after World(3) dirty = %d, want 4", p.DirtyIndex())
	}

	p.SetLocal(4, math.TransformIdentity())
	if p.DirtyIndex() != 4 {
		t.Errorf("writing joint 4 should keep dirty at 4, got %d", p.DirtyIndex())
	}

	p.SetLocal(1, math.TransformIdentity())
	if p.DirtyIndex() != 1 {
		t.Errorf("writing joint 1 should lower dirty to 1, got %d", p.DirtyIndex())
	}

	// Reading a clean joint leaves the index alone.
	p.World(0)
	if p.DirtyIndex() != 1 {
		t.Errorf("reading clean joint 0 changed dirty to %d", p.DirtyIndex())
	}
}

func TestWorldIdempotent(t *testing.T) {
	p := NewPose(branching())
	p.SetLocal(2, randomTransform(rand.New(rand.NewSource(9))))
	first := p.World(5)
	for i := 0; i < 3; i++ {
		if got := p.World(5); got != first {
			t.Fatalf("repeated World(5) changed: %+v vs %+v", got, first)
		}
	}
}

func TestBlend(t *testing.T) {
	s := branching()
	a, b, out := NewPose(s), NewPose(s), NewPose(s)
	rng := rand.New(rand.NewSource(5))
	for i := 0; i < s.Len(); i++ {
		a.SetLocal(i, randomTransform(rng))
		b.SetLocal(i, randomTransform(rng))
	}

	out.Blend(a, b, 0)
	for i := 0; i < s.Len(); i++ {
		if out.Local(i) != a.Local(i) {
			t.Errorf("w=0 joint %d should equal a exactly", i)
		}
	}
	out.Blend(a, b, 1)
	for i := 0; i < s.Len(); i++ {
		if out.Local(i) != b.Local(i) {
			t.Errorf("w=1 joint %d should equal b exactly", i)
		}
	}

	out.Blend(a, b, 0.5)
	for i := 0; i < s.Len(); i++ {
		want := a.Local(i).Translation.Lerp(b.Local(i).Translation, 0.5)
		if !out.Local(i).Translation.ApproxEqual(want, 1e-5) {
			t.Errorf("w=0.5 joint %d translation = %v, want %v", i, out.Local(i).Translation, want)
		}
	}
	if out.DirtyIndex() != 0 {
		t.Error("blend should invalidate the world cache")
	}
}

func TestAddRelativeToRest(t *testing.T) {
	s := branching()
	base := NewPose(s)
	layer := NewPose(s)

	moved := s.Rest(1)
	moved.Translation = moved.Translation.Add(math.Vec3{Z: 3})
	layer.SetLocal(1, moved)

	base.SetLocal(1, math.Transform{Translation: math.Vec3{X: 5}, Rotation: math.QuatIdentity(), Scale: math.Vec3One()})
	base.AddRelativeToRest(layer)

	want := math.Vec3{X: 5, Z: 3}
	if got := base.Local(1).Translation; !got.ApproxEqual(want, 1e-6) {
		t.Errorf("joint 1 translation = %v, want %v", got, want)
	}
	if base.Local(3) != s.Rest(3) {
		t.Errorf("joint at rest in the layer should be unchanged, got %+v", base.Local(3))
	}
}

func TestPoseIndexPanics(t *testing.T) {
	p := NewPose(branching())
	defer func() {
		if recover() == nil {
			t.Error("expected panic for out of range joint")
		}
	}()
	p.World(6)
}
