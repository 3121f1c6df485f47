package player

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Faultbox/midgard-anim/internal/engine/animgraph"
	"github.com/Faultbox/midgard-anim/internal/engine/clip"
	"github.com/Faultbox/midgard-anim/internal/engine/param"
	"github.com/Faultbox/midgard-anim/internal/engine/project"
	"github.com/Faultbox/midgard-anim/internal/engine/resource"
	"github.com/Faultbox/midgard-anim/internal/engine/skeleton"
	"github.com/Faultbox/midgard-anim/pkg/bitstream"
	"github.com/Faultbox/midgard-anim/pkg/math"
)

var skelID = resource.MustParseID("20000000-0000-4000-8000-000000000001")

func restAt(x, y, z float32) math.Transform {
	return math.Transform{Translation: math.Vec3{X: x, Y: y, Z: z}, Rotation: math.QuatIdentity(), Scale: math.Vec3One()}
}

// body is root -> arm.
func body() *skeleton.Skeleton {
	return skeleton.MustNew([]skeleton.Joint{
		{Name: "root", Parent: skeleton.NoParent, Rest: math.TransformIdentity()},
		{Name: "arm", Parent: 0, Rest: restAt(0, 1, 0)},
	})
}

type clipSet map[resource.ID]*clip.Clip

func (s clipSet) Clip(id resource.ID) (*clip.Clip, bool) {
	c, ok := s[id]
	return c, ok
}

func cook(t *testing.T, src *clip.Source) *clip.Clip {
	t.Helper()
	w := bitstream.NewWriter(make([]byte, 1<<12))
	if err := src.Encode(w, clip.Env{Skeleton: body()}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	c, err := clip.Decode(bitstream.NewReader(w.Bytes()))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return c
}

// hold is a one second clip keeping the root at x.
func hold(x float32) *clip.Source {
	return &clip.Source{Skeleton: skelID, Duration: 1, Scheme: clip.SchemeRaw, Tracks: []clip.JointTrack{
		{Joint: 0, Translation: []clip.VecKey{{Time: 0, Value: math.Vec3{X: x}}, {Time: 1, Value: math.Vec3{X: x}}}},
	}}
}

// ramp is a one second clip moving the root from x=0 to x=1.
func ramp() *clip.Source {
	return &clip.Source{Skeleton: skelID, Duration: 1, Scheme: clip.SchemeRaw, Tracks: []clip.JointTrack{
		{Joint: 0, Translation: []clip.VecKey{{Time: 0, Value: math.Vec3{}}, {Time: 1, Value: math.Vec3{X: 1}}}},
	}}
}

func clipID(n int) resource.ID {
	id := resource.MustParseID("30000000-0000-4000-8000-000000000000")
	id[15] = byte(n)
	return id
}

// rig plays a graph against a parameter store.
type rig struct {
	t      *testing.T
	graph  *animgraph.Cooked
	params *param.MapStore
	player *Player
	pose   *skeleton.Pose
}

// newRig cooks nodes into a graph rooted at root. clips[i] is referenced
// by clipID(i).
func newRig(t *testing.T, root animgraph.Ref, nodes []animgraph.Node, clips []*clip.Source, opts ...Option) *rig {
	t.Helper()
	set := clipSet{}
	for i, src := range clips {
		set[clipID(i)] = cook(t, src)
	}
	g, err := animgraph.Cook(&animgraph.Graph{Skeleton: skelID, Root: root, Nodes: nodes}, nil)
	if err != nil {
		t.Fatalf("Cook: %v", err)
	}
	params := param.NewMapStore()
	p, err := New(g, set, params, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &rig{t: t, graph: g, params: params, player: p, pose: skeleton.NewPose(body())}
}

func (r *rig) ref(id animgraph.Ref) animgraph.Ref {
	r.t.Helper()
	i, ok := r.graph.Index(id)
	if !ok {
		r.t.Fatalf("node %d was pruned", id)
	}
	return i
}

func (r *rig) play(dt float32) float32 {
	r.player.Play(dt, r.pose)
	return r.pose.Local(0).Translation.X
}

func (r *rig) state(machine animgraph.Ref) animgraph.Ref {
	r.t.Helper()
	s, ok := r.player.CurrentState(r.ref(machine))
	if !ok {
		r.t.Fatalf("node %d has no current state", machine)
	}
	return r.graph.Node(s).ID
}

func near(a, b float32) bool {
	d := a - b
	return d < 1e-5 && d > -1e-5
}

func clipNode(id animgraph.Ref, n int) animgraph.Node {
	return animgraph.Node{ID: id, Kind: animgraph.KindClip, Clip: &animgraph.ClipNode{Clip: clipID(n)}}
}

func paramNode(id animgraph.Ref, name string) animgraph.Node {
	return animgraph.Node{ID: id, Kind: animgraph.KindParameter, Name: name, Parameter: &animgraph.ParameterNode{Name: name}}
}

func isTrue(id, parameter animgraph.Ref) animgraph.Node {
	return animgraph.Node{ID: id, Kind: animgraph.KindCompare, Compare: &animgraph.CompareNode{Parameter: parameter, Value: param.Bool(true)}}
}

func isFalse(id, parameter animgraph.Ref) animgraph.Node {
	return animgraph.Node{ID: id, Kind: animgraph.KindCompare, Compare: &animgraph.CompareNode{Parameter: parameter, Op: animgraph.OpNotEqual, Value: param.Bool(true)}}
}

func state(id, pose animgraph.Ref, transitions ...animgraph.Ref) animgraph.Node {
	return animgraph.Node{ID: id, Kind: animgraph.KindState, State: &animgraph.StateNode{Pose: pose, Transitions: transitions}}
}

func transition(id, target, condition animgraph.Ref, duration float32, reversible bool) animgraph.Node {
	return animgraph.Node{ID: id, Kind: animgraph.KindTransition, Transition: &animgraph.TransitionNode{
		Target: target, Condition: condition, Duration: duration, Reversible: reversible,
	}}
}

func machine(id animgraph.Ref, states ...animgraph.Ref) animgraph.Node {
	return animgraph.Node{ID: id, Kind: animgraph.KindStateMachine, StateMachine: &animgraph.StateMachineNode{States: states}}
}

func TestBlendFactor(t *testing.T) {
	r := newRig(t, 1, []animgraph.Node{
		{ID: 1, Kind: animgraph.KindBlend, Blend: &animgraph.BlendNode{
			Factor:   animgraph.FromNode(2),
			Children: []animgraph.BlendChild{{Node: 10, Factor: 1}, {Node: 11, Factor: 3}},
		}},
		paramNode(2, "speed"),
		clipNode(10, 0),
		clipNode(11, 1),
	}, []*clip.Source{hold(10), hold(30)})

	tests := []struct {
		speed  float32
		want   float32
		weight float32
		child  int
	}{
		{0, 10, 0, 0},
		{1, 10, 0, 0},
		{1.5, 15, 0.25, 0},
		{2, 20, 0.5, 1},
		{3, 30, 0, 1},
		{9, 30, 0, 1},
	}
	for _, tt := range tests {
		r.params.Set("speed", param.Float(tt.speed))
		if got := r.play(0.1); got != tt.want {
			t.Errorf("speed %v: x = %v, want %v", tt.speed, got, tt.want)
		}
		info := r.player.Inspect(r.ref(1))
		if info.Weight != tt.weight || info.ActiveChild != tt.child {
			t.Errorf("speed %v: weight %v child %d, want %v %d", tt.speed, info.Weight, info.ActiveChild, tt.weight, tt.child)
		}
	}

	// At a boundary only the bracketing child runs.
	r.params.Set("speed", param.Float(1))
	r.play(0.1)
	if r.player.Inspect(r.ref(11)).Active {
		t.Error("second child evaluated at the first child's factor")
	}
	if got := r.pose.Local(1); got != restAt(0, 1, 0) {
		t.Errorf("untouched joint = %+v, want rest", got)
	}
}

// locomotion is idle (x=0) and run (x=5) switched by the bool "go".
func locomotion(t *testing.T, duration float32, reversible bool, back float32) *rig {
	return newRig(t, 1, []animgraph.Node{
		machine(1, 2, 3),
		state(2, 10, 20),
		state(3, 11, 21),
		clipNode(10, 0),
		clipNode(11, 1),
		transition(20, 3, 40, duration, reversible),
		transition(21, 2, 41, back, false),
		paramNode(30, "go"),
		isTrue(40, 30),
		isFalse(41, 30),
	}, []*clip.Source{hold(0), hold(5)})
}

func TestTransitionCompletes(t *testing.T) {
	r := locomotion(t, 0.2, false, 0.2)

	if x := r.play(0.1); x != 0 || r.state(1) != 2 {
		t.Fatalf("start: x=%v state %d", x, r.state(1))
	}

	r.params.Set("go", param.Bool(true))
	if x := r.play(0.1); !near(x, 2.5) {
		t.Errorf("half way: x = %v, want 2.5", x)
	}
	m := r.ref(1)
	if !r.player.Fading(m) || r.state(1) != 3 || r.player.Inspect(m).Weight != 0.5 {
		t.Errorf("half way: fading %v state %d weight %v", r.player.Fading(m), r.state(1), r.player.Inspect(m).Weight)
	}
	if !r.player.Inspect(r.ref(2)).Active || !r.player.Inspect(r.ref(3)).Active {
		t.Error("both states should run during the fade")
	}

	if x := r.play(0.1); x != 5 {
		t.Errorf("done: x = %v, want 5", x)
	}
	if r.player.Fading(m) || r.player.Inspect(r.ref(2)).Active {
		t.Error("source state still contributes after the fade")
	}
}

func TestZeroDurationTransition(t *testing.T) {
	r := locomotion(t, 0, false, 0)
	r.play(0.1)
	r.params.Set("go", param.Bool(true))
	if x := r.play(0.1); x != 5 || r.player.Fading(r.ref(1)) {
		t.Errorf("x = %v, want an immediate switch to 5", x)
	}
	r.params.Set("go", param.Bool(false))
	if x := r.play(0); x != 0 || r.state(1) != 2 {
		t.Errorf("x = %v state %d, want back to idle", x, r.state(1))
	}
}

func TestReversibleTransition(t *testing.T) {
	r := locomotion(t, 1, true, 2)
	r.play(0.1)
	r.params.Set("go", param.Bool(true))
	r.play(0.1) // 10% toward run
	r.params.Set("go", param.Bool(false))

	// The way back starts 90% done and advances one step of 2s.
	x := r.play(0.1)
	m := r.ref(1)
	if r.state(1) != 2 || !r.player.Fading(m) {
		t.Fatalf("state %d fading %v, want a fade back to idle", r.state(1), r.player.Fading(m))
	}
	if w := r.player.Inspect(m).Weight; !near(w, 0.95) {
		t.Errorf("weight = %v, want 0.95", w)
	}
	if !near(x, 0.25) {
		t.Errorf("x = %v, want 0.25", x)
	}
}

func TestIrreversibleTransitionRunsOut(t *testing.T) {
	r := locomotion(t, 1, false, 2)
	r.play(0.1)
	r.params.Set("go", param.Bool(true))
	r.play(0.1)
	r.params.Set("go", param.Bool(false))

	x := r.play(0.1)
	if r.state(1) != 3 || !near(x, 1) {
		t.Errorf("state %d x %v, want still fading to run at 20%%", r.state(1), x)
	}
	for i := 0; i < 9; i++ {
		r.play(0.1)
	}
	// The fade ended and idle's transition fires on the next tick.
	if x := r.play(0.1); r.state(1) != 2 || !r.player.Fading(r.ref(1)) {
		t.Errorf("state %d x %v, want fading back to idle", r.state(1), x)
	}
}

func TestPhaseCondition(t *testing.T) {
	r := newRig(t, 1, []animgraph.Node{
		machine(1, 2, 3),
		state(2, 10, 20),
		state(3, 11),
		clipNode(10, 0),
		clipNode(11, 1),
		transition(20, 3, 40, 0, false),
		{ID: 40, Kind: animgraph.KindPhase, Phase: &animgraph.PhaseNode{Threshold: 1}},
	}, []*clip.Source{ramp(), hold(7)})

	for i := 1; i <= 4; i++ {
		r.play(0.25)
		if r.state(1) != 2 {
			t.Fatalf("tick %d: left before one full playback", i)
		}
	}
	if p := r.player.Inspect(r.ref(2)).Phase; p != 1 {
		t.Errorf("phase after one playback = %v, want 1", p)
	}
	if x := r.play(0.25); x != 7 || r.state(1) != 3 {
		t.Errorf("x = %v state %d, want the second state", x, r.state(1))
	}
}

func TestLoopingAndOnce(t *testing.T) {
	r := newRig(t, 1, []animgraph.Node{
		{ID: 1, Kind: animgraph.KindAdditive, Additive: &animgraph.AdditiveNode{Base: 10, Layer: 11}},
		clipNode(10, 0),
		{ID: 11, Kind: animgraph.KindClip, Clip: &animgraph.ClipNode{Clip: clipID(0), Once: true}},
	}, []*clip.Source{ramp()})

	// base loops to 0.5; layer holds at 1.
	if x := r.play(1.5); !near(x, 1.5) {
		t.Errorf("x = %v, want 1.5", x)
	}
	if p := r.player.Inspect(r.ref(10)).Phase; p != 1 {
		t.Errorf("looping phase = %v, want 1 after a full playback", p)
	}
	if p := r.player.Inspect(r.ref(11)).Phase; p != 1 {
		t.Errorf("once phase = %v, want 1", p)
	}
}

func TestSpeed(t *testing.T) {
	r := newRig(t, 1, []animgraph.Node{
		{ID: 1, Kind: animgraph.KindSpeed, Speed: &animgraph.SpeedNode{Child: 10, Speed: animgraph.FromNode(2)}},
		paramNode(2, "rate"),
		clipNode(10, 0),
	}, []*clip.Source{ramp()})

	r.params.Set("rate", param.Float(2))
	if x := r.play(0.25); x != 0.5 {
		t.Errorf("double speed: x = %v, want 0.5", x)
	}
	r.params.Set("rate", param.Float(-1))
	if x := r.play(0.25); x != 0.5 {
		t.Errorf("negative speed: x = %v, want paused at 0.5", x)
	}
	if w := r.player.Inspect(r.ref(1)).Weight; w != 0 {
		t.Errorf("clamped speed = %v, want 0", w)
	}
}

func TestRandomSticksUntilReactivated(t *testing.T) {
	nodes := []animgraph.Node{
		{ID: 1, Kind: animgraph.KindRandom, Random: &animgraph.RandomNode{Children: []animgraph.Ref{10, 11, 12}}},
		clipNode(10, 0),
		clipNode(11, 1),
		clipNode(12, 2),
	}
	clips := []*clip.Source{hold(1), hold(2), hold(3)}

	a := newRig(t, 1, nodes, clips, WithSeed(7))
	b := newRig(t, 1, nodes, clips, WithSeed(7))
	first := a.play(0.1)
	if first < 1 || first > 3 {
		t.Fatalf("x = %v, want one of the children", first)
	}
	for i := 0; i < 20; i++ {
		if x := a.play(0.1); x != first {
			t.Fatalf("tick %d: choice changed from %v to %v", i, first, x)
		}
	}
	if x := b.play(0.1); x != first {
		t.Errorf("same seed chose %v, want %v", x, first)
	}

	seen := map[float32]bool{}
	for i := 0; i < 50; i++ {
		a.player.Reset()
		seen[a.play(0.1)] = true
	}
	if len(seen) < 2 {
		t.Errorf("reactivation never picked again: %v", seen)
	}
}

func TestAdditive(t *testing.T) {
	wave := &clip.Source{Skeleton: skelID, Duration: 1, Scheme: clip.SchemeRaw, Tracks: []clip.JointTrack{
		{Joint: 1, Translation: []clip.VecKey{{Time: 0, Value: math.Vec3{Y: 1, Z: 2}}, {Time: 1, Value: math.Vec3{Y: 1, Z: 2}}}},
	}}
	r := newRig(t, 1, []animgraph.Node{
		{ID: 1, Kind: animgraph.KindAdditive, Additive: &animgraph.AdditiveNode{Base: 10, Layer: 11}},
		clipNode(10, 0),
		clipNode(11, 1),
	}, []*clip.Source{hold(4), wave})

	x := r.play(0.1)
	if !near(x, 4) {
		t.Errorf("root x = %v, want the base's 4", x)
	}
	if got := r.pose.Local(1).Translation; !got.ApproxEqual(math.Vec3{Y: 1, Z: 2}, 1e-6) {
		t.Errorf("arm = %+v, want rest plus the layer's offset", got)
	}
}

func TestSharedNodeAdvancesOnce(t *testing.T) {
	r := newRig(t, 1, []animgraph.Node{
		{ID: 1, Kind: animgraph.KindAdditive, Additive: &animgraph.AdditiveNode{Base: 10, Layer: 10}},
		clipNode(10, 0),
	}, []*clip.Source{ramp()})

	if x := r.play(0.25); !near(x, 0.5) {
		t.Errorf("x = %v, want 0.25 twice", x)
	}
	if x := r.play(0.25); !near(x, 1) {
		t.Errorf("x = %v, want 0.5 twice", x)
	}
}

func TestNestedMachine(t *testing.T) {
	r := newRig(t, 1, []animgraph.Node{
		machine(1, 2, 3),
		state(2, 50, 20), // ground
		state(3, 12, 21), // air
		transition(20, 3, 40, 0, false),
		transition(21, 2, 41, 0, false),
		paramNode(30, "jump"),
		isTrue(40, 30),
		isFalse(41, 30),

		machine(50, 51, 52),
		state(51, 10, 60), // idle
		state(52, 11),     // run
		transition(60, 52, 70, 0, false),
		paramNode(31, "go"),
		isTrue(70, 31),

		clipNode(10, 0),
		clipNode(11, 1),
		clipNode(12, 2),
	}, []*clip.Source{hold(0), hold(5), hold(9)})

	r.params.Set("go", param.Bool(true))
	if x := r.play(0.1); x != 5 || r.state(50) != 52 {
		t.Fatalf("x = %v inner state %d, want run", x, r.state(50))
	}
	r.params.Set("jump", param.Bool(true))
	if x := r.play(0.1); x != 9 {
		t.Fatalf("x = %v, want air", x)
	}
	if r.player.Inspect(r.ref(50)).Active {
		t.Error("inner machine active while in the air")
	}

	r.params.Set("jump", param.Bool(false))
	r.params.Set("go", param.Bool(false))
	if x := r.play(0.1); x != 0 || r.state(50) != 51 {
		t.Errorf("x = %v inner state %d, want the inner machine restarted in idle", x, r.state(50))
	}
}

func TestParameterDefault(t *testing.T) {
	r := newRig(t, 1, []animgraph.Node{
		{ID: 1, Kind: animgraph.KindBlend, Blend: &animgraph.BlendNode{
			Factor:   animgraph.FromNode(2),
			Children: []animgraph.BlendChild{{Node: 10, Factor: 0}, {Node: 11, Factor: 1}},
		}},
		{ID: 2, Kind: animgraph.KindParameter, Parameter: &animgraph.ParameterNode{Name: "lean", Default: param.Float(1)}},
		clipNode(10, 0),
		clipNode(11, 1),
	}, []*clip.Source{hold(0), hold(8)})

	if x := r.play(0.1); x != 8 {
		t.Errorf("unset parameter: x = %v, want the default's 8", x)
	}
	r.params.Set("lean", param.Int(0))
	if x := r.play(0.1); x != 0 {
		t.Errorf("int parameter: x = %v, want 0", x)
	}
}

func TestInspectInactive(t *testing.T) {
	r := locomotion(t, 0.2, false, 0.2)
	r.play(0.1)
	run := r.player.Inspect(r.ref(11))
	if run.Active {
		t.Error("run clip reported active while idling")
	}
	if idle := r.player.Inspect(r.ref(10)); !idle.Active || !near(idle.Phase, 0.1) {
		t.Errorf("idle clip = %+v", idle)
	}
	r.player.Reset()
	if r.player.Inspect(r.ref(10)).Active {
		t.Error("Reset left nodes active")
	}
}

func TestTransitionLogged(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	r := newRig(t, 1, []animgraph.Node{
		machine(1, 2, 3),
		{ID: 2, Kind: animgraph.KindState, Name: "idle", State: &animgraph.StateNode{Pose: 10, Transitions: []animgraph.Ref{20}}},
		{ID: 3, Kind: animgraph.KindState, Name: "run", State: &animgraph.StateNode{Pose: 10}},
		clipNode(10, 0),
		transition(20, 3, 30, 0, false),
		paramNode(30, "go"),
	}, []*clip.Source{hold(0)}, WithLogger(zap.New(core)))

	r.params.Set("go", param.Bool(true))
	r.play(0.1)
	started := logs.FilterMessage("transition started").All()
	if len(started) != 1 {
		t.Fatalf("logged %d transition starts, want 1", len(started))
	}
	fields := started[0].ContextMap()
	if fields["from"] != "idle" || fields["to"] != "run" {
		t.Errorf("fields = %v", fields)
	}
	if logs.FilterMessage("transition finished").Len() != 1 {
		t.Error("zero-length transition should finish on the same tick")
	}
}

func TestNewRejectsMissingClip(t *testing.T) {
	g, err := animgraph.Cook(&animgraph.Graph{Skeleton: skelID, Root: 1, Nodes: []animgraph.Node{clipNode(1, 0)}}, nil)
	if err != nil {
		t.Fatalf("Cook: %v", err)
	}
	if _, err := New(g, clipSet{}, nil); err == nil {
		t.Error("New accepted a graph with an unloaded clip")
	}
}

func TestPlayPanicsOnNegativeStep(t *testing.T) {
	r := newRig(t, 1, []animgraph.Node{clipNode(1, 0)}, []*clip.Source{ramp()})
	defer func() {
		if recover() == nil {
			t.Error("negative time step did not panic")
		}
	}()
	r.play(-1)
}

func TestCookedProject(t *testing.T) {
	p := project.New()
	skel, err := p.Add(resource.KindSkeleton, "body", &project.SkeletonSource{Joints: body().Joints()})
	if err != nil {
		t.Fatal(err)
	}
	src := &clip.Source{Skeleton: skel.ID, Duration: 2, Scheme: clip.SchemeRaw, Tracks: []clip.JointTrack{
		{Joint: 0, Translation: []clip.VecKey{{Time: 0, Value: math.Vec3{X: 1}}, {Time: 2, Value: math.Vec3{X: 3, Y: 1}}}},
		{Joint: 1, Rotation: []clip.QuatKey{
			{Time: 0, Value: math.QuatFromAxisAngle(math.Vec3{X: 1}, 0.3)},
			{Time: 1, Value: math.QuatFromAxisAngle(math.Vec3{Z: 1}, 0.7)},
		}},
	}}
	walk, err := p.Add(resource.KindClip, "walk", src)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Add(resource.KindGraph, "main", &animgraph.Graph{Skeleton: skel.ID, Root: 1, Nodes: []animgraph.Node{
		{ID: 1, Kind: animgraph.KindClip, Clip: &animgraph.ClipNode{Clip: walk.ID}},
	}}); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 1<<14)
	n, err := p.Cook(buf)
	if err != nil {
		t.Fatalf("Cook: %v", err)
	}
	cooked, err := project.LoadCooked(buf[:n])
	if err != nil {
		t.Fatalf("LoadCooked: %v", err)
	}
	g, ok := cooked.GraphByName("main")
	if !ok {
		t.Fatal("graph main not loaded")
	}
	s, _ := cooked.Skeleton(skel.ID)
	pl, err := New(g, cooked, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, want := skeleton.NewPose(s), skeleton.NewPose(s)
	var at float32
	for _, dt := range []float32{0, 0.5, 0.75} {
		at += dt
		pl.Play(dt, got)
		want.Reset()
		src.Sample(at, want)
		for j := 0; j < s.Len(); j++ {
			if !got.Local(j).ApproxEqual(want.Local(j), 1e-5) {
				t.Errorf("t=%v joint %d: got %+v, want %+v", at, j, got.Local(j), want.Local(j))
			}
		}
	}
}
