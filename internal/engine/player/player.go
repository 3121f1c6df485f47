// Package player evaluates a cooked animation graph once per tick and
// writes the resulting pose.
//
// Mutable state lives in slices indexed like the cooked nodes, so a graph
// can be shared by any number of players. A node that was not evaluated on
// the previous tick is reset when it is evaluated again: clips restart,
// random nodes pick again and state machines re-enter their first state.
package player

import (
	"fmt"
	stdmath "math"
	"math/rand"
	"sort"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-anim/internal/engine/animgraph"
	"github.com/Faultbox/midgard-anim/internal/engine/clip"
	"github.com/Faultbox/midgard-anim/internal/engine/param"
	"github.com/Faultbox/midgard-anim/internal/engine/resource"
	"github.com/Faultbox/midgard-anim/internal/engine/skeleton"
	"github.com/Faultbox/midgard-anim/internal/logger"
)

// Clips resolves the clips a graph references.
type Clips interface {
	Clip(id resource.ID) (*clip.Clip, bool)
}

// Option configures a Player.
type Option func(*Player)

// WithSeed seeds the generator used by random nodes.
func WithSeed(seed int64) Option {
	return func(p *Player) {
		p.rng = rand.New(rand.NewSource(seed))
	}
}

// WithRand sets the generator used by random nodes.
func WithRand(r *rand.Rand) Option {
	return func(p *Player) {
		p.rng = r
	}
}

// WithLogger sets the logger for transition events.
func WithLogger(l *zap.Logger) Option {
	return func(p *Player) {
		p.log = l
	}
}

// NodeInfo is the transient state of one node, for editors and debugging.
type NodeInfo struct {
	Active      bool    // evaluated on the last tick
	Phase       float32 // elapsed fraction of the first playback, in [0, 1]
	Weight      float32 // blend weight, fade fraction or speed factor
	ActiveChild int     // chosen child, dominant blend child or current state position; -1 if none
}

const none = -1

// Player is the runtime of one graph instance. It is not safe for
// concurrent use.
type Player struct {
	graph  *animgraph.Cooked
	params param.Reader
	rng    *rand.Rand
	log    *zap.Logger

	tick   uint64
	seen   []uint64
	time   []float32 // clip local time or fade elapsed
	loops  []int
	phase  []float32
	weight []float32
	child  []int
	from   []int           // state position a machine fades from
	fade   []animgraph.Ref // transition a machine is fading through
	clips  []*clip.Clip
	cursor []*clip.Cursor

	skel  *skeleton.Skeleton
	pool  []*skeleton.Pose
	depth int
}

// New returns a player for graph. params may be nil, in which case every
// parameter reads as its default.
func New(graph *animgraph.Cooked, clips Clips, params param.Reader, opts ...Option) (*Player, error) {
	n := graph.Len()
	p := &Player{
		graph:  graph,
		params: params,
		seen:   make([]uint64, n),
		time:   make([]float32, n),
		loops:  make([]int, n),
		phase:  make([]float32, n),
		weight: make([]float32, n),
		child:  make([]int, n),
		from:   make([]int, n),
		fade:   make([]animgraph.Ref, n),
		clips:  make([]*clip.Clip, n),
		cursor: make([]*clip.Cursor, n),
	}
	if p.params == nil {
		p.params = param.NewMapStore()
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.rng == nil {
		p.rng = rand.New(rand.NewSource(1))
	}
	if p.log == nil {
		p.log = logger.Named("player")
	}

	for i := 0; i < n; i++ {
		node := graph.Node(animgraph.Ref(i))
		if node.Kind != animgraph.KindClip {
			continue
		}
		c, ok := clips.Clip(node.Clip.Clip)
		if !ok {
			return nil, errors.Wrapf(animgraph.ErrInvalidGraph, "node %d: clip %s not loaded", node.ID, node.Clip.Clip)
		}
		if c.Skeleton() != graph.Skeleton() {
			return nil, errors.Wrapf(animgraph.ErrInvalidGraph, "node %d: clip %s targets skeleton %s", node.ID, node.Clip.Clip, c.Skeleton())
		}
		p.clips[i] = c
		p.cursor[i] = clip.NewCursor(c)
	}
	p.Reset()
	return p, nil
}

// Reset forgets all runtime state; the next Play starts every node afresh.
func (p *Player) Reset() {
	p.tick = 1
	for i := range p.seen {
		p.seen[i] = 0
		p.child[i] = none
		p.from[i] = none
		p.fade[i] = none
	}
}

// Graph returns the graph being played.
func (p *Player) Graph() *animgraph.Cooked {
	return p.graph
}

// Play advances the graph by dt seconds and writes the root's pose into
// out. Parameters are read as they are when Play is called.
func (p *Player) Play(dt float32, out *skeleton.Pose) {
	if !(dt >= 0) || stdmath.IsInf(float64(dt), 0) {
		panic(fmt.Sprintf("player: invalid time step %v", dt))
	}
	if out.Skeleton() != p.skel {
		p.skel = out.Skeleton()
		p.pool = p.pool[:0]
	}
	p.tick++
	p.depth = 0
	p.pose(p.graph.Root(), dt, out)
}

// Inspect returns the transient state of node i.
func (p *Player) Inspect(i animgraph.Ref) NodeInfo {
	return NodeInfo{
		Active:      p.seen[i] == p.tick,
		Phase:       p.phase[i],
		Weight:      p.weight[i],
		ActiveChild: p.child[i],
	}
}

// CurrentState returns the node index of the current state of machine i,
// which is the fade destination while a transition runs.
func (p *Player) CurrentState(i animgraph.Ref) (animgraph.Ref, bool) {
	n := p.graph.Node(i)
	if n.Kind != animgraph.KindStateMachine || p.child[i] == none {
		return 0, false
	}
	return n.StateMachine.States[p.child[i]], true
}

// Fading reports whether machine i is running a transition.
func (p *Player) Fading(i animgraph.Ref) bool {
	return p.fade[i] != none
}

func (p *Player) acquire() *skeleton.Pose {
	if p.depth == len(p.pool) {
		p.pool = append(p.pool, skeleton.NewPose(p.skel))
	}
	s := p.pool[p.depth]
	p.depth++
	return s
}

func (p *Player) release() {
	p.depth--
}

func (p *Player) activate(i animgraph.Ref) {
	n := p.graph.Node(i)
	p.phase[i] = 0
	p.weight[i] = 0
	p.child[i] = none
	switch n.Kind {
	case animgraph.KindClip:
		p.time[i] = 0
		p.loops[i] = 0
		p.cursor[i].Reset()
	case animgraph.KindRandom:
		p.child[i] = p.rng.Intn(len(n.Random.Children))
	case animgraph.KindStateMachine:
		p.child[i] = 0
		p.from[i] = none
		p.fade[i] = none
		p.time[i] = 0
		p.phase[n.StateMachine.States[0]] = 0
	}
}

// pose evaluates node i into out. A node evaluated twice in one tick only
// advances on the first evaluation.
func (p *Player) pose(i animgraph.Ref, dt float32, out *skeleton.Pose) {
	switch p.seen[i] {
	case p.tick:
		dt = 0
	case p.tick - 1:
	default:
		p.activate(i)
	}
	p.seen[i] = p.tick

	n := p.graph.Node(i)
	switch n.Kind {
	case animgraph.KindClip:
		p.playClip(i, n.Clip, dt, out)

	case animgraph.KindBlend:
		p.blend(i, n.Blend, dt, out)

	case animgraph.KindSpeed:
		s := max(0, p.operand(n.Speed.Speed))
		p.weight[i] = s
		p.pose(n.Speed.Child, dt*s, out)
		p.phase[i] = p.phase[n.Speed.Child]

	case animgraph.KindRandom:
		c := n.Random.Children[p.child[i]]
		p.pose(c, dt, out)
		p.phase[i] = p.phase[c]

	case animgraph.KindState:
		p.pose(n.State.Pose, dt, out)
		p.phase[i] = p.phase[n.State.Pose]

	case animgraph.KindStateMachine:
		p.machine(i, n, dt, out)

	case animgraph.KindAdditive:
		p.pose(n.Additive.Base, dt, out)
		layer := p.acquire()
		p.pose(n.Additive.Layer, dt, layer)
		out.AddRelativeToRest(layer)
		p.release()
		p.phase[i] = p.phase[n.Additive.Base]

	default:
		panic(fmt.Sprintf("player: node %d of kind %s does not produce a pose", n.ID, n.Kind))
	}
}

func (p *Player) playClip(i animgraph.Ref, n *animgraph.ClipNode, dt float32, out *skeleton.Pose) {
	c := p.clips[i]
	d := c.Duration()
	t := p.time[i] + dt
	switch {
	case d <= 0:
		t = 0
	case n.Once:
		t = min(t, d)
	case t >= d:
		wraps := float32(stdmath.Floor(float64(t / d)))
		p.loops[i] += int(wraps)
		t = min(max(t-wraps*d, 0), d)
	}
	p.time[i] = t

	// Phase saturates once the first playback completes.
	if d <= 0 || p.loops[i] > 0 {
		p.phase[i] = 1
	} else {
		p.phase[i] = t / d
	}

	out.Reset()
	c.Play(t, p.cursor[i], out)
}

func (p *Player) blend(i animgraph.Ref, b *animgraph.BlendNode, dt float32, out *skeleton.Pose) {
	f := p.operand(b.Factor)
	cs := b.Children
	last := len(cs) - 1

	var lo, hi int
	var w float32
	switch {
	case f <= cs[0].Factor:
		lo, hi = 0, 0
	case f >= cs[last].Factor:
		lo, hi = last, last
	default:
		hi = sort.Search(len(cs), func(k int) bool { return cs[k].Factor > f })
		lo = hi - 1
		w = (f - cs[lo].Factor) / (cs[hi].Factor - cs[lo].Factor)
	}
	p.weight[i] = w

	p.pose(cs[lo].Node, dt, out)
	dominant := lo
	if w > 0 {
		other := p.acquire()
		p.pose(cs[hi].Node, dt, other)
		out.Blend(out, other, w)
		p.release()
		if w >= 0.5 {
			dominant = hi
		}
	}
	p.child[i] = dominant
	p.phase[i] = p.phase[cs[dominant].Node]
}

func (p *Player) operand(o animgraph.Operand) float32 {
	if o.Node != nil {
		return p.value(*o.Node).AsFloat()
	}
	return *o.Value
}

func (p *Player) value(i animgraph.Ref) param.Value {
	n := p.graph.Node(i)
	if n.Kind != animgraph.KindParameter {
		panic(fmt.Sprintf("player: node %d of kind %s is not a value", n.ID, n.Kind))
	}
	v := p.params.Get(n.Parameter.Name)
	if v.IsNone() {
		return n.Parameter.Default
	}
	return v
}

// condition evaluates a transition condition. state is the state the
// transition leaves, used by phase conditions.
func (p *Player) condition(i, state animgraph.Ref) bool {
	n := p.graph.Node(i)
	switch n.Kind {
	case animgraph.KindParameter:
		return p.value(i).AsBool()
	case animgraph.KindCompare:
		eq := p.value(n.Compare.Parameter).Equal(n.Compare.Value)
		if n.Compare.Op == animgraph.OpNotEqual {
			return !eq
		}
		return eq
	case animgraph.KindAnd:
		for _, c := range n.And.Conditions {
			if !p.condition(c, state) {
				return false
			}
		}
		return true
	case animgraph.KindPhase:
		return p.phase[state] >= n.Phase.Threshold
	}
	panic(fmt.Sprintf("player: node %d of kind %s is not a condition", n.ID, n.Kind))
}
