package animgraph

import (
	stdmath "math"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/Faultbox/midgard-anim/internal/engine/resource"
	"github.com/Faultbox/midgard-anim/pkg/digraph"
)

// ErrInvalidGraph reports a graph that cannot be cooked or played.
var ErrInvalidGraph = errors.New("invalid animation graph")

// Resolver answers questions about resources a graph references.
type Resolver interface {
	// ClipSkeleton returns the skeleton of a clip, or false when the clip
	// does not exist.
	ClipSkeleton(id resource.ID) (resource.ID, bool)
}

// checker validates a node set. It serves both forms: lookup resolves a
// Ref to a node and self gives the Ref a node is addressed by.
type checker struct {
	nodes    []Node
	lookup   func(Ref) (*Node, bool)
	self     func(i int) Ref
	skeleton resource.ID
	resolver Resolver

	g    *digraph.Graph[Ref]
	errs error
}

func (c *checker) fail(n *Node, format string, args ...interface{}) {
	err := errors.Wrapf(ErrInvalidGraph, format, args...)
	if n != nil {
		err = errors.Wrapf(err, "node %d (%s)", n.ID, n.Kind)
	}
	c.errs = multierr.Append(c.errs, err)
}

// ref checks that to exists and satisfies want, and records the edge
// unless it is a transition target.
func (c *checker) ref(from Ref, n *Node, to Ref, what string, want func(Kind) bool, edge bool) *Node {
	target, ok := c.lookup(to)
	if !ok {
		c.fail(n, "%s references missing node %d", what, to)
		return nil
	}
	if !want(target.Kind) {
		c.fail(n, "%s references node %d of kind %s", what, target.ID, target.Kind)
		return nil
	}
	if edge {
		c.g.AddEdge(from, to)
	}
	return target
}

func isKind(k Kind) func(Kind) bool {
	return func(got Kind) bool { return got == k }
}

func isValue(k Kind) bool {
	return k == KindParameter
}

func finite(f float32) bool {
	return !stdmath.IsNaN(float64(f)) && !stdmath.IsInf(float64(f), 0)
}

func (c *checker) operand(self Ref, n *Node, o Operand, what string) {
	switch {
	case o.Node != nil && o.Value != nil:
		c.fail(n, "%s has both a value and a node", what)
	case o.Node != nil:
		c.ref(self, n, *o.Node, what, isValue, true)
	case o.Value != nil:
		if !finite(*o.Value) {
			c.fail(n, "%s is not finite", what)
		}
	default:
		c.fail(n, "%s is missing", what)
	}
}

func (c *checker) run(root Ref) error {
	c.g = digraph.New[Ref]()
	for i := range c.nodes {
		c.g.AddVertex(c.self(i))
	}

	owner := make(map[Ref]Ref) // state -> machine
	for i := range c.nodes {
		n := &c.nodes[i]
		self := c.self(i)
		if n.Kind >= numKinds {
			c.fail(n, "unknown kind")
			continue
		}
		if !n.hasPayload() {
			c.fail(n, "missing %s payload", n.Kind)
			continue
		}
		c.node(self, n, owner)
	}

	if r, ok := c.lookup(root); !ok {
		c.fail(nil, "root %d not found", root)
	} else if !r.Kind.IsPose() {
		c.fail(r, "root is not a pose node")
	}

	if c.errs == nil {
		if _, err := c.g.TopologicalOrder(); err != nil {
			c.fail(nil, "%v", err)
		}
	}
	return c.errs
}

func (c *checker) node(self Ref, n *Node, owner map[Ref]Ref) {
	switch n.Kind {
	case KindClip:
		if c.resolver == nil {
			break
		}
		skel, ok := c.resolver.ClipSkeleton(n.Clip.Clip)
		switch {
		case !ok:
			c.fail(n, "clip %s not found", n.Clip.Clip)
		case skel != c.skeleton:
			c.fail(n, "clip %s targets skeleton %s, graph uses %s", n.Clip.Clip, skel, c.skeleton)
		}

	case KindBlend:
		b := n.Blend
		c.operand(self, n, b.Factor, "blend factor")
		if len(b.Children) < 2 {
			c.fail(n, "blend needs at least two children, has %d", len(b.Children))
		}
		for k, child := range b.Children {
			c.ref(self, n, child.Node, "blend child", Kind.IsPose, true)
			if !finite(child.Factor) {
				c.fail(n, "blend child %d factor is not finite", k)
			}
			if k > 0 && child.Factor <= b.Children[k-1].Factor {
				c.fail(n, "blend factors must increase, %v after %v", child.Factor, b.Children[k-1].Factor)
			}
		}

	case KindSpeed:
		c.ref(self, n, n.Speed.Child, "speed child", Kind.IsPose, true)
		c.operand(self, n, n.Speed.Speed, "speed")

	case KindParameter:
		if n.Parameter.Name == "" {
			c.fail(n, "parameter has no name")
		}

	case KindCompare:
		c.ref(self, n, n.Compare.Parameter, "compared parameter", isValue, true)
		if n.Compare.Op > OpNotEqual {
			c.fail(n, "unknown comparison %d", n.Compare.Op)
		}

	case KindAnd:
		if len(n.And.Conditions) == 0 {
			c.fail(n, "and has no conditions")
		}
		for _, r := range n.And.Conditions {
			c.ref(self, n, r, "and condition", Kind.IsCondition, true)
		}

	case KindRandom:
		if len(n.Random.Children) == 0 {
			c.fail(n, "random has no children")
		}
		for _, r := range n.Random.Children {
			c.ref(self, n, r, "random child", Kind.IsPose, true)
		}

	case KindState:
		c.ref(self, n, n.State.Pose, "state pose", Kind.IsPose, true)
		for _, r := range n.State.Transitions {
			c.ref(self, n, r, "state transition", isKind(KindTransition), true)
		}

	case KindStateMachine:
		states := n.StateMachine.States
		if len(states) == 0 {
			c.fail(n, "state machine has no states")
		}
		members := make(map[Ref]bool, len(states))
		for _, r := range states {
			if members[r] {
				c.fail(n, "state %d listed twice", r)
			}
			members[r] = true
			if prev, ok := owner[r]; ok && prev != self {
				c.fail(n, "state %d already belongs to machine %d", r, prev)
			}
			owner[r] = self
			c.ref(self, n, r, "machine state", isKind(KindState), true)
		}
		// Transitions must stay inside the machine.
		for _, r := range states {
			st, ok := c.lookup(r)
			if !ok || st.Kind != KindState || st.State == nil {
				continue
			}
			for _, tr := range st.State.Transitions {
				t, ok := c.lookup(tr)
				if !ok || t.Kind != KindTransition || t.Transition == nil {
					continue
				}
				if !members[t.Transition.Target] {
					c.fail(n, "transition %d of state %d leaves the machine for node %d", t.ID, st.ID, t.Transition.Target)
				}
			}
		}

	case KindTransition:
		t := n.Transition
		c.ref(self, n, t.Target, "transition target", isKind(KindState), false)
		c.ref(self, n, t.Condition, "transition condition", Kind.IsCondition, true)
		if t.Duration < 0 || !finite(t.Duration) {
			c.fail(n, "transition duration %v", t.Duration)
		}

	case KindPhase:
		if n.Phase.Threshold < 0 || !finite(n.Phase.Threshold) {
			c.fail(n, "phase threshold %v", n.Phase.Threshold)
		}

	case KindAdditive:
		c.ref(self, n, n.Additive.Base, "additive base", Kind.IsPose, true)
		c.ref(self, n, n.Additive.Layer, "additive layer", Kind.IsPose, true)
	}
}

// Validate checks g and reports every problem found, each wrapping
// ErrInvalidGraph. resolver may be nil to skip clip checks.
//
// Node references must exist and have the right kind, blends need two or
// more children with increasing factors, and transitions must stay within
// their machine. References must be acyclic except for transition targets,
// which may form any state topology.
func Validate(g *Graph, resolver Resolver) error {
	byID := make(map[Ref]*Node, len(g.Nodes))
	c := &checker{
		nodes:    g.Nodes,
		lookup:   func(r Ref) (*Node, bool) { n, ok := byID[r]; return n, ok },
		self:     func(i int) Ref { return g.Nodes[i].ID },
		skeleton: g.Skeleton,
		resolver: resolver,
	}
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.ID < 0 {
			c.fail(n, "negative id")
		}
		if _, dup := byID[n.ID]; dup {
			c.fail(n, "duplicate id")
			continue
		}
		byID[n.ID] = n
	}
	if c.errs != nil {
		return c.errs
	}
	return c.run(g.Root)
}
