// Package animgraph defines animation graphs: an editable Graph whose nodes
// reference each other by id, and the Cooked form in which every reference
// is a position in a single id-sorted node slice.
package animgraph

import (
	"fmt"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/midgard-anim/internal/engine/param"
	"github.com/Faultbox/midgard-anim/internal/engine/resource"
)

// Ref points at another node of the same graph. In a Graph it holds the
// target's ID; in a Cooked graph it holds the target's index.
type Ref int

// Kind is the node type tag.
type Kind uint8

const (
	KindClip Kind = iota
	KindBlend
	KindSpeed
	KindParameter
	KindCompare
	KindAnd
	KindRandom
	KindState
	KindStateMachine
	KindTransition
	KindPhase
	KindAdditive
	numKinds
)

// KindBits is the width of a cooked Kind tag.
const KindBits = 4

var kindNames = [numKinds]string{
	KindClip:         "clip",
	KindBlend:        "blend",
	KindSpeed:        "speed",
	KindParameter:    "parameter",
	KindCompare:      "compare",
	KindAnd:          "and",
	KindRandom:       "random",
	KindState:        "state",
	KindStateMachine: "state_machine",
	KindTransition:   "transition",
	KindPhase:        "phase",
	KindAdditive:     "additive",
}

func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	for i, name := range kindNames {
		if name == string(text) {
			*k = Kind(i)
			return nil
		}
	}
	return errors.Errorf("unknown node kind %q", text)
}

// IsPose reports whether nodes of this kind produce a pose that can be
// used as a child anywhere. States produce poses only inside their machine.
func (k Kind) IsPose() bool {
	switch k {
	case KindClip, KindBlend, KindSpeed, KindRandom, KindStateMachine, KindAdditive:
		return true
	}
	return false
}

// IsCondition reports whether nodes of this kind can gate a transition.
func (k Kind) IsCondition() bool {
	switch k {
	case KindParameter, KindCompare, KindAnd, KindPhase:
		return true
	}
	return false
}

// Operand is a literal or a reference to a parameter node. Exactly one of
// the two is set.
type Operand struct {
	Value *float32 `yaml:"value,omitempty"`
	Node  *Ref     `yaml:"node,omitempty"`
}

// Literal returns an operand holding v.
func Literal(v float32) Operand {
	return Operand{Value: &v}
}

// FromNode returns an operand reading node r.
func FromNode(r Ref) Operand {
	return Operand{Node: &r}
}

// UnmarshalYAML also accepts a bare number as a literal.
func (o *Operand) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var v float32
		if err := node.Decode(&v); err != nil {
			return err
		}
		*o = Literal(v)
		return nil
	}
	type plain Operand
	return node.Decode((*plain)(o))
}

// Layout is where an editor draws the node.
type Layout struct {
	X float32 `yaml:"x"`
	Y float32 `yaml:"y"`
}

// ClipNode plays a clip. It loops unless Once is set, in which case it holds
// the last frame.
type ClipNode struct {
	Clip resource.ID `yaml:"clip"`
	Once bool        `yaml:"once,omitempty"`
}

// BlendChild is one input of a blend with the factor at which it is fully
// weighted.
type BlendChild struct {
	Node   Ref     `yaml:"node"`
	Factor float32 `yaml:"factor"`
}

// BlendNode blends the two children whose factors bracket the current
// factor value. Factors must be strictly increasing.
type BlendNode struct {
	Factor   Operand      `yaml:"factor"`
	Children []BlendChild `yaml:"children"`
}

// SpeedNode scales the time step of its child, clamped below at zero.
type SpeedNode struct {
	Child Ref     `yaml:"child"`
	Speed Operand `yaml:"speed"`
}

// ParameterNode reads a named parameter from the store, falling back to
// Default when the store has none.
type ParameterNode struct {
	Name    string      `yaml:"name"`
	Default param.Value `yaml:"default,omitempty"`
}

// CompareOp is the comparison of a CompareNode.
type CompareOp uint8

const (
	OpEqual CompareOp = iota
	OpNotEqual
)

func (op CompareOp) String() string {
	if op == OpNotEqual {
		return "ne"
	}
	return "eq"
}

// MarshalText implements encoding.TextMarshaler.
func (op CompareOp) MarshalText() ([]byte, error) {
	return []byte(op.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (op *CompareOp) UnmarshalText(text []byte) error {
	switch string(text) {
	case "eq", "":
		*op = OpEqual
	case "ne":
		*op = OpNotEqual
	default:
		return errors.Errorf("unknown comparison %q", text)
	}
	return nil
}

// CompareNode compares a parameter node against a literal.
type CompareNode struct {
	Parameter Ref         `yaml:"parameter"`
	Op        CompareOp   `yaml:"op"`
	Value     param.Value `yaml:"value"`
}

// AndNode holds when all of its conditions hold.
type AndNode struct {
	Conditions []Ref `yaml:"conditions"`
}

// RandomNode picks one child when it becomes active and keeps it.
type RandomNode struct {
	Children []Ref `yaml:"children"`
}

// StateNode is one state of a state machine: a pose and the transitions
// leaving it, tried in order.
type StateNode struct {
	Pose        Ref   `yaml:"pose"`
	Transitions []Ref `yaml:"transitions,omitempty"`
}

// StateMachineNode runs one of its states at a time. The first state is
// entered when the machine becomes active.
type StateMachineNode struct {
	States []Ref `yaml:"states"`
}

// TransitionNode moves its machine to Target when Condition holds,
// cross-fading over Duration seconds. A reversible transition can be
// undone mid-fade by the transition leading back.
type TransitionNode struct {
	Target     Ref     `yaml:"target"`
	Condition  Ref     `yaml:"condition"`
	Duration   float32 `yaml:"duration"`
	Reversible bool    `yaml:"reversible,omitempty"`
}

// PhaseNode holds once the phase of the state being left reaches
// Threshold. A threshold of 1 waits for one full playback.
type PhaseNode struct {
	Threshold float32 `yaml:"threshold"`
}

// AdditiveNode adds Layer's offset from the rest pose onto Base.
type AdditiveNode struct {
	Base  Ref `yaml:"base"`
	Layer Ref `yaml:"layer"`
}

// Node is one graph node. Only the payload matching Kind is used.
type Node struct {
	ID     Ref     `yaml:"id"`
	Name   string  `yaml:"name,omitempty"`
	Layout *Layout `yaml:"layout,omitempty"`
	Kind   Kind    `yaml:"kind"`

	Clip         *ClipNode         `yaml:"clip,omitempty"`
	Blend        *BlendNode        `yaml:"blend,omitempty"`
	Speed        *SpeedNode        `yaml:"speed,omitempty"`
	Parameter    *ParameterNode    `yaml:"parameter,omitempty"`
	Compare      *CompareNode      `yaml:"compare,omitempty"`
	And          *AndNode          `yaml:"and,omitempty"`
	Random       *RandomNode       `yaml:"random,omitempty"`
	State        *StateNode        `yaml:"state,omitempty"`
	StateMachine *StateMachineNode `yaml:"state_machine,omitempty"`
	Transition   *TransitionNode   `yaml:"transition,omitempty"`
	Phase        *PhaseNode        `yaml:"phase,omitempty"`
	Additive     *AdditiveNode     `yaml:"additive,omitempty"`
}

// hasPayload reports whether the payload for Kind is set.
func (n *Node) hasPayload() bool {
	switch n.Kind {
	case KindClip:
		return n.Clip != nil
	case KindBlend:
		return n.Blend != nil
	case KindSpeed:
		return n.Speed != nil
	case KindParameter:
		return n.Parameter != nil
	case KindCompare:
		return n.Compare != nil
	case KindAnd:
		return n.And != nil
	case KindRandom:
		return n.Random != nil
	case KindState:
		return n.State != nil
	case KindStateMachine:
		return n.StateMachine != nil
	case KindTransition:
		return n.Transition != nil
	case KindPhase:
		return n.Phase != nil
	case KindAdditive:
		return n.Additive != nil
	}
	return false
}

func mapRefs(refs []Ref, f func(Ref) Ref) []Ref {
	if refs == nil {
		return nil
	}
	out := make([]Ref, len(refs))
	for i, r := range refs {
		out[i] = f(r)
	}
	return out
}

func (o Operand) remap(f func(Ref) Ref) Operand {
	if o.Node != nil {
		return FromNode(f(*o.Node))
	}
	if o.Value != nil {
		return Literal(*o.Value)
	}
	return Operand{}
}

// remap returns a deep copy of the node's Kind payload with every
// reference passed through f. Payloads of other kinds are dropped.
func (n *Node) remap(f func(Ref) Ref) Node {
	out := Node{ID: n.ID, Name: n.Name, Kind: n.Kind}
	if n.Layout != nil {
		l := *n.Layout
		out.Layout = &l
	}
	switch n.Kind {
	case KindClip:
		c := *n.Clip
		out.Clip = &c
	case KindBlend:
		b := &BlendNode{Factor: n.Blend.Factor.remap(f)}
		for _, c := range n.Blend.Children {
			b.Children = append(b.Children, BlendChild{Node: f(c.Node), Factor: c.Factor})
		}
		out.Blend = b
	case KindSpeed:
		out.Speed = &SpeedNode{Child: f(n.Speed.Child), Speed: n.Speed.Speed.remap(f)}
	case KindParameter:
		p := *n.Parameter
		out.Parameter = &p
	case KindCompare:
		c := *n.Compare
		c.Parameter = f(c.Parameter)
		out.Compare = &c
	case KindAnd:
		out.And = &AndNode{Conditions: mapRefs(n.And.Conditions, f)}
	case KindRandom:
		out.Random = &RandomNode{Children: mapRefs(n.Random.Children, f)}
	case KindState:
		out.State = &StateNode{Pose: f(n.State.Pose), Transitions: mapRefs(n.State.Transitions, f)}
	case KindStateMachine:
		out.StateMachine = &StateMachineNode{States: mapRefs(n.StateMachine.States, f)}
	case KindTransition:
		t := *n.Transition
		t.Target = f(t.Target)
		t.Condition = f(t.Condition)
		out.Transition = &t
	case KindPhase:
		p := *n.Phase
		out.Phase = &p
	case KindAdditive:
		out.Additive = &AdditiveNode{Base: f(n.Additive.Base), Layer: f(n.Additive.Layer)}
	}
	return out
}

// Refs returns every node the node references, in payload order.
func (n *Node) Refs() []Ref {
	var refs []Ref
	if n.hasPayload() {
		n.remap(func(r Ref) Ref {
			refs = append(refs, r)
			return r
		})
	}
	return refs
}

// Graph is an editable animation graph.
type Graph struct {
	Skeleton resource.ID `yaml:"skeleton"`
	Root     Ref         `yaml:"root"`
	Nodes    []Node      `yaml:"nodes"`
}

// Node returns the node with the given id.
func (g *Graph) Node(id Ref) (*Node, bool) {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i], true
		}
	}
	return nil, false
}

// Clips returns the clips referenced by clip nodes, in node order without
// duplicates.
func (g *Graph) Clips() []resource.ID {
	return clipsOf(g.Nodes)
}

func clipsOf(nodes []Node) []resource.ID {
	var out []resource.ID
	seen := make(map[resource.ID]bool)
	for i := range nodes {
		if c := nodes[i].Clip; nodes[i].Kind == KindClip && c != nil && !seen[c.Clip] {
			seen[c.Clip] = true
			out = append(out, c.Clip)
		}
	}
	return out
}
