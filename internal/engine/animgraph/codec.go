package animgraph

import (
	"github.com/pkg/errors"

	"github.com/Faultbox/midgard-anim/internal/engine/param"
	"github.com/Faultbox/midgard-anim/internal/engine/resource"
	"github.com/Faultbox/midgard-anim/pkg/bitstream"
)

const (
	countBits = 16
	idBits    = 32
	maxCount  = 1<<countBits - 1
)

// interner assigns indices to strings in first-use order.
type interner struct {
	index map[string]int
	list  []string
}

func (in *interner) add(s string) {
	if _, ok := in.index[s]; !ok {
		in.index[s] = len(in.list)
		in.list = append(in.list, s)
	}
}

type encoder struct {
	w       *bitstream.Writer
	strs    *interner
	refBits int
	strBits int
}

func (e *encoder) ref(r Ref) {
	e.w.WriteBits(uint32(r), e.refBits)
}

func (e *encoder) refs(rs []Ref) {
	e.w.WriteBits(uint32(len(rs)), countBits)
	for _, r := range rs {
		e.ref(r)
	}
}

func (e *encoder) str(s string) {
	e.w.WriteBits(uint32(e.strs.index[s]), e.strBits)
}

func (e *encoder) operand(o Operand) {
	e.w.WriteBool(o.Node != nil)
	if o.Node != nil {
		e.ref(*o.Node)
		return
	}
	e.w.WriteFloat32(*o.Value)
}

func writeValue(w *bitstream.Writer, v param.Value) {
	w.WriteBits(uint32(v.Kind()), param.KindBits)
	switch v.Kind() {
	case param.KindInt:
		w.WriteInt(v.AsInt(), 32)
	case param.KindFloat:
		w.WriteFloat32(v.AsFloat())
	case param.KindBool:
		w.WriteBool(v.AsBool())
	}
}

func readValue(r *bitstream.Reader) param.Value {
	switch param.Kind(r.Uint(param.KindBits)) {
	case param.KindInt:
		return param.Int(r.Int(32))
	case param.KindFloat:
		return param.Float(r.Float32())
	case param.KindBool:
		return param.Bool(r.Bool())
	}
	return param.Value{}
}

// Encode writes the cooked graph.
//
// Layout: skeleton id, interned string table, node count, root index, then
// each node as [id, kind, name, layout, payload]. References are written
// with the minimal width for the node count and strings as table indices.
// The node count is patched in once every node has been written.
func (c *Cooked) Encode(w *bitstream.Writer) error {
	if len(c.nodes) > maxCount {
		return errors.Wrapf(ErrInvalidGraph, "%d nodes, at most %d", len(c.nodes), maxCount)
	}
	strs := &interner{index: make(map[string]int)}
	for i := range c.nodes {
		n := &c.nodes[i]
		strs.add(n.Name)
		if n.Kind == KindParameter {
			strs.add(n.Parameter.Name)
		}
	}
	if len(strs.list) > maxCount {
		return errors.Wrapf(ErrInvalidGraph, "%d distinct strings, at most %d", len(strs.list), maxCount)
	}

	resource.WriteID(w, c.skeleton)
	w.WriteBits(uint32(len(strs.list)), countBits)
	for _, s := range strs.list {
		w.WriteString(s)
	}

	e := &encoder{
		w:       w,
		strs:    strs,
		refBits: bitstream.BitsFor(len(c.nodes)),
		strBits: bitstream.BitsFor(len(strs.list)),
	}
	countPos := w.Pos()
	w.WriteBits(0, countBits)
	e.ref(c.root)
	for i := range c.nodes {
		e.node(&c.nodes[i])
	}

	if err := w.Err(); err != nil {
		return errors.Wrap(err, "encoding graph")
	}
	return errors.Wrap(w.Patch(countPos, uint32(len(c.nodes)), countBits), "patching node count")
}

func (e *encoder) node(n *Node) {
	w := e.w
	w.WriteBits(uint32(n.ID), idBits)
	w.WriteBits(uint32(n.Kind), KindBits)
	e.str(n.Name)
	w.WriteBool(n.Layout != nil)
	if n.Layout != nil {
		w.WriteFloat32(n.Layout.X)
		w.WriteFloat32(n.Layout.Y)
	}

	switch n.Kind {
	case KindClip:
		resource.WriteID(w, n.Clip.Clip)
		w.WriteBool(n.Clip.Once)
	case KindBlend:
		e.operand(n.Blend.Factor)
		w.WriteBits(uint32(len(n.Blend.Children)), countBits)
		for _, c := range n.Blend.Children {
			e.ref(c.Node)
			w.WriteFloat32(c.Factor)
		}
	case KindSpeed:
		e.ref(n.Speed.Child)
		e.operand(n.Speed.Speed)
	case KindParameter:
		e.str(n.Parameter.Name)
		writeValue(w, n.Parameter.Default)
	case KindCompare:
		e.ref(n.Compare.Parameter)
		w.WriteBits(uint32(n.Compare.Op), 1)
		writeValue(w, n.Compare.Value)
	case KindAnd:
		e.refs(n.And.Conditions)
	case KindRandom:
		e.refs(n.Random.Children)
	case KindState:
		e.ref(n.State.Pose)
		e.refs(n.State.Transitions)
	case KindStateMachine:
		e.refs(n.StateMachine.States)
	case KindTransition:
		e.ref(n.Transition.Target)
		e.ref(n.Transition.Condition)
		w.WriteFloat32(n.Transition.Duration)
		w.WriteBool(n.Transition.Reversible)
	case KindPhase:
		w.WriteFloat32(n.Phase.Threshold)
	case KindAdditive:
		e.ref(n.Additive.Base)
		e.ref(n.Additive.Layer)
	}
}

type decoder struct {
	r       *bitstream.Reader
	strs    []string
	refBits int
	strBits int
	err     error
}

func (d *decoder) ref() Ref {
	return Ref(d.r.Uint(d.refBits))
}

func (d *decoder) refs() []Ref {
	n := int(d.r.Uint(countBits))
	if n == 0 || d.r.Err() != nil {
		return nil
	}
	out := make([]Ref, n)
	for i := range out {
		out[i] = d.ref()
	}
	return out
}

func (d *decoder) str() string {
	i := int(d.r.Uint(d.strBits))
	if d.r.Err() != nil {
		return ""
	}
	if i >= len(d.strs) {
		if d.err == nil {
			d.err = errors.Wrapf(ErrInvalidGraph, "string index %d of %d", i, len(d.strs))
		}
		return ""
	}
	return d.strs[i]
}

func (d *decoder) operand() Operand {
	if d.r.Bool() {
		return FromNode(d.ref())
	}
	return Literal(d.r.Float32())
}

// Decode reads a graph written by Cooked.Encode and validates its
// structure. Clip references are not resolved.
func Decode(r *bitstream.Reader) (*Cooked, error) {
	c := &Cooked{skeleton: resource.ReadID(r)}
	d := &decoder{r: r}
	nstr := int(r.Uint(countBits))
	for i := 0; i < nstr && r.Err() == nil; i++ {
		d.strs = append(d.strs, r.String())
	}
	count := int(r.Uint(countBits))
	d.refBits = bitstream.BitsFor(count)
	d.strBits = bitstream.BitsFor(nstr)
	c.root = d.ref()

	for i := 0; i < count && r.Err() == nil && d.err == nil; i++ {
		c.nodes = append(c.nodes, d.node())
	}
	if err := r.Err(); err != nil {
		return nil, errors.Wrap(err, "decoding graph")
	}
	if d.err != nil {
		return nil, d.err
	}
	if err := c.Validate(nil); err != nil {
		return nil, err
	}
	return c, nil
}

func (d *decoder) node() Node {
	r := d.r
	n := Node{ID: Ref(r.Uint(idBits)), Kind: Kind(r.Uint(KindBits))}
	n.Name = d.str()
	if r.Bool() {
		n.Layout = &Layout{X: r.Float32(), Y: r.Float32()}
	}

	switch n.Kind {
	case KindClip:
		n.Clip = &ClipNode{Clip: resource.ReadID(r), Once: r.Bool()}
	case KindBlend:
		b := &BlendNode{Factor: d.operand()}
		count := int(r.Uint(countBits))
		for i := 0; i < count && r.Err() == nil; i++ {
			b.Children = append(b.Children, BlendChild{Node: d.ref(), Factor: r.Float32()})
		}
		n.Blend = b
	case KindSpeed:
		n.Speed = &SpeedNode{Child: d.ref(), Speed: d.operand()}
	case KindParameter:
		n.Parameter = &ParameterNode{Name: d.str(), Default: readValue(r)}
	case KindCompare:
		n.Compare = &CompareNode{Parameter: d.ref(), Op: CompareOp(r.Uint(1)), Value: readValue(r)}
	case KindAnd:
		n.And = &AndNode{Conditions: d.refs()}
	case KindRandom:
		n.Random = &RandomNode{Children: d.refs()}
	case KindState:
		n.State = &StateNode{Pose: d.ref(), Transitions: d.refs()}
	case KindStateMachine:
		n.StateMachine = &StateMachineNode{States: d.refs()}
	case KindTransition:
		n.Transition = &TransitionNode{
			Target:     d.ref(),
			Condition:  d.ref(),
			Duration:   r.Float32(),
			Reversible: r.Bool(),
		}
	case KindPhase:
		n.Phase = &PhaseNode{Threshold: r.Float32()}
	case KindAdditive:
		n.Additive = &AdditiveNode{Base: d.ref(), Layer: d.ref()}
	default:
		if d.err == nil {
			d.err = errors.Wrapf(ErrInvalidGraph, "node %d: unknown kind %d", n.ID, n.Kind)
		}
	}
	return n
}
