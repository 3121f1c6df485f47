package animgraph

import (
	"sort"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-anim/internal/engine/resource"
	"github.com/Faultbox/midgard-anim/internal/logger"
	"github.com/Faultbox/midgard-anim/pkg/digraph"
)

// Cooked is an immutable, index-resolved graph. Nodes are sorted by their
// original id and every Ref is an index into Nodes.
type Cooked struct {
	skeleton resource.ID
	root     Ref
	nodes    []Node
}

// Cook validates g and resolves it into its cooked form. Nodes unreachable
// from the root are dropped.
func Cook(g *Graph, resolver Resolver) (*Cooked, error) {
	if err := Validate(g, resolver); err != nil {
		return nil, err
	}

	all := digraph.New[Ref]()
	for i := range g.Nodes {
		n := &g.Nodes[i]
		all.AddVertex(n.ID)
		for _, r := range n.Refs() {
			all.AddEdge(n.ID, r)
		}
	}
	reach := all.Reachable(g.Root)

	kept := make([]*Node, 0, len(reach))
	for i := range g.Nodes {
		if reach[g.Nodes[i].ID] {
			kept = append(kept, &g.Nodes[i])
		}
	}
	if pruned := len(g.Nodes) - len(kept); pruned > 0 {
		logger.Named("animgraph").Warn("pruned unreachable nodes",
			zap.Int("pruned", pruned),
			zap.Int("kept", len(kept)))
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].ID < kept[j].ID })

	index := make(map[Ref]Ref, len(kept))
	for i, n := range kept {
		index[n.ID] = Ref(i)
	}
	resolve := func(r Ref) Ref { return index[r] }

	c := &Cooked{skeleton: g.Skeleton, root: index[g.Root], nodes: make([]Node, len(kept))}
	for i, n := range kept {
		c.nodes[i] = n.remap(resolve)
	}
	return c, nil
}

// Validate checks the cooked graph the same way Validate checks a Graph.
// Decode runs it without a resolver; loaders call it again with one.
func (c *Cooked) Validate(resolver Resolver) error {
	ch := &checker{
		nodes: c.nodes,
		lookup: func(r Ref) (*Node, bool) {
			if r < 0 || int(r) >= len(c.nodes) {
				return nil, false
			}
			return &c.nodes[r], true
		},
		self:     func(i int) Ref { return Ref(i) },
		skeleton: c.skeleton,
		resolver: resolver,
	}
	return ch.run(c.root)
}

// Skeleton returns the id of the skeleton the graph animates.
func (c *Cooked) Skeleton() resource.ID {
	return c.skeleton
}

// Root returns the index of the root node.
func (c *Cooked) Root() Ref {
	return c.root
}

// Len returns the node count.
func (c *Cooked) Len() int {
	return len(c.nodes)
}

// Node returns the node at index i. The node must not be modified.
func (c *Cooked) Node(i Ref) *Node {
	return &c.nodes[i]
}

// Index returns the index of the node that had the given id before
// cooking.
func (c *Cooked) Index(id Ref) (Ref, bool) {
	i := sort.Search(len(c.nodes), func(i int) bool { return c.nodes[i].ID >= id })
	if i < len(c.nodes) && c.nodes[i].ID == id {
		return Ref(i), true
	}
	return 0, false
}

// Clips returns the clips referenced by clip nodes.
func (c *Cooked) Clips() []resource.ID {
	return clipsOf(c.nodes)
}
