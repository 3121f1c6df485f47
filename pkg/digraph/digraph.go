// Package digraph is a small directed graph over comparable vertex keys with
// topological ordering and reachability queries.
package digraph

import (
	"errors"
	"fmt"
)

// ErrCycle is returned by TopologicalOrder when the graph is not acyclic.
var ErrCycle = errors.New("digraph: cycle detected")

// CycleError names a vertex that lies on a cycle.
type CycleError[V comparable] struct {
	Vertex V
}

func (e *CycleError[V]) Error() string {
	return fmt.Sprintf("%v: through %v", ErrCycle, e.Vertex)
}

// Unwrap lets errors.Is match ErrCycle.
func (e *CycleError[V]) Unwrap() error {
	return ErrCycle
}

// Graph stores vertices in insertion order with adjacency lists.
type Graph[V comparable] struct {
	index    map[V]int
	vertices []V
	edges    [][]int
}

// New returns an empty graph.
func New[V comparable]() *Graph[V] {
	return &Graph[V]{index: make(map[V]int)}
}

// AddVertex adds v if it is not already present.
func (g *Graph[V]) AddVertex(v V) {
	if _, ok := g.index[v]; ok {
		return
	}
	g.index[v] = len(g.vertices)
	g.vertices = append(g.vertices, v)
	g.edges = append(g.edges, nil)
}

// HasVertex reports whether v was added.
func (g *Graph[V]) HasVertex(v V) bool {
	_, ok := g.index[v]
	return ok
}

// AddEdge adds the edge from -> to, adding missing vertices.
// Duplicate edges are kept once.
func (g *Graph[V]) AddEdge(from, to V) {
	g.AddVertex(from)
	g.AddVertex(to)
	f, t := g.index[from], g.index[to]
	for _, e := range g.edges[f] {
		if e == t {
			return
		}
	}
	g.edges[f] = append(g.edges[f], t)
}

// Len returns the vertex count.
func (g *Graph[V]) Len() int {
	return len(g.vertices)
}

// Vertices returns the vertices in insertion order.
func (g *Graph[V]) Vertices() []V {
	out := make([]V, len(g.vertices))
	copy(out, g.vertices)
	return out
}

// Successors returns the direct successors of v in edge insertion order.
func (g *Graph[V]) Successors(v V) []V {
	i, ok := g.index[v]
	if !ok {
		return nil
	}
	out := make([]V, len(g.edges[i]))
	for k, e := range g.edges[i] {
		out[k] = g.vertices[e]
	}
	return out
}

// TopologicalOrder returns every vertex such that each edge points from an
// earlier vertex to a later one. Ties are broken by insertion order, so the
// result is stable for a given construction sequence. A cycle yields a
// *CycleError wrapping ErrCycle.
func (g *Graph[V]) TopologicalOrder() ([]V, error) {
	indegree := make([]int, len(g.vertices))
	for _, adj := range g.edges {
		for _, t := range adj {
			indegree[t]++
		}
	}

	// Kahn with a min-ordered ready set keeps the output stable.
	ready := make([]bool, len(g.vertices))
	for i, d := range indegree {
		ready[i] = d == 0
	}

	order := make([]V, 0, len(g.vertices))
	done := make([]bool, len(g.vertices))
	for len(order) < len(g.vertices) {
		next := -1
		for i := range g.vertices {
			if ready[i] && !done[i] {
				next = i
				break
			}
		}
		if next < 0 {
			for i := range g.vertices {
				if !done[i] {
					return nil, &CycleError[V]{Vertex: g.vertices[i]}
				}
			}
		}
		done[next] = true
		order = append(order, g.vertices[next])
		for _, t := range g.edges[next] {
			indegree[t]--
			if indegree[t] == 0 {
				ready[t] = true
			}
		}
	}
	return order, nil
}

// Reachable returns the set of vertices reachable from root, root included.
func (g *Graph[V]) Reachable(root V) map[V]bool {
	seen := make(map[V]bool)
	start, ok := g.index[root]
	if !ok {
		return seen
	}
	stack := []int{start}
	seen[root] = true
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, t := range g.edges[i] {
			v := g.vertices[t]
			if !seen[v] {
				seen[v] = true
				stack = append(stack, t)
			}
		}
	}
	return seen
}
