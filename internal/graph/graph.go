package graph

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	// ErrUnknownNode is returned when a node id is not part of the graph.
	ErrUnknownNode = errors.New("graph: unknown node")
	// ErrDuplicateNode is returned when a node id is added twice.
	ErrDuplicateNode = errors.New("graph: duplicate node")
	// ErrNegativeWeight is returned for edges with weight < 0.
	ErrNegativeWeight = errors.New("graph: negative edge weight")
	// ErrNoPath is returned when the destination cannot be reached.
	ErrNoPath = errors.New("graph: no path")
)

// Point is a location in world space. Z is carried through from the wire
// format but ignored by every distance computation.
type Point struct {
	X, Y, Z float64
}

// Distance returns the planar distance between p and q.
func (p Point) Distance(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

func (p Point) String() string {
	return fmt.Sprintf("%g,%g,%g", p.X, p.Y, p.Z)
}

// Node is a graph vertex.
type Node struct {
	ID  int
	Loc Point
}

// Edge is a directed weighted connection between two nodes.
type Edge struct {
	Src    int
	Dest   int
	Weight float64
}

// Same reports whether e and o join the same ordered pair of nodes.
func (e Edge) Same(o Edge) bool {
	return e.Src == o.Src && e.Dest == o.Dest
}

// Graph is a directed weighted graph with at most one edge per ordered pair.
// It is built once and treated as structurally immutable afterwards, so
// concurrent readers need no locking.
type Graph struct {
	nodes map[int]*Node
	out   map[int]map[int]Edge
	edges int
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[int]*Node),
		out:   make(map[int]map[int]Edge),
	}
}

// AddNode inserts a node.
func (g *Graph) AddNode(id int, loc Point) error {
	if _, ok := g.nodes[id]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateNode, id)
	}
	g.nodes[id] = &Node{ID: id, Loc: loc}
	return nil
}

// Connect adds or replaces the edge src→dest.
func (g *Graph) Connect(src, dest int, weight float64) error {
	if weight < 0 || math.IsNaN(weight) {
		return fmt.Errorf("%w: %d→%d (%g)", ErrNegativeWeight, src, dest, weight)
	}
	if _, ok := g.nodes[src]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownNode, src)
	}
	if _, ok := g.nodes[dest]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownNode, dest)
	}
	adj, ok := g.out[src]
	if !ok {
		adj = make(map[int]Edge)
		g.out[src] = adj
	}
	if _, exists := adj[dest]; !exists {
		g.edges++
	}
	adj[dest] = Edge{Src: src, Dest: dest, Weight: weight}
	return nil
}

// Node returns the node with the given id.
func (g *Graph) Node(id int) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Edge returns the edge src→dest.
func (g *Graph) Edge(src, dest int) (Edge, bool) {
	e, ok := g.out[src][dest]
	return e, ok
}

// Nodes returns every node ordered by id.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Edges returns the outgoing edges of src ordered by destination.
func (g *Graph) Edges(src int) []Edge {
	adj := g.out[src]
	out := make([]Edge, 0, len(adj))
	for _, e := range adj {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Dest < out[j].Dest })
	return out
}

// AllEdges returns every edge ordered by (src, dest).
func (g *Graph) AllEdges() []Edge {
	out := make([]Edge, 0, g.edges)
	for _, n := range g.Nodes() {
		out = append(out, g.Edges(n.ID)...)
	}
	return out
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return g.edges }

// Bounds returns the bounding box of all node locations. An empty graph
// yields a zero range.
func (g *Graph) Bounds() Range2D {
	var r Range2D
	first := true
	for _, n := range g.nodes {
		if first {
			r = Range2D{
				X: Range{Min: n.Loc.X, Max: n.Loc.X},
				Y: Range{Min: n.Loc.Y, Max: n.Loc.Y},
			}
			first = false
			continue
		}
		r.X.Min = math.Min(r.X.Min, n.Loc.X)
		r.X.Max = math.Max(r.X.Max, n.Loc.X)
		r.Y.Min = math.Min(r.Y.Min, n.Loc.Y)
		r.Y.Max = math.Max(r.Y.Max, n.Loc.Y)
	}
	return r
}

// LowestNode returns the smallest node id, or false for an empty graph.
func (g *Graph) LowestNode() (int, bool) {
	lowest, found := 0, false
	for id := range g.nodes {
		if !found || id < lowest {
			lowest, found = id, true
		}
	}
	return lowest, found
}

// Locate finds the edge whose segment contains p. dir filters by direction:
// dir < 0 only accepts edges with Src > Dest, dir > 0 only Src < Dest, and
// 0 accepts both. Returns false when no edge lies within tolerance.
func (g *Graph) Locate(p Point, dir int) (Edge, bool) {
	const tolerance = 1e-3
	best := Edge{}
	bestErr := math.Inf(1)
	for _, e := range g.AllEdges() {
		if dir < 0 && e.Src < e.Dest {
			continue
		}
		if dir > 0 && e.Src > e.Dest {
			continue
		}
		s := g.nodes[e.Src].Loc
		d := g.nodes[e.Dest].Loc
		// On-segment test: detour through p is no longer than the segment.
		slack := s.Distance(p) + p.Distance(d) - s.Distance(d)
		if slack < tolerance && slack < bestErr {
			best, bestErr = e, slack
		}
	}
	return best, !math.IsInf(bestErr, 1)
}
