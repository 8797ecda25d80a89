package graph

import (
	"fmt"
	"math"

	gonum "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// Algorithms is the shortest-path service the routing core consumes.
type Algorithms interface {
	// Distances returns single-source shortest-path distances from a node.
	Distances(from int) (Distances, error)
	// ShortestPath returns the node ids of a shortest path, inclusive of
	// both endpoints. from == to yields [from].
	ShortestPath(from, to int) ([]int, error)
}

// Distances holds the result of one single-source query. It replaces a
// per-node scratch field: the values belong to the query that produced them.
type Distances struct {
	From int
	dist map[int]float64
}

// To returns the distance to id, or false if id is unreachable.
func (d Distances) To(id int) (float64, bool) {
	v, ok := d.dist[id]
	return v, ok
}

// Len returns the number of reachable nodes, the source included.
func (d Distances) Len() int { return len(d.dist) }

// Dijkstra implements Algorithms on top of gonum's Dijkstra search. The
// gonum graph is built once; queries are read-only and safe to run
// concurrently.
type Dijkstra struct {
	g  *Graph
	wg *simple.WeightedDirectedGraph
}

// NewDijkstra indexes g for shortest-path queries.
func NewDijkstra(g *Graph) *Dijkstra {
	wg := simple.NewWeightedDirectedGraph(0, math.Inf(1))
	for _, n := range g.Nodes() {
		wg.AddNode(simple.Node(n.ID))
	}
	for _, e := range g.AllEdges() {
		if e.Src == e.Dest {
			// self loops never shorten a path and gonum rejects them
			continue
		}
		wg.SetWeightedEdge(wg.NewWeightedEdge(simple.Node(e.Src), simple.Node(e.Dest), e.Weight))
	}
	return &Dijkstra{g: g, wg: wg}
}

func (d *Dijkstra) search(from int) (path.Shortest, error) {
	if _, ok := d.g.Node(from); !ok {
		return path.Shortest{}, fmt.Errorf("%w: %d", ErrUnknownNode, from)
	}
	return path.DijkstraFrom(simple.Node(from), d.wg), nil
}

// Distances implements Algorithms.
func (d *Dijkstra) Distances(from int) (Distances, error) {
	sp, err := d.search(from)
	if err != nil {
		return Distances{}, err
	}
	out := Distances{From: from, dist: make(map[int]float64, d.g.NodeCount())}
	for _, n := range d.g.Nodes() {
		w := sp.WeightTo(int64(n.ID))
		if math.IsInf(w, 1) {
			continue
		}
		out.dist[n.ID] = w
	}
	return out, nil
}

// ShortestPath implements Algorithms.
func (d *Dijkstra) ShortestPath(from, to int) ([]int, error) {
	if _, ok := d.g.Node(to); !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNode, to)
	}
	sp, err := d.search(from)
	if err != nil {
		return nil, err
	}
	nodes, _ := sp.To(int64(to))
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: %d→%d", ErrNoPath, from, to)
	}
	return nodeIDs(nodes), nil
}

func nodeIDs(nodes []gonum.Node) []int {
	ids := make([]int, len(nodes))
	for i, n := range nodes {
		ids[i] = int(n.ID())
	}
	return ids
}
