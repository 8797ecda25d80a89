package scenario

import (
	"time"

	"github.com/Garsondee/graph-arena/internal/graph"
)

// GridGraph returns an n×n lattice with bidirectional edges between
// neighbours of weight 1. Node id is row*n+col; spacing only scales
// node locations.
func GridGraph(n int, spacing float64) *graph.Graph {
	g := graph.New()
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			_ = g.AddNode(row*n+col, graph.Point{X: float64(col) * spacing, Y: float64(row) * spacing})
		}
	}
	link := func(a, b int) {
		_ = g.Connect(a, b, 1)
		_ = g.Connect(b, a, 1)
	}
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			id := row*n + col
			if col+1 < n {
				link(id, id+1)
			}
			if row+1 < n {
				link(id, id+n)
			}
		}
	}
	return g
}

// Default is the scenario used when none is given: a 6×6 grid, three
// agents of mixed speed and a dozen respawning targets.
func Default() *Scenario {
	return &Scenario{
		Name:     "grid6",
		Grid:     &Grid{Size: 6, Spacing: 10},
		Agents:   3,
		Speeds:   []float64{2, 4, 6},
		Duration: 30 * time.Second,
		Step:     100 * time.Millisecond,
		Seed:     1,
		Respawn:  true,
		Random:   &Random{Count: 12, Max: 15},
	}
}
