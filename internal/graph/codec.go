package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ErrMalformed is returned when a graph definition cannot be decoded.
var ErrMalformed = errors.New("graph: malformed definition")

type nodeDTO struct {
	ID  int    `json:"id"`
	Pos string `json:"pos"`
}

type edgeDTO struct {
	Src    int     `json:"src"`
	Dest   int     `json:"dest"`
	Weight float64 `json:"w"`
}

type graphDTO struct {
	Nodes []nodeDTO `json:"Nodes"`
	Edges []edgeDTO `json:"Edges"`
}

// Parse decodes a graph definition:
//
//	{"Nodes":[{"id":0,"pos":"35.18,32.10,0.0"}],"Edges":[{"src":0,"dest":1,"w":1.4}]}
func Parse(data []byte) (*Graph, error) {
	var dto graphDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	g := New()
	for _, n := range dto.Nodes {
		loc, err := ParsePoint(n.Pos)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", n.ID, err)
		}
		if err := g.AddNode(n.ID, loc); err != nil {
			return nil, err
		}
	}
	for _, e := range dto.Edges {
		if err := g.Connect(e.Src, e.Dest, e.Weight); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Load reads and parses a graph definition file.
func Load(path string) (*Graph, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("graph: load %s: %w", path, err)
	}
	g, err := Parse(data)
	if err != nil {
		return nil, nil, fmt.Errorf("graph: load %s: %w", path, err)
	}
	return g, data, nil
}

// Encode renders g in the definition format accepted by Parse.
func Encode(g *Graph) ([]byte, error) {
	dto := graphDTO{
		Nodes: make([]nodeDTO, 0, g.NodeCount()),
		Edges: make([]edgeDTO, 0, g.EdgeCount()),
	}
	for _, n := range g.Nodes() {
		dto.Nodes = append(dto.Nodes, nodeDTO{ID: n.ID, Pos: n.Loc.String()})
	}
	for _, e := range g.AllEdges() {
		dto.Edges = append(dto.Edges, edgeDTO{Src: e.Src, Dest: e.Dest, Weight: e.Weight})
	}
	return json.Marshal(dto)
}

// ParsePoint decodes the "x,y,z" form used on the wire. The z component is
// optional.
func ParsePoint(s string) (Point, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) < 2 || len(parts) > 3 {
		return Point{}, fmt.Errorf("%w: point %q", ErrMalformed, s)
	}
	var vals [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Point{}, fmt.Errorf("%w: point %q", ErrMalformed, s)
		}
		vals[i] = v
	}
	return Point{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}
