package arena

import (
	"fmt"
	"sync"

	"github.com/Garsondee/graph-arena/internal/graph"
)

// NoNode marks an unset node reference (an agent at rest has Dest == NoNode).
const NoNode = -1

// Agent is a controllable mover. Engine-reported fields (speed, value,
// position, edge) are written by Arena.Refresh; the plan fields (path and
// pursued target) belong to the routing engine and survive refreshes.
type Agent struct {
	mu sync.RWMutex

	id    int
	speed float64
	value float64
	pos   graph.Point
	src   int
	dest  int

	path   []int
	target *Target
}

// NewAgent creates an agent resting on src.
func NewAgent(id int, speed float64, src int, pos graph.Point) *Agent {
	return &Agent{id: id, speed: speed, src: src, dest: NoNode, pos: pos}
}

func (a *Agent) ID() int { return a.id }

func (a *Agent) Label() string { return fmt.Sprintf("A%d", a.id) }

func (a *Agent) Speed() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.speed
}

// Value is the score the agent has collected so far.
func (a *Agent) Value() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.value
}

func (a *Agent) Pos() graph.Point {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.pos
}

// Src is the node the agent rests on or last left.
func (a *Agent) Src() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.src
}

func (a *Agent) Dest() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.dest
}

// Moving reports whether the agent is traversing an edge.
func (a *Agent) Moving() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.dest != NoNode
}

// Edge returns the edge currently being traversed.
func (a *Agent) Edge() (src, dest int, ok bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.src, a.dest, a.dest != NoNode
}

// DistanceTo returns the planar distance from the agent to p.
func (a *Agent) DistanceTo(p graph.Point) float64 {
	return a.Pos().Distance(p)
}

// NearTarget reports whether the agent is travelling on the owning edge of
// any of the given targets.
func (a *Agent) NearTarget(targets []*Target) bool {
	src, dest, ok := a.Edge()
	if !ok {
		return false
	}
	for _, t := range targets {
		if t.Edge.Src == src && t.Edge.Dest == dest {
			return true
		}
	}
	return false
}

// --- Plan ---

// Path returns a copy of the remaining path.
func (a *Agent) Path() []int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]int(nil), a.path...)
}

// PathLen returns the number of nodes left to visit.
func (a *Agent) PathLen() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.path)
}

// Target returns the pursued target, or nil.
func (a *Agent) Target() *Target {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.target
}

// Pursue installs a new plan.
func (a *Agent) Pursue(t *Target, path []int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.target = t
	a.path = append([]int(nil), path...)
}

// ClearPlan drops the path and the pursued target.
func (a *Agent) ClearPlan() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.target = nil
	a.path = nil
}

// PeekPath returns the next node without consuming it.
func (a *Agent) PeekPath() (int, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.path) == 0 {
		return NoNode, false
	}
	return a.path[0], true
}

// PopPath consumes the head of the path if it equals node and returns how
// many nodes remain. A mismatch means the plan was replaced in between and
// nothing is consumed.
func (a *Agent) PopPath(node int) (remaining int, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.path) == 0 || a.path[0] != node {
		return len(a.path), false
	}
	a.path = a.path[1:]
	return len(a.path), true
}

func (a *Agent) update(s agentState) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.speed = s.speed
	a.value = s.value
	a.pos = s.pos
	a.src = s.src
	a.dest = s.dest
}

type agentState struct {
	speed, value float64
	pos          graph.Point
	src, dest    int
}

// AgentView is a value copy of an agent for presentation.
type AgentView struct {
	ID       int
	Speed    float64
	Value    float64
	Pos      graph.Point
	Src      int
	Dest     int
	Path     []int
	TargetID int // NoNode when idle
}

// View copies the agent's state.
func (a *Agent) View() AgentView {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v := AgentView{
		ID:       a.id,
		Speed:    a.speed,
		Value:    a.value,
		Pos:      a.pos,
		Src:      a.src,
		Dest:     a.dest,
		Path:     append([]int(nil), a.path...),
		TargetID: NoNode,
	}
	if a.target != nil {
		v.TargetID = a.target.ID
	}
	return v
}
