// Package arena is the local cache of one game session: graph, agents,
// targets, claims, clock and score, refreshed from engine snapshots.
package arena

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Garsondee/graph-arena/internal/graph"
	"github.com/Garsondee/graph-arena/internal/snapshot"
)

// ErrUnplaceable is returned when a target's owning edge cannot be resolved
// against the graph.
var ErrUnplaceable = errors.New("arena: target has no owning edge")

// Arena holds the session state. All list and claim state sits behind one
// RWMutex so a Refresh is atomic to readers; per-agent plan fields are
// guarded by the agent itself.
type Arena struct {
	g *graph.Graph

	mu         sync.RWMutex
	agents     []*Agent
	agentByID  map[int]*Agent
	targets    []*Target
	targetByID map[int]*Target
	claims     map[int]int // target id → owning agent id

	timeLeft  time.Duration
	timeStart time.Duration
	grade     int
	moves     int
	level     int
}

// New creates an empty arena over g. The graph is fixed for the session.
func New(g *graph.Graph) *Arena {
	return &Arena{
		g:          g,
		agentByID:  make(map[int]*Agent),
		targetByID: make(map[int]*Target),
		claims:     make(map[int]int),
	}
}

// Graph returns the session graph.
func (ar *Arena) Graph() *graph.Graph { return ar.g }

// Refresh merges a snapshot into the arena. Agents are matched by id and
// updated in place; targets matched by id with unchanged data keep their
// instance. Claims on agents that disappeared are released. Claims on
// vanished targets are left for their owner to discover and release.
func (ar *Arena) Refresh(s *snapshot.Snapshot) error {
	targets := make([]*Target, 0, len(s.Targets))
	for _, ts := range s.Targets {
		t, err := ar.buildTarget(ts)
		if err != nil {
			return err
		}
		targets = append(targets, t)
	}

	ar.mu.Lock()
	defer ar.mu.Unlock()

	byID := make(map[int]*Target, len(targets))
	for i, t := range targets {
		if old, ok := ar.targetByID[t.ID]; ok && old.equalData(t) {
			targets[i] = old
		}
		byID[t.ID] = targets[i]
	}
	ar.targets = targets
	ar.targetByID = byID

	seen := make(map[int]bool, len(s.Agents))
	for _, as := range s.Agents {
		seen[as.ID] = true
		st := agentState{speed: as.Speed, value: as.Value, pos: as.Point(), src: as.Src, dest: as.Dest}
		if a, ok := ar.agentByID[as.ID]; ok {
			a.update(st)
			continue
		}
		a := NewAgent(as.ID, st.speed, st.src, st.pos)
		a.update(st)
		ar.agents = append(ar.agents, a)
		ar.agentByID[a.id] = a
	}
	kept := ar.agents[:0]
	for _, a := range ar.agents {
		if seen[a.id] {
			kept = append(kept, a)
			continue
		}
		delete(ar.agentByID, a.id)
		for tid, owner := range ar.claims {
			if owner == a.id {
				delete(ar.claims, tid)
			}
		}
	}
	ar.agents = kept

	ar.timeLeft = s.Session.TimeLeft()
	ar.grade = s.Session.Grade
	ar.moves = s.Session.Moves
	ar.level = s.Session.Level
	return nil
}

func (ar *Arena) buildTarget(ts snapshot.Target) (*Target, error) {
	t := &Target{ID: ts.ID, Value: ts.Value, Type: ts.Type, Pos: ts.Point()}
	if src, dest, ok := ts.Edge(); ok {
		e, found := ar.g.Edge(src, dest)
		if !found {
			return nil, fmt.Errorf("%w: target %d names %d→%d", ErrUnplaceable, ts.ID, src, dest)
		}
		t.Edge = e
		return t, nil
	}
	e, ok := ar.g.Locate(t.Pos, ts.Type)
	if !ok {
		return nil, fmt.Errorf("%w: target %d at %s", ErrUnplaceable, ts.ID, t.Pos)
	}
	t.Edge = e
	return t, nil
}

// MarkStart records the session length for the time line.
func (ar *Arena) MarkStart(total time.Duration) {
	ar.mu.Lock()
	defer ar.mu.Unlock()
	ar.timeStart = total
}

// --- Claims ---

// Claim records agentID as the owner of targetID. It is a no-op returning
// false when another agent already owns the target; claiming a target the
// same agent already owns returns true.
func (ar *Arena) Claim(targetID, agentID int) bool {
	ar.mu.Lock()
	defer ar.mu.Unlock()
	if owner, ok := ar.claims[targetID]; ok {
		return owner == agentID
	}
	ar.claims[targetID] = agentID
	return true
}

// Release drops the claim on targetID.
func (ar *Arena) Release(targetID int) {
	ar.mu.Lock()
	defer ar.mu.Unlock()
	delete(ar.claims, targetID)
}

// ReleaseOwned drops the claim on targetID only if agentID owns it.
func (ar *Arena) ReleaseOwned(targetID, agentID int) bool {
	ar.mu.Lock()
	defer ar.mu.Unlock()
	if owner, ok := ar.claims[targetID]; ok && owner == agentID {
		delete(ar.claims, targetID)
		return true
	}
	return false
}

// ClaimedBy returns the owner of targetID.
func (ar *Arena) ClaimedBy(targetID int) (int, bool) {
	ar.mu.RLock()
	defer ar.mu.RUnlock()
	owner, ok := ar.claims[targetID]
	return owner, ok
}

// Claimed returns the claimed target ids in ascending order.
func (ar *Arena) Claimed() []int {
	ar.mu.RLock()
	defer ar.mu.RUnlock()
	ids := make([]int, 0, len(ar.claims))
	for id := range ar.claims {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Unclaimed returns the live targets nobody owns, in target-list order.
func (ar *Arena) Unclaimed() []*Target {
	ar.mu.RLock()
	defer ar.mu.RUnlock()
	out := make([]*Target, 0, len(ar.targets))
	for _, t := range ar.targets {
		if _, owned := ar.claims[t.ID]; !owned {
			out = append(out, t)
		}
	}
	return out
}

// --- Accessors ---

// Agents returns the live agents in arrival order.
func (ar *Arena) Agents() []*Agent {
	ar.mu.RLock()
	defer ar.mu.RUnlock()
	return append([]*Agent(nil), ar.agents...)
}

// Agent returns the agent with the given id.
func (ar *Arena) Agent(id int) (*Agent, bool) {
	ar.mu.RLock()
	defer ar.mu.RUnlock()
	a, ok := ar.agentByID[id]
	return a, ok
}

// Targets returns the live targets in snapshot order.
func (ar *Arena) Targets() []*Target {
	ar.mu.RLock()
	defer ar.mu.RUnlock()
	return append([]*Target(nil), ar.targets...)
}

// Target returns the live target with the given id.
func (ar *Arena) Target(id int) (*Target, bool) {
	ar.mu.RLock()
	defer ar.mu.RUnlock()
	t, ok := ar.targetByID[id]
	return t, ok
}

// HasTarget reports whether a target with this id is still live.
func (ar *Arena) HasTarget(id int) bool {
	_, ok := ar.Target(id)
	return ok
}

// Counts returns the live agent and target counts from one consistent read.
func (ar *Arena) Counts() (agents, targets int) {
	ar.mu.RLock()
	defer ar.mu.RUnlock()
	return len(ar.agents), len(ar.targets)
}

func (ar *Arena) TimeLeft() time.Duration {
	ar.mu.RLock()
	defer ar.mu.RUnlock()
	return ar.timeLeft
}

func (ar *Arena) TimeStart() time.Duration {
	ar.mu.RLock()
	defer ar.mu.RUnlock()
	return ar.timeStart
}

// Score is the total value collected by live agents.
func (ar *Arena) Score() float64 {
	ar.mu.RLock()
	defer ar.mu.RUnlock()
	var sum float64
	for _, a := range ar.agents {
		sum += a.Value()
	}
	return sum
}

// Grade is the engine-reported grade.
func (ar *Arena) Grade() int {
	ar.mu.RLock()
	defer ar.mu.RUnlock()
	return ar.grade
}

func (ar *Arena) Moves() int {
	ar.mu.RLock()
	defer ar.mu.RUnlock()
	return ar.moves
}

func (ar *Arena) Level() int {
	ar.mu.RLock()
	defer ar.mu.RUnlock()
	return ar.level
}

// WorldToFrame returns the mapping from graph coordinates to the given frame.
func (ar *Arena) WorldToFrame(frame graph.Range2D) graph.Transform {
	return worldToFrame(ar.g, frame)
}

func worldToFrame(g *graph.Graph, frame graph.Range2D) graph.Transform {
	return graph.NewTransform(g.Bounds(), frame)
}
