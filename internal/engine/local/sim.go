// Package local is an in-process simulation engine. It runs a
// deterministic fixed-step clock: agents traverse an edge in weight/speed
// seconds and capture every target they pass.
package local

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/Garsondee/graph-arena/internal/engine"
	"github.com/Garsondee/graph-arena/internal/graph"
	"github.com/Garsondee/graph-arena/internal/snapshot"
)

const (
	DefaultDuration = 30 * time.Second
	DefaultStep     = 100 * time.Millisecond
)

var errNoGraph = errors.New("local: no graph configured")

type simTarget struct {
	id    int
	value float64
	edge  graph.Edge
	frac  float64 // position along the edge, 0 at src
	pos   graph.Point
}

// typ is the category flag the engine reports: positive when the owning
// edge runs from the lower id to the higher one.
func (t *simTarget) typ() int {
	if t.edge.Src > t.edge.Dest {
		return -1
	}
	return 1
}

type simAgent struct {
	id       int
	value    float64
	speed    float64
	src      int
	dest     int // -1 while resting
	progress float64
	pos      graph.Point
}

// Sim implements engine.Engine in process. All methods are safe for
// concurrent use.
type Sim struct {
	mu sync.Mutex

	g        *graph.Graph
	name     string
	targets  []*simTarget
	agents   []*simAgent
	speeds   []float64
	rng      *rand.Rand
	duration time.Duration
	step     time.Duration
	elapsed  time.Duration
	level    int
	quota    int
	respawn  bool
	explicit bool

	started  bool
	moves    int
	grade    float64
	nextTID  int
	captures []Capture
	err      error
}

// Capture records one eaten target.
type Capture struct {
	Step   int
	Agent  int
	Target int
	Value  float64
}

// optionKind controls the pass in which an option is applied.
type optionKind int

const (
	optInfra  optionKind = iota // graph, clock, seed: applied first
	optTarget                   // targets: applied once the graph exists
)

// Option is a builder function applied to a Sim during construction.
type Option struct {
	kind optionKind
	fn   func(*Sim)
}

// WithGraph sets the playing field. name is reported as the snapshot's
// graph reference.
func WithGraph(name string, g *graph.Graph) Option {
	return Option{optInfra, func(s *Sim) {
		s.g = g
		s.name = name
	}}
}

// WithSeed sets the RNG seed for deterministic runs.
func WithSeed(seed int64) Option {
	return Option{optInfra, func(s *Sim) {
		s.rng = rand.New(rand.NewSource(seed)) // #nosec G404 -- simulation
	}}
}

// WithDuration sets the session length in simulated time.
func WithDuration(d time.Duration) Option {
	return Option{optInfra, func(s *Sim) { s.duration = d }}
}

// WithStep sets how much simulated time one Advance covers.
func WithStep(d time.Duration) Option {
	return Option{optInfra, func(s *Sim) { s.step = d }}
}

// WithAgentSpeeds sets the speeds handed to spawned agents, in spawn order.
// The list repeats when more agents are spawned.
func WithAgentSpeeds(speeds ...float64) Option {
	return Option{optInfra, func(s *Sim) { s.speeds = speeds }}
}

// WithAgentQuota sets how many agents the session asks clients to place.
func WithAgentQuota(n int) Option {
	return Option{optInfra, func(s *Sim) { s.quota = n }}
}

// WithLevel sets the reported level.
func WithLevel(n int) Option {
	return Option{optInfra, func(s *Sim) { s.level = n }}
}

// WithRespawn replaces every eaten target with a new one on a random edge.
func WithRespawn(on bool) Option {
	return Option{optInfra, func(s *Sim) { s.respawn = on }}
}

// WithPositionsOnly omits owning edges from snapshots so clients must
// locate targets from their position and type.
func WithPositionsOnly() Option {
	return Option{optInfra, func(s *Sim) { s.explicit = false }}
}

// WithTarget places a target on edge src→dest at fraction frac of its length.
func WithTarget(value float64, src, dest int, frac float64) Option {
	return Option{optTarget, func(s *Sim) {
		if err := s.addTarget(value, src, dest, frac); err != nil && s.err == nil {
			s.err = err
		}
	}}
}

// WithRandomTargets scatters n targets with values in [1,top] over random edges.
func WithRandomTargets(n int, top float64) Option {
	return Option{optTarget, func(s *Sim) {
		for i := 0; i < n; i++ {
			s.addRandomTarget(top)
		}
	}}
}

// New constructs a Sim from the given options in two ordered passes:
// infrastructure first, then targets.
func New(opts ...Option) (*Sim, error) {
	s := &Sim{
		name:     "local",
		duration: DefaultDuration,
		step:     DefaultStep,
		speeds:   []float64{1},
		quota:    1,
		explicit: true,
		rng:      rand.New(rand.NewSource(1)), // #nosec G404 -- simulation default
	}
	for _, o := range opts {
		if o.kind == optInfra {
			o.fn(s)
		}
	}
	if s.g == nil {
		return nil, errNoGraph
	}
	if len(s.speeds) == 0 {
		s.speeds = []float64{1}
	}
	if s.step <= 0 || s.duration <= 0 {
		return nil, fmt.Errorf("local: step %v and duration %v must be positive", s.step, s.duration)
	}
	for _, o := range opts {
		if o.kind == optTarget {
			o.fn(s)
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s, nil
}

func (s *Sim) addTarget(value float64, src, dest int, frac float64) error {
	e, ok := s.g.Edge(src, dest)
	if !ok {
		return fmt.Errorf("local: target on missing edge %d→%d", src, dest)
	}
	if frac < 0 || frac > 1 {
		return fmt.Errorf("local: target fraction %v outside [0,1]", frac)
	}
	t := &simTarget{id: s.nextTID, value: value, edge: e, frac: frac, pos: s.along(e, frac)}
	s.nextTID++
	s.targets = append(s.targets, t)
	return nil
}

func (s *Sim) addRandomTarget(top float64) {
	edges := s.g.AllEdges()
	if len(edges) == 0 {
		return
	}
	e := edges[s.rng.Intn(len(edges))]
	value := 1 + math.Floor(s.rng.Float64()*top)
	if value > top {
		value = top
	}
	// keep clear of the end nodes so the owning edge is unambiguous
	frac := 0.1 + 0.8*s.rng.Float64()
	_ = s.addTarget(value, e.Src, e.Dest, frac)
}

func (s *Sim) along(e graph.Edge, frac float64) graph.Point {
	a, _ := s.g.Node(e.Src)
	b, _ := s.g.Node(e.Dest)
	return graph.Point{
		X: a.Loc.X + (b.Loc.X-a.Loc.X)*frac,
		Y: a.Loc.Y + (b.Loc.Y-a.Loc.Y)*frac,
		Z: a.Loc.Z + (b.Loc.Z-a.Loc.Z)*frac,
	}
}

// --- engine.Engine ---

// GraphDefinition returns the graph JSON.
func (s *Sim) GraphDefinition(context.Context) ([]byte, error) {
	return graph.Encode(s.g)
}

// SpawnAgent places a new agent on node. Only allowed before Start.
func (s *Sim) SpawnAgent(_ context.Context, node int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return 0, fmt.Errorf("%w: spawn after start", engine.ErrRejected)
	}
	n, ok := s.g.Node(node)
	if !ok {
		return 0, fmt.Errorf("%w: spawn on unknown node %d", engine.ErrRejected, node)
	}
	id := len(s.agents)
	s.agents = append(s.agents, &simAgent{
		id:    id,
		speed: s.speeds[id%len(s.speeds)],
		src:   node,
		dest:  -1,
		pos:   n.Loc,
	})
	return id, nil
}

// Start begins the clock.
func (s *Sim) Start(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("%w: already started", engine.ErrRejected)
	}
	s.started = true
	return nil
}

// Active reports whether the session clock is running.
func (s *Sim) Active(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeLocked(), nil
}

func (s *Sim) activeLocked() bool {
	return s.started && s.elapsed < s.duration
}

// MoveAgent sends a resting agent along the edge to node.
func (s *Sim) MoveAgent(_ context.Context, agentID, node int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if agentID < 0 || agentID >= len(s.agents) {
		return fmt.Errorf("%w: unknown agent %d", engine.ErrRejected, agentID)
	}
	a := s.agents[agentID]
	if a.dest != -1 {
		return fmt.Errorf("%w: agent %d is travelling %d→%d", engine.ErrRejected, agentID, a.src, a.dest)
	}
	if _, ok := s.g.Edge(a.src, node); !ok {
		return fmt.Errorf("%w: no edge %d→%d for agent %d", engine.ErrRejected, a.src, node, agentID)
	}
	a.dest = node
	a.progress = 0
	return nil
}

// Advance moves the clock one step. Advancing a finished session is a no-op.
func (s *Sim) Advance(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return fmt.Errorf("%w: advance before start", engine.ErrRejected)
	}
	if !s.activeLocked() {
		return nil
	}
	s.moves++
	dt := s.step.Seconds()
	for _, a := range s.agents {
		s.advanceAgent(a, dt)
	}
	s.elapsed += s.step
	return nil
}

func (s *Sim) advanceAgent(a *simAgent, dt float64) {
	if a.dest == -1 {
		return
	}
	e, _ := s.g.Edge(a.src, a.dest)
	before := a.progress
	switch {
	case e.Weight <= 0:
		a.progress = 1
	case a.speed > 0:
		a.progress += dt * a.speed / e.Weight
	}
	if a.progress > 1 {
		a.progress = 1
	}
	s.captureOn(a, e, before, a.progress)

	if a.progress >= 1 {
		n, _ := s.g.Node(a.dest)
		a.src, a.dest, a.progress, a.pos = a.dest, -1, 0, n.Loc
		return
	}
	a.pos = s.along(e, a.progress)
}

// captureOn eats every target on e whose position lies in [from, to].
func (s *Sim) captureOn(a *simAgent, e graph.Edge, from, to float64) {
	kept := s.targets[:0]
	eaten := 0
	for _, t := range s.targets {
		if t.edge.Same(e) && t.frac >= from && t.frac <= to {
			a.value += t.value
			s.grade += t.value
			s.captures = append(s.captures, Capture{Step: s.moves, Agent: a.id, Target: t.id, Value: t.value})
			eaten++
			continue
		}
		kept = append(kept, t)
	}
	s.targets = kept
	if s.respawn {
		for i := 0; i < eaten; i++ {
			s.addRandomTarget(maxValue)
		}
	}
}

const maxValue = 15

// Snapshot reports the current world state as snapshot JSON.
func (s *Sim) Snapshot(context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot.Encode(s.snapshotLocked())
}

func (s *Sim) snapshotLocked() *snapshot.Snapshot {
	left := s.duration - s.elapsed
	if left < 0 {
		left = 0
	}
	snap := &snapshot.Snapshot{
		Session: snapshot.Session{
			Graph:      s.name,
			Agents:     s.quota,
			Targets:    len(s.targets),
			Moves:      s.moves,
			Grade:      int(s.grade),
			Level:      s.level,
			Active:     s.activeLocked(),
			TimeLeftMS: left.Milliseconds(),
		},
		Agents:  make([]snapshot.Agent, 0, len(s.agents)),
		Targets: make([]snapshot.Target, 0, len(s.targets)),
	}
	for _, a := range s.agents {
		snap.Agents = append(snap.Agents, snapshot.Agent{
			ID: a.id, Value: a.value, Src: a.src, Dest: a.dest, Speed: a.speed, Pos: a.pos.String(),
		})
	}
	for _, t := range s.targets {
		st := snapshot.Target{ID: t.id, Value: t.value, Type: t.typ(), Pos: t.pos.String()}
		if s.explicit {
			st.Src = snapshot.IntPtr(t.edge.Src)
			st.Dest = snapshot.IntPtr(t.edge.Dest)
		}
		snap.Targets = append(snap.Targets, st)
	}
	return snap
}

// Captures returns the capture history, oldest first.
func (s *Sim) Captures() []Capture {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Capture(nil), s.captures...)
}

// Duration returns the configured session length.
func (s *Sim) Duration() time.Duration { return s.duration }

// Graph returns the playing field.
func (s *Sim) Graph() *graph.Graph { return s.g }
