// Package routing assigns targets to agents, plans their paths over the
// session graph and paces their movement commands.
package routing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/Garsondee/graph-arena/internal/arena"
	"github.com/Garsondee/graph-arena/internal/graph"
)

var (
	// ErrNoCandidate means no unclaimed, reachable target exists for the agent.
	ErrNoCandidate = errors.New("routing: no unclaimed target available")
	// ErrClaimConflict reports a broken at-most-one-claim invariant.
	ErrClaimConflict = errors.New("routing: target already claimed by another agent")
)

// NoNode is the sentinel returned when no move is issued.
const NoNode = arena.NoNode

// Epsilon replaces a zero distance in value/distance scoring, which makes a
// target on the agent's own node the most attractive one.
const Epsilon = 0.000001

// Commander issues commands to the simulation engine.
type Commander interface {
	SpawnAgent(ctx context.Context, node int) (int, error)
	MoveAgent(ctx context.Context, agentID, node int) error
}

// Observer receives routing decisions; the session uses it to feed its
// event log. Calls are made from the goroutine doing the planning.
type Observer interface {
	Planned(agent *arena.Agent, plan Plan)
	Released(agent *arena.Agent, target *arena.Target, arrived bool)
}

// Plan is the outcome of one CreatePath call.
type Plan struct {
	Target   *arena.Target
	Path     []int
	Distance float64
	Strategy Strategy
}

// Move is the outcome of one NextMove call.
type Move struct {
	Node      int
	Replanned bool
}

// Router runs the routing algorithms against one arena. Planning is
// serialized by planMu so the scan-pick-claim sequence is atomic across
// agents.
type Router struct {
	arena    *arena.Arena
	algo     graph.Algorithms
	cmd      Commander
	selector StrategySelector
	observer Observer
	pacing   Pacing
	log      *slog.Logger

	planMu sync.Mutex
	paceMu sync.RWMutex
}

// Option configures a Router.
type Option func(*Router)

// WithSelector overrides the strategy policy.
func WithSelector(s StrategySelector) Option {
	return func(r *Router) { r.selector = s }
}

// WithObserver attaches a decision observer.
func WithObserver(o Observer) Option {
	return func(r *Router) { r.observer = o }
}

// WithPacing overrides the cadence settings.
func WithPacing(p Pacing) Option {
	return func(r *Router) { r.pacing = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) { r.log = l }
}

// New creates a Router.
func New(a *arena.Arena, algo graph.Algorithms, cmd Commander, opts ...Option) *Router {
	r := &Router{
		arena:    a,
		algo:     algo,
		cmd:      cmd,
		selector: SpeedSelector{FastSpeed: DefaultFastSpeed},
		pacing:   DefaultPacing(),
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Arena returns the arena the router works on.
func (r *Router) Arena() *arena.Arena { return r.arena }

// --- Planning ---

// CreatePath selects a target for agent, plans the path to it and claims it.
// It returns ErrNoCandidate when every live target is claimed or
// unreachable.
func (r *Router) CreatePath(agent *arena.Agent) (Plan, error) {
	r.planMu.Lock()
	defer r.planMu.Unlock()

	agents, targets := r.arena.Counts()
	strategy := r.selector.Select(agents, targets, agent.Speed())

	from := agent.Src()
	dist, err := r.algo.Distances(from)
	if err != nil {
		return Plan{}, fmt.Errorf("routing: distances from %d: %w", from, err)
	}

	best, bestDist := pick(strategy, r.arena.Unclaimed(), dist)
	if best == nil {
		return Plan{}, ErrNoCandidate
	}

	nodes, err := r.algo.ShortestPath(from, best.Edge.Src)
	if err != nil {
		return Plan{}, fmt.Errorf("routing: path %d→%d: %w", from, best.Edge.Src, err)
	}
	// The first node is where the agent stands, not an instruction.
	path := append(nodes[1:len(nodes):len(nodes)], best.Edge.Dest)

	if !r.arena.Claim(best.ID, agent.ID()) {
		return Plan{}, fmt.Errorf("%w: %s", ErrClaimConflict, best)
	}
	agent.Pursue(best, path)

	plan := Plan{Target: best, Path: path, Distance: bestDist, Strategy: strategy}
	r.log.Debug("path planned",
		"agent", agent.ID(), "target", best.ID, "strategy", strategy.String(),
		"distance", bestDist, "path", path)
	if r.observer != nil {
		r.observer.Planned(agent, plan)
	}
	return plan, nil
}

// pick ranks candidates under the strategy. Ties keep the earliest
// candidate. Unreachable candidates are skipped.
func pick(strategy Strategy, candidates []*arena.Target, dist graph.Distances) (*arena.Target, float64) {
	var best *arena.Target
	var bestDist, bestScore float64
	for _, t := range candidates {
		d, ok := dist.To(t.Edge.Src)
		if !ok {
			continue
		}
		var score float64
		switch strategy {
		case StrategyValueDistance:
			if d == 0 {
				d = Epsilon
			}
			score = t.Value / d
		default:
			score = -d
		}
		if best == nil || score > bestScore {
			best, bestDist, bestScore = t, d, score
		}
	}
	return best, bestDist
}

// --- Movement ---

// NextMove advances agent by one node along its path. If the pursued target
// has vanished the stale plan is dropped and a new one created; no move is
// issued and Replanned is set. When the path is consumed the claim is
// released.
func (r *Router) NextMove(ctx context.Context, agent *arena.Agent) (Move, error) {
	t := agent.Target()
	if t == nil || !r.arena.HasTarget(t.ID) {
		if t != nil {
			r.arena.ReleaseOwned(t.ID, agent.ID())
			r.log.Debug("target vanished, replanning", "agent", agent.ID(), "target", t.ID)
			if r.observer != nil {
				r.observer.Released(agent, t, false)
			}
		}
		agent.ClearPlan()
		if _, err := r.CreatePath(agent); err != nil {
			return Move{Node: NoNode}, err
		}
		return Move{Node: NoNode, Replanned: true}, nil
	}

	next, ok := agent.PeekPath()
	if !ok {
		return Move{Node: NoNode}, nil
	}
	if err := r.cmd.MoveAgent(ctx, agent.ID(), next); err != nil {
		return Move{Node: NoNode}, fmt.Errorf("routing: move agent %d to %d: %w", agent.ID(), next, err)
	}
	remaining, popped := agent.PopPath(next)
	if popped && remaining == 0 {
		r.arena.ReleaseOwned(t.ID, agent.ID())
		if r.observer != nil {
			r.observer.Released(agent, t, true)
		}
	}
	return Move{Node: next}, nil
}

// --- Placement ---

// PlaceAgents spawns k agents before the session starts. Agents go to the
// source nodes of the most valuable targets first; any agents left over
// are spread across the graph by distance from the reference node.
// Placement does not claim. Returns the spawn nodes in order.
func (r *Router) PlaceAgents(ctx context.Context, k int) ([]int, error) {
	ranked := r.arena.Targets()
	if len(ranked) == 0 || k <= 0 {
		return nil, nil
	}
	sortByValueDesc(ranked)

	placed := make([]int, 0, k)
	for i := 0; i < k && i < len(ranked); i++ {
		node := ranked[i].Edge.Src
		if _, err := r.cmd.SpawnAgent(ctx, node); err != nil {
			return placed, fmt.Errorf("routing: spawn at %d: %w", node, err)
		}
		placed = append(placed, node)
	}

	rest, err := r.placeByDistance(ctx, k-len(placed))
	placed = append(placed, rest...)
	return placed, err
}

// placeByDistance scatters agents across target source nodes ranked by
// distance from the reference node, sampling every count/remaining-th entry.
func (r *Router) placeByDistance(ctx context.Context, remaining int) ([]int, error) {
	if remaining <= 0 {
		return nil, nil
	}
	targets := r.arena.Targets()
	if len(targets) == 0 {
		return nil, nil
	}
	ref := 0
	if _, ok := r.arena.Graph().Node(ref); !ok {
		ref, _ = r.arena.Graph().LowestNode()
	}
	dist, err := r.algo.Distances(ref)
	if err != nil {
		return nil, fmt.Errorf("routing: distances from %d: %w", ref, err)
	}

	nodes := sourcesByDistance(targets, dist)
	step := len(nodes) / remaining
	if step < 1 {
		step = 1
	}
	placed := make([]int, 0, remaining)
	for i := 0; i < remaining; i++ {
		node := nodes[(i*step)%len(nodes)]
		if _, err := r.cmd.SpawnAgent(ctx, node); err != nil {
			return placed, fmt.Errorf("routing: spawn at %d: %w", node, err)
		}
		placed = append(placed, node)
	}
	return placed, nil
}

func sortByValueDesc(ts []*arena.Target) {
	sort.SliceStable(ts, func(i, j int) bool { return ts[i].Value > ts[j].Value })
}

// sourcesByDistance lists target source nodes nearest first. Unreachable
// sources sort last; ties keep target order.
func sourcesByDistance(ts []*arena.Target, dist graph.Distances) []int {
	type ranked struct {
		node int
		d    float64
	}
	rs := make([]ranked, 0, len(ts))
	for _, t := range ts {
		d, ok := dist.To(t.Edge.Src)
		if !ok {
			d = math.Inf(1)
		}
		rs = append(rs, ranked{node: t.Edge.Src, d: d})
	}
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].d < rs[j].d })
	nodes := make([]int, len(rs))
	for i, r := range rs {
		nodes[i] = r.node
	}
	return nodes
}
