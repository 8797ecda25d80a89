package routing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Garsondee/graph-arena/internal/arena"
	"github.com/Garsondee/graph-arena/internal/graph"
	"github.com/Garsondee/graph-arena/internal/snapshot"
)

// recorder is a Commander that remembers every command.
type recorder struct {
	mu      sync.Mutex
	spawns  []int
	moves   [][2]int
	moveErr error
}

func (r *recorder) SpawnAgent(_ context.Context, node int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spawns = append(r.spawns, node)
	return len(r.spawns) - 1, nil
}

func (r *recorder) MoveAgent(_ context.Context, agentID, node int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.moveErr != nil {
		return r.moveErr
	}
	r.moves = append(r.moves, [2]int{agentID, node})
	return nil
}

// chain: 1(0,0) → 2(5,0) → 3(10,0), both w=5.
func chain(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	for i, x := range []float64{0, 5, 10} {
		if err := g.AddNode(i+1, graph.Point{X: x}); err != nil {
			t.Fatal(err)
		}
	}
	if err := g.Connect(1, 2, 5); err != nil {
		t.Fatal(err)
	}
	if err := g.Connect(2, 3, 5); err != nil {
		t.Fatal(err)
	}
	return g
}

// grid builds an n×n grid with unit spacing and bidirectional edges of
// weight 1. Node id is y*n+x.
func grid(t *testing.T, n int) *graph.Graph {
	t.Helper()
	g := graph.New()
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			if err := g.AddNode(y*n+x, graph.Point{X: float64(x), Y: float64(y)}); err != nil {
				t.Fatal(err)
			}
		}
	}
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			id := y*n + x
			if x+1 < n {
				_ = g.Connect(id, id+1, 1)
				_ = g.Connect(id+1, id, 1)
			}
			if y+1 < n {
				_ = g.Connect(id, id+n, 1)
				_ = g.Connect(id+n, id, 1)
			}
		}
	}
	return g
}

func edgeTarget(g *graph.Graph, id int, value float64, src, dest int) snapshot.Target {
	a, _ := g.Node(src)
	b, _ := g.Node(dest)
	mid := graph.Point{X: (a.Loc.X + b.Loc.X) / 2, Y: (a.Loc.Y + b.Loc.Y) / 2}
	return snapshot.Target{ID: id, Value: value, Type: 1, Pos: mid.String(), Src: snapshot.IntPtr(src), Dest: snapshot.IntPtr(dest)}
}

func restingAgent(g *graph.Graph, id, node int, speed float64) snapshot.Agent {
	n, _ := g.Node(node)
	return snapshot.Agent{ID: id, Src: node, Dest: arena.NoNode, Speed: speed, Pos: n.Loc.String()}
}

func newRouter(t *testing.T, g *graph.Graph, snap *snapshot.Snapshot, opts ...Option) (*Router, *recorder) {
	t.Helper()
	ar := arena.New(g)
	if err := ar.Refresh(snap); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	rec := &recorder{}
	return New(ar, graph.NewDijkstra(g), rec, opts...), rec
}

func mustAgent(t *testing.T, r *Router, id int) *arena.Agent {
	t.Helper()
	a, ok := r.Arena().Agent(id)
	if !ok {
		t.Fatalf("agent %d missing", id)
	}
	return a
}

func assertPathOnGraph(t *testing.T, g *graph.Graph, start int, path []int) {
	t.Helper()
	prev := start
	for _, n := range path {
		if _, ok := g.Edge(prev, n); !ok {
			t.Fatalf("path %v from %d uses missing edge %d→%d", path, start, prev, n)
		}
		prev = n
	}
}

func TestCreatePath_ChainScenario(t *testing.T) {
	g := chain(t)
	r, _ := newRouter(t, g, &snapshot.Snapshot{
		Agents:  []snapshot.Agent{restingAgent(g, 0, 1, 5)},
		Targets: []snapshot.Target{edgeTarget(g, 7, 10, 2, 3)},
	})
	a := mustAgent(t, r, 0)

	plan, err := r.CreatePath(a)
	if err != nil {
		t.Fatalf("CreatePath: %v", err)
	}
	if plan.Strategy != StrategyDistance {
		t.Fatalf("agents == targets should select distance, got %s", plan.Strategy)
	}
	if got := a.Path(); fmt.Sprint(got) != "[2 3]" {
		t.Fatalf("expected path [2 3], got %v", got)
	}
	if owner, ok := r.Arena().ClaimedBy(7); !ok || owner != 0 {
		t.Fatalf("target 7 should be claimed by agent 0, got owner=%d ok=%v", owner, ok)
	}
	if a.Target() == nil || a.Target().ID != 7 {
		t.Fatalf("agent should pursue target 7, got %v", a.Target())
	}
}

func TestCreatePath_ConcurrentDistinctClaims(t *testing.T) {
	const n = 5
	g := grid(t, n)
	snap := &snapshot.Snapshot{}
	for i := 0; i < 8; i++ {
		snap.Agents = append(snap.Agents, restingAgent(g, i, (i*3)%(n*n), 1))
	}
	tid := 100
	for y := 0; y < n; y++ {
		id := y*n + 1
		snap.Targets = append(snap.Targets, edgeTarget(g, tid, float64(y+1), id, id+1))
		tid++
		snap.Targets = append(snap.Targets, edgeTarget(g, tid, float64(y+2), id+2, id+3))
		tid++
	}
	r, _ := newRouter(t, g, snap)

	agents := r.Arena().Agents()
	errs := make(chan error, len(agents))
	var wg sync.WaitGroup
	for _, a := range agents {
		wg.Add(1)
		go func(a *arena.Agent) {
			defer wg.Done()
			if _, err := r.CreatePath(a); err != nil {
				errs <- err
			}
		}(a)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("CreatePath: %v", err)
	}

	claimed := r.Arena().Claimed()
	if len(claimed) != len(agents) {
		t.Fatalf("expected %d distinct claims, got %v", len(agents), claimed)
	}
	seen := map[int]bool{}
	for _, a := range agents {
		tg := a.Target()
		if tg == nil {
			t.Fatalf("agent %d has no target", a.ID())
		}
		if seen[tg.ID] {
			t.Fatalf("target %d pursued twice", tg.ID)
		}
		seen[tg.ID] = true
		if owner, _ := r.Arena().ClaimedBy(tg.ID); owner != a.ID() {
			t.Fatalf("target %d owned by %d, pursued by %d", tg.ID, owner, a.ID())
		}
		assertPathOnGraph(t, g, a.Src(), a.Path())
		path := a.Path()
		if last := path[len(path)-1]; last != tg.Edge.Dest {
			t.Fatalf("path %v should end at target dest %d", path, tg.Edge.Dest)
		}
	}
}

func TestCreatePath_NoCandidate(t *testing.T) {
	g := chain(t)
	r, _ := newRouter(t, g, &snapshot.Snapshot{
		Agents:  []snapshot.Agent{restingAgent(g, 0, 1, 1), restingAgent(g, 1, 2, 1)},
		Targets: []snapshot.Target{edgeTarget(g, 7, 10, 2, 3)},
	})
	if _, err := r.CreatePath(mustAgent(t, r, 0)); err != nil {
		t.Fatal(err)
	}
	if _, err := r.CreatePath(mustAgent(t, r, 1)); !errors.Is(err, ErrNoCandidate) {
		t.Fatalf("expected ErrNoCandidate, got %v", err)
	}
}

func TestCreatePath_SkipsUnreachable(t *testing.T) {
	g := chain(t)
	// agent 0 sits on node 3, which has no outgoing edges
	r, _ := newRouter(t, g, &snapshot.Snapshot{
		Agents:  []snapshot.Agent{restingAgent(g, 0, 3, 1)},
		Targets: []snapshot.Target{edgeTarget(g, 7, 10, 1, 2)},
	})
	if _, err := r.CreatePath(mustAgent(t, r, 0)); !errors.Is(err, ErrNoCandidate) {
		t.Fatalf("unreachable target should yield ErrNoCandidate, got %v", err)
	}
	if len(r.Arena().Claimed()) != 0 {
		t.Fatal("nothing should be claimed")
	}
}

func TestCreatePath_EpsilonGuard(t *testing.T) {
	g := chain(t)
	r, _ := newRouter(t, g, &snapshot.Snapshot{
		Agents: []snapshot.Agent{restingAgent(g, 0, 1, 1)},
		Targets: []snapshot.Target{
			edgeTarget(g, 1, 1000, 2, 3),
			edgeTarget(g, 2, 1, 1, 2),
		},
	})
	plan, err := r.CreatePath(mustAgent(t, r, 0))
	if err != nil {
		t.Fatalf("CreatePath: %v", err)
	}
	if plan.Strategy != StrategyValueDistance {
		t.Fatalf("slow agent outnumbered by targets should weigh value, got %s", plan.Strategy)
	}
	if plan.Target.ID != 2 || plan.Distance != Epsilon {
		t.Fatalf("same-node target should win with epsilon distance, got target %d dist %v", plan.Target.ID, plan.Distance)
	}
	if fmt.Sprint(plan.Path) != "[2]" {
		t.Fatalf("expected path [2], got %v", plan.Path)
	}
}

func TestCreatePath_DistanceTieKeepsListOrder(t *testing.T) {
	g := grid(t, 3)
	// node 4 is the centre; 1 and 3 are both one step away
	r, _ := newRouter(t, g, &snapshot.Snapshot{
		Agents:  []snapshot.Agent{restingAgent(g, 0, 4, 5)},
		Targets: []snapshot.Target{edgeTarget(g, 9, 1, 3, 0), edgeTarget(g, 8, 1, 1, 0)},
	})
	plan, err := r.CreatePath(mustAgent(t, r, 0))
	if err != nil {
		t.Fatal(err)
	}
	if plan.Target.ID != 9 {
		t.Fatalf("tie should go to the first target in list order, got %d", plan.Target.ID)
	}
}

func TestPlaceAgents_TwoByValue(t *testing.T) {
	g := chain(t)
	r, rec := newRouter(t, g, &snapshot.Snapshot{
		Targets: []snapshot.Target{edgeTarget(g, 1, 1, 1, 2), edgeTarget(g, 2, 10, 2, 3)},
	})
	nodes, err := r.PlaceAgents(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(nodes) != "[2 1]" || fmt.Sprint(rec.spawns) != "[2 1]" {
		t.Fatalf("expected spawns at [2 1] (highest value first), got %v / %v", nodes, rec.spawns)
	}
	if len(r.Arena().Claimed()) != 0 {
		t.Fatal("placement must not claim")
	}
}

func TestPlaceAgents_Coverage(t *testing.T) {
	g := grid(t, 4)
	snap := &snapshot.Snapshot{}
	for i := 0; i < 6; i++ {
		snap.Targets = append(snap.Targets, edgeTarget(g, i, float64(i), i*2, i*2+1))
	}
	cases := []struct {
		k        int
		greedy   int
		fallback int
	}{
		{k: 0},
		{k: 3, greedy: 3},
		{k: 6, greedy: 6},
		{k: 10, greedy: 6, fallback: 4},
		{k: 20, greedy: 6, fallback: 14},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("k=%d", tc.k), func(t *testing.T) {
			r, rec := newRouter(t, g, snap)
			nodes, err := r.PlaceAgents(context.Background(), tc.k)
			if err != nil {
				t.Fatal(err)
			}
			if len(nodes) != tc.greedy+tc.fallback || len(rec.spawns) != len(nodes) {
				t.Fatalf("expected %d spawns, got %v", tc.greedy+tc.fallback, nodes)
			}
			distinct := map[int]bool{}
			for _, n := range nodes[:tc.greedy] {
				if distinct[n] {
					t.Fatalf("greedy phase reused node %d: %v", n, nodes)
				}
				distinct[n] = true
			}
			sources := map[int]bool{}
			for _, tg := range snap.Targets {
				sources[*tg.Src] = true
			}
			for _, n := range nodes {
				if !sources[n] {
					t.Fatalf("spawn node %d is not a target source", n)
				}
			}
		})
	}
}

func TestPlaceAgents_NoTargets(t *testing.T) {
	g := chain(t)
	r, rec := newRouter(t, g, &snapshot.Snapshot{})
	nodes, err := r.PlaceAgents(context.Background(), 3)
	if err != nil || len(nodes) != 0 || len(rec.spawns) != 0 {
		t.Fatalf("empty target list places nothing: nodes=%v err=%v", nodes, err)
	}
}

func TestNextMove_ReleaseOnArrival(t *testing.T) {
	g := chain(t)
	r, rec := newRouter(t, g, &snapshot.Snapshot{
		Agents:  []snapshot.Agent{restingAgent(g, 0, 1, 5)},
		Targets: []snapshot.Target{edgeTarget(g, 7, 10, 2, 3)},
	})
	a := mustAgent(t, r, 0)
	if _, err := r.CreatePath(a); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	for _, want := range []int{2, 3} {
		mv, err := r.NextMove(ctx, a)
		if err != nil || mv.Node != want || mv.Replanned {
			t.Fatalf("expected move to %d, got %+v err=%v", want, mv, err)
		}
	}
	if a.PathLen() != 0 {
		t.Fatalf("path should be consumed, got %v", a.Path())
	}
	if _, ok := r.Arena().ClaimedBy(7); ok {
		t.Fatal("claim should be released on arrival")
	}
	if fmt.Sprint(rec.moves) != "[[0 2] [0 3]]" {
		t.Fatalf("unexpected commands: %v", rec.moves)
	}
}

func TestNextMove_FailedCommandKeepsPath(t *testing.T) {
	g := chain(t)
	r, rec := newRouter(t, g, &snapshot.Snapshot{
		Agents:  []snapshot.Agent{restingAgent(g, 0, 1, 5)},
		Targets: []snapshot.Target{edgeTarget(g, 7, 10, 2, 3)},
	})
	a := mustAgent(t, r, 0)
	if _, err := r.CreatePath(a); err != nil {
		t.Fatal(err)
	}
	rec.moveErr = errors.New("boom")
	mv, err := r.NextMove(context.Background(), a)
	if err == nil || mv.Node != NoNode {
		t.Fatalf("expected failure, got %+v", mv)
	}
	if a.PathLen() != 2 {
		t.Fatalf("failed command must not consume the path: %v", a.Path())
	}
}

func TestNextMove_VanishedTargetReplans(t *testing.T) {
	g := chain(t)
	r, rec := newRouter(t, g, &snapshot.Snapshot{
		Agents:  []snapshot.Agent{restingAgent(g, 0, 1, 5)},
		Targets: []snapshot.Target{edgeTarget(g, 7, 10, 2, 3)},
	})
	a := mustAgent(t, r, 0)
	if _, err := r.CreatePath(a); err != nil {
		t.Fatal(err)
	}

	// a rival ate target 7; a new one appeared on 1→2
	if err := r.Arena().Refresh(&snapshot.Snapshot{
		Agents:  []snapshot.Agent{restingAgent(g, 0, 1, 5)},
		Targets: []snapshot.Target{edgeTarget(g, 8, 3, 1, 2)},
	}); err != nil {
		t.Fatal(err)
	}

	mv, err := r.NextMove(context.Background(), a)
	if err != nil {
		t.Fatalf("vanished target must replan, not fail: %v", err)
	}
	if !mv.Replanned || mv.Node != NoNode {
		t.Fatalf("expected a replan without a move, got %+v", mv)
	}
	if len(rec.moves) != 0 {
		t.Fatalf("no command should be issued on replan: %v", rec.moves)
	}
	if a.Target() == nil || a.Target().ID != 8 {
		t.Fatalf("agent should now pursue 8, got %v", a.Target())
	}
	if _, ok := r.Arena().ClaimedBy(7); ok {
		t.Fatal("stale claim on 7 should be gone")
	}
	if fmt.Sprint(a.Path()) != "[2]" {
		t.Fatalf("expected new path [2], got %v", a.Path())
	}
}

func TestNextMove_NothingLeftToChase(t *testing.T) {
	g := chain(t)
	r, _ := newRouter(t, g, &snapshot.Snapshot{Agents: []snapshot.Agent{restingAgent(g, 0, 1, 5)}})
	mv, err := r.NextMove(context.Background(), mustAgent(t, r, 0))
	if !errors.Is(err, ErrNoCandidate) || mv.Node != NoNode {
		t.Fatalf("expected ErrNoCandidate with NoNode, got %+v %v", mv, err)
	}
}

func TestEstimateDelay(t *testing.T) {
	g := chain(t)
	snap := &snapshot.Snapshot{
		Agents: []snapshot.Agent{
			restingAgent(g, 0, 1, 5),
			{ID: 1, Src: 1, Dest: 2, Speed: 5, Pos: "1,0,0"},
			{ID: 2, Src: 1, Dest: 2, Speed: 5, Pos: "5,0,0"},
		},
		Targets: []snapshot.Target{{ID: 9, Value: 1, Type: 1, Pos: "3,0,0", Src: snapshot.IntPtr(1), Dest: snapshot.IntPtr(2)}},
	}
	r, _ := newRouter(t, g, snap)
	tg, _ := r.Arena().Target(9)

	resting := mustAgent(t, r, 0)
	if d, err := r.EstimateDelay(resting, NoNode); err != nil || d != 95*time.Millisecond {
		t.Fatalf("fallback for speed 5 should be 95ms, got %v %v", d, err)
	}
	if d, _ := r.EstimateDelay(resting, 3); d != 95*time.Millisecond {
		t.Fatalf("no edge 1→3 should use the fallback, got %v", d)
	}
	if d, err := r.EstimateDelay(resting, 2); err != nil || d != time.Second {
		t.Fatalf("untargeted edge w=5 at speed 5 should take 1s, got %v %v", d, err)
	}

	closing := mustAgent(t, r, 1)
	closing.Pursue(tg, []int{2})
	if d, err := r.EstimateDelay(closing, 2); err != nil || d != 500*time.Millisecond {
		t.Fatalf("half way to the target should take 500ms, got %v %v", d, err)
	}

	arrived := mustAgent(t, r, 2)
	arrived.Pursue(tg, []int{2})
	d, err := r.EstimateDelay(arrived, 2)
	if !errors.Is(err, ErrInconsistentTiming) || d != FallbackDelay(5) {
		t.Fatalf("degenerate geometry should report inconsistent timing, got %v %v", d, err)
	}
}

func TestEstimateDelay_UsesRefreshedTarget(t *testing.T) {
	g := chain(t)
	agents := []snapshot.Agent{{ID: 1, Src: 1, Dest: 2, Speed: 5, Pos: "1,0,0"}}
	r, _ := newRouter(t, g, &snapshot.Snapshot{
		Agents:  agents,
		Targets: []snapshot.Target{{ID: 9, Value: 1, Type: 1, Pos: "3,0,0", Src: snapshot.IntPtr(1), Dest: snapshot.IntPtr(2)}},
	})
	planned, _ := r.Arena().Target(9)
	a := mustAgent(t, r, 1)
	a.Pursue(planned, []int{2})

	// same id, moved to the far end of the edge
	if err := r.Arena().Refresh(&snapshot.Snapshot{
		Agents:  agents,
		Targets: []snapshot.Target{{ID: 9, Value: 1, Type: 1, Pos: "5,0,0", Src: snapshot.IntPtr(1), Dest: snapshot.IntPtr(2)}},
	}); err != nil {
		t.Fatal(err)
	}
	if cur, _ := r.Arena().Target(9); cur == planned {
		t.Fatal("changed target data should produce a new instance")
	}
	if d, err := r.EstimateDelay(a, 2); err != nil || d != time.Second {
		t.Fatalf("delay should follow the refreshed position, got %v %v", d, err)
	}
}

func TestFallbackDelay_Floor(t *testing.T) {
	if d := FallbackDelay(40); d != MinDelay {
		t.Fatalf("fast agents should hit the floor, got %v", d)
	}
	if d := FallbackDelay(0); d != 130*time.Millisecond {
		t.Fatalf("expected 130ms, got %v", d)
	}
}

func TestCadence(t *testing.T) {
	g := chain(t)
	r, _ := newRouter(t, g, &snapshot.Snapshot{
		Agents:  []snapshot.Agent{restingAgent(g, 0, 1, 1)},
		Targets: []snapshot.Target{edgeTarget(g, 9, 1, 1, 2)},
	})
	if c := r.Cadence(); c != DefaultSlowCadence {
		t.Fatalf("resting agents should pace slow, got %v", c)
	}
	if err := r.Arena().Refresh(&snapshot.Snapshot{
		Agents:  []snapshot.Agent{{ID: 0, Src: 1, Dest: 2, Speed: 1, Pos: "1,0,0"}},
		Targets: []snapshot.Target{edgeTarget(g, 9, 1, 1, 2)},
	}); err != nil {
		t.Fatal(err)
	}
	if c := r.Cadence(); c != DefaultFastCadence {
		t.Fatalf("agent on a target edge should pace fast, got %v", c)
	}
	r.SetPacing(Pacing{Fast: time.Millisecond, Slow: time.Second})
	if c := r.Cadence(); c != time.Millisecond {
		t.Fatalf("SetPacing not applied, got %v", c)
	}
}
