package view

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/Garsondee/graph-arena/internal/arena"
	"github.com/Garsondee/graph-arena/internal/graph"
	"github.com/Garsondee/graph-arena/internal/session"
)

// line: 1(0,0) → 2(10,0).
func lineView(t *testing.T) arena.View {
	t.Helper()
	g := graph.New()
	if err := g.AddNode(1, graph.Point{}); err != nil {
		t.Fatal(err)
	}
	if err := g.AddNode(2, graph.Point{X: 10}); err != nil {
		t.Fatal(err)
	}
	_ = g.Connect(1, 2, 10)
	e, _ := g.Edge(1, 2)
	return arena.View{
		Graph: g,
		Agents: []arena.AgentView{
			{ID: 0, Speed: 2, Pos: graph.Point{}, Src: 1, Dest: arena.NoNode, Path: []int{2}, TargetID: 5},
			{ID: 1, Speed: 4, Pos: graph.Point{X: 10}, Src: 2, Dest: arena.NoNode, TargetID: arena.NoNode},
		},
		Targets:   []arena.Target{{ID: 5, Value: 9, Type: 1, Pos: graph.Point{X: 5}, Edge: e}},
		Claims:    map[int]int{5: 0},
		TimeLeft:  5 * time.Second,
		TimeStart: 20 * time.Second,
		Score:     3,
	}
}

func TestFeed_RingKeepsNewest(t *testing.T) {
	f := NewFeed()
	for i := 0; i < feedMaxEntries+5; i++ {
		f.Add(session.Event{Tick: i, Agent: "--", Category: session.CatPacing})
	}
	got := f.Recent()
	if len(got) != feedMaxEntries {
		t.Fatalf("expected %d entries, got %d", feedMaxEntries, len(got))
	}
	if got[0].Tick != 5 || got[len(got)-1].Tick != feedMaxEntries+4 {
		t.Fatalf("wrong window: first=%d last=%d", got[0].Tick, got[len(got)-1].Tick)
	}
}

func TestFeed_FollowsEventLog(t *testing.T) {
	l := session.NewEventLog(false)
	v := New(WithEvents(l))
	l.Add(3, "A0", session.CatPlan, "created", "target=5", 1)
	if got := v.feed.Recent(); len(got) != 1 || got[0].Key != "created" {
		t.Fatalf("feed did not receive the event: %+v", got)
	}
}

func TestFeedLine_Truncates(t *testing.T) {
	e := session.Event{Tick: 1, Agent: "A0", Key: "created", Value: strings.Repeat("x", 200)}
	if l := feedLine(e); len(l) > (feedPanelWidth-16)/7 || !strings.HasSuffix(l, "~") {
		t.Fatalf("line not truncated: %q", l)
	}
}

func TestCamera_Clamp(t *testing.T) {
	c := camera{x: -50, y: 5000, zoom: 10}
	c.clamp(1000, 800)
	if c.zoom != zoomMax {
		t.Fatalf("zoom %v not clamped to %v", c.zoom, zoomMax)
	}
	halfW, halfH := 1000/2/zoomMax, 800/2/zoomMax
	if c.x != halfW || c.y != 800-halfH {
		t.Fatalf("camera not kept inside field: (%v,%v)", c.x, c.y)
	}

	c = camera{x: 10, y: 10, zoom: 0.1}
	c.clamp(1000, 800)
	if c.zoom != zoomMin || c.x != 500 || c.y != 400 {
		t.Fatalf("zoomed-out camera should centre: %+v", c)
	}
}

func TestCamera_ToScreen(t *testing.T) {
	c := camera{x: 500, y: 400, zoom: 2}
	x, y := c.toScreen(510, 390, 1000, 800)
	if x != 520 || y != 380 {
		t.Fatalf("toScreen = (%v,%v)", x, y)
	}
}

func TestViewer_PickAgent(t *testing.T) {
	av := lineView(t)
	v := New()
	tf := v.transform(av)
	x, y := tf(graph.Point{X: 10})
	mx, my := int(x)+v.offX+2, int(y)+v.offY-2
	if got := v.pick(av, mx, my); got != 1 {
		t.Fatalf("expected agent 1 under the cursor, got %d", got)
	}
	if got := v.pick(av, v.offX+v.fieldW/2, v.offY+5); got != arena.NoNode {
		t.Fatalf("empty space should deselect, got %d", got)
	}
}

func TestViewer_TransformFlipsY(t *testing.T) {
	g := graph.New()
	_ = g.AddNode(1, graph.Point{X: 0, Y: 0})
	_ = g.AddNode(2, graph.Point{X: 10, Y: 10})
	v := New(WithSize(200, 100))
	tf := v.transform(arena.View{Graph: g})
	x1, y1 := tf(graph.Point{X: 0, Y: 0})
	x2, y2 := tf(graph.Point{X: 10, Y: 10})
	if x1 != fieldPad || y1 != 100-fieldPad || x2 != 200-fieldPad || y2 != fieldPad {
		t.Fatalf("unexpected mapping (%v,%v) (%v,%v)", x1, y1, x2, y2)
	}
}

func TestInspectLines(t *testing.T) {
	av := lineView(t)
	curated := strings.Join(inspectLines(av, av.Agents[0], false), "\n")
	for _, want := range []string{"resting on 1", "target 5 value 9 on 1 -> 2", "1 hops left: [2]"} {
		if !strings.Contains(curated, want) {
			t.Fatalf("curated view missing %q:\n%s", want, curated)
		}
	}
	idle := inspectLines(av, av.Agents[1], false)
	if idle[len(idle)-1] != "idle" {
		t.Fatalf("agent without a target should read idle: %v", idle)
	}
	raw := strings.Join(inspectLines(av, av.Agents[0], true), "\n")
	if !strings.Contains(raw, "path=[2]") || !strings.Contains(raw, "target=5") {
		t.Fatalf("raw view:\n%s", raw)
	}
}

func TestDebugReport(t *testing.T) {
	av := lineView(t)
	l := session.NewEventLog(false)
	l.Add(1, "A0", session.CatPlan, "created", "target=5 path=[2]", 10)
	l.Add(2, "A1", session.CatPlan, "no-candidate", "", 0)

	rep := debugReport(av, l, 0, 0)
	if !strings.Contains(rep, "== A0 ==") || !strings.Contains(rep, "target=5 path=[2]") {
		t.Fatalf("report missing agent section:\n%s", rep)
	}
	if strings.Contains(rep, "no-candidate") {
		t.Fatalf("report leaked another agent's events:\n%s", rep)
	}
	if !strings.Contains(rep, "elapsed=75%") {
		t.Fatalf("report missing elapsed share:\n%s", rep)
	}

	overview := debugReport(av, l, arena.NoNode, 0)
	if !strings.Contains(overview, "no-candidate") || !strings.Contains(overview, "target=5 path=[2]") {
		t.Fatalf("overview should list every agent's events:\n%s", overview)
	}

	all := debugReport(av, nil, arena.NoNode, 0)
	if strings.Count(all, "\nA") != 2 {
		t.Fatalf("overview should list both agents:\n%s", all)
	}
}

func TestHUDLines(t *testing.T) {
	lines := hudLines(lineView(t), "report copied to clipboard")
	if !strings.HasPrefix(lines[0], "time to end   5.0s") {
		t.Fatalf("unexpected first line %q", lines[0])
	}
	if lines[len(lines)-1] != "report copied to clipboard" {
		t.Fatal("status line missing")
	}
}

func TestTargetRadius(t *testing.T) {
	if targetRadius(0) != 3 || targetRadius(-4) != 3 || targetRadius(1e6) != 10 {
		t.Fatal("radius bounds")
	}
	if r := targetRadius(16); math.Abs(float64(r)-7) > 1e-6 {
		t.Fatalf("radius(16) = %v", r)
	}
}

func TestPresent_IsLatestWins(t *testing.T) {
	v := New()
	if _, ok := v.latest(); ok {
		t.Fatal("no view before the first Present")
	}
	av := lineView(t)
	v.Present(av)
	av.Score = 42
	v.Present(av)
	got, ok := v.latest()
	if !ok || got.Score != 42 {
		t.Fatalf("latest view %+v", got.Score)
	}
}
