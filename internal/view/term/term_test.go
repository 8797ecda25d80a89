package term

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/Garsondee/graph-arena/internal/arena"
	"github.com/Garsondee/graph-arena/internal/graph"
)

func simScreen(t *testing.T, w, h int) tcell.SimulationScreen {
	t.Helper()
	s := tcell.NewSimulationScreen("UTF-8")
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}
	s.SetSize(w, h)
	t.Cleanup(s.Fini)
	return s
}

// square: 1(0,0) 2(10,0) 3(10,10) 4(0,10).
func squareView(t *testing.T) arena.View {
	t.Helper()
	g := graph.New()
	for id, p := range map[int]graph.Point{1: {}, 2: {X: 10}, 3: {X: 10, Y: 10}, 4: {Y: 10}} {
		if err := g.AddNode(id, p); err != nil {
			t.Fatal(err)
		}
	}
	_ = g.Connect(1, 2, 10)
	_ = g.Connect(2, 3, 10)
	e12, _ := g.Edge(1, 2)
	e23, _ := g.Edge(2, 3)
	return arena.View{
		Graph: g,
		Agents: []arena.AgentView{
			{ID: 3, Pos: graph.Point{}, Src: 1, Dest: arena.NoNode, Path: []int{2}, TargetID: 7, Value: 4},
		},
		Targets: []arena.Target{
			{ID: 7, Value: 5, Type: 1, Pos: graph.Point{X: 10, Y: 5}, Edge: e23},
			{ID: 8, Value: 2, Type: -1, Pos: graph.Point{X: 5}, Edge: e12},
		},
		Claims:    map[int]int{7: 3},
		TimeLeft:  10 * time.Second,
		TimeStart: 20 * time.Second,
	}
}

func rowText(s tcell.SimulationScreen, y, w int) string {
	var sb strings.Builder
	for x := 0; x < w; x++ {
		r, _, _, _ := s.GetContent(x, y)
		sb.WriteRune(r)
	}
	return sb.String()
}

func TestPresent_DrawsMapAndStatus(t *testing.T) {
	const w, h = 41, 20
	s := simScreen(t, w, h)
	p := New(s)
	v := squareView(t)
	p.Present(v)

	if top := rowText(s, 0, w); !strings.HasPrefix(top, "time to end  10.0s") {
		t.Fatalf("header row %q", top)
	}

	mapH := h - statusRows - 2
	tf := mapTransform(v, 1, 2, w-2, mapH)
	check := func(p graph.Point, want rune) {
		t.Helper()
		x, y := cell(tf, p)
		if r, _, _, _ := s.GetContent(x, y); r != want {
			t.Fatalf("at %v (%d,%d) got %q, want %q", p, x, y, r, want)
		}
	}
	// agent over its node, claimed target, negative target, bare node
	check(graph.Point{}, '3')
	check(graph.Point{X: 10, Y: 5}, '*')
	check(graph.Point{X: 5}, '!')
	check(graph.Point{X: 10, Y: 10}, '·')

	// north is up: node 4 (0,10) sits above node 1 (0,0)
	_, yTop := cell(tf, graph.Point{Y: 10})
	_, yBottom := cell(tf, graph.Point{})
	if yTop >= yBottom {
		t.Fatalf("y not flipped: top=%d bottom=%d", yTop, yBottom)
	}

	timeline := rowText(s, mapH+3, w)
	if strings.Count(timeline, "█") != w/2 {
		t.Fatalf("half the session elapsed, timeline %q", timeline)
	}
	if status := rowText(s, mapH+4, w); !strings.Contains(status, "A3 4→T7/1") {
		t.Fatalf("agent line %q", status)
	}
}

func TestPresent_TinyTerminal(t *testing.T) {
	s := simScreen(t, 30, 5)
	New(s).Present(squareView(t))
	if row := rowText(s, 0, 30); !strings.HasPrefix(row, "terminal too small") {
		t.Fatalf("got %q", row)
	}
}

func TestAgentLines_Wrap(t *testing.T) {
	v := arena.View{}
	for i := 0; i < 12; i++ {
		v.Agents = append(v.Agents, arena.AgentView{ID: 11 - i, TargetID: arena.NoNode})
	}
	lines := agentLines(v)
	if len(lines) < 2 {
		t.Fatalf("expected wrapping, got %v", lines)
	}
	if !strings.HasPrefix(lines[0], "A0 0  A1 0") {
		t.Fatalf("agents should be sorted by id: %q", lines[0])
	}
}

func TestWaitQuit(t *testing.T) {
	s := simScreen(t, 20, 10)
	p := New(s)
	quit := make(chan struct{})
	go p.WaitQuit(context.Background(), func() { close(quit) })

	s.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)
	select {
	case <-quit:
	case <-time.After(2 * time.Second):
		t.Fatal("q did not quit")
	}
}

func TestAgentGlyph(t *testing.T) {
	if agentGlyph(12) != '2' || agentGlyph(-1) != '@' {
		t.Fatal("glyphs")
	}
}
