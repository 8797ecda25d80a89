// Package term is a terminal presenter for headless runs: a character map of
// the arena plus a status block, drawn with tcell.
package term

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/Garsondee/graph-arena/internal/arena"
	"github.com/Garsondee/graph-arena/internal/graph"
)

var (
	styleDefault  = tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite)
	styleHeader   = styleDefault.Foreground(tcell.ColorAqua).Bold(true)
	styleBorder   = styleDefault.Foreground(tcell.ColorDarkGray)
	styleNode     = styleDefault.Foreground(tcell.ColorGray)
	stylePositive = styleDefault.Foreground(tcell.ColorLime)
	styleNegative = styleDefault.Foreground(tcell.ColorOrange)
	styleClaimed  = styleDefault.Foreground(tcell.ColorYellow).Bold(true)
	styleAgent    = styleDefault.Foreground(tcell.ColorSkyblue).Bold(true)
	styleTimeline = styleDefault.Foreground(tcell.ColorSkyblue)
	styleLog      = styleDefault.Foreground(tcell.ColorSilver)
)

// Glyphs used on the map.
const (
	glyphNode     = '·'
	glyphPositive = '$'
	glyphNegative = '!'
	glyphClaimed  = '*'
)

// statusRows is the height of the block under the map.
const statusRows = 4

// Presenter draws arena views onto a tcell screen.
type Presenter struct {
	mu     sync.Mutex
	screen tcell.Screen
}

// New wraps an initialised screen.
func New(s tcell.Screen) *Presenter {
	s.SetStyle(styleDefault)
	return &Presenter{screen: s}
}

// Open initialises the real terminal.
func Open() (*Presenter, error) {
	s, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("term: %w", err)
	}
	if err := s.Init(); err != nil {
		return nil, fmt.Errorf("term: init: %w", err)
	}
	return New(s), nil
}

// Close restores the terminal.
func (p *Presenter) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.screen.Fini()
}

// WaitQuit blocks until the user presses q, Esc or Ctrl-C, then calls quit.
// It returns early when ctx ends or the screen is closed.
func (p *Presenter) WaitQuit(ctx context.Context, quit func()) {
	for ctx.Err() == nil {
		ev := p.screen.PollEvent()
		switch ev := ev.(type) {
		case nil:
			return
		case *tcell.EventResize:
			p.screen.Sync()
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyCtrlC || ev.Key() == tcell.KeyEscape || ev.Rune() == 'q' {
				quit()
				return
			}
		}
	}
}

// Present redraws the whole screen from v.
func (p *Presenter) Present(v arena.View) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.screen
	s.Clear()
	w, h := s.Size()
	if w < 10 || h < statusRows+4 {
		drawString(s, 0, 0, "terminal too small", styleHeader)
		s.Show()
		return
	}

	drawString(s, 0, 0, header(v), styleHeader)
	mapH := h - statusRows - 2
	drawBorder(s, 0, 1, w, mapH+2)
	drawMap(s, v, 1, 2, w-2, mapH)

	y := mapH + 3
	drawTimeline(s, 0, y, w, v.Elapsed())
	for i, line := range agentLines(v) {
		if y+1+i >= h {
			break
		}
		drawString(s, 0, y+1+i, line, styleLog)
	}
	s.Show()
}

func header(v arena.View) string {
	return fmt.Sprintf("time to end %5.1fs  level %d  score %.1f  grade %d  moves %d  claimed %d/%d",
		v.TimeLeft.Seconds(), v.Level, v.Score, v.Grade, v.Moves, len(v.Claims), len(v.Targets))
}

// agentLines lists agents by id with their current pursuit.
func agentLines(v arena.View) []string {
	agents := append([]arena.AgentView(nil), v.Agents...)
	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })
	var out []string
	line := ""
	for _, a := range agents {
		cell := fmt.Sprintf("A%d %.0f", a.ID, a.Value)
		if a.TargetID != arena.NoNode {
			cell += fmt.Sprintf("→T%d/%d", a.TargetID, len(a.Path))
		}
		if line != "" {
			line += "  "
		}
		line += cell
		if len(line) > 60 {
			out = append(out, line)
			line = ""
		}
	}
	if line != "" {
		out = append(out, line)
	}
	return out
}

// cell maps a world point into the map rectangle.
func cell(tf graph.Transform, p graph.Point) (int, int) {
	f := tf.WorldToFrame(p)
	return int(f.X + 0.5), int(f.Y + 0.5)
}

// mapTransform fits the graph bounds into a w×h character area at (x0, y0),
// flipping y so north is up.
func mapTransform(v arena.View, x0, y0, w, h int) graph.Transform {
	frame := graph.Range2D{
		X: graph.Range{Min: float64(x0), Max: float64(x0 + w - 1)},
		Y: graph.Range{Min: float64(y0 + h - 1), Max: float64(y0)},
	}
	return v.WorldToFrame(frame)
}

func drawMap(s tcell.Screen, v arena.View, x0, y0, w, h int) {
	tf := mapTransform(v, x0, y0, w, h)
	for _, n := range v.Graph.Nodes() {
		x, y := cell(tf, n.Loc)
		s.SetContent(x, y, glyphNode, nil, styleNode)
	}
	for _, t := range v.Targets {
		x, y := cell(tf, t.Pos)
		r, st := glyphPositive, stylePositive
		if t.Negative() {
			r, st = glyphNegative, styleNegative
		}
		if _, ok := v.Claims[t.ID]; ok {
			r, st = glyphClaimed, styleClaimed
		}
		s.SetContent(x, y, r, nil, st)
	}
	for _, a := range v.Agents {
		x, y := cell(tf, a.Pos)
		s.SetContent(x, y, agentGlyph(a.ID), nil, styleAgent)
	}
}

// agentGlyph is the last digit of the id, so up to ten agents stay distinct.
func agentGlyph(id int) rune {
	if id < 0 {
		return '@'
	}
	return rune('0' + id%10)
}

func drawBorder(s tcell.Screen, x, y, w, h int) {
	for i := x; i < x+w; i++ {
		s.SetContent(i, y, tcell.RuneHLine, nil, styleBorder)
		s.SetContent(i, y+h-1, tcell.RuneHLine, nil, styleBorder)
	}
	for j := y; j < y+h; j++ {
		s.SetContent(x, j, tcell.RuneVLine, nil, styleBorder)
		s.SetContent(x+w-1, j, tcell.RuneVLine, nil, styleBorder)
	}
	s.SetContent(x, y, tcell.RuneULCorner, nil, styleBorder)
	s.SetContent(x+w-1, y, tcell.RuneURCorner, nil, styleBorder)
	s.SetContent(x, y+h-1, tcell.RuneLLCorner, nil, styleBorder)
	s.SetContent(x+w-1, y+h-1, tcell.RuneLRCorner, nil, styleBorder)
}

func drawTimeline(s tcell.Screen, x, y, w int, elapsed float64) {
	filled := int(elapsed * float64(w))
	for i := 0; i < w; i++ {
		r := '░'
		if i < filled {
			r = '█'
		}
		s.SetContent(x+i, y, r, nil, styleTimeline)
	}
}

func drawString(s tcell.Screen, x, y int, str string, style tcell.Style) {
	for i, r := range []rune(str) {
		s.SetContent(x+i, y, r, nil, style)
	}
}
