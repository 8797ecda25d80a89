package view

import (
	"fmt"
	"image/color"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	ebtext "github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/colornames"

	"github.com/Garsondee/graph-arena/internal/arena"
	"github.com/Garsondee/graph-arena/internal/graph"
)

type project func(graph.Point) (float32, float32)

var (
	edgeCol     = color.RGBA{R: 70, G: 80, B: 96, A: 255}
	nodeCol     = color.RGBA{R: 120, G: 130, B: 150, A: 255}
	pathCol     = color.RGBA{R: 90, G: 170, B: 255, A: 90}
	claimCol    = color.RGBA{R: 255, G: 215, B: 0, A: 110}
	positiveCol = colornames.Limegreen
	negativeCol = colornames.Orange
	agentCol    = colornames.Deepskyblue
	selectedCol = colornames.White
	panelBg     = color.RGBA{R: 10, G: 12, B: 16, A: 220}
	panelBorder = color.RGBA{R: 60, G: 80, B: 110, A: 200}
)

// lineHeight is the basicfont 7x13 line advance plus spacing.
const lineHeight = 15

func drawText(dst *ebiten.Image, face ebtext.Face, s string, x, y int, c color.Color) {
	op := &ebtext.DrawOptions{}
	op.GeoM.Translate(float64(x), float64(y))
	op.ColorScale.ScaleWithColor(c)
	ebtext.Draw(dst, s, face, op)
}

func drawEdges(dst *ebiten.Image, av arena.View, tf project) {
	g := av.Graph
	for _, e := range g.AllEdges() {
		a, okA := g.Node(e.Src)
		b, okB := g.Node(e.Dest)
		if !okA || !okB {
			continue
		}
		x1, y1 := tf(a.Loc)
		x2, y2 := tf(b.Loc)
		vector.StrokeLine(dst, x1, y1, x2, y2, 1.5, edgeCol, true)
	}
	for _, n := range g.Nodes() {
		x, y := tf(n.Loc)
		vector.FillCircle(dst, x, y, 3, nodeCol, true)
	}
}

// drawPaths traces each agent's remaining path from its current position.
func drawPaths(dst *ebiten.Image, av arena.View, tf project) {
	for _, a := range av.Agents {
		px, py := tf(a.Pos)
		for _, id := range a.Path {
			n, ok := av.Graph.Node(id)
			if !ok {
				break
			}
			x, y := tf(n.Loc)
			vector.StrokeLine(dst, px, py, x, y, 2, pathCol, true)
			px, py = x, y
		}
	}
}

// drawClaims links every claimed target to its owner.
func drawClaims(dst *ebiten.Image, av arena.View, tf project) {
	for _, t := range av.Targets {
		owner, ok := av.Claims[t.ID]
		if !ok {
			continue
		}
		a, ok := av.AgentByID(owner)
		if !ok {
			continue
		}
		x1, y1 := tf(a.Pos)
		x2, y2 := tf(t.Pos)
		vector.StrokeLine(dst, x1, y1, x2, y2, 1, claimCol, true)
	}
}

func drawTargets(dst *ebiten.Image, av arena.View, tf project) {
	for _, t := range av.Targets {
		x, y := tf(t.Pos)
		c := positiveCol
		if t.Negative() {
			c = negativeCol
		}
		vector.FillCircle(dst, x, y, targetRadius(t.Value), c, true)
		if _, claimed := av.Claims[t.ID]; claimed {
			vector.StrokeCircle(dst, x, y, targetRadius(t.Value)+3, 1, claimCol, true)
		}
	}
}

// targetRadius grows with value so rich targets stand out.
func targetRadius(value float64) float32 {
	r := 3 + math.Sqrt(math.Max(value, 0))
	return float32(math.Min(r, 10))
}

func drawAgents(dst *ebiten.Image, av arena.View, tf project, selected int) {
	for _, a := range av.Agents {
		x, y := tf(a.Pos)
		vector.FillCircle(dst, x, y, 6, agentCol, true)
		if a.ID == selected {
			vector.StrokeCircle(dst, x, y, 10, 2, selectedCol, true)
		}
	}
}

func (v *Viewer) drawFrame(screen *ebiten.Image) {
	ox, oy := float32(v.offX), float32(v.offY)
	w, h := float32(v.fieldW), float32(v.fieldH)
	vector.StrokeRect(screen, ox-1, oy-1, w+2, h+2, 2, panelBorder, false)
}

// drawTimeline fills the strip under the playfield with the elapsed share of
// the session.
func (v *Viewer) drawTimeline(screen *ebiten.Image, av arena.View) {
	x := float32(v.offX)
	y := float32(v.offY + v.fieldH + 4)
	w := float32(v.fieldW)
	vector.FillRect(screen, x, y, w, timelineHeight-4, color.RGBA{R: 30, G: 34, B: 44, A: 255}, false)
	vector.FillRect(screen, x, y, w*float32(av.Elapsed()), timelineHeight-4, agentCol, false)
}

// hudLines is the HUD text for av.
func hudLines(av arena.View, status string) []string {
	lines := []string{
		fmt.Sprintf("time to end %5.1fs  level %d", av.TimeLeft.Seconds(), av.Level),
		fmt.Sprintf("score %.1f  grade %d  moves %d", av.Score, av.Grade, av.Moves),
		fmt.Sprintf("agents %d  targets %d  claimed %d", len(av.Agents), len(av.Targets), len(av.Claims)),
		"[H] hud  [P] paths  [I] raw  [C] copy report",
		"WASD/arrows=pan  scroll=zoom  click=inspect  Q=quit",
	}
	if status != "" {
		lines = append(lines, status)
	}
	return lines
}

func (v *Viewer) drawHUD(screen *ebiten.Image, av arena.View) {
	lines := hudLines(av, v.status)
	const padX, padY, charW = 6, 4, 7
	maxLen := 0
	for _, l := range lines {
		maxLen = max(maxLen, len(l))
	}
	bx, by := float32(v.offX+6), float32(v.offY+6)
	bw := float32(maxLen*charW + padX*2)
	bh := float32(len(lines)*lineHeight + padY*2)
	vector.FillRect(screen, bx, by, bw, bh, panelBg, false)
	vector.StrokeRect(screen, bx, by, bw, bh, 1, panelBorder, false)
	for i, l := range lines {
		drawText(screen, v.face, l, int(bx)+padX, int(by)+padY+i*lineHeight, colornames.Lightgray)
	}
}
