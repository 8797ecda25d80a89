package view

import (
	"fmt"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/colornames"

	"github.com/Garsondee/graph-arena/internal/arena"
)

// inspector holds the selected agent and the view toggle.
type inspector struct {
	selected int  // agent id, arena.NoNode when nothing is selected
	raw      bool // false = curated, true = raw dump
}

const inspWidth = 300

func (v *Viewer) drawInspector(screen *ebiten.Image, av arena.View) {
	a, ok := av.AgentByID(v.inspector.selected)
	if !ok {
		return
	}
	lines := inspectLines(av, a, v.inspector.raw)
	mode := "CURATED"
	if v.inspector.raw {
		mode = "RAW"
	}
	title := fmt.Sprintf("[ A%d ]  view: %s  [I]", a.ID, mode)

	const pad = 6
	bw := float32(inspWidth)
	bh := float32((len(lines)+1)*lineHeight + pad*3)
	bx := float32(v.offX+v.fieldW) - bw - 8
	by := float32(v.offY+v.fieldH) - bh - 8
	vector.FillRect(screen, bx, by, bw, bh, panelBg, false)
	vector.StrokeRect(screen, bx, by, bw, bh, 1, panelBorder, false)

	x, y := int(bx)+pad, int(by)+pad
	drawText(screen, v.face, title, x, y, colornames.White)
	y += lineHeight + pad
	vector.StrokeLine(screen, bx+pad, float32(y-pad/2), bx+bw-pad, float32(y-pad/2), 1, panelBorder, false)
	for _, l := range lines {
		drawText(screen, v.face, l, x, y, colornames.Lightgray)
		y += lineHeight
	}
}

// inspectLines describes one agent. The curated view reads like a status
// card; the raw view dumps every field.
func inspectLines(av arena.View, a arena.AgentView, raw bool) []string {
	if raw {
		return []string{
			fmt.Sprintf("id=%d speed=%.2f value=%.1f", a.ID, a.Speed, a.Value),
			fmt.Sprintf("pos=%s", a.Pos),
			fmt.Sprintf("src=%d dest=%d", a.Src, a.Dest),
			fmt.Sprintf("target=%d", a.TargetID),
			fmt.Sprintf("path=%v", a.Path),
		}
	}

	state := fmt.Sprintf("resting on %d", a.Src)
	if a.Dest != arena.NoNode {
		state = fmt.Sprintf("travelling %d -> %d", a.Src, a.Dest)
	}
	lines := []string{
		"-- SITUATION --",
		state,
		fmt.Sprintf("speed %.2f  collected %.1f", a.Speed, a.Value),
		"-- PLAN --",
	}
	if a.TargetID == arena.NoNode {
		return append(lines, "idle")
	}
	target := fmt.Sprintf("target %d (gone)", a.TargetID)
	for _, t := range av.Targets {
		if t.ID == a.TargetID {
			target = fmt.Sprintf("target %d value %.0f on %d -> %d", t.ID, t.Value, t.Edge.Src, t.Edge.Dest)
			break
		}
	}
	lines = append(lines, target)
	if owner, ok := av.Claims[a.TargetID]; ok && owner != a.ID {
		lines = append(lines, fmt.Sprintf("claimed by A%d", owner))
	}
	if len(a.Path) == 0 {
		return append(lines, "path consumed")
	}
	return append(lines, fmt.Sprintf("%d hops left: %v", len(a.Path), a.Path))
}
