package view

import (
	"fmt"
	"strings"

	"github.com/Garsondee/graph-arena/internal/arena"
	"github.com/Garsondee/graph-arena/internal/session"
)

// reportTicks is how far back the copied report looks.
const reportTicks = 120

// debugReport renders a plain-text report for pasting into an issue: the
// session totals, the selected agent's state and its recent events. With
// no agent selected every agent is summarised instead.
func debugReport(av arena.View, events *session.EventLog, selected, lastTicks int) string {
	if lastTicks <= 0 {
		lastTicks = reportTicks
	}
	toTick := 0
	if events != nil {
		for _, e := range events.Entries() {
			toTick = max(toTick, e.Tick)
		}
	}
	fromTick := max(toTick-lastTicks+1, 0)

	var b strings.Builder
	fmt.Fprintf(&b, "--- graph-arena debug report ---\n")
	fmt.Fprintf(&b, "tick_range=[%d..%d] time_left=%v elapsed=%.0f%%\n",
		fromTick, toTick, av.TimeLeft, av.Elapsed()*100)
	fmt.Fprintf(&b, "score=%.1f grade=%d moves=%d level=%d agents=%d targets=%d claimed=%d\n\n",
		av.Score, av.Grade, av.Moves, av.Level, len(av.Agents), len(av.Targets), len(av.Claims))

	a, ok := av.AgentByID(selected)
	if !ok {
		for _, a := range av.Agents {
			fmt.Fprintf(&b, "A%-3d value=%-6.1f speed=%-5.2f target=%d hops=%d\n",
				a.ID, a.Value, a.Speed, a.TargetID, len(a.Path))
		}
		if events != nil {
			b.WriteString("\n== events ==\n")
			b.WriteString(events.FormatRange(fromTick, toTick))
		}
		return b.String()
	}

	fmt.Fprintf(&b, "== A%d ==\n", a.ID)
	for _, l := range inspectLines(av, a, true) {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	if events == nil {
		return b.String()
	}
	b.WriteString("\n== events ==\n")
	label := fmt.Sprintf("A%d", a.ID)
	n := 0
	for _, e := range events.FilterAgent(label) {
		if e.Tick < fromTick || e.Tick > toTick {
			continue
		}
		b.WriteString(e.String())
		b.WriteByte('\n')
		n++
	}
	if n == 0 {
		b.WriteString("(no events in range)\n")
	}
	return b.String()
}
