package arena

import (
	"time"

	"github.com/Garsondee/graph-arena/internal/graph"
)

// View is a consistent, deep copy of the arena for presentation. Holding a
// View never blocks or affects routing.
type View struct {
	Graph     *graph.Graph // immutable, shared
	Agents    []AgentView
	Targets   []Target
	Claims    map[int]int
	TimeLeft  time.Duration
	TimeStart time.Duration
	Score     float64
	Grade     int
	Moves     int
	Level     int
}

// View snapshots the arena.
func (ar *Arena) View() View {
	ar.mu.RLock()
	defer ar.mu.RUnlock()
	v := View{
		Graph:     ar.g,
		Agents:    make([]AgentView, 0, len(ar.agents)),
		Targets:   make([]Target, 0, len(ar.targets)),
		Claims:    make(map[int]int, len(ar.claims)),
		TimeLeft:  ar.timeLeft,
		TimeStart: ar.timeStart,
		Grade:     ar.grade,
		Moves:     ar.moves,
		Level:     ar.level,
	}
	for _, a := range ar.agents {
		av := a.View()
		v.Score += av.Value
		v.Agents = append(v.Agents, av)
	}
	for _, t := range ar.targets {
		v.Targets = append(v.Targets, *t)
	}
	for tid, owner := range ar.claims {
		v.Claims[tid] = owner
	}
	return v
}

// WorldToFrame is Arena.WorldToFrame for the copied graph.
func (v View) WorldToFrame(frame graph.Range2D) graph.Transform {
	return worldToFrame(v.Graph, frame)
}

// Elapsed returns the fraction of the session already played, in [0,1].
func (v View) Elapsed() float64 {
	if v.TimeStart <= 0 {
		return 0
	}
	f := 1 - float64(v.TimeLeft)/float64(v.TimeStart)
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// AgentByID finds an agent in the view.
func (v View) AgentByID(id int) (AgentView, bool) {
	for _, a := range v.Agents {
		if a.ID == id {
			return a, true
		}
	}
	return AgentView{}, false
}
