package session

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// Result is the outcome of one session.
type Result struct {
	Score    float64
	Grade    int
	Moves    int
	Level    int
	Ticks    int
	Duration time.Duration // wall time spent running
	Agents   []AgentReport
}

// AgentReport summarises one agent's session from the event log and the
// final arena state.
type AgentReport struct {
	ID       int
	Label    string
	Speed    float64
	Value    float64
	Plans    int
	Arrivals int
	Replans  int
	Idle     int // passes with no target available
}

func (s *Session) result(d time.Duration) Result {
	a := s.Arena()
	res := Result{Ticks: s.Tick(), Duration: d}
	if a == nil {
		return res
	}
	res.Score = a.Score()
	res.Grade = a.Grade()
	res.Moves = a.Moves()
	res.Level = a.Level()

	for _, ag := range a.Agents() {
		label := ag.Label()
		rep := AgentReport{ID: ag.ID(), Label: label, Speed: ag.Speed(), Value: ag.Value()}
		for _, e := range s.events.FilterAgent(label) {
			switch {
			case e.Category == CatPlan && e.Key == "created":
				rep.Plans++
			case e.Category == CatPlan && e.Key == "no-candidate":
				rep.Idle++
			case e.Category == CatClaim && e.Key == "arrived":
				rep.Arrivals++
			case e.Category == CatClaim && e.Key == "vanished":
				rep.Replans++
			}
		}
		res.Agents = append(res.Agents, rep)
	}
	sort.Slice(res.Agents, func(i, j int) bool { return res.Agents[i].ID < res.Agents[j].ID })
	return res
}

// Format writes a human-readable report of r.
func (r Result) Format(w io.Writer) {
	fmt.Fprintf(w, "score=%.1f grade=%d moves=%d level=%d ticks=%d wall=%v\n",
		r.Score, r.Grade, r.Moves, r.Level, r.Ticks, r.Duration.Round(time.Millisecond))
	for _, a := range r.Agents {
		fmt.Fprintf(w, "  %-4s speed=%-5.2f value=%-7.1f plans=%-4d arrivals=%-4d replans=%-4d idle=%d\n",
			a.Label, a.Speed, a.Value, a.Plans, a.Arrivals, a.Replans, a.Idle)
	}
}

// String renders the report.
func (r Result) String() string {
	var sb strings.Builder
	r.Format(&sb)
	return sb.String()
}

// Summary returns per-category event counts and the latest session state,
// for a quick look at a long log.
func (l *EventLog) Summary() string {
	entries := l.Entries()
	var sb strings.Builder
	last := 0
	if n := len(entries); n > 0 {
		last = entries[n-1].Tick
	}
	fmt.Fprintf(&sb, "--- Summary at T=%03d ---\n", last)

	counts := map[string]int{}
	var keys []string
	for _, e := range entries {
		k := e.Category + "/" + e.Key
		if counts[k] == 0 {
			keys = append(keys, k)
		}
		counts[k]++
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "%-24s %d\n", k, counts[k])
	}
	if e, ok := l.LastOf(CatSession, "state"); ok {
		fmt.Fprintf(&sb, "state: %s\n", e.Value)
	}
	return sb.String()
}
