// Package snapshot is the structured-text report of world state exchanged
// with the simulation engine.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Garsondee/graph-arena/internal/graph"
)

// ErrMalformed is returned when a snapshot cannot be decoded.
var ErrMalformed = errors.New("snapshot: malformed")

// Session is the session-wide block of a snapshot. Agents is the number of
// agents the client is asked to place, not the number already placed.
type Session struct {
	Graph      string `json:"graph"`
	Agents     int    `json:"agents"`
	Targets    int    `json:"targets"`
	Moves      int    `json:"moves"`
	Grade      int    `json:"grade"`
	Level      int    `json:"level"`
	Active     bool   `json:"active"`
	TimeLeftMS int64  `json:"time_left_ms"`
}

// TimeLeft returns the remaining session time.
func (s Session) TimeLeft() time.Duration {
	return time.Duration(s.TimeLeftMS) * time.Millisecond
}

// Agent is one agent as reported by the engine. Dest is -1 while the agent
// rests on Src.
type Agent struct {
	ID    int     `json:"id"`
	Value float64 `json:"value"`
	Src   int     `json:"src"`
	Dest  int     `json:"dest"`
	Speed float64 `json:"speed"`
	Pos   string  `json:"pos"`
}

// Target is one target as reported by the engine. Src and Dest are optional;
// when absent the owning edge is located from Pos and Type.
type Target struct {
	ID    int     `json:"id"`
	Value float64 `json:"value"`
	Type  int     `json:"type"`
	Pos   string  `json:"pos"`
	Src   *int    `json:"src,omitempty"`
	Dest  *int    `json:"dest,omitempty"`
}

// Snapshot is a point-in-time report of world state.
type Snapshot struct {
	Session Session  `json:"session"`
	Agents  []Agent  `json:"agents"`
	Targets []Target `json:"targets"`
}

// Parse decodes snapshot text and validates positions.
func Parse(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	for _, a := range s.Agents {
		if _, err := graph.ParsePoint(a.Pos); err != nil {
			return nil, fmt.Errorf("%w: agent %d: %v", ErrMalformed, a.ID, err)
		}
	}
	for _, t := range s.Targets {
		if _, err := graph.ParsePoint(t.Pos); err != nil {
			return nil, fmt.Errorf("%w: target %d: %v", ErrMalformed, t.ID, err)
		}
		if (t.Src == nil) != (t.Dest == nil) {
			return nil, fmt.Errorf("%w: target %d: src and dest must be given together", ErrMalformed, t.ID)
		}
	}
	return &s, nil
}

// Encode renders s as snapshot text.
func Encode(s *Snapshot) ([]byte, error) {
	return json.Marshal(s)
}

// Edge returns the explicit owning edge of t, if the engine provided one.
func (t Target) Edge() (src, dest int, ok bool) {
	if t.Src == nil || t.Dest == nil {
		return 0, 0, false
	}
	return *t.Src, *t.Dest, true
}

// Point returns the decoded position. Parse has already validated it.
func (a Agent) Point() graph.Point {
	p, _ := graph.ParsePoint(a.Pos)
	return p
}

// Point returns the decoded position. Parse has already validated it.
func (t Target) Point() graph.Point {
	p, _ := graph.ParsePoint(t.Pos)
	return p
}

// IntPtr is a convenience for building Target edges.
func IntPtr(v int) *int { return &v }
