package arena

import (
	"fmt"

	"github.com/Garsondee/graph-arena/internal/graph"
)

// Target is a scorable point located on a graph edge. A Target is never
// mutated after construction; a refresh that changes a target's data
// replaces the instance but keeps the id, and every piece of bookkeeping
// (claims, "still present" checks) compares ids only.
type Target struct {
	ID    int
	Value float64
	Type  int // sign picks the category; negative still scores
	Pos   graph.Point
	Edge  graph.Edge
}

// Negative reports whether the target belongs to the negative category.
func (t *Target) Negative() bool { return t.Type < 0 }

// Same reports whether t and o describe the same target.
func (t *Target) Same(o *Target) bool {
	return t != nil && o != nil && t.ID == o.ID
}

func (t *Target) equalData(o *Target) bool {
	return t.Value == o.Value && t.Type == o.Type && t.Pos == o.Pos && t.Edge == o.Edge
}

func (t *Target) String() string {
	return fmt.Sprintf("T%d(%.0f@%d→%d)", t.ID, t.Value, t.Edge.Src, t.Edge.Dest)
}
