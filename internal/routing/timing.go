package routing

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Garsondee/graph-arena/internal/arena"
)

// ErrInconsistentTiming is returned by EstimateDelay when the agent's
// geometry matches no timing case. The fallback delay is returned with it.
var ErrInconsistentTiming = errors.New("routing: inconsistent timing state")

const (
	// MinDelay floors the speed-based fallback delay.
	MinDelay = 10 * time.Millisecond

	DefaultFastCadence = 50 * time.Millisecond
	DefaultSlowCadence = 100 * time.Millisecond
)

// Pacing holds the two cadences of the adaptive mover.
type Pacing struct {
	Fast time.Duration // some agent is closing in on a target
	Slow time.Duration
}

// DefaultPacing returns 50ms / 100ms.
func DefaultPacing() Pacing {
	return Pacing{Fast: DefaultFastCadence, Slow: DefaultSlowCadence}
}

// Cadence picks how long the pacer waits before the next advance: Fast when
// any agent travels on the owning edge of a live target, Slow otherwise.
func (p Pacing) Cadence(agents []*arena.Agent, targets []*arena.Target) time.Duration {
	for _, a := range agents {
		if a.NearTarget(targets) {
			return p.Fast
		}
	}
	return p.Slow
}

// Cadence applies the router's pacing to the current arena.
func (r *Router) Cadence() time.Duration {
	return r.Pacing().Cadence(r.arena.Agents(), r.arena.Targets())
}

// Pacing returns the current cadence settings.
func (r *Router) Pacing() Pacing {
	r.paceMu.RLock()
	defer r.paceMu.RUnlock()
	return r.pacing
}

// SetPacing replaces the cadence settings of a running router.
func (r *Router) SetPacing(p Pacing) {
	r.paceMu.Lock()
	r.pacing = p
	r.paceMu.Unlock()
}

// FallbackDelay is the short delay used when there is no edge to time.
func FallbackDelay(speed float64) time.Duration {
	d := time.Duration((130-7*speed)*float64(time.Millisecond))
	if d < MinDelay {
		return MinDelay
	}
	return d
}

// EstimateDelay returns how long to wait before commanding agent toward
// next. A full edge costs weight/speed seconds; on the edge holding the
// pursued target the cost is scaled by the remaining distance to it.
func (r *Router) EstimateDelay(agent *arena.Agent, next int) (time.Duration, error) {
	speed := agent.Speed()
	fallback := FallbackDelay(speed)
	if next == NoNode {
		return fallback, nil
	}
	src := agent.Src()
	e, ok := r.arena.Graph().Edge(src, next)
	if !ok {
		return fallback, nil
	}
	if speed <= 0 || math.IsNaN(speed) {
		return fallback, fmt.Errorf("%w: agent %d speed %v", ErrInconsistentTiming, agent.ID(), speed)
	}

	t := agent.Target()
	if t != nil {
		// the agent holds the instance it planned against; positions come
		// from the latest refresh
		if cur, ok := r.arena.Target(t.ID); ok {
			t = cur
		}
	}
	if t == nil || !t.Edge.Same(e) {
		return seconds(e.Weight / speed), nil
	}

	node, ok := r.arena.Graph().Node(next)
	if !ok {
		return fallback, fmt.Errorf("%w: node %d vanished", ErrInconsistentTiming, next)
	}
	toNode := agent.DistanceTo(node.Loc)
	if toNode == 0 {
		return fallback, fmt.Errorf("%w: agent %d already at node %d", ErrInconsistentTiming, agent.ID(), next)
	}
	ratio := agent.DistanceTo(t.Pos) / toNode
	est := ratio * e.Weight / speed
	if math.IsNaN(est) || math.IsInf(est, 0) {
		return fallback, fmt.Errorf("%w: agent %d estimate %v", ErrInconsistentTiming, agent.ID(), est)
	}
	return seconds(est), nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
