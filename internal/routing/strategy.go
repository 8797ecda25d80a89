package routing

import "fmt"

// Strategy is the policy choosing which target an agent pursues.
type Strategy int

const (
	// StrategyDistance picks the nearest unclaimed target.
	StrategyDistance Strategy = iota
	// StrategyValueDistance picks the best value per unit of distance.
	StrategyValueDistance
)

func (s Strategy) String() string {
	switch s {
	case StrategyDistance:
		return "distance"
	case StrategyValueDistance:
		return "value_distance"
	default:
		return "unknown"
	}
}

// ParseStrategy accepts the names produced by String plus the short "value".
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "distance":
		return StrategyDistance, nil
	case "value", "value_distance":
		return StrategyValueDistance, nil
	}
	return 0, fmt.Errorf("routing: unknown strategy %q", s)
}

// StrategySelector decides the strategy for one planning call.
type StrategySelector interface {
	Select(agents, targets int, speed float64) Strategy
}

// SelectorFunc adapts a function to StrategySelector.
type SelectorFunc func(agents, targets int, speed float64) Strategy

// Select implements StrategySelector.
func (f SelectorFunc) Select(agents, targets int, speed float64) Strategy {
	return f(agents, targets, speed)
}

// DefaultFastSpeed is the speed above which an agent plays for proximity.
const DefaultFastSpeed = 3.0

// SpeedSelector is the standard policy: when every agent can have a target,
// or the agent is fast, go for the nearest one; otherwise weigh value
// against distance.
type SpeedSelector struct {
	FastSpeed float64
}

// Select implements StrategySelector.
func (s SpeedSelector) Select(agents, targets int, speed float64) Strategy {
	if agents == targets {
		return StrategyDistance
	}
	if speed > s.FastSpeed {
		return StrategyDistance
	}
	return StrategyValueDistance
}
