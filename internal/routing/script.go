package routing

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
)

// ScriptSelector chooses the strategy with a tengo script. The script sees
// the globals agents, targets, speed and fast_speed and must assign
// strategy one of "distance", "value" or "value_distance". A script that
// fails at run time, or leaves strategy unset, falls back to Fallback.
//
//	strategy = "value"
//	if agents == targets || speed > fast_speed { strategy = "distance" }
type ScriptSelector struct {
	Fallback StrategySelector
	Log      *slog.Logger

	mu       sync.Mutex
	compiled *tengo.Compiled
}

// NewScriptSelector compiles src.
func NewScriptSelector(src []byte, fastSpeed float64, fallback StrategySelector) (*ScriptSelector, error) {
	script := tengo.NewScript(src)
	_ = script.Add("agents", 0)
	_ = script.Add("targets", 0)
	_ = script.Add("speed", 0.0)
	_ = script.Add("fast_speed", fastSpeed)
	_ = script.Add("strategy", "")
	script.SetImports(stdlib.GetModuleMap("math"))

	compiled, err := script.Compile()
	if err != nil {
		return nil, fmt.Errorf("routing: compile strategy script: %w", err)
	}
	if fallback == nil {
		fallback = SpeedSelector{FastSpeed: fastSpeed}
	}
	return &ScriptSelector{Fallback: fallback, compiled: compiled}, nil
}

// LoadScriptSelector reads and compiles a script file.
func LoadScriptSelector(path string, fastSpeed float64, fallback StrategySelector) (*ScriptSelector, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("routing: read strategy script %s: %w", path, err)
	}
	return NewScriptSelector(src, fastSpeed, fallback)
}

// Select implements StrategySelector.
func (s *ScriptSelector) Select(agents, targets int, speed float64) Strategy {
	st, err := s.run(agents, targets, speed)
	if err != nil {
		if s.Log != nil {
			s.Log.Warn("strategy script failed, using fallback", "err", err)
		}
		return s.Fallback.Select(agents, targets, speed)
	}
	return st
}

func (s *ScriptSelector) run(agents, targets int, speed float64) (Strategy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, v := range map[string]any{
		"agents":   agents,
		"targets":  targets,
		"speed":    speed,
		"strategy": "",
	} {
		if err := s.compiled.Set(name, v); err != nil {
			return 0, err
		}
	}
	if err := s.compiled.Run(); err != nil {
		return 0, err
	}
	name := strings.TrimSpace(s.compiled.Get("strategy").String())
	if name == "" {
		return 0, fmt.Errorf("routing: strategy script left strategy unset")
	}
	return ParseStrategy(name)
}
