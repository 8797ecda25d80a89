// Package config loads the YAML run configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Garsondee/graph-arena/internal/engine"
	"github.com/Garsondee/graph-arena/internal/routing"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("config: invalid")

// Config is the whole run configuration.
type Config struct {
	Engine  Engine  `yaml:"engine"`
	Pacing  Pacing  `yaml:"pacing"`
	Routing Routing `yaml:"routing"`
	Log     Log     `yaml:"log"`
}

// Engine selects and bounds the simulation engine. An empty URL means the
// in-process engine.
type Engine struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Pacing controls the session's concurrent activities.
type Pacing struct {
	FrameRate int           `yaml:"frame_rate"`
	Adaptive  bool          `yaml:"adaptive"`
	Fast      time.Duration `yaml:"fast"`
	Slow      time.Duration `yaml:"slow"`
	// Throttle makes the decision loop wait EstimateDelay before each move.
	Throttle bool `yaml:"throttle"`
}

// Routing tunes target selection.
type Routing struct {
	FastSpeed      float64 `yaml:"fast_speed"`
	StrategyScript string  `yaml:"strategy_script"`
}

// Log configures the slog handler.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Engine: Engine{Timeout: engine.DefaultTimeout},
		Pacing: Pacing{
			FrameRate: 60,
			Fast:      routing.DefaultFastCadence,
			Slow:      routing.DefaultSlowCadence,
		},
		Routing: Routing{FastSpeed: routing.DefaultFastSpeed},
		Log:     Log{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults. Keys absent from the file keep their
// default value.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	var problems []string
	if c.Engine.Timeout <= 0 {
		problems = append(problems, "engine.timeout must be positive")
	}
	if c.Pacing.FrameRate < 0 || c.Pacing.FrameRate > 240 {
		problems = append(problems, "pacing.frame_rate must be within [0,240]")
	}
	if c.Pacing.Fast <= 0 || c.Pacing.Slow <= 0 {
		problems = append(problems, "pacing.fast and pacing.slow must be positive")
	} else if c.Pacing.Fast > c.Pacing.Slow {
		problems = append(problems, "pacing.fast must not exceed pacing.slow")
	}
	if c.Routing.FastSpeed <= 0 {
		problems = append(problems, "routing.fast_speed must be positive")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("log.level %q unknown", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log.format %q unknown", c.Log.Format))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// RoutingPacing converts the pacing block for the router.
func (p Pacing) RoutingPacing() routing.Pacing {
	return routing.Pacing{Fast: p.Fast, Slow: p.Slow}
}

// FramePeriod is the presentation refresh interval, zero when disabled.
func (p Pacing) FramePeriod() time.Duration {
	if p.FrameRate <= 0 {
		return 0
	}
	return time.Second / time.Duration(p.FrameRate)
}
