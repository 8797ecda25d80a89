// Package scenario describes a playable session for the local engine: the
// field, the targets, the agent quota and the clock.
package scenario

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Garsondee/graph-arena/internal/engine/local"
	"github.com/Garsondee/graph-arena/internal/graph"
)

// ErrInvalid is returned for scenarios that cannot be built.
var ErrInvalid = errors.New("scenario: invalid")

// Scenario is one session setup. Exactly one of Graph and Grid names the
// playing field.
type Scenario struct {
	Name          string        `yaml:"name"`
	Graph         string        `yaml:"graph"`
	Grid          *Grid         `yaml:"grid"`
	Agents        int           `yaml:"agents"`
	Speeds        []float64     `yaml:"speeds"`
	Duration      time.Duration `yaml:"duration"`
	Step          time.Duration `yaml:"step"`
	Seed          int64         `yaml:"seed"`
	Level         int           `yaml:"level"`
	Respawn       bool          `yaml:"respawn"`
	PositionsOnly bool          `yaml:"positions_only"`
	Targets       []Target      `yaml:"targets"`
	Random        *Random       `yaml:"random_targets"`

	dir string // resolves a relative Graph path
}

// Grid asks for a generated square grid.
type Grid struct {
	Size    int     `yaml:"size"`
	Spacing float64 `yaml:"spacing"`
}

// Target is a hand-placed target.
type Target struct {
	Src   int     `yaml:"src"`
	Dest  int     `yaml:"dest"`
	Frac  float64 `yaml:"frac"`
	Value float64 `yaml:"value"`
}

// Random scatters targets.
type Random struct {
	Count int     `yaml:"count"`
	Max   float64 `yaml:"max"`
}

// Load reads a scenario file. A relative graph path is resolved against
// the scenario's directory.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scenario: read %s: %w", path, err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("scenario: %s: %w", path, err)
	}
	sc.dir = filepath.Dir(path)
	return sc, nil
}

// Parse decodes a scenario document.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("scenario: unmarshal: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks the parts that do not need the graph.
func (sc *Scenario) Validate() error {
	switch {
	case sc.Graph == "" && sc.Grid == nil:
		return fmt.Errorf("%w: one of graph or grid is required", ErrInvalid)
	case sc.Graph != "" && sc.Grid != nil:
		return fmt.Errorf("%w: graph and grid are exclusive", ErrInvalid)
	case sc.Grid != nil && sc.Grid.Size < 2:
		return fmt.Errorf("%w: grid size %d, need at least 2", ErrInvalid, sc.Grid.Size)
	case sc.Agents < 0:
		return fmt.Errorf("%w: negative agent count", ErrInvalid)
	case sc.Duration < 0 || sc.Step < 0:
		return fmt.Errorf("%w: negative clock", ErrInvalid)
	}
	for _, s := range sc.Speeds {
		if s <= 0 {
			return fmt.Errorf("%w: agent speed %v must be positive", ErrInvalid, s)
		}
	}
	return nil
}

// Field builds or loads the playing field.
func (sc *Scenario) Field() (*graph.Graph, error) {
	if sc.Grid != nil {
		spacing := sc.Grid.Spacing
		if spacing <= 0 {
			spacing = 1
		}
		return GridGraph(sc.Grid.Size, spacing), nil
	}
	path := sc.Graph
	if !filepath.IsAbs(path) && sc.dir != "" {
		path = filepath.Join(sc.dir, path)
	}
	g, _, err := graph.Load(path)
	return g, err
}

// Options translates the scenario into local engine options over g.
func (sc *Scenario) Options(g *graph.Graph) []local.Option {
	name := sc.Name
	if name == "" {
		name = "scenario"
	}
	opts := []local.Option{
		local.WithGraph(name, g),
		local.WithSeed(sc.Seed),
		local.WithRespawn(sc.Respawn),
		local.WithLevel(sc.Level),
	}
	if sc.Agents > 0 {
		opts = append(opts, local.WithAgentQuota(sc.Agents))
	}
	if len(sc.Speeds) > 0 {
		opts = append(opts, local.WithAgentSpeeds(sc.Speeds...))
	}
	if sc.Duration > 0 {
		opts = append(opts, local.WithDuration(sc.Duration))
	}
	if sc.Step > 0 {
		opts = append(opts, local.WithStep(sc.Step))
	}
	if sc.PositionsOnly {
		opts = append(opts, local.WithPositionsOnly())
	}
	for _, t := range sc.Targets {
		frac := t.Frac
		if frac == 0 {
			frac = 0.5
		}
		opts = append(opts, local.WithTarget(t.Value, t.Src, t.Dest, frac))
	}
	if sc.Random != nil && sc.Random.Count > 0 {
		top := sc.Random.Max
		if top < 1 {
			top = 1
		}
		opts = append(opts, local.WithRandomTargets(sc.Random.Count, top))
	}
	return opts
}

// NewSim builds the field and a local engine running the scenario. extra
// options are applied after the scenario's own.
func (sc *Scenario) NewSim(extra ...local.Option) (*local.Sim, error) {
	g, err := sc.Field()
	if err != nil {
		return nil, err
	}
	return local.New(append(sc.Options(g), extra...)...)
}

// WithSeed returns a copy of the scenario with another seed, for repeated
// runs of the same setup.
func (sc *Scenario) WithSeed(seed int64) *Scenario {
	cp := *sc
	cp.Seed = seed
	return &cp
}
