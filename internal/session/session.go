// Package session runs one game: it places agents, then drives the decision
// loop against the engine while presentation and pacing run alongside.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Garsondee/graph-arena/internal/arena"
	"github.com/Garsondee/graph-arena/internal/config"
	"github.com/Garsondee/graph-arena/internal/engine"
	"github.com/Garsondee/graph-arena/internal/graph"
	"github.com/Garsondee/graph-arena/internal/routing"
	"github.com/Garsondee/graph-arena/internal/snapshot"
)

// ErrUsed is returned when Run is called a second time.
var ErrUsed = errors.New("session: already run")

// State is the session lifecycle stage.
type State int32

const (
	Initializing State = iota
	Placing
	Running
	Ending
	Done
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Placing:
		return "placing"
	case Running:
		return "running"
	case Ending:
		return "ending"
	case Done:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Presenter receives arena views on its own goroutine. It must not retain
// the view's maps beyond the call if it intends to mutate them.
type Presenter interface {
	Present(v arena.View)
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(arena.View)

func (f PresenterFunc) Present(v arena.View) { f(v) }

// Config tunes one session.
type Config struct {
	EngineTimeout time.Duration
	// FramePeriod is the presentation interval; zero disables presentation.
	FramePeriod time.Duration
	// Adaptive hands the clock to the pacer, which advances the engine on
	// the router's cadence instead of once per decision pass.
	Adaptive bool
	Pacing   routing.Pacing
	// Throttle waits EstimateDelay before every move command.
	Throttle bool
	Selector routing.StrategySelector
	// Verbose records per-move events in the event log.
	Verbose bool
}

// DefaultConfig mirrors config.Default.
func DefaultConfig() Config {
	return FromConfig(config.Default())
}

// FromConfig takes the session settings out of a run configuration. The
// strategy selector is left to the caller, since loading a script can fail.
func FromConfig(c config.Config) Config {
	return Config{
		EngineTimeout: c.Engine.Timeout,
		FramePeriod:   c.Pacing.FramePeriod(),
		Adaptive:      c.Pacing.Adaptive,
		Pacing:        c.Pacing.RoutingPacing(),
		Throttle:      c.Pacing.Throttle,
		Selector:      routing.SpeedSelector{FastSpeed: c.Routing.FastSpeed},
	}
}

// Option configures a Session.
type Option func(*Session)

// WithPresenter attaches a presenter.
func WithPresenter(p Presenter) Option {
	return func(s *Session) { s.presenter = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithEventLog records events into l instead of a private log.
func WithEventLog(l *EventLog) Option {
	return func(s *Session) { s.events = l }
}

// Session is one run against an engine. A Session is single-use.
type Session struct {
	eng       engine.Engine
	cfg       Config
	presenter Presenter
	log       *slog.Logger
	events    *EventLog

	used     atomic.Bool
	state    atomic.Int32
	active   atomic.Bool
	throttle atomic.Bool
	tick     atomic.Int64

	// step orders decision passes against the pacer's advance and refresh,
	// so a pass never sees a snapshot older than its own last moves.
	step sync.Mutex

	// mu guards pacing, and arena and router while initialize sets them.
	// The activities read arena and router without it: both are fixed
	// before the activities start.
	mu     sync.Mutex
	arena  *arena.Arena
	router *routing.Router
	pacing routing.Pacing
}

// New creates a session over eng. Every engine call is bounded by
// cfg.EngineTimeout.
func New(eng engine.Engine, cfg Config, opts ...Option) *Session {
	if cfg.Pacing.Fast <= 0 || cfg.Pacing.Slow <= 0 {
		cfg.Pacing = routing.DefaultPacing()
	}
	if cfg.Selector == nil {
		cfg.Selector = routing.SpeedSelector{FastSpeed: routing.DefaultFastSpeed}
	}
	s := &Session{
		eng:    engine.WithTimeout(eng, cfg.EngineTimeout),
		cfg:    cfg,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		pacing: cfg.Pacing,
	}
	for _, o := range opts {
		o(s)
	}
	if s.events == nil {
		s.events = NewEventLog(cfg.Verbose)
	}
	s.throttle.Store(cfg.Throttle)
	return s
}

// State returns the current lifecycle stage.
func (s *Session) State() State { return State(s.state.Load()) }

// Tick returns the number of engine steps taken so far.
func (s *Session) Tick() int { return int(s.tick.Load()) }

// Events returns the session event log.
func (s *Session) Events() *EventLog { return s.events }

// Arena returns the session arena, or nil before initialization.
func (s *Session) Arena() *arena.Arena {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.arena
}

// SetPacing replaces the cadence settings, also while running.
func (s *Session) SetPacing(p routing.Pacing) {
	s.mu.Lock()
	s.pacing = p
	r := s.router
	s.mu.Unlock()
	if r != nil {
		r.SetPacing(p)
	}
	s.events.Add(s.Tick(), "--", CatPacing, "updated", fmt.Sprintf("fast=%v slow=%v", p.Fast, p.Slow), 0)
}

// Apply pushes the live-tunable parts of a reloaded configuration.
func (s *Session) Apply(c config.Config) {
	s.SetPacing(c.Pacing.RoutingPacing())
	s.throttle.Store(c.Pacing.Throttle)
}

// Stop asks the running activities to finish after their current pass.
func (s *Session) Stop() { s.active.Store(false) }

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
	s.log.Debug("session state", "state", st)
	s.events.Add(s.Tick(), "--", CatSession, "state", st.String(), 0)
}

// Run plays the session to the end. On a fatal error the result reflects
// the last refreshed state and the error is returned alongside it.
func (s *Session) Run(ctx context.Context) (Result, error) {
	if !s.used.CompareAndSwap(false, true) {
		return Result{}, ErrUsed
	}
	s.setState(Initializing)
	snap, err := s.initialize(ctx)
	if err != nil {
		s.setState(Done)
		return Result{}, err
	}

	s.setState(Placing)
	if err := s.place(ctx, snap.Session.Agents); err != nil {
		s.setState(Done)
		return s.result(0), err
	}

	s.setState(Running)
	began := time.Now()
	runErr := s.play(ctx)

	s.setState(Ending)
	if runErr == nil {
		runErr = s.retry(ctx, "final snapshot", s.refresh)
	}
	res := s.result(time.Since(began))
	s.log.Info("session finished",
		"score", res.Score, "grade", res.Grade, "moves", res.Moves,
		"level", res.Level, "ticks", res.Ticks, "err", runErr)
	s.events.Add(s.Tick(), "--", CatSession, "result",
		fmt.Sprintf("score=%.1f grade=%d moves=%d", res.Score, res.Grade, res.Moves), res.Score)
	s.setState(Done)
	return res, runErr
}

// --- Stages ---

func (s *Session) initialize(ctx context.Context) (*snapshot.Snapshot, error) {
	var def []byte
	err := s.retry(ctx, "graph definition", func(ctx context.Context) error {
		var err error
		def, err = s.eng.GraphDefinition(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	g, err := graph.Parse(def)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	algo := graph.NewDijkstra(g)

	a := arena.New(g)
	s.mu.Lock()
	s.arena = a
	s.router = routing.New(a, algo, s.eng,
		routing.WithSelector(s.cfg.Selector),
		routing.WithObserver(observer{s}),
		routing.WithPacing(s.pacing),
		routing.WithLogger(s.log),
	)
	s.mu.Unlock()

	var snap *snapshot.Snapshot
	err = s.retry(ctx, "snapshot", func(ctx context.Context) error {
		var err error
		snap, err = s.fetch(ctx)
		if err != nil {
			return err
		}
		return a.Refresh(snap)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("session ready", "graph", snap.Session.Graph,
		"nodes", g.NodeCount(), "edges", g.EdgeCount(),
		"targets", len(snap.Targets), "agents", snap.Session.Agents)
	return snap, nil
}

func (s *Session) place(ctx context.Context, k int) error {
	nodes, err := s.router.PlaceAgents(ctx, k)
	for _, n := range nodes {
		s.events.Add(0, "--", CatSession, "placed", fmt.Sprintf("node=%d", n), float64(n))
	}
	if err != nil {
		return fmt.Errorf("session: place agents: %w", err)
	}
	return s.retry(ctx, "snapshot", s.refresh)
}

func (s *Session) play(ctx context.Context) error {
	if err := s.retry(ctx, "start", s.eng.Start); err != nil {
		return err
	}
	if err := s.retry(ctx, "snapshot", s.refresh); err != nil {
		return err
	}
	s.arena.MarkStart(s.arena.TimeLeft())
	s.active.Store(true)
	defer s.active.Store(false)

	g, gctx := errgroup.WithContext(ctx)
	var ticks chan struct{}
	if s.cfg.Adaptive {
		ticks = make(chan struct{}, 1)
		g.Go(func() error { return s.pace(gctx, ticks) })
	}
	g.Go(func() error { return s.decide(gctx, ticks) })
	if s.presenter != nil && s.cfg.FramePeriod > 0 {
		g.Go(func() error { return s.present(gctx) })
	}
	return g.Wait()
}

// --- Activities ---

// decide is the decision loop. Without a pacer it owns the clock: one
// refresh, one planning pass and one advance per iteration. With a pacer it
// runs one pass per pacer tick.
func (s *Session) decide(ctx context.Context, ticks <-chan struct{}) error {
	defer s.active.Store(false)
	for s.active.Load() {
		if ticks != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case _, ok := <-ticks:
				if !ok {
					return nil
				}
			}
		} else {
			live, err := s.stillActive(ctx)
			if err != nil || !live {
				return err
			}
			if err := s.retry(ctx, "snapshot", s.refresh); err != nil {
				return err
			}
		}
		if err := s.pass(ctx); err != nil {
			return err
		}
		if ticks == nil {
			if err := s.advance(ctx); err != nil {
				return err
			}
		}
	}
	return ctx.Err()
}

// pass plans for idle agents and moves every resting one.
func (s *Session) pass(ctx context.Context) error {
	agents, skip, err := s.plan()
	if err != nil {
		return err
	}
	for _, a := range agents {
		if a.Moving() || skip[a.ID()] {
			continue
		}
		if err := s.move(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// plan offers CreatePath to every resting agent without a path. Agents
// with no candidate are returned in skip.
func (s *Session) plan() ([]*arena.Agent, map[int]bool, error) {
	s.step.Lock()
	defer s.step.Unlock()
	tick := s.Tick()
	agents := s.arena.Agents()
	skip := make(map[int]bool)
	for _, a := range agents {
		if a.Moving() || a.PathLen() > 0 {
			continue
		}
		if _, err := s.router.CreatePath(a); err != nil {
			if errors.Is(err, routing.ErrNoCandidate) {
				skip[a.ID()] = true
				s.events.AddVerbose(tick, a.Label(), CatPlan, "no-candidate", "", 0)
				continue
			}
			return nil, nil, fmt.Errorf("session: plan for agent %d: %w", a.ID(), err)
		}
	}
	return agents, skip, nil
}

// move waits out the estimated delay when throttled, then issues the next
// move. The wait happens outside step so the pacer keeps the clock going.
func (s *Session) move(ctx context.Context, a *arena.Agent) error {
	if next, ok := a.PeekPath(); ok {
		delay, err := s.router.EstimateDelay(a, next)
		if err != nil {
			s.log.Error("timing", "agent", a.ID(), "next", next, "err", err)
			s.events.Add(s.Tick(), a.Label(), CatTiming, "inconsistent", err.Error(), delay.Seconds())
		}
		if s.throttle.Load() {
			if err := sleep(ctx, delay); err != nil {
				return err
			}
			if !s.active.Load() {
				return nil
			}
		}
	}

	s.step.Lock()
	defer s.step.Unlock()
	var m routing.Move
	err := s.retry(ctx, "move", func(ctx context.Context) error {
		var err error
		m, err = s.router.NextMove(ctx, a)
		return err
	})
	switch {
	case errors.Is(err, routing.ErrNoCandidate):
		return nil
	case err != nil:
		return err
	}
	if m.Node != routing.NoNode {
		s.events.AddVerbose(s.Tick(), a.Label(), CatMove, "issued", fmt.Sprintf("node=%d", m.Node), float64(m.Node))
	}
	return nil
}

// pace advances the engine on the router's cadence and wakes the decision
// loop after each step. It closes ticks when the engine goes inactive.
func (s *Session) pace(ctx context.Context, ticks chan<- struct{}) error {
	defer close(ticks)
	for s.active.Load() {
		live, err := s.stillActive(ctx)
		if err != nil || !live {
			s.active.Store(false)
			return err
		}
		if err := s.stepAndRefresh(ctx); err != nil {
			return err
		}
		select {
		case ticks <- struct{}{}:
		default:
		}
		if err := sleep(ctx, s.router.Cadence()); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) stepAndRefresh(ctx context.Context) error {
	s.step.Lock()
	defer s.step.Unlock()
	if err := s.advance(ctx); err != nil {
		return err
	}
	return s.retry(ctx, "snapshot", s.refresh)
}

// present hands view copies to the presenter until the session ends, then
// shows the last state once more.
func (s *Session) present(ctx context.Context) error {
	t := time.NewTicker(s.cfg.FramePeriod)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.presenter.Present(s.arena.View())
			if !s.active.Load() {
				return nil
			}
		}
	}
}

// --- Engine plumbing ---

func (s *Session) fetch(ctx context.Context) (*snapshot.Snapshot, error) {
	data, err := s.eng.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snapshot.Parse(data)
}

func (s *Session) refresh(ctx context.Context) error {
	snap, err := s.fetch(ctx)
	if err != nil {
		return err
	}
	return s.arena.Refresh(snap)
}

func (s *Session) advance(ctx context.Context) error {
	if err := s.retry(ctx, "advance", s.eng.Advance); err != nil {
		return err
	}
	s.tick.Add(1)
	return nil
}

func (s *Session) stillActive(ctx context.Context) (bool, error) {
	var live bool
	err := s.retry(ctx, "active", func(ctx context.Context) error {
		var err error
		live, err = s.eng.Active(ctx)
		return err
	})
	return live, err
}

// retry runs fn and, unless the failure is fatal, once more. A second
// failure is returned wrapped with op. ErrNoCandidate is not an engine
// failure and passes straight through.
func (s *Session) retry(ctx context.Context, op string, fn func(context.Context) error) error {
	err := fn(ctx)
	if err == nil || errors.Is(err, routing.ErrNoCandidate) {
		return err
	}
	if engine.Fatal(err) {
		s.events.Add(s.Tick(), "--", CatEngine, "fatal", op+": "+err.Error(), 0)
		return fmt.Errorf("session: %s: %w", op, err)
	}
	s.log.Warn("engine call failed, retrying", "op", op, "err", err)
	s.events.Add(s.Tick(), "--", CatEngine, "retry", op+": "+err.Error(), 0)
	err = fn(ctx)
	if err == nil || errors.Is(err, routing.ErrNoCandidate) {
		return err
	}
	s.events.Add(s.Tick(), "--", CatEngine, "fatal", op+": "+err.Error(), 0)
	return fmt.Errorf("session: %s: %w", op, err)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// observer feeds routing decisions into the event log.
type observer struct{ s *Session }

func (o observer) Planned(a *arena.Agent, p routing.Plan) {
	o.s.events.Add(o.s.Tick(), a.Label(), CatPlan, "created",
		fmt.Sprintf("target=%d strategy=%s path=%v", p.Target.ID, p.Strategy, p.Path), p.Distance)
	o.s.events.AddVerbose(o.s.Tick(), a.Label(), CatClaim, "claimed", fmt.Sprintf("target=%d", p.Target.ID), p.Target.Value)
}

func (o observer) Released(a *arena.Agent, t *arena.Target, arrived bool) {
	key := "vanished"
	if arrived {
		key = "arrived"
	}
	o.s.events.Add(o.s.Tick(), a.Label(), CatClaim, key, fmt.Sprintf("target=%d", t.ID), t.Value)
}
