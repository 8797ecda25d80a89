package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/Garsondee/graph-arena/internal/config"
	"github.com/Garsondee/graph-arena/internal/engine"
	"github.com/Garsondee/graph-arena/internal/engine/remote"
	"github.com/Garsondee/graph-arena/internal/logx"
	"github.com/Garsondee/graph-arena/internal/scenario"
	"github.com/Garsondee/graph-arena/internal/session"
	"github.com/Garsondee/graph-arena/internal/view/term"
)

type runStats struct {
	runIndex int
	seed     int64
	result   session.Result
	err      error

	firstPlanTick    int
	firstArrivalTick int
	firstVanishTick  int

	plans    int
	arrivals int
	vanished int
	idle     int
	retries  int
	timing   int
}

// runner holds what every run shares.
type runner struct {
	cfg       config.Config
	scfg      session.Config
	sc        *scenario.Scenario
	log       *slog.Logger
	level     *slog.LevelVar
	presenter session.Presenter
	watcher   *config.Watcher
}

func main() {
	var runs int
	var seedBase int64
	var seedStep int64
	var scenarioPath string
	var configPath string
	var engineURL string
	var logPath string
	var showView bool
	var watch bool

	flag.IntVar(&runs, "runs", 5, "number of sessions to play")
	flag.Int64Var(&seedBase, "seed-base", 42, "scenario seed for run 1")
	flag.Int64Var(&seedStep, "seed-step", 1, "seed increment between runs")
	flag.StringVar(&scenarioPath, "scenario", "", "scenario YAML file (default: built-in grid)")
	flag.StringVar(&configPath, "config", "", "run configuration YAML file")
	flag.StringVar(&engineURL, "engine", "", "websocket URL of a remote engine (overrides engine.url)")
	flag.StringVar(&logPath, "log", "", "write logs to this file instead of stderr")
	flag.BoolVar(&showView, "view", false, "draw the arena in the terminal while running")
	flag.BoolVar(&watch, "watch", false, "reload -config while running")
	flag.Parse()

	if runs <= 0 {
		fmt.Println("error: -runs must be > 0")
		return
	}
	if watch && configPath == "" {
		fmt.Println("error: -watch needs -config")
		return
	}

	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			log.Fatal(err)
		}
	}
	if engineURL != "" {
		cfg.Engine.URL = engineURL
	}
	if cfg.Engine.URL != "" && runs > 1 {
		// a remote engine plays its own game once
		runs = 1
	}

	var logOut io.Writer = os.Stderr
	switch {
	case logPath != "":
		f, err := os.Create(logPath)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		logOut = f
	case showView:
		logOut = io.Discard
	}
	logger, level, err := logx.New(logOut, cfg.Log)
	if err != nil {
		log.Fatal(err)
	}

	sc := scenario.Default()
	if scenarioPath != "" {
		if sc, err = scenario.Load(scenarioPath); err != nil {
			log.Fatal(err)
		}
	}

	scfg, err := session.Build(cfg, logger)
	if err != nil {
		log.Fatal(err)
	}
	scfg.Verbose = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	r := runner{cfg: cfg, scfg: scfg, sc: sc, log: logger, level: level}
	if watch {
		w, err := config.NewWatcher(configPath)
		if err != nil {
			log.Fatal(err)
		}
		defer w.Close()
		r.watcher = w
	}

	// with the terminal view up, the report waits until the screen is gone
	var out io.Writer = os.Stdout
	var buf bytes.Buffer
	if showView {
		p, err := term.Open()
		if err != nil {
			log.Fatal(err)
		}
		go p.WaitQuit(ctx, stop)
		r.presenter = p
		out = &buf
		defer func() {
			p.Close()
			_, _ = io.Copy(os.Stdout, &buf)
		}()
	} else {
		r.scfg.FramePeriod = 0
	}

	name := sc.Name
	if cfg.Engine.URL != "" {
		name = cfg.Engine.URL
	}
	fmt.Fprintf(out, "=== Headless Arena Report ===\n")
	fmt.Fprintf(out, "scenario=%s runs=%d seed_base=%d seed_step=%d adaptive=%t\n\n",
		name, runs, seedBase, seedStep, scfg.Adaptive)

	all := make([]runStats, 0, runs)
	for i := 0; i < runs; i++ {
		seed := seedBase + int64(i)*seedStep
		rs := r.run(ctx, i+1, seed)
		all = append(all, rs)
		printRun(out, rs)
		if ctx.Err() != nil {
			break
		}
	}
	printAggregate(out, all)
}

func (r runner) open(ctx context.Context, seed int64) (engine.Engine, func(), error) {
	if r.cfg.Engine.URL != "" {
		c, err := remote.Dial(ctx, r.cfg.Engine.URL)
		if err != nil {
			return nil, nil, err
		}
		return c, func() { _ = c.Close() }, nil
	}
	sim, err := r.sc.WithSeed(seed).NewSim()
	if err != nil {
		return nil, nil, err
	}
	return sim, func() {}, nil
}

func (r runner) run(ctx context.Context, runIndex int, seed int64) runStats {
	rs := runStats{runIndex: runIndex, seed: seed}
	eng, closeEngine, err := r.open(ctx, seed)
	if err != nil {
		rs.err = err
		return rs
	}
	defer closeEngine()

	opts := []session.Option{session.WithLogger(r.log.With("run", runIndex))}
	if r.presenter != nil {
		opts = append(opts, session.WithPresenter(r.presenter))
	}
	s := session.New(eng, r.scfg, opts...)

	if r.watcher != nil {
		fctx, cancel := context.WithCancel(ctx)
		defer cancel()
		go session.Follow(fctx, r.watcher, s, r.level, r.log)
	}

	rs.result, rs.err = s.Run(ctx)
	if errors.Is(rs.err, context.Canceled) {
		rs.err = nil
	}
	collect(&rs, s.Events())
	return rs
}

func collect(rs *runStats, l *session.EventLog) {
	rs.firstPlanTick = l.FirstTick(session.CatPlan, "created", "")
	rs.firstArrivalTick = l.FirstTick(session.CatClaim, "arrived", "")
	rs.firstVanishTick = l.FirstTick(session.CatClaim, "vanished", "")
	rs.plans = l.CountCategory(session.CatPlan, "created")
	rs.arrivals = l.CountCategory(session.CatClaim, "arrived")
	rs.vanished = l.CountCategory(session.CatClaim, "vanished")
	rs.idle = l.CountCategory(session.CatPlan, "no-candidate")
	rs.retries = l.CountCategory(session.CatEngine, "retry")
	rs.timing = l.CountCategory(session.CatTiming, "inconsistent")
}

// detectStarvation reports runs where some agents collected while others
// never reached a single target.
func detectStarvation(rs runStats) (bool, string) {
	if rs.arrivals == 0 {
		return false, "no_arrivals"
	}
	var starved []string
	for _, a := range rs.result.Agents {
		if a.Arrivals == 0 {
			starved = append(starved, a.Label)
		}
	}
	if len(starved) == 0 {
		return false, "all_agents_arrived"
	}
	reason := "starved=" + strings.Join(starved, ",")
	if rs.idle > 0 {
		reason += fmt.Sprintf(" idle_passes=%d", rs.idle)
	}
	return true, reason
}

// detectUnstable reports runs that needed engine retries, hit inconsistent
// timing or ended on an error.
func detectUnstable(rs runStats) (bool, string) {
	var reasons []string
	if rs.err != nil {
		reasons = append(reasons, "error="+rs.err.Error())
	}
	if rs.retries > 0 {
		reasons = append(reasons, fmt.Sprintf("retries=%d", rs.retries))
	}
	if rs.timing > 0 {
		reasons = append(reasons, fmt.Sprintf("timing=%d", rs.timing))
	}
	if len(reasons) == 0 {
		return false, "clean"
	}
	return true, strings.Join(reasons, " ")
}

func printRun(w io.Writer, rs runStats) {
	fmt.Fprintf(w, "--- Run %d (seed=%d) ---\n", rs.runIndex, rs.seed)
	if rs.err != nil && len(rs.result.Agents) == 0 {
		fmt.Fprintf(w, "error: %v\n\n", rs.err)
		return
	}
	fmt.Fprintf(w, "phase_markers: first_plan=%d first_arrival=%d first_vanish=%d\n",
		rs.firstPlanTick, rs.firstArrivalTick, rs.firstVanishTick)
	fmt.Fprintf(w, "event_totals: plans=%d arrivals=%d vanished=%d idle=%d retries=%d timing=%d\n",
		rs.plans, rs.arrivals, rs.vanished, rs.idle, rs.retries, rs.timing)
	starved, why := detectStarvation(rs)
	unstable, how := detectUnstable(rs)
	fmt.Fprintf(w, "starvation=%t (%s) unstable=%t (%s)\n", starved, why, unstable, how)
	rs.result.Format(w)
	fmt.Fprintln(w)
}

func printAggregate(w io.Writer, all []runStats) {
	totalScore := 0.0
	totalGrade := 0
	totalMoves := 0
	totalTicks := 0
	totalPlans := 0
	totalArrivals := 0
	totalVanished := 0
	totalIdle := 0
	totalRetries := 0
	starvedRuns := 0
	unstableRuns := 0

	planTicks := make([]int, 0, len(all))
	arrivalTicks := make([]int, 0, len(all))
	starvedLabels := map[string]struct{}{}

	type agentAgg struct {
		valueSum float64
		arrivals int
		idle     int
		count    int
		starved  int
	}
	aggs := map[string]*agentAgg{}

	for _, rs := range all {
		totalScore += rs.result.Score
		totalGrade += rs.result.Grade
		totalMoves += rs.result.Moves
		totalTicks += rs.result.Ticks
		totalPlans += rs.plans
		totalArrivals += rs.arrivals
		totalVanished += rs.vanished
		totalIdle += rs.idle
		totalRetries += rs.retries
		if rs.firstPlanTick >= 0 {
			planTicks = append(planTicks, rs.firstPlanTick)
		}
		if rs.firstArrivalTick >= 0 {
			arrivalTicks = append(arrivalTicks, rs.firstArrivalTick)
		}
		if ok, _ := detectStarvation(rs); ok {
			starvedRuns++
		}
		if ok, _ := detectUnstable(rs); ok {
			unstableRuns++
		}
		for _, a := range rs.result.Agents {
			ag, ok := aggs[a.Label]
			if !ok {
				ag = &agentAgg{}
				aggs[a.Label] = ag
			}
			ag.valueSum += a.Value
			ag.arrivals += a.Arrivals
			ag.idle += a.Idle
			ag.count++
			if a.Arrivals == 0 && rs.arrivals > 0 {
				ag.starved++
				starvedLabels[a.Label] = struct{}{}
			}
		}
	}

	n := len(all)
	fmt.Fprintln(w, "=== Aggregate ===")
	fmt.Fprintf(w, "runs=%d starved_runs=%d unstable_runs=%d\n", n, starvedRuns, unstableRuns)
	fmt.Fprintf(w, "avg_result_per_run: score=%.1f grade=%.1f moves=%.1f ticks=%.1f\n",
		avgFloat(totalScore, n), avg(totalGrade, n), avg(totalMoves, n), avg(totalTicks, n))
	fmt.Fprintf(w, "avg_events_per_run: plans=%.1f arrivals=%.1f vanished=%.1f idle=%.1f retries=%.1f\n",
		avg(totalPlans, n), avg(totalArrivals, n), avg(totalVanished, n), avg(totalIdle, n), avg(totalRetries, n))
	fmt.Fprintf(w, "phase_marker_avg_ticks: first_plan=%s first_arrival=%s\n",
		avgTickString(planTicks), avgTickString(arrivalTicks))
	fmt.Fprintf(w, "starved_labels=%d [%s]\n", len(starvedLabels), joinSet(starvedLabels))

	fmt.Fprintln(w, "\n=== Aggregate Agent Performance ===")
	labels := make([]string, 0, len(aggs))
	for label := range aggs {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		ag := aggs[label]
		fmt.Fprintf(w, "  %-4s avg_value=%.1f avg_arrivals=%.1f avg_idle=%.1f starved=%d/%d\n",
			label, avgFloat(ag.valueSum, ag.count), avg(ag.arrivals, ag.count), avg(ag.idle, ag.count),
			ag.starved, ag.count)
	}
}

func avg(sum int, n int) float64 {
	return avgFloat(float64(sum), n)
}

func avgFloat(sum float64, n int) float64 {
	if n <= 0 {
		return 0
	}
	return sum / float64(n)
}

func avgTickString(vals []int) string {
	if len(vals) == 0 {
		return "n/a"
	}
	sum := 0
	for _, v := range vals {
		sum += v
	}
	return fmt.Sprintf("%.1f", float64(sum)/float64(len(vals)))
}

func joinSet(s map[string]struct{}) string {
	if len(s) == 0 {
		return "none"
	}
	labels := make([]string, 0, len(s))
	for k := range s {
		labels = append(labels, k)
	}
	sort.Strings(labels)
	return strings.Join(labels, ",")
}
