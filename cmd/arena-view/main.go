package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/Garsondee/graph-arena/internal/config"
	"github.com/Garsondee/graph-arena/internal/engine"
	"github.com/Garsondee/graph-arena/internal/engine/remote"
	"github.com/Garsondee/graph-arena/internal/logx"
	"github.com/Garsondee/graph-arena/internal/scenario"
	"github.com/Garsondee/graph-arena/internal/session"
	"github.com/Garsondee/graph-arena/internal/view"
)

func main() {
	var scenarioPath string
	var configPath string
	var engineURL string
	var seed int64
	var watch bool

	flag.StringVar(&scenarioPath, "scenario", "", "scenario YAML file (default: built-in grid)")
	flag.StringVar(&configPath, "config", "", "run configuration YAML file")
	flag.StringVar(&engineURL, "engine", "", "websocket URL of a remote engine (overrides engine.url)")
	flag.Int64Var(&seed, "seed", 0, "override the scenario seed")
	flag.BoolVar(&watch, "watch", false, "reload -config while running")
	flag.Parse()

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
	logger, level, err := logx.New(os.Stderr, cfg.Log)
	if err != nil {
		log.Fatal(err)
	}
	scfg, err := session.Build(cfg, logger)
	if err != nil {
		log.Fatal(err)
	}
	if scfg.FramePeriod == 0 {
		log.Fatal("pacing.frame_rate must be positive for the viewer")
	}
	scfg.Verbose = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var eng engine.Engine
	title := cfg.Engine.URL
	if cfg.Engine.URL != "" {
		c, err := remote.Dial(ctx, cfg.Engine.URL)
		if err != nil {
			log.Fatal(err)
		}
		defer c.Close()
		eng = c
	} else {
		sc := scenario.Default()
		if scenarioPath != "" {
			if sc, err = scenario.Load(scenarioPath); err != nil {
				log.Fatal(err)
			}
		}
		if seed != 0 {
			sc = sc.WithSeed(seed)
		}
		sim, err := sc.NewSim()
		if err != nil {
			log.Fatal(err)
		}
		eng = sim
		title = sc.Name
	}

	events := session.NewEventLog(scfg.Verbose)
	v := view.New(view.WithEvents(events))
	s := session.New(eng, scfg,
		session.WithLogger(logger),
		session.WithEventLog(events),
		session.WithPresenter(v),
	)

	if watch {
		if configPath == "" {
			log.Fatal("-watch needs -config")
		}
		w, err := config.NewWatcher(configPath)
		if err != nil {
			log.Fatal(err)
		}
		defer w.Close()
		go session.Follow(ctx, w, s, level, logger)
	}

	done := make(chan struct{})
	var res session.Result
	var runErr error
	go func() {
		defer close(done)
		res, runErr = s.Run(ctx)
	}()

	w, h := v.Size()
	ebiten.SetWindowTitle("Graph Arena - " + title)
	ebiten.SetWindowSize(w, h)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	if err := ebiten.RunGame(v); err != nil {
		log.Fatal(err)
	}

	// closing the window ends the session early
	cancel()
	<-done
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Fatal(runErr)
	}
	fmt.Print(res)
}
