package main

import (
	"flag"
	"log"
	"net/http"
	"os"

	"github.com/Garsondee/graph-arena/internal/config"
	"github.com/Garsondee/graph-arena/internal/engine/remote"
	"github.com/Garsondee/graph-arena/internal/logx"
	"github.com/Garsondee/graph-arena/internal/scenario"
)

func main() {
	var addr string
	var scenarioPath string
	var logLevel string
	var seed int64

	flag.StringVar(&addr, "addr", ":8080", "listen address")
	flag.StringVar(&scenarioPath, "scenario", "", "scenario YAML file (default: built-in grid)")
	flag.StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	flag.Int64Var(&seed, "seed", 0, "override the scenario seed")
	flag.Parse()

	logger, _, err := logx.New(os.Stderr, config.Log{Level: logLevel, Format: "text"})
	if err != nil {
		log.Fatal(err)
	}

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

	mux := http.NewServeMux()
	mux.Handle("/engine", remote.NewHandler(sim, logger))
	logger.Info("serving engine", "addr", addr, "path", "/engine", "scenario", sc.Name,
		"nodes", sim.Graph().NodeCount(), "duration", sim.Duration())
	log.Fatal(http.ListenAndServe(addr, mux))
}
