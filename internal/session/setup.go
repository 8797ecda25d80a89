package session

import (
	"context"
	"log/slog"

	"github.com/Garsondee/graph-arena/internal/config"
	"github.com/Garsondee/graph-arena/internal/logx"
	"github.com/Garsondee/graph-arena/internal/routing"
)

// Build is FromConfig plus the strategy script, when one is configured.
func Build(c config.Config, log *slog.Logger) (Config, error) {
	cfg := FromConfig(c)
	if c.Routing.StrategyScript == "" {
		return cfg, nil
	}
	sel, err := routing.LoadScriptSelector(c.Routing.StrategyScript, c.Routing.FastSpeed, cfg.Selector)
	if err != nil {
		return Config{}, err
	}
	sel.Log = log
	cfg.Selector = sel
	return cfg, nil
}

// Follow applies every configuration the watcher delivers to s and to the
// log level until ctx ends or the watcher closes. A nil level is left alone.
func Follow(ctx context.Context, w *config.Watcher, s *Session, level *slog.LevelVar, log *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-w.Updates:
			if !ok {
				return
			}
			s.Apply(c)
			if level != nil {
				if err := logx.Apply(level, c.Log); err != nil {
					log.Warn("log level not applied", "err", err)
				}
			}
			log.Info("config reloaded", "fast", c.Pacing.Fast, "slow", c.Pacing.Slow, "throttle", c.Pacing.Throttle)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Warn("config reload failed", "err", err)
		}
	}
}
