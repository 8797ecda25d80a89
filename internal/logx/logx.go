// Package logx builds the process logger from the log config block.
package logx

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Garsondee/graph-arena/internal/config"
)

// ParseLevel maps a config level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("logx: unknown level %q", name)
}

// New returns a logger writing to w and the LevelVar controlling it, so a
// config reload can change verbosity without rebuilding the logger.
func New(w io.Writer, cfg config.Log) (*slog.Logger, *slog.LevelVar, error) {
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	level := new(slog.LevelVar)
	level.Set(lvl)

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		h = slog.NewJSONHandler(w, opts)
	case "", "text":
		h = slog.NewTextHandler(w, opts)
	default:
		return nil, nil, fmt.Errorf("logx: unknown format %q", cfg.Format)
	}
	return slog.New(h), level, nil
}

// Apply updates level from a reloaded config. Unknown names leave it as is.
func Apply(level *slog.LevelVar, cfg config.Log) error {
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	level.Set(lvl)
	return nil
}

// Discard is a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
