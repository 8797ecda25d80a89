package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault_IsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if p := Default().Pacing.FramePeriod(); p != time.Second/60 {
		t.Fatalf("expected 60Hz frame period, got %v", p)
	}
}

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
engine:
  url: ws://localhost:9090/engine
pacing:
  adaptive: true
  fast: 20ms
routing:
  fast_speed: 4.5
log:
  level: debug
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Engine.URL != "ws://localhost:9090/engine" || cfg.Engine.Timeout != Default().Engine.Timeout {
		t.Fatalf("engine block: %+v", cfg.Engine)
	}
	if !cfg.Pacing.Adaptive || cfg.Pacing.Fast != 20*time.Millisecond || cfg.Pacing.Slow != 100*time.Millisecond {
		t.Fatalf("pacing block: %+v", cfg.Pacing)
	}
	if cfg.Routing.FastSpeed != 4.5 || cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Fatalf("routing/log: %+v %+v", cfg.Routing, cfg.Log)
	}
	rp := cfg.Pacing.RoutingPacing()
	if rp.Fast != 20*time.Millisecond || rp.Slow != 100*time.Millisecond {
		t.Fatalf("routing pacing: %+v", rp)
	}
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"fast above slow": "pacing:\n  fast: 2s\n  slow: 1s\n",
		"bad level":       "log:\n  level: loud\n",
		"bad format":      "log:\n  format: xml\n",
		"zero fast speed": "routing:\n  fast_speed: 0\n",
		"frame rate":      "pacing:\n  frame_rate: 1000\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
	if _, err := Parse([]byte("pacing: [")); err == nil || errors.Is(err, ErrInvalid) {
		t.Fatalf("syntax errors are not validation errors: %v", err)
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "nope.yaml") {
		t.Fatalf("expected a read error naming the file, got %v", err)
	}
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arena.yaml")
	if err := os.WriteFile(path, []byte("pacing:\n  fast: 40ms\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	w, err := NewWatcher(path)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("pacing:\n  fast: 25ms\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case cfg := <-w.Updates:
		if cfg.Pacing.Fast != 25*time.Millisecond {
			t.Fatalf("reloaded config has fast=%v", cfg.Pacing.Fast)
		}
	case err := <-w.Errors:
		t.Fatalf("watch error: %v", err)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload within 3s")
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "arena.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: info\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	w, err := NewWatcher(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case cfg := <-w.Updates:
		t.Fatalf("unexpected reload: %+v", cfg)
	case <-time.After(300 * time.Millisecond):
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if _, ok := <-w.Updates; ok {
		t.Fatal("Updates should be closed")
	}
}

func TestLoad_ShippedConfigMatchesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "arena.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	def := Default()
	if cfg.Engine != def.Engine || cfg.Pacing != def.Pacing || cfg.Routing != def.Routing || cfg.Log != def.Log {
		t.Fatalf("shipped config drifted from defaults:\n%+v\n%+v", cfg, def)
	}
}
