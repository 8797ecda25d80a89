package logx

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/Garsondee/graph-arena/internal/config"
)

func TestNew_JSONHandlerAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log, level, err := New(&buf, config.Log{Level: "warn", Format: "json"})
	if err != nil {
		t.Fatal(err)
	}
	log.Info("dropped")
	log.Warn("kept", "agent", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one record, got %q", buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if rec["msg"] != "kept" || rec["agent"] != float64(3) {
		t.Fatalf("unexpected record %v", rec)
	}

	if err := Apply(level, config.Log{Level: "debug"}); err != nil {
		t.Fatal(err)
	}
	if level.Level() != slog.LevelDebug {
		t.Fatalf("level not updated: %v", level.Level())
	}
	if err := Apply(level, config.Log{Level: "chatty"}); err == nil || level.Level() != slog.LevelDebug {
		t.Fatalf("unknown level must be refused and leave the level alone")
	}
}

func TestNew_RejectsUnknownFormat(t *testing.T) {
	if _, _, err := New(&bytes.Buffer{}, config.Log{Level: "info", Format: "xml"}); err == nil {
		t.Fatal("expected an error")
	}
}
