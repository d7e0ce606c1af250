package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/backmassage/retempo/internal/config"
)

func TestNewLogger_NoFile(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LogFile = ""
	cfg.ColorMode = config.ColorNever
	l, err := NewLogger(&cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	l.Info("test message")
}

func TestNewLogger_WithFile(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.ColorMode = config.ColorNever
	cfg.LogFile = filepath.Join(dir, "logs", "retempo.log")
	l, err := NewLogger(&cfg)
	if err != nil {
		t.Fatal(err)
	}
	l.Info("to file")
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	b, _ := os.ReadFile(cfg.LogFile)
	if !bytes.Contains(b, []byte(`"level":"info"`)) || !bytes.Contains(b, []byte("to file")) {
		t.Errorf("log file content: %s", string(b))
	}
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LogLevel = "chatty"
	if _, err := NewLogger(&cfg); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

func TestCloseTwice(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ColorMode = config.ColorNever
	cfg.LogFile = filepath.Join(t.TempDir(), "retempo.log")
	l, err := NewLogger(&cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestLevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf).With("run_id", "r-1")

	l.Success("done %d", 3)
	l.Warn("careful")
	l.Error("broken")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3: %q", len(lines), buf.String())
	}

	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatal(err)
	}
	if first["message"] != "done 3" || first["ok"] != true || first["run_id"] != "r-1" {
		t.Errorf("unexpected success line: %v", first)
	}
	if !strings.Contains(lines[1], `"level":"warn"`) || !strings.Contains(lines[2], `"level":"error"`) {
		t.Errorf("unexpected levels: %q", lines[1:])
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Info("discarded")
	l.Debug("discarded")
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
}
