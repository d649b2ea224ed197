package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	log, err := Init(Options{File: path, Level: "info"})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() { Init(Options{}) })

	log.Debugw("hidden", "k", 1)
	log.Infow("player connected", "id", 3)
	Sync()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(b)
	if !strings.Contains(out, "player connected") || !strings.Contains(out, "INFO") {
		t.Fatalf("log output missing info line: %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line written at info level: %q", out)
	}
}

func TestInitRejectsBadLevel(t *testing.T) {
	if _, err := Init(Options{Level: "loud"}); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestInitWithoutOutputsIsNop(t *testing.T) {
	log, err := Init(Options{})
	if err != nil || log == nil {
		t.Fatalf("init = %v, %v", log, err)
	}
	log.Info("discarded")
}
