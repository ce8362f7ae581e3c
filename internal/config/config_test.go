package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Worker.Bin != "claude" {
		t.Errorf("Worker.Bin = %q, want %q", cfg.Worker.Bin, "claude")
	}
	if cfg.Dispatch.Concurrency != 4 {
		t.Errorf("Dispatch.Concurrency = %d, want 4", cfg.Dispatch.Concurrency)
	}
	if cfg.Dispatch.Placeholder != "{previous}" {
		t.Errorf("Dispatch.Placeholder = %q, want %q", cfg.Dispatch.Placeholder, "{previous}")
	}
	if cfg.Dispatch.RunnerBin != "subtask-runner" {
		t.Errorf("Dispatch.RunnerBin = %q, want %q", cfg.Dispatch.RunnerBin, "subtask-runner")
	}
	if cfg.Results.StaleAge != 24*time.Hour {
		t.Errorf("Results.StaleAge = %v, want 24h", cfg.Results.StaleAge)
	}
	if cfg.Results.Dir == "" {
		t.Error("Results.Dir is empty")
	}
}

func TestLoadFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `worker:
  bin: /usr/local/bin/fake-worker
dispatch:
  concurrency: 2
results:
  stale_age: 1h
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}

	if cfg.Worker.Bin != "/usr/local/bin/fake-worker" {
		t.Errorf("Worker.Bin = %q, want %q", cfg.Worker.Bin, "/usr/local/bin/fake-worker")
	}
	if cfg.Dispatch.Concurrency != 2 {
		t.Errorf("Dispatch.Concurrency = %d, want 2", cfg.Dispatch.Concurrency)
	}
	if cfg.Results.StaleAge != time.Hour {
		t.Errorf("Results.StaleAge = %v, want 1h", cfg.Results.StaleAge)
	}

	// Values absent from the file keep their defaults.
	if cfg.Dispatch.Placeholder != "{previous}" {
		t.Errorf("Dispatch.Placeholder = %q, want default", cfg.Dispatch.Placeholder)
	}
}

func TestLoadFromPathMissing(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("LoadFromPath(missing) error = nil, want error")
	}
}
