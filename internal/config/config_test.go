package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleConfig = `
engine:
  strategy: "adaptive"
  flowlet_timeout: "40ms"
topology:
  num_spines: 2
  num_leaves: 2
  hosts_per_leaf: 1
  link_capacity_mbps: 100
monitor:
  stale_policy: "skip"
writers:
  - type: "gob"
    enabled: true
    snapshot_interval: "10s"
    gob:
      root_path: "/tmp/snapshots"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Engine.Strategy != "adaptive" {
		t.Errorf("strategy = %q, want adaptive", cfg.Engine.Strategy)
	}
	timeout, err := cfg.FlowletTimeout()
	if err != nil || timeout != 40*time.Millisecond {
		t.Errorf("flowlet timeout = %v (%v), want 40ms", timeout, err)
	}
	if cfg.Monitor.StalePolicy != "skip" {
		t.Errorf("stale policy = %q, want skip", cfg.Monitor.StalePolicy)
	}
	if len(cfg.Writers) != 1 || cfg.Writers[0].Gob.RootPath != "/tmp/snapshots" {
		t.Errorf("unexpected writers: %+v", cfg.Writers)
	}
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "topology:\n  num_spines: 4\n"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Engine.Strategy != "adaptive" {
		t.Errorf("default strategy = %q, want adaptive", cfg.Engine.Strategy)
	}
	grace, err := cfg.FlowletGrace()
	if err != nil || grace != 100*time.Millisecond {
		t.Errorf("default grace = %v (%v), want 100ms", grace, err)
	}
	probe, err := cfg.ProbeInterval()
	if err != nil || probe != 100*time.Millisecond {
		t.Errorf("default probe interval = %v (%v), want 100ms", probe, err)
	}
	if cfg.Monitor.Weights.Utilization != 1.0 || cfg.Monitor.Weights.QueueDepth != 0.5 {
		t.Errorf("default weights = %+v", cfg.Monitor.Weights)
	}
	if cfg.Engine.NumWorkers != 4 || cfg.Engine.SizeOfEventChannel != 1024 {
		t.Errorf("default worker settings = %d/%d", cfg.Engine.NumWorkers, cfg.Engine.SizeOfEventChannel)
	}
	if cfg.NATS.URL != "nats://localhost:4222" || cfg.NATS.FlowSubject != "flowvane.flows" {
		t.Errorf("default NATS settings = %+v", cfg.NATS)
	}
}

func TestDurationAccessorsRejectNonPositive(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "engine:\n  flowlet_timeout: \"-5ms\"\n"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if _, err := cfg.FlowletTimeout(); err == nil {
		t.Fatal("expected error for negative flowlet timeout")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
