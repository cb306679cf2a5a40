package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Contests.CheckInterval != "4h" {
		t.Fatalf("check_interval = %q, want 4h", cfg.Contests.CheckInterval)
	}
	if !cfg.Logging.Console {
		t.Fatal("console logging should default to on")
	}
	if cfg.Store.Path != "./subscribers.json" {
		t.Fatalf("store path = %q", cfg.Store.Path)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `
logging:
  level: debug
  console: true
contests:
  check_interval: 30m
reminders:
  lead_times:
    - label: "2h"
      before: "2h"
    - label: "10m"
      before: "10m"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("level = %q", cfg.Logging.Level)
	}
	if cfg.Contests.CheckInterval != "30m" {
		t.Fatalf("check_interval = %q", cfg.Contests.CheckInterval)
	}
	if len(cfg.Reminders.LeadTimes) != 2 || cfg.Reminders.LeadTimes[1].Label != "10m" {
		t.Fatalf("lead_times = %+v", cfg.Reminders.LeadTimes)
	}
	// untouched sections keep defaults
	if cfg.Reminders.Grace != "5m" {
		t.Fatalf("grace = %q, want default 5m", cfg.Reminders.Grace)
	}
}

func TestLoadRejectsBadInput(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		content string
	}{
		{name: "invalid duration", content: "contests:\n  check_interval: soon\n"},
		{name: "unknown field", content: "contests:\n  interval: 4h\n"},
		{name: "lead time without label", content: "reminders:\n  lead_times:\n    - before: 1h\n"},
		{name: "zero lead time", content: "reminders:\n  lead_times:\n    - label: now\n      before: 0s\n"},
		{name: "not yaml", content: "contests: ["},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationField("x", " 90s "); err != nil || d.Seconds() != 90 {
		t.Fatalf("got %v, %v", d, err)
	}
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty: got %v, %v", d, err)
	}
	if _, err := ParseDurationField("x", "-5s"); err == nil {
		t.Fatal("negative duration accepted")
	}
}
