package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.Server.Bind != DefaultBind {
		t.Errorf("expected default bind, got %s", cfg.Server.Bind)
	}
	if cfg.Approval.Mode != "async" {
		t.Errorf("expected async default, got %s", cfg.Approval.Mode)
	}
	if cfg.Bus.Kind != "memory" {
		t.Errorf("expected memory bus default, got %s", cfg.Bus.Kind)
	}
}

func TestLoadFromPath_ParsesAndFillsGaps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte(`
server:
  bind: "0.0.0.0:9000"
approval:
  mode: blocking
  timeout: 10m
bus:
  kind: nats
  url: nats://localhost:4222
providers:
  active: ollama
  custom:
    - name: ollama
      base_url: http://localhost:11434/v1
      models: [llama3]
`), 0o644)

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.Server.Bind != "0.0.0.0:9000" {
		t.Errorf("bind not parsed: %s", cfg.Server.Bind)
	}
	if cfg.Approval.Mode != "blocking" || cfg.Approval.Timeout != 10*time.Minute {
		t.Errorf("approval not parsed: %+v", cfg.Approval)
	}
	// Unset values still get defaults.
	if cfg.Approval.SweepInterval != DefaultSweepInterval {
		t.Errorf("sweep interval default missing: %v", cfg.Approval.SweepInterval)
	}
	if len(cfg.Providers.Custom) != 1 || cfg.Providers.Custom[0].Name != "ollama" {
		t.Errorf("custom providers not parsed: %+v", cfg.Providers.Custom)
	}
}

func TestLoadFromPath_Validation(t *testing.T) {
	dir := t.TempDir()

	badMode := filepath.Join(dir, "mode.yaml")
	os.WriteFile(badMode, []byte("approval:\n  mode: maybe\n"), 0o644)
	if _, err := LoadFromPath(badMode); err == nil {
		t.Error("invalid approval mode should be rejected")
	}

	badBus := filepath.Join(dir, "bus.yaml")
	os.WriteFile(badBus, []byte("bus:\n  kind: nats\n"), 0o644)
	if _, err := LoadFromPath(badBus); err == nil {
		t.Error("nats without url should be rejected")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AURA_JWT_SECRET", "env-secret")
	t.Setenv("AURA_BIND", "127.0.0.1:7777")

	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.JWTSecret != "env-secret" {
		t.Errorf("env secret not applied: %q", cfg.Server.JWTSecret)
	}
	if cfg.Server.Bind != "127.0.0.1:7777" {
		t.Errorf("env bind not applied: %q", cfg.Server.Bind)
	}
}
