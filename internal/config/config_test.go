package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTPPort != 8080 {
		t.Fatalf("unexpected port: %d", cfg.HTTPPort)
	}
	if cfg.AgentTimeout != 300*time.Second {
		t.Fatalf("unexpected agent timeout: %s", cfg.AgentTimeout)
	}
	if cfg.SessionTimeout != 24*time.Hour {
		t.Fatalf("unexpected session timeout: %s", cfg.SessionTimeout)
	}
	if !cfg.EnableOptimization || !cfg.EnableImpactAnalysis {
		t.Fatalf("workflow stages should default to enabled")
	}
	if cfg.Synthesis.MaxRecommendations != 3 {
		t.Fatalf("unexpected synthesis defaults: %+v", cfg.Synthesis)
	}
}

func TestLoadFromYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
http_port: 9090
llm_model: test-model
agent_timeout_ms: 5000
session_timeout_ms: 60000
enable_optimization: false
synthesis:
  max_recommendations: 5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTPPort != 9090 {
		t.Fatalf("unexpected port: %d", cfg.HTTPPort)
	}
	if cfg.LLMModel != "test-model" {
		t.Fatalf("unexpected model: %s", cfg.LLMModel)
	}
	if cfg.AgentTimeout != 5*time.Second {
		t.Fatalf("agent timeout not taken from file: %s", cfg.AgentTimeout)
	}
	if cfg.SessionTimeout != time.Minute {
		t.Fatalf("session timeout not taken from file: %s", cfg.SessionTimeout)
	}
	if cfg.EnableOptimization {
		t.Fatalf("enable_optimization not taken from file")
	}
	if cfg.Synthesis.MaxRecommendations != 5 {
		t.Fatalf("synthesis not taken from file: %+v", cfg.Synthesis)
	}
	// Unset durations keep their defaults.
	if cfg.QueryTimeout != 120*time.Second {
		t.Fatalf("unexpected query timeout: %s", cfg.QueryTimeout)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("agent_timeout_ms: 5000\nhttp_port: 9090\n"), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("AGENT_TIMEOUT_MS", "7000")
	t.Setenv("HTTP_PORT", "7070")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.AgentTimeout != 7*time.Second {
		t.Fatalf("env did not override file: %s", cfg.AgentTimeout)
	}
	if cfg.HTTPPort != 7070 {
		t.Fatalf("env did not override file: %d", cfg.HTTPPort)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
