package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestDefaultConfig verifies default configuration values
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.MaxConcurrency != 4 {
		t.Errorf("MaxConcurrency = %d, want 4", cfg.MaxConcurrency)
	}
	if cfg.Timeout != 10*time.Hour {
		t.Errorf("Timeout = %v, want 10h", cfg.Timeout)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.LogDir != ".hive/logs" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, ".hive/logs")
	}
	if cfg.IdleTimeout != 120*time.Second {
		t.Errorf("IdleTimeout = %v, want 120s", cfg.IdleTimeout)
	}
	if cfg.StallTimeout != 600*time.Second {
		t.Errorf("StallTimeout = %v, want 600s", cfg.StallTimeout)
	}
	if cfg.RequireQualityGate != false {
		t.Errorf("RequireQualityGate = %v, want false", cfg.RequireQualityGate)
	}
	if cfg.DryRun != false {
		t.Errorf("DryRun = %v, want false", cfg.DryRun)
	}
	if cfg.SkipCompleted != false {
		t.Errorf("SkipCompleted = %v, want false", cfg.SkipCompleted)
	}
	if cfg.RetryFailed != false {
		t.Errorf("RetryFailed = %v, want false", cfg.RetryFailed)
	}
}

// TestLoadConfigMissingFileReturnsDefaults verifies a missing config path
// falls back to defaults without error.
func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.MaxConcurrency != 4 {
		t.Errorf("MaxConcurrency = %d, want default 4", cfg.MaxConcurrency)
	}
}

// TestLoadConfigValidFile tests loading a valid YAML config file
func TestLoadConfigValidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `max_concurrency: 5
timeout: 30m
log_level: debug
log_dir: /tmp/logs
idle_timeout: 90s
stall_timeout: 300s
require_quality_gate: true
projects_registry_path: /tmp/projects.json
dry_run: true
skip_completed: true
retry_failed: true
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.MaxConcurrency != 5 {
		t.Errorf("MaxConcurrency = %d, want 5", cfg.MaxConcurrency)
	}
	if cfg.Timeout != 30*time.Minute {
		t.Errorf("Timeout = %v, want 30m", cfg.Timeout)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if cfg.LogDir != "/tmp/logs" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/tmp/logs")
	}
	if cfg.IdleTimeout != 90*time.Second {
		t.Errorf("IdleTimeout = %v, want 90s", cfg.IdleTimeout)
	}
	if cfg.StallTimeout != 300*time.Second {
		t.Errorf("StallTimeout = %v, want 300s", cfg.StallTimeout)
	}
	if !cfg.RequireQualityGate {
		t.Errorf("RequireQualityGate = false, want true")
	}
	if cfg.ProjectsRegistryPath != "/tmp/projects.json" {
		t.Errorf("ProjectsRegistryPath = %q, want /tmp/projects.json", cfg.ProjectsRegistryPath)
	}
	if !cfg.DryRun || !cfg.SkipCompleted || !cfg.RetryFailed {
		t.Errorf("DryRun/SkipCompleted/RetryFailed = %v/%v/%v, want all true", cfg.DryRun, cfg.SkipCompleted, cfg.RetryFailed)
	}
}

// TestLoadConfigMalformedFile verifies a parse error surfaces.
func TestLoadConfigMalformedFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("max_concurrency: [not valid"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if _, err := LoadConfig(configPath); err == nil {
		t.Fatal("LoadConfig() expected error for malformed YAML, got nil")
	}
}

// TestLoadConfigInvalidTimeout verifies a bad duration string is rejected.
func TestLoadConfigInvalidTimeout(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("timeout: not-a-duration\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if _, err := LoadConfig(configPath); err == nil {
		t.Fatal("LoadConfig() expected error for invalid timeout, got nil")
	}
}

func TestMergeWithFlags(t *testing.T) {
	cfg := DefaultConfig()
	maxConcurrency := 8
	timeout := 2 * time.Hour
	logDir := "/var/log/hive"
	dryRun := true

	cfg.MergeWithFlags(&maxConcurrency, &timeout, &logDir, &dryRun, nil, nil)

	if cfg.MaxConcurrency != 8 {
		t.Errorf("MaxConcurrency = %d, want 8", cfg.MaxConcurrency)
	}
	if cfg.Timeout != timeout {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout, timeout)
	}
	if cfg.LogDir != logDir {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, logDir)
	}
	if !cfg.DryRun {
		t.Errorf("DryRun = false, want true")
	}
	if cfg.SkipCompleted {
		t.Errorf("SkipCompleted = true, want false (nil flag should not override)")
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults: %v", err)
	}

	cfg.MaxConcurrency = -1
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() expected error for negative MaxConcurrency")
	}

	cfg = DefaultConfig()
	cfg.LogLevel = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() expected error for invalid LogLevel")
	}

	cfg = DefaultConfig()
	cfg.Timeout = -time.Second
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() expected error for negative Timeout")
	}
}

func TestApplyConsoleEnvOverrides(t *testing.T) {
	t.Setenv("HIVE_CONSOLE_COLOR", "false")
	t.Setenv("HIVE_CONSOLE_COMPACT", "true")

	cfg := DefaultConsoleConfig()
	applyConsoleEnvOverrides(&cfg)

	if cfg.EnableColor {
		t.Error("EnableColor = true, want false after env override")
	}
	if !cfg.CompactMode {
		t.Error("CompactMode = false, want true after env override")
	}
}
