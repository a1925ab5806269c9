package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ConsoleConfig controls terminal output formatting for the drone monitor.
type ConsoleConfig struct {
	// EnableColor enables colored output
	EnableColor bool `yaml:"enable_color"`

	// EnableProgressBar enables progress bar display
	EnableProgressBar bool `yaml:"enable_progress_bar"`

	// EnableTaskDetails enables detailed task information
	EnableTaskDetails bool `yaml:"enable_task_details"`

	// CompactMode enables compact output format
	CompactMode bool `yaml:"compact_mode"`

	// ShowAgentNames shows worker names in output
	ShowAgentNames bool `yaml:"show_agent_names"`

	// ShowFileCounts shows file counts in output
	ShowFileCounts bool `yaml:"show_file_counts"`

	// ShowDurations shows task durations in output
	ShowDurations bool `yaml:"show_durations"`
}

// Config represents the drone engine's configuration options.
type Config struct {
	// MaxConcurrency is the maximum number of tasks a single drone will
	// run in parallel (0 is treated as 1 by the scheduler).
	MaxConcurrency int `yaml:"max_concurrency"`

	// Timeout is the overall wall-clock budget for one drone run.
	Timeout time.Duration `yaml:"timeout"`

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LogDir is the directory where per-run log files are written
	LogDir string `yaml:"log_dir"`

	// IdleTimeout is loaded and validated (default 120s). The liveness
	// detector does not read it; it uses liveness.IdleTimeout.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// StallTimeout is loaded and validated (default 600s). The liveness
	// detector does not read it; it uses liveness.StallTimeout.
	StallTimeout time.Duration `yaml:"stall_timeout"`

	// RequireQualityGate makes the run command refuse to start when no
	// quality-gate language is detected in the working directory
	// (spec.md §4.6 Open Question: default false).
	RequireQualityGate bool `yaml:"require_quality_gate"`

	// ProjectsRegistryPath names a JSON file listing additional project
	// roots (spec.md §4.9). The status command takes its registry path
	// from its own --registry flag and does not read this field.
	ProjectsRegistryPath string `yaml:"projects_registry_path"`

	// DryRun validates the plan and prints a summary (task count,
	// concurrency, timeout) without spawning any workers.
	DryRun bool `yaml:"dry_run"`

	// SkipCompleted is loaded and merged from the --skip-completed flags.
	// Neither the run command nor the coordinator reads it; completed
	// tasks are always pre-seeded from the task files.
	SkipCompleted bool `yaml:"skip_completed"`

	// RetryFailed is loaded and merged from the --retry-failed flags.
	// Neither the run command nor the coordinator reads it, so it has no
	// effect on scheduling.
	RetryFailed bool `yaml:"retry_failed"`

	// Console contains console output configuration
	Console ConsoleConfig `yaml:"console"`
}

// DefaultConsoleConfig returns ConsoleConfig with sensible default values
func DefaultConsoleConfig() ConsoleConfig {
	return ConsoleConfig{
		EnableColor:       true,
		EnableProgressBar: true,
		EnableTaskDetails: true,
		CompactMode:       false,
		ShowAgentNames:    true,
		ShowFileCounts:    true,
		ShowDurations:     true,
	}
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		MaxConcurrency:       4,
		Timeout:              10 * time.Hour,
		LogLevel:             "info",
		LogDir:               ".hive/logs",
		IdleTimeout:          120 * time.Second,
		StallTimeout:         600 * time.Second,
		RequireQualityGate:   false,
		ProjectsRegistryPath: "",
		DryRun:               false,
		SkipCompleted:        false,
		RetryFailed:          false,
		Console:              DefaultConsoleConfig(),
	}
}

// applyConsoleEnvOverrides applies environment variable overrides to console configuration.
// Environment variables take precedence over config file values. Recognized variables:
//   - HIVE_CONSOLE_COLOR (enable_color)
//   - HIVE_CONSOLE_PROGRESS_BAR (enable_progress_bar)
//   - HIVE_CONSOLE_TASK_DETAILS (enable_task_details)
//   - HIVE_CONSOLE_COMPACT (compact_mode)
//   - HIVE_CONSOLE_AGENT_NAMES (show_agent_names)
//   - HIVE_CONSOLE_FILE_COUNTS (show_file_counts)
//   - HIVE_CONSOLE_DURATIONS (show_durations)
//
// Only "true" (lowercase) or "1" are recognized as true; all other values are false.
func applyConsoleEnvOverrides(cfg *ConsoleConfig) {
	if val := os.Getenv("HIVE_CONSOLE_COLOR"); val != "" {
		cfg.EnableColor = val == "true" || val == "1"
	}
	if val := os.Getenv("HIVE_CONSOLE_PROGRESS_BAR"); val != "" {
		cfg.EnableProgressBar = val == "true" || val == "1"
	}
	if val := os.Getenv("HIVE_CONSOLE_TASK_DETAILS"); val != "" {
		cfg.EnableTaskDetails = val == "true" || val == "1"
	}
	if val := os.Getenv("HIVE_CONSOLE_COMPACT"); val != "" {
		cfg.CompactMode = val == "true" || val == "1"
	}
	if val := os.Getenv("HIVE_CONSOLE_AGENT_NAMES"); val != "" {
		cfg.ShowAgentNames = val == "true" || val == "1"
	}
	if val := os.Getenv("HIVE_CONSOLE_FILE_COUNTS"); val != "" {
		cfg.ShowFileCounts = val == "true" || val == "1"
	}
	if val := os.Getenv("HIVE_CONSOLE_DURATIONS"); val != "" {
		cfg.ShowDurations = val == "true" || val == "1"
	}
}

// yamlConfig mirrors Config but with duration fields as strings, letting
// yaml.v3 parse plain text ("120s") via time.ParseDuration rather than
// requiring a custom (Un)MarshalYAML on Config itself.
type yamlConfig struct {
	MaxConcurrency       int           `yaml:"max_concurrency"`
	Timeout              string        `yaml:"timeout"`
	LogLevel             string        `yaml:"log_level"`
	LogDir               string        `yaml:"log_dir"`
	IdleTimeout          string        `yaml:"idle_timeout"`
	StallTimeout         string        `yaml:"stall_timeout"`
	RequireQualityGate   bool          `yaml:"require_quality_gate"`
	ProjectsRegistryPath string        `yaml:"projects_registry_path"`
	DryRun               bool          `yaml:"dry_run"`
	SkipCompleted        bool          `yaml:"skip_completed"`
	RetryFailed          bool          `yaml:"retry_failed"`
	Console              ConsoleConfig `yaml:"console"`
}

// LoadConfig loads configuration from the specified file path.
// If the file doesn't exist, returns default configuration without error.
// If the file exists but is malformed, returns an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		applyConsoleEnvOverrides(&cfg.Console)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if yamlCfg.MaxConcurrency != 0 {
		cfg.MaxConcurrency = yamlCfg.MaxConcurrency
	}
	if yamlCfg.Timeout != "" {
		d, err := time.ParseDuration(yamlCfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q: %w", yamlCfg.Timeout, err)
		}
		cfg.Timeout = d
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.LogDir != "" {
		cfg.LogDir = yamlCfg.LogDir
	}
	if yamlCfg.IdleTimeout != "" {
		d, err := time.ParseDuration(yamlCfg.IdleTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid idle_timeout %q: %w", yamlCfg.IdleTimeout, err)
		}
		cfg.IdleTimeout = d
	}
	if yamlCfg.StallTimeout != "" {
		d, err := time.ParseDuration(yamlCfg.StallTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid stall_timeout %q: %w", yamlCfg.StallTimeout, err)
		}
		cfg.StallTimeout = d
	}
	if yamlCfg.ProjectsRegistryPath != "" {
		cfg.ProjectsRegistryPath = yamlCfg.ProjectsRegistryPath
	}
	cfg.RequireQualityGate = yamlCfg.RequireQualityGate
	cfg.DryRun = yamlCfg.DryRun
	cfg.SkipCompleted = yamlCfg.SkipCompleted
	cfg.RetryFailed = yamlCfg.RetryFailed

	var rawMap map[string]interface{}
	if err := yaml.Unmarshal(data, &rawMap); err == nil {
		if consoleSection, exists := rawMap["console"]; exists && consoleSection != nil {
			if consoleMap, ok := consoleSection.(map[string]interface{}); ok {
				console := yamlCfg.Console
				if _, exists := consoleMap["enable_color"]; exists {
					cfg.Console.EnableColor = console.EnableColor
				}
				if _, exists := consoleMap["enable_progress_bar"]; exists {
					cfg.Console.EnableProgressBar = console.EnableProgressBar
				}
				if _, exists := consoleMap["enable_task_details"]; exists {
					cfg.Console.EnableTaskDetails = console.EnableTaskDetails
				}
				if _, exists := consoleMap["compact_mode"]; exists {
					cfg.Console.CompactMode = console.CompactMode
				}
				if _, exists := consoleMap["show_agent_names"]; exists {
					cfg.Console.ShowAgentNames = console.ShowAgentNames
				}
				if _, exists := consoleMap["show_file_counts"]; exists {
					cfg.Console.ShowFileCounts = console.ShowFileCounts
				}
				if _, exists := consoleMap["show_durations"]; exists {
					cfg.Console.ShowDurations = console.ShowDurations
				}
			}
		}
	}

	applyConsoleEnvOverrides(&cfg.Console)

	return cfg, nil
}

// LoadConfigFromRootWithBuildTime loads configuration from the hive repo
// root. Priority order:
//  1. Config at {root}/.hive/config.yaml
//  2. Default configuration
//
// Returns error if root is empty.
func LoadConfigFromRootWithBuildTime(buildTimeRoot string) (*Config, error) {
	if buildTimeRoot == "" {
		return nil, fmt.Errorf("hive repo root not configured: rebuild with repo path injected")
	}
	configPath := filepath.Join(buildTimeRoot, ".hive", "config.yaml")
	return LoadConfig(configPath)
}

// LoadConfigFromDir loads configuration from .hive/config.yaml in the
// hive repo root, using the build-time injected root (set via
// SetBuildTimeRepoRoot). The dir parameter is ignored, kept for
// backward compatibility only.
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfigFromRootWithBuildTime(buildTimeRepoRoot)
}

// MergeWithFlags merges CLI flags into the configuration. Non-nil flag
// values override configuration values.
func (c *Config) MergeWithFlags(maxConcurrency *int, timeout *time.Duration, logDir *string, dryRun *bool, skipCompleted *bool, retryFailed *bool) {
	if maxConcurrency != nil {
		c.MaxConcurrency = *maxConcurrency
	}
	if timeout != nil {
		c.Timeout = *timeout
	}
	if logDir != nil {
		c.LogDir = *logDir
	}
	if dryRun != nil {
		c.DryRun = *dryRun
	}
	if skipCompleted != nil {
		c.SkipCompleted = *skipCompleted
	}
	if retryFailed != nil {
		c.RetryFailed = *retryFailed
	}
}

// Validate validates the configuration values, returning an error for the
// first invalid setting found.
func (c *Config) Validate() error {
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency must be >= 0, got %d", c.MaxConcurrency)
	}

	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0, got %v", c.Timeout)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("idle_timeout must be >= 0, got %v", c.IdleTimeout)
	}
	if c.StallTimeout < 0 {
		return fmt.Errorf("stall_timeout must be >= 0, got %v", c.StallTimeout)
	}

	return nil
}
