package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// buildTimeRepoRoot is set via SetBuildTimeRepoRoot, typically from a
// cmd/drone main() that knows its own install location.
var buildTimeRepoRoot string

// SetBuildTimeRepoRoot records the hive repository root for
// LoadConfigFromDir/LoadConfigFromRootWithBuildTime to use when no root is
// passed explicitly.
func SetBuildTimeRepoRoot(root string) {
	buildTimeRepoRoot = root
}

// GetHiveHome returns the hive home directory.
// Priority order:
//  1. HIVE_HOME environment variable (if set)
//  2. Hive repository root (detected by finding go.mod or .hive-root)
//  3. Current working directory (fallback)
//
// For options 2 and 3 the directory is created if it doesn't exist; a
// HIVE_HOME path is returned as given.
func GetHiveHome() (string, error) {
	if home := os.Getenv("HIVE_HOME"); home != "" {
		return home, nil
	}

	repoRoot, err := findHiveRepoRoot()
	if err == nil && repoRoot != "" {
		hiveHome := filepath.Join(repoRoot, ".hive")
		if err := os.MkdirAll(hiveHome, 0755); err != nil {
			return "", fmt.Errorf("create hive home directory: %w", err)
		}
		return hiveHome, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}

	hiveHome := filepath.Join(cwd, ".hive")
	if err := os.MkdirAll(hiveHome, 0755); err != nil {
		return "", fmt.Errorf("create hive home directory: %w", err)
	}

	return hiveHome, nil
}

// findHiveRepoRoot finds the hive repository root by looking for a
// .hive-root marker file, or a go.mod containing the drones module path.
func findHiveRepoRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	current := cwd
	for {
		markerPath := filepath.Join(current, ".hive-root")
		if _, err := os.Stat(markerPath); err == nil {
			return current, nil
		}

		goModPath := filepath.Join(current, "go.mod")
		if data, err := os.ReadFile(goModPath); err == nil {
			if contains(string(data), "github.com/harrison/drones") {
				return current, nil
			}
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	return "", fmt.Errorf("hive repository root not found (looking for .hive-root or go.mod with github.com/harrison/drones)")
}

// contains checks if a string contains a substring.
func contains(s, substr string) bool {
	return len(s) > 0 && len(substr) > 0 && (s == substr || len(s) > len(substr) && indexOf(s, substr) >= 0)
}

// indexOf returns the index of substr in s, or -1 if not found.
func indexOf(s, substr string) int {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
