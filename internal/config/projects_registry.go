package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// ProjectEntry is one tracked project root in a ProjectsRegistry.
type ProjectEntry struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// ProjectsRegistry is the set of additional project roots the poll
// aggregator walks alongside the current working directory, grounded on
// original_source's config::load_projects_registry (referenced from
// webui/monitor/polling.rs's poll_all_projects).
type ProjectsRegistry struct {
	Projects []ProjectEntry `json:"projects"`
}

// LoadProjectsRegistry reads the JSON-encoded registry at path. A missing
// file yields an empty registry, not an error.
func LoadProjectsRegistry(path string) (ProjectsRegistry, error) {
	if path == "" {
		return ProjectsRegistry{}, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return ProjectsRegistry{}, nil
	}
	if err != nil {
		return ProjectsRegistry{}, fmt.Errorf("read projects registry: %w", err)
	}

	var reg ProjectsRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return ProjectsRegistry{}, fmt.Errorf("parse projects registry: %w", err)
	}
	return reg, nil
}
