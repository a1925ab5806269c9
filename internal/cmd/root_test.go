package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRootCommandRegistersSubcommands(t *testing.T) {
	root := NewRootCommand()

	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}

	assert.True(t, names["run"])
	assert.True(t, names["status"])
	assert.True(t, names["validate"])
	assert.True(t, names["history"])
	assert.True(t, names["monitor"])
}

func TestGetHiveRepoRoot(t *testing.T) {
	old := HiveRepoRoot
	defer func() { HiveRepoRoot = old }()

	HiveRepoRoot = "/some/repo"
	assert.Equal(t, "/some/repo", GetHiveRepoRoot())
}
