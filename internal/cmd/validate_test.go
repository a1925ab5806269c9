package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validPlanMarkdown = `# Sample Plan

## Tasks

### 1. Set up project skeleton
- type: setup

### 2. Implement feature
- depends_on: 1

Do the work.
`

const cyclicPlanMarkdown = `# Cyclic Plan

## Tasks

### 1. Task one
- depends_on: 2

### 2. Task two
- depends_on: 1
`

func writePlanFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.md")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestValidateCommandValidPlan(t *testing.T) {
	path := writePlanFile(t, validPlanMarkdown)

	cmd := NewValidateCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{path})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Plan is valid: 2 task(s)")
	assert.Contains(t, out.String(), "1. Set up project skeleton")
}

func TestValidateCommandCyclicDependencies(t *testing.T) {
	path := writePlanFile(t, cyclicPlanMarkdown)

	cmd := NewValidateCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid plan")
}

func TestValidateCommandMissingFile(t *testing.T) {
	cmd := NewValidateCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "nonexistent.md")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "parse plan"))
}
