package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/drones/internal/hive"
	"github.com/harrison/drones/internal/models"
)

func TestStatusCommandPrintsDroneRows(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	root := t.TempDir()
	droneDir := filepath.Join(root, ".hive", "drones", "worker-1")
	e := hive.NewEmitter(droneDir, "")
	require.NoError(t, e.UpdateStatus(func(s *models.DroneStatus) {
		s.Name = "worker-1"
		s.State = models.DroneInProgress
	}))

	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(root))
	defer os.Chdir(cwd)

	cmd := NewStatusCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--registry", filepath.Join(t.TempDir(), "missing-registry.json")})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "worker-1")
}

func TestStatusCommandNoDrones(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	root := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(root))
	defer os.Chdir(cwd)

	cmd := NewStatusCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--registry", filepath.Join(t.TempDir(), "missing-registry.json")})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "No drones found")
}

func TestStatusCommandUnknownModel(t *testing.T) {
	cmd := NewStatusCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--model", "not-a-real-model"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown model")
}
