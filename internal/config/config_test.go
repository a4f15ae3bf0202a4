package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sweepgrid.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
[grid]
width = 5
height = 5
surface_width = 500
surface_height = 500

[solver]
restore_velocity = true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Grid.Width)
	assert.Equal(t, float32(100), cfg.Grid.TileWidth())
	assert.Equal(t, 9, cfg.Grid.BucketCapacity)
	assert.True(t, cfg.Solver.RestoreVelocity)
	assert.Equal(t, 10, cfg.ChainCap())
	assert.Equal(t, OffGridDelete, cfg.Policy.OffGrid)
	assert.NotZero(t, cfg.Simulation.StartTime)
}

func TestLoadDurations(t *testing.T) {
	path := writeConfig(t, `
[simulation]
tick_rate = "20ms"

[network]
input_poll = "2ms"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 20*time.Millisecond, cfg.Simulation.TickRate)
	assert.Equal(t, 2*time.Millisecond, cfg.Network.InputPoll)
}

func TestValidateRejectsNegativeInputPoll(t *testing.T) {
	cfg := Default()
	cfg.Network.InputPoll = -time.Millisecond
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input_poll")
}

func TestExplicitChainCap(t *testing.T) {
	cfg := Default()
	cfg.Solver.ChainCap = 3
	assert.Equal(t, 3, cfg.ChainCap())
}

func TestValidateRejectsUndersizedBuckets(t *testing.T) {
	path := writeConfig(t, `
[grid]
bucket_capacity = 2
expected_density = 6
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected_density")
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Grid.Width = 0
	cfg.Entities.Capacity = 0
	cfg.Policy.OffGrid = "teleport"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimensions")
	assert.Contains(t, err.Error(), "capacity")
	assert.Contains(t, err.Error(), "teleport")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}
