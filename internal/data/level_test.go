package data

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweepgrid/server/internal/world"
)

const sampleLevel = `name: sample
width: 4
height: 3
rows:
  - "..#."
  - "b.t~"
  - "...."
spawns:
  - kind: mario
    col: 0
    row: 0
    size: 0.8
  - kind: bomb
    col: 3
    row: 2
    velocity: [-1, 0]
`

func writeLevel(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "level.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadLevel(t *testing.T) {
	lvl, err := LoadLevel(writeLevel(t, sampleLevel))
	require.NoError(t, err)

	assert.Equal(t, "sample", lvl.Name)
	require.Len(t, lvl.Spawns, 2)
	assert.Equal(t, [2]float32{-1, 0}, lvl.Spawns[1].Velocity)
	assert.Equal(t, float32(1), lvl.Spawns[1].SpawnSize())
	assert.Equal(t, float32(0.8), lvl.Spawns[0].SpawnSize())

	labels := lvl.Labels()
	require.Len(t, labels, 12)
	assert.Equal(t, world.LabelWall, labels[2])
	assert.Equal(t, world.LabelBlah, labels[4])
	assert.Equal(t, world.LabelTest, labels[6])
	assert.Equal(t, world.LabelTemp, labels[7])
	assert.Equal(t, world.LabelNone, labels[11])
}

func TestLoadLevelErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"short row", "width: 3\nheight: 1\nrows: [\"..\"]\n"},
		{"row count", "width: 2\nheight: 2\nrows: [\"..\"]\n"},
		{"unknown rune", "width: 2\nheight: 1\nrows: [\".x\"]\n"},
		{"spawn in wall", "width: 2\nheight: 1\nrows: [\".#\"]\nspawns: [{kind: mario, col: 1, row: 0}]\n"},
		{"spawn outside", "width: 2\nheight: 1\nrows: [\"..\"]\nspawns: [{kind: mario, col: 2, row: 0}]\n"},
		{"bad kind", "width: 2\nheight: 1\nrows: [\"..\"]\nspawns: [{kind: goomba, col: 0, row: 0}]\n"},
		{"bad size", "width: 2\nheight: 1\nrows: [\"..\"]\nspawns: [{kind: bomb, col: 0, row: 0, size: 2}]\n"},
		{"not yaml", "width: [\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadLevel(writeLevel(t, tc.body))
			assert.Error(t, err)
		})
	}

	_, err := LoadLevel(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLevelFit(t *testing.T) {
	lvl, err := LoadLevel(writeLevel(t, sampleLevel))
	require.NoError(t, err)

	assert.NoError(t, lvl.Fit(world.NewGrid(4, 3, 400, 300)))
	assert.Error(t, lvl.Fit(world.NewGrid(3, 4, 300, 400)))
}

func TestLabelRuneRoundTrip(t *testing.T) {
	for r, l := range runeLabels {
		assert.Equal(t, r, LabelRune(l))
	}
}

func TestShippedLevelsAreValid(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("..", "..", "data", "levels", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)
	for _, path := range paths {
		lvl, err := LoadLevel(path)
		require.NoError(t, err, path)
		assert.Equal(t, 16, lvl.Width, path)
		assert.Equal(t, 9, lvl.Height, path)
	}
}
