package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateLevelDeterministic(t *testing.T) {
	opts := GenOptions{Name: "gen", Width: 16, Height: 9, Seed: 7, Threshold: 0.2, Spawns: 4, Speed: 1.5}

	a, err := GenerateLevel(opts)
	require.NoError(t, err)
	b, err := GenerateLevel(opts)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	require.Len(t, a.Rows, 9)
	for _, row := range a.Rows {
		assert.Len(t, []rune(row), 16)
	}
	require.Len(t, a.Spawns, 4)
	assert.Equal(t, "mario", a.Spawns[0].Kind)
	assert.Equal(t, "bomb", a.Spawns[1].Kind)
	assert.Equal(t, [2]float32{1.5, 0}, a.Spawns[1].Velocity)
	assert.Equal(t, [2]float32{0, 1.5}, a.Spawns[3].Velocity)
}

func TestGenerateLevelThresholds(t *testing.T) {
	// noise never reaches 2, so nothing becomes a wall
	open, err := GenerateLevel(GenOptions{Width: 8, Height: 8, Seed: 3, Threshold: 2})
	require.NoError(t, err)
	for _, row := range open.Rows {
		assert.NotContains(t, row, string(RuneWall))
	}

	// and always exceeds -2, so everything but the border is
	solid, err := GenerateLevel(GenOptions{Width: 8, Height: 8, Seed: 3, Threshold: -2, Spawns: 28})
	require.NoError(t, err)
	walls := 0
	for r, row := range solid.Rows {
		for c, ch := range row {
			border := r == 0 || c == 0 || r == 7 || c == 7
			assert.Equal(t, !border, ch == RuneWall, "cell %d,%d", c, r)
			if ch == RuneWall {
				walls++
			}
		}
	}
	assert.Equal(t, 36, walls)

	_, err = GenerateLevel(GenOptions{Width: 8, Height: 8, Seed: 3, Threshold: -2, Spawns: 29})
	assert.Error(t, err, "no room for spawns")
	_, err = GenerateLevel(GenOptions{Width: 0, Height: 8})
	assert.Error(t, err)
}

func TestGeneratedLevelEncodes(t *testing.T) {
	lvl, err := GenerateLevel(GenOptions{Name: "enc", Width: 6, Height: 4, Seed: 11, Threshold: 0.3, Spawns: 2, Speed: 1})
	require.NoError(t, err)
	raw, err := lvl.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(raw), "name: enc")
}
