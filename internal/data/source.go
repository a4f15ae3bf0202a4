package data

import (
	"fmt"

	"github.com/sweepgrid/server/internal/config"
)

// generatedSpeed is the bomb speed, in tiles per second, for generated
// levels.
const generatedSpeed = 2

// LevelFor returns the level a configuration asks for: a perlin level when
// [level] generate is set, otherwise the level file. Either way its shape
// must match [grid].
func LevelFor(cfg *config.Config) (*Level, error) {
	var (
		lvl *Level
		err error
	)
	if cfg.Level.Generate {
		lvl, err = GenerateLevel(GenOptions{
			Name:      fmt.Sprintf("perlin-%d", cfg.Level.Seed),
			Width:     cfg.Grid.Width,
			Height:    cfg.Grid.Height,
			Seed:      cfg.Level.Seed,
			Threshold: cfg.Level.WallThreshold,
			Spawns:    max(1, cfg.Grid.Width*cfg.Grid.Height/16),
			Speed:     generatedSpeed,
		})
	} else {
		lvl, err = LoadLevel(cfg.Level.File)
	}
	if err != nil {
		return nil, err
	}
	if lvl.Width != cfg.Grid.Width || lvl.Height != cfg.Grid.Height {
		return nil, fmt.Errorf("level %q is %dx%d, grid is %dx%d", lvl.Name, lvl.Width, lvl.Height, cfg.Grid.Width, cfg.Grid.Height)
	}
	return lvl, nil
}
