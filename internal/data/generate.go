package data

import (
	"fmt"
	"strings"

	"github.com/aquilax/go-perlin"
)

const (
	genFrequency = 0.35
	decorBand    = 0.2 // noise range below the wall threshold painted as floor variants
)

// GenOptions configures GenerateLevel.
type GenOptions struct {
	Name      string
	Width     int
	Height    int
	Seed      int64
	Threshold float64 // noise at or above this becomes wall
	Spawns    int
	Speed     float32 // tiles per second given to bombs
}

// GenerateLevel builds a level from 2D perlin noise. The border ring is
// never walled, and the same options always produce the same level. Spawns are spread over open cells in
// row-major order; marios stand still, bombs roll along alternating axes.
func GenerateLevel(opts GenOptions) (*Level, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("generate: dimensions must be positive, got %dx%d", opts.Width, opts.Height)
	}
	walls := perlin.NewPerlin(2, 2, 3, opts.Seed)
	decor := perlin.NewPerlin(1.5, 2, 2, opts.Seed+1)

	lvl := &Level{
		Name:   opts.Name,
		Width:  opts.Width,
		Height: opts.Height,
		Rows:   make([]string, opts.Height),
	}
	var open [][2]int
	var sb strings.Builder
	for row := 0; row < opts.Height; row++ {
		sb.Reset()
		for col := 0; col < opts.Width; col++ {
			x, y := float64(col)*genFrequency, float64(row)*genFrequency
			n := walls.Noise2D(x, y)
			border := col == 0 || row == 0 || col == opts.Width-1 || row == opts.Height-1
			switch {
			case n >= opts.Threshold && !border:
				sb.WriteRune(RuneWall)
				continue
			case n >= opts.Threshold-decorBand:
				sb.WriteRune(decorRune(decor.Noise2D(x, y)))
			default:
				sb.WriteRune(RuneNone)
			}
			open = append(open, [2]int{col, row})
		}
		lvl.Rows[row] = sb.String()
	}

	if opts.Spawns > len(open) {
		return nil, fmt.Errorf("generate: %d spawns requested, only %d open cells", opts.Spawns, len(open))
	}
	if opts.Spawns > 0 {
		stride := len(open) / opts.Spawns
		for i := 0; i < opts.Spawns; i++ {
			cell := open[i*stride]
			sp := Spawn{Kind: "mario", Col: cell[0], Row: cell[1], Size: 0.8}
			if i%2 == 1 {
				sp.Kind = "bomb"
				sp.Size = 0.5
				if i%4 == 1 {
					sp.Velocity = [2]float32{opts.Speed, 0}
				} else {
					sp.Velocity = [2]float32{0, opts.Speed}
				}
			}
			lvl.Spawns = append(lvl.Spawns, sp)
		}
	}
	return lvl, lvl.Validate()
}

func decorRune(n float64) rune {
	switch {
	case n > 0.15:
		return RuneBlah
	case n < -0.15:
		return RuneTemp
	}
	return RuneTest
}
