// levelgen writes a perlin-noise level as YAML for the sweepgrid server.
//
// Produces:
//   - data/levels/generated.yaml   (or the path given with -out)
//
// Usage:
//
//	go run ./cmd/levelgen -width 16 -height 9 -seed 7 -threshold 0.2
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sweepgrid/server/internal/data"
)

func main() {
	var opts data.GenOptions
	var speed float64
	flag.StringVar(&opts.Name, "name", "generated", "level name")
	flag.IntVar(&opts.Width, "width", 16, "grid width in cells")
	flag.IntVar(&opts.Height, "height", 9, "grid height in cells")
	flag.Int64Var(&opts.Seed, "seed", 1, "noise seed")
	flag.Float64Var(&opts.Threshold, "threshold", 0.25, "noise at or above this becomes wall")
	flag.IntVar(&opts.Spawns, "spawns", 8, "entities to place")
	flag.Float64Var(&speed, "speed", 2, "bomb speed in tiles per second")
	outputPath := flag.String("out", filepath.Join("data", "levels", "generated.yaml"), "output file")
	flag.Parse()
	opts.Speed = float32(speed)

	// ---- Generate ----
	lvl, err := data.GenerateLevel(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error generating level: %v\n", err)
		os.Exit(1)
	}
	if err := lvl.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "generated level is invalid: %v\n", err)
		os.Exit(1)
	}

	// ---- Write YAML ----
	if err := os.MkdirAll(filepath.Dir(*outputPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output directory: %v\n", err)
		os.Exit(1)
	}
	yamlData, err := lvl.Encode()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error marshalling YAML: %v\n", err)
		os.Exit(1)
	}
	header := fmt.Sprintf("# Generated by levelgen (seed %d, threshold %g)\n\n", opts.Seed, opts.Threshold)
	if err := os.WriteFile(*outputPath, append([]byte(header), yamlData...), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing %s: %v\n", *outputPath, err)
		os.Exit(1)
	}

	walls := 0
	for _, row := range lvl.Rows {
		for _, ch := range row {
			if ch == data.RuneWall {
				walls++
			}
		}
	}
	fmt.Printf("Wrote %dx%d level with %d walls and %d spawns to %s\n", lvl.Width, lvl.Height, walls, len(lvl.Spawns), *outputPath)
}
