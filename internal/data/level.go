package data

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sweepgrid/server/internal/core/ecs"
	"github.com/sweepgrid/server/internal/world"
)

// Level is a grid layout plus its initial entities, loaded from YAML.
type Level struct {
	Name   string   `yaml:"name"`
	Width  int      `yaml:"width"`
	Height int      `yaml:"height"`
	Rows   []string `yaml:"rows"`
	Spawns []Spawn  `yaml:"spawns"`
	Script string   `yaml:"script,omitempty"` // file under the script dir
}

// Spawn places one entity in a cell. Size is a fraction of the tile and
// velocity is in tiles per second.
type Spawn struct {
	Kind     string     `yaml:"kind"`
	Col      int        `yaml:"col"`
	Row      int        `yaml:"row"`
	Size     float32    `yaml:"size,omitempty"`
	Velocity [2]float32 `yaml:"velocity,flow"`
}

// Cell runes used in Level.Rows.
const (
	RuneNone = '.'
	RuneBlah = 'b'
	RuneTest = 't'
	RuneTemp = '~'
	RuneWall = '#'
)

var runeLabels = map[rune]world.Label{
	RuneNone: world.LabelNone,
	RuneBlah: world.LabelBlah,
	RuneTest: world.LabelTest,
	RuneTemp: world.LabelTemp,
	RuneWall: world.LabelWall,
}

// LabelRune is the level-file rune for a label.
func LabelRune(l world.Label) rune {
	switch l {
	case world.LabelBlah:
		return RuneBlah
	case world.LabelTest:
		return RuneTest
	case world.LabelTemp:
		return RuneTemp
	case world.LabelWall:
		return RuneWall
	}
	return RuneNone
}

// LoadLevel reads and validates a level file.
func LoadLevel(path string) (*Level, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read level %s: %w", path, err)
	}
	var lvl Level
	if err := yaml.Unmarshal(raw, &lvl); err != nil {
		return nil, fmt.Errorf("parse level %s: %w", path, err)
	}
	if err := lvl.Validate(); err != nil {
		return nil, fmt.Errorf("level %s: %w", path, err)
	}
	return &lvl, nil
}

// Encode renders the level as YAML.
func (l *Level) Encode() ([]byte, error) {
	return yaml.Marshal(l)
}

func (l *Level) Validate() error {
	if l.Width <= 0 || l.Height <= 0 {
		return fmt.Errorf("dimensions must be positive, got %dx%d", l.Width, l.Height)
	}
	if len(l.Rows) != l.Height {
		return fmt.Errorf("expected %d rows, got %d", l.Height, len(l.Rows))
	}
	var errs []error
	for r, row := range l.Rows {
		runes := []rune(row)
		if len(runes) != l.Width {
			errs = append(errs, fmt.Errorf("row %d: expected %d cells, got %d", r, l.Width, len(runes)))
			continue
		}
		for c, ch := range runes {
			if _, ok := runeLabels[ch]; !ok {
				errs = append(errs, fmt.Errorf("row %d col %d: unknown cell %q", r, c, ch))
			}
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	for i, sp := range l.Spawns {
		if _, err := ecs.ParseKind(sp.Kind); err != nil {
			errs = append(errs, fmt.Errorf("spawn %d: %w", i, err))
		}
		if sp.Col < 0 || sp.Col >= l.Width || sp.Row < 0 || sp.Row >= l.Height {
			errs = append(errs, fmt.Errorf("spawn %d: cell %d,%d outside level", i, sp.Col, sp.Row))
			continue
		}
		if []rune(l.Rows[sp.Row])[sp.Col] == RuneWall {
			errs = append(errs, fmt.Errorf("spawn %d: cell %d,%d is a wall", i, sp.Col, sp.Row))
		}
		if sp.Size < 0 || sp.Size > 1 {
			errs = append(errs, fmt.Errorf("spawn %d: size %g outside (0,1]", i, sp.Size))
		}
	}
	return errors.Join(errs...)
}

// Labels returns the cell labels in row-major order.
func (l *Level) Labels() []world.Label {
	out := make([]world.Label, 0, l.Width*l.Height)
	for _, row := range l.Rows {
		for _, ch := range row {
			out = append(out, runeLabels[ch])
		}
	}
	return out
}

// Fit reports whether the level matches a grid's shape.
func (l *Level) Fit(g *world.Grid) error {
	if l.Width != g.Width() || l.Height != g.Height() {
		return fmt.Errorf("level %q is %dx%d, grid is %dx%d", l.Name, l.Width, l.Height, g.Width(), g.Height())
	}
	return nil
}

// SpawnSize is the tile fraction, defaulting to a full tile.
func (s Spawn) SpawnSize() float32 {
	if s.Size == 0 {
		return 1
	}
	return s.Size
}
