// sweepgrid-tui runs the simulation locally and draws it in the terminal.
//
// Arrow keys steer the player, space stops it, T plays the cue, q or Esc
// quits. Logs go to sweepgrid-tui.log since the terminal is in use.
//
// Usage:
//
//	go run ./cmd/sweepgrid-tui
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sweepgrid/server/internal/config"
	"github.com/sweepgrid/server/internal/core/ecs"
	"github.com/sweepgrid/server/internal/core/event"
	coresys "github.com/sweepgrid/server/internal/core/system"
	"github.com/sweepgrid/server/internal/data"
	"github.com/sweepgrid/server/internal/geom"
	"github.com/sweepgrid/server/internal/scripting"
	"github.com/sweepgrid/server/internal/sim"
	"github.com/sweepgrid/server/internal/system"
	"github.com/sweepgrid/server/internal/view"
)

const (
	logFile      = "sweepgrid-tui.log"
	cueFreq      = 880
	cueLength    = 50 * time.Millisecond
	animInterval = 6
	animFrames   = 4
	playerSize   = 0.8
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// drawSystem repaints the screen once per tick. Phase 5 (Output).
type drawSystem struct {
	r *view.Renderer
}

func (d drawSystem) Phase() coresys.Phase { return coresys.PhaseOutput }
func (d drawSystem) Update(_ time.Duration) { d.r.Draw() }

// shell owns the keyboard-steered entity.
type shell struct {
	sim      *sim.Sim
	log      *zap.Logger
	renderer *view.Renderer
	ctrl     *view.Controller
	cue      view.Cue
	player   ecs.EntityID
	alive    bool
}

// claim picks the lowest-id mario as the player, spawning one in the first
// open cell when the level has none.
func (sh *shell) claim() {
	st := sh.sim.Store()
	sh.alive = false
	st.Each(func(id ecs.EntityID) {
		if !sh.alive && st.Kind(id) == ecs.KindMario {
			sh.player, sh.alive = id, true
		}
	})
	if !sh.alive {
		g := sh.sim.Grid()
		for idx := 0; idx < g.Cells() && !sh.alive; idx++ {
			if g.IsWall(idx) {
				continue
			}
			col, row := g.ColRow(idx)
			id, err := sh.sim.SpawnInCell(ecs.KindMario, col, row, playerSize, geom.Vec2{})
			if err != nil {
				sh.log.Warn("spawn player", zap.Error(err))
				return
			}
			sh.player, sh.alive = id, true
		}
	}
	if sh.alive {
		sh.renderer.SetPlayer(sh.player)
	}
}

func (sh *shell) steer() {
	if !sh.alive {
		return
	}
	if err := sh.sim.SetVelocity(sh.player, sh.sim.TilesToWorld(sh.ctrl.Intent())); err != nil {
		sh.log.Debug("steer", zap.Error(err))
	}
}

func (sh *shell) onWallHit(ev event.WallHit) {
	if sh.alive && ev.Entity == sh.player {
		sh.cue.Play()
	}
}

func (sh *shell) onDespawn(ev event.EntityDespawned) {
	if sh.alive && ev.Entity == sh.player {
		sh.log.Info("player lost", zap.String("reason", ev.Reason))
		sh.claim()
	}
}

func run() error {
	cfg := config.Default()
	cfgPath := "config/sweepgrid.toml"
	if p := os.Getenv("SWEEPGRID_CONFIG"); p != "" {
		cfgPath = p
	}
	if _, err := os.Stat(cfgPath); err == nil {
		if cfg, err = config.Load(cfgPath); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	bus := event.NewBus()
	s := sim.New(cfg, bus, log.Named("sim"))
	lvl, err := data.LevelFor(cfg)
	if err != nil {
		return fmt.Errorf("level: %w", err)
	}
	if err := s.Apply(lvl); err != nil {
		return fmt.Errorf("apply level: %w", err)
	}

	luaEngine, err := scripting.NewEngine(cfg.Scripting.ScriptDir, s, log.Named("lua"))
	if err != nil {
		return fmt.Errorf("lua engine: %w", err)
	}
	defer luaEngine.Close()
	if lvl.Script != "" {
		if err := luaEngine.LoadFile(filepath.Join(cfg.Scripting.ScriptDir, lvl.Script)); err != nil {
			return fmt.Errorf("level script: %w", err)
		}
	}
	luaEngine.OnInit(lvl.Name)

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("screen init: %w", err)
	}
	defer screen.Fini()

	var cue view.Cue = view.NopCue{}
	if cfg.TUI.Sound {
		if b, err := view.NewBeeper(cueFreq, cueLength); err != nil {
			// Non-fatal, the shell runs without sound
			log.Warn("audio unavailable", zap.Error(err))
		} else {
			cue = b
		}
	}
	defer cue.Close()

	sh := &shell{
		sim:      s,
		log:      log,
		renderer: view.NewRenderer(screen, s),
		ctrl:     view.NewController(cfg.TUI.PlayerSpeedTiles),
		cue:      cue,
	}
	sh.claim()
	event.Subscribe(bus, sh.onWallHit)
	event.Subscribe(bus, sh.onDespawn)

	runner := coresys.NewRunner()
	runner.Register(system.NewEventSystem(bus))
	runner.Register(system.NewScriptSystem(luaEngine, s))
	runner.Register(system.NewPhysicsSystem(s))
	runner.Register(system.NewAnimationSystem(s, animInterval, animFrames))
	runner.Register(drawSystem{r: sh.renderer})
	runner.Register(system.NewCleanupSystem(s))

	eventCh := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return // screen finalized
			}
			eventCh <- ev
		}
	}()

	ticker := time.NewTicker(cfg.Simulation.TickRate)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case ev := <-eventCh:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				switch sh.ctrl.HandleKey(ev) {
				case view.ActionQuit:
					log.Info("quit", zap.Uint64("frames", s.Frame()))
					return nil
				case view.ActionSteer:
					sh.steer()
				case view.ActionCue:
					cue.Play()
				}
			case *tcell.EventResize:
				screen.Sync()
			}
		case now := <-ticker.C:
			runner.Tick(now.Sub(last))
			last = now
		}
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}
	zapCfg := zap.NewDevelopmentConfig()
	zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	zapCfg.EncoderConfig.ConsoleSeparator = "  "
	zapCfg.DisableCaller = true
	zapCfg.DisableStacktrace = true
	zapCfg.OutputPaths = []string{logFile}
	zapCfg.ErrorOutputPaths = []string{logFile}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}
