package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sweepgrid/server/internal/config"
	"github.com/sweepgrid/server/internal/core/event"
	coresys "github.com/sweepgrid/server/internal/core/system"
	"github.com/sweepgrid/server/internal/data"
	"github.com/sweepgrid/server/internal/handler"
	gonet "github.com/sweepgrid/server/internal/net"
	"github.com/sweepgrid/server/internal/net/packet"
	"github.com/sweepgrid/server/internal/persist"
	"github.com/sweepgrid/server/internal/scripting"
	"github.com/sweepgrid/server/internal/sim"
	"github.com/sweepgrid/server/internal/system"
)

const (
	animInterval  = 6 // ticks per sprite frame
	animFrames    = 4
	statsBuffer   = 64
	shutdownGrace = 5 * time.Second
)

func main() {
	hashPassword := flag.String("hash-password", "", "print the bcrypt hash of a password for [network] password_hash and exit")
	flag.Parse()

	if *hashPassword != "" {
		hash, err := handler.HashPassword(*hashPassword)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

var printer = message.NewPrinter(language.English)

func printBanner(name string, cfg *config.Config) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m             sweepgrid  v0.1.0             \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m      swept collision on a tile grid       \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1msimulation:\033[0m %s \033[90m(%dx%d cells, tick %s)\033[0m\n\n",
		name, cfg.Grid.Width, cfg.Grid.Height, cfg.Simulation.TickRate)
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count uint64) {
	numStr := printer.Sprintf("%d", count)
	dotsLen := 42 - len(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfg := config.Default()
	cfgPath := "config/sweepgrid.toml"
	if p := os.Getenv("SWEEPGRID_CONFIG"); p != "" {
		cfgPath = p
	}
	if _, err := os.Stat(cfgPath); err == nil {
		if cfg, err = config.Load(cfgPath); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	} else if os.Getenv("SWEEPGRID_CONFIG") != "" {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Simulation.Name, cfg)

	// 3. Build the simulation and load its level
	printSection("level")
	bus := event.NewBus()
	s := sim.New(cfg, bus, log.Named("sim"))

	lvl, err := data.LevelFor(cfg)
	if err != nil {
		return fmt.Errorf("level: %w", err)
	}
	if err := s.Apply(lvl); err != nil {
		return fmt.Errorf("apply level: %w", err)
	}
	printOK(fmt.Sprintf("level %q", lvl.Name))
	printStat("entities", uint64(s.Store().Len()))
	printStat("chain cap", uint64(cfg.ChainCap()))

	// 4. Lua level logic
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
	printOK("lua scripts loaded")
	fmt.Println()

	// 5. Optional stats database
	runner := coresys.NewRunner()
	var statsSys *system.PersistenceSystem
	var sink *persist.StatsSink
	if cfg.Database.Enabled {
		printSection("database")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		db, err := persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			cancel()
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL connected")

		if err := persist.RunMigrations(ctx, db.Pool, log.Named("goose")); err != nil {
			cancel()
			return fmt.Errorf("migrations: %w", err)
		}
		printOK("migrations applied")

		repo := persist.NewStatsRepo(db)
		if rows, err := repo.Recent(ctx, 1); err != nil {
			log.Warn("read previous stats", zap.Error(err))
		} else if len(rows) > 0 {
			printOK(fmt.Sprintf("previous run %q, last flush %s", rows[0].SimName, rows[0].RecordedAt.Format(time.DateTime)))
		}
		cancel()
		fmt.Println()

		sink = persist.NewStatsSink(repo, statsBuffer, log.Named("stats"))
		interval := max(1, int(cfg.Database.FlushInterval/cfg.Simulation.TickRate))
		statsSys = system.NewPersistenceSystem(s, sink, cfg.Simulation.Name, log, interval)
		runner.Register(statsSys)
	}

	// 6. Optional network surface
	var netServer *gonet.Server
	var pktReg *packet.Registry
	sessions := gonet.NewSessionStore()
	deps := &handler.Deps{Config: cfg, Log: log, Sim: s, Sessions: sessions}
	if cfg.Network.Enabled {
		pktReg = packet.NewRegistry(log)
		handler.RegisterAll(pktReg, deps)
		handler.Watch(bus, deps)

		netServer, err = gonet.NewServer(cfg.Network.BindAddress, cfg.Network.MaxConnections, gonet.SessionOptions{
			InQueueSize:  cfg.Network.InQueueSize,
			OutQueueSize: cfg.Network.OutQueueSize,
			PktPerSec:    cfg.Network.PacketsPerSecond,
			WriteTimeout: cfg.Network.WriteTimeout,
			ReadTimeout:  cfg.Network.ReadTimeout,
		}, log)
		if err != nil {
			return fmt.Errorf("net server: %w", err)
		}
		netServer.Run()
		runner.Register(system.NewInputSystem(netServer, pktReg, deps, cfg.Network.MaxPacketsPerTick, log))
		runner.Register(system.NewOutputSystem(s, sessions))
	}

	// 7. Simulation systems
	runner.Register(system.NewEventSystem(bus))
	runner.Register(system.NewScriptSystem(luaEngine, s))
	runner.Register(system.NewPhysicsSystem(s))
	runner.Register(system.NewAnimationSystem(s, animInterval, animFrames))
	runner.Register(system.NewCleanupSystem(s))

	// 8. Start game loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Simulation.TickRate)
	defer ticker.Stop()

	// Between ticks only the Input phase runs, so packets are drained within
	// input_poll instead of waiting for the next full tick.
	var pollC <-chan time.Time
	if netServer != nil && cfg.Network.InputPoll > 0 && cfg.Network.InputPoll < cfg.Simulation.TickRate {
		poll := time.NewTicker(cfg.Network.InputPoll)
		defer poll.Stop()
		pollC = poll.C
	}

	printSection("ready")
	if netServer != nil {
		printReady(fmt.Sprintf("listening on %s", netServer.Addr().String()))
	}
	printReady(fmt.Sprintf("game loop started (tick: %s)", cfg.Simulation.TickRate))
	fmt.Println()

	last := time.Now()
	for {
		select {
		case now := <-ticker.C:
			runner.Tick(now.Sub(last))
			last = now
		case <-pollC:
			runner.TickPhase(coresys.PhaseInput, 0)
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			if netServer != nil {
				sessions.ForEach(func(sess *gonet.Session) { sess.Close() })
				netServer.Shutdown()
			}
			if statsSys != nil {
				statsSys.Flush()
				closeSink(sink, log)
			}
			printSummary(s, pktReg)
			log.Info("server stopped")
			return nil
		}
	}
}

// closeSink waits for queued stats rows, bounded by shutdownGrace.
func closeSink(sink *persist.StatsSink, log *zap.Logger) {
	done := make(chan struct{})
	go func() {
		sink.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownGrace):
		log.Warn("stats sink did not drain before shutdown")
	}
	if n := sink.Dropped() + sink.Failed(); n > 0 {
		log.Warn("stats rows lost", zap.Uint64("dropped", sink.Dropped()), zap.Uint64("failed", sink.Failed()))
	}
}

func printSummary(s *sim.Sim, reg *packet.Registry) {
	st := s.Stats()
	fmt.Println()
	printSection("summary")
	printStat("frames", st.Frames)
	printStat("solver iterations", st.Iterations)
	printStat("chain cap hits", st.CapHits)
	printStat("wall hits", st.WallHits)
	printStat("entity collisions", st.Collisions)
	printStat("bucket overflows", st.Overflows)
	printStat("despawned", st.Despawned)
	if reg != nil {
		rs := reg.Stats()
		printStat("packets rejected", rs.Rejected+rs.Unknown)
		printStat("handler panics", rs.Panics)
	}
	fmt.Println()
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
