package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robinei/space/internal/config"
	"github.com/robinei/space/internal/core/ecs"
	"github.com/robinei/space/internal/core/event"
	"github.com/robinei/space/internal/core/quadtree"
	"github.com/robinei/space/internal/data"
	"github.com/robinei/space/internal/metrics"
	"github.com/robinei/space/internal/persist"
	"github.com/robinei/space/internal/scripting"
	"github.com/robinei/space/internal/system"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(name string, seed uint64) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Printf("\033[36;1m  │\033[0m           space  v%-24s\033[36;1m│\033[0m\n", version)
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mrun:\033[0m %s \033[90m(seed: %d)\033[0m\n\n", name, seed)
}

func printSection(title string) {
	lineLen := max(46-len(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := max(42-len(label)-len(numStr), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Simulation ────────────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := os.Getenv("SPACE_CONFIG")
	var cfg *config.Config
	var err error
	if cfgPath == "" {
		cfg, err = config.Load("config/space.toml")
		if errors.Is(err, fs.ErrNotExist) {
			cfg, err = config.Default(), nil
		}
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Sim.Name, cfg.Sim.Seed)

	// 3. Scenario and scripts
	printSection("data")
	scenario, err := data.LoadScenario(cfg.Data.Scenario)
	if err != nil {
		return fmt.Errorf("scenario: %w", err)
	}
	printStat("fleets", scenario.Count())
	printStat("target population", scenario.Population())

	scripts, err := scripting.NewEngine(cfg.Data.ScriptsDir, log.Named("lua"))
	if err != nil {
		return fmt.Errorf("scripts: %w", err)
	}
	defer scripts.Close()
	printOK("Lua scripts loaded")
	fmt.Println()

	// 4. Optional sinks
	var recorder *persist.Recorder
	var runRepo *persist.RunRepo
	if cfg.Database.Enabled {
		printSection("database")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		db, err := persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL connected")

		schema, err := persist.RunMigrations(ctx, db.Pool)
		if err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printOK(fmt.Sprintf("migrations applied (schema v%d)", schema))

		runRepo = persist.NewRunRepo(db)
		runID, err := runRepo.StartRun(ctx, cfg.Sim.Name, cfg.Sim.Seed, scenario.Name())
		if err != nil {
			return fmt.Errorf("start run: %w", err)
		}
		recorder = persist.NewRecorder(runRepo, runID, 16)
		printReady(fmt.Sprintf("recording run %s", runID))
		fmt.Println()
	}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.New(version)
		srv, err := collector.Serve(cfg.Metrics.BindAddress, log.Named("metrics"))
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
		log.Info("metrics listening", zap.String("addr", srv.Addr().String()))
	}

	// 5. Entity manager, spatial index and systems
	policy, err := ecs.ParseDestroyPolicy(cfg.Sim.DestroyPolicy)
	if err != nil {
		return fmt.Errorf("sim.destroy_policy: %w", err)
	}
	mgr := ecs.NewManager(
		ecs.WithSeed(cfg.Sim.Seed),
		ecs.WithDestroyPolicy(policy),
		ecs.WithLogger(log.Named("ecs")),
	)
	defer mgr.Close()

	w := cfg.World
	tree := quadtree.New(quadtree.NewRect(w.MinX, w.MinY, w.MaxX, w.MaxY), w.MaxDepth,
		quadtree.WithFuzz(w.Fuzz),
		quadtree.WithThresholds(w.SplitThreshold, w.MergeThreshold))

	bus := event.NewBus()
	deps := system.Deps{
		Manager:     mgr,
		Bus:         bus,
		Tree:        tree,
		Scenario:    scenario,
		Rand:        rand.New(rand.NewPCG(cfg.Sim.Seed, cfg.Sim.Seed+1)),
		Weights:     scripts,
		Quota:       scripts,
		Metrics:     collector,
		RecordEvery: cfg.Database.RecordEvery,
		Log:         log,
	}
	if recorder != nil {
		deps.Recorder = recorder
	}
	systems := system.Register(deps)

	event.Subscribe(bus, func(ev event.ShipExpired) {
		log.Debug("ship expired",
			zap.String("callsign", ev.Callsign),
			zap.String("fleet", ev.Fleet),
			zap.Float32("age", ev.Age))
	})

	// 6. Frame loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	printSection("running")
	printReady(fmt.Sprintf("destroy policy %s, tick %s", policy, cfg.Sim.TickRate))
	if cfg.Sim.Frames > 0 {
		printReady(fmt.Sprintf("stopping after %d frames", cfg.Sim.Frames))
	}
	fmt.Println()

	var tick <-chan time.Time
	if cfg.Sim.Realtime {
		ticker := time.NewTicker(cfg.Sim.TickRate)
		defer ticker.Stop()
		tick = ticker.C
	}

	started := time.Now()
	step := func() bool {
		t0 := time.Now()
		systems.Runner.Tick(cfg.Sim.TickRate)
		if collector != nil {
			collector.FrameSeconds.Observe(time.Since(t0).Seconds())
		}
		return cfg.Sim.Frames > 0 && systems.Runner.Frame() >= uint64(cfg.Sim.Frames)
	}

loop:
	for {
		if tick == nil {
			select {
			case sig := <-shutdownCh:
				log.Info("shutdown signal", zap.String("signal", sig.String()))
				break loop
			default:
			}
			if step() {
				break loop
			}
			continue
		}
		select {
		case <-tick:
			if step() {
				break loop
			}
		case sig := <-shutdownCh:
			log.Info("shutdown signal", zap.String("signal", sig.String()))
			break loop
		}
	}

	// 7. Wrap up
	last := systems.Stats.Last()
	log.Info("simulation stopped",
		zap.Uint64("frames", systems.Runner.Frame()),
		zap.Duration("elapsed", time.Since(started)),
		zap.Int("ships", last.Ships),
		zap.Int("spawned", last.Spawned),
		zap.Int("expired", last.Expired),
		zap.Int("quadtree_nodes", last.TreeNodes),
		zap.Int("quadtree_depth", last.TreeDepth))

	if recorder != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := recorder.Flush(ctx); err != nil {
			log.Error("flush frame stats", zap.Error(err))
		}
		if err := runRepo.FinishRun(ctx, recorder.Run(), systems.Runner.Frame()); err != nil {
			log.Error("finish run", zap.Error(err))
		}
	}
	return nil
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
