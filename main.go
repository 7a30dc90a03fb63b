package main

import (
	"flag"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/pthm-cable/biome/config"
	"github.com/pthm-cable/biome/genome"
	"github.com/pthm-cable/biome/sim"
	"github.com/pthm-cable/biome/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	backend := flag.String("engine", "", "Engine backend: flat or ecs (empty = use config)")
	workers := flag.Int("workers", 0, "Worker goroutines for agent updates (0 = config, 1 = sequential)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	maxTicks := flag.Int64("max-ticks", 0, "Stop after N ticks (0 = unlimited)")
	logStats := flag.Bool("log-stats", false, "Output window stats via slog")
	logPerf := flag.Bool("log-perf", false, "Output tick timing stats via slog")
	statsWindow := flag.Float64("stats-window", 0, "Stats window size in seconds (0 = use config)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs, config and final snapshot (empty = config)")
	reseed := flag.Bool("reseed", false, "Reseed from the hall of fame when the population dies out")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *backend != "" {
		cfg.Engine.Backend = *backend
		if err := cfg.Validate(); err != nil {
			slog.Error("invalid engine backend", "error", err)
			os.Exit(1)
		}
	}

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	statsWindowSec := cfg.Telemetry.StatsWindow
	if *statsWindow > 0 {
		statsWindowSec = *statsWindow
	}
	outDir := cfg.Telemetry.OutputDir
	if *outputDir != "" {
		outDir = *outputDir
	}

	output, err := telemetry.NewOutputManager(outDir)
	if err != nil {
		slog.Error("failed to initialize output", "error", err)
		os.Exit(1)
	}
	defer output.Close()

	if err := output.WriteConfig(cfg); err != nil {
		slog.Error("failed to write config snapshot", "error", err)
		os.Exit(1)
	}

	collector := telemetry.NewCollector(statsWindowSec, cfg.Physics.DT)

	engine, err := sim.New(sim.Options{
		Config:   cfg,
		Seed:     rngSeed,
		Logger:   logger,
		Recorder: collector,
		Workers:  *workers,
	})
	if err != nil {
		slog.Error("failed to build engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	slog.Info("starting simulation",
		"backend", cfg.Engine.Backend,
		"seed", rngSeed,
		"agents", cfg.Population.InitialAgents,
		"resources", cfg.Population.InitialResources,
		"stats_window", statsWindowSec,
		"max_ticks", *maxTicks,
	)

	hof := telemetry.NewHallOfFame(30, rand.New(rand.NewSource(rngSeed)))
	perf := telemetry.NewPerfCollector(int(collector.WindowDurationTicks()))

	reportedExtinct := false
	reportedExploded := false
	for {
		perf.StartTick()
		engine.Tick()
		perf.EndTick()
		stats := engine.Stats()

		if collector.ShouldFlush(stats.Tick) {
			agents := engine.Agents()
			energies := make([]float64, 0, len(agents))
			for _, a := range agents {
				energies = append(energies, a.Energy)
			}
			ws := collector.Flush(stats, energies)
			hof.Observe(agents)
			if *logStats {
				slog.Info("stats", "window", ws)
			}
			if *logPerf {
				slog.Info("perf", "tick", stats.Tick, "timing", perf.Stats())
			}
			if err := output.WriteTelemetry(ws); err != nil {
				slog.Error("failed to write telemetry", "error", err)
			}
		}

		if stats.Extinct && !reportedExtinct {
			slog.Warn("population extinct", "tick", stats.Tick, "time", stats.Time)
			reportedExtinct = true
		}
		if stats.Extinct && *reseed {
			if n := reseedFromHall(engine, hof, cfg, rngSeed+stats.Tick); n > 0 {
				slog.Info("reseeded from hall of fame", "tick", stats.Tick, "agents", n)
				reportedExtinct = false
			}
		}
		if stats.Exploded && !reportedExploded {
			slog.Warn("population at cap", "tick", stats.Tick, "agents", stats.Agents)
			reportedExploded = true
		}

		if *maxTicks > 0 && stats.Tick >= *maxTicks {
			slog.Info("max ticks reached", "tick", stats.Tick,
				"agents", stats.Agents,
				"resources", stats.Resources,
				"max_generation", stats.MaxGeneration,
				"total_kills", stats.TotalKills,
			)
			snap := telemetry.CaptureSnapshot(engine, cfg.World.Width, cfg.World.Height, rngSeed)
			if err := output.WriteSnapshot(snap, "final_state.json"); err != nil {
				slog.Error("failed to write snapshot", "error", err)
			}
			if output.Dir() != "" {
				if err := hof.WriteFile(filepath.Join(output.Dir(), "hall_of_fame.json")); err != nil {
					slog.Error("failed to write hall of fame", "error", err)
				}
			}
			return
		}
	}
}

// reseedFromHall restocks an empty world with mutated descendants of the
// hall's proven genomes, prey-heavy like the initial population. Returns
// how many agents were inserted.
func reseedFromHall(engine sim.Engine, hof *telemetry.HallOfFame, cfg *config.Config, seed int64) int {
	rng := rand.New(rand.NewSource(seed))
	n := cfg.Population.InitialAgents / 4
	if n < 2 {
		n = 2
	}

	inserted := 0
	for i := 0; i < n; i++ {
		g, ok := hof.Sample(i%5 == 4) // every fifth slot tries a predator
		if !ok {
			g, ok = hof.Sample(i%5 != 4)
			if !ok {
				continue
			}
		}
		child := genome.Inherit(&g, &g, g.MutationRate, rng)
		x := rng.Float64() * cfg.World.Width
		y := rng.Float64() * cfg.World.Height
		if engine.AddAgent(x, y, child, 0) {
			inserted++
		}
	}
	return inserted
}
