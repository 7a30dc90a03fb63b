package main

import (
	"math"
	"math/rand"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/biome/config"
	"github.com/pthm-cable/biome/sim"
	"github.com/pthm-cable/biome/telemetry"
)

// FitnessEvaluator runs headless simulations and computes fitness.
type FitnessEvaluator struct {
	params      *ParamVector
	maxTicks    int64
	seeds       []int64
	baseConfig  *config.Config
	statsWindow float64

	// Best run tracking
	mu             sync.Mutex
	bestFitness    float64
	bestHallOfFame *telemetry.HallOfFame
	lastQuality    float64
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, maxTicks int64, seeds []int64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		maxTicks:    maxTicks,
		seeds:       seeds,
		baseConfig:  baseCfg,
		statsWindow: 10.0, // seconds per stats window
		bestFitness: math.Inf(1),
	}
}

// BestHallOfFame returns the hall of fame from the best evaluation.
func (fe *FitnessEvaluator) BestHallOfFame() *telemetry.HallOfFame {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestHallOfFame
}

// LastQuality returns the quality score from the most recent evaluation.
func (fe *FitnessEvaluator) LastQuality() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastQuality
}

// Minimum viable population: a side that stays below this for
// extinctionGraceSec counts as functionally extinct.
const (
	minViablePop       = 3
	extinctionGraceSec = 30.0
	warmupSec          = 5.0
)

// runResult holds the results from a single simulation run.
type runResult struct {
	survivalTicks int64
	windowStats   []telemetry.WindowStats
	hallOfFame    *telemetry.HallOfFame
}

// seedResult holds the result from one seed evaluation.
type seedResult struct {
	fitness    float64
	quality    float64
	hallOfFame *telemetry.HallOfFame
}

// Evaluate computes fitness for a parameter vector (lower = better).
// Fitness is negative survival ticks with a quality bonus: longer, healthier
// coexistence scores lower.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	results := make([]seedResult, len(fe.seeds))
	var wg sync.WaitGroup

	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			result := fe.runSimulation(x, s)
			results[idx] = seedResult{
				fitness:    fe.computeFitness(result),
				quality:    fe.computeQuality(result.windowStats),
				hallOfFame: result.hallOfFame,
			}
		}(i, seed)
	}
	wg.Wait()

	var totalFitness, totalQuality float64
	bestSeedFitness := math.Inf(1)
	var bestSeedHallOfFame *telemetry.HallOfFame

	for _, r := range results {
		totalFitness += r.fitness
		totalQuality += r.quality
		if r.fitness < bestSeedFitness {
			bestSeedFitness = r.fitness
			bestSeedHallOfFame = r.hallOfFame
		}
	}

	n := float64(len(fe.seeds))
	avgFitness := totalFitness / n

	fe.mu.Lock()
	if avgFitness < fe.bestFitness {
		fe.bestFitness = avgFitness
		fe.bestHallOfFame = bestSeedHallOfFame
	}
	fe.lastQuality = totalQuality / n
	fe.mu.Unlock()

	return avgFitness
}

// runSimulation executes a single headless run until functional extinction
// or maxTicks, whichever comes first.
func (fe *FitnessEvaluator) runSimulation(x []float64, seed int64) *runResult {
	cfg := *fe.baseConfig // nested structs are values, so this copies
	fe.params.ApplyToConfig(&cfg, x)

	result := &runResult{}
	collector := telemetry.NewCollector(fe.statsWindow, cfg.Physics.DT)
	hof := telemetry.NewHallOfFame(30, rand.New(rand.NewSource(seed)))

	engine, err := sim.New(sim.Options{
		Config:   &cfg,
		Seed:     seed,
		Workers:  1,
		Recorder: collector,
	})
	if err != nil {
		// An unrunnable config is as bad as instant extinction.
		return result
	}
	defer engine.Close()

	dt := cfg.Physics.DT
	var preyBelowSec, predBelowSec float64

	for tick := int64(1); tick <= fe.maxTicks; tick++ {
		engine.Tick()
		stats := engine.Stats()

		if collector.ShouldFlush(stats.Tick) {
			agents := engine.Agents()
			energies := make([]float64, len(agents))
			for i, a := range agents {
				energies[i] = a.Energy
			}
			result.windowStats = append(result.windowStats, collector.Flush(stats, energies))
			hof.Observe(agents)
		}

		if stats.Time < warmupSec {
			continue
		}

		// Hard extinction: either side completely gone.
		if stats.Prey == 0 || stats.Predators == 0 {
			result.survivalTicks = tick
			result.hallOfFame = hof
			return result
		}

		// Functional extinction: a side below viability for too long.
		if stats.Prey < minViablePop {
			preyBelowSec += dt
		} else {
			preyBelowSec = 0
		}
		if stats.Predators < minViablePop {
			predBelowSec += dt
		} else {
			predBelowSec = 0
		}
		if preyBelowSec >= extinctionGraceSec || predBelowSec >= extinctionGraceSec {
			result.survivalTicks = tick
			result.hallOfFame = hof
			return result
		}
	}

	result.survivalTicks = fe.maxTicks
	result.hallOfFame = hof
	return result
}

// computeFitness calculates the scalar fitness (lower = better).
// Survival dominates; quality adds up to a 20% bonus to differentiate
// configs with similar survival.
func (fe *FitnessEvaluator) computeFitness(r *runResult) float64 {
	survival := float64(r.survivalTicks)
	quality := fe.computeQuality(r.windowStats)
	return -(survival * (1.0 + 0.2*quality))
}

// Quality component weights.
const (
	qualityWeightRatio     = 0.30
	qualityWeightStability = 0.30
	qualityWeightEnergy    = 0.25
	qualityWeightHunting   = 0.15

	qualityWarmupWindows = 3
	qualityMinPop        = 3

	// A lightly predatory seed population settles around one predator per
	// five prey; ratios far from that score low.
	qualityTargetRatio = 5.0
)

// computeQuality computes ecosystem quality in [0, 1] from window stats.
func (fe *FitnessEvaluator) computeQuality(windows []telemetry.WindowStats) float64 {
	if len(windows) <= qualityWarmupWindows {
		return 0
	}
	valid := windows[qualityWarmupWindows:]

	var ratioSum, energySum, huntSum float64
	var ratioCount, energyCount, huntCount int

	preyCounts := make([]float64, 0, len(valid))
	predCounts := make([]float64, 0, len(valid))

	for _, w := range valid {
		if w.PreyCount < qualityMinPop || w.PredCount < qualityMinPop {
			continue
		}

		preyCounts = append(preyCounts, float64(w.PreyCount))
		predCounts = append(predCounts, float64(w.PredCount))

		// Population ratio score: log-distance from the target ratio.
		ratio := float64(w.PreyCount) / float64(w.PredCount)
		logErr := math.Log(ratio / qualityTargetRatio)
		ratioSum += math.Exp(-logErr * logErr)
		ratioCount++

		// Energy health: median agent energy near mid-reserve is a
		// population neither starving nor saturated.
		h := math.Exp(-math.Pow((w.EnergyP50-50.0)/25.0, 2))
		energySum += h
		energyCount++

		// Hunting activity: kills per predator per window.
		if w.PredCount > 0 && w.Kills > 0 {
			killsPerPred := float64(w.Kills) / float64(w.PredCount)
			huntSum += 1.0 - math.Exp(-killsPerPred/2.0)
			huntCount++
		}
	}

	if ratioCount == 0 {
		return 0
	}

	ratioScore := ratioSum / float64(ratioCount)

	// Population stability: coefficient of variation across windows.
	stabilityScore := 0.0
	if len(preyCounts) >= 2 {
		cvPrey := cv(preyCounts)
		cvPred := cv(predCounts)
		stabilityScore = math.Exp(-(cvPrey*cvPrey + cvPred*cvPred))
	}

	energyScore := 0.0
	if energyCount > 0 {
		energyScore = energySum / float64(energyCount)
	}

	huntScore := 0.0
	if huntCount > 0 {
		huntScore = huntSum / float64(huntCount)
	}

	quality := qualityWeightRatio*ratioScore +
		qualityWeightStability*stabilityScore +
		qualityWeightEnergy*energyScore +
		qualityWeightHunting*huntScore

	return clamp01(quality)
}

// cv computes the coefficient of variation (std/mean) for a slice of values.
func cv(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean, std := stat.MeanStdDev(values, nil)
	if mean == 0 {
		return 0
	}
	return std / mean
}

// clamp01 clamps x to [0, 1].
func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
