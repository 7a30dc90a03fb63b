// Package sim implements the simulation engine: tick orchestration,
// population lifecycle and the two interchangeable backends.
package sim

import (
	"fmt"
	"log/slog"

	"github.com/pthm-cable/biome/components"
	"github.com/pthm-cable/biome/config"
	"github.com/pthm-cable/biome/genome"
)

// Engine is the contract both backends satisfy. A tick advances the world by
// one fixed timestep; accessors return copies, never live internal state.
type Engine interface {
	// Tick advances the simulation by one fixed timestep.
	Tick()

	// AddAgent inserts an agent at a position. Returns false without side
	// effects when the population cap is reached. Out-of-range traits are
	// clamped, out-of-range positions wrapped.
	AddAgent(x, y float64, g genome.Genome, generation int32) bool

	// AddResource inserts a resource node. Returns false at the cap.
	AddResource(x, y float64) bool

	// Reset rebuilds the initial populations from the engine's seed. A reset
	// engine replays the same trajectory as a fresh one.
	Reset()

	// Stats computes aggregate statistics for the current state.
	Stats() Stats

	// Agents returns a snapshot of all living agents.
	Agents() []AgentSnapshot

	// Resources returns a snapshot of all resource nodes.
	Resources() []ResourceSnapshot

	// Close releases worker goroutines. The engine is unusable afterwards.
	Close()
}

// Stats aggregates the population state at the end of a tick.
type Stats struct {
	Tick          int64
	Time          float64
	Agents        int
	Predators     int
	Prey          int
	Resources     int
	TotalEnergy   float64
	AvgEnergy     float64
	AvgAge        float64
	AvgSpeed      float64
	AvgSize       float64
	AvgAggression float64
	AvgSense      float64
	AvgEfficiency float64
	AvgFitness    float64
	MaxGeneration int32
	TotalKills    int64

	// Extinct is set once no agents remain; Exploded once the population
	// has pinned itself to the cap. Both are informational, the engine
	// keeps running either way.
	Extinct  bool
	Exploded bool
}

// AgentSnapshot is a copy of one agent's externally visible state.
type AgentSnapshot struct {
	X, Y       float64
	DX, DY     float64
	Energy     float64
	MaxEnergy  float64
	Age        float64
	Genome     genome.Genome
	State      components.State
	Generation int32
	Kills      int32
	SpawnFade  float64
}

// ResourceSnapshot is a copy of one resource node's state.
type ResourceSnapshot struct {
	X, Y  float64
	State components.ResourceState
}

// Recorder receives lifecycle events as they happen inside a tick. All
// methods are called from the engine's goroutine only. A nil Recorder in
// Options disables event collection entirely.
type Recorder interface {
	RecordBirth()
	RecordDeath(reason components.DeathReason)
	RecordKill()
	RecordConsumption(amount float64)
}

// Options configures an engine. Config is required; everything else has a
// usable zero value.
type Options struct {
	Config   *config.Config
	Seed     int64
	Logger   *slog.Logger
	Recorder Recorder

	// Workers overrides config.Engine.Workers when positive. A value of 1
	// forces sequential updates, which makes runs reproducible.
	Workers int
}

// New builds the backend named by the config.
func New(opts Options) (Engine, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("sim: Options.Config is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	switch opts.Config.Engine.Backend {
	case "flat":
		return newFlatEngine(opts), nil
	case "ecs":
		return newECSEngine(opts), nil
	default:
		return nil, fmt.Errorf("sim: unknown engine backend %q", opts.Config.Engine.Backend)
	}
}
