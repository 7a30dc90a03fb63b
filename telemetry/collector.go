package telemetry

import (
	"github.com/pthm-cable/biome/components"
	"github.com/pthm-cable/biome/sim"
)

// Collector accumulates engine events within time windows and produces
// WindowStats. It satisfies the engine's Recorder interface.
type Collector struct {
	windowDurationSec   float64
	windowDurationTicks int64
	dt                  float64

	windowStartTick int64

	// Event counters for current window
	births        int
	deathsStarved int
	deathsOldAge  int
	deathsKilled  int
	kills         int
	energyEaten   float64
}

// NewCollector creates a stats collector.
// windowDurationSec: how long each stats window lasts in simulation seconds
// dt: seconds per tick (used for tick-to-time conversion)
func NewCollector(windowDurationSec, dt float64) *Collector {
	ticksPerWindow := int64(windowDurationSec / dt)
	if ticksPerWindow < 1 {
		ticksPerWindow = 1
	}
	return &Collector{
		windowDurationSec:   windowDurationSec,
		windowDurationTicks: ticksPerWindow,
		dt:                  dt,
	}
}

// RecordBirth records a birth event.
func (c *Collector) RecordBirth() {
	c.births++
}

// RecordDeath records a death event by reason.
func (c *Collector) RecordDeath(reason components.DeathReason) {
	switch reason {
	case components.DeathStarved:
		c.deathsStarved++
	case components.DeathOldAge:
		c.deathsOldAge++
	case components.DeathKilled:
		c.deathsKilled++
	}
}

// RecordKill records a lethal fight.
func (c *Collector) RecordKill() {
	c.kills++
}

// RecordConsumption records energy moved from a resource to an agent.
func (c *Collector) RecordConsumption(amount float64) {
	c.energyEaten += amount
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int64) bool {
	return currentTick-c.windowStartTick >= c.windowDurationTicks
}

// WindowDurationTicks returns the number of ticks per window.
func (c *Collector) WindowDurationTicks() int64 {
	return c.windowDurationTicks
}

// Flush produces a WindowStats from the window's event counters plus the
// end-of-window engine stats and energy sample, then resets the counters.
// The energies slice is sorted in place.
func (c *Collector) Flush(engineStats sim.Stats, energies []float64) WindowStats {
	dist := ComputeDistribution(energies)

	ws := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   engineStats.Tick,
		SimTimeSec:      engineStats.Time,

		AgentCount:    engineStats.Agents,
		PreyCount:     engineStats.Prey,
		PredCount:     engineStats.Predators,
		ResourceCount: engineStats.Resources,

		Births:        c.births,
		DeathsStarved: c.deathsStarved,
		DeathsOldAge:  c.deathsOldAge,
		DeathsKilled:  c.deathsKilled,
		Kills:         c.kills,
		EnergyEaten:   c.energyEaten,

		EnergyMean: dist.Mean,
		EnergyStd:  dist.Std,
		EnergyP10:  dist.P10,
		EnergyP50:  dist.P50,
		EnergyP90:  dist.P90,

		MaxGeneration: engineStats.MaxGeneration,
		AvgFitness:    engineStats.AvgFitness,
		AvgSpeed:      engineStats.AvgSpeed,
		AvgSense:      engineStats.AvgSense,
		TotalEnergy:   engineStats.TotalEnergy,
	}

	c.windowStartTick = engineStats.Tick
	c.births = 0
	c.deathsStarved = 0
	c.deathsOldAge = 0
	c.deathsKilled = 0
	c.kills = 0
	c.energyEaten = 0

	return ws
}
