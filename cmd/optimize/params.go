// Package main provides CMA-ES optimization over simulation parameters,
// searching for configurations that keep predator and prey coexisting.
package main

import (
	"github.com/pthm-cable/biome/config"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of optimizable parameters. World
// geometry, the timestep and caps stay fixed; the search covers the knobs
// that shape population dynamics.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			// Reproduction gates
			{Name: "repro_min_energy", Path: "reproduction.min_energy", Min: 10, Max: 90, Default: 50},
			{Name: "repro_chance", Path: "reproduction.chance", Min: 0.1, Max: 1.0, Default: 0.5},
			{Name: "partner_radius", Path: "reproduction.partner_radius", Min: 5, Max: 100, Default: 20},
			{Name: "spawn_offset", Path: "reproduction.spawn_offset", Min: 2, Max: 40, Default: 10},
			{Name: "crowd_pause", Path: "reproduction.crowd_pause", Min: 0.3, Max: 0.9, Default: 0.6},
			{Name: "crowd_soft_limit", Path: "reproduction.crowd_soft_limit", Min: 0.1, Max: 0.8, Default: 0.4},
			// Resource supply
			{Name: "resource_spawn_rate", Path: "population.resource_spawn_rate", Min: 0.05, Max: 5.0, Default: 0.2},
			{Name: "initial_resources", Path: "population.initial_resources", Min: 100, Max: 1500, Default: 500},
			// Agent economy
			{Name: "initial_energy", Path: "agent.initial_energy", Min: 20, Max: 100, Default: 80},
			// Environment pressure
			{Name: "env_amplitude", Path: "environment.amplitude", Min: 0, Max: 0.5, Default: 0.002},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		val := v[i]
		if val < spec.Min {
			val = spec.Min
		}
		if val > spec.Max {
			val = spec.Max
		}
		clamped[i] = val
	}
	return clamped
}

// ApplyToConfig applies parameter values to a Config struct.
// Order must match Specs order.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	clamped := pv.Clamp(values)

	i := 0
	cfg.Reproduction.MinEnergy = clamped[i]
	i++
	cfg.Reproduction.Chance = clamped[i]
	i++
	cfg.Reproduction.PartnerRadius = clamped[i]
	i++
	cfg.Reproduction.SpawnOffset = clamped[i]
	i++
	cfg.Reproduction.CrowdPause = clamped[i]
	i++
	cfg.Reproduction.CrowdSoftLimit = clamped[i]
	i++

	cfg.Population.ResourceSpawnRate = clamped[i]
	cfg.Derived.ResourceSpawnInterval = 1.0 / clamped[i]
	i++
	cfg.Population.InitialResources = int(clamped[i])
	i++

	cfg.Agent.InitialEnergy = clamped[i]
	i++

	cfg.Environment.Amplitude = clamped[i]
}

// ExtractFromConfig extracts current parameter values from a Config struct.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	return []float64{
		cfg.Reproduction.MinEnergy,
		cfg.Reproduction.Chance,
		cfg.Reproduction.PartnerRadius,
		cfg.Reproduction.SpawnOffset,
		cfg.Reproduction.CrowdPause,
		cfg.Reproduction.CrowdSoftLimit,
		cfg.Population.ResourceSpawnRate,
		float64(cfg.Population.InitialResources),
		cfg.Agent.InitialEnergy,
		cfg.Environment.Amplitude,
	}
}
