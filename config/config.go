// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	World        WorldConfig        `yaml:"world"`
	Physics      PhysicsConfig      `yaml:"physics"`
	Population   PopulationConfig   `yaml:"population"`
	Agent        AgentConfig        `yaml:"agent"`
	Reproduction ReproductionConfig `yaml:"reproduction"`
	Environment  EnvironmentConfig  `yaml:"environment"`
	Engine       EngineConfig       `yaml:"engine"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// WorldConfig holds simulation world dimensions in world units.
type WorldConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// PhysicsConfig holds simulation physics parameters.
type PhysicsConfig struct {
	DT           float64 `yaml:"dt"`
	GridCellSize float64 `yaml:"grid_cell_size"`
}

// PopulationConfig holds population sizing and spawn parameters.
type PopulationConfig struct {
	MaxAgents         int     `yaml:"max_agents"`
	MaxResources      int     `yaml:"max_resources"`
	InitialAgents     int     `yaml:"initial_agents"`
	InitialResources  int     `yaml:"initial_resources"`
	ResourceSpawnRate float64 `yaml:"resource_spawn_rate"` // new nodes per second
}

// AgentConfig holds agent creation parameters.
type AgentConfig struct {
	InitialEnergy float64 `yaml:"initial_energy"`
	MaxEnergy     float64 `yaml:"max_energy"`
	AgeCeiling    float64 `yaml:"age_ceiling"` // seconds before death by old age
}

// ReproductionConfig holds reproduction gating parameters.
type ReproductionConfig struct {
	PartnerRadius  float64 `yaml:"partner_radius"`   // max distance to a co-parent
	MinEnergy      float64 `yaml:"min_energy"`       // energy floor for parenting
	Chance         float64 `yaml:"chance"`           // per-pair success probability
	SpawnOffset    float64 `yaml:"spawn_offset"`     // offspring placement jitter
	CrowdPause     float64 `yaml:"crowd_pause"`      // pop/max above this skips the whole pass
	CrowdSoftLimit float64 `yaml:"crowd_soft_limit"` // pop/max above this skips individual births
}

// EnvironmentConfig holds the metabolic cost field parameters.
type EnvironmentConfig struct {
	SpatialScale float64 `yaml:"spatial_scale"` // noise frequency over world units
	DriftSpeed   float64 `yaml:"drift_speed"`   // field animation speed
	Amplitude    float64 `yaml:"amplitude"`     // max relative cost swing (0 disables)
}

// EngineConfig selects and tunes the simulation backend.
type EngineConfig struct {
	Backend string `yaml:"backend"` // "flat" or "ecs"
	Workers int    `yaml:"workers"` // 0 = GOMAXPROCS
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow float64 `yaml:"stats_window"` // seconds per aggregation window
	OutputDir   string  `yaml:"output_dir"`   // empty disables file output
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	ResourceSpawnInterval float64 // seconds between resource spawns
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	// Load user config if provided
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

// Validate rejects configurations the engines cannot run.
func (c *Config) Validate() error {
	if c.World.Width <= 0 || c.World.Height <= 0 {
		return fmt.Errorf("config: world dimensions must be positive, got %gx%g", c.World.Width, c.World.Height)
	}
	if c.Physics.DT <= 0 {
		return fmt.Errorf("config: physics.dt must be positive, got %g", c.Physics.DT)
	}
	if c.Physics.GridCellSize <= 0 {
		return fmt.Errorf("config: physics.grid_cell_size must be positive, got %g", c.Physics.GridCellSize)
	}
	if c.Population.MaxAgents <= 0 || c.Population.MaxResources <= 0 {
		return fmt.Errorf("config: population caps must be positive")
	}
	if c.Population.InitialAgents > c.Population.MaxAgents {
		return fmt.Errorf("config: initial_agents %d exceeds max_agents %d", c.Population.InitialAgents, c.Population.MaxAgents)
	}
	if c.Population.InitialResources > c.Population.MaxResources {
		return fmt.Errorf("config: initial_resources %d exceeds max_resources %d", c.Population.InitialResources, c.Population.MaxResources)
	}
	switch c.Engine.Backend {
	case "flat", "ecs":
	default:
		return fmt.Errorf("config: unknown engine backend %q", c.Engine.Backend)
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	if c.Population.ResourceSpawnRate > 0 {
		c.Derived.ResourceSpawnInterval = 1.0 / c.Population.ResourceSpawnRate
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
