package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load with embedded defaults: %v", err)
	}
	if cfg.World.Width != 1000 || cfg.World.Height != 800 {
		t.Errorf("default world = %gx%g, want 1000x800", cfg.World.Width, cfg.World.Height)
	}
	if cfg.Population.MaxAgents != 5000 {
		t.Errorf("default max_agents = %d, want 5000", cfg.Population.MaxAgents)
	}
	if cfg.Engine.Backend != "flat" {
		t.Errorf("default backend = %q, want flat", cfg.Engine.Backend)
	}
	if cfg.Derived.ResourceSpawnInterval != 5.0 {
		t.Errorf("spawn interval = %g, want 5.0", cfg.Derived.ResourceSpawnInterval)
	}
}

func TestLoadOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "override.yaml")
	body := "world:\n  width: 400\nengine:\n  backend: ecs\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.World.Width != 400 {
		t.Errorf("width = %g, want 400 from override", cfg.World.Width)
	}
	if cfg.World.Height != 800 {
		t.Errorf("height = %g, want 800 from defaults", cfg.World.Height)
	}
	if cfg.Engine.Backend != "ecs" {
		t.Errorf("backend = %q, want ecs", cfg.Engine.Backend)
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero dt", func(c *Config) { c.Physics.DT = 0 }},
		{"negative world", func(c *Config) { c.World.Width = -1 }},
		{"unknown backend", func(c *Config) { c.Engine.Backend = "gpu" }},
		{"initial above max", func(c *Config) { c.Population.InitialAgents = c.Population.MaxAgents + 1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load("")
			if err != nil {
				t.Fatal(err)
			}
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate accepted an invalid config")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Load should fail for a missing file")
	}
}
