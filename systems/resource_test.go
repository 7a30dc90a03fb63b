package systems

import (
	"math/rand"
	"testing"

	"github.com/pthm-cable/biome/components"
)

const dt = 1.0 / 60.0

func TestNewResourceStateSpawnsEmpty(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		r := NewResourceState(rng)
		if r.Energy != 0 {
			t.Fatalf("new resource has energy %v, want 0", r.Energy)
		}
		if !r.Spawning || r.SpawnFade != 0 {
			t.Fatal("new resource should start in its spawn fade")
		}
		if r.MaxEnergy < 50 || r.MaxEnergy > 150 {
			t.Errorf("max energy %v out of range", r.MaxEnergy)
		}
		if r.TargetEnergy < 20 || r.TargetEnergy > 80 {
			t.Errorf("target energy %v out of range", r.TargetEnergy)
		}
		if r.Available() {
			t.Fatal("a freshly spawned resource must not be available")
		}
	}
}

func TestResourceSpawnFadeCompletes(t *testing.T) {
	r := components.ResourceState{Spawning: true, MaxEnergy: 100, TargetEnergy: 50, GrowthRate: 1}

	// Fade-in runs at 2x, so half a second finishes it.
	for i := 0; i < 31; i++ {
		UpdateResource(&r, dt)
	}
	if r.Spawning {
		t.Fatal("spawn fade should be done after 0.5s")
	}
	if r.SpawnFade != 1.0 {
		t.Errorf("spawn fade = %v, want 1.0", r.SpawnFade)
	}
}

func TestResourceGrowsTowardTargetThenMax(t *testing.T) {
	r := components.ResourceState{MaxEnergy: 100, TargetEnergy: 40, GrowthRate: 2, SpawnFade: 1}

	for i := 0; i < 60*60; i++ { // one simulated minute
		UpdateResource(&r, dt)
	}
	if r.Energy <= 40 {
		t.Errorf("after reaching target, energy should creep past it, got %v", r.Energy)
	}
	if r.Energy > r.MaxEnergy {
		t.Errorf("energy %v exceeds max %v", r.Energy, r.MaxEnergy)
	}
}

func TestResourceDepletingStopsGrowth(t *testing.T) {
	r := components.ResourceState{MaxEnergy: 100, TargetEnergy: 40, GrowthRate: 2, SpawnFade: 1, Depleting: true}

	for i := 0; i < 60; i++ {
		UpdateResource(&r, dt)
	}
	if r.Energy != 0 {
		t.Errorf("depleting resource grew to %v", r.Energy)
	}
	if r.DepleteFade < 1.0 {
		t.Errorf("deplete fade = %v, want 1.0 after one second", r.DepleteFade)
	}
}

func TestResourceRegenTrickleBelowThreshold(t *testing.T) {
	r := components.ResourceState{MaxEnergy: 100, TargetEnergy: 5, GrowthRate: 0, RegenRate: 0.3, SpawnFade: 1, Energy: 2}

	before := r.Energy
	UpdateResource(&r, dt)
	if r.Energy <= before {
		t.Error("low-energy resource should regenerate")
	}

	r.Energy = 50
	before = r.Energy
	r.GrowthRate = 0
	UpdateResource(&r, dt)
	if r.Energy != before {
		t.Errorf("resource above threshold regenerated: %v -> %v", before, r.Energy)
	}
}

func TestResourceConsume(t *testing.T) {
	r := components.ResourceState{Energy: 30, MaxEnergy: 100, SpawnFade: 1}

	taken := r.Consume(10)
	if taken != 10 || r.Energy != 20 {
		t.Fatalf("Consume(10) = %v, energy %v", taken, r.Energy)
	}

	taken = r.Consume(50)
	if taken != 20 {
		t.Fatalf("over-consume took %v, want remaining 20", taken)
	}
	if r.Energy != 0 || !r.Depleting {
		t.Fatal("drained resource should be empty and depleting")
	}

	if r.Consume(10) != 0 {
		t.Error("consuming an empty resource should return 0")
	}
}

func TestResourceAvailability(t *testing.T) {
	r := components.ResourceState{Energy: 20, SpawnFade: 1}
	if !r.Available() {
		t.Fatal("faded-in resource with energy should be available")
	}

	r.SpawnFade = 0.3
	if r.Available() {
		t.Error("resource mid spawn fade should not be available")
	}

	r.SpawnFade = 1
	r.Depleting = true
	if r.Available() {
		t.Error("depleting resource should not be available")
	}

	r.Depleting = false
	r.Energy = 4
	if r.Available() {
		t.Error("near-empty resource should not be available")
	}
}

func TestResourceSizeTracksEnergy(t *testing.T) {
	r := components.ResourceState{Energy: 100, MaxEnergy: 100, TargetEnergy: 100, GrowthRate: 0, SpawnFade: 1, Size: 3}

	for i := 0; i < 60*5; i++ {
		UpdateResource(&r, dt)
	}
	// Full resource settles near size 8 (base 3 plus 5 at full energy).
	if r.Size < 7.5 || r.Size > 8.1 {
		t.Errorf("size = %v, want near 8 at full energy", r.Size)
	}
}
