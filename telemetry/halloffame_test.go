package telemetry

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/pthm-cable/biome/genome"
	"github.com/pthm-cable/biome/sim"
)

func hofAgent(predator bool, age float64, kills int32) sim.AgentSnapshot {
	rng := rand.New(rand.NewSource(int64(kills)*1000 + int64(age*10) + 1))
	g := genome.NewRandom(rng)
	if predator {
		g.IsPredator = 0.9
	} else {
		g.IsPredator = 0.1
	}
	return sim.AgentSnapshot{Genome: g, Age: age, Kills: kills, Energy: 50}
}

func TestHallOfFameEntryCriteria(t *testing.T) {
	hof := NewHallOfFame(10, rand.New(rand.NewSource(1)))

	hof.Observe([]sim.AgentSnapshot{hofAgent(false, 1.0, 0)})
	if prey, _ := hof.Size(); prey != 0 {
		t.Error("young agent with no kills should not enter the hall")
	}

	hof.Observe([]sim.AgentSnapshot{
		hofAgent(false, 30.0, 0), // old enough
		hofAgent(true, 1.0, 2),   // young but has killed
	})
	prey, preds := hof.Size()
	if prey != 1 || preds != 1 {
		t.Errorf("hall sizes = %d/%d, want 1/1", prey, preds)
	}
}

func TestHallOfFameSortedAndCapped(t *testing.T) {
	hof := NewHallOfFame(3, rand.New(rand.NewSource(1)))

	for i := 0; i < 8; i++ {
		hof.Observe([]sim.AgentSnapshot{hofAgent(false, 15.0+float64(i), 0)})
	}
	if prey, _ := hof.Size(); prey != 3 {
		t.Fatalf("hall size = %d, want capped at 3", prey)
	}
	for i := 1; i < len(hof.prey); i++ {
		if hof.prey[i].Score > hof.prey[i-1].Score {
			t.Fatal("hall not sorted descending by score")
		}
	}
}

func TestHallOfFameUpdatesSameGenome(t *testing.T) {
	hof := NewHallOfFame(10, rand.New(rand.NewSource(1)))

	a := hofAgent(false, 15.0, 0)
	hof.Observe([]sim.AgentSnapshot{a})

	// Same individual seen later with more kills: entry replaced, not doubled.
	a.Age = 40.0
	a.Kills = 2
	hof.Observe([]sim.AgentSnapshot{a})

	prey, _ := hof.Size()
	if prey != 1 {
		t.Fatalf("hall size = %d, want 1 after re-observation", prey)
	}
	if hof.prey[0].Kills != 2 {
		t.Errorf("entry kills = %d, want updated to 2", hof.prey[0].Kills)
	}
}

func TestHallOfFameSample(t *testing.T) {
	hof := NewHallOfFame(10, rand.New(rand.NewSource(1)))

	if _, ok := hof.Sample(false); ok {
		t.Error("sampling an empty hall should fail")
	}

	want := hofAgent(false, 25.0, 0)
	hof.Observe([]sim.AgentSnapshot{want})
	g, ok := hof.Sample(false)
	if !ok {
		t.Fatal("sampling a populated hall failed")
	}
	if g != want.Genome {
		t.Error("sampled genome does not match the only entry")
	}
	if _, ok := hof.Sample(true); ok {
		t.Error("predator hall is empty and should not sample")
	}
}

func TestHallOfFameRoundTrip(t *testing.T) {
	hof := NewHallOfFame(10, rand.New(rand.NewSource(1)))
	hof.Observe([]sim.AgentSnapshot{
		hofAgent(false, 20.0, 0),
		hofAgent(false, 35.0, 1),
		hofAgent(true, 12.0, 3),
	})

	path := filepath.Join(t.TempDir(), "hall_of_fame.json")
	if err := hof.WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	loaded, err := LoadHallOfFame(path, 10, rand.New(rand.NewSource(2)))
	if err != nil {
		t.Fatalf("LoadHallOfFame: %v", err)
	}
	prey, preds := loaded.Size()
	if prey != 2 || preds != 1 {
		t.Errorf("loaded sizes = %d/%d, want 2/1", prey, preds)
	}
	if loaded.TopScore(false) != hof.TopScore(false) {
		t.Errorf("top prey score %v != %v", loaded.TopScore(false), hof.TopScore(false))
	}
}
