package systems

import (
	"math/rand"

	"github.com/pthm-cable/biome/components"
)

// NewResourceState rolls a fresh resource node. Nodes spawn empty and grow
// toward a randomized target so new food does not pop into the world at
// full value.
func NewResourceState(rng *rand.Rand) components.ResourceState {
	maxEnergy := 50 + rng.Float64()*100
	target := 20 + rng.Float64()*60
	if target > maxEnergy {
		target = maxEnergy
	}
	return components.ResourceState{
		Energy:       0,
		MaxEnergy:    maxEnergy,
		TargetEnergy: target,
		GrowthRate:   0.5 + rng.Float64()*1.5,
		RegenRate:    0.1 + rng.Float64()*0.4,
		Size:         3.0,
		Spawning:     true,
	}
}

// UpdateResource advances one resource node by dt seconds: fade timers,
// growth toward target then max, size smoothing and the low-energy
// regeneration trickle.
func UpdateResource(r *components.ResourceState, dt float64) {
	r.Age += dt

	if r.Spawning {
		r.SpawnFade += dt * 2.0 // fade in over 0.5s
		if r.SpawnFade >= 1.0 {
			r.SpawnFade = 1.0
			r.Spawning = false
		}
	}

	if r.Depleting {
		r.DepleteFade += dt * 3.0 // fade out over 0.33s
		if r.DepleteFade >= 1.0 {
			r.DepleteFade = 1.0
		}
	}

	if !r.Spawning && !r.Depleting {
		// Growth toward the rolled target, then a half-rate creep toward max.
		diff := r.TargetEnergy - r.Energy
		if diff > 0.1 || diff < -0.1 {
			step := r.GrowthRate * dt
			if diff < 0 {
				step = -step
			}
			if abs(diff) < abs(step) {
				r.Energy = r.TargetEnergy
			} else {
				r.Energy += step
			}
		}

		if r.Energy < r.MaxEnergy {
			r.Energy += r.GrowthRate * dt * 0.5
			if r.Energy > r.MaxEnergy {
				r.Energy = r.MaxEnergy
			}
		}
	}

	// Size lags energy so consumption reads as shrinking, not snapping.
	targetSize := 3.0 + (r.Energy/r.MaxEnergy)*5.0
	sizeDiff := targetSize - r.Size
	if sizeDiff > 0.1 || sizeDiff < -0.1 {
		r.Size += sizeDiff * dt * 2.0
	}

	if r.Energy < 10.0 && !r.Depleting {
		r.Energy += r.RegenRate * dt
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
