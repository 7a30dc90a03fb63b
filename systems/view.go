package systems

import (
	"github.com/pthm-cable/biome/components"
	"github.com/pthm-cable/biome/genome"
)

// AgentInfo is an immutable per-tick snapshot of one agent, captured before
// any agent moves. Behavior decisions read neighbors through these snapshots
// so parallel workers never observe half-updated state.
type AgentInfo struct {
	X, Y      float64
	Energy    float64
	Genome    genome.Genome
	Alive     bool
	SpawnFade float64
}

// Targetable reports whether this agent may be hunted or attacked. Agents
// still fading in after birth are off limits, mirroring the spawn-fade gate
// on resource availability.
func (a *AgentInfo) Targetable() bool {
	return a.Alive && a.SpawnFade > 0.5
}

// ResourceInfo is an immutable per-tick snapshot of one resource node.
type ResourceInfo struct {
	X, Y  float64
	State components.ResourceState
}

// View is the read-only world state handed to every agent update within a
// tick. Both engine backends build one of these at the start of each tick;
// the grids index into the snapshot slices.
type View struct {
	W, H         float64
	Agents       []AgentInfo
	Resources    []ResourceInfo
	AgentGrid    *SpatialGrid
	ResourceGrid *SpatialGrid
	Env          *Environment
}

// ConsumeIntent asks for up to Amount energy to move from a resource to an
// agent. Collected during the parallel phase, applied single threaded so two
// agents draining the same node can never over-consume it.
type ConsumeIntent struct {
	Agent    int32
	Resource int32
	Amount   float64
}

// FightIntent records that Attacker closed to combat range with Defender.
// Resolution happens in the commit phase against live energies.
type FightIntent struct {
	Attacker int32
	Defender int32
}

// Effects buffers the cross-entity side effects produced by one chunk of
// agent updates. Engines merge chunk buffers in chunk order before applying,
// which keeps the outcome independent of worker scheduling.
type Effects struct {
	Consumes []ConsumeIntent
	Fights   []FightIntent
}

// Reset clears the buffers for reuse.
func (e *Effects) Reset() {
	e.Consumes = e.Consumes[:0]
	e.Fights = e.Fights[:0]
}

// Merge appends another buffer's intents onto this one.
func (e *Effects) Merge(other *Effects) {
	e.Consumes = append(e.Consumes, other.Consumes...)
	e.Fights = append(e.Fights, other.Fights...)
}

// AgentRand carries the random draws one agent may need during its update.
// Engines draw these sequentially from the tick RNG before fanning out to
// workers, so results do not depend on which goroutine runs which agent.
type AgentRand struct {
	Heading      float64 // wander direction in radians
	PerturbRoll  float64 // uniform [0,1) roll against the perturb chance
	PerturbAngle float64 // perturbation direction in radians
}
