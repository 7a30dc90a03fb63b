// Package components defines the data components shared by the flat and ECS
// simulation engines.
package components

// State is an agent's behavioral state. Transitions happen inside the
// behavior system; nothing outside it writes State except spawning code,
// which starts every agent at StateSeeking.
type State uint8

const (
	StateSeeking     State = iota // wandering, scanning for targets
	StateHunting                  // moving toward a chosen target
	StateFeeding                  // arrived at a resource, consuming
	StateReproducing              // one-tick marker after an energy-funded birth
	StateFighting                 // in combat range of an agent target
	StateFleeing                  // sprinting away from a threat
)

// String implements fmt.Stringer for logs and snapshots.
func (s State) String() string {
	switch s {
	case StateSeeking:
		return "seeking"
	case StateHunting:
		return "hunting"
	case StateFeeding:
		return "feeding"
	case StateReproducing:
		return "reproducing"
	case StateFighting:
		return "fighting"
	case StateFleeing:
		return "fleeing"
	default:
		return "unknown"
	}
}

// DeathReason records why an agent was removed. The zero value means the
// agent is alive.
type DeathReason uint8

const (
	DeathNone      DeathReason = iota
	DeathStarved               // energy reached zero
	DeathOldAge                // age passed the ceiling
	DeathKilled                // lost a fight with no energy left
)

func (r DeathReason) String() string {
	switch r {
	case DeathStarved:
		return "starved"
	case DeathOldAge:
		return "old_age"
	case DeathKilled:
		return "killed"
	default:
		return "none"
	}
}

// Position is an entity's world position. Coordinates stay inside
// [0, width) x [0, height); movement wraps toroidally.
type Position struct {
	X, Y float64
}

// Velocity is an agent's velocity in world units per second.
type Velocity struct {
	DX, DY float64
}

// Energy is an agent's energy store. Current never exceeds Max and an agent
// with Current <= 0 is removed at the next cleanup pass.
type Energy struct {
	Current float64
	Max     float64
}

// Age tracks an agent's age in seconds of simulated time.
type Age struct {
	Value float64
}

// TargetKind says what an agent's current target refers to.
type TargetKind uint8

const (
	TargetNone TargetKind = iota
	TargetResource
	TargetAgent
	TargetPoint // a flee destination, not an entity
)

// Behavior bundles the mutable behavioral state of an agent.
type Behavior struct {
	State      State
	TargetKind TargetKind
	TargetIdx  int32 // live index into the view slice for entity targets
	TargetX    float64
	TargetY    float64

	LastReproduction float64 // age at last reproduction
	Generation       int32
	Kills            int32

	SpawnFade float64 // 0 to 1 while fading in after birth
	Dying     bool
	Death     DeathReason
}

// ResourceState is the full mutable state of a resource node. Resources
// spawn empty and grow toward TargetEnergy, then creep toward MaxEnergy at
// half rate.
type ResourceState struct {
	Energy       float64
	MaxEnergy    float64
	TargetEnergy float64
	GrowthRate   float64
	RegenRate    float64
	Size         float64 // display radius, lag-smoothed from energy
	Age          float64

	Spawning    bool
	SpawnFade   float64
	Depleting   bool
	DepleteFade float64
}

// Available reports whether an agent can feed from this resource right now.
// Freshly spawned and depleting nodes are off limits even if they hold energy.
func (r *ResourceState) Available() bool {
	return r.Energy > 5.0 && !r.Depleting && r.SpawnFade > 0.5
}

// Consume removes up to amount energy and returns how much was actually
// taken. Draining a resource to zero starts its deplete fade.
func (r *ResourceState) Consume(amount float64) float64 {
	if amount <= 0 || r.Energy <= 0 {
		return 0
	}
	taken := amount
	if taken > r.Energy {
		taken = r.Energy
	}
	r.Energy -= taken
	if r.Energy <= 0 {
		r.Energy = 0
		r.Depleting = true
	}
	return taken
}
