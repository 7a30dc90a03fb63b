package telemetry

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pthm-cable/biome/genome"
	"github.com/pthm-cable/biome/sim"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot holds the externally visible world state at one tick. It is an
// inspection format, not a savegame: loading it back does not restore RNG
// streams or in-flight behavior targets.
type Snapshot struct {
	Version int   `json:"version"`
	Seed    int64 `json:"seed"`

	WorldWidth  float64 `json:"world_width"`
	WorldHeight float64 `json:"world_height"`

	Tick int64   `json:"tick"`
	Time float64 `json:"time"`

	Agents    []AgentState    `json:"agents"`
	Resources []ResourceState `json:"resources"`
}

// AgentState holds one agent's externally visible state.
type AgentState struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	VelX   float64 `json:"vel_x"`
	VelY   float64 `json:"vel_y"`
	Energy float64 `json:"energy"`
	Age    float64 `json:"age"`

	State      string        `json:"state"`
	Generation int32         `json:"generation"`
	Kills      int32         `json:"kills"`
	Genome     genome.Genome `json:"genome"`
}

// ResourceState holds one resource node's externally visible state.
type ResourceState struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Energy    float64 `json:"energy"`
	MaxEnergy float64 `json:"max_energy"`
	Size      float64 `json:"size"`
	Depleting bool    `json:"depleting,omitempty"`
}

// CaptureSnapshot builds a Snapshot from an engine's current state.
func CaptureSnapshot(engine sim.Engine, worldW, worldH float64, seed int64) *Snapshot {
	stats := engine.Stats()
	snap := &Snapshot{
		Version:     SnapshotVersion,
		Seed:        seed,
		WorldWidth:  worldW,
		WorldHeight: worldH,
		Tick:        stats.Tick,
		Time:        stats.Time,
	}

	for _, a := range engine.Agents() {
		snap.Agents = append(snap.Agents, AgentState{
			X: a.X, Y: a.Y,
			VelX: a.DX, VelY: a.DY,
			Energy:     a.Energy,
			Age:        a.Age,
			State:      a.State.String(),
			Generation: a.Generation,
			Kills:      a.Kills,
			Genome:     a.Genome,
		})
	}
	for _, r := range engine.Resources() {
		snap.Resources = append(snap.Resources, ResourceState{
			X: r.X, Y: r.Y,
			Energy:    r.State.Energy,
			MaxEnergy: r.State.MaxEnergy,
			Size:      r.State.Size,
			Depleting: r.State.Depleting,
		})
	}
	return snap
}

// WriteFile writes the snapshot as indented JSON.
func (s *Snapshot) WriteFile(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot loads a snapshot file.
func ReadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	return &snap, nil
}

// Restore inserts the snapshot's populations into an engine. The engine
// should be empty or freshly reset; entries beyond the engine's caps are
// dropped silently.
func (s *Snapshot) Restore(engine sim.Engine) {
	for _, a := range s.Agents {
		engine.AddAgent(a.X, a.Y, a.Genome, a.Generation)
	}
	for _, r := range s.Resources {
		engine.AddResource(r.X, r.Y)
	}
}
