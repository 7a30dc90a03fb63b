package telemetry

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"sort"

	"github.com/pthm-cable/biome/genome"
	"github.com/pthm-cable/biome/sim"
)

// HallEntry records one proven genome and the record it was observed with.
type HallEntry struct {
	Genome     genome.Genome `json:"genome"`
	Score      float64       `json:"score"`
	Generation int32         `json:"generation"`
	Kills      int32         `json:"kills"`
	AgeSec     float64       `json:"age_sec"`
	Energy     float64       `json:"energy"`
}

// HallOfFame keeps the best genomes seen during a run, split into a prey
// hall and a predator hall so a crashed side can be reseeded from its own
// lineage. Entries are sorted descending by score.
type HallOfFame struct {
	prey      []HallEntry
	predators []HallEntry
	maxSize   int
	rng       *rand.Rand
}

// Entry thresholds. Fresh spawns carry no evidence of anything, so the hall
// only considers agents that lived a while or already killed.
const (
	hofMinAgeSec = 10.0
	hofMinKills  = 1
)

// NewHallOfFame creates a hall with the given capacity per side.
func NewHallOfFame(maxSize int, rng *rand.Rand) *HallOfFame {
	if maxSize < 1 {
		maxSize = 30
	}
	return &HallOfFame{
		prey:      make([]HallEntry, 0, maxSize),
		predators: make([]HallEntry, 0, maxSize),
		maxSize:   maxSize,
		rng:       rng,
	}
}

// Observe considers every agent in a snapshot for hall entry. Call it
// periodically (once per stats window is plenty); repeated observations of
// the same agent replace its earlier entry when the score improved.
func (hof *HallOfFame) Observe(agents []sim.AgentSnapshot) {
	for i := range agents {
		hof.consider(&agents[i])
	}
}

func (hof *HallOfFame) consider(a *sim.AgentSnapshot) {
	if a.Age < hofMinAgeSec && a.Kills < hofMinKills {
		return
	}

	entry := HallEntry{
		Genome:     a.Genome,
		Score:      scoreAgent(a),
		Generation: a.Generation,
		Kills:      a.Kills,
		AgeSec:     a.Age,
		Energy:     a.Energy,
	}

	hall := hof.hall(a.Genome.Predator())
	// An agent's genome never changes, so an identical genome means the
	// same individual seen again. Keep only its best record.
	for i := range *hall {
		if (*hall)[i].Genome == entry.Genome {
			if entry.Score > (*hall)[i].Score {
				*hall = append((*hall)[:i], (*hall)[i+1:]...)
				*hall = hof.insert(*hall, entry)
			}
			return
		}
	}
	*hall = hof.insert(*hall, entry)
}

// scoreAgent weighs realized success on top of the genome's intrinsic
// fitness: surviving and killing count for more than trait values.
func scoreAgent(a *sim.AgentSnapshot) float64 {
	return a.Genome.FitnessScore() +
		float64(a.Kills)*0.5 +
		float64(a.Generation)*0.2 +
		a.Age*0.01
}

// insert keeps the hall sorted descending by score and capped at maxSize.
func (hof *HallOfFame) insert(hall []HallEntry, entry HallEntry) []HallEntry {
	idx := sort.Search(len(hall), func(i int) bool {
		return hall[i].Score < entry.Score
	})
	if len(hall) >= hof.maxSize && idx >= hof.maxSize {
		return hall
	}
	hall = append(hall, HallEntry{})
	copy(hall[idx+1:], hall[idx:])
	hall[idx] = entry
	if len(hall) > hof.maxSize {
		hall = hall[:hof.maxSize]
	}
	return hall
}

// Sample picks a genome from one side of the hall by tournament selection
// (k=3). The boolean result is false when that side is empty.
func (hof *HallOfFame) Sample(predator bool) (genome.Genome, bool) {
	hall := *hof.hall(predator)
	if len(hall) == 0 {
		return genome.Genome{}, false
	}

	const tournamentSize = 3
	best := -1
	for i := 0; i < tournamentSize; i++ {
		idx := hof.rng.Intn(len(hall))
		if best < 0 || hall[idx].Score > hall[best].Score {
			best = idx
		}
	}
	return hall[best].Genome, true
}

// Size returns the entry counts for the prey and predator halls.
func (hof *HallOfFame) Size() (prey, predators int) {
	return len(hof.prey), len(hof.predators)
}

// TopScore returns the best score on one side, or 0 when empty.
func (hof *HallOfFame) TopScore(predator bool) float64 {
	hall := *hof.hall(predator)
	if len(hall) == 0 {
		return 0
	}
	return hall[0].Score
}

func (hof *HallOfFame) hall(predator bool) *[]HallEntry {
	if predator {
		return &hof.predators
	}
	return &hof.prey
}

type hallOfFameJSON struct {
	Prey      []HallEntry `json:"prey"`
	Predators []HallEntry `json:"predators"`
}

// MarshalJSON serializes both halls.
func (hof *HallOfFame) MarshalJSON() ([]byte, error) {
	return json.Marshal(hallOfFameJSON{Prey: hof.prey, Predators: hof.predators})
}

// WriteFile writes the hall of fame as indented JSON.
func (hof *HallOfFame) WriteFile(path string) error {
	data, err := json.MarshalIndent(hallOfFameJSON{Prey: hof.prey, Predators: hof.predators}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling hall of fame: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing hall of fame: %w", err)
	}
	return nil
}

// LoadHallOfFame reads a hall of fame JSON file. Entries are re-inserted so
// ordering and capacity hold even if the file was edited.
func LoadHallOfFame(path string, maxSize int, rng *rand.Rand) (*HallOfFame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading hall of fame: %w", err)
	}
	var raw hallOfFameJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing hall of fame: %w", err)
	}

	hof := NewHallOfFame(maxSize, rng)
	for _, e := range raw.Prey {
		hof.prey = hof.insert(hof.prey, e)
	}
	for _, e := range raw.Predators {
		hof.predators = hof.insert(hof.predators, e)
	}
	return hof, nil
}
