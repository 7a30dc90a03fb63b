// Package genome defines the heritable trait vector that governs agent
// physiology and behavior, together with its genetic operators.
package genome

import "math/rand"

// Genome is an agent's full trait set. Every trait is a continuous value
// inside a fixed per-trait range; values outside the range never escape
// this package (mutation results are clamped before they are stored).
type Genome struct {
	Speed                 float64 // movement speed multiplier
	SenseRange            float64 // perception distance for resources and agents
	Size                  float64 // body size, drives metabolic cost and combat mass
	EnergyEfficiency      float64 // divides metabolic cost, multiplies feeding gain
	ReproductionThreshold float64 // energy level aimed for before reproducing
	MutationRate          float64 // per-trait mutation probability for offspring
	Aggression            float64 // willingness to start fights
	ColorHue              float64 // cosmetic, inherited like any other trait

	IsPredator    float64 // predator classification when above PredatorThreshold
	HuntingSpeed  float64 // speed multiplier while chasing prey
	AttackPower   float64
	Defense       float64
	Stealth       float64
	PackMentality float64
	TerritorySize float64 // scales a predator's hunting radius
	Metabolism    float64 // scales all energy costs
	Intelligence  float64
	Stamina       float64
}

// PredatorThreshold separates predators from prey on the IsPredator trait.
const PredatorThreshold = 0.5

// Range is the valid [Min, Max] interval for one trait.
type Range struct {
	Min, Max float64
}

// trait indices into the range table, kept in struct field order.
const (
	traitSpeed = iota
	traitSenseRange
	traitSize
	traitEnergyEfficiency
	traitReproductionThreshold
	traitMutationRate
	traitAggression
	traitColorHue
	traitIsPredator
	traitHuntingSpeed
	traitAttackPower
	traitDefense
	traitStealth
	traitPackMentality
	traitTerritorySize
	traitMetabolism
	traitIntelligence
	traitStamina
	numTraits
)

// ranges holds the clamp bounds for every trait.
var ranges = [numTraits]Range{
	traitSpeed:                 {0.1, 3.0},
	traitSenseRange:            {5.0, 150.0},
	traitSize:                  {0.3, 2.5},
	traitEnergyEfficiency:      {0.1, 2.5},
	traitReproductionThreshold: {10.0, 200.0},
	traitMutationRate:          {0.001, 0.3},
	traitAggression:            {0.0, 1.0},
	traitColorHue:              {0.0, 360.0},
	traitIsPredator:            {0.0, 1.0},
	traitHuntingSpeed:          {0.5, 3.0},
	traitAttackPower:           {0.1, 3.0},
	traitDefense:               {0.1, 3.0},
	traitStealth:               {0.0, 1.0},
	traitPackMentality:         {0.0, 1.0},
	traitTerritorySize:         {10.0, 300.0},
	traitMetabolism:            {0.1, 3.0},
	traitIntelligence:          {0.1, 3.0},
	traitStamina:               {0.1, 3.0},
}

// seedRanges holds the narrower sampling intervals used for fresh genomes.
// Initial populations sample from these so founders cluster around viable
// values; drift toward the full clamp ranges happens through mutation.
// IsPredator is sampled low on purpose so predators start as a minority.
var seedRanges = [numTraits]Range{
	traitSpeed:                 {0.8, 1.5},
	traitSenseRange:            {30.0, 80.0},
	traitSize:                  {0.9, 1.3},
	traitEnergyEfficiency:      {0.8, 1.2},
	traitReproductionThreshold: {60.0, 120.0},
	traitMutationRate:          {0.02, 0.08},
	traitAggression:            {0.2, 0.8},
	traitColorHue:              {0.0, 360.0},
	traitIsPredator:            {0.0, 0.3},
	traitHuntingSpeed:          {1.0, 2.0},
	traitAttackPower:           {0.5, 1.5},
	traitDefense:               {0.5, 1.5},
	traitStealth:               {0.0, 1.0},
	traitPackMentality:         {0.0, 1.0},
	traitTerritorySize:         {50.0, 150.0},
	traitMetabolism:            {0.8, 1.4},
	traitIntelligence:          {0.5, 1.5},
	traitStamina:               {0.5, 1.5},
}

// mutationSigma is the standard deviation of the Gaussian noise added to a
// trait when a mutation fires.
const mutationSigma = 0.05

// NewRandom samples every trait independently from its seeding interval.
func NewRandom(rng *rand.Rand) Genome {
	var g Genome
	vals := g.slots()
	for i, v := range vals {
		r := seedRanges[i]
		*v = r.Min + rng.Float64()*(r.Max-r.Min)
	}
	return g
}

// Inherit produces an offspring genome from two parents. Each trait is a
// random asymmetric blend of the parents (factor drawn uniformly in
// [0.3, 0.7] rather than a fixed average, which preserves variance across
// generations), mutated with probability mutationRate by Gaussian noise,
// then clamped to the trait's valid range.
func Inherit(a, b *Genome, mutationRate float64, rng *rand.Rand) Genome {
	var child Genome
	av := a.slots()
	bv := b.slots()
	cv := child.slots()
	for i := range cv {
		blend := 0.3 + rng.Float64()*0.4
		val := *av[i]*blend + *bv[i]*(1-blend)
		if rng.Float64() < mutationRate {
			val += rng.NormFloat64() * mutationSigma
		}
		*cv[i] = ranges[i].clamp(val)
	}
	return child
}

// Predator reports whether this genome classifies as a predator.
func (g *Genome) Predator() bool {
	return g.IsPredator > PredatorThreshold
}

// FitnessScore is a fixed linear combination of traits used only for
// reporting. It never feeds back into selection inside the engine; selection
// pressure emerges from energy and survival dynamics alone.
func (g *Genome) FitnessScore() float64 {
	score := g.Speed*0.2 +
		(g.SenseRange/100.0)*0.15 +
		g.EnergyEfficiency*0.2 +
		(1.0/g.Size)*0.1 +
		(1.0/g.ReproductionThreshold)*50.0*0.1 +
		g.HuntingSpeed*0.1 +
		g.AttackPower*0.1 +
		g.Defense*0.1 +
		g.Intelligence*0.1 +
		g.Stamina*0.1
	if g.Predator() {
		score += 0.5
	}
	return score
}

// Clamp forces every trait back into its valid range. Genomes built through
// NewRandom and Inherit are already in range; this exists for states loaded
// from external snapshots.
func (g *Genome) Clamp() {
	for i, v := range g.slots() {
		*v = ranges[i].clamp(*v)
	}
}

// RangeOf returns the clamp bounds for the trait at index i, in struct field
// order. NumTraits bounds the valid indices.
func RangeOf(i int) Range {
	return ranges[i]
}

// NumTraits is the number of traits in a Genome.
const NumTraits = numTraits

// slots returns pointers to all traits in declaration order, so the genetic
// operators can treat the genome as a vector without reflection.
func (g *Genome) slots() [numTraits]*float64 {
	return [numTraits]*float64{
		&g.Speed,
		&g.SenseRange,
		&g.Size,
		&g.EnergyEfficiency,
		&g.ReproductionThreshold,
		&g.MutationRate,
		&g.Aggression,
		&g.ColorHue,
		&g.IsPredator,
		&g.HuntingSpeed,
		&g.AttackPower,
		&g.Defense,
		&g.Stealth,
		&g.PackMentality,
		&g.TerritorySize,
		&g.Metabolism,
		&g.Intelligence,
		&g.Stamina,
	}
}

func (r Range) clamp(v float64) float64 {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}
