package sim

import (
	"math"
	"math/rand"

	"github.com/pthm-cable/biome/components"
	"github.com/pthm-cable/biome/genome"
	"github.com/pthm-cable/biome/systems"
)

// flatEngine stores every population as index-aligned slices. It is the
// default backend: cache-friendly, simple to snapshot and the only one that
// fans agent updates out to a worker pool.
type flatEngine struct {
	opts Options
	rng  *rand.Rand

	// Agents, index-aligned.
	pos     []components.Position
	vel     []components.Velocity
	energy  []components.Energy
	age     []components.Age
	genomes []genome.Genome
	behav   []components.Behavior

	// Resources, index-aligned.
	resPos []components.Position
	res    []components.ResourceState

	agentGrid *systems.SpatialGrid
	resGrid   *systems.SpatialGrid
	env       *systems.Environment
	view      systems.View

	rands   []systems.AgentRand
	effects []systems.Effects
	pool    *workerPool

	agentRemap []int32
	resRemap   []int32

	tick         int64
	time         float64
	spawnTimer   float64
	removedKills int64
}

func newFlatEngine(opts Options) *flatEngine {
	cfg := opts.Config
	e := &flatEngine{
		opts:      opts,
		rng:       rand.New(rand.NewSource(opts.Seed)),
		agentGrid: systems.NewSpatialGrid(cfg.World.Width, cfg.World.Height, cfg.Physics.GridCellSize),
		resGrid:   systems.NewSpatialGrid(cfg.World.Width, cfg.World.Height, cfg.Physics.GridCellSize),
		env:       newEnvironment(opts),
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = cfg.Engine.Workers
	}
	if workers != 1 {
		e.pool = newWorkerPool(workers)
		e.pool.start(e.computeChunk)
		e.effects = make([]systems.Effects, e.pool.numWorkers)
	} else {
		e.effects = make([]systems.Effects, 1)
	}

	e.populate()
	return e
}

func newEnvironment(opts Options) *systems.Environment {
	env := opts.Config.Environment
	return systems.NewEnvironment(opts.Seed, env.SpatialScale, env.DriftSpeed, env.Amplitude)
}

// populate spawns the initial populations from the engine RNG.
func (e *flatEngine) populate() {
	cfg := e.opts.Config
	for i := 0; i < cfg.Population.InitialAgents; i++ {
		x := e.rng.Float64() * cfg.World.Width
		y := e.rng.Float64() * cfg.World.Height
		e.spawnAgent(x, y, genome.NewRandom(e.rng), 0)
	}
	for i := 0; i < cfg.Population.InitialResources; i++ {
		x := e.rng.Float64() * cfg.World.Width
		y := e.rng.Float64() * cfg.World.Height
		e.spawnResource(x, y)
	}
}

func (e *flatEngine) spawnAgent(x, y float64, g genome.Genome, generation int32) bool {
	cfg := e.opts.Config
	if len(e.pos) >= cfg.Population.MaxAgents {
		return false
	}
	x, y = systems.WrapPosition(x, y, cfg.World.Width, cfg.World.Height)
	heading := e.rng.Float64() * 2 * math.Pi

	e.pos = append(e.pos, components.Position{X: x, Y: y})
	e.vel = append(e.vel, components.Velocity{
		DX: math.Cos(heading) * g.Speed,
		DY: math.Sin(heading) * g.Speed,
	})
	e.energy = append(e.energy, components.Energy{
		Current: cfg.Agent.InitialEnergy,
		Max:     cfg.Agent.MaxEnergy,
	})
	e.age = append(e.age, components.Age{})
	e.genomes = append(e.genomes, g)
	e.behav = append(e.behav, components.Behavior{
		State:      components.StateSeeking,
		Generation: generation,
	})
	return true
}

func (e *flatEngine) spawnResource(x, y float64) bool {
	cfg := e.opts.Config
	if len(e.res) >= cfg.Population.MaxResources {
		return false
	}
	x, y = systems.WrapPosition(x, y, cfg.World.Width, cfg.World.Height)
	e.resPos = append(e.resPos, components.Position{X: x, Y: y})
	e.res = append(e.res, systems.NewResourceState(e.rng))
	return true
}

// Tick runs one fixed timestep. Phases run in a fixed order: snapshot,
// agent updates (possibly parallel), effect commit, resource growth,
// reproduction, resource spawning, cleanup.
func (e *flatEngine) Tick() {
	cfg := e.opts.Config
	dt := cfg.Physics.DT
	e.tick++
	e.time += dt
	e.env.Advance(dt)

	e.buildView()
	e.drawRands()

	n := len(e.pos)
	if e.pool != nil && n >= parallelThreshold {
		for i := range e.effects {
			e.effects[i].Reset()
		}
		e.pool.dispatch(n)
	} else {
		e.effects[0].Reset()
		e.computeChunk(0, n, 0)
	}

	e.commitEffects()

	for i := range e.res {
		systems.UpdateResource(&e.res[i], dt)
	}

	e.reproduce()
	e.spawnResources(dt)
	e.cleanup()
}

// buildView captures the pre-tick snapshot every agent update reads from
// and rebuilds both spatial grids over it.
func (e *flatEngine) buildView() {
	cfg := e.opts.Config
	e.view.W = cfg.World.Width
	e.view.H = cfg.World.Height
	e.view.Env = e.env
	e.view.AgentGrid = e.agentGrid
	e.view.ResourceGrid = e.resGrid

	e.view.Agents = e.view.Agents[:0]
	e.agentGrid.Clear()
	for i := range e.pos {
		e.view.Agents = append(e.view.Agents, systems.AgentInfo{
			X:         e.pos[i].X,
			Y:         e.pos[i].Y,
			Energy:    e.energy[i].Current,
			Genome:    e.genomes[i],
			Alive:     !e.behav[i].Dying,
			SpawnFade: e.behav[i].SpawnFade,
		})
		e.agentGrid.Insert(int32(i), e.pos[i].X, e.pos[i].Y)
	}

	e.view.Resources = e.view.Resources[:0]
	e.resGrid.Clear()
	for i := range e.res {
		e.view.Resources = append(e.view.Resources, systems.ResourceInfo{
			X:     e.resPos[i].X,
			Y:     e.resPos[i].Y,
			State: e.res[i],
		})
		e.resGrid.Insert(int32(i), e.resPos[i].X, e.resPos[i].Y)
	}
}

// drawRands pre-draws each agent's random values from the engine RNG in
// index order, so the outcome does not depend on worker scheduling.
func (e *flatEngine) drawRands() {
	n := len(e.pos)
	if cap(e.rands) < n {
		e.rands = make([]systems.AgentRand, n)
	}
	e.rands = e.rands[:n]
	for i := range e.rands {
		e.rands[i] = systems.AgentRand{
			Heading:      e.rng.Float64() * 2 * math.Pi,
			PerturbRoll:  e.rng.Float64(),
			PerturbAngle: e.rng.Float64() * 2 * math.Pi,
		}
	}
}

// computeChunk updates agents [start, end), buffering cross-entity effects
// into the chunk's own buffer.
func (e *flatEngine) computeChunk(start, end, chunk int) {
	cfg := e.opts.Config
	p := systems.Params{DT: cfg.Physics.DT, AgeCeiling: cfg.Agent.AgeCeiling}
	fx := &e.effects[chunk]
	for i := start; i < end; i++ {
		systems.UpdateAgent(
			int32(i),
			&e.pos[i], &e.vel[i], &e.energy[i], &e.age[i],
			&e.genomes[i], &e.behav[i],
			&e.view, e.rands[i], p, fx,
		)
	}
}

// commitEffects applies buffered consume and fight intents single threaded,
// in chunk order. Consumption settles first so a fight cannot kill an agent
// before its meal lands.
func (e *flatEngine) commitEffects() {
	cfg := e.opts.Config
	for ci := range e.effects {
		for _, c := range e.effects[ci].Consumes {
			res := &e.res[c.Resource]
			consumed := res.Consume(c.Amount)
			if consumed <= 0 {
				continue
			}
			if e.opts.Recorder != nil {
				e.opts.Recorder.RecordConsumption(consumed)
			}
			en := &e.energy[c.Agent]
			en.Current += consumed * e.genomes[c.Agent].EnergyEfficiency
			if en.Current > en.Max {
				en.Current = en.Max
			}
			if en.Current > 15.0 && e.age[c.Agent].Value > 2.0 {
				e.behav[c.Agent].State = components.StateReproducing
			}
		}
	}

	for ci := range e.effects {
		for _, f := range e.effects[ci].Fights {
			a, d := f.Attacker, f.Defender
			if e.behav[a].Dying || e.behav[d].Dying {
				continue
			}
			out := systems.ResolveFight(
				&e.pos[a], &e.pos[d],
				&e.energy[a], &e.energy[d],
				&e.age[a], &e.age[d],
				&e.genomes[a], &e.genomes[d],
				&e.behav[a], &e.behav[d],
				cfg.World.Width, cfg.World.Height,
			)
			if (out.DefenderDied || out.AttackerDied) && e.opts.Recorder != nil {
				e.opts.Recorder.RecordKill()
			}
		}
	}
}

// reproduce pairs eligible agents and spawns their offspring. Births are
// collected first and applied after the scan, so a newborn can never parent
// another newborn within the same tick. Crowding gates keep the population
// from pinning itself to the cap.
func (e *flatEngine) reproduce() {
	cfg := e.opts.Config
	max := cfg.Population.MaxAgents

	pop := 0
	for i := range e.behav {
		if !e.behav[i].Dying {
			pop++
		}
	}
	if float64(pop) >= cfg.Reproduction.CrowdPause*float64(max) {
		return
	}

	type birth struct {
		x, y       float64
		g          genome.Genome
		generation int32
	}
	var births []birth

	for i := range e.pos {
		if float64(pop+len(births))/float64(max) > cfg.Reproduction.CrowdSoftLimit {
			break
		}
		if e.behav[i].Dying || !e.eligibleParent(i) {
			continue
		}
		partner := e.findPartner(i)
		if partner < 0 {
			continue
		}
		if e.rng.Float64() >= cfg.Reproduction.Chance {
			continue
		}

		child := genome.Inherit(&e.genomes[i], &e.genomes[partner], e.genomes[i].MutationRate, e.rng)
		off := cfg.Reproduction.SpawnOffset
		x := e.pos[i].X + (e.rng.Float64()*2-1)*off
		y := e.pos[i].Y + (e.rng.Float64()*2-1)*off

		generation := e.behav[i].Generation
		if g := e.behav[partner].Generation; g > generation {
			generation = g
		}
		births = append(births, birth{x: x, y: y, g: child, generation: generation + 1})
	}

	for _, b := range births {
		if e.spawnAgent(b.x, b.y, b.g, b.generation) && e.opts.Recorder != nil {
			e.opts.Recorder.RecordBirth()
		}
	}
}

func (e *flatEngine) eligibleParent(i int) bool {
	return systems.CanReproduce(&e.energy[i], &e.age[i], &e.behav[i]) &&
		e.energy[i].Current > e.opts.Config.Reproduction.MinEnergy
}

// findPartner returns the nearest eligible co-parent within the partner
// radius, or -1. The scan uses the tick-start grid, which is close enough
// given how little an agent moves per tick.
func (e *flatEngine) findPartner(i int) int {
	cfg := e.opts.Config
	var scratch [32]systems.Neighbor
	neighbors := e.agentGrid.QueryRadiusInto(scratch[:0], e.pos[i].X, e.pos[i].Y, cfg.Reproduction.PartnerRadius, int32(i))

	best := -1
	bestDist := math.Inf(1)
	for _, n := range neighbors {
		j := int(n.Idx)
		if e.behav[j].Dying || !e.eligibleParent(j) {
			continue
		}
		if n.DistSq < bestDist {
			bestDist = n.DistSq
			best = j
		}
	}
	return best
}

func (e *flatEngine) spawnResources(dt float64) {
	cfg := e.opts.Config
	interval := cfg.Derived.ResourceSpawnInterval
	if interval <= 0 {
		return
	}
	e.spawnTimer += dt
	for e.spawnTimer >= interval {
		e.spawnTimer -= interval
		x := e.rng.Float64() * cfg.World.Width
		y := e.rng.Float64() * cfg.World.Height
		e.spawnResource(x, y)
	}
}

// cleanup removes dead agents and fully faded resources with an
// order-preserving compaction, then rewrites live target indices through
// the old-to-new remap so no agent chases a slot that changed meaning.
func (e *flatEngine) cleanup() {
	e.agentRemap = resizeRemap(e.agentRemap, len(e.pos))
	w := 0
	for i := range e.pos {
		if e.behav[i].Dying {
			e.agentRemap[i] = -1
			e.removedKills += int64(e.behav[i].Kills)
			if e.opts.Recorder != nil {
				e.opts.Recorder.RecordDeath(e.behav[i].Death)
			}
			continue
		}
		e.agentRemap[i] = int32(w)
		if w != i {
			e.pos[w] = e.pos[i]
			e.vel[w] = e.vel[i]
			e.energy[w] = e.energy[i]
			e.age[w] = e.age[i]
			e.genomes[w] = e.genomes[i]
			e.behav[w] = e.behav[i]
		}
		w++
	}
	e.pos = e.pos[:w]
	e.vel = e.vel[:w]
	e.energy = e.energy[:w]
	e.age = e.age[:w]
	e.genomes = e.genomes[:w]
	e.behav = e.behav[:w]

	e.resRemap = resizeRemap(e.resRemap, len(e.res))
	rw := 0
	for i := range e.res {
		if e.res[i].Depleting && e.res[i].DepleteFade >= 1.0 {
			e.resRemap[i] = -1
			continue
		}
		e.resRemap[i] = int32(rw)
		if rw != i {
			e.resPos[rw] = e.resPos[i]
			e.res[rw] = e.res[i]
		}
		rw++
	}
	e.resPos = e.resPos[:rw]
	e.res = e.res[:rw]

	for i := range e.behav {
		b := &e.behav[i]
		switch b.TargetKind {
		case components.TargetAgent:
			ni := e.agentRemap[b.TargetIdx]
			if ni < 0 {
				resetTarget(b)
			} else {
				b.TargetIdx = ni
			}
		case components.TargetResource:
			ni := e.resRemap[b.TargetIdx]
			if ni < 0 {
				resetTarget(b)
			} else {
				b.TargetIdx = ni
			}
		}
	}
}

func resetTarget(b *components.Behavior) {
	b.TargetKind = components.TargetNone
	b.TargetIdx = 0
	if b.State == components.StateHunting || b.State == components.StateFeeding || b.State == components.StateFighting {
		b.State = components.StateSeeking
	}
}

func resizeRemap(remap []int32, n int) []int32 {
	if cap(remap) < n {
		return make([]int32, n)
	}
	return remap[:n]
}

func (e *flatEngine) AddAgent(x, y float64, g genome.Genome, generation int32) bool {
	g.Clamp()
	return e.spawnAgent(x, y, g, generation)
}

func (e *flatEngine) AddResource(x, y float64) bool {
	return e.spawnResource(x, y)
}

func (e *flatEngine) Reset() {
	e.rng = rand.New(rand.NewSource(e.opts.Seed))
	e.env = newEnvironment(e.opts)
	e.pos = e.pos[:0]
	e.vel = e.vel[:0]
	e.energy = e.energy[:0]
	e.age = e.age[:0]
	e.genomes = e.genomes[:0]
	e.behav = e.behav[:0]
	e.resPos = e.resPos[:0]
	e.res = e.res[:0]
	e.tick = 0
	e.time = 0
	e.spawnTimer = 0
	e.removedKills = 0
	e.populate()
	e.opts.Logger.Debug("engine reset", "backend", "flat", "seed", e.opts.Seed)
}

func (e *flatEngine) Stats() Stats {
	cfg := e.opts.Config
	s := Stats{
		Tick:       e.tick,
		Time:       e.time,
		Agents:     len(e.pos),
		Resources:  len(e.res),
		TotalKills: e.removedKills,
	}
	for i := range e.pos {
		g := &e.genomes[i]
		if g.Predator() {
			s.Predators++
		} else {
			s.Prey++
		}
		s.TotalEnergy += e.energy[i].Current
		s.AvgAge += e.age[i].Value
		s.AvgSpeed += g.Speed
		s.AvgSize += g.Size
		s.AvgAggression += g.Aggression
		s.AvgSense += g.SenseRange
		s.AvgEfficiency += g.EnergyEfficiency
		s.AvgFitness += g.FitnessScore()
		s.TotalKills += int64(e.behav[i].Kills)
		if e.behav[i].Generation > s.MaxGeneration {
			s.MaxGeneration = e.behav[i].Generation
		}
	}
	if s.Agents > 0 {
		n := float64(s.Agents)
		s.AvgEnergy = s.TotalEnergy / n
		s.AvgAge /= n
		s.AvgSpeed /= n
		s.AvgSize /= n
		s.AvgAggression /= n
		s.AvgSense /= n
		s.AvgEfficiency /= n
		s.AvgFitness /= n
	}
	s.Extinct = s.Agents == 0
	s.Exploded = s.Agents >= cfg.Population.MaxAgents
	return s
}

func (e *flatEngine) Agents() []AgentSnapshot {
	out := make([]AgentSnapshot, len(e.pos))
	for i := range e.pos {
		out[i] = AgentSnapshot{
			X: e.pos[i].X, Y: e.pos[i].Y,
			DX: e.vel[i].DX, DY: e.vel[i].DY,
			Energy:     e.energy[i].Current,
			MaxEnergy:  e.energy[i].Max,
			Age:        e.age[i].Value,
			Genome:     e.genomes[i],
			State:      e.behav[i].State,
			Generation: e.behav[i].Generation,
			Kills:      e.behav[i].Kills,
			SpawnFade:  e.behav[i].SpawnFade,
		}
	}
	return out
}

func (e *flatEngine) Resources() []ResourceSnapshot {
	out := make([]ResourceSnapshot, len(e.res))
	for i := range e.res {
		out[i] = ResourceSnapshot{X: e.resPos[i].X, Y: e.resPos[i].Y, State: e.res[i]}
	}
	return out
}

func (e *flatEngine) Close() {
	if e.pool != nil {
		e.pool.stop()
	}
}
