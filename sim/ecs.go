package sim

import (
	"math"
	"math/rand"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/biome/components"
	"github.com/pthm-cable/biome/genome"
	"github.com/pthm-cable/biome/systems"
)

// ecsEngine stores populations as archetype-based entities. It exists for
// worlds where agents gain and lose components at runtime; the per-tick
// semantics are identical to the flat backend. Updates run single threaded,
// entity storage does not chunk as cleanly as flat slices.
type ecsEngine struct {
	opts Options
	rng  *rand.Rand

	world *ecs.World

	agentMapper *ecs.Map6[
		components.Position,
		components.Velocity,
		components.Energy,
		components.Age,
		genome.Genome,
		components.Behavior,
	]
	resMapper *ecs.Map2[components.Position, components.ResourceState]

	// Individual component mappers for lookups
	posMap    *ecs.Map1[components.Position]
	velMap    *ecs.Map1[components.Velocity]
	energyMap *ecs.Map1[components.Energy]
	ageMap    *ecs.Map1[components.Age]
	genomeMap *ecs.Map1[genome.Genome]
	behavMap  *ecs.Map1[components.Behavior]
	resMap    *ecs.Map1[components.ResourceState]

	// Entity lists hold the canonical iteration order. View indices and
	// target indices refer to positions in these lists.
	agents    []ecs.Entity
	resources []ecs.Entity

	agentGrid *systems.SpatialGrid
	resGrid   *systems.SpatialGrid
	env       *systems.Environment
	view      systems.View

	rands   []systems.AgentRand
	effects systems.Effects

	agentRemap []int32
	resRemap   []int32

	tick         int64
	time         float64
	spawnTimer   float64
	removedKills int64
}

func newECSEngine(opts Options) *ecsEngine {
	cfg := opts.Config
	world := ecs.NewWorld()

	e := &ecsEngine{
		opts:  opts,
		rng:   rand.New(rand.NewSource(opts.Seed)),
		world: world,
		agentMapper: ecs.NewMap6[
			components.Position,
			components.Velocity,
			components.Energy,
			components.Age,
			genome.Genome,
			components.Behavior,
		](world),
		resMapper: ecs.NewMap2[components.Position, components.ResourceState](world),
		posMap:    ecs.NewMap1[components.Position](world),
		velMap:    ecs.NewMap1[components.Velocity](world),
		energyMap: ecs.NewMap1[components.Energy](world),
		ageMap:    ecs.NewMap1[components.Age](world),
		genomeMap: ecs.NewMap1[genome.Genome](world),
		behavMap:  ecs.NewMap1[components.Behavior](world),
		resMap:    ecs.NewMap1[components.ResourceState](world),
		agentGrid: systems.NewSpatialGrid(cfg.World.Width, cfg.World.Height, cfg.Physics.GridCellSize),
		resGrid:   systems.NewSpatialGrid(cfg.World.Width, cfg.World.Height, cfg.Physics.GridCellSize),
		env:       newEnvironment(opts),
	}

	e.populate()
	return e
}

func (e *ecsEngine) populate() {
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

func (e *ecsEngine) spawnAgent(x, y float64, g genome.Genome, generation int32) bool {
	cfg := e.opts.Config
	if len(e.agents) >= cfg.Population.MaxAgents {
		return false
	}
	x, y = systems.WrapPosition(x, y, cfg.World.Width, cfg.World.Height)
	heading := e.rng.Float64() * 2 * math.Pi

	pos := components.Position{X: x, Y: y}
	vel := components.Velocity{
		DX: math.Cos(heading) * g.Speed,
		DY: math.Sin(heading) * g.Speed,
	}
	energy := components.Energy{Current: cfg.Agent.InitialEnergy, Max: cfg.Agent.MaxEnergy}
	age := components.Age{}
	behav := components.Behavior{State: components.StateSeeking, Generation: generation}

	entity := e.agentMapper.NewEntity(&pos, &vel, &energy, &age, &g, &behav)
	e.agents = append(e.agents, entity)
	return true
}

func (e *ecsEngine) spawnResource(x, y float64) bool {
	cfg := e.opts.Config
	if len(e.resources) >= cfg.Population.MaxResources {
		return false
	}
	x, y = systems.WrapPosition(x, y, cfg.World.Width, cfg.World.Height)
	pos := components.Position{X: x, Y: y}
	state := systems.NewResourceState(e.rng)

	entity := e.resMapper.NewEntity(&pos, &state)
	e.resources = append(e.resources, entity)
	return true
}

func (e *ecsEngine) Tick() {
	cfg := e.opts.Config
	dt := cfg.Physics.DT
	e.tick++
	e.time += dt
	e.env.Advance(dt)

	e.buildView()
	e.drawRands()

	p := systems.Params{DT: dt, AgeCeiling: cfg.Agent.AgeCeiling}
	e.effects.Reset()
	for i, entity := range e.agents {
		systems.UpdateAgent(
			int32(i),
			e.posMap.Get(entity),
			e.velMap.Get(entity),
			e.energyMap.Get(entity),
			e.ageMap.Get(entity),
			e.genomeMap.Get(entity),
			e.behavMap.Get(entity),
			&e.view, e.rands[i], p, &e.effects,
		)
	}

	e.commitEffects()

	for _, entity := range e.resources {
		systems.UpdateResource(e.resMap.Get(entity), dt)
	}

	e.reproduce()
	e.spawnResources(dt)
	e.cleanup()
}

func (e *ecsEngine) buildView() {
	cfg := e.opts.Config
	e.view.W = cfg.World.Width
	e.view.H = cfg.World.Height
	e.view.Env = e.env
	e.view.AgentGrid = e.agentGrid
	e.view.ResourceGrid = e.resGrid

	e.view.Agents = e.view.Agents[:0]
	e.agentGrid.Clear()
	for i, entity := range e.agents {
		pos := e.posMap.Get(entity)
		b := e.behavMap.Get(entity)
		e.view.Agents = append(e.view.Agents, systems.AgentInfo{
			X:         pos.X,
			Y:         pos.Y,
			Energy:    e.energyMap.Get(entity).Current,
			Genome:    *e.genomeMap.Get(entity),
			Alive:     !b.Dying,
			SpawnFade: b.SpawnFade,
		})
		e.agentGrid.Insert(int32(i), pos.X, pos.Y)
	}

	e.view.Resources = e.view.Resources[:0]
	e.resGrid.Clear()
	for i, entity := range e.resources {
		pos := e.posMap.Get(entity)
		e.view.Resources = append(e.view.Resources, systems.ResourceInfo{
			X:     pos.X,
			Y:     pos.Y,
			State: *e.resMap.Get(entity),
		})
		e.resGrid.Insert(int32(i), pos.X, pos.Y)
	}
}

func (e *ecsEngine) drawRands() {
	n := len(e.agents)
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

func (e *ecsEngine) commitEffects() {
	cfg := e.opts.Config
	for _, c := range e.effects.Consumes {
		res := e.resMap.Get(e.resources[c.Resource])
		consumed := res.Consume(c.Amount)
		if consumed <= 0 {
			continue
		}
		if e.opts.Recorder != nil {
			e.opts.Recorder.RecordConsumption(consumed)
		}
		agent := e.agents[c.Agent]
		en := e.energyMap.Get(agent)
		en.Current += consumed * e.genomeMap.Get(agent).EnergyEfficiency
		if en.Current > en.Max {
			en.Current = en.Max
		}
		if en.Current > 15.0 && e.ageMap.Get(agent).Value > 2.0 {
			e.behavMap.Get(agent).State = components.StateReproducing
		}
	}

	for _, f := range e.effects.Fights {
		a, d := e.agents[f.Attacker], e.agents[f.Defender]
		aB, dB := e.behavMap.Get(a), e.behavMap.Get(d)
		if aB.Dying || dB.Dying {
			continue
		}
		out := systems.ResolveFight(
			e.posMap.Get(a), e.posMap.Get(d),
			e.energyMap.Get(a), e.energyMap.Get(d),
			e.ageMap.Get(a), e.ageMap.Get(d),
			e.genomeMap.Get(a), e.genomeMap.Get(d),
			aB, dB,
			cfg.World.Width, cfg.World.Height,
		)
		if (out.DefenderDied || out.AttackerDied) && e.opts.Recorder != nil {
			e.opts.Recorder.RecordKill()
		}
	}
}

func (e *ecsEngine) reproduce() {
	cfg := e.opts.Config
	max := cfg.Population.MaxAgents

	pop := 0
	for _, entity := range e.agents {
		if !e.behavMap.Get(entity).Dying {
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

	for i, entity := range e.agents {
		if float64(pop+len(births))/float64(max) > cfg.Reproduction.CrowdSoftLimit {
			break
		}
		if e.behavMap.Get(entity).Dying || !e.eligibleParent(entity) {
			continue
		}
		partner, ok := e.findPartner(i, entity)
		if !ok {
			continue
		}
		if e.rng.Float64() >= cfg.Reproduction.Chance {
			continue
		}

		child := genome.Inherit(e.genomeMap.Get(entity), e.genomeMap.Get(partner), e.genomeMap.Get(entity).MutationRate, e.rng)
		pos := e.posMap.Get(entity)
		off := cfg.Reproduction.SpawnOffset
		x := pos.X + (e.rng.Float64()*2-1)*off
		y := pos.Y + (e.rng.Float64()*2-1)*off

		generation := e.behavMap.Get(entity).Generation
		if g := e.behavMap.Get(partner).Generation; g > generation {
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

func (e *ecsEngine) eligibleParent(entity ecs.Entity) bool {
	return systems.CanReproduce(e.energyMap.Get(entity), e.ageMap.Get(entity), e.behavMap.Get(entity)) &&
		e.energyMap.Get(entity).Current > e.opts.Config.Reproduction.MinEnergy
}

func (e *ecsEngine) findPartner(i int, entity ecs.Entity) (ecs.Entity, bool) {
	cfg := e.opts.Config
	pos := e.posMap.Get(entity)
	var scratch [32]systems.Neighbor
	neighbors := e.agentGrid.QueryRadiusInto(scratch[:0], pos.X, pos.Y, cfg.Reproduction.PartnerRadius, int32(i))

	var best ecs.Entity
	found := false
	bestDist := math.Inf(1)
	for _, n := range neighbors {
		candidate := e.agents[n.Idx]
		if e.behavMap.Get(candidate).Dying || !e.eligibleParent(candidate) {
			continue
		}
		if n.DistSq < bestDist {
			bestDist = n.DistSq
			best = candidate
			found = true
		}
	}
	return best, found
}

func (e *ecsEngine) spawnResources(dt float64) {
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

func (e *ecsEngine) cleanup() {
	// First pass collects, removal happens after iteration. Removing while
	// walking the entity list would shift archetype storage under us.
	e.agentRemap = resizeRemap(e.agentRemap, len(e.agents))
	var toRemove []ecs.Entity
	w := 0
	for i, entity := range e.agents {
		b := e.behavMap.Get(entity)
		if b.Dying {
			e.agentRemap[i] = -1
			e.removedKills += int64(b.Kills)
			if e.opts.Recorder != nil {
				e.opts.Recorder.RecordDeath(b.Death)
			}
			toRemove = append(toRemove, entity)
			continue
		}
		e.agentRemap[i] = int32(w)
		e.agents[w] = entity
		w++
	}
	e.agents = e.agents[:w]
	for _, entity := range toRemove {
		e.agentMapper.Remove(entity)
	}

	e.resRemap = resizeRemap(e.resRemap, len(e.resources))
	toRemove = toRemove[:0]
	rw := 0
	for i, entity := range e.resources {
		r := e.resMap.Get(entity)
		if r.Depleting && r.DepleteFade >= 1.0 {
			e.resRemap[i] = -1
			toRemove = append(toRemove, entity)
			continue
		}
		e.resRemap[i] = int32(rw)
		e.resources[rw] = entity
		rw++
	}
	e.resources = e.resources[:rw]
	for _, entity := range toRemove {
		e.resMapper.Remove(entity)
	}

	for _, entity := range e.agents {
		b := e.behavMap.Get(entity)
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

func (e *ecsEngine) AddAgent(x, y float64, g genome.Genome, generation int32) bool {
	g.Clamp()
	return e.spawnAgent(x, y, g, generation)
}

func (e *ecsEngine) AddResource(x, y float64) bool {
	return e.spawnResource(x, y)
}

func (e *ecsEngine) Reset() {
	for _, entity := range e.agents {
		e.agentMapper.Remove(entity)
	}
	for _, entity := range e.resources {
		e.resMapper.Remove(entity)
	}
	e.agents = e.agents[:0]
	e.resources = e.resources[:0]
	e.rng = rand.New(rand.NewSource(e.opts.Seed))
	e.env = newEnvironment(e.opts)
	e.tick = 0
	e.time = 0
	e.spawnTimer = 0
	e.removedKills = 0
	e.populate()
	e.opts.Logger.Debug("engine reset", "backend", "ecs", "seed", e.opts.Seed)
}

func (e *ecsEngine) Stats() Stats {
	cfg := e.opts.Config
	s := Stats{
		Tick:       e.tick,
		Time:       e.time,
		Agents:     len(e.agents),
		Resources:  len(e.resources),
		TotalKills: e.removedKills,
	}
	for _, entity := range e.agents {
		g := e.genomeMap.Get(entity)
		b := e.behavMap.Get(entity)
		if g.Predator() {
			s.Predators++
		} else {
			s.Prey++
		}
		s.TotalEnergy += e.energyMap.Get(entity).Current
		s.AvgAge += e.ageMap.Get(entity).Value
		s.AvgSpeed += g.Speed
		s.AvgSize += g.Size
		s.AvgAggression += g.Aggression
		s.AvgSense += g.SenseRange
		s.AvgEfficiency += g.EnergyEfficiency
		s.AvgFitness += g.FitnessScore()
		s.TotalKills += int64(b.Kills)
		if b.Generation > s.MaxGeneration {
			s.MaxGeneration = b.Generation
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

func (e *ecsEngine) Agents() []AgentSnapshot {
	out := make([]AgentSnapshot, len(e.agents))
	for i, entity := range e.agents {
		pos := e.posMap.Get(entity)
		vel := e.velMap.Get(entity)
		en := e.energyMap.Get(entity)
		b := e.behavMap.Get(entity)
		out[i] = AgentSnapshot{
			X: pos.X, Y: pos.Y,
			DX: vel.DX, DY: vel.DY,
			Energy:     en.Current,
			MaxEnergy:  en.Max,
			Age:        e.ageMap.Get(entity).Value,
			Genome:     *e.genomeMap.Get(entity),
			State:      b.State,
			Generation: b.Generation,
			Kills:      b.Kills,
			SpawnFade:  b.SpawnFade,
		}
	}
	return out
}

func (e *ecsEngine) Resources() []ResourceSnapshot {
	out := make([]ResourceSnapshot, len(e.resources))
	for i, entity := range e.resources {
		pos := e.posMap.Get(entity)
		out[i] = ResourceSnapshot{X: pos.X, Y: pos.Y, State: *e.resMap.Get(entity)}
	}
	return out
}

func (e *ecsEngine) Close() {}
