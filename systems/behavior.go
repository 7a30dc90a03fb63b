package systems

import (
	"math"

	"github.com/pthm-cable/biome/components"
	"github.com/pthm-cable/biome/genome"
)

// Tunable behavior constants. These are shared by both engine backends.
const (
	// InteractionRadius is the distance at which an agent can feed on a
	// resource or engage another agent.
	InteractionRadius = 5.0

	// FeedAmount is the energy an agent tries to draw from a resource in a
	// single feeding interaction. The resource grants at most its own store.
	FeedAmount = 50.0

	// perturbChance is the per-tick probability of a small random kick to
	// velocity, which keeps wandering agents from tracing straight lines.
	perturbChance = 0.01
)

// Params carries the per-run behavior settings an engine threads through
// every agent update.
type Params struct {
	DT         float64
	AgeCeiling float64
}

// UpdateAgent advances one agent by a tick. It mutates only the agent's own
// components; every cross-entity effect goes into fx for single-threaded
// application after all agents have run. Neighbor reads go through the view
// snapshot, never through live component data.
func UpdateAgent(
	idx int32,
	pos *components.Position,
	vel *components.Velocity,
	en *components.Energy,
	age *components.Age,
	g *genome.Genome,
	b *components.Behavior,
	view *View,
	rnd AgentRand,
	p Params,
	fx *Effects,
) {
	age.Value += p.DT

	if b.SpawnFade < 1.0 {
		b.SpawnFade += p.DT * 3.0 // fade in over 0.33s
		if b.SpawnFade > 1.0 {
			b.SpawnFade = 1.0
		}
	}

	// Metabolic upkeep. Cost scales with body size and speed, the metabolism
	// trait, and the local environment; efficiency divides it back down.
	baseCost := (g.Size*0.05 + g.Speed*0.02) * p.DT
	envFactor := view.Env.CostFactor(pos.X, pos.Y)
	en.Current -= baseCost * g.Metabolism * envFactor / g.EnergyEfficiency

	if en.Current <= 0 {
		en.Current = 0
		b.Dying = true
		b.Death = components.DeathStarved
		return
	}
	if age.Value > p.AgeCeiling {
		b.Dying = true
		b.Death = components.DeathOldAge
		return
	}

	switch b.State {
	case components.StateSeeking:
		seekTargets(idx, pos, vel, en, g, b, view, rnd)
	case components.StateHunting:
		huntTarget(pos, vel, g, b, view)
	case components.StateFeeding:
		feedOnResource(idx, pos, b, view, fx)
	case components.StateReproducing:
		// Birth itself happens in the reproduction pass; the state only
		// charges the parent and resets the cooldown.
		en.Current *= 0.7
		b.LastReproduction = age.Value
		b.State = components.StateSeeking
	case components.StateFighting:
		fightTarget(idx, pos, b, view, fx)
	case components.StateFleeing:
		fleeFromDanger(pos, vel, g, b)
	}

	moveAgent(pos, vel, g, view, rnd, p.DT)

	if canReproduce(en, age, b) {
		b.State = components.StateReproducing
	}
}

func canReproduce(en *components.Energy, age *components.Age, b *components.Behavior) bool {
	return en.Current > 10.0 && age.Value > 2.0 && age.Value-b.LastReproduction > 1.0
}

// CanReproduce reports whether an agent is eligible to parent offspring this
// tick. The reproduction pass applies population gates on top of this.
func CanReproduce(en *components.Energy, age *components.Age, b *components.Behavior) bool {
	return canReproduce(en, age, b)
}

// seekTargets scans the neighborhood and picks the best thing to do next.
// Prey flight preempts everything; otherwise the best-scoring target among
// huntable prey, available resources and beatable rivals wins, and an agent
// with nothing in range wanders.
func seekTargets(idx int32, pos *components.Position, vel *components.Velocity, en *components.Energy, g *genome.Genome, b *components.Behavior, view *View, rnd AgentRand) {
	predator := g.Predator()

	var scratch [64]Neighbor
	neighbors := scratch[:0]

	bestScore := math.Inf(-1)
	bestKind := components.TargetNone
	var bestIdx int32
	var bestX, bestY float64

	if !predator {
		// Threat scan. The first predator in sense range sends prey into
		// flight toward a point mirrored away from the threat.
		neighbors = view.AgentGrid.QueryRadiusInto(neighbors, pos.X, pos.Y, g.SenseRange, idx)
		for _, n := range neighbors {
			other := &view.Agents[n.Idx]
			if !other.Alive || !other.Genome.Predator() {
				continue
			}
			b.State = components.StateFleeing
			b.TargetKind = components.TargetPoint
			b.TargetX = pos.X - n.DX*2.0
			b.TargetY = pos.Y - n.DY*2.0
			return
		}
	} else {
		// Predators hunt prey across a territory-scaled radius.
		huntRange := g.SenseRange * g.TerritorySize / 100.0
		neighbors = view.AgentGrid.QueryRadiusInto(neighbors, pos.X, pos.Y, huntRange, idx)
		for _, n := range neighbors {
			other := &view.Agents[n.Idx]
			if !other.Targetable() || other.Genome.Predator() {
				continue
			}
			dist := math.Sqrt(n.DistSq)
			score := (other.Energy / 100.0) *
				(1.0 - dist/g.SenseRange) *
				(1.0 + g.Stealth) *
				(1.0 + g.Intelligence)
			if score > bestScore {
				bestScore = score
				bestKind = components.TargetAgent
				bestIdx = n.Idx
				bestX, bestY = other.X, other.Y
			}
		}
	}

	// Resources are fair game for everyone.
	neighbors = view.ResourceGrid.QueryRadiusInto(neighbors[:0], pos.X, pos.Y, g.SenseRange, -1)
	for _, n := range neighbors {
		res := &view.Resources[n.Idx]
		if !res.State.Available() {
			continue
		}
		dist := math.Sqrt(n.DistSq)
		score := res.State.Energy / (dist + 1.0)
		if score > bestScore {
			bestScore = score
			bestKind = components.TargetResource
			bestIdx = n.Idx
			bestX, bestY = res.X, res.Y
		}
	}

	if predator {
		// Rival predators at close range. Clearly weaker rivals are worth
		// attacking for aggressive agents; clearly stronger ones trigger
		// flight before any other choice sticks.
		neighbors = view.AgentGrid.QueryRadiusInto(neighbors[:0], pos.X, pos.Y, g.SenseRange*0.5, idx)
		for _, n := range neighbors {
			other := &view.Agents[n.Idx]
			if !other.Targetable() || !other.Genome.Predator() {
				continue
			}
			sizeRatio := other.Genome.Size / g.Size
			attackRatio := g.AttackPower / other.Genome.AttackPower
			if sizeRatio > 1.2 && attackRatio < 0.8 {
				b.State = components.StateFleeing
				b.TargetKind = components.TargetPoint
				b.TargetX = pos.X - n.DX*1.5
				b.TargetY = pos.Y - n.DY*1.5
				return
			}
			energyRatio := other.Energy / en.Current
			if sizeRatio < 0.8 && energyRatio > 0.7 && attackRatio > 1.2 && g.Aggression > 0.6 {
				dist := math.Sqrt(n.DistSq)
				score := other.Energy / (dist + 1.0) * g.Aggression * attackRatio
				if score > bestScore {
					bestScore = score
					bestKind = components.TargetAgent
					bestIdx = n.Idx
					bestX, bestY = other.X, other.Y
				}
			}
		}
	}

	if bestKind != components.TargetNone {
		b.State = components.StateHunting
		b.TargetKind = bestKind
		b.TargetIdx = bestIdx
		b.TargetX = bestX
		b.TargetY = bestY
		return
	}

	// Nothing in range. Wander in a fresh random direction.
	vel.DX = math.Cos(rnd.Heading) * g.Speed
	vel.DY = math.Sin(rnd.Heading) * g.Speed
}

// huntTarget closes on the current target. Entity targets are tracked
// through the snapshot so a moving target stays tracked; arrival switches to
// Feeding for resources and Fighting for agents.
func huntTarget(pos *components.Position, vel *components.Velocity, g *genome.Genome, b *components.Behavior, view *View) {
	switch b.TargetKind {
	case components.TargetAgent:
		if int(b.TargetIdx) >= len(view.Agents) || !view.Agents[b.TargetIdx].Alive {
			clearTarget(b)
			return
		}
		t := &view.Agents[b.TargetIdx]
		b.TargetX, b.TargetY = t.X, t.Y
	case components.TargetResource:
		if int(b.TargetIdx) >= len(view.Resources) || !view.Resources[b.TargetIdx].State.Available() {
			clearTarget(b)
			return
		}
	case components.TargetNone, components.TargetPoint:
		clearTarget(b)
		return
	}

	dx, dy := ToroidalDelta(pos.X, pos.Y, b.TargetX, b.TargetY, view.W, view.H)
	dist := math.Sqrt(dx*dx + dy*dy)

	if dist < InteractionRadius {
		if b.TargetKind == components.TargetAgent {
			b.State = components.StateFighting
		} else {
			b.State = components.StateFeeding
		}
		return
	}

	speed := g.Speed * 2.0
	if g.Predator() {
		speed = g.Speed * g.HuntingSpeed * 2.0
	}
	vel.DX = (dx / dist) * speed
	vel.DY = (dy / dist) * speed
}

// feedOnResource emits a consume intent when still in range of the targeted
// node. The actual transfer happens in the commit phase, which also decides
// whether the meal tips the agent into reproducing.
func feedOnResource(idx int32, pos *components.Position, b *components.Behavior, view *View, fx *Effects) {
	if b.TargetKind == components.TargetResource && int(b.TargetIdx) < len(view.Resources) {
		res := &view.Resources[b.TargetIdx]
		dx, dy := ToroidalDelta(pos.X, pos.Y, res.X, res.Y, view.W, view.H)
		if dx*dx+dy*dy < InteractionRadius*InteractionRadius {
			fx.Consumes = append(fx.Consumes, ConsumeIntent{
				Agent:    idx,
				Resource: b.TargetIdx,
				Amount:   FeedAmount,
			})
		}
	}
	clearTarget(b)
}

// fightTarget emits a fight intent when still in range of the targeted
// agent. Combat resolves in the commit phase against live energies.
func fightTarget(idx int32, pos *components.Position, b *components.Behavior, view *View, fx *Effects) {
	if b.TargetKind == components.TargetAgent && int(b.TargetIdx) < len(view.Agents) {
		t := &view.Agents[b.TargetIdx]
		if t.Alive {
			dx, dy := ToroidalDelta(pos.X, pos.Y, t.X, t.Y, view.W, view.H)
			if dx*dx+dy*dy < InteractionRadius*InteractionRadius {
				fx.Fights = append(fx.Fights, FightIntent{Attacker: idx, Defender: b.TargetIdx})
			}
		}
	}
	clearTarget(b)
}

// fleeFromDanger sprints toward the flee point until it is out of sense
// range, then resumes seeking.
func fleeFromDanger(pos *components.Position, vel *components.Velocity, g *genome.Genome, b *components.Behavior) {
	if b.TargetKind != components.TargetPoint {
		clearTarget(b)
		return
	}
	dx := b.TargetX - pos.X
	dy := b.TargetY - pos.Y
	dist := math.Sqrt(dx*dx + dy*dy)

	if dist > g.SenseRange || dist == 0 {
		clearTarget(b)
		return
	}
	speed := g.Speed * 3.0
	vel.DX = (dx / dist) * speed
	vel.DY = (dy / dist) * speed
}

// moveAgent integrates position, wraps the torus, applies the occasional
// random kick and renormalizes velocity back to the agent's base speed so
// perturbations change heading without accumulating speed.
func moveAgent(pos *components.Position, vel *components.Velocity, g *genome.Genome, view *View, rnd AgentRand, dt float64) {
	pos.X += vel.DX * dt
	pos.Y += vel.DY * dt
	pos.X, pos.Y = WrapPosition(pos.X, pos.Y, view.W, view.H)

	if rnd.PerturbRoll < perturbChance {
		vel.DX += math.Cos(rnd.PerturbAngle) * 0.1
		vel.DY += math.Sin(rnd.PerturbAngle) * 0.1
	}

	length := math.Sqrt(vel.DX*vel.DX + vel.DY*vel.DY)
	if length > 0 {
		vel.DX = vel.DX / length * g.Speed
		vel.DY = vel.DY / length * g.Speed
	}
}

func clearTarget(b *components.Behavior) {
	b.State = components.StateSeeking
	b.TargetKind = components.TargetNone
	b.TargetIdx = 0
}

// Combat resolution, run single threaded during the commit phase.

// FightOutcome describes what a resolved fight did, for telemetry.
type FightOutcome struct {
	AttackerWon  bool
	DefenderDied bool
	AttackerDied bool
	EnergyGained float64
}

// ResolveFight applies one fight intent against live component data. Both
// sides' effective power combines attack, mass, current energy and the
// opposing defense, scaled by intelligence and stamina. The winner absorbs a
// share of the loser's energy; the loser takes damage and flees, or dies.
func ResolveFight(
	aPos, dPos *components.Position,
	aEn, dEn *components.Energy,
	aAge, dAge *components.Age,
	aG, dG *genome.Genome,
	aB, dB *components.Behavior,
	w, h float64,
) FightOutcome {
	var out FightOutcome

	aPower := effectivePower(aG, aEn, dG)
	dPower := effectivePower(dG, dEn, aG)

	if aPower > dPower {
		out.AttackerWon = true
		gain := dEn.Current * 0.6
		if aG.Predator() && !dG.Predator() {
			gain = dEn.Current * 1.2
		}
		aEn.Current += gain
		out.EnergyGained = gain
		aB.Kills++
		if aG.Predator() {
			aEn.Current += 20.0 * aG.AttackPower
		}
		if aEn.Current > aEn.Max {
			aEn.Current = aEn.Max
		}
		if aEn.Current > 15.0 && aAge.Value > 2.0 {
			aB.State = components.StateReproducing
		}

		dEn.Current -= aPower * 0.1
		if dEn.Current <= 0 {
			dEn.Current = 0
			dB.Dying = true
			dB.Death = components.DeathKilled
			out.DefenderDied = true
		} else {
			fleeInto(dB, dPos, aPos, w, h)
		}
	} else {
		dB.Kills++
		aEn.Current -= dPower * 0.1
		if aEn.Current <= 0 {
			aEn.Current = 0
			aB.Dying = true
			aB.Death = components.DeathKilled
			out.AttackerDied = true
		} else {
			fleeInto(aB, aPos, dPos, w, h)
		}
	}
	return out
}

func effectivePower(g *genome.Genome, en *components.Energy, opp *genome.Genome) float64 {
	attack := g.AttackPower * g.Size * en.Current * 0.01
	oppDefense := opp.Defense * opp.Size
	return attack / (oppDefense + 1.0) * (1.0 + g.Intelligence*0.5 + g.Stamina*0.3)
}

func fleeInto(b *components.Behavior, pos, threat *components.Position, w, h float64) {
	dx, dy := ToroidalDelta(pos.X, pos.Y, threat.X, threat.Y, w, h)
	b.State = components.StateFleeing
	b.TargetKind = components.TargetPoint
	b.TargetX = pos.X - dx*2.0
	b.TargetY = pos.Y - dy*2.0
}
