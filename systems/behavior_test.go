package systems

import (
	"math"
	"testing"

	"github.com/pthm-cable/biome/components"
	"github.com/pthm-cable/biome/genome"
)

func preyGenome() genome.Genome {
	return genome.Genome{
		Speed:            1.0,
		SenseRange:       50,
		Size:             1.0,
		EnergyEfficiency: 1.0,
		IsPredator:       0.1,
		HuntingSpeed:     1.0,
		AttackPower:      1.0,
		Defense:          1.0,
		TerritorySize:    100,
		Metabolism:       1.0,
		Intelligence:     1.0,
		Stamina:          1.0,
	}
}

func predatorGenome() genome.Genome {
	g := preyGenome()
	g.IsPredator = 0.9
	g.Aggression = 0.8
	return g
}

// testView builds a snapshot world from explicit agent and resource placements.
func testView(agents []AgentInfo, resources []ResourceInfo) *View {
	const w, h = 1000.0, 800.0
	v := &View{
		W: w, H: h,
		Agents:       agents,
		Resources:    resources,
		AgentGrid:    NewSpatialGrid(w, h, 50),
		ResourceGrid: NewSpatialGrid(w, h, 50),
	}
	for i, a := range agents {
		v.AgentGrid.Insert(int32(i), a.X, a.Y)
	}
	for i, r := range resources {
		v.ResourceGrid.Insert(int32(i), r.X, r.Y)
	}
	return v
}

func testParams() Params {
	return Params{DT: 1.0 / 60.0, AgeCeiling: 200}
}

func TestUpdateAgentStarvation(t *testing.T) {
	g := preyGenome()
	pos := components.Position{X: 100, Y: 100}
	vel := components.Velocity{}
	en := components.Energy{Current: 0.00001, Max: 100}
	age := components.Age{Value: 10}
	b := components.Behavior{State: components.StateSeeking, SpawnFade: 1}

	view := testView([]AgentInfo{{X: 100, Y: 100, Energy: en.Current, Genome: g, Alive: true}}, nil)
	var fx Effects
	UpdateAgent(0, &pos, &vel, &en, &age, &g, &b, view, AgentRand{}, testParams(), &fx)

	if !b.Dying || b.Death != components.DeathStarved {
		t.Fatalf("agent with no energy should be marked starved, got dying=%v reason=%v", b.Dying, b.Death)
	}
	if en.Current != 0 {
		t.Errorf("energy clamped to %v, want 0", en.Current)
	}
}

func TestUpdateAgentOldAge(t *testing.T) {
	g := preyGenome()
	pos := components.Position{X: 100, Y: 100}
	vel := components.Velocity{}
	en := components.Energy{Current: 80, Max: 100}
	age := components.Age{Value: 200.5}
	b := components.Behavior{State: components.StateSeeking, SpawnFade: 1}

	view := testView([]AgentInfo{{X: 100, Y: 100, Energy: 80, Genome: g, Alive: true}}, nil)
	var fx Effects
	UpdateAgent(0, &pos, &vel, &en, &age, &g, &b, view, AgentRand{}, testParams(), &fx)

	if !b.Dying || b.Death != components.DeathOldAge {
		t.Fatalf("over-age agent should be marked dead of old age, got dying=%v reason=%v", b.Dying, b.Death)
	}
}

func TestPreyFleesFromPredator(t *testing.T) {
	prey := preyGenome()
	pred := predatorGenome()

	view := testView([]AgentInfo{
		{X: 100, Y: 100, Energy: 80, Genome: prey, Alive: true},
		{X: 120, Y: 100, Energy: 80, Genome: pred, Alive: true},
	}, []ResourceInfo{
		// A juicy resource right next door must not override flight.
		{X: 102, Y: 100, State: components.ResourceState{Energy: 100, MaxEnergy: 100, SpawnFade: 1}},
	})

	pos := components.Position{X: 100, Y: 100}
	vel := components.Velocity{}
	en := components.Energy{Current: 80, Max: 100}
	age := components.Age{Value: 1}
	b := components.Behavior{State: components.StateSeeking, SpawnFade: 1}
	var fx Effects
	UpdateAgent(0, &pos, &vel, &en, &age, &prey, &b, view, AgentRand{}, testParams(), &fx)

	if b.State != components.StateFleeing {
		t.Fatalf("state = %v, want fleeing", b.State)
	}
	if b.TargetKind != components.TargetPoint {
		t.Fatalf("flee target kind = %v, want point", b.TargetKind)
	}
	// The flee point mirrors the threat: predator is at +20 in x, so the
	// point lands at -40.
	if b.TargetX != 60 || b.TargetY != 100 {
		t.Errorf("flee point = (%v, %v), want (60, 100)", b.TargetX, b.TargetY)
	}
}

func TestSeekingPicksResource(t *testing.T) {
	prey := preyGenome()

	view := testView([]AgentInfo{
		{X: 100, Y: 100, Energy: 80, Genome: prey, Alive: true},
	}, []ResourceInfo{
		{X: 130, Y: 100, State: components.ResourceState{Energy: 40, MaxEnergy: 100, SpawnFade: 1}},
		{X: 110, Y: 100, State: components.ResourceState{Energy: 40, MaxEnergy: 100, SpawnFade: 1}},
		{X: 105, Y: 100, State: components.ResourceState{Energy: 2, MaxEnergy: 100, SpawnFade: 1}}, // too empty
	})

	pos := components.Position{X: 100, Y: 100}
	vel := components.Velocity{}
	en := components.Energy{Current: 80, Max: 100}
	age := components.Age{Value: 1}
	b := components.Behavior{State: components.StateSeeking, SpawnFade: 1}
	var fx Effects
	UpdateAgent(0, &pos, &vel, &en, &age, &prey, &b, view, AgentRand{}, testParams(), &fx)

	if b.State != components.StateHunting {
		t.Fatalf("state = %v, want hunting", b.State)
	}
	if b.TargetKind != components.TargetResource || b.TargetIdx != 1 {
		t.Errorf("target = %v/%d, want the closer available resource (1)", b.TargetKind, b.TargetIdx)
	}
}

func TestSeekingWandersWhenNothingInRange(t *testing.T) {
	prey := preyGenome()
	view := testView([]AgentInfo{
		{X: 100, Y: 100, Energy: 80, Genome: prey, Alive: true},
	}, nil)

	pos := components.Position{X: 100, Y: 100}
	vel := components.Velocity{}
	en := components.Energy{Current: 80, Max: 100}
	age := components.Age{Value: 1}
	b := components.Behavior{State: components.StateSeeking, SpawnFade: 1}
	var fx Effects
	rnd := AgentRand{Heading: math.Pi / 2, PerturbRoll: 0.5}
	UpdateAgent(0, &pos, &vel, &en, &age, &prey, &b, view, rnd, testParams(), &fx)

	if b.State != components.StateSeeking {
		t.Fatalf("state = %v, want still seeking", b.State)
	}
	speed := math.Hypot(vel.DX, vel.DY)
	if math.Abs(speed-prey.Speed) > 1e-9 {
		t.Errorf("wander speed = %v, want %v", speed, prey.Speed)
	}
}

func TestPredatorHuntsPrey(t *testing.T) {
	pred := predatorGenome()
	prey := preyGenome()

	view := testView([]AgentInfo{
		{X: 100, Y: 100, Energy: 80, Genome: pred, Alive: true, SpawnFade: 1},
		{X: 130, Y: 100, Energy: 80, Genome: prey, Alive: true, SpawnFade: 1},
	}, nil)

	pos := components.Position{X: 100, Y: 100}
	vel := components.Velocity{}
	en := components.Energy{Current: 80, Max: 100}
	age := components.Age{Value: 1}
	b := components.Behavior{State: components.StateSeeking, SpawnFade: 1}
	var fx Effects
	UpdateAgent(0, &pos, &vel, &en, &age, &pred, &b, view, AgentRand{}, testParams(), &fx)

	if b.State != components.StateHunting || b.TargetKind != components.TargetAgent || b.TargetIdx != 1 {
		t.Fatalf("predator should hunt the prey: state=%v kind=%v idx=%d", b.State, b.TargetKind, b.TargetIdx)
	}
}

func TestPredatorIgnoresFadingInPrey(t *testing.T) {
	pred := predatorGenome()
	prey := preyGenome()

	// A newborn still fading in is not a valid hunting target.
	view := testView([]AgentInfo{
		{X: 100, Y: 100, Energy: 80, Genome: pred, Alive: true, SpawnFade: 1},
		{X: 130, Y: 100, Energy: 80, Genome: prey, Alive: true, SpawnFade: 0},
	}, nil)

	pos := components.Position{X: 100, Y: 100}
	vel := components.Velocity{}
	en := components.Energy{Current: 80, Max: 100}
	age := components.Age{Value: 1}
	b := components.Behavior{State: components.StateSeeking, SpawnFade: 1}
	var fx Effects
	UpdateAgent(0, &pos, &vel, &en, &age, &pred, &b, view, AgentRand{}, testParams(), &fx)

	if b.State != components.StateSeeking || b.TargetKind != components.TargetNone {
		t.Fatalf("fading-in prey was targeted: state=%v kind=%v idx=%d", b.State, b.TargetKind, b.TargetIdx)
	}
}

func TestPredatorIgnoresFadingInRival(t *testing.T) {
	pred := predatorGenome()
	pred.AttackPower = 3.0
	weakRival := predatorGenome()
	weakRival.Size = 0.5
	weakRival.AttackPower = 0.5

	view := testView([]AgentInfo{
		{X: 100, Y: 100, Energy: 80, Genome: pred, Alive: true, SpawnFade: 1},
		{X: 110, Y: 100, Energy: 80, Genome: weakRival, Alive: true, SpawnFade: 0.3},
	}, nil)

	pos := components.Position{X: 100, Y: 100}
	vel := components.Velocity{}
	en := components.Energy{Current: 80, Max: 100}
	age := components.Age{Value: 1}
	b := components.Behavior{State: components.StateSeeking, SpawnFade: 1}
	var fx Effects
	UpdateAgent(0, &pos, &vel, &en, &age, &pred, &b, view, AgentRand{}, testParams(), &fx)

	if b.TargetKind == components.TargetAgent {
		t.Fatalf("fading-in rival was targeted: state=%v idx=%d", b.State, b.TargetIdx)
	}
}

func TestHuntingArrivalTransitions(t *testing.T) {
	prey := preyGenome()
	view := testView([]AgentInfo{
		{X: 100, Y: 100, Energy: 80, Genome: prey, Alive: true},
	}, []ResourceInfo{
		{X: 102, Y: 100, State: components.ResourceState{Energy: 40, MaxEnergy: 100, SpawnFade: 1}},
	})

	pos := components.Position{X: 100, Y: 100}
	vel := components.Velocity{}
	g := prey
	b := components.Behavior{
		State:      components.StateHunting,
		TargetKind: components.TargetResource,
		TargetIdx:  0,
		TargetX:    102, TargetY: 100,
		SpawnFade: 1,
	}
	huntTarget(&pos, &vel, &g, &b, view)
	if b.State != components.StateFeeding {
		t.Errorf("arrival at a resource should switch to feeding, got %v", b.State)
	}

	pred := predatorGenome()
	view2 := testView([]AgentInfo{
		{X: 100, Y: 100, Energy: 80, Genome: pred, Alive: true},
		{X: 103, Y: 100, Energy: 80, Genome: prey, Alive: true},
	}, nil)
	b2 := components.Behavior{
		State:      components.StateHunting,
		TargetKind: components.TargetAgent,
		TargetIdx:  1,
		SpawnFade:  1,
	}
	huntTarget(&pos, &vel, &pred, &b2, view2)
	if b2.State != components.StateFighting {
		t.Errorf("arrival at an agent should switch to fighting, got %v", b2.State)
	}
}

func TestHuntingDropsInvalidTarget(t *testing.T) {
	prey := preyGenome()
	view := testView([]AgentInfo{
		{X: 100, Y: 100, Energy: 80, Genome: prey, Alive: true},
	}, []ResourceInfo{
		{X: 102, Y: 100, State: components.ResourceState{Energy: 0, Depleting: true, MaxEnergy: 100, SpawnFade: 1}},
	})

	pos := components.Position{X: 100, Y: 100}
	vel := components.Velocity{}
	g := prey
	b := components.Behavior{
		State:      components.StateHunting,
		TargetKind: components.TargetResource,
		TargetIdx:  0,
		SpawnFade:  1,
	}
	huntTarget(&pos, &vel, &g, &b, view)
	if b.State != components.StateSeeking || b.TargetKind != components.TargetNone {
		t.Errorf("unavailable target should reset to seeking, got %v/%v", b.State, b.TargetKind)
	}
}

func TestFeedingEmitsConsumeIntent(t *testing.T) {
	prey := preyGenome()
	view := testView([]AgentInfo{
		{X: 100, Y: 100, Energy: 80, Genome: prey, Alive: true},
	}, []ResourceInfo{
		{X: 102, Y: 100, State: components.ResourceState{Energy: 40, MaxEnergy: 100, SpawnFade: 1}},
	})

	pos := components.Position{X: 100, Y: 100}
	b := components.Behavior{
		State:      components.StateFeeding,
		TargetKind: components.TargetResource,
		TargetIdx:  0,
		SpawnFade:  1,
	}
	var fx Effects
	feedOnResource(0, &pos, &b, view, &fx)

	if len(fx.Consumes) != 1 {
		t.Fatalf("got %d consume intents, want 1", len(fx.Consumes))
	}
	in := fx.Consumes[0]
	if in.Agent != 0 || in.Resource != 0 || in.Amount != FeedAmount {
		t.Errorf("intent = %+v", in)
	}
	if b.State != components.StateSeeking {
		t.Errorf("feeding should clear back to seeking, got %v", b.State)
	}
}

func TestFeedingOutOfRangeEmitsNothing(t *testing.T) {
	prey := preyGenome()
	view := testView([]AgentInfo{
		{X: 100, Y: 100, Energy: 80, Genome: prey, Alive: true},
	}, []ResourceInfo{
		{X: 200, Y: 100, State: components.ResourceState{Energy: 40, MaxEnergy: 100, SpawnFade: 1}},
	})

	pos := components.Position{X: 100, Y: 100}
	b := components.Behavior{
		State:      components.StateFeeding,
		TargetKind: components.TargetResource,
		TargetIdx:  0,
		SpawnFade:  1,
	}
	var fx Effects
	feedOnResource(0, &pos, &b, view, &fx)

	if len(fx.Consumes) != 0 {
		t.Fatalf("out-of-range feed emitted %d intents", len(fx.Consumes))
	}
	if b.State != components.StateSeeking {
		t.Errorf("state = %v, want seeking", b.State)
	}
}

func TestReproducingStateChargesParent(t *testing.T) {
	g := preyGenome()
	pos := components.Position{X: 100, Y: 100}
	vel := components.Velocity{}
	en := components.Energy{Current: 100, Max: 100}
	age := components.Age{Value: 10}
	b := components.Behavior{State: components.StateReproducing, SpawnFade: 1}

	view := testView([]AgentInfo{{X: 100, Y: 100, Energy: 100, Genome: g, Alive: true}}, nil)
	var fx Effects
	UpdateAgent(0, &pos, &vel, &en, &age, &g, &b, view, AgentRand{}, testParams(), &fx)

	if en.Current > 70.1 {
		t.Errorf("reproduction should cost 30%% of energy, have %v", en.Current)
	}
	if b.LastReproduction != age.Value {
		t.Errorf("cooldown not reset: last=%v age=%v", b.LastReproduction, age.Value)
	}
	if b.State != components.StateSeeking {
		t.Errorf("state = %v, want seeking after reproducing", b.State)
	}
}

func TestFleeingStopsOutsideSenseRange(t *testing.T) {
	g := preyGenome()
	pos := components.Position{X: 100, Y: 100}
	vel := components.Velocity{}
	b := components.Behavior{
		State:      components.StateFleeing,
		TargetKind: components.TargetPoint,
		TargetX:    100 + g.SenseRange + 10,
		TargetY:    100,
		SpawnFade:  1,
	}
	fleeFromDanger(&pos, &vel, &g, &b)
	if b.State != components.StateSeeking {
		t.Fatalf("flee point beyond sense range should end flight, got %v", b.State)
	}

	b = components.Behavior{
		State:      components.StateFleeing,
		TargetKind: components.TargetPoint,
		TargetX:    120,
		TargetY:    100,
		SpawnFade:  1,
	}
	fleeFromDanger(&pos, &vel, &g, &b)
	if b.State != components.StateFleeing {
		t.Fatalf("flight should continue inside sense range")
	}
	speed := math.Hypot(vel.DX, vel.DY)
	if math.Abs(speed-g.Speed*3.0) > 1e-9 {
		t.Errorf("flee speed = %v, want %v", speed, g.Speed*3.0)
	}
}

func TestMoveAgentWrapsAndRenormalizes(t *testing.T) {
	g := preyGenome()
	g.Speed = 2.0
	view := testView(nil, nil)

	pos := components.Position{X: 999.99, Y: 400}
	vel := components.Velocity{DX: 60, DY: 0}
	moveAgent(&pos, &vel, &g, view, AgentRand{PerturbRoll: 0.5}, 1.0/60.0)

	if pos.X >= view.W || pos.X < 0 {
		t.Errorf("position not wrapped: x=%v", pos.X)
	}
	speed := math.Hypot(vel.DX, vel.DY)
	if math.Abs(speed-g.Speed) > 1e-9 {
		t.Errorf("velocity magnitude = %v, want base speed %v", speed, g.Speed)
	}
}

func TestMoveAgentPerturbChangesHeading(t *testing.T) {
	g := preyGenome()
	view := testView(nil, nil)

	pos := components.Position{X: 500, Y: 400}
	vel := components.Velocity{DX: g.Speed, DY: 0}
	moveAgent(&pos, &vel, &g, view, AgentRand{PerturbRoll: 0.0, PerturbAngle: math.Pi / 2}, 1.0/60.0)

	if vel.DY == 0 {
		t.Error("perturbation should have bent the heading")
	}
	speed := math.Hypot(vel.DX, vel.DY)
	if math.Abs(speed-g.Speed) > 1e-9 {
		t.Errorf("velocity magnitude = %v after perturb, want %v", speed, g.Speed)
	}
}

func TestResolveFightStrongerWins(t *testing.T) {
	strong := predatorGenome()
	strong.AttackPower = 3.0
	strong.Size = 2.0
	weak := preyGenome()
	weak.Defense = 0.5
	weak.Size = 0.5

	aPos := components.Position{X: 100, Y: 100}
	dPos := components.Position{X: 103, Y: 100}
	aEn := components.Energy{Current: 80, Max: 200}
	dEn := components.Energy{Current: 40, Max: 100}
	aAge := components.Age{Value: 10}
	dAge := components.Age{Value: 10}
	aB := components.Behavior{State: components.StateFighting, SpawnFade: 1}
	dB := components.Behavior{State: components.StateSeeking, SpawnFade: 1}

	out := ResolveFight(&aPos, &dPos, &aEn, &dEn, &aAge, &dAge, &strong, &weak, &aB, &dB, 1000, 800)

	if !out.AttackerWon {
		t.Fatal("stronger predator should win")
	}
	if aB.Kills != 1 {
		t.Errorf("winner kills = %d, want 1", aB.Kills)
	}
	// Predator on prey absorbs 120% of the victim's energy plus an attack
	// bonus, capped at max.
	if out.EnergyGained != 40*1.2 {
		t.Errorf("energy gained = %v, want %v", out.EnergyGained, 40*1.2)
	}
	if aEn.Current > aEn.Max {
		t.Errorf("winner energy %v exceeds max %v", aEn.Current, aEn.Max)
	}
	if aB.State != components.StateReproducing {
		t.Errorf("well-fed winner should tip into reproducing, got %v", aB.State)
	}
	if !out.DefenderDied && dB.State != components.StateFleeing {
		t.Error("surviving loser should flee")
	}
	if out.DefenderDied && dB.Death != components.DeathKilled {
		t.Errorf("dead loser reason = %v, want killed", dB.Death)
	}
}

func TestResolveFightEnergyCapped(t *testing.T) {
	a := predatorGenome()
	a.AttackPower = 3.0
	d := preyGenome()

	aPos := components.Position{X: 100, Y: 100}
	dPos := components.Position{X: 103, Y: 100}
	aEn := components.Energy{Current: 95, Max: 100}
	dEn := components.Energy{Current: 90, Max: 100}
	aAge := components.Age{Value: 10}
	dAge := components.Age{Value: 10}
	aB := components.Behavior{SpawnFade: 1}
	dB := components.Behavior{SpawnFade: 1}

	out := ResolveFight(&aPos, &dPos, &aEn, &dEn, &aAge, &dAge, &a, &d, &aB, &dB, 1000, 800)
	if out.AttackerWon && aEn.Current > aEn.Max {
		t.Errorf("winner energy %v exceeds max %v", aEn.Current, aEn.Max)
	}
}

func TestResolveFightLoserCanDie(t *testing.T) {
	strong := predatorGenome()
	strong.AttackPower = 3.0
	strong.Size = 2.5
	strong.Intelligence = 3.0
	strong.Stamina = 3.0
	weak := preyGenome()
	weak.Defense = 0.1
	weak.Size = 0.3

	aPos := components.Position{X: 100, Y: 100}
	dPos := components.Position{X: 103, Y: 100}
	aEn := components.Energy{Current: 200, Max: 300}
	dEn := components.Energy{Current: 1, Max: 100}
	aAge := components.Age{Value: 10}
	dAge := components.Age{Value: 10}
	aB := components.Behavior{SpawnFade: 1}
	dB := components.Behavior{SpawnFade: 1}

	out := ResolveFight(&aPos, &dPos, &aEn, &dEn, &aAge, &dAge, &strong, &weak, &aB, &dB, 1000, 800)
	if !out.AttackerWon || !out.DefenderDied {
		t.Fatalf("outcome %+v, want attacker win and defender death", out)
	}
	if !dB.Dying || dB.Death != components.DeathKilled {
		t.Errorf("defender not marked killed: dying=%v reason=%v", dB.Dying, dB.Death)
	}
	if dEn.Current != 0 {
		t.Errorf("dead defender energy = %v, want 0", dEn.Current)
	}
}

func TestCanReproduceGates(t *testing.T) {
	en := components.Energy{Current: 50, Max: 100}
	age := components.Age{Value: 10}
	b := components.Behavior{}

	if !CanReproduce(&en, &age, &b) {
		t.Fatal("healthy adult should be eligible")
	}

	en.Current = 5
	if CanReproduce(&en, &age, &b) {
		t.Error("low energy should block reproduction")
	}

	en.Current = 50
	age.Value = 1
	if CanReproduce(&en, &age, &b) {
		t.Error("juveniles should not reproduce")
	}

	age.Value = 10
	b.LastReproduction = 9.5
	if CanReproduce(&en, &age, &b) {
		t.Error("cooldown should block back-to-back reproduction")
	}
}
