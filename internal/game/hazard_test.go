package game

import (
	"testing"
	"time"
)

// TestBombScenario places a radius-1 bomb at (3,3) on an open grid: five
// cells catch fire after the fuse and return to empty after the explosion
// duration, touching ten cells over two ticks.
func TestBombScenario(t *testing.T) {
	a, clock := newTestArena(t, testRules())
	id := joinAt(t, a, 3, 3)
	a.actors[id].FirePower = 1
	if !a.PlaceBomb(id) {
		t.Fatal("PlaceBomb failed")
	}
	teleport(a, id, 9, 9)
	a.Flush()

	if _, ok := tickAt(a, clock, a.rules.FuseDuration-time.Millisecond); ok {
		t.Fatal("nothing should change before the fuse runs out")
	}

	diff, ok := tickAt(a, clock, time.Millisecond)
	if !ok {
		t.Fatal("expected detonation diff")
	}
	fire := map[Point]bool{{3, 3}: true, {4, 3}: true, {2, 3}: true, {3, 4}: true, {3, 2}: true}
	if len(diff.Cells) != len(fire) {
		t.Fatalf("detonation touched %d cells: %+v", len(diff.Cells), diff.Cells)
	}
	for _, c := range diff.Cells {
		if !fire[Point{c.X, c.Y}] || c.Value != CellExplosion {
			t.Errorf("unexpected update %+v", c)
		}
	}
	act, _ := a.Actor(id)
	if act.ArmedBombs != 0 {
		t.Errorf("armed = %d, want 0", act.ArmedBombs)
	}
	if a.BombCount() != 0 {
		t.Error("bomb not removed")
	}

	if _, ok := tickAt(a, clock, a.rules.ExplosionDuration-time.Millisecond); ok {
		t.Fatal("explosions cleared early")
	}
	diff, ok = tickAt(a, clock, time.Millisecond)
	if !ok || len(diff.Cells) != len(fire) {
		t.Fatalf("clear diff = %+v", diff)
	}
	for _, c := range diff.Cells {
		if !fire[Point{c.X, c.Y}] || c.Value != CellEmpty {
			t.Errorf("unexpected clear %+v", c)
		}
	}
	if a.ExplosionCount() != 0 {
		t.Errorf("explosions = %d, want 0", a.ExplosionCount())
	}
}

func TestBlastRadiusStopsAtWallsAndCrates(t *testing.T) {
	a, clock := newTestArena(t, testRules())
	id := joinAt(t, a, 3, 3)
	a.actors[id].FirePower = 3
	mustSet(t, a, 3, 5, CellCrate) // down: (3,4) then crate stops
	a.PlaceBomb(id)
	teleport(a, id, 9, 9)
	a.Flush()

	tickAt(a, clock, a.rules.FuseDuration)

	burning := []Point{
		{3, 3},
		{4, 3}, {5, 3}, {6, 3}, // right, full radius
		{2, 3}, {1, 3}, // left, border wall at x=0
		{3, 2}, {3, 1}, // up, border wall at y=0
		{3, 4}, {3, 5}, // down, crate burns and stops the ray
	}
	for _, p := range burning {
		if c := mustCell(t, a, p.X, p.Y); c != CellExplosion {
			t.Errorf("(%d,%d) = %v, want explosion", p.X, p.Y, c)
		}
	}
	if c := mustCell(t, a, 3, 6); c != CellEmpty {
		t.Errorf("(3,6) = %v, ray should stop at the crate", c)
	}
	if c := mustCell(t, a, 7, 3); c != CellEmpty {
		t.Errorf("(7,3) = %v, beyond radius", c)
	}
	if a.ExplosionCount() != len(burning) {
		t.Errorf("explosions = %d, want %d", a.ExplosionCount(), len(burning))
	}
}

func TestCrateDrops(t *testing.T) {
	tests := []struct {
		name       string
		fireChance float64
		bombChance float64
		want       Cell
	}{
		{"fire", 1, 0, CellPowerupFire},
		{"bomb", 0, 1, CellPowerupBomb},
		{"nothing", 0, 0, CellEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := testRules()
			rules.PowerupFireChance = tt.fireChance
			rules.PowerupBombChance = tt.bombChance
			a, clock := newTestArena(t, rules)

			id := joinAt(t, a, 3, 3)
			mustSet(t, a, 4, 3, CellCrate)
			a.PlaceBomb(id)
			teleport(a, id, 9, 9)

			tickAt(a, clock, a.rules.FuseDuration)
			tickAt(a, clock, a.rules.ExplosionDuration)

			if c := mustCell(t, a, 4, 3); c != tt.want {
				t.Errorf("crate left %v, want %v", c, tt.want)
			}
			if c := mustCell(t, a, 3, 2); c != CellEmpty {
				t.Errorf("non-crate cell restored to %v", c)
			}
		})
	}
}

func TestBlastDestroysPowerups(t *testing.T) {
	a, clock := newTestArena(t, testRules())
	id := joinAt(t, a, 3, 3)
	mustSet(t, a, 4, 3, CellPowerupFire)
	a.PlaceBomb(id)
	teleport(a, id, 9, 9)

	tickAt(a, clock, a.rules.FuseDuration)
	tickAt(a, clock, a.rules.ExplosionDuration)

	if c := mustCell(t, a, 4, 3); c != CellEmpty {
		t.Errorf("(4,3) = %v, power-up should burn", c)
	}
}

// TestReblastKeepsRestoreValue checks that a drop survives a second blast
// over the same burning cell
func TestReblastKeepsRestoreValue(t *testing.T) {
	rules := testRules()
	rules.PowerupFireChance = 1
	a, clock := newTestArena(t, rules)

	id := joinAt(t, a, 3, 3)
	a.actors[id].BombCapacity = 2
	mustSet(t, a, 5, 3, CellCrate)
	a.PlaceBomb(id)

	clock.Advance(200 * time.Millisecond)
	teleport(a, id, 7, 3)
	a.PlaceBomb(id)
	teleport(a, id, 9, 9)

	tickAt(a, clock, a.rules.FuseDuration-200*time.Millisecond) // first bomb
	if c := mustCell(t, a, 5, 3); c != CellExplosion {
		t.Fatalf("(5,3) = %v, want explosion", c)
	}
	tickAt(a, clock, 200*time.Millisecond) // second bomb reaches (5,3) again

	tickAt(a, clock, 300*time.Millisecond) // first bomb's fire expires
	if c := mustCell(t, a, 4, 3); c != CellEmpty {
		t.Errorf("(4,3) = %v, want empty", c)
	}
	if c := mustCell(t, a, 5, 3); c != CellExplosion {
		t.Errorf("(5,3) = %v, re-blast must extend the fire", c)
	}

	tickAt(a, clock, 200*time.Millisecond)
	if c := mustCell(t, a, 5, 3); c != CellPowerupFire {
		t.Errorf("(5,3) = %v, drop lost on re-blast", c)
	}
}

func TestKillCredit(t *testing.T) {
	a, clock := newTestArena(t, testRules())
	killer := joinAt(t, a, 3, 3)
	victim := joinAt(t, a, 5, 3)
	a.PlaceBomb(killer)
	teleport(a, killer, 9, 9)
	a.Flush()

	diff, ok := tickAt(a, clock, a.rules.FuseDuration)
	if !ok {
		t.Fatal("expected diff")
	}

	v, _ := a.Actor(victim)
	k, _ := a.Actor(killer)
	if v.Alive || v.Score.Deaths != 1 {
		t.Errorf("victim = %+v", v)
	}
	if k.Score.Kills != 1 || k.Score.Assists != 0 {
		t.Errorf("killer score = %+v", k.Score)
	}
	if diff.Scores[killer].Kills != 1 || diff.Scores[victim].Deaths != 1 {
		t.Errorf("diff scores = %+v", diff.Scores)
	}

	touched := map[string]bool{}
	for _, st := range diff.Actors {
		touched[st.ID] = true
	}
	if !touched[killer] || !touched[victim] {
		t.Errorf("diff actors = %+v", diff.Actors)
	}
}

func TestSelfKillNoCredit(t *testing.T) {
	a, clock := newTestArena(t, testRules())
	id := joinAt(t, a, 3, 3)
	a.PlaceBomb(id)

	tickAt(a, clock, a.rules.FuseDuration)

	act, _ := a.Actor(id)
	if act.Alive {
		t.Error("owner standing on the bomb should die")
	}
	if act.Score != (Score{Deaths: 1}) {
		t.Errorf("score = %+v, want one death only", act.Score)
	}
}

// TestChainReaction: A's blast reaches B's bomb, which detonates in the same
// tick and credits A with an assist for B's victim
func TestChainReaction(t *testing.T) {
	a, clock := newTestArena(t, testRules())
	ownerA := joinAt(t, a, 3, 3)
	ownerB := joinAt(t, a, 5, 3)
	victim := joinAt(t, a, 5, 5)

	a.PlaceBomb(ownerA)
	teleport(a, ownerA, 9, 9)
	clock.Advance(time.Second)
	a.PlaceBomb(ownerB)
	teleport(a, ownerB, 9, 7)
	a.Flush()

	tickAt(a, clock, a.rules.FuseDuration-time.Second)

	if a.BombCount() != 0 {
		t.Fatalf("chained bomb still armed: %+v", a.Bombs())
	}
	// B's blast reaches below its own cell, A's does not
	if c := mustCell(t, a, 5, 5); c != CellExplosion {
		t.Errorf("(5,5) = %v, chained blast missing", c)
	}

	A, _ := a.Actor(ownerA)
	B, _ := a.Actor(ownerB)
	v, _ := a.Actor(victim)
	if v.Alive || v.Score.Deaths != 1 {
		t.Errorf("victim = %+v", v)
	}
	if A.Score != (Score{Assists: 1}) {
		t.Errorf("A score = %+v, want one assist", A.Score)
	}
	if B.Score != (Score{}) {
		t.Errorf("B score = %+v, chained owner gets nothing", B.Score)
	}
	if A.ArmedBombs != 0 || B.ArmedBombs != 0 {
		t.Errorf("armed counters = %d, %d", A.ArmedBombs, B.ArmedBombs)
	}
	if len(a.chain) != 0 {
		t.Errorf("chain table not cleared: %v", a.chain)
	}
}

func TestChainIsTransitive(t *testing.T) {
	a, clock := newTestArena(t, testRules())
	ownerA := joinAt(t, a, 1, 3)
	ownerB := joinAt(t, a, 3, 3)
	ownerC := joinAt(t, a, 5, 3)
	victim := joinAt(t, a, 7, 3)

	a.PlaceBomb(ownerA)
	teleport(a, ownerA, 9, 9)
	clock.Advance(500 * time.Millisecond)
	a.PlaceBomb(ownerB)
	teleport(a, ownerB, 9, 7)
	clock.Advance(500 * time.Millisecond)
	a.PlaceBomb(ownerC)
	teleport(a, ownerC, 9, 5)

	tickAt(a, clock, a.rules.FuseDuration-time.Second)

	if a.BombCount() != 0 {
		t.Fatalf("bombs left: %+v", a.Bombs())
	}
	A, _ := a.Actor(ownerA)
	C, _ := a.Actor(ownerC)
	if A.Score.Assists != 1 || C.Score.Kills != 0 {
		t.Errorf("A = %+v, C = %+v; the chain origin takes the credit", A.Score, C.Score)
	}
	if v, _ := a.Actor(victim); v.Alive {
		t.Error("victim survived")
	}
}

// TestChainOwnerDiesMidChain pins how a death is credited when the victim
// owns one of the chained bombs: it counts as an assist for the actor who
// started the chain. This edge case is a policy choice and kept visible here.
func TestChainOwnerDiesMidChain(t *testing.T) {
	a, clock := newTestArena(t, testRules())
	ownerA := joinAt(t, a, 3, 3)
	ownerB := joinAt(t, a, 5, 3)

	a.PlaceBomb(ownerA)
	teleport(a, ownerA, 9, 9)
	clock.Advance(time.Second)
	a.PlaceBomb(ownerB)
	teleport(a, ownerB, 5, 4) // only B's own bomb reaches (5,4)

	tickAt(a, clock, a.rules.FuseDuration-time.Second)

	A, _ := a.Actor(ownerA)
	B, _ := a.Actor(ownerB)
	if B.Alive || B.Score.Deaths != 1 {
		t.Errorf("B = %+v", B)
	}
	if A.Score != (Score{Assists: 1}) {
		t.Errorf("A = %+v, want one assist", A.Score)
	}
}

func TestChainSkipsDueBombs(t *testing.T) {
	// Two bombs with the same expiry: neither is chained, each owner is
	// credited for its own blast.
	a, clock := newTestArena(t, testRules())
	ownerA := joinAt(t, a, 3, 3)
	ownerB := joinAt(t, a, 5, 3)
	victim := joinAt(t, a, 5, 5)

	a.PlaceBomb(ownerA)
	a.PlaceBomb(ownerB)
	teleport(a, ownerA, 9, 9)
	teleport(a, ownerB, 9, 7)

	tickAt(a, clock, a.rules.FuseDuration)

	B, _ := a.Actor(ownerB)
	if B.Score.Kills != 1 {
		t.Errorf("B = %+v, simultaneous bomb keeps its own kill", B.Score)
	}
	if v, _ := a.Actor(victim); v.Alive {
		t.Error("victim survived")
	}
}

// TestChainWithinOneTick: B expires after A but both fall inside the same
// tick. A goes off first and B still counts as chained.
func TestChainWithinOneTick(t *testing.T) {
	a, clock := newTestArena(t, testRules())
	ownerA := joinAt(t, a, 3, 3)
	ownerB := joinAt(t, a, 5, 3)
	victim := joinAt(t, a, 5, 5)

	a.PlaceBomb(ownerA)
	teleport(a, ownerA, 9, 9)
	clock.Advance(20 * time.Millisecond)
	a.PlaceBomb(ownerB)
	teleport(a, ownerB, 9, 7)

	tickAt(a, clock, a.rules.FuseDuration+10*time.Millisecond)

	A, _ := a.Actor(ownerA)
	B, _ := a.Actor(ownerB)
	if v, _ := a.Actor(victim); v.Alive {
		t.Fatal("victim survived")
	}
	if A.Score != (Score{Assists: 1}) {
		t.Errorf("A = %+v, want one assist", A.Score)
	}
	if B.Score != (Score{}) {
		t.Errorf("B = %+v, chained owner gets nothing", B.Score)
	}
	if len(a.chain) != 0 {
		t.Errorf("chain table not cleared: %v", a.chain)
	}
}

func TestDepartedOwnerBomb(t *testing.T) {
	a, clock := newTestArena(t, testRules())
	owner := joinAt(t, a, 3, 3)
	victim := joinAt(t, a, 6, 3)
	a.actors[owner].FirePower = 3
	a.PlaceBomb(owner)
	a.Leave(owner)
	a.Flush()

	tickAt(a, clock, a.rules.FuseDuration)

	v, _ := a.Actor(victim)
	if v.Alive {
		t.Error("bomb of a departed owner must still detonate with its stored radius")
	}
	if v.Score != (Score{Deaths: 1}) {
		t.Errorf("victim score = %+v", v.Score)
	}
}

func TestRespawnKeepsProgress(t *testing.T) {
	a, clock := newTestArena(t, testRules())
	killer := joinAt(t, a, 3, 3)
	victim := joinAt(t, a, 4, 3)
	a.actors[victim].FirePower = 4
	a.actors[victim].BombCapacity = 3
	a.PlaceBomb(killer)
	teleport(a, killer, 9, 9)

	tickAt(a, clock, a.rules.FuseDuration)
	if v, _ := a.Actor(victim); v.Alive {
		t.Fatal("victim survived")
	}
	if a.Move(victim, 1, 0) || a.PlaceBomb(victim) {
		t.Error("dead actors cannot act")
	}

	tickAt(a, clock, a.rules.RespawnDelay-time.Millisecond)
	if v, _ := a.Actor(victim); v.Alive {
		t.Fatal("respawned early")
	}

	diff, ok := tickAt(a, clock, time.Millisecond)
	if !ok {
		t.Fatal("expected respawn diff")
	}
	v, _ := a.Actor(victim)
	if !v.Alive {
		t.Fatal("not respawned")
	}
	if v.FirePower != 4 || v.BombCapacity != 3 || v.Score.Deaths != 1 {
		t.Errorf("progress reset: %+v", v)
	}
	if c := mustCell(t, a, v.Pos.X, v.Pos.Y); c != CellEmpty {
		t.Errorf("respawned on %v", c)
	}
	found := false
	for _, st := range diff.Actors {
		if st.ID == victim && st.Alive {
			found = true
		}
	}
	if !found {
		t.Errorf("respawn missing from diff: %+v", diff.Actors)
	}
}

func TestRespawnDroppedAfterLeave(t *testing.T) {
	a, clock := newTestArena(t, testRules())
	killer := joinAt(t, a, 3, 3)
	victim := joinAt(t, a, 4, 3)
	a.PlaceBomb(killer)
	teleport(a, killer, 9, 9)

	tickAt(a, clock, a.rules.FuseDuration)
	a.Leave(victim)
	tickAt(a, clock, a.rules.RespawnDelay)

	if len(a.respawns) != 0 {
		t.Errorf("respawns = %+v", a.respawns)
	}
	if _, ok := a.Actor(victim); ok {
		t.Error("departed actor came back")
	}
}

// TestScoreInvariant: every death is matched by at most one credit and
// credits never exceed deaths of others
func TestScoreInvariant(t *testing.T) {
	rules := testRules()
	rules.CrateDensity = 0.3
	a, clock := newTestArena(t, rules)

	ids := make([]string, 6)
	for i := range ids {
		id, err := a.Join("")
		if err != nil {
			t.Fatalf("Join: %v", err)
		}
		ids[i] = id
	}

	deltas := []Point{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	for step := 0; step < 2000; step++ {
		id := ids[a.rng.Intn(len(ids))]
		if a.rng.Intn(4) == 0 {
			a.PlaceBomb(id)
		} else {
			d := deltas[a.rng.Intn(len(deltas))]
			a.Move(id, d.X, d.Y)
		}
		clock.Advance(50 * time.Millisecond)
		a.Advance()
		a.Flush()
	}

	deaths, credits := 0, 0
	for _, id := range ids {
		act, _ := a.Actor(id)
		deaths += act.Score.Deaths
		credits += act.Score.Kills + act.Score.Assists
		if act.ArmedBombs < 0 || act.ArmedBombs > act.BombCapacity {
			t.Errorf("%s armed = %d of %d", id, act.ArmedBombs, act.BombCapacity)
		}
	}
	if credits > deaths {
		t.Errorf("credits %d exceed deaths %d", credits, deaths)
	}

	armed := 0
	for _, id := range ids {
		act, _ := a.Actor(id)
		armed += act.ArmedBombs
	}
	if armed != a.BombCount() {
		t.Errorf("armed counters %d != bombs %d", armed, a.BombCount())
	}
}
