package game

import (
	"testing"
	"time"
)

func TestRefillBelowLowWater(t *testing.T) {
	a, clock := newTestArena(t, testRules())
	id := joinAt(t, a, 1, 1)
	a.actors[id].Alive = false // dead actors still block refills
	a.Flush()

	tickAt(a, clock, a.rules.RefillInterval-time.Millisecond)
	if n := a.Grid().Count(CellCrate); n != 0 {
		t.Fatalf("refilled before the interval: %d crates", n)
	}

	diff, ok := tickAt(a, clock, time.Millisecond)
	if !ok {
		t.Fatal("expected refill diff")
	}
	want := int(a.rules.RefillHighWater * 11 * 11)
	if n := a.Grid().Count(CellCrate); n != want {
		t.Errorf("crates = %d, want %d", n, want)
	}
	if len(diff.Cells) != want {
		t.Errorf("diff cells = %d, want %d", len(diff.Cells), want)
	}
	if c := mustCell(t, a, 1, 1); c != CellEmpty {
		t.Errorf("crate placed under an actor: %v", c)
	}
	for _, c := range diff.Cells {
		if a.grid.IsPermanentWall(c.X, c.Y) || c.Value != CellCrate {
			t.Errorf("bad refill cell %+v", c)
		}
	}
}

func TestRefillAboveLowWaterOnlyResetsTimer(t *testing.T) {
	a, clock := newTestArena(t, testRules())

	// 13 crates is above 10% of 121 cells
	placed := 0
	for y := 1; y < 10 && placed < 13; y += 2 {
		for x := 1; x < 10 && placed < 13; x++ {
			mustSet(t, a, x, y, CellCrate)
			placed++
		}
	}
	a.Flush()

	if _, ok := tickAt(a, clock, a.rules.RefillInterval); ok {
		t.Error("refill above low water should change nothing")
	}
	if !a.lastRefill.Equal(clock.Now()) {
		t.Error("timer must reset even when nothing is placed")
	}

	// Drop below low water; the cooldown still has to run out again.
	for x := 1; x < 10; x++ {
		mustSet(t, a, x, 1, CellEmpty)
	}
	a.Flush()
	tickAt(a, clock, a.rules.RefillInterval/2)
	if n := a.Grid().Count(CellCrate); n != 4 {
		t.Errorf("crates = %d, want 4 during cooldown", n)
	}
	tickAt(a, clock, a.rules.RefillInterval/2)
	if n := a.Grid().Count(CellCrate); n != int(a.rules.RefillHighWater*121) {
		t.Errorf("crates = %d after cooldown", n)
	}
}

func TestRefillAttemptCap(t *testing.T) {
	rules := testRules()
	rules.RefillAttempts = 3
	a, clock := newTestArena(t, rules)

	tickAt(a, clock, a.rules.RefillInterval)
	if n := a.Grid().Count(CellCrate); n > 3 {
		t.Errorf("crates = %d, cap is 3 draws", n)
	}
}
