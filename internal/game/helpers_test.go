package game

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func sequentialIDs() IDSource {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("actor-%d", n)
	}
}

// testRules is an 11x11 arena without crates or power-up drops
func testRules() Rules {
	r := DefaultRules()
	r.Width = 11
	r.Height = 11
	r.CrateDensity = 0
	r.PowerupFireChance = 0
	r.PowerupBombChance = 0
	return r
}

func newTestArena(t *testing.T, rules Rules) (*Arena, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	a, err := NewArena(rules, ArenaOptions{
		Clock:    clock,
		Rand:     rand.New(rand.NewSource(1)),
		IDSource: sequentialIDs(),
	})
	if err != nil {
		t.Fatalf("NewArena: %v", err)
	}
	return a, clock
}

// joinAt joins an actor and teleports it to (x, y)
func joinAt(t *testing.T, a *Arena, x, y int) string {
	t.Helper()
	id, err := a.Join("#ff0000")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	a.actors[id].Pos = Point{X: x, Y: y}
	return id
}

func teleport(a *Arena, id string, x, y int) {
	a.actors[id].Pos = Point{X: x, Y: y}
}

// tickAt advances the clock by d and runs one tick
func tickAt(a *Arena, clock *fakeClock, d time.Duration) (Diff, bool) {
	clock.Advance(d)
	a.Advance()
	return a.Flush()
}

func mustCell(t *testing.T, a *Arena, x, y int) Cell {
	t.Helper()
	c, err := a.Grid().Get(x, y)
	if err != nil {
		t.Fatalf("Get(%d,%d): %v", x, y, err)
	}
	return c
}

func mustSet(t *testing.T, a *Arena, x, y int, v Cell) {
	t.Helper()
	if err := a.Grid().Set(x, y, v); err != nil {
		t.Fatalf("Set(%d,%d,%v): %v", x, y, v, err)
	}
}
