package game

import (
	"fmt"
	"math/rand"
	"testing"
	"time"
)

// =============================================================================
// BENCHMARK SUITE: CRITICAL PATH PERFORMANCE TESTS
// Run with: go test -bench=. -benchmem ./internal/game/...
// =============================================================================

// -----------------------------------------------------------------------------
// TICK BENCHMARKS
// -----------------------------------------------------------------------------

func BenchmarkArenaTick_8Actors(b *testing.B)  { benchmarkArenaTick(b, 8) }
func BenchmarkArenaTick_32Actors(b *testing.B) { benchmarkArenaTick(b, 32) }
func BenchmarkArenaTick_64Actors(b *testing.B) { benchmarkArenaTick(b, 64) }

func newBenchArena(b *testing.B, actors int) (*Arena, *fakeClock, []string) {
	b.Helper()
	clock := newFakeClock()
	a, err := NewArena(DefaultRules(), ArenaOptions{
		Clock:    clock,
		Rand:     rand.New(rand.NewSource(1)),
		IDSource: sequentialIDs(),
	})
	if err != nil {
		b.Fatalf("NewArena: %v", err)
	}
	ids := make([]string, 0, actors)
	for i := 0; i < actors; i++ {
		id, err := a.Join(fmt.Sprintf("#%06x", i))
		if err != nil {
			b.Fatalf("Join: %v", err)
		}
		ids = append(ids, id)
	}
	return a, clock, ids
}

// benchmarkArenaTick measures a full tick with every actor acting once
func benchmarkArenaTick(b *testing.B, actors int) {
	a, clock, ids := newBenchArena(b, actors)
	deltas := []Point{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		for j, id := range ids {
			if (i+j)%8 == 0 {
				a.PlaceBomb(id)
				continue
			}
			d := deltas[(i+j)%len(deltas)]
			a.Move(id, d.X, d.Y)
		}
		clock.Advance(50 * time.Millisecond)
		a.Advance()
		a.Flush()
	}
}

// -----------------------------------------------------------------------------
// SNAPSHOT BENCHMARKS
// -----------------------------------------------------------------------------

func BenchmarkFullSnapshot(b *testing.B) {
	a, _, _ := newBenchArena(b, 64)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		a.FullSnapshot()
	}
}

func BenchmarkPublishSnapshot(b *testing.B) {
	a, _, _ := newBenchArena(b, 64)
	store := NewSnapshotStore(DefaultLimits)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		store.Publish(a)
	}
}

// -----------------------------------------------------------------------------
// DETONATION BENCHMARKS
// -----------------------------------------------------------------------------

// BenchmarkChainReaction detonates a row of bombs that all chain off the
// first one
func BenchmarkChainReaction(b *testing.B) {
	rules := DefaultRules()
	rules.CrateDensity = 0
	rules.StartBombCapacity = 16

	for i := 0; i < b.N; i++ {
		b.StopTimer()
		clock := newFakeClock()
		a, err := NewArena(rules, ArenaOptions{
			Clock:    clock,
			Rand:     rand.New(rand.NewSource(1)),
			IDSource: sequentialIDs(),
		})
		if err != nil {
			b.Fatalf("NewArena: %v", err)
		}
		id, _ := a.Join("")
		act, _ := a.Actor(id)
		for x := 1; x < rules.Width-1; x += 2 {
			act.Pos = Point{X: x, Y: 1}
			a.PlaceBomb(id)
		}
		act.Pos = Point{X: rules.Width - 2, Y: rules.Height - 2}
		clock.Advance(rules.FuseDuration)
		b.StartTimer()

		a.Advance()
		a.Flush()
	}
}
