package game

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// Clock abstracts wall time so tests can drive the simulation
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock
type SystemClock struct{}

// Now returns time.Now()
func (SystemClock) Now() time.Time { return time.Now() }

// IDSource allocates actor identities
type IDSource func() string

// NewUUID is the default IDSource
func NewUUID() string { return uuid.NewString() }

// Rules are the tunable gameplay constants of one arena
type Rules struct {
	Width  int
	Height int

	CrateDensity float64 // chance an open cell starts as a crate

	FuseDuration      time.Duration
	ExplosionDuration time.Duration
	RespawnDelay      time.Duration

	StartFirePower    int
	StartBombCapacity int

	PowerupFireChance float64 // rolled first when a crate is destroyed
	PowerupBombChance float64 // rolled on the remainder

	RefillInterval  time.Duration
	RefillLowWater  float64 // refill only below this crate fraction
	RefillHighWater float64 // refill up to this crate fraction

	MaxActors int

	// Iteration caps for the random spawn and refill draws.
	// Zero means 4*W*H for spawns and 8*W*H for refills.
	SpawnAttempts  int
	RefillAttempts int
}

// DefaultRules returns the stock 31x25 arena
func DefaultRules() Rules {
	return Rules{
		Width:             31,
		Height:            25,
		CrateDensity:      0.5,
		FuseDuration:      2 * time.Second,
		ExplosionDuration: 500 * time.Millisecond,
		RespawnDelay:      5 * time.Second,
		StartFirePower:    2,
		StartBombCapacity: 1,
		PowerupFireChance: 0.10,
		PowerupBombChance: 0.10,
		RefillInterval:    20 * time.Second,
		RefillLowWater:    0.10,
		RefillHighWater:   0.20,
		MaxActors:         64,
	}
}

func (r Rules) spawnAttempts() int {
	if r.SpawnAttempts > 0 {
		return r.SpawnAttempts
	}
	return 4 * r.Width * r.Height
}

func (r Rules) refillAttempts() int {
	if r.RefillAttempts > 0 {
		return r.RefillAttempts
	}
	return 8 * r.Width * r.Height
}

// ArenaOptions carries the injected collaborators of an Arena
type ArenaOptions struct {
	Clock    Clock
	Rand     *rand.Rand
	IDSource IDSource
	EventLog *EventLog
}

// Arena is the whole simulation state of one playfield. It is not safe for
// concurrent use; Engine serializes access to it.
type Arena struct {
	rules Rules
	clock Clock
	rng   *rand.Rand
	newID IDSource

	grid    *Grid
	pending *PendingDiff

	actors map[string]*Actor
	order  []string // join order, for deterministic snapshots

	bombs      map[uint64]*Bomb
	bombAt     map[Point]uint64
	nextBombID uint64
	explosions map[Point]*Explosion
	respawns   []Respawn

	// chain maps a bomb forced early by a blast to the actor that started
	// the chain. Entries live until that bomb detonates.
	chain map[uint64]string

	lastRefill time.Time
	tickCount  uint64

	eventLog *EventLog
}

// NewArena builds a fresh grid and an empty registry
func NewArena(rules Rules, opts ArenaOptions) (*Arena, error) {
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.IDSource == nil {
		opts.IDSource = NewUUID
	}

	grid, err := BuildGrid(rules.Width, rules.Height, rules.CrateDensity, opts.Rand)
	if err != nil {
		return nil, fmt.Errorf("new arena: %w", err)
	}
	pending := NewPendingDiff()
	grid.pending = pending

	return &Arena{
		rules:      rules,
		clock:      opts.Clock,
		rng:        opts.Rand,
		newID:      opts.IDSource,
		grid:       grid,
		pending:    pending,
		actors:     make(map[string]*Actor),
		bombs:      make(map[uint64]*Bomb),
		bombAt:     make(map[Point]uint64),
		explosions: make(map[Point]*Explosion),
		chain:      make(map[uint64]string),
		lastRefill: opts.Clock.Now(),
		eventLog:   opts.EventLog,
	}, nil
}

// Grid exposes the tile map for read access
func (a *Arena) Grid() *Grid { return a.grid }

// Rules returns the arena's gameplay constants
func (a *Arena) Rules() Rules { return a.rules }

// Actor returns the actor with the given id
func (a *Arena) Actor(id string) (*Actor, bool) {
	act, ok := a.actors[id]
	return act, ok
}

// ActorCount returns the number of registered actors
func (a *Arena) ActorCount() int { return len(a.actors) }

// BombCount returns the number of armed bombs
func (a *Arena) BombCount() int { return len(a.bombs) }

// ExplosionCount returns the number of burning cells
func (a *Arena) ExplosionCount() int { return len(a.explosions) }

// Bombs returns a copy of every armed bomb
func (a *Arena) Bombs() []Bomb {
	out := make([]Bomb, 0, len(a.bombs))
	for _, b := range a.bombs {
		out = append(out, *b)
	}
	return out
}

// TickStats counts what one Advance did
type TickStats struct {
	Detonations int
	Cleared     int
	Respawned   int
	Refilled    int
}

// Advance fires every time-based transition that is due at the clock's
// current time: bombs, then explosions, then respawns, then refill.
func (a *Arena) Advance() TickStats {
	now := a.clock.Now()
	a.tickCount++

	var stats TickStats
	stats.Detonations = a.processBombs(now)
	stats.Cleared = a.processExplosions(now)
	stats.Respawned = a.processRespawns(now)
	stats.Refilled = a.processRefill(now)
	return stats
}

// TickCount returns how many ticks have run
func (a *Arena) TickCount() uint64 { return a.tickCount }

// emit forwards an event to the journal when one is attached
func (a *Arena) emit(eventType EventType, actorID string, payload interface{}) {
	if a.eventLog == nil {
		return
	}
	a.eventLog.EmitSimple(eventType, a.tickCount, actorID, payload)
}

// occupants returns the actors standing on p
func (a *Arena) occupants(p Point, aliveOnly bool) []*Actor {
	var out []*Actor
	for _, id := range a.order {
		act := a.actors[id]
		if act.Pos != p || (aliveOnly && !act.Alive) {
			continue
		}
		out = append(out, act)
	}
	return out
}
