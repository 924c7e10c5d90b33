package game

import (
	"sort"
	"sync/atomic"
	"time"
)

// ResourceLimits defines hard caps to prevent DoS attacks
type ResourceLimits struct {
	MaxActors         int // Hard cap on registered actors
	MaxSnapshotActors int // Actors copied into each published snapshot
}

// DefaultLimits provides production-safe default limits
var DefaultLimits = ResourceLimits{
	MaxActors:         64,
	MaxSnapshotActors: 64,
}

// ActorSnapshot is an immutable copy of an actor for readers outside the
// engine lock
type ActorSnapshot struct {
	ID           string `json:"id"`
	X            int    `json:"x"`
	Y            int    `json:"y"`
	Color        string `json:"color"`
	Alive        bool   `json:"alive"`
	FirePower    int    `json:"firePower"`
	BombCapacity int    `json:"bombCapacity"`
	ArmedBombs   int    `json:"armedBombs"`
	Score        Score  `json:"score"`
}

// GameSnapshot is the published read-only view of the arena after a tick
type GameSnapshot struct {
	Sequence   uint64
	Timestamp  time.Time
	TickNumber uint64

	Width  int
	Height int
	Cells  []Cell // row-major copy of the grid
	Actors []ActorSnapshot
	Bombs  []Point

	ActorCount     int
	AliveCount     int
	BombCount      int
	ExplosionCount int
	CrateCount     int
}

// At returns the cell at (x, y) or CellWall outside the grid
func (s *GameSnapshot) At(x, y int) Cell {
	if x < 0 || y < 0 || x >= s.Width || y >= s.Height {
		return CellWall
	}
	return s.Cells[y*s.Width+x]
}

// SnapshotStore publishes immutable snapshots. The engine writes under its
// lock and readers load without blocking it.
type SnapshotStore struct {
	current  atomic.Pointer[GameSnapshot]
	sequence atomic.Uint64
	limits   ResourceLimits
}

// NewSnapshotStore creates a store holding an empty snapshot
func NewSnapshotStore(limits ResourceLimits) *SnapshotStore {
	s := &SnapshotStore{limits: limits}
	s.current.Store(&GameSnapshot{})
	return s
}

// Load returns the latest published snapshot. Never nil.
func (s *SnapshotStore) Load() *GameSnapshot {
	return s.current.Load()
}

// Publish copies the arena into a fresh snapshot and makes it current
func (s *SnapshotStore) Publish(a *Arena) *GameSnapshot {
	snap := &GameSnapshot{
		Sequence:       s.sequence.Add(1),
		Timestamp:      time.Now(),
		TickNumber:     a.tickCount,
		Width:          a.grid.width,
		Height:         a.grid.height,
		Cells:          append([]Cell(nil), a.grid.cells...),
		ActorCount:     len(a.actors),
		BombCount:      len(a.bombs),
		ExplosionCount: len(a.explosions),
	}

	for _, c := range snap.Cells {
		if c == CellCrate {
			snap.CrateCount++
		}
	}
	for p := range a.bombAt {
		snap.Bombs = append(snap.Bombs, p)
	}

	actors := make([]*Actor, 0, len(a.actors))
	for _, id := range a.order {
		act := a.actors[id]
		actors = append(actors, act)
		if act.Alive {
			snap.AliveCount++
		}
	}
	// Alive first, then kills, then id for a stable cut at the cap.
	sort.SliceStable(actors, func(i, j int) bool {
		if actors[i].Alive != actors[j].Alive {
			return actors[i].Alive
		}
		if actors[i].Score.Kills != actors[j].Score.Kills {
			return actors[i].Score.Kills > actors[j].Score.Kills
		}
		return actors[i].ID < actors[j].ID
	})
	if len(actors) > s.limits.MaxSnapshotActors {
		actors = actors[:s.limits.MaxSnapshotActors]
	}

	snap.Actors = make([]ActorSnapshot, 0, len(actors))
	for _, act := range actors {
		snap.Actors = append(snap.Actors, act.snapshot())
	}

	s.current.Store(snap)
	return snap
}

func (a *Actor) snapshot() ActorSnapshot {
	return ActorSnapshot{
		ID:           a.ID,
		X:            a.Pos.X,
		Y:            a.Pos.Y,
		Color:        a.Color,
		Alive:        a.Alive,
		FirePower:    a.FirePower,
		BombCapacity: a.BombCapacity,
		ArmedBombs:   a.ArmedBombs,
		Score:        a.Score,
	}
}
