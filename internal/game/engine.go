package game

import (
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"
)

// Outbox receives messages for one connected client. Implementations must
// not block; the engine calls them while holding its lock.
type Outbox interface {
	SendInit(actorID string, snap FullSnapshot)
	SendDiff(diff Diff)
}

// TickReport summarizes one tick for metrics
type TickReport struct {
	Duration   time.Duration
	Stats      TickStats
	DiffSent   bool
	DiffCells  int
	DiffActors int
	Snapshot   *GameSnapshot
}

// EngineConfig configures a new engine. Zero Clock, Rand and IDSource fall
// back to the wall clock, a time-seeded source and uuids.
type EngineConfig struct {
	Rules        Rules
	TickInterval time.Duration
	Limits       ResourceLimits

	Clock    Clock
	Rand     *rand.Rand
	IDSource IDSource
	EventLog *EventLog
}

// Engine drives one arena: a ticker goroutine advances time and every
// client intent is applied under the same mutex, so ticks and intents never
// interleave.
type Engine struct {
	mu          sync.Mutex
	arena       *Arena
	subscribers map[string]Outbox

	tickInterval time.Duration
	running      bool
	ticker       *time.Ticker
	stopChan     chan struct{}
	doneChan     chan struct{}

	limits    ResourceLimits
	snapshots *SnapshotStore
	eventLog  *EventLog

	afterTick func(TickReport)
}

// NewEngine builds the arena and returns a stopped engine
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 50 * time.Millisecond
	}
	if cfg.Limits.MaxActors <= 0 {
		cfg.Limits = DefaultLimits
	}
	if cfg.Rules.MaxActors <= 0 || cfg.Rules.MaxActors > cfg.Limits.MaxActors {
		cfg.Rules.MaxActors = cfg.Limits.MaxActors
	}
	if cfg.EventLog == nil {
		cfg.EventLog = NewEventLog()
	}

	arena, err := NewArena(cfg.Rules, ArenaOptions{
		Clock:    cfg.Clock,
		Rand:     cfg.Rand,
		IDSource: cfg.IDSource,
		EventLog: cfg.EventLog,
	})
	if err != nil {
		return nil, fmt.Errorf("new engine: %w", err)
	}

	e := &Engine{
		arena:        arena,
		subscribers:  make(map[string]Outbox),
		tickInterval: cfg.TickInterval,
		limits:       cfg.Limits,
		snapshots:    NewSnapshotStore(cfg.Limits),
		eventLog:     cfg.EventLog,
	}
	e.snapshots.Publish(arena)
	return e, nil
}

// Start begins the game loop
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	// fresh channels so the engine can be restarted after Stop
	e.stopChan = make(chan struct{})
	e.doneChan = make(chan struct{})
	ticker := time.NewTicker(e.tickInterval)
	e.ticker = ticker
	stop, done := e.stopChan, e.doneChan
	e.mu.Unlock()

	go func() {
		defer close(done)
		for {
			select {
			case <-ticker.C:
				e.tick()
			case <-stop:
				return
			}
		}
	}()

	log.Printf("🎮 Arena engine started (%dx%d, tick %v)",
		e.arena.rules.Width, e.arena.rules.Height, e.tickInterval)
}

// Stop stops the game loop and waits for the current tick to finish
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.ticker.Stop()
	close(e.stopChan)
	done := e.doneChan
	e.mu.Unlock()

	<-done
	log.Println("🛑 Arena engine stopped")
}

// tick advances the arena and fans the resulting diff out
func (e *Engine) tick() {
	start := time.Now()

	e.mu.Lock()
	stats := e.arena.Advance()
	diff, changed := e.arena.Flush()
	if changed {
		e.broadcast(diff)
	}
	snap := e.snapshots.Publish(e.arena)
	hook := e.afterTick
	e.mu.Unlock()

	if hook != nil {
		hook(TickReport{
			Duration:   time.Since(start),
			Stats:      stats,
			DiffSent:   changed,
			DiffCells:  len(diff.Cells),
			DiffActors: len(diff.Actors),
			Snapshot:   snap,
		})
	}
}

// Step runs a single tick synchronously. Used by tests and tools that drive
// the clock themselves.
func (e *Engine) Step() {
	e.tick()
}

func (e *Engine) broadcast(diff Diff) {
	for _, out := range e.subscribers {
		out.SendDiff(diff)
	}
}

// Join registers an actor, sends its full snapshot to out and announces it
// to everyone. out may be nil for scripted actors.
func (e *Engine) Join(color string, out Outbox) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id, err := e.arena.Join(color)
	if err != nil {
		log.Printf("⚠️ Join rejected (%d actors): %v", e.arena.ActorCount(), err)
		return "", err
	}
	if out != nil {
		e.subscribers[id] = out
		out.SendInit(id, e.arena.FullSnapshot())
	}

	act, _ := e.arena.Actor(id)
	e.broadcast(e.arena.ActorDiff([]ActorState{act.State()}, nil))

	log.Printf("👤 Actor joined: %s at (%d,%d)", id, act.Pos.X, act.Pos.Y)
	return id, nil
}

// Leave removes the actor and tells the remaining clients
func (e *Engine) Leave(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	act, ok := e.arena.Actor(id)
	if !ok {
		return false
	}
	last := act.State()
	last.Alive = false

	delete(e.subscribers, id)
	e.arena.Leave(id)
	e.broadcast(e.arena.ActorDiff([]ActorState{last}, []string{id}))

	log.Printf("👋 Actor left: %s", id)
	return true
}

// Move applies a one-cell step. Returns false if the move was illegal.
func (e *Engine) Move(id string, dx, dy int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.arena.Move(id, dx, dy)
}

// PlaceBomb arms a bomb under the actor. Returns false if not allowed.
func (e *Engine) PlaceBomb(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.arena.PlaceBomb(id)
}

// FullSnapshot returns the current full state
func (e *Engine) FullSnapshot() FullSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.arena.FullSnapshot()
}

// GetSnapshot returns the latest published snapshot without locking
func (e *Engine) GetSnapshot() *GameSnapshot {
	return e.snapshots.Load()
}

// SetAfterTick installs a hook called after every tick, outside the lock
func (e *Engine) SetAfterTick(fn func(TickReport)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.afterTick = fn
}

// ActorCount returns the number of registered actors
func (e *Engine) ActorCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.arena.ActorCount()
}

// Rules returns the arena rules in effect
func (e *Engine) Rules() Rules {
	return e.arena.rules
}

// GetLimits returns the resource limits
func (e *Engine) GetLimits() ResourceLimits {
	return e.limits
}

// StartEventLog starts the journal writer on filePath
func (e *Engine) StartEventLog(filePath string) error {
	return e.eventLog.Start(filePath)
}

// StopEventLog flushes and closes the journal
func (e *Engine) StopEventLog() {
	e.eventLog.Stop()
}

// GetEventLogStats returns journal statistics for monitoring
func (e *Engine) GetEventLogStats() map[string]interface{} {
	return e.eventLog.GetStats()
}
