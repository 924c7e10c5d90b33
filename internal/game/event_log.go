package game

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	EventQueueSize      = 1024                   // Pending events before drops
	MaxEventsPerSec     = 5000                   // Global rate limit
	MaxEventsPerActor   = 50                     // Per-actor rate limit per second
	EventFlushInterval  = 100 * time.Millisecond // How often the writer drains
	ActorLimiterCleanup = 5 * time.Minute        // Idle limiter eviction
)

// EventLog is a bounded, rate-limited game journal. Events are queued by the
// simulation without blocking and written as JSON lines by a background
// goroutine through zerolog.
type EventLog struct {
	queue chan Event

	globalLimiter *rate.Limiter
	actorLimiters sync.Map // map[string]*actorLimiterEntry

	logger zerolog.Logger
	closer io.Closer

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	sequence     atomic.Uint64
	droppedCount atomic.Uint64
	totalCount   atomic.Uint64
}

type actorLimiterEntry struct {
	limiter  *rate.Limiter
	lastUsed atomic.Int64 // unix nano
}

// NewEventLog creates a stopped journal
func NewEventLog() *EventLog {
	return &EventLog{
		queue:         make(chan Event, EventQueueSize),
		globalLimiter: rate.NewLimiter(MaxEventsPerSec, MaxEventsPerSec/10),
		logger:        zerolog.Nop(),
		stopChan:      make(chan struct{}),
	}
}

// Start opens filePath for append and begins writing. An empty path keeps
// counting events but writes nothing.
func (el *EventLog) Start(filePath string) error {
	if filePath == "" {
		return el.StartWriter(io.Discard)
	}
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	if err := el.StartWriter(file); err != nil {
		file.Close()
		return err
	}
	el.closer = file
	return nil
}

// StartWriter begins writing JSON lines to w
func (el *EventLog) StartWriter(w io.Writer) error {
	if !el.running.CompareAndSwap(false, true) {
		return nil
	}
	el.logger = zerolog.New(w)

	el.wg.Add(2)
	go el.writerLoop()
	go el.cleanupLoop()
	return nil
}

// Stop drains the queue and closes the output
func (el *EventLog) Stop() {
	el.stopOnce.Do(func() {
		if !el.running.Swap(false) {
			return
		}
		close(el.stopChan)
		el.wg.Wait()
		if el.closer != nil {
			el.closer.Close()
		}
	})
}

// Emit queues an event. Returns false if rate limited, the queue is full or
// the journal is not running.
func (el *EventLog) Emit(event Event) bool {
	if !el.running.Load() {
		return false
	}
	if !el.globalLimiter.Allow() {
		el.droppedCount.Add(1)
		return false
	}
	if event.ActorID != "" && !el.actorLimiter(event.ActorID).Allow() {
		el.droppedCount.Add(1)
		return false
	}

	event.Sequence = el.sequence.Add(1)
	select {
	case el.queue <- event:
		el.totalCount.Add(1)
		return true
	default:
		el.droppedCount.Add(1)
		return false
	}
}

// EmitSimple builds and queues an event
func (el *EventLog) EmitSimple(eventType EventType, tickNum uint64, actorID string, payload interface{}) bool {
	if !el.running.Load() {
		return false
	}
	return el.Emit(NewEvent(eventType, tickNum, actorID, payload))
}

func (el *EventLog) actorLimiter(actorID string) *rate.Limiter {
	now := time.Now().UnixNano()
	if v, ok := el.actorLimiters.Load(actorID); ok {
		entry := v.(*actorLimiterEntry)
		entry.lastUsed.Store(now)
		return entry.limiter
	}

	entry := &actorLimiterEntry{limiter: rate.NewLimiter(MaxEventsPerActor, MaxEventsPerActor)}
	entry.lastUsed.Store(now)
	actual, _ := el.actorLimiters.LoadOrStore(actorID, entry)
	return actual.(*actorLimiterEntry).limiter
}

func (el *EventLog) writerLoop() {
	defer el.wg.Done()

	ticker := time.NewTicker(EventFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-el.stopChan:
			el.drain()
			return
		case <-ticker.C:
			el.drain()
		}
	}
}

// drain writes everything currently queued
func (el *EventLog) drain() {
	for {
		select {
		case ev := <-el.queue:
			el.write(ev)
		default:
			return
		}
	}
}

func (el *EventLog) write(ev Event) {
	entry := el.logger.Log().
		Uint8("version", ev.Version).
		Str("type", ev.Type.String()).
		Int64("timestamp", ev.Timestamp).
		Uint64("sequence", ev.Sequence).
		Uint64("tick", ev.TickNum)
	if ev.ActorID != "" {
		entry = entry.Str("actorId", ev.ActorID)
	}
	if len(ev.Payload) > 0 {
		entry = entry.RawJSON("payload", ev.Payload)
	}
	entry.Send()
}

func (el *EventLog) cleanupLoop() {
	defer el.wg.Done()

	ticker := time.NewTicker(ActorLimiterCleanup)
	defer ticker.Stop()

	for {
		select {
		case <-el.stopChan:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-ActorLimiterCleanup).UnixNano()
			el.actorLimiters.Range(func(key, value interface{}) bool {
				if value.(*actorLimiterEntry).lastUsed.Load() < cutoff {
					el.actorLimiters.Delete(key)
				}
				return true
			})
		}
	}
}

// GetStats returns journal counters for monitoring
func (el *EventLog) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"total":   el.totalCount.Load(),
		"dropped": el.droppedCount.Load(),
		"pending": len(el.queue),
		"running": el.running.Load(),
	}
}

// GetDroppedCount returns the number of dropped events
func (el *EventLog) GetDroppedCount() uint64 {
	return el.droppedCount.Load()
}

// GetTotalCount returns the number of queued events
func (el *EventLog) GetTotalCount() uint64 {
	return el.totalCount.Load()
}
