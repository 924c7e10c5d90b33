package game

import (
	"encoding/json"
	"time"
)

// EventType enum for journal entries
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeActorJoin
	EventTypeActorLeave
	EventTypeBombPlaced
	EventTypeDetonation
	EventTypeKill
	EventTypeAssist
	EventTypeRespawn
	EventTypePowerup
	EventTypeRefill
)

// EventVersion for backwards compatibility in replay
const EventVersion uint8 = 1

// Event is one journal entry
type Event struct {
	Version   uint8     `json:"version"`
	Type      EventType `json:"type"`
	Timestamp int64     `json:"timestamp"` // Unix nano
	Sequence  uint64    `json:"sequence"`
	TickNum   uint64    `json:"tickNum"`
	ActorID   string    `json:"actorId"` // used for per-actor rate limiting
	Payload   []byte    `json:"payload"` // JSON-encoded payload
}

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeActorJoin:
		return "actor_join"
	case EventTypeActorLeave:
		return "actor_leave"
	case EventTypeBombPlaced:
		return "bomb_placed"
	case EventTypeDetonation:
		return "detonation"
	case EventTypeKill:
		return "kill"
	case EventTypeAssist:
		return "assist"
	case EventTypeRespawn:
		return "respawn"
	case EventTypePowerup:
		return "powerup"
	case EventTypeRefill:
		return "refill"
	default:
		return "unknown"
	}
}

// ActorJoinPayload contains join details
type ActorJoinPayload struct {
	ActorID string `json:"actorId"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Color   string `json:"color"`
}

// ActorLeavePayload carries the final score of a departing actor
type ActorLeavePayload struct {
	ActorID string `json:"actorId"`
	Score   Score  `json:"score"`
}

// BombPayload describes a newly armed bomb
type BombPayload struct {
	BombID    uint64 `json:"bombId"`
	OwnerID   string `json:"ownerId"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	FirePower int    `json:"firePower"`
}

// DetonationPayload describes a bomb going off
type DetonationPayload struct {
	BombID    uint64 `json:"bombId"`
	OwnerID   string `json:"ownerId"`
	TriggerID string `json:"triggerId"`
	Chained   bool   `json:"chained"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	FirePower int    `json:"firePower"`
}

// KillPayload contains kill or assist details. CreditedID is empty for
// self-kills and for blasts whose trigger already left.
type KillPayload struct {
	TriggerID  string `json:"triggerId"`
	CreditedID string `json:"creditedId,omitempty"`
	VictimID   string `json:"victimId"`
	X          int    `json:"x"`
	Y          int    `json:"y"`
	Chained    bool   `json:"chained"`
}

// RespawnPayload contains respawn details
type RespawnPayload struct {
	ActorID string `json:"actorId"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
}

// PowerupPayload records a power-up pickup
type PowerupPayload struct {
	ActorID      string `json:"actorId"`
	Kind         string `json:"kind"`
	FirePower    int    `json:"firePower"`
	BombCapacity int    `json:"bombCapacity"`
}

// RefillPayload records a crate refill pass
type RefillPayload struct {
	Placed int `json:"placed"`
	Crates int `json:"crates"`
}

// EncodePayload marshals a payload to JSON bytes
func EncodePayload(payload interface{}) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, tickNum uint64, actorID string, payload interface{}) Event {
	return Event{
		Version:   EventVersion,
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		TickNum:   tickNum,
		ActorID:   actorID,
		Payload:   EncodePayload(payload),
	}
}
