// Package protocol defines the client/server wire messages of the arena and
// the codecs that carry them over a websocket.
package protocol

import (
	"errors"
	"fmt"
	"math"

	"bomb-arena/internal/game"
)

// Message type tags
const (
	TypeJoin = "join"
	TypeMove = "move"
	TypeBomb = "bomb"
	TypeInit = "init"
	TypeDiff = "diff"
)

// ErrInvalidIntent marks a client message that is malformed or names an
// impossible action. Such messages are dropped without reply.
var ErrInvalidIntent = errors.New("invalid intent")

// IntentKind enum for decoded client messages
type IntentKind uint8

const (
	IntentJoin IntentKind = iota + 1
	IntentMove
	IntentBomb
)

// String returns the wire type of the intent
func (k IntentKind) String() string {
	switch k {
	case IntentJoin:
		return TypeJoin
	case IntentMove:
		return TypeMove
	case IntentBomb:
		return TypeBomb
	default:
		return "unknown"
	}
}

// Intent is a validated client request
type Intent struct {
	Kind  IntentKind
	Color string // join only
	DX    int    // move only
	DY    int    // move only
}

// rawIntent mirrors every client message shape. Coordinates are decoded as
// floats so that 0.5 or 1e9 are rejected instead of truncated.
type rawIntent struct {
	Type  string   `json:"type"`
	Color string   `json:"color"`
	DX    *float64 `json:"dx"`
	DY    *float64 `json:"dy"`
}

func (r rawIntent) validate() (Intent, error) {
	switch r.Type {
	case TypeJoin:
		return Intent{Kind: IntentJoin, Color: r.Color}, nil
	case TypeBomb:
		return Intent{Kind: IntentBomb}, nil
	case TypeMove:
		dx, okX := unitComponent(r.DX)
		dy, okY := unitComponent(r.DY)
		if !okX || !okY || (dx == 0) == (dy == 0) {
			return Intent{}, fmt.Errorf("move (%v,%v): %w", deref(r.DX), deref(r.DY), ErrInvalidIntent)
		}
		return Intent{Kind: IntentMove, DX: dx, DY: dy}, nil
	default:
		return Intent{}, fmt.Errorf("type %q: %w", r.Type, ErrInvalidIntent)
	}
}

// unitComponent accepts -1, 0 and 1. A missing component counts as 0.
func unitComponent(v *float64) (int, bool) {
	if v == nil {
		return 0, true
	}
	f := *v
	if math.IsNaN(f) || f != math.Trunc(f) || f < -1 || f > 1 {
		return 0, false
	}
	return int(f), true
}

func deref(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// ClientMessage is the outgoing shape of every intent
type ClientMessage struct {
	Type  string `json:"type"`
	Color string `json:"color,omitempty"`
	DX    int    `json:"dx,omitempty"`
	DY    int    `json:"dy,omitempty"`
}

func JoinMessage(color string) ClientMessage {
	return ClientMessage{Type: TypeJoin, Color: color}
}

func MoveMessage(dx, dy int) ClientMessage {
	return ClientMessage{Type: TypeMove, DX: dx, DY: dy}
}

func BombMessage() ClientMessage {
	return ClientMessage{Type: TypeBomb}
}

// Envelope peeks at the type tag of a server message
type Envelope struct {
	Type string `json:"type"`
}

// InitMessage is sent once to a joining client
type InitMessage struct {
	Type     string                `json:"type"`
	PlayerID string                `json:"playerId"`
	Grid     [][]int               `json:"grid"`
	GridSize [2]int                `json:"gridSize"` // rows, columns
	Players  []game.ActorState     `json:"players"`
	Scores   map[string]game.Score `json:"scores"`
}

// DiffMessage is broadcast whenever state changed
type DiffMessage struct {
	Type           string                `json:"type"`
	UpdatedCells   []game.CellUpdate     `json:"updatedCells"`
	UpdatedPlayers []game.ActorState     `json:"updatedPlayers"`
	RemovedPlayers []string              `json:"removedPlayers,omitempty"`
	Scores         map[string]game.Score `json:"scores"`
}

// StateMessage is the init shape without an addressee, served over HTTP
type StateMessage struct {
	Grid     [][]int               `json:"grid"`
	GridSize [2]int                `json:"gridSize"`
	Players  []game.ActorState     `json:"players"`
	Scores   map[string]game.Score `json:"scores"`
}

// NewInitMessage converts a full snapshot for the joining actor
func NewInitMessage(actorID string, snap game.FullSnapshot) InitMessage {
	return InitMessage{
		Type:     TypeInit,
		PlayerID: actorID,
		Grid:     gridRows(snap.Grid),
		GridSize: [2]int{snap.Height, snap.Width},
		Players:  nonNilActors(snap.Actors),
		Scores:   nonNilScores(snap.Scores),
	}
}

// NewStateMessage converts a full snapshot for HTTP readers
func NewStateMessage(snap game.FullSnapshot) StateMessage {
	return StateMessage{
		Grid:     gridRows(snap.Grid),
		GridSize: [2]int{snap.Height, snap.Width},
		Players:  nonNilActors(snap.Actors),
		Scores:   nonNilScores(snap.Scores),
	}
}

// NewDiffMessage converts an engine diff
func NewDiffMessage(d game.Diff) DiffMessage {
	cells := d.Cells
	if cells == nil {
		cells = []game.CellUpdate{}
	}
	return DiffMessage{
		Type:           TypeDiff,
		UpdatedCells:   cells,
		UpdatedPlayers: nonNilActors(d.Actors),
		RemovedPlayers: d.Removed,
		Scores:         nonNilScores(d.Scores),
	}
}

// gridRows widens cells to ints so encoders emit number arrays rather than
// byte strings
func gridRows(grid [][]game.Cell) [][]int {
	rows := make([][]int, len(grid))
	for y, row := range grid {
		rows[y] = make([]int, len(row))
		for x, c := range row {
			rows[y][x] = int(c)
		}
	}
	return rows
}

func nonNilActors(a []game.ActorState) []game.ActorState {
	if a == nil {
		return []game.ActorState{}
	}
	return a
}

func nonNilScores(s map[string]game.Score) map[string]game.Score {
	if s == nil {
		return map[string]game.Score{}
	}
	return s
}
