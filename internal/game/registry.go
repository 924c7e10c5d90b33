package game

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrArenaFull  = errors.New("arena is full")
	ErrNoFreeCell = errors.New("no free spawn cell")
)

const (
	DefaultColor   = "#ffffff"
	MaxColorLength = 32
)

// FindFreeSpawn picks a uniform random interior cell that is empty and not
// occupied by a living actor. After the draw budget is spent it falls back to
// a row-major scan so a nearly full arena still finds its last free cell.
func (a *Arena) FindFreeSpawn() (Point, error) {
	for i := 0; i < a.rules.spawnAttempts(); i++ {
		p := a.grid.randomInterior(a.rng)
		if a.isFreeSpawn(p) {
			return p, nil
		}
	}

	for y := 1; y < a.grid.height-1; y++ {
		for x := 1; x < a.grid.width-1; x++ {
			p := Point{X: x, Y: y}
			if a.isFreeSpawn(p) {
				return p, nil
			}
		}
	}
	return Point{}, ErrNoFreeCell
}

func (a *Arena) isFreeSpawn(p Point) bool {
	return a.grid.at(p) == CellEmpty && len(a.occupants(p, true)) == 0
}

// Join registers a new actor at a free spawn cell and returns its id
func (a *Arena) Join(color string) (string, error) {
	if len(a.actors) >= a.rules.MaxActors {
		return "", ErrArenaFull
	}

	pos, err := a.FindFreeSpawn()
	if err != nil {
		return "", fmt.Errorf("join: %w", err)
	}

	act := &Actor{
		ID:           a.newID(),
		Pos:          pos,
		Alive:        true,
		Color:        sanitizeColor(color),
		FirePower:    a.rules.StartFirePower,
		BombCapacity: a.rules.StartBombCapacity,
	}
	a.actors[act.ID] = act
	a.order = append(a.order, act.ID)
	a.pending.TouchActor(act.ID)

	a.emit(EventTypeActorJoin, act.ID, ActorJoinPayload{
		ActorID: act.ID, X: pos.X, Y: pos.Y, Color: act.Color,
	})
	return act.ID, nil
}

// Leave removes the actor. Its bombs stay armed and still detonate; the
// departure is recorded so the next diff reports it with alive=false.
func (a *Arena) Leave(id string) bool {
	act, ok := a.actors[id]
	if !ok {
		return false
	}

	delete(a.actors, id)
	for i, other := range a.order {
		if other == id {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}

	state := act.State()
	state.Alive = false
	a.pending.Depart(state)

	a.emit(EventTypeActorLeave, id, ActorLeavePayload{ActorID: id, Score: act.Score})
	return true
}

// Move steps the actor one cell. Returns false when nothing changed.
func (a *Arena) Move(id string, dx, dy int) bool {
	if !isUnitStep(dx, dy) {
		return false
	}
	act, ok := a.actors[id]
	if !ok || !act.Alive {
		return false
	}

	target := act.Pos.Add(dx, dy)
	if !a.grid.InBounds(target.X, target.Y) {
		return false
	}
	cell := a.grid.at(target)
	if cell.BlocksMovement() {
		return false
	}

	act.Pos = target
	if cell.IsPowerup() {
		act.applyPowerup(cell)
		a.grid.set(target, CellEmpty)
		a.emit(EventTypePowerup, id, PowerupPayload{
			ActorID: id, Kind: cell.String(),
			FirePower: act.FirePower, BombCapacity: act.BombCapacity,
		})
	}
	a.pending.TouchActor(id)
	return true
}

// PlaceBomb arms a bomb under the actor. Returns false when nothing changed.
func (a *Arena) PlaceBomb(id string) bool {
	act, ok := a.actors[id]
	if !ok || !act.Alive {
		return false
	}
	if act.ArmedBombs >= act.BombCapacity {
		return false
	}
	if a.grid.at(act.Pos) != CellEmpty {
		return false
	}

	a.nextBombID++
	b := &Bomb{
		ID:        a.nextBombID,
		Pos:       act.Pos,
		OwnerID:   id,
		FirePower: act.FirePower,
		ExpiresAt: a.clock.Now().Add(a.rules.FuseDuration),
	}
	a.bombs[b.ID] = b
	a.bombAt[b.Pos] = b.ID
	a.grid.set(b.Pos, CellBomb)
	act.ArmedBombs++

	a.emit(EventTypeBombPlaced, id, BombPayload{
		BombID: b.ID, OwnerID: id, X: b.Pos.X, Y: b.Pos.Y, FirePower: b.FirePower,
	})
	return true
}

// Actors returns the state of every registered actor in join order
func (a *Arena) Actors() []ActorState {
	out := make([]ActorState, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.actors[id].State())
	}
	return out
}

// Scores returns the full score table
func (a *Arena) Scores() map[string]Score {
	out := make(map[string]Score, len(a.actors))
	for id, act := range a.actors {
		out[id] = act.Score
	}
	return out
}

func isUnitStep(dx, dy int) bool {
	return (dx == 0) != (dy == 0) && dx >= -1 && dx <= 1 && dy >= -1 && dy <= 1
}

func sanitizeColor(color string) string {
	color = strings.TrimSpace(color)
	if len(color) > MaxColorLength {
		color = color[:MaxColorLength]
	}
	if color == "" {
		return DefaultColor
	}
	return color
}
