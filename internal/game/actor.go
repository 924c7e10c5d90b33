package game

// Score is the per-actor kill/death/assist triple
type Score struct {
	Kills   int `json:"kills"`
	Deaths  int `json:"deaths"`
	Assists int `json:"assists"`
}

// Actor is one controllable entity, human session or scripted bot
type Actor struct {
	ID    string
	Pos   Point
	Alive bool
	Color string

	FirePower    int // blast radius in cells
	BombCapacity int // max simultaneously armed bombs
	ArmedBombs   int

	Score Score
}

// ActorState is the public per-actor record shipped to clients
type ActorState struct {
	ID    string `json:"id"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Color string `json:"color"`
	Alive bool   `json:"alive"`
}

// State returns the client-visible state of the actor
func (a *Actor) State() ActorState {
	return ActorState{
		ID:    a.ID,
		X:     a.Pos.X,
		Y:     a.Pos.Y,
		Color: a.Color,
		Alive: a.Alive,
	}
}

// applyPowerup upgrades the actor for the power-up cell it stepped on
func (a *Actor) applyPowerup(c Cell) {
	switch c {
	case CellPowerupFire:
		a.FirePower++
	case CellPowerupBomb:
		a.BombCapacity++
	}
}
