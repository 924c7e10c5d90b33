// Package bot is a scripted websocket client of the arena. Each bot keeps a
// local replica built from the init message and every diff after it, and
// drives its actor with random intents.
package bot

import (
	"fmt"

	"bomb-arena/internal/game"
	"bomb-arena/internal/protocol"
)

// Replica is the client-side view of the arena
type Replica struct {
	Self    string
	Width   int
	Height  int
	Grid    [][]game.Cell
	Players map[string]game.ActorState
	Scores  map[string]game.Score
	Diffs   int
}

// NewReplica seeds a replica from an init message
func NewReplica(init protocol.InitMessage) (*Replica, error) {
	rows, cols := init.GridSize[0], init.GridSize[1]
	if len(init.Grid) != rows {
		return nil, fmt.Errorf("init: grid has %d rows, gridSize says %d", len(init.Grid), rows)
	}

	r := &Replica{
		Self:    init.PlayerID,
		Width:   cols,
		Height:  rows,
		Grid:    make([][]game.Cell, rows),
		Players: make(map[string]game.ActorState, len(init.Players)),
		Scores:  make(map[string]game.Score, len(init.Scores)),
	}
	for y, row := range init.Grid {
		if len(row) != cols {
			return nil, fmt.Errorf("init: row %d has %d cells, gridSize says %d", y, len(row), cols)
		}
		r.Grid[y] = make([]game.Cell, cols)
		for x, v := range row {
			r.Grid[y][x] = game.Cell(v)
		}
	}
	for _, p := range init.Players {
		r.Players[p.ID] = p
	}
	for id, s := range init.Scores {
		r.Scores[id] = s
	}
	return r, nil
}

// Apply folds one diff into the replica. Out-of-range cells are ignored.
func (r *Replica) Apply(d protocol.DiffMessage) {
	for _, c := range d.UpdatedCells {
		if c.Y < 0 || c.Y >= r.Height || c.X < 0 || c.X >= r.Width {
			continue
		}
		r.Grid[c.Y][c.X] = c.Value
	}
	for _, p := range d.UpdatedPlayers {
		r.Players[p.ID] = p
	}
	for _, id := range d.RemovedPlayers {
		delete(r.Players, id)
	}
	// every diff carries the whole score table
	r.Scores = make(map[string]game.Score, len(d.Scores))
	for id, s := range d.Scores {
		r.Scores[id] = s
	}
	r.Diffs++
}

// Cell returns the tile at (x, y), or a wall outside the grid
func (r *Replica) Cell(x, y int) game.Cell {
	if y < 0 || y >= r.Height || x < 0 || x >= r.Width {
		return game.CellWall
	}
	return r.Grid[y][x]
}

// Clone returns a deep copy
func (r *Replica) Clone() *Replica {
	c := *r
	c.Grid = make([][]game.Cell, len(r.Grid))
	for y, row := range r.Grid {
		c.Grid[y] = append([]game.Cell(nil), row...)
	}
	c.Players = make(map[string]game.ActorState, len(r.Players))
	for id, p := range r.Players {
		c.Players[id] = p
	}
	c.Scores = make(map[string]game.Score, len(r.Scores))
	for id, s := range r.Scores {
		c.Scores[id] = s
	}
	return &c
}
