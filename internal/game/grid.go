package game

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
)

var (
	ErrOutOfBounds      = errors.New("coordinate out of bounds")
	ErrPermanentWall    = errors.New("cell is a permanent wall")
	ErrInvalidCell      = errors.New("invalid cell value")
	ErrInvalidDimension = errors.New("arena must be at least 3x3")
)

// Grid is the rectangular tile map. Cells are stored row-major.
// Every mutation goes through Set so the pending diff sees it.
type Grid struct {
	width   int
	height  int
	cells   []Cell
	pending *PendingDiff
}

// BuildGrid creates a fresh arena: walls on the border and on every cell
// whose coordinates are both even, crates with probability crateChance
// everywhere else.
func BuildGrid(width, height int, crateChance float64, rng *rand.Rand) (*Grid, error) {
	if width < 3 || height < 3 {
		return nil, fmt.Errorf("build grid %dx%d: %w", width, height, ErrInvalidDimension)
	}

	g := &Grid{
		width:  width,
		height: height,
		cells:  make([]Cell, width*height),
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			switch {
			case g.IsPermanentWall(x, y):
				g.cells[y*width+x] = CellWall
			case rng.Float64() < crateChance:
				g.cells[y*width+x] = CellCrate
			}
		}
	}
	return g, nil
}

// Width returns the number of columns
func (g *Grid) Width() int { return g.width }

// Height returns the number of rows
func (g *Grid) Height() int { return g.height }

// InBounds reports whether (x, y) lies inside the grid
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && x < g.width && y >= 0 && y < g.height
}

// IsPermanentWall reports whether (x, y) is a border or pillar cell
func (g *Grid) IsPermanentWall(x, y int) bool {
	if x == 0 || y == 0 || x == g.width-1 || y == g.height-1 {
		return true
	}
	return x%2 == 0 && y%2 == 0
}

// Get returns the cell at (x, y)
func (g *Grid) Get(x, y int) (Cell, error) {
	if !g.InBounds(x, y) {
		return CellEmpty, fmt.Errorf("get (%d,%d): %w", x, y, ErrOutOfBounds)
	}
	return g.cells[y*g.width+x], nil
}

// at is Get for coordinates already known to be in bounds
func (g *Grid) at(p Point) Cell {
	return g.cells[p.Y*g.width+p.X]
}

// Set writes v at (x, y). Writing the value already present is a no-op and
// records nothing.
func (g *Grid) Set(x, y int, v Cell) error {
	if !g.InBounds(x, y) {
		return fmt.Errorf("set (%d,%d): %w", x, y, ErrOutOfBounds)
	}
	if !v.Valid() || v == CellWall {
		return fmt.Errorf("set (%d,%d) to %d: %w", x, y, v, ErrInvalidCell)
	}
	if g.IsPermanentWall(x, y) {
		return fmt.Errorf("set (%d,%d): %w", x, y, ErrPermanentWall)
	}

	idx := y*g.width + x
	if g.cells[idx] == v {
		return nil
	}
	g.cells[idx] = v
	if g.pending != nil {
		g.pending.TouchCell(Point{X: x, Y: y})
	}
	return nil
}

// set is Set for callers that already validated the coordinate
func (g *Grid) set(p Point, v Cell) {
	if err := g.Set(p.X, p.Y, v); err != nil {
		log.Printf("⚠️ grid write rejected: %v", err)
	}
}

// Count returns how many cells hold v
func (g *Grid) Count(v Cell) int {
	n := 0
	for _, c := range g.cells {
		if c == v {
			n++
		}
	}
	return n
}

// Rows copies the grid into [y][x] rows
func (g *Grid) Rows() [][]Cell {
	rows := make([][]Cell, g.height)
	for y := range rows {
		rows[y] = make([]Cell, g.width)
		copy(rows[y], g.cells[y*g.width:(y+1)*g.width])
	}
	return rows
}

// randomInterior draws a uniform cell with 1 <= x < w-1 and 1 <= y < h-1
func (g *Grid) randomInterior(rng *rand.Rand) Point {
	return Point{
		X: rng.Intn(g.width-2) + 1,
		Y: rng.Intn(g.height-2) + 1,
	}
}
