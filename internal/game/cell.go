package game

// Cell is the content of one arena tile. The numeric values are the wire
// encoding and must not be reordered.
type Cell uint8

const (
	CellEmpty Cell = iota
	CellWall
	CellCrate
	CellBomb
	CellExplosion
	CellPowerupFire
	CellPowerupBomb
)

// String returns human-readable cell name
func (c Cell) String() string {
	switch c {
	case CellEmpty:
		return "empty"
	case CellWall:
		return "wall"
	case CellCrate:
		return "crate"
	case CellBomb:
		return "bomb"
	case CellExplosion:
		return "explosion"
	case CellPowerupFire:
		return "powerup_fire"
	case CellPowerupBomb:
		return "powerup_bomb"
	default:
		return "unknown"
	}
}

// Valid reports whether c is one of the known cell values
func (c Cell) Valid() bool {
	return c <= CellPowerupBomb
}

// BlocksMovement reports whether an actor may not step onto the cell
func (c Cell) BlocksMovement() bool {
	return c == CellWall || c == CellCrate || c == CellBomb
}

// IsPowerup reports whether stepping onto the cell upgrades the actor
func (c Cell) IsPowerup() bool {
	return c == CellPowerupFire || c == CellPowerupBomb
}

// Point is a grid coordinate
type Point struct {
	X, Y int
}

// Add returns p shifted by (dx, dy)
func (p Point) Add(dx, dy int) Point {
	return Point{X: p.X + dx, Y: p.Y + dy}
}

// directions are the four blast/move axes in a fixed order
var directions = [4]Point{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
