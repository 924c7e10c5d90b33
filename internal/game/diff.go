package game

// CellUpdate is one changed tile
type CellUpdate struct {
	X     int  `json:"x"`
	Y     int  `json:"y"`
	Value Cell `json:"value"`
}

// Diff is the patch emitted after a tick with changes. Departed actors are
// listed in Actors with alive=false and again by id in Removed.
type Diff struct {
	Cells   []CellUpdate
	Actors  []ActorState
	Removed []string
	Scores  map[string]Score
}

// FullSnapshot is the complete state handed to a joining client
type FullSnapshot struct {
	Width  int
	Height int
	Grid   [][]Cell
	Actors []ActorState
	Scores map[string]Score
}

// PendingDiff accumulates what changed since the last flush. Insertion
// order is kept so patches are reproducible.
type PendingDiff struct {
	cells     []Point
	cellSeen  map[Point]struct{}
	actors    []string
	actorSeen map[string]struct{}
	departed  map[string]ActorState
}

// NewPendingDiff creates an empty accumulator
func NewPendingDiff() *PendingDiff {
	return &PendingDiff{
		cellSeen:  make(map[Point]struct{}),
		actorSeen: make(map[string]struct{}),
		departed:  make(map[string]ActorState),
	}
}

// TouchCell records a changed cell
func (d *PendingDiff) TouchCell(p Point) {
	if _, ok := d.cellSeen[p]; ok {
		return
	}
	d.cellSeen[p] = struct{}{}
	d.cells = append(d.cells, p)
}

// TouchActor records a changed actor
func (d *PendingDiff) TouchActor(id string) {
	if _, ok := d.actorSeen[id]; ok {
		return
	}
	d.actorSeen[id] = struct{}{}
	d.actors = append(d.actors, id)
}

// Depart records the final state of an actor that left
func (d *PendingDiff) Depart(last ActorState) {
	d.departed[last.ID] = last
	d.TouchActor(last.ID)
}

// Empty reports whether nothing is pending
func (d *PendingDiff) Empty() bool {
	return len(d.cells) == 0 && len(d.actors) == 0
}

func (d *PendingDiff) reset() {
	d.cells = d.cells[:0]
	d.actors = d.actors[:0]
	clear(d.cellSeen)
	clear(d.actorSeen)
	clear(d.departed)
}

// Flush returns the patch for everything touched since the last flush and
// clears the accumulator. It returns false, and emits nothing, when no
// change is pending.
func (a *Arena) Flush() (Diff, bool) {
	d := a.pending
	if d.Empty() {
		return Diff{}, false
	}

	out := Diff{
		Cells:  make([]CellUpdate, 0, len(d.cells)),
		Actors: make([]ActorState, 0, len(d.actors)),
		Scores: a.Scores(),
	}
	for _, p := range d.cells {
		out.Cells = append(out.Cells, CellUpdate{X: p.X, Y: p.Y, Value: a.grid.at(p)})
	}
	for _, id := range d.actors {
		if act, ok := a.actors[id]; ok {
			out.Actors = append(out.Actors, act.State())
			continue
		}
		if last, ok := d.departed[id]; ok {
			out.Actors = append(out.Actors, last)
			out.Removed = append(out.Removed, id)
		}
	}

	d.reset()
	return out, true
}

// FullSnapshot returns the entire grid, every actor and every score
func (a *Arena) FullSnapshot() FullSnapshot {
	return FullSnapshot{
		Width:  a.grid.width,
		Height: a.grid.height,
		Grid:   a.grid.Rows(),
		Actors: a.Actors(),
		Scores: a.Scores(),
	}
}

// ActorDiff is a patch carrying only the given actor states and the
// current score table. Used for the join and leave announcements that go
// out before the next tick.
func (a *Arena) ActorDiff(states []ActorState, removed []string) Diff {
	return Diff{
		Cells:   []CellUpdate{},
		Actors:  states,
		Removed: removed,
		Scores:  a.Scores(),
	}
}
