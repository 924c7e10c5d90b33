package game

import "time"

// processRefill tops the arena up with crates once the interval has passed
// and the crate count has fallen below the low-water mark. The timer resets
// every time the interval elapses, whether or not anything was placed.
func (a *Arena) processRefill(now time.Time) int {
	if now.Sub(a.lastRefill) < a.rules.RefillInterval {
		return 0
	}
	a.lastRefill = now

	total := float64(a.grid.width * a.grid.height)
	crates := a.grid.Count(CellCrate)
	if float64(crates) >= a.rules.RefillLowWater*total {
		return 0
	}

	target := int(a.rules.RefillHighWater * total)
	placed := 0
	for i := 0; i < a.rules.refillAttempts() && crates < target; i++ {
		p := a.grid.randomInterior(a.rng)
		if a.grid.at(p) != CellEmpty || len(a.occupants(p, false)) > 0 {
			continue
		}
		a.grid.set(p, CellCrate)
		crates++
		placed++
	}

	if placed > 0 {
		a.emit(EventTypeRefill, "", RefillPayload{Placed: placed, Crates: crates})
	}
	return placed
}
