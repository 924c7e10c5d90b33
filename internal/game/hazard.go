package game

import (
	"sort"
	"time"
)

// Bomb is an armed explosive. FirePower is the owner's radius at placement
// and is only used once the owner has left the arena.
type Bomb struct {
	ID        uint64
	Pos       Point
	OwnerID   string
	FirePower int
	ExpiresAt time.Time
}

// Explosion is one burning cell. Restore is written back when it clears.
type Explosion struct {
	Pos     Point
	ClearAt time.Time
	Restore Cell
}

// Respawn is a pending revival of a dead actor
type Respawn struct {
	ActorID string
	At      time.Time
}

// blastSource identifies who is credited for a detonation
type blastSource struct {
	trigger string
	chained bool
	at      time.Time // expiry of the detonating bomb
}

// processBombs detonates every due bomb. Blasts that reach other bombs pull
// their expiry back to the detonating bomb's, so the loop runs until no due
// bomb remains and a whole chain resolves inside one tick.
func (a *Arena) processBombs(now time.Time) int {
	detonated := 0
	for {
		due := a.dueBombs(now)
		if len(due) == 0 {
			return detonated
		}
		for _, id := range due {
			if b, ok := a.bombs[id]; ok {
				a.detonate(b, now)
				detonated++
			}
		}
	}
}

// dueBombs returns ids of bombs with ExpiresAt <= now, ordered by expiry
// then id
func (a *Arena) dueBombs(now time.Time) []uint64 {
	var due []*Bomb
	for _, b := range a.bombs {
		if !b.ExpiresAt.After(now) {
			due = append(due, b)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].ExpiresAt.Equal(due[j].ExpiresAt) {
			return due[i].ExpiresAt.Before(due[j].ExpiresAt)
		}
		return due[i].ID < due[j].ID
	})

	ids := make([]uint64, len(due))
	for i, b := range due {
		ids[i] = b.ID
	}
	return ids
}

func (a *Arena) detonate(b *Bomb, now time.Time) {
	delete(a.bombs, b.ID)
	if a.bombAt[b.Pos] == b.ID {
		delete(a.bombAt, b.Pos)
	}

	src := blastSource{trigger: b.OwnerID, at: b.ExpiresAt}
	if trigger, ok := a.chain[b.ID]; ok {
		src = blastSource{trigger: trigger, chained: true, at: b.ExpiresAt}
		delete(a.chain, b.ID)
	}

	power := b.FirePower
	if owner, ok := a.actors[b.OwnerID]; ok {
		owner.ArmedBombs--
		power = owner.FirePower
	}

	a.emit(EventTypeDetonation, src.trigger, DetonationPayload{
		BombID: b.ID, OwnerID: b.OwnerID, TriggerID: src.trigger,
		Chained: src.chained, X: b.Pos.X, Y: b.Pos.Y, FirePower: power,
	})

	a.blast(b.Pos, src, now)
	for _, dir := range directions {
		p := b.Pos
		for i := 1; i <= power; i++ {
			p = p.Add(dir.X, dir.Y)
			if !a.grid.InBounds(p.X, p.Y) || a.grid.at(p) == CellWall {
				break
			}
			if stop := a.blast(p, src, now); stop {
				break
			}
		}
	}
}

// blast sets p on fire and kills everyone standing there. It reports whether
// the ray must stop after this cell because it held a crate or a bomb.
func (a *Arena) blast(p Point, src blastSource, now time.Time) bool {
	prev := a.grid.at(p)
	bombID, hasBomb := a.bombAt[p]

	if hasBomb {
		// A bomb with the same expiry goes off on its own; anything later,
		// even if due in this tick, is part of the chain.
		if other, ok := a.bombs[bombID]; ok && other.ExpiresAt.After(src.at) {
			other.ExpiresAt = src.at
			if _, seen := a.chain[bombID]; !seen {
				a.chain[bombID] = src.trigger
			}
		}
	}

	clearAt := now.Add(a.rules.ExplosionDuration)
	if ex, ok := a.explosions[p]; ok {
		if clearAt.After(ex.ClearAt) {
			ex.ClearAt = clearAt
		}
	} else {
		restore := CellEmpty
		if prev == CellCrate {
			restore = a.rollDrop()
		}
		a.explosions[p] = &Explosion{Pos: p, ClearAt: clearAt, Restore: restore}
	}
	a.grid.set(p, CellExplosion)

	for _, victim := range a.occupants(p, true) {
		a.kill(victim, src, now)
	}

	return prev == CellCrate || prev == CellBomb || hasBomb
}

// rollDrop picks what a destroyed crate leaves behind
func (a *Arena) rollDrop() Cell {
	if a.rng.Float64() < a.rules.PowerupFireChance {
		return CellPowerupFire
	}
	if a.rng.Float64() < a.rules.PowerupBombChance {
		return CellPowerupBomb
	}
	return CellEmpty
}

func (a *Arena) kill(victim *Actor, src blastSource, now time.Time) {
	victim.Alive = false
	victim.Score.Deaths++
	a.pending.TouchActor(victim.ID)

	a.respawns = append(a.respawns, Respawn{ActorID: victim.ID, At: now.Add(a.rules.RespawnDelay)})

	// Self-kills and blasts from departed actors credit nobody.
	credited := ""
	if trigger, ok := a.actors[src.trigger]; ok && trigger != victim {
		if src.chained {
			trigger.Score.Assists++
		} else {
			trigger.Score.Kills++
		}
		credited = trigger.ID
		a.pending.TouchActor(trigger.ID)
	}

	eventType := EventTypeKill
	if src.chained {
		eventType = EventTypeAssist
	}
	a.emit(eventType, victim.ID, KillPayload{
		TriggerID: src.trigger, CreditedID: credited, VictimID: victim.ID,
		X: victim.Pos.X, Y: victim.Pos.Y, Chained: src.chained,
	})
}

// processExplosions restores every burning cell whose timer ran out
func (a *Arena) processExplosions(now time.Time) int {
	var due []*Explosion
	for _, ex := range a.explosions {
		if !ex.ClearAt.After(now) {
			due = append(due, ex)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].Pos.Y != due[j].Pos.Y {
			return due[i].Pos.Y < due[j].Pos.Y
		}
		return due[i].Pos.X < due[j].Pos.X
	})

	for _, ex := range due {
		delete(a.explosions, ex.Pos)
		if a.grid.at(ex.Pos) == CellExplosion {
			a.grid.set(ex.Pos, ex.Restore)
		}
	}
	return len(due)
}

// processRespawns revives actors whose delay has passed. Actors that left
// meanwhile are dropped; a full arena pushes the respawn back one delay.
func (a *Arena) processRespawns(now time.Time) int {
	revived := 0
	remaining := a.respawns[:0]
	var retry []Respawn

	for _, r := range a.respawns {
		if r.At.After(now) {
			remaining = append(remaining, r)
			continue
		}
		act, ok := a.actors[r.ActorID]
		if !ok {
			continue
		}
		pos, err := a.FindFreeSpawn()
		if err != nil {
			retry = append(retry, Respawn{ActorID: r.ActorID, At: now.Add(a.rules.RespawnDelay)})
			continue
		}

		act.Pos = pos
		act.Alive = true
		a.pending.TouchActor(act.ID)
		a.emit(EventTypeRespawn, act.ID, RespawnPayload{ActorID: act.ID, X: pos.X, Y: pos.Y})
		revived++
	}

	a.respawns = append(remaining, retry...)
	return revived
}
