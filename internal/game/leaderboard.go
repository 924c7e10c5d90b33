package game

import "sort"

// LeaderboardEntry is one ranked actor
type LeaderboardEntry struct {
	Rank    int    `json:"rank"`
	ActorID string `json:"actorId"`
	Color   string `json:"color"`
	Alive   bool   `json:"alive"`
	Kills   int    `json:"kills"`
	Deaths  int    `json:"deaths"`
	Assists int    `json:"assists"`
}

// RankActors orders actors by kills, then assists, then fewest deaths, then
// id, and returns at most n entries (n <= 0 means all).
func RankActors(actors []ActorSnapshot, n int) []LeaderboardEntry {
	sorted := append([]ActorSnapshot(nil), actors...)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i].Score, sorted[j].Score
		if a.Kills != b.Kills {
			return a.Kills > b.Kills
		}
		if a.Assists != b.Assists {
			return a.Assists > b.Assists
		}
		if a.Deaths != b.Deaths {
			return a.Deaths < b.Deaths
		}
		return sorted[i].ID < sorted[j].ID
	})

	if n > 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	out := make([]LeaderboardEntry, len(sorted))
	for i, act := range sorted {
		out[i] = LeaderboardEntry{
			Rank:    i + 1,
			ActorID: act.ID,
			Color:   act.Color,
			Alive:   act.Alive,
			Kills:   act.Score.Kills,
			Deaths:  act.Score.Deaths,
			Assists: act.Score.Assists,
		}
	}
	return out
}

// Leaderboard ranks every registered actor. The published snapshot is capped
// and may leave dead high scorers out, so this reads the arena itself.
func (e *Engine) Leaderboard(n int) []LeaderboardEntry {
	e.mu.Lock()
	actors := make([]ActorSnapshot, 0, len(e.arena.order))
	for _, id := range e.arena.order {
		actors = append(actors, e.arena.actors[id].snapshot())
	}
	e.mu.Unlock()

	return RankActors(actors, n)
}
