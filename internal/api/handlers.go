package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"bomb-arena/internal/protocol"
	"bomb-arena/internal/render"
)

const (
	defaultLeaderboardSize = 10
	maxLeaderboardSize     = 100
)

// Handler methods for routerHandlers

// handleGetState returns the init message shape without a playerId, so a
// spectator can seed a replica and then follow /ws diffs
func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, protocol.NewStateMessage(h.engine.FullSnapshot()))
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.GetSnapshot()
	writeJSON(w, map[string]interface{}{
		"tick":           snap.TickNumber,
		"width":          snap.Width,
		"height":         snap.Height,
		"actorCount":     snap.ActorCount,
		"aliveCount":     snap.AliveCount,
		"bombCount":      snap.BombCount,
		"explosionCount": snap.ExplosionCount,
		"crateCount":     snap.CrateCount,
		"eventLog":       h.engine.GetEventLogStats(),
	})
}

func (h *routerHandlers) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := defaultLeaderboardSize
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxLeaderboardSize)
	}
	writeJSON(w, h.engine.Leaderboard(limit))
}

func (h *routerHandlers) handleArenaPNG(w http.ResponseWriter, r *http.Request) {
	cell := render.DefaultCellSize
	if v := r.URL.Query().Get("cell"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, "cell must be an integer", http.StatusBadRequest)
			return
		}
		cell = render.ClampCellSize(n)
	}

	var buf bytes.Buffer
	if err := render.EncodePNG(&buf, h.engine.GetSnapshot(), cell); err != nil {
		writeError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

// Helper functions (package-level for reuse)

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
