package network

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/MRamiBalles/factorysim/internal/events"
	"github.com/MRamiBalles/factorysim/internal/infra/storage"
	"github.com/MRamiBalles/factorysim/internal/platform/logger"
)

// Recapper summarizes stored events. storage.Reconstructor implements it.
type Recapper interface {
	Recap(ctx context.Context, gameID string, since time.Duration) ([]storage.RecapEvent, error)
}

// ReplayHandler serves the in-memory journal and, when storage is
// configured, the recap of persisted events.
type ReplayHandler struct {
	eventLog *events.EventLog
	recap    Recapper
	gameID   string
	logger   *logger.Logger
}

// NewReplayHandler creates a replay handler. recap may be nil.
func NewReplayHandler(el *events.EventLog, recap Recapper, gameID string, log *logger.Logger) *ReplayHandler {
	return &ReplayHandler{eventLog: el, recap: recap, gameID: gameID, logger: log}
}

// ReplayResponse is the API response for event replay.
type ReplayResponse struct {
	LastSeq     uint64             `json:"last_seq"`
	TotalEvents int                `json:"total_events"`
	FilteredBy  string             `json:"filtered_by,omitempty"`
	GeneratedAt string             `json:"generated_at"`
	Events      []events.GameEvent `json:"events"`
}

// HandleReplay returns retained events.
// GET /api/events?since=N&type=CRAFT_COMPLETED
func (rh *ReplayHandler) HandleReplay(w http.ResponseWriter, r *http.Request) {
	var since uint64
	if s := r.URL.Query().Get("since"); s != "" {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			jsonError(w, "Invalid since", http.StatusBadRequest)
			return
		}
		since = n
	}
	eventType := r.URL.Query().Get("type")

	selected := make([]events.GameEvent, 0)
	for _, e := range rh.eventLog.Since(since) {
		if eventType != "" && string(e.Type) != eventType {
			continue
		}
		selected = append(selected, e)
	}

	writeJSON(w, http.StatusOK, ReplayResponse{
		LastSeq:     rh.eventLog.LastSeq(),
		TotalEvents: len(selected),
		FilteredBy:  eventType,
		GeneratedAt: time.Now().Format(time.RFC3339),
		Events:      selected,
	})
}

// HandleEventDetail returns one retained event.
// GET /api/events/{id}
func (rh *ReplayHandler) HandleEventDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	for _, e := range rh.eventLog.Replay() {
		if e.ID == id {
			writeJSON(w, http.StatusOK, e)
			return
		}
	}
	jsonError(w, "Event not found", http.StatusNotFound)
}

// HandleStats returns retained event counts per type.
// GET /api/events/stats
func (rh *ReplayHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	all := rh.eventLog.Replay()
	counts := make(map[events.EventType]int)
	for _, e := range all {
		counts[e.Type]++
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"generated_at": time.Now().Format(time.RFC3339),
		"total_events": len(all),
		"dropped":      rh.eventLog.Dropped(),
		"by_type":      counts,
	})
}

// HandleRecap summarizes persisted events after a simulation time (ms).
// GET /api/recap?since_ms=N
func (rh *ReplayHandler) HandleRecap(w http.ResponseWriter, r *http.Request) {
	if rh.recap == nil {
		jsonError(w, "Storage disabled", http.StatusNotFound)
		return
	}
	var since time.Duration
	if s := r.URL.Query().Get("since_ms"); s != "" {
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil || ms < 0 {
			jsonError(w, "Invalid since_ms", http.StatusBadRequest)
			return
		}
		since = time.Duration(ms) * time.Millisecond
	}
	recap, err := rh.recap.Recap(r.Context(), rh.gameID, since)
	if err != nil {
		rh.logger.Errorf("recap: %v", err)
		jsonError(w, "Recap failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, recap)
}

// RegisterRoutes sets up the replay routes.
func (rh *ReplayHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/events", rh.HandleReplay)
	mux.HandleFunc("GET /api/events/stats", rh.HandleStats)
	mux.HandleFunc("GET /api/events/{id}", rh.HandleEventDetail)
	mux.HandleFunc("GET /api/recap", rh.HandleRecap)
}
