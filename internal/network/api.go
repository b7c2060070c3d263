package network

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/MRamiBalles/factorysim/internal/engine"
	"github.com/MRamiBalles/factorysim/internal/platform/logger"
)

// API exposes engine observers and mutation entry points over REST.
type API struct {
	engine   *engine.Engine
	commands *Commands
	logger   *logger.Logger
}

func NewAPI(eng *engine.Engine, log *logger.Logger) *API {
	return &API{engine: eng, commands: NewCommands(eng), logger: log}
}

// RegisterRoutes sets up the REST routes.
func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/inventory", a.handleInventory)
	mux.HandleFunc("GET /api/facilities", a.handleFacilities)
	mux.HandleFunc("GET /api/crafting-queue", a.handleCraftingQueue)
	mux.HandleFunc("GET /api/research", a.handleResearch)
	mux.HandleFunc("GET /api/snapshot", a.handleSnapshot)
	mux.HandleFunc("GET /api/power", a.handlePower)

	mux.HandleFunc("POST /api/crafting", a.action(ActionAddCraftingTask))
	mux.HandleFunc("POST /api/crafting/chain", a.action(ActionAddCraftingChain))
	mux.HandleFunc("DELETE /api/crafting/{id}", a.handleCancelTask)
	mux.HandleFunc("POST /api/facilities", a.action(ActionAddFacility))
	mux.HandleFunc("DELETE /api/facilities/{id}", a.handleRemoveFacility)
	mux.HandleFunc("POST /api/facilities/{id}/refuel", a.handleRefuel)
	mux.HandleFunc("POST /api/research", a.action(ActionStartResearch))
	mux.HandleFunc("POST /api/research/queue", a.action(ActionQueueResearch))
	mux.HandleFunc("DELETE /api/research", a.action(ActionCancelResearch))
}

func (a *API) handleInventory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.engine.SnapshotInventory())
}

func (a *API) handleFacilities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.engine.SnapshotFacilities())
}

func (a *API) handleCraftingQueue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.engine.SnapshotCraftingQueue())
}

func (a *API) handleResearch(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.engine.SnapshotResearch())
}

func (a *API) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.engine.Snapshot())
}

func (a *API) handlePower(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.engine.PowerBalance())
}

// action runs the request body as the payload of an action of type t.
func (a *API) action(t string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
			jsonError(w, "Invalid payload", http.StatusBadRequest)
			return
		}
		a.run(w, PlayerAction{Type: t, Payload: payload})
	}
}

func (a *API) run(w http.ResponseWriter, action PlayerAction) {
	result, err := a.commands.Execute(action)
	if err != nil {
		a.logger.Debugf("api: %s refused: %v", action.Type, err)
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	if result == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	payload, _ := json.Marshal(TaskRequest{TaskID: r.PathValue("id")})
	a.run(w, PlayerAction{Type: ActionCancelCraftingTask, Payload: payload})
}

func (a *API) handleRemoveFacility(w http.ResponseWriter, r *http.Request) {
	payload, _ := json.Marshal(InstanceRequest{InstanceID: r.PathValue("id")})
	a.run(w, PlayerAction{Type: ActionRemoveFacility, Payload: payload})
}

func (a *API) handleRefuel(w http.ResponseWriter, r *http.Request) {
	var req RefuelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid payload", http.StatusBadRequest)
		return
	}
	req.InstanceID = r.PathValue("id")
	payload, _ := json.Marshal(req)
	a.run(w, PlayerAction{Type: ActionRefuelFacility, Payload: payload})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// jsonError sends an error response.
func jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
