package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MRamiBalles/factorysim/internal/engine"
	"github.com/MRamiBalles/factorysim/internal/events"
)

// Reconstructor brings a game back from storage. It is used for:
// 1. Resuming the simulation from the last autosave on startup
// 2. The "while you were away" recap of journal events after that save
type Reconstructor struct {
	snapshots SnapshotRepository
	eventRepo EventRepository
}

func NewReconstructor(snapshots SnapshotRepository, eventRepo EventRepository) *Reconstructor {
	return &Reconstructor{snapshots: snapshots, eventRepo: eventRepo}
}

// RecapEvent is a simplified event for the recap screen.
type RecapEvent struct {
	SimTime   time.Duration `json:"sim_time"`
	EventType string        `json:"event_type"`
	Summary   string        `json:"summary"` // Human-readable description
}

// Resume restores e from the stored snapshot of gameID. It reports false
// when the game has never been saved.
func (r *Reconstructor) Resume(ctx context.Context, gameID string, e *engine.Engine) (bool, error) {
	snap, err := r.snapshots.Load(ctx, gameID)
	if err != nil {
		return false, fmt.Errorf("failed to load game %s: %w", gameID, err)
	}
	if snap == nil {
		return false, nil
	}
	if err := e.Restore(*snap); err != nil {
		return false, fmt.Errorf("failed to restore game %s: %w", gameID, err)
	}
	return true, nil
}

// Recap summarizes the stored events recorded after since.
func (r *Reconstructor) Recap(ctx context.Context, gameID string, since time.Duration) ([]RecapEvent, error) {
	stored, err := r.eventRepo.GetSince(ctx, gameID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get events for recap: %w", err)
	}
	recap := make([]RecapEvent, 0, len(stored))
	for _, e := range stored {
		recap = append(recap, RecapEvent{
			SimTime:   time.Duration(e.SimTimeNS),
			EventType: e.EventType,
			Summary:   summarize(e),
		})
	}
	return recap, nil
}

func summarize(e GameEvent) string {
	var p map[string]interface{}
	_ = json.Unmarshal(e.Payload, &p)
	str := func(k string) string {
		if v, ok := p[k]; ok {
			return fmt.Sprint(v)
		}
		return "?"
	}

	switch events.EventType(e.EventType) {
	case events.EventTypeCraftCompleted:
		return fmt.Sprintf("Crafted %s x%s", str("item_id"), str("quantity"))
	case events.EventTypeCraftCancelled:
		return fmt.Sprintf("Cancelled crafting %s", str("item_id"))
	case events.EventTypeProductionCompleted:
		return fmt.Sprintf("Facility %s finished %s", e.TargetID, str("recipe_id"))
	case events.EventTypeFacilityStatusChanged:
		return fmt.Sprintf("Facility %s: %s -> %s", e.TargetID, str("from"), str("to"))
	case events.EventTypeFacilityRefueled:
		return fmt.Sprintf("Facility %s refuelled with %s %s", e.TargetID, str("units"), str("item_id"))
	case events.EventTypeResearchCompleted:
		return fmt.Sprintf("Research %s completed", e.TargetID)
	case events.EventTypeSubsystemFailed:
		return fmt.Sprintf("Subsystem %s failed: %s", str("subsystem"), str("error"))
	}
	if e.TargetID != "" {
		return fmt.Sprintf("%s %s", e.EventType, e.TargetID)
	}
	return e.EventType
}
