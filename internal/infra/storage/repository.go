// Package storage provides the persistence layer for the simulation.
// It implements the repository pattern so the engine never sees SQL.
package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/MRamiBalles/factorysim/internal/engine"
)

// GameEvent mirrors the journal event structure for persistence.
// The engine does NOT import this; adapters convert at the boundary.
type GameEvent struct {
	ID        string          `json:"id" db:"id"`
	GameID    string          `json:"game_id" db:"game_id"`
	Seq       uint64          `json:"seq" db:"seq"`
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
	SimTimeNS int64           `json:"sim_time_ns" db:"sim_time_ns"`
	EventType string          `json:"event_type" db:"event_type"`
	ActorID   string          `json:"actor_id" db:"actor_id"`
	TargetID  string          `json:"target_id" db:"target_id"`
	Payload   json.RawMessage `json:"payload" db:"payload"`
}

// EventRepository defines the interface for journal persistence.
type EventRepository interface {
	// Append adds a new event to the immutable ledger.
	Append(ctx context.Context, event GameEvent) error

	// GetByGameID retrieves all events of a game in sequence order.
	GetByGameID(ctx context.Context, gameID string) ([]GameEvent, error)

	// GetByActorID retrieves all events performed by an actor.
	GetByActorID(ctx context.Context, gameID, actorID string) ([]GameEvent, error)

	// GetByEventType retrieves all events of a specific type.
	GetByEventType(ctx context.Context, gameID string, eventType string) ([]GameEvent, error)

	// GetSince retrieves the events recorded after the given simulation time.
	GetSince(ctx context.Context, gameID string, simTime time.Duration) ([]GameEvent, error)
}

// SnapshotRepository stores the latest snapshot of each game.
type SnapshotRepository interface {
	// Save replaces the stored snapshot of gameID.
	Save(ctx context.Context, gameID string, snap engine.GameSnapshot) error

	// Load returns the stored snapshot, or nil when the game has none.
	Load(ctx context.Context, gameID string) (*engine.GameSnapshot, error)

	// Delete forgets a game.
	Delete(ctx context.Context, gameID string) error
}
