package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const eventColumns = `id, game_id, seq, timestamp, sim_time_ns, event_type, actor_id, target_id, payload`

// SQLEventRepository implements EventRepository over database/sql.
type SQLEventRepository struct {
	db      *sql.DB
	dialect dialect
}

func newSQLEventRepository(db *sql.DB, d dialect) *SQLEventRepository {
	return &SQLEventRepository{db: db, dialect: d}
}

func (r *SQLEventRepository) Append(ctx context.Context, event GameEvent) error {
	payload := string(event.Payload)
	if payload == "" {
		payload = "null"
	}
	query := r.dialect.bind(`INSERT INTO events (` + eventColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query,
		event.ID, event.GameID, int64(event.Seq), event.Timestamp.UTC(), event.SimTimeNS,
		event.EventType, event.ActorID, event.TargetID, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (r *SQLEventRepository) getMany(ctx context.Context, where string, args ...interface{}) ([]GameEvent, error) {
	query := r.dialect.bind(`SELECT ` + eventColumns + ` FROM events WHERE ` + where + ` ORDER BY seq ASC`)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []GameEvent
	for rows.Next() {
		var e GameEvent
		var seq int64
		var payload string
		err := rows.Scan(&e.ID, &e.GameID, &seq, &e.Timestamp, &e.SimTimeNS,
			&e.EventType, &e.ActorID, &e.TargetID, &payload)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Seq = uint64(seq)
		e.Payload = []byte(payload)
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *SQLEventRepository) GetByGameID(ctx context.Context, gameID string) ([]GameEvent, error) {
	return r.getMany(ctx, `game_id = ?`, gameID)
}

func (r *SQLEventRepository) GetByActorID(ctx context.Context, gameID, actorID string) ([]GameEvent, error) {
	return r.getMany(ctx, `game_id = ? AND actor_id = ?`, gameID, actorID)
}

func (r *SQLEventRepository) GetByEventType(ctx context.Context, gameID string, eventType string) ([]GameEvent, error) {
	return r.getMany(ctx, `game_id = ? AND event_type = ?`, gameID, eventType)
}

func (r *SQLEventRepository) GetSince(ctx context.Context, gameID string, simTime time.Duration) ([]GameEvent, error) {
	return r.getMany(ctx, `game_id = ? AND sim_time_ns > ?`, gameID, int64(simTime))
}

var _ EventRepository = (*SQLEventRepository)(nil)
