package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MRamiBalles/factorysim/internal/domain/item"
	"github.com/MRamiBalles/factorysim/internal/engine"
)

// snapshotExtra holds the snapshot sections without a column of their own.
type snapshotExtra struct {
	Containers map[item.ID]int        `json:"containers"`
	Chains     []engine.ChainSnapshot `json:"chains"`
	Stats      engine.StatsSnapshot   `json:"stats"`
}

// SQLSnapshotRepository implements SnapshotRepository over database/sql.
// Each section of a snapshot is stored as a JSON column of one row per game.
type SQLSnapshotRepository struct {
	db      *sql.DB
	dialect dialect
}

func newSQLSnapshotRepository(db *sql.DB, d dialect) *SQLSnapshotRepository {
	return &SQLSnapshotRepository{db: db, dialect: d}
}

func encodeSections(sections ...interface{}) ([]string, error) {
	out := make([]string, len(sections))
	for i, s := range sections {
		b, err := json.Marshal(s)
		if err != nil {
			return nil, err
		}
		out[i] = string(b)
	}
	return out, nil
}

func (r *SQLSnapshotRepository) Save(ctx context.Context, gameID string, snap engine.GameSnapshot) error {
	cols, err := encodeSections(snap.Inventory, snap.Facilities, snap.CraftingQueue, snap.Research,
		snapshotExtra{Containers: snap.Containers, Chains: snap.Chains, Stats: snap.Stats})
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	savedAt := snap.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}

	query := r.dialect.bind(`
		INSERT INTO game_snapshots (game_id, sim_time_ns, saved_at, inventory, facilities, crafting_queue, research, extra)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(game_id) DO UPDATE SET
			sim_time_ns=excluded.sim_time_ns,
			saved_at=excluded.saved_at,
			inventory=excluded.inventory,
			facilities=excluded.facilities,
			crafting_queue=excluded.crafting_queue,
			research=excluded.research,
			extra=excluded.extra
	`)
	_, err = r.db.ExecContext(ctx, query,
		gameID, int64(snap.SimTime), savedAt.UTC(), cols[0], cols[1], cols[2], cols[3], cols[4])
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (r *SQLSnapshotRepository) Load(ctx context.Context, gameID string) (*engine.GameSnapshot, error) {
	query := r.dialect.bind(`SELECT sim_time_ns, saved_at, inventory, facilities, crafting_queue, research, extra
		FROM game_snapshots WHERE game_id = ?`)
	var (
		simTime                                     int64
		snap                                        engine.GameSnapshot
		inventory, facilities, queue, research, xtr string
	)
	err := r.db.QueryRowContext(ctx, query, gameID).Scan(
		&simTime, &snap.SavedAt, &inventory, &facilities, &queue, &research, &xtr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	snap.SimTime = time.Duration(simTime)

	var extra snapshotExtra
	targets := []struct {
		name string
		raw  string
		dst  interface{}
	}{
		{"inventory", inventory, &snap.Inventory},
		{"facilities", facilities, &snap.Facilities},
		{"crafting_queue", queue, &snap.CraftingQueue},
		{"research", research, &snap.Research},
		{"extra", xtr, &extra},
	}
	for _, t := range targets {
		if err := json.Unmarshal([]byte(t.raw), t.dst); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot %s: %w", t.name, err)
		}
	}
	snap.Containers = extra.Containers
	snap.Chains = extra.Chains
	snap.Stats = extra.Stats
	return &snap, nil
}

func (r *SQLSnapshotRepository) Delete(ctx context.Context, gameID string) error {
	_, err := r.db.ExecContext(ctx, r.dialect.bind(`DELETE FROM game_snapshots WHERE game_id = ?`), gameID)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

var _ SnapshotRepository = (*SQLSnapshotRepository)(nil)
