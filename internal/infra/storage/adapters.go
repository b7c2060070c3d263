package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MRamiBalles/factorysim/internal/engine"
	"github.com/MRamiBalles/factorysim/internal/events"
)

// persistTimeout bounds one journal write.
const persistTimeout = 5 * time.Second

// SnapshotSaver adapts a SnapshotRepository to engine.Saver for one game.
type SnapshotSaver struct {
	repo   SnapshotRepository
	gameID string
}

func NewSnapshotSaver(repo SnapshotRepository, gameID string) *SnapshotSaver {
	return &SnapshotSaver{repo: repo, gameID: gameID}
}

func (s *SnapshotSaver) Save(ctx context.Context, snap engine.GameSnapshot) error {
	return s.repo.Save(ctx, s.gameID, snap)
}

var _ engine.Saver = (*SnapshotSaver)(nil)

// JournalPersister adapts an EventRepository to events.EventPersister.
type JournalPersister struct {
	repo   EventRepository
	gameID string
}

func NewJournalPersister(repo EventRepository, gameID string) *JournalPersister {
	return &JournalPersister{repo: repo, gameID: gameID}
}

func (p *JournalPersister) Append(event events.GameEvent) error {
	row, err := FromJournal(p.gameID, event)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	return p.repo.Append(ctx, row)
}

var _ events.EventPersister = (*JournalPersister)(nil)

// FromJournal converts a journal event into its stored form.
func FromJournal(gameID string, e events.GameEvent) (GameEvent, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return GameEvent{}, fmt.Errorf("failed to marshal payload of %s: %w", e.ID, err)
	}
	return GameEvent{
		ID:        e.ID,
		GameID:    gameID,
		Seq:       e.Seq,
		Timestamp: e.Timestamp,
		SimTimeNS: int64(e.SimTime),
		EventType: string(e.Type),
		ActorID:   e.ActorID,
		TargetID:  e.TargetID,
		Payload:   payload,
	}, nil
}
