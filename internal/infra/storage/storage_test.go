package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MRamiBalles/factorysim/internal/domain/crafting"
	"github.com/MRamiBalles/factorysim/internal/domain/item"
	"github.com/MRamiBalles/factorysim/internal/engine"
	"github.com/MRamiBalles/factorysim/internal/events"
	"github.com/MRamiBalles/factorysim/internal/gamedata"
	"github.com/MRamiBalles/factorysim/internal/platform/logger"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(context.Background(), Config{Type: "sqlite", Path: filepath.Join(t.TempDir(), "game.db")})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func newEngine(t *testing.T, opts ...engine.Option) *engine.Engine {
	t.Helper()
	cat, err := gamedata.Default()
	require.NoError(t, err)
	return engine.NewEngine(cat, events.NewEventLog(nil), logger.Discard(), opts...)
}

func tick(e *engine.Engine, total time.Duration) {
	for elapsed := time.Duration(0); elapsed < total; elapsed += 100 * time.Millisecond {
		e.Tick(100 * time.Millisecond)
	}
}

func TestSnapshotRoundTripThroughSQLite(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	e := newEngine(t)
	e.BatchUpdateInventory([]item.Stack{
		{Item: "iron-ore", Amount: 10},
		{Item: "coal", Amount: 10},
		{Item: "iron-plate", Amount: 6},
	})
	_, err := e.AddFacility(engine.FacilitySpec{FacilityID: "stone-furnace", TargetItemID: "iron-plate"})
	require.NoError(t, err)
	require.True(t, e.AddCraftingTask(crafting.Spec{Kind: crafting.RecipeKind("iron-gear-wheel"), Quantity: 3}))
	tick(e, 3*time.Second)

	saver := NewSnapshotSaver(st.Snapshots, "game-1")
	require.NoError(t, saver.Save(ctx, e.Snapshot()))

	restored := newEngine(t)
	ok, err := NewReconstructor(st.Snapshots, st.Events).Resume(ctx, "game-1", restored)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, e.Now(), restored.Now())
	assert.Equal(t, e.SnapshotInventory(), restored.SnapshotInventory())
	assert.Equal(t, e.SnapshotFacilities(), restored.SnapshotFacilities())
	assert.Equal(t, e.SnapshotCraftingQueue(), restored.SnapshotCraftingQueue())

	tick(e, 5*time.Second)
	tick(restored, 5*time.Second)
	assert.Equal(t, e.SnapshotInventory(), restored.SnapshotInventory())
}

func TestSaveReplacesPreviousSnapshot(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.Snapshots.Save(ctx, "g", engine.GameSnapshot{SimTime: time.Second}))
	require.NoError(t, st.Snapshots.Save(ctx, "g", engine.GameSnapshot{SimTime: 2 * time.Second}))

	snap, err := st.Snapshots.Load(ctx, "g")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 2*time.Second, snap.SimTime)

	require.NoError(t, st.Snapshots.Delete(ctx, "g"))
	snap, err = st.Snapshots.Load(ctx, "g")
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestResumeWithoutSnapshot(t *testing.T) {
	st := openTestStore(t)
	ok, err := NewReconstructor(st.Snapshots, st.Events).Resume(context.Background(), "missing", newEngine(t))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestJournalPersisterStoresEngineEvents(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	cat, err := gamedata.Default()
	require.NoError(t, err)
	el := events.NewEventLog(NewJournalPersister(st.Events, "game-1"))
	e := engine.NewEngine(cat, el, logger.Discard())
	e.BatchUpdateInventory([]item.Stack{{Item: "iron-plate", Amount: 4}})
	require.True(t, e.AddCraftingTask(crafting.Spec{Kind: crafting.RecipeKind("iron-gear-wheel"), Quantity: 1}))
	tick(e, 2*time.Second)
	el.Close()

	stored, err := st.Events.GetByGameID(ctx, "game-1")
	require.NoError(t, err)
	require.Len(t, stored, int(el.LastSeq()))
	for i := 1; i < len(stored); i++ {
		assert.Greater(t, stored[i].Seq, stored[i-1].Seq)
	}

	done, err := st.Events.GetByEventType(ctx, "game-1", string(events.EventTypeCraftCompleted))
	require.NoError(t, err)
	require.Len(t, done, 1)
	var payload engine.CraftPayload
	require.NoError(t, json.Unmarshal(done[0].Payload, &payload))
	assert.Equal(t, item.ID("iron-gear-wheel"), payload.ItemID)
	assert.Equal(t, (1100 * time.Millisecond).Nanoseconds(), done[0].SimTimeNS)

	byPlayer, err := st.Events.GetByActorID(ctx, "game-1", "player")
	require.NoError(t, err)
	assert.Len(t, byPlayer, 2) // started, completed
}

func TestRecapSummarizesEventsAfterSnapshot(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	for i, e := range []events.GameEvent{
		{Seq: 1, ID: "a", SimTime: time.Second, Type: events.EventTypeFacilityPlaced, TargetID: "f1"},
		{Seq: 2, ID: "b", SimTime: 3 * time.Second, Type: events.EventTypeCraftCompleted,
			Payload: engine.CraftPayload{ItemID: "iron-gear-wheel", Quantity: 2}},
		{Seq: 3, ID: "c", SimTime: 4 * time.Second, Type: events.EventTypeResearchCompleted, TargetID: "automation"},
	} {
		e.Timestamp = time.Unix(int64(i), 0)
		row, err := FromJournal("g", e)
		require.NoError(t, err)
		require.NoError(t, st.Events.Append(ctx, row))
	}

	recap, err := NewReconstructor(st.Snapshots, st.Events).Recap(ctx, "g", 2*time.Second)
	require.NoError(t, err)
	require.Len(t, recap, 2)
	assert.Equal(t, "Crafted iron-gear-wheel x2", recap[0].Summary)
	assert.Equal(t, 3*time.Second, recap[0].SimTime)
	assert.Equal(t, "Research automation completed", recap[1].Summary)

	other, err := st.Events.GetSince(ctx, "other", 0)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestBindRewritesPlaceholdersForPostgres(t *testing.T) {
	q := `SELECT * FROM events WHERE game_id = ? AND seq > ?`
	assert.Equal(t, q, sqliteDialect.bind(q))
	assert.Equal(t, `SELECT * FROM events WHERE game_id = $1 AND seq > $2`, postgresDialect.bind(q))
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), Config{Type: "mongo"})
	assert.Error(t, err)
}
