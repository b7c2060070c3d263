package engine

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MRamiBalles/factorysim/internal/domain/crafting"
	"github.com/MRamiBalles/factorysim/internal/domain/facility"
	"github.com/MRamiBalles/factorysim/internal/domain/item"
	"github.com/MRamiBalles/factorysim/internal/events"
	"github.com/MRamiBalles/factorysim/internal/gamedata"
	"github.com/MRamiBalles/factorysim/internal/platform/logger"
)

type lazyCatalog struct {
	gamedata.Catalog
	ready atomic.Bool
}

func (c *lazyCatalog) Ready() bool { return c.ready.Load() }

type memorySaver struct {
	mu    sync.Mutex
	saved []GameSnapshot
}

func (s *memorySaver) Save(_ context.Context, snap GameSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, snap)
	return nil
}

func (s *memorySaver) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

type countingRecorder struct {
	nopRecorder
	crafts   int
	cycles   int
	statuses map[facility.Status]int
}

func (r *countingRecorder) CraftCompleted(item.ID, int) { r.crafts++ }
func (r *countingRecorder) ProductionCycle(string) { r.cycles++ }
func (r *countingRecorder) FacilityStatuses(c map[facility.Status]int) {
	r.statuses = c
}

func TestSubsystemsWaitForGameData(t *testing.T) {
	cat := &lazyCatalog{Catalog: defaultCatalog(t)}
	e := NewEngine(cat, events.NewEventLog(nil), logger.Discard())
	require.False(t, e.DataReady())

	_, err := e.UpdateInventory("iron-plate", 2)
	require.NoError(t, err)
	require.True(t, e.AddCraftingTask(crafting.Spec{Kind: crafting.RecipeKind("iron-gear-wheel"), Quantity: 1}))
	tickFor(e, 2*time.Second, frame)
	assert.Equal(t, crafting.StatusPending, e.SnapshotCraftingQueue()[0].Status)

	cat.ready.Store(true)
	tickFor(e, 1500*time.Millisecond, frame)
	assert.True(t, e.DataReady())
	assert.Equal(t, 1.0, stock(t, e, "iron-gear-wheel"))
	assert.Len(t, e.GetEventLog().GetByType(events.EventTypeDataReady), 1)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	e.BatchUpdateInventory([]item.Stack{
		{Item: "iron-ore", Amount: 20},
		{Item: "coal", Amount: 20},
		{Item: "iron-plate", Amount: 4},
		{Item: "automation-science-pack", Amount: 10},
	})
	place(t, e, FacilitySpec{FacilityID: "stone-furnace", TargetItemID: "iron-plate"})
	place(t, e, FacilitySpec{FacilityID: "wooden-chest", TargetItemID: "iron-plate"})
	require.True(t, e.AddCraftingTask(crafting.Spec{Kind: crafting.RecipeKind("iron-gear-wheel"), Quantity: 2}))
	require.NoError(t, e.StartResearch("automation"))
	tickFor(e, 5*time.Second, frame)

	snap := e.Snapshot()
	raw, err := json.Marshal(snap)
	require.NoError(t, err)
	var decoded GameSnapshot
	require.NoError(t, json.Unmarshal(raw, &decoded))

	restored := newTestEngine(t)
	require.NoError(t, restored.Restore(decoded))
	assert.Equal(t, snap.SimTime, restored.Now())
	assert.Equal(t, e.SnapshotInventory(), restored.SnapshotInventory())
	assert.Equal(t, e.SnapshotFacilities(), restored.SnapshotFacilities())
	assert.Equal(t, e.SnapshotCraftingQueue(), restored.SnapshotCraftingQueue())
	assert.Equal(t, e.SnapshotResearch(), restored.SnapshotResearch())

	// Both games keep evolving identically.
	tickFor(e, 10*time.Second, frame)
	tickFor(restored, 10*time.Second, frame)
	assert.Equal(t, e.SnapshotInventory(), restored.SnapshotInventory())
	assert.Equal(t, e.SnapshotResearch().Completed, restored.SnapshotResearch().Completed)
}

func TestRestoreRejectsNegativeClock(t *testing.T) {
	e := newTestEngine(t)
	assert.Error(t, e.Restore(GameSnapshot{SimTime: -time.Second}))
}

func TestAutosaveHandsSnapshotsToSaver(t *testing.T) {
	saver := &memorySaver{}
	e := newTestEngine(t, WithSaver(saver))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Start(ctx)

	tickFor(e, 10*time.Second, time.Second)
	assert.Eventually(t, func() bool { return saver.count() == 1 }, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return len(e.GetEventLog().GetByType(events.EventTypeGameSaved)) == 1
	}, time.Second, 10*time.Millisecond)

	e.Close()
	tickFor(e, 10*time.Second, time.Second) // offering after Close is a no-op
	assert.Equal(t, 1, saver.count())
}

func TestRecorderSeesCompletions(t *testing.T) {
	rec := &countingRecorder{}
	e := newTestEngine(t, WithRecorder(rec))
	e.BatchUpdateInventory([]item.Stack{{Item: "iron-plate", Amount: 2}, {Item: "coal", Amount: 10}, {Item: "iron-ore", Amount: 5}})
	place(t, e, FacilitySpec{FacilityID: "stone-furnace", TargetItemID: "iron-plate"})
	require.True(t, e.AddCraftingTask(crafting.Spec{Kind: crafting.RecipeKind("iron-gear-wheel"), Quantity: 1}))

	tickFor(e, 4*time.Second, frame)
	assert.Equal(t, 1, rec.crafts)
	assert.Equal(t, 1, rec.cycles)
	assert.Equal(t, 1, rec.statuses[facility.StatusRunning])
}

func TestInvariantsHoldUnderLoad(t *testing.T) {
	e := newTestEngine(t)
	e.BatchUpdateInventory([]item.Stack{
		{Item: "coal", Amount: 50},
		{Item: "iron-ore", Amount: 50},
		{Item: "copper-ore", Amount: 50},
		{Item: "stone", Amount: 50},
	})
	place(t, e, FacilitySpec{FacilityID: "burner-mining-drill", TargetItemID: "coal", Count: 2})
	place(t, e, FacilitySpec{FacilityID: "burner-mining-drill", TargetItemID: "iron-ore", Count: 3})
	place(t, e, FacilitySpec{FacilityID: "stone-furnace", TargetItemID: "iron-plate", Count: 4})
	place(t, e, FacilitySpec{FacilityID: "stone-furnace", TargetItemID: "copper-plate", Count: 2})
	place(t, e, FacilitySpec{FacilityID: "assembling-machine-1", TargetItemID: "iron-gear-wheel"})
	place(t, e, FacilitySpec{FacilityID: "solar-panel"})

	frames := []time.Duration{16 * time.Millisecond, 33 * time.Millisecond, 250 * time.Millisecond, time.Second}
	for i := 0; i < 600; i++ {
		if i%50 == 0 {
			e.AddCraftingTask(crafting.Spec{Kind: crafting.RecipeKind("copper-cable"), Quantity: 3})
			e.AddCraftingTask(crafting.Spec{Kind: crafting.ManualKind("stone"), Quantity: 2})
		}
		e.Tick(frames[i%len(frames)])

		for id, it := range e.SnapshotInventory() {
			require.GreaterOrEqual(t, it.CurrentAmount, 0.0, "%s below zero", id)
			require.LessOrEqual(t, it.CurrentAmount, it.MaxCapacity+1e-9, "%s above capacity", id)
		}
		active := 0
		for _, task := range e.SnapshotCraftingQueue() {
			if task.Status == crafting.StatusCrafting {
				active++
			}
		}
		require.LessOrEqual(t, active, 1)
		for _, f := range e.SnapshotFacilities() {
			require.GreaterOrEqual(t, f.Production.Progress, 0.0)
			require.LessOrEqual(t, f.Production.Progress, 1.0+1e-9)
			if f.Fuel != nil {
				require.LessOrEqual(t, f.Fuel.TotalEnergy, f.Fuel.MaxEnergy+1e-9)
			}
		}
	}
	assert.Positive(t, stock(t, e, "iron-gear-wheel"))
}

func TestUnknownItemIsRejected(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.UpdateInventory("unobtainium", 5)
	assert.ErrorIs(t, err, ErrUnknownItem)
	applied := e.BatchUpdateInventory([]item.Stack{{Item: "unobtainium", Amount: 5}, {Item: "wood", Amount: 5}})
	assert.Equal(t, []float64{0, 5}, applied)
}

func TestNonFiniteInventoryDeltasAreRejected(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.UpdateInventory("iron-plate", 10)
	require.NoError(t, err)

	for _, delta := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		applied, err := e.UpdateInventory("iron-plate", delta)
		assert.ErrorIs(t, err, ErrInvalidQuantity)
		assert.Equal(t, 0.0, applied)
	}
	applied := e.BatchUpdateInventory([]item.Stack{
		{Item: "iron-plate", Amount: math.NaN()},
		{Item: "iron-plate", Amount: 5},
	})
	assert.Equal(t, []float64{0, 5}, applied)

	plate := e.SnapshotInventory()["iron-plate"]
	assert.Equal(t, 15.0, plate.CurrentAmount)
	assert.LessOrEqual(t, plate.CurrentAmount, plate.MaxCapacity)
}
