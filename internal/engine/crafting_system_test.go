package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MRamiBalles/factorysim/internal/domain/crafting"
	"github.com/MRamiBalles/factorysim/internal/domain/item"
	"github.com/MRamiBalles/factorysim/internal/events"
	"github.com/MRamiBalles/factorysim/internal/platform/logger"
)

const frame = 100 * time.Millisecond

func TestGearCraftTakesOneSecond(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.UpdateInventory("iron-plate", 10)
	require.NoError(t, err)

	require.True(t, e.AddCraftingTask(crafting.Spec{Kind: crafting.RecipeKind("iron-gear-wheel"), Quantity: 1}))

	tickFor(e, time.Second, frame)
	assert.Equal(t, 0.0, stock(t, e, "iron-gear-wheel"), "0.5s recipe at manual efficiency needs a full second")

	tickFor(e, 500*time.Millisecond, frame)
	assert.Equal(t, 8.0, stock(t, e, "iron-plate"))
	assert.Equal(t, 1.0, stock(t, e, "iron-gear-wheel"))
	assert.Empty(t, e.SnapshotCraftingQueue())
}

func TestOnlyTheHeadTaskIsActive(t *testing.T) {
	e := newTestEngine(t)
	e.BatchUpdateInventory([]item.Stack{{Item: "iron-plate", Amount: 10}, {Item: "copper-plate", Amount: 10}})
	require.True(t, e.AddCraftingTask(crafting.Spec{Kind: crafting.RecipeKind("iron-gear-wheel"), Quantity: 2}))
	require.True(t, e.AddCraftingTask(crafting.Spec{Kind: crafting.RecipeKind("copper-cable"), Quantity: 1}))

	for i := 0; i < 40; i++ {
		e.Tick(frame)
		active := 0
		for _, task := range e.SnapshotCraftingQueue() {
			if task.Status == crafting.StatusCrafting {
				active++
			}
		}
		require.LessOrEqual(t, active, 1, "tick %d", i)
	}
}

func TestAddMergesIntoPendingTail(t *testing.T) {
	e := newTestEngine(t)
	gear := crafting.Spec{Kind: crafting.RecipeKind("iron-gear-wheel"), Quantity: 1}

	first, err := e.TryAddCraftingTask(gear)
	require.NoError(t, err)
	merged, err := e.TryAddCraftingTask(crafting.Spec{Kind: gear.Kind, Quantity: 2})
	require.NoError(t, err)

	assert.Equal(t, first.ID, merged.ID)
	assert.Equal(t, 3, merged.Quantity)
	assert.Equal(t, 3*time.Second, merged.CraftingTime)
	require.Len(t, e.SnapshotCraftingQueue(), 1)

	e.Tick(frame) // head starts, no more merging
	after, err := e.TryAddCraftingTask(gear)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, after.ID)
	assert.Len(t, e.SnapshotCraftingQueue(), 2)
}

func TestRejectedTasks(t *testing.T) {
	e := newTestEngine(t, WithSettings(Settings{MaxQueueLength: 2}))

	_, err := e.TryAddCraftingTask(crafting.Spec{Kind: crafting.RecipeKind("iron-gear-wheel"), Quantity: 0})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = e.TryAddCraftingTask(crafting.Spec{Kind: crafting.RecipeKind("flux-capacitor"), Quantity: 1})
	assert.ErrorIs(t, err, ErrUnknownRecipe)
	_, err = e.TryAddCraftingTask(crafting.Spec{Kind: crafting.ManualKind("flux"), Quantity: 1})
	assert.ErrorIs(t, err, ErrUnknownItem)

	require.True(t, e.AddCraftingTask(crafting.Spec{Kind: crafting.RecipeKind("iron-gear-wheel"), Quantity: 1}))
	require.True(t, e.AddCraftingTask(crafting.Spec{Kind: crafting.RecipeKind("copper-cable"), Quantity: 1}))
	_, err = e.TryAddCraftingTask(crafting.Spec{Kind: crafting.RecipeKind("electronic-circuit"), Quantity: 1})
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestRawItemIsGatheredInstantly(t *testing.T) {
	e := NewEngine(workshopCatalog(t), events.NewEventLog(nil), logger.Discard())
	require.True(t, e.AddCraftingTask(crafting.Spec{Kind: crafting.ManualKind("sand"), Quantity: 3}))

	e.Tick(frame)
	assert.Equal(t, 3.0, stock(t, e, "sand"))
	assert.Empty(t, e.SnapshotCraftingQueue())
}

func TestManualCraftPrefersMiningThenRecycling(t *testing.T) {
	e := NewEngine(workshopCatalog(t), events.NewEventLog(nil), logger.Discard())
	e.BatchUpdateInventory([]item.Stack{
		{Item: "sand", Amount: 10},
		{Item: "scrap", Amount: 1},
		{Item: "ore", Amount: 5},
	})

	require.True(t, e.AddCraftingTask(crafting.Spec{Kind: crafting.ManualKind("glass"), Quantity: 1}))
	require.True(t, e.AddCraftingTask(crafting.Spec{Kind: crafting.ManualKind("metal"), Quantity: 1}))
	tickFor(e, 5*time.Second, frame)

	assert.Equal(t, 1.0, stock(t, e, "glass"))
	assert.Equal(t, 0.0, stock(t, e, "scrap"), "recycling recipe was used")
	assert.Equal(t, 10.0, stock(t, e, "sand"))
	assert.Equal(t, 1.0, stock(t, e, "metal"))
	assert.Equal(t, 5.0, stock(t, e, "ore"), "mining recipe was used")
}

func TestSoftCraftClampsMissingInputs(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.UpdateInventory("iron-plate", 1)
	require.NoError(t, err)
	require.True(t, e.AddCraftingTask(crafting.Spec{Kind: crafting.RecipeKind("iron-gear-wheel"), Quantity: 1}))

	tickFor(e, 1500*time.Millisecond, frame)
	assert.Equal(t, 1.0, stock(t, e, "iron-gear-wheel"))
	assert.Equal(t, 0.0, stock(t, e, "iron-plate"))
}

func TestStrictCraftWaitsForInputs(t *testing.T) {
	e := newTestEngine(t, WithSettings(Settings{StrictCrafting: true}))
	_, err := e.UpdateInventory("iron-plate", 1)
	require.NoError(t, err)
	require.True(t, e.AddCraftingTask(crafting.Spec{Kind: crafting.RecipeKind("iron-gear-wheel"), Quantity: 1}))

	tickFor(e, 3*time.Second, frame)
	assert.Equal(t, 0.0, stock(t, e, "iron-gear-wheel"))
	queue := e.SnapshotCraftingQueue()
	require.Len(t, queue, 1)
	assert.Equal(t, 100.0, queue[0].Progress)

	_, err = e.UpdateInventory("iron-plate", 1)
	require.NoError(t, err)
	e.Tick(frame)
	assert.Equal(t, 1.0, stock(t, e, "iron-gear-wheel"))
	assert.Equal(t, 0.0, stock(t, e, "iron-plate"))
}

func TestChainCraftsIntermediatesFirst(t *testing.T) {
	e := newTestEngine(t)
	e.BatchUpdateInventory([]item.Stack{{Item: "iron-plate", Amount: 1}, {Item: "copper-plate", Amount: 2}})

	chainID, err := e.AddCraftingChain("electronic-circuit", 1)
	require.NoError(t, err)

	queue := e.SnapshotCraftingQueue()
	require.Len(t, queue, 2)
	assert.Equal(t, crafting.RecipeKind("copper-cable"), queue[0].Kind)
	assert.Equal(t, 2, queue[0].Quantity)
	assert.Equal(t, crafting.RecipeKind("electronic-circuit"), queue[1].Kind)
	assert.True(t, queue[1].Final)
	for _, task := range queue {
		assert.Equal(t, chainID, task.ChainID)
	}
	assert.Equal(t, 0.0, stock(t, e, "iron-plate"), "stock ingredients are reserved up front")
	assert.Equal(t, 0.0, stock(t, e, "copper-plate"))

	tickFor(e, 4*time.Second, frame)
	assert.Equal(t, 1.0, stock(t, e, "electronic-circuit"))
	assert.Equal(t, 1.0, stock(t, e, "copper-cable"), "surplus intermediate is released")
	assert.Empty(t, e.SnapshotCraftingQueue())
	assert.Empty(t, e.Snapshot().Chains)
}

func TestChainWithUnobtainableInputDeductsNothing(t *testing.T) {
	e := NewEngine(workshopCatalog(t), events.NewEventLog(nil), logger.Discard())
	_, err := e.UpdateInventory("glass", 1)
	require.NoError(t, err)

	_, err = e.AddCraftingChain("lens", 1)
	assert.ErrorIs(t, err, ErrInsufficientMaterials)
	assert.Equal(t, 1.0, stock(t, e, "glass"))
	assert.Empty(t, e.SnapshotCraftingQueue())
}

func TestCancelChainRefundsReservations(t *testing.T) {
	e := newTestEngine(t)
	e.BatchUpdateInventory([]item.Stack{{Item: "iron-plate", Amount: 1}, {Item: "copper-plate", Amount: 2}})
	_, err := e.AddCraftingChain("electronic-circuit", 1)
	require.NoError(t, err)

	tickFor(e, 500*time.Millisecond, frame)
	queue := e.SnapshotCraftingQueue()
	require.Len(t, queue, 2)
	require.True(t, e.RemoveCraftingTask(queue[0].ID))

	assert.Empty(t, e.SnapshotCraftingQueue(), "cancelling one step cancels the chain")
	assert.Equal(t, 1.0, stock(t, e, "iron-plate"))
	assert.Equal(t, 2.0, stock(t, e, "copper-plate"))
}

func TestCancelChainKeepsCompletedOutput(t *testing.T) {
	e := newTestEngine(t)
	e.BatchUpdateInventory([]item.Stack{{Item: "iron-plate", Amount: 1}, {Item: "copper-plate", Amount: 2}})
	_, err := e.AddCraftingChain("electronic-circuit", 1)
	require.NoError(t, err)

	tickFor(e, 2100*time.Millisecond, frame) // cable step done
	queue := e.SnapshotCraftingQueue()
	require.Len(t, queue, 1)
	require.True(t, e.RemoveCraftingTask(queue[0].ID))

	assert.Equal(t, 4.0, stock(t, e, "copper-cable"))
	assert.Equal(t, 1.0, stock(t, e, "iron-plate"))
	assert.Equal(t, 0.0, stock(t, e, "copper-plate"))
	assert.Equal(t, 0.0, stock(t, e, "electronic-circuit"))
}

func TestRemoveUnknownTask(t *testing.T) {
	e := newTestEngine(t)
	assert.False(t, e.RemoveCraftingTask("nope"))
}

func TestCraftEventsAreJournaled(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.UpdateInventory("iron-plate", 2)
	require.NoError(t, err)
	require.True(t, e.AddCraftingTask(crafting.Spec{Kind: crafting.RecipeKind("iron-gear-wheel"), Quantity: 1}))
	tickFor(e, 1500*time.Millisecond, frame)

	el := e.GetEventLog()
	require.Len(t, el.GetByType(events.EventTypeCraftStarted), 1)
	done := el.GetByType(events.EventTypeCraftCompleted)
	require.Len(t, done, 1)
	payload, ok := done[0].Payload.(CraftPayload)
	require.True(t, ok)
	assert.Equal(t, 1, payload.Quantity)
	assert.Equal(t, 1100*time.Millisecond, done[0].SimTime)
}

func TestFacilityOnlyRecipesCannotBeHandCrafted(t *testing.T) {
	e := newTestEngine(t)
	e.BatchUpdateInventory([]item.Stack{{Item: "stone", Amount: 10}, {Item: "coal", Amount: 10}})

	for _, kind := range []crafting.Kind{
		crafting.ManualKind("stone-brick"),
		crafting.RecipeKind("stone-brick"),
		crafting.ManualKind("solid-fuel"),
		crafting.RecipeKind("solid-fuel"),
	} {
		_, err := e.TryAddCraftingTask(crafting.Spec{Kind: kind, Quantity: 1})
		assert.ErrorIs(t, err, ErrUnknownRecipe, kind.String())
	}
	_, err := e.AddCraftingChain("stone-brick", 1)
	assert.ErrorIs(t, err, ErrUnknownRecipe)

	tickFor(e, 20*time.Second, frame)
	assert.Empty(t, e.SnapshotCraftingQueue())
	assert.Equal(t, 10.0, stock(t, e, "stone"))
	assert.Equal(t, 0.0, stock(t, e, "stone-brick"))
}
