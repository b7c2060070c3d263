package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MRamiBalles/factorysim/internal/domain/facility"
	"github.com/MRamiBalles/factorysim/internal/domain/item"
	"github.com/MRamiBalles/factorysim/internal/domain/recipe"
	"github.com/MRamiBalles/factorysim/internal/events"
)

func place(t *testing.T, e *Engine, spec FacilitySpec) facility.Instance {
	t.Helper()
	inst, err := e.AddFacility(spec)
	require.NoError(t, err)
	return inst
}

func TestFurnaceCarriesProgressOver(t *testing.T) {
	e := newTestEngine(t)
	e.BatchUpdateInventory([]item.Stack{{Item: "iron-ore", Amount: 10}, {Item: "coal", Amount: 10}})
	furnace := place(t, e, FacilitySpec{FacilityID: "stone-furnace", TargetItemID: "iron-plate"})

	tickFor(e, 3*time.Second, time.Second)
	assert.Equal(t, 0.0, stock(t, e, "iron-plate"))

	e.Tick(time.Second)
	got := facilityByID(t, e, furnace.ID)
	assert.Equal(t, 1.0, stock(t, e, "iron-plate"))
	assert.Equal(t, 9.0, stock(t, e, "iron-ore"))
	assert.InDelta(t, 0.25, got.Production.Progress, 1e-9)
	assert.Equal(t, facility.StatusRunning, got.Status)
	assert.Equal(t, 5.0, stock(t, e, "coal"), "auto refuel tops the furnace up to five units")
}

func TestFacilityCountScalesCycle(t *testing.T) {
	e := newTestEngine(t)
	e.BatchUpdateInventory([]item.Stack{{Item: "iron-ore", Amount: 10}, {Item: "coal", Amount: 10}})
	place(t, e, FacilitySpec{FacilityID: "stone-furnace", TargetItemID: "iron-plate", Count: 2})

	tickFor(e, 4*time.Second, time.Second)
	assert.Equal(t, 2.0, stock(t, e, "iron-plate"))
	assert.Equal(t, 8.0, stock(t, e, "iron-ore"))
}

func TestDrillStopsWhenOutputIsFullAndResumes(t *testing.T) {
	e := newTestEngine(t)
	e.BatchUpdateInventory([]item.Stack{{Item: "iron-ore", Amount: 50}, {Item: "coal", Amount: 10}})
	drill := place(t, e, FacilitySpec{FacilityID: "burner-mining-drill", TargetItemID: "iron-ore"})

	tickFor(e, 6*time.Second, time.Second)
	got := facilityByID(t, e, drill.ID)
	assert.Equal(t, facility.StatusOutputFull, got.Status)
	assert.Equal(t, 1.0, got.Production.Progress)
	assert.Equal(t, 50.0, stock(t, e, "iron-ore"))

	_, err := e.UpdateInventory("iron-ore", -10)
	require.NoError(t, err)
	e.Tick(time.Second)
	got = facilityByID(t, e, drill.ID)
	assert.Equal(t, facility.StatusRunning, got.Status)
	assert.Equal(t, 41.0, stock(t, e, "iron-ore"))
	assert.Equal(t, 0.0, got.Production.Progress)
}

func TestMissingInputsAndFuel(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.UpdateInventory("iron-ore", 5)
	require.NoError(t, err)
	furnace := place(t, e, FacilitySpec{FacilityID: "stone-furnace", TargetItemID: "iron-plate"})

	e.Tick(time.Second)
	assert.Equal(t, facility.StatusNoFuel, facilityByID(t, e, furnace.ID).Status)

	_, err = e.UpdateInventory("coal", 10)
	require.NoError(t, err)
	e.Tick(time.Second)
	got := facilityByID(t, e, furnace.ID)
	assert.Equal(t, facility.StatusRunning, got.Status)
	assert.Equal(t, 5.0, stock(t, e, "coal"))
	require.NotNil(t, got.Fuel)
	assert.Equal(t, 5, got.Fuel.Units())

	_, err = e.UpdateInventory("iron-ore", -5)
	require.NoError(t, err)
	e.Tick(time.Second)
	assert.Equal(t, facility.StatusNoInput, facilityByID(t, e, furnace.ID).Status)

	changes := e.GetEventLog().GetByType(events.EventTypeFacilityStatusChanged)
	assert.GreaterOrEqual(t, len(changes), 3)
}

func TestUntargetedFacilityWaitsForInput(t *testing.T) {
	e := newTestEngine(t)
	inst := place(t, e, FacilitySpec{FacilityID: "assembling-machine-1"})
	assert.Equal(t, facility.StatusNoInput, inst.Status)

	_, err := e.AddFacility(FacilitySpec{FacilityID: "stone-furnace", TargetItemID: "iron-gear-wheel"})
	assert.ErrorIs(t, err, ErrUnknownRecipe, "furnaces cannot make gears")
	_, err = e.AddFacility(FacilitySpec{FacilityID: "fusion-reactor"})
	assert.ErrorIs(t, err, ErrUnknownFacility)
	_, err = e.AddFacility(FacilitySpec{FacilityID: "wooden-chest"})
	assert.Error(t, err, "containers need a target")
}

func TestPowerDeficitSlowsConsumers(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.UpdateInventory("iron-plate", 100)
	require.NoError(t, err)
	a := place(t, e, FacilitySpec{FacilityID: "assembling-machine-1", TargetItemID: "iron-gear-wheel"})
	place(t, e, FacilitySpec{FacilityID: "assembling-machine-1", TargetItemID: "iron-gear-wheel"})
	place(t, e, FacilitySpec{FacilityID: "solar-panel"})

	e.Tick(time.Second)
	b := e.PowerBalance()
	assert.Equal(t, 60.0, b.Generation)
	assert.Equal(t, 150.0, b.Consumption)
	assert.Equal(t, 90.0, b.Deficit)
	assert.InDelta(t, 0.4, b.Satisfaction, 1e-9)

	got := facilityByID(t, e, a.ID)
	assert.InDelta(t, 0.4, got.Efficiency, 1e-9)
	assert.InDelta(t, 0.4, got.Production.Progress, 1e-9)
}

func TestUnpoweredAssemblerNeverCompletes(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.UpdateInventory("iron-plate", 100)
	require.NoError(t, err)
	a := place(t, e, FacilitySpec{FacilityID: "assembling-machine-1", TargetItemID: "iron-gear-wheel"})

	tickFor(e, 10*time.Second, time.Second)
	assert.Equal(t, 0.0, stock(t, e, "iron-gear-wheel"))
	assert.Equal(t, 0.0, facilityByID(t, e, a.ID).Efficiency)
}

func TestChestExtendsCapacity(t *testing.T) {
	e := newTestEngine(t)
	chest := place(t, e, FacilitySpec{FacilityID: "wooden-chest", TargetItemID: "iron-plate"})

	applied, err := e.UpdateInventory("iron-plate", 2000)
	require.NoError(t, err)
	assert.Equal(t, 1700.0, applied)
	assert.Equal(t, 1700.0, e.SnapshotInventory()["iron-plate"].MaxCapacity)

	require.NoError(t, e.RemoveFacility(chest.ID))
	inv := e.SnapshotInventory()["iron-plate"]
	assert.Equal(t, 100.0, inv.MaxCapacity)
	assert.Equal(t, 100.0, inv.CurrentAmount)
}

func TestRemoveReturnsWholeFuelUnits(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.UpdateInventory("coal", 5)
	require.NoError(t, err)
	furnace := place(t, e, FacilitySpec{FacilityID: "stone-furnace", TargetItemID: "iron-plate"})

	accepted, err := e.TryRefuelFacility(furnace.ID, "coal", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, accepted)
	assert.Equal(t, 0.0, stock(t, e, "coal"))

	require.NoError(t, e.RemoveFacility(furnace.ID))
	assert.Equal(t, 5.0, stock(t, e, "coal"))
	assert.Empty(t, e.SnapshotFacilities())
	assert.ErrorIs(t, e.RemoveFacility(furnace.ID), ErrUnknownFacility)
}

func TestUpdateFacilityRetargets(t *testing.T) {
	e := newTestEngine(t)
	furnace := place(t, e, FacilitySpec{FacilityID: "stone-furnace", TargetItemID: "iron-plate"})
	assert.Equal(t, recipe.ID("iron-plate"), furnace.Production.CurrentRecipeID)

	copper := item.ID("copper-plate")
	got, err := e.UpdateFacility(furnace.ID, FacilityUpdate{TargetItemID: &copper})
	require.NoError(t, err)
	assert.Equal(t, recipe.ID("copper-plate"), got.Production.CurrentRecipeID)
	assert.Equal(t, 0.0, got.Production.Progress)

	two := 2
	got, err = e.UpdateFacility(furnace.ID, FacilityUpdate{Count: &two})
	require.NoError(t, err)
	assert.Equal(t, 2.0, got.Production.InputBuffer["copper-ore"])

	gear := item.ID("iron-gear-wheel")
	_, err = e.UpdateFacility(furnace.ID, FacilityUpdate{TargetItemID: &gear})
	assert.ErrorIs(t, err, ErrUnknownRecipe)
	assert.Equal(t, copper, facilityByID(t, e, furnace.ID).TargetItemID, "failed update leaves the facility alone")
}

func TestSteamEngineBurnsAtLoad(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.UpdateInventory("coal", 20)
	require.NoError(t, err)
	engineInst := place(t, e, FacilitySpec{FacilityID: "steam-engine"})
	_, err = e.UpdateInventory("iron-plate", 100)
	require.NoError(t, err)
	place(t, e, FacilitySpec{FacilityID: "assembling-machine-1", TargetItemID: "iron-gear-wheel"})

	e.Tick(time.Second) // refuels, generator not yet counted
	e.Tick(time.Second)
	b := e.PowerBalance()
	assert.Equal(t, 900.0, b.Generation)
	assert.Equal(t, 1.0, b.Satisfaction)

	got := facilityByID(t, e, engineInst.ID)
	assert.InDelta(t, 75.0/900.0, got.Efficiency, 1e-9)
	status, ok := e.FuelStatus(engineInst.ID)
	require.True(t, ok)
	assert.Less(t, status.TotalEnergy, 20.0)
}
