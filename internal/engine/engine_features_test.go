package engine

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"testing"
	"time"

	"github.com/cucumber/godog"

	"github.com/MRamiBalles/factorysim/internal/domain/crafting"
	"github.com/MRamiBalles/factorysim/internal/domain/facility"
	"github.com/MRamiBalles/factorysim/internal/domain/item"
	"github.com/MRamiBalles/factorysim/internal/domain/recipe"
	"github.com/MRamiBalles/factorysim/internal/events"
	"github.com/MRamiBalles/factorysim/internal/gamedata"
	"github.com/MRamiBalles/factorysim/internal/platform/logger"
)

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeSimulationScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}

type simulationContext struct {
	catalog  *gamedata.Memory
	engine   *Engine
	fuel     *FuelSystem
	fuelType facility.Type
	buffer   *facility.FuelBuffer

	recorded *GameSnapshot
}

func (sc *simulationContext) reset() error {
	cat, err := gamedata.Default()
	if err != nil {
		return err
	}
	sc.catalog = cat
	sc.engine = NewEngine(cat, events.NewEventLog(nil), logger.Discard())
	sc.fuel = NewFuelSystem(cat, NewInventorySystem(cat, nil, logger.Discard()), nil, logger.Discard(), DefaultSettings())
	sc.buffer = nil
	sc.recorded = nil
	return nil
}

func (sc *simulationContext) theInventoryHolds(amount float64, id string) error {
	_, err := sc.engine.UpdateInventory(item.ID(id), amount)
	return err
}

func (sc *simulationContext) areTakenFromTheInventory(amount float64, id string) error {
	_, err := sc.engine.UpdateInventory(item.ID(id), -amount)
	return err
}

func (sc *simulationContext) iQueueCraft(qty int, recipeID string) error {
	_, err := sc.engine.TryAddCraftingTask(crafting.Spec{Kind: crafting.RecipeKind(recipe.ID(recipeID)), Quantity: qty})
	return err
}

func (sc *simulationContext) iPlaceProducing(facilityID, target string) error {
	_, err := sc.engine.AddFacility(FacilitySpec{FacilityID: facilityID, TargetItemID: item.ID(target)})
	return err
}

func (sc *simulationContext) theSimulationRunsFor(seconds string, frameMS int) error {
	s, err := strconv.ParseFloat(seconds, 64)
	if err != nil {
		return err
	}
	total := time.Duration(s * float64(time.Second))
	tickFor(sc.engine, total, time.Duration(frameMS)*time.Millisecond)
	return nil
}

func (sc *simulationContext) theWorldIsRecorded() error {
	snap := sc.world()
	sc.recorded = &snap
	return nil
}

func (sc *simulationContext) theSimulationTicksZeroSeconds(times int) error {
	for i := 0; i < times; i++ {
		sc.engine.Tick(0)
	}
	return nil
}

func (sc *simulationContext) world() GameSnapshot {
	return GameSnapshot{
		Inventory:     sc.engine.SnapshotInventory(),
		Facilities:    sc.engine.SnapshotFacilities(),
		CraftingQueue: sc.engine.SnapshotCraftingQueue(),
	}
}

func (sc *simulationContext) theWorldShouldBeUnchanged() error {
	if sc.recorded == nil {
		return fmt.Errorf("world was never recorded")
	}
	now := sc.world()
	if !reflect.DeepEqual(sc.recorded.Inventory, now.Inventory) {
		return fmt.Errorf("inventory changed: %v -> %v", sc.recorded.Inventory, now.Inventory)
	}
	if !reflect.DeepEqual(sc.recorded.Facilities, now.Facilities) {
		return fmt.Errorf("facilities changed: %+v -> %+v", sc.recorded.Facilities, now.Facilities)
	}
	if !reflect.DeepEqual(sc.recorded.CraftingQueue, now.CraftingQueue) {
		return fmt.Errorf("crafting queue changed: %+v -> %+v", sc.recorded.CraftingQueue, now.CraftingQueue)
	}
	return nil
}

func (sc *simulationContext) theInventoryShouldHold(amount float64, id string) error {
	got := sc.engine.SnapshotInventory()[item.ID(id)].CurrentAmount
	if math.Abs(got-amount) > 1e-9 {
		return fmt.Errorf("expected %v %s, got %v", amount, id, got)
	}
	return nil
}

func (sc *simulationContext) firstOfType(facilityID string) (facility.Instance, error) {
	for _, f := range sc.engine.SnapshotFacilities() {
		if f.FacilityID == facilityID {
			return f, nil
		}
	}
	return facility.Instance{}, fmt.Errorf("no %s placed", facilityID)
}

func (sc *simulationContext) shouldHaveFuelUnits(facilityID string, units int) error {
	f, err := sc.firstOfType(facilityID)
	if err != nil {
		return err
	}
	if f.Fuel == nil {
		return fmt.Errorf("%s has no fuel buffer", facilityID)
	}
	if got := f.Fuel.Units(); got != units {
		return fmt.Errorf("expected %d fuel units in %s, got %d", units, facilityID, got)
	}
	return nil
}

func (sc *simulationContext) shouldBe(facilityID, status string) error {
	f, err := sc.firstOfType(facilityID)
	if err != nil {
		return err
	}
	var want facility.Status
	if err := want.UnmarshalText([]byte(status)); err != nil {
		return err
	}
	if f.Status != want {
		return fmt.Errorf("expected %s to be %s, got %s", facilityID, want, f.Status)
	}
	return nil
}

func (sc *simulationContext) progressShouldBe(facilityID string, progress float64) error {
	f, err := sc.firstOfType(facilityID)
	if err != nil {
		return err
	}
	if math.Abs(f.Production.Progress-progress) > 1e-9 {
		return fmt.Errorf("expected %s progress %v, got %v", facilityID, progress, f.Production.Progress)
	}
	return nil
}

func (sc *simulationContext) aFuelBufferLoadedWith(facilityID string, qty int, fuelID string) error {
	ft, ok := sc.catalog.Facility(facilityID)
	if !ok {
		return fmt.Errorf("unknown facility %s", facilityID)
	}
	sc.fuelType = ft
	sc.buffer = facility.NewFuelBuffer("bdd", ft)
	if _, ok := sc.fuel.AddFuel(sc.buffer, item.ID(fuelID), qty, ft); !ok {
		return fmt.Errorf("%s rejected %d %s", facilityID, qty, fuelID)
	}
	return nil
}

func (sc *simulationContext) itProducesFor(seconds int) error {
	sc.fuel.UpdateFuelConsumption(sc.buffer, time.Duration(seconds)*time.Second, true, 1)
	return nil
}

func (sc *simulationContext) itsFuelBufferShouldHold(mj float64) error {
	if math.Abs(sc.buffer.TotalEnergy-mj) > 1e-9 {
		return fmt.Errorf("expected %v MJ, got %v", mj, sc.buffer.TotalEnergy)
	}
	return nil
}

func InitializeSimulationScenario(ctx *godog.ScenarioContext) {
	sc := &simulationContext{}

	ctx.Before(func(c context.Context, _ *godog.Scenario) (context.Context, error) {
		return c, sc.reset()
	})

	ctx.Step(`^the inventory holds (\d+) "([^"]*)"$`, sc.theInventoryHolds)
	ctx.Step(`^(\d+) "([^"]*)" are taken from the inventory$`, sc.areTakenFromTheInventory)
	ctx.Step(`^I queue (\d+) "([^"]*)" crafts?$`, sc.iQueueCraft)
	ctx.Step(`^I place a "([^"]*)" producing "([^"]*)"$`, sc.iPlaceProducing)
	ctx.Step(`^the simulation runs for ([\d.]+) seconds in (\d+)ms frames$`, sc.theSimulationRunsFor)
	ctx.Step(`^the world is recorded$`, sc.theWorldIsRecorded)
	ctx.Step(`^the simulation ticks 0 seconds (\d+) times$`, sc.theSimulationTicksZeroSeconds)
	ctx.Step(`^the inventory, facilities and crafting queue should be unchanged$`, sc.theWorldShouldBeUnchanged)
	ctx.Step(`^the inventory should hold ([\d.]+) "([^"]*)"$`, sc.theInventoryShouldHold)
	ctx.Step(`^the "([^"]*)" should have (\d+) fuel units?$`, sc.shouldHaveFuelUnits)
	ctx.Step(`^the "([^"]*)" should be (running|no_fuel|output_full|no_input)$`, sc.shouldBe)
	ctx.Step(`^the "([^"]*)" progress should be ([\d.]+)$`, sc.progressShouldBe)
	ctx.Step(`^a "([^"]*)" fuel buffer loaded with (\d+) "([^"]*)"$`, sc.aFuelBufferLoadedWith)
	ctx.Step(`^it produces for (\d+) seconds?$`, sc.itProducesFor)
	ctx.Step(`^its fuel buffer should hold ([\d.]+) MJ$`, sc.itsFuelBufferShouldHold)
}
