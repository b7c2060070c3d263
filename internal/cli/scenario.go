package cli

import (
	"fmt"
	"sort"

	"github.com/MRamiBalles/factorysim/internal/domain/crafting"
	"github.com/MRamiBalles/factorysim/internal/domain/item"
	"github.com/MRamiBalles/factorysim/internal/domain/research"
	"github.com/MRamiBalles/factorysim/internal/engine"
)

// Scenario is a starting factory for headless runs.
type Scenario struct {
	Name       string
	Inventory  []item.Stack
	Facilities []engine.FacilitySpec
	Crafts     []crafting.Spec
	Chains     []item.Stack
	Research   []research.ID
}

var scenarios = map[string]Scenario{
	"starter": {
		Name: "starter",
		Inventory: []item.Stack{
			{Item: "iron-ore", Amount: 40},
			{Item: "copper-ore", Amount: 20},
			{Item: "coal", Amount: 30},
			{Item: "stone", Amount: 20},
			{Item: "iron-plate", Amount: 20},
			{Item: "copper-plate", Amount: 10},
		},
		Facilities: []engine.FacilitySpec{
			{FacilityID: "burner-mining-drill", TargetItemID: "coal"},
			{FacilityID: "burner-mining-drill", TargetItemID: "iron-ore", Count: 2},
			{FacilityID: "stone-furnace", TargetItemID: "iron-plate", Count: 2},
			{FacilityID: "stone-furnace", TargetItemID: "copper-plate"},
			{FacilityID: "wooden-chest", TargetItemID: "iron-plate"},
			{FacilityID: "solar-panel"},
			{FacilityID: "assembling-machine-1", TargetItemID: "iron-gear-wheel"},
		},
		Crafts: []crafting.Spec{
			{Kind: crafting.RecipeKind("iron-gear-wheel"), Quantity: 5},
			{Kind: crafting.ManualKind("wood"), Quantity: 3},
		},
		Chains:   []item.Stack{{Item: "electronic-circuit", Amount: 2}},
		Research: []research.ID{"automation"},
	},
	"empty": {Name: "empty"},
}

// ScenarioNames lists the known scenarios.
func ScenarioNames() []string {
	names := make([]string, 0, len(scenarios))
	for n := range scenarios {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Apply sets the scenario up in e.
func (s Scenario) Apply(e *engine.Engine) error {
	e.BatchUpdateInventory(s.Inventory)
	for _, f := range s.Facilities {
		if _, err := e.AddFacility(f); err != nil {
			return fmt.Errorf("scenario %s: place %s: %w", s.Name, f.FacilityID, err)
		}
	}
	for _, c := range s.Crafts {
		if _, err := e.TryAddCraftingTask(c); err != nil {
			return fmt.Errorf("scenario %s: craft %s: %w", s.Name, c.Kind, err)
		}
	}
	for _, c := range s.Chains {
		if _, err := e.AddCraftingChain(c.Item, int(c.Amount)); err != nil {
			return fmt.Errorf("scenario %s: chain %s: %w", s.Name, c.Item, err)
		}
	}
	for _, id := range s.Research {
		if err := e.QueueResearch(id); err != nil {
			return fmt.Errorf("scenario %s: research %s: %w", s.Name, id, err)
		}
	}
	return nil
}
