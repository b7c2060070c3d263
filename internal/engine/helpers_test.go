package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MRamiBalles/factorysim/internal/domain/facility"
	"github.com/MRamiBalles/factorysim/internal/domain/item"
	"github.com/MRamiBalles/factorysim/internal/domain/recipe"
	"github.com/MRamiBalles/factorysim/internal/events"
	"github.com/MRamiBalles/factorysim/internal/gamedata"
	"github.com/MRamiBalles/factorysim/internal/platform/logger"
)

func defaultCatalog(t *testing.T) *gamedata.Memory {
	t.Helper()
	cat, err := gamedata.Default()
	require.NoError(t, err)
	return cat
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	return NewEngine(defaultCatalog(t), events.NewEventLog(nil), logger.Discard(), opts...)
}

// tickFor advances e by total in frames of frame.
func tickFor(e *Engine, total, frame time.Duration) {
	for elapsed := time.Duration(0); elapsed < total; elapsed += frame {
		e.Tick(frame)
	}
}

func stock(t *testing.T, e *Engine, id item.ID) float64 {
	t.Helper()
	return e.SnapshotInventory()[id].CurrentAmount
}

func facilityByID(t *testing.T, e *Engine, id string) facility.Instance {
	t.Helper()
	for _, f := range e.SnapshotFacilities() {
		if f.ID == id {
			return f
		}
	}
	t.Fatalf("facility %s not found", id)
	return facility.Instance{}
}

// workshopCatalog is a small catalog exercising recipe preference, raw
// items and a dead-end ingredient.
func workshopCatalog(t *testing.T) *gamedata.Memory {
	t.Helper()
	cat, err := gamedata.NewMemory(gamedata.Data{
		Items: []item.Item{
			{ID: "sand", StackSize: 100},
			{ID: "scrap", StackSize: 100},
			{ID: "glass", StackSize: 100},
			{ID: "unobtainium", StackSize: 10},
			{ID: "lens", StackSize: 100},
			{ID: "ore", StackSize: 50},
			{ID: "metal", StackSize: 50},
		},
		Recipes: []recipe.Recipe{
			{ID: "a-glass-from-sand", Time: 1, Inputs: []item.Stack{{Item: "sand", Amount: 2}}, Outputs: []item.Stack{{Item: "glass", Amount: 1}}},
			{ID: "b-glass-recycling", Time: 1, Inputs: []item.Stack{{Item: "scrap", Amount: 1}}, Outputs: []item.Stack{{Item: "glass", Amount: 1}}, Flags: []recipe.Flag{recipe.FlagRecycling}},
			{ID: "lens", Time: 0.5, Inputs: []item.Stack{{Item: "glass", Amount: 1}, {Item: "unobtainium", Amount: 1}}, Outputs: []item.Stack{{Item: "lens", Amount: 1}}},
			{ID: "a-metal-smelt", Time: 1, Inputs: []item.Stack{{Item: "ore", Amount: 1}}, Outputs: []item.Stack{{Item: "metal", Amount: 1}}},
			{ID: "z-metal-dig", Time: 0.5, Outputs: []item.Stack{{Item: "metal", Amount: 1}}, Flags: []recipe.Flag{recipe.FlagMining}},
		},
	})
	require.NoError(t, err)
	return cat
}
