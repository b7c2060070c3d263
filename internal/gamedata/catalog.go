// Package gamedata provides the read-only game data catalog: items, recipes,
// facility types and technologies keyed by id. The simulation never mutates it.
package gamedata

import (
	"github.com/MRamiBalles/factorysim/internal/domain/facility"
	"github.com/MRamiBalles/factorysim/internal/domain/item"
	"github.com/MRamiBalles/factorysim/internal/domain/recipe"
	"github.com/MRamiBalles/factorysim/internal/domain/research"
	"github.com/MRamiBalles/factorysim/internal/domain/rules"
)

// Catalog is the lookup surface the simulation consumes.
// Lookups of unknown ids return ok=false; absence is never an error.
type Catalog interface {
	Item(id item.ID) (item.Item, bool)
	Recipe(id recipe.ID) (recipe.Recipe, bool)
	// RecipesFor returns the recipes whose outputs contain the item, sorted by id.
	RecipesFor(id item.ID) []recipe.Recipe
	Facility(id string) (facility.Type, bool)
	Technology(id research.ID) (research.Technology, bool)
	// Trigger returns the compiled completion condition of a technology.
	Trigger(id research.ID) (*rules.Trigger, bool)

	Items() []item.Item
	Recipes() []recipe.Recipe
	Facilities() []facility.Type
	Technologies() []research.Technology
}

// Readiness is implemented by catalogs that load asynchronously.
type Readiness interface {
	Ready() bool
}

// IsReady reports whether c is ready to be queried.
func IsReady(c Catalog) bool {
	if c == nil {
		return false
	}
	if r, ok := c.(Readiness); ok {
		return r.Ready()
	}
	return true
}
