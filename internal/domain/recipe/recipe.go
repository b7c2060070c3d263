// Package recipe defines catalog recipes: timed transformations of item
// quantities. This package is PURE and must NOT import infrastructure packages.
package recipe

import (
	"slices"
	"time"

	"github.com/MRamiBalles/factorysim/internal/domain/item"
)

// ID identifies a recipe in the game data catalog.
type ID string

// Flag marks special recipe behaviour.
type Flag string

const (
	FlagMining    Flag = "mining"    // Resource extraction, preferred for manual gathering
	FlagRecycling Flag = "recycling" // Breaks an item back down
)

// ProducerManual lets the player craft the recipe by hand.
const ProducerManual = "manual"

// Recipe is the static catalog definition of a recipe.
type Recipe struct {
	ID        ID           `yaml:"id" json:"id"`
	Name      string       `yaml:"name" json:"name"`
	Time      float64      `yaml:"time" json:"time"` // seconds
	Inputs    []item.Stack `yaml:"inputs" json:"inputs"`
	Outputs   []item.Stack `yaml:"outputs" json:"outputs"`
	Producers []string     `yaml:"producers" json:"producers"` // facility categories, or "manual"
	Flags     []Flag       `yaml:"flags" json:"flags,omitempty"`
}

// HasFlag reports whether the recipe carries flag f.
func (r Recipe) HasFlag(f Flag) bool {
	return slices.Contains(r.Flags, f)
}

// Produces reports whether the recipe outputs the item.
func (r Recipe) Produces(id item.ID) bool {
	return r.OutputOf(id) > 0
}

// OutputOf returns the nominal yield of the item per cycle.
func (r Recipe) OutputOf(id item.ID) float64 {
	var total float64
	for _, o := range r.Outputs {
		if o.Item == id {
			total += o.Amount
		}
	}
	return total
}

// MadeBy reports whether a producer category can execute the recipe.
// Recipes without producers can be made anywhere.
func (r Recipe) MadeBy(category string) bool {
	if len(r.Producers) == 0 {
		return true
	}
	return slices.Contains(r.Producers, category)
}

// Duration returns the nominal recipe time.
func (r Recipe) Duration() time.Duration {
	return time.Duration(r.Time * float64(time.Second))
}

// PrimaryOutput returns the first output item, or "" if there is none.
func (r Recipe) PrimaryOutput() item.ID {
	if len(r.Outputs) == 0 {
		return ""
	}
	return r.Outputs[0].Item
}
