// Package research defines the technology tree and research progress.
// This package is PURE and must NOT import any infrastructure packages.
package research

import (
	"time"

	"github.com/MRamiBalles/factorysim/internal/domain/item"
	"github.com/MRamiBalles/factorysim/internal/domain/recipe"
)

// ID identifies a technology.
type ID string

// Effect is a permanent modifier granted when a technology completes.
type Effect struct {
	Recipe            recipe.ID `yaml:"recipe" json:"recipe"`
	ProductivityBonus float64   `yaml:"productivity_bonus" json:"productivity_bonus"`
}

// Unlocks lists what a technology makes available. Propagation is done by
// the unlock service, the simulation only reports completion.
type Unlocks struct {
	Recipes    []recipe.ID `yaml:"recipes" json:"recipes,omitempty"`
	Items      []item.ID   `yaml:"items" json:"items,omitempty"`
	Facilities []string    `yaml:"facilities" json:"facilities,omitempty"`
}

// Technology is the static catalog definition of a research item.
// Either ResearchTime (timed research) or Trigger (condition research) drives it.
type Technology struct {
	ID            ID           `yaml:"id" json:"id"`
	Name          string       `yaml:"name" json:"name"`
	ResearchTime  float64      `yaml:"research_time" json:"research_time"` // seconds
	Prerequisites []ID         `yaml:"prerequisites" json:"prerequisites,omitempty"`
	Cost          []item.Stack `yaml:"cost" json:"cost,omitempty"`
	Trigger       string       `yaml:"trigger" json:"trigger,omitempty"` // e.g. Crafted("iron-gear-wheel") >= 10
	Unlocks       Unlocks      `yaml:"unlocks" json:"unlocks"`
	Effects       []Effect     `yaml:"effects" json:"effects,omitempty"`
}

// IsTriggered reports whether the technology completes on a condition.
func (t Technology) IsTriggered() bool { return t.Trigger != "" }

// State is the active research.
type State struct {
	CurrentTech ID            `json:"current_tech"`
	Progress    float64       `json:"progress"` // [0,1]
	StartTime   time.Duration `json:"start_time"`
	CostPaid    bool          `json:"cost_paid"`
}

// Active reports whether a technology is being researched.
func (s State) Active() bool { return s.CurrentTech != "" }

// QueueItem is a technology waiting to be researched.
type QueueItem struct {
	TechID   ID            `json:"tech_id"`
	QueuedAt time.Duration `json:"queued_at"`
}
