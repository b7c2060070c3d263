// Package crafting defines manual crafting tasks queued by the player.
// This package is PURE and must NOT import any infrastructure packages.
package crafting

import (
	"fmt"
	"time"

	"github.com/MRamiBalles/factorysim/internal/domain/item"
	"github.com/MRamiBalles/factorysim/internal/domain/recipe"
)

// KindTag discriminates the Kind union.
type KindTag uint8

const (
	KindRecipe KindTag = iota + 1 // Craft a specific recipe
	KindManual                    // Gather or hand-craft an item, recipe resolved by the queue
)

// Kind is what a task produces: either a recipe or a manual item.
// Exactly one of Recipe or Item is meaningful, selected by Tag.
type Kind struct {
	Tag    KindTag   `json:"tag"`
	Recipe recipe.ID `json:"recipe,omitempty"`
	Item   item.ID   `json:"item,omitempty"`
}

// RecipeKind builds a Kind for an explicit recipe.
func RecipeKind(id recipe.ID) Kind {
	return Kind{Tag: KindRecipe, Recipe: id}
}

// ManualKind builds a Kind for manual gathering/crafting of an item.
func ManualKind(id item.ID) Kind {
	return Kind{Tag: KindManual, Item: id}
}

// IsManual reports whether the kind is a manual item task.
func (k Kind) IsManual() bool { return k.Tag == KindManual }

func (k Kind) String() string {
	switch k.Tag {
	case KindRecipe:
		return "recipe:" + string(k.Recipe)
	case KindManual:
		return "manual:" + string(k.Item)
	default:
		return fmt.Sprintf("kind(%d)", uint8(k.Tag))
	}
}

// Status is the lifecycle state of a task.
type Status uint8

const (
	StatusPending Status = iota
	StatusCrafting
	StatusCompleted
)

var statusNames = [...]string{
	StatusPending:   "pending",
	StatusCrafting:  "crafting",
	StatusCompleted: "completed",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	if int(s) >= len(statusNames) {
		return nil, fmt.Errorf("unknown task status %d", uint8(s))
	}
	return []byte(statusNames[s]), nil
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(b []byte) error {
	for i, name := range statusNames {
		if name == string(b) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown task status %q", string(b))
}

// Task is one queued crafting job.
// StartTime is the simulation time of first processing; zero means not started.
type Task struct {
	ID           string        `json:"id"`
	Kind         Kind          `json:"kind"`
	ItemID       item.ID       `json:"item_id"`
	Quantity     int           `json:"quantity"`
	Progress     float64       `json:"progress"` // 0-100
	StartTime    time.Duration `json:"start_time"`
	CraftingTime time.Duration `json:"crafting_time"`
	Status       Status        `json:"status"`

	// Chain bookkeeping. Reserved is the stock pre-deducted for this step.
	ChainID  string       `json:"chain_id,omitempty"`
	Final    bool         `json:"final,omitempty"`
	Reserved []item.Stack `json:"reserved,omitempty"`
}

// InChain reports whether the task belongs to a multi-step plan.
func (t Task) InChain() bool { return t.ChainID != "" }

// Started reports whether the queue has begun processing the task.
func (t Task) Started() bool { return t.Status != StatusPending }

// Clone returns a deep copy.
func (t Task) Clone() Task {
	c := t
	c.Reserved = append([]item.Stack(nil), t.Reserved...)
	return c
}

// Spec is the player's request to enqueue a task.
type Spec struct {
	Kind     Kind `json:"kind"`
	Quantity int  `json:"quantity" validate:"min=1"`
}
