// Package facility defines automated production buildings: their catalog
// types and the placed instances the simulation drives.
// This package is PURE and must NOT import any infrastructure packages.
package facility

import (
	"fmt"
	"slices"
	"time"

	"github.com/MRamiBalles/factorysim/internal/domain/item"
	"github.com/MRamiBalles/factorysim/internal/domain/recipe"
)

// Category is the machine class a facility type belongs to.
type Category string

const (
	CategoryMiningDrill Category = "mining-drill"
	CategoryFurnace     Category = "furnace"
	CategoryAssembler   Category = "assembler"
	CategoryBoiler      Category = "boiler"
	CategoryGenerator   Category = "generator"
	CategoryLab         Category = "lab"
	CategoryContainer   Category = "container"
)

// EnergySource tells how a facility is powered.
type EnergySource string

const (
	EnergyBurner   EnergySource = "burner"
	EnergyElectric EnergySource = "electric"
	EnergyNone     EnergySource = "none"
)

// Type is the static catalog definition of a machine.
type Type struct {
	ID              string              `yaml:"id" json:"id"`
	Name            string              `yaml:"name" json:"name"`
	Category        Category            `yaml:"category" json:"category"`
	CraftingSpeed   float64             `yaml:"crafting_speed" json:"crafting_speed"`
	EnergySource    EnergySource        `yaml:"energy_source" json:"energy_source"`
	EnergyUsage     float64             `yaml:"energy_usage" json:"energy_usage"` // kW drawn while producing
	PowerOutput     float64             `yaml:"power_output" json:"power_output"` // kW, generators only
	FuelCategories  []item.FuelCategory `yaml:"fuel_categories" json:"fuel_categories,omitempty"`
	FuelSlots       int                 `yaml:"fuel_slots" json:"fuel_slots,omitempty"`
	Priority        int                 `yaml:"priority" json:"priority"`                 // fuel distribution order, higher first
	ContainerStacks int                 `yaml:"container_stacks" json:"container_stacks"` // extra inventory stacks when deployed
}

// IsGenerator reports whether the type feeds the power network.
func (t Type) IsGenerator() bool { return t.PowerOutput > 0 }

// IsContainer reports whether the type is storage rather than a producer.
func (t Type) IsContainer() bool { return t.ContainerStacks > 0 }

// Burns reports whether the type needs a fuel buffer.
func (t Type) Burns() bool { return t.EnergySource == EnergyBurner }

// IsElectricConsumer reports whether the type draws from the power network.
func (t Type) IsElectricConsumer() bool {
	return t.EnergySource == EnergyElectric && !t.IsGenerator()
}

// AcceptsFuel reports whether the type burns fuels of category c.
func (t Type) AcceptsFuel(c item.FuelCategory) bool {
	return slices.Contains(t.FuelCategories, c)
}

// Speed returns the crafting speed, defaulting to 1.
func (t Type) Speed() float64 {
	if t.CraftingSpeed <= 0 {
		return 1
	}
	return t.CraftingSpeed
}

// Status is the production state of a placed facility.
type Status uint8

const (
	StatusRunning Status = iota
	StatusNoFuel
	StatusOutputFull
	StatusNoInput
)

var statusNames = [...]string{
	StatusRunning:    "running",
	StatusNoFuel:     "no_fuel",
	StatusOutputFull: "output_full",
	StatusNoInput:    "no_input",
}

// Statuses lists every status in declaration order.
var Statuses = []Status{StatusRunning, StatusNoFuel, StatusOutputFull, StatusNoInput}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	if int(s) >= len(statusNames) {
		return nil, fmt.Errorf("unknown facility status %d", uint8(s))
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
	return fmt.Errorf("unknown facility status %q", string(b))
}

// ProductionState is the recipe execution state of a facility.
// InputBuffer and OutputBuffer hold the per-cycle requirements and yields of
// the resolved recipe, already scaled by the instance count.
type ProductionState struct {
	CurrentRecipeID recipe.ID           `json:"current_recipe_id"`
	Progress        float64             `json:"progress"` // [0,1]
	InputBuffer     map[item.ID]float64 `json:"input_buffer"`
	OutputBuffer    map[item.ID]float64 `json:"output_buffer"`
}

// Instance is a placed facility, possibly several identical stacked machines.
type Instance struct {
	ID           string          `json:"id"`
	FacilityID   string          `json:"facility_id"`
	TargetItemID item.ID         `json:"target_item_id"`
	RecipeID     recipe.ID       `json:"recipe_id,omitempty"` // explicit recipe, overrides target resolution
	Count        int             `json:"count"`
	Status       Status          `json:"status"`
	Efficiency   float64         `json:"efficiency"`
	Production   ProductionState `json:"production"`
	Fuel         *FuelBuffer     `json:"fuel_buffer,omitempty"`
	PlacedAt     time.Duration   `json:"placed_at"`
}

// Clone returns a deep copy safe to hand to observers.
func (i Instance) Clone() Instance {
	c := i
	c.Production.InputBuffer = cloneAmounts(i.Production.InputBuffer)
	c.Production.OutputBuffer = cloneAmounts(i.Production.OutputBuffer)
	if i.Fuel != nil {
		f := i.Fuel.Clone()
		c.Fuel = &f
	}
	return c
}

func cloneAmounts(m map[item.ID]float64) map[item.ID]float64 {
	if m == nil {
		return nil
	}
	out := make(map[item.ID]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
