// Package item defines the core domain entities for items and item stacks.
// This package is PURE and must NOT import any infrastructure packages.
package item

// ID identifies an item in the game data catalog.
type ID string

// FuelCategory groups fuels so facilities can declare which ones they burn.
type FuelCategory string

const (
	FuelChemical FuelCategory = "chemical" // Wood, coal, solid fuel
	FuelNuclear  FuelCategory = "nuclear"
)

// DefaultStackSize is used for items the catalog does not know about.
const DefaultStackSize = 50

// Item is the static catalog definition of an item.
type Item struct {
	ID           ID           `yaml:"id" json:"id"`
	Name         string       `yaml:"name" json:"name"`
	Category     string       `yaml:"category" json:"category"` // "raw-resource", "intermediate", "building"...
	StackSize    int          `yaml:"stack_size" json:"stack_size"`
	FuelValue    float64      `yaml:"fuel_value" json:"fuel_value,omitempty"` // MJ per unit, 0 if not a fuel
	FuelCategory FuelCategory `yaml:"fuel_category" json:"fuel_category,omitempty"`
}

// IsFuel reports whether the item can be burned.
func (i Item) IsFuel() bool {
	return i.FuelValue > 0 && i.FuelCategory != ""
}

// EffectiveStackSize returns the stack size, falling back to DefaultStackSize.
func (i Item) EffectiveStackSize() int {
	if i.StackSize <= 0 {
		return DefaultStackSize
	}
	return i.StackSize
}

// Stack represents a quantity of a specific item.
// Amounts are real-valued to support fractional production rates.
type Stack struct {
	Item   ID      `yaml:"item" json:"item"`
	Amount float64 `yaml:"amount" json:"amount"`
}

// Scale returns a copy of the stacks with every amount multiplied by f.
func Scale(stacks []Stack, f float64) []Stack {
	out := make([]Stack, len(stacks))
	for i, s := range stacks {
		out[i] = Stack{Item: s.Item, Amount: s.Amount * f}
	}
	return out
}
