package rules

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/MRamiBalles/factorysim/internal/domain/item"
)

// Counters exposes the production statistics research triggers observe.
type Counters interface {
	MinedCount(id item.ID) float64
	CraftedCount(id item.ID) float64
	BuiltCount(facilityID string) int
	StockOf(id item.ID) float64
}

// TriggerEnv wraps the counters and exposes helpers callable from expressions.
type TriggerEnv struct {
	counters Counters
}

func (e TriggerEnv) Mined(id string) float64 {
	if e.counters == nil {
		return 0
	}
	return e.counters.MinedCount(item.ID(id))
}

func (e TriggerEnv) Crafted(id string) float64 {
	if e.counters == nil {
		return 0
	}
	return e.counters.CraftedCount(item.ID(id))
}

func (e TriggerEnv) Built(id string) int {
	if e.counters == nil {
		return 0
	}
	return e.counters.BuiltCount(id)
}

func (e TriggerEnv) Stock(id string) float64 {
	if e.counters == nil {
		return 0
	}
	return e.counters.StockOf(item.ID(id))
}

// Trigger is a compiled research completion condition.
type Trigger struct {
	Src     string
	program *vm.Program
}

// CompileTrigger compiles a boolean condition such as
// `Crafted("iron-gear-wheel") >= 10 && Built("stone-furnace") > 0`.
func CompileTrigger(src string) (*Trigger, error) {
	prog, err := expr.Compile(src, expr.Env(TriggerEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile trigger %q: %w", src, err)
	}
	return &Trigger{Src: src, program: prog}, nil
}

// Evaluate runs the condition against the counters.
func (t *Trigger) Evaluate(c Counters) (bool, error) {
	out, err := vm.Run(t.program, TriggerEnv{counters: c})
	if err != nil {
		return false, fmt.Errorf("evaluate trigger %q: %w", t.Src, err)
	}
	ok, _ := out.(bool)
	return ok, nil
}
