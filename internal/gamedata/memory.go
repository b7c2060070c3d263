package gamedata

import (
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/MRamiBalles/factorysim/internal/domain/facility"
	"github.com/MRamiBalles/factorysim/internal/domain/item"
	"github.com/MRamiBalles/factorysim/internal/domain/recipe"
	"github.com/MRamiBalles/factorysim/internal/domain/research"
	"github.com/MRamiBalles/factorysim/internal/domain/rules"
)

// Data is the raw content of a catalog file.
type Data struct {
	Items        []item.Item           `yaml:"items"`
	Recipes      []recipe.Recipe       `yaml:"recipes"`
	Facilities   []facility.Type       `yaml:"facilities"`
	Technologies []research.Technology `yaml:"technologies"`
}

// Memory is an indexed in-memory catalog.
type Memory struct {
	items      map[item.ID]item.Item
	recipes    map[recipe.ID]recipe.Recipe
	facilities map[string]facility.Type
	techs      map[research.ID]research.Technology
	triggers   map[research.ID]*rules.Trigger
	producers  map[item.ID][]recipe.Recipe

	data  Data
	ready atomic.Bool
}

// NewMemory indexes and validates data. Cross references to unknown items,
// recipes or technologies and uncompilable triggers are errors.
func NewMemory(data Data) (*Memory, error) {
	m := &Memory{
		items:      make(map[item.ID]item.Item, len(data.Items)),
		recipes:    make(map[recipe.ID]recipe.Recipe, len(data.Recipes)),
		facilities: make(map[string]facility.Type, len(data.Facilities)),
		techs:      make(map[research.ID]research.Technology, len(data.Technologies)),
		triggers:   make(map[research.ID]*rules.Trigger),
		producers:  make(map[item.ID][]recipe.Recipe),
		data:       data,
	}

	for _, it := range data.Items {
		if it.ID == "" {
			return nil, errors.New("item with empty id")
		}
		if _, dup := m.items[it.ID]; dup {
			return nil, fmt.Errorf("duplicate item %q", it.ID)
		}
		m.items[it.ID] = it
	}

	var errs []error
	for _, r := range data.Recipes {
		if _, dup := m.recipes[r.ID]; dup {
			return nil, fmt.Errorf("duplicate recipe %q", r.ID)
		}
		if r.Time < 0 {
			errs = append(errs, fmt.Errorf("recipe %q: negative time", r.ID))
		}
		for _, s := range append(append([]item.Stack(nil), r.Inputs...), r.Outputs...) {
			if _, ok := m.items[s.Item]; !ok {
				errs = append(errs, fmt.Errorf("recipe %q references unknown item %q", r.ID, s.Item))
			}
		}
		m.recipes[r.ID] = r
		for _, o := range r.Outputs {
			m.producers[o.Item] = append(m.producers[o.Item], r)
		}
	}
	for id := range m.producers {
		list := m.producers[id]
		sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	}

	for _, f := range data.Facilities {
		if f.ID == "" {
			return nil, errors.New("facility with empty id")
		}
		m.facilities[f.ID] = f
	}

	for _, t := range data.Technologies {
		m.techs[t.ID] = t
	}
	for _, t := range data.Technologies {
		for _, p := range t.Prerequisites {
			if _, ok := m.techs[p]; !ok {
				errs = append(errs, fmt.Errorf("technology %q requires unknown %q", t.ID, p))
			}
		}
		for _, c := range t.Cost {
			if _, ok := m.items[c.Item]; !ok {
				errs = append(errs, fmt.Errorf("technology %q costs unknown item %q", t.ID, c.Item))
			}
		}
		if t.IsTriggered() {
			trig, err := rules.CompileTrigger(t.Trigger)
			if err != nil {
				errs = append(errs, fmt.Errorf("technology %q: %w", t.ID, err))
				continue
			}
			m.triggers[t.ID] = trig
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	m.ready.Store(true)
	return m, nil
}

// Ready reports whether the catalog finished indexing.
func (m *Memory) Ready() bool { return m.ready.Load() }

func (m *Memory) Item(id item.ID) (item.Item, bool) {
	it, ok := m.items[id]
	return it, ok
}

func (m *Memory) Recipe(id recipe.ID) (recipe.Recipe, bool) {
	r, ok := m.recipes[id]
	return r, ok
}

func (m *Memory) RecipesFor(id item.ID) []recipe.Recipe {
	return append([]recipe.Recipe(nil), m.producers[id]...)
}

func (m *Memory) Facility(id string) (facility.Type, bool) {
	f, ok := m.facilities[id]
	return f, ok
}

func (m *Memory) Technology(id research.ID) (research.Technology, bool) {
	t, ok := m.techs[id]
	return t, ok
}

func (m *Memory) Trigger(id research.ID) (*rules.Trigger, bool) {
	t, ok := m.triggers[id]
	return t, ok
}

func (m *Memory) Items() []item.Item { return append([]item.Item(nil), m.data.Items...) }

func (m *Memory) Recipes() []recipe.Recipe { return append([]recipe.Recipe(nil), m.data.Recipes...) }

func (m *Memory) Facilities() []facility.Type {
	return append([]facility.Type(nil), m.data.Facilities...)
}

func (m *Memory) Technologies() []research.Technology {
	return append([]research.Technology(nil), m.data.Technologies...)
}
