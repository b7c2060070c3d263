package engine

import (
	"time"

	"github.com/MRamiBalles/factorysim/internal/domain/rules"
)

// Settings tunes the simulation. Zero fields fall back to DefaultSettings.
type Settings struct {
	CraftingInterval   time.Duration
	ProductionInterval time.Duration
	ResearchInterval   time.Duration
	AutosaveInterval   time.Duration
	DataCheckInterval  time.Duration

	ManualCraftingEfficiency float64
	MaxQueueLength           int
	// StrictCrafting stalls a manual craft at 100% until every ingredient is
	// in stock instead of clamping the missing consumption to zero.
	StrictCrafting bool

	RefuelTargetUnits int     // auto refuel tops buffers up to this many units
	LowFuelThreshold  float64 // fraction of max energy that triggers auto refuel
}

// DefaultSettings returns the standard cadences and tuning.
func DefaultSettings() Settings {
	return Settings{
		CraftingInterval:         100 * time.Millisecond,
		ProductionInterval:       1000 * time.Millisecond,
		ResearchInterval:         1000 * time.Millisecond,
		AutosaveInterval:         10000 * time.Millisecond,
		DataCheckInterval:        100 * time.Millisecond,
		ManualCraftingEfficiency: rules.ManualCraftingEfficiency,
		MaxQueueLength:           100,
		RefuelTargetUnits:        5,
		LowFuelThreshold:         0.1,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.CraftingInterval <= 0 {
		s.CraftingInterval = d.CraftingInterval
	}
	if s.ProductionInterval <= 0 {
		s.ProductionInterval = d.ProductionInterval
	}
	if s.ResearchInterval <= 0 {
		s.ResearchInterval = d.ResearchInterval
	}
	if s.AutosaveInterval <= 0 {
		s.AutosaveInterval = d.AutosaveInterval
	}
	if s.DataCheckInterval <= 0 {
		s.DataCheckInterval = d.DataCheckInterval
	}
	if s.ManualCraftingEfficiency <= 0 {
		s.ManualCraftingEfficiency = d.ManualCraftingEfficiency
	}
	if s.MaxQueueLength <= 0 {
		s.MaxQueueLength = d.MaxQueueLength
	}
	if s.RefuelTargetUnits <= 0 {
		s.RefuelTargetUnits = d.RefuelTargetUnits
	}
	if s.LowFuelThreshold <= 0 {
		s.LowFuelThreshold = d.LowFuelThreshold
	}
	return s
}
