// Package rules contains the pure calculation logic for game mechanics.
// This package is PURE and must NOT import any infrastructure packages.
package rules

import (
	"math"
	"time"
)

// ManualCraftingEfficiency is the hand-crafting speed relative to a machine.
const ManualCraftingEfficiency = 0.5

// ManualDuration is the effective duration of a manual craft: recipe time
// divided by the manual efficiency. Non-positive efficiency falls back to 1.
func ManualDuration(recipeSeconds, efficiency float64) time.Duration {
	if efficiency <= 0 {
		efficiency = 1
	}
	if recipeSeconds <= 0 {
		return 0
	}
	return time.Duration(recipeSeconds / efficiency * float64(time.Second))
}

// CraftProgress returns the 0-100 progress of a task elapsed into duration.
func CraftProgress(elapsed, duration time.Duration) float64 {
	if duration <= 0 {
		return 100
	}
	if elapsed <= 0 {
		return 0
	}
	return math.Min(float64(elapsed)/float64(duration)*100, 100)
}

// ProductionStep is the progress a facility gains over delta.
func ProductionStep(delta time.Duration, recipeSeconds, efficiency, speed float64) float64 {
	if recipeSeconds <= 0 || delta <= 0 {
		return 0
	}
	return delta.Seconds() / recipeSeconds * Clamp01(efficiency) * speed
}

// FuelDrain converts a kW draw over delta into MJ.
func FuelDrain(consumptionKW, efficiency float64, delta time.Duration) float64 {
	if consumptionKW <= 0 || delta <= 0 {
		return 0
	}
	return consumptionKW * Clamp01(efficiency) * delta.Seconds() / 1000
}

// PowerEfficiency is the satisfaction ratio consumers run at under a deficit.
func PowerEfficiency(consumption, deficit float64) float64 {
	if consumption <= 0 || deficit <= 0 {
		return 1
	}
	return Clamp01(1 - deficit/consumption)
}

// LoadRatio is the share of generation capacity actually drawn.
func LoadRatio(consumption, generation float64) float64 {
	if generation <= 0 {
		return 0
	}
	return Clamp01(consumption / generation)
}

// Clamp01 clamps v into [0,1].
func Clamp01(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	}
	return v
}
