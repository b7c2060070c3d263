package engine

import (
	"github.com/MRamiBalles/factorysim/internal/domain/facility"
	"github.com/MRamiBalles/factorysim/internal/domain/rules"
	"github.com/MRamiBalles/factorysim/internal/events"
	"github.com/MRamiBalles/factorysim/internal/platform/logger"
)

// Balance is the electric network state for one production tick, in kW.
type Balance struct {
	Generation   float64 `json:"generation"`
	Consumption  float64 `json:"consumption"`
	Surplus      float64 `json:"surplus"`
	Deficit      float64 `json:"deficit"`
	Satisfaction float64 `json:"satisfaction"` // [0,1]
}

// PowerSystem balances generators against electric consumers. A deficit
// slows consumers down proportionally, it never stops them.
type PowerSystem struct {
	eventLog *events.EventLog
	logger   *logger.Logger
	last     Balance
}

func NewPowerSystem(el *events.EventLog, log *logger.Logger) *PowerSystem {
	return &PowerSystem{eventLog: el, logger: log, last: Balance{Satisfaction: 1}}
}

func canGenerate(inst *facility.Instance, ft facility.Type) bool {
	if !ft.IsGenerator() {
		return false
	}
	if ft.Burns() {
		return inst.Fuel != nil && !inst.Fuel.Empty()
	}
	return true
}

func drawsPower(inst *facility.Instance, ft facility.Type) bool {
	if !ft.IsElectricConsumer() {
		return false
	}
	switch inst.Status {
	case facility.StatusNoInput, facility.StatusOutputFull:
		return false
	case facility.StatusRunning, facility.StatusNoFuel:
		return true
	}
	return true
}

func instanceCount(inst *facility.Instance) float64 {
	if inst.Count <= 0 {
		return 1
	}
	return float64(inst.Count)
}

// CalculateBalance sums generator output against consumer draw.
func (ps *PowerSystem) CalculateBalance(instances []*facility.Instance, types func(string) (facility.Type, bool)) Balance {
	var b Balance
	for _, inst := range instances {
		ft, ok := types(inst.FacilityID)
		if !ok {
			continue
		}
		n := instanceCount(inst)
		if canGenerate(inst, ft) {
			b.Generation += ft.PowerOutput * n
		}
		if drawsPower(inst, ft) {
			b.Consumption += ft.EnergyUsage * n
		}
	}
	if b.Generation >= b.Consumption {
		b.Surplus = b.Generation - b.Consumption
	} else {
		b.Deficit = b.Consumption - b.Generation
	}
	b.Satisfaction = rules.PowerEfficiency(b.Consumption, b.Deficit)
	return b
}

// UpdateFacilityPowerStatus sets the efficiency of one facility from the
// balance. Consumers run at the satisfaction ratio, generators at their load
// ratio. Statuses are left alone.
func (ps *PowerSystem) UpdateFacilityPowerStatus(inst *facility.Instance, ft facility.Type, b Balance) {
	switch {
	case ft.IsGenerator():
		inst.Efficiency = rules.LoadRatio(b.Consumption, b.Generation)
	case ft.IsElectricConsumer():
		inst.Efficiency = rules.PowerEfficiency(b.Consumption, b.Deficit)
	default:
		inst.Efficiency = 1
	}
}

// Apply computes the balance and updates every facility's efficiency.
func (ps *PowerSystem) Apply(instances []*facility.Instance, types func(string) (facility.Type, bool)) Balance {
	b := ps.CalculateBalance(instances, types)
	for _, inst := range instances {
		if ft, ok := types(inst.FacilityID); ok {
			ps.UpdateFacilityPowerStatus(inst, ft, b)
		}
	}
	if b.Deficit > 0 && ps.last.Deficit == 0 {
		ps.logger.Warnf("power: deficit %.1f kW, consumers at %.0f%%", b.Deficit, b.Satisfaction*100)
	}
	ps.last = b
	return b
}

// Last returns the balance computed by the latest Apply.
func (ps *PowerSystem) Last() Balance { return ps.last }
