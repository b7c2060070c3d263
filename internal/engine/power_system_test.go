package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MRamiBalles/factorysim/internal/domain/facility"
	"github.com/MRamiBalles/factorysim/internal/platform/logger"
)

func TestCalculateBalance(t *testing.T) {
	cat := defaultCatalog(t)
	ps := NewPowerSystem(nil, logger.Discard())

	solar := &facility.Instance{ID: "s", FacilityID: "solar-panel", Count: 3}
	busy := &facility.Instance{ID: "a", FacilityID: "assembling-machine-1", Status: facility.StatusRunning}
	idle := &facility.Instance{ID: "b", FacilityID: "assembling-machine-1", Status: facility.StatusNoInput}
	cold := &facility.Instance{ID: "e", FacilityID: "steam-engine", Fuel: &facility.FuelBuffer{}}

	b := ps.CalculateBalance([]*facility.Instance{solar, busy, idle, cold}, cat.Facility)
	assert.Equal(t, 180.0, b.Generation, "unfuelled steam engine generates nothing")
	assert.Equal(t, 75.0, b.Consumption, "idle consumers draw nothing")
	assert.Equal(t, 105.0, b.Surplus)
	assert.Equal(t, 0.0, b.Deficit)
	assert.Equal(t, 1.0, b.Satisfaction)
}

func TestUpdateFacilityPowerStatus(t *testing.T) {
	cat := defaultCatalog(t)
	ps := NewPowerSystem(nil, logger.Discard())
	b := Balance{Generation: 60, Consumption: 150, Deficit: 90}

	cases := []struct {
		facilityID string
		want       float64
	}{
		{"assembling-machine-1", 0.4},
		{"solar-panel", 1},
		{"stone-furnace", 1},
	}
	for _, tc := range cases {
		t.Run(tc.facilityID, func(t *testing.T) {
			ft, ok := cat.Facility(tc.facilityID)
			assert.True(t, ok)
			inst := &facility.Instance{FacilityID: tc.facilityID}
			ps.UpdateFacilityPowerStatus(inst, ft, b)
			assert.InDelta(t, tc.want, inst.Efficiency, 1e-9)
		})
	}
}
