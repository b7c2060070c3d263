package engine

import (
	"time"

	"github.com/MRamiBalles/factorysim/internal/domain/facility"
	"github.com/MRamiBalles/factorysim/internal/domain/item"
)

// Recorder receives simulation measurements. The Prometheus collector in
// platform/metrics implements it.
type Recorder interface {
	ObserveTick(d time.Duration)
	SubsystemRun(name string)
	SubsystemFailure(name string)
	CraftCompleted(id item.ID, quantity int)
	ProductionCycle(facilityID string)
	FacilityStatuses(counts map[facility.Status]int)
	PowerSatisfaction(ratio float64)
	FuelEnergy(instanceID string, megajoules float64)
}

type nopRecorder struct{}

func (nopRecorder) ObserveTick(time.Duration) {}
func (nopRecorder) SubsystemRun(string) {}
func (nopRecorder) SubsystemFailure(string) {}
func (nopRecorder) CraftCompleted(item.ID, int) {}
func (nopRecorder) ProductionCycle(string) {}
func (nopRecorder) FacilityStatuses(map[facility.Status]int) {}
func (nopRecorder) PowerSatisfaction(float64) {}
func (nopRecorder) FuelEnergy(string, float64) {}
