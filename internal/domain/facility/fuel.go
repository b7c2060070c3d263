package facility

import (
	"time"

	"github.com/MRamiBalles/factorysim/internal/domain/item"
)

// FuelSlot holds one kind of fuel. RemainingEnergy is the energy left in the
// whole slot, Quantity the number of units not yet fully burnt.
type FuelSlot struct {
	ItemID          item.ID `json:"item_id"`
	Quantity        int     `json:"quantity"`
	RemainingEnergy float64 `json:"remaining_energy"` // MJ
}

// Empty reports whether the slot has nothing left to burn.
func (s FuelSlot) Empty() bool {
	return s.RemainingEnergy <= 0
}

// FuelBuffer is the per-facility fuel store.
// Invariant: TotalEnergy <= MaxEnergy.
type FuelBuffer struct {
	FacilityID      string        `json:"facility_id"`
	Slots           []FuelSlot    `json:"slots"`
	MaxSlots        int           `json:"max_slots"`
	TotalEnergy     float64       `json:"total_energy"`     // MJ
	MaxEnergy       float64       `json:"max_energy"`       // MJ
	ConsumptionRate float64       `json:"consumption_rate"` // kW
	LastUpdate      time.Duration `json:"last_update"`
}

// NewFuelBuffer creates an empty buffer for a burner facility.
func NewFuelBuffer(facilityID string, t Type) *FuelBuffer {
	slots := t.FuelSlots
	if slots <= 0 {
		slots = 1
	}
	return &FuelBuffer{
		FacilityID:      facilityID,
		Slots:           make([]FuelSlot, 0, slots),
		MaxSlots:        slots,
		ConsumptionRate: t.EnergyUsage,
	}
}

// Empty reports whether the buffer holds no energy.
func (b *FuelBuffer) Empty() bool {
	return b.TotalEnergy <= 0
}

// ActiveSlot returns the index of the first non-empty slot, or -1.
func (b *FuelBuffer) ActiveSlot() int {
	for i, s := range b.Slots {
		if !s.Empty() {
			return i
		}
	}
	return -1
}

// Units returns how many fuel units the buffer holds.
func (b *FuelBuffer) Units() int {
	n := 0
	for _, s := range b.Slots {
		n += s.Quantity
	}
	return n
}

// Recount recomputes TotalEnergy from the slots.
func (b *FuelBuffer) Recount() {
	var total float64
	for _, s := range b.Slots {
		total += s.RemainingEnergy
	}
	b.TotalEnergy = total
}

// Clone returns a deep copy.
func (b FuelBuffer) Clone() FuelBuffer {
	c := b
	c.Slots = append([]FuelSlot(nil), b.Slots...)
	return c
}
