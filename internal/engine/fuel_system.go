package engine

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/MRamiBalles/factorysim/internal/domain/facility"
	"github.com/MRamiBalles/factorysim/internal/domain/item"
	"github.com/MRamiBalles/factorysim/internal/domain/rules"
	"github.com/MRamiBalles/factorysim/internal/events"
	"github.com/MRamiBalles/factorysim/internal/gamedata"
	"github.com/MRamiBalles/factorysim/internal/platform/logger"
)

// FuelStatus is the observable state of a fuel buffer.
type FuelStatus struct {
	TotalEnergy    float64 `json:"total_energy"`    // MJ
	MaxEnergy      float64 `json:"max_energy"`      // MJ
	FillPercentage float64 `json:"fill_percentage"` // 0-100
	BurnProgress   float64 `json:"burn_progress"`   // [0,1] of the unit being burnt
}

// FuelRequest asks for fuel units on behalf of one facility.
type FuelRequest struct {
	InstanceID string
	Priority   int
	Order      int // placement order, lower first on equal priority
	Wanted     int
}

// FuelRefueledPayload is attached to FACILITY_REFUELED events.
type FuelRefueledPayload struct {
	InstanceID string  `json:"instance_id"`
	ItemID     item.ID `json:"item_id"`
	Units      int     `json:"units"`
	Auto       bool    `json:"auto"`
}

// FuelSystem owns the conversion of fuel items into energy.
type FuelSystem struct {
	catalog   gamedata.Catalog
	inventory *InventorySystem
	eventLog  *events.EventLog
	logger    *logger.Logger
	settings  Settings
}

func NewFuelSystem(catalog gamedata.Catalog, inv *InventorySystem, el *events.EventLog, log *logger.Logger, s Settings) *FuelSystem {
	return &FuelSystem{
		catalog:   catalog,
		inventory: inv,
		eventLog:  el,
		logger:    log,
		settings:  s.withDefaults(),
	}
}

func (fs *FuelSystem) fuelValue(id item.ID) float64 {
	if it, ok := fs.catalog.Item(id); ok {
		return it.FuelValue
	}
	return 0
}

// AddFuel loads up to qty whole units of itemID into buf. It returns the
// units accepted; ok is false when nothing could be added.
func (fs *FuelSystem) AddFuel(buf *facility.FuelBuffer, itemID item.ID, qty int, ft facility.Type) (int, bool) {
	if buf == nil || qty <= 0 {
		return 0, false
	}
	it, found := fs.catalog.Item(itemID)
	if !found || !it.IsFuel() || !ft.AcceptsFuel(it.FuelCategory) {
		return 0, false
	}

	stack := it.EffectiveStackSize()
	limit := float64(buf.MaxSlots*stack) * it.FuelValue
	if buf.Empty() || limit > buf.MaxEnergy {
		buf.MaxEnergy = limit
	}

	idx := -1
	for i, s := range buf.Slots {
		if s.ItemID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		if len(buf.Slots) >= buf.MaxSlots {
			return 0, false
		}
		buf.Slots = append(buf.Slots, facility.FuelSlot{ItemID: itemID})
		idx = len(buf.Slots) - 1
	}

	slot := &buf.Slots[idx]
	accepted := qty
	if room := stack - slot.Quantity; accepted > room {
		accepted = room
	}
	if room := int(math.Floor((buf.MaxEnergy-buf.TotalEnergy)/it.FuelValue + amountEpsilon)); accepted > room {
		accepted = room
	}
	if accepted <= 0 {
		if slot.Quantity == 0 {
			buf.Slots = buf.Slots[:idx]
		}
		return 0, false
	}

	slot.Quantity += accepted
	slot.RemainingEnergy += float64(accepted) * it.FuelValue
	buf.Recount()
	return accepted, true
}

// UpdateFuelConsumption burns the energy needed for delta of production.
// Slots are drained in order; an emptied slot is dropped. It returns false
// once every slot is empty.
func (fs *FuelSystem) UpdateFuelConsumption(buf *facility.FuelBuffer, delta time.Duration, isProducing bool, efficiency float64) bool {
	if buf == nil {
		return false
	}
	if !isProducing {
		return !buf.Empty()
	}
	need := rules.FuelDrain(buf.ConsumptionRate, efficiency, delta)
	for need > 0 {
		idx := buf.ActiveSlot()
		if idx < 0 {
			break
		}
		slot := &buf.Slots[idx]
		take := math.Min(need, slot.RemainingEnergy)
		slot.RemainingEnergy -= take
		need -= take
		if slot.RemainingEnergy < amountEpsilon {
			slot.RemainingEnergy = 0
		}
		if v := fs.fuelValue(slot.ItemID); v > 0 {
			slot.Quantity = int(math.Ceil(slot.RemainingEnergy/v - amountEpsilon))
		}
	}

	kept := buf.Slots[:0]
	for _, s := range buf.Slots {
		if !s.Empty() {
			kept = append(kept, s)
		}
	}
	buf.Slots = kept
	buf.Recount()
	return !buf.Empty()
}

// Status reports the fill level and the burn progress of the current unit.
func (fs *FuelSystem) Status(buf *facility.FuelBuffer) FuelStatus {
	if buf == nil {
		return FuelStatus{}
	}
	st := FuelStatus{TotalEnergy: buf.TotalEnergy, MaxEnergy: buf.MaxEnergy}
	if buf.MaxEnergy > 0 {
		st.FillPercentage = buf.TotalEnergy / buf.MaxEnergy * 100
	}
	if idx := buf.ActiveSlot(); idx >= 0 {
		slot := buf.Slots[idx]
		if v := fs.fuelValue(slot.ItemID); v > 0 {
			units := slot.RemainingEnergy / v
			if frac := units - math.Floor(units); frac > amountEpsilon {
				st.BurnProgress = 1 - frac
			}
		}
	}
	return st
}

// SmartDistribution hands out available units one at a time, each to the
// highest-priority request that still wants fuel. Equal priorities go by
// placement order.
func (fs *FuelSystem) SmartDistribution(requests []FuelRequest, available int) map[string]int {
	alloc := make(map[string]int, len(requests))
	if available <= 0 || len(requests) == 0 {
		return alloc
	}
	ordered := append([]FuelRequest(nil), requests...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority > ordered[j].Priority
		}
		return ordered[i].Order < ordered[j].Order
	})

	for available > 0 {
		granted := false
		for _, r := range ordered {
			if alloc[r.InstanceID] < r.Wanted {
				alloc[r.InstanceID]++
				available--
				granted = true
				break
			}
		}
		if !granted {
			break
		}
	}
	return alloc
}

// Refuel moves up to qty units of itemID from the inventory into the
// facility's buffer. Only the accepted units leave the inventory.
func (fs *FuelSystem) Refuel(inst *facility.Instance, ft facility.Type, itemID item.ID, qty int) (int, error) {
	if inst.Fuel == nil {
		return 0, fmt.Errorf("%w: %s does not burn fuel", ErrFuelRejected, inst.ID)
	}
	if qty <= 0 {
		return 0, ErrInvalidQuantity
	}
	if have := int(math.Floor(fs.inventory.Amount(itemID) + amountEpsilon)); have < qty {
		qty = have
	}
	if qty <= 0 {
		return 0, fmt.Errorf("%w: no %s in stock", ErrInsufficientMaterials, itemID)
	}
	accepted, ok := fs.AddFuel(inst.Fuel, itemID, qty, ft)
	if !ok {
		return 0, fmt.Errorf("%w: %s cannot take %s", ErrFuelRejected, inst.ID, itemID)
	}
	fs.inventory.Update(itemID, -float64(accepted))
	fs.emitRefuel(inst.ID, itemID, accepted, false)
	return accepted, nil
}

func (fs *FuelSystem) emitRefuel(instanceID string, itemID item.ID, units int, auto bool) {
	fs.eventLog.Append(events.GameEvent{
		Type:     events.EventTypeFacilityRefueled,
		TargetID: instanceID,
		Payload:  FuelRefueledPayload{InstanceID: instanceID, ItemID: itemID, Units: units, Auto: auto},
	})
	fs.logger.Event(string(events.EventTypeFacilityRefueled), events.ActorSystem,
		fmt.Sprintf("%s +%d %s", instanceID, units, itemID))
}

// needsFuel reports whether a burner is empty or below the low threshold.
func (fs *FuelSystem) needsFuel(inst *facility.Instance) bool {
	buf := inst.Fuel
	if buf == nil {
		return false
	}
	if inst.Status == facility.StatusNoFuel || buf.Empty() {
		return true
	}
	return buf.MaxEnergy > 0 && buf.TotalEnergy < fs.settings.LowFuelThreshold*buf.MaxEnergy
}

// bestFuel picks the stocked fuel with the highest energy the type accepts.
func (fs *FuelSystem) bestFuel(ft facility.Type) (item.ID, bool) {
	var best item.Item
	found := false
	for _, it := range fs.catalog.Items() {
		if !it.IsFuel() || !ft.AcceptsFuel(it.FuelCategory) || !fs.inventory.Has(it.ID, 1) {
			continue
		}
		if !found || it.FuelValue > best.FuelValue {
			best, found = it, true
		}
	}
	return best.ID, found
}

// AutoRefuel tops up hungry burners from the inventory. Instances must be
// given in placement order.
func (fs *FuelSystem) AutoRefuel(instances []*facility.Instance, types func(string) (facility.Type, bool)) {
	byFuel := make(map[item.ID][]FuelRequest)
	var fuelOrder []item.ID
	index := make(map[string]*facility.Instance)

	for order, inst := range instances {
		ft, ok := types(inst.FacilityID)
		if !ok || !ft.Burns() || !fs.needsFuel(inst) {
			continue
		}
		wanted := fs.settings.RefuelTargetUnits - inst.Fuel.Units()
		if wanted <= 0 {
			continue
		}
		fuel, ok := fs.bestFuel(ft)
		if !ok {
			continue
		}
		if _, seen := byFuel[fuel]; !seen {
			fuelOrder = append(fuelOrder, fuel)
		}
		byFuel[fuel] = append(byFuel[fuel], FuelRequest{
			InstanceID: inst.ID,
			Priority:   ft.Priority,
			Order:      order,
			Wanted:     wanted,
		})
		index[inst.ID] = inst
	}

	for _, fuel := range fuelOrder {
		available := int(math.Floor(fs.inventory.Amount(fuel) + amountEpsilon))
		alloc := fs.SmartDistribution(byFuel[fuel], available)
		for _, r := range byFuel[fuel] {
			n := alloc[r.InstanceID]
			if n == 0 {
				continue
			}
			inst := index[r.InstanceID]
			ft, _ := types(inst.FacilityID)
			accepted, ok := fs.AddFuel(inst.Fuel, fuel, n, ft)
			if !ok {
				continue
			}
			fs.inventory.Update(fuel, -float64(accepted))
			fs.emitRefuel(inst.ID, fuel, accepted, true)
		}
	}
}

// Drain returns the whole units left in buf to the inventory and empties it.
func (fs *FuelSystem) Drain(buf *facility.FuelBuffer) {
	if buf == nil {
		return
	}
	for _, s := range buf.Slots {
		v := fs.fuelValue(s.ItemID)
		if v <= 0 {
			continue
		}
		if whole := math.Floor(s.RemainingEnergy/v + amountEpsilon); whole > 0 {
			fs.inventory.Update(s.ItemID, whole)
		}
	}
	buf.Slots = buf.Slots[:0]
	buf.Recount()
}
