package engine

import (
	"fmt"
	"math"

	"github.com/MRamiBalles/factorysim/internal/domain/item"
	"github.com/MRamiBalles/factorysim/internal/events"
	"github.com/MRamiBalles/factorysim/internal/gamedata"
	"github.com/MRamiBalles/factorysim/internal/platform/logger"
)

// amountEpsilon absorbs float residue when comparing stock amounts.
const amountEpsilon = 1e-9

// InventoryItem is the stock of one item with its stack-based capacity.
// Invariant: 0 <= CurrentAmount <= MaxCapacity.
type InventoryItem struct {
	ItemID           item.ID `json:"item_id"`
	CurrentAmount    float64 `json:"current_amount"`
	StackSize        int     `json:"stack_size"`
	BaseStacks       int     `json:"base_stacks"`
	AdditionalStacks int     `json:"additional_stacks"`
	TotalStacks      int     `json:"total_stacks"`
	MaxCapacity      float64 `json:"max_capacity"`
}

// InventorySystem is the shared source and sink of every production and
// consumption. Capacity is derived from the catalog stack size and the
// container stacks deployed for each item.
type InventorySystem struct {
	catalog    gamedata.Catalog
	items      map[item.ID]*InventoryItem
	containers map[item.ID]int
	eventLog   *events.EventLog
	logger     *logger.Logger
}

func NewInventorySystem(catalog gamedata.Catalog, el *events.EventLog, log *logger.Logger) *InventorySystem {
	return &InventorySystem{
		catalog:    catalog,
		items:      make(map[item.ID]*InventoryItem),
		containers: make(map[item.ID]int),
		eventLog:   el,
		logger:     log,
	}
}

func (is *InventorySystem) stackSize(id item.ID) int {
	if is.catalog != nil {
		if it, ok := is.catalog.Item(id); ok {
			return it.EffectiveStackSize()
		}
	}
	return item.DefaultStackSize
}

// derive fills the capacity fields from a stack size and container stacks.
func (it *InventoryItem) derive(stackSize, additional int) {
	it.StackSize = stackSize
	it.BaseStacks = 1
	it.AdditionalStacks = additional
	it.TotalStacks = it.BaseStacks + it.AdditionalStacks
	it.MaxCapacity = float64(it.TotalStacks * it.StackSize)
}

// GetOrCreate returns the entry for id, creating an empty one on first access.
func (is *InventorySystem) GetOrCreate(id item.ID) *InventoryItem {
	if it, ok := is.items[id]; ok {
		return it
	}
	it := &InventoryItem{ItemID: id}
	it.derive(is.stackSize(id), is.containers[id])
	is.items[id] = it
	return it
}

// Amount returns the current stock of id, 0 when absent.
func (is *InventorySystem) Amount(id item.ID) float64 {
	if it, ok := is.items[id]; ok {
		return it.CurrentAmount
	}
	return 0
}

// Has reports whether at least amount of id is in stock.
func (is *InventorySystem) Has(id item.ID, amount float64) bool {
	return is.Amount(id)+amountEpsilon >= amount
}

// Capacity returns the max capacity of id.
func (is *InventorySystem) Capacity(id item.ID) float64 {
	if it, ok := is.items[id]; ok {
		return it.MaxCapacity
	}
	var probe InventoryItem
	probe.derive(is.stackSize(id), is.containers[id])
	return probe.MaxCapacity
}

// Headroom returns how much more of id fits.
func (is *InventorySystem) Headroom(id item.ID) float64 {
	return is.Capacity(id) - is.Amount(id)
}

// Update adds delta to the stock of id, clamping into [0, MaxCapacity].
// It returns the change actually applied. An entry that reaches zero is
// removed. Non-finite deltas are ignored.
func (is *InventorySystem) Update(id item.ID, delta float64) float64 {
	if delta == 0 || !finite(delta) {
		return 0
	}
	it := is.GetOrCreate(id)
	before := it.CurrentAmount
	next := before + delta
	if next < amountEpsilon {
		next = 0
	}
	if next > it.MaxCapacity {
		is.logger.Infof("inventory: %s over capacity, discarding %.3f", id, next-it.MaxCapacity)
		next = it.MaxCapacity
	}
	it.CurrentAmount = next
	if next == 0 {
		delete(is.items, id)
	}
	return next - before
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// BatchUpdate applies every change in order and returns the applied deltas.
func (is *InventorySystem) BatchUpdate(changes []item.Stack) []float64 {
	applied := make([]float64, len(changes))
	for i, c := range changes {
		applied[i] = is.Update(c.Item, c.Amount)
	}
	return applied
}

// DeployContainer grants extra stacks to target.
func (is *InventorySystem) DeployContainer(target item.ID, stacks int) {
	if stacks <= 0 {
		return
	}
	is.containers[target] += stacks
	is.RecalculateCapacity(target)
}

// RemoveContainer withdraws stacks previously granted to target.
func (is *InventorySystem) RemoveContainer(target item.ID, stacks int) {
	if stacks <= 0 {
		return
	}
	is.containers[target] -= stacks
	if is.containers[target] <= 0 {
		delete(is.containers, target)
	}
	is.RecalculateCapacity(target)
}

// RecalculateCapacity refreshes the cached capacity of id. Stock above a
// shrunken capacity is discarded here, the only point where capacity changes.
func (is *InventorySystem) RecalculateCapacity(id item.ID) {
	it, ok := is.items[id]
	if !ok {
		return
	}
	it.derive(is.stackSize(id), is.containers[id])
	if it.CurrentAmount > it.MaxCapacity {
		is.logger.Warn(fmt.Sprintf("inventory: %s capacity shrank to %.0f, discarding %.3f",
			id, it.MaxCapacity, it.CurrentAmount-it.MaxCapacity))
		it.CurrentAmount = it.MaxCapacity
	}
}

// RecalculateAll refreshes every cached capacity.
func (is *InventorySystem) RecalculateAll() {
	for id := range is.items {
		is.RecalculateCapacity(id)
	}
}

// Snapshot returns a deep copy of the stock.
func (is *InventorySystem) Snapshot() map[item.ID]InventoryItem {
	out := make(map[item.ID]InventoryItem, len(is.items))
	for id, it := range is.items {
		out[id] = *it
	}
	return out
}

// Containers returns the deployed container stacks per item.
func (is *InventorySystem) Containers() map[item.ID]int {
	out := make(map[item.ID]int, len(is.containers))
	for id, n := range is.containers {
		out[id] = n
	}
	return out
}

// Restore replaces the stock and containers, re-deriving capacities.
func (is *InventorySystem) Restore(items map[item.ID]InventoryItem, containers map[item.ID]int) {
	is.containers = make(map[item.ID]int, len(containers))
	for id, n := range containers {
		if n > 0 {
			is.containers[id] = n
		}
	}
	is.items = make(map[item.ID]*InventoryItem, len(items))
	for id, it := range items {
		if it.CurrentAmount <= 0 {
			continue
		}
		is.GetOrCreate(id).CurrentAmount = it.CurrentAmount
		is.RecalculateCapacity(id)
	}
}
