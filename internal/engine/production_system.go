package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/MRamiBalles/factorysim/internal/domain/facility"
	"github.com/MRamiBalles/factorysim/internal/domain/item"
	"github.com/MRamiBalles/factorysim/internal/domain/recipe"
	"github.com/MRamiBalles/factorysim/internal/domain/rules"
	"github.com/MRamiBalles/factorysim/internal/events"
	"github.com/MRamiBalles/factorysim/internal/gamedata"
	"github.com/MRamiBalles/factorysim/internal/platform/logger"
)

// FacilitySpec is the player's request to place facilities.
type FacilitySpec struct {
	FacilityID   string    `json:"facility_id" validate:"required"`
	TargetItemID item.ID   `json:"target_item_id"`
	RecipeID     recipe.ID `json:"recipe_id"`
	Count        int       `json:"count" validate:"min=0"`
}

// FacilityUpdate changes a placed facility. Nil fields are left alone.
type FacilityUpdate struct {
	TargetItemID *item.ID   `json:"target_item_id,omitempty"`
	RecipeID     *recipe.ID `json:"recipe_id,omitempty"`
	Count        *int       `json:"count,omitempty" validate:"omitempty,min=1"`
}

// ProductionCompletedPayload is attached to PRODUCTION_COMPLETED events.
type ProductionCompletedPayload struct {
	InstanceID string       `json:"instance_id"`
	RecipeID   recipe.ID    `json:"recipe_id"`
	Outputs    []item.Stack `json:"outputs"`
}

// StatusChangedPayload is attached to FACILITY_STATUS_CHANGED events.
type StatusChangedPayload struct {
	InstanceID string          `json:"instance_id"`
	From       facility.Status `json:"from"`
	To         facility.Status `json:"to"`
}

// bonusSource supplies research productivity bonuses per recipe.
type bonusSource interface {
	ProductivityBonus(id recipe.ID) float64
}

// ProductionSystem drives automated recipe execution for every placed
// facility, in placement order.
type ProductionSystem struct {
	catalog   gamedata.Catalog
	inventory *InventorySystem
	fuel      *FuelSystem
	power     *PowerSystem
	stats     *Stats
	bonus     bonusSource
	eventLog  *events.EventLog
	logger    *logger.Logger
	recorder  Recorder

	instances map[string]*facility.Instance
	order     []string
}

func NewProductionSystem(catalog gamedata.Catalog, inv *InventorySystem, fuel *FuelSystem, power *PowerSystem,
	stats *Stats, bonus bonusSource, el *events.EventLog, log *logger.Logger, rec Recorder) *ProductionSystem {
	return &ProductionSystem{
		catalog:   catalog,
		inventory: inv,
		fuel:      fuel,
		power:     power,
		stats:     stats,
		bonus:     bonus,
		eventLog:  el,
		logger:    log,
		recorder:  rec,
		instances: make(map[string]*facility.Instance),
	}
}

func (ps *ProductionSystem) facilityType(id string) (facility.Type, bool) {
	return ps.catalog.Facility(id)
}

// ordered returns the live instances in placement order.
func (ps *ProductionSystem) ordered() []*facility.Instance {
	out := make([]*facility.Instance, 0, len(ps.order))
	for _, id := range ps.order {
		if inst, ok := ps.instances[id]; ok {
			out = append(out, inst)
		}
	}
	return out
}

// Get returns the live instance with id.
func (ps *ProductionSystem) Get(id string) (*facility.Instance, bool) {
	inst, ok := ps.instances[id]
	return inst, ok
}

// Place creates a facility instance from spec.
func (ps *ProductionSystem) Place(spec FacilitySpec, now time.Duration) (facility.Instance, error) {
	ft, ok := ps.facilityType(spec.FacilityID)
	if !ok {
		return facility.Instance{}, fmt.Errorf("%w: %s", ErrUnknownFacility, spec.FacilityID)
	}
	if spec.Count < 0 {
		return facility.Instance{}, ErrInvalidQuantity
	}
	if spec.Count == 0 {
		spec.Count = 1
	}
	if spec.TargetItemID != "" {
		if _, ok := ps.catalog.Item(spec.TargetItemID); !ok {
			return facility.Instance{}, fmt.Errorf("%w: %s", ErrUnknownItem, spec.TargetItemID)
		}
	}

	inst := &facility.Instance{
		ID:           uuid.NewString(),
		FacilityID:   ft.ID,
		TargetItemID: spec.TargetItemID,
		RecipeID:     spec.RecipeID,
		Count:        spec.Count,
		Status:       facility.StatusRunning,
		Efficiency:   1,
		PlacedAt:     now,
	}

	switch {
	case ft.IsContainer():
		if spec.TargetItemID == "" {
			return facility.Instance{}, fmt.Errorf("%w: container needs a target item", ErrUnknownItem)
		}
		ps.inventory.DeployContainer(spec.TargetItemID, ft.ContainerStacks*spec.Count)
	case ft.IsGenerator():
	default:
		if spec.RecipeID != "" || spec.TargetItemID != "" {
			r, ok := ps.resolveRecipe(inst, ft)
			if !ok {
				return facility.Instance{}, fmt.Errorf("%w: %s cannot make %s%s", ErrUnknownRecipe, ft.ID, spec.RecipeID, spec.TargetItemID)
			}
			ps.bindRecipe(inst, r)
		} else {
			inst.Status = facility.StatusNoInput
		}
	}
	if ft.Burns() {
		inst.Fuel = facility.NewFuelBuffer(inst.ID, ft)
		inst.Fuel.LastUpdate = now
	}

	ps.instances[inst.ID] = inst
	ps.order = append(ps.order, inst.ID)
	ps.stats.AddBuilt(ft.ID, inst.Count)

	ps.eventLog.Append(events.GameEvent{
		SimTime:  now,
		Type:     events.EventTypeFacilityPlaced,
		TargetID: inst.ID,
		Payload:  inst.Clone(),
	})
	ps.logger.Event(string(events.EventTypeFacilityPlaced), events.ActorSystem,
		fmt.Sprintf("%s x%d -> %s", ft.ID, inst.Count, inst.TargetItemID))
	return inst.Clone(), nil
}

// Remove destroys a facility. Whole fuel units go back to the inventory and
// container stacks are withdrawn.
func (ps *ProductionSystem) Remove(id string, now time.Duration) error {
	inst, ok := ps.instances[id]
	if !ok {
		return fmt.Errorf("%w: instance %s", ErrUnknownFacility, id)
	}
	if ft, ok := ps.facilityType(inst.FacilityID); ok && ft.IsContainer() {
		ps.inventory.RemoveContainer(inst.TargetItemID, ft.ContainerStacks*inst.Count)
	}
	ps.fuel.Drain(inst.Fuel)

	delete(ps.instances, id)
	for i, oid := range ps.order {
		if oid == id {
			ps.order = append(ps.order[:i], ps.order[i+1:]...)
			break
		}
	}
	ps.eventLog.Append(events.GameEvent{
		SimTime:  now,
		Type:     events.EventTypeFacilityRemoved,
		TargetID: id,
	})
	return nil
}

// Update changes target, recipe or count of a placed facility. Changing what
// it makes restarts the production cycle.
func (ps *ProductionSystem) Update(id string, upd FacilityUpdate) (facility.Instance, error) {
	inst, ok := ps.instances[id]
	if !ok {
		return facility.Instance{}, fmt.Errorf("%w: instance %s", ErrUnknownFacility, id)
	}
	ft, ok := ps.facilityType(inst.FacilityID)
	if !ok {
		return facility.Instance{}, fmt.Errorf("%w: %s", ErrUnknownFacility, inst.FacilityID)
	}

	next := inst.Clone()
	if upd.Count != nil {
		if *upd.Count <= 0 {
			return facility.Instance{}, ErrInvalidQuantity
		}
		next.Count = *upd.Count
	}
	retarget := false
	if upd.TargetItemID != nil && *upd.TargetItemID != inst.TargetItemID {
		if _, ok := ps.catalog.Item(*upd.TargetItemID); !ok {
			return facility.Instance{}, fmt.Errorf("%w: %s", ErrUnknownItem, *upd.TargetItemID)
		}
		next.TargetItemID = *upd.TargetItemID
		if upd.RecipeID == nil {
			next.RecipeID = ""
		}
		retarget = true
	}
	if upd.RecipeID != nil && *upd.RecipeID != inst.RecipeID {
		next.RecipeID = *upd.RecipeID
		retarget = true
	}

	if ft.IsContainer() {
		ps.inventory.RemoveContainer(inst.TargetItemID, ft.ContainerStacks*inst.Count)
		ps.inventory.DeployContainer(next.TargetItemID, ft.ContainerStacks*next.Count)
	} else if !ft.IsGenerator() && (retarget || next.Count != inst.Count) {
		if retarget {
			next.Production.CurrentRecipeID = ""
		}
		r, ok := ps.resolveRecipe(&next, ft)
		if !ok {
			return facility.Instance{}, fmt.Errorf("%w: %s cannot make %s%s", ErrUnknownRecipe, ft.ID, next.RecipeID, next.TargetItemID)
		}
		progress := next.Production.Progress
		ps.bindRecipe(&next, r)
		if !retarget {
			next.Production.Progress = progress
		}
		if next.Status == facility.StatusNoInput || retarget {
			next.Status = facility.StatusRunning
		}
	}
	if next.Count > inst.Count {
		ps.stats.AddBuilt(ft.ID, next.Count-inst.Count)
	}

	*inst = next
	return inst.Clone(), nil
}

// resolveRecipe picks the explicit recipe, else the first recipe producing
// the target that this facility category can run.
func (ps *ProductionSystem) resolveRecipe(inst *facility.Instance, ft facility.Type) (recipe.Recipe, bool) {
	if inst.RecipeID != "" {
		r, ok := ps.catalog.Recipe(inst.RecipeID)
		if !ok || !r.MadeBy(string(ft.Category)) {
			return recipe.Recipe{}, false
		}
		return r, true
	}
	if inst.Production.CurrentRecipeID != "" {
		if r, ok := ps.catalog.Recipe(inst.Production.CurrentRecipeID); ok {
			return r, true
		}
	}
	for _, r := range ps.catalog.RecipesFor(inst.TargetItemID) {
		if r.MadeBy(string(ft.Category)) {
			return r, true
		}
	}
	return recipe.Recipe{}, false
}

// bindRecipe resets the production state to a fresh cycle of r.
func (ps *ProductionSystem) bindRecipe(inst *facility.Instance, r recipe.Recipe) {
	n := instanceCount(inst)
	inst.Production = facility.ProductionState{
		CurrentRecipeID: r.ID,
		InputBuffer:     make(map[item.ID]float64, len(r.Inputs)),
		OutputBuffer:    make(map[item.ID]float64, len(r.Outputs)),
	}
	for _, in := range r.Inputs {
		inst.Production.InputBuffer[in.Item] += in.Amount * n
	}
	for _, out := range r.Outputs {
		inst.Production.OutputBuffer[out.Item] += out.Amount * n
	}
}

func (ps *ProductionSystem) setStatus(inst *facility.Instance, to facility.Status, now time.Duration) {
	if inst.Status == to {
		return
	}
	from := inst.Status
	inst.Status = to
	ps.eventLog.Append(events.GameEvent{
		SimTime:  now,
		Type:     events.EventTypeFacilityStatusChanged,
		TargetID: inst.ID,
		Payload:  StatusChangedPayload{InstanceID: inst.ID, From: from, To: to},
	})
	ps.logger.Event(string(events.EventTypeFacilityStatusChanged), events.ActorSystem,
		fmt.Sprintf("%s %s -> %s", inst.ID, from, to))
}

// Process runs one production tick of delta for every facility.
func (ps *ProductionSystem) Process(delta, now time.Duration) {
	instances := ps.ordered()
	balance := ps.power.Apply(instances, ps.facilityType)
	ps.fuel.AutoRefuel(instances, ps.facilityType)

	counts := make(map[facility.Status]int, len(facility.Statuses))
	for _, inst := range instances {
		ft, ok := ps.facilityType(inst.FacilityID)
		if !ok {
			ps.logger.Warnf("production: facility type %s missing from catalog, skipping %s", inst.FacilityID, inst.ID)
			continue
		}
		ps.step(inst, ft, delta, now)
		counts[inst.Status]++
		if inst.Fuel != nil {
			inst.Fuel.LastUpdate = now
			ps.recorder.FuelEnergy(inst.ID, inst.Fuel.TotalEnergy)
		}
	}
	ps.recorder.FacilityStatuses(counts)
	ps.recorder.PowerSatisfaction(balance.Satisfaction)
}

func (ps *ProductionSystem) step(inst *facility.Instance, ft facility.Type, delta, now time.Duration) {
	switch {
	case ft.IsContainer():
		return
	case ft.IsGenerator():
		ps.stepGenerator(inst, ft, delta, now)
		return
	}

	if ft.Burns() && (inst.Fuel == nil || inst.Fuel.Empty()) {
		ps.setStatus(inst, facility.StatusNoFuel, now)
		return
	}

	r, ok := ps.resolveRecipe(inst, ft)
	if !ok {
		ps.logger.Debugf("production: %s has no recipe for %s", inst.ID, inst.TargetItemID)
		ps.setStatus(inst, facility.StatusNoInput, now)
		return
	}
	if inst.Production.CurrentRecipeID != r.ID {
		ps.bindRecipe(inst, r)
	}

	if !ps.inputsAvailable(inst) {
		ps.setStatus(inst, facility.StatusNoInput, now)
		return
	}
	if inst.Status == facility.StatusOutputFull && !ps.outputsFit(inst, r) {
		return
	}
	ps.setStatus(inst, facility.StatusRunning, now)

	fueled := true
	if inst.Production.Progress < 1-amountEpsilon {
		if ft.Burns() {
			fueled = ps.fuel.UpdateFuelConsumption(inst.Fuel, delta, true, inst.Efficiency)
		}
		if r.Time <= 0 {
			inst.Production.Progress = 1
		} else {
			inst.Production.Progress += rules.ProductionStep(delta, r.Time, inst.Efficiency, ft.Speed())
		}
	}
	if inst.Production.Progress >= 1-amountEpsilon {
		ps.complete(inst, r, now)
	}
	if !fueled && inst.Status == facility.StatusRunning {
		ps.setStatus(inst, facility.StatusNoFuel, now)
	}
}

func (ps *ProductionSystem) stepGenerator(inst *facility.Instance, ft facility.Type, delta, now time.Duration) {
	if !ft.Burns() {
		ps.setStatus(inst, facility.StatusRunning, now)
		return
	}
	if inst.Fuel == nil || inst.Fuel.Empty() {
		ps.setStatus(inst, facility.StatusNoFuel, now)
		return
	}
	if ps.fuel.UpdateFuelConsumption(inst.Fuel, delta, true, inst.Efficiency) {
		ps.setStatus(inst, facility.StatusRunning, now)
	} else {
		ps.setStatus(inst, facility.StatusNoFuel, now)
	}
}

func (ps *ProductionSystem) inputsAvailable(inst *facility.Instance) bool {
	for id, amount := range inst.Production.InputBuffer {
		if !ps.inventory.Has(id, amount) {
			return false
		}
	}
	return true
}

// cycleOutputs is what one completed cycle yields, productivity included.
func (ps *ProductionSystem) cycleOutputs(inst *facility.Instance, r recipe.Recipe) []item.Stack {
	factor := instanceCount(inst) * (1 + ps.bonus.ProductivityBonus(r.ID))
	return item.Scale(r.Outputs, factor)
}

func (ps *ProductionSystem) outputsFit(inst *facility.Instance, r recipe.Recipe) bool {
	for _, out := range ps.cycleOutputs(inst, r) {
		if ps.inventory.Headroom(out.Item)+amountEpsilon < out.Amount {
			return false
		}
	}
	return true
}

// complete finishes one cycle: either every input is debited and every
// output credited, or nothing moves and the facility waits at 1.0.
// At most one cycle completes per production tick. The carried fraction is
// progress-1 clamped into [0,1], so a tick worth two or more cycles (after a
// long stall) keeps at most one cycle of carry-over instead of catching up.
func (ps *ProductionSystem) complete(inst *facility.Instance, r recipe.Recipe, now time.Duration) {
	if !ps.outputsFit(inst, r) {
		inst.Production.Progress = 1
		ps.setStatus(inst, facility.StatusOutputFull, now)
		return
	}

	n := instanceCount(inst)
	for _, in := range r.Inputs {
		ps.inventory.Update(in.Item, -in.Amount*n)
	}
	outputs := ps.cycleOutputs(inst, r)
	mined := r.HasFlag(recipe.FlagMining)
	for _, out := range outputs {
		ps.inventory.Update(out.Item, out.Amount)
		if mined {
			ps.stats.AddMined(out.Item, out.Amount)
		} else {
			ps.stats.AddCrafted(out.Item, out.Amount)
		}
	}
	inst.Production.Progress = math.Min(math.Max(inst.Production.Progress-1, 0), 1)

	ps.recorder.ProductionCycle(inst.FacilityID)
	ps.eventLog.Append(events.GameEvent{
		SimTime:  now,
		Type:     events.EventTypeProductionCompleted,
		TargetID: inst.ID,
		Payload:  ProductionCompletedPayload{InstanceID: inst.ID, RecipeID: r.ID, Outputs: outputs},
	})
}

// Snapshot returns deep copies of every instance in placement order.
func (ps *ProductionSystem) Snapshot() []facility.Instance {
	instances := ps.ordered()
	out := make([]facility.Instance, len(instances))
	for i, inst := range instances {
		out[i] = inst.Clone()
	}
	return out
}

// Restore replaces the placed facilities. Container stacks are expected to
// be restored with the inventory.
func (ps *ProductionSystem) Restore(instances []facility.Instance) {
	ps.instances = make(map[string]*facility.Instance, len(instances))
	ps.order = ps.order[:0]
	for _, inst := range instances {
		c := inst.Clone()
		ps.instances[c.ID] = &c
		ps.order = append(ps.order, c.ID)
	}
}
