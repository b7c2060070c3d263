package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MRamiBalles/factorysim/internal/domain/crafting"
	"github.com/MRamiBalles/factorysim/internal/domain/facility"
	"github.com/MRamiBalles/factorysim/internal/domain/item"
	"github.com/MRamiBalles/factorysim/internal/domain/research"
	"github.com/MRamiBalles/factorysim/internal/events"
	"github.com/MRamiBalles/factorysim/internal/gamedata"
	"github.com/MRamiBalles/factorysim/internal/platform/logger"
)

// Option configures an Engine.
type Option func(*Engine)

// WithSettings overrides the default tuning.
func WithSettings(s Settings) Option {
	return func(e *Engine) { e.settings = s.withDefaults() }
}

// WithRecorder sets the metrics sink.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithUnlockService sets who is told about completed technologies.
func WithUnlockService(u UnlockService) Option {
	return func(e *Engine) { e.unlocks = u }
}

// WithSaver enables autosave.
func WithSaver(s Saver) Option {
	return func(e *Engine) { e.saver = s }
}

// Engine is the central orchestrator. Every entry point and Tick take the
// same lock, so observers always see state between ticks.
type Engine struct {
	mu sync.Mutex

	catalog  gamedata.Catalog
	eventLog *events.EventLog
	logger   *logger.Logger
	recorder Recorder
	unlocks  UnlockService
	saver    Saver
	settings Settings

	scheduler *Scheduler

	// Sub-systems
	inventorySystem  *InventorySystem
	stats            *Stats
	fuelSystem       *FuelSystem
	powerSystem      *PowerSystem
	productionSystem *ProductionSystem
	craftingSystem   *CraftingSystem
	researchSystem   *ResearchSystem
	autosaveSystem   *AutosaveSystem

	dataReady bool
}

// NewEngine wires the subsystems around catalog.
func NewEngine(catalog gamedata.Catalog, eventLog *events.EventLog, log *logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		catalog:  catalog,
		eventLog: eventLog,
		logger:   log,
		recorder: nopRecorder{},
		settings: DefaultSettings(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.inventorySystem = NewInventorySystem(catalog, eventLog, log)
	e.stats = NewStats(e.inventorySystem)
	e.researchSystem = NewResearchSystem(catalog, e.inventorySystem, e.stats, e.unlocks, eventLog, log)
	e.fuelSystem = NewFuelSystem(catalog, e.inventorySystem, eventLog, log, e.settings)
	e.powerSystem = NewPowerSystem(eventLog, log)
	e.productionSystem = NewProductionSystem(catalog, e.inventorySystem, e.fuelSystem, e.powerSystem,
		e.stats, e.researchSystem, eventLog, log, e.recorder)
	e.craftingSystem = NewCraftingSystem(catalog, e.inventorySystem, e.stats, e.researchSystem,
		eventLog, log, e.recorder, e.settings)
	e.autosaveSystem = NewAutosaveSystem(e.saver, eventLog, log)

	e.scheduler = NewScheduler(eventLog, log, e.recorder, func() bool { return e.dataReady })
	e.scheduler.Register(SubsystemCrafting, e.settings.CraftingInterval, true, func(time.Duration) error {
		e.craftingSystem.Process(e.scheduler.Now())
		return nil
	})
	e.scheduler.Register(SubsystemProduction, e.settings.ProductionInterval, true, func(elapsed time.Duration) error {
		e.productionSystem.Process(elapsed, e.scheduler.Now())
		return nil
	})
	e.scheduler.Register(SubsystemResearch, e.settings.ResearchInterval, true, func(elapsed time.Duration) error {
		return e.researchSystem.Process(elapsed, e.scheduler.Now())
	})
	e.scheduler.Register(SubsystemAutosave, e.settings.AutosaveInterval, false, func(time.Duration) error {
		if e.autosaveSystem.Enabled() {
			e.autosaveSystem.Offer(e.snapshot())
		}
		return nil
	})
	e.scheduler.Register(SubsystemDataCheck, e.settings.DataCheckInterval, false, func(time.Duration) error {
		e.checkData()
		return nil
	})

	e.checkData()
	return e
}

// checkData flips the engine to ready the first time the catalog is.
func (e *Engine) checkData() {
	if e.dataReady || !gamedata.IsReady(e.catalog) {
		return
	}
	e.dataReady = true
	e.inventorySystem.RecalculateAll()
	e.eventLog.Append(events.GameEvent{SimTime: e.scheduler.Now(), Type: events.EventTypeDataReady})
	e.logger.Info("Game data ready, simulation subsystems enabled")
}

// Start spawns the autosave worker.
func (e *Engine) Start(ctx context.Context) {
	e.logger.Info("Starting factory simulation engine...")
	e.autosaveSystem.Start(ctx)
}

// Close stops the autosave worker after its in-flight save.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.autosaveSystem.Stop()
}

// Tick advances the simulation by delta.
func (e *Engine) Tick(delta time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scheduler.Tick(delta)
}

// TickSeconds advances the simulation by a float number of seconds.
func (e *Engine) TickSeconds(seconds float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scheduler.TickSeconds(seconds)
}

// Now returns the simulation clock.
func (e *Engine) Now() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scheduler.Now()
}

// DataReady reports whether the simulation subsystems are enabled.
func (e *Engine) DataReady() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dataReady
}

// Catalog exposes the game data the engine runs on.
func (e *Engine) Catalog() gamedata.Catalog { return e.catalog }

// GetEventLog exposes the journal for observers.
func (e *Engine) GetEventLog() *events.EventLog { return e.eventLog }

// AddCraftingTask enqueues a crafting task and reports success.
func (e *Engine) AddCraftingTask(spec crafting.Spec) bool {
	_, err := e.TryAddCraftingTask(spec)
	return err == nil
}

// TryAddCraftingTask enqueues a crafting task, returning why it was refused.
func (e *Engine) TryAddCraftingTask(spec crafting.Spec) (crafting.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, err := e.craftingSystem.Add(spec)
	if err != nil {
		e.logger.Debugf("crafting: rejected %s x%d: %v", spec.Kind, spec.Quantity, err)
	}
	return t, err
}

// AddCraftingChain plans and enqueues every step to craft qty of target.
func (e *Engine) AddCraftingChain(target item.ID, qty int) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.craftingSystem.AddChain(target, qty)
}

// RemoveCraftingTask cancels a queued task.
func (e *Engine) RemoveCraftingTask(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.craftingSystem.Remove(id, e.scheduler.Now())
}

// UpdateInventory changes the stock of an item and returns the applied delta.
func (e *Engine) UpdateInventory(id item.ID, delta float64) (float64, error) {
	if _, ok := e.catalog.Item(id); !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownItem, id)
	}
	if !finite(delta) {
		return 0, fmt.Errorf("%w: %v for %s", ErrInvalidQuantity, delta, id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inventorySystem.Update(id, delta), nil
}

// BatchUpdateInventory applies several changes in order. Unknown items and
// non-finite amounts are skipped with a zero applied delta.
func (e *Engine) BatchUpdateInventory(changes []item.Stack) []float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	applied := make([]float64, len(changes))
	for i, c := range changes {
		if _, ok := e.catalog.Item(c.Item); !ok {
			e.logger.Warnf("inventory: unknown item %s ignored", c.Item)
			continue
		}
		if !finite(c.Amount) {
			e.logger.Warnf("inventory: non-finite amount %v for %s ignored", c.Amount, c.Item)
			continue
		}
		applied[i] = e.inventorySystem.Update(c.Item, c.Amount)
	}
	return applied
}

// AddFacility places facilities.
func (e *Engine) AddFacility(spec FacilitySpec) (facility.Instance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.productionSystem.Place(spec, e.scheduler.Now())
}

// UpdateFacility changes a placed facility.
func (e *Engine) UpdateFacility(id string, upd FacilityUpdate) (facility.Instance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.productionSystem.Update(id, upd)
}

// RemoveFacility destroys a placed facility.
func (e *Engine) RemoveFacility(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.productionSystem.Remove(id, e.scheduler.Now())
}

// RefuelFacility loads fuel from the inventory and reports whether any was accepted.
func (e *Engine) RefuelFacility(id string, itemID item.ID, qty int) bool {
	_, err := e.TryRefuelFacility(id, itemID, qty)
	return err == nil
}

// TryRefuelFacility loads fuel and returns the accepted units.
func (e *Engine) TryRefuelFacility(id string, itemID item.ID, qty int) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, ok := e.productionSystem.Get(id)
	if !ok {
		return 0, fmt.Errorf("%w: instance %s", ErrUnknownFacility, id)
	}
	ft, ok := e.catalog.Facility(inst.FacilityID)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownFacility, inst.FacilityID)
	}
	return e.fuelSystem.Refuel(inst, ft, itemID, qty)
}

// StartResearch makes id the active technology.
func (e *Engine) StartResearch(id research.ID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.researchSystem.Start(id, e.scheduler.Now())
}

// QueueResearch appends id to the research queue.
func (e *Engine) QueueResearch(id research.ID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.researchSystem.Enqueue(id, e.scheduler.Now())
}

// CancelResearch stops the active technology, refunding its cost.
func (e *Engine) CancelResearch() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.researchSystem.Cancel()
	e.researchSystem.startNext(e.scheduler.Now())
}

// SnapshotInventory returns a copy of the stock.
func (e *Engine) SnapshotInventory() map[item.ID]InventoryItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inventorySystem.Snapshot()
}

// SnapshotFacilities returns copies of the placed facilities.
func (e *Engine) SnapshotFacilities() []facility.Instance {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.productionSystem.Snapshot()
}

// SnapshotCraftingQueue returns copies of the queued tasks.
func (e *Engine) SnapshotCraftingQueue() []crafting.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.craftingSystem.Snapshot()
}

// SnapshotResearch returns the research state.
func (e *Engine) SnapshotResearch() ResearchSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.researchSystem.Snapshot()
}

// FuelStatus reports the fuel buffer of a facility.
func (e *Engine) FuelStatus(id string) (FuelStatus, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, ok := e.productionSystem.Get(id)
	if !ok || inst.Fuel == nil {
		return FuelStatus{}, false
	}
	return e.fuelSystem.Status(inst.Fuel), true
}

// PowerBalance returns the balance of the latest production tick.
func (e *Engine) PowerBalance() Balance {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.powerSystem.Last()
}

// Snapshot returns a copy of the whole game.
func (e *Engine) Snapshot() GameSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot()
}

func (e *Engine) snapshot() GameSnapshot {
	return GameSnapshot{
		SavedAt:       time.Now(),
		SimTime:       e.scheduler.Now(),
		Inventory:     e.inventorySystem.Snapshot(),
		Containers:    e.inventorySystem.Containers(),
		Facilities:    e.productionSystem.Snapshot(),
		CraftingQueue: e.craftingSystem.Snapshot(),
		Chains:        e.craftingSystem.Chains(),
		Research:      e.researchSystem.Snapshot(),
		Stats:         e.stats.Snapshot(),
	}
}

// Restore replaces the whole game state with snap.
func (e *Engine) Restore(snap GameSnapshot) error {
	if snap.SimTime < 0 {
		return errors.New("snapshot has negative simulation time")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.scheduler.SetClock(snap.SimTime)
	e.inventorySystem.Restore(snap.Inventory, snap.Containers)
	e.productionSystem.Restore(snap.Facilities)
	e.craftingSystem.Restore(snap.CraftingQueue, snap.Chains)
	e.researchSystem.Restore(snap.Research)
	e.stats.Restore(snap.Stats)
	e.logger.Infof("Restored game at %s: %d items, %d facilities, %d queued tasks",
		snap.SimTime, len(snap.Inventory), len(snap.Facilities), len(snap.CraftingQueue))
	return nil
}
