package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/MRamiBalles/factorysim/internal/domain/recipe"
	"github.com/MRamiBalles/factorysim/internal/domain/research"
	"github.com/MRamiBalles/factorysim/internal/domain/rules"
	"github.com/MRamiBalles/factorysim/internal/events"
	"github.com/MRamiBalles/factorysim/internal/gamedata"
	"github.com/MRamiBalles/factorysim/internal/platform/logger"
)

// UnlockService propagates what a completed technology unlocks.
type UnlockService interface {
	OnTechCompleted(id research.ID)
}

// UnlockFunc adapts a function to UnlockService.
type UnlockFunc func(id research.ID)

func (f UnlockFunc) OnTechCompleted(id research.ID) { f(id) }

// ResearchSnapshot is the observable research state.
type ResearchSnapshot struct {
	State     research.State       `json:"state"`
	Queue     []research.QueueItem `json:"queue"`
	Completed []research.ID        `json:"completed"`
}

// ResearchCompletedPayload is attached to RESEARCH_COMPLETED events.
type ResearchCompletedPayload struct {
	TechID  research.ID      `json:"tech_id"`
	Unlocks research.Unlocks `json:"unlocks"`
}

// ResearchSystem advances the active technology and evaluates trigger
// technologies against the production counters.
type ResearchSystem struct {
	catalog   gamedata.Catalog
	inventory *InventorySystem
	counters  rules.Counters
	unlocks   UnlockService
	eventLog  *events.EventLog
	logger    *logger.Logger

	state     research.State
	queue     []research.QueueItem
	completed map[research.ID]bool
	bonuses   map[recipe.ID]float64
}

func NewResearchSystem(catalog gamedata.Catalog, inv *InventorySystem, counters rules.Counters,
	unlocks UnlockService, el *events.EventLog, log *logger.Logger) *ResearchSystem {
	return &ResearchSystem{
		catalog:   catalog,
		inventory: inv,
		counters:  counters,
		unlocks:   unlocks,
		eventLog:  el,
		logger:    log,
		completed: make(map[research.ID]bool),
		bonuses:   make(map[recipe.ID]float64),
	}
}

// ProductivityBonus returns the summed bonus research grants r.
func (rs *ResearchSystem) ProductivityBonus(r recipe.ID) float64 {
	return rs.bonuses[r]
}

// Completed reports whether id has been researched.
func (rs *ResearchSystem) Completed(id research.ID) bool {
	return rs.completed[id]
}

func (rs *ResearchSystem) available(t research.Technology) bool {
	if rs.completed[t.ID] {
		return false
	}
	for _, p := range t.Prerequisites {
		if !rs.completed[p] {
			return false
		}
	}
	return true
}

// Start makes id the active research. An active technology is cancelled
// and its paid cost refunded.
func (rs *ResearchSystem) Start(id research.ID, now time.Duration) error {
	t, ok := rs.catalog.Technology(id)
	if !ok {
		return fmt.Errorf("%w: unknown technology %s", ErrTechnologyUnavailable, id)
	}
	if !rs.available(t) {
		return fmt.Errorf("%w: %s is completed or missing prerequisites", ErrTechnologyUnavailable, id)
	}
	if rs.state.Active() {
		rs.Cancel()
	}
	rs.dequeue(id)
	rs.begin(t, now)
	return nil
}

// Enqueue appends id to the research queue, starting it when idle.
func (rs *ResearchSystem) Enqueue(id research.ID, now time.Duration) error {
	t, ok := rs.catalog.Technology(id)
	if !ok {
		return fmt.Errorf("%w: unknown technology %s", ErrTechnologyUnavailable, id)
	}
	if rs.completed[id] || rs.state.CurrentTech == id {
		return fmt.Errorf("%w: %s already researched or active", ErrTechnologyUnavailable, id)
	}
	for _, q := range rs.queue {
		if q.TechID == id {
			return nil
		}
	}
	rs.queue = append(rs.queue, research.QueueItem{TechID: t.ID, QueuedAt: now})
	if !rs.state.Active() {
		rs.startNext(now)
	}
	return nil
}

// Dequeue removes id from the queue.
func (rs *ResearchSystem) Dequeue(id research.ID) bool {
	return rs.dequeue(id)
}

func (rs *ResearchSystem) dequeue(id research.ID) bool {
	for i, q := range rs.queue {
		if q.TechID == id {
			rs.queue = append(rs.queue[:i], rs.queue[i+1:]...)
			return true
		}
	}
	return false
}

// Cancel stops the active research, refunding a paid cost.
func (rs *ResearchSystem) Cancel() {
	if !rs.state.Active() {
		return
	}
	if rs.state.CostPaid {
		if t, ok := rs.catalog.Technology(rs.state.CurrentTech); ok {
			rs.inventory.BatchUpdate(t.Cost)
		}
	}
	rs.logger.Infof("research: cancelled %s at %.0f%%", rs.state.CurrentTech, rs.state.Progress*100)
	rs.state = research.State{}
}

func (rs *ResearchSystem) begin(t research.Technology, now time.Duration) {
	rs.state = research.State{CurrentTech: t.ID, StartTime: now}
	rs.tryPay(t)
	rs.eventLog.Append(events.GameEvent{
		SimTime:  now,
		Type:     events.EventTypeResearchStarted,
		TargetID: string(t.ID),
	})
}

// tryPay deducts the cost once every item is in stock.
func (rs *ResearchSystem) tryPay(t research.Technology) bool {
	if rs.state.CostPaid {
		return true
	}
	for _, c := range t.Cost {
		if !rs.inventory.Has(c.Item, c.Amount) {
			return false
		}
	}
	for _, c := range t.Cost {
		rs.inventory.Update(c.Item, -c.Amount)
	}
	rs.state.CostPaid = true
	return true
}

// startNext starts the first queued technology whose prerequisites are met.
func (rs *ResearchSystem) startNext(now time.Duration) {
	for i, q := range rs.queue {
		t, ok := rs.catalog.Technology(q.TechID)
		if !ok || rs.completed[q.TechID] {
			continue
		}
		if !rs.available(t) {
			continue
		}
		rs.queue = append(rs.queue[:i], rs.queue[i+1:]...)
		rs.begin(t, now)
		return
	}
	rs.state = research.State{}
}

// Process runs one research tick.
func (rs *ResearchSystem) Process(delta, now time.Duration) error {
	if err := rs.checkTriggers(now); err != nil {
		return err
	}
	if !rs.state.Active() {
		if len(rs.queue) > 0 {
			rs.startNext(now)
		}
		if !rs.state.Active() {
			return nil
		}
	}

	t, ok := rs.catalog.Technology(rs.state.CurrentTech)
	if !ok {
		rs.logger.Warnf("research: %s missing from catalog, dropping it", rs.state.CurrentTech)
		rs.startNext(now)
		return nil
	}
	if !rs.tryPay(t) {
		return nil
	}
	if t.IsTriggered() {
		// Handled by checkTriggers; an active trigger technology just waits.
		return nil
	}
	if t.ResearchTime <= 0 {
		rs.state.Progress = 1
	} else {
		rs.state.Progress += delta.Seconds() / t.ResearchTime
	}
	if rs.state.Progress >= 1-amountEpsilon {
		rs.state.Progress = 1
		rs.complete(t, now)
	}
	return nil
}

// checkTriggers completes every available trigger technology whose
// condition holds.
func (rs *ResearchSystem) checkTriggers(now time.Duration) error {
	for _, t := range rs.catalog.Technologies() {
		if !t.IsTriggered() || !rs.available(t) {
			continue
		}
		trig, ok := rs.catalog.Trigger(t.ID)
		if !ok {
			continue
		}
		fired, err := trig.Evaluate(rs.counters)
		if err != nil {
			return fmt.Errorf("failed to evaluate %s: %w", t.ID, err)
		}
		if fired {
			rs.complete(t, now)
		}
	}
	return nil
}

func (rs *ResearchSystem) complete(t research.Technology, now time.Duration) {
	rs.completed[t.ID] = true
	rs.applyEffects(t)
	if rs.unlocks != nil {
		rs.unlocks.OnTechCompleted(t.ID)
	}
	rs.eventLog.Append(events.GameEvent{
		SimTime:  now,
		Type:     events.EventTypeResearchCompleted,
		TargetID: string(t.ID),
		Payload:  ResearchCompletedPayload{TechID: t.ID, Unlocks: t.Unlocks},
	})
	rs.logger.Infof("research: %s completed", t.ID)

	rs.dequeue(t.ID)
	if rs.state.CurrentTech == t.ID {
		rs.startNext(now)
	}
}

func (rs *ResearchSystem) applyEffects(t research.Technology) {
	for _, e := range t.Effects {
		rs.bonuses[e.Recipe] += e.ProductivityBonus
	}
}

// Snapshot returns the research state.
func (rs *ResearchSystem) Snapshot() ResearchSnapshot {
	done := make([]research.ID, 0, len(rs.completed))
	for id := range rs.completed {
		done = append(done, id)
	}
	sort.Slice(done, func(i, j int) bool { return done[i] < done[j] })
	return ResearchSnapshot{
		State:     rs.state,
		Queue:     append([]research.QueueItem(nil), rs.queue...),
		Completed: done,
	}
}

// Restore replaces the research state and re-applies completed effects.
// The unlock service is not notified again.
func (rs *ResearchSystem) Restore(snap ResearchSnapshot) {
	rs.state = snap.State
	rs.queue = append([]research.QueueItem(nil), snap.Queue...)
	rs.completed = make(map[research.ID]bool, len(snap.Completed))
	rs.bonuses = make(map[recipe.ID]float64)
	for _, id := range snap.Completed {
		rs.completed[id] = true
		if t, ok := rs.catalog.Technology(id); ok {
			rs.applyEffects(t)
		}
	}
}
