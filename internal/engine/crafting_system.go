package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/MRamiBalles/factorysim/internal/domain/crafting"
	"github.com/MRamiBalles/factorysim/internal/domain/item"
	"github.com/MRamiBalles/factorysim/internal/domain/recipe"
	"github.com/MRamiBalles/factorysim/internal/domain/rules"
	"github.com/MRamiBalles/factorysim/internal/events"
	"github.com/MRamiBalles/factorysim/internal/gamedata"
	"github.com/MRamiBalles/factorysim/internal/platform/logger"
)

// maxChainDepth bounds recipe expansion when planning a chain.
const maxChainDepth = 16

// CraftPayload is attached to crafting events.
type CraftPayload struct {
	TaskID   string  `json:"task_id"`
	ItemID   item.ID `json:"item_id"`
	Quantity int     `json:"quantity"`
	Progress float64 `json:"progress"`
	ChainID  string  `json:"chain_id,omitempty"`
}

// ChainSnapshot is the held state of a multi-step plan.
type ChainSnapshot struct {
	ID     string              `json:"id"`
	Target item.ID             `json:"target"`
	Held   map[item.ID]float64 `json:"held"`
}

type chain struct {
	id     string
	target item.ID
	held   map[item.ID]float64 // intermediate outputs not credited to the inventory
}

// CraftingSystem processes the manual crafting queue. Only the head task is
// ever active.
type CraftingSystem struct {
	catalog   gamedata.Catalog
	inventory *InventorySystem
	stats     *Stats
	bonus     bonusSource
	eventLog  *events.EventLog
	logger    *logger.Logger
	recorder  Recorder
	settings  Settings

	queue  []*crafting.Task
	chains map[string]*chain
}

func NewCraftingSystem(catalog gamedata.Catalog, inv *InventorySystem, stats *Stats, bonus bonusSource,
	el *events.EventLog, log *logger.Logger, rec Recorder, s Settings) *CraftingSystem {
	return &CraftingSystem{
		catalog:   catalog,
		inventory: inv,
		stats:     stats,
		bonus:     bonus,
		eventLog:  el,
		logger:    log,
		recorder:  rec,
		settings:  s.withDefaults(),
		chains:    make(map[string]*chain),
	}
}

// manualRecipe picks the recipe used to hand-craft id among those a player
// can make by hand: mining first, then recycling, then the first one. ok is
// false for raw items without recipes. An item whose recipes all need a
// facility is an error.
func (cs *CraftingSystem) manualRecipe(id item.ID) (recipe.Recipe, bool, error) {
	all := cs.catalog.RecipesFor(id)
	if len(all) == 0 {
		return recipe.Recipe{}, false, nil
	}
	candidates := all[:0:0]
	for _, r := range all {
		if r.MadeBy(recipe.ProducerManual) {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return recipe.Recipe{}, false, fmt.Errorf("%w: %s cannot be crafted by hand", ErrUnknownRecipe, id)
	}
	for _, flag := range []recipe.Flag{recipe.FlagMining, recipe.FlagRecycling} {
		for _, r := range candidates {
			if r.HasFlag(flag) {
				return r, true, nil
			}
		}
	}
	return candidates[0], true, nil
}

// resolve returns the item a kind produces and its recipe, if any.
func (cs *CraftingSystem) resolve(kind crafting.Kind) (item.ID, recipe.Recipe, bool, error) {
	switch kind.Tag {
	case crafting.KindRecipe:
		r, ok := cs.catalog.Recipe(kind.Recipe)
		if !ok {
			return "", recipe.Recipe{}, false, fmt.Errorf("%w: %s", ErrUnknownRecipe, kind.Recipe)
		}
		if !r.MadeBy(recipe.ProducerManual) {
			return "", recipe.Recipe{}, false, fmt.Errorf("%w: %s cannot be crafted by hand", ErrUnknownRecipe, kind.Recipe)
		}
		return r.PrimaryOutput(), r, true, nil
	case crafting.KindManual:
		if _, ok := cs.catalog.Item(kind.Item); !ok {
			return "", recipe.Recipe{}, false, fmt.Errorf("%w: %s", ErrUnknownItem, kind.Item)
		}
		r, ok, err := cs.manualRecipe(kind.Item)
		if err != nil {
			return "", recipe.Recipe{}, false, err
		}
		return kind.Item, r, ok, nil
	}
	return "", recipe.Recipe{}, false, fmt.Errorf("%w: %s", ErrUnknownRecipe, kind)
}

func (cs *CraftingSystem) unitDuration(r recipe.Recipe, hasRecipe bool) time.Duration {
	if !hasRecipe {
		return 0
	}
	return rules.ManualDuration(r.Time, cs.settings.ManualCraftingEfficiency)
}

// Add enqueues a task, merging it into the queue tail when the tail is a
// pending, unchained task of the same kind.
func (cs *CraftingSystem) Add(spec crafting.Spec) (crafting.Task, error) {
	if spec.Quantity <= 0 {
		return crafting.Task{}, ErrInvalidQuantity
	}
	itemID, r, hasRecipe, err := cs.resolve(spec.Kind)
	if err != nil {
		return crafting.Task{}, err
	}
	unit := cs.unitDuration(r, hasRecipe)

	if n := len(cs.queue); n > 0 {
		tail := cs.queue[n-1]
		if tail.Status == crafting.StatusPending && !tail.InChain() && tail.Kind == spec.Kind {
			tail.Quantity += spec.Quantity
			tail.CraftingTime = unit * time.Duration(tail.Quantity)
			return tail.Clone(), nil
		}
	}
	if len(cs.queue) >= cs.settings.MaxQueueLength {
		return crafting.Task{}, ErrQueueFull
	}

	task := &crafting.Task{
		ID:           uuid.NewString(),
		Kind:         spec.Kind,
		ItemID:       itemID,
		Quantity:     spec.Quantity,
		CraftingTime: unit * time.Duration(spec.Quantity),
		Status:       crafting.StatusPending,
	}
	cs.queue = append(cs.queue, task)
	return task.Clone(), nil
}

type chainStep struct {
	recipe   recipe.Recipe
	itemID   item.ID
	runs     int
	reserved []item.Stack
}

type chainPlanner struct {
	cs       *CraftingSystem
	stock    map[item.ID]float64
	steps    []chainStep
	visiting map[item.ID]bool
}

func (p *chainPlanner) take(id item.ID, want float64) float64 {
	have, ok := p.stock[id]
	if !ok {
		have = p.cs.inventory.Amount(id)
	}
	got := math.Min(have, want)
	p.stock[id] = have - got
	return got
}

// plan appends the steps that produce need of id, ingredients first.
func (p *chainPlanner) plan(id item.ID, need float64, depth int) error {
	if depth > maxChainDepth || p.visiting[id] {
		return fmt.Errorf("%w: cannot plan %s", ErrInsufficientMaterials, id)
	}
	r, ok, err := p.cs.manualRecipe(id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s has no recipe", ErrInsufficientMaterials, id)
	}
	per := r.OutputOf(id)
	if per <= 0 {
		return fmt.Errorf("%w: %s yields no %s", ErrUnknownRecipe, r.ID, id)
	}
	runs := int(math.Ceil(need/per - amountEpsilon))

	p.visiting[id] = true
	defer delete(p.visiting, id)

	step := chainStep{recipe: r, itemID: id, runs: runs}
	for _, in := range r.Inputs {
		required := in.Amount * float64(runs)
		got := p.take(in.Item, required)
		if got > 0 {
			step.reserved = append(step.reserved, item.Stack{Item: in.Item, Amount: got})
		}
		if missing := required - got; missing > amountEpsilon {
			if err := p.plan(in.Item, missing, depth+1); err != nil {
				return err
			}
		}
	}
	p.steps = append(p.steps, step)
	return nil
}

// AddChain plans every step needed to craft qty of target from current
// stock and enqueues them as one chain. The stock portion of ingredients is
// deducted now, all or nothing.
func (cs *CraftingSystem) AddChain(target item.ID, qty int) (string, error) {
	if qty <= 0 {
		return "", ErrInvalidQuantity
	}
	if _, ok := cs.catalog.Item(target); !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownItem, target)
	}
	p := &chainPlanner{cs: cs, stock: make(map[item.ID]float64), visiting: make(map[item.ID]bool)}
	if err := p.plan(target, float64(qty), 0); err != nil {
		return "", err
	}
	if len(cs.queue)+len(p.steps) > cs.settings.MaxQueueLength {
		return "", ErrQueueFull
	}

	c := &chain{id: uuid.NewString(), target: target, held: make(map[item.ID]float64)}
	cs.chains[c.id] = c
	for i, s := range p.steps {
		for _, res := range s.reserved {
			cs.inventory.Update(res.Item, -res.Amount)
		}
		cs.queue = append(cs.queue, &crafting.Task{
			ID:           uuid.NewString(),
			Kind:         crafting.RecipeKind(s.recipe.ID),
			ItemID:       s.itemID,
			Quantity:     s.runs,
			CraftingTime: cs.unitDuration(s.recipe, true) * time.Duration(s.runs),
			Status:       crafting.StatusPending,
			ChainID:      c.id,
			Final:        i == len(p.steps)-1,
			Reserved:     s.reserved,
		})
	}
	cs.logger.Infof("crafting: planned %d step chain for %d %s", len(p.steps), qty, target)
	return c.id, nil
}

// Remove cancels a task. Cancelling a chain task cancels the rest of its
// chain and refunds reserved stock and held intermediates. Output already
// granted by completed tasks stays.
func (cs *CraftingSystem) Remove(id string, now time.Duration) bool {
	idx := -1
	for i, t := range cs.queue {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	task := cs.queue[idx]
	if !task.InChain() {
		cs.queue = append(cs.queue[:idx], cs.queue[idx+1:]...)
		cs.emit(events.EventTypeCraftCancelled, task, now)
		return true
	}

	kept := cs.queue[:0]
	var removed []*crafting.Task
	for _, t := range cs.queue {
		if t.ChainID == task.ChainID {
			removed = append(removed, t)
			continue
		}
		kept = append(kept, t)
	}
	cs.queue = kept
	for _, t := range removed {
		cs.inventory.BatchUpdate(t.Reserved)
		cs.emit(events.EventTypeCraftCancelled, t, now)
	}
	cs.dissolveChain(task.ChainID)
	return true
}

// dissolveChain returns held intermediates to the inventory.
func (cs *CraftingSystem) dissolveChain(id string) {
	c, ok := cs.chains[id]
	if !ok {
		return
	}
	for itemID, amount := range c.held {
		if amount > 0 {
			cs.inventory.Update(itemID, amount)
		}
	}
	delete(cs.chains, id)
}

func (cs *CraftingSystem) emit(t events.EventType, task *crafting.Task, now time.Duration) {
	cs.eventLog.Append(events.GameEvent{
		SimTime:  now,
		Type:     t,
		ActorID:  "player",
		TargetID: task.ID,
		Payload: CraftPayload{
			TaskID:   task.ID,
			ItemID:   task.ItemID,
			Quantity: task.Quantity,
			Progress: task.Progress,
			ChainID:  task.ChainID,
		},
	})
	cs.logger.Event(string(t), "player", fmt.Sprintf("%s x%d", task.ItemID, task.Quantity))
}

// Process runs one crafting tick at simulation time now.
func (cs *CraftingSystem) Process(now time.Duration) {
	if len(cs.queue) == 0 {
		return
	}
	head := cs.queue[0]
	if !head.Started() {
		head.StartTime = now
		head.Status = crafting.StatusCrafting
		head.Progress = 0
		cs.emit(events.EventTypeCraftStarted, head, now)
	}

	_, r, hasRecipe, err := cs.resolve(head.Kind)
	if err != nil {
		cs.logger.Warnf("crafting: %s skipped: %v", head.ID, err)
		return
	}
	if hasRecipe && head.CraftingTime > 0 {
		head.Progress = rules.CraftProgress(now-head.StartTime, head.CraftingTime)
	} else {
		head.Progress = 100
	}
	if head.Progress < 100 {
		return
	}
	if !hasRecipe {
		cs.finishRaw(head, now)
		return
	}
	if !head.InChain() && cs.settings.StrictCrafting && !cs.inputsInStock(r, head.Quantity) {
		return
	}
	cs.finish(head, r, now)
}

func (cs *CraftingSystem) inputsInStock(r recipe.Recipe, qty int) bool {
	for _, in := range r.Inputs {
		if !cs.inventory.Has(in.Item, in.Amount*float64(qty)) {
			return false
		}
	}
	return true
}

func (cs *CraftingSystem) finishRaw(task *crafting.Task, now time.Duration) {
	amount := float64(task.Quantity)
	cs.inventory.Update(task.ItemID, amount)
	cs.stats.AddMined(task.ItemID, amount)
	cs.dequeue(task, now)
}

func (cs *CraftingSystem) finish(task *crafting.Task, r recipe.Recipe, now time.Duration) {
	qty := float64(task.Quantity)
	c := cs.chains[task.ChainID]

	switch {
	case c == nil:
		for _, in := range r.Inputs {
			want := in.Amount * qty
			if got := -cs.inventory.Update(in.Item, -want); got+amountEpsilon < want {
				cs.logger.Debugf("crafting: %s short %.3f %s, consumption clamped", task.ID, want-got, in.Item)
			}
		}
	default:
		for _, in := range r.Inputs {
			fromHeld := in.Amount*qty - reservedOf(task.Reserved, in.Item)
			if fromHeld > 0 {
				c.held[in.Item] = math.Max(c.held[in.Item]-fromHeld, 0)
			}
		}
	}

	outputs := item.Scale(r.Outputs, qty*(1+cs.bonus.ProductivityBonus(r.ID)))
	mined := r.HasFlag(recipe.FlagMining)
	for _, out := range outputs {
		if c != nil && !task.Final {
			c.held[out.Item] += out.Amount
		} else {
			cs.inventory.Update(out.Item, out.Amount)
		}
		if mined {
			cs.stats.AddMined(out.Item, out.Amount)
		} else {
			cs.stats.AddCrafted(out.Item, out.Amount)
		}
	}
	cs.dequeue(task, now)
	if c != nil && task.Final {
		cs.dissolveChain(c.id)
	}
}

func reservedOf(stacks []item.Stack, id item.ID) float64 {
	var total float64
	for _, s := range stacks {
		if s.Item == id {
			total += s.Amount
		}
	}
	return total
}

func (cs *CraftingSystem) dequeue(task *crafting.Task, now time.Duration) {
	task.Status = crafting.StatusCompleted
	task.Progress = 100
	cs.queue = cs.queue[1:]
	cs.recorder.CraftCompleted(task.ItemID, task.Quantity)
	cs.emit(events.EventTypeCraftCompleted, task, now)
}

// Snapshot returns copies of the queued tasks, head first.
func (cs *CraftingSystem) Snapshot() []crafting.Task {
	out := make([]crafting.Task, len(cs.queue))
	for i, t := range cs.queue {
		out[i] = t.Clone()
	}
	return out
}

// Chains returns the held state of every open chain.
func (cs *CraftingSystem) Chains() []ChainSnapshot {
	out := make([]ChainSnapshot, 0, len(cs.chains))
	for _, c := range cs.chains {
		held := make(map[item.ID]float64, len(c.held))
		for k, v := range c.held {
			held[k] = v
		}
		out = append(out, ChainSnapshot{ID: c.id, Target: c.target, Held: held})
	}
	return out
}

// Restore replaces the queue and open chains.
func (cs *CraftingSystem) Restore(tasks []crafting.Task, chains []ChainSnapshot) {
	cs.queue = make([]*crafting.Task, 0, len(tasks))
	for _, t := range tasks {
		c := t.Clone()
		cs.queue = append(cs.queue, &c)
	}
	cs.chains = make(map[string]*chain, len(chains))
	for _, c := range chains {
		held := make(map[item.ID]float64, len(c.Held))
		for k, v := range c.Held {
			held[k] = v
		}
		cs.chains[c.ID] = &chain{id: c.ID, target: c.Target, held: held}
	}
}
