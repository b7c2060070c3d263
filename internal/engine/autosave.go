package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MRamiBalles/factorysim/internal/domain/crafting"
	"github.com/MRamiBalles/factorysim/internal/domain/facility"
	"github.com/MRamiBalles/factorysim/internal/domain/item"
	"github.com/MRamiBalles/factorysim/internal/events"
	"github.com/MRamiBalles/factorysim/internal/platform/logger"
)

// GameSnapshot is a consistent copy of the whole simulation, taken between
// ticks.
type GameSnapshot struct {
	SavedAt       time.Time                 `json:"saved_at"`
	SimTime       time.Duration             `json:"sim_time"`
	Inventory     map[item.ID]InventoryItem `json:"inventory"`
	Containers    map[item.ID]int           `json:"containers"`
	Facilities    []facility.Instance       `json:"facilities"`
	CraftingQueue []crafting.Task           `json:"crafting_queue"`
	Chains        []ChainSnapshot           `json:"chains"`
	Research      ResearchSnapshot          `json:"research"`
	Stats         StatsSnapshot             `json:"stats"`
}

// Saver persists snapshots. It runs off the simulation goroutine.
type Saver interface {
	Save(ctx context.Context, snap GameSnapshot) error
}

// AutosaveSystem hands snapshots to a Saver without ever blocking the tick.
// At most one snapshot waits while a save is in flight; newer ones are dropped.
type AutosaveSystem struct {
	saver    Saver
	eventLog *events.EventLog
	logger   *logger.Logger
	queue    chan GameSnapshot
	wg       sync.WaitGroup
	once     sync.Once
	stopped  atomic.Bool
}

func NewAutosaveSystem(saver Saver, el *events.EventLog, log *logger.Logger) *AutosaveSystem {
	return &AutosaveSystem{
		saver:    saver,
		eventLog: el,
		logger:   log,
		queue:    make(chan GameSnapshot, 1),
	}
}

// Start runs the save worker until ctx is done or Stop is called.
func (as *AutosaveSystem) Start(ctx context.Context) {
	if as.saver == nil {
		return
	}
	as.wg.Add(1)
	go func() {
		defer as.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-as.queue:
				if !ok {
					return
				}
				as.save(ctx, snap)
			}
		}
	}()
}

func (as *AutosaveSystem) save(ctx context.Context, snap GameSnapshot) {
	if err := as.saver.Save(ctx, snap); err != nil {
		as.logger.Errorf("autosave: failed to save at %s: %v", snap.SimTime, err)
		return
	}
	as.eventLog.Append(events.GameEvent{SimTime: snap.SimTime, Type: events.EventTypeGameSaved})
}

// Offer queues snap for saving. It returns false when the snapshot was dropped.
func (as *AutosaveSystem) Offer(snap GameSnapshot) bool {
	if as.saver == nil || as.stopped.Load() {
		return false
	}
	select {
	case as.queue <- snap:
		return true
	default:
		as.logger.Debug("autosave: previous save still in flight, snapshot dropped")
		return false
	}
}

// Enabled reports whether a saver is configured.
func (as *AutosaveSystem) Enabled() bool { return as.saver != nil }

// Stop closes the queue and waits for the in-flight save.
func (as *AutosaveSystem) Stop() {
	as.once.Do(func() {
		as.stopped.Store(true)
		close(as.queue)
	})
	as.wg.Wait()
}
