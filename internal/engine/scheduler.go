package engine

import (
	"fmt"
	"time"

	"github.com/MRamiBalles/factorysim/internal/events"
	"github.com/MRamiBalles/factorysim/internal/platform/logger"
)

// Subsystem names, in scheduling order.
const (
	SubsystemCrafting   = "crafting"
	SubsystemProduction = "production"
	SubsystemResearch   = "research"
	SubsystemAutosave   = "autosave"
	SubsystemDataCheck  = "data-check"
)

// RunFunc executes a subsystem with the time accumulated since its last run.
type RunFunc func(elapsed time.Duration) error

type subsystem struct {
	name     string
	interval time.Duration
	run      RunFunc
	gated    bool // skipped until the catalog is ready
	acc      time.Duration
}

// SubsystemFailedPayload is attached to SUBSYSTEM_FAILED events.
type SubsystemFailedPayload struct {
	Subsystem string `json:"subsystem"`
	Error     string `json:"error"`
}

// Scheduler turns variable host frame deltas into fixed-cadence subsystem
// runs. It does NOT know what the subsystems do, only when they are due.
type Scheduler struct {
	eventLog   *events.EventLog
	logger     *logger.Logger
	recorder   Recorder
	subsystems []*subsystem
	clock      time.Duration
	ticks      int64
	ready      func() bool
}

// NewScheduler creates an empty scheduler. ready gates subsystems
// registered as gated; nil means always ready.
func NewScheduler(el *events.EventLog, log *logger.Logger, rec Recorder, ready func() bool) *Scheduler {
	if rec == nil {
		rec = nopRecorder{}
	}
	if ready == nil {
		ready = func() bool { return true }
	}
	return &Scheduler{eventLog: el, logger: log, recorder: rec, ready: ready}
}

// Register appends a subsystem. Subsystems run in registration order.
func (s *Scheduler) Register(name string, interval time.Duration, gated bool, run RunFunc) {
	s.subsystems = append(s.subsystems, &subsystem{name: name, interval: interval, run: run, gated: gated})
}

// Tick advances the simulation clock by delta and runs every subsystem whose
// accumulator reached its interval. Accumulators reset to zero, discarding
// any remainder. Non-positive deltas are ignored.
func (s *Scheduler) Tick(delta time.Duration) {
	if delta <= 0 {
		return
	}
	started := time.Now()
	s.clock += delta
	s.ticks++

	for _, sub := range s.subsystems {
		sub.acc += delta
		if sub.acc < sub.interval {
			continue
		}
		elapsed := sub.acc
		sub.acc = 0
		if sub.gated && !s.ready() {
			s.logger.Debugf("scheduler: %s skipped, game data not ready", sub.name)
			continue
		}
		s.invoke(sub, elapsed)
	}
	s.recorder.ObserveTick(time.Since(started))
}

// TickSeconds is Tick for hosts that measure frames in float seconds.
func (s *Scheduler) TickSeconds(seconds float64) {
	s.Tick(time.Duration(seconds * float64(time.Second)))
}

func (s *Scheduler) invoke(sub *subsystem, elapsed time.Duration) {
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		err = sub.run(elapsed)
	}()

	s.recorder.SubsystemRun(sub.name)
	if err == nil {
		return
	}
	s.recorder.SubsystemFailure(sub.name)
	s.logger.Errorf("scheduler: %s failed: %v", sub.name, err)
	s.eventLog.Append(events.GameEvent{
		SimTime: s.clock,
		Type:    events.EventTypeSubsystemFailed,
		Payload: SubsystemFailedPayload{Subsystem: sub.name, Error: err.Error()},
	})
}

// Now returns the simulation clock.
func (s *Scheduler) Now() time.Duration { return s.clock }

// Ticks returns how many non-empty ticks ran.
func (s *Scheduler) Ticks() int64 { return s.ticks }

// SetClock restores the simulation clock, clearing accumulators.
func (s *Scheduler) SetClock(d time.Duration) {
	s.clock = d
	for _, sub := range s.subsystems {
		sub.acc = 0
	}
}

// Pending returns the accumulated time of a subsystem.
func (s *Scheduler) Pending(name string) (time.Duration, bool) {
	for _, sub := range s.subsystems {
		if sub.name == name {
			return sub.acc, true
		}
	}
	return 0, false
}
