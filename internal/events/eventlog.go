// Package events provides the simulation event journal.
// It is a bounded, append-only log of everything the engine did: crafts,
// production cycles, status changes, research completions.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType defines the category of a simulation event.
type EventType string

const (
	EventTypeCraftStarted          EventType = "CRAFT_STARTED"
	EventTypeCraftCompleted        EventType = "CRAFT_COMPLETED"
	EventTypeCraftCancelled        EventType = "CRAFT_CANCELLED"
	EventTypeProductionCompleted   EventType = "PRODUCTION_COMPLETED"
	EventTypeFacilityStatusChanged EventType = "FACILITY_STATUS_CHANGED"
	EventTypeFacilityPlaced        EventType = "FACILITY_PLACED"
	EventTypeFacilityRemoved       EventType = "FACILITY_REMOVED"
	EventTypeFacilityRefueled      EventType = "FACILITY_REFUELED"
	EventTypeResearchStarted       EventType = "RESEARCH_STARTED"
	EventTypeResearchCompleted     EventType = "RESEARCH_COMPLETED"
	EventTypeDataReady             EventType = "DATA_READY"
	EventTypeGameSaved             EventType = "GAME_SAVED"
	EventTypeSubsystemFailed       EventType = "SUBSYSTEM_FAILED"
)

// ActorSystem is the actor id of events the simulation emits on its own.
const ActorSystem = "SYSTEM"

// DefaultMaxEvents bounds the in-memory journal.
const DefaultMaxEvents = 4096

// GameEvent represents an immutable record of something the simulation did.
type GameEvent struct {
	Seq       uint64        `json:"seq"`
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	SimTime   time.Duration `json:"sim_time"`
	Type      EventType     `json:"type"`
	ActorID   string        `json:"actor_id"`
	TargetID  string        `json:"target_id"`
	Payload   interface{}   `json:"payload"`
}

// EventPersister defines how an event is durably stored.
type EventPersister interface {
	Append(event GameEvent) error
}

// PersistHook observes the outcome of every persisted event.
type PersistHook func(event GameEvent, err error)

// Option configures an EventLog.
type Option func(*EventLog)

// WithMaxEvents bounds how many events stay in memory.
func WithMaxEvents(n int) Option {
	return func(el *EventLog) {
		if n > 0 {
			el.max = n
		}
	}
}

// WithPersistHook registers a callback run after each persist attempt.
func WithPersistHook(h PersistHook) Option {
	return func(el *EventLog) { el.hook = h }
}

// EventLog is the in-memory journal. Once full, the oldest events are
// overwritten; sequence numbers keep growing so readers can tell.
type EventLog struct {
	mu      sync.RWMutex
	ring    []GameEvent
	start   int
	size    int
	max     int
	nextSeq uint64

	persister EventPersister
	hook      PersistHook
	queue     chan GameEvent
	wg        sync.WaitGroup
	closed    bool
	dropped   uint64
}

// NewEventLog creates a new event log with an optional persister.
// Persistence runs on a single background goroutine; call Close to flush it.
func NewEventLog(persister EventPersister, opts ...Option) *EventLog {
	el := &EventLog{
		max:       DefaultMaxEvents,
		nextSeq:   1,
		persister: persister,
	}
	for _, opt := range opts {
		opt(el)
	}
	el.ring = make([]GameEvent, el.max)

	if persister != nil {
		el.queue = make(chan GameEvent, el.max)
		el.wg.Add(1)
		go el.persistLoop()
	}
	return el
}

// Append adds a new event to the log and returns it with Seq, ID and
// Timestamp filled in.
func (el *EventLog) Append(event GameEvent) GameEvent {
	el.mu.Lock()
	defer el.mu.Unlock()

	event.Seq = el.nextSeq
	el.nextSeq++
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.ActorID == "" {
		event.ActorID = ActorSystem
	}

	idx := (el.start + el.size) % el.max
	el.ring[idx] = event
	if el.size < el.max {
		el.size++
	} else {
		el.start = (el.start + 1) % el.max
	}

	if el.queue != nil && !el.closed {
		select {
		case el.queue <- event:
		default:
			el.dropped++
		}
	}
	return event
}

func (el *EventLog) persistLoop() {
	defer el.wg.Done()
	for e := range el.queue {
		err := el.persister.Append(e)
		if el.hook != nil {
			el.hook(e, err)
		}
	}
}

// Close stops accepting events for persistence and waits for the queue to drain.
func (el *EventLog) Close() {
	el.mu.Lock()
	if el.closed || el.queue == nil {
		el.closed = true
		el.mu.Unlock()
		return
	}
	el.closed = true
	close(el.queue)
	el.mu.Unlock()
	el.wg.Wait()
}

// Dropped returns how many events could not be queued for persistence.
func (el *EventLog) Dropped() uint64 {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return el.dropped
}

// LastSeq returns the sequence number of the newest event, 0 if none.
func (el *EventLog) LastSeq() uint64 {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return el.nextSeq - 1
}

// Len returns how many events are held in memory.
func (el *EventLog) Len() int {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return el.size
}

// Since returns the retained events with Seq greater than seq, oldest first.
func (el *EventLog) Since(seq uint64) []GameEvent {
	return el.filter(func(e GameEvent) bool { return e.Seq > seq })
}

// GetByActor returns all retained events performed by a specific actor.
func (el *EventLog) GetByActor(actorID string) []GameEvent {
	return el.filter(func(e GameEvent) bool { return e.ActorID == actorID })
}

// GetByType returns all retained events of one type.
func (el *EventLog) GetByType(t EventType) []GameEvent {
	return el.filter(func(e GameEvent) bool { return e.Type == t })
}

// Replay returns a copy of every retained event, oldest first.
func (el *EventLog) Replay() []GameEvent {
	return el.filter(func(GameEvent) bool { return true })
}

func (el *EventLog) filter(keep func(GameEvent) bool) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []GameEvent
	for i := 0; i < el.size; i++ {
		e := el.ring[(el.start+i)%el.max]
		if keep(e) {
			result = append(result, e)
		}
	}
	return result
}
