package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MRamiBalles/factorysim/internal/events"
	"github.com/MRamiBalles/factorysim/internal/platform/logger"
)

func TestSchedulerResetsAccumulatorToZero(t *testing.T) {
	s := NewScheduler(events.NewEventLog(nil), logger.Discard(), nil, nil)
	var runs []time.Duration
	s.Register("slow", time.Second, false, func(elapsed time.Duration) error {
		runs = append(runs, elapsed)
		return nil
	})

	s.Tick(700 * time.Millisecond)
	s.Tick(700 * time.Millisecond)
	require.Len(t, runs, 1)
	assert.Equal(t, 1400*time.Millisecond, runs[0], "the run sees all accumulated time")

	pending, ok := s.Pending("slow")
	require.True(t, ok)
	assert.Equal(t, time.Duration(0), pending, "the remainder is discarded")

	s.Tick(700 * time.Millisecond)
	assert.Len(t, runs, 1)
	assert.Equal(t, 2100*time.Millisecond, s.Now())
}

func TestSchedulerRunsInRegistrationOrder(t *testing.T) {
	s := NewScheduler(events.NewEventLog(nil), logger.Discard(), nil, nil)
	var order []string
	for _, name := range []string{"a", "b", "c"} {
		name := name
		s.Register(name, 100*time.Millisecond, false, func(time.Duration) error {
			order = append(order, name)
			return nil
		})
	}
	s.Tick(100 * time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestSchedulerIgnoresEmptyTicks(t *testing.T) {
	s := NewScheduler(events.NewEventLog(nil), logger.Discard(), nil, nil)
	runs := 0
	s.Register("x", 100*time.Millisecond, false, func(time.Duration) error {
		runs++
		return nil
	})
	s.Tick(0)
	s.Tick(-time.Second)
	s.TickSeconds(0)

	assert.Zero(t, runs)
	assert.Zero(t, s.Ticks())
	assert.Equal(t, time.Duration(0), s.Now())
}

func TestGatedSubsystemsWaitForData(t *testing.T) {
	ready := false
	s := NewScheduler(events.NewEventLog(nil), logger.Discard(), nil, func() bool { return ready })
	gated, free := 0, 0
	s.Register("gated", 100*time.Millisecond, true, func(time.Duration) error { gated++; return nil })
	s.Register("free", 100*time.Millisecond, false, func(time.Duration) error { free++; return nil })

	s.Tick(100 * time.Millisecond)
	ready = true
	s.Tick(100 * time.Millisecond)

	assert.Equal(t, 1, gated)
	assert.Equal(t, 2, free)
}

func TestFailingSubsystemDoesNotStopOthers(t *testing.T) {
	el := events.NewEventLog(nil)
	s := NewScheduler(el, logger.Discard(), nil, nil)
	after := 0
	s.Register("panics", 100*time.Millisecond, false, func(time.Duration) error { panic("boom") })
	s.Register("errors", 100*time.Millisecond, false, func(time.Duration) error { return errors.New("bad") })
	s.Register("after", 100*time.Millisecond, false, func(time.Duration) error { after++; return nil })

	s.Tick(100 * time.Millisecond)
	s.Tick(100 * time.Millisecond)

	assert.Equal(t, 2, after)
	failed := el.GetByType(events.EventTypeSubsystemFailed)
	require.Len(t, failed, 4)
	payload, ok := failed[0].Payload.(SubsystemFailedPayload)
	require.True(t, ok)
	assert.Equal(t, "panics", payload.Subsystem)
	assert.Contains(t, payload.Error, "boom")
}

func TestSetClockClearsAccumulators(t *testing.T) {
	s := NewScheduler(events.NewEventLog(nil), logger.Discard(), nil, nil)
	s.Register("x", time.Second, false, func(time.Duration) error { return nil })
	s.Tick(500 * time.Millisecond)

	s.SetClock(time.Minute)
	pending, _ := s.Pending("x")
	assert.Zero(t, pending)
	assert.Equal(t, time.Minute, s.Now())
	_, ok := s.Pending("missing")
	assert.False(t, ok)
}
