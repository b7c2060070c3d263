package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MRamiBalles/factorysim/internal/domain/facility"
	"github.com/MRamiBalles/factorysim/internal/events"
)

func TestCollectorCountsEngineActivity(t *testing.T) {
	c := NewCollector()

	c.SubsystemRun("crafting")
	c.SubsystemRun("crafting")
	c.SubsystemFailure("production")
	c.CraftCompleted("iron-gear-wheel", 3)
	c.ProductionCycle("stone-furnace")
	c.PowerSatisfaction(0.4)
	c.FuelEnergy("f1", 7.91)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.subsystemRuns.WithLabelValues("crafting")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.subsystemFailures.WithLabelValues("production")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.craftsCompleted.WithLabelValues("iron-gear-wheel")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.productionCycles.WithLabelValues("stone-furnace")))
	assert.Equal(t, 0.4, testutil.ToFloat64(c.powerSatisfaction))
	assert.Equal(t, 7.91, testutil.ToFloat64(c.fuelEnergy.WithLabelValues("f1")))
}

func TestFacilityStatusesReportEveryStatus(t *testing.T) {
	c := NewCollector()
	c.FacilityStatuses(map[facility.Status]int{facility.StatusRunning: 3, facility.StatusNoFuel: 1})
	c.FacilityStatuses(map[facility.Status]int{facility.StatusRunning: 2})

	assert.Equal(t, len(facility.Statuses), testutil.CollectAndCount(c.facilityStatus))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.facilityStatus.WithLabelValues("running")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.facilityStatus.WithLabelValues("no_fuel")))
}

func TestEventPersistedSplitsByResult(t *testing.T) {
	c := NewCollector()
	var hook events.PersistHook = c.EventPersisted
	hook(events.GameEvent{}, nil)
	hook(events.GameEvent{}, nil)
	hook(events.GameEvent{}, errors.New("disk full"))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.eventsPersisted.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.eventsPersisted.WithLabelValues("error")))
}

func TestHandlerExposesRegistry(t *testing.T) {
	c := NewCollector()
	c.ObserveTick(2 * time.Millisecond)
	c.WSConnection(1)
	c.WSMessage(true)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "factorysim_tick_duration_seconds_count 1")
	assert.Contains(t, string(body), "factorysim_ws_connections 1")
	assert.Contains(t, string(body), `factorysim_ws_messages_total{direction="in"} 1`)
}
