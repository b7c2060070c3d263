// Package metrics exposes simulation measurements to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MRamiBalles/factorysim/internal/domain/facility"
	"github.com/MRamiBalles/factorysim/internal/domain/item"
	"github.com/MRamiBalles/factorysim/internal/engine"
	"github.com/MRamiBalles/factorysim/internal/events"
)

const namespace = "factorysim"

// Collector gathers engine, journal and websocket metrics on its own
// registry. It implements engine.Recorder.
type Collector struct {
	registry *prometheus.Registry

	// Tick metrics
	tickDuration      prometheus.Histogram
	subsystemRuns     *prometheus.CounterVec
	subsystemFailures *prometheus.CounterVec

	// Simulation metrics
	craftsCompleted   *prometheus.CounterVec
	productionCycles  *prometheus.CounterVec
	facilityStatus    *prometheus.GaugeVec
	powerSatisfaction prometheus.Gauge
	fuelEnergy        *prometheus.GaugeVec

	// Event metrics
	eventsPersisted *prometheus.CounterVec

	// WebSocket metrics
	wsConnections prometheus.Gauge
	wsMessages    *prometheus.CounterVec
}

// NewCollector creates a collector with every metric registered.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Wall time spent in one engine tick",
			Buckets:   []float64{.0001, .0005, .001, .0025, .005, .01, .025, .05, .1},
		}),
		subsystemRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subsystem_runs_total",
			Help:      "Scheduler invocations per subsystem",
		}, []string{"subsystem"}),
		subsystemFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subsystem_failures_total",
			Help:      "Subsystem invocations that returned an error or panicked",
		}, []string{"subsystem"}),

		craftsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crafting_completed_total",
			Help:      "Items produced by completed crafting tasks",
		}, []string{"item"}),
		productionCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "production_cycles_total",
			Help:      "Completed production cycles per facility type",
		}, []string{"facility"}),
		facilityStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "facility_status",
			Help:      "Placed facilities per status",
		}, []string{"status"}),
		powerSatisfaction: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "power_satisfaction_ratio",
			Help:      "Share of electric demand met by generation",
		}),
		fuelEnergy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fuel_energy_megajoules",
			Help:      "Energy stored in each facility fuel buffer",
		}, []string{"facility"}),

		eventsPersisted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_persisted_total",
			Help:      "Journal events handed to storage, by result",
		}, []string{"result"}),

		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Active WebSocket connections",
		}),
		wsMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction",
		}, []string{"direction"}),
	}

	c.registry.MustRegister(
		c.tickDuration,
		c.subsystemRuns,
		c.subsystemFailures,
		c.craftsCompleted,
		c.productionCycles,
		c.facilityStatus,
		c.powerSatisfaction,
		c.fuelEnergy,
		c.eventsPersisted,
		c.wsConnections,
		c.wsMessages,
	)
	return c
}

// Registry returns the private registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) ObserveTick(d time.Duration) { c.tickDuration.Observe(d.Seconds()) }

func (c *Collector) SubsystemRun(name string) { c.subsystemRuns.WithLabelValues(name).Inc() }

func (c *Collector) SubsystemFailure(name string) { c.subsystemFailures.WithLabelValues(name).Inc() }

func (c *Collector) CraftCompleted(id item.ID, quantity int) {
	c.craftsCompleted.WithLabelValues(string(id)).Add(float64(quantity))
}

func (c *Collector) ProductionCycle(facilityID string) {
	c.productionCycles.WithLabelValues(facilityID).Inc()
}

// FacilityStatuses replaces the status gauges; statuses absent from counts
// read zero.
func (c *Collector) FacilityStatuses(counts map[facility.Status]int) {
	c.facilityStatus.Reset()
	for _, s := range facility.Statuses {
		c.facilityStatus.WithLabelValues(s.String()).Set(float64(counts[s]))
	}
}

func (c *Collector) PowerSatisfaction(ratio float64) { c.powerSatisfaction.Set(ratio) }

func (c *Collector) FuelEnergy(instanceID string, megajoules float64) {
	c.fuelEnergy.WithLabelValues(instanceID).Set(megajoules)
}

// EventPersisted is an events.PersistHook counting journal writes.
func (c *Collector) EventPersisted(_ events.GameEvent, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.eventsPersisted.WithLabelValues(result).Inc()
}

// WSConnection records WebSocket connection changes.
func (c *Collector) WSConnection(delta int) { c.wsConnections.Add(float64(delta)) }

// WSMessage records one WebSocket message.
func (c *Collector) WSMessage(incoming bool) {
	if incoming {
		c.wsMessages.WithLabelValues("in").Inc()
	} else {
		c.wsMessages.WithLabelValues("out").Inc()
	}
}

var _ engine.Recorder = (*Collector)(nil)
