// Package metrics exposes run progress as Prometheus collectors fed from the event bus.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sliink/mensura/internal/core"
	"github.com/sliink/mensura/internal/model"
)

const namespace = "mensura"

// StatsFunc returns the current per-plugin counters in path order
type StatsFunc func() []model.PluginStat

// Metrics holds the collectors of one process on a private registry
type Metrics struct {
	registry *prometheus.Registry
	stats    StatsFunc
	mutex    sync.Mutex

	datasets       *prometheus.CounterVec
	events         prometheus.Counter
	activeWorkers  prometheus.Gauge
	workers        prometheus.Gauge
	runsRunning    prometheus.Gauge
	datasetSeconds prometheus.Histogram
	visited        *prometheus.GaugeVec
	passed         *prometheus.GaugeVec
}

// New creates the collectors and subscribes them to bus. stats may be nil.
func New(bus *core.EventBus, stats StatsFunc) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		stats:    stats,
		datasets: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datasets_total",
			Help:      "Atomic datasets handled, by final status",
		}, []string{"status"}),
		events: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_processed_total",
			Help:      "Events read from completed or failed datasets",
		}),
		activeWorkers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_workers",
			Help:      "Workers currently processing a dataset",
		}),
		workers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers",
			Help:      "Workers of the current or last run",
		}),
		runsRunning: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_in_progress",
			Help:      "1 while a run is in progress",
		}),
		datasetSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dataset_duration_seconds",
			Help:      "Time spent processing one atomic dataset",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
		visited: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "plugin_events_visited",
			Help:      "Events that reached a plugin, summed over workers",
		}, []string{"plugin"}),
		passed: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "plugin_events_passed",
			Help:      "Events accepted by a plugin, summed over workers",
		}, []string{"plugin"}),
	}

	// Pre-create the status series so they are exported as zero
	for _, status := range []model.DatasetStatus{model.DatasetDone, model.DatasetFailed, model.DatasetSkipped} {
		m.datasets.WithLabelValues(string(status))
	}

	if bus != nil {
		bus.SubscribeAll("metrics", m.handle,
			model.EventRunStarted,
			model.EventRunFinished,
			model.EventDatasetStarted,
			model.EventDatasetFinished,
			model.EventDatasetFailed,
			model.EventDatasetSkipped,
		)
	}
	return m
}

// Registry returns the private registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler serving the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) handle(event core.Event) {
	switch event.Type {
	case model.EventRunStarted:
		info, _ := event.Data.(model.RunInfo)
		m.workers.Set(float64(info.Workers))
		m.activeWorkers.Set(0)
		m.runsRunning.Set(1)
	case model.EventRunFinished:
		m.activeWorkers.Set(0)
		m.runsRunning.Set(0)
		m.refreshPlugins()
	case model.EventDatasetStarted:
		m.activeWorkers.Inc()
	case model.EventDatasetFinished, model.EventDatasetFailed, model.EventDatasetSkipped:
		result, ok := event.Data.(model.DatasetResult)
		if !ok {
			return
		}
		m.datasets.WithLabelValues(string(result.Status)).Inc()
		if result.Status == model.DatasetSkipped {
			return
		}
		m.activeWorkers.Dec()
		m.events.Add(float64(result.Events))
		m.datasetSeconds.Observe(result.Duration.Seconds())
		m.refreshPlugins()
	}
}

// refreshPlugins copies the plugin counters into the gauges
func (m *Metrics) refreshPlugins() {
	if m.stats == nil {
		return
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, stat := range m.stats() {
		m.visited.WithLabelValues(stat.Plugin).Set(float64(stat.Visited))
		m.passed.WithLabelValues(stat.Plugin).Set(float64(stat.Passed))
	}
}
