package session

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/cbind/internal/typemodel"
)

// Metrics are the per-session collectors. Each session registers into its
// own registry, labelled with the session handle, so registries of several
// sessions can be gathered together without collisions.
type Metrics struct {
	registry *prometheus.Registry

	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	elements *prometheus.GaugeVec
	intents  *prometheus.CounterVec
}

func newMetrics(handle string, cache func() typemodel.CacheStats) *Metrics {
	labels := prometheus.Labels{"session": handle}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "cbind",
			Subsystem:   "session",
			Name:        "calls_total",
			Help:        "Session calls by operation and outcome.",
			ConstLabels: labels,
		}, []string{"op", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "cbind",
			Subsystem:   "session",
			Name:        "call_duration_seconds",
			Help:        "Time spent running session calls.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"op"}),
		elements: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   "cbind",
			Subsystem:   "session",
			Name:        "elements",
			Help:        "Elements in the session tree by stage.",
			ConstLabels: labels,
		}, []string{"stage"}),
		intents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "cbind",
			Subsystem:   "mapping",
			Name:        "intents_total",
			Help:        "Edit intents applied by kind.",
			ConstLabels: labels,
		}, []string{"kind"}),
	}
	m.registry.MustRegister(m.calls, m.duration, m.elements, m.intents)
	m.registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   "cbind",
			Subsystem:   "typecache",
			Name:        "hits_total",
			Help:        "Type cache lookups served from the cache.",
			ConstLabels: labels,
		}, func() float64 { return float64(cache().Hits) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   "cbind",
			Subsystem:   "typecache",
			Name:        "misses_total",
			Help:        "Type cache lookups that lowered a new spelling.",
			ConstLabels: labels,
		}, func() float64 { return float64(cache().Misses) }),
	)
	return m
}

// Registry returns the session's registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) observe(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.calls.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) setElements(stage string, n int) {
	m.elements.WithLabelValues(stage).Set(float64(n))
}

func (m *Metrics) addIntents(byKind map[string]int) {
	for kind, n := range byKind {
		m.intents.WithLabelValues(kind).Add(float64(n))
	}
}
