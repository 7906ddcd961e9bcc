package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics are the service-level series. Session series live in each
// session's own registry.
type metrics struct {
	created  prometheus.Counter
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newMetrics(reg *prometheus.Registry, open func() float64) *metrics {
	m := &metrics{
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cbind_sessions_created_total",
			Help: "Sessions created by index.",
		}),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cbind_tool_calls_total",
			Help: "Tool calls by tool and status.",
		}, []string{"tool", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cbind_tool_call_duration_seconds",
			Help:    "Tool call latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
	}
	reg.MustRegister(m.created, m.calls, m.duration,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "cbind_sessions_open",
			Help: "Sessions not yet closed.",
		}, open))
	return m
}

func (m *metrics) record(tool string, start time.Time, failed bool) {
	status := "ok"
	if failed {
		status = "error"
	}
	m.calls.WithLabelValues(tool, status).Inc()
	m.duration.WithLabelValues(tool).Observe(time.Since(start).Seconds())
}
