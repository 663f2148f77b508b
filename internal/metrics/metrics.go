package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records schedule run outcomes
type Metrics struct {
	registry  *prometheus.Registry
	runs      *prometheus.CounterVec
	attempted prometheus.Counter
	acted     prometheus.Counter
	duration  prometheus.Histogram
	lastRun   prometheus.Gauge
}

// New creates the run metrics on their own registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plexschedule",
			Name:      "runs_total",
			Help:      "Schedule runs by result.",
		}, []string{"result"}),
		attempted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "plexschedule",
			Name:      "actions_attempted_total",
			Help:      "Actions evaluated by schedule runs.",
		}),
		acted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "plexschedule",
			Name:      "actions_acted_total",
			Help:      "Actions completed and committed by schedule runs.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "plexschedule",
			Name:      "run_duration_seconds",
			Help:      "Duration of schedule runs.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "plexschedule",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last finished run.",
		}),
	}

	m.registry.MustRegister(m.runs, m.attempted, m.acted, m.duration, m.lastRun)
	for _, result := range []string{"success", "failure"} {
		m.runs.WithLabelValues(result)
	}
	return m
}

// ObserveRun records one finished run
func (m *Metrics) ObserveRun(attempted, acted int, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}

	m.runs.WithLabelValues(result).Inc()
	m.attempted.Add(float64(attempted))
	m.acted.Add(float64(acted))
	m.duration.Observe(duration.Seconds())
	m.lastRun.SetToCurrentTime()
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
