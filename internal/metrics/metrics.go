package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	EmailsSent    prometheus.Counter
	EmailsFailed  prometheus.Counter
	EmailsSkipped prometheus.Counter
	SendLatency   prometheus.Histogram
}

// QueueStats is the queue surface the gauges read from.
type QueueStats interface {
	Depth() int
	DeadCount() int
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EmailsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "emails_sent_total",
			Help: "Total number of successfully submitted emails.",
		}),
		EmailsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "emails_failed_total",
			Help: "Total number of failed send attempts.",
		}),
		EmailsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "emails_skipped_total",
			Help: "Total number of duplicate deliveries skipped by the dedup gate.",
		}),
		SendLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "email_send_seconds",
			Help:    "SMTP submission latency per email.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.EmailsSent,
		m.EmailsFailed,
		m.EmailsSkipped,
		m.SendLatency,
	)

	return m
}

// ObserveQueue registers gauges that read queue depth and dead-bucket size
// straight from the queue on every scrape, so they can never go stale.
func ObserveQueue(reg prometheus.Registerer, q QueueStats) {
	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "job_queue_depth",
			Help: "Current number of jobs waiting in the queue.",
		}, func() float64 { return float64(q.Depth()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "job_queue_dead",
			Help: "Current number of jobs parked in the dead bucket.",
		}, func() float64 { return float64(q.DeadCount()) }),
	)
}

// WorkerHooks returns the metric callback functions expected by
// worker.MetricHooks. Centralises the prometheus observation calls so
// worker.go stays import-free.
func (m *Metrics) WorkerHooks() (
	onSent func(time.Duration),
	onFailed func(),
	onSkipped func(),
) {
	onSent = func(latency time.Duration) {
		m.EmailsSent.Inc()
		m.SendLatency.Observe(latency.Seconds())
	}
	onFailed = func() {
		m.EmailsFailed.Inc()
	}
	onSkipped = func() {
		m.EmailsSkipped.Inc()
	}
	return
}
