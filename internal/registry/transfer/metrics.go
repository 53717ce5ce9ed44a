package transfer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the transfer flow collectors. A nil *Metrics is valid and
// records nothing, which keeps unit tests free of registry setup.
type Metrics struct {
	Requested     prometheus.Counter
	Resolved      *prometheus.CounterVec
	CommitRetries prometheus.Counter
	CommitSeconds prometheus.Histogram
}

// NewMetrics creates and registers the transfer collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		Requested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registry_transfers_requested_total",
			Help: "Total transfer requests accepted.",
		}),
		Resolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_transfers_resolved_total",
			Help: "Total transfers resolved, by terminal status.",
		}, []string{"status"}),
		CommitRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registry_transfer_commit_retries_total",
			Help: "Optimistic commit retries caused by store contention.",
		}),
		CommitSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "registry_transfer_commit_duration_seconds",
			Help:    "Latency of atomic transfer commits.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) requested() {
	if m != nil {
		m.Requested.Inc()
	}
}

func (m *Metrics) resolved(status string) {
	if m != nil {
		m.Resolved.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) retried() {
	if m != nil {
		m.CommitRetries.Inc()
	}
}

func (m *Metrics) commitSeconds(v float64) {
	if m != nil {
		m.CommitSeconds.Observe(v)
	}
}
