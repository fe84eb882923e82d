package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// PropertiesSyncedTotal counts per-property sync outcomes by result.
	PropertiesSyncedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "regsync",
		Subsystem: "sync",
		Name:      "properties_total",
		Help:      "Total number of per-property syncs, labeled by result.",
	}, []string{"result"})

	// NewViolationsTotal counts newly discovered violations.
	NewViolationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "regsync",
		Subsystem: "sync",
		Name:      "new_violations_total",
		Help:      "Total number of newly discovered violations across all runs.",
	})

	// ChangeEventsTotal counts emitted change-log events by type.
	ChangeEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "regsync",
		Subsystem: "sync",
		Name:      "change_events_total",
		Help:      "Total number of change-log events emitted, labeled by change type.",
	}, []string{"type"})

	// SuppressedTotal counts violations marked stale by the suppression engine.
	SuppressedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "regsync",
		Subsystem: "sync",
		Name:      "suppressed_total",
		Help:      "Total number of violations suppressed as likely stale.",
	})

	// NotificationsTotal counts notification attempts by outcome.
	NotificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "regsync",
		Subsystem: "notify",
		Name:      "requests_total",
		Help:      "Total number of notification requests, labeled by outcome.",
	}, []string{"outcome"})

	// SourceFetchDurationSeconds is per-source fetch latency.
	SourceFetchDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "regsync",
		Subsystem: "adapters",
		Name:      "fetch_duration_seconds",
		Help:      "Time to fetch and map one source dataset for one property.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"dataset"})
)

// Register registers sync-engine metrics with the default Prometheus
// registry. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			PropertiesSyncedTotal,
			NewViolationsTotal,
			ChangeEventsTotal,
			SuppressedTotal,
			NotificationsTotal,
			SourceFetchDurationSeconds,
		)
	})
}
