package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the compliance backend.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	LockAcquisitions *prometheus.CounterVec
	JobRuns          *prometheus.CounterVec
	JobDuration      *prometheus.HistogramVec
	RecordsCreated   *prometheus.CounterVec
	ItemsSkipped     *prometheus.CounterVec
	CacheRefreshes   *prometheus.CounterVec
}

// New creates and registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		LockAcquisitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_lock_acquisitions_total",
			Help: "Lease acquisition attempts by outcome",
		}, []string{"key", "outcome"}), // outcome: "acquired", "held", "error"

		JobRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_job_runs_total",
			Help: "Scheduled job runs by outcome",
		}, []string{"job", "outcome"}), // outcome: "success", "failed", "skipped"

		JobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "compliance_job_duration_seconds",
			Help:    "Duration of lock-guarded job bodies",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"job"}),

		RecordsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_transactions_created_total",
			Help: "Compliance transactions created by initial status",
		}, []string{"status"}),

		ItemsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_screening_skipped_total",
			Help: "Screening items skipped by reason",
		}, []string{"reason"}), // reason: "duplicate", "invalid", "error", "address_failed"

		CacheRefreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_risk_cache_refreshes_total",
			Help: "Risk reference cache refreshes by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) IncLockAcquisition(key, outcome string) {
	if m != nil {
		m.LockAcquisitions.WithLabelValues(key, outcome).Inc()
	}
}

func (m *Metrics) IncJobRun(job, outcome string) {
	if m != nil {
		m.JobRuns.WithLabelValues(job, outcome).Inc()
	}
}

func (m *Metrics) ObserveJobDuration(job string, d time.Duration) {
	if m != nil {
		m.JobDuration.WithLabelValues(job).Observe(d.Seconds())
	}
}

func (m *Metrics) IncRecordCreated(status string) {
	if m != nil {
		m.RecordsCreated.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) IncSkipped(reason string) {
	if m != nil {
		m.ItemsSkipped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) IncCacheRefresh(outcome string) {
	if m != nil {
		m.CacheRefreshes.WithLabelValues(outcome).Inc()
	}
}
