package metrics

import (
	"time"

	"pixpack/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pixpack",
		Name:      "jobs_total",
		Help:      "Finished jobs by result (completed, failed, cancelled).",
	}, []string{"result"})

	entriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pixpack",
		Name:      "entries_total",
		Help:      "Image entries by outcome status.",
	}, []string{"status"})

	jobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pixpack",
		Name:      "job_duration_seconds",
		Help:      "Wall time from job start to terminal message.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
	})

	bytesSaved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pixpack",
		Name:      "bytes_saved_total",
		Help:      "Input bytes minus output bytes over written entries.",
	})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pixpack",
		Name:      "pending_jobs",
		Help:      "Jobs waiting for the worker.",
	})
)

// Result labels for ObserveJob.
const (
	ResultCompleted = "completed"
	ResultFailed    = "failed"
	ResultCancelled = "cancelled"
)

func ObserveEntry(o models.EntryOutcome) {
	entriesTotal.WithLabelValues(string(o.Status)).Inc()
}

// ObserveJob records a finished job. saved is ignored when negative.
func ObserveJob(result string, elapsed time.Duration, saved int64) {
	jobsTotal.WithLabelValues(result).Inc()
	jobDuration.Observe(elapsed.Seconds())
	if saved > 0 {
		bytesSaved.Add(float64(saved))
	}
}

func SetPending(n int) {
	queueDepth.Set(float64(n))
}
