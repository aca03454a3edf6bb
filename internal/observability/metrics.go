package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/donsko1/DNS-case/internal/contracts"
	"github.com/donsko1/DNS-case/internal/scheduler"
)

var (
	jobRunsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quality",
		Subsystem: "pipeline",
		Name:      "job_runs_total",
		Help:      "Number of finished job runs (after retries) by job and status.",
	}, []string{"job", "status"})

	jobDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "quality",
		Subsystem: "pipeline",
		Name:      "job_duration_seconds",
		Help:      "Wall time of job runs including retries.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 180, 600},
	}, []string{"job"})

	lastSuccessGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "quality",
		Subsystem: "pipeline",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix timestamp of the most recent successful run per job.",
	}, []string{"job"})

	rowsGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "quality",
		Subsystem: "pipeline",
		Name:      "rows",
		Help:      "Row count of the last written table.",
	}, []string{"table"})

	gradesGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "quality",
		Subsystem: "pipeline",
		Name:      "grades",
		Help:      "Number of products per grade in the last assessment.",
	}, []string{"grade"})

	configReloadCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quality",
		Subsystem: "pipeline",
		Name:      "config_reloads_total",
		Help:      "Pipeline config reload attempts by status.",
	}, []string{"status"})
)

func init() {
	prometheus.MustRegister(jobRunsCounter, jobDurationHistogram, lastSuccessGauge, rowsGauge, gradesGauge, configReloadCounter)
}

// JobObserver feeds scheduler results into the job metrics
type JobObserver struct{}

// ObserveJob implements scheduler.Observer
func (JobObserver) ObserveJob(r scheduler.JobResult) {
	status := contracts.JobStatusSuccess
	if !r.Success {
		status = contracts.JobStatusFailed
	}
	jobRunsCounter.WithLabelValues(r.JobName, status).Inc()
	jobDurationHistogram.WithLabelValues(r.JobName).Observe(r.Duration.Seconds())
	if r.Success && !r.EndTime.IsZero() {
		lastSuccessGauge.WithLabelValues(r.JobName).Set(float64(r.EndTime.Unix()))
	}
}

// RecordRows sets the row count of a written table
func RecordRows(table string, n int) {
	rowsGauge.WithLabelValues(table).Set(float64(n))
}

// RecordGrades sets the per-grade product counts. Grades missing from counts are reset to zero.
func RecordGrades(counts map[contracts.Grade]int) {
	for _, g := range contracts.Grades {
		gradesGauge.WithLabelValues(g.String()).Set(float64(counts[g]))
	}
}

// RecordConfigReload counts a pipeline config reload attempt
func RecordConfigReload(ok bool) {
	status := contracts.JobStatusSuccess
	if !ok {
		status = contracts.JobStatusFailed
	}
	configReloadCounter.WithLabelValues(status).Inc()
}
