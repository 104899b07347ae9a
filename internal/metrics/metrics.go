// Package metrics registers the engine's Prometheus instruments with the
// default registry, served at /metrics by promhttp.Handler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QuestionsFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ngs_quiz",
		Name:      "questions_fetched_total",
		Help:      "Total questions returned by the batch picker, by subject",
	}, []string{"subject"})

	AttemptsRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ngs_quiz",
		Name:      "attempts_recorded_total",
		Help:      "Total attempts recorded, by correctness",
	}, []string{"correct"})

	GenerationJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ngs_quiz",
		Name:      "generation_jobs_total",
		Help:      "Total generation jobs, by terminal outcome",
	}, []string{"outcome"})

	GenerationJobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ngs_quiz",
		Name:      "generation_job_duration_seconds",
		Help:      "Wall-clock duration of a generation job from dispatch to terminal state",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})
)
