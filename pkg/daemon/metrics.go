package daemon

import (
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	ferrymetrics "github.com/deployferry/ferry/pkg/metrics"
)

var (
	// For most jobs, the bulk of the time is the deploy stage's
	// remote session.
	jobDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "ferry",
		Subsystem: "daemon",
		Name:      "job_duration_seconds",
		Help:      "Duration of job execution, in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 15, 20, 30, 45, 60, 120},
	}, []string{ferrymetrics.LabelSuccess})

	// Same buckets as above (on the rough and ready assumption that
	// jobs will wait for some small multiple of job execution times)
	queueDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "ferry",
		Subsystem: "daemon",
		Name:      "queue_duration_seconds",
		Help:      "Duration of time spent in the job queue before execution, in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 15, 20, 30, 45, 60, 120},
	}, []string{})

	queueLength = prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
		Namespace: "ferry",
		Subsystem: "daemon",
		Name:      "queue_length_count",
		Help:      "Count of jobs waiting in the queue to be run.",
	}, []string{})
)
