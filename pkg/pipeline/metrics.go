package pipeline

import (
	"fmt"
	"time"

	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	ferrymetrics "github.com/deployferry/ferry/pkg/metrics"
)

var (
	// Checkout and build dominate; deploys over slow links can take
	// considerably longer.
	stageDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "ferry",
		Subsystem: "pipeline",
		Name:      "stage_duration_seconds",
		Help:      "Duration of pipeline stage execution, in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 15, 20, 30, 45, 60, 120, 300},
	}, []string{ferrymetrics.LabelPipeline, ferrymetrics.LabelStage, ferrymetrics.LabelSuccess})

	runDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "ferry",
		Subsystem: "pipeline",
		Name:      "run_duration_seconds",
		Help:      "Duration of whole pipeline runs, in seconds.",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 240, 480, 900},
	}, []string{ferrymetrics.LabelPipeline, ferrymetrics.LabelSuccess})

	lastRunSuccess = prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
		Namespace: "ferry",
		Subsystem: "pipeline",
		Name:      "last_run_success",
		Help:      "Whether the most recent run of each pipeline succeeded.",
	}, []string{ferrymetrics.LabelPipeline})
)

func observeStage(pipeline, stage string, d time.Duration, err error) {
	stageDuration.With(
		ferrymetrics.LabelPipeline, pipeline,
		ferrymetrics.LabelStage, stage,
		ferrymetrics.LabelSuccess, fmt.Sprint(err == nil),
	).Observe(d.Seconds())
}

func observeRun(pipeline string, d time.Duration, err error) {
	runDuration.With(
		ferrymetrics.LabelPipeline, pipeline,
		ferrymetrics.LabelSuccess, fmt.Sprint(err == nil),
	).Observe(d.Seconds())
	v := 1.0
	if err != nil {
		v = 0
	}
	lastRunSuccess.With(ferrymetrics.LabelPipeline, pipeline).Set(v)
}
