package git

import (
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	ferrymetrics "github.com/deployferry/ferry/pkg/metrics"
)

const (
	MetricCopyReady   = 1
	MetricCopyUnready = 0
)

var (
	metricWorkingCopyReady = prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
		Namespace: "ferry",
		Subsystem: "git",
		Name:      "working_copy_ready",
		Help:      "Status of the local working copy.",
	}, []string{ferrymetrics.LabelStrategy})
)

func recordEnsure(strategy string, err error) {
	v := float64(MetricCopyReady)
	if err != nil {
		v = MetricCopyUnready
	}
	metricWorkingCopyReady.With(ferrymetrics.LabelStrategy, strategy).Set(v)
}
