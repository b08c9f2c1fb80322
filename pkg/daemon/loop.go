package daemon

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-kit/kit/log"

	"github.com/deployferry/ferry/pkg/job"
	ferrymetrics "github.com/deployferry/ferry/pkg/metrics"
)

// Loop is the daemon's worker: it takes jobs off the queue one at a
// time and runs them to completion. Runs are therefore serial within
// one daemon; overlapping triggers wait their turn. Nothing here (or
// anywhere else) provides mutual exclusion across *daemons* deploying
// to the same host; a shared target needs a single daemon in front of
// it.
func (d *Daemon) Loop(stop chan struct{}, wg *sync.WaitGroup, logger log.Logger) {
	defer wg.Done()

	for {
		select {
		case <-stop:
			logger.Log("stopping", "true")
			return
		case j := <-d.Jobs.Ready():
			queueDuration.Observe(time.Since(j.Enqueued).Seconds())
			queueLength.Set(float64(d.Jobs.Len()))
			jobLogger := log.With(logger, "jobID", j.ID)
			jobLogger.Log("state", "running", "pipeline", j.Pipeline, "branch", j.Branch)
			d.setJobStatus(j.ID, job.Status{StatusString: job.StatusRunning})

			start := time.Now()
			err := j.Do(jobLogger)
			jobDuration.With(ferrymetrics.LabelSuccess, fmt.Sprint(err == nil)).Observe(time.Since(start).Seconds())
			if err != nil {
				d.setJobStatus(j.ID, job.Status{StatusString: job.StatusFailed, Err: err.Error()})
				jobLogger.Log("state", "failed", "err", err)
				continue
			}
			d.setJobStatus(j.ID, job.Status{StatusString: job.StatusSucceeded})
			jobLogger.Log("state", "succeeded", "took", time.Since(start).String())
		}
	}
}
