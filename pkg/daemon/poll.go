package daemon

import (
	"context"
	"sync"
	"time"

	"github.com/go-kit/kit/log"

	"github.com/deployferry/ferry/pkg/git"
)

// PollLoop watches the remote for new commits on branch, as a backstop
// for webhooks that never arrive. A changed head is treated like a
// push: every pipeline gating the branch gets a run.
func (d *Daemon) PollLoop(stop chan struct{}, wg *sync.WaitGroup, branch string, interval, timeout time.Duration, logger log.Logger) {
	defer wg.Done()

	head := func() string {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		rev, err := git.RemoteBranchHead(ctx, d.Assemble.Remote.URL, branch)
		if err != nil {
			logger.Log("err", err, "branch", branch)
			return ""
		}
		return rev
	}

	last := head()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			rev := head()
			if rev == "" || rev == last {
				continue
			}
			last = rev
			logger.Log("new-head", rev, "branch", branch)
			for _, def := range d.Definitions {
				if def.MatchesBranch(branch) {
					d.enqueue(def, branch)
				}
			}
		}
	}
}
