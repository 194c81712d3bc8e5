package syncmgr

import (
	"context"
	"sync"
	"time"

	"github.com/jaxbuckets/buckets/bucketdag"
)

// Scheduler drives periodic Pull calls for every bucket the metadata
// store knows about, on a fixed interval - a ticker-plus-quit-channel
// loop in the same shape as the teacher's mining worker loops.
type Scheduler struct {
	mgr      *Manager
	interval time.Duration

	quit chan struct{}
	done chan struct{}
}

// NewScheduler returns a Scheduler that pulls every known bucket once per
// interval, starting when Run is called.
func NewScheduler(mgr *Manager, interval time.Duration) *Scheduler {
	return &Scheduler{
		mgr:      mgr,
		interval: interval,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run blocks, ticking every s.interval and pulling every known bucket in
// parallel on each tick, until ctx is cancelled or Stop is called.
func (s *Scheduler) Run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.quit:
			return
		case <-ticker.C:
			s.pullAll(ctx)
		}
	}
}

// Stop signals Run to return and waits for it to do so.
func (s *Scheduler) Stop() {
	close(s.quit)
	<-s.done
}

func (s *Scheduler) pullAll(ctx context.Context) {
	rows, err := s.mgr.Meta.ListBuckets(ctx)
	if err != nil {
		log.Warnf("syncmgr: scheduler list buckets: %v", err)
		return
	}

	var wg sync.WaitGroup
	for _, row := range rows {
		wg.Add(1)
		go func(id bucketdag.BucketID) {
			defer wg.Done()
			if err := s.mgr.Pull(ctx, id); err != nil {
				log.Debugf("syncmgr: scheduled pull of %s failed: %v", id, err)
			}
		}(row.ID)
	}
	wg.Wait()
}
