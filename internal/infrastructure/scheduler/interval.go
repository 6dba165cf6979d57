package scheduler

import (
	"context"
	"sync"
	"time"

	"ThreatScanner/internal/ports"
)

// IntervalScheduler fires the job on a fixed interval using time.Ticker.
// Each tick runs the job in its own goroutine so a slow job never delays the next trigger.
type IntervalScheduler struct {
	interval   time.Duration
	runOnStart bool

	mu   sync.Mutex
	stop chan struct{}
	wg   sync.WaitGroup
}

var _ ports.Scheduler = (*IntervalScheduler)(nil)

// NewIntervalScheduler builds a ticker driver; runOnStart fires one job immediately.
func NewIntervalScheduler(interval time.Duration, runOnStart bool) *IntervalScheduler {
	return &IntervalScheduler{interval: interval, runOnStart: runOnStart}
}

// Start begins ticking until ctx is cancelled or Stop is called.
func (c *IntervalScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil || c.interval <= 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		return nil
	}

	stop := make(chan struct{})
	c.stop = stop
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		if c.runOnStart {
			c.fire(job, time.Now())
		}
		for {
			select {
			case t := <-ticker.C:
				c.fire(job, t)
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()

	return nil
}

func (c *IntervalScheduler) fire(job func(time.Time), t time.Time) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		job(t)
	}()
}

// Stop halts the ticker and waits for running jobs until ctx expires.
func (c *IntervalScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
