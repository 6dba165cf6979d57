package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestIntervalSchedulerRunsOnStartAndTicks(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32
	s := NewIntervalScheduler(20*time.Millisecond, true)
	if err := s.Start(context.Background(), func(time.Time) { runs.Add(1) }); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if runs.Load() < 3 {
		t.Fatalf("expected at least 3 runs, got %d", runs.Load())
	}

	after := runs.Load()
	time.Sleep(60 * time.Millisecond)
	if runs.Load() != after {
		t.Fatalf("job fired after stop")
	}
}

func TestIntervalSchedulerSlowJobDoesNotBlockTicks(t *testing.T) {
	t.Parallel()

	var started atomic.Int32
	release := make(chan struct{})
	s := NewIntervalScheduler(10*time.Millisecond, false)
	_ = s.Start(context.Background(), func(time.Time) {
		started.Add(1)
		<-release
	})

	deadline := time.Now().Add(2 * time.Second)
	for started.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if started.Load() < 2 {
		t.Fatalf("expected overlapping triggers while the first job is running")
	}

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestIntervalSchedulerIgnoresInvalidSetup(t *testing.T) {
	t.Parallel()

	s := NewIntervalScheduler(0, true)
	if err := s.Start(context.Background(), func(time.Time) { t.Errorf("must not run") }); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
