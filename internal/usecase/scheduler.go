package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ThreatScanner/internal/domain"
	"ThreatScanner/internal/metrics"
	"ThreatScanner/internal/ports"
)

// ErrCycleInProgress is returned when a trigger arrives while a cycle is collecting.
var ErrCycleInProgress = errors.New("collection cycle already in progress")

// CycleRunner executes one collection cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) (domain.CycleReport, error)
}

// SchedulerDeps wires the drivers and the cycle into the state machine.
type SchedulerDeps struct {
	Runner CycleRunner
	// Driver fires periodic cycle triggers.
	Driver ports.Scheduler
	// Health fires periodic status log lines; optional.
	Health  ports.Scheduler
	Metrics *metrics.Recorder
	Logger  *slog.Logger
	Now     func() time.Time
}

// Scheduler owns the Idle/Collecting state and guarantees cycles never overlap.
type Scheduler struct {
	runner  CycleRunner
	driver  ports.Scheduler
	health  ports.Scheduler
	metrics *metrics.Recorder
	logger  *slog.Logger
	now     func() time.Time

	mu     sync.Mutex
	status domain.CycleStatus
	runCtx context.Context
	wg     sync.WaitGroup
}

// NewScheduler returns the cycle state machine in the idle state.
func NewScheduler(deps SchedulerDeps) *Scheduler {
	s := &Scheduler{
		runner:  deps.Runner,
		driver:  deps.Driver,
		health:  deps.Health,
		metrics: deps.Metrics,
		logger:  deps.Logger,
		now:     deps.Now,
		status:  domain.CycleStatus{State: domain.CycleIdle},
		runCtx:  context.Background(),
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Start registers the cycle with the periodic driver and the health tick with its driver.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.runCtx = ctx
	s.mu.Unlock()

	if s.driver != nil {
		job := func(time.Time) {
			if _, err := s.Trigger(ctx); err != nil && !errors.Is(err, ErrCycleInProgress) {
				s.logger.Error("cycle failed", "error", err)
			}
		}
		if err := s.driver.Start(ctx, job); err != nil {
			return err
		}
	}
	if s.health != nil {
		if err := s.health.Start(ctx, func(time.Time) { s.logHealth() }); err != nil {
			return err
		}
	}
	return nil
}

// Stop tears down the drivers and waits for background cycles started by TriggerAsync.
func (s *Scheduler) Stop(ctx context.Context) error {
	var errs []error
	if s.driver != nil {
		errs = append(errs, s.driver.Stop(ctx))
	}
	if s.health != nil {
		errs = append(errs, s.health.Stop(ctx))
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, ctx.Err())
	}
	return errors.Join(errs...)
}

// Trigger runs one cycle synchronously. A trigger while collecting is skipped and reported
// as ErrCycleInProgress.
func (s *Scheduler) Trigger(ctx context.Context) (domain.CycleReport, error) {
	if !s.claim() {
		return domain.CycleReport{}, ErrCycleInProgress
	}
	return s.execute(ctx)
}

// TriggerAsync claims the cycle and runs it in the background under the scheduler context.
func (s *Scheduler) TriggerAsync() error {
	if !s.claim() {
		return ErrCycleInProgress
	}
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.execute(ctx); err != nil {
			s.logger.Error("manual cycle failed", "error", err)
		}
	}()
	return nil
}

// Status returns a snapshot of the state machine. It never waits for a running cycle.
func (s *Scheduler) Status() domain.CycleStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Scheduler) claim() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.State == domain.CycleCollecting {
		s.status.Skipped++
		s.logger.Info("trigger skipped, cycle in progress", "started_at", s.status.LastStartedAt)
		s.metrics.CycleFinished(metrics.OutcomeSkipped, 0)
		return false
	}
	s.status.State = domain.CycleCollecting
	s.status.LastStartedAt = s.now().UTC()
	return true
}

func (s *Scheduler) execute(ctx context.Context) (report domain.CycleReport, err error) {
	started := s.now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v", r)
		}
		s.finish(started, report, err)
	}()

	if s.runner == nil {
		return report, errors.New("cycle runner is not configured")
	}
	return s.runner.RunCycle(ctx)
}

// finish returns the state machine to Idle and records the cycle outcome.
func (s *Scheduler) finish(started time.Time, report domain.CycleReport, err error) {
	finished := s.now()
	s.mu.Lock()
	s.status.State = domain.CycleIdle
	s.status.LastCycleAt = finished.UTC()
	s.status.LastReport = report
	s.status.Cycles++
	if err != nil {
		s.status.Failures++
		s.status.LastError = err.Error()
	} else {
		s.status.LastSuccessAt = finished.UTC()
		s.status.LastError = ""
	}
	s.mu.Unlock()

	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeFailure
	}
	s.metrics.CycleFinished(outcome, finished.Sub(started))
	s.logger.Info("cycle finished", "outcome", outcome, "duration", finished.Sub(started), "selected", report.Selected)
}

func (s *Scheduler) logHealth() {
	st := s.Status()
	s.logger.Info("scheduler health",
		"state", st.State,
		"cycles", st.Cycles,
		"failures", st.Failures,
		"skipped", st.Skipped,
		"last_cycle_at", st.LastCycleAt,
		"last_success_at", st.LastSuccessAt,
		"last_error", st.LastError,
	)
}
