// Package scheduler re-runs the batch job on a fixed interval until stopped.
//
// Stop is cooperative: a batch in progress completes and no new batch starts
// afterwards. Canceling the context passed to Start ends the loop too, and
// the batch in progress stops polling after its current round while still
// writing the text it already has. A file lock keeps a single scheduler per
// data directory.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"videotext/internal/logging"
	"videotext/internal/services"
)

// Runner runs one batch.
type Runner interface {
	RunOnce(ctx context.Context, runID string) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, runID string) error

// RunOnce calls f.
func (f RunnerFunc) RunOnce(ctx context.Context, runID string) error { return f(ctx, runID) }

// Status reports scheduler state.
type Status struct {
	Running      bool
	Runs         int64
	LastRunID    string
	LastError    string
	LastFinished time.Time
}

// Scheduler runs a Runner immediately and then every interval.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	logger   *slog.Logger
	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup

	runs      atomic.Int64
	statusMu  sync.Mutex
	lastRunID string
	lastErr   error
	lastDone  time.Time
}

// New constructs a scheduler. lockPath may be empty to skip locking.
func New(runner Runner, interval time.Duration, lockPath string, logger *slog.Logger) *Scheduler {
	s := &Scheduler{
		runner:   runner,
		interval: interval,
		logger:   logging.NewComponentLogger(logger, "scheduler"),
		lockPath: lockPath,
	}
	if lockPath != "" {
		s.lock = flock.New(lockPath)
	}
	return s
}

// Start acquires the instance lock and begins the run loop. Canceling ctx
// ends the loop; the batch in progress sees it between poll rounds.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.runner == nil {
		return fmt.Errorf("%w: scheduler has no runner", services.ErrConfiguration)
	}
	if s.interval <= 0 {
		return fmt.Errorf("%w: schedule interval must be positive", services.ErrConfiguration)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("scheduler already running")
	}
	if s.lock != nil {
		ok, err := s.lock.TryLock()
		if err != nil {
			return fmt.Errorf("acquire lock: %w", err)
		}
		if !ok {
			return fmt.Errorf("another videotext scheduler holds %s", s.lockPath)
		}
	}

	s.stop = make(chan struct{})
	s.running = true
	s.wg.Add(1)
	go s.loop(ctx, s.stop)
	s.logger.Info("scheduler started",
		logging.Duration("interval", s.interval),
		logging.String("lock", s.lockPath),
	)
	return nil
}

// Stop asks the loop to exit after the current batch and waits for it.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stop)
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
}

// Wait blocks until the loop exits.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Status returns a snapshot of the scheduler.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	st := Status{
		Running:      running,
		Runs:         s.runs.Load(),
		LastRunID:    s.lastRunID,
		LastFinished: s.lastDone,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

func (s *Scheduler) loop(ctx context.Context, stop <-chan struct{}) {
	defer s.wg.Done()
	defer s.markStopped(stop)
	defer s.release()

	for {
		s.runOnce(ctx)

		timer := time.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("scheduler stopped", logging.String("reason", "context canceled"))
			return
		case <-stop:
			timer.Stop()
			s.logger.Info("scheduler stopped", logging.String("reason", "stop requested"))
			return
		case <-timer.C:
		}

		select {
		case <-stop:
			s.logger.Info("scheduler stopped", logging.String("reason", "stop requested"))
			return
		default:
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	runID := uuid.NewString()
	runCtx := services.WithRequestID(ctx, runID)
	logger := logging.WithContext(runCtx, s.logger)
	start := time.Now()

	err := s.safeRun(runCtx, runID)
	s.runs.Add(1)

	s.statusMu.Lock()
	s.lastRunID = runID
	s.lastErr = err
	s.lastDone = time.Now()
	s.statusMu.Unlock()

	if err != nil {
		logging.ErrorWithContext(logger, "scheduled batch failed", "scheduled_batch_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.Duration("duration", time.Since(start)),
		)
		return
	}
	logger.Info("scheduled batch finished",
		logging.String(logging.FieldEventType, "scheduled_batch_finished"),
		logging.Duration("duration", time.Since(start)),
	)
}

func (s *Scheduler) safeRun(ctx context.Context, runID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("batch %s panicked: %v", runID, r)
		}
	}()
	return s.runner.RunOnce(ctx, runID)
}

func (s *Scheduler) markStopped(stop <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop == stop {
		s.running = false
	}
}

func (s *Scheduler) release() {
	if s.lock == nil {
		return
	}
	if err := s.lock.Unlock(); err != nil {
		s.logger.Warn("failed to release scheduler lock", logging.Error(err))
	}
}
