// Package scheduler repeats the notifier pipeline on a cron schedule for
// daemon mode. Runs never overlap inside one process: a tick that fires
// while a run is in progress is skipped.
package scheduler

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/anstrom/shodan-notifier/internal/logging"
	"github.com/anstrom/shodan-notifier/internal/notifier"
)

// ErrRunInProgress is returned by RunNow while another run is executing.
var ErrRunInProgress = stderrors.New("run already in progress")

// RunFunc executes one pipeline run.
type RunFunc func(ctx context.Context) (*notifier.RunResult, error)

// Scheduler manages the scheduled pipeline job.
type Scheduler struct {
	cron    *cron.Cron
	run     RunFunc
	expr    string
	entryID cron.EntryID
	logger  *logging.Logger

	mu         sync.RWMutex
	started    bool
	executing  bool
	runs       int
	lastRun    time.Time
	lastResult *notifier.RunResult
	lastErr    error

	ctx    context.Context
	cancel context.CancelFunc
}

// Status is a point in time view of the scheduler.
type Status struct {
	Schedule   string              `json:"schedule"`
	Started    bool                `json:"started"`
	Executing  bool                `json:"executing"`
	Runs       int                 `json:"runs"`
	LastRun    time.Time           `json:"last_run,omitempty"`
	NextRun    time.Time           `json:"next_run,omitempty"`
	LastResult *notifier.RunResult `json:"last_result,omitempty"`
	LastError  string              `json:"last_error,omitempty"`
}

// New creates a scheduler for a standard five-field cron expression or a
// descriptor such as "@every 6h".
func New(cronExpr string, run RunFunc, logger *logging.Logger) (*Scheduler, error) {
	if run == nil {
		return nil, fmt.Errorf("run function is required")
	}
	if _, err := cron.ParseStandard(cronExpr); err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.WithComponent("scheduler")

	cronLog := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLog),
			cron.SkipIfStillRunning(cronLog),
		), cron.WithLogger(cronLog)),
		run:    run,
		expr:   cronExpr,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Start begins the scheduler.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("scheduler is already running")
	}

	entryID, err := s.cron.AddFunc(s.expr, s.tick)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}
	s.entryID = entryID

	s.cron.Start()
	s.started = true

	s.logger.Info("Scheduler started", "schedule", s.expr, "next_run", s.cron.Entry(entryID).Next)
	return nil
}

// Stop stops the scheduler, cancels an executing run and waits for it to
// return or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	done := s.cron.Stop()
	s.cancel()

	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("Timed out waiting for run to finish")
	}

	s.logger.Info("Scheduler stopped")
}

// RunNow executes a run immediately on the caller's goroutine.
func (s *Scheduler) RunNow(ctx context.Context) (*notifier.RunResult, error) {
	if !s.begin() {
		return nil, ErrRunInProgress
	}

	result, err := s.run(ctx)
	s.finish(result, err)
	return result, err
}

// Status returns the current scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		Schedule:   s.expr,
		Started:    s.started,
		Executing:  s.executing,
		Runs:       s.runs,
		LastRun:    s.lastRun,
		LastResult: s.lastResult,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	if s.started {
		st.NextRun = s.cron.Entry(s.entryID).Next
	}
	return st
}

func (s *Scheduler) tick() {
	if _, err := s.RunNow(s.ctx); err != nil {
		if stderrors.Is(err, ErrRunInProgress) {
			s.logger.Warn("Skipping scheduled run, previous run still executing")
			return
		}
		s.logger.Error("Scheduled run failed", "error", err)
	}
}

func (s *Scheduler) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.executing {
		return false
	}
	s.executing = true
	return true
}

func (s *Scheduler) finish(result *notifier.RunResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.executing = false
	s.runs++
	s.lastRun = time.Now()
	s.lastErr = err
	if result != nil {
		s.lastResult = result
	}
}

// cronLogger adapts the notifier logger to cron.Logger.
type cronLogger struct {
	logger *logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
