package purge

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/dray-io/asdelete/internal/logging"
)

// Runner executes one purge. *Controller implements it.
type Runner interface {
	Run(ctx context.Context, req Request) (Stats, error)
}

// Scheduler repeats a purge on a cron schedule. A tick that fires while the
// previous run is still going is skipped. Each run gets a fresh run ID.
type Scheduler struct {
	runner   Runner
	schedule string
	req      Request
	logger   *logging.Logger
	runLog   *logging.Logger
	newRunID func() string

	cron    *cron.Cron
	mu      sync.Mutex
	running bool
	busy    atomic.Bool
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler for req. The schedule uses the standard
// five-field cron syntax, e.g. "0 3 * * *" for daily at 3 AM.
func NewScheduler(runner Runner, schedule string, req Request, logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Global()
	}
	return &Scheduler{
		runner:   runner,
		schedule: schedule,
		req:      req,
		logger:   logger.With(map[string]any{"component": "scheduler"}),
		runLog:   logger,
		newRunID: uuid.NewString,
		cron:     cron.New(),
	}
}

// Start registers the job and starts the cron loop. It stops when ctx is
// cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}
	if _, err := s.cron.AddFunc(s.schedule, func() { s.tick(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule purge: %w", err)
	}

	s.cron.Start()
	s.running = true

	fields := map[string]any{
		"schedule":  s.schedule,
		"namespace": s.req.Namespace,
		"set":       s.req.Collection,
	}
	if next := s.nextLocked(); next != nil {
		fields["next"] = next.Format(time.RFC3339)
	}
	s.logger.Infof("purge scheduler started", fields)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	if !s.busy.CompareAndSwap(false, true) {
		s.logger.Warn("previous purge still running, skipping tick")
		return
	}
	s.wg.Add(1)
	defer func() {
		s.busy.Store(false)
		s.wg.Done()
	}()
	s.runOnce(ctx)
}

// runOnce executes a single run with a fresh run ID. The run's logger is
// attached to ctx.
func (s *Scheduler) runOnce(ctx context.Context) {
	req := s.req
	req.RunID = s.newRunID()
	ctx = logging.WithLoggerCtx(ctx, s.runLog.WithRunID(req.RunID))

	if _, err := s.runner.Run(ctx, req); err != nil {
		s.logger.WithRunID(req.RunID).Errorf("scheduled purge failed", map[string]any{"error": err.Error()})
	}
}

// Stop stops the scheduler and waits for a running purge to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.running = false
	s.logger.Info("purge scheduler stopped")
}

// IsRunning reports whether the cron loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled run time, or nil when stopped.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	return s.nextLocked()
}

func (s *Scheduler) nextLocked() *time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
