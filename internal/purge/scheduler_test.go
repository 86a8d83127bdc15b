package purge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dray-io/asdelete/internal/logging"
)

type fakeRunner struct {
	mu        sync.Mutex
	reqs      []Request
	ctxRunIDs []string
	err       error
	started   chan struct{}
	release   chan struct{}
}

func (r *fakeRunner) Run(ctx context.Context, req Request) (Stats, error) {
	r.mu.Lock()
	r.reqs = append(r.reqs, req)
	r.ctxRunIDs = append(r.ctxRunIDs, logging.FromCtx(ctx).RunID())
	r.mu.Unlock()
	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.release != nil {
		<-r.release
	}
	return Stats{}, r.err
}

func (r *fakeRunner) requests() []Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Request(nil), r.reqs...)
}

func newTestScheduler(runner Runner, schedule string) *Scheduler {
	s := NewScheduler(runner, schedule, request(100), logging.Nop())
	n := 0
	s.newRunID = func() string {
		n++
		return fmt.Sprintf("run-%d", n)
	}
	return s
}

func TestSchedulerFreshRunIDPerTick(t *testing.T) {
	runner := &fakeRunner{}
	s := newTestScheduler(runner, "0 3 * * *")

	s.tick(context.Background())
	s.tick(context.Background())

	reqs := runner.requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "run-1", reqs[0].RunID)
	assert.Equal(t, "run-2", reqs[1].RunID)
	assert.Equal(t, testSet, reqs[1].Collection)
	assert.Equal(t, int64(100), reqs[1].Limit)
}

func TestSchedulerAttachesRunLogger(t *testing.T) {
	runner := &fakeRunner{}
	s := newTestScheduler(runner, "0 3 * * *")

	s.tick(context.Background())
	s.tick(context.Background())

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Equal(t, []string{"run-1", "run-2"}, runner.ctxRunIDs)
}

func TestScheduledControllerLogsWithRunID(t *testing.T) {
	env := newTestEnv()
	env.seed(1, 0)

	ctrl := NewController(env.store, nil, WithClock(fixedClock))
	s := NewScheduler(ctrl, "0 3 * * *", request(10), env.log)
	s.newRunID = func() string { return "sched-7" }

	s.tick(context.Background())

	assert.Contains(t, env.out.String(), "Deleted 1 records from set sessions runId=sched-7")
	assert.NotContains(t, env.out.String(), "component=scheduler")
}

func TestSchedulerSkipsOverlappingTicks(t *testing.T) {
	runner := &fakeRunner{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	s := newTestScheduler(runner, "0 3 * * *")

	done := make(chan struct{})
	go func() {
		s.tick(context.Background())
		close(done)
	}()
	<-runner.started

	s.tick(context.Background())
	assert.Len(t, runner.requests(), 1, "second tick must be skipped while the first runs")

	close(runner.release)
	<-done

	runner.release = nil
	s.tick(context.Background())
	assert.Len(t, runner.requests(), 2)
}

func TestSchedulerRunFailureIsLogged(t *testing.T) {
	runner := &fakeRunner{err: errors.New("scan failed")}
	s := newTestScheduler(runner, "0 3 * * *")

	s.tick(context.Background())
	assert.Len(t, runner.requests(), 1)
	assert.False(t, s.busy.Load())
}

func TestSchedulerStartStop(t *testing.T) {
	s := newTestScheduler(&fakeRunner{}, "0 3 * * *")
	assert.Nil(t, s.NextRun())

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())

	next := s.NextRun()
	require.NotNil(t, next)
	assert.Equal(t, 3, next.Hour())
	assert.Equal(t, 0, next.Minute())

	s.Stop()
	assert.False(t, s.IsRunning())
	assert.Nil(t, s.NextRun())
	s.Stop()
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	s := newTestScheduler(&fakeRunner{}, "*/5 * * * *")
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, s.Start(ctx))
	cancel()

	assert.Eventually(t, func() bool { return !s.IsRunning() }, time.Second, 10*time.Millisecond)
}

func TestSchedulerInvalidSchedule(t *testing.T) {
	s := newTestScheduler(&fakeRunner{}, "whenever")
	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cron schedule")
	assert.False(t, s.IsRunning())
}
