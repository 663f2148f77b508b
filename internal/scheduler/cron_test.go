package scheduler

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amaumene/plexschedule/internal/controllers"
	"github.com/amaumene/plexschedule/internal/utils"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls []time.Time
	err   error
	ran   chan struct{}
}

func (r *fakeRunner) Run(ctx context.Context, today time.Time) (controllers.Summary, error) {
	r.mu.Lock()
	r.calls = append(r.calls, today)
	r.mu.Unlock()

	if r.ran != nil {
		r.ran <- struct{}{}
	}
	return controllers.Summary{Attempted: 1, Acted: 1}, r.err
}

func TestStartRunsImmediately(t *testing.T) {
	runner := &fakeRunner{ran: make(chan struct{}, 1)}
	s := NewScheduler(runner, "0 6 * * *", utils.NewLoggerWithOutput("info", io.Discard))
	fixed := time.Date(2016, time.July, 1, 6, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	select {
	case <-runner.ran:
	case <-time.After(5 * time.Second):
		t.Fatal("initial run did not happen")
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if len(runner.calls) != 1 || !runner.calls[0].Equal(fixed) {
		t.Errorf("calls = %v, want one run at %v", runner.calls, fixed)
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(&fakeRunner{}, "every morning", utils.NewLoggerWithOutput("info", io.Discard))

	if err := s.Start(); err == nil {
		t.Fatal("Start() error = nil, want invalid schedule error")
	}
}

func TestRunScheduleToleratesErrors(t *testing.T) {
	for _, err := range []error{controllers.ErrRunInProgress, errors.New("plex returned 500")} {
		runner := &fakeRunner{err: err}
		s := NewScheduler(runner, "0 6 * * *", utils.NewLoggerWithOutput("info", io.Discard))

		s.runSchedule()

		if len(runner.calls) != 1 {
			t.Errorf("calls = %d, want 1", len(runner.calls))
		}
	}
}

func TestStopCancelsRunContext(t *testing.T) {
	s := NewScheduler(&fakeRunner{}, "0 6 * * *", utils.NewLoggerWithOutput("info", io.Discard))
	s.Stop()

	if !errors.Is(s.ctx.Err(), context.Canceled) {
		t.Errorf("ctx.Err() = %v, want context.Canceled", s.ctx.Err())
	}
}

// blockingRunner holds the run open until the scheduler cancels it
type blockingRunner struct {
	started  chan struct{}
	finished atomic.Bool
}

func (r *blockingRunner) Run(ctx context.Context, today time.Time) (controllers.Summary, error) {
	close(r.started)
	<-ctx.Done()
	// committing the in-flight action
	time.Sleep(100 * time.Millisecond)
	r.finished.Store(true)
	return controllers.Summary{Attempted: 1}, ctx.Err()
}

func TestStopWaitsForInitialRun(t *testing.T) {
	runner := &blockingRunner{started: make(chan struct{})}
	s := NewScheduler(runner, "0 6 * * *", utils.NewLoggerWithOutput("info", io.Discard))

	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	select {
	case <-runner.started:
	case <-time.After(5 * time.Second):
		t.Fatal("initial run did not start")
	}

	s.Stop()

	if !runner.finished.Load() {
		t.Error("Stop() returned before the initial run finished")
	}
}
