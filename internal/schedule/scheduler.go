// Package schedule fires pipeline cycles at fixed UTC wall-clock times.
package schedule

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/banshee-data/mushmap/internal/monitoring"
	"github.com/banshee-data/mushmap/internal/pipeline"
	"github.com/banshee-data/mushmap/internal/timeutil"
)

// CycleRunner is the trigger boundary to the pipeline. *pipeline.Runner
// implements it.
type CycleRunner interface {
	RunCycle(ctx context.Context) error
}

// WallClockTime is a time of day in UTC.
type WallClockTime struct {
	Hour   int
	Minute int
}

// Scheduler invokes RunCycle at each configured time of day. It drives its
// waits through timeutil.Clock so tests can advance time manually.
type Scheduler struct {
	runner CycleRunner
	clock  timeutil.Clock
	times  []WallClockTime

	runMu   sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewScheduler creates a Scheduler firing at the given times each day.
func NewScheduler(runner CycleRunner, clock timeutil.Clock, times []WallClockTime) *Scheduler {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	sorted := make([]WallClockTime, len(times))
	copy(sorted, times)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Hour != sorted[j].Hour {
			return sorted[i].Hour < sorted[j].Hour
		}
		return sorted[i].Minute < sorted[j].Minute
	})
	return &Scheduler{
		runner: runner,
		clock:  clock,
		times:  sorted,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// NextFireTime returns the next scheduled instant strictly after now.
func (s *Scheduler) NextFireTime(now time.Time) time.Time {
	now = now.UTC()
	for _, t := range s.times {
		candidate := time.Date(now.Year(), now.Month(), now.Day(), t.Hour, t.Minute, 0, 0, time.UTC)
		if candidate.After(now) {
			return candidate
		}
	}
	// All of today's times have passed; first slot tomorrow.
	first := s.times[0]
	tomorrow := now.AddDate(0, 0, 1)
	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), first.Hour, first.Minute, 0, 0, time.UTC)
}

// Run blocks until the context is cancelled or Stop is called, firing a
// cycle at each scheduled time. A cycle rejected because a manual run is in
// flight is logged and skipped; the schedule is not retried until its next
// slot.
func (s *Scheduler) Run(ctx context.Context) error {
	s.runMu.Lock()
	if s.running {
		s.runMu.Unlock()
		return nil // already running
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.runMu.Unlock()

	defer func() {
		close(s.doneCh)
		s.runMu.Lock()
		s.running = false
		s.runMu.Unlock()
	}()

	if len(s.times) == 0 {
		monitoring.Logf("[Scheduler] No update times configured, not starting")
		return nil
	}

	for {
		next := s.NextFireTime(s.clock.Now())
		wait := s.clock.Until(next)
		monitoring.Logf("[Scheduler] Next run at %s (in %v)", next.Format(time.RFC3339), wait)

		timer := s.clock.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			monitoring.Logf("[Scheduler] Stopping due to context cancellation")
			return nil
		case <-s.stopCh:
			timer.Stop()
			monitoring.Logf("[Scheduler] Stopping due to Stop() call")
			return nil
		case <-timer.C():
			s.fire(ctx)
		}
	}
}

// Stop requests the scheduler to stop and waits for Run to return.
// Safe to call multiple times.
func (s *Scheduler) Stop() {
	s.runMu.Lock()
	if !s.running {
		s.runMu.Unlock()
		return
	}
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	s.runMu.Unlock()

	<-s.doneCh
}

// fire runs one scheduled cycle.
func (s *Scheduler) fire(ctx context.Context) {
	if err := s.runner.RunCycle(ctx); err != nil {
		if errors.Is(err, pipeline.ErrCycleInProgress) {
			monitoring.Logf("[Scheduler] Skipping scheduled run: %v", err)
			return
		}
		monitoring.Logf("[Scheduler] Scheduled run failed: %v", err)
		return
	}
	monitoring.Logf("[Scheduler] Scheduled run completed")
}
