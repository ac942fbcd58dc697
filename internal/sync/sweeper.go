// Package sync runs the scheduled background work of the board: recording
// overdue notifications for tasks nobody has looked at and purging expired
// sessions.
package sync

import (
	"context"
	"fmt"
	"log"
	gosync "sync"
	"time"

	rcron "github.com/robfig/cron/v3"
)

// SweepState represents the current state of the sweeper.
type SweepState int

const (
	SweepIdle SweepState = iota
	SweepRunning
	SweepError
)

// String returns the lowercase state name.
func (s SweepState) String() string {
	switch s {
	case SweepRunning:
		return "running"
	case SweepError:
		return "error"
	default:
		return "idle"
	}
}

// SweepStatus describes the last sweep.
type SweepStatus struct {
	State    SweepState
	LastRun  time.Time
	Created  int
	Purged   int64
	Error    error
	Schedule string
}

// Job is the work a sweep performs.
type Job interface {
	SweepOverdue(ctx context.Context) (int, error)
	PurgeSessions(ctx context.Context) (int64, error)
}

// runTimeout is the maximum time allowed for a single sweep.
const runTimeout = 30 * time.Second

// Sweeper runs a Job on a cron schedule.
type Sweeper struct {
	job      Job
	schedule string
	cron     *rcron.Cron
	now      func() time.Time

	mu      gosync.Mutex
	status  SweepStatus
	running bool
	done    chan struct{}
}

// New creates a Sweeper. schedule is a six-field cron expression (with
// seconds); it is checked when the sweeper starts.
func New(job Job, schedule string) *Sweeper {
	return &Sweeper{
		job:      job,
		schedule: schedule,
		now:      time.Now,
		status:   SweepStatus{Schedule: schedule},
	}
}

// Start registers the schedule and starts the scheduler. It stops when ctx
// is cancelled or Stop is called.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}

	logger := rcron.PrintfLogger(log.New(log.Writer(), "[sweep] ", log.LstdFlags))
	c := rcron.New(
		rcron.WithSeconds(),
		rcron.WithChain(rcron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(s.schedule, func() { s.RunNow(ctx) }); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}
	done := make(chan struct{})
	s.cron = c
	s.done = done
	s.running = true
	s.mu.Unlock()

	c.Start()
	log.Printf("[sweep] started with schedule %q", s.schedule)

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-done:
		}
	}()
	return nil
}

// Stop halts the scheduler and waits briefly for a running sweep.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	c := s.cron
	close(s.done)
	s.mu.Unlock()

	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		log.Printf("[sweep] stop timeout waiting for running sweep")
	}
	log.Printf("[sweep] stopped")
}

// RunNow performs one sweep synchronously and returns its status.
func (s *Sweeper) RunNow(ctx context.Context) SweepStatus {
	s.setState(SweepRunning)

	runCtx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	created, err := s.job.SweepOverdue(runCtx)
	var purged int64
	if err == nil {
		purged, err = s.job.PurgeSessions(runCtx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.LastRun = s.now()
	s.status.Created = created
	s.status.Purged = purged
	s.status.Error = err
	if err != nil {
		s.status.State = SweepError
		log.Printf("[sweep] failed: %v", err)
	} else {
		s.status.State = SweepIdle
		if created > 0 || purged > 0 {
			log.Printf("[sweep] %d overdue notifications, %d sessions purged", created, purged)
		}
	}
	return s.status
}

// Status returns the state of the last sweep.
func (s *Sweeper) Status() SweepStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Sweeper) setState(st SweepState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.State = st
}
