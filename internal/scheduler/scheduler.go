// Package scheduler drives the pipeline cycles on fixed intervals with
// per-job mutual exclusion.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"leadwatch/internal/lead"
	"leadwatch/internal/metrics"
)

// JobState is the lifecycle of one registered job.
type JobState string

const (
	// StateIdle means the job is waiting for its next trigger.
	StateIdle JobState = "idle"
	// StateRunning means a cycle is in flight. Further triggers are
	// rejected until it finishes.
	StateRunning JobState = "running"
	// StateDisabled means a credential failure stopped the job. Only an
	// explicit Enable resumes it.
	StateDisabled JobState = "disabled"
)

// Trigger outcomes.
var (
	ErrJobUnknown  = errors.New("unknown job")
	ErrJobBusy     = errors.New("job already running")
	ErrJobDisabled = errors.New("job disabled, re-enable to resume")
)

// RunFunc is one job cycle.
type RunFunc func(ctx context.Context) error

// JobStatus is a point-in-time snapshot of one job.
type JobStatus struct {
	Name      string     `json:"name"`
	State     JobState   `json:"state"`
	Interval  string     `json:"interval"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

type job struct {
	name     string
	interval time.Duration
	run      RunFunc

	state     JobState
	lastRunAt *time.Time
	lastError string
}

// Scheduler owns the cron loop and the per-job state machine. Interval
// ticks and manual triggers go through the same gate, so at most one
// cycle per job runs at a time.
type Scheduler struct {
	mu      sync.Mutex
	jobs    map[string]*job
	order   []string
	cron    *cron.Cron
	clock   lead.Clock
	logger  *zap.Logger
	wg      sync.WaitGroup
	baseCtx context.Context
}

// New creates a Scheduler.
func New(clock lead.Clock, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		jobs:    make(map[string]*job),
		cron:    cron.New(),
		clock:   clock,
		logger:  logger,
		baseCtx: context.Background(),
	}
}

// Register adds a job that fires every interval. Interval ticks that land
// while the previous cycle is still running are dropped.
func (s *Scheduler) Register(name string, interval time.Duration, run RunFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("job %q already registered", name)
	}

	j := &job{name: name, interval: interval, run: run, state: StateIdle}
	s.jobs[name] = j
	s.order = append(s.order, name)

	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		if terr := s.Trigger(name); terr != nil && !errors.Is(terr, ErrJobBusy) && !errors.Is(terr, ErrJobDisabled) {
			s.logger.Error("scheduled trigger failed", zap.String("job", name), zap.Error(terr))
		}
	})
	if err != nil {
		delete(s.jobs, name)
		s.order = s.order[:len(s.order)-1]
		return fmt.Errorf("schedule job %q: %w", name, err)
	}
	return nil
}

// Trigger starts one cycle of the job now. It returns ErrJobBusy when a
// cycle is already in flight and ErrJobDisabled when the job needs an
// operator to re-enable it.
func (s *Scheduler) Trigger(name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrJobUnknown, name)
	}
	switch j.state {
	case StateDisabled:
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrJobDisabled, name)
	case StateRunning:
		s.mu.Unlock()
		metrics.IncJobBusy(name)
		s.logger.Info("trigger rejected, cycle in flight", zap.String("job", name))
		return fmt.Errorf("%w: %q", ErrJobBusy, name)
	}
	j.state = StateRunning
	now := s.clock.Now()
	j.lastRunAt = &now
	ctx := s.baseCtx
	s.mu.Unlock()

	s.wg.Add(1)
	go s.execute(ctx, j)
	return nil
}

func (s *Scheduler) execute(ctx context.Context, j *job) {
	defer s.wg.Done()

	start := time.Now()
	err := j.run(ctx)

	s.mu.Lock()
	j.state = StateIdle
	j.lastError = ""
	if err != nil {
		j.lastError = err.Error()
		if lead.IsCredentialFailure(err) {
			j.state = StateDisabled
		}
	}
	disabled := j.state == StateDisabled
	s.mu.Unlock()

	switch {
	case disabled:
		metrics.SetJobDisabled(j.name, true)
		s.logger.Error("job disabled after credential failure, operator action required",
			zap.String("job", j.name),
			zap.Error(err),
		)
	case err != nil:
		s.logger.Error("job cycle failed",
			zap.String("job", j.name),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
	default:
		s.logger.Info("job cycle finished",
			zap.String("job", j.name),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}

// Enable returns a disabled job to idle so scheduling resumes.
func (s *Scheduler) Enable(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrJobUnknown, name)
	}
	if j.state == StateDisabled {
		j.state = StateIdle
		j.lastError = ""
		metrics.SetJobDisabled(name, false)
		s.logger.Info("job re-enabled", zap.String("job", name))
	}
	return nil
}

// Jobs returns a snapshot of every job in registration order.
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobStatus, 0, len(s.order))
	for _, name := range s.order {
		j := s.jobs[name]
		status := JobStatus{
			Name:      j.name,
			State:     j.state,
			Interval:  j.interval.String(),
			LastError: j.lastError,
		}
		if j.lastRunAt != nil {
			t := *j.lastRunAt
			status.LastRunAt = &t
		}
		out = append(out, status)
	}
	return out
}

// Start begins interval scheduling. ctx is passed to every job cycle.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()
	s.cron.Start()
}

// Stop halts scheduling and waits for in-flight cycles, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	cronCtx := s.cron.Stop()
	select {
	case <-cronCtx.Done():
	case <-ctx.Done():
		return fmt.Errorf("stop scheduling: %w", ctx.Err())
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for running jobs: %w", ctx.Err())
	}
}
