package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tgifai/skillhunt/internal/config"
	"github.com/tgifai/skillhunt/internal/pkg/logs"
	"github.com/tgifai/skillhunt/internal/pkg/utils"
)

var ErrStarted = errors.New("scheduler already started")

// Scheduler fires in-memory jobs on their own schedules. Nothing is
// persisted: a restarted process begins a fresh period for every job.
type Scheduler struct {
	tick       time.Duration
	jobTimeout time.Duration
	jitter     time.Duration
	concurrent chan struct{} // semaphore sized to MaxConcurrentRuns

	mu   sync.RWMutex
	jobs map[string]*Job

	runningMu sync.Mutex
	running   map[string]struct{} // job IDs currently executing (singleton guard)

	startMu sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewScheduler(cfg config.OrchestratorConfig) *Scheduler {
	maxConcurrent := cfg.MaxConcurrentRuns
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	tick := time.Duration(cfg.TickSec) * time.Second
	if tick <= 0 {
		tick = 15 * time.Second
	}
	timeout := time.Duration(cfg.JobTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 300 * time.Second
	}

	return &Scheduler{
		tick:       tick,
		jobTimeout: timeout,
		jitter:     time.Duration(cfg.JitterSec) * time.Second,
		concurrent: make(chan struct{}, maxConcurrent),
		jobs:       make(map[string]*Job),
		running:    make(map[string]struct{}),
	}
}

// Start begins the scheduling loop. A scheduler can be started once.
func (s *Scheduler) Start(ctx context.Context) error {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	if s.started {
		return ErrStarted
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx)
	}()

	logs.CtxInfo(ctx, "[schedule] scheduler started (jobs=%d, max_concurrent=%d)", s.Len(), cap(s.concurrent))
	return nil
}

// Stop cancels the scheduling loop and in-flight runs, then waits for them
// to return. It gives up when ctx expires and returns ctx's error.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.startMu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.startMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logs.CtxInfo(ctx, "[schedule] scheduler stopped")
		return nil
	case <-ctx.Done():
		logs.CtxWarn(ctx, "[schedule] stop timed out waiting for running jobs")
		return ctx.Err()
	}
}

// Add registers a job. The first run is one period (plus jitter) from now.
func (s *Scheduler) Add(job Job) error {
	if job.ID == "" {
		return errors.New("job id is required")
	}
	if job.Run == nil {
		return fmt.Errorf("job %s: run func is required", job.ID)
	}
	sched, err := Parse(job.Type, job.Schedule)
	if err != nil {
		return fmt.Errorf("job %s: %w", job.ID, err)
	}
	job.sched = sched
	if job.NextRunAt == nil {
		next := sched.Next(time.Now()).Add(utils.RandDuration(s.jitter))
		job.NextRunAt = &next
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job already exists: %s", job.ID)
	}
	s.jobs[job.ID] = &job
	return nil
}

// Jobs returns a snapshot of all jobs ordered by ID.
func (s *Scheduler) Jobs() []Job {
	s.mu.RLock()
	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}

func (s *Scheduler) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// ---------------------------------------------------------------------------
// internal
// ---------------------------------------------------------------------------

func (s *Scheduler) loop(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tickOnce(ctx, time.Now())
		}
	}
}

func (s *Scheduler) listDue(now time.Time) []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var due []Job
	for _, j := range s.jobs {
		if j.NextRunAt != nil && !j.NextRunAt.After(now) {
			due = append(due, *j)
		}
	}
	sort.Slice(due, func(i, k int) bool { return due[i].NextRunAt.Before(*due[k].NextRunAt) })
	return due
}

func (s *Scheduler) tickOnce(ctx context.Context, now time.Time) {
	for _, job := range s.listDue(now) {
		if !s.tryAcquire() {
			break // hit concurrency limit, try next tick
		}
		if s.isRunning(job.ID) {
			s.release()
			continue // singleton: skip if still executing
		}

		s.markRunning(job.ID)
		j := job
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.release()
			defer s.markNotRunning(j.ID)
			s.executeJob(ctx, j, now)
		}()
	}
}

func (s *Scheduler) executeJob(ctx context.Context, job Job, now time.Time) {
	timeout := job.Timeout
	if timeout <= 0 {
		timeout = s.jobTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := job.Run(ctx); err != nil {
		logs.CtxWarn(ctx, "[schedule] job %s failed: %v", job.ID, err)
		job.ConsecutiveErr++
		s.rescheduleWithBackoff(&job, now)
		return
	}

	logs.CtxDebug(ctx, "[schedule] job %s done", job.ID)
	job.LastRunAt = &now
	job.ConsecutiveErr = 0
	s.reschedule(&job, now)
}

func (s *Scheduler) reschedule(job *Job, from time.Time) {
	next := job.sched.Next(from)
	if next.IsZero() {
		logs.Warn("[schedule] job %s has no future run, dropping", job.ID)
		job.NextRunAt = nil
	} else {
		job.NextRunAt = &next
	}
	s.update(job)
}

func (s *Scheduler) rescheduleWithBackoff(job *Job, from time.Time) {
	delay := backoffDelay(job.ConsecutiveErr, period(job.sched, from))
	next := from.Add(delay)
	job.NextRunAt = &next
	logs.Warn("[schedule] job %s backoff %v (errors=%d)", job.ID, delay, job.ConsecutiveErr)
	s.update(job)
}

func (s *Scheduler) update(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; ok {
		s.jobs[job.ID] = job
	}
}

// concurrency helpers

func (s *Scheduler) tryAcquire() bool {
	select {
	case s.concurrent <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Scheduler) release() {
	<-s.concurrent
}

func (s *Scheduler) isRunning(jobID string) bool {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()
	_, ok := s.running[jobID]
	return ok
}

func (s *Scheduler) markRunning(jobID string) {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()
	s.running[jobID] = struct{}{}
}

func (s *Scheduler) markNotRunning(jobID string) {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()
	delete(s.running, jobID)
}
