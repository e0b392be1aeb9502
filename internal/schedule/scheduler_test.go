package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tgifai/skillhunt/internal/config"
)

func newTestScheduler(maxConcurrent int) *Scheduler {
	s := NewScheduler(config.OrchestratorConfig{MaxConcurrentRuns: maxConcurrent, JobTimeoutSec: 5})
	s.tick = 5 * time.Millisecond
	return s
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestAdd_Validation(t *testing.T) {
	s := newTestScheduler(1)
	noop := func(context.Context) error { return nil }

	if err := s.Add(Job{Type: Every, Schedule: "1m", Run: noop}); err == nil {
		t.Error("expected error for missing id")
	}
	if err := s.Add(Job{ID: "a", Type: Every, Schedule: "1m"}); err == nil {
		t.Error("expected error for missing run func")
	}
	if err := s.Add(Job{ID: "a", Type: Every, Schedule: "nope", Run: noop}); err == nil {
		t.Error("expected error for bad schedule")
	}
	if err := s.Add(Job{ID: "a", Type: Every, Schedule: "1m", Run: noop}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Add(Job{ID: "a", Type: Every, Schedule: "1m", Run: noop}); err == nil {
		t.Error("expected error for duplicate id")
	}

	jobs := s.Jobs()
	if len(jobs) != 1 || jobs[0].NextRunAt == nil {
		t.Fatalf("unexpected jobs: %+v", jobs)
	}
	if d := time.Until(*jobs[0].NextRunAt); d <= 0 || d > time.Minute {
		t.Errorf("first run should be one period away, got %v", d)
	}
}

func TestAdd_JitterDelaysFirstRun(t *testing.T) {
	s := NewScheduler(config.OrchestratorConfig{JitterSec: 60})
	before := time.Now()
	if err := s.Add(Job{ID: "j", Type: Every, Schedule: "1m", Run: func(context.Context) error { return nil }}); err != nil {
		t.Fatal(err)
	}
	next := *s.Jobs()[0].NextRunAt
	if next.Before(before.Add(time.Minute)) || next.After(time.Now().Add(2*time.Minute)) {
		t.Errorf("next run %v outside [1m, 2m) window", next.Sub(before))
	}
}

func TestTick_SkipsJobStillRunning(t *testing.T) {
	s := newTestScheduler(4)
	release := make(chan struct{})
	var runs atomic.Int32

	past := time.Now().Add(-time.Second)
	err := s.Add(Job{ID: "slow", Type: Every, Schedule: "1ms", NextRunAt: &past, Run: func(ctx context.Context) error {
		runs.Add(1)
		<-release
		return nil
	}})
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	s.tickOnce(ctx, time.Now())
	waitFor(t, func() bool { return runs.Load() == 1 })

	for i := 0; i < 5; i++ {
		s.tickOnce(ctx, time.Now())
	}
	if got := runs.Load(); got != 1 {
		t.Fatalf("overlapping run started: runs=%d", got)
	}

	close(release)
	s.wg.Wait()
	if s.isRunning("slow") {
		t.Error("job should no longer be marked running")
	}
}

func TestTick_RespectsConcurrencyLimit(t *testing.T) {
	s := newTestScheduler(1)
	release := make(chan struct{})
	var runs atomic.Int32
	block := func(ctx context.Context) error {
		runs.Add(1)
		<-release
		return nil
	}

	past := time.Now().Add(-time.Second)
	for _, id := range []string{"a", "b"} {
		p := past
		if err := s.Add(Job{ID: id, Type: Every, Schedule: "1h", NextRunAt: &p, Run: block}); err != nil {
			t.Fatal(err)
		}
	}

	s.tickOnce(context.Background(), time.Now())
	waitFor(t, func() bool { return runs.Load() == 1 })
	time.Sleep(10 * time.Millisecond)
	if got := runs.Load(); got != 1 {
		t.Fatalf("expected one run under limit 1, got %d", got)
	}
	close(release)
	s.wg.Wait()
}

func TestExecuteJob_BackoffCappedAtPeriod(t *testing.T) {
	s := newTestScheduler(1)
	past := time.Now().Add(-time.Second)
	err := s.Add(Job{ID: "flaky", Type: Every, Schedule: "10s", NextRunAt: &past, Run: func(context.Context) error {
		return errors.New("boom")
	}})
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	s.tickOnce(context.Background(), now)
	s.wg.Wait()

	job := s.Jobs()[0]
	if job.ConsecutiveErr != 1 {
		t.Errorf("ConsecutiveErr = %d, want 1", job.ConsecutiveErr)
	}
	if job.LastRunAt != nil {
		t.Error("LastRunAt should only be set on success")
	}
	if got := job.NextRunAt.Sub(now); got != 10*time.Second {
		t.Errorf("backoff = %v, want the 10s period", got)
	}
}

func TestExecuteJob_SuccessResetsErrors(t *testing.T) {
	s := newTestScheduler(1)
	past := time.Now().Add(-time.Second)
	var fail atomic.Bool
	fail.Store(true)
	err := s.Add(Job{ID: "j", Type: Every, Schedule: "1h", NextRunAt: &past, Run: func(context.Context) error {
		if fail.Load() {
			return errors.New("boom")
		}
		return nil
	}})
	if err != nil {
		t.Fatal(err)
	}

	first := time.Now()
	s.tickOnce(context.Background(), first)
	s.wg.Wait()
	if got := s.Jobs()[0].NextRunAt.Sub(first); got != 30*time.Second {
		t.Fatalf("first backoff = %v, want 30s", got)
	}

	fail.Store(false)
	second := first.Add(time.Minute)
	s.tickOnce(context.Background(), second)
	s.wg.Wait()

	job := s.Jobs()[0]
	if job.ConsecutiveErr != 0 || job.LastRunAt == nil || !job.LastRunAt.Equal(second) {
		t.Errorf("unexpected state after success: %+v", job)
	}
	if !job.NextRunAt.Equal(second.Add(time.Hour)) {
		t.Errorf("next run = %v, want one period after %v", job.NextRunAt, second)
	}
}

func TestExecuteJob_Timeout(t *testing.T) {
	s := newTestScheduler(1)
	past := time.Now().Add(-time.Second)
	got := make(chan error, 1)
	err := s.Add(Job{ID: "t", Type: Every, Schedule: "1h", Timeout: 20 * time.Millisecond, NextRunAt: &past, Run: func(ctx context.Context) error {
		<-ctx.Done()
		got <- ctx.Err()
		return ctx.Err()
	}})
	if err != nil {
		t.Fatal(err)
	}

	s.tickOnce(context.Background(), time.Now())
	select {
	case err := <-got:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("got %v, want deadline exceeded", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("job was not timed out")
	}
	s.wg.Wait()
}

func TestStartStop_CancelsInFlightRuns(t *testing.T) {
	s := newTestScheduler(2)
	started := make(chan struct{})
	var cancelled atomic.Bool
	past := time.Now().Add(-time.Second)
	err := s.Add(Job{ID: "long", Type: Every, Schedule: "1h", NextRunAt: &past, Run: func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		cancelled.Store(true)
		return ctx.Err()
	}})
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(context.Background()); !errors.Is(err, ErrStarted) {
		t.Errorf("second Start = %v, want ErrStarted", err)
	}

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("job never fired")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !cancelled.Load() {
		t.Error("in-flight run should observe cancellation before Stop returns")
	}
}

func TestStop_GivesUpAtDeadline(t *testing.T) {
	s := newTestScheduler(1)
	release := make(chan struct{})
	defer close(release)
	started := make(chan struct{})
	past := time.Now().Add(-time.Second)
	err := s.Add(Job{ID: "stubborn", Type: Every, Schedule: "1h", NextRunAt: &past, Run: func(context.Context) error {
		close(started)
		<-release
		return nil
	}})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Stop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Stop = %v, want deadline exceeded", err)
	}
}
