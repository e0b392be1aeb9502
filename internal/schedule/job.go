package schedule

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
)

// Type defines how a job's execution time is determined.
type Type string

const (
	// Every runs at a fixed interval (Go duration string, e.g. "30m", "4h").
	Every Type = "every"
	// Cron uses a standard 5-field cron expression.
	Cron Type = "cron"
)

// RunFunc is the body of a job. The context is cancelled on Stop or when
// the per-run timeout expires.
type RunFunc func(ctx context.Context) error

// Job describes a single scheduled unit of work.
type Job struct {
	ID       string
	Type     Type
	Schedule string // "30m" | "0 */4 * * *"
	Run      RunFunc
	// Timeout overrides the scheduler's per-run timeout when positive.
	Timeout time.Duration

	LastRunAt      *time.Time
	NextRunAt      *time.Time
	ConsecutiveErr int

	// parsed once by Add
	sched cron.Schedule
}
