package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// interval fires a fixed duration after the previous run. Unlike
// cron.ConstantDelaySchedule it keeps sub-second precision.
type interval time.Duration

func (d interval) Next(t time.Time) time.Time {
	return t.Add(time.Duration(d))
}

// Parse turns a task schedule from config into a cron.Schedule: a Go
// duration for Every, a 5-field expression for Cron.
func Parse(typ Type, spec string) (cron.Schedule, error) {
	switch typ {
	case Every:
		d, err := time.ParseDuration(spec)
		if err != nil {
			return nil, fmt.Errorf("parse every duration %q: %w", spec, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("every duration must be positive, got %v", d)
		}
		return interval(d), nil
	case Cron:
		sched, err := cronParser.Parse(spec)
		if err != nil {
			return nil, fmt.Errorf("parse cron expression %q: %w", spec, err)
		}
		return sched, nil
	default:
		return nil, fmt.Errorf("unknown schedule type: %q", typ)
	}
}

// period is the distance between two consecutive regular runs after from.
// For cron schedules with uneven gaps it is the next gap.
func period(sched cron.Schedule, from time.Time) time.Duration {
	if d, ok := sched.(interval); ok {
		return time.Duration(d)
	}
	first := sched.Next(from)
	if first.IsZero() {
		return 0
	}
	return sched.Next(first).Sub(first)
}

// backoffSteps are the retry delays after consecutive failures.
var backoffSteps = []time.Duration{
	30 * time.Second,
	1 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	60 * time.Minute,
}

// backoffDelay never exceeds limit when limit is positive: a failing job is
// retried no later than its next regular run would have been.
func backoffDelay(consecutiveErr int, limit time.Duration) time.Duration {
	idx := min(max(consecutiveErr-1, 0), len(backoffSteps)-1)
	d := backoffSteps[idx]
	if limit > 0 && d > limit {
		return limit
	}
	return d
}
