package logs

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/tgifai/skillhunt/internal/consts"
)

// WithTask tags ctx with a task name and a fresh log id, so every line a task
// run emits can be grepped out of a shared log.
func WithTask(ctx context.Context, task string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, consts.CtxKeyTask, task)
	return SetLogID(ctx, NewLogID())
}

// TaskFrom returns the task name stored by WithTask, if any.
func TaskFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	task, _ := ctx.Value(consts.CtxKeyTask).(string)
	return task
}

// ctxFieldsHook copies the log id and task name into entry fields. The line
// formatter reads them from the context itself; the JSON formatter only sees
// fields.
type ctxFieldsHook struct{}

func (ctxFieldsHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (ctxFieldsHook) Fire(entry *logrus.Entry) error {
	if entry.Context == nil {
		return nil
	}
	if id, _ := entry.Context.Value(consts.CtxKeyLogID).(string); id != "" {
		entry.Data["log_id"] = id
	}
	if task, _ := entry.Context.Value(consts.CtxKeyTask).(string); task != "" {
		entry.Data["task"] = task
	}
	return nil
}
