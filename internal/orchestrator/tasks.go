package orchestrator

import (
	"context"
	"fmt"
	"sort"

	"github.com/tgifai/skillhunt/internal/config"
	"github.com/tgifai/skillhunt/internal/memory"
	"github.com/tgifai/skillhunt/internal/pkg/logs"
)

const maxTasksPerRun = 3

type TaskReport struct {
	Ready    int                  `json:"ready"`
	Executed []memory.PendingTask `json:"executed"`
}

func (r *TaskReport) Summary() map[string]any {
	return map[string]any{
		"ready":    r.Ready,
		"executed": len(r.Executed),
	}
}

// processTasks executes the highest-priority ready tasks from the pending
// queue and marks them done.
func (o *Orchestrator) processTasks(ctx context.Context) (Report, error) {
	r := &TaskReport{Executed: []memory.PendingTask{}}
	err := o.store.UpdatePendingTasks(func(tasks []memory.PendingTask) bool {
		var ready []int
		for i, t := range tasks {
			if t.Status == memory.TaskStatusReady {
				ready = append(ready, i)
			}
		}
		sort.SliceStable(ready, func(a, b int) bool { return tasks[ready[a]].Priority > tasks[ready[b]].Priority })

		r.Ready = len(ready)
		for _, i := range ready {
			if len(r.Executed) == maxTasksPerRun || ctx.Err() != nil {
				break
			}
			t := &tasks[i]
			o.journal.Record(ctx, config.TaskTask, "execute task: "+firstNonEmpty(t.Title, t.ID), map[string]any{
				"id":       t.ID,
				"priority": t.Priority,
			})
			done := o.now()
			t.Status = memory.TaskStatusDone
			t.CompletedAt = &done
			r.Executed = append(r.Executed, *t)
		}
		return len(r.Executed) > 0
	})
	if err != nil {
		return r, fmt.Errorf("update pending tasks: %w", err)
	}
	logs.CtxInfo(ctx, "[task] %d ready, executed %d", r.Ready, len(r.Executed))
	return r, nil
}
