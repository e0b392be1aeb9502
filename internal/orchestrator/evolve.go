package orchestrator

import (
	"context"
	"fmt"

	"github.com/tgifai/skillhunt/internal/config"
	"github.com/tgifai/skillhunt/internal/memory"
	"github.com/tgifai/skillhunt/internal/pkg/logs"
	"github.com/tgifai/skillhunt/internal/pkg/utils"
)

const maxMutations = 5

// Mutation is a proposed behavior change derived from a failure.
type Mutation struct {
	Type     string `json:"type"`
	Target   string `json:"target"`
	Action   string `json:"action"`
	Priority string `json:"priority"`
}

type EvolveReport struct {
	Failures  int        `json:"failures"`
	Mutations []Mutation `json:"mutations"`
	Applied   []Mutation `json:"applied"`
}

func (r *EvolveReport) Summary() map[string]any {
	return map[string]any{
		"failures":  r.Failures,
		"mutations": len(r.Mutations),
		"applied":   len(r.Applied),
	}
}

func (o *Orchestrator) evolve(ctx context.Context) (Report, error) {
	failures, err := o.recentFailures()
	if err != nil {
		return nil, err
	}

	r := &EvolveReport{Failures: len(failures), Mutations: mutationsFor(failures), Applied: []Mutation{}}
	for _, m := range r.Mutations {
		if len(r.Applied) == maxMutations {
			break
		}
		o.journal.Record(ctx, config.TaskEvolve, fmt.Sprintf("apply mutation: %s - %s", m.Type, m.Action), map[string]any{
			"target":   m.Target,
			"priority": m.Priority,
		})
		r.Applied = append(r.Applied, m)
	}

	logs.CtxInfo(ctx, "[evolve] %d failures, applied %d mutations", r.Failures, len(r.Applied))
	return r, nil
}

// recentFailures merges the last final report, today's journal errors and
// the failures of this process, dropping repeats of the same message.
func (o *Orchestrator) recentFailures() ([]memory.Failure, error) {
	var all []memory.Failure

	report, err := o.store.ReadReport()
	if err != nil {
		return nil, fmt.Errorf("read final report: %w", err)
	}
	if report != nil {
		all = append(all, report.Failures...)
	}

	entries, err := o.journal.Day(o.now())
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	for _, e := range entries {
		if e.Type != memory.EntryError {
			continue
		}
		task, _ := e.Data["task"].(string)
		all = append(all, memory.Failure{Task: task, Message: e.Message, Timestamp: e.Timestamp})
	}

	_, own := o.snapshotRuns()
	all = append(all, own...)

	seen := make(map[string]struct{}, len(all))
	out := make([]memory.Failure, 0, len(all))
	for _, f := range all {
		key := f.Task + "\x00" + f.Message
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, f)
	}
	return out, nil
}

func mutationsFor(failures []memory.Failure) []Mutation {
	out := make([]Mutation, 0, len(failures))
	for _, f := range failures {
		out = append(out, Mutation{
			Type:     "fix_failure",
			Target:   firstNonEmpty(f.Task, "unknown"),
			Action:   "fix " + utils.Truncate80(f.Message),
			Priority: PriorityHigh,
		})
	}
	return out
}
