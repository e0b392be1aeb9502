package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/tgifai/skillhunt/internal/pkg/logs"
	"github.com/tgifai/skillhunt/internal/pkg/shell"
	"github.com/tgifai/skillhunt/internal/pkg/utils"
)

// Recovery action names, as used in the health.actions config map.
const (
	ActionCompaction     = "compaction"
	ActionClearTemp      = "clear_temp"
	ActionCleanupLogs    = "cleanup_logs"
	ActionRestartGateway = "restart_gateway"
)

const staleTempAge = time.Hour

var errNoCommand = errors.New("no command configured")

type ActionResult struct {
	Action  string   `json:"action"`
	Issue   string   `json:"issue"`
	Command string   `json:"command,omitempty"`
	Builtin bool     `json:"builtin,omitempty"`
	Skipped bool     `json:"skipped,omitempty"`
	OK      bool     `json:"ok"`
	Output  string   `json:"output,omitempty"`
	Removed []string `json:"removed,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// heal runs the recovery action mapped to each issue, once per action.
// Failures are collected for one log line and never fail the health task.
func (o *Orchestrator) heal(ctx context.Context, issues []Issue) []ActionResult {
	var (
		results []ActionResult
		errs    *multierror.Error
		done    = make(map[string]bool, len(recoveryActions))
	)
	for _, is := range issues {
		action, ok := recoveryActions[is.Kind]
		if !ok || done[action] {
			continue
		}
		done[action] = true

		res := o.runAction(ctx, action)
		res.Issue = is.Kind
		if res.Error != "" && !res.Skipped {
			errs = multierror.Append(errs, fmt.Errorf("%s: %s", action, res.Error))
		}
		o.journal.Record(ctx, "action", "recovery action "+action, map[string]any{
			"issue":   is.Kind,
			"ok":      res.OK,
			"skipped": res.Skipped,
		})
		results = append(results, res)
	}

	if err := errs.ErrorOrNil(); err != nil {
		logs.CtxWarn(ctx, "[health] recovery actions failed: %v", err)
	}
	return results
}

// runAction prefers the configured command and falls back to the built-in
// behavior. Actions with neither are reported as skipped.
func (o *Orchestrator) runAction(ctx context.Context, action string) ActionResult {
	res := ActionResult{Action: action}

	if line := o.cfg.Health.Actions[action]; line != "" {
		res.Command = line
		timeout := time.Duration(o.cfg.Health.ActionTimeoutSec) * time.Second
		out, err := shell.Run(ctx, shell.Line(line), timeout)
		if out != nil {
			res.Output = utils.Truncate(firstNonEmpty(out.Stdout, out.Stderr), 500)
		}
		if err != nil {
			res.Error = err.Error()
			return res
		}
		res.OK = true
		logs.CtxInfo(ctx, "[health] action %s ran: %s", action, line)
		return res
	}

	res.Builtin = true
	var err error
	switch action {
	case ActionClearTemp:
		res.Removed, err = o.store.ClearStaleTemp(staleTempAge)
	case ActionCleanupLogs:
		res.Removed, err = o.pruneJournal()
	default:
		res.Builtin = false
		res.Skipped = true
		err = errNoCommand
	}
	if err != nil {
		res.Error = err.Error()
		if res.Skipped {
			logs.CtxInfo(ctx, "[health] action %s skipped: %v", action, err)
		}
		return res
	}
	res.OK = true
	logs.CtxInfo(ctx, "[health] action %s removed %d files", action, len(res.Removed))
	return res
}

func (o *Orchestrator) pruneJournal() ([]string, error) {
	days := o.cfg.Health.LogRetentionDays
	return o.store.PruneJournal(o.now().AddDate(0, 0, -days))
}
