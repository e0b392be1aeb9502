package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/tgifai/skillhunt/internal/memory"
	"github.com/tgifai/skillhunt/internal/pkg/utils"
)

var statusHwd = &StatusRunner{}

type StatusRunner struct{}

type statusOutput struct {
	Running bool           `json:"running"`
	Status  *memory.Status `json:"status,omitempty"`
	Report  *memory.Report `json:"last_report,omitempty"`
}

func (r *StatusRunner) cmd() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show the live status snapshot, or the last final report when stopped",
		Action: r.run,
	}
}

func (r *StatusRunner) run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := memory.NewStore(cfg.Workspace)
	if err != nil {
		return err
	}

	st, err := store.ReadStatus()
	if err != nil {
		return fmt.Errorf("read status: %w", err)
	}
	out := statusOutput{Status: st}
	if st != nil && st.Running {
		// A crashed loop leaves running=true behind; trust the pid instead.
		out.Running = utils.IsProcessAlive(ctx, st.PID)
		st.Running = out.Running
	}
	if !out.Running {
		if out.Report, err = store.ReadReport(); err != nil {
			return fmt.Errorf("read final report: %w", err)
		}
	}
	return printJSON(out)
}
