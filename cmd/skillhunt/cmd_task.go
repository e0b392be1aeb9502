package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/tgifai/skillhunt/internal/config"
	"github.com/tgifai/skillhunt/internal/orchestrator"
)

var taskHwd = &TaskRunner{}

type TaskRunner struct{}

var taskUsage = map[string]string{
	config.TaskHealth:    "Check host gauges, gateway, platforms and installed skills; run recovery actions",
	config.TaskLearn:     "Scan all platforms, score candidates and install the needed ones",
	config.TaskEvolve:    "Derive and apply mutations from recent failures",
	config.TaskTask:      "Execute the highest-priority ready tasks from the pending queue",
	config.TaskQA:        "Verify the descriptors of every installed skill",
	config.TaskProactive: "Detect capability gaps and queue work for them",
}

// cmds returns one run-once command per periodic task.
func (r *TaskRunner) cmds() []*cli.Command {
	out := make([]*cli.Command, 0, len(config.TaskNames))
	for _, kind := range config.TaskNames {
		out = append(out, &cli.Command{
			Name:  kind,
			Usage: taskUsage[kind],
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return r.run(ctx, cmd, kind)
			},
		})
	}
	return out
}

func (r *TaskRunner) run(ctx context.Context, cmd *cli.Command, kind string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	o, err := orchestrator.New(cfg)
	if err != nil {
		return err
	}

	res, runErr := o.Run(ctx, kind)
	if res != nil {
		if err := printJSON(res); err != nil {
			return err
		}
	}
	if runErr != nil {
		return fmt.Errorf("%s: %w", kind, runErr)
	}
	return nil
}
