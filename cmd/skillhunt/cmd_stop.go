package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/tgifai/skillhunt/internal/consts"
	"github.com/tgifai/skillhunt/internal/pkg/utils"
)

var stopHwd = &StopRunner{}

type StopRunner struct{}

func (r *StopRunner) cmd() *cli.Command {
	return &cli.Command{
		Name:   "stop",
		Usage:  "Signal a running orchestrator to stop and write its final report",
		Action: r.run,
	}
}

func (r *StopRunner) run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	pidPath := consts.PIDFilePath()
	pid, err := utils.ReadPIDFile(pidPath)
	if err != nil {
		return err
	}
	if pid == 0 {
		fmt.Println("skillhunt is not running.")
		return nil
	}
	if !utils.IsProcessAlive(ctx, pid) {
		_ = os.Remove(pidPath)
		fmt.Printf("skillhunt is not running (removed stale pid file for %d).\n", pid)
		return nil
	}

	if err = utils.TerminateProcess(ctx, pid); err != nil {
		return fmt.Errorf("signal pid %d: %w", pid, err)
	}
	fmt.Printf("Sent SIGTERM to skillhunt (pid %d), waiting for it to exit...\n", pid)

	// Allow the orchestrator its own stop timeout plus a little slack.
	deadline := time.Now().Add(time.Duration(cfg.Orchestrator.StopTimeoutSec+5) * time.Second)
	for time.Now().Before(deadline) {
		if !utils.IsProcessAlive(ctx, pid) {
			fmt.Println("Stopped.")
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("pid %d still running after %ds", pid, cfg.Orchestrator.StopTimeoutSec+5)
}
