package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/tgifai/skillhunt/internal/consts"
	"github.com/tgifai/skillhunt/internal/orchestrator"
	"github.com/tgifai/skillhunt/internal/pkg/logs"
	"github.com/tgifai/skillhunt/internal/pkg/utils"
)

var startHwd = &StartRunner{}

type StartRunner struct{}

func (r *StartRunner) cmd() *cli.Command {
	return &cli.Command{
		Name:   "start",
		Usage:  "Run the orchestrator loop in the foreground until SIGINT or SIGTERM",
		Action: r.run,
	}
}

func (r *StartRunner) run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	pidPath := consts.PIDFilePath()
	if pid, _ := utils.ReadPIDFile(pidPath); pid > 0 && pid != os.Getpid() && utils.IsProcessAlive(ctx, pid) {
		return fmt.Errorf("skillhunt is already running (pid %d)", pid)
	}
	if err = utils.WritePIDFile(pidPath, os.Getpid()); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	ctx = logs.SetLogID(ctx, logs.NewLogID())
	logs.CtxInfo(ctx, "booting skillhunt, workspace %s, skills root %s", cfg.Workspace, cfg.Installer.SkillsRoot)

	// Registered before Start so a slow boot can still be interrupted.
	sigCtx, stopSignals := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	o, err := orchestrator.New(cfg)
	if err != nil {
		return err
	}
	if err = o.Start(sigCtx); err != nil {
		return fmt.Errorf("start orchestrator: %w", err)
	}

	logs.CtxInfo(ctx, "ALL IS WELL!!! Press Ctrl+C to stop.")

	<-sigCtx.Done()
	stopSignals()
	if ctx.Err() != nil {
		logs.CtxInfo(ctx, "Context canceled. Stopping orchestrator...")
	} else {
		logs.CtxInfo(ctx, "Received shutdown signal. Stopping orchestrator...")
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Duration(cfg.Orchestrator.StopTimeoutSec)*time.Second)
	defer cancel()
	if err = o.Stop(stopCtx); err != nil {
		logs.CtxError(ctx, "stop orchestrator error: %v", err)
	}

	logs.CtxInfo(ctx, "all stopped, good bye!")
	logs.Flush()
	return nil
}
