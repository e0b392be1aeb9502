package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/tgifai/skillhunt"
	"github.com/tgifai/skillhunt/internal/pkg/logs"
)

func main() {
	cmd := &cli.Command{
		Name:    "skillhunt",
		Usage:   "Discover, install and keep healthy the skills of a personal agent",
		Version: skillhunt.VERSION,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the config file (default ~/.skillhunt/config.yaml)",
			},
		},
		Commands: append([]*cli.Command{
			startHwd.cmd(),
			stopHwd.cmd(),
			statusHwd.cmd(),
			skillsHwd.cmd(),
			configHwd.cmd(),
			updateHwd.cmd(),
		}, taskHwd.cmds()...),
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logs.Error("Command execution failed: %v", err)
		os.Exit(1)
	}
}
