package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/tgifai/skillhunt/internal/config"
)

var configHwd = &ConfigRunner{}

type ConfigRunner struct{}

func (r *ConfigRunner) cmd() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage the config file",
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write a config file with every default filled in",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Replace an existing file (a backup is kept)",
					},
				},
				Action: r.init,
			},
			{
				Name:   "show",
				Usage:  "Print the effective config (defaults applied) and its hash",
				Action: r.show,
			},
		},
	}
}

func (r *ConfigRunner) init(_ context.Context, cmd *cli.Command) error {
	if _, err := config.WriteDefault(cmd.String("config"), cmd.Bool("force")); err != nil {
		if errors.Is(err, config.ErrConfigExists) {
			color.New(color.FgYellow).Printf("%v\nUse --force to replace it.\n", err)
			return nil
		}
		return fmt.Errorf("write config: %w", err)
	}

	color.New(color.FgGreen).Printf("Config written to %s\n", config.Path())
	fmt.Println("Platform tokens are read from the environment variables named by each platform's token_env.")
	return nil
}

func (r *ConfigRunner) show(_ context.Context, cmd *cli.Command) error {
	if _, err := config.Load(cmd.String("config")); err != nil {
		return fmt.Errorf("loading config error: %w", err)
	}
	cfg, err := config.Get()
	if err != nil {
		return err
	}
	hash, err := config.Hash()
	if err != nil {
		return err
	}

	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	color.New(color.FgHiBlack).Printf("# %s\n# sha256 %s\n", config.Path(), hash)
	fmt.Print(string(raw))
	return nil
}
