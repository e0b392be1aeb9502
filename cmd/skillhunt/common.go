package main

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/urfave/cli/v3"

	"github.com/tgifai/skillhunt/internal/config"
	"github.com/tgifai/skillhunt/internal/pkg/logs"
)

// loadConfig reads the --config file (or the default path) and applies its
// logging section.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("loading config error: %w", err)
	}
	if err = initLogger(cfg.Logging); err != nil {
		return nil, fmt.Errorf("init logger error: %w", err)
	}
	return cfg, nil
}

func initLogger(cfg config.LoggingConfig) error {
	return logs.Init(logs.Options{
		Level:      cfg.Level,
		Format:     cfg.Format,
		Output:     cfg.Output,
		File:       cfg.File,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	})
}

func printJSON(v any) error {
	raw, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	fmt.Println(string(raw))
	return nil
}
