package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/tgifai/skillhunt"
	"github.com/tgifai/skillhunt/internal/consts"
	"github.com/tgifai/skillhunt/internal/pkg/updater"
	"github.com/tgifai/skillhunt/internal/pkg/utils"
)

var updateHwd = &UpdateRunner{}

type UpdateRunner struct{}

func (r *UpdateRunner) cmd() *cli.Command {
	return &cli.Command{
		Name:  "update",
		Usage: "Check for and apply a newer skillhunt release",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "Install without asking",
			},
		},
		Action: r.run,
	}
}

func (r *UpdateRunner) run(ctx context.Context, cmd *cli.Command) error {
	fmt.Printf("skillhunt %s\n", skillhunt.VERSION)
	fmt.Println("Checking for updates...")

	u := updater.New()
	release, err := u.CheckLatest(ctx)
	if errors.Is(err, updater.ErrUnknownVersion) {
		fmt.Println("This is a development build; updates are disabled.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("check for updates: %w", err)
	}
	if release == nil {
		fmt.Println("Already up to date.")
		return nil
	}

	fmt.Printf("New version available: %s\n", release.TagName)
	if !cmd.Bool("yes") {
		fmt.Print("Download and install? [y/N] ")
		var answer string
		_, _ = fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("Update cancelled.")
			return nil
		}
	}

	tmpDir, err := os.MkdirTemp("", "skillhunt-update-*")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	fmt.Println("Downloading...")
	binary, err := u.Download(ctx, release, tmpDir)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	fmt.Println("Applying update...")
	if err := u.Apply(binary); err != nil {
		return fmt.Errorf("apply update: %w", err)
	}
	fmt.Printf("Successfully updated to %s!\n", release.TagName)

	if pid, _ := utils.ReadPIDFile(consts.PIDFilePath()); pid > 0 && utils.IsProcessAlive(ctx, pid) {
		fmt.Printf("\nNote: the orchestrator is running (pid %d). Restart it to use the new version.\n", pid)
	}
	return nil
}
