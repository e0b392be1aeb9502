package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/tgifai/skillhunt/internal/skill"
)

var skillsHwd = &SkillsRunner{}

type SkillsRunner struct{}

var (
	cOK  = color.New(color.FgGreen)
	cBad = color.New(color.FgRed)
	cDim = color.New(color.FgHiBlack)
)

func (r *SkillsRunner) cmd() *cli.Command {
	return &cli.Command{
		Name:  "skills",
		Usage: "Inspect installed skills",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List the skills under the skills root",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print JSON instead of a table",
					},
				},
				Action: r.list,
			},
		},
	}
}

func (r *SkillsRunner) list(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	reg := skill.NewRegistry(cfg.Installer.SkillsRoot)
	if err = reg.Load(ctx); err != nil {
		return err
	}

	skills := reg.List()
	if cmd.Bool("json") {
		return printJSON(skills)
	}
	if len(skills) == 0 {
		fmt.Printf("No skills installed under %s\n", reg.Root())
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSOURCE\tAUTO\tSTATUS\tDESCRIPTION")
	for _, s := range skills {
		status := cOK.Sprint("ok")
		if !s.Healthy() {
			status = cBad.Sprint(strings.Join(s.Problems, "; "))
		}
		fmt.Fprintf(w, "%s\t%s\t%v\t%s\t%s\n", s.Name, s.Source, s.AutoInstalled, status, truncateDesc(s.Description))
	}
	if err = w.Flush(); err != nil {
		return err
	}
	cDim.Printf("%d skills in %s\n", len(skills), reg.Root())
	return nil
}

func truncateDesc(s string) string {
	const max = 60
	r := []rune(strings.TrimSpace(s))
	if len(r) <= max {
		return string(r)
	}
	return string(r[:max-3]) + "..."
}
