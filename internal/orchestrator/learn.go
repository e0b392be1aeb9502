package orchestrator

import (
	"context"
	"fmt"
	"sort"

	"github.com/tgifai/skillhunt/internal/config"
	"github.com/tgifai/skillhunt/internal/memory"
	"github.com/tgifai/skillhunt/internal/pkg/logs"
	"github.com/tgifai/skillhunt/internal/pkg/prometheus"
	"github.com/tgifai/skillhunt/internal/pkg/utils"
	"github.com/tgifai/skillhunt/internal/skill"
)

type LearnReport struct {
	RunID      string                `json:"run_id"`
	Discovered int                   `json:"discovered"`
	Candidates int                   `json:"candidates"`
	Needed     int                   `json:"needed"`
	Installs   []skill.InstallResult `json:"installs"`
	Installed  []string              `json:"installed"`
}

func (r *LearnReport) Summary() map[string]any {
	return map[string]any{
		"discovered": r.Discovered,
		"candidates": r.Candidates,
		"needed":     r.Needed,
		"installed":  len(r.Installed),
	}
}

// learn scans every platform, scores from each candidate's prior, keeps
// those above the floor in descending score order, installs the top needed
// ones and logs every scored candidate.
func (o *Orchestrator) learn(ctx context.Context) (Report, error) {
	lc := o.cfg.Learning
	r := &LearnReport{RunID: logs.GetLogID(ctx), Installs: []skill.InstallResult{}, Installed: []string{}}

	found := o.aggregator.ScanAll(ctx)
	r.Discovered = len(found)

	scored := make([]skill.Candidate, 0, len(found))
	for _, c := range found {
		scored = append(scored, o.scorer.Score(c))
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].QualityScore > scored[j].QualityScore })

	records := make([]memory.Discovery, len(scored))
	var picks []int
	for i, c := range scored {
		records[i] = memory.Discovery{Candidate: c, RunID: r.RunID}
		if c.QualityScore <= lc.ScoreFloor {
			continue
		}
		r.Candidates++
		if !o.filter.IsNeeded(c) {
			continue
		}
		records[i].Needed = true
		r.Needed++
		if len(picks) < lc.TopK {
			picks = append(picks, i)
		}
	}

	var notes []memory.Note
	for _, i := range picks {
		if err := ctx.Err(); err != nil {
			logs.CtxWarn(ctx, "[learn] stopping before %d remaining installs: %v", len(picks)-len(r.Installs), err)
			break
		}
		c := scored[i]
		res := o.installer.Install(ctx, c)
		r.Installs = append(r.Installs, res)
		if !res.Installed {
			continue
		}
		records[i].AutoInstalled = true
		records[i].InstallName = res.Name
		r.Installed = append(r.Installed, res.Name)
		prometheus.SkillsInstalled.Inc()
		notes = append(notes, memory.Note{
			Title:        c.Title,
			Name:         res.Name,
			Source:       c.Source,
			QualityScore: c.QualityScore,
			URL:          c.URL,
			Repo:         res.Source.Repo,
			InstalledAt:  o.now(),
		})
		logs.CtxInfo(ctx, "[learn] auto-installed [%.0f%%] %s", c.QualityScore*100, utils.Truncate(c.Title, 40))
	}

	if err := o.store.AppendDiscoveries(records); err != nil {
		return r, fmt.Errorf("append discovery log: %w", err)
	}
	if err := o.store.AppendNotes(notes); err != nil {
		return r, fmt.Errorf("append notes: %w", err)
	}

	o.journal.Record(ctx, config.TaskLearn, fmt.Sprintf("learning done: %d installed", len(r.Installed)), r.Summary())
	logs.CtxInfo(ctx, "[learn] %d discovered, %d above floor, %d needed, %d installed",
		r.Discovered, r.Candidates, r.Needed, len(r.Installed))
	return r, nil
}
