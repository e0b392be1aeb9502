package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/tgifai/skillhunt/internal/config"
	"github.com/tgifai/skillhunt/internal/consts"
	"github.com/tgifai/skillhunt/internal/pkg/logs"
)

const maxImprovements = 3

type QAFailure struct {
	Skill       string   `json:"skill"`
	Problems    []string `json:"problems"`
	Suggestions []string `json:"suggestions"`
}

type QAReport struct {
	Checked  int         `json:"checked"`
	Passed   int         `json:"passed"`
	Failed   int         `json:"failed"`
	Failures []QAFailure `json:"failures"`
	Applied  []string    `json:"applied"`
}

func (r *QAReport) Summary() map[string]any {
	return map[string]any{
		"checked": r.Checked,
		"passed":  r.Passed,
		"failed":  r.Failed,
	}
}

// qa verifies that every installed skill has a parsable manifest and
// SKILL.md and suggests a fix for each defect found.
func (o *Orchestrator) qa(ctx context.Context) (Report, error) {
	if err := o.registry.Load(ctx); err != nil {
		return nil, fmt.Errorf("load skills: %w", err)
	}

	r := &QAReport{Failures: []QAFailure{}, Applied: []string{}}
	for _, s := range o.registry.List() {
		r.Checked++
		if s.Healthy() {
			r.Passed++
			continue
		}
		r.Failed++
		f := QAFailure{Skill: s.Name, Problems: s.Problems}
		for _, p := range s.Problems {
			f.Suggestions = append(f.Suggestions, suggestionFor(p))
		}
		r.Failures = append(r.Failures, f)
	}

	for _, f := range r.Failures {
		for _, sug := range f.Suggestions {
			if len(r.Applied) == maxImprovements {
				break
			}
			o.journal.Record(ctx, config.TaskQA, "apply improvement: "+sug, map[string]any{"skill": f.Skill})
			r.Applied = append(r.Applied, f.Skill+": "+sug)
		}
	}

	logs.CtxInfo(ctx, "[qa] checked %d skills: %d passed, %d failed", r.Checked, r.Passed, r.Failed)
	return r, nil
}

func suggestionFor(problem string) string {
	switch {
	case strings.HasPrefix(problem, consts.SkillDocFileName):
		return fmt.Sprintf("regenerate %s with a YAML frontmatter holding name and description", consts.SkillDocFileName)
	case strings.HasPrefix(problem, consts.ManifestFileName):
		return fmt.Sprintf("rewrite %s as JSON with at least name and version", consts.ManifestFileName)
	default:
		return "reinstall the skill"
	}
}
