package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tgifai/skillhunt/internal/config"
	"github.com/tgifai/skillhunt/internal/memory"
	"github.com/tgifai/skillhunt/internal/pkg/logs"
)

const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

const maxOpportunities = 2

var priorityOrder = map[string]int{PriorityHigh: 0, PriorityMedium: 1, PriorityLow: 2}

type Opportunity struct {
	Type        string `json:"type"`
	Target      string `json:"target"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

type ProactiveReport struct {
	Gaps          []string      `json:"gaps"`
	Opportunities []Opportunity `json:"opportunities"`
	Executed      []Opportunity `json:"executed"`
}

func (r *ProactiveReport) Summary() map[string]any {
	return map[string]any{
		"gaps":          len(r.Gaps),
		"opportunities": len(r.Opportunities),
		"executed":      len(r.Executed),
	}
}

// proactive looks for wanted capabilities no installed skill provides and
// queues a pending task for the most important ones.
func (o *Orchestrator) proactive(ctx context.Context) (Report, error) {
	if err := o.registry.Load(ctx); err != nil {
		return nil, fmt.Errorf("load skills: %w", err)
	}

	r := &ProactiveReport{Gaps: o.capabilityGaps(), Opportunities: []Opportunity{}, Executed: []Opportunity{}}
	for _, g := range r.Gaps {
		r.Opportunities = append(r.Opportunities, Opportunity{
			Type:        "gap",
			Target:      g,
			Description: "no installed skill provides " + g,
			Priority:    PriorityHigh,
		})
	}

	skills := o.registry.List()
	for _, s := range skills {
		if !s.Healthy() {
			r.Opportunities = append(r.Opportunities, Opportunity{
				Type:        "repair",
				Target:      s.Name,
				Description: "skill " + s.Name + " has broken descriptors",
				Priority:    PriorityMedium,
			})
		}
	}
	sort.SliceStable(r.Opportunities, func(i, j int) bool {
		return priorityOrder[r.Opportunities[i].Priority] < priorityOrder[r.Opportunities[j].Priority]
	})

	for _, opp := range r.Opportunities {
		if opp.Priority != PriorityHigh || len(r.Executed) == maxOpportunities {
			break
		}
		id := opp.Type + ":" + opp.Target
		added, err := o.store.QueuePendingTask(memory.PendingTask{
			ID:       id,
			Title:    "find a skill for " + opp.Target,
			Priority: 10,
			Data:     map[string]any{"source": config.TaskProactive},
		})
		if err != nil {
			return r, fmt.Errorf("queue %s: %w", id, err)
		}
		o.journal.Record(ctx, config.TaskProactive, "execute opportunity: "+opp.Description, map[string]any{
			"type":   opp.Type,
			"target": opp.Target,
			"queued": added,
		})
		r.Executed = append(r.Executed, opp)
	}

	logs.CtxInfo(ctx, "[proactive] %d gaps, %d opportunities, executed %d", len(r.Gaps), len(r.Opportunities), len(r.Executed))
	return r, nil
}

// capabilityGaps returns the wanted capabilities that no installed skill
// name contains. The registry must be loaded.
func (o *Orchestrator) capabilityGaps() []string {
	skills := o.registry.List()
	gaps := []string{}
	for _, want := range o.cfg.Proactive.Wanted {
		w := strings.ToLower(want)
		found := false
		for _, s := range skills {
			if strings.Contains(strings.ToLower(s.Name), w) {
				found = true
				break
			}
		}
		if !found {
			gaps = append(gaps, want)
		}
	}
	return gaps
}
