package scanner

import (
	"context"
	"fmt"
	"strings"

	"github.com/tgifai/skillhunt/internal/config"
	"github.com/tgifai/skillhunt/internal/pkg/logs"
	"github.com/tgifai/skillhunt/internal/skill"
)

const (
	clawhubDefaultSite  = "https://clawhub.ai"
	clawhubDefaultPrior = 0.5
)

type clawhubResponse struct {
	Items  []clawhubSkill `json:"items"`
	Data   []clawhubSkill `json:"data"`
	Skills []clawhubSkill `json:"skills"`
}

func (r clawhubResponse) list() []clawhubSkill {
	switch {
	case len(r.Items) > 0:
		return r.Items
	case len(r.Data) > 0:
		return r.Data
	default:
		return r.Skills
	}
}

type clawhubSkill struct {
	ID          any     `json:"id"`
	Slug        string  `json:"slug"`
	DisplayName string  `json:"displayName"`
	Name        string  `json:"name"`
	Title       string  `json:"title"`
	Summary     string  `json:"summary"`
	Description string  `json:"description"`
	URL         string  `json:"url"`
	RepoURL     string  `json:"repo_url"`
	GitHubURL   string  `json:"github_url"`
	Author      string  `json:"author"`
	Rating      float64 `json:"rating"`
	Stars       int     `json:"stars"`
}

// ClawHub reads the skill catalog from the first mirror that answers.
type ClawHub struct {
	platform
	site string
}

func NewClawHub(cfg config.PlatformConfig, client Fetcher) *ClawHub {
	p := newPlatform(cfg, client)
	return &ClawHub{platform: p, site: strings.TrimRight(p.stringOption("site", clawhubDefaultSite), "/")}
}

func (c *ClawHub) Source() skill.Source { return skill.SourceClawHub }

func (c *ClawHub) Scan(ctx context.Context, limit int) []skill.Candidate {
	var headers map[string]string
	if token := c.token(); token != "" {
		headers = map[string]string{"Authorization": "Bearer " + token}
	}

	limit = c.limit(limit)
	for _, ep := range c.cfg.Endpoints {
		var resp clawhubResponse
		if !c.fetch(ctx, ep, headers, &resp) {
			continue
		}
		items := capped(resp.list(), limit)
		out := make([]skill.Candidate, 0, len(items))
		for _, one := range items {
			out = append(out, c.normalize(one))
		}
		logs.CtxInfo(ctx, "[scanner:clawhub] %d candidates from %s", len(out), ep)
		return out
	}
	logs.CtxWarn(ctx, "[scanner:clawhub] no endpoint answered")
	return nil
}

func (c *ClawHub) normalize(s clawhubSkill) skill.Candidate {
	slug := firstNonEmpty(s.Slug, idString(s.ID))
	out := skill.Candidate{
		ID:           slug,
		Title:        firstNonEmpty(s.DisplayName, s.Name, s.Title, skill.UntitledPlaceholder),
		Description:  firstNonEmpty(s.Summary, s.Description),
		Author:       s.Author,
		Source:       skill.SourceClawHub,
		URL:          s.URL,
		InstallURL:   firstNonEmpty(s.RepoURL, s.GitHubURL),
		Stars:        max(s.Stars, 0),
		DiscoveredAt: c.now(),
	}
	if out.URL == "" && slug != "" {
		out.URL = fmt.Sprintf("%s/skill/%s", c.site, slug)
	}
	if s.Rating > 0 {
		out.Prior = skill.Clamp01(s.Rating / 5)
	} else {
		out.Prior = clawhubDefaultPrior
	}
	out.QualityScore = out.Prior
	return out
}
