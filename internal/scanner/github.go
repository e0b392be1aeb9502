package scanner

import (
	"context"
	"net/url"
	"strconv"

	"github.com/tgifai/skillhunt/internal/config"
	"github.com/tgifai/skillhunt/internal/pkg/logs"
	"github.com/tgifai/skillhunt/internal/skill"
)

const githubTopicsPerScan = 2

type githubSearchResponse struct {
	TotalCount int          `json:"total_count"`
	Items      []githubRepo `json:"items"`
}

type githubRepo struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	FullName    string `json:"full_name"`
	Description string `json:"description"`
	HTMLURL     string `json:"html_url"`
	CloneURL    string `json:"clone_url"`
	Stars       int    `json:"stargazers_count"`
	Owner       struct {
		Login string `json:"login"`
	} `json:"owner"`
}

// GitHub searches repositories by topic, most starred first.
type GitHub struct {
	platform
	topics   []string
	language string
	perPage  int
}

func NewGitHub(cfg config.PlatformConfig, client Fetcher) *GitHub {
	p := newPlatform(cfg, client)
	g := &GitHub{
		platform: p,
		topics:   p.stringsOption("topics"),
		language: p.stringOption("language", ""),
		perPage:  p.intOption("per_page", 10),
	}
	if len(g.topics) > githubTopicsPerScan {
		g.topics = g.topics[:githubTopicsPerScan]
	}
	return g
}

func (g *GitHub) Source() skill.Source { return skill.SourceGitHub }

func (g *GitHub) Scan(ctx context.Context, limit int) []skill.Candidate {
	if len(g.cfg.Endpoints) == 0 {
		return nil
	}
	headers := map[string]string{
		"Accept":               "application/vnd.github+json",
		"X-GitHub-Api-Version": "2022-11-28",
	}
	if token := g.token(); token != "" {
		headers["Authorization"] = "Bearer " + token
	}

	limit = g.limit(limit)
	var out []skill.Candidate
	for _, topic := range g.topics {
		var resp githubSearchResponse
		if !g.fetch(ctx, g.searchURL(topic), headers, &resp) {
			continue
		}
		for _, repo := range capped(resp.Items, limit) {
			out = append(out, g.normalize(repo))
		}
	}
	logs.CtxInfo(ctx, "[scanner:github] %d candidates from topics %v", len(out), g.topics)
	return out
}

func (g *GitHub) searchURL(topic string) string {
	q := "topic:" + topic
	if g.language != "" {
		q += " language:" + g.language
	}
	v := url.Values{}
	v.Set("q", q)
	v.Set("sort", "stars")
	v.Set("order", "desc")
	v.Set("per_page", strconv.Itoa(g.perPage))
	return g.cfg.Endpoints[0] + "?" + v.Encode()
}

func (g *GitHub) normalize(repo githubRepo) skill.Candidate {
	c := skill.Candidate{
		ID:           strconv.FormatInt(repo.ID, 10),
		Title:        firstNonEmpty(repo.Name, repo.FullName, skill.UntitledPlaceholder),
		Description:  repo.Description,
		Author:       repo.Owner.Login,
		Source:       skill.SourceGitHub,
		URL:          repo.HTMLURL,
		CloneURL:     repo.CloneURL,
		Stars:        max(repo.Stars, 0),
		DiscoveredAt: g.now(),
	}
	c.Prior = skill.Clamp01(float64(c.Stars) / 1000)
	c.QualityScore = c.Prior
	return c
}
