package scanner

import (
	"context"
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/tgifai/skillhunt/internal/config"
	"github.com/tgifai/skillhunt/internal/pkg/logs"
	"github.com/tgifai/skillhunt/internal/skill"
)

const moltbookDefaultSite = "https://www.moltbook.com"

type moltbookResponse struct {
	Messages []moltbookMessage `json:"messages"`
	Data     []moltbookMessage `json:"data"`
}

func (r moltbookResponse) items() []moltbookMessage {
	if len(r.Messages) > 0 {
		return r.Messages
	}
	return r.Data
}

type moltbookMessage struct {
	ID      any    `json:"id"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Content string `json:"content"`
	Body    string `json:"body"`
	URL     string `json:"url"`
	Votes   int    `json:"votes"`
	Author  struct {
		Username string `json:"username"`
		Name     string `json:"name"`
	} `json:"author"`
}

// Moltbook reads trending and community posts. It needs a bearer token and
// is skipped when none is configured.
type Moltbook struct {
	platform
	site string
}

func NewMoltbook(cfg config.PlatformConfig, client Fetcher) *Moltbook {
	p := newPlatform(cfg, client)
	return &Moltbook{platform: p, site: p.stringOption("site", moltbookDefaultSite)}
}

func (m *Moltbook) Source() skill.Source { return skill.SourceMoltbook }

func (m *Moltbook) Scan(ctx context.Context, limit int) []skill.Candidate {
	token := m.token()
	if token == "" {
		logs.CtxWarn(ctx, "[scanner:moltbook] %s is not set, skipping", m.cfg.TokenEnv)
		return nil
	}
	headers := map[string]string{"Authorization": "Bearer " + token}

	limit = m.limit(limit)
	var out []skill.Candidate
	for _, ep := range m.cfg.Endpoints {
		var resp moltbookResponse
		if !m.fetch(ctx, ep, headers, &resp) {
			continue
		}
		for _, msg := range capped(resp.items(), limit) {
			out = append(out, m.normalize(ctx, msg))
		}
	}
	logs.CtxInfo(ctx, "[scanner:moltbook] %d candidates from %d endpoints", len(out), len(m.cfg.Endpoints))
	return out
}

func (m *Moltbook) normalize(ctx context.Context, msg moltbookMessage) skill.Candidate {
	id := idString(msg.ID)
	c := skill.Candidate{
		ID:           id,
		Title:        firstNonEmpty(msg.Title, msg.Summary, skill.UntitledPlaceholder),
		Description:  msg.Summary,
		Content:      m.markdown(ctx, firstNonEmpty(msg.Content, msg.Body)),
		Author:       firstNonEmpty(msg.Author.Username, msg.Author.Name),
		Source:       skill.SourceMoltbook,
		URL:          msg.URL,
		Votes:        max(msg.Votes, 0),
		DiscoveredAt: m.now(),
	}
	if c.URL == "" && id != "" {
		c.URL = fmt.Sprintf("%s/post/%s", strings.TrimRight(m.site, "/"), id)
	}
	c.Prior = skill.Clamp01(float64(c.Votes) / 100)
	c.QualityScore = c.Prior
	return c
}

// markdown converts HTML post bodies so URLs in anchors survive as text.
func (m *Moltbook) markdown(ctx context.Context, content string) string {
	if !strings.Contains(content, "<") || !strings.Contains(content, ">") {
		return content
	}
	md, err := htmltomarkdown.ConvertString(content)
	if err != nil {
		logs.CtxDebug(ctx, "[scanner:moltbook] html to markdown: %v", err)
		return content
	}
	return strings.TrimSpace(md)
}
