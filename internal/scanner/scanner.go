package scanner

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/gg/gconv"

	"github.com/tgifai/skillhunt/internal/config"
	"github.com/tgifai/skillhunt/internal/pkg/httpc"
	"github.com/tgifai/skillhunt/internal/pkg/logs"
	"github.com/tgifai/skillhunt/internal/skill"
)

// Scanner queries one platform. Scan never fails: every error is logged and
// the affected endpoint contributes nothing.
type Scanner interface {
	Source() skill.Source
	Scan(ctx context.Context, limit int) []skill.Candidate
}

// Fetcher is the slice of *httpc.Client the scanners use.
type Fetcher interface {
	FetchJSON(ctx context.Context, url string, headers map[string]string, timeout time.Duration, out any) (*httpc.Response, error)
}

// FromConfig builds the enabled scanners in registration order
// (moltbook, github, clawhub).
func FromConfig(cfg *config.Config, client Fetcher) []Scanner {
	ctors := []struct {
		id  string
		new func(config.PlatformConfig, Fetcher) Scanner
	}{
		{config.PlatformMoltbook, func(p config.PlatformConfig, f Fetcher) Scanner { return NewMoltbook(p, f) }},
		{config.PlatformGitHub, func(p config.PlatformConfig, f Fetcher) Scanner { return NewGitHub(p, f) }},
		{config.PlatformClawHub, func(p config.PlatformConfig, f Fetcher) Scanner { return NewClawHub(p, f) }},
	}

	out := make([]Scanner, 0, len(ctors))
	for _, one := range ctors {
		p, ok := cfg.Platforms[one.id]
		if !ok || !p.IsEnabled() {
			logs.Debug("[scanner] platform %s disabled", one.id)
			continue
		}
		out = append(out, one.new(p, client))
	}
	return out
}

// platform carries the config every scanner shares.
type platform struct {
	cfg     config.PlatformConfig
	client  Fetcher
	timeout time.Duration
	now     func() time.Time
}

func newPlatform(cfg config.PlatformConfig, client Fetcher) platform {
	return platform{
		cfg:     cfg,
		client:  client,
		timeout: time.Duration(cfg.TimeoutSec) * time.Second,
		now:     time.Now,
	}
}

func (p platform) token() string {
	if p.cfg.TokenEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(p.cfg.TokenEnv))
}

func (p platform) limit(limit int) int {
	if limit > 0 {
		return limit
	}
	return p.cfg.Limit
}

func (p platform) option(key string) any {
	if p.cfg.Config == nil {
		return nil
	}
	return p.cfg.Config[key]
}

func (p platform) stringOption(key, def string) string {
	if v := strings.TrimSpace(gconv.To[string](p.option(key))); v != "" {
		return v
	}
	return def
}

func (p platform) intOption(key string, def int) int {
	if v := gconv.To[int](p.option(key)); v > 0 {
		return v
	}
	return def
}

func (p platform) stringsOption(key string) []string {
	raw, ok := p.option(key).([]any)
	if !ok {
		if typed, ok := p.option(key).([]string); ok {
			return typed
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, one := range raw {
		if s := strings.TrimSpace(gconv.To[string](one)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// fetch decodes one endpoint into out and reports whether out holds data.
func (p platform) fetch(ctx context.Context, url string, headers map[string]string, out any) bool {
	resp, err := p.client.FetchJSON(ctx, url, headers, p.timeout, out)
	if err != nil {
		logs.CtxWarn(ctx, "[scanner:%s] fetch %s: %v", p.cfg.ID, url, err)
		return false
	}
	if !resp.OK() {
		logs.CtxWarn(ctx, "[scanner:%s] %s returned status %d", p.cfg.ID, url, resp.Status)
		return false
	}
	return true
}

// idString renders a decoded JSON id. Numbers arrive as float64.
func idString(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(id)
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return gconv.To[string](v)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func capped[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
