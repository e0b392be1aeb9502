package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"golang.org/x/sync/errgroup"

	"github.com/tgifai/skillhunt/internal/config"
	"github.com/tgifai/skillhunt/internal/pkg/logs"
	"github.com/tgifai/skillhunt/internal/pkg/prometheus"
	"github.com/tgifai/skillhunt/internal/pkg/shell"
)

// Issue severities. Only high and critical make the host unhealthy.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Issue kinds and the recovery action each one triggers.
const (
	IssueContextHigh      = "context_high"
	IssueContextWarn      = "context_warn"
	IssueMemoryHigh       = "memory_high"
	IssueDiskLow          = "disk_low"
	IssueGatewayDown      = "gateway_down"
	IssueSkillMissing     = "critical_skill_missing"
	IssueSkillsLow        = "skills_low"
	IssueSkillBroken      = "skill_broken"
	IssuePlatformDown     = "platform_unreachable"
	IssueGaugeUnavailable = "gauge_unavailable"
)

var recoveryActions = map[string]string{
	IssueContextHigh: ActionCompaction,
	IssueMemoryHigh:  ActionClearTemp,
	IssueDiskLow:     ActionCleanupLogs,
	IssueGatewayDown: ActionRestartGateway,
}

// SystemStats reads host resource gauges.
type SystemStats interface {
	MemoryUsedRatio(ctx context.Context) (float64, error)
	DiskFreeRatio(ctx context.Context, path string) (float64, error)
}

type hostStats struct{}

func (hostStats) MemoryUsedRatio(ctx context.Context) (float64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent / 100, nil
}

func (hostStats) DiskFreeRatio(ctx context.Context, path string) (float64, error) {
	u, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return 0, err
	}
	if u.Total == 0 {
		return 0, fmt.Errorf("disk %s reports zero size", path)
	}
	return float64(u.Free) / float64(u.Total), nil
}

type Issue struct {
	Kind     string   `json:"kind"`
	Severity string   `json:"severity"`
	Value    *float64 `json:"value,omitempty"`
	Detail   string   `json:"detail,omitempty"`
}

type GatewayCheck struct {
	URL       string `json:"url"`
	Alive     bool   `json:"alive"`
	Status    int    `json:"status,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type PlatformCheck struct {
	Platform  string `json:"platform"`
	URL       string `json:"url"`
	Reachable bool   `json:"reachable"`
	Status    int    `json:"status,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type Gauges struct {
	Context  *float64      `json:"context,omitempty"`
	Memory   *float64      `json:"memory,omitempty"`
	DiskFree *float64      `json:"disk_free,omitempty"`
	Gateway  *GatewayCheck `json:"gateway,omitempty"`
}

type SkillInventory struct {
	Root            string   `json:"root"`
	Installed       int      `json:"installed"`
	Broken          []string `json:"broken,omitempty"`
	MissingCritical []string `json:"missing_critical,omitempty"`
}

type HealthReport struct {
	Healthy   bool            `json:"healthy"`
	Gauges    Gauges          `json:"gauges"`
	Skills    SkillInventory  `json:"skills"`
	Platforms []PlatformCheck `json:"platforms,omitempty"`
	Issues    []Issue         `json:"issues"`
	Actions   []ActionResult  `json:"actions,omitempty"`
}

func (r *HealthReport) Summary() map[string]any {
	return map[string]any{
		"healthy": r.Healthy,
		"issues":  len(r.Issues),
		"actions": len(r.Actions),
	}
}

func (r *HealthReport) add(kind, severity string, value *float64, detail string) {
	r.Issues = append(r.Issues, Issue{Kind: kind, Severity: severity, Value: value, Detail: detail})
}

func (o *Orchestrator) health(ctx context.Context) (Report, error) {
	hc := o.cfg.Health
	r := &HealthReport{Issues: []Issue{}}

	o.readGauges(ctx, r)
	o.checkSkills(ctx, r)
	if hc.CheckPlatforms != nil && *hc.CheckPlatforms {
		r.Platforms = o.checkPlatforms(ctx)
		for _, p := range r.Platforms {
			if !p.Reachable {
				r.add(IssuePlatformDown, SeverityLow, nil, fmt.Sprintf("%s: %s", p.Platform, firstNonEmpty(p.Error, strconv.Itoa(p.Status))))
			}
		}
	}

	r.Healthy = true
	for _, is := range r.Issues {
		prometheus.HealthIssues.WithLabelValues(is.Kind, is.Severity).Inc()
		if is.Severity == SeverityHigh || is.Severity == SeverityCritical {
			r.Healthy = false
		}
	}

	if !r.Healthy {
		r.Actions = o.heal(ctx, r.Issues)
	}

	status := "healthy"
	if !r.Healthy {
		status = "unhealthy"
	}
	o.journal.Record(ctx, config.TaskHealth, "health check: "+status, map[string]any{
		"issues":  r.Issues,
		"actions": len(r.Actions),
	})
	logs.CtxInfo(ctx, "[health] %s, %d issues, %d recovery actions", status, len(r.Issues), len(r.Actions))
	return r, nil
}

func (o *Orchestrator) readGauges(ctx context.Context, r *HealthReport) {
	hc := o.cfg.Health

	if hc.ContextCommand != "" {
		v, err := o.contextRatio(ctx)
		if err != nil {
			logs.CtxWarn(ctx, "[health] context gauge: %v", err)
			r.add(IssueGaugeUnavailable, SeverityLow, nil, "context: "+err.Error())
		} else {
			r.Gauges.Context = &v
			prometheus.HealthGauge.WithLabelValues("context").Set(v)
			switch {
			case v > hc.ContextThreshold:
				r.add(IssueContextHigh, SeverityHigh, &v, "")
			case v > hc.ContextWarnThreshold:
				r.add(IssueContextWarn, SeverityLow, &v, "")
			}
		}
	}

	if v, err := o.stats.MemoryUsedRatio(ctx); err != nil {
		logs.CtxWarn(ctx, "[health] memory gauge: %v", err)
		r.add(IssueGaugeUnavailable, SeverityLow, nil, "memory: "+err.Error())
	} else {
		r.Gauges.Memory = &v
		prometheus.HealthGauge.WithLabelValues("memory").Set(v)
		if v > hc.MemoryThreshold {
			r.add(IssueMemoryHigh, SeverityMedium, &v, "")
		}
	}

	if v, err := o.stats.DiskFreeRatio(ctx, o.cfg.Workspace); err != nil {
		logs.CtxWarn(ctx, "[health] disk gauge: %v", err)
		r.add(IssueGaugeUnavailable, SeverityLow, nil, "disk: "+err.Error())
	} else {
		r.Gauges.DiskFree = &v
		prometheus.HealthGauge.WithLabelValues("disk_free").Set(v)
		if v < hc.DiskFreeThreshold {
			r.add(IssueDiskLow, SeverityCritical, &v, "")
		}
	}

	if hc.GatewayURL != "" {
		g := o.checkGateway(ctx)
		r.Gauges.Gateway = g
		up := 0.0
		if g.Alive {
			up = 1
		} else {
			r.add(IssueGatewayDown, SeverityCritical, nil, firstNonEmpty(g.Error, fmt.Sprintf("status %d", g.Status)))
		}
		prometheus.HealthGauge.WithLabelValues("gateway_up").Set(up)
	}
}

// contextRatio runs the configured command and reads one number from its
// output: a ratio in [0,1] or a percentage.
func (o *Orchestrator) contextRatio(ctx context.Context) (float64, error) {
	timeout := time.Duration(o.cfg.Health.CheckTimeoutSec) * time.Second
	res, err := shell.Run(ctx, shell.Line(o.cfg.Health.ContextCommand), timeout)
	if err != nil {
		return 0, err
	}
	return parseRatio(res.Stdout)
}

func parseRatio(out string) (float64, error) {
	s := strings.TrimSpace(out)
	if fields := strings.Fields(s); len(fields) > 0 {
		s = fields[0]
	}
	percent := strings.HasSuffix(s, "%")
	v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil {
		return 0, fmt.Errorf("parse ratio %q: %w", s, err)
	}
	if percent || v > 1 {
		v /= 100
	}
	if v < 0 || v > 1 {
		return 0, fmt.Errorf("ratio %v out of range", v)
	}
	return v, nil
}

func (o *Orchestrator) checkGateway(ctx context.Context) *GatewayCheck {
	hc := o.cfg.Health
	g := &GatewayCheck{URL: hc.GatewayURL}
	resp, err := o.client.Fetch(ctx, hc.GatewayURL, nil, time.Duration(hc.CheckTimeoutSec)*time.Second)
	if err != nil {
		g.Error = err.Error()
		return g
	}
	g.Status = resp.Status
	g.LatencyMS = resp.Latency.Milliseconds()
	g.Alive = resp.OK()
	return g
}

// checkPlatforms hits the first endpoint of every enabled platform. Any
// HTTP answer below 500 counts as reachable: auth failures still prove the
// platform is up.
func (o *Orchestrator) checkPlatforms(ctx context.Context) []PlatformCheck {
	ids := make([]string, 0, len(o.cfg.Platforms))
	for id, p := range o.cfg.Platforms {
		if p.IsEnabled() && len(p.Endpoints) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	timeout := time.Duration(o.cfg.Health.CheckTimeoutSec) * time.Second
	out := make([]PlatformCheck, len(ids))
	var eg errgroup.Group
	for i, id := range ids {
		eg.Go(func() error {
			p := PlatformCheck{Platform: id, URL: o.cfg.Platforms[id].Endpoints[0]}
			resp, err := o.client.Fetch(ctx, p.URL, nil, timeout)
			if err != nil {
				p.Error = err.Error()
			} else {
				p.Status = resp.Status
				p.LatencyMS = resp.Latency.Milliseconds()
				p.Reachable = resp.Status < 500
			}
			out[i] = p
			return nil
		})
	}
	_ = eg.Wait()
	return out
}

func (o *Orchestrator) checkSkills(ctx context.Context, r *HealthReport) {
	hc := o.cfg.Health
	r.Skills.Root = o.registry.Root()
	if err := o.registry.Load(ctx); err != nil {
		r.add(IssueGaugeUnavailable, SeverityLow, nil, "skills: "+err.Error())
		return
	}

	r.Skills.Installed = o.registry.Len()
	for _, s := range o.registry.List() {
		if !s.Healthy() {
			r.Skills.Broken = append(r.Skills.Broken, s.Name)
		}
	}
	if len(r.Skills.Broken) > 0 {
		r.add(IssueSkillBroken, SeverityLow, nil, strings.Join(r.Skills.Broken, ", "))
	}

	r.Skills.MissingCritical = o.registry.Missing(hc.CriticalSkills)
	if len(r.Skills.MissingCritical) > 0 {
		r.add(IssueSkillMissing, SeverityMedium, nil, strings.Join(r.Skills.MissingCritical, ", "))
	}
	if r.Skills.Installed < hc.MinSkills {
		n := float64(r.Skills.Installed)
		r.add(IssueSkillsLow, SeverityLow, &n, fmt.Sprintf("want at least %d", hc.MinSkills))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
