package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/robfig/cron/v3"

	"github.com/tgifai/skillhunt/internal/consts"
)

const (
	defaultPlatformLimit      = 20
	defaultPlatformTimeoutSec = 15
	defaultScoreFloor         = 0.15
	defaultTopK               = 5
	defaultManifestVersion    = "1.0.0"
	defaultCloneTimeoutSec    = 120
	defaultTickSec            = 15
	defaultLogOutput          = "stderr"
	defaultJobTimeoutSec      = 600
	defaultStopTimeoutSec     = 30
	defaultCheckTimeoutSec    = 5
	defaultActionTimeoutSec   = 60
	defaultLogRetentionDays   = 14
)

var (
	defaultKeywords = []string{
		"skill", "openclaw", "agent", "automation", "self-*",
		"autonomous", "learning", "improvement", "codex", "claude",
	}
	defaultInclude = []string{
		"self-*", "self-healing", "self-improving", "self-repair",
		"autonomous", "automation", "proactive",
		"monitoring", "health", "system", "orchestration", "orchestrator",
		"cron", "scheduler", "workflow",
		"memory", "learning", "improvement", "feedback", "quality", "testing",
		"coding", "codex", "debugging", "systematic", "session",
		"agent", "agentic",
	}
	defaultExclude = []string{
		"email-to-podcast", "podcast", "weather",
		"social media", "twitter", "discord bot",
		"banking", "paywall", "trading",
		"grocery", "ordering food",
	}
	defaultTaskSchedules = map[string]TaskSchedule{
		TaskHealth:    {Type: "every", Schedule: "1h"},
		TaskLearn:     {Type: "every", Schedule: "4h"},
		TaskEvolve:    {Type: "every", Schedule: "2h"},
		TaskTask:      {Type: "every", Schedule: "30m"},
		TaskQA:        {Type: "every", Schedule: "4h"},
		TaskProactive: {Type: "every", Schedule: "1h"},
	}
	defaultActions = map[string]string{
		"compaction":      "",
		"clear_temp":      "",
		"cleanup_logs":    "",
		"restart_gateway": "",
	}
	defaultCriticalSkills = []string{"healthcheck", "self-repair"}
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Default returns a validated config with every default applied.
func Default() *Config {
	cfg := &Config{}
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("default config must validate: %v", err))
	}
	return cfg
}

// Validate fills defaults in place and rejects values that cannot work.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config cannot be nil")
	}

	c.Workspace = strings.TrimSpace(c.Workspace)
	if c.Workspace == "" {
		c.Workspace = consts.DefaultWorkspaceDir()
	}

	c.Logging.validate()
	if err := c.validatePlatforms(); err != nil {
		return err
	}
	if err := c.Learning.validate(); err != nil {
		return fmt.Errorf("learning: %w", err)
	}
	if err := c.Installer.validate(); err != nil {
		return fmt.Errorf("installer: %w", err)
	}
	if err := c.Orchestrator.validate(); err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	if err := c.Health.validate(); err != nil {
		return fmt.Errorf("health: %w", err)
	}
	c.Proactive.Wanted = normalizeList(c.Proactive.Wanted)
	return nil
}

func (c *Config) validatePlatforms() error {
	defaults := defaultPlatforms()
	if c.Platforms == nil {
		c.Platforms = make(map[string]PlatformConfig, len(defaults))
	}

	normalized := make(map[string]PlatformConfig, len(c.Platforms))
	for key, one := range c.Platforms {
		id := strings.ToLower(strings.TrimSpace(key))
		if id == "" {
			return errors.New("platform id cannot be empty")
		}
		def, known := defaults[id]
		if !known {
			return fmt.Errorf("unknown platform: %s", key)
		}
		one.ID = id
		if len(one.Endpoints) == 0 {
			one.Endpoints = def.Endpoints
		}
		if one.TokenEnv == "" {
			one.TokenEnv = def.TokenEnv
		}
		if one.Config == nil {
			one.Config = def.Config
		}
		normalized[id] = one
	}
	for id, def := range defaults {
		if _, ok := normalized[id]; !ok {
			normalized[id] = def
		}
	}

	for id, one := range normalized {
		if one.Limit <= 0 {
			one.Limit = defaultPlatformLimit
		}
		if one.TimeoutSec <= 0 {
			one.TimeoutSec = defaultPlatformTimeoutSec
		}
		// YAML reads an empty mapping back as {}, never nil.
		if one.Config == nil {
			one.Config = map[string]any{}
		}
		for _, ep := range one.Endpoints {
			if !strings.HasPrefix(ep, "http://") && !strings.HasPrefix(ep, "https://") {
				return fmt.Errorf("platforms[%s]: endpoint must be an http(s) URL, got %q", id, ep)
			}
		}
		normalized[id] = one
	}
	c.Platforms = normalized
	return nil
}

// Task commands print JSON on stdout, so logs default to stderr.
func (l *LoggingConfig) validate() {
	l.Output = strings.ToLower(strings.TrimSpace(l.Output))
	if l.Output == "" {
		l.Output = defaultLogOutput
	}
	if strings.TrimSpace(l.Level) == "" {
		l.Level = "info"
	}
}

func defaultPlatforms() map[string]PlatformConfig {
	return map[string]PlatformConfig{
		PlatformMoltbook: {
			ID: PlatformMoltbook,
			Endpoints: []string{
				"https://www.moltbook.com/api/v1/feed/trending",
				"https://www.moltbook.com/api/v1/messages?submolt=openclaw",
			},
			TokenEnv: "MOLTBOOK_API_KEY",
		},
		PlatformGitHub: {
			ID:        PlatformGitHub,
			Endpoints: []string{"https://api.github.com/search/repositories"},
			TokenEnv:  "GITHUB_TOKEN",
			Config: map[string]any{
				"topics":   []any{"openclaw-skill", "openclaw-agent", "autonomous-agent"},
				"language": "typescript",
				"per_page": 10,
			},
		},
		PlatformClawHub: {
			ID: PlatformClawHub,
			Endpoints: []string{
				"https://clawhub.ai/api/v1/skills",
				"https://clawhub.com/api/v1/skills",
			},
			TokenEnv:   "CLAWHUB_API_KEY",
			TimeoutSec: 5,
			Config:     map[string]any{"site": "https://clawhub.ai"},
		},
	}
}

func (l *LearningConfig) validate() error {
	if l.ScoreFloor == 0 {
		l.ScoreFloor = defaultScoreFloor
	}
	if l.ScoreFloor < 0 || l.ScoreFloor > 1 {
		return fmt.Errorf("score_floor must be within [0,1], got %v", l.ScoreFloor)
	}
	if l.TopK <= 0 {
		l.TopK = defaultTopK
	}
	if l.KeywordWeight == 0 {
		l.KeywordWeight = 0.15
	}
	if l.WildcardWeight == 0 {
		l.WildcardWeight = 0.1
	}
	if l.PopularityWeight == 0 {
		l.PopularityWeight = 0.3
	}
	if l.KeywordWeight < 0 || l.WildcardWeight < 0 || l.PopularityWeight < 0 {
		return errors.New("weights cannot be negative")
	}

	l.Keywords = normalizeKeywords(l.Keywords, defaultKeywords)
	l.Include = normalizeKeywords(l.Include, defaultInclude)
	l.Exclude = normalizeKeywords(l.Exclude, defaultExclude)
	return nil
}

func (i *InstallerConfig) validate() error {
	i.SkillsRoot = strings.TrimSpace(i.SkillsRoot)
	if i.SkillsRoot == "" {
		i.SkillsRoot = consts.DefaultSkillsDir()
	}
	i.SkillsRoot = filepath.Clean(i.SkillsRoot)

	i.RepoHosts = normalizeKeywords(i.RepoHosts, []string{"github.com"})
	if i.CloneTimeoutSec <= 0 {
		i.CloneTimeoutSec = defaultCloneTimeoutSec
	}

	i.ManifestVersion = strings.TrimSpace(i.ManifestVersion)
	if i.ManifestVersion == "" {
		i.ManifestVersion = defaultManifestVersion
	}
	v, err := semver.NewVersion(i.ManifestVersion)
	if err != nil {
		return fmt.Errorf("manifest_version %q: %w", i.ManifestVersion, err)
	}
	i.ManifestVersion = v.String()
	return nil
}

func (o *OrchestratorConfig) validate() error {
	if o.TickSec <= 0 {
		o.TickSec = defaultTickSec
	}
	if o.JobTimeoutSec <= 0 {
		o.JobTimeoutSec = defaultJobTimeoutSec
	}
	if o.MaxConcurrentRuns <= 0 {
		o.MaxConcurrentRuns = len(TaskNames)
	}
	if o.JitterSec < 0 {
		o.JitterSec = 0
	}
	if o.StopTimeoutSec <= 0 {
		o.StopTimeoutSec = defaultStopTimeoutSec
	}

	if o.Tasks == nil {
		o.Tasks = make(map[string]TaskSchedule, len(defaultTaskSchedules))
	}
	for name := range o.Tasks {
		if _, ok := defaultTaskSchedules[name]; !ok {
			return fmt.Errorf("unknown task: %s", name)
		}
	}
	for name, def := range defaultTaskSchedules {
		one, ok := o.Tasks[name]
		if !ok {
			o.Tasks[name] = def
			continue
		}
		one.Type = strings.ToLower(strings.TrimSpace(one.Type))
		one.Schedule = strings.TrimSpace(one.Schedule)
		if one.Type == "" {
			one.Type = def.Type
		}
		if one.Schedule == "" {
			one.Schedule = def.Schedule
		}
		if err := ValidateSchedule(one.Type, one.Schedule); err != nil {
			return fmt.Errorf("tasks[%s]: %w", name, err)
		}
		o.Tasks[name] = one
	}
	return nil
}

// ValidateSchedule checks an "every" duration or a 5-field cron expression.
func ValidateSchedule(typ, schedule string) error {
	switch typ {
	case "every":
		d, err := time.ParseDuration(schedule)
		if err != nil {
			return fmt.Errorf("parse every duration %q: %w", schedule, err)
		}
		if d <= 0 {
			return fmt.Errorf("every duration must be positive, got %v", d)
		}
	case "cron":
		if _, err := cronParser.Parse(schedule); err != nil {
			return fmt.Errorf("parse cron expression %q: %w", schedule, err)
		}
	default:
		return fmt.Errorf("unknown schedule type: %s", typ)
	}
	return nil
}

func (h *HealthConfig) validate() error {
	if h.ContextWarnThreshold == 0 {
		h.ContextWarnThreshold = 0.80
	}
	if h.ContextThreshold == 0 {
		h.ContextThreshold = 0.95
	}
	if h.MemoryThreshold == 0 {
		h.MemoryThreshold = 0.80
	}
	if h.DiskFreeThreshold == 0 {
		h.DiskFreeThreshold = 0.20
	}
	for name, v := range map[string]float64{
		"context_warn_threshold": h.ContextWarnThreshold,
		"context_threshold":      h.ContextThreshold,
		"memory_threshold":       h.MemoryThreshold,
		"disk_free_threshold":    h.DiskFreeThreshold,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0,1], got %v", name, v)
		}
	}
	if h.ContextWarnThreshold > h.ContextThreshold {
		return errors.New("context_warn_threshold cannot exceed context_threshold")
	}
	if h.CheckTimeoutSec <= 0 {
		h.CheckTimeoutSec = defaultCheckTimeoutSec
	}
	if h.CheckPlatforms == nil {
		enabled := true
		h.CheckPlatforms = &enabled
	}
	if h.ActionTimeoutSec <= 0 {
		h.ActionTimeoutSec = defaultActionTimeoutSec
	}
	if h.Actions == nil {
		h.Actions = make(map[string]string, len(defaultActions))
	}
	for name := range h.Actions {
		if _, ok := defaultActions[name]; !ok {
			return fmt.Errorf("unknown recovery action: %s", name)
		}
	}
	for name, cmd := range defaultActions {
		if _, ok := h.Actions[name]; !ok {
			h.Actions[name] = cmd
		}
	}
	if h.CriticalSkills == nil {
		h.CriticalSkills = append([]string(nil), defaultCriticalSkills...)
	}
	h.CriticalSkills = normalizeList(h.CriticalSkills)
	if h.MinSkills < 0 {
		h.MinSkills = 0
	}
	if h.LogRetentionDays <= 0 {
		h.LogRetentionDays = defaultLogRetentionDays
	}
	return nil
}

func normalizeKeywords(in, def []string) []string {
	out := normalizeList(in)
	for i := range out {
		out[i] = strings.ToLower(out[i])
	}
	if len(out) == 0 {
		return append([]string(nil), def...)
	}
	return out
}

func normalizeList(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	uniq := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, one := range in {
		one = strings.TrimSpace(one)
		if one == "" {
			continue
		}
		if _, ok := uniq[one]; ok {
			continue
		}
		uniq[one] = struct{}{}
		out = append(out, one)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
