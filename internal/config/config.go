package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/bytedance/sonic"
)

// Platform identifiers understood by the scanner registry.
const (
	PlatformMoltbook = "moltbook"
	PlatformGitHub   = "github"
	PlatformClawHub  = "clawhub"
)

// Task names scheduled by the orchestrator.
const (
	TaskHealth    = "health"
	TaskLearn     = "learn"
	TaskEvolve    = "evolve"
	TaskTask      = "task"
	TaskQA        = "qa"
	TaskProactive = "proactive"
)

// TaskNames lists the periodic tasks in registration order.
var TaskNames = []string{TaskHealth, TaskLearn, TaskEvolve, TaskTask, TaskQA, TaskProactive}

type (
	Config struct {
		Workspace    string                    `yaml:"workspace"`
		Logging      LoggingConfig             `yaml:"logging"`
		Platforms    map[string]PlatformConfig `yaml:"platforms"`
		Learning     LearningConfig            `yaml:"learning"`
		Installer    InstallerConfig           `yaml:"installer"`
		Orchestrator OrchestratorConfig        `yaml:"orchestrator"`
		Health       HealthConfig              `yaml:"health"`
		Proactive    ProactiveConfig           `yaml:"proactive"`
	}

	LoggingConfig struct {
		Level      string `yaml:"level"`  // debug, info, warn, error
		Format     string `yaml:"format"` // json, text
		Output     string `yaml:"output"` // stdout, stderr, file, both
		File       string `yaml:"file"`
		MaxSize    int    `yaml:"max_size"` // MB
		MaxBackups int    `yaml:"max_backups"`
		MaxAge     int    `yaml:"max_age"` // days
		Compress   bool   `yaml:"compress"`
	}

	// PlatformConfig configures one scanner. Platform-specific knobs live in
	// Config (github: topics, language, per_page; clawhub: site).
	PlatformConfig struct {
		ID         string         `yaml:"-"`
		Enabled    *bool          `yaml:"enabled"`
		Endpoints  []string       `yaml:"endpoints"`
		TokenEnv   string         `yaml:"token_env"`
		Limit      int            `yaml:"limit"`
		TimeoutSec int            `yaml:"timeout_sec"`
		Config     map[string]any `yaml:"config"`
	}

	LearningConfig struct {
		ScoreFloor       float64  `yaml:"score_floor"`
		TopK             int      `yaml:"top_k"`
		Keywords         []string `yaml:"keywords"`
		KeywordWeight    float64  `yaml:"keyword_weight"`
		WildcardWeight   float64  `yaml:"wildcard_weight"`
		PopularityWeight float64  `yaml:"popularity_weight"`
		Include          []string `yaml:"include"`
		Exclude          []string `yaml:"exclude"`
	}

	InstallerConfig struct {
		SkillsRoot      string   `yaml:"skills_root"`
		RepoHosts       []string `yaml:"repo_hosts"`
		CloneTimeoutSec int      `yaml:"clone_timeout_sec"`
		DisableClone    bool     `yaml:"disable_clone"`
		ManifestVersion string   `yaml:"manifest_version"`
	}

	OrchestratorConfig struct {
		TickSec           int                     `yaml:"tick_sec"`
		JobTimeoutSec     int                     `yaml:"job_timeout_sec"`
		MaxConcurrentRuns int                     `yaml:"max_concurrent_runs"`
		JitterSec         int                     `yaml:"jitter_sec"`
		StopTimeoutSec    int                     `yaml:"stop_timeout_sec"`
		Tasks             map[string]TaskSchedule `yaml:"tasks"`
	}

	TaskSchedule struct {
		Enabled  *bool  `yaml:"enabled"`
		Type     string `yaml:"type"`     // every, cron
		Schedule string `yaml:"schedule"` // "1h" | "0 */4 * * *"
	}

	HealthConfig struct {
		ContextWarnThreshold float64           `yaml:"context_warn_threshold"`
		ContextThreshold     float64           `yaml:"context_threshold"`
		MemoryThreshold      float64           `yaml:"memory_threshold"`
		DiskFreeThreshold    float64           `yaml:"disk_free_threshold"`
		ContextCommand       string            `yaml:"context_command"`
		GatewayURL           string            `yaml:"gateway_url"`
		CheckTimeoutSec      int               `yaml:"check_timeout_sec"`
		CheckPlatforms       *bool             `yaml:"check_platforms"`
		Actions              map[string]string `yaml:"actions"`
		ActionTimeoutSec     int               `yaml:"action_timeout_sec"`
		CriticalSkills       []string          `yaml:"critical_skills"`
		MinSkills            int               `yaml:"min_skills"`
		LogRetentionDays     int               `yaml:"log_retention_days"`
	}

	ProactiveConfig struct {
		Wanted []string `yaml:"wanted"`
	}
)

// IsEnabled reports whether the platform is switched on; unset means on.
func (p PlatformConfig) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// IsEnabled reports whether the task is scheduled; unset means on.
func (t TaskSchedule) IsEnabled() bool {
	return t.Enabled == nil || *t.Enabled
}

// Clone .
func (c *Config) Clone() (*Config, error) {
	if c == nil {
		return nil, fmt.Errorf("config is nil")
	}

	raw, err := sonic.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	var cloned Config
	if err := sonic.Unmarshal(raw, &cloned); err != nil {
		return nil, fmt.Errorf("unmarshal config clone: %w", err)
	}
	return &cloned, nil
}

// Hash .
func (c *Config) Hash() string {
	json := sonic.Config{SortMapKeys: true, UseNumber: true}.Froze()
	raw, _ := json.Marshal(c)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
