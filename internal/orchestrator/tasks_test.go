package orchestrator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgifai/skillhunt/internal/config"
	"github.com/tgifai/skillhunt/internal/consts"
	"github.com/tgifai/skillhunt/internal/memory"
	"github.com/tgifai/skillhunt/internal/pkg/httpc"
	"github.com/tgifai/skillhunt/internal/pkg/prometheus"
)

func issueKinds(issues []Issue) []string {
	out := make([]string, 0, len(issues))
	for _, is := range issues {
		out = append(out, is.Kind)
	}
	return out
}

func TestHealth_UnhealthyRunsRecoveryActions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	tr := &http.Transport{}
	defer tr.CloseIdleConnections()

	cfg := testConfig(t)
	cfg.Health.GatewayURL = srv.URL
	cfg.Health.ContextCommand = "echo 97%"
	cfg.Health.Actions[ActionRestartGateway] = "echo restarted"
	o := newTestOrchestrator(t, cfg,
		WithHTTPClient(httpc.New(httpc.WithTransport(tr))),
		WithSystemStats(fakeStats{memory: 0.9, diskFree: 0.1}),
	)

	oldJournal := filepath.Join(consts.OrchestratorDir(o.Store().Workspace()), "2020-01-01.jsonl")
	require.NoError(t, os.WriteFile(oldJournal, []byte("{}\n"), 0o644))

	res, err := o.Run(context.Background(), config.TaskHealth)
	require.NoError(t, err)
	r := res.Report.(*HealthReport)

	assert.False(t, r.Healthy)
	assert.Subset(t, issueKinds(r.Issues), []string{IssueContextHigh, IssueMemoryHigh, IssueDiskLow, IssueGatewayDown})
	require.NotNil(t, r.Gauges.Context)
	assert.InDelta(t, 0.97, *r.Gauges.Context, 1e-9)
	require.NotNil(t, r.Gauges.Gateway)
	assert.Equal(t, http.StatusServiceUnavailable, r.Gauges.Gateway.Status)
	assert.Equal(t, 0.0, testutil.ToFloat64(prometheus.HealthGauge.WithLabelValues("gateway_up")))

	byAction := make(map[string]ActionResult, len(r.Actions))
	for _, a := range r.Actions {
		byAction[a.Action] = a
	}
	require.Len(t, byAction, 4)
	assert.True(t, byAction[ActionCompaction].Skipped)
	assert.True(t, byAction[ActionClearTemp].OK)
	assert.True(t, byAction[ActionCleanupLogs].Builtin)
	assert.Equal(t, []string{oldJournal}, byAction[ActionCleanupLogs].Removed)
	assert.True(t, byAction[ActionRestartGateway].OK)
	assert.Contains(t, byAction[ActionRestartGateway].Output, "restarted")
	assert.NoFileExists(t, oldJournal)
}

func TestHealth_MediumIssuesStayHealthy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Health.CriticalSkills = []string{"healthcheck", "self-repair"}
	cfg.Health.MinSkills = 2
	o := newTestOrchestrator(t, cfg)
	writeSkill(t, cfg.Installer.SkillsRoot, "self-repair", true)

	res, err := o.Run(context.Background(), config.TaskHealth)
	require.NoError(t, err)
	r := res.Report.(*HealthReport)

	assert.True(t, r.Healthy)
	assert.Empty(t, r.Actions)
	assert.Equal(t, 1, r.Skills.Installed)
	assert.Equal(t, []string{"healthcheck"}, r.Skills.MissingCritical)
	assert.ElementsMatch(t, []string{IssueSkillMissing, IssueSkillsLow}, issueKinds(r.Issues))
}

func TestHealth_GaugeErrorsAreLowIssues(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(t), WithSystemStats(fakeStats{err: os.ErrPermission}))

	res, err := o.Run(context.Background(), config.TaskHealth)
	require.NoError(t, err)
	r := res.Report.(*HealthReport)
	assert.True(t, r.Healthy)
	assert.Nil(t, r.Gauges.Memory)
	assert.Equal(t, []string{IssueGaugeUnavailable, IssueGaugeUnavailable}, issueKinds(r.Issues))
}

func TestHealth_ChecksPlatforms(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer up.Close()
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer down.Close()
	tr := &http.Transport{}
	defer tr.CloseIdleConnections()

	cfg := testConfig(t)
	on := true
	cfg.Health.CheckPlatforms = &on
	cfg.Platforms = map[string]config.PlatformConfig{
		config.PlatformGitHub:  {ID: config.PlatformGitHub, Endpoints: []string{up.URL}},
		config.PlatformClawHub: {ID: config.PlatformClawHub, Endpoints: []string{down.URL}},
	}
	o := newTestOrchestrator(t, cfg, WithHTTPClient(httpc.New(httpc.WithTransport(tr))))

	res, err := o.Run(context.Background(), config.TaskHealth)
	require.NoError(t, err)
	r := res.Report.(*HealthReport)

	require.Len(t, r.Platforms, 2)
	assert.Equal(t, config.PlatformClawHub, r.Platforms[0].Platform)
	assert.False(t, r.Platforms[0].Reachable)
	assert.Equal(t, config.PlatformGitHub, r.Platforms[1].Platform)
	assert.True(t, r.Platforms[1].Reachable)
	assert.Equal(t, []string{IssuePlatformDown}, issueKinds(r.Issues))
}

func TestParseRatio(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"0.42", 0.42, false},
		{"42%", 0.42, false},
		{"85 percent used", 0.85, false},
		{" 0.9\n", 0.9, false},
		{"1", 1, false},
		{"250", 0, true},
		{"-0.5", 0, true},
		{"n/a", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := parseRatio(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, tt.in)
	}
}

func TestEvolve_AppliesAtMostFiveMutations(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(t))
	ctx := context.Background()

	var failures []memory.Failure
	for _, msg := range []string{"a", "b", "c", "d", "e", "f", "a"} {
		failures = append(failures, memory.Failure{Task: config.TaskLearn, Message: msg, Timestamp: time.Now()})
	}
	require.NoError(t, o.Store().WriteReport(&memory.Report{Failures: failures}))
	o.journal.Record(ctx, memory.EntryError, "qa failed: disk", map[string]any{"task": config.TaskQA})

	res, err := o.Run(ctx, config.TaskEvolve)
	require.NoError(t, err)
	r := res.Report.(*EvolveReport)

	assert.Equal(t, 7, r.Failures)
	assert.Len(t, r.Mutations, 7)
	assert.Len(t, r.Applied, maxMutations)
	assert.Equal(t, Mutation{Type: "fix_failure", Target: config.TaskLearn, Action: "fix a", Priority: PriorityHigh}, r.Applied[0])
	assert.Equal(t, config.TaskQA, r.Mutations[6].Target)
}

func TestEvolve_NoFailures(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(t))
	res, err := o.Run(context.Background(), config.TaskEvolve)
	require.NoError(t, err)
	r := res.Report.(*EvolveReport)
	assert.Zero(t, r.Failures)
	assert.Empty(t, r.Applied)
}

func TestProcessTasks_TopThreeReadyByPriority(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(t))
	store := o.Store()
	for _, pt := range []memory.PendingTask{
		{ID: "p1", Priority: 1},
		{ID: "p5", Priority: 5},
		{ID: "p3", Priority: 3},
		{ID: "p9", Priority: 9, Status: memory.TaskStatusPending},
		{ID: "p7", Priority: 7},
	} {
		require.NoError(t, store.AppendPendingTask(pt))
	}

	res, err := o.Run(context.Background(), config.TaskTask)
	require.NoError(t, err)
	r := res.Report.(*TaskReport)
	assert.Equal(t, 4, r.Ready)
	require.Len(t, r.Executed, 3)
	assert.Equal(t, []string{"p7", "p5", "p3"}, []string{r.Executed[0].ID, r.Executed[1].ID, r.Executed[2].ID})

	tasks, err := store.ReadPendingTasks()
	require.NoError(t, err)
	status := make(map[string]string, len(tasks))
	for _, pt := range tasks {
		status[pt.ID] = pt.Status
		if pt.Status == memory.TaskStatusDone {
			assert.NotNil(t, pt.CompletedAt)
		}
	}
	assert.Equal(t, map[string]string{
		"p1": memory.TaskStatusReady,
		"p5": memory.TaskStatusDone,
		"p3": memory.TaskStatusDone,
		"p9": memory.TaskStatusPending,
		"p7": memory.TaskStatusDone,
	}, status)
}

func TestQA_ReportsBrokenSkills(t *testing.T) {
	cfg := testConfig(t)
	o := newTestOrchestrator(t, cfg)
	writeSkill(t, cfg.Installer.SkillsRoot, "good", true)
	writeSkill(t, cfg.Installer.SkillsRoot, "empty", false)

	res, err := o.Run(context.Background(), config.TaskQA)
	require.NoError(t, err)
	r := res.Report.(*QAReport)

	assert.Equal(t, 2, r.Checked)
	assert.Equal(t, 1, r.Passed)
	assert.Equal(t, 1, r.Failed)
	require.Len(t, r.Failures, 1)
	assert.Equal(t, "empty", r.Failures[0].Skill)
	assert.Len(t, r.Failures[0].Suggestions, len(r.Failures[0].Problems))
	assert.Contains(t, r.Failures[0].Suggestions[0], consts.SkillDocFileName)
	assert.Len(t, r.Applied, 2)
}

func TestProactive_QueuesGapsOnce(t *testing.T) {
	cfg := testConfig(t)
	cfg.Proactive.Wanted = []string{"Self-Repair", "monitoring", "cron", "memory"}
	o := newTestOrchestrator(t, cfg)
	writeSkill(t, cfg.Installer.SkillsRoot, "self-repair", true)

	res, err := o.Run(context.Background(), config.TaskProactive)
	require.NoError(t, err)
	r := res.Report.(*ProactiveReport)
	assert.Equal(t, []string{"monitoring", "cron", "memory"}, r.Gaps)
	require.Len(t, r.Executed, maxOpportunities)
	assert.Equal(t, "monitoring", r.Executed[0].Target)

	_, err = o.Run(context.Background(), config.TaskProactive)
	require.NoError(t, err)

	tasks, err := o.Store().ReadPendingTasks()
	require.NoError(t, err)
	ids := make([]string, 0, len(tasks))
	for _, pt := range tasks {
		ids = append(ids, pt.ID)
		assert.Equal(t, memory.TaskStatusReady, pt.Status)
	}
	assert.Equal(t, []string{"gap:monitoring", "gap:cron"}, ids)
}

func TestProactive_DoneGapIsNotRequeued(t *testing.T) {
	cfg := testConfig(t)
	cfg.Proactive.Wanted = []string{"monitoring"}
	o := newTestOrchestrator(t, cfg)
	ctx := context.Background()

	_, err := o.Run(ctx, config.TaskProactive)
	require.NoError(t, err)
	res, err := o.Run(ctx, config.TaskTask)
	require.NoError(t, err)
	require.Len(t, res.Report.(*TaskReport).Executed, 1)

	for i := 0; i < 3; i++ {
		_, err = o.Run(ctx, config.TaskProactive)
		require.NoError(t, err)
	}

	tasks, err := o.Store().ReadPendingTasks()
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "gap:monitoring", tasks[0].ID)
	assert.Equal(t, memory.TaskStatusDone, tasks[0].Status)
}
