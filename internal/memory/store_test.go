package memory

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgifai/skillhunt/internal/consts"
	"github.com/tgifai/skillhunt/internal/skill"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2026, 3, 4, 10, 0, 0, 0, time.Local) }
	return s
}

func TestJournalRecordAndDay(t *testing.T) {
	s := newTestStore(t)
	j := NewJournal(s)
	ctx := context.Background()

	j.Record(ctx, "learn", "installed 2 skills", map[string]any{"installed": 2})
	j.Record(ctx, EntryError, "clawhub unreachable", nil)

	path := s.Path(consts.DailyJournalFile(s.now()))
	assert.True(t, strings.HasSuffix(path, filepath.Join("memory", "orchestrator", "2026-03-04.jsonl")))

	entries, err := j.Day(s.now())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "learn", entries[0].Type)
	assert.EqualValues(t, 2, entries[0].Data["installed"])
	assert.Equal(t, j.SessionID(), entries[1].SessionID)
	assert.NotEmpty(t, j.SessionID())

	other, err := j.Day(s.now().AddDate(0, 0, -1))
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestDiscoveriesAppendOnly(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.AppendDiscoveries([]Discovery{
		{Candidate: skill.Candidate{Title: "a", Source: skill.SourceGitHub, QualityScore: 0.7}, AutoInstalled: true},
		{Candidate: skill.Candidate{Title: "b", Source: skill.SourceClawHub}},
	}))
	require.NoError(t, s.AppendDiscoveries([]Discovery{{Candidate: skill.Candidate{Title: "c"}}}))
	require.NoError(t, s.AppendDiscoveries(nil))

	got, err := s.ReadDiscoveries()
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].Title)
	assert.True(t, got[0].AutoInstalled)
	assert.Equal(t, 0.7, got[0].QualityScore)
	assert.False(t, got[1].AutoInstalled)
	assert.Equal(t, "c", got[2].Title)
}

func TestAppendNotes(t *testing.T) {
	s := newTestStore(t)
	at := s.now()

	require.NoError(t, s.AppendNotes([]Note{{
		Title: "Self Repair", Name: "self-repair", Source: skill.SourceGitHub,
		QualityScore: 0.83, URL: "https://github.com/acme/self-repair",
		Repo: "https://github.com/acme/self-repair.git", InstalledAt: at,
	}}))
	require.NoError(t, s.AppendNotes(nil))

	raw, err := os.ReadFile(s.Path(consts.DailyNotesFile(at)))
	require.NoError(t, err)
	text := string(raw)
	assert.Contains(t, text, "Auto-installed skill: Self Repair")
	assert.Contains(t, text, "**Quality**: 83%")
	assert.Contains(t, text, "**Repository**: https://github.com/acme/self-repair.git")
}

func TestReportOverwritten(t *testing.T) {
	s := newTestStore(t)

	r, err := s.ReadReport()
	require.NoError(t, err)
	assert.Nil(t, r)

	require.NoError(t, s.WriteReport(&Report{Counters: map[string]int64{"learn": 1}}))
	require.NoError(t, s.WriteReport(&Report{Counters: map[string]int64{"learn": 4}, UptimeSec: 9}))

	r, err = s.ReadReport()
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.EqualValues(t, 4, r.Counters["learn"])
	assert.EqualValues(t, 9, r.UptimeSec)

	leftovers, _ := filepath.Glob(filepath.Join(consts.OrchestratorDir(s.Workspace()), "*.tmp.*"))
	assert.Empty(t, leftovers)
}

func TestPendingTasksRoundTrip(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.AppendPendingTask(PendingTask{ID: "1", Title: "first", Priority: 1}))
	require.NoError(t, s.AppendPendingTask(PendingTask{ID: "2", Title: "second", Status: TaskStatusPending}))

	// A hand-edited bad line must not hide the good ones.
	f, err := os.OpenFile(s.pendingPath(), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, _ = f.WriteString("{not json\n")
	require.NoError(t, f.Close())

	tasks, err := s.ReadPendingTasks()
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, TaskStatusReady, tasks[0].Status)
	assert.False(t, tasks[0].CreatedAt.IsZero())

	done := s.now()
	tasks[0].Status = TaskStatusDone
	tasks[0].CompletedAt = &done
	require.NoError(t, s.WritePendingTasks(tasks))

	again, err := s.ReadPendingTasks()
	require.NoError(t, err)
	require.Len(t, again, 2)
	assert.Equal(t, TaskStatusDone, again[0].Status)
	require.NotNil(t, again[0].CompletedAt)
}

func TestNewStoreRejectsEmptyWorkspace(t *testing.T) {
	_, err := NewStore(" ")
	assert.Error(t, err)
}

func TestPruneJournal(t *testing.T) {
	s := newTestStore(t)
	dir := consts.OrchestratorDir(s.Workspace())
	for _, name := range []string{"2026-02-01.jsonl", "2026-03-03.jsonl", "2026-03-04.jsonl", "status.json", "notes.jsonl"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{}\n"), 0o644))
	}

	removed, err := s.PruneJournal(s.now().AddDate(0, 0, -1))
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, "2026-02-01.jsonl", filepath.Base(removed[0]))

	for _, keep := range []string{"2026-03-03.jsonl", "2026-03-04.jsonl", "status.json", "notes.jsonl"} {
		assert.FileExists(t, filepath.Join(dir, keep))
	}
}

func TestClearStaleTemp(t *testing.T) {
	s := newTestStore(t)
	dir := consts.OrchestratorDir(s.Workspace())
	stale := filepath.Join(dir, "status.json.tmp.123")
	fresh := filepath.Join(dir, "final-report.json.tmp.456")
	require.NoError(t, os.WriteFile(stale, nil, 0o644))
	require.NoError(t, os.WriteFile(fresh, nil, 0o644))
	old := s.now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))
	recent := s.now()
	require.NoError(t, os.Chtimes(fresh, recent, recent))

	removed, err := s.ClearStaleTemp(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{stale}, removed)
	assert.NoFileExists(t, stale)
	assert.FileExists(t, fresh)
}

func TestQueuePendingTaskSkipsKnownIDs(t *testing.T) {
	s := newTestStore(t)

	added, err := s.QueuePendingTask(PendingTask{ID: "gap:cron"})
	require.NoError(t, err)
	assert.True(t, added)
	added, err = s.QueuePendingTask(PendingTask{ID: "gap:cron"})
	require.NoError(t, err)
	assert.False(t, added)

	require.NoError(t, s.UpdatePendingTasks(func(tasks []PendingTask) bool {
		tasks[0].Status = TaskStatusDone
		return true
	}))
	added, err = s.QueuePendingTask(PendingTask{ID: "gap:cron"})
	require.NoError(t, err)
	assert.False(t, added, "a done task keeps its id claimed")

	tasks, err := s.ReadPendingTasks()
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, TaskStatusDone, tasks[0].Status)
}

func TestUpdatePendingTasksKeepsConcurrentAppends(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AppendPendingTask(PendingTask{ID: "seed"}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.AppendPendingTask(PendingTask{ID: "t" + strconv.Itoa(i)})
		}()
		go func() {
			defer wg.Done()
			_ = s.UpdatePendingTasks(func(tasks []PendingTask) bool {
				for j := range tasks {
					tasks[j].Priority++
				}
				return true
			})
		}()
	}
	wg.Wait()

	tasks, err := s.ReadPendingTasks()
	require.NoError(t, err)
	assert.Len(t, tasks, 21)
	assert.Equal(t, "seed", tasks[0].ID)
	assert.Equal(t, 20, tasks[0].Priority)
}
