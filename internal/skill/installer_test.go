package skill

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgifai/skillhunt/internal/config"
	"github.com/tgifai/skillhunt/internal/consts"
)

type fakeCloner struct {
	err   error
	calls atomic.Int32
	files map[string]string
}

func (f *fakeCloner) Clone(_ context.Context, _ string, dir string) error {
	f.calls.Add(1)
	for name, content := range f.files {
		_ = os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644)
	}
	return f.err
}

func newTestInstaller(t *testing.T, cloner Cloner) *Installer {
	t.Helper()
	cfg := &config.Config{Installer: config.InstallerConfig{SkillsRoot: filepath.Join(t.TempDir(), "skills")}}
	require.NoError(t, cfg.Validate())
	i := NewInstaller(cfg.Installer, WithCloner(cloner))
	i.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return i
}

func TestInstall_IdempotentAndNeverOverwrites(t *testing.T) {
	i := newTestInstaller(t, nil)
	c := Candidate{
		Title:        "My Cool Skill!!",
		Description:  "keeps the agent healthy",
		Source:       SourceClawHub,
		InstallURL:   "https://example.com/cool",
		QualityScore: 0.42,
		DiscoveredAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	first := i.Install(context.Background(), c)
	require.True(t, first.Installed)
	assert.Equal(t, OutcomeInstalled, first.Outcome)
	assert.Equal(t, "my-cool-skill", first.Name)

	dir := filepath.Join(i.Root(), "my-cool-skill")
	manifestBefore, err := os.ReadFile(filepath.Join(dir, consts.ManifestFileName))
	require.NoError(t, err)
	docBefore, err := os.ReadFile(filepath.Join(dir, consts.SkillDocFileName))
	require.NoError(t, err)

	c.Description = "changed"
	second := i.Install(context.Background(), c)
	assert.False(t, second.Installed)
	assert.Equal(t, OutcomeDuplicate, second.Outcome)

	manifestAfter, _ := os.ReadFile(filepath.Join(dir, consts.ManifestFileName))
	docAfter, _ := os.ReadFile(filepath.Join(dir, consts.SkillDocFileName))
	assert.Equal(t, manifestBefore, manifestAfter)
	assert.Equal(t, docBefore, docAfter)

	var m Manifest
	require.NoError(t, sonic.Unmarshal(manifestBefore, &m))
	assert.Equal(t, "my-cool-skill", m.Name)
	assert.Equal(t, "1.0.0", m.Version)
	assert.Equal(t, []string{AutoInstalledTag, "clawhub"}, m.Keywords)
	assert.Equal(t, "clawhub", m.Author, "author falls back to the source")
	assert.Equal(t, 0.42, m.Skillhunt.QualityScore)

	fm, body, err := ParseSkillDoc(string(docBefore))
	require.NoError(t, err)
	assert.Equal(t, "my-cool-skill", fm.Name)
	assert.Equal(t, "keeps the agent healthy", fm.Description)
	assert.Contains(t, body, "**Quality score**: 42%")
	assert.Contains(t, body, "https://example.com/cool")
}

func TestInstall_NoSourceCreatesNothing(t *testing.T) {
	i := newTestInstaller(t, nil)

	res := i.Install(context.Background(), Candidate{Title: "Orphan", Description: "no links here"})
	assert.False(t, res.Installed)
	assert.Equal(t, OutcomeNoSource, res.Outcome)

	_, err := os.Stat(i.Root())
	assert.True(t, errors.Is(err, os.ErrNotExist), "skills root must not be created")
}

func TestInstall_CloneThenKeepRepoDescriptors(t *testing.T) {
	cloner := &fakeCloner{files: map[string]string{consts.ManifestFileName: `{"name":"upstream"}`}}
	i := newTestInstaller(t, cloner)

	res := i.Install(context.Background(), Candidate{
		Title:    "agent-kit",
		Source:   SourceGitHub,
		CloneURL: "https://github.com/acme/agent-kit.git",
	})
	require.True(t, res.Installed)
	assert.True(t, res.Cloned)
	assert.EqualValues(t, 1, cloner.calls.Load())

	raw, err := os.ReadFile(filepath.Join(res.Dir, consts.ManifestFileName))
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"upstream"}`, string(raw), "existing manifest is not overwritten")
	assert.FileExists(t, filepath.Join(res.Dir, consts.SkillDocFileName))
}

func TestInstall_CloneFailureFallsBackToStubs(t *testing.T) {
	cloner := &fakeCloner{err: errors.New("exit status 128"), files: map[string]string{"partial": "x"}}
	i := newTestInstaller(t, cloner)

	res := i.Install(context.Background(), Candidate{
		Title:    "flaky-repo",
		Source:   SourceGitHub,
		CloneURL: "https://github.com/acme/flaky-repo.git",
	})
	require.True(t, res.Installed)
	assert.False(t, res.Cloned)
	assert.NoFileExists(t, filepath.Join(res.Dir, "partial"))
	assert.FileExists(t, filepath.Join(res.Dir, consts.ManifestFileName))
	assert.FileExists(t, filepath.Join(res.Dir, consts.SkillDocFileName))
}

func TestInstall_NonRepoSourceSkipsClone(t *testing.T) {
	cloner := &fakeCloner{}
	i := newTestInstaller(t, cloner)

	res := i.Install(context.Background(), Candidate{Title: "page", InstallURL: "https://clawhub.ai/skill/page"})
	require.True(t, res.Installed)
	assert.Zero(t, cloner.calls.Load())
}

func TestInstall_ConcurrentClaimHasOneWinner(t *testing.T) {
	i := newTestInstaller(t, nil)
	c := Candidate{Title: "Race Me", InstallURL: "https://example.com/race"}

	const n = 16
	var wg sync.WaitGroup
	var wins atomic.Int32
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i.Install(context.Background(), c).Installed {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins.Load())
}

func TestRegistryLoad(t *testing.T) {
	i := newTestInstaller(t, nil)
	ctx := context.Background()

	require.True(t, i.Install(ctx, Candidate{Title: "healthcheck", Source: SourceClawHub, InstallURL: "https://example.com/h"}).Installed)
	require.True(t, i.Install(ctx, Candidate{Title: "agent notes", Source: SourceGitHub, URL: "https://github.com/acme/notes"}).Installed)

	broken := filepath.Join(i.Root(), "broken")
	require.NoError(t, os.MkdirAll(broken, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(broken, consts.ManifestFileName), []byte("{"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(i.Root(), ".cache"), 0o755))

	r := NewRegistry(i.Root())
	require.NoError(t, r.Load(ctx))

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, []string{"agent-notes", "broken", "healthcheck"}, []string{list[0].Name, list[1].Name, list[2].Name})

	hc, err := r.Get("healthcheck")
	require.NoError(t, err)
	assert.True(t, hc.Healthy())
	assert.True(t, hc.AutoInstalled)
	assert.Equal(t, "clawhub", hc.Source)

	b, _ := r.Get("broken")
	assert.False(t, b.Healthy())
	assert.Len(t, b.Problems, 2)

	assert.Equal(t, []string{"self-repair"}, r.Missing([]string{"healthcheck", "self-repair"}))
	assert.True(t, r.Has("agent-notes"))

	empty := NewRegistry(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, empty.Load(ctx))
	assert.Zero(t, empty.Len())
}
