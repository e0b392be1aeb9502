package skill

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/tgifai/skillhunt/internal/config"
	"github.com/tgifai/skillhunt/internal/consts"
	"github.com/tgifai/skillhunt/internal/pkg/logs"
	"github.com/tgifai/skillhunt/internal/pkg/shell"
)

// Cloner fetches a repository into an existing, empty directory.
type Cloner interface {
	Clone(ctx context.Context, repo, dir string) error
}

// GitCloner runs a shallow git clone bounded by Timeout.
type GitCloner struct {
	Timeout time.Duration
}

func (g GitCloner) Clone(ctx context.Context, repo, dir string) error {
	_, err := shell.Run(ctx, shell.Argv("git", "clone", "--depth", "1", "--quiet", repo, dir), g.Timeout)
	return err
}

// Outcome says why Install did or did not install.
type Outcome string

const (
	OutcomeInstalled Outcome = "installed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeNoSource  Outcome = "no_source"
	OutcomeFailed    Outcome = "failed"
)

type InstallResult struct {
	Name      string        `json:"name"`
	Dir       string        `json:"dir,omitempty"`
	Installed bool          `json:"installed"`
	Outcome   Outcome       `json:"outcome"`
	Source    InstallSource `json:"-"`
	Cloned    bool          `json:"cloned"`
	Err       string        `json:"error,omitempty"`
}

type Installer struct {
	root      string
	repoHosts []string
	version   string
	cloner    Cloner
	now       func() time.Time
}

type InstallerOption func(*Installer)

// WithCloner replaces the git cloner; nil disables cloning.
func WithCloner(c Cloner) InstallerOption {
	return func(i *Installer) { i.cloner = c }
}

func NewInstaller(cfg config.InstallerConfig, opts ...InstallerOption) *Installer {
	i := &Installer{
		root:      cfg.SkillsRoot,
		repoHosts: cfg.RepoHosts,
		version:   cfg.ManifestVersion,
		now:       time.Now,
	}
	if !cfg.DisableClone {
		i.cloner = GitCloner{Timeout: time.Duration(cfg.CloneTimeoutSec) * time.Second}
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Installer) Root() string {
	return i.root
}

// Install materializes c under the skills root. It never returns an error:
// failures are logged and reported as Installed=false. The directory claim
// is a single os.Mkdir, so of two concurrent installs of one name exactly
// one wins.
func (i *Installer) Install(ctx context.Context, c Candidate) InstallResult {
	name := CanonicalName(c.Title)
	dir := filepath.Join(i.root, name)
	res := InstallResult{Name: name}

	if _, err := os.Lstat(dir); err == nil {
		res.Outcome = OutcomeDuplicate
		logs.CtxDebug(ctx, "[installer] %s already installed", name)
		return res
	}

	src, ok := ResolveSource(c, i.repoHosts)
	if !ok {
		res.Outcome = OutcomeNoSource
		logs.CtxInfo(ctx, "[installer] %s has no install source, skipping", name)
		return res
	}
	res.Source = src

	if err := os.MkdirAll(i.root, 0o755); err != nil {
		return i.fail(ctx, res, fmt.Errorf("create skills root: %w", err))
	}
	if err := os.Mkdir(dir, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			res.Outcome = OutcomeDuplicate
			return res
		}
		return i.fail(ctx, res, fmt.Errorf("claim %s: %w", dir, err))
	}
	res.Dir = dir

	if src.Repo != "" && i.cloner != nil {
		if err := i.cloner.Clone(ctx, src.Repo, dir); err != nil {
			logs.CtxWarn(ctx, "[installer] clone %s failed, writing stub files: %v", src.Repo, err)
			if err := emptyDir(dir); err != nil {
				_ = os.RemoveAll(dir)
				return i.fail(ctx, res, fmt.Errorf("reset %s after failed clone: %w", dir, err))
			}
		} else {
			res.Cloned = true
		}
	}

	if err := i.writeDescriptors(dir, name, c, src); err != nil {
		_ = os.RemoveAll(dir)
		res.Dir = ""
		return i.fail(ctx, res, err)
	}

	res.Installed = true
	res.Outcome = OutcomeInstalled
	logs.CtxInfo(ctx, "[installer] installed %s from %s (cloned=%v)", name, src.URL, res.Cloned)
	return res
}

func (i *Installer) fail(ctx context.Context, res InstallResult, err error) InstallResult {
	logs.CtxError(ctx, "[installer] install %s: %v", res.Name, err)
	res.Outcome = OutcomeFailed
	res.Err = err.Error()
	return res
}

// writeDescriptors creates the manifest and SKILL.md; files that already
// exist (for example from the cloned repository) are left alone.
func (i *Installer) writeDescriptors(dir, name string, c Candidate, src InstallSource) error {
	manifest, err := renderManifest(buildManifest(name, i.version, c, src, i.now()))
	if err != nil {
		return err
	}
	doc, err := renderSkillDoc(name, c, src)
	if err != nil {
		return err
	}

	files := []struct {
		name string
		data []byte
	}{
		{consts.ManifestFileName, manifest},
		{consts.SkillDocFileName, doc},
	}
	for _, f := range files {
		if err := writeNew(filepath.Join(dir, f.name), f.data); err != nil && !errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("write %s: %w", f.name, err)
		}
	}
	return nil
}

func emptyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
