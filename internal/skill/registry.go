package skill

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bytedance/gg/gconv"
	"github.com/bytedance/gg/gmap"
	"github.com/bytedance/sonic"

	"github.com/tgifai/skillhunt/internal/consts"
	"github.com/tgifai/skillhunt/internal/pkg/logs"
)

// Installed is one skill directory found under the skills root.
type Installed struct {
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	Source        string         `json:"source,omitempty"`
	Path          string         `json:"path"`
	AutoInstalled bool           `json:"auto_installed"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	// Problems lists descriptor defects found while loading.
	Problems []string `json:"problems,omitempty"`
}

func (s *Installed) Healthy() bool {
	return len(s.Problems) == 0
}

// Registry is the inventory of installed skills. Each direct subdirectory
// of the root is one skill; nested SKILL.md files inside cloned repositories
// are not separate skills.
type Registry struct {
	root   string
	skills map[string]*Installed
	mu     sync.RWMutex
}

func NewRegistry(root string) *Registry {
	return &Registry{
		root:   root,
		skills: make(map[string]*Installed, 32),
	}
}

func (r *Registry) Root() string {
	return r.root
}

// Load rescans the skills root, replacing the previous inventory.
func (r *Registry) Load(ctx context.Context) error {
	entries, err := os.ReadDir(r.root)
	if os.IsNotExist(err) {
		logs.CtxDebug(ctx, "[skills] skills root does not exist: %s", r.root)
		r.replace(nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read skills root %s: %w", r.root, err)
	}

	loaded := make(map[string]*Installed, len(entries))
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		one := r.loadSkill(filepath.Join(r.root, e.Name()))
		if !one.Healthy() {
			logs.CtxWarn(ctx, "[skills] %s: %s", one.Name, strings.Join(one.Problems, "; "))
		}
		loaded[one.Name] = one
	}
	r.replace(loaded)

	logs.CtxInfo(ctx, "[skills] loaded %d installed skills from %s", len(loaded), r.root)
	return nil
}

func (r *Registry) replace(skills map[string]*Installed) {
	if skills == nil {
		skills = make(map[string]*Installed)
	}
	r.mu.Lock()
	r.skills = skills
	r.mu.Unlock()
}

func (r *Registry) loadSkill(dir string) *Installed {
	one := &Installed{Name: filepath.Base(dir), Path: dir}

	doc, err := os.ReadFile(filepath.Join(dir, consts.SkillDocFileName))
	if err != nil {
		one.Problems = append(one.Problems, fmt.Sprintf("%s unreadable: %v", consts.SkillDocFileName, err))
	} else if fm, _, err := ParseSkillDoc(string(doc)); err != nil {
		one.Problems = append(one.Problems, fmt.Sprintf("%s frontmatter: %v", consts.SkillDocFileName, err))
	} else {
		one.Description = fm.Description
		one.Metadata = fm.Metadata
		one.Source = gconv.To[string](fm.Metadata["source"])
		one.AutoInstalled = gconv.To[bool](fm.Metadata[AutoInstalledTag])
	}

	raw, err := os.ReadFile(filepath.Join(dir, consts.ManifestFileName))
	if err != nil {
		one.Problems = append(one.Problems, fmt.Sprintf("%s unreadable: %v", consts.ManifestFileName, err))
		return one
	}
	var m Manifest
	if err := sonic.Unmarshal(raw, &m); err != nil {
		one.Problems = append(one.Problems, fmt.Sprintf("%s invalid: %v", consts.ManifestFileName, err))
		return one
	}
	if strings.TrimSpace(m.Name) == "" {
		one.Problems = append(one.Problems, fmt.Sprintf("%s has no name", consts.ManifestFileName))
	}
	if one.Description == "" {
		one.Description = m.Description
	}
	if one.Source == "" {
		one.Source = string(m.Skillhunt.Source)
	}
	return one
}

func (r *Registry) Get(name string) (*Installed, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	one, ok := r.skills[name]
	if !ok {
		return nil, fmt.Errorf("skill not found: %s", name)
	}
	return one, nil
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.skills[name]
	return ok
}

// List returns installed skills sorted by name.
func (r *Registry) List() []*Installed {
	r.mu.RLock()
	out := gmap.ToSlice(r.skills, func(_ string, v *Installed) *Installed { return v })
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Missing returns the names in want that are not installed.
func (r *Registry) Missing(want []string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for _, name := range want {
		if _, ok := r.skills[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.skills)
}
