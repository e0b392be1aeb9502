package skill

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"

	"github.com/tgifai/skillhunt/internal/pkg/utils"
)

const (
	AutoInstalledTag = "auto-installed"
	defaultEmoji     = "🤖"
	defaultCategory  = "automation"
	maxIntroLen      = 500
)

// Manifest is the package.json written next to every installed skill.
type Manifest struct {
	Name        string       `json:"name"`
	Version     string       `json:"version"`
	Description string       `json:"description"`
	Author      string       `json:"author"`
	Keywords    []string     `json:"keywords"`
	Skillhunt   ManifestMeta `json:"skillhunt"`
}

type ManifestMeta struct {
	Emoji        string  `json:"emoji"`
	Category     string  `json:"category"`
	Source       Source  `json:"source"`
	Homepage     string  `json:"homepage,omitempty"`
	QualityScore float64 `json:"quality_score"`
	InstalledAt  string  `json:"installed_at"`
}

// Frontmatter is the YAML header of SKILL.md.
type Frontmatter struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Metadata    map[string]any `yaml:"metadata,omitempty"`
}

var emojiByKeyword = []struct{ key, emoji string }{
	{"self", "🧬"}, {"automation", "⚡"}, {"agent", "🤖"},
	{"monitoring", "👁️"}, {"health", "💓"}, {"system", "🔧"},
	{"debugging", "🐛"}, {"testing", "🧪"}, {"learning", "📚"},
	{"memory", "🧠"}, {"workflow", "🔄"}, {"scheduler", "⏰"},
	{"cron", "⏰"}, {"proactive", "🎯"}, {"quality", "✨"},
	{"security", "🔐"}, {"cost", "💰"}, {"session", "📊"},
}

// Emoji picks an icon from the first keyword the name contains.
func Emoji(name string) string {
	name = strings.ToLower(name)
	for _, one := range emojiByKeyword {
		if strings.Contains(name, one.key) {
			return one.emoji
		}
	}
	return defaultEmoji
}

// Category buckets a candidate by its title and description.
func Category(c Candidate) string {
	text := strings.ToLower(c.Title + " " + c.Description)
	switch {
	case strings.Contains(text, "self"), strings.Contains(text, "auto"):
		return "self-improving"
	case strings.Contains(text, "monitor"), strings.Contains(text, "health"):
		return "monitoring"
	case strings.Contains(text, "debug"), strings.Contains(text, "test"):
		return "quality"
	case strings.Contains(text, "workflow"), strings.Contains(text, "schedule"):
		return "automation"
	case strings.Contains(text, "agent"):
		return "agent"
	default:
		return defaultCategory
	}
}

func intro(c Candidate) string {
	if d := strings.TrimSpace(c.Description); d != "" {
		return d
	}
	if body := strings.TrimSpace(c.Content); body != "" {
		return utils.Truncate(body, maxIntroLen)
	}
	return "Automatically installed skill."
}

func buildManifest(name, version string, c Candidate, src InstallSource, now time.Time) Manifest {
	return Manifest{
		Name:        name,
		Version:     version,
		Description: utils.Truncate(firstLine(intro(c)), 200),
		Author:      firstNonBlank(c.Author, string(c.Source)),
		Keywords:    []string{AutoInstalledTag, string(c.Source)},
		Skillhunt: ManifestMeta{
			Emoji:        Emoji(name),
			Category:     Category(c),
			Source:       c.Source,
			Homepage:     src.URL,
			QualityScore: c.QualityScore,
			InstalledAt:  now.UTC().Format(time.RFC3339),
		},
	}
}

func renderManifest(m Manifest) ([]byte, error) {
	raw, err := sonic.ConfigStd.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return append(raw, '\n'), nil
}

func renderSkillDoc(name string, c Candidate, src InstallSource) ([]byte, error) {
	fm := Frontmatter{
		Name:        name,
		Description: utils.Truncate(firstLine(intro(c)), 200),
		Metadata: map[string]any{
			"title":          c.Title,
			"source":         string(c.Source),
			"url":            src.URL,
			"quality_score":  c.QualityScore,
			"discovered_at":  c.DiscoveredAt.UTC().Format(time.RFC3339),
			"emoji":          Emoji(name),
			"category":       Category(c),
			AutoInstalledTag: true,
		},
	}
	head, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("marshal frontmatter: %w", err)
	}

	var b bytes.Buffer
	b.WriteString("---\n")
	b.Write(head)
	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "# %s\n\n", c.Title)
	fmt.Fprintf(&b, "**Source**: %s (auto-installed)  \n", c.Source)
	fmt.Fprintf(&b, "**Quality score**: %.0f%%  \n", c.QualityScore*100)
	fmt.Fprintf(&b, "**Discovered**: %s\n\n", c.DiscoveredAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "## Introduction\n\n%s\n\n", intro(c))
	fmt.Fprintf(&b, "## Install source\n\n%s\n\n", src.URL)
	b.WriteString("## Status\n\n")
	b.WriteString("- [x] Auto-installed\n")
	b.WriteString("- [ ] Tested\n")
	b.WriteString("- [ ] Reviewed\n")
	return b.Bytes(), nil
}

// ParseSkillDoc splits SKILL.md into its frontmatter and body.
func ParseSkillDoc(content string) (Frontmatter, string, error) {
	const startMarker, endMarker = "---\n", "\n---\n"

	var fm Frontmatter
	if !strings.HasPrefix(content, startMarker) {
		return fm, content, nil
	}
	endIdx := strings.Index(content[len(startMarker):], endMarker)
	if endIdx == -1 {
		return fm, "", errors.New("frontmatter end marker not found")
	}
	endIdx += len(startMarker)

	if err := yaml.Unmarshal([]byte(content[len(startMarker):endIdx]), &fm); err != nil {
		return fm, "", fmt.Errorf("parse frontmatter yaml: %w", err)
	}
	return fm, strings.TrimSpace(content[endIdx+len(endMarker):]), nil
}

// writeNew creates path and fails with fs.ErrExist rather than overwrite.
func writeNew(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
