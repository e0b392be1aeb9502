package memory

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/tgifai/skillhunt/internal/consts"
	"github.com/tgifai/skillhunt/internal/skill"
)

// Discovery is one scored candidate from one learning run.
type Discovery struct {
	skill.Candidate
	Needed        bool   `json:"needed"`
	AutoInstalled bool   `json:"auto_installed"`
	InstallName   string `json:"install_name,omitempty"`
	RunID         string `json:"run_id,omitempty"`
}

func (s *Store) discoveryLogPath() string {
	return s.Path(filepath.Join(consts.MemoryDirName, consts.DiscoveryLogFile))
}

// AppendDiscoveries adds one line per record to the discovery log.
func (s *Store) AppendDiscoveries(records []Discovery) error {
	batch := make([]any, 0, len(records))
	for _, r := range records {
		batch = append(batch, r)
	}
	return s.appendJSONL(s.discoveryLogPath(), batch...)
}

func (s *Store) ReadDiscoveries() ([]Discovery, error) {
	var out []Discovery
	err := readJSONL(s.discoveryLogPath(), func(line string) error {
		var d Discovery
		if err := sonic.UnmarshalString(line, &d); err != nil {
			return err
		}
		out = append(out, d)
		return nil
	})
	return out, err
}

// Note is the human-readable record of one newly installed skill.
type Note struct {
	Title        string
	Name         string
	Source       skill.Source
	QualityScore float64
	URL          string
	Repo         string
	InstalledAt  time.Time
}

// AppendNotes adds one markdown block per note to the dated notes file.
func (s *Store) AppendNotes(notes []Note) error {
	if len(notes) == 0 {
		return nil
	}
	day := notes[0].InstalledAt
	if day.IsZero() {
		day = s.now()
	}

	var b strings.Builder
	for _, n := range notes {
		fmt.Fprintf(&b, "\n### %s Auto-installed skill: %s\n\n", skill.Emoji(n.Name), n.Title)
		fmt.Fprintf(&b, "- **Name**: %s\n", n.Name)
		fmt.Fprintf(&b, "- **Source**: %s\n", n.Source)
		fmt.Fprintf(&b, "- **Quality**: %.0f%%\n", n.QualityScore*100)
		fmt.Fprintf(&b, "- **Time**: %s\n", n.InstalledAt.Format(time.RFC3339))
		if n.URL != "" {
			fmt.Fprintf(&b, "- **Link**: %s\n", n.URL)
		}
		if n.Repo != "" && n.Repo != n.URL {
			fmt.Fprintf(&b, "- **Repository**: %s\n", n.Repo)
		}
	}
	return s.appendText(s.Path(consts.DailyNotesFile(day)), b.String())
}
