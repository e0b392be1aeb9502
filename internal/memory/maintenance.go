package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tgifai/skillhunt/internal/consts"
)

// PruneJournal removes daily journal files for days before cutoff and
// returns the removed paths.
func (s *Store) PruneJournal(cutoff time.Time) ([]string, error) {
	dir := consts.OrchestratorDir(s.workspace)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	day := time.Date(cutoff.Year(), cutoff.Month(), cutoff.Day(), 0, 0, 0, 0, cutoff.Location())
	var removed []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		t, err := time.ParseInLocation("2006-01-02", strings.TrimSuffix(name, ".jsonl"), cutoff.Location())
		if err != nil || !t.Before(day) {
			continue
		}
		path := filepath.Join(dir, name)
		if err := os.Remove(path); err != nil {
			return removed, fmt.Errorf("remove %s: %w", path, err)
		}
		removed = append(removed, path)
	}
	return removed, nil
}

// ClearStaleTemp removes temp files left behind by interrupted rewrites
// that are older than age.
func (s *Store) ClearStaleTemp(age time.Duration) ([]string, error) {
	cutoff := s.now().Add(-age)
	var removed []string
	for _, dir := range []string{consts.MemoryDir(s.workspace), consts.OrchestratorDir(s.workspace)} {
		matches, err := filepath.Glob(filepath.Join(dir, "*.tmp.*"))
		if err != nil {
			return removed, err
		}
		for _, path := range matches {
			info, err := os.Stat(path)
			if err != nil || info.IsDir() || info.ModTime().After(cutoff) {
				continue
			}
			if err := os.Remove(path); err != nil {
				return removed, fmt.Errorf("remove %s: %w", path, err)
			}
			removed = append(removed, path)
		}
	}
	return removed, nil
}
