package memory

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"github.com/tgifai/skillhunt/internal/consts"
	"github.com/tgifai/skillhunt/internal/pkg/logs"
)

// Store owns the files under <workspace>/memory. Writes from one process are
// serialized; the files are append-only or replaced by rename.
type Store struct {
	workspace string
	mu        sync.Mutex
	// queueMu makes read-modify-write of the pending queue atomic.
	queueMu sync.Mutex
	now     func() time.Time
}

func NewStore(workspace string) (*Store, error) {
	if strings.TrimSpace(workspace) == "" {
		return nil, fmt.Errorf("workspace cannot be empty")
	}
	abs, err := filepath.Abs(workspace)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace: %w", err)
	}
	if err := os.MkdirAll(consts.OrchestratorDir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("create memory dir: %w", err)
	}
	return &Store{workspace: abs, now: time.Now}, nil
}

func (s *Store) Workspace() string {
	return s.workspace
}

// Path resolves a workspace-relative path.
func (s *Store) Path(rel string) string {
	return filepath.Join(s.workspace, rel)
}

func (s *Store) appendJSONL(path string, records ...any) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}
	out, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s for append: %w", path, err)
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	if err := writeJSONLines(w, records); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return nil
}

func (s *Store) appendText(path, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}
	out, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s for append: %w", path, err)
	}
	if _, err := out.WriteString(text); err != nil {
		_ = out.Close()
		return fmt.Errorf("append %s: %w", path, err)
	}
	return out.Close()
}

// replace writes data to path through a temp file and rename.
func (s *Store) replace(path string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func (s *Store) replaceJSON(path string, v any) error {
	raw, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	return s.replace(path, append(raw, '\n'))
}

func readJSON(path string, v any) (bool, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if err := sonic.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}

// readJSONL decodes every line of path with decode. Lines that fail to
// decode are logged and skipped.
func readJSONL(path string, decode func(line string) error) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := decode(line); err != nil {
			logs.Warn("[memory] %s:%d: skipping malformed record: %v", filepath.Base(path), lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan %s: %w", path, err)
	}
	return nil
}

func writeJSONLines(w *bufio.Writer, records []any) error {
	for _, rec := range records {
		line, err := sonic.MarshalString(rec)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := w.WriteString(line + "\n"); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	return nil
}
