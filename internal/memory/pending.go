package memory

import (
	"bufio"
	"bytes"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"

	"github.com/tgifai/skillhunt/internal/consts"
)

const (
	TaskStatusReady   = "ready"
	TaskStatusPending = "pending"
	TaskStatusDone    = "done"
)

// PendingTask is one queued work item in memory/pending-tasks.jsonl.
type PendingTask struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Status      string         `json:"status"`
	Priority    int            `json:"priority"`
	CreatedAt   time.Time      `json:"created_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
}

func (s *Store) pendingPath() string {
	return s.Path(filepath.Join(consts.MemoryDirName, consts.PendingTasksFile))
}

func (s *Store) ReadPendingTasks() ([]PendingTask, error) {
	var out []PendingTask
	err := readJSONL(s.pendingPath(), func(line string) error {
		var t PendingTask
		if err := sonic.UnmarshalString(line, &t); err != nil {
			return err
		}
		out = append(out, t)
		return nil
	})
	return out, err
}

// WritePendingTasks rewrites the whole queue.
func (s *Store) WritePendingTasks(tasks []PendingTask) error {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	return s.writePending(tasks)
}

func (s *Store) writePending(tasks []PendingTask) error {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	records := make([]any, 0, len(tasks))
	for _, t := range tasks {
		records = append(records, t)
	}
	if err := writeJSONLines(w, records); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return s.replace(s.pendingPath(), buf.Bytes())
}

// UpdatePendingTasks reads the queue, lets fn modify it and rewrites it when
// fn reports a change. No append can land between the read and the rewrite.
func (s *Store) UpdatePendingTasks(fn func(tasks []PendingTask) (changed bool)) error {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()

	tasks, err := s.ReadPendingTasks()
	if err != nil {
		return err
	}
	if !fn(tasks) {
		return nil
	}
	return s.writePending(tasks)
}

// AppendPendingTask queues one task without rewriting the file.
func (s *Store) AppendPendingTask(t PendingTask) error {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	return s.appendPending(t)
}

// QueuePendingTask appends t unless a task with the same id is already in the
// queue, whatever its status. It reports whether t was added.
func (s *Store) QueuePendingTask(t PendingTask) (bool, error) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()

	tasks, err := s.ReadPendingTasks()
	if err != nil {
		return false, err
	}
	for _, one := range tasks {
		if one.ID == t.ID {
			return false, nil
		}
	}
	return true, s.appendPending(t)
}

func (s *Store) appendPending(t PendingTask) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	if t.Status == "" {
		t.Status = TaskStatusReady
	}
	return s.appendJSONL(s.pendingPath(), t)
}
