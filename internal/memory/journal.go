package memory

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/tgifai/skillhunt/internal/consts"
	"github.com/tgifai/skillhunt/internal/pkg/logs"
)

// Entry is one line of the per-day orchestrator journal.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	SessionID string         `json:"session_id"`
	LogID     string         `json:"log_id,omitempty"`
}

// Entry types besides the task names.
const (
	EntryError     = "error"
	EntryLifecycle = "lifecycle"
)

// Journal appends orchestrator events to memory/orchestrator/YYYY-MM-DD.jsonl.
type Journal struct {
	store     *Store
	sessionID string
}

func NewJournal(store *Store) *Journal {
	return &Journal{store: store, sessionID: uuid.NewString()}
}

func (j *Journal) SessionID() string {
	return j.sessionID
}

// Record appends one entry. Failures are logged, not returned: losing a
// journal line must never fail a task.
func (j *Journal) Record(ctx context.Context, typ, message string, data map[string]any) {
	e := Entry{
		Timestamp: j.store.now(),
		Type:      typ,
		Message:   message,
		Data:      data,
		SessionID: j.sessionID,
		LogID:     logs.GetLogID(ctx),
	}
	path := j.store.Path(consts.DailyJournalFile(e.Timestamp))
	if err := j.store.appendJSONL(path, e); err != nil {
		logs.CtxWarn(ctx, "[journal] append %s entry: %v", typ, err)
	}
}

// Day returns the entries recorded on t's calendar day.
func (j *Journal) Day(t time.Time) ([]Entry, error) {
	var out []Entry
	err := readJSONL(j.store.Path(consts.DailyJournalFile(t)), func(line string) error {
		var e Entry
		if err := sonic.UnmarshalString(line, &e); err != nil {
			return err
		}
		out = append(out, e)
		return nil
	})
	return out, err
}
