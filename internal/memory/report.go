package memory

import (
	"path/filepath"
	"time"

	"github.com/tgifai/skillhunt/internal/consts"
)

// TaskRun summarizes the latest run of one task kind.
type TaskRun struct {
	StartedAt time.Time      `json:"started_at"`
	Duration  string         `json:"duration"`
	OK        bool           `json:"ok"`
	Error     string         `json:"error,omitempty"`
	Summary   map[string]any `json:"summary,omitempty"`
}

// Failure is an error worth feeding back into the evolve task.
type Failure struct {
	Task      string    `json:"task"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Report is written to final-report.json when the loop stops.
type Report struct {
	Timestamp time.Time          `json:"timestamp"`
	StartedAt time.Time          `json:"started_at"`
	UptimeSec int64              `json:"uptime_sec"`
	Uptime    string             `json:"uptime"`
	Counters  map[string]int64   `json:"counters"`
	LastRuns  map[string]TaskRun `json:"last_runs,omitempty"`
	Failures  []Failure          `json:"failures,omitempty"`
}

// Status is the live snapshot rewritten after every task run.
type Status struct {
	PID       int                `json:"pid"`
	Running   bool               `json:"running"`
	StartedAt time.Time          `json:"started_at,omitempty"`
	UpdatedAt time.Time          `json:"updated_at"`
	UptimeSec int64              `json:"uptime_sec"`
	Counters  map[string]int64   `json:"counters"`
	LastRuns  map[string]TaskRun `json:"last_runs,omitempty"`
}

func (s *Store) reportPath() string {
	return filepath.Join(consts.OrchestratorDir(s.workspace), consts.FinalReportFile)
}

func (s *Store) statusPath() string {
	return filepath.Join(consts.OrchestratorDir(s.workspace), consts.StatusFile)
}

// MetricsPath is where the prometheus textfile is written.
func (s *Store) MetricsPath() string {
	return filepath.Join(consts.OrchestratorDir(s.workspace), consts.MetricsFile)
}

func (s *Store) WriteReport(r *Report) error {
	return s.replaceJSON(s.reportPath(), r)
}

// ReadReport returns nil without error when no report exists yet.
func (s *Store) ReadReport() (*Report, error) {
	var r Report
	ok, err := readJSON(s.reportPath(), &r)
	if err != nil || !ok {
		return nil, err
	}
	return &r, nil
}

func (s *Store) WriteStatus(st *Status) error {
	return s.replaceJSON(s.statusPath(), st)
}

func (s *Store) ReadStatus() (*Status, error) {
	var st Status
	ok, err := readJSON(s.statusPath(), &st)
	if err != nil || !ok {
		return nil, err
	}
	return &st, nil
}
