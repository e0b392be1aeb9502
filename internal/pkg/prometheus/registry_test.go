package prometheus

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveTask(t *testing.T) {
	before := testutil.ToFloat64(TaskRuns.WithLabelValues("qa", "ok"))
	ObserveTask("qa", "ok", 10*time.Millisecond)
	ObserveTask("qa", "skipped", 0)

	if got := testutil.ToFloat64(TaskRuns.WithLabelValues("qa", "ok")); got != before+1 {
		t.Fatalf("qa ok runs = %v, want %v", got, before+1)
	}
	if got := testutil.ToFloat64(TaskRuns.WithLabelValues("qa", "skipped")); got < 1 {
		t.Fatalf("qa skipped runs = %v", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	SkillsInstalled.Inc()
	path := filepath.Join(t.TempDir(), "orchestrator", "metrics.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("write: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "skillhunt_skills_installed_total") {
		t.Fatalf("metrics file missing counter:\n%s", raw)
	}
}
