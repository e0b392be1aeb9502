package prometheus

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry = prometheus.NewRegistry()

	TaskRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skillhunt",
		Name:      "task_runs_total",
		Help:      "Periodic task runs by task and outcome (ok, error, skipped).",
	}, []string{"task", "outcome"})

	TaskDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "skillhunt",
		Name:      "task_duration_seconds",
		Help:      "Wall time of periodic task runs.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
	}, []string{"task"})

	CandidatesDiscovered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skillhunt",
		Name:      "candidates_discovered_total",
		Help:      "Candidates returned by each platform scanner before dedup.",
	}, []string{"source"})

	SkillsInstalled = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "skillhunt",
		Name:      "skills_installed_total",
		Help:      "Skills materialized under the skills root.",
	})

	HealthGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "skillhunt",
		Name:      "health_ratio",
		Help:      "Latest health gauges (context, memory, disk_free, gateway_up).",
	}, []string{"gauge"})

	HealthIssues = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skillhunt",
		Name:      "health_issues_total",
		Help:      "Health issues detected by kind and severity.",
	}, []string{"kind", "severity"})
)

func init() {
	registry.MustRegister(TaskRuns, TaskDuration, CandidatesDiscovered, SkillsInstalled, HealthGauge, HealthIssues)
}

func GetRegistry() *prometheus.Registry {
	return registry
}

// ObserveTask records one finished run.
func ObserveTask(task, outcome string, elapsed time.Duration) {
	TaskRuns.WithLabelValues(task, outcome).Inc()
	if outcome != "skipped" {
		TaskDuration.WithLabelValues(task).Observe(elapsed.Seconds())
	}
}

// WriteTextfile dumps the registry in the node-exporter textfile format.
func WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
