package consts

import (
	"os"
	"path/filepath"
	"time"
)

const (
	HomeDirName    = ".skillhunt"
	HomeEnv        = "SKILLHUNT_HOME"
	ConfigFileName = "config.yaml"
	SkillsDirName  = "skills"
	PIDFileName    = "skillhunt.pid"

	MemoryDirName       = "memory"
	OrchestratorDirName = "orchestrator"
	DiscoveryLogFile    = "discovered-skills.jsonl"
	PendingTasksFile    = "pending-tasks.jsonl"
	FinalReportFile     = "final-report.json"
	StatusFile          = "status.json"
	MetricsFile         = "metrics.prom"

	ManifestFileName = "package.json"
	SkillDocFileName = "SKILL.md"
)

// HomeDir returns $SKILLHUNT_HOME, or ~/.skillhunt when unset.
func HomeDir() string {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, HomeDirName)
}

func DefaultConfigPath() string {
	return filepath.Join(HomeDir(), ConfigFileName)
}

func DefaultWorkspaceDir() string {
	return filepath.Join(HomeDir(), "workspace")
}

func DefaultSkillsDir() string {
	return filepath.Join(HomeDir(), SkillsDirName)
}

func PIDFilePath() string {
	return filepath.Join(HomeDir(), PIDFileName)
}

// MemoryDir is where notes, discovery logs and orchestrator state live.
func MemoryDir(workspace string) string {
	return filepath.Join(workspace, MemoryDirName)
}

func OrchestratorDir(workspace string) string {
	return filepath.Join(MemoryDir(workspace), OrchestratorDirName)
}

// DailyNotesFile is the workspace-relative path of the notes file for day t.
func DailyNotesFile(t time.Time) string {
	return filepath.Join(MemoryDirName, t.Format("2006-01-02")+".md")
}

// DailyJournalFile is the workspace-relative path of the orchestrator event log for day t.
func DailyJournalFile(t time.Time) string {
	return filepath.Join(MemoryDirName, OrchestratorDirName, t.Format("2006-01-02")+".jsonl")
}
