package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tgifai/skillhunt"
	"github.com/tgifai/skillhunt/internal/config"
	"github.com/tgifai/skillhunt/internal/memory"
	"github.com/tgifai/skillhunt/internal/pkg/httpc"
	"github.com/tgifai/skillhunt/internal/pkg/logs"
	"github.com/tgifai/skillhunt/internal/pkg/prometheus"
	"github.com/tgifai/skillhunt/internal/scanner"
	"github.com/tgifai/skillhunt/internal/schedule"
	"github.com/tgifai/skillhunt/internal/skill"
)

var (
	ErrAlreadyRunning = errors.New("orchestrator already running")
	ErrNotRunning     = errors.New("orchestrator not running")
	ErrBusy           = errors.New("task already running")
	ErrUnknownTask    = errors.New("unknown task")
)

// maxFailures bounds the failure history carried into reports.
const maxFailures = 50

// Report is the task-specific result of one run.
type Report interface {
	Summary() map[string]any
}

// Result wraps one task run for the CLI and the status file.
type Result struct {
	Task      string    `json:"task"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`
	OK        bool      `json:"ok"`
	Error     string    `json:"error,omitempty"`
	Report    Report    `json:"report,omitempty"`
}

type taskFunc func(ctx context.Context) (Report, error)

// Orchestrator owns the six periodic tasks and their counters. Its state
// lives from New until the process exits; only the final report outlives it.
type Orchestrator struct {
	cfg        *config.Config
	store      *memory.Store
	journal    *memory.Journal
	client     *httpc.Client
	aggregator *scanner.Aggregator
	scorer     *skill.Scorer
	filter     *skill.NeedFilter
	installer  *skill.Installer
	registry   *skill.Registry
	stats      SystemStats
	now        func() time.Time

	scanners      []scanner.Scanner
	installerOpts []skill.InstallerOption

	tasks    map[string]taskFunc
	busy     map[string]*atomic.Bool
	counters map[string]*atomic.Int64

	mu        sync.Mutex
	running   bool
	startedAt time.Time
	sched     *schedule.Scheduler

	lastMu   sync.Mutex
	lastRuns map[string]memory.TaskRun
	failures []memory.Failure
}

type Option func(*Orchestrator)

// WithHTTPClient replaces the client used by scanners and health checks.
func WithHTTPClient(c *httpc.Client) Option {
	return func(o *Orchestrator) { o.client = c }
}

// WithScanners replaces the scanners built from the platform config.
// Passing none disables scanning.
func WithScanners(s ...scanner.Scanner) Option {
	return func(o *Orchestrator) { o.scanners = append([]scanner.Scanner{}, s...) }
}

// WithCloner replaces the git cloner used by the installer.
func WithCloner(c skill.Cloner) Option {
	return func(o *Orchestrator) { o.installerOpts = append(o.installerOpts, skill.WithCloner(c)) }
}

func WithSystemStats(s SystemStats) Option {
	return func(o *Orchestrator) { o.stats = s }
}

func New(cfg *config.Config, opts ...Option) (*Orchestrator, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	store, err := memory.NewStore(cfg.Workspace)
	if err != nil {
		return nil, fmt.Errorf("open workspace: %w", err)
	}

	o := &Orchestrator{
		cfg:      cfg,
		store:    store,
		journal:  memory.NewJournal(store),
		stats:    hostStats{},
		now:      time.Now,
		busy:     make(map[string]*atomic.Bool, len(config.TaskNames)),
		counters: make(map[string]*atomic.Int64, len(config.TaskNames)),
		lastRuns: make(map[string]memory.TaskRun, len(config.TaskNames)),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.client == nil {
		o.client = httpc.New(httpc.WithUserAgent(skillhunt.UserAgent()))
	}
	if o.scanners == nil {
		o.scanners = scanner.FromConfig(cfg, o.client)
	}

	o.aggregator = scanner.NewAggregator(0, o.scanners...)
	o.scorer = skill.NewScorer(cfg.Learning)
	o.filter = skill.NewNeedFilter(cfg.Learning)
	o.installer = skill.NewInstaller(cfg.Installer, o.installerOpts...)
	o.registry = skill.NewRegistry(cfg.Installer.SkillsRoot)
	o.startedAt = o.now()

	o.tasks = map[string]taskFunc{
		config.TaskHealth:    o.health,
		config.TaskLearn:     o.learn,
		config.TaskEvolve:    o.evolve,
		config.TaskTask:      o.processTasks,
		config.TaskQA:        o.qa,
		config.TaskProactive: o.proactive,
	}
	for _, name := range config.TaskNames {
		o.busy[name] = new(atomic.Bool)
		o.counters[name] = new(atomic.Int64)
	}
	return o, nil
}

// Store exposes the workspace files for read-only CLI commands.
func (o *Orchestrator) Store() *memory.Store {
	return o.store
}

// Registry returns the installed-skill inventory, rescanned from disk.
func (o *Orchestrator) Registry(ctx context.Context) (*skill.Registry, error) {
	if err := o.registry.Load(ctx); err != nil {
		return nil, err
	}
	return o.registry, nil
}

// Start arms the scheduler with every enabled task.
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.start(ctx); err != nil {
		return err
	}
	o.writeStatus(ctx)
	return nil
}

func (o *Orchestrator) start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return ErrAlreadyRunning
	}

	sched := schedule.NewScheduler(o.cfg.Orchestrator)
	for _, name := range config.TaskNames {
		ts := o.cfg.Orchestrator.Tasks[name]
		if !ts.IsEnabled() {
			logs.CtxInfo(ctx, "[orchestrator] task %s disabled", name)
			continue
		}
		kind := name
		err := sched.Add(schedule.Job{
			ID:       kind,
			Type:     schedule.Type(ts.Type),
			Schedule: ts.Schedule,
			Run: func(ctx context.Context) error {
				_, err := o.Run(ctx, kind)
				if errors.Is(err, ErrBusy) {
					return nil
				}
				return err
			},
		})
		if err != nil {
			return fmt.Errorf("schedule %s: %w", kind, err)
		}
	}

	// Scheduled runs end on Stop, not when the caller's context ends.
	if err := sched.Start(context.WithoutCancel(ctx)); err != nil {
		return err
	}

	o.sched = sched
	o.running = true
	o.startedAt = o.now()
	o.journal.Record(ctx, memory.EntryLifecycle, "orchestrator started", map[string]any{
		"tasks": sched.Len(),
		"pid":   os.Getpid(),
	})
	logs.CtxInfo(ctx, "[orchestrator] started with %d tasks", sched.Len())
	return nil
}

// Stop halts future runs, signals in-flight runs to wind down and waits for
// them until ctx expires, then writes the final report.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return ErrNotRunning
	}
	o.running = false
	sched := o.sched
	o.sched = nil
	o.mu.Unlock()

	waitErr := sched.Stop(ctx)
	if waitErr != nil {
		logs.CtxWarn(ctx, "[orchestrator] in-flight tasks still running at stop: %v", waitErr)
	}

	report := o.finalReport()
	if err := o.store.WriteReport(report); err != nil {
		logs.CtxError(ctx, "[orchestrator] write final report: %v", err)
	}
	o.journal.Record(ctx, memory.EntryLifecycle, "orchestrator stopped", map[string]any{
		"uptime_sec": report.UptimeSec,
		"counters":   report.Counters,
	})
	o.writeStatus(ctx)
	logs.CtxInfo(ctx, "[orchestrator] stopped after %s", report.Uptime)
	return nil
}

func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// Counters returns a snapshot of the per-task run counters.
func (o *Orchestrator) Counters() map[string]int64 {
	out := make(map[string]int64, len(o.counters))
	for name, c := range o.counters {
		out[name] = c.Load()
	}
	return out
}

func (o *Orchestrator) Uptime() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.now().Sub(o.startedAt)
}

// Run executes one task synchronously. A second Run of a kind that is still
// executing returns ErrBusy immediately; runs are never queued.
func (o *Orchestrator) Run(ctx context.Context, kind string) (*Result, error) {
	fn, ok := o.tasks[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, kind)
	}
	busy := o.busy[kind]
	if !busy.CompareAndSwap(false, true) {
		logs.CtxInfo(ctx, "[orchestrator] %s still running, skipping", kind)
		prometheus.ObserveTask(kind, "skipped", 0)
		return nil, ErrBusy
	}
	defer busy.Store(false)

	ctx = logs.WithTask(ctx, kind)
	if logs.GetLogID(ctx) == "" {
		ctx = logs.SetLogID(ctx, logs.NewLogID())
	}

	start := o.now()
	logs.CtxInfo(ctx, "[orchestrator] %s started", kind)
	report, err := o.safeRun(ctx, kind, fn)
	elapsed := o.now().Sub(start)
	o.counters[kind].Add(1)

	res := &Result{
		Task:      kind,
		StartedAt: start,
		Duration:  elapsed.Round(time.Millisecond).String(),
		OK:        err == nil,
		Report:    report,
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
		res.Error = err.Error()
		o.journal.Record(ctx, memory.EntryError, fmt.Sprintf("%s failed: %v", kind, err), map[string]any{"task": kind})
		logs.CtxError(ctx, "[orchestrator] %s failed after %s: %v", kind, res.Duration, err)
	} else {
		logs.CtxInfo(ctx, "[orchestrator] %s finished in %s", kind, res.Duration)
	}
	prometheus.ObserveTask(kind, outcome, elapsed)
	o.recordRun(res)
	// One-shot CLI runs must not clobber a running loop's status file.
	if o.Running() {
		o.writeStatus(ctx)
	}
	return res, err
}

func (o *Orchestrator) safeRun(ctx context.Context, kind string, fn taskFunc) (report Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			logs.CtxError(ctx, "[orchestrator] %s panicked: %v", kind, r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

func (o *Orchestrator) recordRun(res *Result) {
	run := memory.TaskRun{
		StartedAt: res.StartedAt,
		Duration:  res.Duration,
		OK:        res.OK,
		Error:     res.Error,
	}
	if res.Report != nil {
		run.Summary = res.Report.Summary()
	}

	o.lastMu.Lock()
	defer o.lastMu.Unlock()
	o.lastRuns[res.Task] = run
	if !res.OK {
		o.failures = append(o.failures, memory.Failure{
			Task:      res.Task,
			Message:   res.Error,
			Timestamp: res.StartedAt,
		})
		if len(o.failures) > maxFailures {
			o.failures = o.failures[len(o.failures)-maxFailures:]
		}
	}
}

func (o *Orchestrator) snapshotRuns() (map[string]memory.TaskRun, []memory.Failure) {
	o.lastMu.Lock()
	defer o.lastMu.Unlock()
	runs := make(map[string]memory.TaskRun, len(o.lastRuns))
	for k, v := range o.lastRuns {
		runs[k] = v
	}
	return runs, append([]memory.Failure(nil), o.failures...)
}

func (o *Orchestrator) finalReport() *memory.Report {
	now := o.now()
	o.mu.Lock()
	started := o.startedAt
	o.mu.Unlock()
	uptime := now.Sub(started)

	runs, failures := o.snapshotRuns()
	return &memory.Report{
		Timestamp: now,
		StartedAt: started,
		UptimeSec: int64(uptime.Seconds()),
		Uptime:    uptime.Round(time.Second).String(),
		Counters:  o.Counters(),
		LastRuns:  runs,
		Failures:  failures,
	}
}

// writeStatus refreshes status.json and the metrics textfile. It takes o.mu,
// so callers must not hold it.
func (o *Orchestrator) writeStatus(ctx context.Context) {
	now := o.now()
	o.mu.Lock()
	running, started := o.running, o.startedAt
	o.mu.Unlock()

	runs, _ := o.snapshotRuns()
	st := &memory.Status{
		PID:       os.Getpid(),
		Running:   running,
		StartedAt: started,
		UpdatedAt: now,
		UptimeSec: int64(now.Sub(started).Seconds()),
		Counters:  o.Counters(),
		LastRuns:  runs,
	}
	if err := o.store.WriteStatus(st); err != nil {
		logs.CtxWarn(ctx, "[orchestrator] write status: %v", err)
	}
	if err := prometheus.WriteTextfile(o.store.MetricsPath()); err != nil {
		logs.CtxWarn(ctx, "[orchestrator] write metrics: %v", err)
	}
}
