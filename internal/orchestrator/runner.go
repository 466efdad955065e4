package orchestrator

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/sugarshin/frrr-boilerplate/internal/config"
	"github.com/sugarshin/frrr-boilerplate/internal/events"
	ferrors "github.com/sugarshin/frrr-boilerplate/internal/foundation/errors"
	"github.com/sugarshin/frrr-boilerplate/internal/logfields"
	"github.com/sugarshin/frrr-boilerplate/internal/metrics"
	"github.com/sugarshin/frrr-boilerplate/internal/precompile"
	tg "github.com/sugarshin/frrr-boilerplate/internal/taskgraph"
	"github.com/sugarshin/frrr-boilerplate/internal/tools"
)

// publishTimeout bounds how long a slow subscriber can hold up a task.
const publishTimeout = 5 * time.Second

// Runner executes targets against one configuration.
type Runner struct {
	cfg      *config.Config
	registry *Registry
	bus      *events.Bus
	recorder metrics.Recorder
	revision func() string
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithBus publishes lifecycle events on b.
func WithBus(b *events.Bus) RunnerOption { return func(r *Runner) { r.bus = b } }

// WithRecorder records task and run metrics.
func WithRecorder(rec metrics.Recorder) RunnerOption {
	return func(r *Runner) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// NewRunner returns a runner for cfg.
func NewRunner(cfg *config.Config, registry *Registry, opts ...RunnerOption) *Runner {
	r := &Runner{
		cfg:      cfg,
		registry: registry,
		recorder: metrics.NoopRecorder{},
		revision: func() string { return precompile.Revision(".") },
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Registry returns the targets this runner knows.
func (r *Runner) Registry() *Registry { return r.registry }

// Config returns the configuration targets run with, before any mode override.
func (r *Runner) Config() *config.Config { return r.cfg }

// Run executes target and returns its report. The error is the first task
// failure, unchanged, so callers can match it with errors.Is and errors.As.
func (r *Runner) Run(ctx context.Context, target string) (*tg.Report, error) {
	t, err := r.registry.Lookup(target)
	if err != nil {
		return nil, err
	}
	cfg := r.cfg
	if t.Mode != "" {
		cfg = cfg.WithMode(t.Mode)
	}

	runID := uuid.NewString()
	log := slog.With(logfields.RunID(runID), logfields.Target(t.Name), logfields.Mode(cfg.Mode.String()))
	obs := &runObserver{runner: r, ctx: ctx, runID: runID, target: t.Name, log: log}

	r.publish(ctx, events.RunStarted{
		RunID:     runID,
		Target:    t.Name,
		Mode:      cfg.Mode.String(),
		Tasks:     t.Graph.Order(),
		Revision:  r.revision(),
		StartedAt: time.Now(),
	})
	log.Info("Starting target", slog.Any("tasks", t.Graph.Order()))

	exec := tg.NewExecutor[*config.Config](tg.WithObserver(obs), tg.WithConcurrency(cfg.Concurrency))
	report, runErr := exec.Run(ctx, t.Graph, cfg)

	notRun := report.NotRun()
	for _, name := range notRun {
		r.recorder.IncTaskResult(name, metrics.ResultNotRun)
	}
	r.recorder.ObserveRunDuration(t.Name, report.Duration)
	r.recorder.IncRunOutcome(t.Name, runErr == nil)

	finished := events.RunFinished{
		RunID:      runID,
		Target:     t.Name,
		Mode:       cfg.Mode.String(),
		Success:    runErr == nil,
		Duration:   report.Duration,
		NotRun:     notRun,
		FinishedAt: time.Now(),
	}
	if runErr != nil {
		finished.Error = runErr.Error()
		log.Error("Target failed", logfields.Duration(report.Duration), logfields.Error(runErr), slog.Any("not_run", notRun))
	} else {
		log.Info("Target finished", logfields.Duration(report.Duration))
	}
	r.publish(ctx, finished)
	return report, runErr
}

func (r *Runner) publish(ctx context.Context, evt events.RunEvent) {
	if r.bus == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := r.bus.Publish(pctx, evt); err != nil {
		slog.Warn("Failed to publish run event", logfields.Error(err))
	}
}

// runObserver logs, records metrics and publishes events for one run.
type runObserver struct {
	runner *Runner
	ctx    context.Context
	runID  string
	target string
	log    *slog.Logger
}

func (o *runObserver) OnTaskStart(task string) {
	o.log.Info("Starting task", logfields.Task(task))
	o.runner.publish(o.ctx, events.TaskStarted{RunID: o.runID, Target: o.target, Task: task, StartedAt: time.Now()})
}

func (o *runObserver) OnTaskComplete(task string, d time.Duration, state tg.State, err error) {
	evt := events.TaskFinished{
		RunID:      o.runID,
		Target:     o.target,
		Task:       task,
		State:      state.String(),
		Duration:   d,
		FinishedAt: time.Now(),
	}
	o.runner.recorder.ObserveTaskDuration(task, d)
	if err != nil {
		evt.Error = err.Error()
		o.runner.recorder.IncTaskResult(task, metrics.ResultFailed)
		o.log.Error("Task failed", logfields.Task(task), logfields.Duration(d), logfields.Error(err))
	} else {
		o.runner.recorder.IncTaskResult(task, metrics.ResultCompleted)
		o.log.Info("Finished task", logfields.Task(task), logfields.Duration(d))
	}
	o.runner.publish(o.ctx, evt)
}

// Classify attaches a category to a run error for the CLI boundary. The original
// error stays reachable through errors.Is and errors.As.
func Classify(target string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := ferrors.AsClassified(err); ok {
		return err
	}

	var (
		te      *tools.ToolError
		pathErr *fs.PathError
		linkErr *os.LinkError
		cat     = ferrors.CategoryBuild
		msg     = "build failed"
	)
	switch {
	case errors.As(err, &te):
		cat, msg = ferrors.CategoryTool, "tool failed"
	case errors.As(err, &pathErr), errors.As(err, &linkErr):
		cat, msg = ferrors.CategoryFileSystem, "filesystem operation failed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		cat, msg = ferrors.CategoryRuntime, "run interrupted"
	}
	b := ferrors.WrapError(err, cat, msg).WithContext("target", target)
	if te != nil {
		b = b.WithContext("step", te.Step).WithContext("tool", te.Tool)
	}
	return b.Build()
}
