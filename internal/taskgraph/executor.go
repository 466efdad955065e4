package taskgraph

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Executor runs graphs. The zero value runs with unbounded concurrency and no observer.
type Executor[C any] struct {
	observer Observer
	limit    int
}

// Option configures an Executor.
type Option func(*options)

type options struct {
	observer Observer
	limit    int
}

// WithObserver installs lifecycle callbacks.
func WithObserver(o Observer) Option { return func(opts *options) { opts.observer = o } }

// WithConcurrency bounds the number of tasks running at once; n <= 0 means unbounded.
func WithConcurrency(n int) Option { return func(opts *options) { opts.limit = n } }

// NewExecutor builds an executor.
func NewExecutor[C any](opts ...Option) *Executor[C] {
	o := options{observer: NoopObserver{}}
	for _, fn := range opts {
		fn(&o)
	}
	if o.observer == nil {
		o.observer = NoopObserver{}
	}
	return &Executor[C]{observer: o.observer, limit: o.limit}
}

type completion struct {
	task string
	err  error
}

// Run executes g with cfg and returns the report together with the first task
// error, unchanged. After a failure no further task is started; tasks already
// running are allowed to finish. Cancelling ctx stops new launches the same way;
// the context is passed to task bodies, which decide how to react to it.
func (e *Executor[C]) Run(ctx context.Context, g *Graph[C], cfg C) (*Report, error) {
	if e.observer == nil {
		e.observer = NoopObserver{}
	}
	report := newReport(g.order)
	pending := make(map[string]int, g.Len())
	var ready []string
	for _, name := range g.order {
		pending[name] = len(g.tasks[name].Deps)
		if pending[name] == 0 {
			ready = append(ready, name)
		}
	}

	done := make(chan completion, g.Len())
	var eg errgroup.Group

	start := time.Now()
	running := 0
	var firstErr error
	for {
		if firstErr == nil && ctx.Err() == nil {
			slices.SortFunc(ready, func(a, b string) int { return g.index[a] - g.index[b] })
			for len(ready) > 0 && (e.limit <= 0 || running < e.limit) {
				running++
				e.launch(ctx, &eg, g.tasks[ready[0]], cfg, report, done)
				ready = ready[1:]
			}
		}
		if running == 0 {
			break
		}

		c := <-done
		running--
		if c.err != nil {
			if firstErr == nil {
				firstErr = c.err
			}
			continue
		}
		for _, dep := range g.dependents[c.task] {
			pending[dep]--
			if pending[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}
	_ = eg.Wait()

	if firstErr == nil && ctx.Err() != nil && len(report.NotRun()) > 0 {
		firstErr = ctx.Err()
	}
	report.finish(time.Since(start), firstErr)
	if ro, ok := e.observer.(RunObserver); ok {
		ro.OnRunComplete(report)
	}
	return report, firstErr
}

func (e *Executor[C]) launch(ctx context.Context, eg *errgroup.Group, t Task[C], cfg C, report *Report, done chan<- completion) {
	eg.Go(func() error {
		report.transition(t.Name, StateRunning, 0, nil)
		e.observer.OnTaskStart(t.Name)

		t0 := time.Now()
		fut := t.Action(ctx, cfg)
		var err error
		if fut == nil {
			err = fmt.Errorf("task %s returned no completion signal", t.Name)
		} else {
			err = fut.Await(context.WithoutCancel(ctx)).Error()
		}
		d := time.Since(t0)

		state := StateCompleted
		if err != nil {
			state = StateFailed
		}
		report.transition(t.Name, state, d, err)
		e.observer.OnTaskComplete(t.Name, d, state, err)
		done <- completion{task: t.Name, err: err}
		return nil
	})
}

// TaskReport is the outcome of one task.
type TaskReport struct {
	Name     string
	State    State
	Duration time.Duration
	Err      error
}

// Report summarizes a run.
type Report struct {
	mu       sync.Mutex
	order    []string
	tasks    map[string]*TaskReport
	Duration time.Duration
	Err      error
}

func newReport(order []string) *Report {
	r := &Report{order: slices.Clone(order), tasks: make(map[string]*TaskReport, len(order))}
	for _, name := range order {
		r.tasks[name] = &TaskReport{Name: name, State: StatePending}
	}
	return r
}

func (r *Report) transition(name string, next State, d time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tr := r.tasks[name]
	if !tr.State.CanTransition(next) {
		panic(fmt.Sprintf("taskgraph: illegal transition %s -> %s for %s", tr.State, next, name))
	}
	tr.State = next
	tr.Duration = d
	tr.Err = err
}

func (r *Report) finish(d time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Duration = d
	r.Err = err
}

// Succeeded reports whether every task completed.
func (r *Report) Succeeded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tr := range r.tasks {
		if tr.State != StateCompleted {
			return false
		}
	}
	return true
}

// Tasks returns per-task outcomes in graph order.
func (r *Report) Tasks() []TaskReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TaskReport, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, *r.tasks[name])
	}
	return out
}

// State returns the state of one task.
func (r *Report) State(name string) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tr, ok := r.tasks[name]; ok {
		return tr.State
	}
	return StatePending
}

// NotRun lists tasks that never started.
func (r *Report) NotRun() []string {
	var out []string
	for _, tr := range r.Tasks() {
		if tr.State == StatePending {
			out = append(out, tr.Name)
		}
	}
	return out
}
