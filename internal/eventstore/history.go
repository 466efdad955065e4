package eventstore

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/tidwall/gjson"

	ferrors "github.com/sugarshin/frrr-boilerplate/internal/foundation/errors"
)

const (
	runStatusRunning   = "running"
	runStatusCompleted = "completed"
	runStatusFailed    = "failed"
)

// TaskSummary is the outcome of one task within a run.
type TaskSummary struct {
	Name     string        `json:"name"`
	State    string        `json:"state"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
}

// RunSummary is the read model of one run, rebuilt from its events.
type RunSummary struct {
	RunID      string        `json:"run_id"`
	Target     string        `json:"target"`
	Mode       string        `json:"mode"`
	Status     string        `json:"status"`
	Revision   string        `json:"revision,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Duration   time.Duration `json:"duration_ns,omitempty"`
	Error      string        `json:"error,omitempty"`
	NotRun     []string      `json:"not_run,omitempty"`
	Tasks      []TaskSummary `json:"tasks"`
}

// Project folds events into run summaries, newest first. Events must be in append order.
func Project(evts []Event) []*RunSummary {
	runs := map[string]*RunSummary{}
	var order []*RunSummary
	for _, e := range evts {
		if e.RunID() == "" {
			continue
		}
		run, ok := runs[e.RunID()]
		if !ok {
			run = &RunSummary{RunID: e.RunID(), Status: runStatusRunning, StartedAt: e.Timestamp()}
			runs[e.RunID()] = run
			order = append(order, run)
		}
		apply(run, e)
	}
	slices.SortStableFunc(order, func(a, b *RunSummary) int { return b.StartedAt.Compare(a.StartedAt) })
	return order
}

func apply(run *RunSummary, e Event) {
	p := gjson.ParseBytes(e.Payload())
	switch e.Type() {
	case "RunStarted":
		run.Target = p.Get("target").String()
		run.Mode = p.Get("mode").String()
		run.Revision = p.Get("revision").String()
		run.StartedAt = e.Timestamp()
	case "TaskStarted":
		run.Tasks = append(run.Tasks, TaskSummary{Name: p.Get("task").String(), State: runStatusRunning})
	case "TaskFinished":
		name := p.Get("task").String()
		ts := TaskSummary{
			Name:     name,
			State:    p.Get("state").String(),
			Duration: time.Duration(p.Get("duration_ns").Int()),
			Error:    p.Get("error").String(),
		}
		if i := slices.IndexFunc(run.Tasks, func(t TaskSummary) bool { return t.Name == name }); i >= 0 {
			run.Tasks[i] = ts
		} else {
			run.Tasks = append(run.Tasks, ts)
		}
	case "RunFinished":
		at := e.Timestamp()
		run.FinishedAt = &at
		run.Duration = time.Duration(p.Get("duration_ns").Int())
		run.Error = p.Get("error").String()
		run.Status = runStatusFailed
		if p.Get("success").Bool() {
			run.Status = runStatusCompleted
		}
		run.NotRun = nil
		p.Get("not_run").ForEach(func(_, v gjson.Result) bool {
			run.NotRun = append(run.NotRun, v.String())
			return true
		})
		if run.Target == "" {
			run.Target = p.Get("target").String()
		}
	}
}

// History returns up to limit runs, newest first. A limit of zero or less returns all.
func History(ctx context.Context, store Store, limit int) ([]*RunSummary, error) {
	evts, err := store.GetRange(ctx, time.Unix(0, 0), time.Now().Add(time.Hour))
	if err != nil {
		return nil, err
	}
	runs := Project(evts)
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// GetRun returns the summary of one run.
func GetRun(ctx context.Context, store Store, runID string) (*RunSummary, error) {
	evts, err := store.GetByRunID(ctx, runID)
	if err != nil {
		return nil, err
	}
	runs := Project(evts)
	if len(runs) == 0 {
		return nil, ferrors.NewError(ferrors.CategoryNotFound, fmt.Sprintf("run %s not found", runID)).
			WithContext("run_id", runID).
			Build()
	}
	return runs[0], nil
}
