package events

import "time"

// RunEvent is implemented by every run lifecycle event.
type RunEvent interface {
	EventRunID() string
	EventType() string
	EventTime() time.Time
}

// RunStarted is published before the first task of a target starts.
type RunStarted struct {
	RunID     string    `json:"run_id"`
	Target    string    `json:"target"`
	Mode      string    `json:"mode"`
	Tasks     []string  `json:"tasks"`
	Revision  string    `json:"revision,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// TaskStarted is published when a task moves to running.
type TaskStarted struct {
	RunID     string    `json:"run_id"`
	Target    string    `json:"target"`
	Task      string    `json:"task"`
	StartedAt time.Time `json:"started_at"`
}

// TaskFinished is published when a task completes or fails.
type TaskFinished struct {
	RunID      string        `json:"run_id"`
	Target     string        `json:"target"`
	Task       string        `json:"task"`
	State      string        `json:"state"`
	Duration   time.Duration `json:"duration_ns"`
	Error      string        `json:"error,omitempty"`
	FinishedAt time.Time     `json:"finished_at"`
}

// RunFinished is published once per run, after all started tasks returned.
type RunFinished struct {
	RunID      string        `json:"run_id"`
	Target     string        `json:"target"`
	Mode       string        `json:"mode"`
	Success    bool          `json:"success"`
	Duration   time.Duration `json:"duration_ns"`
	Error      string        `json:"error,omitempty"`
	NotRun     []string      `json:"not_run,omitempty"`
	FinishedAt time.Time     `json:"finished_at"`
}

func (e RunStarted) EventRunID() string   { return e.RunID }
func (e RunStarted) EventType() string    { return "RunStarted" }
func (e RunStarted) EventTime() time.Time { return e.StartedAt }

func (e TaskStarted) EventRunID() string   { return e.RunID }
func (e TaskStarted) EventType() string    { return "TaskStarted" }
func (e TaskStarted) EventTime() time.Time { return e.StartedAt }

func (e TaskFinished) EventRunID() string   { return e.RunID }
func (e TaskFinished) EventType() string    { return "TaskFinished" }
func (e TaskFinished) EventTime() time.Time { return e.FinishedAt }

func (e RunFinished) EventRunID() string   { return e.RunID }
func (e RunFinished) EventType() string    { return "RunFinished" }
func (e RunFinished) EventTime() time.Time { return e.FinishedAt }
