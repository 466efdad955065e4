package taskgraph

import "time"

// Observer receives task lifecycle callbacks. Calls may arrive concurrently from
// different tasks, but never concurrently for the same task.
type Observer interface {
	OnTaskStart(task string)
	OnTaskComplete(task string, d time.Duration, state State, err error)
}

// RunObserver is implemented by observers that also want the final report.
type RunObserver interface {
	OnRunComplete(report *Report)
}

// NoopObserver ignores every callback.
type NoopObserver struct{}

func (NoopObserver) OnTaskStart(string)                                {}
func (NoopObserver) OnTaskComplete(string, time.Duration, State, error) {}

// MultiObserver fans callbacks out in order.
type MultiObserver []Observer

func (m MultiObserver) OnTaskStart(task string) {
	for _, o := range m {
		o.OnTaskStart(task)
	}
}

func (m MultiObserver) OnTaskComplete(task string, d time.Duration, state State, err error) {
	for _, o := range m {
		o.OnTaskComplete(task, d, state, err)
	}
}

func (m MultiObserver) OnRunComplete(report *Report) {
	for _, o := range m {
		if ro, ok := o.(RunObserver); ok {
			ro.OnRunComplete(report)
		}
	}
}
