package taskgraph

import (
	"sync"
	"time"
)

// RecordedEvent is one callback captured by RecorderObserver.
type RecordedEvent struct {
	Seq   int
	Task  string
	Start bool
	State State
	Err   error
}

// RecorderObserver captures callbacks with a global sequence number so tests
// can assert happens-before relations between tasks.
type RecorderObserver struct {
	mu     sync.Mutex
	events []RecordedEvent
}

func (r *RecorderObserver) OnTaskStart(task string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, RecordedEvent{Seq: len(r.events), Task: task, Start: true, State: StateRunning})
}

func (r *RecorderObserver) OnTaskComplete(task string, _ time.Duration, state State, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, RecordedEvent{Seq: len(r.events), Task: task, State: state, Err: err})
}

// Events returns a copy of everything recorded so far.
func (r *RecorderObserver) Events() []RecordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RecordedEvent(nil), r.events...)
}

// StartSeq returns the sequence number of task's start, or -1.
func (r *RecorderObserver) StartSeq(task string) int {
	for _, e := range r.Events() {
		if e.Task == task && e.Start {
			return e.Seq
		}
	}
	return -1
}

// EndSeq returns the sequence number of task's completion, or -1.
func (r *RecorderObserver) EndSeq(task string) int {
	for _, e := range r.Events() {
		if e.Task == task && !e.Start {
			return e.Seq
		}
	}
	return -1
}
