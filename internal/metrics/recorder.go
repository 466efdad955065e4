package metrics

import "time"

// ResultLabel enumerates task result categories for counters.
type ResultLabel string

const (
	ResultCompleted ResultLabel = "completed"
	ResultFailed    ResultLabel = "failed"
	ResultNotRun    ResultLabel = "not_run"
)

// Recorder defines observability hooks for task runs.
type Recorder interface {
	ObserveTaskDuration(task string, d time.Duration)
	IncTaskResult(task string, result ResultLabel)
	ObserveRunDuration(target string, d time.Duration)
	IncRunOutcome(target string, success bool)
	IncWatchRebuild(task string, success bool)
	IncLiveReloadBroadcast()
}

// NoopRecorder is the default Recorder when metrics are not configured.
type NoopRecorder struct{}

func (NoopRecorder) ObserveTaskDuration(string, time.Duration) {}
func (NoopRecorder) IncTaskResult(string, ResultLabel)         {}
func (NoopRecorder) ObserveRunDuration(string, time.Duration)  {}
func (NoopRecorder) IncRunOutcome(string, bool)                {}
func (NoopRecorder) IncWatchRebuild(string, bool)              {}
func (NoopRecorder) IncLiveReloadBroadcast()                   {}
