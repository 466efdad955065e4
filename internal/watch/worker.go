package watch

import (
	"context"
	"sync"
	"time"
)

// worker runs one target at a time. Triggers are debounced; a trigger that
// arrives while the target runs schedules exactly one more run.
type worker struct {
	target   string
	debounce time.Duration

	mu    sync.Mutex
	timer *time.Timer
	req   chan struct{}
}

func newWorker(target string, debounce time.Duration) *worker {
	return &worker{target: target, debounce: debounce, req: make(chan struct{}, 1)}
}

func (w *worker) trigger() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case w.req <- struct{}{}:
		default:
		}
	})
}

func (w *worker) loop(ctx context.Context, run func(ctx context.Context, target string)) {
	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return
		case <-w.req:
			run(ctx, w.target)
		}
	}
}
