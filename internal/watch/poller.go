package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/sugarshin/frrr-boilerplate/internal/logfields"
)

type stamp struct {
	mod  time.Time
	size int64
}

// runPoller scans the rule roots on a gocron interval job. It is used where
// filesystem notifications are unreliable, such as network mounts and some
// container volumes.
func (w *Watcher) runPoller(ctx context.Context) error {
	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	prev := w.snapshot()
	_, err = s.NewJob(
		gocron.DurationJob(w.opts.PollInterval),
		gocron.NewTask(func() {
			next := w.snapshot()
			w.diff(prev, next)
			prev = next
		}),
		gocron.WithName("watch-poll"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("failed to create poll job: %w", err)
	}

	slog.Info("Polling sources", logfields.Count(len(w.rules)), slog.Duration("interval", w.opts.PollInterval))
	s.Start()
	<-ctx.Done()
	slog.Info("Stopping watcher")
	return s.Shutdown()
}

// snapshot records every file below the rule roots that some rule matches.
func (w *Watcher) snapshot() map[string]stamp {
	out := map[string]stamp{}
	for _, root := range w.roots() {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			if !w.matchesAny(filepath.ToSlash(path)) {
				return nil
			}
			if fi, err := d.Info(); err == nil {
				out[path] = stamp{mod: fi.ModTime(), size: fi.Size()}
			}
			return nil
		})
	}
	return out
}

func (w *Watcher) diff(prev, next map[string]stamp) {
	for path, st := range next {
		old, ok := prev[path]
		switch {
		case !ok:
			w.Handle(path, "added")
		case !old.mod.Equal(st.mod) || old.size != st.size:
			w.Handle(path, "changed")
		}
	}
	for path := range prev {
		if _, ok := next[path]; !ok {
			w.Handle(path, "deleted")
		}
	}
}

func (w *Watcher) matchesAny(path string) bool {
	for _, r := range w.rules {
		if r.matches(path) {
			return true
		}
	}
	return false
}
