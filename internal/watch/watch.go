// Package watch reruns single build steps when their sources change.
//
// Each Rule ties a set of glob patterns to one target. Changes are debounced per
// rule, so a burst of saves produces one rebuild, and a change only ever triggers
// the rule it matches.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/sugarshin/frrr-boilerplate/internal/logfields"
	"github.com/sugarshin/frrr-boilerplate/internal/metrics"
	tg "github.com/sugarshin/frrr-boilerplate/internal/taskgraph"
)

// Runner runs a named target.
type Runner interface {
	Run(ctx context.Context, target string) (*tg.Report, error)
}

// Rule maps source patterns to the target they rebuild.
type Rule struct {
	Target   string
	Patterns []string
}

// Options configure a Watcher.
type Options struct {
	Rules    []Rule
	Runner   Runner
	Debounce time.Duration
	// PollInterval replaces filesystem notifications with periodic scans when positive.
	PollInterval time.Duration
	Recorder     metrics.Recorder
	// OnRebuild is called after every rebuild attempt.
	OnRebuild func(target string, err error)
	// Message formats the change log line from the path and the op verb.
	Message string
}

// Watcher dispatches source changes to per-rule rebuild workers.
type Watcher struct {
	opts  Options
	rules []compiledRule

	startOnce sync.Once
	workers   map[string]*worker
}

type compiledRule struct {
	target   string
	patterns []string // absolute, slash-separated
	roots    []string // static base directories of patterns
}

// New validates rules and returns a watcher.
func New(opts Options) (*Watcher, error) {
	if opts.Runner == nil {
		return nil, fmt.Errorf("watch: runner is required")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 300 * time.Millisecond
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	if opts.Message == "" {
		opts.Message = "File %s was %s, running build task..."
	}
	w := &Watcher{opts: opts, workers: map[string]*worker{}}
	for _, r := range opts.Rules {
		cr := compiledRule{target: r.Target}
		for _, p := range r.Patterns {
			abs, err := filepath.Abs(p)
			if err != nil {
				return nil, err
			}
			pattern := filepath.ToSlash(abs)
			if !doublestar.ValidatePattern(pattern) {
				return nil, fmt.Errorf("watch: invalid pattern %q", p)
			}
			base, _ := doublestar.SplitPattern(pattern)
			cr.patterns = append(cr.patterns, pattern)
			cr.roots = append(cr.roots, filepath.FromSlash(base))
		}
		w.rules = append(w.rules, cr)
		if _, ok := w.workers[r.Target]; !ok {
			w.workers[r.Target] = newWorker(r.Target, opts.Debounce)
		}
	}
	return w, nil
}

// Run watches until ctx is done. Rebuild failures are logged and never end the loop.
func (w *Watcher) Run(ctx context.Context) error {
	w.start(ctx)
	if w.opts.PollInterval > 0 {
		return w.runPoller(ctx)
	}
	return w.runNotify(ctx)
}

func (w *Watcher) start(ctx context.Context) {
	w.startOnce.Do(func() {
		for _, wk := range w.workers {
			go wk.loop(ctx, w.rebuild)
		}
	})
}

func (w *Watcher) runNotify(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer func() { _ = fw.Close() }()

	for _, root := range w.roots() {
		if err := addDirsRecursive(fw, root); err != nil {
			return err
		}
		// A root deleted by an external clean loses its watch; the anchor sees it
		// come back.
		if a := anchor(root); a != "" {
			if err := fw.Add(a); err != nil {
				slog.Warn("Watch add failed", logfields.Path(a), logfields.Error(err))
			}
		}
	}
	slog.Info("Watching sources", logfields.Count(len(w.rules)), logfields.Duration(w.opts.Debounce))

	for {
		select {
		case <-ctx.Done():
			slog.Info("Stopping watcher")
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create == fsnotify.Create {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					if w.coversDir(ev.Name) {
						_ = addDirsRecursive(fw, ev.Name)
					}
					continue
				}
			}
			if op := describeOp(ev.Op); op != "" {
				w.Handle(ev.Name, op)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Watcher error", logfields.Error(err))
		}
	}
}

// Handle routes one change to the rules matching path. op is the verb used in
// the log line ("changed", "added", "deleted", "renamed").
func (w *Watcher) Handle(path, op string) {
	if shouldIgnoreEvent(path) {
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}
	slashed := filepath.ToSlash(abs)

	triggered := map[string]bool{}
	for _, r := range w.rules {
		if triggered[r.target] || !r.matches(slashed) {
			continue
		}
		triggered[r.target] = true
		slog.Info(fmt.Sprintf(w.opts.Message, path, op), logfields.Target(r.target))
		w.workers[r.target].trigger()
	}
}

func (w *Watcher) rebuild(ctx context.Context, target string) {
	_, err := w.opts.Runner.Run(ctx, target)
	w.opts.Recorder.IncWatchRebuild(target, err == nil)
	if err != nil {
		slog.Error("Rebuild failed; still watching", logfields.Target(target), logfields.Error(err))
	}
	if w.opts.OnRebuild != nil {
		w.opts.OnRebuild(target, err)
	}
}

func (w *Watcher) roots() []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range w.rules {
		for _, root := range r.roots {
			if !seen[root] {
				seen[root] = true
				out = append(out, root)
			}
		}
	}
	return out
}

// coversDir reports whether dir lies inside a watch root or on the way to one.
func (w *Watcher) coversDir(dir string) bool {
	for _, root := range w.roots() {
		if within(root, dir) || within(dir, root) {
			return true
		}
	}
	return false
}

func within(parent, path string) bool {
	rel, err := filepath.Rel(parent, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// anchor returns the closest existing directory above root.
func anchor(root string) string {
	dir := filepath.Dir(root)
	for {
		if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func (r compiledRule) matches(path string) bool {
	for _, p := range r.patterns {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}

func describeOp(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "added"
	case op.Has(fsnotify.Write):
		return "changed"
	case op.Has(fsnotify.Remove):
		return "deleted"
	case op.Has(fsnotify.Rename):
		return "renamed"
	default:
		return ""
	}
}

func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		slog.Warn("Watch root does not exist", logfields.Path(root))
		return nil
	}
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := w.Add(path); err != nil {
				slog.Warn("Watch add failed", logfields.Path(path), logfields.Error(err))
			}
		}
		return nil
	})
}
