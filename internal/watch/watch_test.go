package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tg "github.com/sugarshin/frrr-boilerplate/internal/taskgraph"
)

type countingRunner struct {
	mu    sync.Mutex
	runs  map[string]int
	fail  map[string]error
	delay time.Duration
}

func newCountingRunner() *countingRunner {
	return &countingRunner{runs: map[string]int{}, fail: map[string]error{}}
}

func (c *countingRunner) Run(_ context.Context, target string) (*tg.Report, error) {
	time.Sleep(c.delay)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs[target]++
	return nil, c.fail[target]
}

func (c *countingRunner) count(target string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runs[target]
}

func sourceTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, p := range []string{"stylesheets/entries/app.scss", "stylesheets/_vars.scss", "javascripts/top/index.js"} {
		full := filepath.Join(root, p)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("x"), 0o644))
	}
	return root
}

func rules(root string) []Rule {
	return []Rule{
		{Target: "build:scss", Patterns: []string{filepath.Join(root, "stylesheets/**/*.scss")}},
		{Target: "webpack:dev", Patterns: []string{filepath.Join(root, "javascripts/**/*.{js,jsx,ts,tsx}")}},
	}
}

func startWatcher(t *testing.T, opts Options) *Watcher {
	t.Helper()
	w, err := New(opts)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	w.start(ctx)
	return w
}

func TestStylesheetChangeRebuildsOnlyStylesheets(t *testing.T) {
	root := sourceTree(t)
	runner := newCountingRunner()
	w := startWatcher(t, Options{Rules: rules(root), Runner: runner, Debounce: 20 * time.Millisecond})

	w.Handle(filepath.Join(root, "stylesheets/_vars.scss"), "changed")

	require.Eventually(t, func() bool { return runner.count("build:scss") == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, runner.count("build:scss"))
	assert.Equal(t, 0, runner.count("webpack:dev"))
}

func TestBurstIsDebounced(t *testing.T) {
	root := sourceTree(t)
	runner := newCountingRunner()
	w := startWatcher(t, Options{Rules: rules(root), Runner: runner, Debounce: 40 * time.Millisecond})

	for range 5 {
		w.Handle(filepath.Join(root, "javascripts/top/index.js"), "changed")
		time.Sleep(5 * time.Millisecond)
	}
	require.Eventually(t, func() bool { return runner.count("webpack:dev") == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 1, runner.count("webpack:dev"))
	assert.Equal(t, 0, runner.count("build:scss"))
}

func TestFailedRebuildKeepsWatching(t *testing.T) {
	root := sourceTree(t)
	runner := newCountingRunner()
	runner.fail["build:scss"] = errors.New("sass exploded")
	var mu sync.Mutex
	var seen []error
	w := startWatcher(t, Options{
		Rules:    rules(root),
		Runner:   runner,
		Debounce: 10 * time.Millisecond,
		OnRebuild: func(_ string, err error) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, err)
		},
	})

	scss := filepath.Join(root, "stylesheets/entries/app.scss")
	w.Handle(scss, "changed")
	require.Eventually(t, func() bool { return runner.count("build:scss") == 1 }, time.Second, 5*time.Millisecond)
	w.Handle(scss, "changed")
	require.Eventually(t, func() bool { return runner.count("build:scss") == 2 }, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.EqualError(t, seen[0], "sass exploded")
}

func TestIgnoredAndUnmatchedPaths(t *testing.T) {
	root := sourceTree(t)
	runner := newCountingRunner()
	w := startWatcher(t, Options{Rules: rules(root), Runner: runner, Debounce: 10 * time.Millisecond})

	w.Handle(filepath.Join(root, "stylesheets/.app.scss.swp"), "changed")
	w.Handle(filepath.Join(root, "stylesheets/app.scss~"), "changed")
	w.Handle(filepath.Join(root, "images/logo.png"), "changed")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, runner.count("build:scss"))
	assert.Equal(t, 0, runner.count("webpack:dev"))
}

func TestNotifyLoopDetectsWrites(t *testing.T) {
	root := sourceTree(t)
	runner := newCountingRunner()
	w, err := New(Options{Rules: rules(root), Runner: runner, Debounce: 20 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give the watcher time to register directories.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "stylesheets/entries/app.scss"), []byte("a{}"), 0o644))

	require.Eventually(t, func() bool { return runner.count("build:scss") >= 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, runner.count("webpack:dev"))
}

func TestNotifyLoopRecoversDeletedRoot(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "public", "assets")
	require.NoError(t, os.MkdirAll(out, 0o755))
	runner := newCountingRunner()
	w, err := New(Options{
		Rules:    []Rule{{Target: "reload", Patterns: []string{filepath.Join(out, "*.js")}}},
		Runner:   runner,
		Debounce: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	time.Sleep(100 * time.Millisecond)
	// What a clean in another process does to the output root.
	require.NoError(t, os.RemoveAll(out))
	require.NoError(t, os.MkdirAll(out, 0o755))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(out, "common.js"), []byte("x"), 0o644))

	require.Eventually(t, func() bool { return runner.count("reload") >= 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestCoversDir(t *testing.T) {
	root := sourceTree(t)
	w, err := New(Options{Rules: rules(root), Runner: newCountingRunner()})
	require.NoError(t, err)

	assert.True(t, w.coversDir(filepath.Join(root, "stylesheets")))
	assert.True(t, w.coversDir(filepath.Join(root, "stylesheets", "vendor")))
	assert.True(t, w.coversDir(root))
	assert.False(t, w.coversDir(filepath.Join(root, "tmp")))
	assert.False(t, w.coversDir(filepath.Join(root, "stylesheets-old")))
}

func TestPollerDiff(t *testing.T) {
	root := sourceTree(t)
	runner := newCountingRunner()
	w := startWatcher(t, Options{Rules: rules(root), Runner: runner, Debounce: 10 * time.Millisecond})

	before := w.snapshot()
	assert.Len(t, before, 3)

	jsx := filepath.Join(root, "javascripts/top/view.jsx")
	require.NoError(t, os.WriteFile(jsx, []byte("<div/>"), 0o644))
	w.diff(before, w.snapshot())

	require.Eventually(t, func() bool { return runner.count("webpack:dev") == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, runner.count("build:scss"))
}

func TestPollerRunLoop(t *testing.T) {
	root := sourceTree(t)
	runner := newCountingRunner()
	w, err := New(Options{Rules: rules(root), Runner: runner, Debounce: 10 * time.Millisecond, PollInterval: 20 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "stylesheets/_new.scss"), []byte("$x: 1;"), 0o644))
	require.Eventually(t, func() bool { return runner.count("build:scss") >= 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestNewRequiresRunner(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestShouldIgnoreEvent(t *testing.T) {
	for _, p := range []string{".DS_Store", "a.swp", "a.swx", "a~", "#a#", ".#a", "4913", "Thumbs.db"} {
		assert.True(t, shouldIgnoreEvent(p), p)
	}
	assert.False(t, shouldIgnoreEvent("app.scss"))
}
