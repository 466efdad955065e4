package stylesheet

import (
	"context"
	"encoding/hex"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/zeebo/blake3"
	"golang.org/x/sync/errgroup"

	"github.com/sugarshin/frrr-boilerplate/internal/logfields"
)

// EmitFunc stores the compiled stylesheet for logical (e.g. "app.css") and
// returns the path it was written to.
type EmitFunc func(logical string, css []byte) (string, error)

// Compiler runs every entry through Filters and hands the result to Emit.
type Compiler struct {
	Filters []Filter
	// Cache skips entries whose inputs are unchanged; nil disables it.
	Cache *Cache
}

// Options describe one compilation run.
type Options struct {
	Step string
	// Variant separates cache keys of runs that produce different output for the
	// same input, such as development and production.
	Variant string
	// PartialsDigest changes whenever any imported partial changes.
	PartialsDigest string
	Emit           EmitFunc
}

// Result lists what a run did.
type Result struct {
	Compiled []string
	Skipped  []string
}

// Compile processes entries concurrently. The first failure is returned; other
// entries already in flight are allowed to finish.
func (c *Compiler) Compile(ctx context.Context, entries []string, opts Options) (Result, error) {
	var (
		mu  sync.Mutex
		res Result
		eg  errgroup.Group
	)
	for _, entry := range entries {
		eg.Go(func() error {
			compiled, err := c.compileOne(ctx, entry, opts)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if compiled {
				res.Compiled = append(res.Compiled, entry)
			} else {
				res.Skipped = append(res.Skipped, entry)
			}
			return nil
		})
	}
	err := eg.Wait()
	slices.Sort(res.Compiled)
	slices.Sort(res.Skipped)
	return res, err
}

func (c *Compiler) compileOne(ctx context.Context, entry string, opts Options) (bool, error) {
	content, err := os.ReadFile(entry)
	if err != nil {
		return false, err
	}
	src := Source{Path: entry, Content: content}
	key := c.cacheKey(src, opts)
	if c.Cache != nil && c.Cache.Fresh(entry, key) {
		slog.Debug("Stylesheet unchanged, skipping", logfields.Task(opts.Step), logfields.Entry(entry))
		return false, nil
	}

	for _, f := range c.Filters {
		out, err := f.Apply(ctx, opts.Step, src)
		if err != nil {
			return false, err
		}
		src.Content = out
	}

	logical := strings.TrimSuffix(filepath.Base(entry), filepath.Ext(entry)) + ".css"
	written, err := opts.Emit(logical, src.Content)
	if err != nil {
		return false, err
	}
	if c.Cache != nil {
		c.Cache.Store(entry, key, written)
	}
	slog.Info("Compiled stylesheet", logfields.Task(opts.Step), logfields.Entry(entry), logfields.Path(written))
	return true, nil
}

func (c *Compiler) cacheKey(src Source, opts Options) string {
	if c.Cache == nil {
		return ""
	}
	h := blake3.New()
	_, _ = h.Write(src.Content)
	for _, part := range []string{opts.Variant, opts.PartialsDigest} {
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(part))
	}
	for _, f := range c.Filters {
		if kf, ok := f.(KeyedFilter); ok {
			_, _ = h.Write([]byte{0})
			_, _ = h.Write([]byte(kf.CacheKey(src)))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// PartialsDigest hashes the names and contents of every file under root that
// matches patterns, in sorted order.
func PartialsDigest(root string, patterns []string) (string, error) {
	fsys := os.DirFS(root)
	seen := map[string]bool{}
	var files []string
	for _, p := range patterns {
		matches, err := doublestar.Glob(fsys, path.Clean(filepath.ToSlash(p)), doublestar.WithFilesOnly())
		if err != nil {
			return "", err
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	slices.Sort(files)

	h := blake3.New()
	for _, f := range files {
		data, err := fs.ReadFile(fsys, f)
		if err != nil {
			return "", err
		}
		_, _ = h.Write([]byte(f))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write(data)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Cache remembers the inputs of the last successful compilation of each entry.
// It lives as long as the process, which makes repeated runs in the watch loop
// cheap.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	key    string
	output string
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: map[string]cacheEntry{}}
}

// Fresh reports whether entry was last compiled with key and its output still exists.
func (c *Cache) Fresh(entry, key string) bool {
	c.mu.Lock()
	e, ok := c.entries[entry]
	c.mu.Unlock()
	if !ok || e.key != key {
		return false
	}
	_, err := os.Stat(e.output)
	return err == nil
}

// Store records a successful compilation.
func (c *Cache) Store(entry, key, output string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry] = cacheEntry{key: key, output: output}
}
