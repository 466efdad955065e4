package bundler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/tidwall/gjson"

	"github.com/sugarshin/frrr-boilerplate/internal/config"
	"github.com/sugarshin/frrr-boilerplate/internal/logfields"
	"github.com/sugarshin/frrr-boilerplate/internal/tools"
)

// ESBuildBundler bundles with the esbuild Go API.
type ESBuildBundler struct {
	Config config.ScriptsConfig
	// WorkDir is the directory entry paths are relative to; empty means the process directory.
	WorkDir string
}

var targets = map[string]api.Target{
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"esnext": api.ESNext,
}

func (b *ESBuildBundler) Bundle(ctx context.Context, req Request) ([]Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wd, err := b.workDir()
	if err != nil {
		return nil, err
	}
	outdir := req.Outdir
	if !filepath.IsAbs(outdir) {
		outdir = filepath.Join(wd, outdir)
	}

	opts := api.BuildOptions{
		Bundle:        true,
		Outdir:        outdir,
		Write:         true,
		Metafile:      true,
		LogLevel:      api.LogLevelSilent,
		AbsWorkingDir: wd,
		Target:        target(b.Config.Target),
		Loader:        map[string]api.Loader{},
		Define: map[string]string{
			"process.env.NODE_ENV": fmt.Sprintf("%q", req.Mode.String()),
		},
	}
	for _, name := range entryNames(b.Config.Entries) {
		opts.EntryPointsAdvanced = append(opts.EntryPointsAdvanced, api.EntryPoint{
			InputPath:  b.Config.Entries[name],
			OutputPath: name,
		})
	}
	for _, ext := range b.Config.Extensions {
		opts.Loader[ext] = api.LoaderJSX
	}
	if req.Minify {
		opts.MinifyWhitespace = true
		opts.MinifyIdentifiers = true
		opts.MinifySyntax = true
	}
	if req.SourceMap {
		opts.Sourcemap = api.SourceMapExternal
	}

	slog.Debug("Bundling scripts", logfields.Task(req.Step), logfields.Count(len(opts.EntryPointsAdvanced)), slog.Bool("minify", req.Minify))
	result := api.Build(opts)
	for _, w := range result.Warnings {
		slog.Warn("esbuild warning", logfields.Task(req.Step), slog.String("message", formatMessage(w)))
	}
	if len(result.Errors) > 0 {
		msgs := make([]string, 0, len(result.Errors))
		for _, m := range result.Errors {
			msgs = append(msgs, formatMessage(m))
		}
		return nil, &tools.ToolError{Step: req.Step, Tool: "esbuild", Err: errors.New(strings.Join(msgs, "; "))}
	}
	return outputsFromMetafile(result.Metafile, wd)
}

func (b *ESBuildBundler) workDir() (string, error) {
	if b.WorkDir != "" {
		return filepath.Abs(b.WorkDir)
	}
	return filepath.Abs(".")
}

func target(name string) api.Target {
	if t, ok := targets[strings.ToLower(name)]; ok {
		return t
	}
	return api.ES2017
}

func formatMessage(m api.Message) string {
	if m.Location == nil {
		return m.Text
	}
	return fmt.Sprintf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column, m.Text)
}

// outputsFromMetafile lists the JavaScript outputs that belong to an entry point.
// Metafile paths are relative to the working directory.
func outputsFromMetafile(metafile, wd string) ([]Output, error) {
	var outs []Output
	var statErr error
	gjson.Get(metafile, "outputs").ForEach(func(key, value gjson.Result) bool {
		rel := key.String()
		if !strings.HasSuffix(rel, ".js") || !value.Get("entryPoint").Exists() {
			return true
		}
		path := filepath.Join(wd, filepath.FromSlash(rel))
		name := strings.TrimSuffix(filepath.Base(rel), ".js")
		o, err := statOutput(name, path)
		if err != nil {
			statErr = err
			return false
		}
		outs = append(outs, o)
		return true
	})
	if statErr != nil {
		return nil, statErr
	}
	slices.SortFunc(outs, func(a, b Output) int { return strings.Compare(a.Name, b.Name) })
	return outs, nil
}
