// Package assets implements the build steps of the asset pipeline as task
// actions: clean, image copy, script bundling, stylesheet compilation and script
// precompilation. Each action receives the run configuration explicitly.
package assets

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sugarshin/frrr-boilerplate/internal/bundler"
	"github.com/sugarshin/frrr-boilerplate/internal/config"
	"github.com/sugarshin/frrr-boilerplate/internal/logfields"
	"github.com/sugarshin/frrr-boilerplate/internal/precompile"
	"github.com/sugarshin/frrr-boilerplate/internal/stylesheet"
)

// Step names double as target names.
const (
	StepClean       = "clean"
	StepImages      = "build:image"
	StepScripts     = "build:js"
	StepStylesheets = "build:scss"
	StepBundleDev   = "webpack:dev"
	StepBundleBuild = "webpack:build"
	StepServer      = "server"
	StepWatch       = "watch"
	StepBuild       = "build"
	StepDefault     = "default"
)

// BundleVariant selects the bundler settings of a script step.
type BundleVariant int

const (
	// BundleDev never minifies and writes hidden source maps.
	BundleDev BundleVariant = iota
	// BundleBuild always minifies.
	BundleBuild
)

func (v BundleVariant) step() string {
	if v == BundleBuild {
		return StepBundleBuild
	}
	return StepBundleDev
}

// Pipeline holds the collaborators shared by the build steps of one process.
type Pipeline struct {
	// NewBundler overrides bundler selection, mainly for tests.
	NewBundler func(cfg *config.Config) (bundler.Bundler, error)
	// Cache is kept across runs so the watch loop skips unchanged stylesheets.
	Cache *stylesheet.Cache
}

// NewPipeline returns a pipeline with a fresh stylesheet cache.
func NewPipeline() *Pipeline {
	return &Pipeline{Cache: stylesheet.NewCache()}
}

// Clean removes the output directory and recreates it empty. A missing directory
// is not an error; any other filesystem error is returned unchanged.
func (p *Pipeline) Clean(_ context.Context, cfg *config.Config) error {
	out := cfg.Paths.Output
	if err := os.RemoveAll(out); err != nil {
		return err
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		return err
	}
	slog.Info("Cleaned output directory", logfields.Task(StepClean), logfields.Path(out))
	return nil
}

// Images copies every image into the output directory, keeping the path relative
// to the glob base. In production each image is written under its digested name
// and recorded in the manifest.
func (p *Pipeline) Images(ctx context.Context, cfg *config.Config) error {
	matches, err := Glob(cfg.Paths.Assets, cfg.Paths.Images)
	if err != nil {
		return err
	}
	var fp *precompile.Fingerprinter
	if cfg.Mode.IsProduction() {
		if fp, err = p.fingerprinter(cfg); err != nil {
			return err
		}
	}

	for _, m := range matches {
		if err := ctx.Err(); err != nil {
			return err
		}
		if fp != nil {
			content, err := os.ReadFile(m.Path)
			if err != nil {
				return err
			}
			if _, err := fp.Write(m.Rel, content); err != nil {
				return err
			}
			continue
		}
		if err := copyFile(m.Path, filepath.Join(cfg.Paths.Output, filepath.FromSlash(m.Rel))); err != nil {
			return err
		}
	}
	slog.Info("Copied images", logfields.Task(StepImages), logfields.Count(len(matches)), logfields.Mode(cfg.Mode.String()))
	return nil
}

// Scripts bundles every configured entry with the settings of variant.
func (p *Pipeline) Scripts(variant BundleVariant) func(context.Context, *config.Config) error {
	return func(ctx context.Context, cfg *config.Config) error {
		b, err := p.bundler(cfg)
		if err != nil {
			return err
		}
		req := bundler.Request{
			Step:      variant.step(),
			Outdir:    cfg.Paths.Output,
			Minify:    variant == BundleBuild,
			SourceMap: variant == BundleDev && !cfg.Scripts.NoSourceMap,
			Mode:      cfg.Mode,
		}
		if req.Minify != cfg.Mode.IsProduction() {
			slog.Info("Script minification follows the step, not the mode",
				logfields.Task(req.Step), logfields.Mode(cfg.Mode.String()), slog.Bool("minify", req.Minify))
		}
		outs, err := b.Bundle(ctx, req)
		if err != nil {
			return err
		}
		for _, o := range outs {
			slog.Info("Bundled script", logfields.Task(req.Step), logfields.Entry(o.Name), logfields.Path(o.Path), slog.Int64("size", o.Size))
		}
		return nil
	}
}

// Stylesheets compiles every stylesheet entry. Production adds minification and
// precompilation.
func (p *Pipeline) Stylesheets(ctx context.Context, cfg *config.Config) error {
	entries, err := Glob(cfg.Paths.Assets, cfg.Paths.StylesheetEntries)
	if err != nil {
		return err
	}
	partials, err := stylesheet.PartialsDigest(cfg.Paths.Assets, cfg.Paths.Stylesheets)
	if err != nil {
		return err
	}

	emit := func(logical string, css []byte) (string, error) {
		dst := filepath.Join(cfg.Paths.Output, filepath.FromSlash(logical))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return "", err
		}
		return dst, os.WriteFile(dst, css, 0o644)
	}
	if cfg.Mode.IsProduction() {
		fp, err := p.fingerprinter(cfg)
		if err != nil {
			return err
		}
		emit = func(logical string, css []byte) (string, error) {
			e, err := fp.Write(logical, css)
			if err != nil {
				return "", err
			}
			return filepath.Join(cfg.Paths.Output, filepath.FromSlash(e.DigestPath)), nil
		}
	}

	compiler := &stylesheet.Compiler{Filters: StylesheetFilters(cfg)}
	if !cfg.Stylesheets.NoCache {
		compiler.Cache = p.Cache
	}
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	res, err := compiler.Compile(ctx, paths, stylesheet.Options{
		Step:           StepStylesheets,
		Variant:        cfg.Mode.String(),
		PartialsDigest: partials,
		Emit:           emit,
	})
	if err != nil {
		return err
	}
	slog.Info("Compiled stylesheets", logfields.Task(StepStylesheets), logfields.Count(len(res.Compiled)), slog.Int("skipped", len(res.Skipped)))
	return nil
}

// StylesheetFilters returns the filter chain for cfg, in application order.
func StylesheetFilters(cfg *config.Config) []stylesheet.Filter {
	var filters []stylesheet.Filter
	for _, fc := range cfg.Stylesheets.PostProcess {
		filters = append(filters, stylesheet.NewCommandFilter(fc))
	}
	filters = append(filters, &stylesheet.AssetHelperFilter{Resolver: Resolver(cfg)})
	filters = append(filters, stylesheet.NewCommandFilter(cfg.Stylesheets.Compiler))
	if cfg.Mode.IsProduction() {
		filters = append(filters, stylesheet.MinifyFilter{})
	}
	return filters
}

// Resolver maps asset helper arguments to URLs under the configured prefix.
func Resolver(cfg *config.Config) *precompile.Resolver {
	root := cfg.Paths.Assets
	return &precompile.Resolver{
		Prefix: cfg.Precompile.Prefix,
		Roots: []string{
			filepath.Join(root, "images"),
			filepath.Join(root, "javascripts"),
			filepath.Join(root, "stylesheets"),
			root,
		},
		Fingerprint:  cfg.Mode.IsProduction(),
		DigestLength: cfg.Precompile.DigestLength,
	}
}

// PrecompileScripts fingerprints the bundles in the output directory in place.
// Files already recorded in the manifest are not processed again.
func (p *Pipeline) PrecompileScripts(ctx context.Context, cfg *config.Config) error {
	fp, err := p.fingerprinter(cfg)
	if err != nil {
		return err
	}
	matches, err := Glob(cfg.Paths.Output, []string{"*.js"})
	if err != nil {
		return err
	}
	done := 0
	for _, m := range matches {
		if err := ctx.Err(); err != nil {
			return err
		}
		e, skipped, err := fp.FingerprintInPlace(m.Path)
		if err != nil {
			return err
		}
		if skipped {
			continue
		}
		done++
		slog.Debug("Precompiled script", logfields.Task(StepScripts), logfields.Path(e.DigestPath))
	}
	slog.Info("Precompiled scripts", logfields.Task(StepScripts), logfields.Count(done))
	return nil
}

func (p *Pipeline) bundler(cfg *config.Config) (bundler.Bundler, error) {
	if p.NewBundler != nil {
		return p.NewBundler(cfg)
	}
	return bundler.New(cfg.Scripts, cfg.ModeEnv)
}

// fingerprinter opens the manifest in the output directory and stamps it with
// the source revision.
func (p *Pipeline) fingerprinter(cfg *config.Config) (*precompile.Fingerprinter, error) {
	fp, err := precompile.NewFingerprinter(cfg.Paths.Output, cfg.Precompile.Manifest, cfg.Precompile.DigestLength)
	if err != nil {
		return nil, err
	}
	if rev := precompile.Revision("."); rev != "" && fp.Manifest.Revision() != rev {
		if err := fp.Manifest.SetRevision(rev); err != nil {
			return nil, err
		}
	}
	return fp, nil
}

func copyFile(src, dst string) (err error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return nil
}
