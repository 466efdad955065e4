// Package bundler produces the script bundles. The default engine runs esbuild
// in-process; the command engine delegates to an external bundler such as webpack.
package bundler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/sugarshin/frrr-boilerplate/internal/config"
)

// Request describes one bundling run.
type Request struct {
	// Step names the build step for error reporting.
	Step   string
	Outdir string
	Minify bool
	// SourceMap writes external maps that are not referenced from the bundle.
	SourceMap bool
	Mode      config.Mode
}

// Output is one written bundle.
type Output struct {
	Name string
	Path string
	Size int64
}

// Bundler builds every configured entry point into Request.Outdir as <name>.js.
type Bundler interface {
	Bundle(ctx context.Context, req Request) ([]Output, error)
}

// New selects the engine configured in sc. modeEnv is exported to external bundlers.
func New(sc config.ScriptsConfig, modeEnv string) (Bundler, error) {
	switch sc.Engine {
	case config.BundlerESBuild, "":
		return &ESBuildBundler{Config: sc}, nil
	case config.BundlerCommand:
		return &CommandBundler{Config: sc, ModeEnv: modeEnv}, nil
	default:
		return nil, fmt.Errorf("unknown bundler engine %q", sc.Engine)
	}
}

// entryNames returns bundle names in a stable order.
func entryNames(entries map[string]string) []string {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func statOutput(name, path string) (Output, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return Output{}, err
	}
	return Output{Name: name, Path: filepath.Clean(path), Size: fi.Size()}, nil
}
