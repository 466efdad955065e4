package bundler

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/sugarshin/frrr-boilerplate/internal/config"
	"github.com/sugarshin/frrr-boilerplate/internal/tools"
)

// CommandBundler runs an external bundler. When the command mentions {entry} or
// {name} it runs once per entry, otherwise once for all of them.
//
// If the command prints webpack-style JSON stats on stdout, the emitted assets are
// read from them; otherwise each entry is expected at <outdir>/<name>.js.
type CommandBundler struct {
	Config config.ScriptsConfig
	// ModeEnv is set to the build mode in the command's environment.
	ModeEnv string
}

func (b *CommandBundler) Bundle(ctx context.Context, req Request) ([]Output, error) {
	names := entryNames(b.Config.Entries)
	var env []string
	if b.ModeEnv != "" {
		env = []string{b.ModeEnv + "=" + req.Mode.String()}
	}

	run := func(vars map[string]string) ([]byte, error) {
		cmd, err := tools.FromArgv(b.Config.Command, vars)
		if err != nil {
			return nil, &tools.ToolError{Step: req.Step, Tool: "bundler", Err: err}
		}
		cmd.Env = env
		return cmd.Run(ctx, req.Step, nil)
	}

	var emitted []string
	if perEntry(b.Config.Command) {
		for _, name := range names {
			out, err := run(map[string]string{"entry": b.Config.Entries[name], "name": name, "outdir": req.Outdir})
			if err != nil {
				return nil, err
			}
			emitted = append(emitted, statsAssets(out)...)
		}
	} else {
		out, err := run(map[string]string{"outdir": req.Outdir})
		if err != nil {
			return nil, err
		}
		emitted = statsAssets(out)
	}

	if len(emitted) == 0 {
		for _, name := range names {
			emitted = append(emitted, name+".js")
		}
	}
	slices.Sort(emitted)
	emitted = slices.Compact(emitted)

	outs := make([]Output, 0, len(emitted))
	for _, file := range emitted {
		o, err := statOutput(strings.TrimSuffix(file, ".js"), filepath.Join(req.Outdir, file))
		if err != nil {
			return nil, &tools.ToolError{Step: req.Step, Tool: b.Config.Command[0], Err: fmt.Errorf("expected bundle missing: %w", err)}
		}
		outs = append(outs, o)
	}
	return outs, nil
}

func perEntry(argv []string) bool {
	for _, a := range argv {
		if strings.Contains(a, "{entry}") || strings.Contains(a, "{name}") {
			return true
		}
	}
	return false
}

// statsAssets extracts emitted .js files from webpack --json output.
func statsAssets(stdout []byte) []string {
	if !gjson.ValidBytes(stdout) {
		return nil
	}
	var files []string
	for _, name := range gjson.GetBytes(stdout, "assets.#.name").Array() {
		if f := name.String(); strings.HasSuffix(f, ".js") {
			files = append(files, f)
		}
	}
	return files
}
