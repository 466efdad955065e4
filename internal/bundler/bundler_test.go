package bundler

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sugarshin/frrr-boilerplate/internal/config"
	"github.com/sugarshin/frrr-boilerplate/internal/tools"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func scriptProject(t *testing.T) (string, config.ScriptsConfig) {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "js/lib/greet.js"), "export function greet(name) { return 'hello ' + name }\n")
	sc := config.Default().Scripts
	sc.Entries = map[string]string{}
	for _, name := range []string{"common", "top", "other"} {
		entry := filepath.Join("js", name, "index.js")
		writeFile(t, filepath.Join(dir, entry), "import { greet } from '../lib/greet.js'\nconst label = <b>"+name+"</b>\nconsole.log(greet('"+name+"'), label)\n")
		sc.Entries[name] = "./" + filepath.ToSlash(entry)
	}
	return dir, sc
}

func TestESBuildBundlesEveryEntry(t *testing.T) {
	dir, sc := scriptProject(t)
	outdir := filepath.Join(dir, "public/assets")
	b := &ESBuildBundler{Config: sc, WorkDir: dir}

	outs, err := b.Bundle(t.Context(), Request{Step: "webpack:dev", Outdir: outdir, SourceMap: true, Mode: config.ModeDevelopment})
	require.NoError(t, err)
	require.Len(t, outs, 3)

	names := []string{outs[0].Name, outs[1].Name, outs[2].Name}
	assert.Equal(t, []string{"common", "other", "top"}, names)
	for _, o := range outs {
		assert.Equal(t, filepath.Join(outdir, o.Name+".js"), o.Path)
		assert.Positive(t, o.Size)
		body, err := os.ReadFile(o.Path)
		require.NoError(t, err)
		assert.Contains(t, string(body), "hello ")
		assert.NotContains(t, string(body), "sourceMappingURL", "development maps are hidden")
		assert.FileExists(t, o.Path+".map")
	}
}

func TestESBuildMinifies(t *testing.T) {
	dir, sc := scriptProject(t)
	outdir := filepath.Join(dir, "out")
	b := &ESBuildBundler{Config: sc, WorkDir: dir}

	dev, err := b.Bundle(t.Context(), Request{Step: "webpack:dev", Outdir: outdir, Mode: config.ModeDevelopment})
	require.NoError(t, err)
	devSize := dev[0].Size

	prod, err := b.Bundle(t.Context(), Request{Step: "webpack:build", Outdir: outdir, Minify: true, Mode: config.ModeProduction})
	require.NoError(t, err)
	assert.Less(t, prod[0].Size, devSize)
}

func TestESBuildErrorIsToolError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "broken.js"), "import './does-not-exist.js'\n")
	b := &ESBuildBundler{Config: config.ScriptsConfig{Entries: map[string]string{"broken": "./broken.js"}}, WorkDir: dir}

	_, err := b.Bundle(t.Context(), Request{Step: "webpack:build", Outdir: filepath.Join(dir, "out")})
	require.Error(t, err)
	var te *tools.ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "webpack:build", te.Step)
	assert.Equal(t, "esbuild", te.Tool)
	assert.Contains(t, err.Error(), "does-not-exist")
}

func TestOutputsFromMetafileSkipsChunksAndMaps(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "out/app.js"), "x")
	writeFile(t, filepath.Join(dir, "out/chunk.js"), "y")
	meta := `{"outputs":{
		"out/app.js":{"entryPoint":"src/app.js","bytes":1},
		"out/app.js.map":{"bytes":2},
		"out/chunk.js":{"bytes":1}
	}}`
	outs, err := outputsFromMetafile(meta, dir)
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.Equal(t, "app", outs[0].Name)
}

func TestCommandBundlerPerEntry(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	outdir := t.TempDir()
	sc := config.ScriptsConfig{
		Engine:  config.BundlerCommand,
		Entries: map[string]string{"common": "c.js", "top": "t.js"},
		Command: []string{"sh", "-c", "echo \"// $NODE_ENV {entry}\" > {outdir}/{name}.js"},
	}
	b := &CommandBundler{Config: sc, ModeEnv: "NODE_ENV"}

	outs, err := b.Bundle(t.Context(), Request{Step: "webpack:dev", Outdir: outdir, Mode: config.ModeProduction})
	require.NoError(t, err)
	require.Len(t, outs, 2)
	body, err := os.ReadFile(filepath.Join(outdir, "top.js"))
	require.NoError(t, err)
	assert.Equal(t, "// production t.js", strings.TrimSpace(string(body)))
}

func TestCommandBundlerReadsStats(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	outdir := t.TempDir()
	writeFile(t, filepath.Join(outdir, "vendor.js"), "v")
	sc := config.ScriptsConfig{
		Entries: map[string]string{"common": "c.js"},
		Command: []string{"sh", "-c", `echo '{"assets":[{"name":"vendor.js"},{"name":"vendor.js.map"}]}'`},
	}
	outs, err := (&CommandBundler{Config: sc}).Bundle(t.Context(), Request{Step: "webpack:build", Outdir: outdir})
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.Equal(t, "vendor", outs[0].Name)
}

func TestCommandBundlerMissingOutput(t *testing.T) {
	if _, err := exec.LookPath("true"); err != nil {
		t.Skip("true not available")
	}
	sc := config.ScriptsConfig{Entries: map[string]string{"common": "c.js"}, Command: []string{"true"}}
	_, err := (&CommandBundler{Config: sc}).Bundle(t.Context(), Request{Step: "webpack:build", Outdir: t.TempDir()})
	var te *tools.ToolError
	require.ErrorAs(t, err, &te)
	assert.Contains(t, err.Error(), "expected bundle missing")
}

func TestNewSelectsEngine(t *testing.T) {
	b, err := New(config.ScriptsConfig{Engine: config.BundlerCommand}, "NODE_ENV")
	require.NoError(t, err)
	require.IsType(t, &CommandBundler{}, b)
	assert.Equal(t, "NODE_ENV", b.(*CommandBundler).ModeEnv)

	_, err = New(config.ScriptsConfig{Engine: "rollup"}, "")
	assert.Error(t, err)
}
