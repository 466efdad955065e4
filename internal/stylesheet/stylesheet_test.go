package stylesheet

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sugarshin/frrr-boilerplate/internal/precompile"
	"github.com/sugarshin/frrr-boilerplate/internal/tools"
)

type countingFilter struct {
	calls atomic.Int32
	fn    func([]byte) ([]byte, error)
}

func (f *countingFilter) Name() string { return "counting" }

func (f *countingFilter) Apply(_ context.Context, _ string, src Source) ([]byte, error) {
	f.calls.Add(1)
	if f.fn != nil {
		return f.fn(src.Content)
	}
	return src.Content, nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func emitTo(dir string) EmitFunc {
	return func(logical string, css []byte) (string, error) {
		p := filepath.Join(dir, logical)
		return p, os.WriteFile(p, css, 0o644)
	}
}

func TestAssetHelperFilter(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "images/bg.png"), "bg")

	f := &AssetHelperFilter{Resolver: &precompile.Resolver{Prefix: "/assets", Roots: []string{filepath.Join(root, "images")}}}
	in := `.a { background: image-url("bg.png"); } .b { content: asset-path('fonts/x.woff'); } .c { background: asset-url(bg.png) }`
	out, err := f.Apply(t.Context(), "build:scss", Source{Path: "app.scss", Content: []byte(in)})
	require.NoError(t, err)
	assert.Equal(t, `.a { background: url("/assets/bg.png"); } .b { content: "/assets/fonts/x.woff"; } .c { background: url("/assets/bg.png") }`, string(out))
}

func TestAssetHelperFilterFingerprints(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "images/bg.png"), "bg")
	f := &AssetHelperFilter{Resolver: &precompile.Resolver{Prefix: "/assets", Roots: []string{filepath.Join(root, "images")}, Fingerprint: true}}

	out, err := f.Apply(t.Context(), "build:scss", Source{Content: []byte(`a{b:image-url("bg.png")}`)})
	require.NoError(t, err)
	assert.Equal(t, `a{b:url("/assets/bg-`+precompile.Digest([]byte("bg"), 0)+`.png")}`, string(out))

	_, err = f.Apply(t.Context(), "build:scss", Source{Path: "app.scss", Content: []byte(`a{b:image-url("nope.png")}`)})
	var te *tools.ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "asset-helpers", te.Tool)
	assert.ErrorIs(t, err, precompile.ErrAssetNotFound)
}

func TestMinifyFilter(t *testing.T) {
	in := "a {\n  color: blue;\n}\n\nb {\n  margin: 0px;\n}\n"
	out, err := MinifyFilter{}.Apply(t.Context(), "build:scss", Source{Content: []byte(in)})
	require.NoError(t, err)
	css := strings.TrimSpace(string(out))
	assert.Less(t, len(css), len(in))
	assert.NotContains(t, css, "\n")
	assert.True(t, strings.HasPrefix(css, "a{color:"), css)
}

func TestCommandFilter(t *testing.T) {
	if _, err := exec.LookPath("tr"); err != nil {
		t.Skip("tr not available")
	}
	f := &CommandFilter{FilterName: "upper", Argv: []string{"tr", "a-z", "A-Z"}}
	out, err := f.Apply(t.Context(), "build:scss", Source{Content: []byte("body{}")})
	require.NoError(t, err)
	assert.Equal(t, "BODY{}", string(out))
}

func TestCompileRunsFiltersInOrder(t *testing.T) {
	dir := t.TempDir()
	out := t.TempDir()
	writeFile(t, filepath.Join(dir, "app.scss"), "x")
	appendStep := func(s string) *countingFilter {
		return &countingFilter{fn: func(b []byte) ([]byte, error) { return append(b, s...), nil }}
	}
	c := &Compiler{Filters: []Filter{appendStep("1"), appendStep("2"), appendStep("3")}}

	res, err := c.Compile(t.Context(), []string{filepath.Join(dir, "app.scss")}, Options{Step: "build:scss", Emit: emitTo(out)})
	require.NoError(t, err)
	assert.Len(t, res.Compiled, 1)
	body, err := os.ReadFile(filepath.Join(out, "app.css"))
	require.NoError(t, err)
	assert.Equal(t, "x123", string(body))
}

func TestCompileCache(t *testing.T) {
	dir := t.TempDir()
	out := t.TempDir()
	entry := filepath.Join(dir, "app.scss")
	writeFile(t, entry, "a{}")
	counter := &countingFilter{}
	c := &Compiler{Filters: []Filter{counter}, Cache: NewCache()}
	opts := Options{Step: "build:scss", Variant: "development", PartialsDigest: "p1", Emit: emitTo(out)}

	_, err := c.Compile(t.Context(), []string{entry}, opts)
	require.NoError(t, err)
	res, err := c.Compile(t.Context(), []string{entry}, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{entry}, res.Skipped)
	assert.Equal(t, int32(1), counter.calls.Load())

	opts.PartialsDigest = "p2"
	_, err = c.Compile(t.Context(), []string{entry}, opts)
	require.NoError(t, err)
	assert.Equal(t, int32(2), counter.calls.Load())

	opts.Variant = "production"
	_, err = c.Compile(t.Context(), []string{entry}, opts)
	require.NoError(t, err)
	assert.Equal(t, int32(3), counter.calls.Load())

	require.NoError(t, os.Remove(filepath.Join(out, "app.css")))
	_, err = c.Compile(t.Context(), []string{entry}, opts)
	require.NoError(t, err)
	assert.Equal(t, int32(4), counter.calls.Load(), "missing output forces a rebuild")
}

func TestCompileCacheTracksFingerprintedHelpers(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()
	img := filepath.Join(root, "images/bg.png")
	writeFile(t, img, "bg-v1")
	entry := filepath.Join(root, "app.scss")
	writeFile(t, entry, `a{b:image-url("bg.png")}`)

	helpers := &AssetHelperFilter{Resolver: &precompile.Resolver{Prefix: "/assets", Roots: []string{filepath.Join(root, "images")}, Fingerprint: true}}
	c := &Compiler{Filters: []Filter{helpers}, Cache: NewCache()}
	opts := Options{Step: "build:scss", Variant: "production", PartialsDigest: "p", Emit: emitTo(out)}

	_, err := c.Compile(t.Context(), []string{entry}, opts)
	require.NoError(t, err)
	res, err := c.Compile(t.Context(), []string{entry}, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{entry}, res.Skipped)

	writeFile(t, img, "bg-v2")
	res, err = c.Compile(t.Context(), []string{entry}, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{entry}, res.Compiled)
	body, err := os.ReadFile(filepath.Join(out, "app.css"))
	require.NoError(t, err)
	assert.Contains(t, string(body), "bg-"+precompile.Digest([]byte("bg-v2"), 0)+".png")
}

func TestCompileStopsOnFilterError(t *testing.T) {
	dir := t.TempDir()
	out := t.TempDir()
	writeFile(t, filepath.Join(dir, "bad.scss"), "x")
	boom := &tools.ToolError{Step: "build:scss", Tool: "sass", Err: errors.New("exit 65")}
	failing := &countingFilter{fn: func([]byte) ([]byte, error) { return nil, boom }}
	after := &countingFilter{}
	c := &Compiler{Filters: []Filter{failing, after}, Cache: NewCache()}

	_, err := c.Compile(t.Context(), []string{filepath.Join(dir, "bad.scss")}, Options{Step: "build:scss", Emit: emitTo(out)})
	assert.Same(t, boom, err)
	assert.Equal(t, int32(0), after.calls.Load())
	assert.NoFileExists(t, filepath.Join(out, "bad.css"))
}

func TestPartialsDigest(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "stylesheets/_vars.scss"), "$a: 1;")
	writeFile(t, filepath.Join(root, "stylesheets/entries/app.scss"), "@import 'vars';")

	d1, err := PartialsDigest(root, []string{"stylesheets/**/*.scss"})
	require.NoError(t, err)
	d2, err := PartialsDigest(root, []string{"stylesheets/**/*.scss"})
	require.NoError(t, err)
	assert.Equal(t, d1, d2)

	writeFile(t, filepath.Join(root, "stylesheets/_vars.scss"), "$a: 2;")
	d3, err := PartialsDigest(root, []string{"stylesheets/**/*.scss"})
	require.NoError(t, err)
	assert.NotEqual(t, d1, d3)
}
