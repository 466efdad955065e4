// Package stylesheet compiles stylesheet entries through an ordered chain of
// filters: external post-processors, asset helper resolution, the scss compiler
// and, in production, minification.
package stylesheet

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/sugarshin/frrr-boilerplate/internal/config"
	"github.com/sugarshin/frrr-boilerplate/internal/precompile"
	"github.com/sugarshin/frrr-boilerplate/internal/tools"
)

// Source is the stylesheet flowing through the chain.
type Source struct {
	// Path is the entry file the content originated from.
	Path    string
	Content []byte
}

// Filter transforms one stylesheet. Failures are reported as *tools.ToolError
// carrying step.
type Filter interface {
	Name() string
	Apply(ctx context.Context, step string, src Source) ([]byte, error)
}

// KeyedFilter is implemented by filters whose output depends on more than the
// source text. CacheKey must change whenever that output would.
type KeyedFilter interface {
	CacheKey(src Source) string
}

// CommandFilter pipes the stylesheet through an external program. {file} in the
// command is replaced with the entry path.
type CommandFilter struct {
	FilterName string
	Argv       []string
}

// NewCommandFilter builds a filter from configuration.
func NewCommandFilter(fc config.FilterConfig) *CommandFilter {
	return &CommandFilter{FilterName: fc.Name, Argv: fc.Command}
}

func (f *CommandFilter) Name() string { return f.FilterName }

func (f *CommandFilter) Apply(ctx context.Context, step string, src Source) ([]byte, error) {
	cmd, err := tools.FromArgv(f.Argv, map[string]string{"file": src.Path})
	if err != nil {
		return nil, &tools.ToolError{Step: step, Tool: f.FilterName, Err: err}
	}
	return cmd.Run(ctx, step, src.Content)
}

// helperCall matches asset-url("x"), image-url(x), asset-path('x') and image-path("x").
var helperCall = regexp.MustCompile(`\b(asset|image)-(url|path)\(\s*(?:"([^"]*)"|'([^']*)'|([^'")\s]+))\s*\)`)

// AssetHelperFilter resolves sprockets-style asset helpers to public URLs.
// *-url helpers become url("...") and *-path helpers become quoted strings.
type AssetHelperFilter struct {
	Resolver *precompile.Resolver
}

func (f *AssetHelperFilter) Name() string { return "asset-helpers" }

func (f *AssetHelperFilter) Apply(_ context.Context, step string, src Source) ([]byte, error) {
	var firstErr error
	out := helperCall.ReplaceAllFunc(src.Content, func(m []byte) []byte {
		parts := helperCall.FindSubmatch(m)
		logical := string(parts[3]) + string(parts[4]) + string(parts[5])
		u, err := f.Resolver.URL(logical)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return m
		}
		if string(parts[2]) == "url" {
			return []byte(`url("` + u + `")`)
		}
		return []byte(`"` + u + `"`)
	})
	if firstErr != nil {
		return nil, &tools.ToolError{Step: step, Tool: f.Name(), Err: fmt.Errorf("%s: %w", src.Path, firstErr)}
	}
	return out, nil
}

// CacheKey lists the URL every helper in src resolves to, so a changed image
// digest invalidates cached production output.
func (f *AssetHelperFilter) CacheKey(src Source) string {
	var b strings.Builder
	for _, parts := range helperCall.FindAllSubmatch(src.Content, -1) {
		u, err := f.Resolver.URL(string(parts[3]) + string(parts[4]) + string(parts[5]))
		if err != nil {
			u = "error:" + err.Error()
		}
		b.WriteString(u)
		b.WriteByte(0)
	}
	return b.String()
}

// MinifyFilter minifies compiled CSS with the esbuild transform API.
type MinifyFilter struct{}

func (MinifyFilter) Name() string { return "minify" }

func (f MinifyFilter) Apply(_ context.Context, step string, src Source) ([]byte, error) {
	res := api.Transform(string(src.Content), api.TransformOptions{
		Loader:           api.LoaderCSS,
		MinifyWhitespace: true,
		MinifySyntax:     true,
		Sourcefile:       src.Path,
		LogLevel:         api.LogLevelSilent,
	})
	if len(res.Errors) > 0 {
		msgs := make([]string, 0, len(res.Errors))
		for _, m := range res.Errors {
			msgs = append(msgs, m.Text)
		}
		return nil, &tools.ToolError{Step: step, Tool: f.Name(), Err: errors.New(strings.Join(msgs, "; "))}
	}
	return res.Code, nil
}
