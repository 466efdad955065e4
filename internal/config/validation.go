package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	ferrors "github.com/sugarshin/frrr-boilerplate/internal/foundation/errors"
)

var entryNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// Validate checks a configuration after defaults have been applied.
func Validate(cfg *Config) error {
	v := &configurationValidator{config: cfg}
	for _, check := range []func() error{v.validatePaths, v.validateScripts, v.validateStylesheets, v.validateServer, v.validateRuntime} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

type configurationValidator struct {
	config *Config
}

func invalid(format string, args ...any) error {
	return ferrors.ConfigError(fmt.Sprintf(format, args...)).Build()
}

func (cv *configurationValidator) validatePaths() error {
	p := cv.config.Paths
	out := filepath.Clean(p.Output)
	if out == "." || out == "/" || out == filepath.Clean(p.Assets) {
		return invalid("paths.output %q must be a dedicated directory", p.Output)
	}
	if rel, err := filepath.Rel(out, filepath.Clean(p.Assets)); err == nil && !strings.HasPrefix(rel, "..") {
		return invalid("paths.output %q must not contain the assets root %q", p.Output, p.Assets)
	}
	groups := map[string][]string{
		"images":             p.Images,
		"javascripts":        p.Javascripts,
		"stylesheets":        p.Stylesheets,
		"stylesheet_entries": p.StylesheetEntries,
		"views":              p.Views,
	}
	for name, patterns := range groups {
		for _, pattern := range patterns {
			if !doublestar.ValidatePattern(filepath.ToSlash(pattern)) {
				return invalid("paths.%s: invalid glob %q", name, pattern)
			}
		}
	}
	return nil
}

func (cv *configurationValidator) validateScripts() error {
	sc := cv.config.Scripts
	switch sc.Engine {
	case BundlerESBuild:
	case BundlerCommand:
		if len(sc.Command) == 0 {
			return invalid("scripts.command is required when scripts.engine is %q", BundlerCommand)
		}
	default:
		return invalid("scripts.engine %q is not supported (esbuild|command)", sc.Engine)
	}
	for name, path := range sc.Entries {
		if !entryNamePattern.MatchString(name) {
			return invalid("scripts.entries: invalid bundle name %q", name)
		}
		if strings.TrimSpace(path) == "" {
			return invalid("scripts.entries.%s: path is empty", name)
		}
	}
	return nil
}

func (cv *configurationValidator) validateStylesheets() error {
	seen := map[string]bool{}
	for i, f := range cv.config.Stylesheets.PostProcess {
		if f.Name == "" || len(f.Command) == 0 {
			return invalid("stylesheets.post_process[%d] needs a name and a command", i)
		}
		if seen[f.Name] {
			return invalid("stylesheets.post_process: duplicate filter %q", f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}

func (cv *configurationValidator) validateServer() error {
	u, err := url.Parse(cv.config.Server.Proxy)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return invalid("server.proxy %q must be an absolute URL", cv.config.Server.Proxy)
	}
	return nil
}

func (cv *configurationValidator) validateRuntime() error {
	if cv.config.Concurrency < 0 {
		return invalid("concurrency must not be negative")
	}
	if cv.config.Precompile.DigestLength < 0 || cv.config.Precompile.DigestLength > 64 {
		return invalid("precompile.digest_length must be between 0 and 64")
	}
	if !strings.HasPrefix(cv.config.Precompile.Prefix, "/") {
		return invalid("precompile.prefix %q must start with /", cv.config.Precompile.Prefix)
	}
	return nil
}
