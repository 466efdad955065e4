package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/sugarshin/frrr-boilerplate/internal/foundation/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "assetpipe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("NODE_ENV", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "./app/assets", cfg.Paths.Assets)
	assert.Equal(t, "./public/assets", cfg.Paths.Output)
	assert.Equal(t, []string{"images/**/*.{jpg,gif,png}"}, cfg.Paths.Images)
	assert.Equal(t, []string{"stylesheets/entries/*.scss"}, cfg.Paths.StylesheetEntries)
	assert.Len(t, cfg.Scripts.Entries, 3)
	assert.Equal(t, BundlerESBuild, cfg.Scripts.Engine)
	assert.Equal(t, 300*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, ModeDevelopment, cfg.Mode)
}

func TestLoad_ModeReadFromEnvironment(t *testing.T) {
	cases := []struct {
		env  string
		want Mode
	}{
		{"production", ModeProduction},
		{"development", ModeDevelopment},
		{"Production", ModeDevelopment},
		{"", ModeDevelopment},
	}
	for _, tc := range cases {
		t.Run(tc.env, func(t *testing.T) {
			t.Setenv("NODE_ENV", tc.env)
			cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
			require.NoError(t, err)
			assert.Equal(t, tc.want, cfg.Mode)
		})
	}
}

func TestLoad_CustomModeEnvAndExpansion(t *testing.T) {
	t.Setenv("ASSET_MODE", "production")
	t.Setenv("OUT_DIR", "build/assets")

	path := writeConfig(t, `
mode_env: ASSET_MODE
paths:
  output: ${OUT_DIR}
watch:
  debounce: 50ms
scripts:
  entries:
    app: ./src/app.js
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ModeProduction, cfg.Mode)
	assert.Equal(t, "build/assets", cfg.Paths.Output)
	assert.Equal(t, 50*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, map[string]string{"app": "./src/app.js"}, cfg.Scripts.Entries)
}

func TestLoad_ValidationErrorsAreConfigCategory(t *testing.T) {
	cases := map[string]string{
		"output is cwd":     "paths:\n  output: .\n",
		"bad engine":        "scripts:\n  engine: rollup\n",
		"command no cmd":    "scripts:\n  engine: command\n",
		"bad glob":          "paths:\n  images: ['images/[*.png']\n",
		"bad proxy":         "server:\n  proxy: localhost\n",
		"bad entry name":    "scripts:\n  entries:\n    '../evil': ./x.js\n",
		"negative parallel": "concurrency: -1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
			assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig), "got %v", err)
		})
	}
}

func TestWithModeDoesNotMutate(t *testing.T) {
	cfg := Default()
	prod := cfg.WithMode(ModeProduction)

	assert.Equal(t, ModeDevelopment, cfg.Mode)
	assert.True(t, prod.Mode.IsProduction())
	assert.Equal(t, cfg.Paths, prod.Paths)
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assetpipe.yaml")
	require.NoError(t, Init(path, false))
	require.Error(t, Init(path, false))
	require.NoError(t, Init(path, true))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.History.Enabled)
}

func TestLoggingNewLogger(t *testing.T) {
	assert.Equal(t, LogLevelWarn, NormalizeLogLevel(" WARNING "))
	assert.Equal(t, LogFormatJSON, NormalizeLogFormat("JSON"))
	assert.Equal(t, LogFormatText, NormalizeLogFormat("xml"))

	l := LoggingConfig{Level: LogLevelError}.NewLogger(os.Stderr, true)
	assert.True(t, l.Enabled(t.Context(), -4))
}
