package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the immutable build configuration. It is loaded once at startup and
// passed explicitly to every task; nothing in the build reads ambient state.
type Config struct {
	// ModeEnv names the environment variable holding the build mode.
	ModeEnv     string            `yaml:"mode_env"`
	Paths       PathsConfig       `yaml:"paths"`
	Scripts     ScriptsConfig     `yaml:"scripts"`
	Stylesheets StylesheetsConfig `yaml:"stylesheets"`
	Precompile  PrecompileConfig  `yaml:"precompile"`
	Server      ServerConfig      `yaml:"server"`
	Watch       WatchConfig       `yaml:"watch"`
	History     HistoryConfig     `yaml:"history"`
	Notify      NotifyConfig      `yaml:"notify"`
	Logging     LoggingConfig     `yaml:"logging"`
	// Concurrency bounds how many tasks run at once; 0 means unbounded.
	Concurrency int `yaml:"concurrency"`

	// Mode is derived from ModeEnv when the file is loaded.
	Mode Mode `yaml:"-"`
}

// PathsConfig is the path set: glob groups relative to Assets plus the output directory.
type PathsConfig struct {
	Assets            string   `yaml:"assets"`
	Output            string   `yaml:"output"`
	Images            []string `yaml:"images"`
	Javascripts       []string `yaml:"javascripts"`
	Stylesheets       []string `yaml:"stylesheets"`
	StylesheetEntries []string `yaml:"stylesheet_entries"`
	// Views are relative to the working directory, not to Assets.
	Views []string `yaml:"views"`
}

// BundlerEngine selects the script bundler implementation.
type BundlerEngine string

const (
	BundlerESBuild BundlerEngine = "esbuild"
	BundlerCommand BundlerEngine = "command"
)

// ScriptsConfig describes script bundling.
type ScriptsConfig struct {
	Engine BundlerEngine `yaml:"engine"`
	// Entries maps bundle names to entry files relative to the working directory.
	Entries map[string]string `yaml:"entries"`
	// Extensions resolved as JSX by the in-process bundler.
	Extensions []string `yaml:"extensions"`
	Target     string   `yaml:"target"`
	// NoSourceMap disables the hidden (external, unreferenced) source maps of development bundles.
	NoSourceMap bool `yaml:"no_source_map"`
	// Command is used by the command engine; {entry}, {name} and {outdir} are substituted.
	Command []string `yaml:"command,omitempty"`
}

// FilterConfig is one external stylesheet filter reading stdin and writing stdout.
type FilterConfig struct {
	Name    string   `yaml:"name"`
	Command []string `yaml:"command"`
}

// StylesheetsConfig describes the stylesheet filter chain.
type StylesheetsConfig struct {
	// PostProcess runs before asset helpers are resolved (prefixing, media-query packing, nesting).
	PostProcess []FilterConfig `yaml:"post_process"`
	// Compiler turns scss into css; it runs after asset helpers are resolved.
	Compiler FilterConfig `yaml:"compiler"`
	NoCache  bool         `yaml:"no_cache"`
}

// PrecompileConfig controls fingerprinting and the manifest.
type PrecompileConfig struct {
	Manifest string `yaml:"manifest"`
	Prefix   string `yaml:"prefix"`
	// DigestLength truncates the hex digest; 0 keeps it whole.
	DigestLength int `yaml:"digest_length"`
}

// ServerConfig describes the development proxy.
type ServerConfig struct {
	Listen       string `yaml:"listen"`
	Proxy        string `yaml:"proxy"`
	Prebuild     bool   `yaml:"prebuild"`
	NoLiveReload bool   `yaml:"no_live_reload"`
	NoMetrics    bool   `yaml:"no_metrics"`
}

// WatchConfig controls the source watcher.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
	// PollInterval switches from fsnotify to periodic scanning when positive.
	PollInterval time.Duration `yaml:"poll_interval"`
}

// HistoryConfig controls the SQLite run history.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// NotifyConfig controls NATS publication of run outcomes.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// Load reads the configuration file at path. A missing file yields the defaults so
// that a project laid out conventionally needs no configuration at all.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		slog.Debug("Configuration file not found, using defaults", "path", path)
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := applyDefaults(cfg); err != nil {
		return nil, err
	}
	cfg.Mode = ModeFromEnv(cfg.ModeEnv)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is present, in development mode.
func Default() *Config {
	cfg := &Config{}
	_ = applyDefaults(cfg)
	cfg.Mode = ModeDevelopment
	return cfg
}

// WithMode returns a copy of c running in mode m. The receiver is not modified.
func (c *Config) WithMode(m Mode) *Config {
	cp := *c
	cp.Mode = m
	return &cp
}

// Init writes an example configuration file.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
	}

	example := Default()
	example.History.Enabled = true
	data, err := yaml.Marshal(example)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
