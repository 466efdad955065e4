package config

import "time"

// DefaultApplier applies defaults for one configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

// defaultAppliers run in order; later domains may rely on earlier ones (scripts on paths).
var defaultAppliers = []DefaultApplier{
	&PathsDefaultApplier{},
	&ScriptsDefaultApplier{},
	&StylesheetsDefaultApplier{},
	&RuntimeDefaultApplier{},
}

func applyDefaults(cfg *Config) error {
	if cfg.ModeEnv == "" {
		cfg.ModeEnv = DefaultModeEnv
	}
	for _, a := range defaultAppliers {
		if err := a.ApplyDefaults(cfg); err != nil {
			return err
		}
	}
	return nil
}

// PathsDefaultApplier mirrors the conventional Rails layout.
type PathsDefaultApplier struct{}

func (p *PathsDefaultApplier) Domain() string { return "paths" }

func (p *PathsDefaultApplier) ApplyDefaults(cfg *Config) error {
	paths := &cfg.Paths
	if paths.Assets == "" {
		paths.Assets = "./app/assets"
	}
	if paths.Output == "" {
		paths.Output = "./public/assets"
	}
	if len(paths.Images) == 0 {
		paths.Images = []string{"images/**/*.{jpg,gif,png}"}
	}
	if len(paths.Javascripts) == 0 {
		paths.Javascripts = []string{"javascripts/**/*.{js,jsx,ts,tsx}"}
	}
	if len(paths.Stylesheets) == 0 {
		paths.Stylesheets = []string{"stylesheets/**/*.scss"}
	}
	if len(paths.StylesheetEntries) == 0 {
		paths.StylesheetEntries = []string{"stylesheets/entries/*.scss"}
	}
	if len(paths.Views) == 0 {
		paths.Views = []string{"./app/views/**/*.html.*"}
	}
	return nil
}

// ScriptsDefaultApplier declares the three standard bundles.
type ScriptsDefaultApplier struct{}

func (s *ScriptsDefaultApplier) Domain() string { return "scripts" }

func (s *ScriptsDefaultApplier) ApplyDefaults(cfg *Config) error {
	sc := &cfg.Scripts
	if sc.Engine == "" {
		sc.Engine = BundlerESBuild
	}
	if len(sc.Entries) == 0 {
		sc.Entries = map[string]string{
			"common": "./app/assets/javascripts/common/index.js",
			"top":    "./app/assets/javascripts/top/index.js",
			"other":  "./app/assets/javascripts/other/index.js",
		}
	}
	if len(sc.Extensions) == 0 {
		sc.Extensions = []string{".js", ".jsx"}
	}
	if sc.Target == "" {
		sc.Target = "es2017"
	}
	return nil
}

// StylesheetsDefaultApplier configures the postcss and sass command chain.
type StylesheetsDefaultApplier struct{}

func (s *StylesheetsDefaultApplier) Domain() string { return "stylesheets" }

func (s *StylesheetsDefaultApplier) ApplyDefaults(cfg *Config) error {
	st := &cfg.Stylesheets
	if st.PostProcess == nil {
		st.PostProcess = []FilterConfig{{
			Name: "postcss",
			Command: []string{
				"npx", "postcss",
				"--syntax", "postcss-scss",
				"--use", "autoprefixer", "--use", "css-mqpacker", "--use", "postcss-nested",
				"--no-map",
			},
		}}
	}
	if len(st.Compiler.Command) == 0 {
		st.Compiler = FilterConfig{
			Name:    "sass",
			Command: []string{"npx", "sass", "--stdin", "--no-source-map", "--load-path", cfg.Paths.Assets + "/stylesheets"},
		}
	}
	if st.Compiler.Name == "" {
		st.Compiler.Name = "compiler"
	}
	return nil
}

// RuntimeDefaultApplier covers precompile, server, watch, history and notify.
type RuntimeDefaultApplier struct{}

func (r *RuntimeDefaultApplier) Domain() string { return "runtime" }

func (r *RuntimeDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Precompile.Manifest == "" {
		cfg.Precompile.Manifest = ".sprockets-manifest.json"
	}
	if cfg.Precompile.Prefix == "" {
		cfg.Precompile.Prefix = "/assets"
	}
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = "localhost:3001"
	}
	if cfg.Server.Proxy == "" {
		cfg.Server.Proxy = "http://localhost:3000"
	}
	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = 300 * time.Millisecond
	}
	if cfg.History.Path == "" {
		cfg.History.Path = ".assetpipe/history.db"
	}
	if cfg.Notify.Subject == "" {
		cfg.Notify.Subject = "assetpipe.runs"
	}
	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))
	return nil
}
