package commands

import (
	"io"
	"log/slog"
	"os"
)

// Global carries process-wide state shared by subcommands.
type Global struct {
	Logger *slog.Logger
	// Out receives user-facing output; logs go to stderr.
	Out io.Writer
}

// CLI is the root command line.
type CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"assetpipe.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Run     RunCmd     `cmd:"" help:"Run one or more targets in order" default:"withargs"`
	Build   BuildCmd   `cmd:"" help:"Production build: clean, images, stylesheets and bundles, then fingerprint scripts"`
	Watch   WatchCmd   `cmd:"" help:"Run the default target, start the dev server and rebuild on source changes"`
	Server  ServerCmd  `cmd:"" help:"Start the live-reload proxy in front of the application server"`
	List    ListCmd    `cmd:"" help:"List targets and their task order"`
	History HistoryCmd `cmd:"" help:"Show recent runs from the run history"`
	Init    InitCmd    `cmd:"" help:"Write an example configuration file"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// AfterApply sets up the bootstrap logger once flags are parsed. Commands that
// load a configuration replace it with the configured one.
func (c *CLI) AfterApply(g *Global) error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	g.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(g.Logger)
	if g.Out == nil {
		g.Out = os.Stdout
	}
	return nil
}
