package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sugarshin/frrr-boilerplate/internal/assets"
	"github.com/sugarshin/frrr-boilerplate/internal/config"
	ferrors "github.com/sugarshin/frrr-boilerplate/internal/foundation/errors"
	"github.com/sugarshin/frrr-boilerplate/internal/orchestrator"
	tg "github.com/sugarshin/frrr-boilerplate/internal/taskgraph"
)

// RunCmd implements 'run [targets...]'.
type RunCmd struct {
	Targets []string `arg:"" optional:"" help:"Targets to run in order (default: default)"`
	Mode    string   `help:"Override the build mode (development|production)"`
}

func (r *RunCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	mode := config.Mode(r.Mode)
	if mode != "" && mode != config.ModeDevelopment && mode != config.ModeProduction {
		return ferrors.ValidationError(fmt.Sprintf("invalid mode %q", r.Mode)).Build()
	}
	targets := r.Targets
	if len(targets) == 0 {
		targets = []string{assets.StepDefault}
	}
	for _, t := range targets {
		var err error
		switch t {
		case assets.StepServer:
			err = (&ServerCmd{}).Run(ctx, g, root)
		case assets.StepWatch:
			err = (&WatchCmd{}).Run(ctx, g, root)
		default:
			err = runTargets(ctx, g, root, mode, t)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// BuildCmd implements 'build'.
type BuildCmd struct{}

func (b *BuildCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	return runTargets(ctx, g, root, "", assets.StepBuild)
}

// runTargets runs graph targets one after another and stops at the first failure.
func runTargets(ctx context.Context, g *Global, root *CLI, mode config.Mode, targets ...string) error {
	a, err := newApp(g, root)
	if err != nil {
		return err
	}
	defer a.Close()
	if mode != "" {
		a.cfg.Mode = mode
	}

	for _, t := range targets {
		report, err := a.runner.Run(ctx, t)
		if report != nil {
			printReport(g.Out, t, report)
		}
		if err != nil {
			return orchestrator.Classify(t, err)
		}
	}
	return nil
}

func printReport(w io.Writer, target string, report *tg.Report) {
	for _, tr := range report.Tasks() {
		line := fmt.Sprintf("  %-14s %-9s", tr.Name, tr.State)
		if tr.Duration > 0 {
			line += " " + tr.Duration.Round(time.Millisecond).String()
		}
		_, _ = fmt.Fprintln(w, line)
	}
	status := "finished"
	if !report.Succeeded() {
		status = "failed"
	}
	_, _ = fmt.Fprintf(w, "%s %s after %s\n", target, status, report.Duration.Round(time.Millisecond))
}
