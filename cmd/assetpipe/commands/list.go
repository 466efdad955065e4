package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/sugarshin/frrr-boilerplate/internal/assets"
	"github.com/sugarshin/frrr-boilerplate/internal/orchestrator"
)

// ListCmd implements 'list'.
type ListCmd struct{}

func (l *ListCmd) Run(_ context.Context, g *Global, _ *CLI) error {
	registry, err := orchestrator.NewRegistry(orchestrator.PipelineSteps(assets.NewPipeline()))
	if err != nil {
		return err
	}
	for _, name := range registry.Names() {
		t, err := registry.Lookup(name)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(g.Out, "%-14s %s\n", name, t.Description)
		var steps []string
		for _, task := range t.Graph.Order() {
			if deps := t.Graph.Deps(task); len(deps) > 0 {
				task += " <- " + strings.Join(deps, ", ")
			}
			steps = append(steps, task)
		}
		_, _ = fmt.Fprintf(g.Out, "%-14s   %s\n", "", strings.Join(steps, "; "))
		if t.Mode != "" {
			_, _ = fmt.Fprintf(g.Out, "%-14s   mode: %s\n", "", t.Mode)
		}
	}
	_, _ = fmt.Fprintf(g.Out, "%-14s %s\n", assets.StepServer, "live-reload proxy (long-running)")
	_, _ = fmt.Fprintf(g.Out, "%-14s %s\n", assets.StepWatch, "default, then server and source watching (long-running)")
	return nil
}
