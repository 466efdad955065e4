package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/sugarshin/frrr-boilerplate/internal/eventstore"
)

// HistoryCmd implements 'history [run-id]'.
type HistoryCmd struct {
	RunID string `arg:"" optional:"" name:"run-id" help:"Show the tasks of one run"`
	Limit int    `short:"n" help:"Number of runs to show" default:"10"`
	JSON  bool   `help:"Print JSON instead of a table"`
}

func (h *HistoryCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfg.History.Path); os.IsNotExist(err) {
		_, _ = fmt.Fprintf(g.Out, "No run history at %s (set history.enabled to record runs)\n", cfg.History.Path)
		return nil
	}
	store, err := eventstore.NewSQLiteStore(cfg.History.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if h.RunID != "" {
		run, err := eventstore.GetRun(ctx, store, h.RunID)
		if err != nil {
			return err
		}
		if h.JSON {
			return writeJSON(g, run)
		}
		return printRun(g, run)
	}

	runs, err := eventstore.History(ctx, store, h.Limit)
	if err != nil {
		return err
	}
	if h.JSON {
		return writeJSON(g, runs)
	}
	tw := tabwriter.NewWriter(g.Out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RUN ID\tTARGET\tMODE\tSTATUS\tSTARTED\tDURATION")
	for _, r := range runs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.RunID, r.Target, r.Mode, r.Status,
			r.StartedAt.Local().Format(time.DateTime), r.Duration.Round(time.Millisecond))
	}
	return tw.Flush()
}

func printRun(g *Global, run *eventstore.RunSummary) error {
	_, _ = fmt.Fprintf(g.Out, "Run %s: %s (%s) %s\n", run.RunID, run.Target, run.Mode, run.Status)
	if run.Revision != "" {
		_, _ = fmt.Fprintf(g.Out, "Revision: %s\n", run.Revision)
	}
	if run.Error != "" {
		_, _ = fmt.Fprintf(g.Out, "Error: %s\n", run.Error)
	}
	tw := tabwriter.NewWriter(g.Out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TASK\tSTATE\tDURATION\tERROR")
	for _, t := range run.Tasks {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.Name, t.State, t.Duration.Round(time.Millisecond), t.Error)
	}
	for _, name := range run.NotRun {
		_, _ = fmt.Fprintf(tw, "%s\tpending\t-\t\n", name)
	}
	return tw.Flush()
}

func writeJSON(g *Global, v any) error {
	enc := json.NewEncoder(g.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
