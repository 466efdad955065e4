package commands

import (
	"log/slog"
	"os"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/sugarshin/frrr-boilerplate/internal/assets"
	"github.com/sugarshin/frrr-boilerplate/internal/config"
	"github.com/sugarshin/frrr-boilerplate/internal/eventstore"
	"github.com/sugarshin/frrr-boilerplate/internal/events"
	"github.com/sugarshin/frrr-boilerplate/internal/logfields"
	"github.com/sugarshin/frrr-boilerplate/internal/metrics"
	"github.com/sugarshin/frrr-boilerplate/internal/notify"
	"github.com/sugarshin/frrr-boilerplate/internal/orchestrator"
)

// app is the wired runtime shared by the commands that run targets.
type app struct {
	cfg      *config.Config
	runner   *orchestrator.Runner
	registry *prom.Registry
	recorder *metrics.PrometheusRecorder
	bus      *events.Bus
	closers  []func()
}

// loadConfig loads the configuration and installs its logger.
func loadConfig(g *Global, root *CLI) (*config.Config, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return nil, err
	}
	g.Logger = cfg.Logging.NewLogger(os.Stderr, root.Verbose)
	slog.SetDefault(g.Logger)
	return cfg, nil
}

// newApp wires the pipeline, the target registry and the optional event
// consumers. Close must be called to flush history and notifications.
func newApp(g *Global, root *CLI) (*app, error) {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return nil, err
	}
	registry, err := orchestrator.NewRegistry(orchestrator.PipelineSteps(assets.NewPipeline()))
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, registry: prom.NewRegistry(), bus: events.NewBus()}
	a.recorder = metrics.NewPrometheusRecorder(a.registry)

	if cfg.History.Enabled {
		store, err := eventstore.NewSQLiteStore(cfg.History.Path)
		if err != nil {
			return nil, err
		}
		rec := eventstore.Attach(a.bus, store)
		a.closers = append(a.closers, func() { _ = store.Close() }, rec.Close)
	}
	if cfg.Notify.NATSURL != "" {
		conn, err := notify.Connect(cfg.Notify)
		if err != nil {
			// Notifications are best effort; the build still runs.
			slog.Warn("Run notifications disabled", logfields.Error(err))
		} else {
			n := notify.Attach(a.bus, conn, cfg.Notify.Subject)
			a.closers = append(a.closers, func() { _ = conn.Drain() }, n.Close)
		}
	}

	a.runner = orchestrator.NewRunner(cfg, registry,
		orchestrator.WithBus(a.bus),
		orchestrator.WithRecorder(a.recorder))
	return a, nil
}

// Close stops the event consumers in reverse order of creation, then the bus.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.bus.Close()
}
