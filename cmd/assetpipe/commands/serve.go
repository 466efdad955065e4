package commands

import (
	"context"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/sugarshin/frrr-boilerplate/internal/assets"
	"github.com/sugarshin/frrr-boilerplate/internal/config"
	"github.com/sugarshin/frrr-boilerplate/internal/devserver"
	"github.com/sugarshin/frrr-boilerplate/internal/orchestrator"
	"github.com/sugarshin/frrr-boilerplate/internal/watch"
)

// ServerCmd implements 'server'.
type ServerCmd struct {
	Prebuild bool   `help:"Run the default target before listening"`
	Listen   string `help:"Override server.listen"`
}

func (s *ServerCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	a, err := newApp(g, root)
	if err != nil {
		return err
	}
	defer a.Close()

	if s.Prebuild {
		a.cfg.Server.Prebuild = true
	}
	if s.Listen != "" {
		a.cfg.Server.Listen = s.Listen
	}
	srv, err := devserver.New(a.cfg, devserver.Options{Runner: a.runner, Recorder: a.recorder, Registry: a.registry})
	if err != nil {
		return err
	}
	return orchestrator.Classify(assets.StepServer, srv.ListenAndServe(ctx))
}

// WatchCmd implements 'watch'.
type WatchCmd struct {
	NoServer bool `name:"no-server" help:"Do not start the dev server"`
}

func (w *WatchCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	a, err := newApp(g, root)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.runner.Run(ctx, assets.StepDefault); err != nil {
		return orchestrator.Classify(assets.StepDefault, err)
	}

	watcher, err := watch.New(watch.Options{
		Rules:        WatchRules(a.cfg),
		Runner:       a.runner,
		Debounce:     a.cfg.Watch.Debounce,
		PollInterval: a.cfg.Watch.PollInterval,
		Recorder:     a.recorder,
	})
	if err != nil {
		return err
	}

	var srv *devserver.Server
	if !w.NoServer {
		// The default target already ran; the server must not build again.
		srvCfg := *a.cfg
		srvCfg.Server.Prebuild = false
		if srv, err = devserver.New(&srvCfg, devserver.Options{Recorder: a.recorder, Registry: a.registry}); err != nil {
			return err
		}
	}

	eg, ectx := errgroup.WithContext(ctx)
	eg.Go(func() error { return watcher.Run(ectx) })
	if srv != nil {
		eg.Go(func() error { return srv.ListenAndServe(ectx) })
	}
	return orchestrator.Classify(assets.StepWatch, eg.Wait())
}

// WatchRules maps stylesheet sources to build:scss and script sources to webpack:dev.
func WatchRules(cfg *config.Config) []watch.Rule {
	under := func(patterns []string) []string {
		out := make([]string, 0, len(patterns))
		for _, p := range patterns {
			out = append(out, filepath.Join(cfg.Paths.Assets, p))
		}
		return out
	}
	return []watch.Rule{
		{Target: assets.StepStylesheets, Patterns: under(cfg.Paths.Stylesheets)},
		{Target: assets.StepBundleDev, Patterns: under(cfg.Paths.Javascripts)},
	}
}
