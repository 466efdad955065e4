// Package devserver is the development proxy: it forwards requests to the
// application server, injects a live-reload client into HTML pages, and tells
// browsers to reload when built assets or view templates change.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/sugarshin/frrr-boilerplate/internal/config"
	ferrors "github.com/sugarshin/frrr-boilerplate/internal/foundation/errors"
	"github.com/sugarshin/frrr-boilerplate/internal/logfields"
	"github.com/sugarshin/frrr-boilerplate/internal/metrics"
	tg "github.com/sugarshin/frrr-boilerplate/internal/taskgraph"
	"github.com/sugarshin/frrr-boilerplate/internal/version"
	"github.com/sugarshin/frrr-boilerplate/internal/watch"
)

const (
	reservedPrefix  = "/__assetpipe/"
	shutdownTimeout = 5 * time.Second
	// PrebuildTarget is run before listening when prebuild is enabled.
	PrebuildTarget = "default"
	reloadTarget   = "reload"
)

// Runner runs a named build target.
type Runner interface {
	Run(ctx context.Context, target string) (*tg.Report, error)
}

// Options carry the optional collaborators of a Server.
type Options struct {
	// Runner is required when cfg.Server.Prebuild is set.
	Runner   Runner
	Recorder metrics.Recorder
	// Registry backs the metrics endpoint; nil disables it.
	Registry *prom.Registry
}

// Server is the development proxy.
type Server struct {
	cfg      *config.Config
	opts     Options
	upstream *url.URL
	hub      *Hub
	adapter  *ferrors.HTTPErrorAdapter
}

// New validates the proxy target and returns a server.
func New(cfg *config.Config, opts Options) (*Server, error) {
	upstream, err := url.Parse(cfg.Server.Proxy)
	if err != nil || upstream.Scheme == "" || upstream.Host == "" {
		return nil, ferrors.ConfigError(fmt.Sprintf("invalid server.proxy %q", cfg.Server.Proxy)).
			WithContext("proxy", cfg.Server.Proxy).
			Build()
	}
	if cfg.Server.Prebuild && opts.Runner == nil {
		return nil, ferrors.InternalError("prebuild requires a runner").Build()
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	return &Server{
		cfg:      cfg,
		opts:     opts,
		upstream: upstream,
		hub:      NewHub(opts.Recorder),
		adapter:  ferrors.NewHTTPErrorAdapter(slog.Default()),
	}, nil
}

// Hub returns the live-reload hub.
func (s *Server) Hub() *Hub { return s.hub }

// Handler returns the full request handler: reserved endpoints first, then the proxy.
func (s *Server) Handler() http.Handler {
	tag := ScriptTag
	if s.cfg.Server.NoLiveReload {
		tag = ""
	}
	mux := http.NewServeMux()
	if !s.cfg.Server.NoLiveReload {
		mux.Handle(reservedPrefix+"livereload", s.hub)
		mux.HandleFunc(reservedPrefix+"livereload.js", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
			w.Header().Set("Cache-Control", "no-cache")
			if _, err := w.Write([]byte(clientScript)); err != nil {
				slog.Debug("write livereload script", logfields.Error(err))
			}
		})
	}
	mux.HandleFunc(reservedPrefix+"health", s.health)
	if s.opts.Registry != nil && !s.cfg.Server.NoMetrics {
		mux.Handle(reservedPrefix+"metrics", metrics.HTTPHandler(s.opts.Registry))
	}
	mux.Handle("/", newProxy(s.upstream, tag, s.adapter))
	return chain(s.adapter, mux)
}

type healthResponse struct {
	Status   string `json:"status"`
	Upstream string `json:"upstream"`
	Clients  int    `json:"livereload_clients"`
	Version  string `json:"version"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthResponse{
		Status:   "ok",
		Upstream: s.upstream.String(),
		Clients:  s.hub.Clients(),
		Version:  version.Version,
	})
}

// ListenAndServe optionally prebuilds, then serves on cfg.Server.Listen until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.Listen)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryServer, "listen").
			WithContext("addr", s.cfg.Server.Listen).
			Build()
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.cfg.Server.Prebuild {
		slog.Info("Running prebuild", logfields.Target(PrebuildTarget))
		if _, err := s.opts.Runner.Run(ctx, PrebuildTarget); err != nil {
			_ = ln.Close()
			return err
		}
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// No write timeout: the live-reload stream is long-lived.
		IdleTimeout: 120 * time.Second,
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Dev server listening",
			logfields.URL("http://"+ln.Addr().String()),
			slog.String("proxy", s.upstream.String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return ferrors.WrapError(err, ferrors.CategoryServer, "serve").Build()
		}
		return nil
	})
	if !s.cfg.Server.NoLiveReload {
		g.Go(func() error { return s.watchOutputs(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		s.hub.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Dev server shutdown", logfields.Error(err))
		}
		return nil
	})
	return g.Wait()
}

// ReloadPatterns are the files whose change reloads the browser: built scripts
// and stylesheets in the output directory plus the view templates.
func ReloadPatterns(cfg *config.Config) []string {
	out := filepath.ToSlash(cfg.Paths.Output)
	patterns := []string{path.Join(out, "*.js"), path.Join(out, "*.css")}
	return append(patterns, cfg.Paths.Views...)
}

// watchOutputs reuses the source watcher with a runner that broadcasts instead of building.
func (s *Server) watchOutputs(ctx context.Context) error {
	if err := os.MkdirAll(s.cfg.Paths.Output, 0o755); err != nil {
		return err
	}
	w, err := watch.New(watch.Options{
		Rules:        []watch.Rule{{Target: reloadTarget, Patterns: ReloadPatterns(s.cfg)}},
		Runner:       reloader{hub: s.hub},
		Debounce:     s.cfg.Watch.Debounce,
		PollInterval: s.cfg.Watch.PollInterval,
		Message:      "File %s was %s, reloading browsers...",
	})
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

type reloader struct{ hub *Hub }

func (r reloader) Run(context.Context, string) (*tg.Report, error) {
	r.hub.Broadcast(strconv.FormatInt(time.Now().UnixNano(), 36))
	return nil, nil
}
