// Package server assembles the authgate HTTP server: a chi router whose
// configured routes each run behind the auth dispatcher with their own
// policy, plus health and metrics endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/rhuss/authgate/pkg/auth"
	"github.com/rhuss/authgate/pkg/auth/schemes"
	"github.com/rhuss/authgate/pkg/config"
	"github.com/rhuss/authgate/pkg/observability"
	"github.com/rhuss/authgate/pkg/transport"
)

// Server serves the configured routes.
type Server struct {
	cfg        *config.Config
	dispatcher *auth.Dispatcher
	router     chi.Router
	checks     map[string]HealthChecker
}

// Options carries the collaborators of New.
type Options struct {
	Deps   schemes.Deps
	Checks map[string]HealthChecker
	Logger *slog.Logger

	// Strategies are registered after the configured batch, typically
	// custom implementations.
	Strategies []auth.NamedStrategy
}

// New registers the configured strategies, sets up every route policy and
// builds the router. All route errors are reported together.
func New(cfg *config.Config, opts Options) (*Server, error) {
	reg := schemes.NewRegistry(opts.Deps)
	if err := reg.AddBatch(cfg.Auth.Strategies); err != nil {
		return nil, fmt.Errorf("registering strategies: %w", err)
	}
	for _, ns := range opts.Strategies {
		if err := reg.Add(ns.Name, ns.Options); err != nil {
			return nil, fmt.Errorf("registering strategy %q: %w", ns.Name, err)
		}
	}
	d := auth.NewDispatcher(reg)

	s := &Server{
		cfg:        cfg,
		dispatcher: d,
		checks:     opts.Checks,
	}

	r := chi.NewRouter()
	r.Use(
		transport.RequestID(),
		transport.Logging(opts.Logger),
		transport.Recovery(),
	)
	if cfg.Observability.Metrics.Enabled {
		r.Use(observability.MetricsMiddleware)
		r.Handle(cfg.Observability.Metrics.Path, promhttp.Handler())
	}
	r.Get("/healthz", s.handleHealth)

	var errs []error
	for i, rt := range cfg.Auth.Routes {
		policy, err := d.SetupRoute(rt.Auth)
		if err != nil {
			errs = append(errs, fmt.Errorf("auth.routes[%d] %s %s: %w", i, rt.MethodOrDefault(), rt.Path, err))
			continue
		}
		r.With(d.Middleware(policy)).Method(rt.MethodOrDefault(), rt.Path, actionHandler(rt.Action))
		slog.Debug("route registered",
			"method", rt.MethodOrDefault(),
			"path", rt.Path,
			"action", rt.Action,
			"strategies", policyStrategies(policy),
		)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		transport.WriteAPIError(w, apiNotFound(r))
	})

	s.router = r
	slog.Info("authentication configured",
		"strategies", reg.Names(),
		"default", reg.DefaultStrategy(),
		"routes", len(cfg.Auth.Routes),
	)
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Dispatcher returns the auth dispatcher behind the routes.
func (s *Server) Dispatcher() *auth.Dispatcher {
	return s.dispatcher
}

// Run serves on the configured port until ctx is cancelled, then shuts
// down gracefully within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+strconv.Itoa(s.cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("listening on port %d: %w", s.cfg.Server.Port, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server starting", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down gracefully")
		timeout := s.cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func policyStrategies(p *auth.Policy) []string {
	if !p.Enabled() {
		return nil
	}
	return p.Strategies
}
