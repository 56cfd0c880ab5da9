// Package server is the resident HTTP service: a chi router serving
// authorized files and commit views, plus the sweeper that retires the
// process once every authorization has expired.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/thatjpcsguy/peekfs/internal/render"
	"github.com/thatjpcsguy/peekfs/internal/store"
)

const (
	shutdownTimeout = 10 * time.Second

	// Per-IP rate limit on token-bearing routes. Generous for a human
	// following links, tight enough to slow down token scanning.
	rateLimitPerSecond = 10
	rateLimitBurst     = 20
)

// Options configures a Server.
type Options struct {
	Addr          string
	Store         *store.Store
	Renderer      *render.Renderer
	Logger        *slog.Logger
	SweepInterval time.Duration

	// DisableSweep keeps the service up even with nothing to serve, for
	// running `serve` by hand in a terminal.
	DisableSweep bool
}

// Server is the peekfs HTTP service.
type Server struct {
	httpServer *http.Server
	sweeper    *Sweeper
	logger     *slog.Logger
}

// New assembles the router, middleware and sweeper.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	gw := NewGateway(opts.Store, opts.Renderer, logger)

	router := chi.NewRouter()
	router.Use(middleware.RealIP)
	router.Use(RequestLogger(logger))
	router.Use(MetricsMiddleware())
	router.Use(middleware.Recoverer)

	router.Get("/healthz", handleHealthz)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	router.Group(func(r chi.Router) {
		r.Use(RateLimit(rateLimitBurst, rateLimitPerSecond))
		r.Get("/f/{token}/{name}", gw.ServeFile)
		r.Get("/git/{token}", gw.ServeCommit)
	})

	var sweeper *Sweeper
	if !opts.DisableSweep {
		sweeper = NewSweeper(opts.Store, logger, opts.SweepInterval)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         opts.Addr,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		sweeper: sweeper,
		logger:  logger,
	}
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until a shutdown signal arrives or the sweeper reports that
// no active authorizations remain, then shuts down gracefully.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("http server listening", slog.String("addr", s.httpServer.Addr))

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A nil idle channel blocks forever, so a server without a sweeper
	// only stops on a signal.
	var idle <-chan struct{}
	if s.sweeper != nil {
		go s.sweeper.Run(ctx)
		idle = s.sweeper.Idle()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	case <-idle:
		s.logger.Info("shutting down, nothing left to serve")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down cleanly: %w", err)
	}

	s.logger.Info("http server stopped")
	return nil
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
