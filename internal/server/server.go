// Package server exposes the load test service, run history and UI over HTTP.
package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/giantswarm/microerror"
	"github.com/giantswarm/micrologger"
	"golang.org/x/sync/errgroup"

	"github.com/studiowebux/k6ui/internal/history"
	"github.com/studiowebux/k6ui/internal/loadtest"
)

const (
	// DefaultAddress is used when Config.Address is empty.
	DefaultAddress = "127.0.0.1:3000"
	// ShutdownGracePeriod bounds how long in-flight requests may take to
	// finish once shutdown starts.
	ShutdownGracePeriod = 15 * time.Second

	maxRequestBytes = 1 << 20
)

// LoadTester runs load tests.
type LoadTester interface {
	Run(ctx context.Context, cfg loadtest.Config, progress io.Writer) (*loadtest.Result, error)
	Preview(cfg loadtest.Config) (string, error)
}

// RunStore reads and deletes recorded runs.
type RunStore interface {
	List(limit int) ([]*history.Run, error)
	Get(id int64) (*history.Run, error)
	Delete(id int64) error
}

// Locator reports where k6 is installed.
type Locator interface {
	Locate(ctx context.Context) (string, error)
}

// Config configures a Server.
type Config struct {
	Logger  micrologger.Logger
	Service LoadTester

	// History, Locator, Metrics and UI are optional. Their routes answer 404
	// when they are not set, except /healthz which reports k6 as unchecked.
	History RunStore
	Locator Locator
	Metrics http.Handler
	UI      http.Handler

	Address    string
	CORSOrigin string
}

// Server is the k6ui HTTP server.
type Server struct {
	logger  micrologger.Logger
	service LoadTester
	history RunStore
	locator Locator
	metrics http.Handler
	ui      http.Handler

	address    string
	corsOrigin string

	handler http.Handler
}

// New creates a Server.
func New(config Config) (*Server, error) {
	if config.Logger == nil {
		return nil, microerror.Maskf(invalidConfigError, "%T.Logger must not be empty", config)
	}
	if config.Service == nil {
		return nil, microerror.Maskf(invalidConfigError, "%T.Service must not be empty", config)
	}
	if config.Address == "" {
		config.Address = DefaultAddress
	}

	s := &Server{
		logger:  config.Logger,
		service: config.Service,
		history: config.History,
		locator: config.Locator,
		metrics: config.Metrics,
		ui:      config.UI,

		address:    config.Address,
		corsOrigin: config.CORSOrigin,
	}
	s.handler = s.logRequests(s.cors(s.routes()))

	return s, nil
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.address
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	if s.ui != nil {
		mux.Handle("GET /{$}", s.ui)
		mux.Handle("GET /static/", s.ui)
	}

	mux.HandleFunc("POST /api/load-test", s.handleLoadTest)
	mux.HandleFunc("GET /api/load-test/stream", s.handleStream)
	mux.HandleFunc("POST /api/script", s.handleScript)

	mux.HandleFunc("GET /api/runs", s.handleListRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)
	mux.HandleFunc("DELETE /api/runs/{id}", s.handleDeleteRun)

	mux.HandleFunc("GET /api/glossary", s.handleGlossary)
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	return mux
}

// ListenAndServe serves on the configured address until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return microerror.Mask(err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.LogCtx(ctx, "level", "info", "message", "listening", "address", listener.Addr().String())
		err := httpServer.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gCtx.Done()
		s.logger.LogCtx(ctx, "level", "info", "message", "shutting down")

		httpServer.SetKeepAlivesEnabled(false)
		shutdownCtx, shutdownRelease := context.WithTimeout(context.Background(), ShutdownGracePeriod)
		defer shutdownRelease()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return microerror.Mask(err)
	}
	return nil
}
