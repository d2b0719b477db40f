// Package server exposes the browser session over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/entrhq/browserapi/pkg/actions"
	"github.com/entrhq/browserapi/pkg/logging"
	"github.com/entrhq/browserapi/pkg/metrics"
	"github.com/entrhq/browserapi/pkg/types"
)

// Lifecycle is the part of the session the control plane drives directly.
type Lifecycle interface {
	Health() bool
	Init(ctx context.Context, credential string) (types.InitResult, error)
	Shutdown(ctx context.Context) types.InitResult
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithRoutePrefix mounts every session route under prefix.
func WithRoutePrefix(prefix string) Option {
	return func(s *Server) {
		s.prefix = "/" + strings.Trim(prefix, "/")
		if s.prefix == "/" {
			s.prefix = ""
		}
	}
}

// WithServiceName sets the name reported by health and init.
func WithServiceName(name string) Option {
	return func(s *Server) {
		if name != "" {
			s.service = name
		}
	}
}

// WithMetrics toggles the /metrics endpoint.
func WithMetrics(enabled bool) Option {
	return func(s *Server) {
		s.metrics = enabled
	}
}

// Server is the HTTP control plane for one browser session.
type Server struct {
	session    Lifecycle
	dispatcher *actions.Dispatcher
	logger     *logging.Logger
	prefix     string
	service    string
	metrics    bool
	router     chi.Router
}

// New builds the router for session and dispatcher.
func New(session Lifecycle, dispatcher *actions.Dispatcher, opts ...Option) *Server {
	s := &Server{
		session:    session,
		dispatcher: dispatcher,
		logger:     logging.Discard(),
		prefix:     "/api",
		service:    types.ServiceName,
		metrics:    true,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	router := chi.NewRouter()
	router.Use(requestID)
	router.Use(s.accessLog)
	router.Use(middleware.Recoverer)

	if s.prefix == "" {
		router.Get("/", s.handleHealth)
	} else {
		router.Get(s.prefix, s.handleHealth)
		router.Get(s.prefix+"/", s.handleHealth)
	}

	router.Post(s.prefix+"/init", s.handleInit)
	router.Post(s.prefix+"/shutdown", s.handleShutdown)
	router.Post(s.prefix+"/navigate", s.handleNavigate)
	router.Post(s.prefix+"/screenshot", s.handleScreenshot)
	router.Post(s.prefix+"/act", s.handleAct)
	router.Post(s.prefix+"/extract", s.handleExtract)
	router.Post(s.prefix+"/convert-svg", s.handleConvertSVG)

	if s.metrics {
		router.Handle("/metrics", metrics.Handler())
	}
	return router
}

// Run serves on addr until ctx is cancelled, then drains in-flight
// requests for at most shutdownTimeout.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, listener, shutdownTimeout)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener, shutdownTimeout time.Duration) error {
	httpServer := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		s.logger.Infof("Serving %s on %s", s.service, listener.Addr())
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Infof("Shutting down HTTP server")
		return httpServer.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}

// requestID tags every request with an id, reusing the caller's when set.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(middleware.RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(middleware.RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Infof("%s %s -> %d (%s) [%s]", r.Method, r.URL.Path, ww.Status(), time.Since(start).Round(time.Millisecond), middleware.GetReqID(r.Context()))
	})
}
