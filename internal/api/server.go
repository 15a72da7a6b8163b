// Package api serves ELK layouts over HTTP.
//
//	GET  /health            liveness and version
//	GET  /metrics           Prometheus metrics
//	POST /layout            graph JSON in, layout JSON out (?format=svg for SVG)
//	POST /validate          graph JSON in, validation problems out
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/elk/pkg/layout"
	"github.com/matzehuels/elk/pkg/render/svg"
)

const (
	// DefaultMaxBodyBytes limits request bodies to 10 MiB.
	DefaultMaxBodyBytes = 10 << 20

	shutdownTimeout = 10 * time.Second
)

// Options configures a Server.
type Options struct {
	Runner       *layout.Runner
	Gatherer     prometheus.Gatherer // nil serves prometheus.DefaultGatherer
	Logger       *log.Logger
	SVG          svg.Options
	MaxBodyBytes int64
}

// Server is the HTTP front end of a layout.Runner.
type Server struct {
	runner   *layout.Runner
	gatherer prometheus.Gatherer
	logger   *log.Logger
	svg      svg.Options
	maxBody  int64
}

// New creates a Server.
func New(opts Options) *Server {
	s := &Server{
		runner:   opts.Runner,
		gatherer: opts.Gatherer,
		logger:   opts.Logger,
		svg:      opts.SVG,
		maxBody:  opts.MaxBodyBytes,
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	if s.maxBody <= 0 {
		s.maxBody = DefaultMaxBodyBytes
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Post("/layout", s.layout)
	r.Post("/validate", s.validate)
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully. It returns nil after a clean shutdown.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.logger.Info("Serving layouts", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("Server stopped")
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).Round(time.Millisecond),
			"request", middleware.GetReqID(r.Context()),
		)
	})
}
