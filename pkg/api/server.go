// Package api serves a read-only HTTP view of a stream container and the
// conversion catalog.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

// Router returns the HTTP handler of s.
func (s *Server) Router() http.Handler {
	m := s.metrics
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Prometheus metrics endpoint (unprotected for scraping)
	r.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(apiKeyMiddleware(s.config.APIKey))

		r.Get("/health", m.InstrumentHandler("GET", "/api/v1/health", s.handleHealth))

		// Container
		r.Get("/container", m.InstrumentHandler("GET", "/api/v1/container", s.handleContainer))
		r.Get("/verify", m.InstrumentHandler("GET", "/api/v1/verify", s.handleVerify))

		// Streams
		r.Get("/streams", m.InstrumentHandler("GET", "/api/v1/streams", s.handleStreams))
		r.Get("/streams/{id}", m.InstrumentHandler("GET", "/api/v1/streams/{id}", s.handleStream))
		r.Get("/streams/{id}/configuration", m.InstrumentHandler("GET", "/api/v1/streams/{id}/configuration", s.handleConfiguration))
		r.Get("/streams/{id}/records", m.InstrumentHandler("GET", "/api/v1/streams/{id}/records", s.handleRecords))

		// Catalog
		r.Get("/conversions", m.InstrumentHandler("GET", "/api/v1/conversions", s.handleConversions))
		r.Get("/conversions/{id}", m.InstrumentHandler("GET", "/api/v1/conversions/{id}", s.handleConversion))
	})

	return r
}

// Addr returns the listen address of the configuration.
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Bind, fmt.Sprint(c.Port))
}

// StartServer serves s until ctx is done, then shuts down gracefully.
func StartServer(ctx context.Context, s *Server) error {
	ln, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves s on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ln)
	}()
	s.log.Infof("Serving %s on http://%s", s.reader.Path(), ln.Addr())
	s.log.Infof("Metrics available at http://%s/metrics", ln.Addr())

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.log.Infof("Server stopped")
	return nil
}
