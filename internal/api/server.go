// Package api implements the admin HTTP surface (§2 "Admin HTTP API" row):
// health, Prometheus metrics, dispatcher stats, and the call-lifecycle SSE
// stream. It never touches call control; it only observes the engine's
// process-wide stores, grounded directly on the teacher's internal/api
// package (same NewServer/ServerOptions/chi-router/Start/Shutdown shape).
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/voxswitch/ivr-engine/internal/dispatch"
	"github.com/voxswitch/ivr-engine/internal/eventbus"
	"github.com/voxswitch/ivr-engine/internal/flowstore"
	"github.com/voxswitch/ivr-engine/internal/metrics"
	"github.com/voxswitch/ivr-engine/internal/mqttpublish"
)

// Server wraps the admin HTTP listener. It is entirely independent of call
// control: nothing here is on the path of a live call, only observing it.
type Server struct {
	http *http.Server
	log  zerolog.Logger
}

// ServerOptions configures the admin API.
type ServerOptions struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	AdminToken   string
	RateLimitRPS float64
	RateLimitMax int

	Store      *flowstore.Store
	Dispatch   *dispatch.Dispatcher
	Events     *eventbus.Bus
	MQTT       *mqttpublish.Publisher
	Version    string
	StartTime  time.Time
	Log        zerolog.Logger
}

// NewServer builds the admin API router: /healthz and /metrics are
// unauthenticated (monitoring agents rarely carry the admin bearer token),
// /stats and /events require it when AdminToken is set.
func NewServer(opts ServerOptions) *Server {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(opts.Log))
	if opts.RateLimitRPS > 0 {
		r.Use(RateLimiter(opts.RateLimitRPS, opts.RateLimitMax))
	}

	health := NewHealthHandler(opts.Store, opts.MQTT, opts.Events, opts.Version, opts.StartTime)
	r.Get("/healthz", health.ServeHTTP)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(metrics.InstrumentHandler)
		r.Use(BearerAuth(opts.AdminToken))
		r.Use(MaxBodySize(1 << 20))
		r.Get("/stats", NewStatsHandler(opts.Dispatch, opts.Events).ServeHTTP)
		NewEventsHandler(opts.Events).Routes(r)
	})

	srv := &http.Server{
		Addr:         opts.Addr,
		Handler:      r,
		ReadTimeout:  opts.ReadTimeout,
		IdleTimeout:  opts.IdleTimeout,
		// WriteTimeout left at 0: the SSE stream is long-lived. The
		// ResponseTimeout middleware is not installed on this router and
		// opts.WriteTimeout is not used, so non-streaming handlers carry no
		// response deadline either.
	}

	return &Server{http: srv, log: opts.Log.With().Str("component", "api").Logger()}
}

// Start runs the HTTP listener until Shutdown is called; a clean shutdown
// is reported as a nil error, matching the teacher's Server.Start.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("admin http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("admin http server shutting down")
	return s.http.Shutdown(ctx)
}
