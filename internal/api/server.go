// Package api exposes the trip estimator over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/Sternrassler/tripcost/pkg/cache"
	"github.com/Sternrassler/tripcost/pkg/identity"
	"github.com/Sternrassler/tripcost/pkg/ledger"
	"github.com/Sternrassler/tripcost/pkg/metrics"
	"github.com/Sternrassler/tripcost/pkg/provider"
	"github.com/Sternrassler/tripcost/pkg/trip"
)

// StatsSource reports ledger statistics.
type StatsSource interface {
	Stats(ctx context.Context) (ledger.Stats, error)
}

// Options are the dependencies of a Server.
type Options struct {
	Store      cache.Store
	Ledger     StatsSource
	Fixtures   provider.Fixtures
	Calculator *trip.Calculator
	Leagues    []provider.League

	// Identity resolves basic-auth credentials. Optional.
	Identity identity.Store

	// RequireAuth rejects anonymous callers on /api routes.
	RequireAuth bool

	Logger zerolog.Logger
}

// Server is the HTTP front end.
type Server struct {
	Router *chi.Mux
	opts   Options
}

// New builds the router.
func New(opts Options) *Server {
	s := &Server{Router: chi.NewRouter(), opts: opts}
	r := s.Router

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(hlog.NewHandler(opts.Logger))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", d).
			Msg("HTTP request")
	}))
	r.Use(chimw.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(ar chi.Router) {
		ar.Use(s.authenticate)
		if opts.RequireAuth {
			ar.Use(requireActor)
		}
		ar.Get("/leagues", s.handleLeagues)
		ar.Get("/teams/{leagueID}", s.handleTeams)
		ar.Post("/matches", s.handleMatches)
		ar.Post("/calculate-trip", s.handleCalculateTrip)
		ar.Post("/calculate", s.handleCalculate)

		ar.Route("/admin", func(adm chi.Router) {
			adm.Get("/stats", s.handleStats)
			adm.Post("/cache/clear", s.handleClearCache)
			adm.Post("/cache/clear-expired", s.handleClearExpired)
		})
	})

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}
