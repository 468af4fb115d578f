package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/Sternrassler/tripcost/pkg/provider"
	"github.com/Sternrassler/tripcost/pkg/trip"
)

const maxBodyBytes = 1 << 20

type matchesRequest struct {
	TeamID    int    `json:"team_id"`
	MatchType string `json:"match_type"`
}

type calculateTripRequest struct {
	MatchID    int    `json:"match_id"`
	OriginCity string `json:"origin_city"`
}

type calculateRequest struct {
	League     string  `json:"league"`
	HomeTeam   string  `json:"home_team"`
	AwayTeam   string  `json:"away_team"`
	FlightCost float64 `json:"flight_cost"`
	HotelCost  float64 `json:"hotel_cost"`
}

type calculateResponse struct {
	TicketPrice float64 `json:"ticket_price"`
	TotalCost   float64 `json:"total_cost"`
}

type clearResponse struct {
	Cleared int64 `json:"cleared"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.opts.Store.Ping(r.Context()); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("Cache store not ready")
		writeError(w, http.StatusServiceUnavailable, "cache store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleLeagues(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Leagues)
}

func (s *Server) handleTeams(w http.ResponseWriter, r *http.Request) {
	leagueID, err := strconv.Atoi(chi.URLParam(r, "leagueID"))
	if err != nil || leagueID <= 0 {
		writeError(w, http.StatusBadRequest, "league id must be a positive integer")
		return
	}
	teams, err := s.opts.Fixtures.TeamsByLeague(r.Context(), leagueID)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if teams == nil {
		teams = []provider.Team{}
	}
	writeJSON(w, http.StatusOK, teams)
}

func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	var req matchesRequest
	if !decode(w, r, &req) {
		return
	}
	if req.TeamID <= 0 {
		writeError(w, http.StatusBadRequest, "team_id must be a positive integer")
		return
	}
	matches, err := s.opts.Fixtures.UpcomingMatches(r.Context(), req.TeamID, provider.ParseMatchType(req.MatchType))
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if matches == nil {
		matches = []provider.Match{}
	}
	writeJSON(w, http.StatusOK, matches)
}

func (s *Server) handleCalculateTrip(w http.ResponseWriter, r *http.Request) {
	var req calculateTripRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.opts.Calculator.Calculate(r.Context(), req.MatchID, req.OriginCity)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, trip.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, trip.ErrNotFound):
		writeError(w, http.StatusNotFound, "match not found")
	case errors.Is(err, trip.ErrUnauthenticated):
		unauthorized(w)
	default:
		s.internalError(w, r, err)
	}
}

func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if !decode(w, r, &req) {
		return
	}
	if req.FlightCost < 0 || req.HotelCost < 0 {
		writeError(w, http.StatusBadRequest, "costs must not be negative")
		return
	}
	ticket, total := s.opts.Calculator.TicketTotal(req.League, req.HomeTeam, req.AwayTeam, req.FlightCost, req.HotelCost)
	writeJSON(w, http.StatusOK, calculateResponse{TicketPrice: ticket, TotalCost: total})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.opts.Ledger.Stats(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	n, err := s.opts.Store.ClearAll(r.Context())
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Clear cache failed")
		writeError(w, http.StatusServiceUnavailable, "cache store unavailable")
		return
	}
	hlog.FromRequest(r).Info().Int64("cleared", n).Msg("Cache cleared")
	writeJSON(w, http.StatusOK, clearResponse{Cleared: n})
}

func (s *Server) handleClearExpired(w http.ResponseWriter, r *http.Request) {
	n, err := s.opts.Store.ClearExpired(r.Context())
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Clear expired failed")
		writeError(w, http.StatusServiceUnavailable, "cache store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, clearResponse{Cleared: n})
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	hlog.FromRequest(r).Error().Err(err).Msg("Request failed")
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
