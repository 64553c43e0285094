// Package api exposes the HTTP interface for the crawler service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/kbo-game-crawler/internal/crawler"
	"github.com/JakeFAU/kbo-game-crawler/internal/metrics"
	"github.com/JakeFAU/kbo-game-crawler/internal/service"
)

const (
	defaultRequestTimeout = 120 * time.Second
	readyTimeout          = 2 * time.Second
)

// Operations is the slice of service.Service the handlers call.
type Operations interface {
	CrawlSchedule(ctx context.Context, year, month int) ([]crawler.GameUpdateResult, error)
	BackfillLineups(ctx context.Context, year, month int) ([]service.LineupBackfillResult, error)
	CrawlAndPersistLineups(ctx context.Context, gameKey string) error
	Lineups(ctx context.Context, gameKey string) ([]crawler.Lineup, error)
	CrawlComments(ctx context.Context, gameKey string) ([]crawler.RawCommentRecord, error)
	CrawlAndUpdateRankings(ctx context.Context, season int) ([]crawler.RankingDTO, error)
	RecalculateStandings(ctx context.Context, season int) ([]crawler.RankingDTO, error)
	Rankings(ctx context.Context, season int) ([]crawler.RankingDTO, error)
}

// Pinger reports whether a downstream dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RequestIDs mints ids for inbound requests.
type RequestIDs interface {
	NewRequestID() string
}

// Options tunes the router. Zero values pick defaults.
type Options struct {
	APIKey         string
	RequestTimeout time.Duration
}

// Server wires HTTP handlers to the service.
type Server struct {
	router chi.Router
	ops    Operations
	ready  Pinger
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes. ready may be nil.
func NewServer(ops Operations, ready Pinger, ids RequestIDs, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	s := &Server{ops: ops, ready: ready, logger: logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware(ids, logger))
	r.Use(accessLogMiddleware)
	r.Use(recoverMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(timeoutMiddleware(opts.RequestTimeout))
		if opts.APIKey != "" {
			r.Use(apiKeyMiddleware(opts.APIKey))
		}
		r.Post("/schedule/{year}/{month}/crawl", s.crawlSchedule)
		r.Post("/schedule/{year}/{month}/lineups/crawl", s.backfillLineups)
		r.Route("/games/{gameKey}", func(r chi.Router) {
			r.Post("/lineups/crawl", s.crawlLineups)
			r.Get("/lineups", s.getLineups)
			r.Post("/comments/crawl", s.crawlComments)
		})
		r.Route("/rankings/{season}", func(r chi.Router) {
			r.Get("/", s.getRankings)
			r.Post("/crawl", s.crawlRankings)
			r.Post("/recalculate", s.recalculateStandings)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.ready.Ping(ctx); err != nil {
			requestLogger(r, s.logger).Warn("readiness check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) crawlSchedule(w http.ResponseWriter, r *http.Request) {
	year, month, ok := yearMonth(w, r)
	if !ok {
		return
	}
	results, err := s.ops.CrawlSchedule(r.Context(), year, month)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) backfillLineups(w http.ResponseWriter, r *http.Request) {
	year, month, ok := yearMonth(w, r)
	if !ok {
		return
	}
	results, err := s.ops.BackfillLineups(r.Context(), year, month)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if results == nil {
		results = []service.LineupBackfillResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

// yearMonth reads the {year} and {month} path params, answering 400 when either is not a number.
func yearMonth(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	year, err := intParam(r, "year")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, 0, false
	}
	month, err := intParam(r, "month")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, 0, false
	}
	return year, month, true
}

func (s *Server) crawlLineups(w http.ResponseWriter, r *http.Request) {
	if err := s.ops.CrawlAndPersistLineups(r.Context(), chi.URLParam(r, "gameKey")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getLineups(w http.ResponseWriter, r *http.Request) {
	lineups, err := s.ops.Lineups(r.Context(), chi.URLParam(r, "gameKey"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lineups)
}

func (s *Server) crawlComments(w http.ResponseWriter, r *http.Request) {
	comments, err := s.ops.CrawlComments(r.Context(), chi.URLParam(r, "gameKey"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if comments == nil {
		comments = []crawler.RawCommentRecord{}
	}
	writeJSON(w, http.StatusOK, comments)
}

func (s *Server) getRankings(w http.ResponseWriter, r *http.Request) {
	s.rankings(w, r, s.ops.Rankings)
}

func (s *Server) crawlRankings(w http.ResponseWriter, r *http.Request) {
	s.rankings(w, r, s.ops.CrawlAndUpdateRankings)
}

func (s *Server) recalculateStandings(w http.ResponseWriter, r *http.Request) {
	s.rankings(w, r, s.ops.RecalculateStandings)
}

func (s *Server) rankings(w http.ResponseWriter, r *http.Request, fn func(context.Context, int) ([]crawler.RankingDTO, error)) {
	season, err := intParam(r, "season")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := fn(r.Context(), season)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if out == nil {
		out = []crawler.RankingDTO{}
	}
	writeJSON(w, http.StatusOK, out)
}

// fail maps service errors onto status codes.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logger := requestLogger(r, s.logger)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	} else {
		logger.Info("request rejected", zap.Int("status", status), zap.Error(err))
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrGameNotFound), errors.Is(err, service.ErrLineupsNotFound):
		return http.StatusNotFound
	case errors.Is(err, crawler.ErrTransport):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func intParam(r *http.Request, name string) (int, error) {
	raw := chi.URLParam(r, name)
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", name, raw)
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
