// Package service runs crawl, reconcile and persist pipelines for the API and CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/kbo-game-crawler/internal/crawler"
	"github.com/JakeFAU/kbo-game-crawler/internal/dispatcher"
	"github.com/JakeFAU/kbo-game-crawler/internal/metrics"
	"github.com/JakeFAU/kbo-game-crawler/internal/reconcile"
	"github.com/JakeFAU/kbo-game-crawler/internal/store"
)

var (
	// ErrInvalidArgument rejects a malformed year, month, season or game key.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrGameNotFound is returned when a game key is not persisted.
	ErrGameNotFound = errors.New("game not found")
	// ErrLineupsNotFound is returned when a game has no stored lineups.
	ErrLineupsNotFound = errors.New("lineups not found")
)

const (
	minSeason = 1982
	maxSeason = 2100

	outcomeSuccess   = "success"
	outcomeTransport = "transport_error"
	outcomeError     = "error"
	outcomeInvalid   = "invalid"
)

// ScheduleSource crawls one month of the calendar.
type ScheduleSource interface {
	Crawl(ctx context.Context, year, month int) ([]crawler.RawGameRecord, error)
}

// LineupSource crawls the box score tables of one game.
type LineupSource interface {
	Crawl(ctx context.Context, gameKey, homeFull, awayFull string) ([]crawler.RawPlayerRecord, error)
}

// CommentSource crawls one game's comment thread.
type CommentSource interface {
	Crawl(ctx context.Context, gameKey string) ([]crawler.RawCommentRecord, error)
}

// RankingSource crawls the league standings table.
type RankingSource interface {
	Crawl(ctx context.Context) ([]crawler.RawRankingRecord, error)
}

// Deps bundles what a Service needs. Cache and Publisher may be nil.
type Deps struct {
	ScheduleCrawler ScheduleSource
	LineupCrawler   LineupSource
	CommentCrawler  CommentSource
	RankingCrawler  RankingSource

	Engine       *reconcile.Engine
	Teams        crawler.TeamLookup
	Games        crawler.GameStore
	RankingStore crawler.RankingStore
	LineupStore  store.LineupRepository

	Cache     crawler.RankingCache
	Publisher crawler.Publisher
	Topic     string

	// Backfill runs per-game lineup crawls for BackfillLineups. Nil uses a default pool.
	Backfill *dispatcher.Dispatcher

	IDs    crawler.IDGenerator
	Clock  crawler.Clock
	Logger *zap.Logger
}

// Service coordinates crawlers, the reconcile engine and the stores.
type Service struct {
	Deps
	logger *zap.Logger
}

// New validates deps and returns a Service.
func New(deps Deps) (*Service, error) {
	switch {
	case deps.ScheduleCrawler == nil, deps.LineupCrawler == nil, deps.CommentCrawler == nil, deps.RankingCrawler == nil:
		return nil, fmt.Errorf("all four crawlers are required")
	case deps.Engine == nil:
		return nil, fmt.Errorf("reconcile engine is required")
	case deps.Teams == nil, deps.Games == nil, deps.RankingStore == nil, deps.LineupStore == nil:
		return nil, fmt.Errorf("stores are required")
	case deps.IDs == nil, deps.Clock == nil:
		return nil, fmt.Errorf("id generator and clock are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Backfill == nil {
		deps.Backfill = dispatcher.New(dispatcher.Config{}, logger.Named("backfill"))
	}
	return &Service{Deps: deps, logger: logger}, nil
}

type operation struct {
	kind    string
	runID   string
	logger  *zap.Logger
	started time.Time
}

// begin opens a logged, measured operation. Callers must call finish with the final error.
func (s *Service) begin(kind string, fields ...zap.Field) *operation {
	runID, err := s.IDs.NewID()
	if err != nil {
		s.logger.Warn("run id generation failed", zap.Error(err))
	}
	fields = append([]zap.Field{zap.String("op", kind), zap.String("run_id", runID)}, fields...)
	op := &operation{kind: kind, runID: runID, logger: s.logger.With(fields...), started: time.Now()}
	op.logger.Info("operation started")
	return op
}

func (op *operation) finish(err error) {
	outcome := outcomeSuccess
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidArgument):
		outcome = outcomeInvalid
	case errors.Is(err, crawler.ErrTransport):
		outcome = outcomeTransport
	default:
		outcome = outcomeError
	}
	elapsed := time.Since(op.started)
	metrics.ObserveCrawl(op.kind, outcome, elapsed)
	if err != nil {
		op.logger.Warn("operation failed", zap.String("outcome", outcome), zap.Duration("elapsed", elapsed), zap.Error(err))
		return
	}
	op.logger.Info("operation finished", zap.Duration("elapsed", elapsed))
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func validSeason(season int) error {
	if season < minSeason || season > maxSeason {
		return invalid("season %d out of range", season)
	}
	return nil
}

func validGameKey(gameKey string) (time.Time, error) {
	day, err := crawler.GameDate(gameKey)
	if err != nil {
		return time.Time{}, invalid("%v", err)
	}
	return day, nil
}
