package store

import (
	"context"
	"errors"

	"github.com/JakeFAU/kbo-game-crawler/internal/crawler"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrUnknownTeam is returned when a game or ranking references a team that is not persisted.
var ErrUnknownTeam = errors.New("team not persisted")

// TeamRepository looks up teams and seeds the configured clubs at startup.
// Crawl paths only read teams.
type TeamRepository interface {
	crawler.TeamLookup
	// Seed inserts teams missing by name and refreshes the short name and code of
	// existing ones. IDs are kept.
	Seed(ctx context.Context, teams []crawler.Team) ([]crawler.Team, error)
}

// LineupRepository extends crawler.LineupStore with a read for one game.
type LineupRepository interface {
	crawler.LineupStore
	LineupsForGame(ctx context.Context, gameKey string) ([]crawler.Lineup, error)
}

// Store bundles the repositories of one backend.
type Store interface {
	Teams() TeamRepository
	Games() crawler.GameStore
	Rankings() crawler.RankingStore
	Lineups() LineupRepository
	Ping(ctx context.Context) error
	Close()
}
