package crawler

import (
	"context"
	"time"
)

// TeamLookup resolves persisted teams. FindByFullName returns nil, nil when absent.
type TeamLookup interface {
	FindByFullName(ctx context.Context, name string) (*Team, error)
	FindAll(ctx context.Context) ([]Team, error)
}

// GameStore persists games keyed by GameKey.
type GameStore interface {
	FindByDateRange(ctx context.Context, start, end time.Time) ([]Game, error)
	Save(ctx context.Context, game Game) (Game, error)
	SaveAll(ctx context.Context, games []Game) ([]Game, error)
}

// RankingStore persists per-season standings keyed by (team, season).
type RankingStore interface {
	FindBySeasonOrderedByRank(ctx context.Context, year int) ([]Ranking, error)
	Save(ctx context.Context, ranking Ranking) (Ranking, error)
}

// LineupStore replaces every lineup of a game atomically.
type LineupStore interface {
	ReplaceLineupsForGame(ctx context.Context, gameKey string, lineups []Lineup) error
}

// TeamNames maps between the short names shown by source sites and canonical full names.
// Unmapped names come back as the Unknown sentinel of the implementation.
type TeamNames interface {
	FullName(short string) string
	ShortName(full string) string
	Code(short string) string
	IsUnknown(name string) bool
}

// Selector addresses page elements by CSS (default) or XPath.
type Selector struct {
	Expr  string
	XPath bool
}

// CSS builds a CSS selector.
func CSS(expr string) Selector { return Selector{Expr: expr} }

// XPath builds an XPath selector.
func XPath(expr string) Selector { return Selector{Expr: expr, XPath: true} }

// Page is a live browser tab. Implementations are not safe for concurrent use.
type Page interface {
	Navigate(ctx context.Context, url string) error
	WaitPresent(ctx context.Context, sel Selector) error
	WaitVisible(ctx context.Context, sel Selector) error
	// WaitAnyVisible returns the index of the first selector that became visible.
	WaitAnyVisible(ctx context.Context, sels ...Selector) (int, error)
	// SelectValue sets a <select> to value and fires change. When reloadCSS is set and the
	// value changed, it waits for the matched element to be replaced.
	SelectValue(ctx context.Context, selectCSS, value, reloadCSS string) (bool, error)
	HTML(ctx context.Context) (string, error)
}

// Browser hands out one Page per call and tears it down when fn returns.
type Browser interface {
	WithSession(ctx context.Context, fn func(Page) error) error
}

// StaticFetcher performs a plain HTTP GET.
type StaticFetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Archiver keeps copies of crawled pages.
type Archiver interface {
	Archive(ctx context.Context, kind, key string, html []byte)
}

// Publisher pushes update events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// RankingCache stores serialized season standings.
type RankingCache interface {
	GetRankings(ctx context.Context, season int) ([]RankingDTO, bool, error)
	SetRankings(ctx context.Context, season int, rankings []RankingDTO) error
}

// Hasher computes digests for snapshot naming.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
