package crawler

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strconv"
	"strings"
	"time"

	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/JakeFAU/kbo-game-crawler/internal/metrics"
)

const (
	detailContainerCSS = ".score-info-wrap"
	lineupKind         = "lineup"
)

// LineupConfig configures box score extraction.
type LineupConfig struct {
	Site        Site
	WaitTimeout time.Duration
	// TableWait bounds the wait for each of the four player tables.
	TableWait time.Duration
}

// LineupCrawler extracts batting and pitching rows for both sides of a game.
type LineupCrawler struct {
	browser  Browser
	names    TeamNames
	archiver Archiver
	cfg      LineupConfig
	logger   *zap.Logger
}

// NewLineupCrawler wires a lineup crawler. archiver may be nil.
func NewLineupCrawler(browser Browser, names TeamNames, archiver Archiver, cfg LineupConfig, logger *zap.Logger) *LineupCrawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = defaultWait
	}
	if cfg.TableWait <= 0 {
		cfg.TableWait = defaultTableWait
	}
	return &LineupCrawler{
		browser:  browser,
		names:    names,
		archiver: archiver,
		cfg:      cfg,
		logger:   logger,
	}
}

// PlayerTable identifies one of the four tables on a box score page.
type PlayerTable struct {
	Side      TeamSide
	Role      PlayerRole
	TeamFull  string
	TeamShort string
}

// Query is the XPath locating the table. The page has no ids on these tables, so the
// table is reached from the team heading and the role caption that precedes it.
func (t PlayerTable) Query() string {
	if t.Role == RolePitcher {
		return fmt.Sprintf(
			`//h4[contains(text(), %s)]/following-sibling::table[1]`,
			xpathLiteral(t.TeamShort+" 투수 기록"),
		)
	}
	return fmt.Sprintf(
		`//h4[contains(text(), %s)]/following-sibling::p[contains(@class, 'result-record-com') and `+
			`(contains(text(), '선발 라인업') or contains(text(), '타자 기록'))]/following-sibling::table[1]`,
		xpathLiteral(t.TeamShort),
	)
}

// Crawl navigates to the game's detail page and returns every player row it can read.
// A missing table is logged and skipped; only ErrTransport failures are returned.
func (c *LineupCrawler) Crawl(ctx context.Context, gameKey, homeFull, awayFull string) ([]RawPlayerRecord, error) {
	logger := c.logger.With(zap.String("game_key", gameKey))
	tables := c.tables(logger, homeFull, awayFull)
	target := c.cfg.Site.DetailURL(gameKey)
	logger.Info("lineup crawl started", zap.String("url", target), zap.Int("tables", len(tables)))

	var (
		snapshot string
		found    []PlayerTable
	)
	err := c.browser.WithSession(ctx, func(page Page) error {
		if err := page.Navigate(ctx, target); err != nil {
			return TransportError("navigate game detail", err)
		}
		waitCtx, cancel := context.WithTimeout(ctx, c.cfg.WaitTimeout)
		defer cancel()
		if err := page.WaitPresent(waitCtx, CSS(detailContainerCSS)); err != nil {
			return TransportError("wait for game detail", err)
		}
		for _, table := range tables {
			ok, err := c.waitTable(ctx, page, table)
			if err != nil {
				return err
			}
			if !ok {
				logger.Warn("player table not found, skipping",
					zap.String("side", string(table.Side)), zap.String("role", string(table.Role)))
				observeSkip(lineupKind, SkipStructural)
				continue
			}
			found = append(found, table)
		}
		var err error
		snapshot, err = page.HTML(ctx)
		if err != nil {
			return TransportError("read game detail html", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if c.archiver != nil {
		c.archiver.Archive(ctx, lineupKind, gameKey, []byte(snapshot))
	}

	doc, err := htmlquery.Parse(strings.NewReader(snapshot))
	if err != nil {
		return nil, fmt.Errorf("parse game detail html: %w", err)
	}
	var players []RawPlayerRecord
	for _, table := range found {
		players = append(players, Collect(PlayerRows(doc, gameKey, table), lineupKind, logger, observeSkip)...)
	}
	metrics.ObserveRecords(lineupKind, len(players))
	logger.Info("lineup crawl finished", zap.Int("players", len(players)))
	return players, nil
}

func (c *LineupCrawler) tables(logger *zap.Logger, homeFull, awayFull string) []PlayerTable {
	var out []PlayerTable
	for _, side := range []struct {
		side TeamSide
		full string
	}{{SideHome, homeFull}, {SideAway, awayFull}} {
		short := c.names.ShortName(side.full)
		if c.names.IsUnknown(short) {
			logger.Warn("team has no short name, skipping its tables",
				zap.String("side", string(side.side)), zap.String("team", side.full))
			observeSkip(lineupKind, SkipIdentity)
			continue
		}
		for _, role := range []PlayerRole{RoleBatter, RolePitcher} {
			out = append(out, PlayerTable{Side: side.side, Role: role, TeamFull: side.full, TeamShort: short})
		}
	}
	return out
}

func (c *LineupCrawler) waitTable(ctx context.Context, page Page, table PlayerTable) (bool, error) {
	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.TableWait)
	defer cancel()
	err := page.WaitVisible(waitCtx, XPath(table.Query()))
	switch {
	case err == nil:
		return true, nil
	case ctx.Err() != nil:
		return false, TransportError("wait for player table", ctx.Err())
	case errors.Is(err, ErrWaitTimeout):
		return false, nil
	default:
		return false, TransportError("wait for player table", err)
	}
}

// PlayerRows lazily yields one result per body row of the given table in doc.
func PlayerRows(doc *html.Node, gameKey string, table PlayerTable) iter.Seq[Result[RawPlayerRecord]] {
	return func(yield func(Result[RawPlayerRecord]) bool) {
		node, err := htmlquery.Query(doc, table.Query())
		if err != nil {
			yield(Skipped[RawPlayerRecord](SkipStructural, gameKey, "bad table query: %v", err))
			return
		}
		if node == nil {
			yield(Skipped[RawPlayerRecord](SkipStructural, gameKey, "%s %s table missing from snapshot", table.Side, table.Role))
			return
		}
		for _, row := range htmlquery.Find(node, "./tbody/tr | ./tr") {
			if !yield(playerRow(row, gameKey, table)) {
				return
			}
		}
	}
}

func playerRow(row *html.Node, gameKey string, table PlayerTable) Result[RawPlayerRecord] {
	cells := htmlquery.Find(row, "./td")
	rec := RawPlayerRecord{
		GameKey:      gameKey,
		TeamFullName: table.TeamFull,
		TeamSide:     table.Side,
		Role:         table.Role,
	}
	if table.Role == RolePitcher {
		header := htmlquery.FindOne(row, "./th")
		if header == nil || len(cells) < 6 {
			return Skipped[RawPlayerRecord](SkipStructural, gameKey, "pitcher row needs a th and 6 tds, got %d tds", len(cells))
		}
		rec.PlayerName = cellText(header)
		innings := cellText(cells[5])
		rec.Innings = &innings
		rec.Position = PositionPitcher
	} else {
		if len(cells) < 3 {
			return Skipped[RawPlayerRecord](SkipStructural, gameKey, "batter row needs 3 tds, got %d", len(cells))
		}
		order := 0
		if n, err := strconv.Atoi(cellText(cells[1])); err == nil {
			order = n
		}
		rec.OrderNumber = &order
		rec.PlayerName = cellText(cells[2])
		rec.Position = PositionBatter
	}
	if rec.PlayerName == "" {
		return Skipped[RawPlayerRecord](SkipStructural, gameKey, "%s row without a player name", table.Role)
	}
	return OK(rec)
}

func cellText(n *html.Node) string {
	return strings.Join(strings.Fields(htmlquery.InnerText(n)), " ")
}

// xpathLiteral quotes s for use inside an XPath expression.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		quoted = append(quoted, "'"+p+"'")
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}
