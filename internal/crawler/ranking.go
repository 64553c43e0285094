package crawler

import (
	"bytes"
	"context"
	"fmt"
	"iter"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/kbo-game-crawler/internal/metrics"
)

const (
	rankingTableCSS = "table.tData"
	rankingRowCSS   = "tbody > tr"
	rankingColumns  = 8
	rankingKind     = "ranking"
)

// RankingCrawler reads the league standings table from a static page.
type RankingCrawler struct {
	fetcher  StaticFetcher
	archiver Archiver
	url      string
	logger   *zap.Logger
}

// NewRankingCrawler wires a ranking crawler. An empty url uses DefaultRankingURL.
func NewRankingCrawler(fetcher StaticFetcher, archiver Archiver, url string, logger *zap.Logger) *RankingCrawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if url == "" {
		url = DefaultRankingURL
	}
	return &RankingCrawler{fetcher: fetcher, archiver: archiver, url: url, logger: logger}
}

// Crawl fetches the standings page. A page without the standings table yields no rows.
func (c *RankingCrawler) Crawl(ctx context.Context) ([]RawRankingRecord, error) {
	body, err := c.fetcher.Get(ctx, c.url)
	if err != nil {
		return nil, TransportError("fetch standings", err)
	}
	if c.archiver != nil {
		c.archiver.Archive(ctx, rankingKind, "daily", body)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse standings html: %w", err)
	}
	table := doc.Find(rankingTableCSS).First()
	if table.Length() == 0 {
		c.logger.Warn("standings table not found", zap.String("url", c.url))
		observeSkip(rankingKind, SkipStructural)
		return []RawRankingRecord{}, nil
	}
	rows := Collect(RankingRows(table), rankingKind, c.logger, observeSkip)
	metrics.ObserveRecords(rankingKind, len(rows))
	c.logger.Info("standings crawled", zap.Int("rows", len(rows)))
	return rows, nil
}

// RankingRows lazily yields one result per body row of the standings table.
func RankingRows(table *goquery.Selection) iter.Seq[Result[RawRankingRecord]] {
	return func(yield func(Result[RawRankingRecord]) bool) {
		table.Find(rankingRowCSS).EachWithBreak(func(i int, row *goquery.Selection) bool {
			return yield(rankingRow(i, row))
		})
	}
}

func rankingRow(i int, row *goquery.Selection) Result[RawRankingRecord] {
	cols := row.Find("td").Map(func(_ int, td *goquery.Selection) string {
		return strings.TrimSpace(td.Text())
	})
	key := fmt.Sprintf("row-%d", i+1)
	if len(cols) < rankingColumns {
		return Skipped[RawRankingRecord](SkipStructural, key, "expected %d columns, got %d", rankingColumns, len(cols))
	}
	key = cols[1]
	var (
		rec  = RawRankingRecord{TeamShortName: cols[1]}
		errs []error
	)
	ints := []struct {
		dst *int
		raw string
	}{
		{&rec.Rank, cols[0]},
		{&rec.GamesPlayed, cols[2]},
		{&rec.Wins, cols[3]},
		{&rec.Losses, cols[4]},
		{&rec.Draws, cols[5]},
	}
	for _, f := range ints {
		n, err := strconv.Atoi(f.raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		*f.dst = n
	}
	winRate, err := strconv.ParseFloat(cols[6], 64)
	if err != nil {
		errs = append(errs, err)
	}
	rec.WinRate = winRate
	gb, err := ParseGamesBehind(cols[7])
	if err != nil {
		errs = append(errs, err)
	}
	rec.GamesBehind = gb
	if rec.TeamShortName == "" {
		return Skipped[RawRankingRecord](SkipStructural, key, "empty team cell")
	}
	if len(errs) > 0 {
		return Skipped[RawRankingRecord](SkipParse, key, "%v", errs[0])
	}
	return OK(rec)
}

// ParseGamesBehind reads a games-behind cell; the leader's "-" is 0.
func ParseGamesBehind(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "-" || raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("games behind %q: %w", raw, err)
	}
	return v, nil
}
