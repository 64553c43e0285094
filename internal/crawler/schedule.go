package crawler

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/kbo-game-crawler/internal/metrics"
)

const (
	scheduleRootCSS  = "#div_score_cal"
	yearSelectCSS    = "#year"
	monthSelectCSS   = "#month"
	scoreTableCSS    = ".tbl-score"
	gameLinkCSS      = ".tbl-score td a.score-re"
	noGamesCSS       = ".tbl-score td.none"
	noGamesText      = "경기가 없습니다"
	cancelToken      = "취소"
	scheduleKind     = "schedule"
	defaultWait      = 30 * time.Second
	defaultTableWait = 5 * time.Second
)

var (
	gameKeyPattern = regexp.MustCompile(`gmkey=([^&]+)`)
	placePattern   = regexp.MustCompile(`^(.+?)(\d{2}:\d{2})$`)
)

// ScheduleConfig configures the monthly calendar crawl.
type ScheduleConfig struct {
	Site        Site
	AnchorTeam  string
	WaitTimeout time.Duration
}

// ScheduleCrawler extracts one RawGameRecord per game link of a monthly calendar.
type ScheduleCrawler struct {
	browser  Browser
	archiver Archiver
	cfg      ScheduleConfig
	logger   *zap.Logger
}

// NewScheduleCrawler wires a schedule crawler. archiver may be nil.
func NewScheduleCrawler(browser Browser, archiver Archiver, cfg ScheduleConfig, logger *zap.Logger) *ScheduleCrawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.AnchorTeam == "" {
		cfg.AnchorTeam = DefaultAnchorTeam
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = defaultWait
	}
	return &ScheduleCrawler{
		browser:  browser,
		archiver: archiver,
		cfg:      cfg,
		logger:   logger,
	}
}

// Crawl opens a fresh session, loads the calendar for year/month and extracts its games.
// Only ErrTransport failures are returned; malformed links are logged and skipped.
func (c *ScheduleCrawler) Crawl(ctx context.Context, year, month int) ([]RawGameRecord, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("month %d out of range", month)
	}
	target := c.cfg.Site.ScheduleURL(year, month)
	logger := c.logger.With(zap.Int("year", year), zap.Int("month", month))
	logger.Info("schedule crawl started", zap.String("url", target))

	var html string
	err := c.browser.WithSession(ctx, func(page Page) error {
		var loadErr error
		html, loadErr = c.load(ctx, page, target, year, month)
		return loadErr
	})
	if err != nil {
		return nil, err
	}
	if c.archiver != nil {
		c.archiver.Archive(ctx, scheduleKind, fmt.Sprintf("%04d-%02d", year, month), []byte(html))
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse schedule html: %w", err)
	}
	if doc.Find(gameLinkCSS).Length() == 0 {
		if marker := doc.Find(noGamesCSS); strings.Contains(marker.Text(), noGamesText) {
			logger.Info("no games scheduled this month")
		} else {
			logger.Warn("no game links and no empty-month marker")
		}
		return []RawGameRecord{}, nil
	}

	parser := ScheduleParser{Site: c.cfg.Site, AnchorTeam: c.cfg.AnchorTeam, Logger: logger}
	games := Collect(parser.Games(doc), scheduleKind, logger, observeSkip)
	metrics.ObserveRecords(scheduleKind, len(games))
	logger.Info("schedule crawl finished", zap.Int("games", len(games)))
	return games, nil
}

func (c *ScheduleCrawler) load(ctx context.Context, page Page, target string, year, month int) (string, error) {
	if err := page.Navigate(ctx, target); err != nil {
		return "", TransportError("navigate schedule", err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.WaitTimeout)
	defer cancel()
	if err := page.WaitPresent(waitCtx, CSS(scheduleRootCSS)); err != nil {
		return "", TransportError("wait for schedule container", err)
	}

	if _, err := page.SelectValue(ctx, yearSelectCSS, strconv.Itoa(year), ""); err != nil {
		return "", TransportError("select year", err)
	}
	changed, err := page.SelectValue(ctx, monthSelectCSS, fmt.Sprintf("%02d", month), scoreTableCSS)
	switch {
	case errors.Is(err, ErrWaitTimeout):
		c.logger.Warn("score table did not reload after month change", zap.Error(err))
	case err != nil:
		return "", TransportError("select month", err)
	case changed:
		c.logger.Debug("month selector changed", zap.Int("month", month))
	}

	visibleCtx, cancelVisible := context.WithTimeout(ctx, c.cfg.WaitTimeout)
	defer cancelVisible()
	if _, err := page.WaitAnyVisible(visibleCtx, CSS(gameLinkCSS), CSS(noGamesCSS)); err != nil {
		return "", TransportError("wait for schedule content", err)
	}
	html, err := page.HTML(ctx)
	if err != nil {
		return "", TransportError("read schedule html", err)
	}
	return html, nil
}

// ScheduleParser turns a rendered calendar into game records.
type ScheduleParser struct {
	Site       Site
	AnchorTeam string
	Logger     *zap.Logger
}

// Games lazily yields one result per game link in document order.
func (p ScheduleParser) Games(doc *goquery.Document) iter.Seq[Result[RawGameRecord]] {
	return func(yield func(Result[RawGameRecord]) bool) {
		doc.Find(gameLinkCSS).EachWithBreak(func(_ int, link *goquery.Selection) bool {
			return yield(p.game(link))
		})
	}
}

func (p ScheduleParser) game(link *goquery.Selection) Result[RawGameRecord] {
	href := strings.TrimSpace(link.AttrOr("href", ""))
	m := gameKeyPattern.FindStringSubmatch(href)
	if m == nil {
		return Skipped[RawGameRecord](SkipStructural, "", "no gmkey in link %q", href)
	}
	key := m[1]
	date, err := GameDate(key)
	if err != nil {
		return Skipped[RawGameRecord](SkipParse, key, "%v", err)
	}

	marker := link.Find(".va").First()
	if marker.Length() == 0 {
		return Skipped[RawGameRecord](SkipStructural, key, "missing vs/at marker")
	}
	vsAt := strings.ToLower(strings.TrimSpace(marker.Text()))

	logo := link.Find("img").Not(".score img").First()
	opponent := strings.TrimSpace(logo.AttrOr("alt", ""))
	if opponent == "" {
		return Skipped[RawGameRecord](SkipStructural, key, "missing opponent logo alt text")
	}

	place := link.Find(".place").First()
	if place.Length() == 0 {
		return Skipped[RawGameRecord](SkipStructural, key, "missing place element")
	}
	stadium, kickoff := SplitPlace(place.Text())

	rec := RawGameRecord{
		GameKey:           key,
		GameDateTime:      date.Add(kickoff),
		OpponentShortName: opponent,
		OpponentLogoURL:   p.Site.Resolve(logo.AttrOr("src", "")),
		Stadium:           stadium,
		RawVsAtIndicator:  vsAt,
		Outcome:           strings.TrimSpace(link.Find(".score img").First().AttrOr("alt", "")),
		DetailURL:         p.Site.Resolve(href),
	}

	anchorAway := false
	switch vsAt {
	case "vs":
	case "at":
		anchorAway = true
	default:
		p.logger().Warn("unknown vs/at marker, treating anchor team as home",
			zap.String("game_key", key), zap.String("marker", vsAt))
	}
	if anchorAway {
		rec.HomeTeamShortName, rec.AwayTeamShortName = opponent, p.AnchorTeam
	} else {
		rec.HomeTeamShortName, rec.AwayTeamShortName = p.AnchorTeam, opponent
	}

	scoreText := strings.TrimSpace(link.Find(".score .sco").First().Text())
	home, away, status, err := ParseScore(scoreText, anchorAway)
	if err != nil {
		p.logger().Warn("unparseable score, defaulting to 0:0",
			zap.String("game_key", key), zap.String("score", scoreText), zap.Error(err))
		metrics.ObserveDefaulted(scheduleKind, "score")
	}
	rec.HomeScore, rec.AwayScore, rec.Status = home, away, status
	return OK(rec)
}

func (p ScheduleParser) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}

// SplitPlace separates "사직14:00" into the stadium and the kickoff offset from midnight.
// Without a trailing HH:mm the whole text is the stadium and kickoff is midnight.
func SplitPlace(text string) (string, time.Duration) {
	text = strings.TrimSpace(text)
	m := placePattern.FindStringSubmatch(text)
	if m == nil {
		return text, 0
	}
	clock, err := time.Parse("15:04", m[2])
	if err != nil {
		return text, 0
	}
	offset := time.Duration(clock.Hour())*time.Hour + time.Duration(clock.Minute())*time.Minute
	return strings.TrimSpace(m[1]), offset
}

// ParseScore reads the calendar score cell. The source always prints the anchor team's
// runs first, so the pair is swapped when the anchor team is away.
// A cancellation token wins over any digits in the cell.
func ParseScore(text string, anchorAway bool) (home, away int, status GameStatus, err error) {
	text = strings.TrimSpace(text)
	switch {
	case strings.Contains(text, cancelToken):
		return 0, 0, StatusCanceled, nil
	case strings.Contains(text, ":"):
		parts := strings.SplitN(text, ":", 2)
		first, errFirst := strconv.Atoi(strings.TrimSpace(parts[0]))
		second, errSecond := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err := errors.Join(errFirst, errSecond); err != nil {
			return 0, 0, StatusFinished, fmt.Errorf("score %q: %w", text, err)
		}
		if anchorAway {
			return second, first, StatusFinished, nil
		}
		return first, second, StatusFinished, nil
	default:
		return 0, 0, StatusScheduled, nil
	}
}

func observeSkip(kind string, reason SkipKind) {
	metrics.ObserveSkip(kind, string(reason))
}
