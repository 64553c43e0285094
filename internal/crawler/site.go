package crawler

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// DefaultSiteURL is the club site that publishes the schedule, box scores and comments.
const DefaultSiteURL = "https://www.giantsclub.com"

// DefaultRankingURL is the league standings page.
const DefaultRankingURL = "https://www.koreabaseball.com/Record/TeamRank/TeamRankDaily.aspx"

// DefaultAnchorTeam is the club whose calendar the site shows.
const DefaultAnchorTeam = "롯데"

// Location is the time zone every kickoff is published in.
var Location = time.FixedZone("KST", 9*60*60)

var gameDatePattern = regexp.MustCompile(`^(\d{8})`)

// Site builds URLs for the club site.
type Site struct {
	BaseURL string
}

// ScheduleURL is the monthly calendar view.
func (s Site) ScheduleURL(year, month int) string {
	return fmt.Sprintf("%s/html/?pcode=257&type=calendar&y=%d&m=%02d", s.base(), year, month)
}

// DetailURL is the box score and comment page of one game.
func (s Site) DetailURL(gameKey string) string {
	return s.base() + "/html/?pcode=257&type=calendar&flag=1&gmkey=" + url.QueryEscape(gameKey)
}

// Resolve turns a site-relative reference into an absolute URL.
func (s Site) Resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	base, err := url.Parse(s.base() + "/")
	if err != nil {
		return ref
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}

func (s Site) base() string {
	if s.BaseURL == "" {
		return DefaultSiteURL
	}
	return strings.TrimRight(s.BaseURL, "/")
}

// GameDate parses the yyyyMMdd prefix of a game key.
func GameDate(gameKey string) (time.Time, error) {
	m := gameDatePattern.FindStringSubmatch(gameKey)
	if m == nil {
		return time.Time{}, fmt.Errorf("game key %q has no date prefix", gameKey)
	}
	d, err := time.ParseInLocation("20060102", m[1], Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("game key %q: %w", gameKey, err)
	}
	return d, nil
}
