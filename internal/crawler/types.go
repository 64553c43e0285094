// Package crawler defines core types shared across subsystems.
package crawler

import (
	"time"
)

// GameStatus represents the lifecycle state of a game.
type GameStatus string

// Game status values persisted in the game store.
const (
	StatusScheduled GameStatus = "SCHEDULED"
	StatusFinished  GameStatus = "FINISHED"
	StatusCanceled  GameStatus = "CANCELED"
)

// Valid reports whether s is a known status.
func (s GameStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusFinished, StatusCanceled:
		return true
	}
	return false
}

// TeamSide identifies which side of a game a team played.
type TeamSide string

// Team sides.
const (
	SideHome TeamSide = "HOME"
	SideAway TeamSide = "AWAY"
)

// PlayerRole separates batting and pitching records.
type PlayerRole string

// Player roles.
const (
	RoleBatter  PlayerRole = "BATTER"
	RolePitcher PlayerRole = "PITCHER"
)

// Position tags written for crawled lineup rows.
const (
	PositionBatter  = "타자"
	PositionPitcher = "투수"
)

// AnonymousAuthor is used when a comment has no author element.
const AnonymousAuthor = "익명"

// RawGameRecord is one game extracted from the monthly schedule view.
type RawGameRecord struct {
	GameKey           string     `json:"game_key"`
	GameDateTime      time.Time  `json:"game_date_time"`
	HomeTeamShortName string     `json:"home_team_short_name"`
	AwayTeamShortName string     `json:"away_team_short_name"`
	OpponentShortName string     `json:"opponent_short_name"`
	OpponentLogoURL   string     `json:"opponent_logo_url,omitempty"`
	Stadium           string     `json:"stadium"`
	HomeScore         int        `json:"home_score"`
	AwayScore         int        `json:"away_score"`
	Status            GameStatus `json:"status"`
	Outcome           string     `json:"outcome,omitempty"`
	RawVsAtIndicator  string     `json:"raw_vs_at_indicator"`
	DetailURL         string     `json:"detail_url,omitempty"`
}

// RawPlayerRecord is one row of a lineup or pitching table.
type RawPlayerRecord struct {
	GameKey      string     `json:"game_key"`
	TeamFullName string     `json:"team_full_name"`
	TeamSide     TeamSide   `json:"team_side"`
	Role         PlayerRole `json:"role"`
	PlayerName   string     `json:"player_name"`
	// OrderNumber is nil for pitchers.
	OrderNumber *int   `json:"order_number,omitempty"`
	Position    string `json:"position"`
	// Innings is nil for batters.
	Innings *string `json:"innings,omitempty"`
}

// RawCommentRecord is one entry of a game's public comment thread.
type RawCommentRecord struct {
	Author      string  `json:"author"`
	CommentText string  `json:"comment_text"`
	Timestamp   *string `json:"timestamp,omitempty"`
}

// RawRankingRecord is one row of the league standings table.
type RawRankingRecord struct {
	Rank          int     `json:"rank"`
	TeamShortName string  `json:"team_short_name"`
	GamesPlayed   int     `json:"games_played"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	Draws         int     `json:"draws"`
	WinRate       float64 `json:"win_rate"`
	GamesBehind   float64 `json:"games_behind"`
}

// Team is a persisted club, keyed by its canonical full name.
type Team struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"short_name"`
	Code      string `json:"code,omitempty"`
	LogoURL   string `json:"logo_url,omitempty"`
}

// Game is a persisted fixture, keyed by GameKey.
type Game struct {
	ID           int64      `json:"id"`
	GameKey      string     `json:"game_key"`
	GameDateTime time.Time  `json:"game_date_time"`
	HomeTeam     Team       `json:"home_team"`
	AwayTeam     Team       `json:"away_team"`
	Stadium      string     `json:"stadium"`
	HomeScore    int        `json:"home_score"`
	AwayScore    int        `json:"away_score"`
	Status       GameStatus `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Lineup is the set of players one side fielded in a game.
type Lineup struct {
	GameKey  string         `json:"game_key"`
	Side     TeamSide       `json:"side"`
	TeamName string         `json:"team_name"`
	Players  []LineupPlayer `json:"players"`
}

// LineupPlayer belongs to exactly one Lineup.
type LineupPlayer struct {
	PlayerName  string     `json:"player_name"`
	Role        PlayerRole `json:"role"`
	OrderNumber *int       `json:"order_number,omitempty"`
	Position    string     `json:"position"`
	Innings     *string    `json:"innings,omitempty"`
}

// Ranking is a team's standing for one season.
type Ranking struct {
	ID          int64     `json:"id"`
	Team        Team      `json:"team"`
	SeasonYear  int       `json:"season_year"`
	Rank        int       `json:"rank"`
	GamesPlayed int       `json:"games_played"`
	Wins        int       `json:"wins"`
	Losses      int       `json:"losses"`
	Draws       int       `json:"draws"`
	WinRate     float64   `json:"win_rate"`
	GamesBehind float64   `json:"games_behind"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UpdateAction describes what reconciliation did with a record.
type UpdateAction string

// Reconciliation actions.
const (
	ActionInserted  UpdateAction = "inserted"
	ActionUpdated   UpdateAction = "updated"
	ActionUnchanged UpdateAction = "unchanged"
)

// GameUpdateResult is returned to callers of a schedule crawl and published as an event.
type GameUpdateResult struct {
	RunID        string       `json:"run_id,omitempty"`
	GameID       int64        `json:"game_id"`
	GameKey      string       `json:"game_key"`
	Action       UpdateAction `json:"action"`
	GameDateTime time.Time    `json:"game_date_time"`
	HomeTeam     string       `json:"home_team"`
	HomeTeamCode string       `json:"home_team_code"`
	AwayTeam     string       `json:"away_team"`
	AwayTeamCode string       `json:"away_team_code"`
	Stadium      string       `json:"stadium"`
	HomeScore    int          `json:"home_score"`
	AwayScore    int          `json:"away_score"`
	Status       GameStatus   `json:"status"`
}

// RankingDTO is the outward shape of a persisted ranking.
type RankingDTO struct {
	TeamName    string  `json:"team_name"`
	TeamCode    string  `json:"team_code,omitempty"`
	SeasonYear  int     `json:"season_year"`
	Rank        int     `json:"rank"`
	GamesPlayed int     `json:"games_played"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	Draws       int     `json:"draws"`
	WinRate     float64 `json:"win_rate"`
	GamesBehind float64 `json:"games_behind"`
}

// NewRankingDTO converts a persisted ranking.
func NewRankingDTO(r Ranking) RankingDTO {
	return RankingDTO{
		TeamName:    r.Team.Name,
		TeamCode:    r.Team.Code,
		SeasonYear:  r.SeasonYear,
		Rank:        r.Rank,
		GamesPlayed: r.GamesPlayed,
		Wins:        r.Wins,
		Losses:      r.Losses,
		Draws:       r.Draws,
		WinRate:     r.WinRate,
		GamesBehind: r.GamesBehind,
	}
}
