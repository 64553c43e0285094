package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/JakeFAU/kbo-game-crawler/internal/crawler"
)

const gameSelect = `
	SELECT g.id, g.game_key, g.game_date_time, g.stadium, g.home_score, g.away_score, g.status,
		g.created_at, g.updated_at,
		h.id, h.name, h.short_name, h.code, h.logo_url,
		a.id, a.name, a.short_name, a.code, a.logo_url`

type gameRepo struct{ *Store }

func scanGame(row scanner) (crawler.Game, error) {
	var g crawler.Game
	err := row.Scan(
		&g.ID, &g.GameKey, &g.GameDateTime, &g.Stadium, &g.HomeScore, &g.AwayScore, &g.Status,
		&g.CreatedAt, &g.UpdatedAt,
		&g.HomeTeam.ID, &g.HomeTeam.Name, &g.HomeTeam.ShortName, &g.HomeTeam.Code, &g.HomeTeam.LogoURL,
		&g.AwayTeam.ID, &g.AwayTeam.Name, &g.AwayTeam.ShortName, &g.AwayTeam.Code, &g.AwayTeam.LogoURL,
	)
	return g, err
}

// FindByDateRange returns games with start <= kickoff < end.
func (r gameRepo) FindByDateRange(ctx context.Context, start, end time.Time) ([]crawler.Game, error) {
	query := gameSelect + `
	FROM games g
	JOIN teams h ON h.id = g.home_team_id
	JOIN teams a ON a.id = g.away_team_id
	WHERE g.game_date_time >= $1 AND g.game_date_time < $2
	ORDER BY g.game_date_time, g.game_key`
	rows, err := r.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("find games: %w", err)
	}
	defer rows.Close()

	var games []crawler.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scan game row: %w", err)
		}
		games = append(games, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find games: %w", err)
	}
	return games, nil
}

// Save upserts on game_key. An existing game keeps its teams.
func (r gameRepo) Save(ctx context.Context, game crawler.Game) (crawler.Game, error) {
	query := `
	WITH g AS (
		INSERT INTO games (game_key, game_date_time, home_team_id, away_team_id, stadium, home_score, away_score, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (game_key) DO UPDATE
		SET game_date_time = EXCLUDED.game_date_time,
			stadium = EXCLUDED.stadium,
			home_score = EXCLUDED.home_score,
			away_score = EXCLUDED.away_score,
			status = EXCLUDED.status,
			updated_at = now()
		RETURNING *
	)` + gameSelect + `
	FROM g
	JOIN teams h ON h.id = g.home_team_id
	JOIN teams a ON a.id = g.away_team_id`

	if game.GameKey == "" {
		return crawler.Game{}, fmt.Errorf("save game: game key is required")
	}
	saved, err := scanGame(r.pool.QueryRow(ctx, query,
		game.GameKey,
		game.GameDateTime,
		game.HomeTeam.ID,
		game.AwayTeam.ID,
		game.Stadium,
		game.HomeScore,
		game.AwayScore,
		game.Status,
	))
	if err != nil {
		return crawler.Game{}, wrapWrite("save game "+game.GameKey, err)
	}
	return saved, nil
}

// SaveAll saves games one by one and stops at the first failure.
func (r gameRepo) SaveAll(ctx context.Context, games []crawler.Game) ([]crawler.Game, error) {
	out := make([]crawler.Game, 0, len(games))
	for _, g := range games {
		saved, err := r.Save(ctx, g)
		if err != nil {
			return out, err
		}
		out = append(out, saved)
	}
	return out, nil
}
