package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/kbo-game-crawler/internal/crawler"
)

const teamColumns = `id, name, short_name, code, logo_url`

type teamRepo struct{ *Store }

func scanTeam(row scanner) (crawler.Team, error) {
	var t crawler.Team
	err := row.Scan(&t.ID, &t.Name, &t.ShortName, &t.Code, &t.LogoURL)
	return t, err
}

// FindByFullName returns nil, nil when no team has the name.
func (r teamRepo) FindByFullName(ctx context.Context, name string) (*crawler.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE name = $1`
	team, err := scanTeam(r.pool.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find team %q: %w", name, err)
	}
	return &team, nil
}

func (r teamRepo) FindAll(ctx context.Context) ([]crawler.Team, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+teamColumns+` FROM teams ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	var teams []crawler.Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("scan team row: %w", err)
		}
		teams = append(teams, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	return teams, nil
}

func (r teamRepo) Seed(ctx context.Context, teams []crawler.Team) ([]crawler.Team, error) {
	query := `
		INSERT INTO teams (name, short_name, code, logo_url)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE
		SET short_name = EXCLUDED.short_name,
			code = EXCLUDED.code,
			logo_url = COALESCE(NULLIF(EXCLUDED.logo_url, ''), teams.logo_url)
		RETURNING ` + teamColumns
	out := make([]crawler.Team, 0, len(teams))
	for _, t := range teams {
		if t.Name == "" {
			return out, fmt.Errorf("seed team: name is required")
		}
		saved, err := scanTeam(r.pool.QueryRow(ctx, query, t.Name, t.ShortName, t.Code, t.LogoURL))
		if err != nil {
			return out, fmt.Errorf("seed team %q: %w", t.Name, err)
		}
		out = append(out, saved)
	}
	return out, nil
}
