package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/kbo-game-crawler/internal/crawler"
	"github.com/JakeFAU/kbo-game-crawler/internal/store"
)

type lineupRepo struct{ *Store }

// ReplaceLineupsForGame deletes the game's lineups and inserts the given ones in one transaction.
func (r lineupRepo) ReplaceLineupsForGame(ctx context.Context, gameKey string, lineups []crawler.Lineup) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin lineup replace: %w", err)
	}
	if err := replaceLineups(ctx, tx, gameKey, lineups); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			r.logger.Warn("lineup rollback failed", zap.String("game_key", gameKey), zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit lineups for %s: %w", gameKey, err)
	}
	return nil
}

func replaceLineups(ctx context.Context, tx pgx.Tx, gameKey string, lineups []crawler.Lineup) error {
	var gameID int64
	err := tx.QueryRow(ctx, `SELECT id FROM games WHERE game_key = $1 FOR UPDATE`, gameKey).Scan(&gameID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("replace lineups for %s: %w", gameKey, store.ErrNotFound)
		}
		return fmt.Errorf("lock game %s: %w", gameKey, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM lineups WHERE game_key = $1`, gameKey); err != nil {
		return fmt.Errorf("delete lineups for %s: %w", gameKey, err)
	}

	for _, l := range lineups {
		var lineupID int64
		err := tx.QueryRow(ctx,
			`INSERT INTO lineups (game_key, side, team_name) VALUES ($1, $2, $3) RETURNING id`,
			gameKey, l.Side, l.TeamName,
		).Scan(&lineupID)
		if err != nil {
			return fmt.Errorf("insert %s lineup for %s: %w", l.Side, gameKey, err)
		}
		for i, p := range l.Players {
			_, err := tx.Exec(ctx, `
				INSERT INTO lineup_players (lineup_id, seq, player_name, role, order_number, position, innings)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				lineupID, i, p.PlayerName, p.Role, p.OrderNumber, p.Position, p.Innings,
			)
			if err != nil {
				return fmt.Errorf("insert player %q for %s: %w", p.PlayerName, gameKey, err)
			}
		}
	}
	return nil
}

// LineupsForGame returns HOME before AWAY, players in crawl order.
func (r lineupRepo) LineupsForGame(ctx context.Context, gameKey string) ([]crawler.Lineup, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT l.side, l.team_name, p.player_name, p.role, p.order_number, p.position, p.innings
		FROM lineups l
		LEFT JOIN lineup_players p ON p.lineup_id = l.id
		WHERE l.game_key = $1
		ORDER BY CASE l.side WHEN 'HOME' THEN 0 ELSE 1 END, p.seq`, gameKey)
	if err != nil {
		return nil, fmt.Errorf("lineups for %s: %w", gameKey, err)
	}
	defer rows.Close()

	var lineups []crawler.Lineup
	for rows.Next() {
		var (
			side     crawler.TeamSide
			teamName string
			name     *string
			role     *string
			order    *int
			position *string
			innings  *string
		)
		if err := rows.Scan(&side, &teamName, &name, &role, &order, &position, &innings); err != nil {
			return nil, fmt.Errorf("scan lineup row: %w", err)
		}
		if len(lineups) == 0 || lineups[len(lineups)-1].Side != side {
			lineups = append(lineups, crawler.Lineup{GameKey: gameKey, Side: side, TeamName: teamName})
		}
		if name == nil {
			continue
		}
		cur := &lineups[len(lineups)-1]
		player := crawler.LineupPlayer{PlayerName: *name, OrderNumber: order, Innings: innings}
		if role != nil {
			player.Role = crawler.PlayerRole(*role)
		}
		if position != nil {
			player.Position = *position
		}
		cur.Players = append(cur.Players, player)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lineups for %s: %w", gameKey, err)
	}
	if len(lineups) == 0 {
		return nil, fmt.Errorf("lineups for %s: %w", gameKey, store.ErrNotFound)
	}
	return lineups, nil
}
