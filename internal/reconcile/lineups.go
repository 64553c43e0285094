package reconcile

import "github.com/JakeFAU/kbo-game-crawler/internal/crawler"

// BuildLineups groups player rows into one lineup per side, home first. Rows keep their
// crawl order. Pitchers never carry an order number and batters never carry innings; a
// batter without an order number gets 0.
func BuildLineups(gameKey string, raw []crawler.RawPlayerRecord) []crawler.Lineup {
	bySide := make(map[crawler.TeamSide]*crawler.Lineup, 2)
	for _, rec := range raw {
		if rec.PlayerName == "" {
			continue
		}
		lineup, ok := bySide[rec.TeamSide]
		if !ok {
			lineup = &crawler.Lineup{GameKey: gameKey, Side: rec.TeamSide, TeamName: rec.TeamFullName}
			bySide[rec.TeamSide] = lineup
		}
		lineup.Players = append(lineup.Players, lineupPlayer(rec))
	}
	out := make([]crawler.Lineup, 0, len(bySide))
	for _, side := range []crawler.TeamSide{crawler.SideHome, crawler.SideAway} {
		if l, ok := bySide[side]; ok {
			out = append(out, *l)
		}
	}
	return out
}

func lineupPlayer(rec crawler.RawPlayerRecord) crawler.LineupPlayer {
	p := crawler.LineupPlayer{
		PlayerName: rec.PlayerName,
		Role:       rec.Role,
		Position:   rec.Position,
	}
	switch rec.Role {
	case crawler.RolePitcher:
		if rec.Innings != nil {
			innings := *rec.Innings
			p.Innings = &innings
		}
	default:
		order := 0
		if rec.OrderNumber != nil {
			order = *rec.OrderNumber
		}
		p.OrderNumber = &order
	}
	return p
}
