// Package redis caches season standings in Redis as JSON.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JakeFAU/kbo-game-crawler/internal/crawler"
)

// DefaultTTL bounds how long a season's standings are served from cache.
const DefaultTTL = 10 * time.Minute

const keyPrefix = "kbo:rankings:"

// Config holds the connection URL and entry lifetime.
type Config struct {
	URL string        `mapstructure:"redis_url"`
	TTL time.Duration `mapstructure:"ranking_ttl"`
}

// RankingCache implements crawler.RankingCache.
type RankingCache struct {
	client *redis.Client
	ttl    time.Duration
}

// Open parses cfg.URL and verifies the server answers.
func Open(ctx context.Context, cfg Config) (*RankingCache, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(client, cfg.TTL), nil
}

// New wraps an existing client. A non-positive ttl uses DefaultTTL.
func New(client *redis.Client, ttl time.Duration) *RankingCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RankingCache{client: client, ttl: ttl}
}

func key(season int) string {
	return fmt.Sprintf("%s%d", keyPrefix, season)
}

// GetRankings reports a miss as ok=false with a nil error.
func (c *RankingCache) GetRankings(ctx context.Context, season int) ([]crawler.RankingDTO, bool, error) {
	raw, err := c.client.Get(ctx, key(season)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get rankings %d: %w", season, err)
	}
	var out []crawler.RankingDTO
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false, fmt.Errorf("decode rankings %d: %w", season, err)
	}
	return out, true, nil
}

// SetRankings overwrites the season entry.
func (c *RankingCache) SetRankings(ctx context.Context, season int, rankings []crawler.RankingDTO) error {
	if rankings == nil {
		rankings = []crawler.RankingDTO{}
	}
	data, err := json.Marshal(rankings)
	if err != nil {
		return fmt.Errorf("encode rankings %d: %w", season, err)
	}
	if err := c.client.Set(ctx, key(season), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set rankings %d: %w", season, err)
	}
	return nil
}

// Ping checks the connection.
func (c *RankingCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the client.
func (c *RankingCache) Close() error {
	return c.client.Close()
}

var _ crawler.RankingCache = (*RankingCache)(nil)
