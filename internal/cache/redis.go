// Package cache provides a Redis-backed store for ranked pattern results.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	apperrors "equity-screener/internal/errors"
	"equity-screener/internal/models"
	"equity-screener/pkg/utils"
)

// DefaultKeyPrefix namespaces every key written by the cache.
const DefaultKeyPrefix = "screener:"

// RedisConfig holds the connection settings of the results cache.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	// TTL bounds how long an entry lives in Redis regardless of the
	// max age a reader asks for.
	TTL time.Duration
}

// entry is the stored value of one pattern's results.
type entry struct {
	UpdatedAt time.Time            `json:"updated_at"`
	Results   []models.MatchResult `json:"results"`
}

// RedisCache implements the results cache on Redis.
type RedisCache struct {
	client *redis.Client
	cfg    RedisConfig
	logger zerolog.Logger
	now    func() time.Time
}

// NewRedisCache connects to Redis, retrying the initial ping.
func NewRedisCache(ctx context.Context, cfg RedisConfig, logger zerolog.Logger) (*RedisCache, error) {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	c := &RedisCache{
		client: client,
		cfg:    cfg,
		logger: logger.With().Str("component", "redis_cache").Logger(),
		now:    time.Now,
	}

	err := utils.Retry(ctx, utils.DefaultRetryConfig(), func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrCacheUnavailable, cfg.Addr, err)
	}

	c.logger.Info().Str("addr", cfg.Addr).Msg("Connected to Redis results cache")
	return c, nil
}

func (c *RedisCache) key(patternID string) string {
	return c.cfg.KeyPrefix + "results:" + patternID
}

// GetCached returns the cached results of a pattern when they are newer than
// maxAge. An entry stored with no results is a hit.
func (c *RedisCache) GetCached(ctx context.Context, patternID string, maxAge time.Duration) ([]models.MatchResult, bool, error) {
	data, err := c.client.Get(ctx, c.key(patternID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached results: %w", err)
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached results: %w", err)
	}
	if !e.UpdatedAt.After(c.now().Add(-maxAge)) {
		return nil, false, nil
	}
	if e.Results == nil {
		e.Results = []models.MatchResult{}
	}
	return e.Results, true, nil
}

// PutCached replaces the cached results of a pattern in one MULTI block.
func (c *RedisCache) PutCached(ctx context.Context, patternID string, results []models.MatchResult) error {
	data, err := json.Marshal(entry{UpdatedAt: c.now().UTC(), Results: results})
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}

	key := c.key(patternID)
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.Set(ctx, key, data, c.cfg.TTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache results: %w", err)
	}
	return nil
}

// ClearCache deletes one pattern's entry, or every entry under the key
// prefix when patternID is empty.
func (c *RedisCache) ClearCache(ctx context.Context, patternID string) (int64, error) {
	if patternID != "" {
		n, err := c.client.Del(ctx, c.key(patternID)).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to clear cache: %w", err)
		}
		return n, nil
	}

	var removed int64
	iter := c.client.Scan(ctx, 0, c.cfg.KeyPrefix+"results:*", 100).Iterator()
	for iter.Next(ctx) {
		n, err := c.client.Del(ctx, iter.Val()).Result()
		if err != nil {
			return removed, fmt.Errorf("failed to clear cache: %w", err)
		}
		removed += n
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("failed to scan cache keys: %w", err)
	}
	return removed, nil
}

// Close closes the Redis client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
