// Package cache memoises leave summaries in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/config"
	"github.com/warp/leave-engine/timeoff"
)

const (
	keyPrefix  = "leave:"
	defaultTTL = 24 * time.Hour
)

// Redis implements timeoff.SummaryCache. Keys embed the snapshot version, so
// entries never need explicit invalidation and simply expire.
type Redis struct {
	Client *redis.Client
	TTL    time.Duration
}

var _ timeoff.SummaryCache = (*Redis)(nil)

// NewRedis connects to Redis using the provided configuration. An
// unreachable server is logged, not fatal: cache errors only cost a recompute.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.Error(err))
	} else {
		logger.Info("connected to redis", zap.String("addr", cfg.Addr))
	}

	return &Redis{Client: client, TTL: defaultTTL}
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}

// GetSummary returns the cached summary, or ok=false on a miss.
func (r *Redis) GetSummary(ctx context.Context, key string) (timeoff.Summary, bool, error) {
	raw, err := r.Client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return timeoff.Summary{}, false, nil
	}
	if err != nil {
		return timeoff.Summary{}, false, fmt.Errorf("redis get: %w", err)
	}

	var s timeoff.Summary
	if err := json.Unmarshal(raw, &s); err != nil {
		return timeoff.Summary{}, false, fmt.Errorf("decode summary: %w", err)
	}
	return s, true, nil
}

// SetSummary stores a summary with the configured TTL.
func (r *Redis) SetSummary(ctx context.Context, key string, s timeoff.Summary) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	ttl := r.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if err := r.Client.Set(ctx, keyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
