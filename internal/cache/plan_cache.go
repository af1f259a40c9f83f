package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/example/reviewplanner/pkg/models"
)

// PlanCache stores computed plans per user. Variant distinguishes plans
// built from different request parameters for the same user.
type PlanCache interface {
	Get(ctx context.Context, userID int64, variant string) (models.Schedule, bool, error)
	Set(ctx context.Context, userID int64, variant string, plan models.Schedule) error
	Invalidate(ctx context.Context, userID int64) error
	Close() error
}

// Options configures the Redis plan cache.
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// New returns a Redis-backed cache, or a no-op cache when Addr is empty.
func New(ctx context.Context, opts Options) (PlanCache, error) {
	if opts.Addr == "" {
		return Noop{}, nil
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &redisCache{rdb: rdb, ttl: opts.TTL}, nil
}

type redisCache struct {
	rdb *goredis.Client
	ttl time.Duration
}

// Key returns the hash holding every cached plan of a user.
func Key(userID int64) string {
	return "plan:" + strconv.FormatInt(userID, 10)
}

func (c *redisCache) Get(ctx context.Context, userID int64, variant string) (models.Schedule, bool, error) {
	raw, err := c.rdb.HGet(ctx, Key(userID), variant).Bytes()
	if errors.Is(err, goredis.Nil) {
		return models.Schedule{}, false, nil
	}
	if err != nil {
		return models.Schedule{}, false, fmt.Errorf("redis hget: %w", err)
	}
	var plan models.Schedule
	if err := json.Unmarshal(raw, &plan); err != nil {
		return models.Schedule{}, false, fmt.Errorf("decode cached plan: %w", err)
	}
	return plan, true, nil
}

func (c *redisCache) Set(ctx context.Context, userID int64, variant string, plan models.Schedule) error {
	raw, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	key := Key(userID)
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key, variant, raw)
	if c.ttl > 0 {
		pipe.Expire(ctx, key, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

func (c *redisCache) Invalidate(ctx context.Context, userID int64) error {
	if err := c.rdb.Del(ctx, Key(userID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (c *redisCache) Close() error {
	return c.rdb.Close()
}

// Noop is used when no Redis address is configured.
type Noop struct{}

func (Noop) Get(context.Context, int64, string) (models.Schedule, bool, error) {
	return models.Schedule{}, false, nil
}

func (Noop) Set(context.Context, int64, string, models.Schedule) error { return nil }

func (Noop) Invalidate(context.Context, int64) error { return nil }

func (Noop) Close() error { return nil }
