package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/felixgeelhaar/perks/internal/family/application/queries"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "perks:family:plan:"

// DefaultTTL bounds how stale a view can get if an invalidation is lost.
const DefaultTTL = 5 * time.Minute

// Dial parses a redis:// URL and verifies the server answers.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// RedisPlanViewCache stores plan views as JSON in one hash per plan, one
// field per plan version. A late write of an old version lands in a field no
// reader asks for and leaves with the hash's TTL.
type RedisPlanViewCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisPlanViewCache creates a cache backed by client.
func NewRedisPlanViewCache(client *redis.Client, ttl time.Duration) *RedisPlanViewCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisPlanViewCache{client: client, ttl: ttl}
}

func key(planID uuid.UUID) string {
	return keyPrefix + planID.String()
}

// Get returns the view cached for version, or nil on a miss.
func (c *RedisPlanViewCache) Get(ctx context.Context, planID uuid.UUID, version int) (*queries.PlanView, error) {
	field := strconv.Itoa(version)
	data, err := c.client.HGet(ctx, key(planID), field).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var view queries.PlanView
	if err := json.Unmarshal(data, &view); err != nil {
		c.client.HDel(ctx, key(planID), field)
		return nil, fmt.Errorf("failed to unmarshal plan view: %w", err)
	}
	return &view, nil
}

// Set stores view under its plan version until the TTL runs out or the plan
// changes.
func (c *RedisPlanViewCache) Set(ctx context.Context, view *queries.PlanView) error {
	data, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("failed to marshal plan view: %w", err)
	}
	k := key(view.Plan.ID)
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, k, strconv.Itoa(view.Plan.Version), data)
		pipe.Expire(ctx, k, c.ttl)
		return nil
	})
	return err
}

// Invalidate drops the cached view of a plan.
func (c *RedisPlanViewCache) Invalidate(ctx context.Context, planID uuid.UUID) error {
	return c.client.Del(ctx, key(planID)).Err()
}

// Ping reports whether Redis is reachable.
func (c *RedisPlanViewCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the client.
func (c *RedisPlanViewCache) Close() error {
	return c.client.Close()
}

// NoopPlanViewCache never stores anything. Every read is a miss.
type NoopPlanViewCache struct{}

func (NoopPlanViewCache) Get(context.Context, uuid.UUID, int) (*queries.PlanView, error) {
	return nil, nil
}
func (NoopPlanViewCache) Set(context.Context, *queries.PlanView) error { return nil }
func (NoopPlanViewCache) Invalidate(context.Context, uuid.UUID) error  { return nil }
