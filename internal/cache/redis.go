// Package cache stores live session snapshots in Redis so any replica can
// serve reads for a session it does not own.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/terra-clan/practice-engine/internal/models"
	"github.com/terra-clan/practice-engine/internal/storage"
)

const keyPrefix = "practice:session:"

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisSnapshotCache implements session.SnapshotCache on Redis
type RedisSnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSnapshotCache connects to Redis and verifies the connection
func NewRedisSnapshotCache(ctx context.Context, cfg RedisConfig) (*RedisSnapshotCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return NewRedisSnapshotCacheWithClient(client, cfg.TTL), nil
}

// NewRedisSnapshotCacheWithClient wraps an existing client
func NewRedisSnapshotCacheWithClient(client *redis.Client, ttl time.Duration) *RedisSnapshotCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisSnapshotCache{client: client, ttl: ttl}
}

// Save stores the snapshot, refreshing its TTL
func (c *RedisSnapshotCache) Save(ctx context.Context, s *models.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := c.client.Set(ctx, key(s.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session snapshot: %w", err)
	}
	return nil
}

// Load returns the snapshot for id or storage.ErrNotFound
func (c *RedisSnapshotCache) Load(ctx context.Context, id string) (*models.Session, error) {
	data, err := c.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session snapshot: %w", err)
	}

	var s models.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &s, nil
}

// Delete removes the snapshot for id
func (c *RedisSnapshotCache) Delete(ctx context.Context, id string) error {
	return c.client.Del(ctx, key(id)).Err()
}

// Ping checks Redis connectivity
func (c *RedisSnapshotCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the client
func (c *RedisSnapshotCache) Close() error {
	return c.client.Close()
}

func key(id string) string {
	return keyPrefix + id
}
