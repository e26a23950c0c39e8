// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package capability

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const defaultKeyPrefix = "rcs:capreq:"

// RedisRecent is a Redis-backed Recent, shared by every process using the
// same database.
type RedisRecent struct {
	client *redis.Client
	prefix string
	logger zerolog.Logger
	stats  struct {
		hits   atomic.Int64
		misses atomic.Int64
	}
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr      string `yaml:"addr"`     // Redis server address (host:port)
	Password  string `yaml:"password"` // Redis password (optional)
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"keyPrefix"`
}

// NewRedisRecent connects to Redis and verifies the connection.
func NewRedisRecent(config RedisConfig, logger zerolog.Logger) (*RedisRecent, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info().
		Str("addr", config.Addr).
		Int("db", config.DB).
		Msg("connected to Redis for capability de-duplication")

	return newRedisRecent(client, config.KeyPrefix, logger), nil
}

func newRedisRecent(client *redis.Client, prefix string, logger zerolog.Logger) *RedisRecent {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisRecent{client: client, prefix: prefix, logger: logger}
}

// MarkIfAbsent uses SET NX so concurrent processes agree on a single winner.
func (c *RedisRecent) MarkIfAbsent(ctx context.Context, contact string, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, c.prefix+contact, time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	if ok {
		c.stats.misses.Add(1)
	} else {
		c.stats.hits.Add(1)
	}
	return ok, nil
}

func (c *RedisRecent) Forget(ctx context.Context, contact string) error {
	if err := c.client.Del(ctx, c.prefix+contact).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Stats returns counters. CurrentSize counts keys under the prefix.
func (c *RedisRecent) Stats() Stats {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	size := 0
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		size++
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn().Err(err).Msg("redis scan failed")
	}

	return Stats{
		Hits:        c.stats.hits.Load(),
		Misses:      c.stats.misses.Load(),
		CurrentSize: size,
	}
}

// Close closes the Redis connection.
func (c *RedisRecent) Close() error {
	return c.client.Close()
}

// HealthCheck checks if Redis is available.
func (c *RedisRecent) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
