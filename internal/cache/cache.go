/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-based caching layer for frequently accessed data.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Default TTL values for different cache types
const (
	DefaultChannelListTTL  = 5 * time.Minute
	DefaultChannelMediaTTL = 30 * time.Minute
	DefaultRunTTL          = 1 * time.Hour
)

// Key prefixes for Redis cache
const (
	KeyChannelList  = "tunabrain:cache:channels"
	KeyChannelMedia = "tunabrain:cache:channel_media:" // + channel_id
	KeyRun          = "tunabrain:cache:run:"           // + run_id
)

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// TTL overrides
	ChannelListTTL  time.Duration
	ChannelMediaTTL time.Duration
	RunTTL          time.Duration

	// Fallback behavior
	DisableOnError bool // If true, disable caching on Redis errors
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:       "localhost:6379",
		ChannelListTTL:  DefaultChannelListTTL,
		ChannelMediaTTL: DefaultChannelMediaTTL,
		RunTTL:          DefaultRunTTL,
		DisableOnError:  true,
	}
}

// Cache provides Redis-backed caching with graceful fallback.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool // Circuit breaker state
}

// New creates a new cache instance. A failed Redis connection yields a
// disabled cache rather than an error; callers fall through to the database.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis cache unavailable, running without caching")
		return &Cache{
			logger:   logger.With().Str("component", "cache").Logger(),
			config:   cfg,
			disabled: true,
		}, nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache initialized")

	return &Cache{
		client: client,
		logger: logger.With().Str("component", "cache").Logger(),
		config: cfg,
	}, nil
}

// Disabled returns a cache that never touches Redis. Used when caching is
// turned off in configuration.
func Disabled(logger zerolog.Logger) *Cache {
	return &Cache{
		logger:   logger.With().Str("component", "cache").Logger(),
		config:   DefaultConfig(),
		disabled: true,
	}
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

// handleError handles Redis errors with circuit breaker logic.
func (c *Cache) handleError(err error, operation string) {
	if err == nil || err == redis.Nil {
		return
	}

	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling cache due to Redis error")
	}
}

// get retrieves a value from cache and unmarshals it.
func (c *Cache) get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.IsAvailable() {
		return false, nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		c.handleError(err, "get")
		return false, err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to unmarshal cached value")
		return false, nil
	}

	return true, nil
}

// set stores a value in cache with TTL.
func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.IsAvailable() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.handleError(err, "set")
		return err
	}

	return nil
}

// delete removes a key from cache.
func (c *Cache) delete(ctx context.Context, key string) error {
	if !c.IsAvailable() {
		return nil
	}

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.handleError(err, "delete")
		return err
	}

	return nil
}

// deletePattern deletes all keys matching a pattern.
func (c *Cache) deletePattern(ctx context.Context, pattern string) error {
	if !c.IsAvailable() {
		return nil
	}

	// Use SCAN to find keys (safer than KEYS for production)
	var cursor uint64
	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			c.handleError(err, "scan")
			return err
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.handleError(err, "delete_batch")
				return err
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return nil
}

// Channel caching methods

// CachedChannel represents a cached channel record.
type CachedChannel struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	Instructions    string `json:"instructions"`
	DayStartMinutes int    `json:"day_start_minutes"`
	DayEndMinutes   int    `json:"day_end_minutes"`
}

// GetChannelList retrieves the cached list of channels.
func (c *Cache) GetChannelList(ctx context.Context) ([]CachedChannel, bool) {
	var channels []CachedChannel
	found, err := c.get(ctx, KeyChannelList, &channels)
	if err != nil || !found {
		return nil, false
	}
	c.logger.Debug().Int("count", len(channels)).Msg("channel list cache hit")
	return channels, true
}

// SetChannelList caches the list of channels.
func (c *Cache) SetChannelList(ctx context.Context, channels []CachedChannel) error {
	c.logger.Debug().Int("count", len(channels)).Msg("caching channel list")
	return c.set(ctx, KeyChannelList, channels, c.config.ChannelListTTL)
}

// InvalidateChannelList removes the channel list from cache.
func (c *Cache) InvalidateChannelList(ctx context.Context) error {
	c.logger.Debug().Msg("invalidating channel list cache")
	return c.delete(ctx, KeyChannelList)
}

// Media library caching methods

// CachedMediaItem represents a cached media library entry.
type CachedMediaItem struct {
	ID              string   `json:"id"`
	ChannelID       string   `json:"channel_id"`
	Title           string   `json:"title"`
	MediaRef        string   `json:"media_ref"`
	Genres          []string `json:"genres"`
	Tags            []string `json:"tags"`
	DurationMinutes int      `json:"duration_minutes"`
	Rating          string   `json:"rating"`
}

// GetChannelMedia retrieves the cached media library for a channel.
func (c *Cache) GetChannelMedia(ctx context.Context, channelID string) ([]CachedMediaItem, bool) {
	var items []CachedMediaItem
	found, err := c.get(ctx, KeyChannelMedia+channelID, &items)
	if err != nil || !found {
		return nil, false
	}
	c.logger.Debug().Str("channel_id", channelID).Int("count", len(items)).Msg("channel media cache hit")
	return items, true
}

// SetChannelMedia caches the media library for a channel.
func (c *Cache) SetChannelMedia(ctx context.Context, channelID string, items []CachedMediaItem) error {
	c.logger.Debug().Str("channel_id", channelID).Int("count", len(items)).Msg("caching channel media")
	return c.set(ctx, KeyChannelMedia+channelID, items, c.config.ChannelMediaTTL)
}

// InvalidateChannelMedia removes a channel's media library from cache.
func (c *Cache) InvalidateChannelMedia(ctx context.Context, channelID string) error {
	c.logger.Debug().Str("channel_id", channelID).Msg("invalidating channel media cache")
	return c.delete(ctx, KeyChannelMedia+channelID)
}

// Run result caching methods

// CachedRun represents a cached run summary.
type CachedRun struct {
	RunID      string `json:"run_id"`
	ChannelID  string `json:"channel_id"`
	Status     string `json:"status"`
	Iterations int    `json:"iterations"`
	Slots      int    `json:"slots"`
	Overview   string `json:"overview"`
}

// GetRun retrieves a cached run summary by ID.
func (c *Cache) GetRun(ctx context.Context, runID string) (*CachedRun, bool) {
	var run CachedRun
	found, err := c.get(ctx, KeyRun+runID, &run)
	if err != nil || !found {
		return nil, false
	}
	c.logger.Debug().Str("run_id", runID).Msg("run cache hit")
	return &run, true
}

// SetRun caches a run summary.
func (c *Cache) SetRun(ctx context.Context, run *CachedRun) error {
	c.logger.Debug().Str("run_id", run.RunID).Msg("caching run")
	return c.set(ctx, KeyRun+run.RunID, run, c.config.RunTTL)
}

// InvalidateRun removes a run from cache.
func (c *Cache) InvalidateRun(ctx context.Context, runID string) error {
	c.logger.Debug().Str("run_id", runID).Msg("invalidating run cache")
	return c.delete(ctx, KeyRun+runID)
}

// InvalidateChannel removes all caches related to a channel.
func (c *Cache) InvalidateChannel(ctx context.Context, channelID string) error {
	c.logger.Debug().Str("channel_id", channelID).Msg("invalidating all channel caches")

	if err := c.InvalidateChannelList(ctx); err != nil {
		return err
	}
	return c.InvalidateChannelMedia(ctx, channelID)
}

// FlushAll removes all cached data (use sparingly).
func (c *Cache) FlushAll(ctx context.Context) error {
	c.logger.Warn().Msg("flushing all cache data")
	return c.deletePattern(ctx, "tunabrain:cache:*")
}
