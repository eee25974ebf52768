// Package cache provides a Redis-backed snapshot cache for board trees.
// Snapshots are written through after a successful persistence commit and
// invalidated whenever the engine reconciles from ground truth, so a cached
// entry never outlives a failed commit.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"taskboard/api/internal/store"
)

type BoardCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewBoardCache(redisURL string, ttl time.Duration) (*BoardCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &BoardCache{client: client, prefix: "board:", ttl: ttl}, nil
}

// NewBoardCacheWithClient creates a cache from an existing Redis client.
func NewBoardCacheWithClient(client *redis.Client, ttl time.Duration) *BoardCache {
	return &BoardCache{client: client, prefix: "board:", ttl: ttl}
}

func (c *BoardCache) key(boardID string) string {
	return c.prefix + boardID
}

func (c *BoardCache) Put(ctx context.Context, board *store.Board) error {
	data, err := json.Marshal(board)
	if err != nil {
		return fmt.Errorf("marshal board snapshot: %w", err)
	}
	if err := c.client.Set(ctx, c.key(board.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache board snapshot: %w", err)
	}
	return nil
}

// Get returns the cached snapshot, or (nil, nil) on a miss.
func (c *BoardCache) Get(ctx context.Context, boardID string) (*store.Board, error) {
	data, err := c.client.Get(ctx, c.key(boardID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read board snapshot: %w", err)
	}
	var board store.Board
	if err := json.Unmarshal(data, &board); err != nil {
		return nil, fmt.Errorf("unmarshal board snapshot: %w", err)
	}
	return &board, nil
}

func (c *BoardCache) Invalidate(ctx context.Context, boardID string) error {
	if err := c.client.Del(ctx, c.key(boardID)).Err(); err != nil {
		return fmt.Errorf("invalidate board snapshot: %w", err)
	}
	return nil
}

func (c *BoardCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *BoardCache) Close() error {
	return c.client.Close()
}
