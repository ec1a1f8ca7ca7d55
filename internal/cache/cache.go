package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"yarukoto/internal/config"
	"yarukoto/internal/todo"
)

const keyList = "todo:list:"

// ListCache keeps list query results in Redis, keyed by the normalized
// query parameters.
type ListCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewListCache(rdb *redis.Client, ttl time.Duration) *ListCache {
	return &ListCache{rdb: rdb, ttl: ttl}
}

// Connect opens the client described by cfg and checks it answers.
func Connect(ctx context.Context, cfg config.Redis) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// Get returns the cached list. ok is false on a miss; a cached empty list
// is a hit.
func (c *ListCache) Get(ctx context.Context, key string) (list []todo.Item, ok bool, err error) {
	b, err := c.rdb.Get(ctx, keyList+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, false, err
	}
	if list == nil {
		list = []todo.Item{}
	}
	return list, true, nil
}

func (c *ListCache) Set(ctx context.Context, key string, list []todo.Item) error {
	if list == nil {
		list = []todo.Item{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, keyList+key, b, c.ttl).Err()
}

// InvalidateAll drops every cached list.
func (c *ListCache) InvalidateAll(ctx context.Context) error {
	iter := c.rdb.Scan(ctx, 0, keyList+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (c *ListCache) Close() error {
	return c.rdb.Close()
}
