package grammar

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores successful suggestions in Redis keyed by message hash, so
// repeated lookups for the same transcript text skip the provider entirely.
// Cache failures degrade to a direct upstream call, never to a request error.
type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewCache connects to Redis and verifies the connection.
func NewCache(redisURL string, ttl time.Duration) (*Cache, error) {
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

	return NewCacheWithClient(client, ttl), nil
}

// NewCacheWithClient creates a cache from an existing Redis client.
func NewCacheWithClient(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{
		client: client,
		prefix: "grammar:",
		ttl:    ttl,
	}
}

func (c *Cache) key(messageHash string) string {
	return c.prefix + messageHash
}

// Get returns the cached suggestion for a message hash, if present.
func (c *Cache) Get(ctx context.Context, messageHash string) (Suggestion, bool) {
	raw, err := c.client.Get(ctx, c.key(messageHash)).Result()
	if err == redis.Nil {
		return Suggestion{}, false
	}
	if err != nil {
		log.Printf("grammar cache read failed: %v", err)
		return Suggestion{}, false
	}

	var suggestion Suggestion
	if err := json.Unmarshal([]byte(raw), &suggestion); err != nil {
		log.Printf("grammar cache entry corrupt for %s: %v", messageHash, err)
		return Suggestion{}, false
	}
	return suggestion, true
}

// Set stores a suggestion with the configured TTL.
func (c *Cache) Set(ctx context.Context, messageHash string, suggestion Suggestion) {
	raw, err := json.Marshal(suggestion)
	if err != nil {
		log.Printf("grammar cache marshal failed: %v", err)
		return
	}
	if err := c.client.Set(ctx, c.key(messageHash), raw, c.ttl).Err(); err != nil {
		log.Printf("grammar cache write failed: %v", err)
	}
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}
