package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// seenTTL is how long processed message IDs are remembered. Long-poll
	// reconnects can redeliver recent updates, so a day is plenty.
	seenTTL = 24 * time.Hour

	// nameTTL bounds staleness of cached member names between membership
	// sync runs
	nameTTL = time.Hour
)

// Cache is a Redis-backed helper for message deduplication and member
// name lookups.
type Cache struct {
	client *redis.Client
}

// New creates a cache from a Redis URL and verifies the connection
func New(redisURL string) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// Seen atomically records a message ID and reports whether it was already
// recorded. The first caller gets false, repeats within the TTL get true.
func (c *Cache) Seen(ctx context.Context, messageID string) (bool, error) {
	key := fmt.Sprintf("seen:%s", messageID)
	set, err := c.client.SetNX(ctx, key, 1, seenTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check message dedup: %w", err)
	}
	return !set, nil
}

// CacheMemberName stores a member display name
func (c *Cache) CacheMemberName(ctx context.Context, chatID, userID int64, name string) error {
	key := memberKey(chatID, userID)
	if err := c.client.Set(ctx, key, name, nameTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache member name: %w", err)
	}
	return nil
}

// MemberName returns a cached member display name, or "" on miss
func (c *Cache) MemberName(ctx context.Context, chatID, userID int64) (string, error) {
	name, err := c.client.Get(ctx, memberKey(chatID, userID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read member name: %w", err)
	}
	return name, nil
}

// Client exposes the underlying Redis client for components that share
// the connection, such as the rate limiter store
func (c *Cache) Client() *redis.Client {
	return c.client
}

// Close releases the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

func memberKey(chatID, userID int64) string {
	return fmt.Sprintf("member:%d:%d", chatID, userID)
}
