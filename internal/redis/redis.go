package redis

import (
	"context"
	"fmt"
	"strings"

	redisClient "github.com/go-redis/redis/v8"
)

// Cache keeps generation results between requests. It never holds editor
// session state.
type Cache struct {
	client *redisClient.Client
}

// NewCache connects to addr. A bare host:port is dialled over TLS with the
// default user, the way hosted Redis expects; a full redis:// or rediss://
// URL is used as given.
func NewCache(ctx context.Context, addr, password string) (*Cache, error) {
	url := addr
	if !strings.Contains(addr, "://") {
		url = fmt.Sprintf("rediss://default:%s@%s", password, addr)
	}

	opt, err := redisClient.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	if password != "" && opt.Password == "" {
		opt.Password = password
	}

	cache := NewCacheFromClient(redisClient.NewClient(opt))
	if err := cache.client.Ping(ctx).Err(); err != nil {
		cache.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return cache, nil
}

func NewCacheFromClient(client *redisClient.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Close() error {
	return c.client.Close()
}
