package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"bookrecorder/internal/logger"
)

// Client is the single shared Redis connection pool. It backs the feed and
// leaderboard caches and the activity stream.
type Client struct {
	*redis.Client
}

// NewClient parses a URL of the form redis://[:password@]host:port[/db]
// and pings the server so startup fails fast when Redis is unreachable.
func NewClient(ctx context.Context, redisURL string, log *logger.Logger) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second

	c := &Client{Client: redis.NewClient(opts)}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.Client.Ping(pingCtx).Err(); err != nil {
		_ = c.Client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Info("connected to redis", "addr", opts.Addr, "db", opts.DB)
	return c, nil
}

// Close closes the pool.
func (c *Client) Close() error {
	return c.Client.Close()
}
