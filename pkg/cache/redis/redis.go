// Package redis builds the connection used for collection-stat caching and
// export progress tracking. Callers get the raw go-redis client; key
// prefixing lives in the clients layer.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

type Client = goredis.Client

type Config struct {
	Addr        string
	Password    string
	DB          int
	MaxRetries  int
	DialTimeout time.Duration
	// Timeout bounds reads and writes, and the startup ping.
	Timeout time.Duration
}

// Connect opens a client and pings it once so a bad address fails at boot
// instead of on the first cache write.
func Connect(cfg Config) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

func Close(c *Client) {
	if c != nil {
		_ = c.Close()
	}
}
