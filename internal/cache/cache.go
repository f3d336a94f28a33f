// Package cache provides the single shared Redis client each process (api,
// worker) constructs once at startup, per spec §5. internal/ratelimit and
// any future caching concern (idempotency-key short-circuiting, session
// lookups) take this client rather than opening their own connections.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds the Redis connection settings read from the environment.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// NewClient dials Redis and verifies connectivity with a PING, mirroring
// the teacher's fail-fast startup checks for Postgres.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("cache: connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}
