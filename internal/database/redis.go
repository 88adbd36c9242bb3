package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ConnectRedis creates the shared Redis client used by the cache and the job
// queue, verifying connectivity with a ping
func ConnectRedis(ctx context.Context, addr, password string, db int) (goredis.UniversalClient, error) {
	slog.Info("Connecting to Redis", "addr", addr, "db", db)

	rdb := goredis.NewClient(&goredis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		PoolSize:     50,
		MinIdleConns: 5,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	slog.Info("Successfully connected to Redis")
	return rdb, nil
}
