package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const connectAttempts = 3

// Connect returns a client that has answered PING, retrying a few times while
// the server comes up.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	var lastErr error
	for i := 0; i < connectAttempts; i++ {
		rdb := redis.NewClient(&redis.Options{
			Addr:         addr,
			Password:     password,
			DB:           db,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolTimeout:  4 * time.Second,
		})

		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pctx).Err()
		cancel()
		if err == nil {
			return rdb, nil
		}
		lastErr = err
		_ = rdb.Close()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(500+i*500) * time.Millisecond):
		}
	}
	return nil, fmt.Errorf("redis %s: %w", addr, lastErr)
}
