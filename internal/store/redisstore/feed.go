package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultFeedKey  = "activity:recent"
	DefaultFeedSize = 200

	seenTTL = 24 * time.Hour
)

var ErrEmptyEventID = errors.New("redisstore: empty event id")

// ActivityFeed keeps the newest admin activity events in a capped list.
// Events are deduplicated by id so redelivered queue messages are pushed once.
type ActivityFeed struct {
	rdb  redis.Cmdable
	key  string
	size int64
}

func NewActivityFeed(rdb redis.Cmdable, key string, size int64) *ActivityFeed {
	if key == "" {
		key = DefaultFeedKey
	}
	if size <= 0 {
		size = DefaultFeedSize
	}
	return &ActivityFeed{rdb: rdb, key: key, size: size}
}

// Push records body under eventID. It reports false when the id was seen already.
func (f *ActivityFeed) Push(ctx context.Context, eventID string, body []byte) (bool, error) {
	if eventID == "" {
		return false, ErrEmptyEventID
	}
	fresh, err := f.rdb.SetNX(ctx, f.key+":seen:"+eventID, 1, seenTTL).Result()
	if err != nil {
		return false, err
	}
	if !fresh {
		return false, nil
	}

	_, err = f.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LPush(ctx, f.key, body)
		p.LTrim(ctx, f.key, 0, f.size-1)
		return nil
	})
	if err != nil {
		// let a redelivery try again
		_ = f.rdb.Del(ctx, f.key+":seen:"+eventID).Err()
		return false, err
	}
	return true, nil
}

// Recent returns up to n raw events, newest first.
func (f *ActivityFeed) Recent(ctx context.Context, n int64) ([]string, error) {
	if n <= 0 || n > f.size {
		n = f.size
	}
	return f.rdb.LRange(ctx, f.key, 0, n-1).Result()
}
