package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Entry is one fixed window for a client. WindowStart is unix milliseconds so
// the compare-and-set predicates compare integers on every driver.
type Entry struct {
	ClientID    string `gorm:"primaryKey;size:191"`
	Count       int    `gorm:"column:request_count;not null"`
	WindowStart int64  `gorm:"not null;index"`
}

func (Entry) TableName() string { return "rate_limit_entries" }

const casAttempts = 5

// StoreLimiter keeps counters in the relational store. Every write is a
// conditional UPDATE on the row's previous (count, window_start), so concurrent
// requests from one client cannot lose increments.
type StoreLimiter struct {
	db   *gorm.DB
	opts Options
}

func NewStoreLimiter(db *gorm.DB, opts Options) *StoreLimiter {
	return &StoreLimiter{db: db, opts: opts.withDefaults()}
}

func (l *StoreLimiter) Check(ctx context.Context, clientID string) (Decision, error) {
	if clientID == "" {
		clientID = UnknownClient
	}
	window := l.opts.Window.Milliseconds()

	for i := 0; i < casAttempts; i++ {
		now := l.opts.Now().UnixMilli()

		var e Entry
		err := l.db.WithContext(ctx).Where("client_id = ?", clientID).Take(&e).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			res := l.db.WithContext(ctx).
				Clauses(clause.OnConflict{DoNothing: true}).
				Create(&Entry{ClientID: clientID, Count: 1, WindowStart: now})
			if res.Error != nil {
				return Decision{}, fmt.Errorf("ratelimit: create entry: %w", res.Error)
			}
			if res.RowsAffected == 1 {
				return l.allowed(1, now), nil
			}
			continue
		}
		if err != nil {
			return Decision{}, fmt.Errorf("ratelimit: load entry: %w", err)
		}

		if now >= e.WindowStart+window {
			ok, err := l.swap(ctx, e, map[string]any{"request_count": 1, "window_start": now})
			if err != nil {
				return Decision{}, err
			}
			if ok {
				return l.allowed(1, now), nil
			}
			continue
		}

		if e.Count >= l.opts.Max {
			return Decision{
				Allowed: false,
				Count:   e.Count,
				Limit:   l.opts.Max,
				ResetAt: time.UnixMilli(e.WindowStart + window),
			}, ErrRejected
		}

		ok, err := l.swap(ctx, e, map[string]any{"request_count": gorm.Expr("request_count + 1")})
		if err != nil {
			return Decision{}, err
		}
		if ok {
			return l.allowed(e.Count+1, e.WindowStart), nil
		}
	}

	// Lost every race; only a burst from this same client gets here.
	return Decision{Allowed: false, Limit: l.opts.Max}, ErrRejected
}

func (l *StoreLimiter) swap(ctx context.Context, old Entry, values map[string]any) (bool, error) {
	res := l.db.WithContext(ctx).Model(&Entry{}).
		Where("client_id = ? AND request_count = ? AND window_start = ?", old.ClientID, old.Count, old.WindowStart).
		Updates(values)
	if res.Error != nil {
		return false, fmt.Errorf("ratelimit: update entry: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (l *StoreLimiter) allowed(count int, windowStart int64) Decision {
	return Decision{
		Allowed: true,
		Count:   count,
		Limit:   l.opts.Max,
		ResetAt: time.UnixMilli(windowStart + l.opts.Window.Milliseconds()),
	}
}

// Sweep deletes entries whose window has elapsed and reports how many went.
func (l *StoreLimiter) Sweep(ctx context.Context) (int64, error) {
	cutoff := l.opts.Now().UnixMilli() - l.opts.Window.Milliseconds()
	res := l.db.WithContext(ctx).Where("window_start <= ?", cutoff).Delete(&Entry{})
	return res.RowsAffected, res.Error
}
