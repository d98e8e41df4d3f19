package ratelimit

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(gormsqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&Entry{}))
	return db
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time          { return c.now }
func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newClock() *clock {
	return &clock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func storedCount(t *testing.T, db *gorm.DB, id string) int {
	t.Helper()
	var e Entry
	require.NoError(t, db.Where("client_id = ?", id).Take(&e).Error)
	return e.Count
}

func TestStoreLimiter_WindowLifecycle(t *testing.T) {
	db := openTestDB(t)
	clk := newClock()
	l := NewStoreLimiter(db, Options{Max: 5, Window: time.Minute, Now: clk.Now})
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		d, err := l.Check(ctx, "10.0.0.1")
		require.NoError(t, err, "request %d", i)
		assert.True(t, d.Allowed)
		assert.Equal(t, i, d.Count)
		clk.Advance(5 * time.Second)
	}

	d, err := l.Check(ctx, "10.0.0.1")
	assert.ErrorIs(t, err, ErrRejected)
	assert.False(t, d.Allowed)
	assert.Equal(t, 5, storedCount(t, db, "10.0.0.1"), "rejected request must not be counted")

	_, err = l.Check(ctx, "10.0.0.1")
	assert.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, 5, storedCount(t, db, "10.0.0.1"))

	// window opened at t0; t0+60s starts a fresh one
	clk.Advance(35 * time.Second)
	d, err = l.Check(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Count)
	assert.WithinDuration(t, clk.Now().Add(time.Minute), d.ResetAt, 0)
}

func TestStoreLimiter_ClientsAreIndependent(t *testing.T) {
	db := openTestDB(t)
	clk := newClock()
	l := NewStoreLimiter(db, Options{Max: 2, Window: time.Minute, Now: clk.Now})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := l.Check(ctx, "a")
		require.NoError(t, err)
	}
	_, err := l.Check(ctx, "a")
	assert.ErrorIs(t, err, ErrRejected)

	_, err = l.Check(ctx, "b")
	assert.NoError(t, err)
	_, err = l.Check(ctx, "")
	assert.NoError(t, err)
	assert.Equal(t, 1, storedCount(t, db, UnknownClient))
}

func TestStoreLimiter_ConcurrentChecksNeverOvercount(t *testing.T) {
	db := openTestDB(t)
	clk := newClock()
	l := NewStoreLimiter(db, Options{Max: 5, Window: time.Minute, Now: clk.Now})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Check(context.Background(), "burst"); err == nil {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, allowed, 5)
	assert.GreaterOrEqual(t, allowed, 1)
	assert.Equal(t, allowed, storedCount(t, db, "burst"))
}

func TestStoreLimiter_Sweep(t *testing.T) {
	db := openTestDB(t)
	clk := newClock()
	l := NewStoreLimiter(db, Options{Max: 5, Window: time.Minute, Now: clk.Now})
	ctx := context.Background()

	_, err := l.Check(ctx, "old")
	require.NoError(t, err)
	clk.Advance(45 * time.Second)
	_, err = l.Check(ctx, "fresh")
	require.NoError(t, err)
	clk.Advance(20 * time.Second)

	n, err := l.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var left []Entry
	require.NoError(t, db.Find(&left).Error)
	require.Len(t, left, 1)
	assert.Equal(t, "fresh", left[0].ClientID)
}

func TestClientID(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", UnknownClient},
		{"   ", UnknownClient},
		{"203.0.113.7", "203.0.113.7"},
		{"203.0.113.7, 10.0.0.1, 10.0.0.2", "203.0.113.7"},
		{" 2001:db8::1 ,10.0.0.1", "2001:db8::1"},
		{",10.0.0.1", UnknownClient},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClientID(tt.header), "header %q", tt.header)
	}
}

func TestRedisLimiter(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}

	prefix := fmt.Sprintf("test:rl:%d:", time.Now().UnixNano())
	l := NewRedisLimiter(client, prefix, Options{Max: 3, Window: 2 * time.Second})

	for i := 1; i <= 3; i++ {
		d, err := l.Check(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, i, d.Count)
	}
	_, err := l.Check(ctx, "c1")
	assert.ErrorIs(t, err, ErrRejected)

	got, err := client.Get(ctx, prefix+"c1").Int()
	require.NoError(t, err)
	assert.Equal(t, 3, got, "rejected request must not be counted")

	ttl, err := client.PTTL(ctx, prefix+"c1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
