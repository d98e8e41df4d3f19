package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/folio/internal/common"
	"golang.org/x/time/rate"
)

type keyLimiter struct {
	lim *rate.Limiter
	ts  time.Time
}

// Throttle is an in-process token bucket per client IP. It guards the token
// endpoint against password guessing; chat limits live in ratelimit.
type Throttle struct {
	mu  sync.Mutex
	m   map[string]*keyLimiter
	r   rate.Limit
	b   int
	ttl time.Duration
}

func NewThrottle(r rate.Limit, burst int, ttl time.Duration) *Throttle {
	return &Throttle{m: make(map[string]*keyLimiter), r: r, b: burst, ttl: ttl}
}

func (t *Throttle) get(key string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	kl, ok := t.m[key]
	if ok {
		kl.ts = time.Now()
		return kl.lim
	}
	lim := rate.NewLimiter(t.r, t.b)
	t.m[key] = &keyLimiter{lim: lim, ts: time.Now()}
	return lim
}

// Run evicts idle buckets until ctx is done.
func (t *Throttle) Run(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.evict(time.Now())
		}
	}
}

func (t *Throttle) evict(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, v := range t.m {
		if now.Sub(v.ts) > t.ttl {
			delete(t.m, k)
		}
	}
}

func (t *Throttle) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !t.get(c.ClientIP()).Allow() {
			common.Fail(c, http.StatusTooManyRequests, 42902, "too many attempts, slow down")
			return
		}
		c.Next()
	}
}
