package ratelimit

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrRejected is returned when the client has used up its window.
var ErrRejected = errors.New("ratelimit: too many requests")

const (
	DefaultMax    = 5
	DefaultWindow = 60 * time.Second

	// UnknownClient is the shared bucket for requests without a forwarded address.
	UnknownClient = "unknown"
)

type Decision struct {
	Allowed bool
	Count   int
	Limit   int
	ResetAt time.Time
}

// Limiter counts a request against clientID. An allowed request is counted
// before Check returns; a rejected one is not.
type Limiter interface {
	Check(ctx context.Context, clientID string) (Decision, error)
}

type Options struct {
	Max    int
	Window time.Duration
	Now    func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Max < 1 {
		o.Max = DefaultMax
	}
	if o.Window <= 0 {
		o.Window = DefaultWindow
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// ClientID picks the first address of an X-Forwarded-For value.
// The header is client-controlled, so this is not spoof resistant.
func ClientID(forwardedFor string) string {
	first, _, _ := strings.Cut(forwardedFor, ",")
	first = strings.TrimSpace(first)
	if first == "" {
		return UnknownClient
	}
	return first
}
