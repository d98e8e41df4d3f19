package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

type Completion struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
	Cost         float64
	Attempts     int
}

// Adapter is the single entry point for completions: model routing, bounded
// retries, per-attempt timeouts and usage accounting.
type Adapter struct {
	registry *Registry
	retry    RetryPolicy
	timeout  time.Duration
}

func NewAdapter(registry *Registry, retry RetryPolicy, attemptTimeout time.Duration) *Adapter {
	if attemptTimeout <= 0 {
		attemptTimeout = 30 * time.Second
	}
	return &Adapter{registry: registry, retry: retry, timeout: attemptTimeout}
}

func (a *Adapter) Complete(ctx context.Context, model string, messages []Message, opts Options) (Completion, error) {
	entry, err := a.registry.Lookup(model)
	if err != nil {
		return Completion{}, err
	}

	var (
		reply    string
		lastErr  error
		attempts int
	)
	maxAttempts := a.retry.attempts()
	for attempts = 1; attempts <= maxAttempts; attempts++ {
		reply, lastErr = a.attempt(ctx, entry.Provider, messages, opts)
		if lastErr == nil {
			break
		}
		if !errors.Is(lastErr, ErrUnavailable) {
			return Completion{}, lastErr
		}
		if ctx.Err() != nil {
			return Completion{}, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		}

		log.Warn().Err(lastErr).
			Str("model", entry.Model).
			Int("attempt", attempts).
			Int("max_attempts", maxAttempts).
			Msg("provider attempt failed")

		if attempts == maxAttempts {
			break
		}
		if err := a.retry.wait(ctx); err != nil {
			return Completion{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	if lastErr != nil {
		return Completion{}, fmt.Errorf("after %d attempts: %w", maxAttempts, lastErr)
	}

	in := EstimateMessages(messages)
	out := EstimateTokens(reply)
	return Completion{
		Text:         reply,
		Model:        entry.Model,
		InputTokens:  in,
		OutputTokens: out,
		Cost:         entry.Pricing.Cost(in, out),
		Attempts:     attempts,
	}, nil
}

func (a *Adapter) attempt(ctx context.Context, p Provider, messages []Message, opts Options) (string, error) {
	actx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	reply, err := p.Chat(actx, messages, opts)
	if err != nil && errors.Is(actx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrUnavailable) {
		// a provider that surfaced the deadline unwrapped still counts as transient
		err = fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return reply, err
}
