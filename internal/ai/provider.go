package ai

import (
	"context"
	"errors"
)

var (
	// ErrMisconfigured is fatal for the request: missing API key, nil client, empty model.
	ErrMisconfigured = errors.New("ai: provider misconfigured")
	// ErrUnavailable covers network failures and non-2xx answers; these are retried.
	ErrUnavailable = errors.New("ai: provider unavailable")
	// ErrInvalidResponse means the provider answered 2xx with a body we cannot use.
	ErrInvalidResponse = errors.New("ai: invalid provider response")
	ErrUnknownModel    = errors.New("ai: unknown model")
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ValidRole reports whether r is one of system/user/assistant.
func ValidRole(r string) bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Options struct {
	Temperature float64
	MaxTokens   int
}

// Provider is a single completion backend bound to one upstream model.
type Provider interface {
	Chat(ctx context.Context, messages []Message, opts Options) (string, error)
}
