package gateway

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/suPer8Hu/folio/internal/ai"
	"github.com/suPer8Hu/folio/internal/auth"
	"github.com/suPer8Hu/folio/internal/command"
	"github.com/suPer8Hu/folio/internal/content"
	"github.com/suPer8Hu/folio/internal/metrics"
	"github.com/suPer8Hu/folio/internal/ratelimit"
)

const (
	ModeApply    = "apply"
	ModeDelegate = "delegate"

	DefaultSystemPrompt = "You are the assistant on a personal portfolio website. " +
		"Answer questions about the site owner's projects, skills and experience. " +
		"Politely decline requests unrelated to the portfolio."
)

type ChatMessage struct {
	Role       string   `json:"role"`
	Content    string   `json:"content"`
	Timestamp  int64    `json:"timestamp"`
	TokenCount *int     `json:"tokenCount,omitempty"`
	Cost       *float64 `json:"cost,omitempty"`
	Model      string   `json:"model,omitempty"`
}

type Settings struct {
	Model         string  `json:"model"`
	Temperature   float64 `json:"temperature"`
	MaxTokens     int     `json:"maxTokens"`
	Streaming     bool    `json:"streaming"`
	ContextLength int     `json:"contextLength"`
}

type Request struct {
	Message  string
	Context  []ChatMessage
	Settings Settings
	// Authorization is the raw header value, possibly empty.
	Authorization string
	ClientID      string
}

// Response is exactly one of a completion or an admin command outcome.
type Response struct {
	Message    string  `json:"message,omitempty"`
	TokenCount int     `json:"tokenCount,omitempty"`
	Cost       float64 `json:"cost"`
	Model      string  `json:"model,omitempty"`
	Timestamp  int64   `json:"timestamp"`

	AdminCommand *command.Envelope `json:"adminCommand,omitempty"`
	Result       *content.Result   `json:"result,omitempty"`
}

type Verifier interface {
	Verify(token string) (*auth.Claims, error)
}

type Completer interface {
	Complete(ctx context.Context, model string, messages []ai.Message, opts ai.Options) (ai.Completion, error)
}

type Applier interface {
	Apply(ctx context.Context, actor string, cmd command.Command) (*content.Result, error)
}

type Deps struct {
	Limiter      ratelimit.Limiter
	Tokens       Verifier
	Completer    Completer
	Mutator      Applier // unused in delegate mode
	Metrics      *metrics.Metrics
	SystemPrompt string
	Mode         string
	Now          func() time.Time
}

type Gateway struct {
	limiter   ratelimit.Limiter
	tokens    Verifier
	completer Completer
	mutator   Applier
	metrics   *metrics.Metrics
	prompt    string
	mode      string
	now       func() time.Time
}

func New(d Deps) *Gateway {
	g := &Gateway{
		limiter:   d.Limiter,
		tokens:    d.Tokens,
		completer: d.Completer,
		mutator:   d.Mutator,
		metrics:   d.Metrics,
		prompt:    strings.TrimSpace(d.SystemPrompt),
		mode:      strings.ToLower(strings.TrimSpace(d.Mode)),
		now:       d.Now,
	}
	if g.prompt == "" {
		g.prompt = DefaultSystemPrompt
	}
	if g.mode != ModeDelegate {
		g.mode = ModeApply
	}
	if g.now == nil {
		g.now = time.Now
	}
	return g
}

// BearerToken extracts the credential from an Authorization header. ok is
// true whenever the Bearer scheme is present, even with an empty token.
func BearerToken(header string) (string, bool) {
	const scheme = "Bearer "
	if len(header) < len(scheme) || !strings.EqualFold(header[:len(scheme)], scheme) {
		return "", false
	}
	return strings.TrimSpace(header[len(scheme):]), true
}

func (g *Gateway) Handle(ctx context.Context, req Request) (*Response, error) {
	if err := g.admit(ctx, req.ClientID); err != nil {
		return nil, err
	}

	if token, ok := BearerToken(req.Authorization); ok && strings.HasPrefix(req.Message, command.Prefix) {
		resp, err := g.handleCommand(ctx, token, req)
		if !errors.Is(err, command.ErrNotACommand) {
			return resp, err
		}
	}
	return g.complete(ctx, req)
}

func (g *Gateway) admit(ctx context.Context, clientID string) error {
	if g.limiter == nil {
		return nil
	}
	if clientID == "" {
		clientID = ratelimit.UnknownClient
	}
	_, err := g.limiter.Check(ctx, clientID)
	if errors.Is(err, ratelimit.ErrRejected) {
		g.metrics.RateLimited()
		return err
	}
	if err != nil {
		// fail open: a store outage must not take chat down
		log.Error().Err(err).Str("client_id", clientID).Msg("rate limit check failed")
	}
	return nil
}

// handleCommand returns command.ErrNotACommand when the caller should fall
// through to a normal completion.
func (g *Gateway) handleCommand(ctx context.Context, token string, req Request) (*Response, error) {
	if g.tokens == nil {
		return nil, auth.ErrMisconfigured
	}
	claims, err := g.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	cmd, err := command.Parse(strings.TrimPrefix(req.Message, command.Prefix))
	if err != nil {
		return nil, err
	}

	now := g.now()
	env, err := command.Encode(cmd, now)
	if err != nil {
		return nil, err
	}
	resp := &Response{AdminCommand: &env, Timestamp: responseTime(now, req.Context)}
	if g.mode == ModeDelegate {
		return resp, nil
	}

	if g.mutator == nil {
		return nil, errors.New("gateway: apply mode without a content mutator")
	}
	result, err := g.mutator.Apply(ctx, claims.Subject, cmd)
	g.metrics.AdminCommand(string(cmd.Kind()), err == nil)
	if err != nil {
		return nil, err
	}
	resp.Result = result
	return resp, nil
}

func (g *Gateway) complete(ctx context.Context, req Request) (*Response, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	model := strings.ToLower(strings.TrimSpace(req.Settings.Model))
	messages := g.assemble(req)
	c, err := g.completer.Complete(ctx, model, messages, ai.Options{
		Temperature: req.Settings.Temperature,
		MaxTokens:   req.Settings.MaxTokens,
	})
	if err != nil {
		if !errors.Is(err, ai.ErrUnknownModel) {
			g.metrics.CompletionFailed(model)
		}
		return nil, err
	}
	g.metrics.ObserveCompletion(c.Model, c.InputTokens, c.OutputTokens, c.Cost)

	return &Response{
		Message:    c.Text,
		TokenCount: c.InputTokens + c.OutputTokens,
		Cost:       c.Cost,
		Model:      c.Model,
		Timestamp:  responseTime(g.now(), req.Context),
	}, nil
}

// assemble builds system prompt, trailing context, then the current message.
// Client supplied system turns are dropped; the prompt is server owned.
func (g *Gateway) assemble(req Request) []ai.Message {
	turns := make([]ai.Message, 0, len(req.Context))
	for _, m := range req.Context {
		if m.Role == ai.RoleSystem {
			continue
		}
		turns = append(turns, ai.Message{Role: m.Role, Content: m.Content})
	}
	if n := req.Settings.ContextLength; n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}

	out := make([]ai.Message, 0, len(turns)+2)
	out = append(out, ai.Message{Role: ai.RoleSystem, Content: g.prompt})
	out = append(out, turns...)
	out = append(out, ai.Message{Role: ai.RoleUser, Content: req.Message})
	return out
}

func validate(req Request) error {
	if strings.TrimSpace(req.Message) == "" {
		return invalidRequest("message is required")
	}
	s := req.Settings
	if strings.TrimSpace(s.Model) == "" {
		return invalidRequest("settings.model is required")
	}
	if math.IsNaN(s.Temperature) || s.Temperature < 0 || s.Temperature > 1 {
		return invalidRequest("settings.temperature must be between 0 and 1")
	}
	if s.MaxTokens <= 0 {
		return invalidRequest("settings.maxTokens must be positive")
	}
	if s.ContextLength < 0 {
		return invalidRequest("settings.contextLength must not be negative")
	}
	for _, m := range req.Context {
		if !ai.ValidRole(m.Role) {
			return invalidRequest("context role must be system, user or assistant")
		}
	}
	return nil
}

// responseTime keeps the conversation's timestamps non-decreasing even when
// the client clock runs ahead of ours.
func responseTime(now time.Time, history []ChatMessage) int64 {
	ts := now.UnixMilli()
	for _, m := range history {
		if m.Timestamp > ts {
			ts = m.Timestamp
		}
	}
	return ts
}
