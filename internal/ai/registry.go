package ai

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Model identifiers accepted in chat settings.
const (
	ModelGPT35    = "gpt-3.5-turbo"
	ModelGPT4     = "gpt-4"
	ModelDeepSeek = "deepseek"
	ModelOllama   = "ollama"
)

// DefaultPricing is USD per 1000 tokens, as published when the table was written.
var DefaultPricing = map[string]Pricing{
	ModelGPT35:    {InputPer1K: 0.001, OutputPer1K: 0.002},
	ModelGPT4:     {InputPer1K: 0.03, OutputPer1K: 0.06},
	ModelDeepSeek: {},
	ModelOllama:   {},
}

type Entry struct {
	Model    string
	Provider Provider
	Pricing  Pricing
}

// Registry routes a settings.model value to its provider and price table.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

func normalize(model string) string {
	return strings.ToLower(strings.TrimSpace(model))
}

func (r *Registry) Register(model string, p Provider, pricing Pricing) error {
	model = normalize(model)
	if model == "" {
		return fmt.Errorf("register: empty model id")
	}
	if p == nil {
		return fmt.Errorf("register %s: nil provider", model)
	}
	if pricing.InputPer1K < 0 || pricing.OutputPer1K < 0 {
		return fmt.Errorf("register %s: negative pricing", model)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[model] = Entry{Model: model, Provider: p, Pricing: pricing}
	return nil
}

func (r *Registry) Lookup(model string) (Entry, error) {
	model = normalize(model)
	r.mu.RLock()
	e, ok := r.entries[model]
	r.mu.RUnlock()
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrUnknownModel, model)
	}
	return e, nil
}

func (r *Registry) Has(model string) bool {
	_, err := r.Lookup(model)
	return err == nil
}

// Models lists registered identifiers in sorted order.
func (r *Registry) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for m := range r.entries {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
