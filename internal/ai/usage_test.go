package ai

import (
	"math"
	"testing"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{"héllo wörld", 3}, // 11 characters, not bytes
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.text); got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestPricingCost_NonNegativeAndZeroForFreeModels(t *testing.T) {
	counts := [][2]int{{0, 0}, {1, 1}, {1000, 0}, {0, 1000}, {123456, 654321}, {-5, -7}}

	for model, p := range DefaultPricing {
		for _, c := range counts {
			got := p.Cost(c[0], c[1])
			if got < 0 {
				t.Errorf("%s Cost(%d,%d) = %v, want >= 0", model, c[0], c[1], got)
			}
			if (model == ModelDeepSeek || model == ModelOllama) && got != 0 {
				t.Errorf("%s Cost(%d,%d) = %v, want 0", model, c[0], c[1], got)
			}
		}
	}

	if got := DefaultPricing[ModelGPT35].Cost(1000, 1000); math.Abs(got-0.003) > 1e-12 {
		t.Errorf("gpt-3.5 Cost(1000,1000) = %v, want 0.003", got)
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(" DeepSeek ", &scriptedProvider{}, Pricing{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register(ModelGPT4, &scriptedProvider{}, Pricing{InputPer1K: -1}); err == nil {
		t.Fatal("negative pricing should be rejected")
	}
	if err := reg.Register(ModelGPT4, nil, Pricing{}); err == nil {
		t.Fatal("nil provider should be rejected")
	}
	if !reg.Has("deepseek") {
		t.Fatal("lookup should be case and space insensitive")
	}
	if got := reg.Models(); len(got) != 1 || got[0] != ModelDeepSeek {
		t.Fatalf("Models() = %v", got)
	}
}
