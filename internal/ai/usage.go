package ai

import (
	"strings"
	"unicode/utf8"
)

type Pricing struct {
	InputPer1K  float64
	OutputPer1K float64
}

// Cost is USD for the given token counts; never negative.
func (p Pricing) Cost(inputTokens, outputTokens int) float64 {
	if inputTokens < 0 {
		inputTokens = 0
	}
	if outputTokens < 0 {
		outputTokens = 0
	}
	c := (float64(inputTokens)*p.InputPer1K + float64(outputTokens)*p.OutputPer1K) / 1000
	if c < 0 {
		return 0
	}
	return c
}

// EstimateTokens approximates a tokenizer as ceil(characters / 4).
// Figures derived from it are estimates, not billing-grade.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}

// EstimateMessages estimates the prompt size of a whole conversation.
func EstimateMessages(messages []Message) int {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		parts = append(parts, m.Content)
	}
	return EstimateTokens(strings.Join(parts, " "))
}
