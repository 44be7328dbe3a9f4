// Package clarify produces a clarifying question for ambiguous requests.
package clarify

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/rightsflow/supervisor-gateway/internal/config"
	"github.com/rightsflow/supervisor-gateway/internal/llm"
)

// FallbackQuestion is returned whenever the model call fails.
const FallbackQuestion = "Could you clarify whether you want to search for a musical work " +
	"or ask a question about APRA AMCOS?"

type Clarifier struct {
	llm     *llm.Client
	prompts *config.PromptTable
	log     *zap.Logger
}

func NewClarifier(client *llm.Client, prompts *config.PromptTable, logger *zap.Logger) *Clarifier {
	return &Clarifier{llm: client, prompts: prompts, log: logger}
}

// Question never fails; model errors degrade to the fixed fallback text.
func (c *Clarifier) Question(ctx context.Context, text string) string {
	out, err := c.llm.Complete(ctx, llm.Request{
		Component:   "clarifier",
		System:      c.prompts.Get().ClarifierSystem,
		Messages:    []llm.Message{{Role: "user", Content: text}},
		MaxTokens:   120,
		Temperature: 0.3,
	})
	if err != nil {
		c.log.Warn("Clarifier call failed, using fallback question", zap.Error(err))
		return FallbackQuestion
	}
	if q := strings.TrimSpace(out); q != "" {
		return q
	}
	return FallbackQuestion
}
