package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rightsflow/supervisor-gateway/internal/config"
	"github.com/rightsflow/supervisor-gateway/internal/llm"
	"github.com/rightsflow/supervisor-gateway/internal/metrics"
)

// LLMClassifier delegates classification to a single completion call with a
// JSON-constrained prompt. It never returns an error: any call or parse
// failure falls back to OUT_OF_SCOPE with zero confidence and the failure
// captured as reasoning.
type LLMClassifier struct {
	llm     *llm.Client
	prompts *config.PromptTable
	log     *zap.Logger
}

func NewLLMClassifier(client *llm.Client, prompts *config.PromptTable, logger *zap.Logger) *LLMClassifier {
	return &LLMClassifier{llm: client, prompts: prompts, log: logger}
}

func (c *LLMClassifier) Classify(ctx context.Context, text string) Result {
	out, err := c.llm.Complete(ctx, llm.Request{
		Component:   "intent_classifier",
		System:      c.prompts.Get().ClassifierSystem,
		Messages:    []llm.Message{{Role: "user", Content: text}},
		MaxTokens:   200,
		Temperature: 0,
	})
	if err != nil {
		c.log.Warn("Intent classification call failed, falling back to out-of-scope", zap.Error(err))
		return fallback(fmt.Sprintf("classification call failed: %v", err))
	}

	var parsed Result
	if err := json.Unmarshal([]byte(stripFences(out)), &parsed); err != nil {
		c.log.Warn("Intent classification returned malformed JSON",
			zap.Error(err),
			zap.String("output", out),
		)
		return fallback(fmt.Sprintf("malformed classifier output: %v", err))
	}

	if !parsed.Intent.Valid() {
		return fallback(fmt.Sprintf("unknown intent category %q", parsed.Intent))
	}
	if parsed.Confidence < 0 {
		parsed.Confidence = 0
	}
	if parsed.Confidence > 1 {
		parsed.Confidence = 1
	}

	metrics.IntentClassified.WithLabelValues(string(parsed.Intent), "llm").Inc()
	return parsed
}

func fallback(reason string) Result {
	metrics.IntentClassified.WithLabelValues(string(OutOfScope), "llm_fallback").Inc()
	return Result{Intent: OutOfScope, Confidence: 0, Reasoning: reason}
}

// stripFences removes a markdown code fence if the model wrapped its JSON in one.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
