// Package rewrite optimizes a raw user request for the downstream target the
// detected intent routes to (works search index vs knowledge base).
package rewrite

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/rightsflow/supervisor-gateway/internal/config"
	"github.com/rightsflow/supervisor-gateway/internal/intent"
	"github.com/rightsflow/supervisor-gateway/internal/llm"
)

// Result always carries a non-empty Rewritten: on any model failure it equals
// Original.
type Result struct {
	Original  string        `json:"original"`
	Rewritten string        `json:"rewritten"`
	Intent    intent.Intent `json:"intent"`
}

// Rewriter issues one completion call with an intent-specific system prompt.
// Like the other model-backed components it self-heals: failures fall back to
// the original text rather than aborting the request.
type Rewriter struct {
	llm     *llm.Client
	prompts *config.PromptTable
	log     *zap.Logger
}

func NewRewriter(client *llm.Client, prompts *config.PromptTable, logger *zap.Logger) *Rewriter {
	return &Rewriter{llm: client, prompts: prompts, log: logger}
}

func (r *Rewriter) Rewrite(ctx context.Context, text string, it intent.Intent) Result {
	res := Result{Original: text, Rewritten: text, Intent: it}

	out, err := r.llm.Complete(ctx, llm.Request{
		Component:   "query_rewriter",
		System:      r.prompts.RewriteFor(string(it)),
		Messages:    []llm.Message{{Role: "user", Content: text}},
		MaxTokens:   300,
		Temperature: 0,
	})
	if err != nil {
		r.log.Warn("Query rewrite failed, using original text",
			zap.Error(err),
			zap.String("intent", string(it)),
		)
		return res
	}

	if rewritten := strings.TrimSpace(out); rewritten != "" {
		res.Rewritten = rewritten
	}
	return res
}
