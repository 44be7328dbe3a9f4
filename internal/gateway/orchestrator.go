// Package gateway composes the request pipeline: intent classification,
// query rewriting, agent delegation and optional reranking.
package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rightsflow/supervisor-gateway/internal/agentruntime"
	"github.com/rightsflow/supervisor-gateway/internal/intent"
	"github.com/rightsflow/supervisor-gateway/internal/memory"
	"github.com/rightsflow/supervisor-gateway/internal/metrics"
	"github.com/rightsflow/supervisor-gateway/internal/rerank"
	"github.com/rightsflow/supervisor-gateway/internal/rewrite"
	"github.com/rightsflow/supervisor-gateway/internal/trace"
)

// Request is the caller-facing input shape.
type Request struct {
	Prompt       string `json:"prompt"`
	SessionID    string `json:"sessionId,omitempty"`
	EnableRerank *bool  `json:"enableRerank,omitempty"`
	RerankTopK   int    `json:"rerankTopK,omitempty"`
	IncludeTrace bool   `json:"includeTrace,omitempty"`
}

// IntentPayload mirrors the classifier result in the response.
type IntentPayload struct {
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

type RewritePayload struct {
	Original  string `json:"original"`
	Rewritten string `json:"rewritten"`
}

type RerankedPayload struct {
	Results []rerank.ResultItem `json:"results"`
}

// Response is the caller-facing output shape. Reranked is omitted entirely
// when reranking was disabled, produced nothing, or failed.
type Response struct {
	SessionID    string                  `json:"sessionId"`
	Intent       IntentPayload           `json:"intent"`
	QueryRewrite RewritePayload          `json:"queryRewrite"`
	Completion   string                  `json:"completion"`
	Reranked     *RerankedPayload        `json:"reranked,omitempty"`
	Timeline     []trace.TimelineEntry   `json:"timeline,omitempty"`
	TraceSummary *trace.AggregateSummary `json:"traceSummary,omitempty"`
}

// Collaborator interfaces; concrete implementations are injected once at
// process start so every request shares the same clients.
type (
	Classifier interface {
		Classify(ctx context.Context, text string) intent.Result
	}
	Rewriter interface {
		Rewrite(ctx context.Context, text string, it intent.Intent) rewrite.Result
	}
	Clarifier interface {
		Question(ctx context.Context, text string) string
	}
	Invoker interface {
		Invoke(ctx context.Context, agentID, aliasID, sessionID, prompt string, opts agentruntime.Options) (*agentruntime.InvocationResult, error)
	}
	Reranker interface {
		Rerank(ctx context.Context, query string, items []rerank.Item, topK int) ([]rerank.ResultItem, error)
	}
	MemoryManager interface {
		Get(ctx context.Context, sessionID string) *memory.Memory
		Append(ctx context.Context, mem *memory.Memory, userTurn, assistantTurn string)
	}
)

// Options fix the pipeline's static configuration.
type Options struct {
	AgentID          string
	AliasID          string
	DefaultTopK      int
	TraceEnabled     bool
	ClarifyAmbiguous bool
}

type Orchestrator struct {
	classifier Classifier
	rewriter   Rewriter
	clarifier  Clarifier
	invoker    Invoker
	reranker   Reranker
	memory     MemoryManager
	opts       Options
	log        *zap.Logger
}

func NewOrchestrator(
	classifier Classifier,
	rewriter Rewriter,
	clarifier Clarifier,
	invoker Invoker,
	reranker Reranker,
	memoryMgr MemoryManager,
	opts Options,
	logger *zap.Logger,
) *Orchestrator {
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = 5
	}
	return &Orchestrator{
		classifier: classifier,
		rewriter:   rewriter,
		clarifier:  clarifier,
		invoker:    invoker,
		reranker:   reranker,
		memory:     memoryMgr,
		opts:       opts,
		log:        logger,
	}
}

// Handle runs one request through the pipeline. Stages are strictly
// sequential; only the rerank stage degrades gracefully, every other stage
// failure aborts the request.
func (o *Orchestrator) Handle(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("prompt is required")
	}

	start := time.Now()
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	stageStart := time.Now()
	ir := o.classifier.Classify(ctx, req.Prompt)
	metrics.StageDuration.WithLabelValues("classify").Observe(time.Since(stageStart).Seconds())

	resp := &Response{
		SessionID: sessionID,
		Intent: IntentPayload{
			Type:       string(ir.Intent),
			Confidence: ir.Confidence,
			Reasoning:  ir.Reasoning,
		},
	}

	if o.opts.ClarifyAmbiguous && ir.Intent == intent.Ambiguous {
		question := o.clarifier.Question(ctx, req.Prompt)
		resp.QueryRewrite = RewritePayload{Original: req.Prompt, Rewritten: req.Prompt}
		resp.Completion = question

		mem := o.memory.Get(ctx, sessionID)
		o.memory.Append(ctx, mem, req.Prompt, question)

		metrics.GatewayRequestDuration.Observe(time.Since(start).Seconds())
		return resp, nil
	}

	stageStart = time.Now()
	rw := o.rewriter.Rewrite(ctx, req.Prompt, ir.Intent)
	metrics.StageDuration.WithLabelValues("rewrite").Observe(time.Since(stageStart).Seconds())
	resp.QueryRewrite = RewritePayload{Original: rw.Original, Rewritten: rw.Rewritten}

	mem := o.memory.Get(ctx, sessionID)
	prompt := promptWithContext(mem, rw.Rewritten)

	stageStart = time.Now()
	inv, err := o.invoker.Invoke(ctx, o.opts.AgentID, o.opts.AliasID, sessionID, prompt, agentruntime.Options{
		EnableTrace: o.opts.TraceEnabled || req.IncludeTrace,
	})
	metrics.StageDuration.WithLabelValues("invoke").Observe(time.Since(stageStart).Seconds())
	if err != nil {
		return nil, fmt.Errorf("invoke agent: %w", err)
	}
	resp.Completion = inv.Completion

	timeline := trace.BuildTimeline(inv.Traces)

	if rerankEnabled(req) && inv.Completion != "" {
		stageStart = time.Now()
		resp.Reranked = o.tryRerank(ctx, rw.Rewritten, timeline, req.RerankTopK)
		metrics.StageDuration.WithLabelValues("rerank").Observe(time.Since(stageStart).Seconds())
	}

	if req.IncludeTrace {
		summary := trace.Summarize(timeline, inv.Completion)
		resp.Timeline = timeline
		resp.TraceSummary = &summary
	}

	o.memory.Append(ctx, mem, req.Prompt, inv.Completion)

	metrics.GatewayRequestDuration.Observe(time.Since(start).Seconds())
	return resp, nil
}

func rerankEnabled(req Request) bool {
	return req.EnableRerank == nil || *req.EnableRerank
}

// tryRerank is the pipeline's only graceful-degradation path: any rerank
// failure is logged and the response simply omits the reranked field.
func (o *Orchestrator) tryRerank(ctx context.Context, query string, timeline []trace.TimelineEntry, topK int) *RerankedPayload {
	if topK <= 0 {
		topK = o.opts.DefaultTopK
	}

	items := candidatesFromTimeline(timeline)
	results, err := o.reranker.Rerank(ctx, query, items, topK)
	if err != nil {
		o.log.Warn("Rerank failed, returning response without reranked results", zap.Error(err))
		metrics.RerankDegraded.Inc()
		return nil
	}
	return &RerankedPayload{Results: results}
}

// candidatesFromTimeline collects the action-group and collaborator outputs
// in timeline order as rerank candidates.
func candidatesFromTimeline(timeline []trace.TimelineEntry) []rerank.Item {
	var items []rerank.Item
	add := func(text string) {
		items = append(items, rerank.Item{
			ID:   fmt.Sprintf("result-%d", len(items)),
			Text: text,
		})
	}
	for _, entry := range timeline {
		for _, out := range entry.ActionOutputs {
			add(out)
		}
		for _, out := range entry.CollaboratorOutputs {
			add(out)
		}
	}
	return items
}

// promptWithContext prefixes the rewritten query with the rolling summary and
// retained turns so the agent sees prior context.
func promptWithContext(mem *memory.Memory, rewritten string) string {
	if mem == nil || (mem.Summary == "" && len(mem.Messages) == 0) {
		return rewritten
	}

	var b strings.Builder
	if mem.Summary != "" {
		fmt.Fprintf(&b, "Conversation summary:\n%s\n\n", mem.Summary)
	}
	if len(mem.Messages) > 0 {
		b.WriteString("Recent turns:\n")
		for _, m := range mem.Messages {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Current request: %s", rewritten)
	return b.String()
}
