package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rightsflow/supervisor-gateway/internal/config"
	"github.com/rightsflow/supervisor-gateway/internal/llm"
	"github.com/rightsflow/supervisor-gateway/internal/metrics"
)

// Summarizer folds evicted turns into a rolling summary.
type Summarizer interface {
	Summarize(ctx context.Context, prior string, evicted []ChatMessage) (string, error)
}

// LLMSummarizer issues one completion call per eviction event.
type LLMSummarizer struct {
	llm     *llm.Client
	prompts *config.PromptTable
}

func NewLLMSummarizer(client *llm.Client, prompts *config.PromptTable) *LLMSummarizer {
	return &LLMSummarizer{llm: client, prompts: prompts}
}

func (s *LLMSummarizer) Summarize(ctx context.Context, prior string, evicted []ChatMessage) (string, error) {
	var b strings.Builder
	if prior != "" {
		fmt.Fprintf(&b, "Previous summary:\n%s\n\n", prior)
	}
	b.WriteString("Turns to fold in:\n")
	for _, m := range evicted {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}

	return s.llm.Complete(ctx, llm.Request{
		Component:   "memory_summarizer",
		System:      s.prompts.Get().SummarizerSystem,
		Messages:    []llm.Message{{Role: "user", Content: b.String()}},
		MaxTokens:   500,
		Temperature: 0,
	})
}

// Manager owns the session memory lifecycle: read-through with an empty
// default, append with sliding-window eviction, and best-effort writes. Read
// and write failures are logged and swallowed, never propagated.
type Manager struct {
	store           Store
	summarizer      Summarizer
	window          int
	ttl             time.Duration
	retainOnFailure bool
	log             *zap.Logger
}

func NewManager(store Store, summarizer Summarizer, window int, ttl time.Duration, retainOnFailure bool, logger *zap.Logger) *Manager {
	if window <= 0 {
		window = 10
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Manager{
		store:           store,
		summarizer:      summarizer,
		window:          window,
		ttl:             ttl,
		retainOnFailure: retainOnFailure,
		log:             logger,
	}
}

// Get returns the stored memory, or a fresh empty record on a miss or any
// read failure.
func (m *Manager) Get(ctx context.Context, sessionID string) *Memory {
	mem, err := m.store.Get(ctx, sessionID)
	switch {
	case err == nil:
		metrics.MemoryReads.WithLabelValues("hit").Inc()
		return mem
	case err == ErrNotFound:
		metrics.MemoryReads.WithLabelValues("miss").Inc()
	default:
		m.log.Warn("Session memory read failed, treating as miss",
			zap.Error(err),
			zap.String("session_id", sessionID),
		)
		metrics.MemoryReads.WithLabelValues("error").Inc()
	}
	return &Memory{SessionID: sessionID, Messages: []ChatMessage{}}
}

// Append adds the optional user and assistant turns, evicts past the window,
// and writes the record back with a refreshed TTL. When the message count
// exceeds the window, the oldest messages are folded into the rolling summary
// and the retained tail is exactly half the window.
func (m *Manager) Append(ctx context.Context, mem *Memory, userTurn, assistantTurn string) {
	if mem == nil {
		return
	}
	if userTurn != "" {
		mem.Messages = append(mem.Messages, ChatMessage{Role: "user", Content: userTurn})
	}
	if assistantTurn != "" {
		mem.Messages = append(mem.Messages, ChatMessage{Role: "assistant", Content: assistantTurn})
	}

	if len(mem.Messages) > m.window {
		m.evict(ctx, mem)
	}

	mem.TTL = time.Now().Add(m.ttl).Unix()
	if err := m.store.Put(ctx, mem, m.ttl); err != nil {
		m.log.Warn("Session memory write failed",
			zap.Error(err),
			zap.String("session_id", mem.SessionID),
		)
		metrics.MemoryWrites.WithLabelValues("error").Inc()
		return
	}
	metrics.MemoryWrites.WithLabelValues("ok").Inc()
}

func (m *Manager) evict(ctx context.Context, mem *Memory) {
	keep := m.window / 2
	cut := len(mem.Messages) - keep
	evicted := mem.Messages[:cut]

	summary, err := m.summarizer.Summarize(ctx, mem.Summary, evicted)
	if err != nil {
		metrics.MemorySummaryFailures.Inc()
		if m.retainOnFailure {
			// Fail-closed: keep the turns so no context is lost; eviction
			// retries on the next append.
			m.log.Warn("Rolling summary failed, retaining evicted turns",
				zap.Error(err),
				zap.String("session_id", mem.SessionID),
			)
			return
		}
		m.log.Warn("Rolling summary failed, dropping evicted turns with prior summary kept",
			zap.Error(err),
			zap.String("session_id", mem.SessionID),
			zap.Int("dropped", len(evicted)),
		)
	} else {
		mem.Summary = strings.TrimSpace(summary)
	}

	mem.Messages = append([]ChatMessage{}, mem.Messages[cut:]...)
	metrics.MemoryEvictions.Inc()
}
