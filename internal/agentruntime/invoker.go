// Package agentruntime invokes the externally hosted multi-agent service and
// drains its event stream into a single invocation result.
package agentruntime

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rightsflow/supervisor-gateway/internal/metrics"
)

// Options control a single invocation.
type Options struct {
	EnableTrace bool
}

// InvocationResult collects everything the stream delivered: the concatenated
// completion text plus the trace, attribution, return-control and file event
// side channels, each in arrival order.
type InvocationResult struct {
	Completion     string
	SessionID      string
	Traces         []map[string]any
	Attributions   []map[string]any
	ReturnControls []map[string]any
	FileEvents     []map[string]any
}

// streamEvent is one server-sent event. Every field is optional; an event may
// carry any combination of them.
type streamEvent struct {
	Chunk *struct {
		Bytes []byte `json:"bytes"`
	} `json:"chunk"`
	Attribution   map[string]any `json:"attribution"`
	Trace         map[string]any `json:"trace"`
	ReturnControl map[string]any `json:"returnControl"`
	Files         map[string]any `json:"files"`
}

type Invoker struct {
	base string
	http *http.Client
	log  *zap.Logger
}

func NewInvoker(baseURL string, timeout time.Duration, logger *zap.Logger) *Invoker {
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Invoker{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
		log:  logger,
	}
}

// Invoke sends the prompt to the agent runtime and consumes the response
// stream strictly in arrival order. No chunk is dropped or reordered; events
// without a recognizable payload contribute nothing but never abort the
// stream.
func (inv *Invoker) Invoke(ctx context.Context, agentID, aliasID, sessionID, prompt string, opts Options) (*InvocationResult, error) {
	start := time.Now()

	body, err := json.Marshal(map[string]any{
		"inputText":   prompt,
		"enableTrace": opts.EnableTrace,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal invocation request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/agents/%s/aliases/%s/sessions/%s/invoke",
		inv.base,
		url.PathEscape(agentID),
		url.PathEscape(aliasID),
		url.PathEscape(sessionID),
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create invocation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := inv.http.Do(req)
	if err != nil {
		metrics.AgentInvocations.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("agent invocation failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.AgentInvocations.WithLabelValues("error").Inc()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("agent runtime returned %d: %s", resp.StatusCode, string(snippet))
	}

	result, err := inv.drain(resp.Body, sessionID)
	if err != nil {
		metrics.AgentInvocations.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.AgentInvocations.WithLabelValues("ok").Inc()
	metrics.AgentInvocationDuration.Observe(time.Since(start).Seconds())
	inv.log.Debug("Agent invocation complete",
		zap.String("session_id", sessionID),
		zap.Int("completion_bytes", len(result.Completion)),
		zap.Int("trace_events", len(result.Traces)),
	)
	return result, nil
}

func (inv *Invoker) drain(r io.Reader, sessionID string) (*InvocationResult, error) {
	result := &InvocationResult{SessionID: sessionID}
	var completion strings.Builder

	scanner := bufio.NewScanner(r)
	// Trace events can be large; allow lines up to 1 MiB.
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		var ev streamEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			// Unrecognized event shape: skip, keep draining.
			inv.log.Debug("Skipping undecodable stream event", zap.Error(err))
			continue
		}
		metrics.AgentStreamEvents.Inc()

		if ev.Chunk != nil && len(ev.Chunk.Bytes) > 0 {
			completion.Write(ev.Chunk.Bytes)
		}
		if ev.Attribution != nil {
			result.Attributions = append(result.Attributions, ev.Attribution)
		}
		if ev.Trace != nil {
			result.Traces = append(result.Traces, ev.Trace)
		}
		if ev.ReturnControl != nil {
			result.ReturnControls = append(result.ReturnControls, ev.ReturnControl)
		}
		if ev.Files != nil {
			result.FileEvents = append(result.FileEvents, ev.Files)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read agent stream: %w", err)
	}

	result.Completion = completion.String()
	return result, nil
}
