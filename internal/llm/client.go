// Package llm is a thin HTTP client for the managed text completion service.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rightsflow/supervisor-gateway/internal/metrics"
)

// Message is one chat turn sent to the completion service.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request describes a single completion call. Component is a short caller tag
// used for metrics and the X-Component header, not part of the model input.
type Request struct {
	Component   string
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

type wireRequest struct {
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

type wireResponse struct {
	Text string `json:"text"`
}

// Client calls the completion service. One Client is constructed at process
// start and shared by every model-backed component.
type Client struct {
	base string
	http *http.Client
	log  *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
		log:  logger,
	}
}

// Complete issues one completion call and returns the trimmed response text.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	component := req.Component
	if component == "" {
		component = "unknown"
	}
	start := time.Now()

	body, err := json.Marshal(wireRequest{
		System:      req.System,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/complete", c.base)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Component", component)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		metrics.LLMCalls.WithLabelValues(component, "error").Inc()
		return "", fmt.Errorf("completion call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.LLMCalls.WithLabelValues(component, "error").Inc()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("completion service returned %d: %s", resp.StatusCode, string(snippet))
	}

	var wr wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		metrics.LLMCalls.WithLabelValues(component, "error").Inc()
		return "", fmt.Errorf("decode completion response: %w", err)
	}

	text := strings.TrimSpace(wr.Text)
	if text == "" {
		metrics.LLMCalls.WithLabelValues(component, "empty").Inc()
		return "", fmt.Errorf("completion service returned empty text")
	}

	metrics.LLMCalls.WithLabelValues(component, "ok").Inc()
	metrics.LLMCallDuration.WithLabelValues(component).Observe(time.Since(start).Seconds())
	return text, nil
}
