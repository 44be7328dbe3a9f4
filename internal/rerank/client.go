// Package rerank is a minimal HTTP client for the external reranking service.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rightsflow/supervisor-gateway/internal/metrics"
)

// Item is one candidate document sent for reranking.
type Item struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ResultItem is a candidate annotated with the relevance score the service
// assigned and the index of the source item in the input slice.
type ResultItem struct {
	ID             string         `json:"id"`
	Text           string         `json:"text"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	RelevanceScore float64        `json:"relevanceScore"`
	OriginalIndex  int            `json:"originalIndex"`
}

type wireRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopK      int      `json:"top_k"`
}

type wireResult struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

type wireResponse struct {
	Results []wireResult `json:"results"`
}

type Client struct {
	base string
	http *http.Client
	log  *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
		log:  logger,
	}
}

// Rerank asks the service to order items by relevance to query. Empty input
// returns immediately without a call. Results keep the service's order; an
// out-of-range index maps to an empty-text placeholder instead of failing.
func (c *Client) Rerank(ctx context.Context, query string, items []Item, topK int) ([]ResultItem, error) {
	if len(items) == 0 {
		return []ResultItem{}, nil
	}
	if topK <= 0 || topK > len(items) {
		topK = len(items)
	}

	docs := make([]string, len(items))
	for i, it := range items {
		docs[i] = it.Text
	}

	body, err := json.Marshal(wireRequest{Query: query, Documents: docs, TopK: topK})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	url := fmt.Sprintf("%s/rerank", c.base)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RerankRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("rerank call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.RerankRequests.WithLabelValues("error").Inc()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("rerank service returned %d: %s", resp.StatusCode, string(snippet))
	}

	var wr wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		metrics.RerankRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}

	out := make([]ResultItem, 0, len(wr.Results))
	for _, r := range wr.Results {
		if len(out) >= topK {
			break
		}
		ri := ResultItem{
			RelevanceScore: r.RelevanceScore,
			OriginalIndex:  r.Index,
		}
		if r.Index >= 0 && r.Index < len(items) {
			src := items[r.Index]
			ri.ID = src.ID
			ri.Text = src.Text
			ri.Metadata = src.Metadata
		} else {
			// Tolerate a misbehaving service rather than failing the request.
			ri.ID = strconv.Itoa(r.Index)
			ri.Text = ""
		}
		out = append(out, ri)
	}

	metrics.RerankRequests.WithLabelValues("ok").Inc()
	return out, nil
}
