package intent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rightsflow/supervisor-gateway/internal/config"
	"github.com/rightsflow/supervisor-gateway/internal/llm"
)

func promptTable(t *testing.T) *config.PromptTable {
	t.Helper()
	tbl, err := config.LoadPromptTable("testdata/does-not-exist.yaml", zap.NewNop())
	require.NoError(t, err)
	return tbl
}

func classifierFor(t *testing.T, handler http.HandlerFunc) (*LLMClassifier, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	client := llm.NewClient(srv.URL, 0, zap.NewNop())
	return NewLLMClassifier(client, promptTable(t), zap.NewNop()), srv.Close
}

func TestLLMClassifier_ParsesValidJSON(t *testing.T) {
	c, done := classifierFor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text": "{\"intent\":\"WORK_SEARCH\",\"confidence\":0.82,\"reasoning\":\"asks for a song\"}"}`))
	})
	defer done()

	res := c.Classify(context.Background(), "find me that song")

	assert.Equal(t, WorkSearch, res.Intent)
	assert.Equal(t, 0.82, res.Confidence)
	assert.Equal(t, "asks for a song", res.Reasoning)
}

func TestLLMClassifier_StripsCodeFences(t *testing.T) {
	c, done := classifierFor(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"text": "` + "```json\\n{\\\"intent\\\":\\\"APRA_QA\\\",\\\"confidence\\\":0.9,\\\"reasoning\\\":\\\"org question\\\"}\\n```" + `"}`))
	})
	defer done()

	res := c.Classify(context.Background(), "what does the organisation do")

	assert.Equal(t, QA, res.Intent)
}

func TestLLMClassifier_MalformedOutput_FallsBack(t *testing.T) {
	c, done := classifierFor(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"text": "sure! the intent is work search"}`))
	})
	defer done()

	res := c.Classify(context.Background(), "anything")

	assert.Equal(t, OutOfScope, res.Intent)
	assert.Equal(t, 0.0, res.Confidence)
	assert.Contains(t, res.Reasoning, "malformed")
}

func TestLLMClassifier_UnknownCategory_FallsBack(t *testing.T) {
	c, done := classifierFor(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"text": "{\"intent\":\"SOMETHING_ELSE\",\"confidence\":0.9,\"reasoning\":\"x\"}"}`))
	})
	defer done()

	res := c.Classify(context.Background(), "anything")

	assert.Equal(t, OutOfScope, res.Intent)
	assert.Equal(t, 0.0, res.Confidence)
}

func TestLLMClassifier_ServiceError_FallsBack(t *testing.T) {
	c, done := classifierFor(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	defer done()

	res := c.Classify(context.Background(), "anything")

	assert.Equal(t, OutOfScope, res.Intent)
	assert.Equal(t, 0.0, res.Confidence)
	assert.Contains(t, res.Reasoning, "classification call failed")
}

func TestLLMClassifier_ClampsConfidence(t *testing.T) {
	c, done := classifierFor(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"text": "{\"intent\":\"APRA_QA\",\"confidence\":1.7,\"reasoning\":\"x\"}"}`))
	})
	defer done()

	res := c.Classify(context.Background(), "anything")

	assert.Equal(t, 1.0, res.Confidence)
}
