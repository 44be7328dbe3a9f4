package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rightsflow/supervisor-gateway/internal/agentruntime"
	"github.com/rightsflow/supervisor-gateway/internal/gateway"
	"github.com/rightsflow/supervisor-gateway/internal/intent"
	"github.com/rightsflow/supervisor-gateway/internal/memory"
	"github.com/rightsflow/supervisor-gateway/internal/rerank"
	"github.com/rightsflow/supervisor-gateway/internal/rewrite"
)

type stubRewriter struct{}

func (stubRewriter) Rewrite(_ context.Context, text string, it intent.Intent) rewrite.Result {
	return rewrite.Result{Original: text, Rewritten: text, Intent: it}
}

type stubClarifier struct{}

func (stubClarifier) Question(context.Context, string) string { return "could you clarify?" }

type stubInvoker struct{}

func (stubInvoker) Invoke(_ context.Context, _, _, sessionID, _ string, _ agentruntime.Options) (*agentruntime.InvocationResult, error) {
	return &agentruntime.InvocationResult{Completion: "stub answer", SessionID: sessionID}, nil
}

type stubReranker struct{}

func (stubReranker) Rerank(context.Context, string, []rerank.Item, int) ([]rerank.ResultItem, error) {
	return []rerank.ResultItem{}, nil
}

type stubMemory struct{}

func (stubMemory) Get(_ context.Context, sessionID string) *memory.Memory {
	return &memory.Memory{SessionID: sessionID}
}

func (stubMemory) Append(context.Context, *memory.Memory, string, string) {}

func testServer(t *testing.T, rps float64, burst int) *httptest.Server {
	t.Helper()
	orch := gateway.NewOrchestrator(
		intent.NewRuleClassifier(),
		stubRewriter{},
		stubClarifier{},
		stubInvoker{},
		stubReranker{},
		stubMemory{},
		gateway.Options{},
		zap.NewNop(),
	)
	h := NewHandler(orch, rps, burst, zap.NewNop())
	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestQuery_HappyPath(t *testing.T) {
	srv := testServer(t, 100, 100)

	body := `{"prompt": "who is APRA AMCOS", "enableRerank": false}`
	resp, err := http.Post(srv.URL+"/api/v1/query", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var out gateway.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "APRA_QA", out.Intent.Type)
	assert.Equal(t, "stub answer", out.Completion)
	assert.NotEmpty(t, out.SessionID)
	assert.Nil(t, out.Reranked)
}

func TestQuery_MissingPrompt(t *testing.T) {
	srv := testServer(t, 100, 100)

	resp, err := http.Post(srv.URL+"/api/v1/query", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestQuery_MalformedBody(t *testing.T) {
	srv := testServer(t, 100, 100)

	resp, err := http.Post(srv.URL+"/api/v1/query", "application/json", strings.NewReader(`{not json`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestQuery_RateLimited(t *testing.T) {
	srv := testServer(t, 0.1, 1)

	body := `{"prompt": "who is APRA AMCOS", "enableRerank": false}`
	first, err := http.Post(srv.URL+"/api/v1/query", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	first.Body.Close()
	assert.Equal(t, http.StatusOK, first.StatusCode)

	second, err := http.Post(srv.URL+"/api/v1/query", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	second.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
}

func TestHealth(t *testing.T) {
	srv := testServer(t, 100, 100)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
