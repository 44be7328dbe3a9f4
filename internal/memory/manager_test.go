package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSummarizer struct {
	calls   int
	evicted []ChatMessage
	prior   string
	out     string
	err     error
}

func (f *fakeSummarizer) Summarize(_ context.Context, prior string, evicted []ChatMessage) (string, error) {
	f.calls++
	f.prior = prior
	f.evicted = append([]ChatMessage{}, evicted...)
	if f.err != nil {
		return "", f.err
	}
	return f.out, nil
}

func testStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, zap.NewNop()), mr
}

func TestGet_MissReturnsEmptyMemory(t *testing.T) {
	store, _ := testStore(t)
	m := NewManager(store, &fakeSummarizer{}, 10, time.Hour, false, zap.NewNop())

	mem := m.Get(context.Background(), "sess-1")

	require.NotNil(t, mem)
	assert.Equal(t, "sess-1", mem.SessionID)
	assert.Empty(t, mem.Messages)
	assert.Empty(t, mem.Summary)
}

func TestGet_ReadErrorTreatedAsMiss(t *testing.T) {
	store, mr := testStore(t)
	m := NewManager(store, &fakeSummarizer{}, 10, time.Hour, false, zap.NewNop())
	mr.Close()

	mem := m.Get(context.Background(), "sess-1")

	require.NotNil(t, mem, "read failures never propagate")
	assert.Empty(t, mem.Messages)
}

func TestAppend_RoundTrips(t *testing.T) {
	store, _ := testStore(t)
	m := NewManager(store, &fakeSummarizer{}, 10, time.Hour, false, zap.NewNop())
	ctx := context.Background()

	mem := m.Get(ctx, "sess-1")
	m.Append(ctx, mem, "hello", "hi there")

	got := m.Get(ctx, "sess-1")
	require.Len(t, got.Messages, 2)
	assert.Equal(t, ChatMessage{Role: "user", Content: "hello"}, got.Messages[0])
	assert.Equal(t, ChatMessage{Role: "assistant", Content: "hi there"}, got.Messages[1])
}

func TestAppend_EvictionKeepsHalfWindow(t *testing.T) {
	store, _ := testStore(t)
	sum := &fakeSummarizer{out: "folded summary"}
	m := NewManager(store, sum, 10, time.Hour, false, zap.NewNop())
	ctx := context.Background()

	mem := m.Get(ctx, "sess-1")
	// Five full exchanges fill the window without evicting.
	for i := 0; i < 5; i++ {
		m.Append(ctx, mem, fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}
	require.Len(t, mem.Messages, 10)
	assert.Equal(t, 0, sum.calls)

	// The sixth exchange pushes past the window.
	m.Append(ctx, mem, "q5", "a5")

	assert.Len(t, mem.Messages, 5, "eviction retains exactly half the window")
	assert.Equal(t, 1, sum.calls, "one summarization per eviction event")
	assert.Len(t, sum.evicted, 7, "the full evicted prefix is summarized")
	assert.Equal(t, ChatMessage{Role: "user", Content: "q0"}, sum.evicted[0])
	assert.Equal(t, "folded summary", mem.Summary)

	got := m.Get(ctx, "sess-1")
	assert.Len(t, got.Messages, 5)
	assert.Equal(t, "folded summary", got.Summary)
	assert.Equal(t, ChatMessage{Role: "assistant", Content: "a5"}, got.Messages[4])
}

func TestAppend_SummaryFailure_DefaultDropsEvicted(t *testing.T) {
	store, _ := testStore(t)
	sum := &fakeSummarizer{err: errors.New("model unavailable")}
	m := NewManager(store, sum, 10, time.Hour, false, zap.NewNop())
	ctx := context.Background()

	mem := &Memory{SessionID: "sess-1", Summary: "prior"}
	for i := 0; i < 5; i++ {
		m.Append(ctx, mem, fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}
	m.Append(ctx, mem, "q5", "a5")

	assert.Len(t, mem.Messages, 5, "fail-open still evicts")
	assert.Equal(t, "prior", mem.Summary, "prior summary kept unchanged on failure")
}

func TestAppend_SummaryFailure_RetainModeKeepsMessages(t *testing.T) {
	store, _ := testStore(t)
	sum := &fakeSummarizer{err: errors.New("model unavailable")}
	m := NewManager(store, sum, 10, time.Hour, true, zap.NewNop())
	ctx := context.Background()

	mem := &Memory{SessionID: "sess-1"}
	for i := 0; i < 5; i++ {
		m.Append(ctx, mem, fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}
	m.Append(ctx, mem, "q5", "a5")

	assert.Len(t, mem.Messages, 12, "fail-closed retains turns when summarization fails")
}

func TestAppend_RefreshesTTL(t *testing.T) {
	store, mr := testStore(t)
	ttl := 30 * 24 * time.Hour
	m := NewManager(store, &fakeSummarizer{}, 10, ttl, false, zap.NewNop())
	ctx := context.Background()

	before := time.Now().Add(ttl).Unix()
	mem := m.Get(ctx, "sess-1")
	m.Append(ctx, mem, "hello", "hi")
	after := time.Now().Add(ttl).Unix()

	got := m.Get(ctx, "sess-1")
	assert.GreaterOrEqual(t, got.TTL, before)
	assert.LessOrEqual(t, got.TTL, after)

	keyTTL := mr.TTL("session-memory:sess-1")
	assert.InDelta(t, ttl.Seconds(), keyTTL.Seconds(), 5, "store-level TTL matches the record TTL")
}

func TestAppend_TTLMonotone(t *testing.T) {
	store, _ := testStore(t)
	m := NewManager(store, &fakeSummarizer{}, 10, 30*24*time.Hour, false, zap.NewNop())
	ctx := context.Background()

	mem := m.Get(ctx, "sess-1")
	m.Append(ctx, mem, "first", "reply")
	firstTTL := m.Get(ctx, "sess-1").TTL

	time.Sleep(1100 * time.Millisecond)
	m.Append(ctx, mem, "second", "reply")
	secondTTL := m.Get(ctx, "sess-1").TTL

	assert.Greater(t, secondTTL, firstTTL, "every successful write refreshes the ttl forward")
}

func TestAppend_WriteFailureSwallowed(t *testing.T) {
	store, mr := testStore(t)
	m := NewManager(store, &fakeSummarizer{}, 10, time.Hour, false, zap.NewNop())
	mr.Close()

	mem := &Memory{SessionID: "sess-1"}
	assert.NotPanics(t, func() {
		m.Append(context.Background(), mem, "hello", "hi")
	})
}
