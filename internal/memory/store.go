package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrNotFound reports a read miss.
var ErrNotFound = errors.New("session memory not found")

// Store isolates record access so a stricter backend (conditional writes,
// versioning) can be substituted without touching the manager. The default
// Redis store is last-writer-wins.
type Store interface {
	Get(ctx context.Context, sessionID string) (*Memory, error)
	Put(ctx context.Context, mem *Memory, ttl time.Duration) error
}

// RedisStore keeps one JSON record per session under session-memory:<id>
// with a key TTL the store enforces.
type RedisStore struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRedisStore(client *redis.Client, logger *zap.Logger) *RedisStore {
	return &RedisStore{client: client, log: logger}
}

func (s *RedisStore) key(sessionID string) string {
	return fmt.Sprintf("session-memory:%s", sessionID)
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (*Memory, error) {
	data, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session memory: %w", err)
	}

	var mem Memory
	if err := json.Unmarshal(data, &mem); err != nil {
		return nil, fmt.Errorf("unmarshal session memory: %w", err)
	}
	return &mem, nil
}

func (s *RedisStore) Put(ctx context.Context, mem *Memory, ttl time.Duration) error {
	data, err := json.Marshal(mem)
	if err != nil {
		return fmt.Errorf("marshal session memory: %w", err)
	}
	if err := s.client.Set(ctx, s.key(mem.SessionID), data, ttl).Err(); err != nil {
		return fmt.Errorf("put session memory: %w", err)
	}
	return nil
}
