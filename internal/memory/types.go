// Package memory persists bounded per-session conversational history with a
// rolling summary of evicted turns.
package memory

// ChatMessage is one role-tagged conversation turn.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Memory is the stored record for one session. TTL is epoch seconds and is
// honored by the store, not enforced by this package.
type Memory struct {
	SessionID string        `json:"sessionId"`
	Summary   string        `json:"summary"`
	Messages  []ChatMessage `json:"messages"`
	TTL       int64         `json:"ttl"`
}
