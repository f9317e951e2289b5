package game

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	HISTORY_LIMIT         = 20
	REDIS_KEY_HISTORY     = "crash:history"
	REDIS_HISTORY_MAX_LEN = 1000
)

// HistoryStore is the durable, append-only sink for crash results.
type HistoryStore interface {
	Append(ctx context.Context, entry HistoryEntry) error
	Recent(ctx context.Context, n int) ([]HistoryEntry, error)
}

// History is the bounded newest-first cache of crash points kept in memory.
type History struct {
	entries []HistoryEntry
	limit   int
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = HISTORY_LIMIT
	}
	return &History{
		entries: make([]HistoryEntry, 0, limit),
		limit:   limit,
	}
}

// Add prepends entry, evicting the oldest entry once the cap is reached.
func (h *History) Add(entry HistoryEntry) {
	if len(h.entries) < h.limit {
		h.entries = append(h.entries, HistoryEntry{})
	}
	copy(h.entries[1:], h.entries[:len(h.entries)-1])
	h.entries[0] = entry
}

// Recent returns up to n entries, newest first. n <= 0 means all.
func (h *History) Recent(n int) []HistoryEntry {
	if n <= 0 || n > len(h.entries) {
		n = len(h.entries)
	}
	out := make([]HistoryEntry, n)
	copy(out, h.entries[:n])
	return out
}

func (h *History) Len() int {
	return len(h.entries)
}

// Seed loads previously persisted entries (newest first) into an empty cache.
func (h *History) Seed(entries []HistoryEntry) {
	for i := len(entries) - 1; i >= 0; i-- {
		h.Add(entries[i])
	}
}

// RedisHistory keeps crash results in a capped Redis list, newest first.
type RedisHistory struct {
	client *redis.Client
}

func NewRedisHistory(client *redis.Client) *RedisHistory {
	return &RedisHistory{client: client}
}

func (r *RedisHistory) Append(ctx context.Context, entry HistoryEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, REDIS_KEY_HISTORY, data)
	pipe.LTrim(ctx, REDIS_KEY_HISTORY, 0, REDIS_HISTORY_MAX_LEN-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (r *RedisHistory) Recent(ctx context.Context, n int) ([]HistoryEntry, error) {
	if n <= 0 {
		return nil, nil
	}
	raw, err := r.client.LRange(ctx, REDIS_KEY_HISTORY, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	entries := make([]HistoryEntry, 0, len(raw))
	for _, item := range raw {
		var e HistoryEntry
		if json.Unmarshal([]byte(item), &e) == nil {
			entries = append(entries, e)
		}
	}
	return entries, nil
}
