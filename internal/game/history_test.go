package game

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestHistory_NewestFirstAndBounded(t *testing.T) {
	h := NewHistory(HISTORY_LIMIT)

	for i := 1; i <= 30; i++ {
		h.Add(HistoryEntry{ID: fmt.Sprint(i), CrashMultiplier: float64(i)})

		want := i
		if want > HISTORY_LIMIT {
			want = HISTORY_LIMIT
		}
		if h.Len() != want {
			t.Fatalf("Len() = %d after %d adds, want %d", h.Len(), i, want)
		}
	}

	recent := h.Recent(0)
	if recent[0].ID != "30" || recent[len(recent)-1].ID != "11" {
		t.Errorf("Recent() spans %s..%s, want 30..11", recent[0].ID, recent[len(recent)-1].ID)
	}
	for i := 1; i < len(recent); i++ {
		if recent[i-1].CrashMultiplier <= recent[i].CrashMultiplier {
			t.Fatalf("entries not newest first at %d", i)
		}
	}
}

func TestHistory_RecentCopies(t *testing.T) {
	h := NewHistory(3)
	h.Add(HistoryEntry{ID: "a"})
	h.Add(HistoryEntry{ID: "b"})

	got := h.Recent(1)
	if len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("Recent(1) = %+v", got)
	}
	got[0].ID = "mutated"
	if h.Recent(1)[0].ID != "b" {
		t.Error("Recent() must return a copy")
	}
	if n := len(h.Recent(10)); n != 2 {
		t.Errorf("Recent(10) returned %d entries, want 2", n)
	}
}

func TestHistory_Seed(t *testing.T) {
	h := NewHistory(2)
	h.Seed([]HistoryEntry{{ID: "new"}, {ID: "mid"}, {ID: "old"}})

	got := h.Recent(0)
	if len(got) != 2 || got[0].ID != "new" || got[1].ID != "mid" {
		t.Errorf("Recent() after Seed = %+v", got)
	}
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisHistory(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	client.Del(ctx, REDIS_KEY_HISTORY)
	t.Cleanup(func() { client.Del(context.Background(), REDIS_KEY_HISTORY) })

	store := NewRedisHistory(client)
	for i := 1; i <= 3; i++ {
		if err := store.Append(ctx, HistoryEntry{ID: fmt.Sprint(i), CrashMultiplier: float64(i)}); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	got, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "3" || got[1].ID != "2" {
		t.Errorf("Recent(2) = %+v", got)
	}
}
