package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// manualScheduler is a virtual clock; tasks only run inside Advance.
type manualScheduler struct {
	mu    sync.Mutex
	now   time.Time
	tasks []*manualTimer
	// leaky timers report success from Stop but still fire, like a
	// time.Timer whose callback already started.
	leaky bool
}

type manualTimer struct {
	s       *manualScheduler
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{s: s, at: s.now.Add(d), f: f}
	s.tasks = append(s.tasks, t)
	return t
}

func (s *manualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (t *manualTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	if !t.s.leaky {
		t.stopped = true
	}
	return true
}

// Advance moves virtual time forward, running due tasks in order.
func (s *manualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now.Add(d)
	s.mu.Unlock()

	for {
		s.mu.Lock()
		var next *manualTimer
		for _, t := range s.tasks {
			if t.stopped || t.fired || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			s.now = target
			s.mu.Unlock()
			return
		}
		s.now = next.at
		next.fired = true
		s.mu.Unlock()

		next.f()
	}
}

// Pending counts tasks that are armed and not yet fired or stopped.
func (s *manualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type memAccounts struct {
	mu        sync.Mutex
	balances  map[string]float64
	debitErr  error
	creditErr error
	debits    int
	credits   int
}

func newMemAccounts(balances map[string]float64) *memAccounts {
	if balances == nil {
		balances = map[string]float64{}
	}
	return &memAccounts{balances: balances}
}

func (a *memAccounts) Balance(_ context.Context, userID string) (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balances[userID], nil
}

func (a *memAccounts) Debit(_ context.Context, userID string, amount float64) (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.debitErr != nil {
		return 0, a.debitErr
	}
	if a.balances[userID] < amount {
		return a.balances[userID], ErrInsufficientBalance
	}
	a.debits++
	a.balances[userID] -= amount
	return a.balances[userID], nil
}

func (a *memAccounts) Credit(_ context.Context, userID string, amount float64) (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.creditErr != nil {
		return 0, a.creditErr
	}
	a.credits++
	a.balances[userID] += amount
	return a.balances[userID], nil
}

func (a *memAccounts) balance(userID string) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balances[userID]
}

type event struct {
	kind    string
	payload interface{}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []event
}

func (n *recordingNotifier) Notify(kind string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event{kind: kind, payload: payload})
}

func (n *recordingNotifier) kinds(filter ...string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	keep := map[string]bool{}
	for _, f := range filter {
		keep[f] = true
	}
	var out []string
	for _, e := range n.events {
		if len(filter) == 0 || keep[e.kind] {
			out = append(out, e.kind)
		}
	}
	return out
}

func (n *recordingNotifier) last(kind string) (interface{}, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.events) - 1; i >= 0; i-- {
		if n.events[i].kind == kind {
			return n.events[i].payload, true
		}
	}
	return nil, false
}

type memHistoryStore struct {
	mu        sync.Mutex
	entries   []HistoryEntry
	appendErr error
}

func (s *memHistoryStore) Append(_ context.Context, e HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.entries = append([]HistoryEntry{e}, s.entries...)
	return nil
}

func (s *memHistoryStore) Recent(_ context.Context, n int) ([]HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > len(s.entries) {
		n = len(s.entries)
	}
	out := make([]HistoryEntry, n)
	copy(out, s.entries[:n])
	return out, nil
}

var errBackend = errors.New("backend unavailable")

type harness struct {
	m        *Manager
	sched    *manualScheduler
	accounts *memAccounts
	events   *recordingNotifier
}

func newHarness(t *testing.T, policy CrashPolicy, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		sched:    newManualScheduler(),
		accounts: newMemAccounts(map[string]float64{"alice": 500}),
		events:   &recordingNotifier{},
	}
	base := []Option{
		WithScheduler(h.sched),
		WithPolicy(policy),
		WithNotifier(h.events),
	}
	h.m = NewManager(h.accounts, append(base, opts...)...)
	if err := h.m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(h.m.Stop)
	return h
}

// toPlaying advances through the betting window.
func (h *harness) toPlaying() {
	h.sched.Advance(BETTING_TIME)
}

func (h *harness) ticks(n int) {
	for i := 0; i < n; i++ {
		h.sched.Advance(TICK_INTERVAL)
	}
}
