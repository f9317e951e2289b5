package game

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"crashgame/internal/logger"
	"crashgame/internal/metrics"
)

const (
	TICK_INTERVAL   = 100 * time.Millisecond
	BETTING_TIME    = 5 * time.Second
	CRASHED_TIME    = 3 * time.Second
	PERSIST_TIMEOUT = 2 * time.Second
)

var (
	growthRate = decimal.NewFromFloat(0.01)
	growthBase = decimal.NewFromFloat(0.01)
)

// Notifier receives game events. Implementations must not block; delivery
// failures never affect the round.
type Notifier interface {
	Notify(kind string, payload interface{})
}

type Timings struct {
	BettingWindow time.Duration
	TickInterval  time.Duration
	CrashedWindow time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		BettingWindow: BETTING_TIME,
		TickInterval:  TICK_INTERVAL,
		CrashedWindow: CRASHED_TIME,
	}
}

type Option func(*Manager)

func WithScheduler(s Scheduler) Option {
	return func(m *Manager) { m.sched = s }
}

func WithPolicy(p CrashPolicy) Option {
	return func(m *Manager) { m.policy = p }
}

func WithNotifier(n Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

func WithHistoryStore(s HistoryStore) Option {
	return func(m *Manager) { m.store = s }
}

func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.log = l }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

func WithTimings(t Timings) Option {
	return func(m *Manager) { m.timings = t }
}

// Manager is the round clock. It is the only writer of the round phase and
// multiplier and serializes every ledger operation against its own ticks.
// At most one scheduled task is outstanding at any time.
type Manager struct {
	mu       sync.Mutex
	round    RoundState
	ledger   *Ledger
	history  *History
	policy   CrashPolicy
	sched    Scheduler
	timings  Timings
	notifier Notifier
	store    HistoryStore
	log      *zap.Logger
	metrics  *metrics.Metrics

	ctx     context.Context
	running bool
	started bool
	handle  Timer
	gen     uint64
	wg      sync.WaitGroup
}

func NewManager(accounts AccountService, opts ...Option) *Manager {
	m := &Manager{
		history: NewHistory(HISTORY_LIMIT),
		sched:   RealScheduler(),
		timings: DefaultTimings(),
		ctx:     context.Background(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.policy == nil {
		m.policy = NewRandomPolicy(nil)
	}
	m.log = logger.OrNop(m.log)
	m.ledger = NewLedger(accounts, m.log.Named("ledger"), m.sched.Now)
	m.round = RoundState{
		RoundID:        uuid.NewString(),
		Phase:          PhaseBetting,
		Multiplier:     MIN_MULTIPLIER,
		PhaseStartedAt: m.sched.Now(),
	}
	return m
}

// Start arms the betting window of the first round. After a Stop it resumes
// the interrupted phase instead, keeping the round and its bet. Persisted
// history, if a store is configured, is loaded into the in-memory cache first.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}
	m.ctx = ctx
	m.running = true

	if m.store != nil && m.history.Len() == 0 {
		loadCtx, cancel := context.WithTimeout(ctx, PERSIST_TIMEOUT)
		entries, err := m.store.Recent(loadCtx, HISTORY_LIMIT)
		cancel()
		if err != nil {
			m.log.Warn("history preload failed", zap.Error(err))
		} else {
			m.history.Seed(entries)
		}
	}

	if m.started {
		m.resume()
		m.log.Info("round clock resumed",
			zap.String("round_id", m.round.RoundID),
			zap.String("phase", string(m.round.Phase)))
		return nil
	}
	m.started = true
	m.openRound()
	m.log.Info("round clock started", zap.String("round_id", m.round.RoundID))
	return nil
}

// Stop cancels the outstanding task and waits for pending history writes.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.running = false
	m.cancel()
	m.mu.Unlock()

	m.wg.Wait()
	m.log.Info("round clock stopped")
}

// Snapshot returns phase and multiplier read together.
func (m *Manager) Snapshot() RoundState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot()
}

func (m *Manager) snapshot() RoundState {
	s := m.round
	if m.round.LastCrashMultiplier != nil {
		v := *m.round.LastCrashMultiplier
		s.LastCrashMultiplier = &v
	}
	return s
}

func (m *Manager) CurrentBet() (Bet, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger.Current()
}

// History returns up to n crash results, newest first.
func (m *Manager) History(n int) []HistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history.Recent(n)
}

// PlaceBet opens the round's single bet. The debit happens inside the
// critical section, so the phase cannot change under it.
func (m *Manager) PlaceBet(ctx context.Context, userID string, amount float64) (Bet, float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bet, balance, err := m.ledger.PlaceBet(ctx, m.round, userID, amount)
	if err != nil {
		m.reject("bet", err)
		return Bet{}, balance, err
	}

	if m.metrics != nil {
		m.metrics.BetsPlaced.Inc()
	}
	m.notify(EventBetPlaced, BetPlacedMessage{
		UserID: userID,
		Amount: amount,
		BetID:  bet.ID,
	})
	return bet, balance, nil
}

// CashOut settles userID's open bet at the current multiplier.
func (m *Manager) CashOut(ctx context.Context, userID, betID string) (Settlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.ledger.CashOut(ctx, m.round, userID, betID)
	if err != nil {
		m.reject("cashout", err)
		return Settlement{}, err
	}

	if m.metrics != nil {
		m.metrics.CashOuts.Inc()
	}
	m.notify(EventCashOut, CashoutMessage{
		UserID:     s.UserID,
		BetID:      s.BetID,
		Multiplier: s.Multiplier,
		Payout:     s.Payout,
	})
	return s, nil
}

// ForceCrash ends the round immediately. Outside the playing phase it does
// nothing and reports false.
func (m *Manager) ForceCrash() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running || m.round.Phase != PhasePlaying {
		m.log.Debug("force crash ignored", zap.String("phase", string(m.round.Phase)))
		return false
	}

	m.notify(EventAdminCrash, map[string]interface{}{
		"round_id":   m.round.RoundID,
		"multiplier": m.round.Multiplier,
	})
	m.crash("admin")
	return true
}

// NextMultiplier applies one tick of compounding growth:
// m + (m*0.01 + 0.01), rounded to two decimals.
func NextMultiplier(current float64) float64 {
	cur := decimal.NewFromFloat(current)
	inc := cur.Mul(growthRate).Add(growthBase)
	return cur.Add(inc).Round(2).InexactFloat64()
}

// openRound resets state for a new round and arms the betting window.
func (m *Manager) openRound() {
	m.round.Phase = PhaseBetting
	m.round.Multiplier = MIN_MULTIPLIER
	m.round.Tick = 0
	m.round.PhaseStartedAt = m.sched.Now()
	if m.metrics != nil {
		m.metrics.CurrentMultiplier.Set(MIN_MULTIPLIER)
	}

	payload := map[string]interface{}{
		"round_id":  m.round.RoundID,
		"phase":     m.round.Phase,
		"time_left": m.timings.BettingWindow.Seconds(),
	}
	if m.round.LastCrashMultiplier != nil {
		payload["last_crash_multiplier"] = *m.round.LastCrashMultiplier
	}
	if o, ok := m.policy.(RoundObserver); ok {
		for k, v := range o.BeginRound(m.round.RoundID) {
			payload[k] = v
		}
	}
	m.notify(EventRoundBetting, payload)

	m.arm(m.timings.BettingWindow, m.startPlaying)
}

// resume re-arms the task of the phase a Stop interrupted. The phase timer
// restarts in full; the multiplier, tick and bet are kept.
func (m *Manager) resume() {
	switch m.round.Phase {
	case PhaseBetting:
		m.arm(m.timings.BettingWindow, m.startPlaying)
	case PhasePlaying:
		m.arm(m.timings.TickInterval, m.tick)
	case PhaseCrashed:
		m.arm(m.timings.CrashedWindow, m.reset)
	}
}

func (m *Manager) startPlaying() {
	if m.round.Phase != PhaseBetting {
		m.violation("start playing", PhaseBetting)
		return
	}

	m.round.Phase = PhasePlaying
	m.round.Multiplier = MIN_MULTIPLIER
	m.round.Tick = 0
	m.round.PhaseStartedAt = m.sched.Now()

	m.log.Info("round started", zap.String("round_id", m.round.RoundID))
	m.notify(EventRoundStarted, map[string]interface{}{
		"round_id": m.round.RoundID,
		"phase":    m.round.Phase,
	})

	m.arm(m.timings.TickInterval, m.tick)
}

func (m *Manager) tick() {
	if m.round.Phase != PhasePlaying {
		m.violation("tick", PhasePlaying)
		return
	}

	m.round.Tick++
	m.round.Multiplier = NextMultiplier(m.round.Multiplier)
	if m.metrics != nil {
		m.metrics.CurrentMultiplier.Set(m.round.Multiplier)
	}

	m.notify(EventTick, map[string]interface{}{
		"round_id":   m.round.RoundID,
		"multiplier": m.round.Multiplier,
		"tick":       m.round.Tick,
	})

	if m.policy.Decide(m.round.Multiplier, m.round.Tick) {
		m.crash("policy")
		return
	}
	m.arm(m.timings.TickInterval, m.tick)
}

// crash moves Playing to Crashed, records history and settles the bet.
func (m *Manager) crash(reason string) {
	m.cancel()

	m.round.Phase = PhaseCrashed
	m.round.PhaseStartedAt = m.sched.Now()
	crashPoint := m.round.Multiplier

	entry := HistoryEntry{
		ID:              uuid.NewString(),
		RoundID:         m.round.RoundID,
		CrashMultiplier: crashPoint,
		CrashedAt:       m.round.PhaseStartedAt,
	}
	m.history.Add(entry)
	m.persist(entry)

	if lost, ok := m.ledger.SettleOnCrash(); ok {
		m.notify(EventRoundLost, RoundLostMessage{
			UserID:          lost.UserID,
			BetID:           lost.ID,
			Amount:          lost.Amount,
			CrashMultiplier: crashPoint,
		})
	}

	payload := map[string]interface{}{
		"round_id":   m.round.RoundID,
		"multiplier": crashPoint,
		"reason":     reason,
	}
	if o, ok := m.policy.(RoundObserver); ok {
		for k, v := range o.EndRound() {
			payload[k] = v
		}
	}
	m.notify(EventRoundCrashed, payload)

	if m.metrics != nil {
		m.metrics.RoundsTotal.Inc()
		m.metrics.CrashMultiplier.Observe(crashPoint)
	}
	m.log.Info("round crashed",
		zap.String("round_id", m.round.RoundID),
		zap.Float64("multiplier", crashPoint),
		zap.Int("ticks", m.round.Tick),
		zap.String("reason", reason))

	m.arm(m.timings.CrashedWindow, m.reset)
}

func (m *Manager) reset() {
	if m.round.Phase != PhaseCrashed {
		m.violation("reset", PhaseCrashed)
		return
	}

	last := m.round.Multiplier
	m.round.LastCrashMultiplier = &last
	m.round.RoundID = uuid.NewString()
	m.ledger.Reset()

	m.openRound()
}

// arm schedules fn after d as the single outstanding task. Callers cancel
// the previous task first; finding one still registered means the
// single-timer discipline broke.
func (m *Manager) arm(d time.Duration, fn func()) {
	if m.handle != nil {
		m.log.Error("arming over a live scheduled task",
			zap.Error(ErrConcurrencyViolation),
			zap.String("phase", string(m.round.Phase)))
		m.cancel()
	}

	m.gen++
	gen := m.gen
	m.handle = m.sched.AfterFunc(d, func() { m.fire(gen, fn) })
}

func (m *Manager) cancel() {
	if m.handle != nil {
		m.handle.Stop()
		m.handle = nil
	}
	// A task that already started firing carries an older generation and is
	// dropped by fire.
	m.gen++
}

func (m *Manager) fire(gen uint64, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running || gen != m.gen {
		if m.metrics != nil {
			m.metrics.StaleTimerFires.Inc()
		}
		m.log.Debug("dropping superseded scheduled task", zap.Uint64("generation", gen))
		return
	}
	m.handle = nil
	fn()
}

func (m *Manager) violation(op string, want Phase) {
	m.log.Error("phase transition out of order",
		zap.Error(ErrConcurrencyViolation),
		zap.String("op", op),
		zap.String("want", string(want)),
		zap.String("phase", string(m.round.Phase)))
}

func (m *Manager) persist(entry HistoryEntry) {
	if m.store == nil {
		return
	}
	parent := m.ctx
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), PERSIST_TIMEOUT)
		defer cancel()
		if err := m.store.Append(ctx, entry); err != nil {
			m.log.Warn("history append failed", zap.String("round_id", entry.RoundID), zap.Error(err))
		}
	}()
}

func (m *Manager) notify(kind string, payload interface{}) {
	if m.notifier != nil {
		m.notifier.Notify(kind, payload)
	}
}

func (m *Manager) reject(action string, err error) {
	if m.metrics != nil {
		m.metrics.Rejected.WithLabelValues(action, reason(err)).Inc()
	}
	m.log.Debug("action rejected", zap.String("action", action), zap.Error(err))
}

func reason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidPhase):
		return "invalid_phase"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrDuplicateBet):
		return "duplicate_bet"
	case errors.Is(err, ErrNoActiveBet):
		return "no_active_bet"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	default:
		return "internal"
	}
}
