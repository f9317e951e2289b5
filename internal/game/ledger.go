package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"crashgame/internal/logger"
)

const (
	MAX_BET_AMOUNT = 10000.0
	MIN_BET_AMOUNT = 0.01
)

// Ledger holds the single bet slot of the current round. It never changes
// the phase; callers hand it the round snapshot it validates against.
// A Ledger is not safe for concurrent use: the Manager serializes access.
type Ledger struct {
	accounts AccountService
	bet      *Bet
	log      *zap.Logger
	now      func() time.Time
}

// NewLedger stamps bets with now, or time.Now when now is nil.
func NewLedger(accounts AccountService, log *zap.Logger, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		accounts: accounts,
		log:      logger.OrNop(log),
		now:      now,
	}
}

// PlaceBet debits amount from userID and opens the round's bet. Nothing is
// recorded unless the debit succeeds.
func (l *Ledger) PlaceBet(ctx context.Context, round RoundState, userID string, amount float64) (Bet, float64, error) {
	if round.Phase != PhaseBetting {
		return Bet{}, 0, ErrInvalidPhase
	}
	// NaN fails both comparisons.
	if !(amount >= MIN_BET_AMOUNT && amount <= MAX_BET_AMOUNT) {
		return Bet{}, 0, fmt.Errorf("%w: must be between %.2f and %.2f", ErrInvalidAmount, MIN_BET_AMOUNT, MAX_BET_AMOUNT)
	}
	if l.bet != nil {
		return Bet{}, 0, ErrDuplicateBet
	}

	balance, err := l.accounts.Balance(ctx, userID)
	if err != nil {
		return Bet{}, 0, fmt.Errorf("read balance: %w", err)
	}
	if balance < amount {
		return Bet{}, balance, ErrInsufficientBalance
	}

	newBalance, err := l.accounts.Debit(ctx, userID, amount)
	if err != nil {
		if errors.Is(err, ErrInsufficientBalance) {
			return Bet{}, newBalance, ErrInsufficientBalance
		}
		return Bet{}, 0, fmt.Errorf("debit stake: %w", err)
	}

	l.bet = &Bet{
		ID:        uuid.NewString(),
		RoundID:   round.RoundID,
		UserID:    userID,
		Amount:    amount,
		Outcome:   OutcomePending,
		Timestamp: l.now(),
	}

	l.log.Info("bet placed",
		zap.String("user_id", userID),
		zap.Float64("amount", amount),
		zap.String("bet_id", l.bet.ID),
		zap.String("round_id", round.RoundID))

	return *l.bet, newBalance, nil
}

// CashOut settles userID's open bet at the round's current multiplier. A bet
// owned by someone else is reported as ErrNoActiveBet. A failed credit leaves
// the bet open.
func (l *Ledger) CashOut(ctx context.Context, round RoundState, userID, betID string) (Settlement, error) {
	if round.Phase != PhasePlaying {
		return Settlement{}, ErrInvalidPhase
	}
	if l.bet == nil || l.bet.ID != betID || l.bet.UserID != userID || l.bet.Outcome != OutcomePending {
		return Settlement{}, ErrNoActiveBet
	}

	multiplier := round.Multiplier
	payout := Payout(l.bet.Amount, multiplier)

	balance, err := l.accounts.Credit(ctx, l.bet.UserID, payout)
	if err != nil {
		return Settlement{}, fmt.Errorf("credit winnings: %w", err)
	}

	l.bet.CashOutMultiplier = &multiplier
	l.bet.Outcome = OutcomeWon

	l.log.Info("cashed out",
		zap.String("user_id", l.bet.UserID),
		zap.String("bet_id", l.bet.ID),
		zap.Float64("multiplier", multiplier),
		zap.Float64("payout", payout))

	return Settlement{
		BetID:      l.bet.ID,
		UserID:     l.bet.UserID,
		Amount:     l.bet.Amount,
		Multiplier: multiplier,
		Payout:     payout,
		Balance:    balance,
	}, nil
}

// SettleOnCrash marks a still pending bet as lost. The stake was taken at
// placement, so no balance call is made. It returns the lost bet, if any.
func (l *Ledger) SettleOnCrash() (Bet, bool) {
	if l.bet == nil || l.bet.Outcome != OutcomePending {
		return Bet{}, false
	}
	l.bet.Outcome = OutcomeLost
	l.log.Info("bet lost",
		zap.String("user_id", l.bet.UserID),
		zap.String("bet_id", l.bet.ID),
		zap.Float64("amount", l.bet.Amount))
	return *l.bet, true
}

// Reset drops the bet of the finished round.
func (l *Ledger) Reset() {
	l.bet = nil
}

// Current returns a copy of the round's bet.
func (l *Ledger) Current() (Bet, bool) {
	if l.bet == nil {
		return Bet{}, false
	}
	b := *l.bet
	if l.bet.CashOutMultiplier != nil {
		m := *l.bet.CashOutMultiplier
		b.CashOutMultiplier = &m
	}
	return b, true
}

// Payout is amount * multiplier computed in decimal.
func Payout(amount, multiplier float64) float64 {
	return decimal.NewFromFloat(amount).
		Mul(decimal.NewFromFloat(multiplier)).
		InexactFloat64()
}
