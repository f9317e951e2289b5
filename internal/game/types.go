package game

import (
	"time"
)

type Phase string

const (
	PhaseBetting Phase = "BETTING"
	PhasePlaying Phase = "PLAYING"
	PhaseCrashed Phase = "CRASHED"
)

type Outcome string

const (
	OutcomePending Outcome = "PENDING"
	OutcomeWon     Outcome = "WON"
	OutcomeLost    Outcome = "LOST"
)

// Notification kinds emitted through the Notifier.
const (
	EventRoundBetting = "round_betting"
	EventRoundStarted = "round_started"
	EventTick         = "tick"
	EventRoundCrashed = "round_crashed"
	EventRoundLost    = "round_lost"
	EventAdminCrash   = "admin_crash"
	EventBetPlaced    = "bet_placed"
	EventCashOut      = "cash_out"
)

type RoundState struct {
	RoundID             string    `json:"round_id"`
	Phase               Phase     `json:"phase"`
	Multiplier          float64   `json:"multiplier"`
	LastCrashMultiplier *float64  `json:"last_crash_multiplier,omitempty"`
	Tick                int       `json:"tick"`
	PhaseStartedAt      time.Time `json:"phase_started_at"`
}

type Bet struct {
	ID                string    `json:"id"`
	RoundID           string    `json:"round_id"`
	UserID            string    `json:"user_id"`
	Amount            float64   `json:"amount"`
	CashOutMultiplier *float64  `json:"cash_out_multiplier,omitempty"`
	Outcome           Outcome   `json:"outcome"`
	Timestamp         time.Time `json:"timestamp"`
}

type Settlement struct {
	BetID      string  `json:"bet_id"`
	UserID     string  `json:"user_id"`
	Amount     float64 `json:"amount"`
	Multiplier float64 `json:"multiplier"`
	Payout     float64 `json:"payout"`
	Balance    float64 `json:"balance"`
}

type HistoryEntry struct {
	ID              string    `json:"id"`
	RoundID         string    `json:"round_id"`
	CrashMultiplier float64   `json:"crash_multiplier"`
	CrashedAt       time.Time `json:"crashed_at"`
}

type BetRequest struct {
	UserID string  `json:"user_id"`
	Amount float64 `json:"amount"`
}

type BetResponse struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Bet     *Bet    `json:"bet,omitempty"`
	Balance float64 `json:"balance,omitempty"`
}

type CashoutRequest struct {
	UserID string `json:"user_id"`
	BetID  string `json:"bet_id"`
}

type CashoutResponse struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message"`
	Settlement *Settlement `json:"settlement,omitempty"`
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

type BetPlacedMessage struct {
	UserID string  `json:"user_id"`
	Amount float64 `json:"amount"`
	BetID  string  `json:"bet_id"`
}

type CashoutMessage struct {
	UserID     string  `json:"user_id"`
	BetID      string  `json:"bet_id"`
	Multiplier float64 `json:"multiplier"`
	Payout     float64 `json:"payout"`
}

type RoundLostMessage struct {
	UserID          string  `json:"user_id"`
	BetID           string  `json:"bet_id"`
	Amount          float64 `json:"amount"`
	CrashMultiplier float64 `json:"crash_multiplier"`
}
