package game

import "errors"

var (
	// ErrInvalidPhase is returned when an action is attempted outside the
	// phase it requires. The round state is left untouched.
	ErrInvalidPhase = errors.New("action not allowed in current phase")

	// ErrInsufficientBalance is returned when the account cannot cover a bet.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrDuplicateBet is returned when a bet already exists for the round.
	ErrDuplicateBet = errors.New("bet already placed for this round")

	// ErrNoActiveBet is returned when there is no open bet to cash out.
	ErrNoActiveBet = errors.New("no active bet")

	// ErrInvalidAmount is returned for non-positive or out of range stakes.
	ErrInvalidAmount = errors.New("invalid bet amount")

	// ErrConcurrencyViolation marks a broken single-timer invariant. It is
	// never returned to callers; the clock logs it and drops the offending task.
	ErrConcurrencyViolation = errors.New("overlapping scheduled tasks")
)
