package game

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const REDIS_KEY_USER_BALANCE = "crash:balance:"

// AccountService is the external ledger the game debits stakes from and
// credits winnings to.
type AccountService interface {
	Balance(ctx context.Context, userID string) (float64, error)
	// Debit removes amount from the balance and returns the new balance. It
	// fails with ErrInsufficientBalance without applying anything when the
	// balance cannot cover the amount.
	Debit(ctx context.Context, userID string, amount float64) (float64, error)
	Credit(ctx context.Context, userID string, amount float64) (float64, error)
}

// BalanceSetter is implemented by account services that allow seeding a
// balance directly (testing and admin tooling).
type BalanceSetter interface {
	SetBalance(ctx context.Context, userID string, balance float64) error
}

// RedisAccounts stores balances as floats under crash:balance:<user>.
type RedisAccounts struct {
	client *redis.Client
}

func NewRedisAccounts(client *redis.Client) *RedisAccounts {
	return &RedisAccounts{client: client}
}

func (a *RedisAccounts) Balance(ctx context.Context, userID string) (float64, error) {
	balance, err := a.client.Get(ctx, REDIS_KEY_USER_BALANCE+userID).Float64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

func (a *RedisAccounts) Debit(ctx context.Context, userID string, amount float64) (float64, error) {
	balanceKey := REDIS_KEY_USER_BALANCE + userID

	newBalance, err := a.client.IncrByFloat(ctx, balanceKey, -amount).Result()
	if err != nil {
		return 0, fmt.Errorf("debit balance: %w", err)
	}
	if newBalance < 0 {
		if err := a.client.IncrByFloat(ctx, balanceKey, amount).Err(); err != nil {
			return 0, fmt.Errorf("rollback debit: %w", err)
		}
		return newBalance + amount, ErrInsufficientBalance
	}
	return newBalance, nil
}

func (a *RedisAccounts) Credit(ctx context.Context, userID string, amount float64) (float64, error) {
	newBalance, err := a.client.IncrByFloat(ctx, REDIS_KEY_USER_BALANCE+userID, amount).Result()
	if err != nil {
		return 0, fmt.Errorf("credit balance: %w", err)
	}
	return newBalance, nil
}

func (a *RedisAccounts) SetBalance(ctx context.Context, userID string, balance float64) error {
	if err := a.client.Set(ctx, REDIS_KEY_USER_BALANCE+userID, balance, 0).Err(); err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	return nil
}
