package database

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	trmpgx "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"crashgame/internal/game"
)

const (
	accountsTable = "accounts"
	entriesTable  = "account_entries"
	colUserID     = "user_id"
	colBalance    = "balance"
	colKind       = "kind"
	colAmount     = "amount"
	colUpdatedAt  = "updated_at"

	entryDebit  = "debit"
	entryCredit = "credit"
	entrySet    = "set"
)

// AccountRepository is the Postgres implementation of game.AccountService.
// Every balance change and its journal entry commit in one transaction.
type AccountRepository struct {
	pool      *pgxpool.Pool
	txManager trm.Manager
	getter    *trmpgx.CtxGetter
}

func NewAccountRepository(pool *pgxpool.Pool) (*AccountRepository, error) {
	m, err := manager.New(trmpgx.NewDefaultFactory(pool))
	if err != nil {
		return nil, fmt.Errorf("create tx manager: %w", err)
	}
	return &AccountRepository{
		pool:      pool,
		txManager: m,
		getter:    trmpgx.DefaultCtxGetter,
	}, nil
}

func (r *AccountRepository) Balance(ctx context.Context, userID string) (float64, error) {
	sqlStr, args, err := psql.Select(colBalance).
		From(accountsTable).
		Where(sq.Eq{colUserID: userID}).
		ToSql()
	if err != nil {
		return 0, err
	}

	var balance float64
	err = r.getter.DefaultTrOrDB(ctx, r.pool).QueryRow(ctx, sqlStr, args...).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("select balance: %w", err)
	}
	return balance, nil
}

func (r *AccountRepository) Debit(ctx context.Context, userID string, amount float64) (float64, error) {
	var newBalance float64

	err := r.txManager.Do(ctx, func(ctx context.Context) error {
		sqlStr, args, err := psql.Select(colBalance).
			From(accountsTable).
			Where(sq.Eq{colUserID: userID}).
			Suffix("FOR UPDATE").
			ToSql()
		if err != nil {
			return err
		}

		conn := r.getter.DefaultTrOrDB(ctx, r.pool)

		var balance float64
		err = conn.QueryRow(ctx, sqlStr, args...).Scan(&balance)
		if errors.Is(err, pgx.ErrNoRows) {
			newBalance = 0
			return game.ErrInsufficientBalance
		}
		if err != nil {
			return fmt.Errorf("lock balance: %w", err)
		}
		if balance < amount {
			newBalance = balance
			return game.ErrInsufficientBalance
		}

		updSQL, updArgs, err := psql.Update(accountsTable).
			Set(colBalance, sq.Expr(colBalance+" - ?", amount)).
			Set(colUpdatedAt, sq.Expr("now()")).
			Where(sq.Eq{colUserID: userID}).
			Suffix("RETURNING " + colBalance).
			ToSql()
		if err != nil {
			return err
		}
		if err := conn.QueryRow(ctx, updSQL, updArgs...).Scan(&newBalance); err != nil {
			return fmt.Errorf("debit balance: %w", err)
		}
		return r.journal(ctx, userID, entryDebit, amount, newBalance)
	})
	if err != nil {
		return newBalance, err
	}
	return newBalance, nil
}

func (r *AccountRepository) Credit(ctx context.Context, userID string, amount float64) (float64, error) {
	var newBalance float64

	err := r.txManager.Do(ctx, func(ctx context.Context) error {
		var err error
		newBalance, err = r.applyDelta(ctx, userID, amount)
		if err != nil {
			return err
		}
		return r.journal(ctx, userID, entryCredit, amount, newBalance)
	})
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (r *AccountRepository) SetBalance(ctx context.Context, userID string, balance float64) error {
	return r.txManager.Do(ctx, func(ctx context.Context) error {
		sqlStr, args, err := psql.Insert(accountsTable).
			Columns(colUserID, colBalance).
			Values(userID, balance).
			Suffix("ON CONFLICT (" + colUserID + ") DO UPDATE SET " +
				colBalance + " = EXCLUDED." + colBalance + ", " + colUpdatedAt + " = now()").
			ToSql()
		if err != nil {
			return err
		}
		if _, err := r.getter.DefaultTrOrDB(ctx, r.pool).Exec(ctx, sqlStr, args...); err != nil {
			return fmt.Errorf("set balance: %w", err)
		}
		return r.journal(ctx, userID, entrySet, balance, balance)
	})
}

// applyDelta upserts the account row and returns the resulting balance.
// delta must not be negative: the proposed insert row is checked against
// the balance constraint even when it conflicts.
func (r *AccountRepository) applyDelta(ctx context.Context, userID string, delta float64) (float64, error) {
	sqlStr, args, err := psql.Insert(accountsTable).
		Columns(colUserID, colBalance).
		Values(userID, delta).
		Suffix("ON CONFLICT (" + colUserID + ") DO UPDATE SET " +
			colBalance + " = " + accountsTable + "." + colBalance + " + EXCLUDED." + colBalance + ", " +
			colUpdatedAt + " = now() RETURNING " + colBalance).
		ToSql()
	if err != nil {
		return 0, err
	}

	var balance float64
	if err := r.getter.DefaultTrOrDB(ctx, r.pool).QueryRow(ctx, sqlStr, args...).Scan(&balance); err != nil {
		return 0, fmt.Errorf("update balance: %w", err)
	}
	return balance, nil
}

func (r *AccountRepository) journal(ctx context.Context, userID, kind string, amount, balance float64) error {
	sqlStr, args, err := psql.Insert(entriesTable).
		Columns(colUserID, colKind, colAmount, colBalance).
		Values(userID, kind, amount, balance).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := r.getter.DefaultTrOrDB(ctx, r.pool).Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("insert account entry: %w", err)
	}
	return nil
}
