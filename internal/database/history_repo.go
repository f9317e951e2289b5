package database

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"crashgame/internal/game"
)

const (
	historyTable       = "crash_history"
	colID              = "id"
	colRoundID         = "round_id"
	colCrashMultiplier = "crash_multiplier"
	colCrashedAt       = "crashed_at"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// HistoryRepository persists crash results in Postgres.
type HistoryRepository struct {
	pool *pgxpool.Pool
}

func NewHistoryRepository(pool *pgxpool.Pool) *HistoryRepository {
	return &HistoryRepository{pool: pool}
}

func (r *HistoryRepository) Append(ctx context.Context, entry game.HistoryEntry) error {
	sqlStr, args, err := psql.Insert(historyTable).
		Columns(colID, colRoundID, colCrashMultiplier, colCrashedAt).
		Values(entry.ID, entry.RoundID, entry.CrashMultiplier, entry.CrashedAt).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := r.pool.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("insert crash history: %w", err)
	}
	return nil
}

// Recent returns the latest n crash results, newest first.
func (r *HistoryRepository) Recent(ctx context.Context, n int) ([]game.HistoryEntry, error) {
	if n <= 0 {
		return nil, nil
	}

	sqlStr, args, err := psql.Select(colID, colRoundID, colCrashMultiplier, colCrashedAt).
		From(historyTable).
		OrderBy(colCrashedAt + " DESC").
		Limit(uint64(n)).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query crash history: %w", err)
	}
	defer rows.Close()

	entries := make([]game.HistoryEntry, 0, n)
	for rows.Next() {
		var e game.HistoryEntry
		if err := rows.Scan(&e.ID, &e.RoundID, &e.CrashMultiplier, &e.CrashedAt); err != nil {
			return nil, fmt.Errorf("scan crash history: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
