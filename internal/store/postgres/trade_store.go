package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantfall/xrparb/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a TradeStore backed by the given pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Insert appends one trade to the log.
func (s *TradeStore) Insert(ctx context.Context, rec domain.TradeRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO trades ("timestamp", base_currency, quote_currency, size, profit, latency_seconds)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.Timestamp, rec.Pair.Base, rec.Pair.Quote, rec.Size, rec.Profit, rec.LatencySeconds,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade: %w", err)
	}
	return nil
}

// List returns trades, newest first, narrowed by opts.
func (s *TradeStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	query := `SELECT id, "timestamp", base_currency, quote_currency, size, profit, latency_seconds
		FROM trades`
	args := []any{}
	argIdx := 1

	if opts.Before != nil {
		query += fmt.Sprintf(` WHERE "timestamp" < $%d`, argIdx)
		args = append(args, *opts.Before)
		argIdx++
	}

	query += ` ORDER BY "timestamp" DESC`

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades: %w", err)
	}
	defer rows.Close()

	var recs []domain.TradeRecord
	for rows.Next() {
		var rec domain.TradeRecord
		if err := rows.Scan(
			&rec.ID, &rec.Timestamp, &rec.Pair.Base, &rec.Pair.Quote,
			&rec.Size, &rec.Profit, &rec.LatencySeconds,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// DeleteBefore deletes trades older than cutoff and returns the number
// removed.
func (s *TradeStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM trades WHERE "timestamp" < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete trades before: %w", err)
	}
	return tag.RowsAffected(), nil
}
