package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantfall/xrparb/internal/domain"
)

// ExecutionStore implements domain.ExecutionStore using PostgreSQL.
type ExecutionStore struct {
	pool *pgxpool.Pool
}

// NewExecutionStore creates an ExecutionStore backed by the given pool.
func NewExecutionStore(pool *pgxpool.Pool) *ExecutionStore {
	return &ExecutionStore{pool: pool}
}

const executionSelectCols = `id, opportunity_id, fingerprint, type,
	base_currency, quote_currency, size, attempts, status, receipts,
	realized_profit, last_error, started_at, completed_at`

// Create inserts the record in its initial state.
func (s *ExecutionStore) Create(ctx context.Context, rec domain.ExecutionRecord) error {
	receipts, err := json.Marshal(rec.Receipts)
	if err != nil {
		return fmt.Errorf("postgres: marshal receipts: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO executions (
			id, opportunity_id, fingerprint, type,
			base_currency, quote_currency, size, attempts, status,
			receipts, realized_profit, last_error, started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		rec.ID, rec.OpportunityID, rec.Fingerprint, string(rec.Type),
		rec.Pair.Base, rec.Pair.Quote, rec.Size, rec.Attempts, string(rec.Status),
		receipts, rec.RealizedProfit, rec.LastError, rec.StartedAt, rec.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create execution %s: %w", rec.ID, err)
	}
	return nil
}

// Finalize writes the terminal state of the record. Records are append-only
// history after this; nothing updates them again.
func (s *ExecutionStore) Finalize(ctx context.Context, rec domain.ExecutionRecord) error {
	receipts, err := json.Marshal(rec.Receipts)
	if err != nil {
		return fmt.Errorf("postgres: marshal receipts: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE executions SET
			attempts = $2, status = $3, receipts = $4,
			realized_profit = $5, last_error = $6, completed_at = $7
		WHERE id = $1`,
		rec.ID, rec.Attempts, string(rec.Status), receipts,
		rec.RealizedProfit, rec.LastError, rec.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: finalize execution %s: %w", rec.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: finalize execution %s: %w", rec.ID, domain.ErrNotFound)
	}
	return nil
}

// ListRecent returns the newest executions, most recent first.
func (s *ExecutionStore) ListRecent(ctx context.Context, limit int) ([]domain.ExecutionRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+executionSelectCols+` FROM executions
		 ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent executions: %w", err)
	}
	defer rows.Close()
	return scanExecutionRows(rows)
}

// ListFinalizedBefore returns terminal executions completed before cutoff,
// oldest first, for archiving.
func (s *ExecutionStore) ListFinalizedBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.ExecutionRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+executionSelectCols+` FROM executions
		 WHERE completed_at IS NOT NULL AND completed_at < $1
		 ORDER BY completed_at ASC LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list finalized executions: %w", err)
	}
	defer rows.Close()
	return scanExecutionRows(rows)
}

// DeleteBefore removes terminal executions completed before cutoff and
// returns the number deleted.
func (s *ExecutionStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM executions WHERE completed_at IS NOT NULL AND completed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete executions before: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanExecutionRows(rows pgx.Rows) ([]domain.ExecutionRecord, error) {
	var recs []domain.ExecutionRecord
	for rows.Next() {
		var (
			rec      domain.ExecutionRecord
			typ      string
			status   string
			receipts []byte
		)
		if err := rows.Scan(
			&rec.ID, &rec.OpportunityID, &rec.Fingerprint, &typ,
			&rec.Pair.Base, &rec.Pair.Quote, &rec.Size, &rec.Attempts, &status,
			&receipts, &rec.RealizedProfit, &rec.LastError, &rec.StartedAt, &rec.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan execution: %w", err)
		}
		rec.Type = domain.OpportunityType(typ)
		rec.Status = domain.ExecStatus(status)
		if err := json.Unmarshal(receipts, &rec.Receipts); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal receipts: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
