package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantfall/xrparb/internal/domain"
)

// AuditStore implements domain.AuditStore using PostgreSQL.
type AuditStore struct {
	pool *pgxpool.Pool
}

// NewAuditStore creates an AuditStore backed by the given pool.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

// Log appends one error record.
func (s *AuditStore) Log(ctx context.Context, rec domain.ErrorRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_log ("timestamp", component, message, severity)
		VALUES ($1, $2, $3, $4)`,
		rec.Timestamp, rec.Component, rec.Message, rec.Severity,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert audit record: %w", err)
	}
	return nil
}

// CountSince returns how many errors were logged since the given time.
func (s *AuditStore) CountSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM audit_log WHERE "timestamp" >= $1`, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count audit records: %w", err)
	}
	return n, nil
}
