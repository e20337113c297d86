package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantfall/xrparb/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL. The
// full opportunity travels as a JSONB details column; the indexed columns
// exist only for dashboard queries.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates an OpportunityStore backed by the given pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

// Insert records one detection.
func (s *OpportunityStore) Insert(ctx context.Context, opp domain.Opportunity) error {
	details, err := json.Marshal(opp)
	if err != nil {
		return fmt.Errorf("postgres: marshal opportunity: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO opportunities (id, type, fingerprint, profit_pct, size, details, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		opp.ID, string(opp.Type), opp.Fingerprint(), opp.ProfitPct, opp.Size, details, opp.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert opportunity %s: %w", opp.ID, err)
	}
	return nil
}

// ListRecent returns the newest detections, most recent first.
func (s *OpportunityStore) ListRecent(ctx context.Context, limit int) ([]domain.Opportunity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT details FROM opportunities ORDER BY detected_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent opportunities: %w", err)
	}
	defer rows.Close()

	var opps []domain.Opportunity
	for rows.Next() {
		var details []byte
		if err := rows.Scan(&details); err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		var opp domain.Opportunity
		if err := json.Unmarshal(details, &opp); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal opportunity: %w", err)
		}
		opps = append(opps, opp)
	}
	return opps, rows.Err()
}
