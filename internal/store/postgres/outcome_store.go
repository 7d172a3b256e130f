package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/oppbot/internal/domain"
)

// OutcomeStore implements domain.OutcomeStore using PostgreSQL.
type OutcomeStore struct {
	pool *pgxpool.Pool
}

// NewOutcomeStore creates a new OutcomeStore backed by the given pool.
func NewOutcomeStore(pool *pgxpool.Pool) *OutcomeStore {
	return &OutcomeStore{pool: pool}
}

const outcomeSelectCols = `opportunity_id, strategy_id, success, profit, profit_usd,
	cost_units, duration_ms, failure_reason, tx_ref, settled_at`

func scanOutcomeRows(rows pgx.Rows) ([]domain.ExecutionOutcome, error) {
	var outs []domain.ExecutionOutcome
	for rows.Next() {
		var (
			out        domain.ExecutionOutcome
			durationMs int64
			reason     *string
			txRef      *string
		)
		if err := rows.Scan(
			&out.OpportunityID, &out.StrategyID, &out.Success, &out.Profit, &out.ProfitUSD,
			&out.CostUnits, &durationMs, &reason, &txRef, &out.SettledAt,
		); err != nil {
			return nil, err
		}
		out.Duration = time.Duration(durationMs) * time.Millisecond
		if reason != nil {
			out.FailureReason = *reason
		}
		if txRef != nil {
			out.TxRef = *txRef
		}
		outs = append(outs, out)
	}
	return outs, rows.Err()
}

// Create appends a settled outcome.
func (s *OutcomeStore) Create(ctx context.Context, out domain.ExecutionOutcome) error {
	const query = `
		INSERT INTO outcomes (
			opportunity_id, strategy_id, success, profit, profit_usd,
			cost_units, duration_ms, failure_reason, tx_ref, settled_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	var reason, txRef *string
	if out.FailureReason != "" {
		reason = &out.FailureReason
	}
	if out.TxRef != "" {
		txRef = &out.TxRef
	}

	_, err := s.pool.Exec(ctx, query,
		out.OpportunityID, out.StrategyID, out.Success, out.Profit, out.ProfitUSD,
		out.CostUnits, out.Duration.Milliseconds(), reason, txRef, out.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create outcome %s: %w", out.OpportunityID, err)
	}
	return nil
}

// ListSince returns outcomes settled at or after the given time, most recent
// first, capped at limit when limit > 0.
func (s *OutcomeStore) ListSince(ctx context.Context, since time.Time, limit int) ([]domain.ExecutionOutcome, error) {
	query := `SELECT ` + outcomeSelectCols + ` FROM outcomes WHERE settled_at >= $1 ORDER BY settled_at DESC`
	args := []any{since}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list outcomes since: %w", err)
	}
	defer rows.Close()

	outs, err := scanOutcomeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan outcomes since: %w", err)
	}
	return outs, nil
}

// ListBefore returns outcomes settled strictly before the cutoff in ascending
// settlement order, for archival.
func (s *OutcomeStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.ExecutionOutcome, error) {
	query := `SELECT ` + outcomeSelectCols + ` FROM outcomes WHERE settled_at < $1 ORDER BY settled_at ASC`
	args := []any{cutoff}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list outcomes before: %w", err)
	}
	defer rows.Close()

	outs, err := scanOutcomeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan outcomes before: %w", err)
	}
	return outs, nil
}

// DeleteBefore deletes outcomes settled before the cutoff. Returns the number
// of rows deleted.
func (s *OutcomeStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM outcomes WHERE settled_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete outcomes before: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time interface check.
var _ domain.OutcomeStore = (*OutcomeStore)(nil)
