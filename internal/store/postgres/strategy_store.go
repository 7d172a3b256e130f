package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/oppbot/internal/domain"
)

// StrategyStore implements domain.StrategyStore using PostgreSQL.
type StrategyStore struct {
	pool *pgxpool.Pool
}

// NewStrategyStore creates a new StrategyStore backed by the given pool.
func NewStrategyStore(pool *pgxpool.Pool) *StrategyStore {
	return &StrategyStore{pool: pool}
}

const strategySelectCols = `id, name, category, risk_tier, priority,
	min_profit, max_cost, enabled,
	slippage_tolerance, max_retries, exec_timeout_ms,
	total_trades, profitable_trades, total_profit, success_rate,
	avg_exec_ms, last_executed_at, registered_at`

func scanStrategyRow(row pgx.Row) (domain.StrategyRecord, error) {
	var (
		rec       domain.StrategyRecord
		category  string
		riskTier  string
		timeoutMs int64
		lastExec  *time.Time
	)
	err := row.Scan(
		&rec.ID, &rec.Name, &category, &riskTier, &rec.Priority,
		&rec.MinProfit, &rec.MaxCost, &rec.Enabled,
		&rec.Params.SlippageTolerance, &rec.Params.MaxRetries, &timeoutMs,
		&rec.TotalTrades, &rec.ProfitableTrades, &rec.TotalProfit, &rec.SuccessRate,
		&rec.AvgExecMs, &lastExec, &rec.RegisteredAt,
	)
	if err != nil {
		return domain.StrategyRecord{}, err
	}
	rec.Category = domain.Category(category)
	rec.RiskTier = domain.RiskTier(riskTier)
	rec.Params.Timeout = time.Duration(timeoutMs) * time.Millisecond
	if lastExec != nil {
		rec.LastExecutedAt = *lastExec
	}
	return rec, nil
}

// Upsert inserts or replaces a strategy snapshot keyed by ID.
func (s *StrategyStore) Upsert(ctx context.Context, rec domain.StrategyRecord) error {
	const query = `
		INSERT INTO strategies (
			id, name, category, risk_tier, priority,
			min_profit, max_cost, enabled,
			slippage_tolerance, max_retries, exec_timeout_ms,
			total_trades, profitable_trades, total_profit, success_rate,
			avg_exec_ms, last_executed_at, registered_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10, $11,
			$12, $13, $14, $15,
			$16, $17, $18, NOW()
		) ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			risk_tier = EXCLUDED.risk_tier,
			priority = EXCLUDED.priority,
			min_profit = EXCLUDED.min_profit,
			max_cost = EXCLUDED.max_cost,
			enabled = EXCLUDED.enabled,
			slippage_tolerance = EXCLUDED.slippage_tolerance,
			max_retries = EXCLUDED.max_retries,
			exec_timeout_ms = EXCLUDED.exec_timeout_ms,
			total_trades = EXCLUDED.total_trades,
			profitable_trades = EXCLUDED.profitable_trades,
			total_profit = EXCLUDED.total_profit,
			success_rate = EXCLUDED.success_rate,
			avg_exec_ms = EXCLUDED.avg_exec_ms,
			last_executed_at = EXCLUDED.last_executed_at,
			updated_at = NOW()`

	var lastExec *time.Time
	if !rec.LastExecutedAt.IsZero() {
		lastExec = &rec.LastExecutedAt
	}

	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.Name, string(rec.Category), string(rec.RiskTier), rec.Priority,
		rec.MinProfit, rec.MaxCost, rec.Enabled,
		rec.Params.SlippageTolerance, rec.Params.MaxRetries, rec.Params.Timeout.Milliseconds(),
		rec.TotalTrades, rec.ProfitableTrades, rec.TotalProfit, rec.SuccessRate,
		rec.AvgExecMs, lastExec, rec.RegisteredAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert strategy %s: %w", rec.ID, err)
	}
	return nil
}

// Get returns a single strategy by ID, or domain.ErrNotFound.
func (s *StrategyStore) Get(ctx context.Context, id string) (domain.StrategyRecord, error) {
	query := `SELECT ` + strategySelectCols + ` FROM strategies WHERE id = $1`
	rec, err := scanStrategyRow(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.StrategyRecord{}, domain.ErrNotFound
		}
		return domain.StrategyRecord{}, fmt.Errorf("postgres: get strategy %s: %w", id, err)
	}
	return rec, nil
}

// List returns all persisted strategies in registration order.
func (s *StrategyStore) List(ctx context.Context) ([]domain.StrategyRecord, error) {
	query := `SELECT ` + strategySelectCols + ` FROM strategies ORDER BY registered_at ASC, id ASC`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list strategies: %w", err)
	}
	defer rows.Close()

	var recs []domain.StrategyRecord
	for rows.Next() {
		rec, err := scanStrategyRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan strategy: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list strategies: %w", err)
	}
	return recs, nil
}

// Compile-time interface check.
var _ domain.StrategyStore = (*StrategyStore)(nil)
