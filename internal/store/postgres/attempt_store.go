package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arbcorelabs/arbcore/internal/domain"
)

// AttemptStore implements domain.AttemptStore using PostgreSQL. The tables
// are append-only; attempts are never updated after insertion.
type AttemptStore struct {
	pool *pgxpool.Pool
}

// NewAttemptStore creates an AttemptStore backed by the given pool.
func NewAttemptStore(pool *pgxpool.Pool) *AttemptStore {
	return &AttemptStore{pool: pool}
}

// Record inserts the attempt and its legs in one transaction.
func (s *AttemptStore) Record(ctx context.Context, attempt domain.ExecutionAttempt) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin attempt tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const insertAttempt = `
		INSERT INTO attempts (
			id, opportunity_id, kind, symbols,
			started_at, completed_at, outcome, realized_net_profit_usd
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := tx.Exec(ctx, insertAttempt,
		attempt.ID, attempt.OpportunityID, string(attempt.Kind), attempt.Symbols,
		attempt.StartedAt, attempt.CompletedAt, string(attempt.Outcome),
		attempt.RealizedNetProfitUSD,
	); err != nil {
		return fmt.Errorf("postgres: insert attempt %s: %w", attempt.ID, err)
	}

	const insertLeg = `
		INSERT INTO attempt_legs (
			attempt_id, leg_idx, venue, symbol, side,
			requested_qty, executed_qty, executed_price, fee_usd,
			status, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	batch := &pgx.Batch{}
	for i, leg := range attempt.Legs {
		batch.Queue(insertLeg,
			attempt.ID, i, leg.Venue, leg.Symbol, string(leg.Side),
			leg.RequestedQty, leg.ExecutedQty, leg.ExecutedPrice, leg.FeeUSD,
			string(leg.Status), leg.Error,
		)
	}
	br := tx.SendBatch(ctx, batch)
	for range attempt.Legs {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("postgres: insert legs for %s: %w", attempt.ID, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("postgres: close leg batch for %s: %w", attempt.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit attempt %s: %w", attempt.ID, err)
	}
	return nil
}

const attemptSelectCols = `id, opportunity_id, kind, symbols,
	started_at, completed_at, outcome, realized_net_profit_usd`

func scanAttemptRows(rows pgx.Rows) ([]domain.ExecutionAttempt, error) {
	var out []domain.ExecutionAttempt
	for rows.Next() {
		var (
			a       domain.ExecutionAttempt
			kind    string
			outcome string
		)
		if err := rows.Scan(
			&a.ID, &a.OpportunityID, &kind, &a.Symbols,
			&a.StartedAt, &a.CompletedAt, &outcome, &a.RealizedNetProfitUSD,
		); err != nil {
			return nil, err
		}
		a.Kind = domain.OpportunityKind(kind)
		a.Outcome = domain.AttemptOutcome(outcome)
		out = append(out, a)
	}
	return out, rows.Err()
}

// RecentAttempts returns attempts touching symbol that started within window
// of now, newest first.
func (s *AttemptStore) RecentAttempts(ctx context.Context, symbol string, window time.Duration) ([]domain.ExecutionAttempt, error) {
	const query = `
		SELECT ` + attemptSelectCols + `
		FROM attempts
		WHERE $1 = ANY(symbols) AND started_at >= $2
		ORDER BY started_at DESC`
	rows, err := s.pool.Query(ctx, query, symbol, time.Now().UTC().Add(-window))
	if err != nil {
		return nil, fmt.Errorf("postgres: recent attempts for %s: %w", symbol, err)
	}
	defer rows.Close()

	attempts, err := scanAttemptRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan recent attempts: %w", err)
	}
	return s.attachLegs(ctx, attempts)
}

// ListRecent returns the newest attempts up to limit, with legs.
func (s *AttemptStore) ListRecent(ctx context.Context, limit int) ([]domain.ExecutionAttempt, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT ` + attemptSelectCols + `
		FROM attempts
		ORDER BY started_at DESC
		LIMIT $1`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list attempts: %w", err)
	}
	defer rows.Close()

	attempts, err := scanAttemptRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan attempts: %w", err)
	}
	return s.attachLegs(ctx, attempts)
}

func (s *AttemptStore) attachLegs(ctx context.Context, attempts []domain.ExecutionAttempt) ([]domain.ExecutionAttempt, error) {
	if len(attempts) == 0 {
		return attempts, nil
	}

	ids := make([]string, len(attempts))
	index := make(map[string]int, len(attempts))
	for i, a := range attempts {
		ids[i] = a.ID
		index[a.ID] = i
	}

	const query = `
		SELECT attempt_id, venue, symbol, side,
			requested_qty, executed_qty, executed_price, fee_usd,
			status, error
		FROM attempt_legs
		WHERE attempt_id = ANY($1)
		ORDER BY attempt_id, leg_idx`
	rows, err := s.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("postgres: load legs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			attemptID string
			leg       domain.LegResult
			side      string
			status    string
		)
		if err := rows.Scan(
			&attemptID, &leg.Venue, &leg.Symbol, &side,
			&leg.RequestedQty, &leg.ExecutedQty, &leg.ExecutedPrice, &leg.FeeUSD,
			&status, &leg.Error,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan leg: %w", err)
		}
		leg.Side = domain.Side(side)
		leg.Status = domain.LegStatus(status)
		if i, ok := index[attemptID]; ok {
			attempts[i].Legs = append(attempts[i].Legs, leg)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate legs: %w", err)
	}
	return attempts, nil
}

var _ domain.AttemptStore = (*AttemptStore)(nil)
