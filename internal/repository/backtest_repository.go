package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/yourusername/quail/internal/database"
	"github.com/yourusername/quail/internal/models"
)

// PostgresBacktestRepository implements BacktestRepository for PostgreSQL
type PostgresBacktestRepository struct {
	db *database.DB
}

// NewPostgresBacktestRepository creates a new backtest repository
func NewPostgresBacktestRepository(db *database.DB) BacktestRepository {
	return &PostgresBacktestRepository{db: db}
}

const (
	backtestColumns = "id, user_id, strategy_id, name, status, results, created_at, updated_at"

	backtestWithStrategy = `
		SELECT b.id, b.user_id, b.strategy_id, b.name, b.status, b.results, b.created_at, b.updated_at,
			s.id, s.user_id, s.name, s.description, s.code, s.is_active, s.created_at, s.updated_at
		FROM backtests b
		JOIN strategies s ON s.id = b.strategy_id
	`
)

func scanBacktest(row pgx.Row, withStrategy bool) (*models.Backtest, error) {
	b := &models.Backtest{}
	var status string
	var results []byte

	dest := []any{&b.ID, &b.UserID, &b.StrategyID, &b.Name, &status, &results, &b.CreatedAt, &b.UpdatedAt}
	if withStrategy {
		b.Strategy = &models.Strategy{}
		s := b.Strategy
		dest = append(dest, &s.ID, &s.UserID, &s.Name, &s.Description, &s.Code, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	}

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	b.Status = models.BacktestStatus(status)
	if results != nil {
		b.Results = json.RawMessage(results)
	}
	return b, nil
}

// Create inserts a new backtest
func (r *PostgresBacktestRepository) Create(ctx context.Context, backtest *models.Backtest) error {
	query := `
		INSERT INTO backtests (id, user_id, strategy_id, name, status, results)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err := r.db.Conn(ctx).QueryRow(ctx, query,
		backtest.ID, backtest.UserID, backtest.StrategyID, backtest.Name,
		string(backtest.Status), nullableJSON(backtest.Results),
	).Scan(&backtest.CreatedAt, &backtest.UpdatedAt)
	if err != nil {
		return mapWriteError(err, "failed to create backtest")
	}

	return nil
}

// GetByID retrieves a backtest owned by userID together with its strategy
func (r *PostgresBacktestRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Backtest, error) {
	query := backtestWithStrategy + " WHERE b.id = $1 AND b.user_id = $2"

	backtest, err := scanBacktest(r.db.Conn(ctx).QueryRow(ctx, query, id, userID), true)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get backtest: %w", err)
	}

	return backtest, nil
}

// ListByUser retrieves backtests of a user newest first
func (r *PostgresBacktestRepository) ListByUser(ctx context.Context, userID uuid.UUID, strategyID *uuid.UUID) ([]*models.Backtest, error) {
	query := backtestWithStrategy + " WHERE b.user_id = $1"
	args := []any{userID}
	if strategyID != nil {
		query += " AND b.strategy_id = $2"
		args = append(args, *strategyID)
	}
	query += " ORDER BY b.created_at DESC"

	rows, err := r.db.Conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query backtests: %w", err)
	}
	defer rows.Close()

	backtests := []*models.Backtest{}
	for rows.Next() {
		backtest, err := scanBacktest(rows, true)
		if err != nil {
			return nil, fmt.Errorf("failed to scan backtest: %w", err)
		}
		backtests = append(backtests, backtest)
	}

	return backtests, rows.Err()
}

// Complete moves a running backtest to completed with its results
func (r *PostgresBacktestRepository) Complete(ctx context.Context, id uuid.UUID, results json.RawMessage) error {
	return r.finish(ctx, id, models.BacktestStatusCompleted, results)
}

// Fail moves a running backtest to failed with an error document
func (r *PostgresBacktestRepository) Fail(ctx context.Context, id uuid.UUID, results json.RawMessage) error {
	return r.finish(ctx, id, models.BacktestStatusFailed, results)
}

func (r *PostgresBacktestRepository) finish(ctx context.Context, id uuid.UUID, status models.BacktestStatus, results json.RawMessage) error {
	query := `
		UPDATE backtests SET status = $2, results = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'running'
	`

	commandTag, err := r.db.Conn(ctx).Exec(ctx, query, id, string(status), nullableJSON(results))
	if err != nil {
		return fmt.Errorf("failed to mark backtest %s: %w", status, err)
	}

	if commandTag.RowsAffected() == 0 {
		return models.ErrNotRunning
	}

	return nil
}

// FailStale fails backtests created before cutoff that are still running,
// skipping the excluded ids
func (r *PostgresBacktestRepository) FailStale(ctx context.Context, cutoff time.Time, results json.RawMessage, exclude []uuid.UUID) ([]*models.Backtest, error) {
	query := `
		UPDATE backtests SET status = 'failed', results = $2, updated_at = NOW()
		WHERE status = 'running' AND created_at < $1 AND NOT (id = ANY($3::uuid[]))
		RETURNING ` + backtestColumns

	// A NULL array would exclude every row, so the slice is never nil.
	ids := make([]string, 0, len(exclude))
	for _, id := range exclude {
		ids = append(ids, id.String())
	}

	rows, err := r.db.Conn(ctx).Query(ctx, query, cutoff, nullableJSON(results), ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fail stale backtests: %w", err)
	}
	defer rows.Close()

	var failed []*models.Backtest
	for rows.Next() {
		backtest, err := scanBacktest(rows, false)
		if err != nil {
			return nil, fmt.Errorf("failed to scan backtest: %w", err)
		}
		failed = append(failed, backtest)
	}

	return failed, rows.Err()
}

// Delete deletes a backtest; its metrics cascade
func (r *PostgresBacktestRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	commandTag, err := r.db.Conn(ctx).Exec(ctx, "DELETE FROM backtests WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete backtest: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// nullableJSON maps an empty document to SQL NULL
func nullableJSON(doc json.RawMessage) any {
	if len(doc) == 0 {
		return nil
	}
	return []byte(doc)
}
