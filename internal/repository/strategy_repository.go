package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/yourusername/quail/internal/database"
	"github.com/yourusername/quail/internal/models"
)

// PostgresStrategyRepository implements StrategyRepository for PostgreSQL
type PostgresStrategyRepository struct {
	db *database.DB
}

// NewPostgresStrategyRepository creates a new strategy repository
func NewPostgresStrategyRepository(db *database.DB) StrategyRepository {
	return &PostgresStrategyRepository{db: db}
}

const strategyColumns = "id, user_id, name, description, code, is_active, created_at, updated_at"

func scanStrategy(row pgx.Row, s *models.Strategy) error {
	return row.Scan(
		&s.ID, &s.UserID, &s.Name, &s.Description, &s.Code,
		&s.IsActive, &s.CreatedAt, &s.UpdatedAt,
	)
}

// Create inserts a new strategy
func (s *PostgresStrategyRepository) Create(ctx context.Context, strategy *models.Strategy) error {
	query := `
		INSERT INTO strategies (id, user_id, name, description, code, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err := s.db.Conn(ctx).QueryRow(ctx, query,
		strategy.ID, strategy.UserID, strategy.Name, strategy.Description, strategy.Code, strategy.IsActive,
	).Scan(&strategy.CreatedAt, &strategy.UpdatedAt)
	if err != nil {
		return mapWriteError(err, "failed to create strategy")
	}

	return nil
}

// GetByID retrieves a strategy owned by userID
func (s *PostgresStrategyRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Strategy, error) {
	query := "SELECT " + strategyColumns + " FROM strategies WHERE id = $1 AND user_id = $2"

	strategy := &models.Strategy{}
	err := scanStrategy(s.db.Conn(ctx).QueryRow(ctx, query, id, userID), strategy)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get strategy: %w", err)
	}

	return strategy, nil
}

// ListByUser retrieves all strategies of a user, newest first
func (s *PostgresStrategyRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Strategy, error) {
	query := "SELECT " + strategyColumns + " FROM strategies WHERE user_id = $1 ORDER BY created_at DESC"

	rows, err := s.db.Conn(ctx).Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query strategies: %w", err)
	}
	defer rows.Close()

	strategies := []*models.Strategy{}
	for rows.Next() {
		strategy := &models.Strategy{}
		if err := scanStrategy(rows, strategy); err != nil {
			return nil, fmt.Errorf("failed to scan strategy: %w", err)
		}
		strategies = append(strategies, strategy)
	}

	return strategies, rows.Err()
}

// Update overwrites the mutable fields of a strategy owned by strategy.UserID
func (s *PostgresStrategyRepository) Update(ctx context.Context, strategy *models.Strategy) error {
	query := `
		UPDATE strategies SET
			name = $3, description = $4, code = $5, is_active = $6, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING updated_at
	`

	err := s.db.Conn(ctx).QueryRow(ctx, query,
		strategy.ID, strategy.UserID, strategy.Name, strategy.Description, strategy.Code, strategy.IsActive,
	).Scan(&strategy.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update strategy: %w", err)
	}

	return nil
}

// Delete deletes a strategy; its backtests and their metrics cascade
func (s *PostgresStrategyRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	commandTag, err := s.db.Conn(ctx).Exec(ctx, "DELETE FROM strategies WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete strategy: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}
