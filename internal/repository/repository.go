package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/yourusername/quail/internal/database"
	"github.com/yourusername/quail/internal/models"
)

const uniqueViolation = "23505"

// Repositories holds all repository implementations
type Repositories struct {
	User     UserRepository
	Strategy StrategyRepository
	Backtest BacktestRepository
	Metric   MetricRepository
	Token    TokenRepository
	Tx       Transactor
}

// NewRepositories creates and returns all repository implementations
func NewRepositories(db *database.DB) (*Repositories, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &Repositories{
		User:     NewPostgresUserRepository(db),
		Strategy: NewPostgresStrategyRepository(db),
		Backtest: NewPostgresBacktestRepository(db),
		Metric:   NewPostgresMetricRepository(db),
		Token:    NewPostgresTokenRepository(db),
		Tx:       db,
	}, nil
}

// mapWriteError turns a unique violation into models.ErrDuplicateKey
func mapWriteError(err error, action string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", action, models.ErrDuplicateKey)
	}
	return fmt.Errorf("%s: %w", action, err)
}
