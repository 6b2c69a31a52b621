package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/quail/internal/models"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// StrategyRepository defines the interface for strategy data access.
// Every lookup is scoped to the owning user.
type StrategyRepository interface {
	Create(ctx context.Context, strategy *models.Strategy) error
	GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Strategy, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Strategy, error)
	Update(ctx context.Context, strategy *models.Strategy) error
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

// BacktestRepository defines the interface for backtest data access
type BacktestRepository interface {
	Create(ctx context.Context, backtest *models.Backtest) error
	// GetByID returns the backtest joined with its strategy.
	GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Backtest, error)
	// ListByUser returns backtests newest first, optionally for one strategy.
	ListByUser(ctx context.Context, userID uuid.UUID, strategyID *uuid.UUID) ([]*models.Backtest, error)
	// Complete and Fail only move a running backtest; otherwise ErrNotRunning.
	Complete(ctx context.Context, id uuid.UUID, results json.RawMessage) error
	Fail(ctx context.Context, id uuid.UUID, results json.RawMessage) error
	// FailStale fails every backtest still running since before cutoff,
	// except the ids in exclude.
	FailStale(ctx context.Context, cutoff time.Time, results json.RawMessage, exclude []uuid.UUID) ([]*models.Backtest, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

// MetricRepository defines the interface for backtest metric data access
type MetricRepository interface {
	InsertBatch(ctx context.Context, metrics []*models.Metric) error
	ListByBacktest(ctx context.Context, backtestID uuid.UUID) ([]models.Metric, error)
}

// TokenRepository defines the interface for refresh token persistence
type TokenRepository interface {
	Create(ctx context.Context, token *models.Token) error
	GetByHash(ctx context.Context, hash string) (*models.Token, error)
	Revoke(ctx context.Context, hash string) error
	// Consume revokes a token that is not yet revoked; a token already
	// revoked or missing yields ErrUnauthorized.
	Consume(ctx context.Context, hash string) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Transactor runs fn so that repository calls made with its context commit
// or roll back together.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(context.Context) error) error
}
