package service

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/yourusername/quail/internal/models"
	"github.com/yourusername/quail/internal/runner"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// MockStrategyRepository mocks strategy repository
type MockStrategyRepository struct {
	mock.Mock
}

func (m *MockStrategyRepository) Create(ctx context.Context, strategy *models.Strategy) error {
	args := m.Called(ctx, strategy)
	return args.Error(0)
}

func (m *MockStrategyRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Strategy, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Strategy), args.Error(1)
}

func (m *MockStrategyRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Strategy, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]*models.Strategy), args.Error(1)
}

func (m *MockStrategyRepository) Update(ctx context.Context, strategy *models.Strategy) error {
	args := m.Called(ctx, strategy)
	return args.Error(0)
}

func (m *MockStrategyRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

// MockBacktestRepository mocks backtest repository
type MockBacktestRepository struct {
	mock.Mock
}

func (m *MockBacktestRepository) Create(ctx context.Context, backtest *models.Backtest) error {
	args := m.Called(ctx, backtest)
	return args.Error(0)
}

func (m *MockBacktestRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Backtest, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Backtest), args.Error(1)
}

func (m *MockBacktestRepository) ListByUser(ctx context.Context, userID uuid.UUID, strategyID *uuid.UUID) ([]*models.Backtest, error) {
	args := m.Called(ctx, userID, strategyID)
	return args.Get(0).([]*models.Backtest), args.Error(1)
}

func (m *MockBacktestRepository) Complete(ctx context.Context, id uuid.UUID, results json.RawMessage) error {
	args := m.Called(ctx, id, results)
	return args.Error(0)
}

func (m *MockBacktestRepository) Fail(ctx context.Context, id uuid.UUID, results json.RawMessage) error {
	args := m.Called(ctx, id, results)
	return args.Error(0)
}

func (m *MockBacktestRepository) FailStale(ctx context.Context, cutoff time.Time, results json.RawMessage, exclude []uuid.UUID) ([]*models.Backtest, error) {
	args := m.Called(ctx, cutoff, results, exclude)
	return args.Get(0).([]*models.Backtest), args.Error(1)
}

func (m *MockBacktestRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

// MockMetricRepository mocks metric repository
type MockMetricRepository struct {
	mock.Mock
}

func (m *MockMetricRepository) InsertBatch(ctx context.Context, metrics []*models.Metric) error {
	args := m.Called(ctx, metrics)
	return args.Error(0)
}

func (m *MockMetricRepository) ListByBacktest(ctx context.Context, backtestID uuid.UUID) ([]models.Metric, error) {
	args := m.Called(ctx, backtestID)
	return args.Get(0).([]models.Metric), args.Error(1)
}

// MockUserRepository mocks user repository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// MockTokenRepository mocks token repository
type MockTokenRepository struct {
	mock.Mock
}

func (m *MockTokenRepository) Create(ctx context.Context, token *models.Token) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockTokenRepository) GetByHash(ctx context.Context, hash string) (*models.Token, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Token), args.Error(1)
}

func (m *MockTokenRepository) Revoke(ctx context.Context, hash string) error {
	args := m.Called(ctx, hash)
	return args.Error(0)
}

func (m *MockTokenRepository) Consume(ctx context.Context, hash string) error {
	args := m.Called(ctx, hash)
	return args.Error(0)
}

func (m *MockTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

// passthroughTx runs the function without a real transaction
type passthroughTx struct{}

func (passthroughTx) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

// runnerFunc adapts a function to runner.Runner
type runnerFunc func(ctx context.Context, backtestID, code string) (runner.Result, error)

func (f runnerFunc) RunBacktest(ctx context.Context, backtestID, code string) (runner.Result, error) {
	return f(ctx, backtestID, code)
}
