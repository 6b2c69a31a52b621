package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/quail/internal/database"
	"github.com/yourusername/quail/internal/models"
)

func setupRepos(t *testing.T) (*Repositories, context.Context) {
	t.Helper()
	db := database.SetupTestDB(t)

	repos, err := NewRepositories(db)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return repos, ctx
}

func createUser(t *testing.T, ctx context.Context, repos *Repositories, email string) *models.User {
	t.Helper()
	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: "hash",
		FirstName:    "Ada",
		LastName:     "Lovelace",
	}
	require.NoError(t, repos.User.Create(ctx, user))
	return user
}

func createStrategy(t *testing.T, ctx context.Context, repos *Repositories, userID uuid.UUID, name string) *models.Strategy {
	t.Helper()
	strategy := &models.Strategy{
		ID:     uuid.New(),
		UserID: userID,
		Name:   name,
		Code:   "class MA(QCAlgorithm): pass",
	}
	require.NoError(t, repos.Strategy.Create(ctx, strategy))
	return strategy
}

func createBacktest(t *testing.T, ctx context.Context, repos *Repositories, s *models.Strategy) *models.Backtest {
	t.Helper()
	backtest := &models.Backtest{
		ID:         uuid.New(),
		UserID:     s.UserID,
		StrategyID: s.ID,
		Name:       "MA Cross Test",
		Status:     models.BacktestStatusRunning,
	}
	require.NoError(t, repos.Backtest.Create(ctx, backtest))
	return backtest
}

func TestNewRepositoriesRequiresDB(t *testing.T) {
	_, err := NewRepositories(nil)
	assert.Error(t, err)
}

func TestUserRepositoryDuplicateEmail(t *testing.T) {
	repos, ctx := setupRepos(t)
	createUser(t, ctx, repos, "a@b.com")

	err := repos.User.Create(ctx, &models.User{ID: uuid.New(), Email: "a@b.com", PasswordHash: "x"})
	assert.ErrorIs(t, err, models.ErrDuplicateKey)

	found, err := repos.User.GetByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "Ada", found.FirstName)
}

func TestStrategyRepositoryOwnership(t *testing.T) {
	repos, ctx := setupRepos(t)
	owner := createUser(t, ctx, repos, "owner@b.com")
	other := createUser(t, ctx, repos, "other@b.com")
	strategy := createStrategy(t, ctx, repos, owner.ID, "MA Cross")

	_, err := repos.Strategy.GetByID(ctx, other.ID, strategy.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	err = repos.Strategy.Delete(ctx, other.ID, strategy.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	list, err := repos.Strategy.ListByUser(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	found, err := repos.Strategy.GetByID(ctx, owner.ID, strategy.ID)
	require.NoError(t, err)
	assert.False(t, found.IsActive)
}

func TestBacktestRepositoryTransitions(t *testing.T) {
	repos, ctx := setupRepos(t)
	user := createUser(t, ctx, repos, "a@b.com")
	strategy := createStrategy(t, ctx, repos, user.ID, "MA Cross")
	backtest := createBacktest(t, ctx, repos, strategy)

	results := json.RawMessage(`{"totalReturn":0.15}`)
	require.NoError(t, repos.Backtest.Complete(ctx, backtest.ID, results))

	err := repos.Backtest.Fail(ctx, backtest.ID, json.RawMessage(`{"error":"late"}`))
	assert.ErrorIs(t, err, models.ErrNotRunning)

	found, err := repos.Backtest.GetByID(ctx, user.ID, backtest.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BacktestStatusCompleted, found.Status)
	assert.JSONEq(t, string(results), string(found.Results))
	require.NotNil(t, found.Strategy)
	assert.Equal(t, strategy.ID, found.Strategy.ID)
}

func TestBacktestRepositoryListFilterAndOrder(t *testing.T) {
	repos, ctx := setupRepos(t)
	user := createUser(t, ctx, repos, "a@b.com")
	first := createStrategy(t, ctx, repos, user.ID, "first")
	second := createStrategy(t, ctx, repos, user.ID, "second")

	older := createBacktest(t, ctx, repos, first)
	newer := createBacktest(t, ctx, repos, second)

	all, err := repos.Backtest.ListByUser(ctx, user.ID, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, newer.ID, all[0].ID)
	assert.Equal(t, older.ID, all[1].ID)

	filtered, err := repos.Backtest.ListByUser(ctx, user.ID, &first.ID)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, older.ID, filtered[0].ID)
}

func TestStrategyDeleteCascades(t *testing.T) {
	repos, ctx := setupRepos(t)
	user := createUser(t, ctx, repos, "a@b.com")
	strategy := createStrategy(t, ctx, repos, user.ID, "MA Cross")
	backtest := createBacktest(t, ctx, repos, strategy)

	require.NoError(t, repos.Metric.InsertBatch(ctx, []*models.Metric{
		{ID: uuid.New(), BacktestID: backtest.ID, Name: "Sharpe Ratio", Value: 1.2},
	}))

	require.NoError(t, repos.Strategy.Delete(ctx, user.ID, strategy.ID))

	_, err := repos.Backtest.GetByID(ctx, user.ID, backtest.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	metrics, err := repos.Metric.ListByBacktest(ctx, backtest.ID)
	require.NoError(t, err)
	assert.Empty(t, metrics)
}

func TestCompleteInTransactionRollsBack(t *testing.T) {
	repos, ctx := setupRepos(t)
	user := createUser(t, ctx, repos, "a@b.com")
	strategy := createStrategy(t, ctx, repos, user.ID, "MA Cross")
	backtest := createBacktest(t, ctx, repos, strategy)

	err := repos.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := repos.Backtest.Complete(txCtx, backtest.ID, json.RawMessage(`{}`)); err != nil {
			return err
		}
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	found, err := repos.Backtest.GetByID(ctx, user.ID, backtest.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BacktestStatusRunning, found.Status)
}

func TestBacktestRepositoryFailStale(t *testing.T) {
	repos, ctx := setupRepos(t)
	user := createUser(t, ctx, repos, "a@b.com")
	strategy := createStrategy(t, ctx, repos, user.ID, "MA Cross")
	backtest := createBacktest(t, ctx, repos, strategy)

	none, err := repos.Backtest.FailStale(ctx, time.Now().Add(-time.Hour), json.RawMessage(`{"error":"stale"}`), nil)
	require.NoError(t, err)
	assert.Empty(t, none)

	skipped, err := repos.Backtest.FailStale(ctx, time.Now().Add(time.Minute), json.RawMessage(`{"error":"stale"}`), []uuid.UUID{backtest.ID})
	require.NoError(t, err)
	assert.Empty(t, skipped)

	failed, err := repos.Backtest.FailStale(ctx, time.Now().Add(time.Minute), json.RawMessage(`{"error":"stale"}`), nil)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, backtest.ID, failed[0].ID)
	assert.Equal(t, models.BacktestStatusFailed, failed[0].Status)
}

func TestTokenRepositoryRevoke(t *testing.T) {
	repos, ctx := setupRepos(t)
	user := createUser(t, ctx, repos, "a@b.com")

	token := &models.Token{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
		Type:      models.TokenTypeRefresh,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, repos.Token.Create(ctx, token))
	require.NoError(t, repos.Token.Revoke(ctx, token.TokenHash))

	found, err := repos.Token.GetByHash(ctx, token.TokenHash)
	require.NoError(t, err)
	assert.True(t, found.IsRevoked)
	assert.False(t, found.Usable(time.Now()))

	deleted, err := repos.Token.DeleteExpired(ctx, time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestTokenRepositoryConsumeOnce(t *testing.T) {
	repos, ctx := setupRepos(t)
	user := createUser(t, ctx, repos, "a@b.com")

	token := &models.Token{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: "fedcba9876543210fedcba9876543210fedcba9876543210fedcba9876543210",
		Type:      models.TokenTypeRefresh,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, repos.Token.Create(ctx, token))

	// Both transactions read the token as live before either consumes it.
	var read sync.WaitGroup
	read.Add(2)
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			errs <- repos.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
				found, err := repos.Token.GetByHash(txCtx, token.TokenHash)
				read.Done()
				if err != nil {
					return err
				}
				if found.IsRevoked {
					return models.ErrUnauthorized
				}
				read.Wait()
				return repos.Token.Consume(txCtx, token.TokenHash)
			})
		}()
	}

	var succeeded, rejected int
	for i := 0; i < 2; i++ {
		err := <-errs
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, models.ErrUnauthorized):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)

	assert.ErrorIs(t, repos.Token.Consume(ctx, token.TokenHash), models.ErrUnauthorized)
}
