// Package service implements the strategy, backtest and authentication
// operations behind the HTTP API.
package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/quail/internal/archive"
	"github.com/yourusername/quail/internal/logger"
	"github.com/yourusername/quail/internal/metrics"
	"github.com/yourusername/quail/internal/models"
	"github.com/yourusername/quail/internal/repository"
)

// CreateStrategyInput holds the fields of a new strategy
type CreateStrategyInput struct {
	Name        string
	Description string
	Code        string
}

// StrategyService manages strategies scoped to their owner
type StrategyService struct {
	strategyRepo repository.StrategyRepository
	backtestRepo repository.BacktestRepository
	archive      archive.Storage
	logger       *logrus.Logger
	log          *logger.StrategyLogger
}

// NewStrategyService creates a new strategy service. store may be nil when
// archiving is disabled.
func NewStrategyService(
	repos *repository.Repositories,
	store archive.Storage,
	baseLogger *logrus.Logger,
) *StrategyService {
	return &StrategyService{
		strategyRepo: repos.Strategy,
		backtestRepo: repos.Backtest,
		archive:      store,
		logger:       baseLogger,
		log:          logger.NewStrategyLogger(baseLogger),
	}
}

// Create stores a new inactive strategy for userID
func (s *StrategyService) Create(ctx context.Context, userID uuid.UUID, input CreateStrategyInput) (*models.Strategy, error) {
	strategy := &models.Strategy{
		ID:          uuid.New(),
		UserID:      userID,
		Name:        input.Name,
		Description: input.Description,
		Code:        input.Code,
	}

	if err := s.strategyRepo.Create(ctx, strategy); err != nil {
		return nil, fmt.Errorf("failed to create strategy: %w", err)
	}

	metrics.RecordStrategyOperation("create")
	s.log.LogStrategyCreated(strategy.ID.String(), userID.String(), strategy.Name, len(strategy.Code))
	return strategy, nil
}

// FindAll returns the user's strategies, newest first
func (s *StrategyService) FindAll(ctx context.Context, userID uuid.UUID) ([]*models.Strategy, error) {
	strategies, err := s.strategyRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list strategies: %w", err)
	}
	return strategies, nil
}

// FindOne returns the strategy or models.ErrNotFound when userID does not own it
func (s *StrategyService) FindOne(ctx context.Context, userID, id uuid.UUID) (*models.Strategy, error) {
	strategy, err := s.strategyRepo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get strategy: %w", err)
	}
	return strategy, nil
}

// Update applies the set fields of patch
func (s *StrategyService) Update(ctx context.Context, userID, id uuid.UUID, patch models.StrategyPatch) (*models.Strategy, error) {
	strategy, err := s.FindOne(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	wasActive := strategy.IsActive
	patch.Apply(strategy)

	if err := s.strategyRepo.Update(ctx, strategy); err != nil {
		return nil, fmt.Errorf("failed to update strategy: %w", err)
	}

	metrics.RecordStrategyOperation("update")
	s.log.LogStrategyUpdated(id.String(), userID.String(), patchedFields(patch))
	if strategy.IsActive != wasActive {
		s.log.LogStrategyActivation(id.String(), strategy.Name, strategy.IsActive)
	}
	return strategy, nil
}

// Remove deletes the strategy together with its backtests. Archived result
// documents of those backtests are removed on a best-effort basis.
func (s *StrategyService) Remove(ctx context.Context, userID, id uuid.UUID) error {
	if _, err := s.FindOne(ctx, userID, id); err != nil {
		return err
	}

	archived := s.archivedBacktests(ctx, userID, id)

	if err := s.strategyRepo.Delete(ctx, userID, id); err != nil {
		return fmt.Errorf("failed to delete strategy: %w", err)
	}

	for _, backtestID := range archived {
		if err := s.archive.Delete(ctx, archive.BacktestKey(userID, backtestID)); err != nil {
			s.logger.WithError(err).WithField("backtest_id", backtestID).Warn("Failed to delete archived backtest result")
		}
	}

	metrics.RecordStrategyOperation("delete")
	s.log.LogStrategyDeleted(id.String(), userID.String())
	return nil
}

// archivedBacktests lists the backtests whose documents may be archived
func (s *StrategyService) archivedBacktests(ctx context.Context, userID, strategyID uuid.UUID) []uuid.UUID {
	if s.archive == nil {
		return nil
	}

	backtests, err := s.backtestRepo.ListByUser(ctx, userID, &strategyID)
	if err != nil {
		s.logger.WithError(err).WithField("strategy_id", strategyID).Warn("Failed to list backtests for archive cleanup")
		return nil
	}

	ids := make([]uuid.UUID, 0, len(backtests))
	for _, b := range backtests {
		ids = append(ids, b.ID)
	}
	return ids
}

func patchedFields(p models.StrategyPatch) []string {
	var fields []string
	if p.Name != nil {
		fields = append(fields, "name")
	}
	if p.Description != nil {
		fields = append(fields, "description")
	}
	if p.Code != nil {
		fields = append(fields, "code")
	}
	if p.IsActive != nil {
		fields = append(fields, "isActive")
	}
	return fields
}
