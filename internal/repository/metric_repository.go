package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/yourusername/quail/internal/database"
	"github.com/yourusername/quail/internal/models"
)

// PostgresMetricRepository implements MetricRepository for PostgreSQL
type PostgresMetricRepository struct {
	db *database.DB
}

// NewPostgresMetricRepository creates a new metric repository
func NewPostgresMetricRepository(db *database.DB) MetricRepository {
	return &PostgresMetricRepository{db: db}
}

// InsertBatch inserts the metrics of one backtest using COPY
func (m *PostgresMetricRepository) InsertBatch(ctx context.Context, metrics []*models.Metric) error {
	if len(metrics) == 0 {
		return nil
	}

	columns := []string{"id", "backtest_id", "name", "value", "unit", "metadata"}

	copyFromSource := make([][]any, len(metrics))
	for i, metric := range metrics {
		copyFromSource[i] = []any{
			metric.ID, metric.BacktestID, metric.Name, metric.Value, metric.Unit, nullableJSON(metric.Metadata),
		}
	}

	count, err := m.db.Conn(ctx).CopyFrom(ctx, pgx.Identifier{"metrics"}, columns, pgx.CopyFromRows(copyFromSource))
	if err != nil {
		return fmt.Errorf("failed to batch insert metrics: %w", err)
	}

	if count != int64(len(metrics)) {
		return fmt.Errorf("inserted %d rows, expected %d", count, len(metrics))
	}

	return nil
}

// ListByBacktest retrieves the metrics of a backtest in insertion order
func (m *PostgresMetricRepository) ListByBacktest(ctx context.Context, backtestID uuid.UUID) ([]models.Metric, error) {
	query := `
		SELECT id, backtest_id, name, value, unit, metadata, created_at
		FROM metrics
		WHERE backtest_id = $1
		ORDER BY created_at ASC, name ASC
	`

	rows, err := m.db.Conn(ctx).Query(ctx, query, backtestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics: %w", err)
	}
	defer rows.Close()

	metrics := []models.Metric{}
	for rows.Next() {
		var metric models.Metric
		var metadata []byte
		if err := rows.Scan(
			&metric.ID, &metric.BacktestID, &metric.Name, &metric.Value, &metric.Unit, &metadata, &metric.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		if metadata != nil {
			metric.Metadata = metadata
		}
		metrics = append(metrics, metric)
	}

	return metrics, rows.Err()
}
