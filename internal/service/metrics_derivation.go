package service

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yourusername/quail/internal/models"
	"github.com/yourusername/quail/internal/runner"
)

const percentPlaces = 4

type metricDefinition struct {
	key     string
	name    string
	unit    string
	percent bool
}

// Derived metrics in display order. Percent metrics arrive as fractions.
var metricDefinitions = []metricDefinition{
	{key: "totalReturn", name: "Total Return", unit: "%", percent: true},
	{key: "sharpeRatio", name: "Sharpe Ratio"},
	{key: "maxDrawdown", name: "Max Drawdown", unit: "%", percent: true},
	{key: "winRate", name: "Win Rate", unit: "%", percent: true},
	{key: "totalTrades", name: "Total Trades"},
	{key: "finalPortfolioValue", name: "Final Portfolio Value", unit: "USD"},
	{key: "profitLoss", name: "Profit/Loss", unit: "USD"},
}

// DeriveMetrics builds the metric rows of a completed backtest. Keys that are
// missing or not numeric produce no row.
func DeriveMetrics(backtestID uuid.UUID, result runner.Result) []*models.Metric {
	metrics := make([]*models.Metric, 0, len(metricDefinitions))

	for _, def := range metricDefinitions {
		value, ok := numericValue(result[def.key])
		if !ok {
			continue
		}
		if def.percent {
			value = value.Mul(decimal.NewFromInt(100)).Round(percentPlaces)
		}

		metadata, _ := json.Marshal(map[string]string{"source": def.key})
		metrics = append(metrics, &models.Metric{
			ID:         uuid.New(),
			BacktestID: backtestID,
			Name:       def.name,
			Value:      value.InexactFloat64(),
			Unit:       def.unit,
			Metadata:   metadata,
		})
	}

	return metrics
}

func numericValue(v interface{}) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), true
	case float32:
		return decimal.NewFromFloat32(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	default:
		return decimal.Zero, false
	}
}

// resultDocument marshals a runner result for the results column
func resultDocument(result runner.Result) (json.RawMessage, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode backtest result: %w", err)
	}
	return data, nil
}

// errorDocument is the results column of a failed backtest
func errorDocument(msg string) json.RawMessage {
	data, _ := json.Marshal(map[string]string{"error": msg})
	return data
}
