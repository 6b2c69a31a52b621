package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeLeanResultsTopLevel(t *testing.T) {
	doc := map[string]interface{}{
		"TotalPerformance": map[string]interface{}{
			"TotalReturn":    0.12,
			"SharpeRatio":    "1.4",
			"Drawdown":       "8.5%",
			"WinRate":        0.6,
			"PortfolioValue": "$112,000.00",
			"TotalTrades":    float64(30),
			"TotalProfit":    12000.0,
		},
	}

	got := NormalizeLeanResults(doc)

	assert.Equal(t, Result{
		"totalReturn":         0.12,
		"sharpeRatio":         1.4,
		"maxDrawdown":         0.085,
		"winRate":             0.6,
		"finalPortfolioValue": 112000.0,
		"totalTrades":         30.0,
		"profitLoss":          12000.0,
	}, got)
}

func TestNormalizeLeanResultsSkipsMissing(t *testing.T) {
	doc := map[string]interface{}{
		"TotalPerformance": map[string]interface{}{
			"SharpeRatio": "n/a",
			"WinRate":     0.5,
		},
	}

	assert.Equal(t, Result{"winRate": 0.5}, NormalizeLeanResults(doc))
}

func TestNormalizeLeanResultsPassesThroughFlatDocuments(t *testing.T) {
	doc := map[string]interface{}{"totalReturn": 0.2}
	assert.Equal(t, Result{"totalReturn": 0.2}, NormalizeLeanResults(doc))
}
