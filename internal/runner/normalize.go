package runner

import (
	"strconv"
	"strings"
)

// leanKeys maps LEAN TotalPerformance statistics onto result document keys
var leanKeys = []struct {
	lean   string
	result string
}{
	{"TotalReturn", "totalReturn"},
	{"SharpeRatio", "sharpeRatio"},
	{"Drawdown", "maxDrawdown"},
	{"WinRate", "winRate"},
	{"PortfolioValue", "finalPortfolioValue"},
	{"TotalTrades", "totalTrades"},
	{"TotalProfit", "profitLoss"},
}

// NormalizeLeanResults flattens a raw LEAN document that carries
// TotalPerformance into the result document shape. Other documents are
// returned unchanged.
func NormalizeLeanResults(doc map[string]interface{}) Result {
	perf, ok := doc["TotalPerformance"].(map[string]interface{})
	if !ok {
		return Result(doc)
	}

	sections := []map[string]interface{}{perf}
	for _, name := range []string{"PortfolioStatistics", "TradeStatistics"} {
		if nested, ok := perf[name].(map[string]interface{}); ok {
			sections = append(sections, nested)
		}
	}

	out := Result{}
	for _, k := range leanKeys {
		for _, section := range sections {
			if v, ok := numeric(section[k.lean]); ok {
				out[k.result] = v
				break
			}
		}
	}
	return out
}

// numeric accepts JSON numbers and LEAN's formatted strings such as "12.5%"
// or "$1,000.00". Percent strings become fractions.
func numeric(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		s := strings.TrimSpace(n)
		percent := strings.HasSuffix(s, "%")
		s = strings.TrimSuffix(s, "%")
		s = strings.NewReplacer("$", "", ",", "").Replace(s)
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		if percent {
			f /= 100
		}
		return f, true
	default:
		return 0, false
	}
}
