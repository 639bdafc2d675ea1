package ledger

import (
	"github.com/rxtech-lab/tradermind/internal/types"
	"github.com/shopspring/decimal"
)

// ComputeMetrics derives run metrics from a complete trade list.
// An empty list yields zero average return and zero win rate.
func ComputeMetrics(trades []types.Trade) types.RunMetrics {
	metrics := types.RunMetrics{
		TotalTrades:   len(trades),
		AvgReturn:     0,
		WinRate:       0,
		WinningTrades: 0,
		LosingTrades:  0,
		TotalPnL:      0,
	}

	if len(trades) == 0 {
		return metrics
	}

	sumReturn := decimal.Zero
	sumPnL := decimal.Zero

	for _, trade := range trades {
		sumReturn = sumReturn.Add(decimal.NewFromFloat(trade.ReturnPct))
		sumPnL = sumPnL.Add(decimal.NewFromFloat(trade.PnL))

		switch {
		case trade.ReturnPct > 0:
			metrics.WinningTrades++
		case trade.ReturnPct < 0:
			metrics.LosingTrades++
		}
	}

	count := decimal.NewFromInt(int64(len(trades)))
	metrics.AvgReturn = sumReturn.Div(count).InexactFloat64()
	metrics.WinRate = decimal.NewFromInt(int64(metrics.WinningTrades)).Div(count).InexactFloat64()
	metrics.TotalPnL = sumPnL.InexactFloat64()

	return metrics
}

// Summarize merges the trades of several symbols and recomputes the
// metrics over the merged list.
func Summarize(results []SymbolResult) ([]types.Trade, types.RunMetrics) {
	var trades []types.Trade
	for _, result := range results {
		trades = append(trades, result.Trades...)
	}

	return trades, ComputeMetrics(trades)
}
