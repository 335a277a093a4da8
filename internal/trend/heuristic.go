package trend

import (
	"context"

	"AlphaSentinel/internal/calculator"
	"AlphaSentinel/internal/model"
)

// Heuristic classifies from one row of RSI and MACD readings.
func Heuristic(rsi, macd, signal float64) model.TrendLabel {
	switch {
	case rsi > 60 && macd > signal:
		return model.TrendLabel{Trend: model.TrendBullish, Source: model.SourceHeuristic}
	case rsi < 40 && macd < signal:
		return model.TrendLabel{Trend: model.TrendBearish, Source: model.SourceHeuristic}
	default:
		return model.TrendLabel{Trend: model.TrendSideways, Source: model.SourceHeuristic}
	}
}

// HeuristicStrategy applies Heuristic to the latest fully-featured row.
type HeuristicStrategy struct{}

func (HeuristicStrategy) Name() string { return "heuristic" }

func (HeuristicStrategy) Classify(_ context.Context, _ string, rows *calculator.Frame) (model.TrendLabel, error) {
	last := rows.Len() - 1
	rsi, ok1 := rows.Value(calculator.ColRSI14, last)
	macd, ok2 := rows.Value(calculator.ColMACD, last)
	signal, ok3 := rows.Value(calculator.ColMACDSignal, last)
	if !ok1 || !ok2 || !ok3 {
		return model.TrendLabel{}, ErrNotApplicable
	}
	return Heuristic(rsi, macd, signal), nil
}
