package calculator

import (
	"math"

	"AlphaSentinel/internal/model"
)

// Compute appends the indicator columns to a frame over the entire series so
// that later rows see full windows. The input series is not modified.
func Compute(series *model.PriceSeries) *Frame {
	f := NewFrame(series.Bars)
	closes := f.Column(ColClose)

	f.Set(ColSMA50, SMA(closes, 50))
	f.Set(ColEMA20, EMA(closes, 20))
	macd, signal := MACD(closes)
	f.Set(ColMACD, macd)
	f.Set(ColMACDSignal, signal)
	f.Set(ColRSI14, RSI(closes, 14))
	return f
}

var snapshotColumns = []string{ColRSI14, ColSMA50, ColEMA20, ColMACD, ColMACDSignal}

// Snapshot extracts the indicators of the most recent row where all of them are
// defined. Without such a row the last row is used and indicators that have not
// warmed up are left nil.
func Snapshot(f *Frame) model.IndicatorSnapshot {
	row := f.Len() - 1
	for i := row; i >= 0; i-- {
		if snapshotRowDefined(f, i) {
			row = i
			break
		}
	}
	get := func(name string) *float64 {
		v, ok := f.Value(name, row)
		if !ok || math.IsInf(v, 0) {
			return nil
		}
		return &v
	}
	return model.IndicatorSnapshot{
		RSI:        get(ColRSI14),
		SMA50:      get(ColSMA50),
		EMA20:      get(ColEMA20),
		MACD:       get(ColMACD),
		MACDSignal: get(ColMACDSignal),
	}
}

func snapshotRowDefined(f *Frame, i int) bool {
	for _, name := range snapshotColumns {
		if _, ok := f.Value(name, i); !ok {
			return false
		}
	}
	return true
}
