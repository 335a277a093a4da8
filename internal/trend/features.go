package trend

import (
	"AlphaSentinel/internal/calculator"
)

// Derived feature columns.
const (
	ColMACDHist      = "MACD_Hist"
	ColReturn21D     = "Return_21D"
	ColSupport20D    = "Support_20D"
	ColResistance20D = "Resistance_20D"
)

// FeatureColumns is the model input column order.
var FeatureColumns = []string{
	calculator.ColRSI14,
	calculator.ColSMA50,
	calculator.ColMACD,
	calculator.ColMACDSignal,
	ColMACDHist,
	ColReturn21D,
	ColSupport20D,
	ColResistance20D,
	calculator.ColVolume,
}

// Prepare extends an indicator frame with histogram, 21-day return, 20-day
// support and resistance, then drops every row with an undefined cell.
// The input frame is left untouched.
func Prepare(f *calculator.Frame) *calculator.Frame {
	out := calculator.NewFrame(f.Bars)
	for _, name := range f.Columns() {
		out.Set(name, f.Column(name))
	}

	closes := out.Column(calculator.ColClose)
	macd := out.Column(calculator.ColMACD)
	signal := out.Column(calculator.ColMACDSignal)
	hist := make([]float64, out.Len())
	for i := range hist {
		hist[i] = macd[i] - signal[i]
	}
	out.Set(ColMACDHist, hist)
	out.Set(ColReturn21D, calculator.PctChange(closes, 21))
	out.Set(ColSupport20D, calculator.RollingMin(closes, 20))
	out.Set(ColResistance20D, calculator.RollingMax(closes, 20))
	return out.DropIncomplete()
}
