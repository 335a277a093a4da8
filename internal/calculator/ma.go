package calculator

import (
	"math"

	"github.com/markcheno/go-talib"
)

// SMA computes the trailing simple moving average of values over period.
// Cells before the first full window are NaN.
func SMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nanSlice(len(values))
	}
	return mask(talib.Sma(values, period), period-1)
}

// EMA computes the exponentially weighted mean with smoothing factor
// 2/(span+1), seeded with the first value and without bias adjustment.
// NaN inputs are carried through until the first defined value.
func EMA(values []float64, span int) []float64 {
	out := nanSlice(len(values))
	if span <= 0 {
		return out
	}
	alpha := 2.0 / (float64(span) + 1.0)
	seeded := false
	var prev float64
	for i, v := range values {
		if math.IsNaN(v) {
			if seeded {
				out[i] = prev
			}
			continue
		}
		if !seeded {
			prev = v
			seeded = true
		} else {
			prev = alpha*v + (1-alpha)*prev
		}
		out[i] = prev
	}
	return out
}

// MACD returns the EMA-12 minus EMA-26 line and its span-9 signal line.
func MACD(closes []float64) (macd, signal []float64) {
	fast := EMA(closes, 12)
	slow := EMA(closes, 26)
	macd = make([]float64, len(closes))
	for i := range closes {
		macd[i] = fast[i] - slow[i]
	}
	return macd, EMA(macd, 9)
}
