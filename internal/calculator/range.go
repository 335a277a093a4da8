package calculator

import (
	"github.com/markcheno/go-talib"
)

// RollingMax returns the highest value of each trailing window of period cells.
func RollingMax(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nanSlice(len(values))
	}
	return mask(talib.Max(values, period), period-1)
}

// RollingMin returns the lowest value of each trailing window of period cells.
func RollingMin(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nanSlice(len(values))
	}
	return mask(talib.Min(values, period), period-1)
}

// PctChange returns the fractional change of each value against the value
// period rows earlier.
func PctChange(values []float64, period int) []float64 {
	if period <= 0 || len(values) <= period {
		return nanSlice(len(values))
	}
	return mask(talib.Rocp(values, period), period)
}
