package calculator

// RSI computes the relative strength index from rolling means of gains and
// losses over period. Row 0 has no prior close and counts as a zero change,
// so the first defined row is period-1. A window with no losses yields 100.
func RSI(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if period <= 0 || len(closes) < period {
		return out
	}

	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains[i] = change
		} else {
			losses[i] = -change
		}
	}

	var sumGain, sumLoss float64
	for i := 0; i < period; i++ {
		sumGain += gains[i]
		sumLoss += losses[i]
	}
	for i := period - 1; i < len(closes); i++ {
		if i >= period {
			sumGain += gains[i] - gains[i-period]
			sumLoss += losses[i] - losses[i-period]
		}
		out[i] = rsiValue(sumGain/float64(period), sumLoss/float64(period))
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	// Running sums can drift slightly below zero.
	if avgLoss <= 1e-12 {
		return 100.0
	}
	if avgGain < 0 {
		avgGain = 0
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs)
}
