package strategy

import (
	"math"

	"AlphaSentinel/internal/model"
)

// baseScores maps a trend to its alpha base. Unlisted trends use defaultBase.
var baseScores = map[model.Trend]float64{
	model.TrendBullish:  60,
	model.TrendSideways: 40,
	model.TrendBearish:  20,
}

const (
	defaultBase     = 35
	sentimentWeight = 30
	minAlpha        = 0
	maxAlpha        = 100
)

// AlphaScore fuses a rendered trend label with a sentiment score in [-1,1]
// into a score in [0,100]. Source tags such as " (Heuristic)" are ignored.
func AlphaScore(label string, sentiment float64) float64 {
	base, ok := baseScores[model.BaseTrend(label)]
	if !ok {
		base = defaultBase
	}
	if math.IsNaN(sentiment) {
		sentiment = 0
	}
	return math.Max(minAlpha, math.Min(maxAlpha, base+sentiment*sentimentWeight))
}

// SectorPEAverage averages the defined P/E values of the peers and the
// subject. It is nil when no value is defined.
func SectorPEAverage(peers []model.PeerInfo, own *float64) *float64 {
	var sum float64
	var n int
	add := func(v *float64) {
		if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
			return
		}
		sum += *v
		n++
	}
	for i := range peers {
		add(peers[i].PE)
	}
	add(own)
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}
