package model

import "strings"

// Trend is the base direction of a trend label.
type Trend string

const (
	TrendBullish  Trend = "Bullish"
	TrendBearish  Trend = "Bearish"
	TrendSideways Trend = "Sideways"
	TrendNeutral  Trend = "Neutral"
	TrendUnknown  Trend = "Unknown"
)

// TrendSource records which path produced a label.
type TrendSource string

const (
	SourceModel     TrendSource = "model"
	SourceHeuristic TrendSource = "heuristic"
	// SourceNone marks labels produced without any classification, e.g. insufficient data.
	SourceNone TrendSource = "none"
)

const heuristicTag = " (Heuristic)"

// TrendLabel is a classified trend tagged with its source.
type TrendLabel struct {
	Trend  Trend
	Source TrendSource
}

// String renders the label the way reports carry it, e.g. "Bullish (Heuristic)".
func (l TrendLabel) String() string {
	if l.Source == SourceHeuristic {
		return string(l.Trend) + heuristicTag
	}
	return string(l.Trend)
}

// BaseTrend strips any source tag from a rendered label.
// "Bullish (Heuristic)" and "Bullish" both yield TrendBullish.
func BaseTrend(label string) Trend {
	label = strings.TrimSpace(label)
	if i := strings.Index(label, " ("); i >= 0 {
		label = label[:i]
	}
	return Trend(label)
}
