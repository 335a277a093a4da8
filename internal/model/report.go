package model

import (
	"strings"
	"time"
)

// AnalysisReport is the composite outlook for one ticker.
type AnalysisReport struct {
	AnalysisID         string            `json:"analysis_id"`
	Ticker             string            `json:"ticker"`
	CompanyName        string            `json:"company_name"`
	LatestPrice        float64           `json:"latest_price"`
	Trend              string            `json:"trend"`
	NewsSentimentScore float64           `json:"news_sentiment_score"`
	AlphaScore         float64           `json:"unified_alpha_score"`
	Recommendation     string            `json:"recommendation"`
	Headlines          []NewsItem        `json:"key_headlines"`
	Summary            string            `json:"summary"`
	BusinessSummary    string            `json:"business_summary,omitempty"`
	Indicators         IndicatorSnapshot `json:"indicators"`
	Peers              []PeerInfo        `json:"peers"`
	SectorPEAvg        *float64          `json:"sector_pe_avg"`
	GeneratedAt        time.Time         `json:"generated_at"`
}

// Complete reports whether the report may be cached: it needs peers and a
// trend label that is neither a placeholder nor a failure neutral.
func (r *AnalysisReport) Complete() bool {
	if r == nil || len(r.Peers) == 0 {
		return false
	}
	if r.Trend == "" || strings.Contains(r.Trend, string(TrendUnknown)) {
		return false
	}
	// Heuristic and model paths never emit a bare Neutral; it only comes from
	// a frame that had no fully-featured rows.
	return r.Trend != string(TrendNeutral)
}

// ErrorKind classifies terminal failures surfaced to callers.
type ErrorKind string

const (
	ErrorNotFound ErrorKind = "not_found"
	ErrorNoData   ErrorKind = "no_data"
	ErrorInternal ErrorKind = "internal"
)

// ErrorResult is the structured error object returned instead of a report.
type ErrorResult struct {
	Kind  ErrorKind `json:"kind"`
	Error string    `json:"error"`
}
