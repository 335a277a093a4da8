// Package recorder keeps an append-only history of completed analyses.
package recorder

import (
	"context"
	"time"

	"AlphaSentinel/internal/model"
)

// AnalysisRecord is one history row.
type AnalysisRecord struct {
	AnalysisID     string    `json:"analysis_id"`
	Ticker         string    `json:"ticker"`
	RecordedAt     time.Time `json:"recorded_at"`
	Price          float64   `json:"latest_price"`
	Trend          string    `json:"trend"`
	Sentiment      float64   `json:"news_sentiment_score"`
	AlphaScore     float64   `json:"unified_alpha_score"`
	Recommendation string    `json:"recommendation"`
	PeerCount      int       `json:"peer_count"`
	RSI            *float64  `json:"rsi,omitempty"`
}

// FromReport flattens a report into a record.
func FromReport(r *model.AnalysisReport) *AnalysisRecord {
	return &AnalysisRecord{
		AnalysisID:     r.AnalysisID,
		Ticker:         r.Ticker,
		RecordedAt:     r.GeneratedAt,
		Price:          r.LatestPrice,
		Trend:          r.Trend,
		Sentiment:      r.NewsSentimentScore,
		AlphaScore:     r.AlphaScore,
		Recommendation: r.Recommendation,
		PeerCount:      len(r.Peers),
		RSI:            r.Indicators.RSI,
	}
}

// Recorder persists analysis history.
type Recorder interface {
	RecordAnalysis(ctx context.Context, rec *AnalysisRecord) error
	// History returns up to limit records for ticker, newest first.
	History(ctx context.Context, ticker string, limit int) ([]AnalysisRecord, error)
	Close() error
}
