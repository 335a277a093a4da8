package model

import "time"

// OHLCV represents a single daily candlestick bar.
type OHLCV struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// PriceSeries holds chronologically ordered bars for one instrument.
// Gaps for non-trading days are expected and are not imputed.
type PriceSeries struct {
	Symbol    string
	Bars      []OHLCV
	FetchedAt time.Time
}

// Closes returns the close column.
func (s *PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		closes[i] = b.Close
	}
	return closes
}

// Latest returns the most recent bar. ok is false for an empty series.
func (s *PriceSeries) Latest() (bar OHLCV, ok bool) {
	if len(s.Bars) == 0 {
		return OHLCV{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// Fundamentals carries the non-price facts pulled alongside price data.
type Fundamentals struct {
	LongName        string   `json:"long_name,omitempty"`
	Sector          string   `json:"sector,omitempty"`
	PE              *float64 `json:"pe,omitempty"`
	BusinessSummary string   `json:"business_summary,omitempty"`
}

// NewsItem is a headline with an optional impact assigned after fusion.
type NewsItem struct {
	Title           string `json:"title"`
	Link            string `json:"link"`
	SentimentImpact string `json:"sentiment_impact,omitempty"`
}

// PeerInfo holds the metrics of one sector peer.
type PeerInfo struct {
	Ticker    string   `json:"ticker"`
	Price     float64  `json:"price"`
	PE        *float64 `json:"pe,omitempty"`
	ChangePct float64  `json:"change_pct"`
}
