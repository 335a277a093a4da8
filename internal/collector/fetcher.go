package collector

import (
	"context"

	"AlphaSentinel/internal/model"
)

// Fetcher defines the market-data provider the engine depends on.
type Fetcher interface {
	// FetchHistory returns chronologically ordered bars for rng (e.g. "2y") at interval (e.g. "1d").
	// An unknown symbol may yield an empty slice rather than an error.
	FetchHistory(ctx context.Context, symbol, rng, interval string) ([]model.OHLCV, error)
	// Search runs a free-text symbol search with best-effort ranking.
	Search(ctx context.Context, query string) ([]SearchQuote, error)
	// FetchNews returns up to limit recent headlines for symbol.
	FetchNews(ctx context.Context, symbol string, limit int) ([]model.NewsItem, error)
	// FetchFundamentals returns sector, P/E and profile facts for symbol.
	FetchFundamentals(ctx context.Context, symbol string) (*model.Fundamentals, error)
	Name() string
}

// SearchQuote is one symbol search hit.
type SearchQuote struct {
	Symbol    string `json:"symbol"`
	ShortName string `json:"shortname"`
	Exchange  string `json:"exchange"`
	QuoteType string `json:"quoteType"`
}

// SymbolExists probes for a single day of history. Any error counts as absent.
func SymbolExists(ctx context.Context, f Fetcher, symbol string) bool {
	bars, err := f.FetchHistory(ctx, symbol, "1d", "1d")
	return err == nil && len(bars) > 0
}
