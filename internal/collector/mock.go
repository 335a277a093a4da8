package collector

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"AlphaSentinel/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
// Symbols without configured bars get a generated series around Price.
type MockFetcher struct {
	Price        float64
	Bars         map[string][]model.OHLCV
	Quotes       []SearchQuote
	News         map[string][]model.NewsItem
	Fundamentals map[string]*model.Fundamentals
	// Errors makes every call for the given symbol (or search query) fail.
	Errors map[string]error
	// Known restricts generated history to these symbols when non-nil.
	Known map[string]bool

	mu    sync.Mutex
	calls []string
}

func (m *MockFetcher) Name() string { return "mock" }

// Calls returns the recorded "method:symbol" call log.
func (m *MockFetcher) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *MockFetcher) record(method, key string) error {
	m.mu.Lock()
	m.calls = append(m.calls, method+":"+key)
	m.mu.Unlock()
	if err, ok := m.Errors[key]; ok {
		return err
	}
	return nil
}

func (m *MockFetcher) FetchHistory(_ context.Context, symbol, rng, _ string) ([]model.OHLCV, error) {
	if err := m.record("history", symbol); err != nil {
		return nil, err
	}
	bars, ok := m.Bars[symbol]
	if !ok {
		if m.Known != nil && !m.Known[symbol] {
			return nil, nil
		}
		bars = GenerateBars(m.Price, rangeDays(rng))
	}
	if n := rangeDays(rng); len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	return bars, nil
}

func (m *MockFetcher) Search(_ context.Context, query string) ([]SearchQuote, error) {
	if err := m.record("search", query); err != nil {
		return nil, err
	}
	return m.Quotes, nil
}

func (m *MockFetcher) FetchNews(_ context.Context, symbol string, limit int) ([]model.NewsItem, error) {
	if err := m.record("news", symbol); err != nil {
		return nil, err
	}
	items := m.News[symbol]
	if len(items) > limit {
		items = items[:limit]
	}
	out := make([]model.NewsItem, len(items))
	copy(out, items)
	return out, nil
}

func (m *MockFetcher) FetchFundamentals(_ context.Context, symbol string) (*model.Fundamentals, error) {
	if err := m.record("fundamentals", symbol); err != nil {
		return nil, err
	}
	if f, ok := m.Fundamentals[symbol]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("mock: no fundamentals for %s", symbol)
}

// GenerateBars builds count daily bars drifting slowly upward around basePrice.
func GenerateBars(basePrice float64, count int) []model.OHLCV {
	bars := make([]model.OHLCV, count)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.OHLCV{
			Time:   start.AddDate(0, 0, i),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
	}
	return bars
}

// rangeDays maps a provider range string to an approximate trading-day count.
func rangeDays(rng string) int {
	switch strings.ToLower(rng) {
	case "1d":
		return 1
	case "5d":
		return 5
	case "1mo":
		return 22
	case "3mo":
		return 66
	case "6mo":
		return 126
	case "1y":
		return 252
	case "2y":
		return 504
	default:
		return 504
	}
}
