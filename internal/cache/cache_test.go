package cache

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AlphaSentinel/internal/model"
)

func newStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "cache.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func completeReport(ticker string) *model.AnalysisReport {
	pe := 22.5
	return &model.AnalysisReport{
		AnalysisID:     "a1",
		Ticker:         ticker,
		CompanyName:    "Tata Consultancy",
		LatestPrice:    3500,
		Trend:          "Bullish (Heuristic)",
		AlphaScore:     72,
		Recommendation: "BUY",
		Headlines:      []model.NewsItem{{Title: "t", Link: "l", SentimentImpact: "up"}},
		Peers:          []model.PeerInfo{{Ticker: "INFY.NS", Price: 1500, PE: &pe, ChangePct: 1.2}},
		SectorPEAvg:    &pe,
		GeneratedAt:    time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestCache_RoundTripIsByteIdentical(t *testing.T) {
	clk := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	c := New(newStore(t), time.Hour, zerolog.Nop(), WithClock(clk.now))
	ctx := context.Background()

	r := completeReport("TCS.NS")
	stored, err := c.Put(ctx, r)
	require.NoError(t, err)
	require.True(t, stored)

	want, err := json.Marshal(r)
	require.NoError(t, err)

	clk.t = clk.t.Add(59 * time.Minute)
	got, status := c.Lookup(ctx, "TCS.NS")
	assert.Equal(t, StatusHit, status)
	assert.Equal(t, want, got)

	decoded, status := c.Get(ctx, "TCS.NS")
	require.Equal(t, StatusHit, status)
	assert.Equal(t, r.Peers, decoded.Peers)
	assert.Equal(t, r.Trend, decoded.Trend)
}

func TestCache_ExpiredAfterTTL(t *testing.T) {
	clk := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	c := New(newStore(t), time.Hour, zerolog.Nop(), WithClock(clk.now))
	ctx := context.Background()

	_, err := c.Put(ctx, completeReport("TCS.NS"))
	require.NoError(t, err)

	clk.t = clk.t.Add(61 * time.Minute)
	got, status := c.Lookup(ctx, "TCS.NS")
	assert.Equal(t, StatusExpired, status)
	assert.Nil(t, got)
}

func TestCache_MissingTicker(t *testing.T) {
	c := New(newStore(t), time.Hour, zerolog.Nop())
	_, status := c.Lookup(context.Background(), "NOPE.NS")
	assert.Equal(t, StatusMiss, status)
}

func TestCache_StalePayloads(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"no peers field", `{"ticker":"TCS.NS","trend":"Bullish"}`},
		{"null peers", `{"ticker":"TCS.NS","trend":"Bullish","peers":null}`},
		{"empty peers", `{"ticker":"TCS.NS","trend":"Bullish","peers":[]}`},
		{"unknown trend", `{"ticker":"TCS.NS","trend":"Unknown","peers":[{"ticker":"INFY.NS"}]}`},
		{"no trend", `{"ticker":"TCS.NS","peers":[{"ticker":"INFY.NS"}]}`},
		{"garbage", `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t)
			now := time.Now()
			require.NoError(t, store.Put(context.Background(), Entry{Ticker: "TCS.NS", Payload: []byte(tt.payload), WrittenAt: now}))

			c := New(store, time.Hour, zerolog.Nop(), WithClock(func() time.Time { return now }))
			got, status := c.Lookup(context.Background(), "TCS.NS")
			assert.Equal(t, StatusStale, status)
			assert.Nil(t, got)
		})
	}
}

func TestCache_PutSkipsIncompleteReports(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *model.AnalysisReport)
	}{
		{"no peers", func(r *model.AnalysisReport) { r.Peers = nil }},
		{"unknown trend", func(r *model.AnalysisReport) { r.Trend = "Unknown" }},
		{"neutral by failure", func(r *model.AnalysisReport) { r.Trend = "Neutral" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t)
			c := New(store, time.Hour, zerolog.Nop())
			r := completeReport("TCS.NS")
			tt.mutate(r)

			stored, err := c.Put(context.Background(), r)
			require.NoError(t, err)
			assert.False(t, stored)

			e, err := store.Get(context.Background(), "TCS.NS")
			require.NoError(t, err)
			assert.Nil(t, e)
		})
	}
}

func TestCache_OverwriteKeepsLatest(t *testing.T) {
	c := New(newStore(t), time.Hour, zerolog.Nop())
	ctx := context.Background()

	first := completeReport("TCS.NS")
	second := completeReport("TCS.NS")
	second.AlphaScore = 10
	_, err := c.Put(ctx, first)
	require.NoError(t, err)
	_, err = c.Put(ctx, second)
	require.NoError(t, err)

	got, status := c.Get(ctx, "TCS.NS")
	require.Equal(t, StatusHit, status)
	assert.Equal(t, 10.0, got.AlphaScore)
}

func TestSQLiteStore_SelfHealsDroppedTable(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, Entry{Ticker: "TCS.NS", Payload: []byte(`{}`), WrittenAt: time.Now()}))

	_, err := store.db.Exec(`DROP TABLE analysis_cache`)
	require.NoError(t, err)

	e, err := store.Get(ctx, "TCS.NS")
	require.NoError(t, err)
	assert.Nil(t, e, "read against a missing table is a miss")

	require.NoError(t, store.Put(ctx, Entry{Ticker: "TCS.NS", Payload: []byte(`{"a":1}`), WrittenAt: time.Now()}))
	e, err = store.Get(ctx, "TCS.NS")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, `{"a":1}`, string(e.Payload))
}

func TestSQLiteStore_PutRecreatesDroppedTable(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	_, err := store.db.Exec(`DROP TABLE analysis_cache`)
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, Entry{Ticker: "INFY.NS", Payload: []byte(`{}`), WrittenAt: time.Now()}))
	e, err := store.Get(ctx, "INFY.NS")
	require.NoError(t, err)
	assert.NotNil(t, e)
}

func TestCache_PruneRemovesExpired(t *testing.T) {
	store := newStore(t)
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, Entry{Ticker: "OLD.NS", Payload: []byte(`{}`), WrittenAt: base}))
	require.NoError(t, store.Put(ctx, Entry{Ticker: "NEW.NS", Payload: []byte(`{}`), WrittenAt: base.Add(5 * time.Hour)}))

	c := New(store, 2*time.Hour, zerolog.Nop(), WithClock(func() time.Time { return base.Add(6 * time.Hour) }))
	n, err := c.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	e, err := store.Get(ctx, "OLD.NS")
	require.NoError(t, err)
	assert.Nil(t, e)
	e, err = store.Get(ctx, "NEW.NS")
	require.NoError(t, err)
	assert.NotNil(t, e)
}

func TestNoopStore(t *testing.T) {
	c := New(NewNoopStore(), time.Hour, zerolog.Nop())
	stored, err := c.Put(context.Background(), completeReport("TCS.NS"))
	require.NoError(t, err)
	assert.True(t, stored)

	_, status := c.Lookup(context.Background(), "TCS.NS")
	assert.Equal(t, StatusMiss, status)
}
