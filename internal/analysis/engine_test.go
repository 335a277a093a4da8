package analysis

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AlphaSentinel/internal/advisor"
	"AlphaSentinel/internal/cache"
	"AlphaSentinel/internal/collector"
	"AlphaSentinel/internal/model"
	"AlphaSentinel/internal/recorder"
	"AlphaSentinel/internal/resolver"
	"AlphaSentinel/internal/trend"
)

type mapResolver map[string]string

func (m mapResolver) Resolve(_ context.Context, name string) string {
	if t, ok := m[name]; ok {
		return t
	}
	return resolver.NotFound
}

type fakePeers []string

func (f fakePeers) FindPeers(context.Context, string) ([]string, error) { return f, nil }

type fakeJudge struct {
	raw   string
	err   error
	calls int32
}

func (j *fakeJudge) Judge(_ context.Context, req advisor.JudgeRequest) (string, error) {
	atomic.AddInt32(&j.calls, 1)
	return j.raw, j.err
}

type memRecorder struct {
	mu   sync.Mutex
	recs []*recorder.AnalysisRecord
}

func (m *memRecorder) RecordAnalysis(_ context.Context, r *recorder.AnalysisRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, r)
	return nil
}
func (m *memRecorder) History(context.Context, string, int) ([]recorder.AnalysisRecord, error) {
	return nil, nil
}
func (m *memRecorder) Close() error { return nil }

func pe(v float64) *float64 { return &v }

const goodJudgment = `{"summary":"Solid momentum.","sentiment_score":0.5,"recommendation":"BUY","news_impact":["positive","neutral"]}`

type fixture struct {
	fetcher  *collector.MockFetcher
	judge    *fakeJudge
	recorder *memRecorder
	engine   *Engine
}

func newFixture(t *testing.T, peers []string) *fixture {
	t.Helper()
	f := &fixture{
		fetcher: &collector.MockFetcher{
			Price: 3500,
			News: map[string][]model.NewsItem{
				"TCS.NS": {{Title: "TCS wins deal", Link: "l1"}, {Title: "IT spending steady", Link: "l2"}},
			},
			Fundamentals: map[string]*model.Fundamentals{
				"TCS.NS":  {LongName: "Tata Consultancy Services Limited", Sector: "Technology", PE: pe(30), BusinessSummary: "IT services."},
				"INFY.NS": {PE: pe(20)},
			},
		},
		judge:    &fakeJudge{raw: goodJudgment},
		recorder: &memRecorder{},
	}
	store, err := cache.NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	f.engine = New(Deps{
		Resolver:   mapResolver{"Tata Consultancy": "TCS.NS", "Ghost Corp": "GHOST.NS"},
		Collector:  collector.NewCollector(f.fetcher, fakePeers(peers), collector.Options{ExchangeSuffix: ".NS"}, zerolog.Nop()),
		Classifier: trend.NewDefaultClassifier(&trend.FileModelStore{Dir: t.TempDir(), Suffix: ".NS"}, zerolog.Nop()),
		Judge:      f.judge,
		Cache:      cache.New(store, time.Hour, zerolog.Nop()),
		Recorder:   f.recorder,
		Timeout:    time.Second,
	}, zerolog.Nop())
	return f
}

func (f *fixture) historyCalls(symbol string) int {
	n := 0
	for _, c := range f.fetcher.Calls() {
		if c == "history:"+symbol {
			n++
		}
	}
	return n
}

func TestAnalyze_FullPipeline(t *testing.T) {
	f := newFixture(t, []string{"INFY.NS", "WIPRO.NS"})

	res := f.engine.Analyze(context.Background(), "Tata Consultancy")
	require.True(t, res.OK(), "unexpected error: %+v", res.Err)
	assert.Equal(t, cache.StatusMiss, res.Cache)

	r := res.Report
	assert.NotEmpty(t, r.AnalysisID)
	assert.Equal(t, "TCS.NS", r.Ticker)
	assert.Equal(t, "Tata Consultancy Services Limited", r.CompanyName)
	assert.Equal(t, "IT services.", r.BusinessSummary)
	assert.Greater(t, r.LatestPrice, 0.0)
	assert.True(t, strings.HasSuffix(r.Trend, "(Heuristic)"), r.Trend)
	assert.Equal(t, 0.5, r.NewsSentimentScore)
	assert.Equal(t, "BUY", r.Recommendation)
	assert.Equal(t, "Solid momentum.", r.Summary)

	require.Len(t, r.Headlines, 2)
	assert.Equal(t, "positive", r.Headlines[0].SentimentImpact)
	assert.Equal(t, "neutral", r.Headlines[1].SentimentImpact)

	require.Len(t, r.Peers, 2)
	assert.Equal(t, "INFY.NS", r.Peers[0].Ticker)
	assert.Equal(t, "WIPRO.NS", r.Peers[1].Ticker)
	require.NotNil(t, r.SectorPEAvg)
	assert.InDelta(t, 25.0, *r.SectorPEAvg, 1e-9)

	require.NotNil(t, r.Indicators.RSI)
	require.NotNil(t, r.Indicators.SMA50)
	assert.GreaterOrEqual(t, r.AlphaScore, 0.0)
	assert.LessOrEqual(t, r.AlphaScore, 100.0)

	require.Len(t, f.recorder.recs, 1)
	assert.Equal(t, r.AnalysisID, f.recorder.recs[0].AnalysisID)
}

func TestAnalyze_SecondCallServedFromCache(t *testing.T) {
	f := newFixture(t, []string{"INFY.NS"})
	ctx := context.Background()

	first := f.engine.Analyze(ctx, "Tata Consultancy")
	require.True(t, first.OK())
	second := f.engine.Analyze(ctx, "Tata Consultancy")
	require.True(t, second.OK())

	assert.Equal(t, cache.StatusHit, second.Cache)
	assert.Equal(t, first.Report.AnalysisID, second.Report.AnalysisID)
	assert.Equal(t, 1, f.historyCalls("TCS.NS"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.judge.calls))
}

func TestAnalyze_RefreshBypassesCache(t *testing.T) {
	f := newFixture(t, []string{"INFY.NS"})
	ctx := context.Background()

	first := f.engine.Analyze(ctx, "Tata Consultancy")
	require.True(t, first.OK())
	refreshed := f.engine.Refresh(ctx, "Tata Consultancy")
	require.True(t, refreshed.OK())

	assert.NotEqual(t, first.Report.AnalysisID, refreshed.Report.AnalysisID)
	assert.Equal(t, 2, f.historyCalls("TCS.NS"))

	cached := f.engine.Analyze(ctx, "Tata Consultancy")
	assert.Equal(t, refreshed.Report.AnalysisID, cached.Report.AnalysisID)
}

func TestAnalyze_ReportWithoutPeersIsNotCached(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first := f.engine.Analyze(ctx, "Tata Consultancy")
	require.True(t, first.OK())
	assert.Empty(t, first.Report.Peers)
	require.NotNil(t, first.Report.SectorPEAvg, "own P/E still counts")
	assert.InDelta(t, 30.0, *first.Report.SectorPEAvg, 1e-9)

	second := f.engine.Analyze(ctx, "Tata Consultancy")
	require.True(t, second.OK())
	assert.Equal(t, cache.StatusMiss, second.Cache)
	assert.Equal(t, 2, f.historyCalls("TCS.NS"))
}

func TestAnalyze_NotFound(t *testing.T) {
	f := newFixture(t, nil)

	res := f.engine.Analyze(context.Background(), "Nobody Inc")
	require.False(t, res.OK())
	assert.Equal(t, model.ErrorNotFound, res.Err.Kind)
	assert.Contains(t, res.Err.Error, "Nobody Inc")
	assert.Empty(t, f.fetcher.Calls())

	res = f.engine.Analyze(context.Background(), "   ")
	require.False(t, res.OK())
	assert.Equal(t, model.ErrorNotFound, res.Err.Kind)
}

func TestAnalyze_EmptyPriceSeriesIsStructuredError(t *testing.T) {
	f := newFixture(t, []string{"INFY.NS"})
	f.fetcher.Bars = map[string][]model.OHLCV{"GHOST.NS": {}}

	res := f.engine.Analyze(context.Background(), "Ghost Corp")
	require.False(t, res.OK())
	assert.Equal(t, model.ErrorNoData, res.Err.Kind)
	assert.Equal(t, "No market data found for GHOST.NS", res.Err.Error)
	assert.Empty(t, f.recorder.recs)
}

func TestAnalyze_JudgeFailureUsesDefault(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		err  error
	}{
		{"collaborator error", "", errors.New("rate limited")},
		{"unparseable output", "I think you should buy it.", nil},
		{"invalid score", `{"summary":"s","sentiment_score":9,"recommendation":"BUY"}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, []string{"INFY.NS"})
			f.judge.raw, f.judge.err = tt.raw, tt.err

			res := f.engine.Analyze(context.Background(), "Tata Consultancy")
			require.True(t, res.OK())
			r := res.Report
			assert.Equal(t, "HOLD", r.Recommendation)
			assert.Equal(t, 0.0, r.NewsSentimentScore)
			assert.Equal(t, "Technical analysis complete. Trend is "+r.Trend, r.Summary)
			for _, h := range r.Headlines {
				assert.Empty(t, h.SentimentImpact)
			}

			base := map[string]float64{"Bullish": 60, "Sideways": 40, "Bearish": 20}[string(model.BaseTrend(r.Trend))]
			assert.Equal(t, base, r.AlphaScore)
		})
	}
}

type panickingCollector struct{}

func (panickingCollector) Collect(context.Context, string) (*collector.Bundle, error) {
	panic("unexpected nil map")
}

func TestAnalyze_PanicBecomesInternalError(t *testing.T) {
	e := New(Deps{
		Resolver:   mapResolver{"Tata Consultancy": "TCS.NS"},
		Collector:  panickingCollector{},
		Classifier: trend.NewDefaultClassifier(nil, zerolog.Nop()),
	}, zerolog.Nop())

	res := e.Analyze(context.Background(), "Tata Consultancy")
	require.False(t, res.OK())
	assert.Equal(t, model.ErrorInternal, res.Err.Kind)
	assert.Contains(t, res.Err.Error, "unexpected nil map")
}

type blockingCollector struct {
	inner   *collector.Collector
	entered chan struct{}
	release chan struct{}
	calls   int32
}

func (b *blockingCollector) Collect(ctx context.Context, ticker string) (*collector.Bundle, error) {
	if atomic.AddInt32(&b.calls, 1) == 1 {
		close(b.entered)
	}
	<-b.release
	return b.inner.Collect(ctx, ticker)
}

func TestAnalyze_ConcurrentSameTickerSharesOneRun(t *testing.T) {
	m := &collector.MockFetcher{
		Price: 100,
		News:  map[string][]model.NewsItem{"TCS.NS": {{Title: "TCS wins deal", Link: "l1"}}},
	}
	bc := &blockingCollector{
		inner:   collector.NewCollector(m, fakePeers{"INFY.NS"}, collector.Options{ExchangeSuffix: ".NS"}, zerolog.Nop()),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	e := New(Deps{
		Resolver:   mapResolver{"A": "TCS.NS", "B": "TCS.NS"},
		Collector:  bc,
		Classifier: trend.NewDefaultClassifier(nil, zerolog.Nop()),
	}, zerolog.Nop())

	results := make([]*Result, 2)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0] = e.Analyze(context.Background(), "A")
	}()
	<-bc.entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1] = e.Analyze(context.Background(), "B")
	}()
	time.Sleep(100 * time.Millisecond)
	close(bc.release)
	wg.Wait()

	require.True(t, results[0].OK())
	require.True(t, results[1].OK())
	assert.Equal(t, int32(1), atomic.LoadInt32(&bc.calls))
	assert.Equal(t, results[0].Report.AnalysisID, results[1].Report.AnalysisID)

	// Each waiter owns its report and keeps its own query as the name when the
	// provider had none.
	assert.Equal(t, "A", results[0].Report.CompanyName)
	assert.Equal(t, "B", results[1].Report.CompanyName)
	require.Len(t, results[0].Report.Headlines, 1)
	require.Len(t, results[1].Report.Headlines, 1)
	results[0].Report.Headlines[0].SentimentImpact = "changed"
	assert.Empty(t, results[1].Report.Headlines[0].SentimentImpact)
}

// gatedCollector blocks until released, then honours cancellation the way a
// network-backed fetcher would.
type gatedCollector struct {
	inner   *collector.Collector
	entered chan struct{}
	release chan struct{}
	calls   int32
}

func (g *gatedCollector) Collect(ctx context.Context, ticker string) (*collector.Bundle, error) {
	if atomic.AddInt32(&g.calls, 1) == 1 {
		close(g.entered)
	}
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return g.inner.Collect(ctx, ticker)
}

func TestAnalyze_LeaderCancellationDoesNotFailFollower(t *testing.T) {
	m := &collector.MockFetcher{Price: 100}
	gc := &gatedCollector{
		inner:   collector.NewCollector(m, fakePeers{"INFY.NS"}, collector.Options{ExchangeSuffix: ".NS"}, zerolog.Nop()),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	e := New(Deps{
		Resolver:   mapResolver{"A": "TCS.NS", "B": "TCS.NS"},
		Collector:  gc,
		Classifier: trend.NewDefaultClassifier(nil, zerolog.Nop()),
		Timeout:    time.Second,
	}, zerolog.Nop())

	leaderCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var leader, follower *Result
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		leader = e.Analyze(leaderCtx, "A")
	}()
	<-gc.entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		follower = e.Analyze(context.Background(), "B")
	}()
	time.Sleep(100 * time.Millisecond)

	cancel()
	time.Sleep(50 * time.Millisecond)
	close(gc.release)
	wg.Wait()

	require.False(t, leader.OK())
	assert.Equal(t, model.ErrorInternal, leader.Err.Kind)
	require.True(t, follower.OK(), "follower failed: %+v", follower.Err)
	assert.Equal(t, "TCS.NS", follower.Report.Ticker)
	assert.Equal(t, int32(1), atomic.LoadInt32(&gc.calls))
}

func TestAnalyze_PriceFetchFailureIsInternal(t *testing.T) {
	f := newFixture(t, []string{"INFY.NS"})
	f.fetcher.Errors = map[string]error{"TCS.NS": context.DeadlineExceeded}

	res := f.engine.Analyze(context.Background(), "Tata Consultancy")
	require.False(t, res.OK())
	assert.Equal(t, model.ErrorInternal, res.Err.Kind)
	assert.Contains(t, res.Err.Error, "deadline exceeded")
}

type hangingJudge struct{}

func (hangingJudge) Judge(ctx context.Context, _ advisor.JudgeRequest) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestAnalyze_HangingJudgeTimesOutToDefault(t *testing.T) {
	f := newFixture(t, []string{"INFY.NS"})
	f.engine.deps.Judge = hangingJudge{}
	f.engine.deps.Timeout = 50 * time.Millisecond

	started := time.Now()
	res := f.engine.Analyze(context.Background(), "Tata Consultancy")
	require.True(t, res.OK(), "unexpected error: %+v", res.Err)
	assert.Less(t, time.Since(started), 5*time.Second)

	r := res.Report
	assert.Equal(t, "HOLD", r.Recommendation)
	assert.Equal(t, 0.0, r.NewsSentimentScore)
	assert.Equal(t, "Technical analysis complete. Trend is "+r.Trend, r.Summary)
	require.Len(t, r.Headlines, 2)
	for _, h := range r.Headlines {
		assert.Empty(t, h.SentimentImpact)
	}
}
