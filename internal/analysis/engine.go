// Package analysis runs the end-to-end outlook for a company: resolve,
// serve from cache, otherwise acquire, compute, classify, fuse and store.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"AlphaSentinel/internal/advisor"
	"AlphaSentinel/internal/cache"
	"AlphaSentinel/internal/calculator"
	"AlphaSentinel/internal/collector"
	"AlphaSentinel/internal/model"
	"AlphaSentinel/internal/recorder"
	"AlphaSentinel/internal/resolver"
	"AlphaSentinel/internal/strategy"
)

// Resolver maps a company name to a ticker or resolver.NotFound.
type Resolver interface {
	Resolve(ctx context.Context, companyName string) string
}

// Collector acquires the data bundle for a ticker.
type Collector interface {
	Collect(ctx context.Context, ticker string) (*collector.Bundle, error)
}

// Classifier labels the trend of an indicator frame.
type Classifier interface {
	Classify(ctx context.Context, symbol string, indicators *calculator.Frame) model.TrendLabel
}

// Judge is the sentiment-fusion collaborator; it returns raw output.
type Judge interface {
	Judge(ctx context.Context, req advisor.JudgeRequest) (string, error)
}

// Result is either a report or a structured error.
type Result struct {
	Report *model.AnalysisReport
	Err    *model.ErrorResult
	// Cache is the lookup outcome that led to this result.
	Cache cache.Status
}

// OK reports whether a report was produced.
func (r *Result) OK() bool { return r != nil && r.Report != nil }

func failure(kind model.ErrorKind, format string, args ...any) *Result {
	return &Result{Err: &model.ErrorResult{Kind: kind, Error: fmt.Sprintf(format, args...)}}
}

// Deps are the collaborators of an Engine. Cache, Recorder and Judge are optional.
type Deps struct {
	Resolver   Resolver
	Collector  Collector
	Classifier Classifier
	Judge      Judge
	Cache      *cache.Cache
	Recorder   recorder.Recorder
	// Timeout bounds the judgment call. Zero disables it.
	Timeout time.Duration
}

// Engine orchestrates one analysis per call. Concurrent calls for the same
// ticker share a single run.
type Engine struct {
	deps   Deps
	flight singleflight.Group
	now    func() time.Time
	newID  func() string
	log    zerolog.Logger
}

// New creates an engine.
func New(deps Deps, log zerolog.Logger) *Engine {
	return &Engine{
		deps:  deps,
		now:   time.Now,
		newID: uuid.NewString,
		log:   log.With().Str("component", "analysis").Logger(),
	}
}

// Analyze returns the outlook for companyName, from cache when a fresh
// complete entry exists. It never panics and never returns nil.
func (e *Engine) Analyze(ctx context.Context, companyName string) *Result {
	return e.analyze(ctx, companyName, true)
}

// Refresh recomputes the outlook, ignoring any cached entry, and stores it.
func (e *Engine) Refresh(ctx context.Context, companyName string) *Result {
	return e.analyze(ctx, companyName, false)
}

func (e *Engine) analyze(ctx context.Context, companyName string, useCache bool) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Interface("panic", r).Str("company", companyName).Bytes("stack", debug.Stack()).Msg("analysis panicked")
			res = failure(model.ErrorInternal, "internal error: %v", r)
		}
	}()

	name := strings.TrimSpace(companyName)
	if name == "" {
		return failure(model.ErrorNotFound, "company name is required")
	}

	ticker := e.deps.Resolver.Resolve(ctx, name)
	if ticker == "" || ticker == resolver.NotFound {
		e.log.Info().Str("company", name).Msg("ticker not found")
		return failure(model.ErrorNotFound, "Ticker not found for '%s'", name)
	}

	status := cache.StatusMiss
	if e.deps.Cache != nil && useCache {
		var cached *model.AnalysisReport
		cached, status = e.deps.Cache.Get(ctx, ticker)
		if status == cache.StatusHit {
			return &Result{Report: cached, Cache: status}
		}
	}

	// The shared run ignores the leader's cancellation; each collaborator call
	// is bounded by Timeout instead.
	runCtx := context.WithoutCancel(ctx)
	ch := e.flight.DoChan(ticker, func() (any, error) {
		return e.run(runCtx, name, ticker)
	})

	var out singleflight.Result
	select {
	case out = <-ch:
	case <-ctx.Done():
		e.log.Warn().Err(ctx.Err()).Str("ticker", ticker).Msg("caller left before analysis finished")
		return &Result{Err: &model.ErrorResult{Kind: model.ErrorInternal, Error: fmt.Sprintf("analysis of %s cancelled: %v", ticker, ctx.Err())}, Cache: status}
	}
	if out.Shared {
		e.log.Debug().Str("ticker", ticker).Msg("joined in-flight analysis")
	}
	if err := out.Err; err != nil {
		if errors.Is(err, collector.ErrNoMarketData) {
			e.log.Warn().Err(err).Str("ticker", ticker).Msg("no market data")
			return &Result{Err: &model.ErrorResult{Kind: model.ErrorNoData, Error: fmt.Sprintf("No market data found for %s", ticker)}, Cache: status}
		}
		e.log.Error().Err(err).Str("ticker", ticker).Msg("analysis failed")
		return &Result{Err: &model.ErrorResult{Kind: model.ErrorInternal, Error: err.Error()}, Cache: status}
	}
	return &Result{Report: out.Val.(*runOutput).forCaller(name), Cache: status}
}

// runOutput is what one pipeline run hands to all of its waiters.
type runOutput struct {
	report *model.AnalysisReport
	// providerName is set when CompanyName came from fundamentals rather than
	// from the leader's query.
	providerName bool
}

// forCaller returns a shallow copy owning its own slices.
func (o *runOutput) forCaller(companyName string) *model.AnalysisReport {
	r := *o.report
	r.Headlines = slices.Clone(o.report.Headlines)
	r.Peers = slices.Clone(o.report.Peers)
	if !o.providerName {
		r.CompanyName = companyName
	}
	return &r
}

// run is the uncached pipeline. Panics inside are converted into errors so
// that every singleflight waiter gets a result.
func (e *Engine) run(ctx context.Context, companyName, ticker string) (out *runOutput, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal error: %v", r)
		}
	}()
	started := e.now()

	bundle, err := e.deps.Collector.Collect(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if bundle == nil || bundle.Series == nil {
		return nil, fmt.Errorf("%w for %s", collector.ErrNoMarketData, ticker)
	}
	latest, ok := bundle.Series.Latest()
	if !ok {
		return nil, fmt.Errorf("%w for %s", collector.ErrNoMarketData, ticker)
	}

	frame := calculator.Compute(bundle.Series)
	snapshot := calculator.Snapshot(frame)
	label := e.deps.Classifier.Classify(ctx, ticker, frame).String()

	headlines := make([]string, len(bundle.News))
	for i, n := range bundle.News {
		headlines[i] = n.Title
	}
	judgment := e.judge(ctx, advisor.JudgeRequest{
		Ticker:       ticker,
		LatestPrice:  latest.Close,
		Indicators:   snapshot,
		Fundamentals: &bundle.Fundamentals,
		Headlines:    headlines,
		Trend:        label,
	})
	strategy.ApplyImpacts(bundle.News, judgment.NewsImpact)

	name := companyName
	if bundle.Fundamentals.LongName != "" {
		name = bundle.Fundamentals.LongName
	}
	report := &model.AnalysisReport{
		AnalysisID:         e.newID(),
		Ticker:             ticker,
		CompanyName:        name,
		LatestPrice:        latest.Close,
		Trend:              label,
		NewsSentimentScore: judgment.SentimentScore,
		AlphaScore:         strategy.AlphaScore(label, judgment.SentimentScore),
		Recommendation:     judgment.Recommendation,
		Headlines:          bundle.News,
		Summary:            judgment.Summary,
		BusinessSummary:    bundle.Fundamentals.BusinessSummary,
		Indicators:         snapshot,
		Peers:              bundle.Peers,
		SectorPEAvg:        strategy.SectorPEAverage(bundle.Peers, bundle.Fundamentals.PE),
		GeneratedAt:        e.now().UTC(),
	}

	e.store(ctx, report)
	e.log.Info().
		Str("ticker", ticker).
		Str("trend", label).
		Float64("alpha", report.AlphaScore).
		Str("recommendation", report.Recommendation).
		Dur("elapsed", e.now().Sub(started)).
		Msg("analysis complete")
	return &runOutput{report: report, providerName: bundle.Fundamentals.LongName != ""}, nil
}

// judge asks the fusion collaborator and falls back to the default judgment
// on any failure.
func (e *Engine) judge(ctx context.Context, req advisor.JudgeRequest) (j *strategy.Judgment) {
	fallback := strategy.DefaultJudgment(req.Trend, len(req.Headlines))
	if e.deps.Judge == nil {
		return fallback
	}
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn().Interface("panic", r).Str("ticker", req.Ticker).Msg("judge panicked, using default judgment")
			j = fallback
		}
	}()

	var (
		jctx   context.Context
		cancel context.CancelFunc
	)
	if e.deps.Timeout > 0 {
		jctx, cancel = context.WithTimeout(ctx, e.deps.Timeout)
	} else {
		jctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	raw, err := e.deps.Judge.Judge(jctx, req)
	if err != nil {
		e.log.Warn().Err(err).Str("ticker", req.Ticker).Msg("judgment unavailable, using default")
		return fallback
	}
	parsed, err := strategy.ParseJudgment(raw)
	if err != nil {
		e.log.Warn().Err(err).Str("ticker", req.Ticker).Msg("judgment unparseable, using default")
		return fallback
	}
	return parsed
}

func (e *Engine) store(ctx context.Context, report *model.AnalysisReport) {
	if e.deps.Cache != nil {
		if stored, err := e.deps.Cache.Put(ctx, report); err != nil {
			e.log.Warn().Err(err).Str("ticker", report.Ticker).Msg("cache write failed")
		} else if stored {
			e.log.Debug().Str("ticker", report.Ticker).Msg("report cached")
		}
	}
	if e.deps.Recorder != nil {
		if err := e.deps.Recorder.RecordAnalysis(ctx, recorder.FromReport(report)); err != nil {
			e.log.Warn().Err(err).Str("ticker", report.Ticker).Msg("history write failed")
		}
	}
}
