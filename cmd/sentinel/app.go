package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"AlphaSentinel/internal/advisor"
	"AlphaSentinel/internal/analysis"
	"AlphaSentinel/internal/cache"
	"AlphaSentinel/internal/collector"
	"AlphaSentinel/internal/config"
	"AlphaSentinel/internal/logger"
	"AlphaSentinel/internal/model"
	"AlphaSentinel/internal/notifier"
	"AlphaSentinel/internal/recorder"
	"AlphaSentinel/internal/resolver"
	"AlphaSentinel/internal/trend"
)

// app holds the wired components shared by all subcommands.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	engine   *analysis.Engine
	cache    *cache.Cache
	history  recorder.Recorder
	telegram *notifier.TelegramNotifier
	closers  []func() error
}

// staticPeers serves a fixed peer list in mock mode.
type staticPeers []string

func (s staticPeers) FindPeers(context.Context, string) ([]string, error) { return s, nil }

func newMockFetcher() *collector.MockFetcher {
	return &collector.MockFetcher{
		Price: 1000,
		Quotes: []collector.SearchQuote{
			{Symbol: "MOCK", ShortName: "Mock Industries", QuoteType: "EQUITY"},
			{Symbol: "MOCK.NS", ShortName: "Mock Industries Ltd", Exchange: "NSI", QuoteType: "EQUITY"},
		},
		News: map[string][]model.NewsItem{
			"MOCK.NS": {
				{Title: "Mock Industries posts record quarterly revenue", Link: "https://example.com/mock/1"},
				{Title: "Analysts raise Mock Industries price target", Link: "https://example.com/mock/2"},
			},
		},
	}
}

func mockFundamentals() map[string]*model.Fundamentals {
	pe := func(v float64) *float64 { return &v }
	return map[string]*model.Fundamentals{
		"MOCK.NS":  {LongName: "Mock Industries Limited", Sector: "Industrials", PE: pe(24), BusinessSummary: "Mock Industries makes everything."},
		"MOCKA.NS": {LongName: "Mock Alpha Limited", Sector: "Industrials", PE: pe(18)},
		"MOCKB.NS": {LongName: "Mock Beta Limited", Sector: "Industrials", PE: pe(30)},
	}
}

func buildApp(cfgPath string, mock bool) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	log := logger.New(logger.Config{Level: cfg.Logging.Level, Pretty: cfg.Logging.Pretty})
	a := &app{cfg: cfg, log: log}

	var (
		fetcher  collector.Fetcher
		inferrer resolver.NameInferrer
		peers    collector.PeerFinder
		judge    analysis.Judge
	)
	if mock {
		m := newMockFetcher()
		m.Fundamentals = mockFundamentals()
		fetcher = m
		peers = staticPeers{"MOCKA" + cfg.Market.ExchangeSuffix, "MOCKB" + cfg.Market.ExchangeSuffix}
	} else {
		fetcher = collector.NewYahooFetcher(cfg.Proxy, log)
	}
	log.Info().Str("source", fetcher.Name()).Msg("data source selected")

	if cfg.Advisor.APIKey != "" {
		adv := advisor.New(advisor.Config{
			BaseURL:        cfg.Advisor.BaseURL,
			APIKey:         cfg.Advisor.APIKey,
			Model:          cfg.Advisor.Model,
			MaxTokens:      cfg.Advisor.MaxTokens,
			Proxy:          cfg.Proxy,
			ExchangeSuffix: cfg.Market.ExchangeSuffix,
			PeerLimit:      cfg.Market.PeerLimit,
		}, log)
		inferrer, judge = adv, adv
		if !mock {
			peers = adv
		}
	} else {
		log.Warn().Msg("advisor API key not set, using search resolution, no peers and default judgments")
	}

	var store cache.Store = cache.NewNoopStore()
	a.history = recorder.NewNoopRecorder()
	if cfg.Cache.SQLitePath != "" {
		if s, err := cache.NewSQLiteStore(cfg.Cache.SQLitePath, log); err != nil {
			log.Warn().Err(err).Msg("init sqlite cache failed, using noop")
		} else {
			store = s
			a.closers = append(a.closers, s.Close)
		}
		if r, err := recorder.NewSQLiteRecorder(cfg.Cache.SQLitePath, log); err != nil {
			log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
		} else {
			a.history = r
			a.closers = append(a.closers, r.Close)
		}
	}
	a.cache = cache.New(store, cfg.Cache.TTL, log)

	a.engine = analysis.New(analysis.Deps{
		Resolver: resolver.NewDefault(inferrer, fetcher, cfg.Market.ExchangeSuffix, cfg.CollaboratorTimeout, log),
		Collector: collector.NewCollector(fetcher, peers, collector.Options{
			ExchangeSuffix:   cfg.Market.ExchangeSuffix,
			HistoryRange:     cfg.Market.HistoryRange,
			PeerHistoryRange: cfg.Market.PeerHistoryRange,
			NewsLimit:        cfg.Market.NewsLimit,
			PeerLimit:        cfg.Market.PeerLimit,
			Timeout:          cfg.CollaboratorTimeout,
		}, log),
		Classifier: trend.NewDefaultClassifier(&trend.FileModelStore{Dir: cfg.Trend.ModelDir, Suffix: cfg.Market.ExchangeSuffix}, log),
		Judge:      judge,
		Cache:      a.cache,
		Recorder:   a.history,
		Timeout:    cfg.CollaboratorTimeout,
	}, log)

	if cfg.TelegramEnabled() {
		a.telegram = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log)
	}
	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn().Err(err).Msg("close failed")
		}
	}
}
