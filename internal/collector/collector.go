package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"AlphaSentinel/internal/model"
)

// ErrNoMarketData means the primary price history came back empty. Fetch
// failures are returned as ordinary errors.
var ErrNoMarketData = errors.New("no market data")

// PeerFinder identifies sector peers of a symbol.
type PeerFinder interface {
	FindPeers(ctx context.Context, symbol string) ([]string, error)
}

// Options tunes the acquisition windows and caps.
type Options struct {
	ExchangeSuffix   string
	HistoryRange     string
	PeerHistoryRange string
	NewsLimit        int
	PeerLimit        int
	// Timeout bounds each individual collaborator call. Zero disables it.
	Timeout time.Duration
}

// Bundle is everything fetched for one analysis.
type Bundle struct {
	Series       *model.PriceSeries
	News         []model.NewsItem
	Peers        []model.PeerInfo
	Fundamentals model.Fundamentals
}

// Collector orchestrates the concurrent data fetches for one ticker.
type Collector struct {
	Fetcher Fetcher
	Peers   PeerFinder
	opts    Options
	log     zerolog.Logger
}

// NewCollector creates a new Collector. peers may be nil, in which case no peers are fetched.
func NewCollector(fetcher Fetcher, peers PeerFinder, opts Options, log zerolog.Logger) *Collector {
	if opts.HistoryRange == "" {
		opts.HistoryRange = "2y"
	}
	if opts.PeerHistoryRange == "" {
		opts.PeerHistoryRange = "5d"
	}
	if opts.NewsLimit <= 0 {
		opts.NewsLimit = 5
	}
	if opts.PeerLimit <= 0 {
		opts.PeerLimit = 3
	}
	return &Collector{
		Fetcher: fetcher,
		Peers:   peers,
		opts:    opts,
		log:     log.With().Str("component", "collector").Logger(),
	}
}

func (c *Collector) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.opts.Timeout)
}

// guard runs fn, converting a panic into an error so one collaborator cannot
// take down the batch.
func guard(fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("collaborator panic: %v", r)
			}
		}()
		return fn()
	}
}

// Collect runs two fan-out stages. Stage one fetches price history, headlines
// and the peer list together; stage two fetches per-peer metrics and the
// subject's fundamentals. Only a failed or empty price history is fatal.
func (c *Collector) Collect(ctx context.Context, ticker string) (*Bundle, error) {
	var (
		bars      []model.OHLCV
		news      []model.NewsItem
		peerSyms  []string
		fetchedAt = time.Now()
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(guard(func() error {
		cctx, cancel := c.bounded(gctx)
		defer cancel()
		b, err := c.Fetcher.FetchHistory(cctx, ticker, c.opts.HistoryRange, "1d")
		if err != nil {
			return fmt.Errorf("fetch history for %s: %w", ticker, err)
		}
		bars = b
		return nil
	}))
	g.Go(guard(func() error {
		news = c.fetchNews(gctx, ticker)
		return nil
	}))
	g.Go(guard(func() error {
		peerSyms = c.fetchPeerList(gctx, ticker)
		return nil
	}))
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w found for %s", ErrNoMarketData, ticker)
	}

	bundle := &Bundle{
		Series: &model.PriceSeries{Symbol: ticker, Bars: bars, FetchedAt: fetchedAt},
		News:   news,
	}

	peers := make([]*model.PeerInfo, len(peerSyms))
	g2, g2ctx := errgroup.WithContext(ctx)
	for i, sym := range peerSyms {
		i, sym := i, sym
		g2.Go(guard(func() error {
			p, err := c.FetchPeer(g2ctx, sym)
			if err != nil {
				c.log.Warn().Err(err).Str("peer", sym).Msg("peer metrics unavailable, dropping peer")
				return nil
			}
			peers[i] = p
			return nil
		}))
	}
	g2.Go(guard(func() error {
		cctx, cancel := c.bounded(g2ctx)
		defer cancel()
		f, err := c.Fetcher.FetchFundamentals(cctx, ticker)
		if err != nil {
			c.log.Warn().Err(err).Str("ticker", ticker).Msg("fundamentals unavailable")
			return nil
		}
		if f != nil {
			bundle.Fundamentals = *f
		}
		return nil
	}))
	// Members only return nil, so Wait cannot fail.
	_ = g2.Wait()

	bundle.Peers = make([]model.PeerInfo, 0, len(peers))
	for _, p := range peers {
		if p != nil {
			bundle.Peers = append(bundle.Peers, *p)
		}
	}

	c.log.Info().
		Str("ticker", ticker).
		Int("bars", len(bars)).
		Int("headlines", len(news)).
		Int("peers", len(bundle.Peers)).
		Msg("acquisition complete")
	return bundle, nil
}

func (c *Collector) fetchNews(ctx context.Context, ticker string) (news []model.NewsItem) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Warn().Interface("panic", r).Str("ticker", ticker).Msg("news provider panicked")
			news = []model.NewsItem{}
		}
	}()
	cctx, cancel := c.bounded(ctx)
	defer cancel()
	news, err := c.Fetcher.FetchNews(cctx, ticker, c.opts.NewsLimit)
	if err != nil {
		c.log.Warn().Err(err).Str("ticker", ticker).Msg("news unavailable")
		return []model.NewsItem{}
	}
	if len(news) > c.opts.NewsLimit {
		news = news[:c.opts.NewsLimit]
	}
	if news == nil {
		news = []model.NewsItem{}
	}
	return news
}

func (c *Collector) fetchPeerList(ctx context.Context, ticker string) (peers []string) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Warn().Interface("panic", r).Str("ticker", ticker).Msg("peer provider panicked")
			peers = nil
		}
	}()
	if c.Peers == nil {
		return nil
	}
	cctx, cancel := c.bounded(ctx)
	defer cancel()
	raw, err := c.Peers.FindPeers(cctx, ticker)
	if err != nil {
		c.log.Warn().Err(err).Str("ticker", ticker).Msg("peer identification failed")
		return nil
	}
	return SanitizePeers(raw, ticker, c.opts.ExchangeSuffix, c.opts.PeerLimit)
}

// SanitizePeers trims and de-duplicates peer symbols, keeps only those with
// the exchange suffix (when set), drops the subject and caps the list at limit.
// Order of identification is preserved.
func SanitizePeers(raw []string, subject, suffix string, limit int) []string {
	seen := map[string]bool{strings.ToUpper(subject): true}
	out := make([]string, 0, limit)
	for _, s := range raw {
		s = strings.TrimSpace(s)
		key := strings.ToUpper(s)
		if s == "" || seen[key] {
			continue
		}
		if suffix != "" && !strings.HasSuffix(key, strings.ToUpper(suffix)) {
			continue
		}
		seen[key] = true
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out
}

// FetchPeer loads price, P/E and day-over-day change for one peer.
// Fewer than two bars of history is an error.
func (c *Collector) FetchPeer(ctx context.Context, symbol string) (*model.PeerInfo, error) {
	var (
		bars []model.OHLCV
		fund *model.Fundamentals
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(guard(func() error {
		cctx, cancel := c.bounded(gctx)
		defer cancel()
		b, err := c.Fetcher.FetchHistory(cctx, symbol, c.opts.PeerHistoryRange, "1d")
		if err != nil {
			return fmt.Errorf("peer history: %w", err)
		}
		bars = b
		return nil
	}))
	g.Go(guard(func() error {
		cctx, cancel := c.bounded(gctx)
		defer cancel()
		f, err := c.Fetcher.FetchFundamentals(cctx, symbol)
		if err != nil {
			// P/E is optional for peers.
			return nil
		}
		fund = f
		return nil
	}))
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(bars) < 2 {
		return nil, fmt.Errorf("peer %s: need 2 bars, got %d", symbol, len(bars))
	}

	latest := bars[len(bars)-1].Close
	prev := bars[len(bars)-2].Close
	if prev == 0 {
		return nil, fmt.Errorf("peer %s: zero previous close", symbol)
	}
	p := &model.PeerInfo{
		Ticker:    symbol,
		Price:     latest,
		ChangePct: (latest - prev) / prev * 100,
	}
	if fund != nil {
		p.PE = fund.PE
	}
	return p, nil
}
