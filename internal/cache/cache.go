// Package cache is the read-through/write-through report cache keyed by
// ticker, with a time-to-live and a staleness check on stored payloads.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"AlphaSentinel/internal/model"
)

// Status is the outcome of a lookup.
type Status string

const (
	StatusMiss    Status = "miss"
	StatusHit     Status = "hit"
	StatusExpired Status = "expired"
	// StatusStale marks an entry within TTL whose payload lacks required
	// fields, e.g. written before peers were part of the report.
	StatusStale Status = "stale"
)

// Cache applies TTL and staleness rules over a Store.
type Cache struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
	log   zerolog.Logger
}

// Option customizes a Cache.
type Option func(*Cache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a cache over store.
func New(store Store, ttl time.Duration, log zerolog.Logger, opts ...Option) *Cache {
	c := &Cache{
		store: store,
		ttl:   ttl,
		now:   time.Now,
		log:   log.With().Str("component", "cache").Logger(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// stalenessProbe decodes only what the staleness rule looks at.
type stalenessProbe struct {
	Trend *string          `json:"trend"`
	Peers *json.RawMessage `json:"peers"`
}

func stale(payload []byte) bool {
	var p stalenessProbe
	if err := json.Unmarshal(payload, &p); err != nil {
		return true
	}
	if p.Trend == nil || strings.Contains(*p.Trend, string(model.TrendUnknown)) {
		return true
	}
	if p.Peers == nil {
		return true
	}
	peers := strings.TrimSpace(string(*p.Peers))
	return peers == "null" || peers == "[]"
}

// Lookup returns the stored payload for ticker on a hit. Any other status
// carries no payload. Store errors degrade to a miss.
func (c *Cache) Lookup(ctx context.Context, ticker string) ([]byte, Status) {
	e, err := c.store.Get(ctx, ticker)
	if err != nil {
		c.log.Warn().Err(err).Str("ticker", ticker).Msg("cache read failed, treating as miss")
		return nil, StatusMiss
	}
	if e == nil {
		c.log.Debug().Str("ticker", ticker).Msg("cache miss")
		return nil, StatusMiss
	}
	if c.now().Sub(e.WrittenAt) > c.ttl {
		c.log.Debug().Str("ticker", ticker).Time("written_at", e.WrittenAt).Msg("cache entry expired")
		return nil, StatusExpired
	}
	if stale(e.Payload) {
		c.log.Info().Str("ticker", ticker).Msg("cache entry stale")
		return nil, StatusStale
	}
	c.log.Info().Str("ticker", ticker).Msg("cache hit")
	return e.Payload, StatusHit
}

// Get is Lookup with the payload decoded.
func (c *Cache) Get(ctx context.Context, ticker string) (*model.AnalysisReport, Status) {
	payload, status := c.Lookup(ctx, ticker)
	if status != StatusHit {
		return nil, status
	}
	var r model.AnalysisReport
	if err := json.Unmarshal(payload, &r); err != nil {
		c.log.Warn().Err(err).Str("ticker", ticker).Msg("cache payload undecodable")
		return nil, StatusStale
	}
	return &r, StatusHit
}

// Put writes a complete report. Incomplete reports are skipped and
// reported as not stored.
func (c *Cache) Put(ctx context.Context, r *model.AnalysisReport) (bool, error) {
	if !r.Complete() {
		c.log.Debug().Str("ticker", r.Ticker).Str("trend", r.Trend).Int("peers", len(r.Peers)).Msg("report incomplete, not cached")
		return false, nil
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return false, fmt.Errorf("encode report: %w", err)
	}
	if err := c.store.Put(ctx, Entry{Ticker: r.Ticker, Payload: payload, WrittenAt: c.now()}); err != nil {
		return false, err
	}
	return true, nil
}

// Prune removes entries older than the TTL.
func (c *Cache) Prune(ctx context.Context) (int64, error) {
	return c.store.Prune(ctx, c.now().Add(-c.ttl))
}
