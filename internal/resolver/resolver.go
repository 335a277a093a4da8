// Package resolver maps free-text company names to exchange tickers through
// an ordered chain of strategies.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"AlphaSentinel/internal/collector"
)

// NotFound is the sentinel ticker returned when no strategy succeeds.
const NotFound = "NOT_FOUND"

// ErrNotFound is returned by a strategy that has no candidate.
var ErrNotFound = errors.New("ticker not found")

// Strategy produces a ticker candidate for a company name.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, companyName string) (string, error)
}

// NameInferrer is the external name-to-symbol collaborator.
type NameInferrer interface {
	InferTicker(ctx context.Context, companyName string) (string, error)
}

// Resolver evaluates strategies in order and returns the first success.
type Resolver struct {
	strategies []Strategy
	timeout    time.Duration
	log        zerolog.Logger
}

// New creates a resolver over an explicit strategy order.
func New(strategies []Strategy, timeout time.Duration, log zerolog.Logger) *Resolver {
	return &Resolver{
		strategies: strategies,
		timeout:    timeout,
		log:        log.With().Str("component", "resolver").Logger(),
	}
}

// NewDefault builds the standard chain: inferred symbol validated by a history
// probe, then provider search preferring the exchange suffix.
func NewDefault(inferrer NameInferrer, fetcher collector.Fetcher, suffix string, timeout time.Duration, log zerolog.Logger) *Resolver {
	var chain []Strategy
	if inferrer != nil {
		chain = append(chain, &InferredStrategy{Inferrer: inferrer, Fetcher: fetcher, Suffix: suffix})
	}
	chain = append(chain, &SearchStrategy{Fetcher: fetcher, Suffix: suffix})
	return New(chain, timeout, log)
}

// Resolve never fails: collaborator errors and panics count as stage failure,
// and exhausting the chain yields NotFound.
func (r *Resolver) Resolve(ctx context.Context, companyName string) string {
	name := strings.TrimSpace(companyName)
	if name == "" {
		return NotFound
	}
	for _, s := range r.strategies {
		ticker, err := r.run(ctx, s, name)
		if err == nil && ticker != "" && ticker != NotFound {
			r.log.Info().Str("company", name).Str("strategy", s.Name()).Str("ticker", ticker).Msg("ticker resolved")
			return ticker
		}
		r.log.Debug().Err(err).Str("company", name).Str("strategy", s.Name()).Msg("strategy failed")
	}
	r.log.Warn().Str("company", name).Msg("no ticker found")
	return NotFound
}

func (r *Resolver) run(ctx context.Context, s Strategy, name string) (ticker string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("strategy %s panicked: %v", s.Name(), rec)
		}
	}()
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return s.Resolve(ctx, name)
}

// InferredStrategy asks the inference collaborator for a symbol, requires the
// exchange suffix, and rejects symbols without retrievable history.
type InferredStrategy struct {
	Inferrer NameInferrer
	Fetcher  collector.Fetcher
	Suffix   string
}

func (s *InferredStrategy) Name() string { return "inferred" }

func (s *InferredStrategy) Resolve(ctx context.Context, companyName string) (string, error) {
	candidate, err := s.Inferrer.InferTicker(ctx, companyName)
	if err != nil {
		return "", fmt.Errorf("infer ticker: %w", err)
	}
	candidate = strings.TrimSpace(candidate)
	if candidate == "" || candidate == NotFound {
		return "", ErrNotFound
	}
	if s.Suffix != "" && !strings.HasSuffix(candidate, s.Suffix) {
		return "", fmt.Errorf("candidate %q lacks suffix %s", candidate, s.Suffix)
	}
	if !collector.SymbolExists(ctx, s.Fetcher, candidate) {
		return "", fmt.Errorf("candidate %q has no market history", candidate)
	}
	return candidate, nil
}

// SearchStrategy runs a free-text provider search, preferring hits on the
// target exchange over the first unconstrained hit.
type SearchStrategy struct {
	Fetcher collector.Fetcher
	Suffix  string
}

func (s *SearchStrategy) Name() string { return "search" }

func (s *SearchStrategy) Resolve(ctx context.Context, companyName string) (string, error) {
	quotes, err := s.Fetcher.Search(ctx, companyName)
	if err != nil {
		return "", fmt.Errorf("search: %w", err)
	}
	if s.Suffix != "" {
		for _, q := range quotes {
			if strings.HasSuffix(q.Symbol, s.Suffix) {
				return q.Symbol, nil
			}
		}
	}
	for _, q := range quotes {
		if q.Symbol != "" {
			return q.Symbol, nil
		}
	}
	return "", ErrNotFound
}
