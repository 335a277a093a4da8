// Package trend labels the direction of a price series, preferring a trained
// per-symbol model and falling back to an RSI/MACD heuristic.
package trend

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"AlphaSentinel/internal/calculator"
	"AlphaSentinel/internal/model"
)

// ErrNotApplicable means a strategy declines the input; the next one is tried.
var ErrNotApplicable = errors.New("strategy not applicable")

// Strategy is one classification path.
type Strategy interface {
	Name() string
	Classify(ctx context.Context, symbol string, rows *calculator.Frame) (model.TrendLabel, error)
}

// Classifier evaluates strategies in order over a prepared feature frame.
type Classifier struct {
	strategies []Strategy
	log        zerolog.Logger
}

// NewClassifier creates a classifier with an explicit strategy order.
func NewClassifier(strategies []Strategy, log zerolog.Logger) *Classifier {
	return &Classifier{strategies: strategies, log: log.With().Str("component", "trend").Logger()}
}

// NewDefaultClassifier tries the model from store first, then the heuristic.
func NewDefaultClassifier(store ModelStore, log zerolog.Logger) *Classifier {
	return NewClassifier([]Strategy{&ModelStrategy{Store: store}, HeuristicStrategy{}}, log)
}

// Classify labels an indicator frame. A frame with no fully-featured rows is
// Neutral; strategy errors fall through to the next strategy.
func (c *Classifier) Classify(ctx context.Context, symbol string, indicators *calculator.Frame) model.TrendLabel {
	rows := Prepare(indicators)
	if rows.Len() == 0 {
		c.log.Warn().Str("ticker", symbol).Msg("no fully-featured rows, trend is neutral")
		return model.TrendLabel{Trend: model.TrendNeutral, Source: model.SourceNone}
	}
	for _, s := range c.strategies {
		label, err := c.run(ctx, s, symbol, rows)
		if err == nil {
			c.log.Info().Str("ticker", symbol).Str("strategy", s.Name()).Str("trend", label.String()).Msg("trend classified")
			return label
		}
		if !errors.Is(err, ErrNotApplicable) {
			c.log.Warn().Err(err).Str("ticker", symbol).Str("strategy", s.Name()).Msg("classification failed, falling back")
		}
	}
	return model.TrendLabel{Trend: model.TrendNeutral, Source: model.SourceNone}
}

func (c *Classifier) run(ctx context.Context, s Strategy, symbol string, rows *calculator.Frame) (label model.TrendLabel, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy %s panicked: %v", s.Name(), r)
		}
	}()
	return s.Classify(ctx, symbol, rows)
}
