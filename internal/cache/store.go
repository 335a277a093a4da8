package cache

import (
	"context"
	"time"
)

// Entry is one stored report payload.
type Entry struct {
	Ticker    string
	Payload   []byte
	WrittenAt time.Time
}

// Store is durable ticker-keyed payload persistence.
type Store interface {
	// Get returns the entry for ticker, or nil when there is none.
	Get(ctx context.Context, ticker string) (*Entry, error)
	// Put inserts or replaces the entry for e.Ticker.
	Put(ctx context.Context, e Entry) error
	// Prune deletes entries written before cutoff and returns how many went.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
	Close() error
}

// NoopStore never holds anything. Used when caching is disabled.
type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (NoopStore) Get(context.Context, string) (*Entry, error)     { return nil, nil }
func (NoopStore) Put(context.Context, Entry) error                { return nil }
func (NoopStore) Prune(context.Context, time.Time) (int64, error) { return 0, nil }
func (NoopStore) Close() error                                    { return nil }
