package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists report payloads in a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	mu  sync.Mutex
	log zerolog.Logger
}

// NewSQLiteStore opens (or creates) the database and runs migrations.
func NewSQLiteStore(dbPath string, log zerolog.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets the server read while the scheduler writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, log: log.With().Str("component", "cache_store").Logger()}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s.log.Info().Str("path", dbPath).Msg("sqlite cache opened")
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS analysis_cache (
			ticker     TEXT PRIMARY KEY,
			payload    TEXT NOT NULL,
			written_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cache_written ON analysis_cache(written_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

func isMissingTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}

// Get reads an entry. A missing table is recreated and reported as no entry.
func (s *SQLiteStore) Get(ctx context.Context, ticker string) (*Entry, error) {
	var (
		payload string
		written int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, written_at FROM analysis_cache WHERE ticker = ?`, ticker,
	).Scan(&payload, &written)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case isMissingTable(err):
		s.log.Warn().Msg("cache table missing, reinitializing")
		s.mu.Lock()
		defer s.mu.Unlock()
		if merr := s.migrate(ctx); merr != nil {
			return nil, fmt.Errorf("reinitialize cache: %w", merr)
		}
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("read cache %s: %w", ticker, err)
	}
	return &Entry{Ticker: ticker, Payload: []byte(payload), WrittenAt: time.UnixMilli(written)}, nil
}

func (s *SQLiteStore) Put(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exec := func() error {
		_, err := s.db.ExecContext(ctx, `INSERT INTO analysis_cache (ticker, payload, written_at)
			VALUES (?,?,?)
			ON CONFLICT(ticker) DO UPDATE SET payload = excluded.payload, written_at = excluded.written_at`,
			e.Ticker, string(e.Payload), e.WrittenAt.UnixMilli(),
		)
		return err
	}
	err := exec()
	if isMissingTable(err) {
		if merr := s.migrate(ctx); merr != nil {
			return fmt.Errorf("reinitialize cache: %w", merr)
		}
		err = exec()
	}
	if err != nil {
		return fmt.Errorf("write cache %s: %w", e.Ticker, err)
	}
	return nil
}

func (s *SQLiteStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM analysis_cache WHERE written_at < ?`, cutoff.UnixMilli())
	if isMissingTable(err) {
		return 0, s.migrate(ctx)
	}
	if err != nil {
		return 0, fmt.Errorf("prune cache: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Close() error {
	s.log.Info().Msg("closing sqlite cache")
	return s.db.Close()
}
