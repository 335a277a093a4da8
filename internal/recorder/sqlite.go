package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists analysis history to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log zerolog.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log zerolog.Logger) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log.With().Str("component", "recorder").Logger()}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS analysis_history (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			analysis_id    TEXT NOT NULL,
			ticker         TEXT NOT NULL,
			timestamp      INTEGER NOT NULL,
			price          REAL,
			trend          TEXT,
			sentiment      REAL,
			alpha_score    REAL,
			recommendation TEXT,
			peer_count     INTEGER,
			rsi            REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_ticker_ts ON analysis_history(ticker, timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordAnalysis(ctx context.Context, rec *AnalysisRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := rec.RecordedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	var rsi sql.NullFloat64
	if rec.RSI != nil {
		rsi = sql.NullFloat64{Float64: *rec.RSI, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO analysis_history
		(analysis_id, ticker, timestamp, price, trend, sentiment, alpha_score, recommendation, peer_count, rsi)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		rec.AnalysisID, rec.Ticker, ts.UnixMilli(), rec.Price, rec.Trend,
		rec.Sentiment, rec.AlphaScore, rec.Recommendation, rec.PeerCount, rsi,
	)
	return err
}

func (r *SQLiteRecorder) History(ctx context.Context, ticker string, limit int) ([]AnalysisRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `SELECT analysis_id, ticker, timestamp, price, trend, sentiment,
		alpha_score, recommendation, peer_count, rsi
		FROM analysis_history WHERE ticker = ? ORDER BY timestamp DESC, id DESC LIMIT ?`, ticker, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []AnalysisRecord
	for rows.Next() {
		var (
			rec AnalysisRecord
			ts  int64
			rsi sql.NullFloat64
		)
		if err := rows.Scan(&rec.AnalysisID, &rec.Ticker, &ts, &rec.Price, &rec.Trend, &rec.Sentiment,
			&rec.AlphaScore, &rec.Recommendation, &rec.PeerCount, &rsi); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		rec.RecordedAt = time.UnixMilli(ts).UTC()
		if rsi.Valid {
			v := rsi.Float64
			rec.RSI = &v
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
