package recorder

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists signal and fetch history to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so report queries can read while the bot writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS signal_events (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			kind        TEXT NOT NULL,
			signal_id   TEXT NOT NULL,
			symbol      TEXT NOT NULL,
			direction   TEXT,
			confidence  INTEGER,
			buy_score   INTEGER,
			sell_score  INTEGER,
			trend_m15   TEXT,
			trend_h1    TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signal_ts ON signal_events(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_signal_symbol ON signal_events(symbol, kind)`,

		`CREATE TABLE IF NOT EXISTS fetch_log (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			request_id  TEXT NOT NULL,
			symbol      TEXT NOT NULL,
			timeframe   TEXT,
			stage       TEXT,
			bars        INTEGER,
			duration_ms INTEGER,
			error       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fetch_ts ON fetch_log(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordSignal(evt *SignalEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO signal_events
		(timestamp, kind, signal_id, symbol, direction, confidence, buy_score, sell_score, trend_m15, trend_h1)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		unixOrNow(evt.At), string(evt.Kind), evt.SignalID.String(), evt.Symbol,
		string(evt.Direction), evt.Confidence, evt.Scores.Buy, evt.Scores.Sell,
		string(evt.TrendM15), string(evt.TrendH1),
	)
	return err
}

func (r *SQLiteRecorder) RecordFetch(evt *FetchEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO fetch_log
		(timestamp, request_id, symbol, timeframe, stage, bars, duration_ms, error)
		VALUES (?,?,?,?,?,?,?,?)`,
		unixOrNow(evt.At), evt.RequestID.String(), evt.Symbol, string(evt.Timeframe),
		evt.Stage.String(), evt.Bars, evt.Duration.Milliseconds(), evt.Err,
	)
	return err
}

// SignalCounts returns per-kind event counts for a symbol.
func (r *SQLiteRecorder) SignalCounts(symbol string) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT kind, COUNT(*) FROM signal_events WHERE symbol = ? GROUP BY kind`, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		out[kind] = n
	}
	return out, rows.Err()
}

// FetchFailures counts failed fetches recorded since t.
func (r *SQLiteRecorder) FetchFailures(since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM fetch_log WHERE timestamp >= ? AND error != ''`, since.Unix()).Scan(&n)
	return n, err
}

func (r *SQLiteRecorder) Close() error {
	log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}

func unixOrNow(t time.Time) int64 {
	if t.IsZero() {
		return time.Now().Unix()
	}
	return t.Unix()
}
