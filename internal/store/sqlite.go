package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (and migrates) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db:  db,
		now: time.Now,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Screening universe
	CREATE TABLE IF NOT EXISTS stocks (
		stock_id TEXT PRIMARY KEY,
		stock_name TEXT NOT NULL,
		sector TEXT,
		is_active BOOLEAN NOT NULL DEFAULT 1
	);

	-- Daily OHLCV
	CREATE TABLE IF NOT EXISTS price_data (
		stock_id TEXT NOT NULL,
		date TEXT NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume INTEGER NOT NULL,
		PRIMARY KEY (stock_id, date)
	);

	-- Indicator values in long format
	CREATE TABLE IF NOT EXISTS indicators (
		stock_id TEXT NOT NULL,
		date TEXT NOT NULL,
		indicator_name TEXT NOT NULL,
		value REAL,
		PRIMARY KEY (stock_id, date, indicator_name)
	);

	-- Quarterly fundamental snapshots
	CREATE TABLE IF NOT EXISTS fundamental_data (
		stock_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		quarter INTEGER NOT NULL,
		pe_ratio REAL,
		pb_ratio REAL,
		ps_ratio REAL,
		peg_ratio REAL,
		ev_ebitda REAL,
		roe_percent REAL,
		roa_percent REAL,
		roic REAL,
		npm_percent REAL,
		opm_percent REAL,
		revenue_growth_yoy REAL,
		eps_growth_yoy REAL,
		debt_to_assets REAL,
		debt_to_equity REAL,
		current_ratio REAL,
		piotroski_score REAL,
		altman_z_score REAL,
		cf_operating REAL,
		market_cap REAL,
		dividend_yield REAL,
		close_price REAL,
		PRIMARY KEY (stock_id, year, quarter)
	);

	-- Detected signals
	CREATE TABLE IF NOT EXISTS signals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		stock_id TEXT NOT NULL,
		signal_type TEXT NOT NULL,
		signal_name TEXT NOT NULL,
		direction TEXT NOT NULL,
		detected_date TEXT NOT NULL,
		strength REAL NOT NULL,
		price REAL,
		metadata TEXT,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Screening patterns
	CREATE TABLE IF NOT EXISTS screening_patterns (
		pattern_id TEXT PRIMARY KEY,
		pattern_name TEXT NOT NULL,
		description TEXT,
		category TEXT,
		technical_criteria TEXT,
		fundamental_criteria TEXT,
		sort_by TEXT,
		created_by TEXT DEFAULT 'system',
		is_preset BOOLEAN DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Ranked pattern results
	CREATE TABLE IF NOT EXISTS pattern_results_cache (
		pattern_id TEXT NOT NULL,
		stock_id TEXT NOT NULL,
		rank INTEGER NOT NULL,
		match_score REAL NOT NULL,
		fundamental_score REAL NOT NULL DEFAULT 0,
		technical_score REAL NOT NULL DEFAULT 0,
		matched_signals TEXT,
		matched_fundamentals TEXT,
		last_updated DATETIME NOT NULL,
		PRIMARY KEY (pattern_id, stock_id),
		FOREIGN KEY (pattern_id) REFERENCES screening_patterns(pattern_id) ON DELETE CASCADE
	);

	-- One row per cached pattern, present even when it matched nothing
	CREATE TABLE IF NOT EXISTS pattern_cache_runs (
		pattern_id TEXT PRIMARY KEY,
		result_count INTEGER NOT NULL,
		last_updated DATETIME NOT NULL,
		FOREIGN KEY (pattern_id) REFERENCES screening_patterns(pattern_id) ON DELETE CASCADE
	);

	-- Indexes
	CREATE INDEX IF NOT EXISTS idx_price_stock_date ON price_data(stock_id, date);
	CREATE INDEX IF NOT EXISTS idx_indicators_stock_date ON indicators(stock_id, date);
	CREATE INDEX IF NOT EXISTS idx_signals_stock ON signals(stock_id, is_active);
	CREATE INDEX IF NOT EXISTS idx_signals_active_date ON signals(is_active, detected_date);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_signals_daily ON signals(stock_id, signal_name, detected_date);
	CREATE INDEX IF NOT EXISTS idx_patterns_category ON screening_patterns(category);
	CREATE INDEX IF NOT EXISTS idx_patterns_preset ON screening_patterns(is_preset);
	CREATE INDEX IF NOT EXISTS idx_cache_pattern ON pattern_results_cache(pattern_id, rank);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var _ Store = (*SQLiteStore)(nil)
