// Package journal records every computed hedge recommendation per asset:
// an in-memory history for status/history queries, optionally backed by
// SQLite so recommendations survive restarts for audit. Only
// recommendations are persisted — the position ledger itself stays
// in-process.
package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"hedge-systemv1/internal/metrics"
	"hedge-systemv1/internal/model"
)

// Journal keeps hedge recommendations keyed by asset, newest last.
type Journal struct {
	mu      sync.RWMutex
	entries map[string][]model.HedgeResult

	db *sql.DB          // nil when persistence is disabled
	m  *metrics.Metrics // nil-safe
}

// New creates an in-memory journal. dbPath may be empty to disable
// persistence; m may be nil.
func New(dbPath string, m *metrics.Metrics) (*Journal, error) {
	j := &Journal{entries: make(map[string][]model.HedgeResult), m: m}
	if dbPath == "" {
		return j, nil
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("journal open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS hedges (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		asset       TEXT NOT NULL,
		strategy    TEXT NOT NULL,
		instrument  TEXT,
		size        REAL NOT NULL,
		cost        REAL NOT NULL,
		result_json TEXT NOT NULL,
		computed_at DATETIME NOT NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_hedges_asset ON hedges(asset);
	CREATE INDEX IF NOT EXISTS idx_hedges_computed_at ON hedges(computed_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}

	log.Printf("[journal] opened hedge journal at %s", dbPath)
	j.db = db
	return j, nil
}

// DB returns the underlying database for health checks; nil when
// persistence is disabled.
func (j *Journal) DB() *sql.DB { return j.db }

// Record appends a hedge result to the asset's history and persists it
// when a database is configured. A persistence failure is logged, not
// returned: the in-memory history is the source of truth for callers.
func (j *Journal) Record(asset string, res model.HedgeResult) {
	j.mu.Lock()
	j.entries[asset] = append(j.entries[asset], res)
	j.mu.Unlock()

	if j.m != nil {
		j.m.JournalWrites.Inc()
	}
	if j.db == nil {
		return
	}

	raw, _ := json.Marshal(res)
	_, err := j.db.Exec(
		`INSERT INTO hedges (asset, strategy, instrument, size, cost, result_json, computed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		asset, res.Strategy, res.InstrumentID, res.Size, res.Cost, string(raw),
		res.Timestamp.Format(time.RFC3339),
	)
	if err != nil {
		log.Printf("[journal] persist hedge for %s: %v", asset, err)
	}
}

// Last returns the most recent hedge for an asset.
func (j *Journal) Last(asset string) (model.HedgeResult, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	hist := j.entries[asset]
	if len(hist) == 0 {
		return model.HedgeResult{}, false
	}
	return hist[len(hist)-1], true
}

// History returns up to n most recent hedges for an asset, oldest first.
func (j *Journal) History(asset string, n int) []model.HedgeResult {
	j.mu.RLock()
	defer j.mu.RUnlock()
	hist := j.entries[asset]
	if n <= 0 || n > len(hist) {
		n = len(hist)
	}
	out := make([]model.HedgeResult, n)
	copy(out, hist[len(hist)-n:])
	return out
}

// Close closes the persistence database if open.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}
