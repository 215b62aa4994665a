package cache

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	flushOpThreshold   = 100
	flushTimeThreshold = 5 * time.Minute
)

// counter accumulates in-memory hit/miss counts for one table between
// flushes to the persisted cache_stats table.
type counter struct {
	hits       int64
	misses     int64
	lastAccess time.Time
}

// counterStore is the Engine's in-memory performance-counter map, mutated
// under a single mutex shared across worker threads per the concurrency
// model (§5).
type counterStore struct {
	mu         sync.Mutex
	byTable    map[string]*counter
	opsSince   int
	lastFlush  time.Time
}

func newCounterStore() *counterStore {
	return &counterStore{
		byTable:   make(map[string]*counter),
		lastFlush: time.Now(),
	}
}

func (c *counterStore) trackHit(tableID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ctr := c.entry(tableID)
	ctr.hits++
	ctr.lastAccess = time.Now()
	c.opsSince++
}

func (c *counterStore) trackMiss(tableID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ctr := c.entry(tableID)
	ctr.misses++
	ctr.lastAccess = time.Now()
	c.opsSince++
}

func (c *counterStore) entry(tableID string) *counter {
	ctr, ok := c.byTable[tableID]
	if !ok {
		ctr = &counter{}
		c.byTable[tableID] = ctr
	}
	return ctr
}

// dueForFlush reports whether the 100-op or 5-minute trigger has fired.
func (c *counterStore) dueForFlush() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opsSince >= flushOpThreshold || time.Since(c.lastFlush) >= flushTimeThreshold
}

// snapshot copies and clears the in-memory counters so they can be
// flushed to the store without holding the lock during I/O.
func (c *counterStore) snapshot() map[string]counter {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]counter, len(c.byTable))
	for id, ctr := range c.byTable {
		out[id] = *ctr
		delete(c.byTable, id)
	}
	c.opsSince = 0
	c.lastFlush = time.Now()
	return out
}

// peek returns the in-memory pending (not yet flushed) counter for one
// table without clearing anything.
func (c *counterStore) peek(tableID string) counter {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctr, ok := c.byTable[tableID]; ok {
		return *ctr
	}
	return counter{}
}

func ensureStatsTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS cache_stats (
			remote_table_id TEXT PRIMARY KEY,
			hits INTEGER NOT NULL DEFAULT 0,
			misses INTEGER NOT NULL DEFAULT 0,
			last_access TEXT,
			updated_at TEXT NOT NULL
		)
	`)
	return wrapDBError("ensure cache_stats", err)
}

// flush persists the in-memory snapshot, additively: persisted counters
// monotonically increase (§3 PerformanceCounter invariant).
func (e *Engine) flushCounters(ctx context.Context) error {
	pending := e.counters.snapshot()
	if len(pending) == 0 {
		return nil
	}
	for tableID, ctr := range pending {
		_, err := e.db.ExecContext(ctx, `
			INSERT INTO cache_stats (remote_table_id, hits, misses, last_access, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (remote_table_id) DO UPDATE SET
				hits = hits + excluded.hits,
				misses = misses + excluded.misses,
				last_access = excluded.last_access,
				updated_at = excluded.updated_at
		`, tableID, ctr.hits, ctr.misses, ctr.lastAccess.UTC().Format(time.RFC3339), nowISO())
		if err != nil {
			// Recording failures are logged and swallowed (§7):
			// statistics are best-effort, never block the caller.
			e.logger.Warn("flush performance counters failed", "table_id", tableID, "error", err)
		}
	}
	return nil
}

// TrackHit records a cache hit for tableID, flushing when due.
func (e *Engine) TrackHit(ctx context.Context, tableID string) {
	e.counters.trackHit(tableID)
	if e.hitCounter != nil {
		e.hitCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("table_id", tableID)))
	}
	if e.counters.dueForFlush() {
		_ = e.flushCounters(ctx)
	}
}

// TrackMiss records a cache miss for tableID, flushing when due.
func (e *Engine) TrackMiss(ctx context.Context, tableID string) {
	e.counters.trackMiss(tableID)
	if e.missCounter != nil {
		e.missCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("table_id", tableID)))
	}
	if e.counters.dueForFlush() {
		_ = e.flushCounters(ctx)
	}
}

// Performance flushes pending counters then returns the persisted
// hit/miss snapshot for tableID ("" means aggregate across all tables).
func (e *Engine) Performance(ctx context.Context, tableID string) (PerformanceReport, error) {
	if err := e.flushCounters(ctx); err != nil {
		return PerformanceReport{}, err
	}

	var query string
	var args []any
	if tableID == "" {
		query = `SELECT COALESCE(SUM(hits),0), COALESCE(SUM(misses),0), MAX(last_access) FROM cache_stats`
	} else {
		query = `SELECT COALESCE(hits,0), COALESCE(misses,0), last_access FROM cache_stats WHERE remote_table_id = ?`
		args = []any{tableID}
	}

	var hits, misses int64
	var lastAccess sql.NullString
	err := e.db.QueryRowContext(ctx, query, args...).Scan(&hits, &misses, &lastAccess)
	if err == sql.ErrNoRows {
		return PerformanceReport{}, nil
	}
	if err != nil {
		return PerformanceReport{}, wrapDBError("performance", err)
	}

	total := hits + misses
	report := PerformanceReport{Hits: hits, Misses: misses, Total: total, LastAccess: lastAccess.String}
	if total > 0 {
		report.HitRatePercent = 100 * float64(hits) / float64(total)
	}
	return report, nil
}

// PerformanceReport is the result of Engine.Performance.
type PerformanceReport struct {
	Hits           int64
	Misses         int64
	Total          int64
	HitRatePercent float64
	LastAccess     string
}
