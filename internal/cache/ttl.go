package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// TTLPresets are the named convenience aliases for common mutation rates.
var TTLPresets = map[string]time.Duration{
	"high_mutation": time.Hour,
	"medium":        12 * time.Hour,
	"low":           7 * 24 * time.Hour,
	"very_low":      30 * 24 * time.Hour,
}

// DefaultTTL is used when no per-table TTL config row exists. Two
// historical copies of the engine disagreed (4h vs 12h); this settles on
// the longer value, matching the more recent copy.
const DefaultTTL = 12 * time.Hour

// ResolveTTLName looks up a preset name, returning ok=false for an
// unrecognised one.
func ResolveTTLName(name string) (time.Duration, bool) {
	d, ok := TTLPresets[name]
	return d, ok
}

func ensureTTLConfigTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS cache_ttl_config (
			remote_table_id TEXT PRIMARY KEY,
			ttl_seconds INTEGER NOT NULL,
			mutation_level TEXT,
			notes TEXT,
			updated_at TEXT NOT NULL
		)
	`)
	return wrapDBError("ensure cache_ttl_config", err)
}

// SetTableTTL persists a per-table TTL override.
func (e *Engine) SetTableTTL(ctx context.Context, tableID string, ttl time.Duration, mutationLevel, notes string) error {
	if ttl <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTTL, ttl)
	}
	_, err := e.db.ExecContext(ctx, `
		INSERT INTO cache_ttl_config (remote_table_id, ttl_seconds, mutation_level, notes, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (remote_table_id) DO UPDATE SET
			ttl_seconds = excluded.ttl_seconds,
			mutation_level = excluded.mutation_level,
			notes = excluded.notes,
			updated_at = excluded.updated_at
	`, tableID, int64(ttl.Seconds()), mutationLevel, notes, nowISO())
	return wrapDBError("set table ttl", err)
}

// effectiveTTL resolves TTL precedence: explicit arg > per-table config >
// engine default.
func (e *Engine) effectiveTTL(ctx context.Context, tableID string, explicit *time.Duration) (time.Duration, error) {
	if explicit != nil && *explicit > 0 {
		return *explicit, nil
	}
	var seconds int64
	err := e.db.QueryRowContext(ctx,
		`SELECT ttl_seconds FROM cache_ttl_config WHERE remote_table_id = ?`, tableID,
	).Scan(&seconds)
	if err == sql.ErrNoRows {
		return e.defaultTTL, nil
	}
	if err != nil {
		return 0, wrapDBError("resolve table ttl", err)
	}
	return time.Duration(seconds) * time.Second, nil
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}
