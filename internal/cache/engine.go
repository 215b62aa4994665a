// Package cache ties the Schema Registry, Value Codec, Query Builder, and
// Filter Translator together into the record-caching engine's top-level
// operations: bulk replace, single-row upsert/delete, TTL-based validity,
// cascading invalidation, and batched performance counters.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/recordcache/recordcache/internal/migrate"
	"github.com/recordcache/recordcache/internal/querybuilder"
	"github.com/recordcache/recordcache/internal/schema"
	"github.com/recordcache/recordcache/internal/valuecodec"
)

// Engine is the single owner of the store handle, configuration, and
// in-memory counter map (§9 design note: one Engine value, no module
// globals).
type Engine struct {
	db       *sql.DB
	writer   *sql.Conn // dedicated connection for BEGIN IMMEDIATE writes
	writerMu sync.Mutex

	registry *schema.Registry
	evolver  *schema.Evolver

	defaultTTL time.Duration
	logger     *slog.Logger

	counters *counterStore
	sf       singleflight.Group

	hitCounter  metric.Int64Counter
	missCounter metric.Int64Counter

	closed bool
	mu     sync.RWMutex
}

// Option configures an Engine at Open time.
type Option func(*Engine)

// WithDefaultTTL overrides DefaultTTL.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.defaultTTL = ttl }
}

// WithLogger overrides the default slog.Logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMeter wires otel counters for hits/misses onto the Engine.
func WithMeter(meter metric.Meter) Option {
	return func(e *Engine) {
		hc, err := meter.Int64Counter("recordcache.cache.hits")
		if err == nil {
			e.hitCounter = hc
		}
		mc, err := meter.Int64Counter("recordcache.cache.misses")
		if err == nil {
			e.missCounter = mc
		}
	}
}

// Open opens (creating if necessary) the SQLite-backed store at path and
// runs the idempotent migrator before returning a ready Engine.
func Open(ctx context.Context, path string, opts ...Option) (*Engine, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("cache: open store: %w", err)
	}
	// The pool is not capped at one connection: the writer below keeps one
	// for the Engine's lifetime, and every other statement needs its own.

	writer, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache: acquire writer connection: %w", err)
	}

	e := &Engine{
		db:         db,
		writer:     writer,
		registry:   schema.NewRegistry(db),
		defaultTTL: DefaultTTL,
		logger:     slog.Default(),
		counters:   newCounterStore(),
	}
	e.evolver = schema.NewEvolver(db, e.registry)

	for _, opt := range opts {
		opt(e)
	}

	if err := migrate.Run(ctx, db); err != nil {
		_ = writer.Close()
		_ = db.Close()
		return nil, fmt.Errorf("cache: migrate: %w", err)
	}
	if err := schema.EnsureRegistryTable(ctx, db); err != nil {
		_ = writer.Close()
		_ = db.Close()
		return nil, err
	}
	if err := ensureTTLConfigTable(ctx, db); err != nil {
		_ = writer.Close()
		_ = db.Close()
		return nil, err
	}
	if err := ensureStatsTable(ctx, db); err != nil {
		_ = writer.Close()
		_ = db.Close()
		return nil, err
	}
	if err := ensureAncillaryTables(ctx, db); err != nil {
		_ = writer.Close()
		_ = db.Close()
		return nil, err
	}

	return e, nil
}

// Close flushes pending counters and closes the underlying connections.
// This is the sole teardown point (§9): every exit path must reach it.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	flushErr := e.flushCounters(ctx)
	writerErr := e.writer.Close()
	dbErr := e.db.Close()

	for _, err := range []error{flushErr, writerErr, dbErr} {
		if err != nil {
			return fmt.Errorf("cache: close: %w", err)
		}
	}
	return nil
}

// DoctorCheck is one health-check result, mirroring the teacher's
// doctorCheck shape (status one of StatusOK/StatusWarning/StatusError).
type DoctorCheck struct {
	Name    string
	Status  string
	Message string
}

// Doctor status levels, mirroring the teacher's doctor command constants.
const (
	StatusOK      = "ok"
	StatusWarning = "warning"
	StatusError   = "error"
)

// Doctor runs a battery of store health checks: required ancillary tables
// present, and the table registry readable (reporting how many tables it
// holds).
func (e *Engine) Doctor(ctx context.Context) ([]DoctorCheck, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	var checks []DoctorCheck

	requiredTables := []string{
		"cache_table_registry", "cache_ttl_config", "cache_stats",
		"cached_solutions", "cached_tables", "cached_members", "cached_teams",
	}
	for _, table := range requiredTables {
		var found string
		err := e.db.QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&found)
		switch {
		case err == sql.ErrNoRows:
			checks = append(checks, DoctorCheck{Name: table, Status: StatusError, Message: "table missing"})
		case err != nil:
			checks = append(checks, DoctorCheck{Name: table, Status: StatusError, Message: err.Error()})
		default:
			checks = append(checks, DoctorCheck{Name: table, Status: StatusOK, Message: "present"})
		}
	}

	var registered int
	err := e.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM cache_table_registry").Scan(&registered)
	if err != nil {
		checks = append(checks, DoctorCheck{Name: "table registry", Status: StatusError, Message: err.Error()})
	} else {
		checks = append(checks, DoctorCheck{
			Name:    "table registry",
			Status:  StatusOK,
			Message: fmt.Sprintf("%d registered table(s)", registered),
		})
	}

	return checks, nil
}

// Vacuum reclaims space left behind by deleted rows by running SQLite's
// VACUUM against the store. It takes the writer lock for
// its duration since VACUUM rebuilds the entire file.
func (e *Engine) Vacuum(ctx context.Context) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	e.writerMu.Lock()
	defer e.writerMu.Unlock()
	if _, err := e.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("cache: vacuum: %w", err)
	}
	return nil
}

func (e *Engine) checkOpen() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrClosed
	}
	return nil
}

// Record is one extracted-and-ready-to-store row: an id plus the flattened
// column values produced by the Value Codec.
type Record struct {
	ID      string
	Columns map[string]any
}

// BulkReplace creates/evolves the LocalTable for tableID, deletes all
// existing rows, and inserts records with a uniform expires_at. Returns the
// count inserted.
func (e *Engine) BulkReplace(ctx context.Context, tableID, tableLabel string, catalog []schema.RemoteField, records []Record, ttl *time.Duration) (int, error) {
	if err := e.checkOpen(); err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	tableSchema, err := e.evolver.EnsureTable(ctx, tableID, tableLabel, catalog, now)
	if err != nil {
		return 0, fmt.Errorf("cache: bulk_replace: %w", err)
	}

	effTTL, err := e.effectiveTTL(ctx, tableID, ttl)
	if err != nil {
		return 0, err
	}
	expiresAt := now.Add(effTTL).Format(time.RFC3339)
	cachedAt := now.Format(time.RFC3339)

	e.writerMu.Lock()
	defer e.writerMu.Unlock()

	if err := beginImmediateWithRetry(ctx, e.writer); err != nil {
		return 0, fmt.Errorf("cache: bulk_replace: begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			rollbackQuietly(e.writer)
		}
	}()

	if _, err := e.writer.ExecContext(ctx, "DELETE FROM "+tableSchema.LocalTableName); err != nil {
		return 0, wrapDBError("bulk_replace: delete existing rows", err)
	}

	inserted := 0
	for _, rec := range records {
		if err := e.insertRow(ctx, tableSchema.LocalTableName, rec, cachedAt, expiresAt); err != nil {
			return 0, wrapDBError("bulk_replace: insert row", err)
		}
		inserted++
	}

	if _, err := e.writer.ExecContext(ctx, "COMMIT"); err != nil {
		return 0, wrapDBError("bulk_replace: commit", err)
	}
	committed = true
	return inserted, nil
}

func (e *Engine) insertRow(ctx context.Context, table string, rec Record, cachedAt, expiresAt string) error {
	cols := []string{"id", "cached_at", "expires_at"}
	placeholders := []string{"?", "?", "?"}
	args := []any{rec.ID, cachedAt, expiresAt}

	for name, val := range rec.Columns {
		cols = append(cols, name)
		placeholders = append(placeholders, "?")
		args = append(args, val)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	_, err := e.writer.ExecContext(ctx, query, args...)
	return err
}

// UpsertOne inserts or replaces one row by id in an already-existing
// LocalTable.
func (e *Engine) UpsertOne(ctx context.Context, tableID string, rec Record, ttl *time.Duration) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	tableSchema, err := e.registry.Get(ctx, tableID)
	if err != nil || tableSchema == nil {
		return fmt.Errorf("cache: upsert_one: %w", ErrTableNotFound)
	}

	now := time.Now().UTC()
	effTTL, err := e.effectiveTTL(ctx, tableID, ttl)
	if err != nil {
		return err
	}
	cachedAt := now.Format(time.RFC3339)
	expiresAt := now.Add(effTTL).Format(time.RFC3339)

	cols := []string{"id", "cached_at", "expires_at"}
	placeholders := []string{"?", "?", "?"}
	args := []any{rec.ID, cachedAt, expiresAt}
	for name, val := range rec.Columns {
		cols = append(cols, name)
		placeholders = append(placeholders, "?")
		args = append(args, val)
	}

	query := fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
		tableSchema.LocalTableName, strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	e.writerMu.Lock()
	defer e.writerMu.Unlock()
	_, err = e.db.ExecContext(ctx, query, args...)
	return wrapDBError("upsert_one", err)
}

// DeleteOne removes one row by id. Idempotent: missing rows are not an
// error.
func (e *Engine) DeleteOne(ctx context.Context, tableID, recordID string) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	tableSchema, err := e.registry.Get(ctx, tableID)
	if err != nil || tableSchema == nil {
		return fmt.Errorf("cache: delete_one: %w", ErrTableNotFound)
	}
	_, err = e.db.ExecContext(ctx,
		"DELETE FROM "+tableSchema.LocalTableName+" WHERE id = ?", recordID)
	return wrapDBError("delete_one", err)
}

// IsValid reports whether at least one row exists for tableID with
// expires_at in the future.
func (e *Engine) IsValid(ctx context.Context, tableID string) (bool, error) {
	if err := e.checkOpen(); err != nil {
		return false, err
	}
	tableSchema, err := e.registry.Get(ctx, tableID)
	if err != nil || tableSchema == nil {
		return false, nil // never cached: not an error, just invalid
	}
	var n int
	err = e.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+tableSchema.LocalTableName+" WHERE expires_at > ?",
		time.Now().UTC().Format(time.RFC3339),
	).Scan(&n)
	if err != nil {
		return false, wrapDBError("is_valid", err)
	}
	return n > 0, nil
}

// Invalidate sets every row's expires_at to the epoch. When
// structureChanged is true the corresponding cached_tables metadata row is
// also invalidated.
func (e *Engine) Invalidate(ctx context.Context, tableID string, structureChanged bool) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	tableSchema, err := e.registry.Get(ctx, tableID)
	if err != nil || tableSchema == nil {
		return nil // nothing cached, nothing to invalidate
	}
	if _, err := e.db.ExecContext(ctx,
		"UPDATE "+tableSchema.LocalTableName+" SET expires_at = '1970-01-01T00:00:00Z'"); err != nil {
		return wrapDBError("invalidate", err)
	}
	if structureChanged {
		if _, err := e.db.ExecContext(ctx,
			"UPDATE cached_tables SET expires_at = '1970-01-01T00:00:00Z' WHERE remote_table_id = ?",
			tableID); err != nil {
			return wrapDBError("invalidate table metadata", err)
		}
	}
	return nil
}

// Query returns a Query Builder bound to tableID's LocalTable.
func (e *Engine) Query(ctx context.Context, tableID string) (*querybuilder.Builder, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	tableSchema, err := e.registry.Get(ctx, tableID)
	if err != nil || tableSchema == nil {
		return nil, fmt.Errorf("cache: query: %w", ErrTableNotFound)
	}
	fields := make(map[string]querybuilder.FieldResolver, len(tableSchema.Catalog))
	for _, f := range tableSchema.Catalog {
		fields[f.Slug] = querybuilder.FieldResolver{Type: f.FieldType, Columns: tableSchema.FieldColumns[f.Slug]}
	}
	return querybuilder.New(e.db, tableSchema.LocalTableName, fields), nil
}

// GetCachedRecord fetches one row by id and reconstructs it into the
// Remote API's record JSON shape. Part of the contract per the later
// source copy (§9 ambiguity resolution).
func (e *Engine) GetCachedRecord(ctx context.Context, tableID, recordID string) (map[string]any, bool, error) {
	if err := e.checkOpen(); err != nil {
		return nil, false, err
	}
	tableSchema, err := e.registry.Get(ctx, tableID)
	if err != nil || tableSchema == nil {
		return nil, false, nil
	}
	cols, err := e.allColumnNames(ctx, tableSchema.LocalTableName)
	if err != nil {
		return nil, false, err
	}
	row, found, err := e.fetchRow(ctx, tableSchema.LocalTableName, recordID, cols)
	if err != nil || !found {
		return nil, found, err
	}

	out := map[string]any{"id": recordID}
	for _, f := range tableSchema.Catalog {
		fc := tableSchema.FieldColumns[f.Slug]
		if val, present := valuecodec.Reconstruct(f, fc, row); present {
			out[f.Slug] = val
		}
	}
	return out, true, nil
}

// CacheSingleRecord extracts and upserts one record's field values,
// mirroring UpsertOne but taking the raw RemoteField catalog and record
// JSON rather than pre-extracted columns. Part of the contract per the
// later source copy (§9 ambiguity resolution).
func (e *Engine) CacheSingleRecord(ctx context.Context, tableID string, catalog []schema.RemoteField, fieldColumns map[string]schema.FieldColumns, recordID string, raw map[string]any, ttl *time.Duration) error {
	columns := map[string]any{}
	for _, f := range catalog {
		fc := fieldColumns[f.Slug]
		row := valuecodec.Extract(f, fc, raw[f.Slug])
		for k, v := range row {
			columns[k] = v
		}
	}
	return e.UpsertOne(ctx, tableID, Record{ID: recordID, Columns: columns}, ttl)
}

func (e *Engine) allColumnNames(ctx context.Context, table string) ([]string, error) {
	rows, err := e.db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return nil, wrapDBError("table_info", err)
	}
	defer func() { _ = rows.Close() }()

	var cols []string
	for rows.Next() {
		var cid int
		var name, colType string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notnull, &dflt, &pk); err != nil {
			return nil, wrapDBError("table_info scan", err)
		}
		cols = append(cols, name)
	}
	return cols, wrapDBError("table_info iterate", rows.Err())
}

func (e *Engine) fetchRow(ctx context.Context, table, id string, cols []string) (map[string]any, bool, error) {
	scanDest := make([]any, len(cols))
	scanVals := make([]any, len(cols))
	for i := range scanDest {
		scanDest[i] = &scanVals[i]
	}

	query := "SELECT " + strings.Join(cols, ", ") + " FROM " + table + " WHERE id = ?"
	err := e.db.QueryRowContext(ctx, query, id).Scan(scanDest...)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrapDBError("fetch row", err)
	}

	row := make(map[string]any, len(cols))
	for i, c := range cols {
		row[c] = scanVals[i]
	}
	return row, true, nil
}

// Status returns a snapshot of cache validity for tableID, or for every
// registered table when tableID is "".
func (e *Engine) Status(ctx context.Context, tableID string) (map[string]TableStatus, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	var ids []string
	if tableID != "" {
		ids = []string{tableID}
	} else {
		rows, err := e.db.QueryContext(ctx, "SELECT remote_table_id FROM cache_table_registry")
		if err != nil {
			return nil, wrapDBError("status: list tables", err)
		}
		defer func() { _ = rows.Close() }()
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				continue
			}
			ids = append(ids, id)
		}
	}

	out := make(map[string]TableStatus, len(ids))
	for _, id := range ids {
		st, ok := e.statusOne(ctx, id)
		if ok {
			out[id] = st
		}
	}
	return out, nil
}

// TableStatus is one entry of a Status() snapshot.
type TableStatus struct {
	Count                int
	CachedAt             string
	ExpiresAt            string
	TimeRemainingSeconds int64
	IsValid              bool
}

func (e *Engine) statusOne(ctx context.Context, tableID string) (TableStatus, bool) {
	tableSchema, err := e.registry.Get(ctx, tableID)
	if err != nil || tableSchema == nil {
		return TableStatus{}, false
	}
	var count int
	var cachedAt, expiresAt sql.NullString
	err = e.db.QueryRowContext(ctx,
		"SELECT COUNT(*), MIN(cached_at), MIN(expires_at) FROM "+tableSchema.LocalTableName,
	).Scan(&count, &cachedAt, &expiresAt)
	if err != nil {
		return TableStatus{}, false
	}
	if !expiresAt.Valid {
		// No expires_at: an empty table is reported with a zero-valued
		// entry; a non-empty table with a corrupt timestamp is omitted (§7).
		return TableStatus{}, count == 0
	}
	expTime, err := time.Parse(time.RFC3339, expiresAt.String)
	if err != nil {
		return TableStatus{}, false
	}
	remaining := int64(time.Until(expTime).Seconds())
	return TableStatus{
		Count:                count,
		CachedAt:             cachedAt.String,
		ExpiresAt:            expiresAt.String,
		TimeRemainingSeconds: remaining,
		IsValid:              expTime.After(time.Now().UTC()),
	}, true
}

// Refresh is the resource-keyed invalidation entry point:
// solutions | tables | records | members | teams. Resource matching is
// case-insensitive (§9 ambiguity resolution). Concurrent identical
// refreshes collapse onto a single execution via singleflight.
func (e *Engine) Refresh(ctx context.Context, resource string, ids ...string) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	key := strings.ToLower(resource) + ":" + strings.Join(ids, ",")
	_, err, _ := e.sf.Do(key, func() (any, error) {
		return nil, e.refreshLocked(ctx, strings.ToLower(resource), ids)
	})
	return err
}

func (e *Engine) refreshLocked(ctx context.Context, resource string, ids []string) error {
	switch resource {
	case "solutions":
		return e.refreshSolutions(ctx)
	case "tables":
		var solutionID string
		if len(ids) > 0 {
			solutionID = ids[0]
		}
		return e.refreshTables(ctx, solutionID)
	case "records":
		if len(ids) == 0 {
			return fmt.Errorf("cache: refresh records requires a table_id: %w", ErrUnknownResource)
		}
		return e.Invalidate(ctx, ids[0], false)
	case "members":
		return e.invalidateAncillary(ctx, "cached_members")
	case "teams":
		return e.invalidateAncillary(ctx, "cached_teams")
	default:
		return fmt.Errorf("%w: %s", ErrUnknownResource, resource)
	}
}

// refreshSolutions cascades: invalidate cached_solutions, every
// cached_tables row, and every LocalTable's rows (§5 cascade invariant).
func (e *Engine) refreshSolutions(ctx context.Context) error {
	if err := e.invalidateAncillary(ctx, "cached_solutions"); err != nil {
		return err
	}
	if _, err := e.db.ExecContext(ctx, "UPDATE cached_tables SET expires_at = '1970-01-01T00:00:00Z'"); err != nil {
		return wrapDBError("refresh solutions: cached_tables", err)
	}
	return e.invalidateAllLocalTables(ctx)
}

// refreshTables cascades: invalidate cached_tables rows (optionally scoped
// to one solution) and every LocalTable belonging to that solution.
func (e *Engine) refreshTables(ctx context.Context, solutionID string) error {
	query := "UPDATE cached_tables SET expires_at = '1970-01-01T00:00:00Z'"
	var args []any
	if solutionID != "" {
		query += " WHERE solution_id = ?"
		args = append(args, solutionID)
	}
	if _, err := e.db.ExecContext(ctx, query, args...); err != nil {
		return wrapDBError("refresh tables", err)
	}

	ids, err := e.tableIDsForSolution(ctx, solutionID)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		g.Go(func() error { return e.Invalidate(gctx, id, false) })
	}
	return g.Wait()
}

func (e *Engine) tableIDsForSolution(ctx context.Context, solutionID string) ([]string, error) {
	query := "SELECT remote_table_id FROM cached_tables"
	var args []any
	if solutionID != "" {
		query += " WHERE solution_id = ?"
		args = append(args, solutionID)
	}
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("list table ids for solution", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, wrapDBError("iterate table ids", rows.Err())
}

func (e *Engine) invalidateAllLocalTables(ctx context.Context) error {
	rows, err := e.db.QueryContext(ctx, "SELECT remote_table_id FROM cache_table_registry")
	if err != nil {
		return wrapDBError("refresh solutions: list registry", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		ids = append(ids, id)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return wrapDBError("refresh solutions: iterate registry", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		g.Go(func() error { return e.Invalidate(gctx, id, false) })
	}
	return g.Wait()
}

func (e *Engine) invalidateAncillary(ctx context.Context, table string) error {
	_, err := e.db.ExecContext(ctx, "UPDATE "+table+" SET expires_at = '1970-01-01T00:00:00Z'")
	return wrapDBError("invalidate "+table, err)
}
