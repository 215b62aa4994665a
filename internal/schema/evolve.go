package schema

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Evolver creates and evolves local tables from the Remote API's field
// catalog, grounded on the teacher's migration idiom of probing
// PRAGMA table_info and issuing conditional ALTER TABLE ADD COLUMN.
type Evolver struct {
	db       *sql.DB
	registry *Registry
}

// NewEvolver builds an Evolver over db and its registry.
func NewEvolver(db *sql.DB, registry *Registry) *Evolver {
	return &Evolver{db: db, registry: registry}
}

// EnsureTable creates (if new) or evolves (if the catalog changed) the
// local table for remoteTableID, returning its up to date TableSchema.
func (e *Evolver) EnsureTable(ctx context.Context, remoteTableID, remoteTableLabel string, catalog []RemoteField, now time.Time) (*TableSchema, error) {
	existing, err := e.registry.Get(ctx, remoteTableID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return e.createTable(ctx, remoteTableID, remoteTableLabel, catalog, now)
	}
	return e.evolveTable(ctx, existing, catalog, now)
}

func (e *Evolver) createTable(ctx context.Context, remoteTableID, remoteTableLabel string, catalog []RemoteField, now time.Time) (*TableSchema, error) {
	localTable := LocalTableName(remoteTableID, remoteTableLabel)
	existingNames := map[string]bool{"id": true, "cached_at": true, "expires_at": true}
	fieldColumns := make(map[string]FieldColumns, len(catalog))
	for _, f := range catalog {
		fieldColumns[f.Slug] = Synthesize(f, existingNames)
	}

	if _, err := e.db.ExecContext(ctx, BuildCreateTableSQL(localTable, fieldColumns)); err != nil {
		return nil, fmt.Errorf("schema: create table %s: %w", localTable, err)
	}
	for _, stmt := range BuildIndexSQL(localTable, fieldColumns) {
		if _, err := e.db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("schema: create index for %s: %w", localTable, err)
		}
	}

	ts := &TableSchema{
		RemoteTableID:  remoteTableID,
		LocalTableName: localTable,
		Catalog:        catalog,
		FieldColumns:   fieldColumns,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := e.registry.Put(ctx, ts, now); err != nil {
		return nil, err
	}
	return ts, nil
}

// evolveTable diffs the new catalog against the stored one by slug-set.
// Removed-or-mutated fields are never dropped: their columns persist but
// are no longer refilled, because preserving historical values is safer
// than a destructive ALTER and the cache is rebuildable from the Remote
// API on any corruption.
func (e *Evolver) evolveTable(ctx context.Context, existing *TableSchema, newCatalog []RemoteField, now time.Time) (*TableSchema, error) {
	oldBySlug := make(map[string]RemoteField, len(existing.Catalog))
	for _, f := range existing.Catalog {
		oldBySlug[f.Slug] = f
	}

	existingNames := map[string]bool{"id": true, "cached_at": true, "expires_at": true}
	for _, fc := range existing.FieldColumns {
		for _, c := range fc.Columns {
			existingNames[c.Name] = true
		}
	}

	var added []RemoteField
	for _, f := range newCatalog {
		if _, ok := oldBySlug[f.Slug]; !ok {
			added = append(added, f)
		}
	}

	if len(added) == 0 {
		// Catalog identical by slug-set: nothing to alter, but still persist
		// the latest field metadata (params/labels may have changed) and
		// bump updated_at.
		existing.Catalog = newCatalog
		existing.UpdatedAt = now
		if err := e.registry.Put(ctx, existing, now); err != nil {
			return nil, err
		}
		return existing, nil
	}

	for _, f := range added {
		fc := Synthesize(f, existingNames)
		for _, col := range fc.Columns {
			stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", existing.LocalTableName, col.Name, col.SQLType)
			if _, err := e.db.ExecContext(ctx, stmt); err != nil {
				return nil, fmt.Errorf("schema: alter table %s add column %s: %w", existing.LocalTableName, col.Name, err)
			}
			if col.Indexed {
				idxName := fmt.Sprintf("idx_%s_%s", existing.LocalTableName, col.Name)
				stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(%s)", idxName, existing.LocalTableName, col.Name)
				if _, err := e.db.ExecContext(ctx, stmt); err != nil {
					return nil, fmt.Errorf("schema: create index for %s.%s: %w", existing.LocalTableName, col.Name, err)
				}
			}
		}
		existing.FieldColumns[f.Slug] = fc
	}

	existing.Catalog = newCatalog
	existing.UpdatedAt = now
	if err := e.registry.Put(ctx, existing, now); err != nil {
		return nil, err
	}
	return existing, nil
}
