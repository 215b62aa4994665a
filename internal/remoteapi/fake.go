package remoteapi

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"

	"github.com/recordcache/recordcache/internal/schema"
)

// ErrNotFound is returned by Fake lookups that miss.
var ErrNotFound = errors.New("remoteapi: not found")

// Fake is an in-memory RemoteAPI implementation for engine tests, grounded
// on the teacher's httptest-server-backed client tests: rather than a
// server, state lives directly in maps and call failures are injected per
// method instead of via HTTP status codes.
type Fake struct {
	mu sync.Mutex

	solutions []Solution
	tables    map[string]TableStructure // by table id
	tableMeta map[string]TableMeta      // by table id
	records   map[string]map[string]map[string]any // table id -> record id -> fields
	members   map[string][]Member                  // by team id
	teams     []Team

	nextID int

	// FailWith, if set, is returned by every call instead of a result.
	FailWith error
}

// NewFake returns an empty Fake ready for seeding.
func NewFake() *Fake {
	return &Fake{
		tables:    make(map[string]TableStructure),
		tableMeta: make(map[string]TableMeta),
		records:   make(map[string]map[string]map[string]any),
		members:   make(map[string][]Member),
	}
}

// SeedSolution registers a solution.
func (f *Fake) SeedSolution(s Solution) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.solutions = append(f.solutions, s)
}

// SeedTable registers a table's structure and list-level metadata.
func (f *Fake) SeedTable(meta TableMeta, fields []schema.RemoteField) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tableMeta[meta.ID] = meta
	f.tables[meta.ID] = TableStructure{
		ID:         meta.ID,
		Name:       meta.Name,
		SolutionID: meta.SolutionID,
		Fields:     fields,
	}
	if f.records[meta.ID] == nil {
		f.records[meta.ID] = make(map[string]map[string]any)
	}
}

// SeedRecord inserts one record into an already-seeded table.
func (f *Fake) SeedRecord(tableID, recordID string, fields map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.records[tableID] == nil {
		f.records[tableID] = make(map[string]map[string]any)
	}
	f.records[tableID][recordID] = fields
}

// SeedTeam registers a team and its member roster.
func (f *Fake) SeedTeam(team Team, members []Member) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.teams = append(f.teams, team)
	f.members[team.ID] = members
}

func (f *Fake) ListSolutions(ctx context.Context) ([]Solution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return nil, f.FailWith
	}
	out := make([]Solution, len(f.solutions))
	copy(out, f.solutions)
	return out, nil
}

func (f *Fake) ListTables(ctx context.Context, solutionID string) ([]TableMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return nil, f.FailWith
	}
	var out []TableMeta
	for _, m := range f.tableMeta {
		if solutionID == "" || m.SolutionID == solutionID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *Fake) GetTable(ctx context.Context, tableID string) (TableStructure, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return TableStructure{}, f.FailWith
	}
	t, ok := f.tables[tableID]
	if !ok {
		return TableStructure{}, ErrNotFound
	}
	return t, nil
}

// ListRecords returns every record of tableID as a page. Filtering is not
// implemented here: callers exercising filter semantics do so against
// internal/filtertranslate and the cache's own LocalTable, not the Remote
// API fake. Sort and pagination are honoured.
func (f *Fake) ListRecords(ctx context.Context, tableID string, opts ListRecordsOptions) (RecordPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return RecordPage{}, f.FailWith
	}
	byID := f.records[tableID]
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	items := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		rec := map[string]any{"id": id}
		for k, v := range byID[id] {
			rec[k] = v
		}
		items = append(items, rec)
	}
	if len(opts.Sort) > 0 {
		applySort(items, opts.Sort)
	}

	total := len(items)
	if opts.Offset > 0 && opts.Offset < len(items) {
		items = items[opts.Offset:]
	} else if opts.Offset >= len(items) {
		items = nil
	}
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return RecordPage{Items: items, TotalCount: total}, nil
}

func applySort(items []map[string]any, terms []SortTerm) {
	sort.SliceStable(items, func(i, j int) bool {
		for _, term := range terms {
			vi, vj := items[i][term.Field], items[j][term.Field]
			less, ok := compareLess(vi, vj)
			if !ok {
				continue
			}
			if term.Direction == "desc" {
				return !less
			}
			return less
		}
		return false
	})
}

func compareLess(a, b any) (less bool, ok bool) {
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return as < bs, as != bs
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af < bf, af != bf
	}
	return false, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func (f *Fake) GetRecord(ctx context.Context, tableID, recordID string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return nil, f.FailWith
	}
	byID, ok := f.records[tableID]
	if !ok {
		return nil, ErrNotFound
	}
	fields, ok := byID[recordID]
	if !ok {
		return nil, ErrNotFound
	}
	rec := map[string]any{"id": recordID}
	for k, v := range fields {
		rec[k] = v
	}
	return rec, nil
}

func (f *Fake) CreateRecord(ctx context.Context, tableID string, fields map[string]any) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return nil, f.FailWith
	}
	if f.records[tableID] == nil {
		f.records[tableID] = make(map[string]map[string]any)
	}
	f.nextID++
	id := strconv.Itoa(f.nextID)
	f.records[tableID][id] = fields

	rec := map[string]any{"id": id}
	for k, v := range fields {
		rec[k] = v
	}
	return rec, nil
}

func (f *Fake) UpdateRecord(ctx context.Context, tableID, recordID string, fields map[string]any) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return nil, f.FailWith
	}
	byID, ok := f.records[tableID]
	if !ok {
		return nil, ErrNotFound
	}
	existing, ok := byID[recordID]
	if !ok {
		return nil, ErrNotFound
	}
	for k, v := range fields {
		existing[k] = v
	}
	byID[recordID] = existing

	rec := map[string]any{"id": recordID}
	for k, v := range existing {
		rec[k] = v
	}
	return rec, nil
}

func (f *Fake) DeleteRecord(ctx context.Context, tableID, recordID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return f.FailWith
	}
	byID, ok := f.records[tableID]
	if !ok {
		return nil
	}
	delete(byID, recordID)
	return nil
}

func (f *Fake) ListMembers(ctx context.Context, teamID string) ([]Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return nil, f.FailWith
	}
	out := make([]Member, len(f.members[teamID]))
	copy(out, f.members[teamID])
	return out, nil
}

func (f *Fake) ListTeams(ctx context.Context) ([]Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return nil, f.FailWith
	}
	out := make([]Team, len(f.teams))
	copy(out, f.teams)
	return out, nil
}

var _ RemoteAPI = (*Fake)(nil)
