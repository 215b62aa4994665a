// Package remoteapi defines the collaborator contract the cache engine
// consumes: a remote system exposing solutions, tables, records, members,
// and teams. The engine depends only on the RemoteAPI interface; concrete
// transports (HTTP, gRPC, etc.) implement it outside this package.
package remoteapi

import (
	"context"
	"time"

	"github.com/recordcache/recordcache/internal/schema"
)

// Solution is a top-level container of tables, as returned by
// list_solutions().
type Solution struct {
	ID   string
	Name string
}

// TableMeta is one table's list-level metadata, as returned by
// list_tables().
type TableMeta struct {
	ID                          string
	SolutionID                  string
	Name                        string
	Status                      string
	Hidden                      bool
	Icon                        string
	PrimaryField                string
	TableOrder                  int
	Permissions                 string
	FieldPermissions            string
	RecordTerm                  string
	FieldsCountTotal            int
	FieldsCountLinkedRecordField int
}

// TableStructure is get_table()'s response: a table's field catalog.
type TableStructure struct {
	ID         string
	Name       string
	SolutionID string
	Fields     []schema.RemoteField
}

// SortTerm is one entry of the sort DSL: {field, direction}.
type SortTerm struct {
	Field     string
	Direction string // "asc" | "desc"
}

// ListRecordsOptions is list_records()'s options bag: the §4.8 filter DSL
// tree, a sort order, and pagination.
type ListRecordsOptions struct {
	Filter map[string]any
	Sort   []SortTerm
	Limit  int
	Offset int
}

// RecordPage is list_records()'s response.
type RecordPage struct {
	Items      []map[string]any
	TotalCount int
}

// Member is a cacheable team/solution member, as returned by member
// listing endpoints.
type Member struct {
	ID          string
	Name        string
	Email       string
	DeletedDate string
}

// Team is a cacheable team, as returned by team listing endpoints.
type Team struct {
	ID   string
	Name string
}

// RemoteAPI is the contract the cache engine consumes. Implementations are
// expected to apply their own retry/auth/pagination concerns; the engine
// treats every call as a single logical round trip.
type RemoteAPI interface {
	ListSolutions(ctx context.Context) ([]Solution, error)
	ListTables(ctx context.Context, solutionID string) ([]TableMeta, error)
	GetTable(ctx context.Context, tableID string) (TableStructure, error)
	ListRecords(ctx context.Context, tableID string, opts ListRecordsOptions) (RecordPage, error)
	GetRecord(ctx context.Context, tableID, recordID string) (map[string]any, error)
	CreateRecord(ctx context.Context, tableID string, fields map[string]any) (map[string]any, error)
	UpdateRecord(ctx context.Context, tableID, recordID string, fields map[string]any) (map[string]any, error)
	DeleteRecord(ctx context.Context, tableID, recordID string) error

	ListMembers(ctx context.Context, teamID string) ([]Member, error)
	ListTeams(ctx context.Context) ([]Team, error)
}

// SinceFetcher is an optional capability: implementations that can filter
// server-side by a "since" timestamp satisfy it, mirroring the teacher's
// FetchTasksSince pagination shape so a future sync path can use it without
// widening the core RemoteAPI contract.
type SinceFetcher interface {
	ListRecordsSince(ctx context.Context, tableID string, since time.Time, opts ListRecordsOptions) (RecordPage, error)
}
