// Package repositories defines interfaces for catalog introspection and
// read-only query execution. Methods operate on a caller-provided connection
// so one checked-out connection serves an entire multi-step operation.
package repositories

import (
	"context"
	"database/sql"

	"github.com/quarryhq/quarry/pkg/models"
)

// Querier is the statement surface repositories need from a connection.
// Both *sql.DB and a checked-out pool connection satisfy it; repositories
// never close what they are handed.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

var _ Querier = (*sql.DB)(nil)

// SchemaRepository defines schema and table introspection operations.
type SchemaRepository interface {
	// ListSchemas returns schema names visible to the connected credentials,
	// excluding system schemas.
	ListSchemas(ctx context.Context, conn Querier) ([]string, error)
	// ListTables returns base table names in a schema.
	ListTables(ctx context.Context, conn Querier, schema string) ([]string, error)
	// SchemaExists reports whether a schema exists.
	SchemaExists(ctx context.Context, conn Querier, schema string) (bool, error)
	// GetTableDefinition reads everything needed to render a table's DDL.
	// A table with no catalog columns is reported as not found.
	GetTableDefinition(ctx context.Context, conn Querier, schema, table string) (*models.TableDefinition, error)
	// GetSampleRows reads up to limit rows from a table.
	GetSampleRows(ctx context.Context, conn Querier, schema, table string, limit int) ([]models.Row, error)
}

// ProcedureRepository defines stored routine catalog and execution operations.
type ProcedureRepository interface {
	// ListProcedures returns procedures classified as reading data only.
	ListProcedures(ctx context.Context, conn Querier) ([]models.RoutineDescriptor, error)
	// ProcedureNameExists reports whether a procedure name exists in any schema.
	ProcedureNameExists(ctx context.Context, conn Querier, name string) (bool, error)
	// ProcedureExists reports whether a procedure exists in a given schema.
	ProcedureExists(ctx context.Context, conn Querier, schema, name string) (bool, error)
	// GetProcedureDefinition returns the routine's definition text. Routines
	// not classified as reading data only are reported as not found.
	GetProcedureDefinition(ctx context.Context, conn Querier, schema, name string) (string, error)
	// GetSignature returns the routine's ordered parameter signature along
	// with its access classification.
	GetSignature(ctx context.Context, conn Querier, schema, name string) (*models.RoutineSignature, error)
	// ExecuteCall runs a marshalled CALL on the given connection and resolves
	// OUT/INOUT values through session variables, which requires every
	// statement of the call to run on the same session.
	ExecuteCall(ctx context.Context, conn Querier, schema, name string, slots []models.CallSlot) (*models.ExecutionResult, error)
}

// QueryRepository defines read-only query execution.
type QueryRepository interface {
	// ExecuteQuery runs a validated query and collects its result set.
	ExecuteQuery(ctx context.Context, conn Querier, req models.QueryRequest) (*models.QueryResult, error)
}
