// Package services contains business logic implementations.
package services

import (
	"context"
	"time"

	"github.com/quarryhq/quarry/pkg/models"
	"github.com/quarryhq/quarry/pkg/repositories"
)

// ConnectionProvider hands a pooled connection to fn and takes it back when
// fn returns. Every statement fn issues runs on that one connection, which
// multi-step catalog reads and session-variable handling rely on.
type ConnectionProvider interface {
	With(ctx context.Context, fn func(conn repositories.Querier) error) error
}

// QueryService defines read-only query operations.
type QueryService interface {
	ExecuteQuery(ctx context.Context, req *models.QueryRequest) (*models.QueryResult, error)
	ValidateQuery(ctx context.Context, query string) error
	GetStatementType(query string) StatementType
	IsQueryStatement(query string) bool
}

// SchemaService defines schema and table introspection operations.
type SchemaService interface {
	ListSchemas(ctx context.Context) ([]string, error)
	ListTableNames(ctx context.Context, schema string) ([]string, error)
	GetTableInfo(ctx context.Context, schema string, tables []string, sampleSize int) (string, error)
}

// ProcedureService defines stored procedure catalog and invocation operations.
type ProcedureService interface {
	ListProcedures(ctx context.Context) ([]models.RoutineDescriptor, error)
	GetProcedureDefinition(ctx context.Context, schema, name string) (string, error)
	GetProcedureParameters(ctx context.Context, schema, name string) (*models.RoutineSignature, error)
	ExecuteProcedure(ctx context.Context, schema, name, parametersJSON string) (*models.ExecutionResult, error)
}

// Logger defines logging interface.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// MetricsCollector defines metrics collection interface.
type MetricsCollector interface {
	IncrementCounter(name string, labels ...string)
	RecordHistogram(name string, value float64, labels ...string)
	RecordGauge(name string, value float64, labels ...string)
	StartTimer(name string) Timer
}

// Timer represents a timing measurement.
type Timer interface {
	Stop() time.Duration
}
