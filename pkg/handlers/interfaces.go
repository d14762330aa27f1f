// Package handlers contains the MCP tool handlers.
//
// Every handler method has the tool handler signature: it decodes the tool's
// JSON arguments, delegates to a service, and renders the result as the text
// returned to the model. Failures are returned as errors whose text is the
// complete client-facing message; the transport layer does not add anything.
package handlers

import (
	"context"
	"encoding/json"
)

// SchemaHandler serves the schema discovery tools.
type SchemaHandler interface {
	// ListSchemas lists all visible schemas.
	ListSchemas(ctx context.Context, input json.RawMessage) (string, error)

	// ListTableNames lists base table names in one schema.
	ListTableNames(ctx context.Context, input json.RawMessage) (string, error)

	// GetTableInfo renders table definitions with sample rows.
	GetTableInfo(ctx context.Context, input json.RawMessage) (string, error)
}

// QueryHandler serves the ad-hoc query tool.
type QueryHandler interface {
	// ExecuteQuery runs a read-only query and returns its rows.
	ExecuteQuery(ctx context.Context, input json.RawMessage) (string, error)
}

// ProcedureHandler serves the stored procedure tools.
type ProcedureHandler interface {
	// ListStoredProcedures lists the read-only stored procedures.
	ListStoredProcedures(ctx context.Context, input json.RawMessage) (string, error)

	// GetStoredProcedureDefinition returns a procedure's DDL text.
	GetStoredProcedureDefinition(ctx context.Context, input json.RawMessage) (string, error)

	// GetStoredProcedureParameters describes a procedure's parameters.
	GetStoredProcedureParameters(ctx context.Context, input json.RawMessage) (string, error)

	// ExecuteStoredProcedure calls a read-only stored procedure.
	ExecuteStoredProcedure(ctx context.Context, input json.RawMessage) (string, error)
}

// Logger defines the logging interface.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// MetricsCollector defines the metrics interface.
type MetricsCollector interface {
	IncrementCounter(name string, tags ...string)
	RecordHistogram(name string, value float64, tags ...string)
	RecordGauge(name string, value float64, tags ...string)
	StartTimer(name string) Timer
}

// Timer represents a timing measurement.
type Timer interface {
	Stop()
}
