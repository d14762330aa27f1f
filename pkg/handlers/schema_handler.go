package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	pkgerrors "github.com/quarryhq/quarry/pkg/errors"
	"github.com/quarryhq/quarry/pkg/services"
)

// defaultSampleSize is the number of sample rows included in table info
// when the caller does not ask for a specific count.
const defaultSampleSize = 3

type listTableNamesInput struct {
	Schema string `json:"schema"`
}

type getTableInfoInput struct {
	TableNames []string `json:"table_names"`
	Schema     string   `json:"schema"`
	SampleSize *int     `json:"sample_size"`
}

// schemaHandler implements SchemaHandler on top of the schema service.
type schemaHandler struct {
	schemas services.SchemaService
	logger  Logger
	metrics MetricsCollector
}

// NewSchemaHandler creates a new schema discovery handler.
func NewSchemaHandler(schemas services.SchemaService, logger Logger, metrics MetricsCollector) SchemaHandler {
	return &schemaHandler{
		schemas: schemas,
		logger:  logger,
		metrics: metrics,
	}
}

// ListSchemas lists all visible schemas.
func (h *schemaHandler) ListSchemas(ctx context.Context, _ json.RawMessage) (string, error) {
	timer := h.metrics.StartTimer("tool_list_schemas")
	defer timer.Stop()

	h.logger.Debug("Listing schemas")

	schemas, err := h.schemas.ListSchemas(ctx)
	if err != nil {
		h.metrics.IncrementCounter("tool_errors", "tool", "list_schemas")
		h.logger.Error("Failed to list schemas", "error", err)
		return "", fmt.Errorf("Error listing schemas: %s", pkgerrors.GetMessage(err))
	}

	return marshalResult(schemas)
}

// ListTableNames lists base table names in one schema.
func (h *schemaHandler) ListTableNames(ctx context.Context, input json.RawMessage) (string, error) {
	timer := h.metrics.StartTimer("tool_list_table_names")
	defer timer.Stop()

	var in listTableNamesInput
	if err := decodeInput(input, &in); err != nil {
		h.metrics.IncrementCounter("tool_invalid_arguments", "tool", "list_table_names")
		return "", fmt.Errorf("invalid arguments for list_table_names: %v", err)
	}

	h.logger.Debug("Listing table names", "schema", in.Schema)

	tables, err := h.schemas.ListTableNames(ctx, in.Schema)
	if err != nil {
		h.metrics.IncrementCounter("tool_errors", "tool", "list_table_names")
		h.logger.Error("Failed to list table names", "schema", in.Schema, "error", err)
		return "", fmt.Errorf("Error listing table names for schema '%s': %s",
			in.Schema, pkgerrors.GetMessage(err))
	}

	return marshalResult(tables)
}

// GetTableInfo renders table definitions with sample rows. The result is the
// formatted text itself, not a JSON document.
func (h *schemaHandler) GetTableInfo(ctx context.Context, input json.RawMessage) (string, error) {
	timer := h.metrics.StartTimer("tool_get_table_info")
	defer timer.Stop()

	var in getTableInfoInput
	if err := decodeInput(input, &in); err != nil {
		h.metrics.IncrementCounter("tool_invalid_arguments", "tool", "get_table_info")
		return "", fmt.Errorf("invalid arguments for get_table_info: %v", err)
	}

	sampleSize := defaultSampleSize
	if in.SampleSize != nil {
		sampleSize = *in.SampleSize
	}

	names := strings.Join(in.TableNames, ", ")
	h.logger.Debug("Getting table info",
		"schema", in.Schema, "tables", names, "sample_size", sampleSize)

	info, err := h.schemas.GetTableInfo(ctx, in.Schema, in.TableNames, sampleSize)
	if err != nil {
		h.metrics.IncrementCounter("tool_errors", "tool", "get_table_info")
		h.logger.Error("Failed to get table info",
			"schema", in.Schema, "tables", names, "error", err)
		return "", fmt.Errorf("Error getting table info for tables '%s' in schema '%s': %s",
			names, in.Schema, pkgerrors.GetMessage(err))
	}

	return info, nil
}
