package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	pkgerrors "github.com/quarryhq/quarry/pkg/errors"
	"github.com/quarryhq/quarry/pkg/services"
)

type procedureRef struct {
	Schema string `json:"procedure_schema"`
	Name   string `json:"procedure_name"`
}

type executeProcedureInput struct {
	Schema     string `json:"procedure_schema"`
	Name       string `json:"procedure_name"`
	Parameters string `json:"parameters"`
}

// parameterInfo is the client-facing description of one routine parameter.
type parameterInfo struct {
	DataType     string  `json:"data_type"`
	Direction    string  `json:"direction"`
	DefaultValue *string `json:"default_value"`
}

// procedureParameters is the get_stored_procedure_parameters response.
// Parameters holds one single-key object per parameter, keyed by the
// declared name, in declaration order.
type procedureParameters struct {
	Schema     string                     `json:"procedure_schema"`
	Name       string                     `json:"procedure_name"`
	Parameters []map[string]parameterInfo `json:"parameters"`
}

// procedureHandler implements ProcedureHandler on top of the procedure service.
type procedureHandler struct {
	procedures services.ProcedureService
	logger     Logger
	metrics    MetricsCollector
}

// NewProcedureHandler creates a new stored procedure handler.
func NewProcedureHandler(procedures services.ProcedureService, logger Logger, metrics MetricsCollector) ProcedureHandler {
	return &procedureHandler{
		procedures: procedures,
		logger:     logger,
		metrics:    metrics,
	}
}

// ListStoredProcedures lists the read-only stored procedures.
func (h *procedureHandler) ListStoredProcedures(ctx context.Context, _ json.RawMessage) (string, error) {
	timer := h.metrics.StartTimer("tool_list_stored_procedures")
	defer timer.Stop()

	h.logger.Debug("Listing stored procedures")

	procs, err := h.procedures.ListProcedures(ctx)
	if err != nil {
		h.metrics.IncrementCounter("tool_errors", "tool", "list_stored_procedures")
		h.logger.Error("Failed to list stored procedures", "error", err)
		return "", fmt.Errorf("Error listing stored procedures: %s", pkgerrors.GetMessage(err))
	}

	return marshalResult(procs)
}

// GetStoredProcedureDefinition returns a procedure's DDL text as-is.
func (h *procedureHandler) GetStoredProcedureDefinition(ctx context.Context, input json.RawMessage) (string, error) {
	timer := h.metrics.StartTimer("tool_get_stored_procedure_definition")
	defer timer.Stop()

	var in procedureRef
	if err := decodeInput(input, &in); err != nil {
		h.metrics.IncrementCounter("tool_invalid_arguments", "tool", "get_stored_procedure_definition")
		return "", fmt.Errorf("invalid arguments for get_stored_procedure_definition: %v", err)
	}

	h.logger.Debug("Getting stored procedure definition",
		"schema", in.Schema, "procedure", in.Name)

	definition, err := h.procedures.GetProcedureDefinition(ctx, in.Schema, in.Name)
	if err != nil {
		h.metrics.IncrementCounter("tool_errors", "tool", "get_stored_procedure_definition")
		h.logger.Error("Failed to get stored procedure definition",
			"schema", in.Schema, "procedure", in.Name, "error", err)
		return "", fmt.Errorf("Error getting stored procedure definition for %s.%s: %s",
			in.Schema, in.Name, pkgerrors.GetMessage(err))
	}

	return definition, nil
}

// GetStoredProcedureParameters describes a procedure's parameters.
func (h *procedureHandler) GetStoredProcedureParameters(ctx context.Context, input json.RawMessage) (string, error) {
	timer := h.metrics.StartTimer("tool_get_stored_procedure_parameters")
	defer timer.Stop()

	var in procedureRef
	if err := decodeInput(input, &in); err != nil {
		h.metrics.IncrementCounter("tool_invalid_arguments", "tool", "get_stored_procedure_parameters")
		return "", fmt.Errorf("invalid arguments for get_stored_procedure_parameters: %v", err)
	}

	h.logger.Debug("Getting stored procedure parameters",
		"schema", in.Schema, "procedure", in.Name)

	sig, err := h.procedures.GetProcedureParameters(ctx, in.Schema, in.Name)
	if err != nil {
		h.metrics.IncrementCounter("tool_errors", "tool", "get_stored_procedure_parameters")
		h.logger.Error("Failed to get stored procedure parameters",
			"schema", in.Schema, "procedure", in.Name, "error", err)
		return "", fmt.Errorf("Error getting stored procedure parameters for %s.%s: %s",
			in.Schema, in.Name, pkgerrors.GetMessage(err))
	}

	out := procedureParameters{
		Schema:     sig.Schema,
		Name:       sig.Name,
		Parameters: make([]map[string]parameterInfo, 0, len(sig.Parameters)),
	}
	for _, p := range sig.Parameters {
		out.Parameters = append(out.Parameters, map[string]parameterInfo{
			p.Name: {
				DataType:     p.DataType,
				Direction:    string(p.Direction),
				DefaultValue: p.DefaultValue,
			},
		})
	}

	return marshalResult(out)
}

// ExecuteStoredProcedure calls a read-only stored procedure.
func (h *procedureHandler) ExecuteStoredProcedure(ctx context.Context, input json.RawMessage) (string, error) {
	timer := h.metrics.StartTimer("tool_execute_stored_procedure")
	defer timer.Stop()

	var in executeProcedureInput
	if err := decodeInput(input, &in); err != nil {
		h.metrics.IncrementCounter("tool_invalid_arguments", "tool", "execute_stored_procedure")
		return "", fmt.Errorf("invalid arguments for execute_stored_procedure: %v", err)
	}

	h.logger.Debug("Executing stored procedure",
		"schema", in.Schema, "procedure", in.Name)

	result, err := h.procedures.ExecuteProcedure(ctx, in.Schema, in.Name, in.Parameters)
	if err != nil {
		h.metrics.IncrementCounter("tool_errors", "tool", "execute_stored_procedure")
		h.logger.Error("Failed to execute stored procedure",
			"schema", in.Schema, "procedure", in.Name, "error", err)
		return "", fmt.Errorf("Error executing stored procedure %s.%s: %s",
			in.Schema, in.Name, pkgerrors.GetMessage(err))
	}

	h.logger.Info("Stored procedure executed",
		"schema", in.Schema, "procedure", in.Name, "rows", len(result.Rows))

	return marshalResult(result)
}
