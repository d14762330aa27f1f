package handlers

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"

	pkgerrors "github.com/quarryhq/quarry/pkg/errors"
	"github.com/quarryhq/quarry/pkg/models"
	"github.com/quarryhq/quarry/pkg/services"
)

type executeQueryInput struct {
	Query  string   `json:"query"`
	Params []string `json:"params"`
}

// queryHandler implements QueryHandler on top of the query service.
type queryHandler struct {
	queries services.QueryService
	logger  Logger
	metrics MetricsCollector
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(queries services.QueryService, logger Logger, metrics MetricsCollector) QueryHandler {
	return &queryHandler{
		queries: queries,
		logger:  logger,
		metrics: metrics,
	}
}

// ExecuteQuery runs a read-only query and returns its rows as a JSON array
// of objects, one per row, with keys in result-set column order.
func (h *queryHandler) ExecuteQuery(ctx context.Context, input json.RawMessage) (string, error) {
	timer := h.metrics.StartTimer("tool_execute_query")
	defer timer.Stop()

	var in executeQueryInput
	if err := decodeInput(input, &in); err != nil {
		h.metrics.IncrementCounter("tool_invalid_arguments", "tool", "execute_query")
		return "", fmt.Errorf("invalid arguments for execute_query: %v", err)
	}

	h.logger.Debug("Executing query", "query", truncateQuery(in.Query))

	req := &models.QueryRequest{Query: in.Query}
	if len(in.Params) > 0 {
		req.Parameters = make([]interface{}, len(in.Params))
		for i, p := range in.Params {
			req.Parameters[i] = p
		}
	}

	result, err := h.queries.ExecuteQuery(ctx, req)
	if err != nil {
		// A statement that failed read-only validation never reached the
		// database; the refusal text carries no execution envelope.
		if pkgerrors.IsValidation(err) {
			h.metrics.IncrementCounter("tool_rejected_statements")
			h.logger.Warn("Rejected non-SELECT statement", "query", truncateQuery(in.Query))
			return "", stdErrors.New("Only SELECT queries are allowed.")
		}
		h.metrics.IncrementCounter("tool_errors", "tool", "execute_query")
		h.logger.Error("Query execution failed",
			"query", truncateQuery(in.Query), "error", err)
		return "", fmt.Errorf("Database error executing query '%s': %s",
			in.Query, pkgerrors.GetMessage(err))
	}

	h.logger.Debug("Read query returned rows", "row_count", result.RowCount)
	h.metrics.RecordHistogram("tool_query_rows", float64(result.RowCount))

	return marshalResult(result.Rows)
}

// decodeInput unmarshals tool arguments. Missing input is treated as an
// empty argument object so tools without parameters accept a bare call.
func decodeInput(input json.RawMessage, v interface{}) error {
	if len(input) == 0 {
		return nil
	}
	return json.Unmarshal(input, v)
}

// marshalResult renders a tool result as compact JSON.
func marshalResult(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding tool result: %v", err)
	}
	return string(data), nil
}

// truncateQuery truncates long queries for logging.
func truncateQuery(query string) string {
	const maxLen = 100
	if len(query) <= maxLen {
		return query
	}
	return query[:maxLen] + "..."
}
