package handlers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/quarryhq/quarry/pkg/errors"
	"github.com/quarryhq/quarry/pkg/models"
)

func TestQueryHandler_ExecuteQuery(t *testing.T) {
	result := &models.QueryResult{
		Rows: []models.Row{
			{Columns: []string{"id", "name"}, Values: []interface{}{int64(1), "alice"}},
			{Columns: []string{"id", "name"}, Values: []interface{}{int64(2), "bob"}},
		},
		RowCount:      2,
		ExecutionTime: 3 * time.Millisecond,
	}

	svc := new(MockQueryService)
	svc.On("ExecuteQuery", mock.Anything,
		&models.QueryRequest{Query: "SELECT id, name FROM bank.accounts"}).Return(result, nil)

	h := NewQueryHandler(svc, noopLogger{}, noopMetrics{})

	out, err := h.ExecuteQuery(context.Background(),
		json.RawMessage(`{"query":"SELECT id, name FROM bank.accounts"}`))
	require.NoError(t, err)

	// Rows go out as a bare array of objects with keys in column order.
	assert.Equal(t, `[{"id":1,"name":"alice"},{"id":2,"name":"bob"}]`, out)

	svc.AssertExpectations(t)
}

func TestQueryHandler_ExecuteQueryWithParameters(t *testing.T) {
	result := &models.QueryResult{Rows: []models.Row{}, RowCount: 0}

	svc := new(MockQueryService)
	svc.On("ExecuteQuery", mock.Anything, &models.QueryRequest{
		Query:      "SELECT name FROM bank.accounts WHERE id = ?",
		Parameters: []interface{}{"7"},
	}).Return(result, nil)

	h := NewQueryHandler(svc, noopLogger{}, noopMetrics{})

	out, err := h.ExecuteQuery(context.Background(),
		json.RawMessage(`{"query":"SELECT name FROM bank.accounts WHERE id = ?","params":["7"]}`))
	require.NoError(t, err)
	assert.Equal(t, `[]`, out)

	svc.AssertExpectations(t)
}

func TestQueryHandler_RejectsNonSelect(t *testing.T) {
	svc := new(MockQueryService)
	svc.On("ExecuteQuery", mock.Anything, mock.Anything).Return(nil, pkgerrors.ErrNotReadOnly)

	h := NewQueryHandler(svc, noopLogger{}, noopMetrics{})

	out, err := h.ExecuteQuery(context.Background(),
		json.RawMessage(`{"query":"DELETE FROM bank.accounts"}`))
	require.Error(t, err)

	// Refusals carry no execution envelope.
	assert.EqualError(t, err, "Only SELECT queries are allowed.")
	assert.Empty(t, out)
}

func TestQueryHandler_EmptyQueryRejected(t *testing.T) {
	svc := new(MockQueryService)
	svc.On("ExecuteQuery", mock.Anything, mock.Anything).Return(nil,
		pkgerrors.New(pkgerrors.CodeValidation, "query cannot be empty"))

	h := NewQueryHandler(svc, noopLogger{}, noopMetrics{})

	_, err := h.ExecuteQuery(context.Background(), json.RawMessage(`{"query":""}`))
	require.Error(t, err)
	assert.EqualError(t, err, "Only SELECT queries are allowed.")
}

func TestQueryHandler_DatabaseError(t *testing.T) {
	svc := new(MockQueryService)
	svc.On("ExecuteQuery", mock.Anything, mock.Anything).Return(nil,
		pkgerrors.Newf(pkgerrors.CodeQueryExecution, "Error 1054 (42S22): Unknown column 'x' in 'field list'"))

	h := NewQueryHandler(svc, noopLogger{}, noopMetrics{})

	_, err := h.ExecuteQuery(context.Background(),
		json.RawMessage(`{"query":"SELECT x FROM bank.accounts"}`))
	require.Error(t, err)
	assert.EqualError(t, err,
		"Database error executing query 'SELECT x FROM bank.accounts': Error 1054 (42S22): Unknown column 'x' in 'field list'")
}

func TestQueryHandler_EmptyResult(t *testing.T) {
	svc := new(MockQueryService)
	svc.On("ExecuteQuery", mock.Anything, mock.Anything).Return(
		&models.QueryResult{Rows: []models.Row{}, RowCount: 0}, nil)

	h := NewQueryHandler(svc, noopLogger{}, noopMetrics{})

	out, err := h.ExecuteQuery(context.Background(),
		json.RawMessage(`{"query":"SELECT id FROM bank.accounts WHERE 1 = 0"}`))
	require.NoError(t, err)
	assert.Equal(t, `[]`, out)
}

func TestQueryHandler_InvalidArguments(t *testing.T) {
	svc := new(MockQueryService)

	h := NewQueryHandler(svc, noopLogger{}, noopMetrics{})

	_, err := h.ExecuteQuery(context.Background(), json.RawMessage(`{"query":7}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid arguments for execute_query")

	svc.AssertNumberOfCalls(t, "ExecuteQuery", 0)
}
