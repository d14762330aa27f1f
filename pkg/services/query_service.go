// Package services contains business logic implementations.
package services

import (
	"context"
	"strings"
	"time"

	pkgerrors "github.com/quarryhq/quarry/pkg/errors"
	"github.com/quarryhq/quarry/pkg/models"
	"github.com/quarryhq/quarry/pkg/repositories"
)

// queryService implements QueryService interface.
type queryService struct {
	repo       repositories.QueryRepository
	pool       ConnectionProvider
	logger     Logger
	metrics    MetricsCollector
	classifier *StatementClassifier
}

// NewQueryService creates a new query service.
func NewQueryService(
	repo repositories.QueryRepository,
	pool ConnectionProvider,
	logger Logger,
	metrics MetricsCollector,
) QueryService {
	return &queryService{
		repo:       repo,
		pool:       pool,
		logger:     logger,
		metrics:    metrics,
		classifier: NewStatementClassifier(),
	}
}

// ExecuteQuery validates that the statement is a single read-only selection
// and runs it on a pooled connection. Validation completes before any
// connection is touched, so a rejected statement never consumes pool
// capacity.
func (s *queryService) ExecuteQuery(ctx context.Context, req *models.QueryRequest) (*models.QueryResult, error) {
	timer := s.metrics.StartTimer("query_execution")
	defer timer.Stop()

	if req == nil || strings.TrimSpace(req.Query) == "" {
		s.metrics.IncrementCounter("query_validation_errors")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "query cannot be empty")
	}

	s.logger.Debug("Executing query", "query", req.Query)

	if err := s.classifier.EnsureReadOnly(req.Query); err != nil {
		s.metrics.IncrementCounter("query_validation_errors")
		s.logger.Warn("Rejected statement", "error", err, "query", req.Query)
		return nil, err
	}

	queryCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		queryCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	start := time.Now()
	var result *models.QueryResult
	err := s.pool.With(queryCtx, func(conn repositories.Querier) error {
		var execErr error
		result, execErr = s.repo.ExecuteQuery(queryCtx, conn, *req)
		return execErr
	})
	executionTime := time.Since(start)

	if err != nil {
		s.metrics.IncrementCounter("query_execution_errors")
		s.logger.Error("Query execution failed",
			"error", err,
			"query", req.Query,
			"execution_time", executionTime)
		return nil, err
	}

	result.ExecutionTime = executionTime

	s.metrics.IncrementCounter("successful_queries")
	s.metrics.RecordHistogram("query_execution_time", executionTime.Seconds())
	s.metrics.RecordHistogram("query_result_rows", float64(result.RowCount))

	s.logger.Info("Query executed successfully",
		"query", req.Query,
		"rows", result.RowCount,
		"execution_time", executionTime)

	return result, nil
}

// ValidateQuery checks that the statement is a single read-only selection.
func (s *queryService) ValidateQuery(ctx context.Context, query string) error {
	if strings.TrimSpace(query) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "query cannot be empty")
	}
	return s.classifier.EnsureReadOnly(query)
}

// GetStatementType returns the statement type of the query.
func (s *queryService) GetStatementType(query string) StatementType {
	typ, err := s.classifier.Classify(query)
	if err != nil {
		return StatementTypeOther
	}
	return typ
}

// IsQueryStatement reports whether the statement reads data only.
func (s *queryService) IsQueryStatement(query string) bool {
	return s.classifier.IsReadOnly(query)
}
