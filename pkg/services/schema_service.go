// Package services contains business logic implementations.
package services

import (
	"context"
	"fmt"
	"strings"

	pkgerrors "github.com/quarryhq/quarry/pkg/errors"
	"github.com/quarryhq/quarry/pkg/models"
	"github.com/quarryhq/quarry/pkg/repositories"
)

// schemaService implements SchemaService interface.
type schemaService struct {
	repo     repositories.SchemaRepository
	pool     ConnectionProvider
	renderer *DDLRenderer
	logger   Logger
	metrics  MetricsCollector
}

// NewSchemaService creates a new schema service.
func NewSchemaService(
	repo repositories.SchemaRepository,
	pool ConnectionProvider,
	logger Logger,
	metrics MetricsCollector,
) SchemaService {
	return &schemaService{
		repo:     repo,
		pool:     pool,
		renderer: NewDDLRenderer(),
		logger:   logger,
		metrics:  metrics,
	}
}

// ListSchemas returns all user schema names.
func (s *schemaService) ListSchemas(ctx context.Context) ([]string, error) {
	timer := s.metrics.StartTimer("schema_list_schemas")
	defer timer.Stop()

	s.logger.Debug("Listing schemas")

	var schemas []string
	err := s.pool.With(ctx, func(conn repositories.Querier) error {
		var listErr error
		schemas, listErr = s.repo.ListSchemas(ctx, conn)
		return listErr
	})
	if err != nil {
		s.metrics.IncrementCounter("schema_errors", "operation", "list_schemas")
		s.logger.Error("Failed to list schemas", "error", err)
		return nil, err
	}
	if schemas == nil {
		schemas = []string{}
	}

	s.metrics.RecordGauge("schema_count", float64(len(schemas)))
	s.logger.Info("Retrieved schemas", "count", len(schemas))

	return schemas, nil
}

// ListTableNames returns base table names in a schema. An empty result from
// a schema that exists is returned as an empty list; a schema that does not
// exist is an error.
func (s *schemaService) ListTableNames(ctx context.Context, schema string) ([]string, error) {
	timer := s.metrics.StartTimer("schema_list_tables")
	defer timer.Stop()

	s.logger.Debug("Listing table names", "schema", schema)

	var tables []string
	err := s.pool.With(ctx, func(conn repositories.Querier) error {
		var listErr error
		tables, listErr = s.repo.ListTables(ctx, conn, schema)
		if listErr != nil {
			return listErr
		}
		if len(tables) > 0 {
			return nil
		}
		exists, existsErr := s.repo.SchemaExists(ctx, conn, schema)
		if existsErr != nil {
			return existsErr
		}
		if !exists {
			return pkgerrors.Newf(pkgerrors.CodeNotFound,
				"Schema '%s' does not exist or no tables found in it.", schema)
		}
		return nil
	})
	if err != nil {
		s.metrics.IncrementCounter("schema_errors", "operation", "list_table_names")
		s.logger.Error("Failed to list table names", "error", err, "schema", schema)
		return nil, err
	}
	if tables == nil {
		tables = []string{}
	}

	s.logger.Info("Retrieved table names", "schema", schema, "count", len(tables))

	return tables, nil
}

// GetTableInfo renders CREATE TABLE text plus sample rows for the requested
// tables, joined by blank lines. A table that does not exist renders as a
// comment entry while the remaining tables still succeed. The whole batch
// runs on one pooled connection.
func (s *schemaService) GetTableInfo(ctx context.Context, schema string, tables []string, sampleSize int) (string, error) {
	timer := s.metrics.StartTimer("schema_table_info")
	defer timer.Stop()

	s.logger.Debug("Getting table info",
		"schema", schema,
		"tables", strings.Join(tables, ", "),
		"sample_size", sampleSize)

	if sampleSize < 0 {
		sampleSize = 0
	}

	sections := make([]string, 0, len(tables))
	err := s.pool.With(ctx, func(conn repositories.Querier) error {
		for _, table := range tables {
			section, renderErr := s.renderTable(ctx, conn, schema, table, sampleSize)
			if renderErr != nil {
				return renderErr
			}
			sections = append(sections, section)
		}
		return nil
	})
	if err != nil {
		s.metrics.IncrementCounter("schema_errors", "operation", "get_table_info")
		s.logger.Error("Failed to get table info", "error", err, "schema", schema)
		return "", err
	}

	s.logger.Info("Rendered table info", "schema", schema, "tables", len(tables))

	return strings.Join(sections, "\n\n"), nil
}

func (s *schemaService) renderTable(ctx context.Context, conn repositories.Querier, schema, table string, sampleSize int) (string, error) {
	def, err := s.repo.GetTableDefinition(ctx, conn, schema, table)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			s.metrics.IncrementCounter("table_info_misses")
			s.logger.Warn("Table not found", "schema", schema, "table", table)
			return fmt.Sprintf("/* Table '%s' not found in schema '%s' */", table, schema), nil
		}
		return "", err
	}

	var samples []models.Row
	if sampleSize > 0 {
		samples, err = s.repo.GetSampleRows(ctx, conn, schema, table, sampleSize)
		if err != nil {
			return "", err
		}
	}

	return s.renderer.RenderTableInfo(*def, samples), nil
}
