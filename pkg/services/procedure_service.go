// Package services contains business logic implementations.
package services

import (
	"context"
	"fmt"

	pkgerrors "github.com/quarryhq/quarry/pkg/errors"
	"github.com/quarryhq/quarry/pkg/models"
	"github.com/quarryhq/quarry/pkg/repositories"
)

// procedureService implements ProcedureService interface.
type procedureService struct {
	repo       repositories.ProcedureRepository
	schemaRepo repositories.SchemaRepository
	pool       ConnectionProvider
	logger     Logger
	metrics    MetricsCollector
}

// NewProcedureService creates a new procedure service.
func NewProcedureService(
	repo repositories.ProcedureRepository,
	schemaRepo repositories.SchemaRepository,
	pool ConnectionProvider,
	logger Logger,
	metrics MetricsCollector,
) ProcedureService {
	return &procedureService{
		repo:       repo,
		schemaRepo: schemaRepo,
		pool:       pool,
		logger:     logger,
		metrics:    metrics,
	}
}

// ListProcedures returns descriptors for the read-only stored procedures.
func (s *procedureService) ListProcedures(ctx context.Context) ([]models.RoutineDescriptor, error) {
	timer := s.metrics.StartTimer("procedure_list")
	defer timer.Stop()

	s.logger.Debug("Listing stored procedures")

	var procedures []models.RoutineDescriptor
	err := s.pool.With(ctx, func(conn repositories.Querier) error {
		var listErr error
		procedures, listErr = s.repo.ListProcedures(ctx, conn)
		return listErr
	})
	if err != nil {
		s.metrics.IncrementCounter("procedure_errors", "operation", "list_procedures")
		s.logger.Error("Failed to list stored procedures", "error", err)
		return nil, err
	}
	if procedures == nil {
		procedures = []models.RoutineDescriptor{}
	}

	s.metrics.RecordGauge("procedure_count", float64(len(procedures)))
	s.logger.Info("Retrieved stored procedures", "count", len(procedures))

	return procedures, nil
}

// GetProcedureDefinition returns the source text of a stored procedure.
func (s *procedureService) GetProcedureDefinition(ctx context.Context, schema, name string) (string, error) {
	timer := s.metrics.StartTimer("procedure_definition")
	defer timer.Stop()

	s.logger.Debug("Getting stored procedure definition", "schema", schema, "procedure", name)

	var definition string
	err := s.pool.With(ctx, func(conn repositories.Querier) error {
		if err := s.validateProcedureExists(ctx, conn, schema, name); err != nil {
			return err
		}
		var defErr error
		definition, defErr = s.repo.GetProcedureDefinition(ctx, conn, schema, name)
		return defErr
	})
	if err != nil {
		s.metrics.IncrementCounter("procedure_errors", "operation", "get_definition")
		s.logger.Error("Failed to get stored procedure definition",
			"error", err, "schema", schema, "procedure", name)
		return "", err
	}

	s.logger.Info("Retrieved stored procedure definition",
		"schema", schema, "procedure", name, "length", len(definition))

	return definition, nil
}

// GetProcedureParameters returns the ordered parameter signature of a
// read-only stored procedure. A procedure whose access classification
// permits writes is reported as absent, the same way the listing hides it.
func (s *procedureService) GetProcedureParameters(ctx context.Context, schema, name string) (*models.RoutineSignature, error) {
	timer := s.metrics.StartTimer("procedure_parameters")
	defer timer.Stop()

	s.logger.Debug("Getting stored procedure parameters", "schema", schema, "procedure", name)

	var sig *models.RoutineSignature
	err := s.pool.With(ctx, func(conn repositories.Querier) error {
		if err := s.validateProcedureExists(ctx, conn, schema, name); err != nil {
			return err
		}
		var sigErr error
		sig, sigErr = s.repo.GetSignature(ctx, conn, schema, name)
		if sigErr != nil {
			return sigErr
		}
		if sig.Access != models.AccessReadsSQLData {
			return pkgerrors.Newf(pkgerrors.CodeNotFound,
				"Stored procedure '%s' does not exist in schema '%s'.", name, schema)
		}
		return nil
	})
	if err != nil {
		s.metrics.IncrementCounter("procedure_errors", "operation", "get_parameters")
		s.logger.Error("Failed to get stored procedure parameters",
			"error", err, "schema", schema, "procedure", name)
		return nil, err
	}

	s.logger.Info("Retrieved stored procedure parameters",
		"schema", schema, "procedure", name, "count", len(sig.Parameters))

	return sig, nil
}

// ExecuteProcedure runs a read-only stored procedure with JSON-supplied
// parameters. The existence check, signature read, CALL, and OUT-parameter
// readback all run on the same pooled connection.
func (s *procedureService) ExecuteProcedure(ctx context.Context, schema, name, parametersJSON string) (*models.ExecutionResult, error) {
	timer := s.metrics.StartTimer("procedure_execution")
	defer timer.Stop()

	s.logger.Debug("Executing stored procedure",
		"schema", schema, "procedure", name, "parameters", parametersJSON)

	var result *models.ExecutionResult
	err := s.pool.With(ctx, func(conn repositories.Querier) error {
		if err := s.validateProcedureExists(ctx, conn, schema, name); err != nil {
			return err
		}

		supplied, err := parseCallParameters(parametersJSON)
		if err != nil {
			s.metrics.IncrementCounter("procedure_validation_errors")
			return err
		}

		sig, err := s.repo.GetSignature(ctx, conn, schema, name)
		if err != nil {
			return err
		}
		// The listing filter and the not-found mapping should make this
		// unreachable, but the execution path verifies on its own.
		if sig.Access != models.AccessReadsSQLData {
			return pkgerrors.Newf(pkgerrors.CodeValidation,
				"Stored procedure '%s.%s' is not read-only and cannot be executed.", schema, name)
		}

		slots, err := marshalArguments(*sig, supplied)
		if err != nil {
			s.metrics.IncrementCounter("procedure_validation_errors")
			return err
		}

		result, err = s.repo.ExecuteCall(ctx, conn, schema, name, slots)
		return err
	})
	if err != nil {
		s.metrics.IncrementCounter("procedure_errors", "operation", "execute")
		s.logger.Error("Stored procedure execution failed",
			"error", err, "schema", schema, "procedure", name)
		return nil, err
	}

	result.Message = fmt.Sprintf("Executed %s.%s successfully.", schema, name)

	s.metrics.IncrementCounter("successful_procedure_executions")
	s.logger.Info("Executed stored procedure",
		"schema", schema, "procedure", name, "rows", len(result.Rows))

	return result, nil
}

// validateProcedureExists runs the three-step existence check: the schema,
// then the procedure name anywhere, then the schema-qualified pair. Each
// step carries its own message so the caller learns which part of the
// reference is wrong.
func (s *procedureService) validateProcedureExists(ctx context.Context, conn repositories.Querier, schema, name string) error {
	schemaExists, err := s.schemaRepo.SchemaExists(ctx, conn, schema)
	if err != nil {
		return err
	}
	if !schemaExists {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "Schema '%s' does not exist.", schema)
	}

	nameExists, err := s.repo.ProcedureNameExists(ctx, conn, name)
	if err != nil {
		return err
	}
	if !nameExists {
		return pkgerrors.Newf(pkgerrors.CodeNotFound,
			"Stored procedure name '%s' does not exist in any schema.", name)
	}

	exists, err := s.repo.ProcedureExists(ctx, conn, schema, name)
	if err != nil {
		return err
	}
	if !exists {
		return pkgerrors.Newf(pkgerrors.CodeNotFound,
			"Stored procedure '%s' does not exist in schema '%s'.", name, schema)
	}
	return nil
}
