package handlers

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/quarryhq/quarry/pkg/models"
	"github.com/quarryhq/quarry/pkg/services"
)

// MockSchemaService is a mock implementation of services.SchemaService.
type MockSchemaService struct {
	mock.Mock
}

func (m *MockSchemaService) ListSchemas(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockSchemaService) ListTableNames(ctx context.Context, schema string) ([]string, error) {
	args := m.Called(ctx, schema)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockSchemaService) GetTableInfo(ctx context.Context, schema string, tables []string, sampleSize int) (string, error) {
	args := m.Called(ctx, schema, tables, sampleSize)
	return args.String(0), args.Error(1)
}

// MockQueryService is a mock implementation of services.QueryService.
type MockQueryService struct {
	mock.Mock
}

func (m *MockQueryService) ExecuteQuery(ctx context.Context, req *models.QueryRequest) (*models.QueryResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QueryResult), args.Error(1)
}

func (m *MockQueryService) ValidateQuery(ctx context.Context, query string) error {
	args := m.Called(ctx, query)
	return args.Error(0)
}

func (m *MockQueryService) GetStatementType(query string) services.StatementType {
	args := m.Called(query)
	return args.Get(0).(services.StatementType)
}

func (m *MockQueryService) IsQueryStatement(query string) bool {
	args := m.Called(query)
	return args.Bool(0)
}

// MockProcedureService is a mock implementation of services.ProcedureService.
type MockProcedureService struct {
	mock.Mock
}

func (m *MockProcedureService) ListProcedures(ctx context.Context) ([]models.RoutineDescriptor, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RoutineDescriptor), args.Error(1)
}

func (m *MockProcedureService) GetProcedureDefinition(ctx context.Context, schema, name string) (string, error) {
	args := m.Called(ctx, schema, name)
	return args.String(0), args.Error(1)
}

func (m *MockProcedureService) GetProcedureParameters(ctx context.Context, schema, name string) (*models.RoutineSignature, error) {
	args := m.Called(ctx, schema, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RoutineSignature), args.Error(1)
}

func (m *MockProcedureService) ExecuteProcedure(ctx context.Context, schema, name, parametersJSON string) (*models.ExecutionResult, error) {
	args := m.Called(ctx, schema, name, parametersJSON)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ExecutionResult), args.Error(1)
}

type noopLogger struct{}

func (noopLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (noopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (noopLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (noopLogger) Error(msg string, keysAndValues ...interface{}) {}

type noopTimer struct{}

func (noopTimer) Stop() {}

type noopMetrics struct{}

func (noopMetrics) IncrementCounter(name string, tags ...string)                 {}
func (noopMetrics) RecordHistogram(name string, value float64, tags ...string)   {}
func (noopMetrics) RecordGauge(name string, value float64, tags ...string)       {}
func (noopMetrics) StartTimer(name string) Timer                                 { return noopTimer{} }
