package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/quarryhq/quarry/pkg/models"
	"github.com/quarryhq/quarry/pkg/repositories"
)

// stubProvider satisfies ConnectionProvider with a canned connection and
// counts checkouts, so tests can assert when the pool was not touched.
type stubProvider struct {
	conn     repositories.Querier
	err      error
	acquired int
}

func (p *stubProvider) With(ctx context.Context, fn func(conn repositories.Querier) error) error {
	if p.err != nil {
		return p.err
	}
	p.acquired++
	return fn(p.conn)
}

// MockSchemaRepository is a mock implementation of repositories.SchemaRepository.
type MockSchemaRepository struct {
	mock.Mock
}

func (m *MockSchemaRepository) ListSchemas(ctx context.Context, conn repositories.Querier) ([]string, error) {
	args := m.Called(ctx, conn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockSchemaRepository) ListTables(ctx context.Context, conn repositories.Querier, schema string) ([]string, error) {
	args := m.Called(ctx, conn, schema)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockSchemaRepository) SchemaExists(ctx context.Context, conn repositories.Querier, schema string) (bool, error) {
	args := m.Called(ctx, conn, schema)
	return args.Bool(0), args.Error(1)
}

func (m *MockSchemaRepository) GetTableDefinition(ctx context.Context, conn repositories.Querier, schema, table string) (*models.TableDefinition, error) {
	args := m.Called(ctx, conn, schema, table)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TableDefinition), args.Error(1)
}

func (m *MockSchemaRepository) GetSampleRows(ctx context.Context, conn repositories.Querier, schema, table string, limit int) ([]models.Row, error) {
	args := m.Called(ctx, conn, schema, table, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Row), args.Error(1)
}

// MockProcedureRepository is a mock implementation of repositories.ProcedureRepository.
type MockProcedureRepository struct {
	mock.Mock
}

func (m *MockProcedureRepository) ListProcedures(ctx context.Context, conn repositories.Querier) ([]models.RoutineDescriptor, error) {
	args := m.Called(ctx, conn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RoutineDescriptor), args.Error(1)
}

func (m *MockProcedureRepository) ProcedureNameExists(ctx context.Context, conn repositories.Querier, name string) (bool, error) {
	args := m.Called(ctx, conn, name)
	return args.Bool(0), args.Error(1)
}

func (m *MockProcedureRepository) ProcedureExists(ctx context.Context, conn repositories.Querier, schema, name string) (bool, error) {
	args := m.Called(ctx, conn, schema, name)
	return args.Bool(0), args.Error(1)
}

func (m *MockProcedureRepository) GetProcedureDefinition(ctx context.Context, conn repositories.Querier, schema, name string) (string, error) {
	args := m.Called(ctx, conn, schema, name)
	return args.String(0), args.Error(1)
}

func (m *MockProcedureRepository) GetSignature(ctx context.Context, conn repositories.Querier, schema, name string) (*models.RoutineSignature, error) {
	args := m.Called(ctx, conn, schema, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RoutineSignature), args.Error(1)
}

func (m *MockProcedureRepository) ExecuteCall(ctx context.Context, conn repositories.Querier, schema, name string, slots []models.CallSlot) (*models.ExecutionResult, error) {
	args := m.Called(ctx, conn, schema, name, slots)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ExecutionResult), args.Error(1)
}

// MockQueryRepository is a mock implementation of repositories.QueryRepository.
type MockQueryRepository struct {
	mock.Mock
}

func (m *MockQueryRepository) ExecuteQuery(ctx context.Context, conn repositories.Querier, req models.QueryRequest) (*models.QueryResult, error) {
	args := m.Called(ctx, conn, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QueryResult), args.Error(1)
}

type noopLogger struct{}

func (noopLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (noopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (noopLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (noopLogger) Error(msg string, keysAndValues ...interface{}) {}

type noopTimer struct{}

func (noopTimer) Stop() time.Duration { return 0 }

type noopMetrics struct{}

func (noopMetrics) IncrementCounter(name string, labels ...string)              {}
func (noopMetrics) RecordHistogram(name string, value float64, labels ...string) {}
func (noopMetrics) RecordGauge(name string, value float64, labels ...string)    {}
func (noopMetrics) StartTimer(name string) Timer                                { return noopTimer{} }
