package mysql

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	pkgerrors "github.com/quarryhq/quarry/pkg/errors"
	"github.com/quarryhq/quarry/pkg/models"
	"github.com/quarryhq/quarry/pkg/repositories"
)

// queryRepository implements repositories.QueryRepository for MySQL.
type queryRepository struct {
	logger zerolog.Logger
}

// NewQueryRepository creates a new MySQL query repository.
func NewQueryRepository(logger zerolog.Logger) repositories.QueryRepository {
	return &queryRepository{
		logger: logger.With().Str("component", "query_repository").Logger(),
	}
}

// ExecuteQuery runs an already validated read-only statement and collects
// up to req.MaxRows rows. Statement validation is the caller's job; this
// layer only executes.
func (r *queryRepository) ExecuteQuery(ctx context.Context, conn repositories.Querier, req models.QueryRequest) (*models.QueryResult, error) {
	r.logger.Debug().Str("query", req.Query).Int("params", len(req.Parameters)).Msg("Executing query")

	start := time.Now()
	rows, err := conn.QueryContext(ctx, req.Query, req.Parameters...)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.CodeQueryExecution, "%v", err)
	}
	defer rows.Close()

	collected, err := scanRows(rows, req.MaxRows)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.CodeQueryExecution, "%v", err)
	}
	if collected == nil {
		collected = []models.Row{}
	}

	return &models.QueryResult{
		Rows:          collected,
		RowCount:      int64(len(collected)),
		ExecutionTime: time.Since(start),
	}, nil
}
