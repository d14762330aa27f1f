package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	pkgerrors "github.com/quarryhq/quarry/pkg/errors"
	"github.com/quarryhq/quarry/pkg/models"
	"github.com/quarryhq/quarry/pkg/repositories"
)

const (
	listSchemasQuery = `SELECT SCHEMA_NAME FROM INFORMATION_SCHEMA.SCHEMATA WHERE SCHEMA_NAME NOT IN ('information_schema', 'mysql', 'performance_schema', 'sys') ORDER BY SCHEMA_NAME`

	listTablesQuery = `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_TYPE = 'BASE TABLE' AND TABLE_SCHEMA = ? ORDER BY TABLE_NAME`

	schemaExistsQuery = `SELECT EXISTS (SELECT 1 FROM INFORMATION_SCHEMA.SCHEMATA WHERE SCHEMA_NAME = ?)`

	tableColumnsQuery = `SELECT COLUMN_NAME, COLUMN_TYPE, COLUMN_DEFAULT, IS_NULLABLE, COLUMN_COMMENT, ORDINAL_POSITION FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION`

	primaryKeyQuery = `SELECT k.COLUMN_NAME FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS t JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE k ON t.CONSTRAINT_SCHEMA = k.CONSTRAINT_SCHEMA AND t.CONSTRAINT_NAME = k.CONSTRAINT_NAME AND t.TABLE_NAME = k.TABLE_NAME WHERE t.TABLE_SCHEMA = ? AND t.TABLE_NAME = ? AND t.CONSTRAINT_TYPE = 'PRIMARY KEY' ORDER BY k.ORDINAL_POSITION`

	foreignKeysQuery = `SELECT COLUMN_NAME, REFERENCED_TABLE_SCHEMA, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? AND REFERENCED_TABLE_NAME IS NOT NULL ORDER BY CONSTRAINT_NAME, ORDINAL_POSITION`

	uniqueConstraintsQuery = `SELECT tc.CONSTRAINT_NAME, kcu.COLUMN_NAME FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu ON tc.CONSTRAINT_SCHEMA = kcu.CONSTRAINT_SCHEMA AND tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME AND tc.TABLE_NAME = kcu.TABLE_NAME WHERE tc.TABLE_SCHEMA = ? AND tc.TABLE_NAME = ? AND tc.CONSTRAINT_TYPE = 'UNIQUE' ORDER BY tc.CONSTRAINT_NAME, kcu.ORDINAL_POSITION`

	checkConstraintsQuery = `SELECT tc.CONSTRAINT_NAME, cc.CHECK_CLAUSE FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc JOIN INFORMATION_SCHEMA.CHECK_CONSTRAINTS cc ON tc.CONSTRAINT_SCHEMA = cc.CONSTRAINT_SCHEMA AND tc.CONSTRAINT_NAME = cc.CONSTRAINT_NAME WHERE tc.TABLE_SCHEMA = ? AND tc.TABLE_NAME = ? AND tc.CONSTRAINT_TYPE = 'CHECK' ORDER BY tc.CONSTRAINT_NAME`
)

// schemaRepository implements repositories.SchemaRepository for MySQL.
type schemaRepository struct {
	logger zerolog.Logger
}

// NewSchemaRepository creates a new MySQL schema repository.
func NewSchemaRepository(logger zerolog.Logger) repositories.SchemaRepository {
	return &schemaRepository{
		logger: logger.With().Str("component", "schema_repository").Logger(),
	}
}

// ListSchemas returns user schema names ordered by name.
func (r *schemaRepository) ListSchemas(ctx context.Context, conn repositories.Querier) ([]string, error) {
	r.logger.Debug().Msg("Listing schemas")

	rows, err := conn.QueryContext(ctx, listSchemasQuery)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.CodeQueryExecution, "%v", err)
	}
	defer rows.Close()

	schemas, err := scanStrings(rows)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.CodeQueryExecution, "%v", err)
	}
	return schemas, nil
}

// ListTables returns base table names in a schema ordered by name.
func (r *schemaRepository) ListTables(ctx context.Context, conn repositories.Querier, schema string) ([]string, error) {
	r.logger.Debug().Str("schema", schema).Msg("Listing tables")

	rows, err := conn.QueryContext(ctx, listTablesQuery, schema)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.CodeQueryExecution, "%v", err)
	}
	defer rows.Close()

	tables, err := scanStrings(rows)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.CodeQueryExecution, "%v", err)
	}
	return tables, nil
}

// SchemaExists reports whether a schema exists.
func (r *schemaRepository) SchemaExists(ctx context.Context, conn repositories.Querier, schema string) (bool, error) {
	var exists bool
	if err := conn.QueryRowContext(ctx, schemaExistsQuery, schema).Scan(&exists); err != nil {
		return false, pkgerrors.Wrapf(err, pkgerrors.CodeQueryExecution, "%v", err)
	}
	return exists, nil
}

// GetTableDefinition reads columns, keys and constraints for one table. A
// table without catalog columns does not exist.
func (r *schemaRepository) GetTableDefinition(ctx context.Context, conn repositories.Querier, schema, table string) (*models.TableDefinition, error) {
	r.logger.Debug().Str("schema", schema).Str("table", table).Msg("Reading table definition")

	columns, err := r.getColumns(ctx, conn, schema, table)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "Table '%s' not found in schema '%s'", table, schema)
	}

	primaryKey, err := r.getPrimaryKey(ctx, conn, schema, table)
	if err != nil {
		return nil, err
	}
	foreignKeys, err := r.getForeignKeys(ctx, conn, schema, table)
	if err != nil {
		return nil, err
	}
	uniqueConstraints, err := r.getUniqueConstraints(ctx, conn, schema, table)
	if err != nil {
		return nil, err
	}
	checkConstraints, err := r.getCheckConstraints(ctx, conn, schema, table)
	if err != nil {
		return nil, err
	}

	return &models.TableDefinition{
		Schema:            schema,
		Name:              table,
		Columns:           columns,
		PrimaryKey:        primaryKey,
		ForeignKeys:       foreignKeys,
		UniqueConstraints: uniqueConstraints,
		CheckConstraints:  checkConstraints,
	}, nil
}

// GetSampleRows reads up to limit rows from a table.
func (r *schemaRepository) GetSampleRows(ctx context.Context, conn repositories.Querier, schema, table string, limit int) ([]models.Row, error) {
	r.logger.Debug().Str("schema", schema).Str("table", table).Int("limit", limit).Msg("Sampling rows")

	query := fmt.Sprintf("SELECT * FROM %s LIMIT ?", qualifyName(schema, table))
	rows, err := conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.CodeQueryExecution, "%v", err)
	}
	defer rows.Close()

	samples, err := scanRows(rows, 0)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.CodeQueryExecution, "%v", err)
	}
	return samples, nil
}

func (r *schemaRepository) getColumns(ctx context.Context, conn repositories.Querier, schema, table string) ([]models.Column, error) {
	rows, err := conn.QueryContext(ctx, tableColumnsQuery, schema, table)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.CodeQueryExecution, "%v", err)
	}
	defer rows.Close()

	var columns []models.Column
	for rows.Next() {
		var (
			col        models.Column
			columnType string
			nullable   string
			comment    sql.NullString
		)
		if err := rows.Scan(&col.Name, &columnType, &col.DefaultValue, &nullable, &comment, &col.OrdinalPosition); err != nil {
			return nil, pkgerrors.Wrapf(err, pkgerrors.CodeQueryExecution, "%v", err)
		}
		col.ColumnType = formatColumnType(columnType)
		col.IsNullable = nullable == "YES"
		// The catalog reports an empty string, not NULL, for uncommented columns.
		if comment.Valid && comment.String != "" {
			col.Comment = comment
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

func (r *schemaRepository) getPrimaryKey(ctx context.Context, conn repositories.Querier, schema, table string) ([]string, error) {
	rows, err := conn.QueryContext(ctx, primaryKeyQuery, schema, table)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.CodeQueryExecution, "%v", err)
	}
	defer rows.Close()

	return scanStrings(rows)
}

func (r *schemaRepository) getForeignKeys(ctx context.Context, conn repositories.Querier, schema, table string) ([]models.ForeignKey, error) {
	rows, err := conn.QueryContext(ctx, foreignKeysQuery, schema, table)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.CodeQueryExecution, "%v", err)
	}
	defer rows.Close()

	var keys []models.ForeignKey
	for rows.Next() {
		var fk models.ForeignKey
		if err := rows.Scan(&fk.ColumnName, &fk.ReferencedSchema, &fk.ReferencedTable, &fk.ReferencedColumn); err != nil {
			return nil, pkgerrors.Wrapf(err, pkgerrors.CodeQueryExecution, "%v", err)
		}
		keys = append(keys, fk)
	}
	return keys, rows.Err()
}

func (r *schemaRepository) getUniqueConstraints(ctx context.Context, conn repositories.Querier, schema, table string) ([]models.UniqueConstraint, error) {
	rows, err := conn.QueryContext(ctx, uniqueConstraintsQuery, schema, table)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.CodeQueryExecution, "%v", err)
	}
	defer rows.Close()

	var constraints []models.UniqueConstraint
	for rows.Next() {
		var name, column string
		if err := rows.Scan(&name, &column); err != nil {
			return nil, pkgerrors.Wrapf(err, pkgerrors.CodeQueryExecution, "%v", err)
		}
		n := len(constraints)
		if n == 0 || constraints[n-1].Name != name {
			constraints = append(constraints, models.UniqueConstraint{Name: name})
			n++
		}
		constraints[n-1].Columns = append(constraints[n-1].Columns, column)
	}
	return constraints, rows.Err()
}

func (r *schemaRepository) getCheckConstraints(ctx context.Context, conn repositories.Querier, schema, table string) ([]models.CheckConstraint, error) {
	rows, err := conn.QueryContext(ctx, checkConstraintsQuery, schema, table)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.CodeQueryExecution, "%v", err)
	}
	defer rows.Close()

	var constraints []models.CheckConstraint
	for rows.Next() {
		var cc models.CheckConstraint
		if err := rows.Scan(&cc.Name, &cc.Clause); err != nil {
			return nil, pkgerrors.Wrapf(err, pkgerrors.CodeQueryExecution, "%v", err)
		}
		constraints = append(constraints, cc)
	}
	return constraints, rows.Err()
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, pkgerrors.Wrapf(err, pkgerrors.CodeQueryExecution, "%v", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
