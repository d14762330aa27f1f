package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	pkgerrors "github.com/quarryhq/quarry/pkg/errors"
	"github.com/quarryhq/quarry/pkg/models"
	"github.com/quarryhq/quarry/pkg/repositories"
)

// Listing and definition lookups filter on SQL_DATA_ACCESS so write-capable
// procedures stay invisible; existence checks and signatures do not, so
// callers can tell "not read-only" apart from "does not exist".
const (
	listProceduresQuery = `SELECT ROUTINE_SCHEMA, ROUTINE_NAME, ROUTINE_COMMENT, ROUTINE_DEFINITION FROM INFORMATION_SCHEMA.ROUTINES WHERE ROUTINE_TYPE = 'PROCEDURE' AND SQL_DATA_ACCESS = 'READS SQL DATA' ORDER BY ROUTINE_SCHEMA, ROUTINE_NAME`

	procedureNameExistsQuery = `SELECT EXISTS (SELECT 1 FROM INFORMATION_SCHEMA.ROUTINES WHERE ROUTINE_TYPE = 'PROCEDURE' AND ROUTINE_NAME = ?)`

	procedureExistsQuery = `SELECT EXISTS (SELECT 1 FROM INFORMATION_SCHEMA.ROUTINES WHERE ROUTINE_TYPE = 'PROCEDURE' AND ROUTINE_SCHEMA = ? AND ROUTINE_NAME = ?)`

	procedureDefinitionQuery = `SELECT ROUTINE_DEFINITION FROM INFORMATION_SCHEMA.ROUTINES WHERE ROUTINE_TYPE = 'PROCEDURE' AND ROUTINE_SCHEMA = ? AND ROUTINE_NAME = ? AND SQL_DATA_ACCESS = 'READS SQL DATA'`

	procedureSignatureQuery = `SELECT r.SQL_DATA_ACCESS, p.PARAMETER_NAME, p.ORDINAL_POSITION, p.DTD_IDENTIFIER, p.PARAMETER_MODE FROM INFORMATION_SCHEMA.ROUTINES r LEFT JOIN INFORMATION_SCHEMA.PARAMETERS p ON p.SPECIFIC_SCHEMA = r.ROUTINE_SCHEMA AND p.SPECIFIC_NAME = r.SPECIFIC_NAME AND p.ROUTINE_TYPE = 'PROCEDURE' WHERE r.ROUTINE_TYPE = 'PROCEDURE' AND r.ROUTINE_SCHEMA = ? AND r.ROUTINE_NAME = ? ORDER BY p.ORDINAL_POSITION`
)

// procedureRepository implements repositories.ProcedureRepository for MySQL.
type procedureRepository struct {
	logger zerolog.Logger
}

// NewProcedureRepository creates a new MySQL procedure repository.
func NewProcedureRepository(logger zerolog.Logger) repositories.ProcedureRepository {
	return &procedureRepository{
		logger: logger.With().Str("component", "procedure_repository").Logger(),
	}
}

// ListProcedures returns the read-only procedures visible to callers,
// ordered by schema then name. Routines without a catalog comment fall back
// to a comment parsed from the head of their definition.
func (r *procedureRepository) ListProcedures(ctx context.Context, conn repositories.Querier) ([]models.RoutineDescriptor, error) {
	r.logger.Debug().Msg("Listing stored procedures")

	rows, err := conn.QueryContext(ctx, listProceduresQuery)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.CodeQueryExecution, "%v", err)
	}
	defer rows.Close()

	var procedures []models.RoutineDescriptor
	for rows.Next() {
		var (
			desc       models.RoutineDescriptor
			comment    sql.NullString
			definition sql.NullString
		)
		if err := rows.Scan(&desc.Schema, &desc.Name, &comment, &definition); err != nil {
			return nil, pkgerrors.Wrapf(err, pkgerrors.CodeQueryExecution, "%v", err)
		}
		desc.Access = models.AccessReadsSQLData
		if comment.Valid && comment.String != "" {
			remark := comment.String
			desc.Remark = &remark
		} else if definition.Valid {
			desc.Remark = extractRoutineComment(definition.String)
		}
		procedures = append(procedures, desc)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.CodeQueryExecution, "%v", err)
	}
	return procedures, nil
}

// ProcedureNameExists reports whether any schema has a procedure with the name.
func (r *procedureRepository) ProcedureNameExists(ctx context.Context, conn repositories.Querier, name string) (bool, error) {
	var exists bool
	if err := conn.QueryRowContext(ctx, procedureNameExistsQuery, name).Scan(&exists); err != nil {
		return false, pkgerrors.Wrapf(err, pkgerrors.CodeQueryExecution, "%v", err)
	}
	return exists, nil
}

// ProcedureExists reports whether a schema has a procedure with the name.
func (r *procedureRepository) ProcedureExists(ctx context.Context, conn repositories.Querier, schema, name string) (bool, error) {
	var exists bool
	if err := conn.QueryRowContext(ctx, procedureExistsQuery, schema, name).Scan(&exists); err != nil {
		return false, pkgerrors.Wrapf(err, pkgerrors.CodeQueryExecution, "%v", err)
	}
	return exists, nil
}

// GetProcedureDefinition returns the source text of a read-only procedure.
// Write-capable procedures are treated as absent. When the catalog hides the
// inline definition, SHOW CREATE PROCEDURE is tried as a fallback.
func (r *procedureRepository) GetProcedureDefinition(ctx context.Context, conn repositories.Querier, schema, name string) (string, error) {
	r.logger.Debug().Str("schema", schema).Str("procedure", name).Msg("Reading procedure definition")

	var definition sql.NullString
	err := conn.QueryRowContext(ctx, procedureDefinitionQuery, schema, name).Scan(&definition)
	if err == sql.ErrNoRows {
		return "", pkgerrors.Newf(pkgerrors.CodeNotFound, "Stored procedure '%s' does not exist in schema '%s'.", name, schema)
	}
	if err != nil {
		return "", pkgerrors.Wrapf(err, pkgerrors.CodeQueryExecution, "%v", err)
	}
	if definition.Valid && definition.String != "" {
		return definition.String, nil
	}
	return r.showCreateProcedure(ctx, conn, schema, name)
}

func (r *procedureRepository) showCreateProcedure(ctx context.Context, conn repositories.Querier, schema, name string) (string, error) {
	rows, err := conn.QueryContext(ctx, "SHOW CREATE PROCEDURE "+qualifyName(schema, name))
	if err != nil {
		return "", pkgerrors.Wrapf(err, pkgerrors.CodeQueryExecution, "%v", err)
	}
	defer rows.Close()

	result, err := scanRows(rows, 1)
	if err != nil {
		return "", pkgerrors.Wrapf(err, pkgerrors.CodeQueryExecution, "%v", err)
	}
	if len(result) == 0 {
		return "", nil
	}
	if value, ok := result[0].Get("Create Procedure"); ok {
		if text, ok := value.(string); ok {
			return text, nil
		}
	}
	return "", nil
}

// GetSignature returns the ordered parameter list and the SQL data access
// classification of a procedure. Access is not filtered here so the caller
// can distinguish a write-capable procedure from a missing one.
func (r *procedureRepository) GetSignature(ctx context.Context, conn repositories.Querier, schema, name string) (*models.RoutineSignature, error) {
	r.logger.Debug().Str("schema", schema).Str("procedure", name).Msg("Reading procedure signature")

	rows, err := conn.QueryContext(ctx, procedureSignatureQuery, schema, name)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.CodeQueryExecution, "%v", err)
	}
	defer rows.Close()

	sig := &models.RoutineSignature{Schema: schema, Name: name}
	found := false
	for rows.Next() {
		var (
			access    sql.NullString
			paramName sql.NullString
			position  sql.NullInt64
			dataType  sql.NullString
			mode      sql.NullString
		)
		if err := rows.Scan(&access, &paramName, &position, &dataType, &mode); err != nil {
			return nil, pkgerrors.Wrapf(err, pkgerrors.CodeQueryExecution, "%v", err)
		}
		found = true
		sig.Access = strings.ToUpper(strings.TrimSpace(access.String))
		// A NULL parameter name is the LEFT JOIN's marker for a routine
		// that declares no parameters.
		if !paramName.Valid {
			continue
		}
		sig.Parameters = append(sig.Parameters, models.RoutineParameter{
			Name:            paramName.String,
			OrdinalPosition: int(position.Int64),
			DataType:        formatColumnType(dataType.String),
			Direction:       models.ParameterDirection(strings.ToUpper(strings.TrimSpace(mode.String))),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.CodeQueryExecution, "%v", err)
	}
	if !found {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "Stored procedure '%s' does not exist in schema '%s'.", name, schema)
	}
	return sig, nil
}

// ExecuteCall runs CALL with the marshalled slots. IN values bind as
// placeholders. OUT and INOUT positions go through session variables on the
// same connection: INOUT values are staged before the call, OUT variables
// are reset to NULL, and both are read back afterwards.
func (r *procedureRepository) ExecuteCall(ctx context.Context, conn repositories.Querier, schema, name string, slots []models.CallSlot) (*models.ExecutionResult, error) {
	placeholders := make([]string, len(slots))
	args := make([]interface{}, 0, len(slots))

	for i, slot := range slots {
		if slot.Direction == models.DirectionOut || slot.Direction == models.DirectionInOut {
			sessionVar := fmt.Sprintf("@quarry_p%d", i+1)
			placeholders[i] = sessionVar
			var staged interface{}
			if slot.Direction == models.DirectionInOut {
				staged = slot.Value
			}
			if _, err := conn.ExecContext(ctx, fmt.Sprintf("SET %s = ?", sessionVar), staged); err != nil {
				return nil, pkgerrors.Wrapf(err, pkgerrors.CodeProcedureExecution, "%v", err)
			}
			continue
		}
		placeholders[i] = "?"
		args = append(args, slot.Value)
	}

	call := fmt.Sprintf("CALL %s(%s)", qualifyName(schema, name), strings.Join(placeholders, ", "))
	r.logger.Debug().Str("statement", call).Int("arguments", len(args)).Msg("Executing stored procedure")

	rows, err := conn.QueryContext(ctx, call, args...)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.CodeProcedureExecution, "%v", err)
	}
	resultRows, scanErr := scanRows(rows, 0)
	rows.Close()
	if scanErr != nil {
		return nil, pkgerrors.Wrapf(scanErr, pkgerrors.CodeProcedureExecution, "%v", scanErr)
	}
	if resultRows == nil {
		resultRows = []models.Row{}
	}

	outs, err := r.readOutParameters(ctx, conn, slots)
	if err != nil {
		return nil, err
	}

	return &models.ExecutionResult{Rows: resultRows, OutParameters: outs}, nil
}

func (r *procedureRepository) readOutParameters(ctx context.Context, conn repositories.Querier, slots []models.CallSlot) (map[string]interface{}, error) {
	var names []string
	var sessionVars []string
	for i, slot := range slots {
		if slot.Direction == models.DirectionOut || slot.Direction == models.DirectionInOut {
			names = append(names, slot.Name)
			sessionVars = append(sessionVars, fmt.Sprintf("@quarry_p%d", i+1))
		}
	}
	if len(names) == 0 {
		return nil, nil
	}

	values := make([]interface{}, len(names))
	pointers := make([]interface{}, len(names))
	for i := range values {
		pointers[i] = &values[i]
	}
	query := "SELECT " + strings.Join(sessionVars, ", ")
	if err := conn.QueryRowContext(ctx, query).Scan(pointers...); err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.CodeProcedureExecution, "%v", err)
	}

	outs := make(map[string]interface{}, len(names))
	for i, name := range names {
		outs[name] = normalizeValue(values[i])
	}
	return outs, nil
}
