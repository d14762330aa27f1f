// Package mysql provides MySQL-backed repository implementations built on
// INFORMATION_SCHEMA introspection and plain database/sql execution.
package mysql

import (
	"database/sql"
	"strings"

	"github.com/quarryhq/quarry/pkg/models"
)

// scanRows drains a result set into rows keyed by column order, normalizing
// driver byte slices into strings. A maxRows of zero or less collects
// everything.
func scanRows(rows *sql.Rows, maxRows int64) ([]models.Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []models.Row
	for rows.Next() {
		if maxRows > 0 && int64(len(out)) >= maxRows {
			break
		}
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			values[i] = normalizeValue(v)
		}
		out = append(out, models.Row{Columns: columns, Values: values})
	}
	return out, rows.Err()
}

// normalizeValue converts driver-specific representations into plain values.
// The MySQL driver hands text and decimal columns back as byte slices.
func normalizeValue(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// formatColumnType uppercases a catalog type for presentation while leaving
// any parenthesized literals, such as enum members, untouched.
func formatColumnType(raw string) string {
	s := strings.TrimSpace(raw)
	open := strings.IndexByte(s, '(')
	if open < 0 {
		return strings.ToUpper(s)
	}
	end := strings.LastIndexByte(s, ')')
	if end < open {
		return strings.ToUpper(s)
	}
	return strings.ToUpper(s[:open]) + s[open:end+1] + strings.ToUpper(s[end+1:])
}

func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func qualifyName(schema, name string) string {
	return quoteIdent(schema) + "." + quoteIdent(name)
}
