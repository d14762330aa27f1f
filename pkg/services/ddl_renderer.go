package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/quarryhq/quarry/pkg/models"
)

// DDLRenderer formats catalog metadata as CREATE TABLE text with sampled
// rows appended in a comment block. The output is context for a language
// model, not executable DDL, so it favors readability over completeness.
type DDLRenderer struct{}

// NewDDLRenderer creates a new DDL renderer.
func NewDDLRenderer() *DDLRenderer {
	return &DDLRenderer{}
}

// RenderTableInfo renders one table's definition followed by its sample
// block. Multi-table output joins these with a blank line.
func (r *DDLRenderer) RenderTableInfo(def models.TableDefinition, samples []models.Row) string {
	lines := r.renderCreateTable(def)
	lines = append(lines, r.renderSampleComment(def, samples))
	return strings.Join(lines, "\n")
}

func (r *DDLRenderer) renderCreateTable(def models.TableDefinition) []string {
	columnLines := make([]string, 0, len(def.Columns))
	for _, col := range def.Columns {
		line := fmt.Sprintf("    %s %s", quoteIdent(col.Name), col.ColumnType)
		if col.DefaultValue.Valid {
			line += " DEFAULT " + col.DefaultValue.String
		}
		if !col.IsNullable {
			line += " NOT NULL"
		}
		if col.Comment.Valid {
			line += fmt.Sprintf(" COMMENT '%s'", strings.ReplaceAll(col.Comment.String, "'", "''"))
		}
		columnLines = append(columnLines, line)
	}

	var constraintLines []string
	if len(def.PrimaryKey) > 0 {
		constraintLines = append(constraintLines, fmt.Sprintf("    PRIMARY KEY (%s)", quoteJoin(def.PrimaryKey)))
	}
	for _, fk := range def.ForeignKeys {
		constraintLines = append(constraintLines, fmt.Sprintf("    FOREIGN KEY(%s) REFERENCES %s.%s (%s)",
			quoteIdent(fk.ColumnName), quoteIdent(fk.ReferencedSchema), quoteIdent(fk.ReferencedTable), quoteIdent(fk.ReferencedColumn)))
	}
	for _, uc := range def.UniqueConstraints {
		constraintLines = append(constraintLines, fmt.Sprintf("    CONSTRAINT %s UNIQUE (%s)", quoteIdent(uc.Name), quoteJoin(uc.Columns)))
	}
	for _, cc := range def.CheckConstraints {
		// NOT NULL checks already show on the column lines.
		if strings.Contains(strings.ToLower(cc.Clause), "is not null") {
			continue
		}
		constraintLines = append(constraintLines, fmt.Sprintf("    CONSTRAINT %s CHECK(%s)", quoteIdent(cc.Name), cc.Clause))
	}

	lines := make([]string, 0, len(columnLines)+len(constraintLines)+2)
	lines = append(lines, fmt.Sprintf("CREATE TABLE %s (", quoteIdent(def.Name)))
	for _, col := range columnLines {
		lines = append(lines, col+",")
	}
	if len(constraintLines) > 0 {
		for i, constraint := range constraintLines {
			if i == len(constraintLines)-1 {
				lines = append(lines, constraint)
			} else {
				lines = append(lines, constraint+",")
			}
		}
	} else if len(lines) > 1 {
		lines[len(lines)-1] = strings.TrimSuffix(lines[len(lines)-1], ",")
	}
	lines = append(lines, ")")
	return lines
}

func (r *DDLRenderer) renderSampleComment(def models.TableDefinition, samples []models.Row) string {
	if len(samples) == 0 {
		return fmt.Sprintf("/* No rows in %s table */", def.Name)
	}

	names := make([]string, 0, len(def.Columns))
	for _, col := range def.Columns {
		names = append(names, col.Name)
	}

	lines := make([]string, 0, len(samples)+3)
	lines = append(lines, fmt.Sprintf("/*\n%d rows from %s table:", len(samples), def.Name))
	lines = append(lines, strings.Join(names, " "))
	for _, row := range samples {
		values := make([]string, 0, len(names))
		for _, name := range names {
			v, _ := row.Get(name)
			values = append(values, sampleValue(v))
		}
		lines = append(lines, strings.Join(values, " "))
	}
	lines = append(lines, "*/")
	return strings.Join(lines, "\n")
}

// sampleValue renders one sampled cell the way it reads in query output.
func sampleValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(t)
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format("2006-01-02")
		}
		return t.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprintf("%v", t)
	}
}

func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func quoteJoin(names []string) string {
	quoted := make([]string, 0, len(names))
	for _, name := range names {
		quoted = append(quoted, quoteIdent(name))
	}
	return strings.Join(quoted, ", ")
}
