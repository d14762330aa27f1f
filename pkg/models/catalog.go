// Package models provides data structures used throughout the quarry access layer.
package models

import "database/sql"

// Column represents a database column as read from the catalog.
type Column struct {
	Name            string         `json:"name"`
	OrdinalPosition int            `json:"ordinal_position"`
	ColumnType      string         `json:"column_type"`
	IsNullable      bool           `json:"is_nullable"`
	DefaultValue    sql.NullString `json:"default_value,omitempty"`
	Comment         sql.NullString `json:"comment,omitempty"`
}

// ForeignKey represents one foreign key column and its referenced column.
type ForeignKey struct {
	ColumnName       string `json:"column_name"`
	ReferencedSchema string `json:"referenced_schema"`
	ReferencedTable  string `json:"referenced_table"`
	ReferencedColumn string `json:"referenced_column"`
}

// UniqueConstraint represents a named unique constraint and its column list.
type UniqueConstraint struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
}

// CheckConstraint represents a named check constraint and its clause.
type CheckConstraint struct {
	Name   string `json:"name"`
	Clause string `json:"clause"`
}

// TableDefinition aggregates everything needed to render a table's DDL.
type TableDefinition struct {
	Schema            string             `json:"schema"`
	Name              string             `json:"name"`
	Columns           []Column           `json:"columns"`
	PrimaryKey        []string           `json:"primary_key,omitempty"`
	ForeignKeys       []ForeignKey       `json:"foreign_keys,omitempty"`
	UniqueConstraints []UniqueConstraint `json:"unique_constraints,omitempty"`
	CheckConstraints  []CheckConstraint  `json:"check_constraints,omitempty"`
}
