package services

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quarryhq/quarry/pkg/models"
)

func TestDDLRenderer_RenderTableInfo(t *testing.T) {
	renderer := NewDDLRenderer()

	def := models.TableDefinition{
		Schema: "bank",
		Name:   "accounts",
		Columns: []models.Column{
			{Name: "id", ColumnType: "INT", IsNullable: false,
				DefaultValue: sql.NullString{String: "0", Valid: true},
				Comment:      sql.NullString{String: "account id", Valid: true}},
			{Name: "name", ColumnType: "VARCHAR(50)", IsNullable: false},
			{Name: "balance", ColumnType: "DECIMAL(10,2)", IsNullable: true,
				DefaultValue: sql.NullString{String: "0.00", Valid: true}},
		},
		PrimaryKey: []string{"id"},
		ForeignKeys: []models.ForeignKey{
			{ColumnName: "owner_id", ReferencedSchema: "bank", ReferencedTable: "customers", ReferencedColumn: "id"},
		},
		UniqueConstraints: []models.UniqueConstraint{
			{Name: "uq_accounts_name", Columns: []string{"name"}},
		},
		CheckConstraints: []models.CheckConstraint{
			{Name: "accounts_chk_1", Clause: "(`balance` >= 0)"},
			{Name: "accounts_chk_2", Clause: "(`name` is not null)"},
		},
	}
	samples := []models.Row{
		{Columns: []string{"id", "name", "balance"}, Values: []interface{}{int64(1), "alice", "125.50"}},
		{Columns: []string{"id", "name", "balance"}, Values: []interface{}{int64(2), "bob", nil}},
	}

	expected := "CREATE TABLE `accounts` (\n" +
		"    `id` INT DEFAULT 0 NOT NULL COMMENT 'account id',\n" +
		"    `name` VARCHAR(50) NOT NULL,\n" +
		"    `balance` DECIMAL(10,2) DEFAULT 0.00,\n" +
		"    PRIMARY KEY (`id`),\n" +
		"    FOREIGN KEY(`owner_id`) REFERENCES `bank`.`customers` (`id`),\n" +
		"    CONSTRAINT `uq_accounts_name` UNIQUE (`name`),\n" +
		"    CONSTRAINT `accounts_chk_1` CHECK((`balance` >= 0))\n" +
		")\n" +
		"/*\n" +
		"2 rows from accounts table:\n" +
		"id name balance\n" +
		"1 alice 125.50\n" +
		"2 bob NULL\n" +
		"*/"

	assert.Equal(t, expected, renderer.RenderTableInfo(def, samples))
}

func TestDDLRenderer_NoConstraintsDropsTrailingComma(t *testing.T) {
	renderer := NewDDLRenderer()

	def := models.TableDefinition{
		Schema: "bank",
		Name:   "notes",
		Columns: []models.Column{
			{Name: "id", ColumnType: "INT", IsNullable: false},
			{Name: "body", ColumnType: "TEXT", IsNullable: true},
		},
	}

	expected := "CREATE TABLE `notes` (\n" +
		"    `id` INT NOT NULL,\n" +
		"    `body` TEXT\n" +
		")\n" +
		"/* No rows in notes table */"

	assert.Equal(t, expected, renderer.RenderTableInfo(def, nil))
}

func TestDDLRenderer_CompositeKeysAndQuoting(t *testing.T) {
	renderer := NewDDLRenderer()

	def := models.TableDefinition{
		Schema: "bank",
		Name:   "ledger`entries",
		Columns: []models.Column{
			{Name: "year", ColumnType: "YEAR", IsNullable: false},
			{Name: "seq", ColumnType: "INT", IsNullable: false},
		},
		PrimaryKey: []string{"year", "seq"},
	}

	out := renderer.RenderTableInfo(def, nil)
	assert.Contains(t, out, "CREATE TABLE `ledger``entries` (")
	assert.Contains(t, out, "    PRIMARY KEY (`year`, `seq`)")
	assert.Contains(t, out, "/* No rows in ledger`entries table */")
}

func TestDDLRenderer_SampleValueFormats(t *testing.T) {
	tests := []struct {
		name     string
		value    interface{}
		expected string
	}{
		{"nil renders NULL", nil, "NULL"},
		{"bytes render as text", []byte("raw"), "raw"},
		{"midnight renders date only", time.Date(2025, 8, 24, 0, 0, 0, 0, time.UTC), "2025-08-24"},
		{"datetime renders date and time", time.Date(2025, 8, 24, 10, 30, 5, 0, time.UTC), "2025-08-24 10:30:05"},
		{"integer", int64(42), "42"},
		{"float", 2.5, "2.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sampleValue(tt.value))
		})
	}
}
