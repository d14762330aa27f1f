package mysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatColumnType(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{"plain type", "bigint", "BIGINT"},
		{"sized type", "varchar(48)", "VARCHAR(48)"},
		{"precision and scale", "decimal(10,2)", "DECIMAL(10,2)"},
		{"type attribute", "int unsigned", "INT UNSIGNED"},
		{"enum literals stay intact", "enum('active','closed')", "ENUM('active','closed')"},
		{"set literals stay intact", "set('a','B')", "SET('a','B')"},
		{"attribute after parens", "decimal(10,2) unsigned", "DECIMAL(10,2) UNSIGNED"},
		{"already upper", "TIMESTAMP", "TIMESTAMP"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatColumnType(tt.raw))
		})
	}
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, "`accounts`", quoteIdent("accounts"))
	assert.Equal(t, "`odd``name`", quoteIdent("odd`name"))
}

func TestQualifyName(t *testing.T) {
	assert.Equal(t, "`bank`.`accounts`", qualifyName("bank", "accounts"))
}

func TestNormalizeValue(t *testing.T) {
	assert.Equal(t, "text", normalizeValue([]byte("text")))
	assert.Nil(t, normalizeValue(nil))
	assert.Equal(t, int64(42), normalizeValue(int64(42)))
	assert.Equal(t, 1.5, normalizeValue(1.5))
}
