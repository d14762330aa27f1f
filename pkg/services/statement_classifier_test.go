package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatementClassifier_Classify(t *testing.T) {
	classifier := NewStatementClassifier()

	tests := []struct {
		name     string
		sql      string
		expected StatementType
	}{
		// DQL statements
		{"SELECT", "SELECT * FROM accounts", StatementTypeDQL},
		{"SELECT lowercase", "select id, name from accounts", StatementTypeDQL},
		{"SELECT with whitespace", "  SELECT 1  ", StatementTypeDQL},
		{"SELECT with JOIN", "SELECT a.*, b.* FROM a JOIN b ON a.id = b.id", StatementTypeDQL},
		{"WITH CTE", "WITH cte AS (SELECT * FROM t) SELECT * FROM cte", StatementTypeDQL},
		{"WITH RECURSIVE", "WITH RECURSIVE r AS (SELECT 1 UNION ALL SELECT n+1 FROM r) SELECT * FROM r", StatementTypeDQL},
		{"parenthesized SELECT", "(SELECT 1) UNION (SELECT 2)", StatementTypeDQL},

		// DML statements
		{"INSERT", "INSERT INTO t VALUES (1)", StatementTypeDML},
		{"UPDATE", "UPDATE t SET id = 2", StatementTypeDML},
		{"DELETE", "DELETE FROM t WHERE id = 1", StatementTypeDML},
		{"REPLACE", "REPLACE INTO t VALUES (1)", StatementTypeDML},
		{"MERGE", "MERGE INTO t USING s ON t.id = s.id", StatementTypeDML},
		{"LOAD DATA", "LOAD DATA INFILE 'x.csv' INTO TABLE t", StatementTypeDML},
		{"WITH feeding UPDATE", "WITH cte AS (SELECT id FROM t) UPDATE u SET x = 1", StatementTypeDML},
		{"WITH feeding DELETE", "WITH cte AS (SELECT id FROM t) DELETE FROM u", StatementTypeDML},

		// DDL statements
		{"CREATE TABLE", "CREATE TABLE t (id INT)", StatementTypeDDL},
		{"DROP TABLE", "DROP TABLE t", StatementTypeDDL},
		{"ALTER TABLE", "ALTER TABLE t ADD COLUMN c INT", StatementTypeDDL},
		{"TRUNCATE", "TRUNCATE TABLE t", StatementTypeDDL},
		{"RENAME", "RENAME TABLE t TO u", StatementTypeDDL},

		// DCL statements
		{"GRANT", "GRANT SELECT ON db.* TO 'agent'@'%'", StatementTypeDCL},
		{"REVOKE", "REVOKE ALL ON db.* FROM 'agent'@'%'", StatementTypeDCL},

		// TCL statements
		{"BEGIN", "BEGIN", StatementTypeTCL},
		{"START TRANSACTION", "START TRANSACTION", StatementTypeTCL},
		{"COMMIT", "COMMIT", StatementTypeTCL},
		{"ROLLBACK", "ROLLBACK", StatementTypeTCL},

		// Procedure invocation
		{"CALL", "CALL audit_scan(1)", StatementTypeCall},
		{"DO", "DO SLEEP(1)", StatementTypeCall},

		// Utility statements
		{"SET", "SET autocommit = 1", StatementTypeUtility},
		{"USE", "USE bank", StatementTypeUtility},
		{"SHOW", "SHOW TABLES", StatementTypeUtility},
		{"EXPLAIN", "EXPLAIN SELECT * FROM t", StatementTypeUtility},
		{"DESCRIBE", "DESCRIBE t", StatementTypeUtility},
		{"FLUSH", "FLUSH PRIVILEGES", StatementTypeUtility},

		// Unrecognized
		{"garbage", "FOO BAR", StatementTypeOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := classifier.Classify(tt.sql)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestStatementClassifier_EnsureReadOnlyAccepts(t *testing.T) {
	classifier := NewStatementClassifier()

	tests := []struct {
		name string
		sql  string
	}{
		{"plain SELECT", "SELECT * FROM accounts"},
		{"lowercase", "select balance from accounts where id = ?"},
		{"trailing semicolon", "SELECT 1;"},
		{"WITH CTE", "WITH recent AS (SELECT * FROM txns WHERE ts > ?) SELECT * FROM recent"},
		{"subquery", "SELECT * FROM t WHERE id IN (SELECT id FROM u)"},
		{"UNION", "SELECT a FROM t UNION ALL SELECT b FROM u"},
		{"aggregate and grouping", "SELECT dept, COUNT(*) FROM emp GROUP BY dept HAVING COUNT(*) > 5 ORDER BY dept LIMIT 10"},
		{"denied word inside string", "SELECT * FROM log WHERE message = 'DROP TABLE accounts'"},
		{"denied word inside double-quoted string", `SELECT * FROM log WHERE message = "delete from t"`},
		{"denied word as backticked identifier", "SELECT `update`, `delete` FROM audit"},
		{"doubled-quote escape", "SELECT * FROM t WHERE note = 'it''s fine; DROP TABLE x'"},
		{"backslash escape", `SELECT * FROM t WHERE note = 'a\'; DROP TABLE x'`},
		{"line comment", "SELECT 1 -- trailing comment"},
		{"leading line comment", "-- context\nSELECT 1"},
		{"leading block comment", "/* context */SELECT 1"},
		{"hash comment", "SELECT 1 # trailing comment"},
		{"block comment", "SELECT /* hint-free comment */ 1"},
		{"comment containing statement", "SELECT 1 /* DELETE FROM t */"},
		{"REPLACE function", "SELECT REPLACE(name, 'a', 'b') FROM t"},
		{"TRUNCATE function", "SELECT TRUNCATE(price, 2) FROM items"},
		{"USE INDEX hint", "SELECT * FROM t USE INDEX (idx_name) WHERE id = 1"},
		{"USE KEY hint", "SELECT * FROM t USE KEY (idx_name) WHERE id = 1"},
		{"parenthesized union", "(SELECT 1) UNION (SELECT 2)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, classifier.EnsureReadOnly(tt.sql))
			assert.True(t, classifier.IsReadOnly(tt.sql))
		})
	}
}

func TestStatementClassifier_EnsureReadOnlyRejects(t *testing.T) {
	classifier := NewStatementClassifier()

	tests := []struct {
		name        string
		sql         string
		errContains string
	}{
		// Every mutating verb is rejected as the leading statement.
		{"INSERT", "INSERT INTO t VALUES (1)", "only SELECT statements"},
		{"UPDATE", "UPDATE t SET a = 1", "only SELECT statements"},
		{"DELETE", "DELETE FROM t", "only SELECT statements"},
		{"MERGE", "MERGE INTO t USING s ON t.id = s.id", "only SELECT statements"},
		{"CREATE", "CREATE TABLE t (id INT)", "only SELECT statements"},
		{"DROP", "DROP TABLE t", "only SELECT statements"},
		{"ALTER", "ALTER TABLE t ADD c INT", "only SELECT statements"},
		{"GRANT", "GRANT SELECT ON *.* TO 'x'@'%'", "only SELECT statements"},
		{"REVOKE", "REVOKE SELECT ON *.* FROM 'x'@'%'", "only SELECT statements"},
		{"TRUNCATE statement", "TRUNCATE TABLE t", "only SELECT statements"},
		{"CALL", "CALL cleanup()", "only SELECT statements"},
		{"SET", "SET GLOBAL read_only = 0", "only SELECT statements"},
		{"USE database", "USE mysql", "only SELECT statements"},
		{"SHOW", "SHOW GRANTS", "only SELECT statements"},
		{"EXPLAIN", "EXPLAIN SELECT 1", "only SELECT statements"},

		// Case and comment tricks do not help.
		{"mixed case INSERT", "iNsErT INTO t VALUES (1)", "only SELECT statements"},
		{"leading comment then DROP", "-- hello\nDROP TABLE t", "only SELECT statements"},
		{"leading block comment then DELETE", "/* x */ DELETE FROM t", "only SELECT statements"},

		// Statement stacking.
		{"stacked DROP", "SELECT 1; DROP TABLE t", "multiple statements"},
		{"stacked with comment", "SELECT 1 /* x */; DELETE FROM t", "multiple statements"},
		{"stacked after line comment", "SELECT 1 -- x\n; UPDATE t SET a = 1", "multiple statements"},
		{"double separator", "SELECT 1;; DROP TABLE t", "multiple statements"},

		// Keywords smuggled into a selection.
		{"SELECT INTO variable", "SELECT balance INTO @b FROM accounts", "INTO"},
		{"SELECT INTO OUTFILE", "SELECT * FROM t INTO OUTFILE '/tmp/x'", "INTO"},
		{"SELECT INTO DUMPFILE", "SELECT * FROM t INTO DUMPFILE '/tmp/x'", "INTO"},
		{"locking read FOR UPDATE", "SELECT * FROM t WHERE id = 1 FOR UPDATE", "UPDATE"},
		{"locking read LOCK IN SHARE MODE", "SELECT * FROM t LOCK IN SHARE MODE", "LOCK"},
		{"REPLACE without call parens", "SELECT 1 UNION SELECT 2 FROM t WHERE REPLACE = 1", "REPLACE"},
		{"WITH feeding UPDATE", "WITH cte AS (SELECT 1) UPDATE t SET a = 1", "only SELECT statements"},
		{"WITH feeding DELETE", "WITH cte AS (SELECT 1) DELETE FROM t", "only SELECT statements"},

		// Lexical problems fail closed.
		{"empty", "", "statement is empty"},
		{"whitespace only", "   \n\t", "statement is empty"},
		{"comment only", "-- nothing here", "statement is empty"},
		{"executable comment", "SELECT 1 /*!50000 DROP TABLE t */", "executable comment"},
		{"unterminated string", "SELECT * FROM t WHERE a = 'oops", "unterminated string"},
		{"unterminated identifier", "SELECT `col FROM t", "unterminated quoted identifier"},
		{"unterminated comment", "SELECT 1 /* oops", "unterminated comment"},
		{"unbalanced open paren", "SELECT * FROM t WHERE id IN (1, 2", "unbalanced parentheses"},
		{"unbalanced close paren", "SELECT 1)", "unbalanced parentheses"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifier.EnsureReadOnly(tt.sql)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
			assert.False(t, classifier.IsReadOnly(tt.sql))
		})
	}
}

func TestStatementType_String(t *testing.T) {
	assert.Equal(t, "DDL", StatementTypeDDL.String())
	assert.Equal(t, "DML", StatementTypeDML.String())
	assert.Equal(t, "DQL", StatementTypeDQL.String())
	assert.Equal(t, "TCL", StatementTypeTCL.String())
	assert.Equal(t, "DCL", StatementTypeDCL.String())
	assert.Equal(t, "CALL", StatementTypeCall.String())
	assert.Equal(t, "UTILITY", StatementTypeUtility.String())
	assert.Equal(t, "OTHER", StatementTypeOther.String())
	assert.Equal(t, "UNKNOWN", StatementType(99).String())
}
