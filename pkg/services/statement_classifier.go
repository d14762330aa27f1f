// Package services contains business logic implementations.
package services

import (
	"strings"
	"unicode"

	pkgerrors "github.com/quarryhq/quarry/pkg/errors"
)

// StatementType represents the type of SQL statement.
type StatementType int

const (
	StatementTypeDDL     StatementType = iota // CREATE, DROP, ALTER, TRUNCATE, RENAME
	StatementTypeDML                          // INSERT, UPDATE, DELETE, REPLACE, MERGE, LOAD
	StatementTypeDQL                          // SELECT, WITH...SELECT
	StatementTypeTCL                          // BEGIN, COMMIT, ROLLBACK, SAVEPOINT, XA
	StatementTypeDCL                          // GRANT, REVOKE
	StatementTypeCall                         // CALL, DO
	StatementTypeUtility                      // SET, USE, SHOW, EXPLAIN, FLUSH, ...
	StatementTypeOther                        // Unrecognized statements
)

// String returns the string representation of the statement type.
func (st StatementType) String() string {
	switch st {
	case StatementTypeDDL:
		return "DDL"
	case StatementTypeDML:
		return "DML"
	case StatementTypeDQL:
		return "DQL"
	case StatementTypeTCL:
		return "TCL"
	case StatementTypeDCL:
		return "DCL"
	case StatementTypeCall:
		return "CALL"
	case StatementTypeUtility:
		return "UTILITY"
	case StatementTypeOther:
		return "OTHER"
	default:
		return "UNKNOWN"
	}
}

// StatementClassifier decides whether SQL text is a single read-only
// selection. It tokenizes instead of pattern-matching: string literals,
// quoted identifiers, and comments never influence classification, and
// every bare keyword is visible to the deny scan regardless of position,
// so keywords cannot be smuggled past the check through case tricks,
// comment splicing, or statement stacking.
type StatementClassifier struct{}

// NewStatementClassifier creates a new statement classifier.
func NewStatementClassifier() *StatementClassifier {
	return &StatementClassifier{}
}

// deniedKeywords are statement verbs and clauses that must never appear as
// bare tokens in a read-only statement. The set errs on the side of
// rejection; identifiers that collide with an entry can always be
// backtick-quoted.
var deniedKeywords = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true, "MERGE": true, "REPLACE": true,
	"CREATE": true, "DROP": true, "ALTER": true, "TRUNCATE": true, "RENAME": true,
	"GRANT": true, "REVOKE": true,
	"SET": true, "LOCK": true, "UNLOCK": true,
	"CALL": true, "DO": true, "HANDLER": true, "LOAD": true, "IMPORT": true,
	"PREPARE": true, "EXECUTE": true, "DEALLOCATE": true,
	"START": true, "BEGIN": true, "COMMIT": true, "ROLLBACK": true,
	"SAVEPOINT": true, "RELEASE": true, "XA": true,
	"ANALYZE": true, "OPTIMIZE": true, "REPAIR": true,
	"FLUSH": true, "RESET": true, "PURGE": true, "KILL": true, "SHUTDOWN": true,
	"INSTALL": true, "UNINSTALL": true, "CHANGE": true, "STOP": true,
	"USE": true, "INTO": true, "OUTFILE": true, "DUMPFILE": true,
}

// functionAlikes are denied verbs that double as built-in function names.
// A directly following "(" marks the harmless function form, as in
// REPLACE(name, 'a', 'b') or TRUNCATE(price, 2).
var functionAlikes = map[string]bool{
	"REPLACE":  true,
	"TRUNCATE": true,
}

// Classify determines the statement type from the leading verb. A WITH
// prologue is resolved to the statement it introduces.
func (c *StatementClassifier) Classify(sql string) (StatementType, error) {
	tokens, err := tokenize(sql)
	if err != nil {
		return StatementTypeOther, err
	}
	if len(tokens) == 0 {
		return StatementTypeOther, pkgerrors.New(pkgerrors.CodeValidation, "statement is empty")
	}
	return classifyTokens(tokens), nil
}

// IsReadOnly reports whether EnsureReadOnly accepts the statement.
func (c *StatementClassifier) IsReadOnly(sql string) bool {
	return c.EnsureReadOnly(sql) == nil
}

// EnsureReadOnly validates that sql is one read-only selection statement.
// It returns a validation error for anything else: empty or lexically
// broken text, stacked statements, a non-SELECT leading verb, or a denied
// keyword anywhere outside quotes and comments.
func (c *StatementClassifier) EnsureReadOnly(sql string) error {
	tokens, err := tokenize(sql)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "statement is empty")
	}
	if err := ensureBalanced(tokens); err != nil {
		return err
	}
	if err := ensureSingleStatement(tokens); err != nil {
		return err
	}

	typ := classifyTokens(tokens)
	if typ != StatementTypeDQL {
		return pkgerrors.Newf(pkgerrors.CodeValidation,
			"only SELECT statements are allowed, got %s", typ).
			WithDetail("statement_type", typ.String())
	}

	for i, t := range tokens {
		if t.kind != tokenWord || !deniedKeywords[t.text] {
			continue
		}
		if functionAlikes[t.text] && followedByParen(tokens, i) {
			continue
		}
		if t.text == "USE" && followedByIndexHint(tokens, i) {
			continue
		}
		return pkgerrors.Newf(pkgerrors.CodeValidation,
			"forbidden keyword %s in read-only statement", t.text).
			WithDetail("keyword", t.text)
	}
	return nil
}

// classifyTokens maps the leading verb to a statement type.
func classifyTokens(tokens []sqlToken) StatementType {
	first := firstWord(tokens)
	if first == nil {
		return StatementTypeOther
	}

	switch first.text {
	case "SELECT":
		return StatementTypeDQL
	case "WITH":
		return resolveWith(tokens)
	case "INSERT", "UPDATE", "DELETE", "REPLACE", "MERGE", "LOAD":
		return StatementTypeDML
	case "CREATE", "DROP", "ALTER", "TRUNCATE", "RENAME", "IMPORT":
		return StatementTypeDDL
	case "GRANT", "REVOKE":
		return StatementTypeDCL
	case "BEGIN", "START", "COMMIT", "ROLLBACK", "SAVEPOINT", "RELEASE", "XA":
		return StatementTypeTCL
	case "CALL", "DO":
		return StatementTypeCall
	case "SET", "USE", "SHOW", "DESCRIBE", "DESC", "EXPLAIN",
		"ANALYZE", "OPTIMIZE", "REPAIR", "CHECK", "CHECKSUM",
		"FLUSH", "RESET", "PURGE", "KILL", "SHUTDOWN",
		"LOCK", "UNLOCK", "HANDLER", "PREPARE", "EXECUTE", "DEALLOCATE",
		"INSTALL", "UNINSTALL", "CHANGE", "STOP", "BINLOG", "HELP":
		return StatementTypeUtility
	default:
		return StatementTypeOther
	}
}

// resolveWith finds the statement a WITH prologue introduces: the first
// statement verb at parenthesis depth zero after the CTE definitions.
// CTE bodies sit inside parentheses and cannot match.
func resolveWith(tokens []sqlToken) StatementType {
	for _, t := range tokens[1:] {
		if t.kind != tokenWord || t.depth != 0 {
			continue
		}
		switch t.text {
		case "SELECT":
			return StatementTypeDQL
		case "INSERT", "UPDATE", "DELETE", "REPLACE":
			return StatementTypeDML
		}
	}
	return StatementTypeOther
}

func firstWord(tokens []sqlToken) *sqlToken {
	for i := range tokens {
		if tokens[i].kind == tokenWord {
			return &tokens[i]
		}
	}
	return nil
}

// followedByParen reports whether the next token opens a call, marking the
// function form of a verb-named built-in.
func followedByParen(tokens []sqlToken, i int) bool {
	return i+1 < len(tokens) && tokens[i+1].kind == tokenPunct && tokens[i+1].text == "("
}

// followedByIndexHint reports whether a USE token is part of a USE INDEX
// or USE KEY hint rather than a USE statement.
func followedByIndexHint(tokens []sqlToken, i int) bool {
	if i+1 >= len(tokens) || tokens[i+1].kind != tokenWord {
		return false
	}
	return tokens[i+1].text == "INDEX" || tokens[i+1].text == "KEY"
}

// ensureSingleStatement rejects anything after a statement separator.
func ensureSingleStatement(tokens []sqlToken) error {
	terminated := false
	for _, t := range tokens {
		if t.kind == tokenPunct && t.text == ";" {
			terminated = true
			continue
		}
		if terminated {
			return pkgerrors.New(pkgerrors.CodeValidation, "multiple statements are not allowed")
		}
	}
	return nil
}

// ensureBalanced rejects statements with unbalanced parentheses.
func ensureBalanced(tokens []sqlToken) error {
	depth := 0
	for _, t := range tokens {
		if t.kind != tokenPunct {
			continue
		}
		switch t.text {
		case "(":
			depth++
		case ")":
			depth--
			if depth < 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "unbalanced parentheses in statement")
			}
		}
	}
	if depth != 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "unbalanced parentheses in statement")
	}
	return nil
}

type tokenKind int

const (
	tokenWord tokenKind = iota
	tokenString
	tokenQuotedIdent
	tokenPunct
)

// sqlToken is one lexical element of a statement. Words are uppercased;
// depth records the parenthesis nesting level surrounding the token.
type sqlToken struct {
	kind  tokenKind
	text  string
	depth int
}

// tokenize splits SQL text into tokens, consuming string literals,
// backtick-quoted identifiers, and comments wholesale so their contents
// never look like keywords. MySQL's executable comment syntax /*! ... */
// is rejected outright because servers evaluate its contents.
func tokenize(sql string) ([]sqlToken, error) {
	var tokens []sqlToken
	runes := []rune(sql)
	n := len(runes)
	depth := 0

	for i := 0; i < n; {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++

		case r == '-' && i+1 < n && runes[i+1] == '-' && (i+2 >= n || isCommentSpacer(runes[i+2])):
			for i < n && runes[i] != '\n' {
				i++
			}

		case r == '#':
			for i < n && runes[i] != '\n' {
				i++
			}

		case r == '/' && i+1 < n && runes[i+1] == '*':
			if i+2 < n && runes[i+2] == '!' {
				return nil, pkgerrors.New(pkgerrors.CodeValidation,
					"executable comment syntax is not allowed")
			}
			end := -1
			for j := i + 2; j+1 < n; j++ {
				if runes[j] == '*' && runes[j+1] == '/' {
					end = j + 2
					break
				}
			}
			if end < 0 {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "unterminated comment")
			}
			i = end

		case r == '\'' || r == '"':
			next, err := scanQuoted(runes, i, r)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, sqlToken{kind: tokenString, depth: depth})
			i = next

		case r == '`':
			next, err := scanQuoted(runes, i, r)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, sqlToken{kind: tokenQuotedIdent, depth: depth})
			i = next

		case isWordRune(r):
			j := i
			for j < n && isWordRune(runes[j]) {
				j++
			}
			tokens = append(tokens, sqlToken{
				kind:  tokenWord,
				text:  strings.ToUpper(string(runes[i:j])),
				depth: depth,
			})
			i = j

		case r == '(':
			tokens = append(tokens, sqlToken{kind: tokenPunct, text: "(", depth: depth})
			depth++
			i++

		case r == ')':
			depth--
			tokens = append(tokens, sqlToken{kind: tokenPunct, text: ")", depth: depth})
			i++

		default:
			tokens = append(tokens, sqlToken{kind: tokenPunct, text: string(r), depth: depth})
			i++
		}
	}
	return tokens, nil
}

// scanQuoted consumes a quoted region starting at runes[start] and returns
// the index just past the closing quote. Doubled quotes escape themselves;
// backslash escapes apply inside string quotes but not inside backticks.
func scanQuoted(runes []rune, start int, quote rune) (int, error) {
	n := len(runes)
	for i := start + 1; i < n; {
		r := runes[i]
		switch {
		case r == '\\' && quote != '`' && i+1 < n:
			i += 2
		case r == quote:
			if i+1 < n && runes[i+1] == quote {
				i += 2
				continue
			}
			return i + 1, nil
		default:
			i++
		}
	}
	if quote == '`' {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "unterminated quoted identifier")
	}
	return 0, pkgerrors.New(pkgerrors.CodeValidation, "unterminated string literal")
}

func isCommentSpacer(r rune) bool {
	return r == ' ' || r == '\t' || r == '\r' || r == '\n'
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '$'
}
