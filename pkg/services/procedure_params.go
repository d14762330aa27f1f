package services

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/quarryhq/quarry/pkg/errors"
	"github.com/quarryhq/quarry/pkg/models"
)

// parseCallParameters decodes the caller-supplied parameters JSON into a
// name-to-value map. Numbers are kept as json.Number so integer arguments
// survive without float64 rounding.
func parseCallParameters(raw string) (map[string]interface{}, error) {
	if raw == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Parameters JSON string is required.")
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var decoded interface{}
	if err := dec.Decode(&decoded); err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.CodeValidation, "Invalid JSON for parameters: %v", err)
	}
	if dec.More() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Invalid JSON for parameters: extra data after value")
	}

	params, ok := decoded.(map[string]interface{})
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			"Invalid JSON for parameters: Parameters JSON must represent an object of name->value pairs.")
	}
	return params, nil
}

// marshalArguments maps caller-supplied values onto a routine signature and
// returns the ordered call slots. Matching is case-insensitive. OUT slots
// never consume supplied values. Building stops at the first unsupplied
// trailing parameter that carries a default, so the database fills the rest.
func marshalArguments(sig models.RoutineSignature, supplied map[string]interface{}) ([]models.CallSlot, error) {
	valuesByLower := make(map[string]interface{}, len(supplied))
	for name, value := range supplied {
		valuesByLower[strings.ToLower(name)] = value
	}

	declared := make(map[string]struct{}, len(sig.Parameters))
	expectedNames := make([]string, 0, len(sig.Parameters))
	for _, p := range sig.Parameters {
		declared[strings.ToLower(p.Name)] = struct{}{}
		expectedNames = append(expectedNames, p.Name)
	}

	var unknown []string
	for name := range supplied {
		if _, ok := declared[strings.ToLower(name)]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation,
			"Unknown parameter(s): %s. Expected one of: %s (case-insensitive).",
			strings.Join(unknown, ", "), strings.Join(expectedNames, ", "))
	}

	lastSupplied := -1
	for i, p := range sig.Parameters {
		if slotDirection(p) == models.DirectionOut {
			continue
		}
		if _, ok := valuesByLower[strings.ToLower(p.Name)]; ok {
			lastSupplied = i
		}
	}

	var missing []string
	for i, p := range sig.Parameters {
		if slotDirection(p) == models.DirectionOut {
			continue
		}
		_, has := valuesByLower[strings.ToLower(p.Name)]
		if i <= lastSupplied && !has && p.DefaultValue == nil {
			missing = append(missing, fmt.Sprintf("Missing required parameter '%s' before later parameters.", p.Name))
		}
	}
	if len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeMissingParameter, strings.Join(missing, "; "))
	}

	slots := make([]models.CallSlot, 0, len(sig.Parameters))
	for i, p := range sig.Parameters {
		direction := slotDirection(p)
		if direction == models.DirectionOut {
			slots = append(slots, models.CallSlot{Name: p.Name, Direction: direction})
			continue
		}

		value, has := valuesByLower[strings.ToLower(p.Name)]
		if !has {
			if i > lastSupplied && p.DefaultValue != nil {
				break
			}
			return nil, pkgerrors.Newf(pkgerrors.CodeMissingParameter,
				"Parameter '%s' is required or non-trailing default cannot be omitted.", p.Name)
		}

		coerced, err := coerceValue(value, p.DataType, p.Name)
		if err != nil {
			return nil, err
		}
		slots = append(slots, models.CallSlot{Name: p.Name, Direction: direction, Value: coerced, Bound: true})
	}
	return slots, nil
}

// slotDirection normalizes a declared direction, treating anything
// unrecognized as IN.
func slotDirection(p models.RoutineParameter) models.ParameterDirection {
	switch models.ParameterDirection(strings.ToUpper(strings.TrimSpace(string(p.Direction)))) {
	case models.DirectionOut:
		return models.DirectionOut
	case models.DirectionInOut:
		return models.DirectionInOut
	default:
		return models.DirectionIn
	}
}

var textTypes = map[string]bool{
	"CHAR": true, "VARCHAR": true,
	"TINYTEXT": true, "TEXT": true, "MEDIUMTEXT": true, "LONGTEXT": true,
	"ENUM": true, "SET": true,
	"NCHAR": true, "NVARCHAR": true,
	"CHARACTER": true, "CHARACTER VARYING": true,
	"NATIONAL CHARACTER": true, "NATIONAL CHARACTER VARYING": true, "NATIONAL VARCHAR": true,
	"CLOB": true, "NCLOB": true,
}

var integerTypes = map[string]bool{
	"TINYINT": true, "SMALLINT": true, "MEDIUMINT": true,
	"INT": true, "INTEGER": true, "BIGINT": true, "YEAR": true,
}

var floatTypes = map[string]bool{
	"FLOAT": true, "DOUBLE": true, "REAL": true, "DOUBLE PRECISION": true,
}

var decimalTypes = map[string]bool{
	"DECIMAL": true, "NUMERIC": true, "DEC": true, "FIXED": true,
}

var binaryTypes = map[string]bool{
	"BINARY": true, "VARBINARY": true,
	"TINYBLOB": true, "BLOB": true, "MEDIUMBLOB": true, "LONGBLOB": true,
}

// coerceValue converts a decoded JSON value into a driver-bindable argument
// for the declared type. Null passes through for every type; types outside
// the known families pass the value through unchanged.
func coerceValue(value interface{}, dataType, name string) (interface{}, error) {
	if value == nil {
		return nil, nil
	}

	base := baseDataType(dataType)
	if isBooleanType(dataType, base) {
		return coerceBoolean(value, name)
	}

	switch {
	case textTypes[base]:
		return coerceText(value, name)
	case integerTypes[base]:
		return coerceInteger(value, name)
	case floatTypes[base]:
		return coerceFloat(value, name)
	case decimalTypes[base]:
		return coerceDecimal(value, name)
	case base == "DATE":
		return coerceDate(value, name)
	case base == "TIME":
		return coerceTime(value, name)
	case base == "TIMESTAMP" || base == "DATETIME":
		return coerceTimestamp(value, name)
	case binaryTypes[base]:
		return coerceBinary(value, name)
	default:
		return value, nil
	}
}

// baseDataType reduces a formatted type like "DECIMAL(10,2)" or
// "int unsigned" to its base name for coercion dispatch.
func baseDataType(dataType string) string {
	s := strings.TrimSpace(dataType)
	if i := strings.IndexByte(s, '('); i >= 0 {
		s = s[:i]
	}
	fields := strings.Fields(strings.ToUpper(s))
	for len(fields) > 1 {
		switch fields[len(fields)-1] {
		case "UNSIGNED", "SIGNED", "ZEROFILL":
			fields = fields[:len(fields)-1]
		default:
			return strings.Join(fields, " ")
		}
	}
	return strings.Join(fields, " ")
}

// isBooleanType reports whether a declared type is boolean, including the
// MySQL convention that tinyint(1) declares a boolean column.
func isBooleanType(dataType, base string) bool {
	if base == "BOOLEAN" || base == "BOOL" {
		return true
	}
	if base != "TINYINT" {
		return false
	}
	open := strings.IndexByte(dataType, '(')
	if open < 0 {
		return false
	}
	end := strings.IndexByte(dataType[open:], ')')
	if end < 0 {
		return false
	}
	return strings.TrimSpace(dataType[open+1:open+end]) == "1"
}

func coerceText(value interface{}, name string) (interface{}, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	default:
		return nil, pkgerrors.Newf(pkgerrors.CodeTypeMismatch,
			"Parameter '%s' expects TEXT but got %s.", name, jsonTypeName(value))
	}
}

func coerceInteger(value interface{}, name string) (interface{}, error) {
	switch v := value.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, nil
		}
		if f, err := v.Float64(); err == nil && f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
			return int64(f), nil
		}
	case float64:
		if v == math.Trunc(v) && v >= math.MinInt64 && v < math.MaxInt64 {
			return int64(v), nil
		}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n, nil
		}
	case bool:
		if v {
			return int64(1), nil
		}
		return int64(0), nil
	}
	return nil, pkgerrors.Newf(pkgerrors.CodeTypeMismatch,
		"Parameter '%s' expects INTEGER but got '%v'.", name, value)
}

func coerceFloat(value interface{}, name string) (interface{}, error) {
	switch v := value.(type) {
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f, nil
		}
	case float64:
		return v, nil
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f, nil
		}
	case bool:
		if v {
			return float64(1), nil
		}
		return float64(0), nil
	}
	return nil, pkgerrors.Newf(pkgerrors.CodeTypeMismatch,
		"Parameter '%s' expects FLOAT but got '%v'.", name, value)
}

// coerceDecimal validates the value as a decimal literal and binds it as a
// string so the server casts without float rounding.
func coerceDecimal(value interface{}, name string) (interface{}, error) {
	switch v := value.(type) {
	case json.Number:
		return v.String(), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case string:
		s := strings.TrimSpace(v)
		if _, err := strconv.ParseFloat(s, 64); err == nil || errors.Is(err, strconv.ErrRange) {
			return s, nil
		}
	}
	return nil, pkgerrors.Newf(pkgerrors.CodeTypeMismatch,
		"Parameter '%s' expects DECIMAL but got '%v'.", name, value)
}

func coerceBoolean(value interface{}, name string) (interface{}, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "t", "1", "yes", "y":
			return true, nil
		case "false", "f", "0", "no", "n":
			return false, nil
		}
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f != 0, nil
		}
	case float64:
		return v != 0, nil
	}
	return nil, pkgerrors.Newf(pkgerrors.CodeTypeMismatch,
		"Parameter '%s' expects BOOLEAN but got '%v'.", name, value)
}

func coerceDate(value interface{}, name string) (interface{}, error) {
	s := strings.TrimSpace(stringify(value))
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.Format("2006-01-02"), nil
	}
	return nil, pkgerrors.Newf(pkgerrors.CodeTypeMismatch,
		"Parameter '%s' expects DATE (YYYY-MM-DD) but got '%v'.", name, value)
}

var timeLayouts = []string{"15:04:05.999999", "15:04"}

func coerceTime(value interface{}, name string) (interface{}, error) {
	s := strings.TrimSpace(stringify(value))
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04:05.999999"), nil
		}
	}
	return nil, pkgerrors.Newf(pkgerrors.CodeTypeMismatch,
		"Parameter '%s' expects TIME (HH:MM[:SS[.fff]]) but got '%v'.", name, value)
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

func coerceTimestamp(value interface{}, name string) (interface{}, error) {
	s := strings.ReplaceAll(strings.TrimSpace(stringify(value)), "T", " ")
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02 15:04:05.999999"), nil
		}
	}
	return nil, pkgerrors.Newf(pkgerrors.CodeTypeMismatch,
		"Parameter '%s' expects TIMESTAMP (ISO 8601) but got '%v'.", name, value)
}

// coerceBinary accepts raw bytes or a hex string with an optional 0x prefix.
func coerceBinary(value interface{}, name string) (interface{}, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		s = strings.TrimPrefix(s, "0x")
		if b, err := hex.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return nil, pkgerrors.Newf(pkgerrors.CodeTypeMismatch,
		"Parameter '%s' expects BINARY (bytes or hex string) but got '%v'.", name, value)
}

func stringify(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// jsonTypeName names a decoded JSON value the way the caller sent it.
func jsonTypeName(value interface{}) string {
	switch value.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case json.Number, float64:
		return "number"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	default:
		return fmt.Sprintf("%T", value)
	}
}
