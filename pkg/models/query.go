package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// QueryRequest represents a read-only query execution request.
type QueryRequest struct {
	Query      string        `json:"query"`
	Parameters []interface{} `json:"params,omitempty"`
	MaxRows    int64         `json:"max_rows,omitempty"`
	Timeout    time.Duration `json:"timeout,omitempty"`
}

// QueryResult represents the result of a query execution.
type QueryResult struct {
	Rows          []Row         `json:"rows"`
	RowCount      int64         `json:"row_count"`
	ExecutionTime time.Duration `json:"execution_time"`
}

// Row is a single result row. Values are kept alongside the column names
// so that JSON output preserves the column order of the result set, which
// map-based rows would lose.
type Row struct {
	Columns []string      `json:"-"`
	Values  []interface{} `json:"-"`
}

// Get returns the value for the named column and whether it was present.
func (r Row) Get(name string) (interface{}, bool) {
	for i, col := range r.Columns {
		if col == name {
			return r.Values[i], true
		}
	}
	return nil, false
}

// MarshalJSON renders the row as a JSON object with keys in column order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(r.Values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
