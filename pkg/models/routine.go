package models

// ParameterDirection is the declared direction of a routine parameter.
type ParameterDirection string

const (
	// DirectionIn marks a parameter the caller must supply (unless defaulted).
	DirectionIn ParameterDirection = "IN"
	// DirectionOut marks a parameter produced by the routine.
	DirectionOut ParameterDirection = "OUT"
	// DirectionInOut marks a parameter both supplied and returned.
	DirectionInOut ParameterDirection = "INOUT"
)

// RoutineDescriptor identifies a callable routine and its access classification.
type RoutineDescriptor struct {
	Schema string  `json:"procedure_schema"`
	Name   string  `json:"procedure_name"`
	Access string  `json:"-"`
	Remark *string `json:"remark"`
}

// RoutineParameter is one slot of a routine's declared signature.
type RoutineParameter struct {
	Name            string             `json:"name"`
	OrdinalPosition int                `json:"ordinal_position"`
	DataType        string             `json:"data_type"`
	Direction       ParameterDirection `json:"direction"`
	DefaultValue    *string            `json:"default_value"`
}

// RoutineSignature is the ordered, directional parameter contract of a routine.
// Order matches the routine's declared call order. Access carries the
// catalog's SQL data access classification so callers can enforce the
// read-only boundary.
type RoutineSignature struct {
	Schema     string             `json:"procedure_schema"`
	Name       string             `json:"procedure_name"`
	Access     string             `json:"-"`
	Parameters []RoutineParameter `json:"parameters"`
}

// AccessReadsSQLData is the catalog access classification of routines that
// only read data. It is the boundary for every procedure surface: anything
// classified differently is either hidden or refused.
const AccessReadsSQLData = "READS SQL DATA"

// CallSlot is one argument position of a marshalled CALL statement. Slots
// keep the signature's declared order with trailing omitted parameters cut.
// Bound is true when a caller-supplied value backs the slot; OUT slots are
// never Bound and are resolved through session variables after the call.
type CallSlot struct {
	Name      string
	Direction ParameterDirection
	Value     interface{}
	Bound     bool
}

// ExecutionResult carries the outcome of a routine call: any produced
// result-set rows plus resolved OUT/INOUT parameter values.
type ExecutionResult struct {
	Message       string                 `json:"message"`
	Rows          []Row                  `json:"result"`
	OutParameters map[string]interface{} `json:"out_parameters,omitempty"`
}
