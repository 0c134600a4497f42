package registry

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ValueKind tags the type of a condition literal.
type ValueKind int

const (
	ValueString ValueKind = iota
	ValueBool
	ValueNumber
)

// Value is a condition literal resolved at parse time.
type Value struct {
	Kind   ValueKind
	Bool   bool
	String string
	Number float64
}

// Equal compares the literal with a submission value using strict equality:
// a string literal never matches a number and vice versa.
func (v Value) Equal(x any) bool {
	switch v.Kind {
	case ValueBool:
		b, ok := x.(bool)
		return ok && b == v.Bool
	case ValueNumber:
		switch n := x.(type) {
		case float64:
			return n == v.Number
		case int:
			return float64(n) == v.Number
		case int64:
			return float64(n) == v.Number
		}
		return false
	default:
		s, ok := x.(string)
		return ok && s == v.String
	}
}

func (v Value) GoString() string {
	switch v.Kind {
	case ValueBool:
		return fmt.Sprintf("bool(%t)", v.Bool)
	case ValueNumber:
		return fmt.Sprintf("number(%g)", v.Number)
	default:
		return fmt.Sprintf("string(%q)", v.String)
	}
}

// Condition is a parsed {show, when, eq} visibility rule.
type Condition struct {
	Show bool
	When string
	Eq   Value
}

// ConditionParseError reports a descriptor condition that could not be read.
// Evaluation treats it as a purge.
type ConditionParseError struct {
	Raw string
	Err error
}

func (e *ConditionParseError) Error() string {
	return fmt.Sprintf("registry: invalid condition %q: %v", e.Raw, e.Err)
}

func (e *ConditionParseError) Unwrap() error {
	return e.Err
}

// ParseCondition reads a serialized condition. "true"/"false" strings in eq
// become booleans; other strings and numbers are kept as they are.
func ParseCondition(raw string) (Condition, error) {
	var payload struct {
		Show any `json:"show"`
		When any `json:"when"`
		Eq   any `json:"eq"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return Condition{}, &ConditionParseError{Raw: raw, Err: err}
	}

	when, ok := payload.When.(string)
	if !ok || strings.TrimSpace(when) == "" {
		return Condition{}, &ConditionParseError{Raw: raw, Err: fmt.Errorf("missing 'when' key")}
	}

	eq, err := parseValue(payload.Eq)
	if err != nil {
		return Condition{}, &ConditionParseError{Raw: raw, Err: err}
	}

	return Condition{
		Show: showValue(payload.Show),
		When: strings.TrimSpace(when),
		Eq:   eq,
	}, nil
}

func parseValue(v any) (Value, error) {
	switch typed := v.(type) {
	case nil:
		return Value{Kind: ValueString}, nil
	case bool:
		return Value{Kind: ValueBool, Bool: typed}, nil
	case float64:
		return Value{Kind: ValueNumber, Number: typed}, nil
	case string:
		switch typed {
		case "true":
			return Value{Kind: ValueBool, Bool: true}, nil
		case "false":
			return Value{Kind: ValueBool, Bool: false}, nil
		}
		return Value{Kind: ValueString, String: typed}, nil
	default:
		return Value{}, fmt.Errorf("unsupported eq value of type %T", v)
	}
}

// showValue reads the show flag. The renderer writes it either as a boolean
// or as the strings "true"/"false".
func showValue(v any) bool {
	switch typed := v.(type) {
	case bool:
		return typed
	case string:
		s := strings.TrimSpace(typed)
		return s != "" && s != "false"
	case float64:
		return typed != 0
	default:
		return false
	}
}

// Decision is the outcome of evaluating a conditional descriptor.
type Decision int

const (
	Purge Decision = iota
	Persist
)

func (d Decision) String() string {
	if d == Persist {
		return "persist"
	}
	return "purge"
}

// Evaluate decides whether a conditional descriptor's queue is kept against
// the submission data. Descriptors without a condition always persist. An
// unreadable condition purges and returns the parse error.
func Evaluate(desc FieldDescriptor, data map[string]any) (Decision, error) {
	if desc.Condition == "" {
		return Persist, nil
	}

	cond, err := ParseCondition(desc.Condition)
	if err != nil {
		return Purge, err
	}

	value, ok := data[cond.When]
	if ok && cond.Show && cond.Eq.Equal(value) {
		return Persist, nil
	}
	return Purge, nil
}
