package state

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/spf13/cast"
)

// Kind tags the dynamic type of a Value.
type Kind string

const (
	KindNull   Kind = "null"
	KindBool   Kind = "bool"
	KindNumber Kind = "number"
	KindString Kind = "string"
	KindJSON   Kind = "json"
)

// Value is a tagged scalar or structured JSON value.
type Value struct {
	kind   Kind
	flag   bool
	number float64
	text   string
	// composite holds decoded JSON objects and arrays.
	composite interface{}
}

// Null is the null value.
var Null = Value{kind: KindNull}

// Bool creates a boolean value.
func Bool(v bool) Value { return Value{kind: KindBool, flag: v} }

// Number creates a numeric value.
func Number(v float64) Value { return Value{kind: KindNumber, number: v} }

// String creates a string value.
func String(v string) Value { return Value{kind: KindString, text: v} }

// ValueOf converts a Go value into a tagged Value. Maps, slices and structs
// are normalised through JSON so that path lookups see plain maps and slices.
func ValueOf(v interface{}) (Value, error) {
	switch actual := v.(type) {
	case nil:
		return Null, nil
	case Value:
		return actual, nil
	case bool:
		return Bool(actual), nil
	case string:
		return String(actual), nil
	case json.Number:
		f, err := actual.Float64()
		if err != nil {
			return Value{}, err
		}
		return Number(f), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		f, err := cast.ToFloat64E(actual)
		if err != nil {
			return Value{}, err
		}
		return Number(f), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return Null, nil
		}
		return ValueOf(rv.Elem().Interface())
	}
	data, err := json.Marshal(v)
	if err != nil {
		return Value{}, fmt.Errorf("unsupported value %T: %w", v, err)
	}
	var decoded interface{}
	if err = json.Unmarshal(data, &decoded); err != nil {
		return Value{}, err
	}
	switch decoded.(type) {
	case map[string]interface{}, []interface{}:
		return Value{kind: KindJSON, composite: decoded}, nil
	}
	return ValueOf(decoded)
}

// Kind returns the value kind; the zero Value reports null.
func (v Value) Kind() Kind {
	if v.kind == "" {
		return KindNull
	}
	return v.kind
}

// Interface returns the plain Go representation.
func (v Value) Interface() interface{} {
	switch v.Kind() {
	case KindBool:
		return v.flag
	case KindNumber:
		return v.number
	case KindString:
		return v.text
	case KindJSON:
		return v.composite
	}
	return nil
}

// Float returns the value as float64 when it is numeric or a numeric string.
func (v Value) Float() (float64, bool) {
	switch v.Kind() {
	case KindNumber:
		return v.number, true
	case KindString:
		f, err := cast.ToFloat64E(v.text)
		return f, err == nil
	}
	return 0, false
}

// Truthy reports the boolean interpretation of the value.
func (v Value) Truthy() bool {
	switch v.Kind() {
	case KindNull:
		return false
	case KindJSON:
		return v.composite != nil
	}
	b, err := cast.ToBoolE(v.Interface())
	return err == nil && b
}

// Lookup walks a dotted path into a JSON value.
func (v Value) Lookup(path []string) (Value, bool) {
	if len(path) == 0 {
		return v, true
	}
	if v.Kind() != KindJSON {
		return Value{}, false
	}
	current := v.composite
	for _, segment := range path {
		switch actual := current.(type) {
		case map[string]interface{}:
			next, ok := actual[segment]
			if !ok {
				return Value{}, false
			}
			current = next
		case []interface{}:
			index, err := cast.ToIntE(segment)
			if err != nil || index < 0 || index >= len(actual) {
				return Value{}, false
			}
			current = actual[index]
		default:
			return Value{}, false
		}
	}
	ret, err := ValueOf(current)
	return ret, err == nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var decoded interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	ret, err := ValueOf(decoded)
	if err != nil {
		return err
	}
	*v = ret
	return nil
}

func (v Value) String() string {
	switch v.Kind() {
	case KindString:
		return v.text
	case KindNull:
		return "null"
	case KindJSON:
		data, _ := json.Marshal(v.composite)
		return string(data)
	}
	return cast.ToString(v.Interface())
}
