package state

import (
	"sort"
	"strings"
)

// Variables is the typed key/value map of an instance.
// Assignment overwrites per key; keys are never removed by a merge.
type Variables map[string]Value

// NewVariables converts a plain map into Variables.
func NewVariables(values map[string]interface{}) (Variables, error) {
	ret := make(Variables, len(values))
	for k, v := range values {
		if err := ret.Set(k, v); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

// Set assigns a converted value to key.
func (v Variables) Set(key string, value interface{}) error {
	converted, err := ValueOf(value)
	if err != nil {
		return err
	}
	v[key] = converted
	return nil
}

// Get returns the value stored under key.
func (v Variables) Get(key string) (Value, bool) {
	ret, ok := v[key]
	return ret, ok
}

// Lookup resolves a dotted path. An exact key match wins over a nested path,
// otherwise the longest key prefix is used and the rest walks into its JSON value.
func (v Variables) Lookup(path string) (Value, bool) {
	if ret, ok := v[path]; ok {
		return ret, true
	}
	segments := strings.Split(path, ".")
	for i := len(segments) - 1; i > 0; i-- {
		root, ok := v[strings.Join(segments[:i], ".")]
		if !ok {
			continue
		}
		return root.Lookup(segments[i:])
	}
	return Value{}, false
}

// Merge overwrites v with every key of other and returns the changed keys in sorted order.
func (v Variables) Merge(other Variables) []string {
	var changed []string
	for k, value := range other {
		v[k] = value
		changed = append(changed, k)
	}
	sort.Strings(changed)
	return changed
}

// Clone returns a copy; JSON composites are shared since values are never mutated in place.
func (v Variables) Clone() Variables {
	if v == nil {
		return nil
	}
	ret := make(Variables, len(v))
	for k, value := range v {
		ret[k] = value
	}
	return ret
}

// Map returns the plain Go representation.
func (v Variables) Map() map[string]interface{} {
	ret := make(map[string]interface{}, len(v))
	for k, value := range v {
		ret[k] = value.Interface()
	}
	return ret
}
