// Package dao defines the persistence contract shared by the definition,
// document and instance stores.
package dao

import "context"

// Service stores values of T under key K. Versioned stores run CheckVersion
// inside Save and report a stale write as ErrConflict.
type Service[K comparable, T any] interface {
	Save(ctx context.Context, value *T) error
	Load(ctx context.Context, key K) (*T, error)
	Delete(ctx context.Context, key K) error
	// List returns the values accepted by every parameter; stores ignore
	// parameter names they do not index.
	List(ctx context.Context, parameters ...*Parameter) ([]*T, error)
}

// Parameter is a named List filter. Value holds a single string or a
// []string when several values are accepted.
type Parameter struct {
	Name  string
	Value interface{}
}

func NewParameter(name string, values ...string) *Parameter {
	if len(values) == 1 {
		return &Parameter{Name: name, Value: values[0]}
	}
	return &Parameter{Name: name, Value: values}
}
