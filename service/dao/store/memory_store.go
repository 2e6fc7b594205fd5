package store

import (
	"context"
	"sync"

	"github.com/viant/approval/service/dao"
)

// MemoryStore is a generic in-memory implementation of dao.Service.
// It keeps entities of type *T mapped by a comparable key K obtained from the
// supplied keySelector.
//
// With WithClone the store keeps private copies so callers never share state
// with it; with WithVersion every Save becomes a conditional write.
type MemoryStore[K comparable, T any] struct {
	mu          sync.RWMutex
	records     map[K]*T
	keySelector func(*T) K
	clone       func(*T) *T
	version     *versioning[T]
	filter      func(*T, []*dao.Parameter) bool
}

type versioning[T any] struct {
	get func(*T) int64
	set func(*T, int64)
}

// Option customises a MemoryStore.
type Option[K comparable, T any] func(*MemoryStore[K, T])

// WithClone sets the copy function applied on the way in and out.
func WithClone[K comparable, T any](clone func(*T) *T) Option[K, T] {
	return func(s *MemoryStore[K, T]) { s.clone = clone }
}

// WithVersion enables optimistic concurrency on Save.
func WithVersion[K comparable, T any](get func(*T) int64, set func(*T, int64)) Option[K, T] {
	return func(s *MemoryStore[K, T]) { s.version = &versioning[T]{get: get, set: set} }
}

// WithFilter sets the List parameter matcher.
func WithFilter[K comparable, T any](filter func(*T, []*dao.Parameter) bool) Option[K, T] {
	return func(s *MemoryStore[K, T]) { s.filter = filter }
}

// NewMemoryStore creates a new MemoryStore.
// keySelector extracts the entity key (usually the ID field) from a value.
func NewMemoryStore[K comparable, T any](keySelector func(*T) K, options ...Option[K, T]) *MemoryStore[K, T] {
	ret := &MemoryStore[K, T]{
		records:     make(map[K]*T),
		keySelector: keySelector,
	}
	for _, opt := range options {
		opt(ret)
	}
	return ret
}

func (s *MemoryStore[K, T]) copyOf(v *T) *T {
	if s.clone == nil {
		return v
	}
	return s.clone(v)
}

// Save stores or overwrites a record.
func (s *MemoryStore[K, T]) Save(_ context.Context, v *T) error {
	if v == nil {
		return dao.ErrNilEntity
	}
	key := s.keySelector(v)
	var zero K
	if key == zero {
		return dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.version != nil {
		existing, ok := s.records[key]
		var stored int64
		if ok {
			stored = s.version.get(existing)
		}
		current := s.version.get(v)
		if err := dao.CheckVersion(ok, stored, current); err != nil {
			return err
		}
		s.version.set(v, current+1)
	}
	s.records[key] = s.copyOf(v)
	return nil
}

// Load returns a record by key.
func (s *MemoryStore[K, T]) Load(_ context.Context, key K) (*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.records[key]
	if !ok {
		return nil, dao.ErrNotFound
	}
	return s.copyOf(v), nil
}

// Delete removes a record.
func (s *MemoryStore[K, T]) Delete(_ context.Context, key K) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; !ok {
		return dao.ErrNotFound
	}
	delete(s.records, key)
	return nil
}

// List returns stored records accepted by the filter.
func (s *MemoryStore[K, T]) List(_ context.Context, parameters ...*dao.Parameter) ([]*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*T, 0, len(s.records))
	for _, v := range s.records {
		if s.filter != nil && !s.filter(v, parameters) {
			continue
		}
		out = append(out, s.copyOf(v))
	}
	return out, nil
}
