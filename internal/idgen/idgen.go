package idgen

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Func returns a new unique identifier.
type Func func() string

// UUID returns a random UUID string.
func UUID() string { return uuid.New().String() }

// Sequence returns a deterministic generator producing prefix-1, prefix-2, ...
func Sequence(prefix string) Func {
	var counter int64
	return func() string {
		return fmt.Sprintf("%s-%d", prefix, atomic.AddInt64(&counter, 1))
	}
}
