package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManual(t *testing.T) {
	start := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	manual := NewManual(start)
	assert.Equal(t, start, manual.Now())
	assert.Equal(t, start.Add(90*time.Minute), manual.Advance(90*time.Minute))
	assert.Equal(t, start.Add(90*time.Minute), manual.Now())

	var now Func = manual.Now
	assert.Equal(t, manual.Now(), now())
	assert.Equal(t, time.UTC, System().Location())
}
