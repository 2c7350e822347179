package storageopt

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePagination(t *testing.T) {
	off, err := ValidatePagination(3, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(40), off)

	_, err = ValidatePagination(0, 10)
	assert.ErrorIs(t, err, ErrInvalidPage)
	_, err = ValidatePagination(1, 0)
	assert.ErrorIs(t, err, ErrInvalidPageSize)
	_, err = ValidatePagination(math.MaxInt64, 2)
	assert.ErrorIs(t, err, ErrPageOverflow)
}

func TestCalculateTotalPages(t *testing.T) {
	assert.Equal(t, int64(0), CalculateTotalPages(0, 10))
	assert.Equal(t, int64(1), CalculateTotalPages(10, 10))
	assert.Equal(t, int64(2), CalculateTotalPages(11, 10))
	assert.Equal(t, int64(0), CalculateTotalPages(5, 0))
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 100, ClampLimit(0, 100, 1000))
	assert.Equal(t, 1000, ClampLimit(5000, 100, 1000))
	assert.Equal(t, 7, ClampLimit(7, 100, 1000))
	assert.Equal(t, 5000, ClampLimit(5000, 100, 0))
}

func TestOperationContext(t *testing.T) {
	ctx, cancel := OperationContext(context.Background(), time.Second)
	defer cancel()
	_, ok := ctx.Deadline()
	assert.True(t, ok)

	parent, pcancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer pcancel()
	child, ccancel := OperationContext(parent, time.Hour)
	defer ccancel()
	assert.Equal(t, parent, child, "更早的截止时间保持不变")

	same, c := HealthContext(parent, 0)
	defer c()
	assert.Equal(t, parent, same)
}

func TestCounters(t *testing.T) {
	var c Counters
	c.IncPing()
	c.IncPingError()
	c.IncOperation()
	c.IncOperation()
	c.IncOpError()
	c.IncSlowQuery()
	assert.Equal(t, Snapshot{Pings: 1, PingErrors: 1, Operations: 2, OpErrors: 1, SlowQueries: 1}, c.Snapshot())
}

func TestSlowQueryDetector(t *testing.T) {
	var got []string
	d := SlowQueryDetector[string]{
		Threshold: 10 * time.Millisecond,
		Hook:      func(_ context.Context, s string) { got = append(got, s) },
	}
	assert.False(t, d.Observe(context.Background(), "fast", time.Millisecond))
	assert.True(t, d.Observe(context.Background(), "slow", 20*time.Millisecond))
	assert.Equal(t, []string{"slow"}, got)

	assert.False(t, SlowQueryDetector[string]{}.Observe(context.Background(), "x", time.Hour))
}
