package xretry

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixedBackoff(t *testing.T) {
	b := NewFixedBackoff(2 * time.Second)
	for attempt := 1; attempt <= 10; attempt++ {
		assert.Equal(t, 2*time.Second, b.NextDelay(attempt))
	}

	assert.Zero(t, NewFixedBackoff(-time.Second).NextDelay(1), "负值按 0 处理")
}

func TestExponentialBackoff(t *testing.T) {
	t.Run("无抖动时按倍数增长并封顶", func(t *testing.T) {
		b := NewExponentialBackoff(
			WithInitialDelay(10*time.Millisecond),
			WithMaxDelay(70*time.Millisecond),
			WithMultiplier(2),
			WithJitter(0),
		)
		assert.Equal(t, 10*time.Millisecond, b.NextDelay(1))
		assert.Equal(t, 20*time.Millisecond, b.NextDelay(2))
		assert.Equal(t, 40*time.Millisecond, b.NextDelay(3))
		assert.Equal(t, 70*time.Millisecond, b.NextDelay(4))
		assert.Equal(t, 70*time.Millisecond, b.NextDelay(math.MaxInt32))
	})

	t.Run("抖动落在区间内", func(t *testing.T) {
		b := NewExponentialBackoff(WithInitialDelay(100*time.Millisecond), WithJitter(0.5))
		for range 50 {
			d := b.NextDelay(1)
			assert.GreaterOrEqual(t, d, 50*time.Millisecond)
			assert.LessOrEqual(t, d, 150*time.Millisecond)
		}
	})

	t.Run("非法参数被忽略", func(t *testing.T) {
		b := NewExponentialBackoff(
			WithInitialDelay(-1),
			WithMaxDelay(0),
			WithMultiplier(0.5),
			WithJitter(7),
		)
		assert.Equal(t, 100*time.Millisecond, b.initialDelay)
		assert.Equal(t, 30*time.Second, b.maxDelay)
		assert.InDelta(t, 2.0, b.multiplier, 0)
		assert.InDelta(t, 1.0, b.jitter, 0)
	})

	t.Run("上限小于初始值时抬高上限", func(t *testing.T) {
		b := NewExponentialBackoff(WithInitialDelay(time.Second), WithMaxDelay(time.Millisecond), WithJitter(0))
		assert.Equal(t, time.Second, b.NextDelay(5))
	})

	t.Run("attempt 小于 1 按 1 处理", func(t *testing.T) {
		b := NewExponentialBackoff(WithJitter(0))
		assert.Equal(t, b.NextDelay(1), b.NextDelay(0))
	})
}

func TestNoBackoff(t *testing.T) {
	assert.Zero(t, NewNoBackoff().NextDelay(3))
}
