package storageopt

import (
	"context"
	"time"
)

// SlowQueryHook 慢查询回调，在操作所在 goroutine 同步执行。
type SlowQueryHook[T any] func(ctx context.Context, info T)

// SlowQueryDetector 耗时达到阈值时调用 hook。Threshold 为 0 表示关闭。
type SlowQueryDetector[T any] struct {
	Threshold time.Duration
	Hook      SlowQueryHook[T]
}

// Observe 判断是否为慢查询；是则回调并返回 true。
func (d SlowQueryDetector[T]) Observe(ctx context.Context, info T, elapsed time.Duration) bool {
	if d.Threshold <= 0 || elapsed < d.Threshold {
		return false
	}
	if d.Hook != nil {
		d.Hook(ctx, info)
	}
	return true
}
