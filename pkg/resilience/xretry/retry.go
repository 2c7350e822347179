package xretry

import (
	"context"
	"time"
)

// RetryPolicy 决定一次失败后是否继续尝试。
//
// 通过 Retryer 使用时：
//   - MaxAttempts() 是 retry-go 的 Attempts 硬上限（包含首次尝试）
//   - ShouldRetry() 在每次失败后调用，可提前终止
//   - Unrecoverable 包装的错误在 ShouldRetry 之前被拦截
type RetryPolicy interface {
	// MaxAttempts 返回最大尝试次数（包含首次尝试），0 表示不限次数。
	MaxAttempts() int

	// ShouldRetry 判断第 attempt 次（从 1 开始）失败后是否继续。
	ShouldRetry(ctx context.Context, attempt int, err error) bool
}

// BackoffPolicy 计算两次尝试之间的等待时间。
type BackoffPolicy interface {
	// NextDelay 返回第 attempt 次（从 1 开始）失败后的等待时间。
	NextDelay(attempt int) time.Duration
}

// Executor 是 Retryer 的最小抽象，便于调用方在测试中替换。
type Executor interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}
