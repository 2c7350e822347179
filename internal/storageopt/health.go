package storageopt

import (
	"context"
	"time"
)

// DefaultHealthTimeout 健康检查默认超时。
const DefaultHealthTimeout = 5 * time.Second

// HealthContext 为健康检查派生带超时的 ctx；timeout ≤ 0 时原样返回。
func HealthContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// OperationContext 为单次读写派生超时 ctx。调用方已设置更早的截止时间时不覆盖。
func OperationContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) <= timeout {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
