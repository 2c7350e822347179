// Package xbreaker 在 [sony/gobreaker/v2] 之上提供按错误分类计数的熔断器。
//
// 并非所有错误都说明下游不健康：参数错误、未命中这类业务错误应计为成功，
// ctx 取消既不算成功也不算失败。WithFailureClassifier 决定哪些错误计入失败，
// ctx 取消总是被排除。
//
//	b := xbreaker.New("mongo",
//	    xbreaker.WithConsecutiveFailures(5),
//	    xbreaker.WithFailureClassifier(xinit.IsUnavailable),
//	)
//	err := b.Do(ctx, func(ctx context.Context) error { return svc.Call(ctx) })
//	if xbreaker.IsOpen(err) { ... }
//
// 熔断打开时返回的 *OpenError 声明不可重试，与 xretry 组合时不会被重试。
//
// [sony/gobreaker/v2]: https://github.com/sony/gobreaker
package xbreaker
