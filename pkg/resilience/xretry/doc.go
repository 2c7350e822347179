// Package xretry 提供重试策略与退避策略的接口及实现，底层使用 [avast/retry-go/v5]。
//
// 两个正交的抽象：
//   - RetryPolicy：失败后是否继续（FixedRetryPolicy、AlwaysRetryPolicy）
//   - BackoffPolicy：两次尝试之间等多久（FixedBackoff、ExponentialBackoff、NoBackoff）
//
// Retryer 把二者组合起来执行：
//
//	r := xretry.NewRetryer(
//	    xretry.WithRetryPolicy(xretry.NewFixedRetry(10)),
//	    xretry.WithBackoffPolicy(xretry.NewFixedBackoff(2*time.Second)),
//	)
//	coll, err := xretry.DoWithResult(ctx, r, acquire)
//
// 也可以从配置构建，参见 FromConfig。
//
// 错误分类：NewPermanentError 与 Unrecoverable 立即停止重试，
// 其他未标记错误按策略重试。
//
// [avast/retry-go/v5]: https://github.com/avast/retry-go
package xretry
