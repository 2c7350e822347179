package xretry

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	retry "github.com/avast/retry-go/v5"
)

var _ Executor = (*Retryer)(nil)

// Retryer 组合 RetryPolicy 与 BackoffPolicy，底层由 avast/retry-go/v5 执行。
type Retryer struct {
	retryPolicy   RetryPolicy
	backoffPolicy BackoffPolicy
	onRetry       func(attempt int, err error)
}

// RetryerOption 执行器配置选项。
type RetryerOption func(*Retryer)

// WithRetryPolicy 设置重试策略，nil 忽略。
func WithRetryPolicy(p RetryPolicy) RetryerOption {
	return func(r *Retryer) {
		if p != nil {
			r.retryPolicy = p
		}
	}
}

// WithBackoffPolicy 设置退避策略，nil 忽略。
func WithBackoffPolicy(p BackoffPolicy) RetryerOption {
	return func(r *Retryer) {
		if p != nil {
			r.backoffPolicy = p
		}
	}
}

// WithOnRetry 设置每次失败且将要重试时的回调，attempt 从 1 开始。
func WithOnRetry(f func(attempt int, err error)) RetryerOption {
	return func(r *Retryer) {
		if f != nil {
			r.onRetry = f
		}
	}
}

// NewRetryer 创建重试执行器，默认 FixedRetry(3) + ExponentialBackoff。
func NewRetryer(opts ...RetryerOption) *Retryer {
	r := &Retryer{
		retryPolicy:   NewFixedRetry(3),
		backoffPolicy: NewExponentialBackoff(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Config 是可从配置文件加载的重试参数。
type Config struct {
	// MaxAttempts 最大尝试次数（包含首次），0 表示不限次数。
	MaxAttempts int `koanf:"max_attempts" json:"maxAttempts"`
	// Delay 固定退避的间隔，或指数退避的初始间隔。
	Delay time.Duration `koanf:"delay" json:"delay"`
	// MaxDelay 指数退避的上限。
	MaxDelay time.Duration `koanf:"max_delay" json:"maxDelay"`
	// Backoff 取值 fixed（默认）、exponential、none。
	Backoff string `koanf:"backoff" json:"backoff"`
}

// FromConfig 按配置构建 Retryer。
func FromConfig(cfg Config, opts ...RetryerOption) (*Retryer, error) {
	var policy RetryPolicy
	if cfg.MaxAttempts <= 0 {
		policy = NewAlwaysRetry()
	} else {
		policy = NewFixedRetry(cfg.MaxAttempts)
	}

	var backoff BackoffPolicy
	switch strings.ToLower(strings.TrimSpace(cfg.Backoff)) {
	case "", "fixed":
		backoff = NewFixedBackoff(cfg.Delay)
	case "exponential":
		backoff = NewExponentialBackoff(WithInitialDelay(cfg.Delay), WithMaxDelay(cfg.MaxDelay))
	case "none":
		backoff = NewNoBackoff()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackoff, cfg.Backoff)
	}

	all := append([]RetryerOption{WithRetryPolicy(policy), WithBackoffPolicy(backoff)}, opts...)
	return NewRetryer(all...), nil
}

// Do 执行 fn，失败时按策略重试。nil 接收者返回 ErrNilRetryer。
func (r *Retryer) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if r == nil {
		return ErrNilRetryer
	}
	if ctx == nil {
		return ErrNilContext
	}
	if fn == nil {
		return ErrNilFunc
	}
	return retry.New(r.buildOptions(ctx)...).Do(func() error {
		return fn(ctx)
	})
}

// DoWithResult 是带返回值的 Do。泛型方法不被允许，所以是包级函数。
func DoWithResult[T any](ctx context.Context, r *Retryer, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if r == nil {
		return zero, ErrNilRetryer
	}
	if ctx == nil {
		return zero, ErrNilContext
	}
	if fn == nil {
		return zero, ErrNilFunc
	}
	return retry.NewWithData[T](r.buildOptions(ctx)...).Do(func() (T, error) {
		return fn(ctx)
	})
}

// RetryPolicy 返回当前重试策略，nil 接收者返回 nil。
func (r *Retryer) RetryPolicy() RetryPolicy {
	if r == nil {
		return nil
	}
	return r.retryPolicy
}

// BackoffPolicy 返回当前退避策略，nil 接收者返回 nil。
func (r *Retryer) BackoffPolicy() BackoffPolicy {
	if r == nil {
		return nil
	}
	return r.backoffPolicy
}

// MaxAttempts 返回重试策略的尝试上限，0 表示不限。
func (r *Retryer) MaxAttempts() int {
	if r == nil || r.retryPolicy == nil {
		return 0
	}
	return r.retryPolicy.MaxAttempts()
}

// NextDelay 返回第 attempt 次失败后的等待时间。
func (r *Retryer) NextDelay(attempt int) time.Duration {
	if r == nil || r.backoffPolicy == nil {
		return 0
	}
	return r.backoffPolicy.NextDelay(attempt)
}

func (r *Retryer) buildOptions(ctx context.Context) []retry.Option {
	retryPolicy := r.retryPolicy
	if retryPolicy == nil {
		retryPolicy = NewFixedRetry(3)
	}
	backoffPolicy := r.backoffPolicy
	if backoffPolicy == nil {
		backoffPolicy = NewExponentialBackoff()
	}

	opts := make([]retry.Option, 0, 6)
	opts = append(opts, retry.Context(ctx))

	if n := retryPolicy.MaxAttempts(); n <= 0 {
		opts = append(opts, retry.UntilSucceeded())
	} else {
		opts = append(opts, retry.Attempts(safeIntToUint(n)))
	}

	// Attempts 是硬上限，ShouldRetry 可以更早停止。
	// attemptCount 为已失败次数，从 1 开始，与 ShouldRetry 的 attempt 一致。
	var attemptCount atomic.Int64
	opts = append(opts, retry.RetryIf(func(err error) bool {
		count := int(attemptCount.Add(1))
		if !retry.IsRecoverable(err) {
			return false
		}
		return retryPolicy.ShouldRetry(ctx, count, err)
	}))

	// retry-go v5 的 DelayType 中 n 从 1 开始
	opts = append(opts, retry.DelayType(func(n uint, _ error, _ retry.DelayContext) time.Duration {
		return backoffPolicy.NextDelay(safeUintToInt(n))
	}))

	if r.onRetry != nil {
		// OnRetry 的 n 从 0 开始
		opts = append(opts, retry.OnRetry(func(n uint, err error) {
			r.onRetry(safeUintToInt(n)+1, err)
		}))
	}

	return append(opts, retry.LastErrorOnly(true))
}

func safeIntToUint(n int) uint {
	if n <= 0 {
		return 0
	}
	return uint(n)
}

func safeUintToInt(n uint) int {
	if n > uint(math.MaxInt) {
		return math.MaxInt
	}
	return int(n)
}
