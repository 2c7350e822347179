package xbreaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

// State 熔断器状态。
type State = gobreaker.State

const (
	StateClosed   = gobreaker.StateClosed
	StateHalfOpen = gobreaker.StateHalfOpen
	StateOpen     = gobreaker.StateOpen
)

// Counts 当前统计窗口内的计数。
type Counts = gobreaker.Counts

const (
	DefaultConsecutiveFailures = 5
	DefaultTimeout             = 30 * time.Second
)

type options struct {
	readyToTrip   func(Counts) bool
	isFailure     func(error) bool
	timeout       time.Duration
	interval      time.Duration
	maxRequests   uint32
	onStateChange func(name string, from, to State)
}

// Option 熔断器选项。
type Option func(*options)

// WithConsecutiveFailures 连续失败 n 次后打开，n 为 0 时忽略。
func WithConsecutiveFailures(n uint32) Option {
	return func(o *options) {
		if n > 0 {
			o.readyToTrip = func(c Counts) bool { return c.ConsecutiveFailures >= n }
		}
	}
}

// WithFailureRatio 请求数达到 minRequests 且失败率不低于 ratio 时打开。
func WithFailureRatio(ratio float64, minRequests uint32) Option {
	return func(o *options) {
		if ratio <= 0 || ratio > 1 {
			return
		}
		o.readyToTrip = func(c Counts) bool {
			return c.Requests >= minRequests && float64(c.TotalFailures)/float64(c.Requests) >= ratio
		}
	}
}

// WithFailureClassifier 只有 fn 返回 true 的错误计为失败，其余错误计为成功。
func WithFailureClassifier(fn func(error) bool) Option {
	return func(o *options) { o.isFailure = fn }
}

// WithTimeout 打开状态持续多久后进入半开。
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithInterval 关闭状态下周期性清零计数，0 表示不清零。
func WithInterval(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.interval = d
		}
	}
}

// WithMaxRequests 半开状态允许通过的探测请求数。
func WithMaxRequests(n uint32) Option {
	return func(o *options) {
		if n > 0 {
			o.maxRequests = n
		}
	}
}

func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(o *options) { o.onStateChange = fn }
}

// Breaker 熔断器，并发安全。
type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker[any]
}

// New 创建熔断器。默认连续失败 5 次打开，30 秒后半开。
func New(name string, opts ...Option) *Breaker {
	o := &options{
		readyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= DefaultConsecutiveFailures },
		timeout:     DefaultTimeout,
		maxRequests: 1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	st := gobreaker.Settings{
		Name:          name,
		MaxRequests:   o.maxRequests,
		Interval:      o.interval,
		Timeout:       o.timeout,
		ReadyToTrip:   o.readyToTrip,
		OnStateChange: o.onStateChange,
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
	}
	if o.isFailure != nil {
		isFailure := o.isFailure
		st.IsSuccessful = func(err error) bool { return err == nil || !isFailure(err) }
	}
	return &Breaker{name: name, cb: gobreaker.NewCircuitBreaker[any](st)}
}

func (b *Breaker) Name() string { return b.name }

func (b *Breaker) State() State { return b.cb.State() }

func (b *Breaker) Counts() Counts { return b.cb.Counts() }

// Do 在熔断器保护下执行 fn。ctx 已结束时直接返回 ctx.Err()，不计数。
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := Execute(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Execute 带返回值的 Do。
func Execute[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}
	v, err := b.cb.Execute(func() (any, error) {
		return fn(ctx)
	})
	r, _ := v.(T)
	if err != nil {
		return r, wrapRejection(err, b.name, b.State())
	}
	return r, nil
}
