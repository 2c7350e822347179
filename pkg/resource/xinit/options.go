package xinit

import (
	"time"

	"github.com/omeyang/docdemo/pkg/observability/xlog"
	"github.com/omeyang/docdemo/pkg/observability/xmetrics"
	"github.com/omeyang/docdemo/pkg/resilience/xretry"
)

const (
	// DefaultMaxRetries 一次初始化序列内最多调用 acquire 的次数。
	DefaultMaxRetries = 10
	// DefaultRetryDelay 两次尝试之间的固定间隔。
	DefaultRetryDelay = 2 * time.Second
)

type options struct {
	maxRetries      int
	retryDelay      time.Duration
	retryPolicy     xretry.RetryPolicy
	backoffPolicy   xretry.BackoffPolicy
	retryer         *xretry.Retryer
	logger          xlog.Logger
	observer        xmetrics.Observer
	livenessTimeout time.Duration
}

func defaultOptions() *options {
	return &options{
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
	}
}

// Option 配置 Guard。
type Option func(*options)

// WithMaxRetries 设置最大尝试次数，小于 1 时忽略。
func WithMaxRetries(n int) Option {
	return func(o *options) {
		if n >= 1 {
			o.maxRetries = n
		}
	}
}

// WithRetryDelay 设置固定重试间隔，负值忽略。
func WithRetryDelay(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.retryDelay = d
		}
	}
}

// WithRetryPolicy 替换次数策略，此时 WithMaxRetries 不再生效。
func WithRetryPolicy(p xretry.RetryPolicy) Option {
	return func(o *options) { o.retryPolicy = p }
}

// WithBackoffPolicy 替换间隔策略，例如指数退避，此时 WithRetryDelay 不再生效。
func WithBackoffPolicy(p xretry.BackoffPolicy) Option {
	return func(o *options) { o.backoffPolicy = p }
}

// WithRetryer 直接指定完整的 Retryer，优先级高于以上四个选项。
func WithRetryer(r *xretry.Retryer) Option {
	return func(o *options) { o.retryer = r }
}

func WithLogger(l xlog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithObserver 每次初始化序列记录一个 span。
func WithObserver(obs xmetrics.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithLivenessTimeout 为每次存活检查设置超时，0 表示沿用调用方 ctx。
func WithLivenessTimeout(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.livenessTimeout = d
		}
	}
}

func (o *options) buildRetryer() *xretry.Retryer {
	if o.retryer != nil {
		return o.retryer
	}
	policy := o.retryPolicy
	if policy == nil {
		policy = xretry.NewFixedRetry(o.maxRetries)
	}
	backoff := o.backoffPolicy
	if backoff == nil {
		backoff = xretry.NewFixedBackoff(o.retryDelay)
	}
	return xretry.NewRetryer(xretry.WithRetryPolicy(policy), xretry.WithBackoffPolicy(backoff))
}
