package xmongo

import (
	"context"
	"time"

	"github.com/omeyang/docdemo/internal/storageopt"
	"github.com/omeyang/docdemo/pkg/observability/xmetrics"
)

// SlowQueryInfo 慢查询详情。
type SlowQueryInfo struct {
	Database   string
	Collection string
	Operation  string

	// Filter 原始查询条件，写日志时注意脱敏。
	Filter any

	Duration time.Duration
}

// SlowQueryHook 在请求路径上同步执行，应尽量轻量。
type SlowQueryHook func(ctx context.Context, info SlowQueryInfo)

// Options 包装器配置。
type Options struct {
	HealthTimeout time.Duration

	// QueryTimeout 读操作兜底超时，0 表示完全依赖调用方 ctx。
	QueryTimeout time.Duration

	// WriteTimeout 写操作兜底超时，0 表示完全依赖调用方 ctx。
	WriteTimeout time.Duration

	// SlowQueryThreshold 为 0 时禁用慢查询检测。
	SlowQueryThreshold time.Duration
	SlowQueryHook      SlowQueryHook

	Observer xmetrics.Observer
}

// Option 配置函数。
type Option func(*Options)

const (
	DefaultQueryTimeout = 30 * time.Second
	DefaultWriteTimeout = 60 * time.Second
)

func defaultOptions() *Options {
	return &Options{
		HealthTimeout: storageopt.DefaultHealthTimeout,
		QueryTimeout:  DefaultQueryTimeout,
		WriteTimeout:  DefaultWriteTimeout,
		Observer:      xmetrics.NoopObserver{},
	}
}

// WithHealthTimeout 非正值忽略。
func WithHealthTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		if timeout > 0 {
			o.HealthTimeout = timeout
		}
	}
}

// WithQueryTimeout 负值忽略，0 禁用兜底。
func WithQueryTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		if timeout >= 0 {
			o.QueryTimeout = timeout
		}
	}
}

// WithWriteTimeout 负值忽略，0 禁用兜底。
func WithWriteTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		if timeout >= 0 {
			o.WriteTimeout = timeout
		}
	}
}

// WithSlowQueryThreshold 负值忽略，0 禁用。
func WithSlowQueryThreshold(threshold time.Duration) Option {
	return func(o *Options) {
		if threshold >= 0 {
			o.SlowQueryThreshold = threshold
		}
	}
}

func WithSlowQueryHook(hook SlowQueryHook) Option {
	return func(o *Options) {
		o.SlowQueryHook = hook
	}
}

func WithObserver(observer xmetrics.Observer) Option {
	return func(o *Options) {
		if observer != nil {
			o.Observer = observer
		}
	}
}
