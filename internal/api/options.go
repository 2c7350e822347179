package api

import (
	"context"

	"github.com/omeyang/docdemo/pkg/observability/xlog"
	"github.com/omeyang/docdemo/pkg/observability/xmetrics"
	"github.com/omeyang/docdemo/pkg/observability/xsampling"
	"github.com/omeyang/docdemo/pkg/resilience/xbreaker"
	"github.com/omeyang/docdemo/pkg/resource/xinit"
)

// DefaultVersion 未通过 WithVersion 设置时横幅中的版本号。
const DefaultVersion = "1.0"

// StatsSource 提供资源守卫的计数快照，*xinit.Guard 满足该接口。
type StatsSource interface {
	Stats() xinit.Stats
}

type options struct {
	logger   xlog.Logger
	observer xmetrics.Observer
	breaker  *xbreaker.Breaker
	sampler  xsampling.Sampler
	health   func(ctx context.Context) error
	guards   []StatsSource
	version  string
}

// Option 配置 Server。
type Option func(*options)

func WithLogger(l xlog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithObserver(obs xmetrics.Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithBreaker 替换默认熔断器。
func WithBreaker(b *xbreaker.Breaker) Option {
	return func(o *options) {
		if b != nil {
			o.breaker = b
		}
	}
}

// WithAccessSampler 对 2xx/3xx 访问日志采样，错误响应总是记录。
func WithAccessSampler(s xsampling.Sampler) Option {
	return func(o *options) { o.sampler = s }
}

// WithHealthCheck 设置 /healthz 使用的下游探活函数。
func WithHealthCheck(fn func(ctx context.Context) error) Option {
	return func(o *options) { o.health = fn }
}

// WithGuards 设置 /healthz 中展示的守卫。
func WithGuards(guards ...StatsSource) Option {
	return func(o *options) { o.guards = append(o.guards, guards...) }
}

func WithVersion(v string) Option {
	return func(o *options) {
		if v != "" {
			o.version = v
		}
	}
}

func defaultOptions() *options {
	return &options{
		logger:   xlog.Default(),
		observer: xmetrics.NoopObserver{},
		version:  DefaultVersion,
	}
}
