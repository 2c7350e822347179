package xcron

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/omeyang/docdemo/pkg/observability/xlog"
	"github.com/omeyang/docdemo/pkg/observability/xmetrics"
)

type options struct {
	logger   xlog.Logger
	observer xmetrics.Observer
	locker   Locker
	location *time.Location
	parser   cron.ScheduleParser
}

// Option 调度器选项。
type Option func(*options)

func WithLogger(l xlog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver 每次执行开启一个 KindInternal 跨度。
func WithObserver(obs xmetrics.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithLocker 默认 NoopLocker。
func WithLocker(l Locker) Option {
	return func(o *options) {
		if l != nil {
			o.locker = l
		}
	}
}

// WithLocation 解析 cron 表达式使用的时区，默认 time.Local。
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.location = loc
		}
	}
}

// WithSeconds 表达式带秒字段。
func WithSeconds() Option {
	return func(o *options) {
		o.parser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	}
}

type jobOptions struct {
	timeout   time.Duration
	immediate bool
}

// JobOption 单个任务的选项。
type JobOption func(*jobOptions)

// WithTimeout 单次执行超时，0 表示不限。
func WithTimeout(d time.Duration) JobOption {
	return func(o *jobOptions) {
		if d >= 0 {
			o.timeout = d
		}
	}
}

// WithImmediate 注册时立即在后台执行一次，不等待调度器启动。
func WithImmediate() JobOption {
	return func(o *jobOptions) { o.immediate = true }
}
