// Package xinit 提供对外部资源句柄的惰性、带重试、并发安全的初始化。
//
// Guard 在第一次 EnsureReady 时调用 acquire 获取句柄，此后每次调用先做存活检查：
// 句柄健康则无锁返回；失效则在互斥锁内重新获取。任意时刻最多只有一个初始化序列在运行，
// 其余调用方在锁上等待并复用结果。
//
//	guard, err := xinit.New("Products",
//	    func(ctx context.Context) (xmongo.Collection, error) { return prov.EnsureCollection(ctx, spec) },
//	    func(ctx context.Context, c xmongo.Collection) bool { return prov.CollectionExists(ctx, c.Name()) },
//	    xinit.WithLogger(logger),
//	)
//	coll, err := guard.EnsureReady(ctx)
//
// 重试次数与间隔默认 10 次、2 秒，可通过选项或 xretry 策略替换。
// 存活检查失败只会触发重新初始化，不会作为错误返回。
package xinit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/omeyang/docdemo/pkg/observability/xlog"
	"github.com/omeyang/docdemo/pkg/observability/xmetrics"
	"github.com/omeyang/docdemo/pkg/resilience/xretry"
)

// Acquirer 创建或获取资源句柄，必须幂等：资源已存在时返回已有资源。
type Acquirer[H any] func(ctx context.Context) (H, error)

// LivenessChecker 廉价地判断句柄指向的资源是否仍然存在。
type LivenessChecker[H any] func(ctx context.Context, h H) bool

// slot 非 nil 即表示已初始化。
type slot[H any] struct {
	handle H
}

// Guard 管理单个资源句柄。零值不可用，使用 New 创建。
type Guard[H any] struct {
	name            string
	acquire         Acquirer[H]
	checkLive       LivenessChecker[H]
	retryer         *xretry.Retryer
	logger          xlog.Logger
	observer        xmetrics.Observer
	livenessTimeout time.Duration

	mu  sync.Mutex
	cur atomic.Pointer[slot[H]]

	// 计数器，Stats 无锁读取
	sequences        atomic.Int64
	attempts         atomic.Int64
	successes        atomic.Int64
	failures         atomic.Int64
	livenessChecks   atomic.Int64
	livenessFailures atomic.Int64
	reinits          atomic.Int64
}

// New 创建 Guard。name 用于日志与指标。
func New[H any](name string, acquire Acquirer[H], checkLive LivenessChecker[H], opts ...Option) (*Guard[H], error) {
	if acquire == nil {
		return nil, ErrNilAcquirer
	}
	if checkLive == nil {
		return nil, ErrNilChecker
	}
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	logger := o.logger
	if logger == nil {
		logger = xlog.Default()
	}
	return &Guard[H]{
		name:            name,
		acquire:         acquire,
		checkLive:       checkLive,
		retryer:         o.buildRetryer(),
		logger:          logger.With(xlog.Component("xinit"), xlog.Resource(name)),
		observer:        o.observer,
		livenessTimeout: o.livenessTimeout,
	}, nil
}

// Name 资源名。
func (g *Guard[H]) Name() string { return g.name }

// EnsureReady 返回可用的句柄，必要时执行初始化序列。
//
// 错误：ErrExhausted（*ExhaustedError）表示重试用尽或 acquire 返回了永久性错误；
// ErrCanceled（*CanceledError）表示 ctx 在尝试之间被取消。
func (g *Guard[H]) EnsureReady(ctx context.Context) (H, error) {
	var zero H
	if g == nil {
		return zero, ErrNilGuard
	}
	if ctx == nil {
		return zero, ErrNilContext
	}

	// 快路径：不加锁，也不修改状态
	stale := g.cur.Load()
	if stale != nil {
		if g.live(ctx, stale.handle) {
			return stale.handle, nil
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	// 等锁期间可能已有其他调用方完成初始化；刚判定失效的同一句柄不再重复检查
	if s := g.cur.Load(); s != nil {
		if s != stale && g.live(ctx, s.handle) {
			return s.handle, nil
		}
		g.cur.Store(nil)
	}
	return g.initLocked(ctx)
}

// Invalidate 丢弃当前句柄，下一次 EnsureReady 会重新初始化。
func (g *Guard[H]) Invalidate() {
	if g != nil {
		g.cur.Store(nil)
	}
}

// Ready 当前是否持有句柄。不做存活检查，结果可能已过时。
func (g *Guard[H]) Ready() bool {
	return g != nil && g.cur.Load() != nil
}

func (g *Guard[H]) live(ctx context.Context, h H) (ok bool) {
	g.livenessChecks.Add(1)
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error(ctx, "liveness check panicked", slog.Any("panic", r))
			ok = false
		}
		if !ok {
			g.livenessFailures.Add(1)
		}
	}()
	if g.livenessTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.livenessTimeout)
		defer cancel()
	}
	return g.checkLive(ctx, h)
}

// initLocked 执行一次完整的初始化序列，调用方必须持有 mu。
func (g *Guard[H]) initLocked(ctx context.Context) (h H, err error) {
	var attempts int
	if cerr := ctx.Err(); cerr != nil {
		return h, &CanceledError{Resource: g.name, Attempts: 0, Cause: cerr}
	}

	g.sequences.Add(1)
	maxAttempts := g.retryer.MaxAttempts()
	ctx, span := xmetrics.Start(ctx, g.observer, xmetrics.SpanOptions{
		Component: "xinit",
		Operation: "acquire",
		Attrs: []xmetrics.Attr{
			xmetrics.String("resource", g.name),
			xmetrics.Int("max_attempts", maxAttempts),
		},
	})
	defer func() {
		span.End(xmetrics.Result{Err: err, Attrs: []xmetrics.Attr{xmetrics.Int("attempts", attempts)}})
	}()

	start := time.Now()
	var last error
	h, err = xretry.DoWithResult(ctx, g.retryer, func(ctx context.Context) (H, error) {
		attempts++
		g.attempts.Add(1)
		g.logger.Info(ctx, "initializing resource", xlog.Attempt(attempts), slog.Int("max_attempts", maxAttempts))

		h, err := g.acquire(ctx)
		if err != nil {
			last = err
			g.failures.Add(1)
			g.logger.Warn(ctx, "resource initialization attempt failed",
				xlog.Attempt(attempts), slog.Int("max_attempts", maxAttempts), xlog.Err(err))
		}
		return h, err
	})
	if err == nil {
		if g.successes.Add(1) > 1 {
			g.reinits.Add(1)
		}
		g.cur.Store(&slot[H]{handle: h})
		g.logger.Info(ctx, "resource ready", xlog.Attempt(attempts), xlog.Duration(time.Since(start)))
		return h, nil
	}

	var zero H
	// 预算已用尽时按耗尽上报，即使 ctx 恰好在最后一次尝试中结束
	if cerr := ctx.Err(); cerr != nil && (maxAttempts <= 0 || attempts < maxAttempts) {
		g.logger.Warn(ctx, "resource initialization canceled", xlog.Attempt(attempts), xlog.Err(cerr))
		return zero, &CanceledError{Resource: g.name, Attempts: attempts, Cause: cerr}
	}
	if last == nil {
		last = err
	}
	g.logger.Error(ctx, "resource initialization failed", xlog.Count(int64(attempts)), xlog.Err(last))
	return zero, &ExhaustedError{Resource: g.name, Attempts: attempts, Last: last}
}

// Stats 计数快照。
type Stats struct {
	Resource          string `json:"resource"`
	Ready             bool   `json:"ready"`
	Sequences         int64  `json:"sequences"`
	Attempts          int64  `json:"attempts"`
	Successes         int64  `json:"successes"`
	Failures          int64  `json:"failures"`
	LivenessChecks    int64  `json:"livenessChecks"`
	LivenessFailures  int64  `json:"livenessFailures"`
	Reinitializations int64  `json:"reinitializations"`
}

func (g *Guard[H]) Stats() Stats {
	if g == nil {
		return Stats{}
	}
	return Stats{
		Resource:          g.name,
		Ready:             g.Ready(),
		Sequences:         g.sequences.Load(),
		Attempts:          g.attempts.Load(),
		Successes:         g.successes.Load(),
		Failures:          g.failures.Load(),
		LivenessChecks:    g.livenessChecks.Load(),
		LivenessFailures:  g.livenessFailures.Load(),
		Reinitializations: g.reinits.Load(),
	}
}
