// Package app 组装 docdemo 服务：配置、日志、Mongo、集合守卫、业务服务、HTTP 与定时任务。
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/omeyang/docdemo/internal/api"
	"github.com/omeyang/docdemo/internal/catalog"
	"github.com/omeyang/docdemo/pkg/config/xconf"
	"github.com/omeyang/docdemo/pkg/context/xctx"
	"github.com/omeyang/docdemo/pkg/distributed/xcron"
	"github.com/omeyang/docdemo/pkg/lifecycle/xrun"
	"github.com/omeyang/docdemo/pkg/observability/xlog"
	"github.com/omeyang/docdemo/pkg/observability/xmetrics"
	"github.com/omeyang/docdemo/pkg/observability/xsampling"
	"github.com/omeyang/docdemo/pkg/resilience/xbreaker"
	"github.com/omeyang/docdemo/pkg/resilience/xretry"
	"github.com/omeyang/docdemo/pkg/resource/xinit"
	"github.com/omeyang/docdemo/pkg/storage/xmongo"
	"github.com/omeyang/docdemo/pkg/util/xid"
	"github.com/omeyang/docdemo/pkg/util/xkeylock"
	"github.com/omeyang/docdemo/pkg/util/xlru"
)

// backend 存储后端，xmongo.Mongo 满足该接口。
type backend interface {
	Health(ctx context.Context) error
	Stats() xmongo.Stats
	Close(ctx context.Context) error
	Database(name string) xmongo.Database
}

// App 持有所有长生命周期组件。
type App struct {
	cfg    *Config
	source xconf.Config

	log        xlog.LoggerWithLevel
	logCleanup func() error
	observer   xmetrics.Observer

	store   backend
	guards  []*catalog.CollectionGuard
	locks   *xkeylock.Locker
	cache   *xlru.Cache[string, catalog.Product]
	breaker *xbreaker.Breaker

	svc    api.Services
	api    *api.Server
	cron   *xcron.Scheduler
	server *http.Server
}

// Option 配置 New。
type Option func(*App)

// WithSource 设置配置来源，Run 会监视其文件并热更新日志级别。
func WithSource(src xconf.Config) Option {
	return func(a *App) { a.source = src }
}

// WithLogger 使用外部日志器，cleanup 由调用方负责。
func WithLogger(l xlog.LoggerWithLevel) Option {
	return func(a *App) { a.log = l }
}

// WithObserver 默认使用 otel 全局 provider。
func WithObserver(obs xmetrics.Observer) Option {
	return func(a *App) { a.observer = obs }
}

func withBackend(b backend) Option {
	return func(a *App) { a.store = b }
}

// New 按配置构建应用。失败时已创建的资源会被释放。
func New(ctx context.Context, cfg *Config, opts ...Option) (_ *App, err error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	a := &App{cfg: cfg}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, a.Close(context.WithoutCancel(ctx)))
		}
	}()

	if a.log == nil {
		if a.log, a.logCleanup, err = newLogger(cfg.Log); err != nil {
			return nil, fmt.Errorf("app: logger: %w", err)
		}
	}
	if a.observer == nil {
		if a.observer, err = xmetrics.NewOTelObserver(xmetrics.WithInstrumentationName("docdemo")); err != nil {
			return nil, fmt.Errorf("app: observer: %w", err)
		}
	}
	if a.store == nil {
		if a.store, err = connect(ctx, cfg.Mongo, a.log, a.observer); err != nil {
			return nil, err
		}
	}
	if err := a.buildCatalog(); err != nil {
		return nil, err
	}
	if err := a.buildAPI(); err != nil {
		return nil, err
	}
	if err := a.buildCron(); err != nil {
		return nil, err
	}
	a.log.Info(ctx, "application initialized",
		slog.String("addr", cfg.Server.ListenAddr()), slog.String("database", cfg.Mongo.Database))
	return a, nil
}

func newLogger(c LogConfig) (xlog.LoggerWithLevel, func() error, error) {
	b := xlog.New().SetLevel(c.Level).SetFormat(c.Format)
	if c.File != "" {
		b = b.SetRotation(c.File, c.Rotation)
	}
	return b.Build()
}

// connect 建立 Mongo 连接。driver 惰性连接，这里只校验 URI。
func connect(_ context.Context, c MongoConfig, log xlog.Logger, obs xmetrics.Observer) (xmongo.Mongo, error) {
	co := options.Client().ApplyURI(c.URI)
	if c.ConnectTimeout > 0 {
		co.SetConnectTimeout(c.ConnectTimeout)
	}
	client, err := mongo.Connect(co)
	if err != nil {
		return nil, fmt.Errorf("app: connect mongo: %w", err)
	}
	m, err := xmongo.New(client,
		xmongo.WithHealthTimeout(c.HealthTimeout),
		xmongo.WithQueryTimeout(c.QueryTimeout),
		xmongo.WithWriteTimeout(c.WriteTimeout),
		xmongo.WithSlowQueryThreshold(c.SlowQueryThreshold),
		xmongo.WithSlowQueryHook(func(ctx context.Context, info xmongo.SlowQueryInfo) {
			log.Warn(ctx, "slow query",
				slog.String("collection", info.Collection),
				xlog.Operation(info.Operation), xlog.Duration(info.Duration))
		}),
		xmongo.WithObserver(obs),
	)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("app: mongo wrapper: %w", err), client.Disconnect(context.Background()))
	}
	return m, nil
}

// guardOptions 把 init 配置翻译成守卫选项。
func (a *App) guardOptions() []xinit.Option {
	c := a.cfg.Init
	opts := []xinit.Option{
		xinit.WithMaxRetries(c.MaxRetries),
		xinit.WithRetryDelay(c.RetryDelay),
		xinit.WithLivenessTimeout(c.LivenessTimeout),
		xinit.WithLogger(a.log),
		xinit.WithObserver(a.observer),
	}
	if c.Backoff == BackoffExponential {
		opts = append(opts, xinit.WithBackoffPolicy(xretry.NewExponentialBackoff(
			xretry.WithInitialDelay(c.RetryDelay),
			xretry.WithMaxDelay(c.MaxDelay),
		)))
	}
	return opts
}

func (a *App) buildCatalog() error {
	db := a.store.Database(a.cfg.Mongo.Database)
	guards := make(map[string]*catalog.CollectionGuard, 4)
	for _, spec := range []xmongo.CollectionSpec{catalog.ProductsSpec, catalog.CustomersSpec, catalog.OrdersSpec, catalog.NotesSpec} {
		g, err := catalog.NewCollectionGuard(db, spec, a.guardOptions()...)
		if err != nil {
			return fmt.Errorf("app: guard %s: %w", spec.Name, err)
		}
		guards[spec.Name] = g
		a.guards = append(a.guards, g)
	}

	ids, err := xid.NewGenerator()
	if err != nil {
		return fmt.Errorf("app: id generator: %w", err)
	}
	if a.locks, err = xkeylock.New(); err != nil {
		return fmt.Errorf("app: key locker: %w", err)
	}
	opts := []catalog.Option{
		catalog.WithLogger(a.log),
		catalog.WithIDGenerator(ids),
		catalog.WithKeyLocker(a.locks),
	}
	productOpts := opts
	if a.cfg.Cache.ProductSize > 0 {
		a.cache, err = xlru.New[string, catalog.Product](xlru.Config{
			Size: a.cfg.Cache.ProductSize,
			TTL:  a.cfg.Cache.ProductTTL,
		})
		if err != nil {
			return fmt.Errorf("app: product cache: %w", err)
		}
		productOpts = append(productOpts[:len(productOpts):len(productOpts)], catalog.WithProductCache(a.cache))
	}

	if a.svc.Products, err = catalog.NewProductService(guards[catalog.ProductsSpec.Name], productOpts...); err != nil {
		return err
	}
	if a.svc.Customers, err = catalog.NewCustomerService(guards[catalog.CustomersSpec.Name], opts...); err != nil {
		return err
	}
	if a.svc.Orders, err = catalog.NewOrderService(guards[catalog.OrdersSpec.Name], opts...); err != nil {
		return err
	}
	if a.svc.Notes, err = catalog.NewNoteService(guards[catalog.NotesSpec.Name], opts...); err != nil {
		return err
	}
	a.svc.Seeder, err = catalog.NewSeeder(a.svc.Products, a.svc.Customers, a.svc.Orders,
		catalog.WithSeedDelay(a.cfg.Seed.Delay), catalog.WithSeedLogger(a.log))
	return err
}

func (a *App) buildAPI() error {
	a.breaker = xbreaker.New("mongo",
		xbreaker.WithConsecutiveFailures(a.cfg.Breaker.ConsecutiveFailures),
		xbreaker.WithTimeout(a.cfg.Breaker.OpenTimeout),
		xbreaker.WithFailureClassifier(xinit.IsUnavailable),
		xbreaker.WithOnStateChange(func(name string, from, to xbreaker.State) {
			a.log.Warn(context.Background(), "circuit breaker state changed",
				slog.String("breaker", name), slog.String("from", from.String()), slog.String("to", to.String()))
		}),
	)

	sampler, err := accessSampler(a.cfg.Log.AccessSampleRate)
	if err != nil {
		return err
	}
	sources := make([]api.StatsSource, 0, len(a.guards))
	for _, g := range a.guards {
		sources = append(sources, g)
	}
	a.api, err = api.New(a.svc,
		api.WithLogger(a.log),
		api.WithObserver(a.observer),
		api.WithBreaker(a.breaker),
		api.WithAccessSampler(sampler),
		api.WithHealthCheck(a.store.Health),
		api.WithGuards(sources...),
		api.WithVersion(Version),
	)
	if err != nil {
		return err
	}
	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr(),
		Handler:           a.api.Handler(),
		ReadHeaderTimeout: a.cfg.Server.ReadHeaderTimeout,
	}
	return nil
}

// accessSampler 采样率为 1 时不采样。按请求 ID 决定，同一请求的判定稳定。
func accessSampler(rate float64) (xsampling.Sampler, error) {
	if rate >= 1 {
		return nil, nil
	}
	s, err := xsampling.NewKeyBasedSampler(rate, xctx.RequestID)
	if err != nil {
		return nil, fmt.Errorf("app: access sampler: %w", err)
	}
	return s, nil
}

func (a *App) buildCron() error {
	locker, err := xcron.NewLocalLocker(a.locks)
	if err != nil {
		return fmt.Errorf("app: cron locker: %w", err)
	}
	a.cron = xcron.New(
		xcron.WithLogger(a.log),
		xcron.WithObserver(a.observer),
		xcron.WithLocker(locker),
	)
	if spec := a.cfg.Cron.StatsReport; spec != "" {
		var jobOpts []xcron.JobOption
		if a.cfg.Cron.ReportOnStart {
			jobOpts = append(jobOpts, xcron.WithImmediate())
		}
		if _, err := a.cron.AddFunc("stats-report", spec, a.reportStats, jobOpts...); err != nil {
			return fmt.Errorf("app: schedule stats report: %w", err)
		}
	}
	return nil
}

// reportStats 把守卫、缓存、熔断器和连接统计写入日志。
func (a *App) reportStats(ctx context.Context) error {
	attrs := []slog.Attr{
		slog.Any("mongo", a.store.Stats()),
		slog.String("breaker", a.breaker.State().String()),
	}
	for _, g := range a.guards {
		attrs = append(attrs, slog.Any(g.Name(), g.Stats()))
	}
	if a.cache != nil {
		attrs = append(attrs, slog.Any("productCache", a.cache.Stats()))
	}
	a.log.Info(ctx, "runtime stats", attrs...)
	return nil
}

// Handler 返回完整的 HTTP 处理器。
func (a *App) Handler() http.Handler { return a.server.Handler }

// Seeder 供 seed 命令一次性写入样例数据。
func (a *App) Seeder() *catalog.Seeder { return a.svc.Seeder }

func (a *App) Logger() xlog.Logger { return a.log }

// Services 返回 Run 要启动的服务。
func (a *App) Services() []xrun.Service {
	svcs := []xrun.Service{
		xrun.Named("http", xrun.HTTPServer(a.server, a.cfg.Server.ShutdownTimeout)),
		a.cron.Service(),
	}
	if a.cfg.Seed.Enabled {
		svcs = append(svcs, a.svc.Seeder.Service())
	}
	if w := a.watcher(); w != nil {
		svcs = append(svcs, xrun.Named("config-watch", w.Run))
	}
	return svcs
}

// watcher 配置来自文件时监视变更，热更新日志级别。其余配置需重启生效。
func (a *App) watcher() *xconf.Watcher {
	if a.source == nil || a.source.Path() == "" {
		return nil
	}
	w, err := xconf.Watch(a.source, a.onConfigChange)
	if err != nil {
		a.log.Warn(context.Background(), "config watch disabled", xlog.Err(err))
		return nil
	}
	return w
}

func (a *App) onConfigChange(src xconf.Config, err error) {
	ctx := context.Background()
	if err != nil {
		a.log.Warn(ctx, "config reload failed", xlog.Err(err))
		return
	}
	var lc LogConfig
	if err := src.Unmarshal("log", &lc); err != nil {
		a.log.Warn(ctx, "config reload failed", xlog.Err(err))
		return
	}
	if lc.Level != a.log.GetLevel() {
		a.log.SetLevel(lc.Level)
		a.log.Info(ctx, "log level changed", slog.String("level", lc.Level.String()))
	}
}

// Run 启动全部服务并阻塞，收到信号或 ctx 取消后优雅退出。
func (a *App) Run(ctx context.Context) error {
	a.log.Info(ctx, "listening", slog.String("addr", a.server.Addr))
	err := xrun.Run(ctx, a.log, a.Services()...)
	if errors.Is(err, xrun.ErrSignal) {
		return nil
	}
	return err
}

// Close 释放资源，可重复调用。
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.cron != nil {
		select {
		case <-a.cron.Stop().Done():
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("app: stop cron: %w", ctx.Err()))
		}
	}
	if a.cache != nil {
		a.cache.Close()
	}
	if a.locks != nil {
		if err := a.locks.Close(); err != nil && !errors.Is(err, xkeylock.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(ctx); err != nil && !errors.Is(err, xmongo.ErrClosed) {
			errs = append(errs, fmt.Errorf("app: close mongo: %w", err))
		}
	}
	if a.logCleanup != nil {
		if err := a.logCleanup(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
