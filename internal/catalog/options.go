package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/omeyang/docdemo/pkg/observability/xlog"
	"github.com/omeyang/docdemo/pkg/util/xid"
	"github.com/omeyang/docdemo/pkg/util/xkeylock"
	"github.com/omeyang/docdemo/pkg/util/xlru"
)

const (
	// DefaultMaxItems 列表接口未指定条数时的默认上限。
	DefaultMaxItems = 100
	// MaxItemsLimit 列表接口允许的最大条数。
	MaxItemsLimit = 1000

	// DeliveryWindow 下单到预计送达的间隔。
	DeliveryWindow = 7 * 24 * time.Hour
)

type options struct {
	logger xlog.Logger
	now    func() time.Time
	ids    *xid.Generator
	locks  *xkeylock.Locker

	productCache *xlru.Cache[string, Product]
}

func defaultOptions() *options {
	return &options{
		logger: xlog.Default(),
		now:    time.Now,
	}
}

// Option 服务选项。
type Option func(*options)

// WithLogger 设置日志器，nil 忽略。
func WithLogger(l xlog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock 替换时间源。
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithIDGenerator 设置业务单号生成器。未设置时服务在构造时自行创建。
func WithIDGenerator(g *xid.Generator) Option {
	return func(o *options) {
		if g != nil {
			o.ids = g
		}
	}
}

// WithKeyLocker 共享文档锁。多个服务实例操作同一集合时应传入同一个 Locker。
func WithKeyLocker(l *xkeylock.Locker) Option {
	return func(o *options) {
		if l != nil {
			o.locks = l
		}
	}
}

// WithProductCache 为 ProductService.Get 启用本地缓存。
// 写路径只失效本进程的缓存，多实例部署时靠 TTL 收敛。
func WithProductCache(c *xlru.Cache[string, Product]) Option {
	return func(o *options) { o.productCache = c }
}

func applyOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.locks == nil {
		// 默认分片数合法，New 不会失败
		o.locks, _ = xkeylock.New()
	}
	return o
}

// lock 串行化同一文档的读改写，返回的函数释放锁。
func (o *options) lock(ctx context.Context, parts ...string) (func(), error) {
	key := fmt.Sprint(parts)
	h, err := o.locks.Acquire(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("catalog: lock %s: %w", key, err)
	}
	return func() { _ = h.Unlock() }, nil
}

// timestamp 毫秒精度的 UTC 时间，与 BSON 日期的精度一致。
func (o *options) timestamp() time.Time {
	return o.now().UTC().Truncate(time.Millisecond)
}

// ensureIDs 按需创建业务单号生成器。
func (o *options) ensureIDs() error {
	if o.ids != nil {
		return nil
	}
	g, err := xid.NewGenerator()
	if err != nil {
		return err
	}
	o.ids = g
	return nil
}
