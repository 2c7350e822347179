package xmongo

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/omeyang/docdemo/internal/storageopt"
)

// =============================================================================
// 接口定义
// =============================================================================

// Mongo 客户端包装器。
type Mongo interface {
	// Client 返回底层客户端，直接操作不计入统计。
	Client() *mongo.Client

	// Health 通过 Ping 检测连接。
	Health(ctx context.Context) error

	Stats() Stats

	// Close 断开连接。只有第一次调用生效，之后返回 ErrClosed。
	Close(ctx context.Context) error

	// Database 按名称返回数据库句柄，不会发起网络请求。
	Database(name string) Database
}

// Database 数据库级操作。
type Database interface {
	Name() string

	// EnsureCollection 幂等地创建集合及其索引，集合已存在不视为错误。
	EnsureCollection(ctx context.Context, spec CollectionSpec) (Collection, error)

	// CollectionExists 列出同名集合判断是否存在。
	CollectionExists(ctx context.Context, name string) (bool, error)

	// Collection 返回集合句柄，不检查集合是否存在。
	Collection(name string) Collection
}

// Collection 带观测的集合操作。out 参数与 driver 的 Decode/All 语义一致。
type Collection interface {
	Name() string
	Database() string

	InsertOne(ctx context.Context, doc any) error

	// InsertMany 分批插入。即使返回错误，BulkResult 也可能记录了部分成功。
	InsertMany(ctx context.Context, docs []any, opts BulkOptions) (*BulkResult, error)

	// FindOne 未命中返回 ErrNotFound。
	FindOne(ctx context.Context, filter, out any) error

	Find(ctx context.Context, filter, out any, opts FindOptions) error

	// FindPage 分页查询。COUNT 与数据查询是两次独立请求，并发写入时 Total 可能与数据略有出入。
	FindPage(ctx context.Context, filter, out any, opts PageOptions) (*Page, error)

	// ReplaceOne 返回是否匹配到文档。
	ReplaceOne(ctx context.Context, filter, doc any) (bool, error)

	// DeleteOne 返回是否删除了文档。
	DeleteOne(ctx context.Context, filter any) (bool, error)

	CountDocuments(ctx context.Context, filter any) (int64, error)
	Aggregate(ctx context.Context, pipeline, out any) error
}

// =============================================================================
// 参数与结果
// =============================================================================

// CollectionSpec 集合预置描述。
type CollectionSpec struct {
	Name string

	// PartitionKey 非空时为该字段建立普通索引，所有按分区的查询都会命中它。
	PartitionKey string

	Indexes []IndexSpec
}

// IndexSpec 额外索引。
type IndexSpec struct {
	Name   string
	Keys   bson.D
	Unique bool
}

// FindOptions 多文档查询选项。Limit <= 0 表示不限。
type FindOptions struct {
	Sort       bson.D
	Limit      int64
	Projection bson.D
}

// PageOptions 分页查询选项。
type PageOptions struct {
	// Page 从 1 开始。
	Page     int64
	PageSize int64

	// Sort 建议总是指定，否则翻页时结果顺序不稳定。
	Sort       bson.D
	Projection bson.D
}

// Page 分页元数据，数据写入调用方提供的 out。
type Page struct {
	Total      int64 `json:"total"`
	Page       int64 `json:"page"`
	PageSize   int64 `json:"pageSize"`
	TotalPages int64 `json:"totalPages"`
}

// BulkOptions 分批插入选项。
type BulkOptions struct {
	// BatchSize 默认 1000，上限 10000。
	BatchSize int

	// Ordered 有序写入时遇到错误即停止。
	Ordered bool
}

// BulkResult 分批插入结果。
type BulkResult struct {
	InsertedCount int64
	Errors        []error
}

// =============================================================================
// 工厂函数
// =============================================================================

// New 创建包装器。client 必须已经 Connect。
func New(client *mongo.Client, opts ...Option) (Mongo, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	return newWrapper(client, client, opts...), nil
}

func newWrapper(client *mongo.Client, ops clientOperations, opts ...Option) *mongoWrapper {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return &mongoWrapper{
		client:    client,
		clientOps: ops,
		options:   o,
		slow: storageopt.SlowQueryDetector[SlowQueryInfo]{
			Threshold: o.SlowQueryThreshold,
			Hook:      storageopt.SlowQueryHook[SlowQueryInfo](o.SlowQueryHook),
		},
	}
}
