package xmongo

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/omeyang/docdemo/internal/storageopt"
	"github.com/omeyang/docdemo/pkg/observability/xmetrics"
)

const (
	mongoComponent = "xmongo"

	defaultBatchSize = 1000

	// maxBatchSize 避免单次 InsertMany 触及 16MB BSON 上限。
	maxBatchSize = 10000
)

// =============================================================================
// mongoWrapper
// =============================================================================

type mongoWrapper struct {
	client    *mongo.Client
	clientOps clientOperations
	options   *Options

	slow     storageopt.SlowQueryDetector[SlowQueryInfo]
	counters storageopt.Counters

	closed atomic.Bool
}

func (w *mongoWrapper) Client() *mongo.Client {
	return w.client
}

func (w *mongoWrapper) Health(ctx context.Context) (err error) {
	if ctx == nil {
		return ErrNilContext
	}
	if w.closed.Load() {
		return ErrClosed
	}

	ctx, span := xmetrics.Start(ctx, w.options.Observer, xmetrics.SpanOptions{
		Component: mongoComponent,
		Operation: "health",
		Kind:      xmetrics.KindClient,
		Attrs:     []xmetrics.Attr{xmetrics.String("db.system", "mongodb")},
	})
	defer func() {
		span.End(xmetrics.Result{Err: err})
	}()

	w.counters.IncPing()
	ctx, cancel := storageopt.HealthContext(ctx, w.options.HealthTimeout)
	defer cancel()

	if err = w.clientOps.Ping(ctx, readpref.Primary()); err != nil {
		w.counters.IncPingError()
		return fmt.Errorf("xmongo health: %w", err)
	}
	return nil
}

func (w *mongoWrapper) Stats() Stats {
	var pool PoolStats
	if w.clientOps != nil {
		pool.InUseConnections = w.clientOps.NumberSessionsInProgress()
	}
	return Stats{Snapshot: w.counters.Snapshot(), Pool: pool}
}

// Close 断开失败也不回滚 closed 状态。
func (w *mongoWrapper) Close(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if !w.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	if w.clientOps == nil {
		return nil
	}
	if err := w.clientOps.Disconnect(ctx); err != nil {
		return fmt.Errorf("xmongo close: %w", err)
	}
	return nil
}

func (w *mongoWrapper) Database(name string) Database {
	return &database{w: w, ops: &databaseAdapter{db: w.client.Database(name)}}
}

// run 为一次操作套上超时兜底、span、计数和慢查询检测。
func (w *mongoWrapper) run(ctx context.Context, info SlowQueryInfo, timeout time.Duration, fn func(ctx context.Context) error) (err error) {
	if ctx == nil {
		return ErrNilContext
	}
	if w.closed.Load() {
		return ErrClosed
	}

	ctx, cancel := storageopt.OperationContext(ctx, timeout)
	defer cancel()

	start := time.Now()
	ctx, span := xmetrics.Start(ctx, w.options.Observer, xmetrics.SpanOptions{
		Component: mongoComponent,
		Operation: info.Operation,
		Kind:      xmetrics.KindClient,
		Attrs: []xmetrics.Attr{
			xmetrics.String("db.system", "mongodb"),
			xmetrics.String("db.name", info.Database),
			xmetrics.String("db.collection", info.Collection),
		},
	})
	w.counters.IncOperation()
	defer func() {
		info.Duration = time.Since(start)
		var attrs []xmetrics.Attr
		if w.slow.Observe(ctx, info, info.Duration) {
			w.counters.IncSlowQuery()
			attrs = append(attrs,
				xmetrics.Bool("slow", true),
				xmetrics.Int64("slow_threshold_ms", w.options.SlowQueryThreshold.Milliseconds()),
			)
		}
		spanErr := err
		if errors.Is(err, ErrNotFound) {
			spanErr = nil
		} else if err != nil {
			w.counters.IncOpError()
		}
		span.End(xmetrics.Result{Err: spanErr, Attrs: attrs})
	}()

	return fn(ctx)
}

// =============================================================================
// database
// =============================================================================

type database struct {
	w   *mongoWrapper
	ops databaseOperations
}

func (d *database) Name() string { return d.ops.Name() }

func (d *database) EnsureCollection(ctx context.Context, spec CollectionSpec) (Collection, error) {
	if spec.Name == "" {
		return nil, ErrEmptyName
	}
	info := SlowQueryInfo{Database: d.ops.Name(), Collection: spec.Name, Operation: "ensure_collection"}
	err := d.w.run(ctx, info, d.w.options.WriteTimeout, func(ctx context.Context) error {
		if err := d.ops.CreateCollection(ctx, spec.Name); err != nil && !isNamespaceExists(err) {
			return fmt.Errorf("xmongo create collection %s.%s: %w", info.Database, spec.Name, err)
		}
		models := indexModels(spec)
		if len(models) == 0 {
			return nil
		}
		if err := d.ops.CreateIndexes(ctx, spec.Name, models); err != nil {
			return fmt.Errorf("xmongo create indexes %s.%s: %w", info.Database, spec.Name, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d.Collection(spec.Name), nil
}

func indexModels(spec CollectionSpec) []mongo.IndexModel {
	var models []mongo.IndexModel
	if spec.PartitionKey != "" {
		models = append(models, mongo.IndexModel{
			Keys:    bson.D{{Key: spec.PartitionKey, Value: 1}},
			Options: options.Index().SetName("pk_" + spec.PartitionKey),
		})
	}
	for _, idx := range spec.Indexes {
		if len(idx.Keys) == 0 {
			continue
		}
		opts := options.Index().SetUnique(idx.Unique)
		if idx.Name != "" {
			opts.SetName(idx.Name)
		}
		models = append(models, mongo.IndexModel{Keys: idx.Keys, Options: opts})
	}
	return models
}

func (d *database) CollectionExists(ctx context.Context, name string) (bool, error) {
	if name == "" {
		return false, ErrEmptyName
	}
	var exists bool
	info := SlowQueryInfo{Database: d.ops.Name(), Collection: name, Operation: "collection_exists"}
	err := d.w.run(ctx, info, d.w.options.QueryTimeout, func(ctx context.Context) error {
		names, err := d.ops.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
		if err != nil {
			return fmt.Errorf("xmongo list collections %s: %w", info.Database, err)
		}
		exists = len(names) > 0
		return nil
	})
	return exists, err
}

func (d *database) Collection(name string) Collection {
	return &collection{w: d.w, db: d.ops.Name(), ops: d.ops.Collection(name)}
}

// =============================================================================
// collection
// =============================================================================

type collection struct {
	w   *mongoWrapper
	db  string
	ops collectionOperations
}

func (c *collection) Name() string     { return c.ops.Name() }
func (c *collection) Database() string { return c.db }

func (c *collection) info(op string, filter any) SlowQueryInfo {
	return SlowQueryInfo{Database: c.db, Collection: c.ops.Name(), Operation: op, Filter: filter}
}

func (c *collection) wrapErr(op string, err error) error {
	return fmt.Errorf("xmongo %s %s.%s: %w", op, c.db, c.ops.Name(), err)
}

// normalizeFilter nil 过滤条件统一为空文档。
func normalizeFilter(filter any) any {
	if filter == nil {
		return bson.D{}
	}
	return filter
}

func (c *collection) InsertOne(ctx context.Context, doc any) error {
	if doc == nil {
		return ErrEmptyDocs
	}
	return c.w.run(ctx, c.info("insert_one", nil), c.w.options.WriteTimeout, func(ctx context.Context) error {
		if _, err := c.ops.InsertOne(ctx, doc); err != nil {
			return c.wrapErr("insert_one", err)
		}
		return nil
	})
}

func (c *collection) FindOne(ctx context.Context, filter, out any) error {
	if out == nil {
		return ErrNilOutput
	}
	filter = normalizeFilter(filter)
	return c.w.run(ctx, c.info("find_one", filter), c.w.options.QueryTimeout, func(ctx context.Context) error {
		err := c.ops.FindOne(ctx, filter).Decode(out)
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			return ErrNotFound
		case err != nil:
			return c.wrapErr("find_one", err)
		}
		return nil
	})
}

func (c *collection) Find(ctx context.Context, filter, out any, opts FindOptions) error {
	if out == nil {
		return ErrNilOutput
	}
	filter = normalizeFilter(filter)
	return c.w.run(ctx, c.info("find", filter), c.w.options.QueryTimeout, func(ctx context.Context) error {
		findOpts := options.Find()
		if len(opts.Sort) > 0 {
			findOpts.SetSort(opts.Sort)
		}
		if opts.Limit > 0 {
			findOpts.SetLimit(opts.Limit)
		}
		if len(opts.Projection) > 0 {
			findOpts.SetProjection(opts.Projection)
		}
		cursor, err := c.ops.Find(ctx, filter, findOpts)
		if err != nil {
			return c.wrapErr("find", err)
		}
		// All 负责关闭 cursor
		if err := cursor.All(ctx, out); err != nil {
			return c.wrapErr("find decode", err)
		}
		return nil
	})
}

func (c *collection) FindPage(ctx context.Context, filter, out any, opts PageOptions) (*Page, error) {
	if out == nil {
		return nil, ErrNilOutput
	}
	skip, err := storageopt.ValidatePagination(opts.Page, opts.PageSize)
	if err != nil {
		return nil, convertPaginationError(err)
	}
	filter = normalizeFilter(filter)

	var total int64
	err = c.w.run(ctx, c.info("find_page", filter), c.w.options.QueryTimeout, func(ctx context.Context) error {
		n, err := c.ops.CountDocuments(ctx, filter)
		if err != nil {
			return c.wrapErr("find_page count", err)
		}
		total = n
		findOpts := options.Find().SetSkip(skip).SetLimit(opts.PageSize)
		if len(opts.Sort) > 0 {
			findOpts.SetSort(opts.Sort)
		}
		if len(opts.Projection) > 0 {
			findOpts.SetProjection(opts.Projection)
		}
		cursor, err := c.ops.Find(ctx, filter, findOpts)
		if err != nil {
			return c.wrapErr("find_page find", err)
		}
		if err := cursor.All(ctx, out); err != nil {
			return c.wrapErr("find_page decode", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Page{
		Total:      total,
		Page:       opts.Page,
		PageSize:   opts.PageSize,
		TotalPages: storageopt.CalculateTotalPages(total, opts.PageSize),
	}, nil
}

func (c *collection) ReplaceOne(ctx context.Context, filter, doc any) (bool, error) {
	if doc == nil {
		return false, ErrEmptyDocs
	}
	filter = normalizeFilter(filter)
	var matched bool
	err := c.w.run(ctx, c.info("replace_one", filter), c.w.options.WriteTimeout, func(ctx context.Context) error {
		res, err := c.ops.ReplaceOne(ctx, filter, doc)
		if err != nil {
			return c.wrapErr("replace_one", err)
		}
		matched = res.MatchedCount > 0
		return nil
	})
	return matched, err
}

func (c *collection) DeleteOne(ctx context.Context, filter any) (bool, error) {
	filter = normalizeFilter(filter)
	var deleted bool
	err := c.w.run(ctx, c.info("delete_one", filter), c.w.options.WriteTimeout, func(ctx context.Context) error {
		res, err := c.ops.DeleteOne(ctx, filter)
		if err != nil {
			return c.wrapErr("delete_one", err)
		}
		deleted = res.DeletedCount > 0
		return nil
	})
	return deleted, err
}

func (c *collection) CountDocuments(ctx context.Context, filter any) (int64, error) {
	filter = normalizeFilter(filter)
	var n int64
	err := c.w.run(ctx, c.info("count", filter), c.w.options.QueryTimeout, func(ctx context.Context) error {
		var err error
		if n, err = c.ops.CountDocuments(ctx, filter); err != nil {
			return c.wrapErr("count", err)
		}
		return nil
	})
	return n, err
}

func (c *collection) Aggregate(ctx context.Context, pipeline, out any) error {
	if out == nil {
		return ErrNilOutput
	}
	if pipeline == nil {
		pipeline = mongo.Pipeline{}
	}
	return c.w.run(ctx, c.info("aggregate", pipeline), c.w.options.QueryTimeout, func(ctx context.Context) error {
		cursor, err := c.ops.Aggregate(ctx, pipeline)
		if err != nil {
			return c.wrapErr("aggregate", err)
		}
		if err := cursor.All(ctx, out); err != nil {
			return c.wrapErr("aggregate decode", err)
		}
		return nil
	})
}

// =============================================================================
// 分批插入
// =============================================================================

func (c *collection) InsertMany(ctx context.Context, docs []any, opts BulkOptions) (*BulkResult, error) {
	if len(docs) == 0 {
		return nil, ErrEmptyDocs
	}
	batchSize := opts.BatchSize
	if batchSize < 1 {
		batchSize = defaultBatchSize
	} else if batchSize > maxBatchSize {
		batchSize = maxBatchSize
	}

	result := &BulkResult{}
	err := c.w.run(ctx, c.info("insert_many", nil), c.w.options.WriteTimeout, func(ctx context.Context) error {
		result.InsertedCount, result.Errors = c.executeBatches(ctx, docs, batchSize, opts.Ordered)
		if len(result.Errors) > 0 {
			return errors.Join(result.Errors...)
		}
		return nil
	})
	if err != nil && result.InsertedCount == 0 && len(result.Errors) == 0 {
		// 入口校验失败，没有任何批次执行
		return nil, err
	}
	return result, err
}

func (c *collection) executeBatches(ctx context.Context, docs []any, batchSize int, ordered bool) (int64, []error) {
	var inserted int64
	var errs []error
	insertOpts := options.InsertMany().SetOrdered(ordered)

	for i := 0; i < len(docs); i += batchSize {
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("context canceled before batch %d: %w", i/batchSize, err))
			break
		}
		end := min(i+batchSize, len(docs))

		res, err := c.ops.InsertMany(ctx, docs[i:end], insertOpts)
		if res != nil {
			inserted += int64(len(res.InsertedIDs))
		}
		if err == nil {
			continue
		}
		errs = append(errs, c.wrapErr("insert_many", err))
		if ordered || ctx.Err() != nil {
			break
		}
	}
	return inserted, errs
}
