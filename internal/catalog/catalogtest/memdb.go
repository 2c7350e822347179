// Package catalogtest 提供内存版 xmongo.Database，供 catalog 及其上层的测试使用。
//
// 过滤只支持等值匹配（按 fmt.Sprint 比较），排序只看第一个键。
// 导出的控制字段应在并发使用之前设置。
package catalogtest

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/omeyang/docdemo/internal/storageopt"
	"github.com/omeyang/docdemo/pkg/storage/xmongo"
)

var (
	ErrEnsure = errors.New("memdb: ensure collection failed")
	ErrWrite  = errors.New("memdb: write failed")
)

// MemDB 内存数据库。
type MemDB struct {
	mu    sync.Mutex
	name  string
	colls map[string]*MemCollection

	EnsureCalls int
	// EnsureFailures 前 n 次 EnsureCollection 返回 ErrEnsure。
	EnsureFailures int
	Specs          []xmongo.CollectionSpec
}

func NewMemDB() *MemDB {
	return &MemDB{name: "SampleDB", colls: make(map[string]*MemCollection)}
}

func (d *MemDB) Name() string { return d.name }

func (d *MemDB) EnsureCollection(_ context.Context, spec xmongo.CollectionSpec) (xmongo.Collection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.EnsureCalls++
	d.Specs = append(d.Specs, spec)
	if d.EnsureFailures > 0 {
		d.EnsureFailures--
		return nil, ErrEnsure
	}
	c, ok := d.colls[spec.Name]
	if !ok {
		c = &MemCollection{name: spec.Name, db: d.name}
		d.colls[spec.Name] = c
	}
	return c, nil
}

func (d *MemDB) CollectionExists(_ context.Context, name string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.colls[name]
	return ok, nil
}

func (d *MemDB) Collection(name string) xmongo.Collection {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.colls[name]; ok {
		return c
	}
	return &MemCollection{name: name, db: d.name}
}

// Drop 模拟集合被外部删除。
func (d *MemDB) Drop(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.colls, name)
}

// Coll 返回已创建的集合，不存在时返回 nil。
func (d *MemDB) Coll(name string) *MemCollection {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.colls[name]
}

// MemCollection 文档以 bson.D 存储。
type MemCollection struct {
	mu   sync.Mutex
	name string
	db   string
	docs []bson.D

	// Err 非 nil 时所有操作返回它。
	Err error
	// InsertFailAt 第 n 次插入（从 1 开始）返回 ErrWrite。
	InsertFailAt int
	inserts      int
	// AggregateResult 生成 Aggregate 的结果文档。
	AggregateResult func(pipeline any) []any

	LastFind     xmongo.FindOptions
	LastPage     xmongo.PageOptions
	LastFilter   any
	LastPipeline any
}

func (c *MemCollection) Name() string     { return c.name }
func (c *MemCollection) Database() string { return c.db }

func (c *MemCollection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.docs)
}

func (c *MemCollection) InsertOne(_ context.Context, doc any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.inserts++
	if c.inserts == c.InsertFailAt {
		return ErrWrite
	}
	d, err := toDoc(doc)
	if err != nil {
		return err
	}
	c.docs = append(c.docs, d)
	return nil
}

func (c *MemCollection) InsertMany(ctx context.Context, docs []any, _ xmongo.BulkOptions) (*xmongo.BulkResult, error) {
	res := &xmongo.BulkResult{}
	for _, doc := range docs {
		if err := c.InsertOne(ctx, doc); err != nil {
			res.Errors = append(res.Errors, err)
			return res, err
		}
		res.InsertedCount++
	}
	return res, nil
}

func (c *MemCollection) FindOne(_ context.Context, filter, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.LastFilter = filter
	if c.Err != nil {
		return c.Err
	}
	found := c.selectDocs(filter, nil)
	if len(found) == 0 {
		return xmongo.ErrNotFound
	}
	return mongo.NewSingleResultFromDocument(found[0], nil, nil).Decode(out)
}

func (c *MemCollection) Find(ctx context.Context, filter, out any, opts xmongo.FindOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.LastFilter, c.LastFind = filter, opts
	if c.Err != nil {
		return c.Err
	}
	found := c.selectDocs(filter, opts.Sort)
	if opts.Limit > 0 && int64(len(found)) > opts.Limit {
		found = found[:opts.Limit]
	}
	return decodeAll(ctx, found, out)
}

func (c *MemCollection) FindPage(ctx context.Context, filter, out any, opts xmongo.PageOptions) (*xmongo.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.LastFilter, c.LastPage = filter, opts
	if c.Err != nil {
		return nil, c.Err
	}
	skip, err := storageopt.ValidatePagination(opts.Page, opts.PageSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", xmongo.ErrInvalidPage, err)
	}
	found := c.selectDocs(filter, opts.Sort)
	total := int64(len(found))
	lo := min(skip, total)
	hi := min(lo+opts.PageSize, total)
	if err := decodeAll(ctx, found[lo:hi], out); err != nil {
		return nil, err
	}
	return &xmongo.Page{
		Total:      total,
		Page:       opts.Page,
		PageSize:   opts.PageSize,
		TotalPages: storageopt.CalculateTotalPages(total, opts.PageSize),
	}, nil
}

func (c *MemCollection) ReplaceOne(_ context.Context, filter, doc any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.LastFilter = filter
	if c.Err != nil {
		return false, c.Err
	}
	for i, d := range c.docs {
		if matches(d, filter) {
			nd, err := toDoc(doc)
			if err != nil {
				return false, err
			}
			c.docs[i] = nd
			return true, nil
		}
	}
	return false, nil
}

func (c *MemCollection) DeleteOne(_ context.Context, filter any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.LastFilter = filter
	if c.Err != nil {
		return false, c.Err
	}
	for i, d := range c.docs {
		if matches(d, filter) {
			c.docs = slices.Delete(c.docs, i, i+1)
			return true, nil
		}
	}
	return false, nil
}

func (c *MemCollection) CountDocuments(_ context.Context, filter any) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return 0, c.Err
	}
	return int64(len(c.selectDocs(filter, nil))), nil
}

func (c *MemCollection) Aggregate(ctx context.Context, pipeline, out any) error {
	c.mu.Lock()
	c.LastPipeline = pipeline
	err, hook := c.Err, c.AggregateResult
	c.mu.Unlock()
	if err != nil {
		return err
	}
	var docs []any
	if hook != nil {
		docs = hook(pipeline)
	}
	return decodeAll(ctx, docs, out)
}

func (c *MemCollection) selectDocs(filter any, sort bson.D) []any {
	var out []bson.D
	for _, d := range c.docs {
		if matches(d, filter) {
			out = append(out, d)
		}
	}
	if len(sort) > 0 {
		key := sort[0].Key
		desc := fmt.Sprint(sort[0].Value) == "-1"
		slices.SortStableFunc(out, func(a, b bson.D) int {
			va, _ := lookup(a, key)
			vb, _ := lookup(b, key)
			r := compareValues(va, vb)
			if desc {
				r = -r
			}
			return r
		})
	}
	res := make([]any, len(out))
	for i, d := range out {
		res[i] = d
	}
	return res
}

func toDoc(v any) (bson.D, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var d bson.D
	err = bson.Unmarshal(raw, &d)
	return d, err
}

func lookup(d bson.D, key string) (any, bool) {
	for _, e := range d {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func matches(doc bson.D, filter any) bool {
	if filter == nil {
		return true
	}
	f, err := toDoc(filter)
	if err != nil {
		return false
	}
	for _, e := range f {
		v, ok := lookup(doc, e.Key)
		if !ok || fmt.Sprint(v) != fmt.Sprint(e.Value) {
			return false
		}
	}
	return true
}

func compareValues(a, b any) int {
	switch x := a.(type) {
	case string:
		y, _ := b.(string)
		return cmp.Compare(x, y)
	case bson.DateTime:
		y, _ := b.(bson.DateTime)
		return cmp.Compare(x, y)
	case float64:
		y, _ := b.(float64)
		return cmp.Compare(x, y)
	case int32:
		y, _ := b.(int32)
		return cmp.Compare(x, y)
	case int64:
		y, _ := b.(int64)
		return cmp.Compare(x, y)
	case bson.ObjectID:
		y, _ := b.(bson.ObjectID)
		return cmp.Compare(x.Hex(), y.Hex())
	}
	return 0
}

func decodeAll(ctx context.Context, docs []any, out any) error {
	if docs == nil {
		docs = []any{}
	}
	cur, err := mongo.NewCursorFromDocuments(docs, nil, nil)
	if err != nil {
		return err
	}
	return cur.All(ctx, out)
}

var (
	_ xmongo.Database   = (*MemDB)(nil)
	_ xmongo.Collection = (*MemCollection)(nil)
)
