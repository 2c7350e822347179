package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"golang.org/x/sync/singleflight"

	"github.com/omeyang/docdemo/internal/storageopt"
	"github.com/omeyang/docdemo/pkg/observability/xlog"
	"github.com/omeyang/docdemo/pkg/storage/xmongo"
)

// ProductService 商品读写，按 category 分区。
type ProductService struct {
	guard *CollectionGuard
	opts  *options
	log   xlog.Logger
	// loads 合并同一商品并发的缓存未命中
	loads singleflight.Group
}

func NewProductService(guard *CollectionGuard, opts ...Option) (*ProductService, error) {
	if guard == nil {
		return nil, errNilGuard
	}
	o := applyOptions(opts)
	return &ProductService{
		guard: guard,
		opts:  o,
		log:   o.logger.With(xlog.Component("catalog"), xlog.Resource(guard.Name())),
	}, nil
}

// Create 生成新 ID 并写入，CreatedAt 与 UpdatedAt 相同。
func (s *ProductService) Create(ctx context.Context, p Product) (*Product, error) {
	if err := validateStruct(p); err != nil {
		return nil, err
	}
	coll, err := s.guard.EnsureReady(ctx)
	if err != nil {
		return nil, err
	}
	now := s.opts.timestamp()
	p.ID = uuid.NewString()
	p.CreatedAt, p.UpdatedAt = now, now
	if err := coll.InsertOne(ctx, p); err != nil {
		s.log.Error(ctx, "create product failed", xlog.Operation("create"), xlog.Err(err))
		return nil, fmt.Errorf("catalog: create product: %w", err)
	}
	return &p, nil
}

// CreateMany 有序批量写入，遇错即停。返回已写入的商品，出错时是成功写入的前缀。
func (s *ProductService) CreateMany(ctx context.Context, products []Product) ([]Product, error) {
	if len(products) == 0 {
		return []Product{}, nil
	}
	created := make([]Product, 0, len(products))
	docs := make([]any, 0, len(products))
	now := s.opts.timestamp()
	for _, p := range products {
		if err := validateStruct(p); err != nil {
			return nil, err
		}
		p.ID = uuid.NewString()
		p.CreatedAt, p.UpdatedAt = now, now
		created = append(created, p)
		docs = append(docs, p)
	}
	coll, err := s.guard.EnsureReady(ctx)
	if err != nil {
		return nil, err
	}
	res, err := coll.InsertMany(ctx, docs, xmongo.BulkOptions{Ordered: true})
	if err != nil {
		var n int64
		if res != nil {
			n = min(res.InsertedCount, int64(len(created)))
		}
		return created[:n], fmt.Errorf("catalog: create products: %w", err)
	}
	return created, nil
}

// Get 未命中返回 nil, nil。配置了缓存时先查缓存。
func (s *ProductService) Get(ctx context.Context, id, category string) (*Product, error) {
	if err := requireArgs("id", id, "category", category); err != nil {
		return nil, err
	}
	cache := s.opts.productCache
	if cache != nil {
		if p, ok := cache.Get(productCacheKey(id, category)); ok {
			return &p, nil
		}
	}
	if cache == nil {
		return s.load(ctx, id, category)
	}
	key := productCacheKey(id, category)
	v, err, _ := s.loads.Do(key, func() (any, error) {
		p, err := s.load(ctx, id, category)
		if err == nil && p != nil {
			cache.Set(key, *p)
		}
		return p, err
	})
	p, _ := v.(*Product)
	if err != nil || p == nil {
		return nil, err
	}
	cp := *p
	return &cp, nil
}

func (s *ProductService) load(ctx context.Context, id, category string) (*Product, error) {
	coll, err := s.guard.EnsureReady(ctx)
	if err != nil {
		return nil, err
	}
	var p Product
	err = coll.FindOne(ctx, productKey(id, category), &p)
	if errors.Is(err, xmongo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get product: %w", err)
	}
	return &p, nil
}

// List category 为空时跨分区查询。maxItems ≤ 0 取默认值。
func (s *ProductService) List(ctx context.Context, category string, maxItems int) ([]Product, error) {
	coll, err := s.guard.EnsureReady(ctx)
	if err != nil {
		return nil, err
	}
	filter := bson.D{}
	if category != "" {
		filter = bson.D{{Key: "category", Value: category}}
	}
	products := []Product{}
	err = coll.Find(ctx, filter, &products, xmongo.FindOptions{
		Sort:  bson.D{{Key: "name", Value: 1}},
		Limit: int64(storageopt.ClampLimit(maxItems, DefaultMaxItems, MaxItemsLimit)),
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: list products: %w", err)
	}
	return products, nil
}

// Count 商品总数。
func (s *ProductService) Count(ctx context.Context) (int64, error) {
	coll, err := s.guard.EnsureReady(ctx)
	if err != nil {
		return 0, err
	}
	return coll.CountDocuments(ctx, nil)
}

// Update 整体替换，保留 ID、分区键、CreatedAt 和 ETag。不存在时返回 nil, nil。
func (s *ProductService) Update(ctx context.Context, id, category string, p Product) (*Product, error) {
	if err := requireArgs("id", id, "category", category); err != nil {
		return nil, err
	}
	unlock, err := s.opts.lock(ctx, "products", category, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	existing, err := s.load(ctx, id, category)
	if err != nil || existing == nil {
		return nil, err
	}
	p.ID = existing.ID
	p.Category = existing.Category
	p.CreatedAt = existing.CreatedAt
	p.ETag = existing.ETag
	p.UpdatedAt = s.opts.timestamp()
	if err := validateStruct(p); err != nil {
		return nil, err
	}

	coll, err := s.guard.EnsureReady(ctx)
	if err != nil {
		return nil, err
	}
	matched, err := coll.ReplaceOne(ctx, productKey(id, category), p)
	s.evict(id, category)
	if err != nil {
		return nil, fmt.Errorf("catalog: update product: %w", err)
	}
	if !matched {
		return nil, nil
	}
	return &p, nil
}

// Delete 返回是否删除了文档。
func (s *ProductService) Delete(ctx context.Context, id, category string) (bool, error) {
	if err := requireArgs("id", id, "category", category); err != nil {
		return false, err
	}
	coll, err := s.guard.EnsureReady(ctx)
	if err != nil {
		return false, err
	}
	ok, err := coll.DeleteOne(ctx, productKey(id, category))
	s.evict(id, category)
	if err != nil {
		return false, fmt.Errorf("catalog: delete product: %w", err)
	}
	return ok, nil
}

func (s *ProductService) evict(id, category string) {
	if s.opts.productCache != nil {
		s.opts.productCache.Delete(productCacheKey(id, category))
	}
}

func productCacheKey(id, category string) string {
	return category + "\x00" + id
}

func productKey(id, category string) bson.D {
	return bson.D{{Key: "_id", Value: id}, {Key: "category", Value: category}}
}
