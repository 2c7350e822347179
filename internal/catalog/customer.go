package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/omeyang/docdemo/internal/storageopt"
	"github.com/omeyang/docdemo/pkg/observability/xlog"
	"github.com/omeyang/docdemo/pkg/storage/xmongo"
)

// CustomerService 客户读写，按 customerId 分区。
//
// 删除是软删除：文档保留，IsActive 置 false。List、GetByCustomerID、GetByEmail
// 只返回活跃客户；按主键的 Get 不区分。
type CustomerService struct {
	guard *CollectionGuard
	opts  *options
	log   xlog.Logger
}

func NewCustomerService(guard *CollectionGuard, opts ...Option) (*CustomerService, error) {
	if guard == nil {
		return nil, errNilGuard
	}
	o := applyOptions(opts)
	if err := o.ensureIDs(); err != nil {
		return nil, fmt.Errorf("catalog: customer ids: %w", err)
	}
	return &CustomerService{
		guard: guard,
		opts:  o,
		log:   o.logger.With(xlog.Component("catalog"), xlog.Resource(guard.Name())),
	}, nil
}

// Create 生成新 ID；CustomerID 为空时分配 CUST-yyyyMMdd-<n>。
func (s *CustomerService) Create(ctx context.Context, c Customer) (*Customer, error) {
	if err := validateStruct(c); err != nil {
		return nil, err
	}
	now := s.opts.timestamp()
	if c.CustomerID == "" {
		n, err := s.opts.ids.CustomerNumber(now)
		if err != nil {
			return nil, fmt.Errorf("catalog: customer number: %w", err)
		}
		c.CustomerID = n
	}
	coll, err := s.guard.EnsureReady(ctx)
	if err != nil {
		return nil, err
	}
	c.ID = uuid.NewString()
	c.CreatedAt, c.UpdatedAt = now, now
	if err := coll.InsertOne(ctx, c); err != nil {
		s.log.Error(ctx, "create customer failed", xlog.Operation("create"), xlog.Err(err))
		return nil, fmt.Errorf("catalog: create customer: %w", err)
	}
	return &c, nil
}

// Get 未命中返回 nil, nil。
func (s *CustomerService) Get(ctx context.Context, id, customerID string) (*Customer, error) {
	if err := requireArgs("id", id, "customerId", customerID); err != nil {
		return nil, err
	}
	return s.findOne(ctx, customerKey(id, customerID))
}

// GetByCustomerID 在分区内查找活跃客户。
func (s *CustomerService) GetByCustomerID(ctx context.Context, customerID string) (*Customer, error) {
	if err := requireArgs("customerId", customerID); err != nil {
		return nil, err
	}
	return s.findOne(ctx, bson.D{
		{Key: "customerId", Value: customerID},
		{Key: "isActive", Value: true},
	})
}

// GetByEmail 跨分区查找活跃客户。
func (s *CustomerService) GetByEmail(ctx context.Context, email string) (*Customer, error) {
	if err := requireArgs("email", email); err != nil {
		return nil, err
	}
	return s.findOne(ctx, bson.D{
		{Key: "email", Value: email},
		{Key: "isActive", Value: true},
	})
}

func (s *CustomerService) findOne(ctx context.Context, filter bson.D) (*Customer, error) {
	coll, err := s.guard.EnsureReady(ctx)
	if err != nil {
		return nil, err
	}
	var c Customer
	err = coll.FindOne(ctx, filter, &c)
	if errors.Is(err, xmongo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get customer: %w", err)
	}
	return &c, nil
}

// List 活跃客户，按姓、名排序。
func (s *CustomerService) List(ctx context.Context, maxItems int) ([]Customer, error) {
	coll, err := s.guard.EnsureReady(ctx)
	if err != nil {
		return nil, err
	}
	customers := []Customer{}
	err = coll.Find(ctx, bson.D{{Key: "isActive", Value: true}}, &customers, xmongo.FindOptions{
		Sort:  bson.D{{Key: "lastName", Value: 1}, {Key: "firstName", Value: 1}},
		Limit: int64(storageopt.ClampLimit(maxItems, DefaultMaxItems, MaxItemsLimit)),
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: list customers: %w", err)
	}
	return customers, nil
}

// Count 活跃客户数。
func (s *CustomerService) Count(ctx context.Context) (int64, error) {
	coll, err := s.guard.EnsureReady(ctx)
	if err != nil {
		return 0, err
	}
	return coll.CountDocuments(ctx, bson.D{{Key: "isActive", Value: true}})
}

// Update 整体替换，保留 ID、CustomerID、CreatedAt 和 ETag。不存在时返回 nil, nil。
func (s *CustomerService) Update(ctx context.Context, id, customerID string, c Customer) (*Customer, error) {
	unlock, err := s.opts.lock(ctx, "customers", customerID, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	existing, err := s.Get(ctx, id, customerID)
	if err != nil || existing == nil {
		return nil, err
	}
	c.ID = existing.ID
	c.CustomerID = existing.CustomerID
	c.CreatedAt = existing.CreatedAt
	c.ETag = existing.ETag
	c.UpdatedAt = s.opts.timestamp()
	if err := validateStruct(c); err != nil {
		return nil, err
	}
	return s.replace(ctx, c)
}

// Delete 软删除。客户不存在或已停用时返回 false。
func (s *CustomerService) Delete(ctx context.Context, id, customerID string) (bool, error) {
	unlock, err := s.opts.lock(ctx, "customers", customerID, id)
	if err != nil {
		return false, err
	}
	defer unlock()

	existing, err := s.Get(ctx, id, customerID)
	if err != nil || existing == nil || !existing.IsActive {
		return false, err
	}
	existing.IsActive = false
	existing.UpdatedAt = s.opts.timestamp()
	updated, err := s.replace(ctx, *existing)
	return updated != nil, err
}

func (s *CustomerService) replace(ctx context.Context, c Customer) (*Customer, error) {
	coll, err := s.guard.EnsureReady(ctx)
	if err != nil {
		return nil, err
	}
	matched, err := coll.ReplaceOne(ctx, customerKey(c.ID, c.CustomerID), c)
	if err != nil {
		return nil, fmt.Errorf("catalog: update customer: %w", err)
	}
	if !matched {
		return nil, nil
	}
	return &c, nil
}

func customerKey(id, customerID string) bson.D {
	return bson.D{{Key: "_id", Value: id}, {Key: "customerId", Value: customerID}}
}
