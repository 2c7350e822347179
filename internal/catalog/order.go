package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/omeyang/docdemo/internal/storageopt"
	"github.com/omeyang/docdemo/pkg/observability/xlog"
	"github.com/omeyang/docdemo/pkg/storage/xmongo"
)

// OrderService 订单读写，按 customerId 分区。
type OrderService struct {
	guard *CollectionGuard
	opts  *options
	log   xlog.Logger
}

func NewOrderService(guard *CollectionGuard, opts ...Option) (*OrderService, error) {
	if guard == nil {
		return nil, errNilGuard
	}
	o := applyOptions(opts)
	if err := o.ensureIDs(); err != nil {
		return nil, fmt.Errorf("catalog: order ids: %w", err)
	}
	return &OrderService{
		guard: guard,
		opts:  o,
		log:   o.logger.With(xlog.Component("catalog"), xlog.Resource(guard.Name())),
	}, nil
}

// Create 分配 ID 与订单号，OrderDate 取当前时间，重算金额。
// 未指定状态时为 Pending，未指定预计送达时为下单后 7 天。
func (s *OrderService) Create(ctx context.Context, o Order) (*Order, error) {
	if err := validateStruct(o); err != nil {
		return nil, err
	}
	now := s.opts.timestamp()
	number, err := s.opts.ids.OrderNumber(now)
	if err != nil {
		return nil, fmt.Errorf("catalog: order number: %w", err)
	}
	coll, err := s.guard.EnsureReady(ctx)
	if err != nil {
		return nil, err
	}

	o.ID = uuid.NewString()
	o.OrderNumber = number
	o.OrderDate = now
	if o.Status == "" {
		o.Status = OrderPending
	}
	if o.ExpectedDeliveryDate == nil {
		eta := now.Add(DeliveryWindow)
		o.ExpectedDeliveryDate = &eta
	}
	o.recomputeTotals()

	if err := coll.InsertOne(ctx, o); err != nil {
		s.log.Error(ctx, "create order failed", xlog.Operation("create"), xlog.Err(err))
		return nil, fmt.Errorf("catalog: create order: %w", err)
	}
	return &o, nil
}

// Get 未命中返回 nil, nil。
func (s *OrderService) Get(ctx context.Context, id, customerID string) (*Order, error) {
	if err := requireArgs("id", id, "customerId", customerID); err != nil {
		return nil, err
	}
	coll, err := s.guard.EnsureReady(ctx)
	if err != nil {
		return nil, err
	}
	var o Order
	err = coll.FindOne(ctx, orderKey(id, customerID), &o)
	if errors.Is(err, xmongo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get order: %w", err)
	}
	return &o, nil
}

// ListByCustomer 某客户的订单，按下单时间倒序。
func (s *OrderService) ListByCustomer(ctx context.Context, customerID string, maxItems int) ([]Order, error) {
	if err := requireArgs("customerId", customerID); err != nil {
		return nil, err
	}
	return s.list(ctx, bson.D{{Key: "customerId", Value: customerID}}, maxItems)
}

// List status 为空时返回全部订单，按下单时间倒序。
func (s *OrderService) List(ctx context.Context, status OrderStatus, maxItems int) ([]Order, error) {
	filter := bson.D{}
	if status != "" {
		if !status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, status)
		}
		filter = bson.D{{Key: "status", Value: status}}
	}
	return s.list(ctx, filter, maxItems)
}

func (s *OrderService) list(ctx context.Context, filter bson.D, maxItems int) ([]Order, error) {
	coll, err := s.guard.EnsureReady(ctx)
	if err != nil {
		return nil, err
	}
	orders := []Order{}
	err = coll.Find(ctx, filter, &orders, xmongo.FindOptions{
		Sort:  bson.D{{Key: "orderDate", Value: -1}},
		Limit: int64(storageopt.ClampLimit(maxItems, DefaultMaxItems, MaxItemsLimit)),
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: list orders: %w", err)
	}
	return orders, nil
}

// Update 整体替换，保留 ID、CustomerID、订单号、下单时间和 ETag，重算金额。
func (s *OrderService) Update(ctx context.Context, id, customerID string, o Order) (*Order, error) {
	unlock, err := s.opts.lock(ctx, "orders", customerID, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	existing, err := s.Get(ctx, id, customerID)
	if err != nil || existing == nil {
		return nil, err
	}
	o.ID = existing.ID
	o.CustomerID = existing.CustomerID
	o.OrderNumber = existing.OrderNumber
	o.OrderDate = existing.OrderDate
	o.ETag = existing.ETag
	if o.Status == "" {
		o.Status = existing.Status
	}
	if err := validateStruct(o); err != nil {
		return nil, err
	}
	o.recomputeTotals()
	return s.replace(ctx, o)
}

// UpdateStatus 修改状态。首次进入 Delivered 时记录实际送达时间。
func (s *OrderService) UpdateStatus(ctx context.Context, id, customerID string, status OrderStatus) (*Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, status)
	}
	unlock, err := s.opts.lock(ctx, "orders", customerID, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	existing, err := s.Get(ctx, id, customerID)
	if err != nil || existing == nil {
		return nil, err
	}
	existing.Status = status
	if status == OrderDelivered && existing.ActualDeliveryDate == nil {
		at := s.opts.timestamp()
		existing.ActualDeliveryDate = &at
	}
	return s.replace(ctx, *existing)
}

// Delete 返回是否删除了文档。
func (s *OrderService) Delete(ctx context.Context, id, customerID string) (bool, error) {
	if err := requireArgs("id", id, "customerId", customerID); err != nil {
		return false, err
	}
	coll, err := s.guard.EnsureReady(ctx)
	if err != nil {
		return false, err
	}
	ok, err := coll.DeleteOne(ctx, orderKey(id, customerID))
	if err != nil {
		return false, fmt.Errorf("catalog: delete order: %w", err)
	}
	return ok, nil
}

// Summary 按状态分组统计订单数、总金额和平均金额，按状态名排序。
func (s *OrderService) Summary(ctx context.Context) ([]StatusSummary, error) {
	coll, err := s.guard.EnsureReady(ctx)
	if err != nil {
		return nil, err
	}
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "totalOrders", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "totalRevenue", Value: bson.D{{Key: "$sum", Value: "$totalAmount"}}},
			{Key: "averageOrderValue", Value: bson.D{{Key: "$avg", Value: "$totalAmount"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
	out := []StatusSummary{}
	if err := coll.Aggregate(ctx, pipeline, &out); err != nil {
		return nil, fmt.Errorf("catalog: order summary: %w", err)
	}
	return out, nil
}

func (s *OrderService) replace(ctx context.Context, o Order) (*Order, error) {
	coll, err := s.guard.EnsureReady(ctx)
	if err != nil {
		return nil, err
	}
	matched, err := coll.ReplaceOne(ctx, orderKey(o.ID, o.CustomerID), o)
	if err != nil {
		return nil, fmt.Errorf("catalog: update order: %w", err)
	}
	if !matched {
		return nil, nil
	}
	return &o, nil
}

func orderKey(id, customerID string) bson.D {
	return bson.D{{Key: "_id", Value: id}, {Key: "customerId", Value: customerID}}
}
