package catalog

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/omeyang/docdemo/pkg/resource/xinit"
	"github.com/omeyang/docdemo/pkg/storage/xmongo"
)

// 集合预置描述。名称与分区键保持与线上数据一致。
var (
	ProductsSpec = xmongo.CollectionSpec{
		Name:         "Products",
		PartitionKey: "category",
	}

	CustomersSpec = xmongo.CollectionSpec{
		Name:         "Customers",
		PartitionKey: "customerId",
		Indexes: []xmongo.IndexSpec{
			{Name: "email", Keys: bson.D{{Key: "email", Value: 1}}},
		},
	}

	OrdersSpec = xmongo.CollectionSpec{
		Name:         "Orders",
		PartitionKey: "customerId",
		Indexes: []xmongo.IndexSpec{
			{Name: "orderNumber", Keys: bson.D{{Key: "orderNumber", Value: 1}}, Unique: true},
			{Name: "status_orderDate", Keys: bson.D{{Key: "status", Value: 1}, {Key: "orderDate", Value: -1}}},
		},
	}

	NotesSpec = xmongo.CollectionSpec{Name: "notes"}
)

// CollectionGuard 惰性预置并守护一个集合句柄。
type CollectionGuard = xinit.Guard[xmongo.Collection]

// NewCollectionGuard 以 EnsureCollection 为获取动作、以同名集合是否存在为存活检查。
// 存活检查本身出错按失效处理，由下一轮初始化序列重新预置。
func NewCollectionGuard(db xmongo.Database, spec xmongo.CollectionSpec, opts ...xinit.Option) (*CollectionGuard, error) {
	if db == nil {
		return nil, xmongo.ErrNilClient
	}
	if spec.Name == "" {
		return nil, xmongo.ErrEmptyName
	}
	return xinit.New(spec.Name,
		func(ctx context.Context) (xmongo.Collection, error) {
			return db.EnsureCollection(ctx, spec)
		},
		func(ctx context.Context, c xmongo.Collection) bool {
			ok, err := db.CollectionExists(ctx, c.Name())
			return err == nil && ok
		},
		opts...,
	)
}
