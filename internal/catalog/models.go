package catalog

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Product 商品，按 category 分区。
type Product struct {
	ID            string    `json:"id" bson:"_id"`
	Name          string    `json:"name" bson:"name"`
	Description   string    `json:"description" bson:"description"`
	Price         float64   `json:"price" bson:"price" validate:"gte=0"`
	Category      string    `json:"category" bson:"category" validate:"required"`
	InStock       bool      `json:"inStock" bson:"inStock"`
	StockQuantity int       `json:"stockQuantity" bson:"stockQuantity" validate:"gte=0"`
	ImageURL      *string   `json:"imageUrl,omitempty" bson:"imageUrl,omitempty"`
	CreatedAt     time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt" bson:"updatedAt"`
	ETag          *string   `json:"_etag,omitempty" bson:"_etag,omitempty"`
}

// NewProduct 返回带默认值的 Product，用作请求体解码的起点。
func NewProduct() Product {
	return Product{InStock: true}
}

// Address 客户或收货地址。
type Address struct {
	Street  string `json:"street" bson:"street"`
	City    string `json:"city" bson:"city"`
	State   string `json:"state" bson:"state"`
	ZipCode string `json:"zipCode" bson:"zipCode"`
	Country string `json:"country" bson:"country"`
}

// Customer 客户，按 customerId 分区。删除为软删除：IsActive 置 false。
type Customer struct {
	ID          string  `json:"id" bson:"_id"`
	CustomerID  string  `json:"customerId" bson:"customerId"`
	FirstName   string  `json:"firstName" bson:"firstName"`
	LastName    string  `json:"lastName" bson:"lastName"`
	Email       string  `json:"email" bson:"email" validate:"omitempty,email"`
	PhoneNumber *string `json:"phoneNumber,omitempty" bson:"phoneNumber,omitempty"`

	// DateOfBirth 日期，格式 2006-01-02。
	DateOfBirth *string   `json:"dateOfBirth,omitempty" bson:"dateOfBirth,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Address     *Address  `json:"address,omitempty" bson:"address,omitempty"`
	IsActive    bool      `json:"isActive" bson:"isActive"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
	ETag        *string   `json:"_etag,omitempty" bson:"_etag,omitempty"`
}

// NewCustomer 返回带默认值的 Customer。
func NewCustomer() Customer {
	return Customer{IsActive: true}
}

// FullName 名 + 姓。
func (c Customer) FullName() string {
	return c.FirstName + " " + c.LastName
}

// OrderStatus 订单状态，线上格式为字符串。
type OrderStatus string

const (
	OrderPending    OrderStatus = "Pending"
	OrderProcessing OrderStatus = "Processing"
	OrderShipped    OrderStatus = "Shipped"
	OrderDelivered  OrderStatus = "Delivered"
	OrderCancelled  OrderStatus = "Cancelled"
	OrderRefunded   OrderStatus = "Refunded"
)

var orderStatuses = []OrderStatus{
	OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled, OrderRefunded,
}

// ParseOrderStatus 大小写不敏感地解析状态。
func ParseOrderStatus(s string) (OrderStatus, bool) {
	for _, st := range orderStatuses {
		if strings.EqualFold(string(st), s) {
			return st, true
		}
	}
	return "", false
}

func (s OrderStatus) Valid() bool {
	return slices.Contains(orderStatuses, s)
}

// UnmarshalJSON 接受大小写不同的写法，未知状态报错。
func (s *OrderStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("order status must be a string: %w", err)
	}
	st, ok := ParseOrderStatus(raw)
	if !ok {
		return fmt.Errorf("unknown order status %q", raw)
	}
	*s = st
	return nil
}

// OrderItem 订单行。TotalPrice 始终等于 Quantity*UnitPrice。
type OrderItem struct {
	ProductID   string  `json:"productId" bson:"productId"`
	ProductName string  `json:"productName" bson:"productName"`
	Quantity    int     `json:"quantity" bson:"quantity" validate:"gte=0"`
	UnitPrice   float64 `json:"unitPrice" bson:"unitPrice" validate:"gte=0"`
	TotalPrice  float64 `json:"totalPrice" bson:"totalPrice"`
}

func (i *OrderItem) computeTotal() {
	i.TotalPrice = float64(i.Quantity) * i.UnitPrice
}

// Order 订单，按 customerId 分区。
type Order struct {
	ID                   string      `json:"id" bson:"_id"`
	CustomerID           string      `json:"customerId" bson:"customerId" validate:"required"`
	OrderNumber          string      `json:"orderNumber" bson:"orderNumber"`
	Status               OrderStatus `json:"status" bson:"status" validate:"omitempty,oneof=Pending Processing Shipped Delivered Cancelled Refunded"`
	Items                []OrderItem `json:"items" bson:"items" validate:"dive"`
	TotalAmount          float64     `json:"totalAmount" bson:"totalAmount"`
	ShippingAddress      *Address    `json:"shippingAddress,omitempty" bson:"shippingAddress,omitempty"`
	OrderDate            time.Time   `json:"orderDate" bson:"orderDate"`
	ExpectedDeliveryDate *time.Time  `json:"expectedDeliveryDate,omitempty" bson:"expectedDeliveryDate,omitempty"`
	ActualDeliveryDate   *time.Time  `json:"actualDeliveryDate,omitempty" bson:"actualDeliveryDate,omitempty"`
	Notes                *string     `json:"notes,omitempty" bson:"notes,omitempty"`
	ETag                 *string     `json:"_etag,omitempty" bson:"_etag,omitempty"`
}

// recomputeTotals 重算每行小计和订单总额。
func (o *Order) recomputeTotals() {
	var total float64
	for i := range o.Items {
		o.Items[i].computeTotal()
		total += o.Items[i].TotalPrice
	}
	o.TotalAmount = total
	if o.Items == nil {
		o.Items = []OrderItem{}
	}
}

// StatusSummary 按状态分组的订单统计。
type StatusSummary struct {
	Status            OrderStatus `json:"status" bson:"_id"`
	TotalOrders       int64       `json:"totalOrders" bson:"totalOrders"`
	TotalRevenue      float64     `json:"totalRevenue" bson:"totalRevenue"`
	AverageOrderValue float64     `json:"averageOrderValue" bson:"averageOrderValue"`
}

// Note 笔记。
type Note struct {
	ID      bson.ObjectID `json:"_id" bson:"_id"`
	Content string        `json:"content" bson:"content"`
}
