package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/omeyang/docdemo/pkg/lifecycle/xrun"
	"github.com/omeyang/docdemo/pkg/observability/xlog"
)

// DefaultSeedDelay 后台初始化数据前的等待时间，给服务留出启动余量。
const DefaultSeedDelay = 3 * time.Second

// SeedResult 各类样例数据的写入条数。
type SeedResult struct {
	ProductsCreated  int `json:"productsCreated"`
	CustomersCreated int `json:"customersCreated"`
	OrdersCreated    int `json:"ordersCreated"`
}

// Seeder 写入样例数据。
type Seeder struct {
	products  *ProductService
	customers *CustomerService
	orders    *OrderService
	delay     time.Duration
	log       xlog.Logger
}

// SeederOption Seeder 选项。
type SeederOption func(*Seeder)

// WithSeedDelay 设置后台模式的启动等待，负值忽略。
func WithSeedDelay(d time.Duration) SeederOption {
	return func(s *Seeder) {
		if d >= 0 {
			s.delay = d
		}
	}
}

// WithSeedLogger 设置日志器，nil 忽略。
func WithSeedLogger(l xlog.Logger) SeederOption {
	return func(s *Seeder) {
		if l != nil {
			s.log = l
		}
	}
}

func NewSeeder(products *ProductService, customers *CustomerService, orders *OrderService, opts ...SeederOption) (*Seeder, error) {
	if products == nil || customers == nil || orders == nil {
		return nil, errors.New("catalog: seeder requires product, customer and order services")
	}
	s := &Seeder{
		products:  products,
		customers: customers,
		orders:    orders,
		delay:     DefaultSeedDelay,
		log:       xlog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.log = s.log.With(xlog.Component("seeder"))
	return s, nil
}

// Service 返回后台初始化任务：等待启动延迟后执行一次 SeedIfEmpty。
// 初始化失败只记录日志，不会让整个进程退出。
func (s *Seeder) Service() xrun.Service {
	return xrun.Named("seeder", xrun.Timer(s.delay, func(ctx context.Context) error {
		if _, err := s.SeedIfEmpty(ctx); err != nil && ctx.Err() == nil {
			s.log.Error(ctx, "data initialization failed", xlog.Err(err))
		}
		return nil
	}))
}

// SeedIfEmpty 已有商品时跳过。单条写入失败记 warn 并跳过；
// 只有商品和客户都写入成功时才创建订单。
func (s *Seeder) SeedIfEmpty(ctx context.Context) (*SeedResult, error) {
	s.log.Info(ctx, "starting data initialization")
	existing, err := s.products.List(ctx, "", 1)
	if err != nil {
		return nil, fmt.Errorf("catalog: check existing products: %w", err)
	}
	if len(existing) > 0 {
		s.log.Info(ctx, "sample data already exists, skipping initialization")
		return &SeedResult{}, nil
	}

	res := &SeedResult{}
	var products []*Product
	for _, p := range sampleProducts() {
		created, err := s.products.Create(ctx, p)
		if err != nil {
			s.log.Warn(ctx, "failed to create product", slog.String("product", p.Name), xlog.Err(err))
			continue
		}
		products = append(products, created)
		s.log.Info(ctx, "created product", slog.String("product", created.Name))
	}

	var customers []*Customer
	for _, c := range sampleCustomers() {
		created, err := s.customers.Create(ctx, c)
		if err != nil {
			s.log.Warn(ctx, "failed to create customer", slog.String("customer", c.FullName()), xlog.Err(err))
			continue
		}
		customers = append(customers, created)
		s.log.Info(ctx, "created customer", slog.String("customer", created.FullName()))
	}
	res.ProductsCreated, res.CustomersCreated = len(products), len(customers)

	if len(products) == 0 || len(customers) == 0 {
		s.log.Warn(ctx, "skipping sample orders",
			slog.Int("products", len(products)), slog.Int("customers", len(customers)))
		return res, nil
	}
	for _, o := range sampleOrders(products, customers) {
		created, err := s.orders.Create(ctx, o)
		if err != nil {
			s.log.Warn(ctx, "failed to create order", slog.String("customer_id", o.CustomerID), xlog.Err(err))
			continue
		}
		res.OrdersCreated++
		s.log.Info(ctx, "created order", slog.String("order_number", created.OrderNumber))
	}

	s.log.Info(ctx, "data initialization completed",
		slog.Int("products", res.ProductsCreated),
		slog.Int("customers", res.CustomersCreated),
		slog.Int("orders", res.OrdersCreated))
	return res, nil
}

// SeedAll 无条件写入全部样例数据，遇到第一个错误即返回。
// 商品走一次有序批量写入，客户与订单逐条写入。
func (s *Seeder) SeedAll(ctx context.Context) (*SeedResult, error) {
	res := &SeedResult{}
	created, err := s.products.CreateMany(ctx, sampleProducts())
	res.ProductsCreated = len(created)
	if err != nil {
		return res, err
	}
	products := make([]*Product, len(created))
	for i := range created {
		products[i] = &created[i]
	}

	var customers []*Customer
	for _, c := range sampleCustomers() {
		cc, err := s.customers.Create(ctx, c)
		if err != nil {
			return res, err
		}
		customers = append(customers, cc)
		res.CustomersCreated++
	}

	for _, o := range sampleOrders(products, customers) {
		if _, err := s.orders.Create(ctx, o); err != nil {
			return res, err
		}
		res.OrdersCreated++
	}
	s.log.Info(ctx, "sample data created",
		slog.Int("products", res.ProductsCreated),
		slog.Int("customers", res.CustomersCreated),
		slog.Int("orders", res.OrdersCreated))
	return res, nil
}

func sampleProducts() []Product {
	mk := func(name, desc, category string, price float64, qty int) Product {
		p := NewProduct()
		p.Name, p.Description, p.Category, p.Price, p.StockQuantity = name, desc, category, price, qty
		return p
	}
	return []Product{
		mk("Laptop", "High-performance laptop", "Electronics", 999.99, 10),
		mk("Smartphone", "Latest smartphone", "Electronics", 699.99, 25),
		mk("Coffee Mug", "Ceramic coffee mug", "Home", 12.99, 100),
		mk("Programming Book", "Learn Go programming", "Books", 29.99, 50),
		mk("Wireless Headphones", "Premium wireless headphones", "Electronics", 149.99, 30),
	}
}

func sampleCustomers() []Customer {
	mk := func(first, last, email, phone string) Customer {
		c := NewCustomer()
		c.FirstName, c.LastName, c.Email, c.PhoneNumber = first, last, email, &phone
		return c
	}
	return []Customer{
		mk("John", "Doe", "john.doe@example.com", "555-0123"),
		mk("Jane", "Smith", "jane.smith@example.com", "555-0124"),
		mk("Bob", "Johnson", "bob.johnson@example.com", "555-0125"),
	}
}

// sampleOrders 第一个客户买第一件和最后一件商品，第二个客户买第二件。
// 商品或客户不足时按取模复用。
func sampleOrders(products []*Product, customers []*Customer) []Order {
	item := func(i int) OrderItem {
		p := products[i%len(products)]
		return OrderItem{ProductID: p.ID, ProductName: p.Name, Quantity: 1, UnitPrice: p.Price}
	}
	return []Order{
		{
			CustomerID: customers[0].CustomerID,
			Items:      []OrderItem{item(0), item(len(products) - 1)},
		},
		{
			CustomerID: customers[1%len(customers)].CustomerID,
			Items:      []OrderItem{item(1)},
		},
	}
}
