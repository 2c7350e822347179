package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/omeyang/docdemo/internal/catalog"
	"github.com/omeyang/docdemo/pkg/observability/xlog"
	"github.com/omeyang/docdemo/pkg/observability/xtrace"
	"github.com/omeyang/docdemo/pkg/resilience/xbreaker"
	"github.com/omeyang/docdemo/pkg/resource/xinit"
)

// Services Server 依赖的业务服务。Seeder 为 nil 时 /seed-data 返回 404。
type Services struct {
	Products  *catalog.ProductService
	Customers *catalog.CustomerService
	Orders    *catalog.OrderService
	Notes     *catalog.NoteService
	Seeder    *catalog.Seeder
}

// Server HTTP 处理器集合。
type Server struct {
	svc     Services
	opts    *options
	log     xlog.Logger
	breaker *xbreaker.Breaker
}

func New(svc Services, opts ...Option) (*Server, error) {
	if svc.Products == nil || svc.Customers == nil || svc.Orders == nil || svc.Notes == nil {
		return nil, errors.New("api: product, customer, order and note services are required")
	}
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.breaker == nil {
		o.breaker = xbreaker.New("mongo", xbreaker.WithFailureClassifier(xinit.IsUnavailable))
	}
	return &Server{
		svc:     svc,
		opts:    o,
		log:     o.logger.With(xlog.Component("api")),
		breaker: o.breaker,
	}, nil
}

// Breaker 返回服务调用共用的熔断器。
func (s *Server) Breaker() *xbreaker.Breaker { return s.breaker }

// Handler 返回带追踪与 panic 恢复的完整路由。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.banner)
	mux.HandleFunc("GET /healthz", s.healthz)

	mux.HandleFunc("GET /products", s.listProducts)
	mux.HandleFunc("GET /products/{id}", s.getProduct)
	mux.HandleFunc("POST /products", s.createProduct)
	mux.HandleFunc("PUT /products/{id}", s.updateProduct)
	mux.HandleFunc("DELETE /products/{id}", s.deleteProduct)

	mux.HandleFunc("GET /customers", s.listCustomers)
	mux.HandleFunc("GET /customers/{id}", s.getCustomer)
	mux.HandleFunc("GET /customers/by-customer-id/{customerId}", s.getCustomerByCustomerID)
	mux.HandleFunc("GET /customers/by-email/{email}", s.getCustomerByEmail)
	mux.HandleFunc("POST /customers", s.createCustomer)
	mux.HandleFunc("PUT /customers/{id}", s.updateCustomer)
	mux.HandleFunc("DELETE /customers/{id}", s.deleteCustomer)

	mux.HandleFunc("GET /orders", s.listOrders)
	mux.HandleFunc("GET /orders/summary", s.orderSummary)
	mux.HandleFunc("GET /orders/{id}", s.getOrder)
	mux.HandleFunc("GET /orders/customer/{customerId}", s.listCustomerOrders)
	mux.HandleFunc("POST /orders", s.createOrder)
	mux.HandleFunc("PUT /orders/{id}", s.updateOrder)
	mux.HandleFunc("PATCH /orders/{id}/status", s.updateOrderStatus)
	mux.HandleFunc("DELETE /orders/{id}", s.deleteOrder)

	mux.HandleFunc("GET /notes", s.listNotes)
	mux.HandleFunc("GET /notes/{id}", s.getNote)
	mux.HandleFunc("POST /notes", s.createNote)
	mux.HandleFunc("DELETE /notes/{id}", s.deleteNote)

	mux.HandleFunc("POST /seed-data", s.seedData)

	trace := xtrace.HTTPMiddleware(
		xtrace.WithLogger(s.opts.logger),
		xtrace.WithObserver(s.opts.observer),
		xtrace.WithSampler(s.opts.sampler),
		xtrace.WithSkipLog(func(r *http.Request) bool { return r.URL.Path == "/healthz" }),
	)
	return trace(s.recoverer(mux))
}

// call 在熔断器保护下执行一次服务调用。
func call[T any](r *http.Request, s *Server, fn func(ctx context.Context) (T, error)) (T, error) {
	return xbreaker.Execute(r.Context(), s.breaker, fn)
}

// maxItems 解析可选的 ?maxItems，缺省为 0（服务取默认值）。
func maxItems(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("maxItems")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: maxItems must be a non-negative integer", catalog.ErrInvalidArgument)
	}
	return n, nil
}

// int64Query 解析可选的整数查询参数，缺省返回 def。
func int64Query(r *http.Request, name string, def int64) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", catalog.ErrInvalidArgument, name)
	}
	return n, nil
}
