package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/goleak"

	"github.com/omeyang/docdemo/internal/catalog"
	"github.com/omeyang/docdemo/internal/catalog/catalogtest"
	"github.com/omeyang/docdemo/pkg/observability/xlog"
	"github.com/omeyang/docdemo/pkg/observability/xsampling"
	"github.com/omeyang/docdemo/pkg/resilience/xbreaker"
	"github.com/omeyang/docdemo/pkg/resource/xinit"
	"github.com/omeyang/docdemo/pkg/storage/xmongo"
	"github.com/omeyang/docdemo/pkg/util/xid"
	"github.com/omeyang/docdemo/pkg/util/xjson"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

type testEnv struct {
	db  *catalogtest.MemDB
	srv *Server
	h   http.Handler
}

func newEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	db := catalogtest.NewMemDB()
	ids, err := xid.NewGenerator(xid.WithMachineID(3))
	require.NoError(t, err)
	copts := []catalog.Option{
		catalog.WithLogger(xlog.Discard()),
		catalog.WithClock(func() time.Time { return fixedNow }),
		catalog.WithIDGenerator(ids),
	}

	guards := make(map[string]*catalog.CollectionGuard)
	var sources []StatsSource
	for _, spec := range []xmongo.CollectionSpec{catalog.ProductsSpec, catalog.CustomersSpec, catalog.OrdersSpec, catalog.NotesSpec} {
		g, err := catalog.NewCollectionGuard(db, spec,
			xinit.WithMaxRetries(2), xinit.WithRetryDelay(0), xinit.WithLogger(xlog.Discard()))
		require.NoError(t, err)
		guards[spec.Name] = g
		sources = append(sources, g)
	}

	var svc Services
	svc.Products, err = catalog.NewProductService(guards[catalog.ProductsSpec.Name], copts...)
	require.NoError(t, err)
	svc.Customers, err = catalog.NewCustomerService(guards[catalog.CustomersSpec.Name], copts...)
	require.NoError(t, err)
	svc.Orders, err = catalog.NewOrderService(guards[catalog.OrdersSpec.Name], copts...)
	require.NoError(t, err)
	svc.Notes, err = catalog.NewNoteService(guards[catalog.NotesSpec.Name], copts...)
	require.NoError(t, err)
	svc.Seeder, err = catalog.NewSeeder(svc.Products, svc.Customers, svc.Orders,
		catalog.WithSeedLogger(xlog.Discard()), catalog.WithSeedDelay(0))
	require.NoError(t, err)

	srv, err := New(svc, append([]Option{WithLogger(xlog.Discard()), WithGuards(sources...)}, opts...)...)
	require.NoError(t, err)
	return &testEnv{db: db, srv: srv, h: srv.Handler()}
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, xjson.Decode(rec.Body, &v), rec.Body.String())
	return v
}

func requireProblem(t *testing.T, rec *httptest.ResponseRecorder, status int) Problem {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	assert.Equal(t, problemContentType, rec.Header().Get("Content-Type"))
	p := decode[Problem](t, rec)
	assert.Equal(t, status, p.Status)
	assert.Equal(t, http.StatusText(status), p.Title)
	return p
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Services{})
	assert.Error(t, err)
}

func TestServer_Banner(t *testing.T) {
	e := newEnv(t, WithVersion("2.1"))

	rec := e.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	b := decode[Banner](t, rec)
	assert.Equal(t, "2.1", b.Version)
	assert.Equal(t, []string{"/products", "/customers", "/orders", "/notes"}, b.Endpoints)

	t.Run("未知路径", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/nope", "").Code)
	})

	t.Run("方法不匹配", func(t *testing.T) {
		assert.Equal(t, http.StatusMethodNotAllowed, e.do(t, http.MethodPatch, "/products", "").Code)
	})
}

func TestServer_Products(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/products",
		`{"name":"Laptop","description":"High-performance laptop","price":999.99,"category":"Electronics","stockQuantity":10}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[catalog.Product](t, rec)
	assert.True(t, created.InStock, "缺省为有货")
	loc := rec.Header().Get("Location")
	assert.Equal(t, "/products/"+created.ID+"?category=Electronics", loc)

	t.Run("按 Location 读取", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, loc, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Laptop", decode[catalog.Product](t, rec).Name)
	})

	t.Run("缺少分区键", func(t *testing.T) {
		p := requireProblem(t, e.do(t, http.MethodGet, "/products/"+created.ID, ""), http.StatusBadRequest)
		assert.Contains(t, p.Detail, "category")
	})

	t.Run("分区不匹配", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/products/"+created.ID+"?category=Home", "")
		requireProblem(t, rec, http.StatusNotFound)
	})

	t.Run("列表与分类过滤", func(t *testing.T) {
		e.do(t, http.MethodPost, "/products", `{"name":"Mug","price":12.99,"category":"Home"}`)

		all := decode[[]catalog.Product](t, e.do(t, http.MethodGet, "/products", ""))
		assert.Len(t, all, 2)
		home := decode[[]catalog.Product](t, e.do(t, http.MethodGet, "/products?category=Home", ""))
		require.Len(t, home, 1)
		assert.Equal(t, "Mug", home[0].Name)
		limited := decode[[]catalog.Product](t, e.do(t, http.MethodGet, "/products?maxItems=1", ""))
		assert.Len(t, limited, 1)

		requireProblem(t, e.do(t, http.MethodGet, "/products?maxItems=abc", ""), http.StatusBadRequest)
		requireProblem(t, e.do(t, http.MethodGet, "/products?maxItems=-1", ""), http.StatusBadRequest)
	})

	t.Run("更新", func(t *testing.T) {
		rec := e.do(t, http.MethodPut, loc, `{"name":"Laptop Pro","price":1299,"category":"Electronics","stockQuantity":3}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		p := decode[catalog.Product](t, rec)
		assert.Equal(t, "Laptop Pro", p.Name)
		assert.Equal(t, created.ID, p.ID)

		rec = e.do(t, http.MethodPut, "/products/missing?category=Electronics", `{"name":"x","category":"Electronics"}`)
		requireProblem(t, rec, http.StatusNotFound)
	})

	t.Run("非法请求体", func(t *testing.T) {
		requireProblem(t, e.do(t, http.MethodPost, "/products", `{"name":`), http.StatusBadRequest)
		requireProblem(t, e.do(t, http.MethodPost, "/products", `{"name":"a","category":"b"} {}`), http.StatusBadRequest)
		requireProblem(t, e.do(t, http.MethodPost, "/products", `{"name":"a","category":""}`), http.StatusBadRequest)
	})

	t.Run("删除", func(t *testing.T) {
		rec := e.do(t, http.MethodDelete, loc, "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Body.String())
		requireProblem(t, e.do(t, http.MethodDelete, loc, ""), http.StatusNotFound)
	})
}

func TestServer_Customers(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/customers",
		`{"firstName":"John","lastName":"Doe","email":"john.doe@example.com","phoneNumber":"555-0123"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	c := decode[catalog.Customer](t, rec)
	assert.True(t, strings.HasPrefix(c.CustomerID, "CUST-"), c.CustomerID)
	assert.True(t, c.IsActive)
	loc := rec.Header().Get("Location")
	assert.Equal(t, "/customers/"+c.ID+"?customerId="+c.CustomerID, loc)

	t.Run("三种查找方式", func(t *testing.T) {
		for _, target := range []string{
			loc,
			"/customers/by-customer-id/" + c.CustomerID,
			"/customers/by-email/john.doe@example.com",
		} {
			rec := e.do(t, http.MethodGet, target, "")
			require.Equal(t, http.StatusOK, rec.Code, target)
			assert.Equal(t, c.ID, decode[catalog.Customer](t, rec).ID)
		}
		requireProblem(t, e.do(t, http.MethodGet, "/customers/by-email/nobody@example.com", ""), http.StatusNotFound)
	})

	t.Run("邮箱格式校验", func(t *testing.T) {
		p := requireProblem(t, e.do(t, http.MethodPost, "/customers", `{"firstName":"X","email":"not-an-email"}`), http.StatusBadRequest)
		assert.Contains(t, p.Detail, "Email")
	})

	t.Run("更新", func(t *testing.T) {
		rec := e.do(t, http.MethodPut, loc, `{"firstName":"Johnny","lastName":"Doe","email":"john.doe@example.com"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "Johnny", decode[catalog.Customer](t, rec).FirstName)
	})

	t.Run("软删除后不再列出", func(t *testing.T) {
		assert.Equal(t, http.StatusNoContent, e.do(t, http.MethodDelete, loc, "").Code)
		requireProblem(t, e.do(t, http.MethodDelete, loc, ""), http.StatusNotFound)

		list := decode[[]catalog.Customer](t, e.do(t, http.MethodGet, "/customers", ""))
		assert.Empty(t, list)
		requireProblem(t, e.do(t, http.MethodGet, "/customers/by-email/john.doe@example.com", ""), http.StatusNotFound)
		assert.Equal(t, 1, e.db.Coll("Customers").Len())
	})
}

func TestServer_Orders(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/orders", `{
		"customerId": "CUST-1",
		"items": [
			{"productId": "p1", "productName": "Laptop", "quantity": 2, "unitPrice": 10.5},
			{"productId": "p2", "productName": "Mug", "quantity": 1, "unitPrice": 4}
		]
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	o := decode[catalog.Order](t, rec)
	assert.Equal(t, catalog.OrderPending, o.Status)
	assert.InDelta(t, 25.0, o.TotalAmount, 1e-9)
	loc := rec.Header().Get("Location")
	assert.Equal(t, "/orders/"+o.ID+"?customerId=CUST-1", loc)

	t.Run("读取与按客户列出", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, loc, "").Code)
		list := decode[[]catalog.Order](t, e.do(t, http.MethodGet, "/orders/customer/CUST-1", ""))
		assert.Len(t, list, 1)
		assert.Empty(t, decode[[]catalog.Order](t, e.do(t, http.MethodGet, "/orders/customer/CUST-2", "")))
	})

	t.Run("修改状态", func(t *testing.T) {
		target := "/orders/" + o.ID + "/status?customerId=CUST-1"
		rec := e.do(t, http.MethodPatch, target, `"shipped"`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, catalog.OrderShipped, decode[catalog.Order](t, rec).Status)

		requireProblem(t, e.do(t, http.MethodPatch, target, `"Lost"`), http.StatusBadRequest)
		requireProblem(t, e.do(t, http.MethodPatch, target, `{"status":"Shipped"}`), http.StatusBadRequest)
		requireProblem(t, e.do(t, http.MethodPatch, "/orders/missing/status?customerId=CUST-1", `"Delivered"`), http.StatusNotFound)
	})

	t.Run("按状态过滤", func(t *testing.T) {
		shipped := decode[[]catalog.Order](t, e.do(t, http.MethodGet, "/orders?status=Shipped", ""))
		assert.Len(t, shipped, 1)
		pending := decode[[]catalog.Order](t, e.do(t, http.MethodGet, "/orders?status=pending", ""))
		assert.Empty(t, pending)
		requireProblem(t, e.do(t, http.MethodGet, "/orders?status=Lost", ""), http.StatusBadRequest)
	})

	t.Run("汇总不被当作订单 ID", func(t *testing.T) {
		e.db.Coll("Orders").AggregateResult = func(any) []any {
			return []any{bson.D{
				{Key: "_id", Value: "Shipped"}, {Key: "totalOrders", Value: int32(1)},
				{Key: "totalRevenue", Value: 25.0}, {Key: "averageOrderValue", Value: 25.0},
			}}
		}
		rec := e.do(t, http.MethodGet, "/orders/summary", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		got := decode[[]catalog.StatusSummary](t, rec)
		require.Len(t, got, 1)
		assert.Equal(t, catalog.OrderShipped, got[0].Status)
	})

	t.Run("删除", func(t *testing.T) {
		assert.Equal(t, http.StatusNoContent, e.do(t, http.MethodDelete, loc, "").Code)
		requireProblem(t, e.do(t, http.MethodGet, loc, ""), http.StatusNotFound)
	})
}

func TestServer_Notes(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/notes", `{"content":"buy milk"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	n := decode[catalog.Note](t, rec)
	assert.Equal(t, "buy milk", n.Content)
	assert.False(t, n.ID.IsZero())

	for _, c := range []string{"b", "c"} {
		require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/notes", `{"content":"`+c+`"}`).Code)
	}

	t.Run("读取", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/notes/"+n.ID.Hex(), "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "buy milk", decode[catalog.Note](t, rec).Content)

		requireProblem(t, e.do(t, http.MethodGet, "/notes/"+bson.NewObjectID().Hex(), ""), http.StatusNotFound)
		requireProblem(t, e.do(t, http.MethodGet, "/notes/xyz", ""), http.StatusBadRequest)
	})

	t.Run("全部与分页", func(t *testing.T) {
		all := decode[[]catalog.Note](t, e.do(t, http.MethodGet, "/notes", ""))
		assert.Len(t, all, 3)

		rec := e.do(t, http.MethodGet, "/notes?page=2&pageSize=2", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var page struct {
			Notes      []catalog.Note `json:"notes"`
			Total      int64          `json:"total"`
			Page       int64          `json:"page"`
			TotalPages int64          `json:"totalPages"`
		}
		require.NoError(t, xjson.Decode(rec.Body, &page))
		assert.Len(t, page.Notes, 1)
		assert.Equal(t, int64(3), page.Total)
		assert.Equal(t, int64(2), page.Page)
		assert.Equal(t, int64(2), page.TotalPages)

		requireProblem(t, e.do(t, http.MethodGet, "/notes?page=0", ""), http.StatusBadRequest)
		requireProblem(t, e.do(t, http.MethodGet, "/notes?page=x", ""), http.StatusBadRequest)
	})

	t.Run("空内容", func(t *testing.T) {
		requireProblem(t, e.do(t, http.MethodPost, "/notes", `{"content":"  "}`), http.StatusBadRequest)
	})

	t.Run("删除", func(t *testing.T) {
		rec := e.do(t, http.MethodDelete, "/notes/"+n.ID.Hex(), "")
		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Empty(t, rec.Body.String())

		p := requireProblem(t, e.do(t, http.MethodDelete, "/notes/"+n.ID.Hex(), ""), http.StatusNotFound)
		assert.Contains(t, p.Detail, "no such note")
		requireProblem(t, e.do(t, http.MethodDelete, "/notes/xyz", ""), http.StatusBadRequest)
	})
}

func TestServer_SeedData(t *testing.T) {
	t.Run("写入样例数据", func(t *testing.T) {
		e := newEnv(t)
		rec := e.do(t, http.MethodPost, "/seed-data", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got map[string]any
		require.NoError(t, xjson.Decode(rec.Body, &got))
		assert.Equal(t, "Sample data created successfully", got["message"])
		assert.EqualValues(t, 5, got["productsCreated"])
		assert.EqualValues(t, 3, got["customersCreated"])
		assert.EqualValues(t, 2, got["ordersCreated"])
	})

	t.Run("失败返回问题详情", func(t *testing.T) {
		e := newEnv(t)
		require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/products", "").Code)
		e.db.Coll("Products").Err = catalogtest.ErrWrite

		p := requireProblem(t, e.do(t, http.MethodPost, "/seed-data", ""), http.StatusInternalServerError)
		assert.True(t, strings.HasPrefix(p.Detail, "Failed to seed data: "), p.Detail)
	})
}

func TestServer_Unavailable(t *testing.T) {
	b := xbreaker.New("test", xbreaker.WithConsecutiveFailures(2), xbreaker.WithTimeout(time.Hour),
		xbreaker.WithFailureClassifier(xinit.IsUnavailable))
	e := newEnv(t, WithBreaker(b))
	e.db.EnsureFailures = 1000

	for range 2 {
		rec := e.do(t, http.MethodGet, "/products", "")
		requireProblem(t, rec, http.StatusServiceUnavailable)
		assert.Equal(t, "5", rec.Header().Get("Retry-After"))
	}
	require.Equal(t, xbreaker.StateOpen, e.srv.Breaker().State())

	t.Run("熔断打开后不再访问数据库", func(t *testing.T) {
		calls := e.db.EnsureCalls
		requireProblem(t, e.do(t, http.MethodGet, "/orders", ""), http.StatusServiceUnavailable)
		assert.Equal(t, calls, e.db.EnsureCalls)
	})
}

func TestServer_BusinessErrorsKeepBreakerClosed(t *testing.T) {
	b := xbreaker.New("test", xbreaker.WithConsecutiveFailures(1), xbreaker.WithFailureClassifier(xinit.IsUnavailable))
	e := newEnv(t, WithBreaker(b))

	for range 3 {
		requireProblem(t, e.do(t, http.MethodGet, "/products/x", ""), http.StatusBadRequest)
		requireProblem(t, e.do(t, http.MethodGet, "/products/x?category=y", ""), http.StatusNotFound)
	}
	assert.Equal(t, xbreaker.StateClosed, b.State())
}

func TestServer_Healthz(t *testing.T) {
	t.Run("健康", func(t *testing.T) {
		e := newEnv(t, WithHealthCheck(func(context.Context) error { return nil }))
		e.do(t, http.MethodGet, "/products", "")

		rec := e.do(t, http.MethodGet, "/healthz", "")
		require.Equal(t, http.StatusOK, rec.Code)
		h := decode[Health](t, rec)
		assert.Equal(t, "Healthy", h.Status)
		assert.Equal(t, "closed", h.Breaker)
		require.Len(t, h.Guards, 4)
		assert.Equal(t, "Products", h.Guards[0].Resource)
		assert.True(t, h.Guards[0].Ready)
		assert.False(t, h.Guards[1].Ready)
	})

	t.Run("数据库不可达", func(t *testing.T) {
		e := newEnv(t, WithHealthCheck(func(context.Context) error { return errors.New("ping: connection refused") }))
		rec := e.do(t, http.MethodGet, "/healthz", "")
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		h := decode[Health](t, rec)
		assert.Equal(t, "Unhealthy", h.Status)
		assert.Contains(t, h.Mongo, "connection refused")
	})
}

func TestServer_Recoverer(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := xlog.New().SetOutput(&buf).SetFormat("json").Build()
	require.NoError(t, err)
	e := newEnv(t, WithLogger(logger))

	h := e.srv.recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	requireProblem(t, rec, http.StatusInternalServerError)
	assert.Contains(t, buf.String(), "handler panic")
	assert.Contains(t, buf.String(), "boom")

	t.Run("ErrAbortHandler 继续抛出", func(t *testing.T) {
		h := e.srv.recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic(http.ErrAbortHandler) }))
		assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
		})
	})
}

func TestServer_AccessLogSampling(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := xlog.New().SetOutput(&buf).SetFormat("json").Build()
	require.NoError(t, err)
	e := newEnv(t, WithLogger(logger), WithAccessSampler(xsampling.Never()))

	e.do(t, http.MethodGet, "/", "")
	assert.NotContains(t, buf.String(), `"msg":"http request"`)

	e.do(t, http.MethodGet, "/products/x", "")
	assert.Contains(t, buf.String(), `"msg":"http request"`)
	assert.Contains(t, buf.String(), `"level":"WARN"`)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"参数错误", catalog.ErrInvalidArgument, http.StatusBadRequest},
		{"解码错误", xjson.ErrDecode, http.StatusBadRequest},
		{"笔记不存在", catalog.ErrNoteNotFound, http.StatusNotFound},
		{"资源耗尽", &xinit.ExhaustedError{Resource: "Products", Attempts: 3, Last: errors.New("x")}, http.StatusServiceUnavailable},
		{"资源初始化被取消", &xinit.CanceledError{Resource: "Products", Cause: context.Canceled}, http.StatusServiceUnavailable},
		{"熔断", &xbreaker.OpenError{Name: "mongo", State: xbreaker.StateOpen, Cause: errors.New("open")}, http.StatusServiceUnavailable},
		{"其他", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mapError(tt.err).Status)
		})
	}
}
