package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/omeyang/docdemo/internal/catalog"
	"github.com/omeyang/docdemo/pkg/util/xjson"
)

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	n, err := maxItems(r)
	if err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	var status catalog.OrderStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		st, ok := catalog.ParseOrderStatus(raw)
		if !ok {
			s.fail(r.Context(), w, fmt.Errorf("%w: unknown order status %q", catalog.ErrInvalidArgument, raw))
			return
		}
		status = st
	}
	s.writeOrders(w, r, func(ctx context.Context) ([]catalog.Order, error) {
		return s.svc.Orders.List(ctx, status, n)
	})
}

func (s *Server) listCustomerOrders(w http.ResponseWriter, r *http.Request) {
	n, err := maxItems(r)
	if err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	customerID := r.PathValue("customerId")
	s.writeOrders(w, r, func(ctx context.Context) ([]catalog.Order, error) {
		return s.svc.Orders.ListByCustomer(ctx, customerID, n)
	})
}

func (s *Server) orderSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := call(r, s, s.svc.Orders.Summary)
	if err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	_ = xjson.Write(w, http.StatusOK, "", summary)
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	id, customerID := r.PathValue("id"), r.URL.Query().Get("customerId")
	s.writeOrder(w, r, func(ctx context.Context) (*catalog.Order, error) {
		return s.svc.Orders.Get(ctx, id, customerID)
	})
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var in catalog.Order
	if err := xjson.Decode(r.Body, &in); err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	o, err := call(r, s, func(ctx context.Context) (*catalog.Order, error) {
		return s.svc.Orders.Create(ctx, in)
	})
	if err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	w.Header().Set("Location", "/orders/"+url.PathEscape(o.ID)+"?customerId="+url.QueryEscape(o.CustomerID))
	_ = xjson.Write(w, http.StatusCreated, "", o)
}

func (s *Server) updateOrder(w http.ResponseWriter, r *http.Request) {
	id, customerID := r.PathValue("id"), r.URL.Query().Get("customerId")
	var in catalog.Order
	if err := xjson.Decode(r.Body, &in); err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	s.writeOrder(w, r, func(ctx context.Context) (*catalog.Order, error) {
		return s.svc.Orders.Update(ctx, id, customerID, in)
	})
}

// updateOrderStatus 请求体是单个 JSON 字符串，如 "Shipped"。
func (s *Server) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, customerID := r.PathValue("id"), r.URL.Query().Get("customerId")
	var status catalog.OrderStatus
	if err := xjson.Decode(r.Body, &status); err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	s.writeOrder(w, r, func(ctx context.Context) (*catalog.Order, error) {
		return s.svc.Orders.UpdateStatus(ctx, id, customerID, status)
	})
}

func (s *Server) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, customerID := r.PathValue("id"), r.URL.Query().Get("customerId")
	ok, err := call(r, s, func(ctx context.Context) (bool, error) {
		return s.svc.Orders.Delete(ctx, id, customerID)
	})
	writeDeleted(s, w, r, ok, err)
}

func (s *Server) writeOrder(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context) (*catalog.Order, error)) {
	o, err := call(r, s, fn)
	switch {
	case err != nil:
		s.fail(r.Context(), w, err)
	case o == nil:
		notFound(w)
	default:
		_ = xjson.Write(w, http.StatusOK, "", o)
	}
}

func (s *Server) writeOrders(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context) ([]catalog.Order, error)) {
	orders, err := call(r, s, fn)
	if err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	_ = xjson.Write(w, http.StatusOK, "", orders)
}
