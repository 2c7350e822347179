package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/omeyang/docdemo/internal/catalog"
	"github.com/omeyang/docdemo/pkg/util/xjson"
)

func (s *Server) listCustomers(w http.ResponseWriter, r *http.Request) {
	n, err := maxItems(r)
	if err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	customers, err := call(r, s, func(ctx context.Context) ([]catalog.Customer, error) {
		return s.svc.Customers.List(ctx, n)
	})
	if err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	_ = xjson.Write(w, http.StatusOK, "", customers)
}

func (s *Server) getCustomer(w http.ResponseWriter, r *http.Request) {
	id, customerID := r.PathValue("id"), r.URL.Query().Get("customerId")
	s.writeCustomer(w, r, func(ctx context.Context) (*catalog.Customer, error) {
		return s.svc.Customers.Get(ctx, id, customerID)
	})
}

func (s *Server) getCustomerByCustomerID(w http.ResponseWriter, r *http.Request) {
	customerID := r.PathValue("customerId")
	s.writeCustomer(w, r, func(ctx context.Context) (*catalog.Customer, error) {
		return s.svc.Customers.GetByCustomerID(ctx, customerID)
	})
}

func (s *Server) getCustomerByEmail(w http.ResponseWriter, r *http.Request) {
	email := r.PathValue("email")
	s.writeCustomer(w, r, func(ctx context.Context) (*catalog.Customer, error) {
		return s.svc.Customers.GetByEmail(ctx, email)
	})
}

func (s *Server) createCustomer(w http.ResponseWriter, r *http.Request) {
	in := catalog.NewCustomer()
	if err := xjson.Decode(r.Body, &in); err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	c, err := call(r, s, func(ctx context.Context) (*catalog.Customer, error) {
		return s.svc.Customers.Create(ctx, in)
	})
	if err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	w.Header().Set("Location", "/customers/"+url.PathEscape(c.ID)+"?customerId="+url.QueryEscape(c.CustomerID))
	_ = xjson.Write(w, http.StatusCreated, "", c)
}

func (s *Server) updateCustomer(w http.ResponseWriter, r *http.Request) {
	id, customerID := r.PathValue("id"), r.URL.Query().Get("customerId")
	in := catalog.NewCustomer()
	if err := xjson.Decode(r.Body, &in); err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	s.writeCustomer(w, r, func(ctx context.Context) (*catalog.Customer, error) {
		return s.svc.Customers.Update(ctx, id, customerID, in)
	})
}

func (s *Server) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, customerID := r.PathValue("id"), r.URL.Query().Get("customerId")
	ok, err := call(r, s, func(ctx context.Context) (bool, error) {
		return s.svc.Customers.Delete(ctx, id, customerID)
	})
	writeDeleted(s, w, r, ok, err)
}

func (s *Server) writeCustomer(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context) (*catalog.Customer, error)) {
	c, err := call(r, s, fn)
	switch {
	case err != nil:
		s.fail(r.Context(), w, err)
	case c == nil:
		notFound(w)
	default:
		_ = xjson.Write(w, http.StatusOK, "", c)
	}
}
