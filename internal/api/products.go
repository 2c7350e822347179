package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/omeyang/docdemo/internal/catalog"
	"github.com/omeyang/docdemo/pkg/util/xjson"
)

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	n, err := maxItems(r)
	if err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	category := r.URL.Query().Get("category")
	products, err := call(r, s, func(ctx context.Context) ([]catalog.Product, error) {
		return s.svc.Products.List(ctx, category, n)
	})
	if err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	_ = xjson.Write(w, http.StatusOK, "", products)
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	id, category := r.PathValue("id"), r.URL.Query().Get("category")
	p, err := call(r, s, func(ctx context.Context) (*catalog.Product, error) {
		return s.svc.Products.Get(ctx, id, category)
	})
	switch {
	case err != nil:
		s.fail(r.Context(), w, err)
	case p == nil:
		notFound(w)
	default:
		_ = xjson.Write(w, http.StatusOK, "", p)
	}
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request) {
	in := catalog.NewProduct()
	if err := xjson.Decode(r.Body, &in); err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	p, err := call(r, s, func(ctx context.Context) (*catalog.Product, error) {
		return s.svc.Products.Create(ctx, in)
	})
	if err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	w.Header().Set("Location", "/products/"+url.PathEscape(p.ID)+"?category="+url.QueryEscape(p.Category))
	_ = xjson.Write(w, http.StatusCreated, "", p)
}

func (s *Server) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, category := r.PathValue("id"), r.URL.Query().Get("category")
	in := catalog.NewProduct()
	if err := xjson.Decode(r.Body, &in); err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	p, err := call(r, s, func(ctx context.Context) (*catalog.Product, error) {
		return s.svc.Products.Update(ctx, id, category, in)
	})
	switch {
	case err != nil:
		s.fail(r.Context(), w, err)
	case p == nil:
		notFound(w)
	default:
		_ = xjson.Write(w, http.StatusOK, "", p)
	}
}

func (s *Server) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, category := r.PathValue("id"), r.URL.Query().Get("category")
	ok, err := call(r, s, func(ctx context.Context) (bool, error) {
		return s.svc.Products.Delete(ctx, id, category)
	})
	writeDeleted(s, w, r, ok, err)
}

// writeDeleted 204 / 404 / 错误。
func writeDeleted(s *Server, w http.ResponseWriter, r *http.Request, ok bool, err error) {
	switch {
	case err != nil:
		s.fail(r.Context(), w, err)
	case !ok:
		notFound(w)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}
