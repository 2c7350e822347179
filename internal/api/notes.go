package api

import (
	"context"
	"net/http"

	"github.com/omeyang/docdemo/internal/catalog"
	"github.com/omeyang/docdemo/pkg/storage/xmongo"
	"github.com/omeyang/docdemo/pkg/util/xjson"
)

// notePage 分页查询的响应体。
type notePage struct {
	Notes []catalog.Note `json:"notes"`
	*xmongo.Page
}

type noteInput struct {
	Content string `json:"content"`
}

// listNotes 带 page 或 pageSize 参数时分页，否则返回全部笔记数组。
func (s *Server) listNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("page") && !q.Has("pageSize") {
		notes, err := call(r, s, s.svc.Notes.List)
		if err != nil {
			s.fail(r.Context(), w, err)
			return
		}
		_ = xjson.Write(w, http.StatusOK, "", notes)
		return
	}

	page, err := int64Query(r, "page", 1)
	if err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	size, err := int64Query(r, "pageSize", 0)
	if err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	res, err := call(r, s, func(ctx context.Context) (notePage, error) {
		notes, p, err := s.svc.Notes.Page(ctx, page, size)
		return notePage{Notes: notes, Page: p}, err
	})
	if err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	_ = xjson.Write(w, http.StatusOK, "", res)
}

func (s *Server) getNote(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	n, err := call(r, s, func(ctx context.Context) (*catalog.Note, error) {
		return s.svc.Notes.Get(ctx, id)
	})
	switch {
	case err != nil:
		s.fail(r.Context(), w, err)
	case n == nil:
		notFound(w)
	default:
		_ = xjson.Write(w, http.StatusOK, "", n)
	}
}

// createNote 成功返回 200 和新笔记。
func (s *Server) createNote(w http.ResponseWriter, r *http.Request) {
	var in noteInput
	if err := xjson.Decode(r.Body, &in); err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	n, err := call(r, s, func(ctx context.Context) (*catalog.Note, error) {
		return s.svc.Notes.Create(ctx, in.Content)
	})
	if err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	_ = xjson.Write(w, http.StatusOK, "", n)
}

// deleteNote 删除成功返回 202，响应体为空。
func (s *Server) deleteNote(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	_, err := call(r, s, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.svc.Notes.Delete(ctx, id)
	})
	if err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
