package api

import (
	"fmt"
	"net/http"

	"github.com/omeyang/docdemo/pkg/observability/xlog"
)

// recoverer 把 handler 中的 panic 转成 500，并记录调用栈。
// http.ErrAbortHandler 按约定继续向上抛出。
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}
			s.log.Stack(r.Context(), "handler panic",
				xlog.Method(r.Method), xlog.Path(r.URL.Path), xlog.Err(fmt.Errorf("%v", v)))
			writeProblem(w, newProblem(http.StatusInternalServerError, "internal error"))
		}()
		next.ServeHTTP(w, r)
	})
}
