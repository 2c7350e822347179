package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/omeyang/docdemo/internal/catalog"
	"github.com/omeyang/docdemo/pkg/observability/xlog"
	"github.com/omeyang/docdemo/pkg/resilience/xbreaker"
	"github.com/omeyang/docdemo/pkg/resource/xinit"
	"github.com/omeyang/docdemo/pkg/util/xjson"
)

const problemContentType = "application/problem+json"

// retryAfterSeconds 503 响应的 Retry-After。
const retryAfterSeconds = 5

// Problem 错误响应体。
type Problem struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func newProblem(status int, detail string) *Problem {
	return &Problem{Title: http.StatusText(status), Status: status, Detail: detail}
}

// mapError 把服务错误映射为响应状态码。
func mapError(err error) *Problem {
	switch {
	case errors.Is(err, catalog.ErrInvalidArgument), errors.Is(err, xjson.ErrDecode):
		return newProblem(http.StatusBadRequest, err.Error())
	case errors.Is(err, catalog.ErrNoteNotFound):
		return newProblem(http.StatusNotFound, err.Error())
	case xinit.IsUnavailable(err), xbreaker.IsOpen(err):
		return newProblem(http.StatusServiceUnavailable, err.Error())
	default:
		return newProblem(http.StatusInternalServerError, err.Error())
	}
}

func writeProblem(w http.ResponseWriter, p *Problem) {
	if p.Status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	_ = xjson.Write(w, p.Status, problemContentType, p)
}

// fail 写出错误响应。客户端断开导致的取消不记录日志。
func (s *Server) fail(ctx context.Context, w http.ResponseWriter, err error) {
	p := mapError(err)
	if p.Status >= http.StatusInternalServerError && ctx.Err() == nil {
		s.log.Error(ctx, "request failed", xlog.StatusCode(p.Status), xlog.Err(err))
	}
	writeProblem(w, p)
}

func notFound(w http.ResponseWriter) {
	writeProblem(w, newProblem(http.StatusNotFound, ""))
}
