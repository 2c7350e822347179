// Package xtrace 把 HTTP 请求头中的追踪信息传播到 context，并为每个请求记录访问日志和观测跨度。
//
// 支持 W3C traceparent 与 X-Trace-ID / X-Span-ID / X-Request-ID 自定义头，traceparent 优先。
package xtrace

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/omeyang/docdemo/pkg/context/xctx"
	"github.com/omeyang/docdemo/pkg/observability/xlog"
	"github.com/omeyang/docdemo/pkg/observability/xmetrics"
	"github.com/omeyang/docdemo/pkg/observability/xsampling"
)

const (
	HeaderTraceID     = "X-Trace-ID"
	HeaderSpanID      = "X-Span-ID"
	HeaderRequestID   = "X-Request-ID"
	HeaderTraceparent = "traceparent"
)

// ExtractFromHTTPHeader 读取追踪头。格式非法的 trace/span ID 被丢弃。
func ExtractFromHTTPHeader(h http.Header) xctx.Trace {
	if h == nil {
		return xctx.Trace{}
	}
	t := xctx.Trace{
		TraceID:   strings.ToLower(strings.TrimSpace(h.Get(HeaderTraceID))),
		SpanID:    strings.ToLower(strings.TrimSpace(h.Get(HeaderSpanID))),
		RequestID: strings.TrimSpace(h.Get(HeaderRequestID)),
	}
	if tid, sid, flags, ok := parseTraceparent(strings.TrimSpace(h.Get(HeaderTraceparent))); ok {
		t.TraceID, t.SpanID, t.TraceFlags = tid, sid, flags
	}
	if !isHexID(t.TraceID, 32) {
		t.TraceID = ""
	}
	if !isHexID(t.SpanID, 16) {
		t.SpanID = ""
	}
	return t
}

// InjectToRequest 把 ctx 中的追踪信息写入出站请求头。
func InjectToRequest(ctx context.Context, req *http.Request) {
	if req == nil {
		return
	}
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	t := xctx.GetTrace(ctx)
	setIf(req.Header, HeaderTraceID, t.TraceID)
	setIf(req.Header, HeaderSpanID, t.SpanID)
	setIf(req.Header, HeaderRequestID, t.RequestID)
	if tp := formatTraceparent(t); tp != "" {
		req.Header.Set(HeaderTraceparent, tp)
	}
}

func setIf(h http.Header, key, v string) {
	if v != "" {
		h.Set(key, v)
	}
}

// traceparent: version-traceid-spanid-flags，version 00 时总长 55。
func parseTraceparent(s string) (traceID, spanID, flags string, ok bool) {
	if len(s) < 55 {
		return "", "", "", false
	}
	parts := strings.SplitN(s, "-", 5)
	if len(parts) < 4 || !isHexID(parts[0], 2) || parts[0] == "ff" {
		return "", "", "", false
	}
	if parts[0] == "00" && len(s) != 55 {
		return "", "", "", false
	}
	if !isHexID(parts[1], 32) || !isHexID(parts[2], 16) || !isHexID(parts[3], 2) {
		return "", "", "", false
	}
	return parts[1], parts[2], parts[3], true
}

func formatTraceparent(t xctx.Trace) string {
	if !isHexID(t.TraceID, 32) || !isHexID(t.SpanID, 16) {
		return ""
	}
	flags := t.TraceFlags
	if !isHexID(flags, 2) {
		flags = "00"
	}
	return "00-" + t.TraceID + "-" + t.SpanID + "-" + flags
}

// isHexID 校验长度为 n 的小写十六进制且不全为 0。
func isHexID(s string, n int) bool {
	if len(s) != n {
		return false
	}
	nonZero := n == 2 // flags 允许 "00"
	for i := range len(s) {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f':
		default:
			return false
		}
		if c != '0' {
			nonZero = true
		}
	}
	return nonZero
}

// MiddlewareOption 配置 HTTPMiddleware。
type MiddlewareOption func(*middlewareConfig)

type middlewareConfig struct {
	logger   xlog.Logger
	observer xmetrics.Observer
	skip     func(*http.Request) bool
	sampler  xsampling.Sampler
}

// WithLogger 设置访问日志 Logger，默认使用 xlog.Default()。
func WithLogger(l xlog.Logger) MiddlewareOption {
	return func(c *middlewareConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver 为每个请求开启 KindServer 跨度。
func WithObserver(o xmetrics.Observer) MiddlewareOption {
	return func(c *middlewareConfig) { c.observer = o }
}

// WithSkipLog 对返回 true 的请求不写访问日志，例如健康检查。
func WithSkipLog(fn func(*http.Request) bool) MiddlewareOption {
	return func(c *middlewareConfig) { c.skip = fn }
}

// WithSampler 对状态码小于 400 的请求按 s 采样写访问日志，4xx 与 5xx 总是记录。
func WithSampler(s xsampling.Sampler) MiddlewareOption {
	return func(c *middlewareConfig) { c.sampler = s }
}

// HTTPMiddleware 补全追踪 ID、回写 X-Request-ID 响应头、记录访问日志。
// 5xx 记 Error，4xx 记 Warn，其余记 Info。
func HTTPMiddleware(opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := &middlewareConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx, err := xctx.WithTrace(r.Context(), ExtractFromHTTPHeader(r.Header))
			if err == nil {
				ctx, err = xctx.EnsureTrace(ctx)
			}
			if err != nil {
				ctx = r.Context()
			}

			ctx, span := xmetrics.Start(ctx, cfg.observer, xmetrics.SpanOptions{
				Component: "http",
				Operation: r.Method,
				Kind:      xmetrics.KindServer,
				Attrs:     []xmetrics.Attr{xmetrics.String("http.path", r.URL.Path)},
			})
			w.Header().Set(HeaderRequestID, xctx.RequestID(ctx))

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r.WithContext(ctx))

			status := xmetrics.StatusOK
			if sw.status >= http.StatusInternalServerError {
				status = xmetrics.StatusError
			}
			span.End(xmetrics.Result{Status: status, Attrs: []xmetrics.Attr{xmetrics.Int("http.status_code", sw.status)}})

			if cfg.skip != nil && cfg.skip(r) {
				return
			}
			logger := cfg.logger
			if logger == nil {
				logger = xlog.Default()
			}
			attrs := []slog.Attr{
				xlog.Method(r.Method), xlog.Path(r.URL.Path),
				xlog.StatusCode(sw.status), xlog.Duration(time.Since(start)),
			}
			switch {
			case sw.status >= http.StatusInternalServerError:
				logger.Error(ctx, "http request", attrs...)
			case sw.status >= http.StatusBadRequest:
				logger.Warn(ctx, "http request", attrs...)
			case cfg.sampler == nil || cfg.sampler.ShouldSample(ctx):
				logger.Info(ctx, "http request", attrs...)
			}
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

// Unwrap 供 http.ResponseController 访问底层 writer。
func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
