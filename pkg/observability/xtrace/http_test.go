package xtrace

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/docdemo/pkg/context/xctx"
	"github.com/omeyang/docdemo/pkg/observability/xlog"
	"github.com/omeyang/docdemo/pkg/observability/xsampling"
)

const (
	validTraceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	validSpanID  = "00f067aa0ba902b7"
)

func TestExtractFromHTTPHeader(t *testing.T) {
	t.Run("traceparent 优先", func(t *testing.T) {
		h := http.Header{}
		h.Set(HeaderTraceID, "ffffffffffffffffffffffffffffffff")
		h.Set(HeaderTraceparent, "00-"+validTraceID+"-"+validSpanID+"-01")
		h.Set(HeaderRequestID, "req-1")

		got := ExtractFromHTTPHeader(h)
		assert.Equal(t, xctx.Trace{TraceID: validTraceID, SpanID: validSpanID, RequestID: "req-1", TraceFlags: "01"}, got)
	})

	t.Run("非法 ID 被丢弃", func(t *testing.T) {
		h := http.Header{}
		h.Set(HeaderTraceID, "not-hex")
		h.Set(HeaderSpanID, "0000000000000000")
		h.Set(HeaderTraceparent, "00-short")

		got := ExtractFromHTTPHeader(h)
		assert.Empty(t, got.TraceID)
		assert.Empty(t, got.SpanID)
	})

	t.Run("nil header", func(t *testing.T) {
		assert.Equal(t, xctx.Trace{}, ExtractFromHTTPHeader(nil))
	})
}

func TestInjectToRequest(t *testing.T) {
	ctx, err := xctx.WithTrace(context.Background(), xctx.Trace{TraceID: validTraceID, SpanID: validSpanID, RequestID: "r"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	InjectToRequest(ctx, req)

	assert.Equal(t, "r", req.Header.Get(HeaderRequestID))
	assert.Equal(t, "00-"+validTraceID+"-"+validSpanID+"-00", req.Header.Get(HeaderTraceparent))
	assert.NotPanics(t, func() { InjectToRequest(ctx, nil) })
}

func TestHTTPMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := xlog.New().SetOutput(&buf).SetFormat("json").Build()
	require.NoError(t, err)

	var seen xctx.Trace
	h := HTTPMiddleware(WithLogger(logger), WithSkipLog(func(r *http.Request) bool {
		return r.URL.Path == "/healthz"
	}))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = xctx.GetTrace(r.Context())
		if r.URL.Path == "/boom" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	t.Run("生成追踪 ID 并回写 request id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products", nil))

		assert.Len(t, seen.TraceID, 32)
		assert.NotEmpty(t, seen.RequestID)
		assert.Equal(t, seen.RequestID, rec.Header().Get(HeaderRequestID))
		assert.Contains(t, buf.String(), `"status_code":200`)
	})

	t.Run("沿用上游 request id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set(HeaderRequestID, "upstream")
		h.ServeHTTP(httptest.NewRecorder(), req)
		assert.Equal(t, "upstream", seen.RequestID)
	})

	t.Run("5xx 记 ERROR", func(t *testing.T) {
		buf.Reset()
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))
		assert.Contains(t, buf.String(), `"level":"ERROR"`)
	})

	t.Run("跳过健康检查日志", func(t *testing.T) {
		buf.Reset()
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Empty(t, strings.TrimSpace(buf.String()))
	})
}

func TestHTTPMiddleware_Sampler(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := xlog.New().SetOutput(&buf).SetFormat("json").Build()
	require.NoError(t, err)

	h := HTTPMiddleware(WithLogger(logger), WithSampler(xsampling.Never()))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/missing" {
				w.WriteHeader(http.StatusNotFound)
			}
		}))

	t.Run("成功请求按采样丢弃", func(t *testing.T) {
		buf.Reset()
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
		assert.Empty(t, strings.TrimSpace(buf.String()))
		assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))
	})

	t.Run("4xx 总是记录", func(t *testing.T) {
		buf.Reset()
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
		assert.Contains(t, buf.String(), `"level":"WARN"`)
	})

	t.Run("按 request id 一致采样", func(t *testing.T) {
		s, err := xsampling.NewKeyBasedSampler(0.5, xctx.RequestID)
		require.NoError(t, err)
		h := HTTPMiddleware(WithLogger(logger), WithSampler(s))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

		for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
			req := httptest.NewRequest(http.MethodGet, "/ok", nil)
			req.Header.Set(HeaderRequestID, id)
			idCtx, err := xctx.WithRequestID(context.Background(), id)
			require.NoError(t, err)
			want := s.ShouldSample(idCtx)

			buf.Reset()
			h.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, want, strings.TrimSpace(buf.String()) != "", "id=%s", id)
		}
	})
}
