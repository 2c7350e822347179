package xctx

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
)

// W3C Trace Context 规定的 ID 字节长度。
const (
	TraceIDSize = 16
	SpanIDSize  = 8
)

// 日志属性 key。
const (
	KeyTraceID    = "trace_id"
	KeySpanID     = "span_id"
	KeyRequestID  = "request_id"
	KeyTraceFlags = "trace_flags"
)

const (
	keyTraceID    = contextKey("xctx:trace_id")
	keySpanID     = contextKey("xctx:span_id")
	keyRequestID  = contextKey("xctx:request_id")
	keyTraceFlags = contextKey("xctx:trace_flags")
)

func withValue(ctx context.Context, key contextKey, v string) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	return context.WithValue(ctx, key, v), nil
}

func value(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

// WithTraceID 注入 trace ID。
func WithTraceID(ctx context.Context, traceID string) (context.Context, error) {
	return withValue(ctx, keyTraceID, traceID)
}

// TraceID 读取 trace ID。
func TraceID(ctx context.Context) string { return value(ctx, keyTraceID) }

// WithSpanID 注入 span ID。
func WithSpanID(ctx context.Context, spanID string) (context.Context, error) {
	return withValue(ctx, keySpanID, spanID)
}

// SpanID 读取 span ID。
func SpanID(ctx context.Context) string { return value(ctx, keySpanID) }

// WithRequestID 注入 request ID。
func WithRequestID(ctx context.Context, requestID string) (context.Context, error) {
	return withValue(ctx, keyRequestID, requestID)
}

// RequestID 读取 request ID。
func RequestID(ctx context.Context) string { return value(ctx, keyRequestID) }

// WithTraceFlags 注入 W3C trace-flags（2 位十六进制，如 "01"）。
func WithTraceFlags(ctx context.Context, flags string) (context.Context, error) {
	return withValue(ctx, keyTraceFlags, flags)
}

// TraceFlags 读取 trace-flags。
func TraceFlags(ctx context.Context) string { return value(ctx, keyTraceFlags) }

// RequireRequestID 读取 request ID，缺失时返回 ErrMissingRequestID。
func RequireRequestID(ctx context.Context) (string, error) {
	if ctx == nil {
		return "", ErrNilContext
	}
	if v := RequestID(ctx); v != "" {
		return v, nil
	}
	return "", ErrMissingRequestID
}

// GenerateTraceID 生成 32 位小写十六进制 trace ID。
//
// 熵源不可用时 panic，与 OpenTelemetry 的 ID 生成器一致。
func GenerateTraceID() string {
	return randomHex(TraceIDSize)
}

// GenerateSpanID 生成 16 位小写十六进制 span ID。
func GenerateSpanID() string {
	return randomHex(SpanIDSize)
}

// GenerateRequestID 生成 request ID，格式与 trace ID 相同。
func GenerateRequestID() string {
	return randomHex(TraceIDSize)
}

func randomHex(n int) string {
	buf := make([]byte, n)
	for {
		if _, err := rand.Read(buf); err != nil {
			panic("xctx: crypto/rand.Read failed: " + err.Error())
		}
		// W3C 禁止全零 ID
		for _, b := range buf {
			if b != 0 {
				return hex.EncodeToString(buf)
			}
		}
	}
}

// Trace 是追踪字段的快照。
type Trace struct {
	TraceID    string
	SpanID     string
	RequestID  string
	TraceFlags string
}

// GetTrace 一次性读取全部追踪字段。
func GetTrace(ctx context.Context) Trace {
	return Trace{
		TraceID:    TraceID(ctx),
		SpanID:     SpanID(ctx),
		RequestID:  RequestID(ctx),
		TraceFlags: TraceFlags(ctx),
	}
}

// WithTrace 注入 t 中的非空字段，空字段不覆盖已有值。
func WithTrace(ctx context.Context, t Trace) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	for _, f := range []struct {
		key contextKey
		v   string
	}{
		{keyTraceID, t.TraceID},
		{keySpanID, t.SpanID},
		{keyRequestID, t.RequestID},
		{keyTraceFlags, t.TraceFlags},
	} {
		if f.v != "" {
			ctx = context.WithValue(ctx, f.key, f.v)
		}
	}
	return ctx, nil
}

// EnsureTrace 补全缺失的 trace_id、span_id、request_id，已有值原样保留。
// trace_flags 是上游的采样决策，不自动生成。
func EnsureTrace(ctx context.Context) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	var t Trace
	if TraceID(ctx) == "" {
		t.TraceID = GenerateTraceID()
	}
	if SpanID(ctx) == "" {
		t.SpanID = GenerateSpanID()
	}
	if RequestID(ctx) == "" {
		t.RequestID = GenerateRequestID()
	}
	return WithTrace(ctx, t)
}

// AppendTraceAttrs 把 ctx 中非空的追踪字段追加到 attrs。
func AppendTraceAttrs(attrs []slog.Attr, ctx context.Context) []slog.Attr {
	if ctx == nil {
		return attrs
	}
	if v := TraceID(ctx); v != "" {
		attrs = append(attrs, slog.String(KeyTraceID, v))
	}
	if v := SpanID(ctx); v != "" {
		attrs = append(attrs, slog.String(KeySpanID, v))
	}
	if v := RequestID(ctx); v != "" {
		attrs = append(attrs, slog.String(KeyRequestID, v))
	}
	if v := TraceFlags(ctx); v != "" {
		attrs = append(attrs, slog.String(KeyTraceFlags, v))
	}
	return attrs
}
