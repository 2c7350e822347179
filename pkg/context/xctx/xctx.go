// Package xctx 在 context 中传递请求级追踪信息（trace_id、span_id、request_id、trace_flags）。
//
// 写入函数在 ctx 为 nil 时返回 ErrNilContext；读取函数在缺失时返回空字符串。
// 请求入口使用 EnsureTrace 补全缺失字段，日志通过 AppendTraceAttrs 注入。
package xctx

import "errors"

// contextKey 为包私有类型，避免与其他包的 key 冲突。
type contextKey string

var (
	// ErrNilContext 表示传入的 context 为 nil。
	ErrNilContext = errors.New("xctx: nil context")

	// ErrMissingTraceID trace_id 缺失。
	ErrMissingTraceID = errors.New("xctx: missing trace_id")

	// ErrMissingRequestID request_id 缺失。
	ErrMissingRequestID = errors.New("xctx: missing request_id")
)
