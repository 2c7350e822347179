// Package xsampling 提供采样策略，用于控制高频日志的输出量。
//
// KeyBasedSampler 对同一 key（如 request ID）总是给出相同结论，
// 同一请求在各处的日志要么都保留，要么都丢弃。
//
//	s, _ := xsampling.NewKeyBasedSampler(0.1, xctx.RequestID)
//	if s.ShouldSample(ctx) { ... }
package xsampling
