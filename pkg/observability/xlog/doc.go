// Package xlog 是基于 log/slog 的结构化日志。
//
// 构建：
//
//	logger, cleanup, err := xlog.New().
//	    SetFormat("json").
//	    SetLevelString(cfg.Level).
//	    SetRotation("/var/log/docdemo.log", xlog.Rotation{MaxSizeMB: 50}).
//	    Build()
//	defer cleanup()
//
// 特性：
//   - 方法强制携带 ctx，EnrichHandler 自动注入 trace_id/span_id/request_id
//   - LoggerWithLevel 支持运行时调整级别，派生 logger 共享同一 LevelVar
//   - SetRotation 使用 lumberjack 做按大小轮转
//   - handler 写入失败只计数并回调 SetOnError，不向业务返回错误
package xlog
