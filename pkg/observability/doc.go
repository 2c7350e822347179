// Package observability 汇集可观测性子包。
//
//   - xlog: 基于 log/slog 的结构化日志，支持动态级别与文件轮转
//   - xmetrics: Observer/Span 接口与 OpenTelemetry 实现
//   - xsampling: 访问日志采样
//   - xtrace: HTTP 追踪头传播与访问日志中间件
package observability
