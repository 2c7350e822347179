// Package api 把 catalog 的服务暴露为 HTTP/JSON 接口。
//
// 路由基于 net/http 的方法与路径模式。所有服务调用都经过同一个熔断器：
// 只有资源不可用（xinit.IsUnavailable）计为失败，参数错误与未命中不影响熔断状态。
//
// 错误响应为 application/problem+json：
//
//	{"title": "Bad Request", "status": 400, "detail": "..."}
package api
