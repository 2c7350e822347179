// Package catalog 是样例目录服务的领域层：商品、客户、订单和笔记。
//
// 每个服务持有一个 CollectionGuard，每次操作前调用 EnsureReady 取得集合句柄；
// 集合被外部删除后，下一次调用会自动重新预置。
//
// 查询类方法在未命中时返回 nil, nil，由调用方决定是否映射为 404。
// 参数错误统一包装 ErrInvalidArgument；资源不可用的错误来自 xinit，
// 可用 xinit.IsUnavailable 判断。
package catalog
