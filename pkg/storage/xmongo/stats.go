package xmongo

import "github.com/omeyang/docdemo/internal/storageopt"

// Stats 包装器统计。
type Stats struct {
	storageopt.Snapshot
	Pool PoolStats `json:"pool"`
}

// PoolStats 连接池状态。
//
// driver v2 不暴露连接池明细，这里只导出能拿到真实数据的字段。
// 需要更细的连接信息时查看服务端 serverStatus.connections。
type PoolStats struct {
	// InUseConnections 取自 NumberSessionsInProgress，是活跃会话数的近似。
	InUseConnections int `json:"inUseConnections"`
}
