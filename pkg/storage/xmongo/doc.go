// Package xmongo 在 mongo-driver v2 之上提供带观测的集合访问与集合预置。
//
// # 组成
//
//   - Mongo：客户端包装，负责 Health、Stats、Close，并按名称返回 Database
//   - Database：EnsureCollection 幂等创建集合与索引，CollectionExists 做廉价存活检查
//   - Collection：常用 CRUD、分页和分批插入，每个操作都会记录 span、计数和慢查询
//
// 通过 Client() 直接执行的操作不会进入统计和慢查询检测。
//
// # 超时兜底
//
// 读操作默认 30 秒、写操作默认 60 秒。调用方 ctx 的截止时间更早时以调用方为准。
// WithQueryTimeout(0) / WithWriteTimeout(0) 关闭兜底：
//
//	m, _ := xmongo.New(client,
//	    xmongo.WithQueryTimeout(10*time.Second),
//	    xmongo.WithSlowQueryThreshold(200*time.Millisecond),
//	)
//	db := m.Database("SampleDB")
//	coll, err := db.EnsureCollection(ctx, xmongo.CollectionSpec{
//	    Name:         "Products",
//	    PartitionKey: "category",
//	})
//
// # 分区键
//
// CollectionSpec.PartitionKey 会建立 (PartitionKey, id) 的唯一索引，
// 用来模拟文档数据库中"同一分区内 id 唯一"的约束。
//
// Close 只有第一次调用会断开连接，之后返回 ErrClosed。Stats 在 Close 后仍可调用。
package xmongo
