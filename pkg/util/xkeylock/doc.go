// Package xkeylock 提供按 key 互斥的进程内锁。
//
// 用于同一文档的读改写串行化：两个并发请求更新同一订单时，
// 后到者等待前者写回后再读取，避免覆盖对方的修改。
//
//	h, err := locks.Acquire(ctx, "orders/"+id)
//	if err != nil {
//	    return err
//	}
//	defer h.Unlock()
//
// 锁按 xxhash 分片，条目在最后一个持有者或等待者离开后回收。
// Close 后新的获取返回 ErrClosed，正在等待的 Acquire 被唤醒。
package xkeylock
