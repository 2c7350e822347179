// Package xlru 基于 hashicorp/golang-lru/v2/expirable 提供带 TTL 的泛型 LRU 缓存。
//
// 用作只读热点数据的本地副本，写路径负责 Delete 失效：
//
//	c, err := xlru.New[string, Product](xlru.Config{Size: 1024, TTL: time.Minute})
//	defer c.Close()
//
// 底层库在 TTL > 0 时常驻一个清理 goroutine 且不提供关闭方法，
// Close 通过反射关闭其内部通道。升级 golang-lru 时需确认内部结构未变。
package xlru
