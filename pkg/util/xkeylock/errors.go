package xkeylock

import "errors"

var (
	// ErrLockNotHeld Handle 已释放，重复 Unlock 时返回。
	ErrLockNotHeld = errors.New("xkeylock: lock not held")

	// ErrClosed Locker 已关闭。
	ErrClosed = errors.New("xkeylock: closed")

	// ErrMaxKeysExceeded 活跃 key 数达到上限。
	ErrMaxKeysExceeded = errors.New("xkeylock: max keys exceeded")

	// ErrEmptyKey key 为空字符串。
	ErrEmptyKey = errors.New("xkeylock: empty key")

	// ErrInvalidShardCount 分片数不是 2 的幂或超出上限。
	ErrInvalidShardCount = errors.New("xkeylock: invalid shard count")
)
