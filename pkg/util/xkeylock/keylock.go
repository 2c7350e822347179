package xkeylock

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// Locker 按 key 互斥的进程内锁，并发安全，不可重入。
type Locker struct {
	shards   []shard
	mask     uint64
	maxKeys  int
	keyCount atomic.Int64
	closed   atomic.Bool
	done     chan struct{}
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// entry 的 ch 容量为 1：发送成功即持有，接收即释放。
// refs 统计持有者与等待者，归零时从分片删除。
type entry struct {
	ch   chan struct{}
	refs int
}

// New 创建 Locker。分片数非法时返回 ErrInvalidShardCount。
func New(opts ...Option) (*Locker, error) {
	o := options{shardCount: defaultShardCount}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	shards := make([]shard, o.shardCount)
	for i := range shards {
		shards[i].entries = make(map[string]*entry)
	}
	return &Locker{
		shards:  shards,
		mask:    uint64(o.shardCount - 1),
		maxKeys: o.maxKeys,
		done:    make(chan struct{}),
	}, nil
}

func (l *Locker) shard(key string) *shard {
	return &l.shards[xxhash.Sum64String(key)&l.mask]
}

func (l *Locker) ref(key string) (*entry, error) {
	s := l.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if l.closed.Load() {
		return nil, ErrClosed
	}
	e, ok := s.entries[key]
	if !ok {
		if l.maxKeys > 0 {
			for {
				cur := l.keyCount.Load()
				if cur >= int64(l.maxKeys) {
					return nil, ErrMaxKeysExceeded
				}
				if l.keyCount.CompareAndSwap(cur, cur+1) {
					break
				}
			}
		} else {
			l.keyCount.Add(1)
		}
		e = &entry{ch: make(chan struct{}, 1)}
		s.entries[key] = e
	}
	e.refs++
	return e, nil
}

func (l *Locker) unref(key string, e *entry) {
	s := l.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(s.entries, key)
		l.keyCount.Add(-1)
	}
}

// Acquire 阻塞直到持有 key，ctx 结束时返回 ctx.Err()。
// 等待期间 Locker 被关闭返回 ErrClosed。
func (l *Locker) Acquire(ctx context.Context, key string) (*Handle, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e, err := l.ref(key)
	if err != nil {
		return nil, err
	}
	select {
	case e.ch <- struct{}{}:
		return &Handle{l: l, key: key, e: e}, nil
	case <-ctx.Done():
		l.unref(key, e)
		return nil, ctx.Err()
	case <-l.done:
		l.unref(key, e)
		return nil, ErrClosed
	}
}

// TryAcquire 非阻塞获取。key 被占用时返回 (nil, false, nil)。
func (l *Locker) TryAcquire(key string) (*Handle, bool, error) {
	if key == "" {
		return nil, false, ErrEmptyKey
	}
	e, err := l.ref(key)
	if err != nil {
		return nil, false, err
	}
	select {
	case e.ch <- struct{}{}:
		return &Handle{l: l, key: key, e: e}, true, nil
	default:
		l.unref(key, e)
		return nil, false, nil
	}
}

// Len 当前活跃 key 数。
func (l *Locker) Len() int {
	return int(max(l.keyCount.Load(), 0))
}

// Close 拒绝新的获取并唤醒所有等待者，已持有的 Handle 仍可 Unlock。
func (l *Locker) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	close(l.done)
	return nil
}

// Handle 一次成功的获取。
type Handle struct {
	l    *Locker
	key  string
	e    *entry
	done atomic.Bool
}

// Unlock 释放锁。第二次调用返回 ErrLockNotHeld。
func (h *Handle) Unlock() error {
	if !h.done.CompareAndSwap(false, true) {
		return ErrLockNotHeld
	}
	<-h.e.ch
	h.l.unref(h.key, h.e)
	return nil
}

func (h *Handle) Key() string { return h.key }
