package xcron

import (
	"context"
	"errors"

	"github.com/omeyang/docdemo/pkg/util/xkeylock"
)

// Locker 防止同名任务重叠执行。TryLock 未抢到时返回 ok=false，调度器跳过本次执行。
type Locker interface {
	TryLock(ctx context.Context, key string) (unlock func(), ok bool, err error)
}

type noopLocker struct{}

// NoopLocker 不加锁，同名任务可以并发执行。
func NoopLocker() Locker { return noopLocker{} }

func (noopLocker) TryLock(context.Context, string) (func(), bool, error) {
	return func() {}, true, nil
}

type localLocker struct {
	locks *xkeylock.Locker
}

// NewLocalLocker 用进程内 key 锁实现 Locker，单副本部署时跳过仍在运行的上一轮。
func NewLocalLocker(locks *xkeylock.Locker) (Locker, error) {
	if locks == nil {
		return nil, errors.New("xcron: nil key locker")
	}
	return &localLocker{locks: locks}, nil
}

func (l *localLocker) TryLock(_ context.Context, key string) (func(), bool, error) {
	h, ok, err := l.locks.TryAcquire("xcron/" + key)
	if err != nil || !ok {
		return nil, false, err
	}
	return func() { _ = h.Unlock() }, true, nil
}
