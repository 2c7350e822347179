package xcron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/omeyang/docdemo/pkg/observability/xlog"
	"github.com/omeyang/docdemo/pkg/util/xkeylock"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestScheduler(t *testing.T, opts ...Option) *Scheduler {
	t.Helper()
	s := New(append([]Option{WithLogger(xlog.Discard())}, opts...)...)
	t.Cleanup(func() { <-s.Stop().Done() })
	return s
}

func TestScheduler_AddFunc(t *testing.T) {
	s := newTestScheduler(t)
	noop := func(context.Context) error { return nil }

	_, err := s.AddFunc("x", "@every 1m", nil)
	assert.ErrorIs(t, err, ErrNilJob)

	_, err = s.AddFunc("", "@every 1m", noop)
	assert.ErrorIs(t, err, ErrEmptyName)

	_, err = s.AddFunc("x", "not a spec", noop)
	assert.Error(t, err)

	id, err := s.AddFunc("x", "*/5 * * * *", noop)
	require.NoError(t, err)
	assert.Len(t, s.Entries(), 1)
	s.Remove(id)
	assert.Empty(t, s.Entries())
}

func TestScheduler_WithSeconds(t *testing.T) {
	s := newTestScheduler(t, WithSeconds(), WithLocation(time.UTC))
	_, err := s.AddFunc("x", "*/10 * * * * *", func(context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestScheduler_Immediate(t *testing.T) {
	errBoom := errors.New("boom")

	t.Run("成功与失败计入统计", func(t *testing.T) {
		s := newTestScheduler(t)
		_, err := s.AddFunc("ok", "@every 1h", func(context.Context) error { return nil }, WithImmediate())
		require.NoError(t, err)
		_, err = s.AddFunc("bad", "@every 1h", func(context.Context) error { return errBoom }, WithImmediate())
		require.NoError(t, err)
		<-s.Stop().Done()

		ok := s.Stats().Job("ok")
		assert.Equal(t, int64(1), ok.Runs)
		assert.Equal(t, int64(1), ok.Successes)
		assert.False(t, ok.LastRun.IsZero())

		bad := s.Stats().Job("bad")
		assert.Equal(t, int64(1), bad.Failures)
		assert.Equal(t, "boom", bad.LastError)
		assert.Len(t, s.Stats().Snapshot(), 2)
	})

	t.Run("panic 被恢复", func(t *testing.T) {
		s := newTestScheduler(t)
		_, err := s.AddFunc("panic", "@every 1h", func(context.Context) error { panic("oops") }, WithImmediate())
		require.NoError(t, err)
		<-s.Stop().Done()

		js := s.Stats().Job("panic")
		assert.Equal(t, int64(1), js.Failures)
		assert.Contains(t, js.LastError, "oops")
	})

	t.Run("超时", func(t *testing.T) {
		s := newTestScheduler(t)
		_, err := s.AddFunc("slow", "@every 1h", func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}, WithImmediate(), WithTimeout(10*time.Millisecond))
		require.NoError(t, err)

		require.Eventually(t, func() bool { return s.Stats().Job("slow").Runs == 1 }, time.Second, 5*time.Millisecond)
		assert.Equal(t, context.DeadlineExceeded.Error(), s.Stats().Job("slow").LastError)
	})

	t.Run("Stop 取消运行中的任务", func(t *testing.T) {
		s := newTestScheduler(t)
		started := make(chan struct{})
		_, err := s.AddFunc("long", "@every 1h", func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		}, WithImmediate())
		require.NoError(t, err)

		<-started
		<-s.Stop().Done()
		assert.Equal(t, int64(1), s.Stats().Job("long").Failures)
	})

	t.Run("注册后立即停止仍执行一次", func(t *testing.T) {
		for i := range 100 {
			s := New(WithLogger(xlog.Discard()))
			var runs atomic.Int32
			_, err := s.AddFunc("once", "@every 1h", func(context.Context) error {
				runs.Add(1)
				return nil
			}, WithImmediate())
			require.NoError(t, err)
			<-s.Stop().Done()

			require.Equal(t, int32(1), runs.Load(), "第 %d 轮", i)
			require.Equal(t, int64(1), s.Stats().Job("once").Runs)
		}
	})

	t.Run("停止后注册不再执行", func(t *testing.T) {
		s := newTestScheduler(t)
		<-s.Stop().Done()

		var runs atomic.Int32
		_, err := s.AddFunc("late", "@every 1h", func(context.Context) error {
			runs.Add(1)
			return nil
		}, WithImmediate())
		require.NoError(t, err)
		<-s.Stop().Done()
		assert.Zero(t, runs.Load())
	})

	t.Run("注册与停止并发", func(t *testing.T) {
		s := New(WithLogger(xlog.Discard()))
		var wg sync.WaitGroup
		for i := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = s.AddFunc(fmt.Sprintf("job-%d", i), "@every 1h",
					func(context.Context) error { return nil }, WithImmediate())
			}()
		}
		stopped := s.Stop()
		wg.Wait()
		<-stopped.Done()
		<-s.Stop().Done()
	})
}

func TestScheduler_LocalLocker(t *testing.T) {
	_, err := NewLocalLocker(nil)
	assert.Error(t, err)

	locks, err := xkeylock.New()
	require.NoError(t, err)
	defer func() { _ = locks.Close() }()
	locker, err := NewLocalLocker(locks)
	require.NoError(t, err)

	s := newTestScheduler(t, WithLocker(locker))
	var runs atomic.Int32
	_, err = s.AddFunc("report", "@every 1h", func(context.Context) error {
		runs.Add(1)
		return nil
	})
	require.NoError(t, err)
	j := s.Entries()[0].Job.(*job)

	t.Run("上一轮未结束时跳过", func(t *testing.T) {
		unlock, ok, err := locker.TryLock(context.Background(), "report")
		require.NoError(t, err)
		require.True(t, ok)

		j.Run()
		unlock()
		assert.Zero(t, runs.Load())
		assert.Equal(t, int64(1), s.Stats().Job("report").Skips)
	})

	t.Run("锁空闲时执行", func(t *testing.T) {
		j.Run()
		assert.Equal(t, int32(1), runs.Load())
		assert.Zero(t, locks.Len())
	})
}

func TestScheduler_Service(t *testing.T) {
	s := newTestScheduler(t)
	var runs atomic.Int32
	_, err := s.AddFunc("tick", "@every 1h", func(context.Context) error {
		runs.Add(1)
		return nil
	}, WithImmediate())
	require.NoError(t, err)

	svc := s.Service()
	assert.Equal(t, "cron", svc.Name)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestNoopLocker(t *testing.T) {
	unlock, ok, err := NoopLocker().TryLock(context.Background(), "x")
	require.NoError(t, err)
	assert.True(t, ok)
	unlock()
}
