package xrun

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// HTTPServerInterface *http.Server 满足此接口。
type HTTPServerInterface interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServer 把 HTTP 服务包装为服务函数：ctx 取消后在 shutdownTimeout 内优雅关闭。
// shutdownTimeout 为 0 表示不限时。
func HTTPServer(server HTTPServerInterface, shutdownTimeout time.Duration) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if server == nil {
			return ErrNilServer
		}
		shutdownErr := make(chan error, 1)
		stop := context.AfterFunc(ctx, func() {
			sctx := context.Background()
			if shutdownTimeout > 0 {
				var cancel context.CancelFunc
				sctx, cancel = context.WithTimeout(sctx, shutdownTimeout)
				defer cancel()
			}
			shutdownErr <- server.Shutdown(sctx)
		})

		err := server.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			stop()
			return err
		}
		if stop() {
			// Shutdown 不是由 ctx 触发的
			return nil
		}
		return <-shutdownErr
	}
}

// Timer 等待 delay 后执行 fn 一次；等待期间 ctx 取消则返回 ctx.Err()。
func Timer(delay time.Duration, fn func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if delay < 0 {
			return ErrInvalidDelay
		}
		if fn == nil {
			return ErrNilFunc
		}
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
			return fn(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Ticker 每隔 interval 执行 fn，fn 返回错误时退出。
func Ticker(interval time.Duration, fn func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if interval <= 0 {
			return ErrInvalidInterval
		}
		if fn == nil {
			return ErrNilFunc
		}
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				if err := fn(ctx); err != nil {
					return err
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// WaitForDone 阻塞到 ctx 取消。
func WaitForDone() func(ctx context.Context) error {
	return func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
}
