// Package xrun 基于 errgroup 管理一组长期运行的服务。
//
// 任一服务返回错误或进程收到终止信号时，共享 ctx 被取消，其余服务随之退出：
//
//	err := xrun.Run(ctx, logger,
//	    xrun.Named("http", xrun.HTTPServer(srv, 10*time.Second)),
//	    xrun.Named("seed", xrun.Timer(3*time.Second, seeder.Run)),
//	)
//	if errors.Is(err, xrun.ErrSignal) { /* 正常退出 */ }
package xrun

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/omeyang/docdemo/pkg/observability/xlog"
)

var (
	// ErrSignal 由 SignalError 包装，errors.Is(err, ErrSignal) 判断是否为信号退出。
	ErrSignal = errors.New("received signal")

	ErrNilFunc         = errors.New("xrun: nil function")
	ErrNilServer       = errors.New("xrun: nil server")
	ErrInvalidDelay    = errors.New("xrun: delay must not be negative")
	ErrInvalidInterval = errors.New("xrun: interval must be positive")
)

// SignalError 收到终止信号时作为取消原因。
type SignalError struct {
	Signal os.Signal
}

func (e *SignalError) Error() string { return fmt.Sprintf("received signal %v", e.Signal) }

func (e *SignalError) Unwrap() error { return ErrSignal }

// Service 具名服务。
type Service struct {
	Name string
	Run  func(ctx context.Context) error
}

// Named 构造 Service。
func Named(name string, run func(ctx context.Context) error) Service {
	return Service{Name: name, Run: run}
}

// Group 服务组。
type Group struct {
	eg       *errgroup.Group
	ctx      context.Context
	causeCtx context.Context
	cancel   context.CancelCauseFunc
	logger   xlog.Logger
}

// NewGroup 创建服务组，返回的 ctx 在任一服务失败或 Cancel 时取消。
func NewGroup(ctx context.Context, logger xlog.Logger) (*Group, context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = xlog.Default()
	}
	causeCtx, cancel := context.WithCancelCause(ctx)
	eg, egCtx := errgroup.WithContext(causeCtx)
	return &Group{eg: eg, ctx: egCtx, causeCtx: causeCtx, cancel: cancel, logger: logger}, egCtx
}

// Go 启动服务。context.Canceled 视为正常退出，只记 Debug。
func (g *Group) Go(svc Service) {
	g.eg.Go(func() error {
		if svc.Run == nil {
			return fmt.Errorf("%w: service %q", ErrNilFunc, svc.Name)
		}
		g.logger.Debug(g.ctx, "service starting", xlog.Component(svc.Name))
		err := svc.Run(g.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			g.logger.Warn(g.ctx, "service exited with error", xlog.Component(svc.Name), xlog.Err(err))
		} else {
			g.logger.Debug(g.ctx, "service stopped", xlog.Component(svc.Name))
		}
		return err
	})
}

// Cancel 以 cause 取消整个组，Wait 会返回 cause。
func (g *Group) Cancel(cause error) { g.cancel(cause) }

// Wait 等待全部服务退出。
// 取消原因优先于服务返回的 context.Canceled；cause 本身是 Canceled 时返回 nil。
func (g *Group) Wait() error {
	defer g.cancel(nil)
	err := g.eg.Wait()
	if g.causeCtx.Err() != nil {
		if cause := context.Cause(g.causeCtx); cause != nil && !errors.Is(cause, context.Canceled) {
			return cause
		}
		if err == nil || errors.Is(err, context.Canceled) {
			return nil
		}
	}
	return err
}

// DefaultSignals SIGHUP、SIGINT、SIGTERM、SIGQUIT。
func DefaultSignals() []os.Signal {
	return []os.Signal{syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT}
}

// Run 启动服务并监听 DefaultSignals，阻塞到全部退出。
func Run(ctx context.Context, logger xlog.Logger, services ...Service) error {
	g, _ := NewGroup(ctx, logger)
	g.Go(Named("signal", func(ctx context.Context) error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, DefaultSignals()...)
		defer signal.Stop(sigCh)

		var sig os.Signal
		select {
		case sig = <-testSigChan(ctx):
		case sig = <-sigCh:
		case <-ctx.Done():
			return ctx.Err()
		}
		g.logger.Info(ctx, "received signal", xlog.Operation(sig.String()))
		g.Cancel(&SignalError{Signal: sig})
		return nil
	}))
	for _, svc := range services {
		g.Go(svc)
	}
	return g.Wait()
}

type testSigChanKey struct{}

// testSigChan 测试注入信号；未注入时返回 nil channel，select 永不命中。
func testSigChan(ctx context.Context) <-chan os.Signal {
	c, _ := ctx.Value(testSigChanKey{}).(<-chan os.Signal)
	return c
}
