package xcron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/omeyang/docdemo/pkg/lifecycle/xrun"
	"github.com/omeyang/docdemo/pkg/observability/xlog"
	"github.com/omeyang/docdemo/pkg/observability/xmetrics"
)

var (
	ErrNilJob    = errors.New("xcron: job cannot be nil")
	ErrEmptyName = errors.New("xcron: job name cannot be empty")
)

// JobID 复用 cron.EntryID。
type JobID = cron.EntryID

// Scheduler 在 robfig/cron 之上增加按名去重、超时、panic 恢复、统计和日志。
type Scheduler struct {
	cron  *cron.Cron
	opts  options
	stats *Stats

	ctx    context.Context
	cancel context.CancelFunc

	// mu 保护 stopped 与 wg.Add，保证 Stop 之后不再登记新的立即执行
	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

func New(opts ...Option) *Scheduler {
	o := options{
		logger:   xlog.Default(),
		locker:   NoopLocker(),
		location: time.Local,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(o.location), cron.WithParser(o.parser)),
		opts:   o,
		stats:  newStats(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddFunc 注册任务。name 用于锁、统计和日志，spec 如 "@every 1m"。
func (s *Scheduler) AddFunc(name, spec string, fn func(ctx context.Context) error, opts ...JobOption) (JobID, error) {
	if fn == nil {
		return 0, ErrNilJob
	}
	if name == "" {
		return 0, ErrEmptyName
	}
	jo := jobOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&jo)
		}
	}
	j := &job{s: s, name: name, fn: fn, opts: jo}
	id, err := s.cron.AddJob(spec, j)
	if err != nil {
		return 0, fmt.Errorf("xcron: add job %s: %w", name, err)
	}
	if jo.immediate {
		s.mu.Lock()
		if !s.stopped {
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				// 已登记的立即执行不因 Stop 被丢弃，开始执行后才跟随 Stop 取消
				j.run(context.WithoutCancel(s.ctx))
			}()
		}
		s.mu.Unlock()
	}
	return id, nil
}

func (s *Scheduler) Remove(id JobID) { s.cron.Remove(id) }

func (s *Scheduler) Entries() []cron.Entry { return s.cron.Entries() }

func (s *Scheduler) Stats() *Stats { return s.stats }

// Start 非阻塞，重复调用无效果。
func (s *Scheduler) Start() { s.cron.Start() }

// Stop 停止调度并取消运行中任务的 ctx，返回的 ctx 在所有任务结束后 Done。
// Stop 之前登记的立即执行仍会运行一次。
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cancel()
	cronDone := s.cron.Stop()
	ctx, done := context.WithCancel(context.Background())
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		done()
	}()
	return ctx
}

// Service 启动调度器，ctx 取消后停止并等待运行中的任务。
func (s *Scheduler) Service() xrun.Service {
	return xrun.Named("cron", func(ctx context.Context) error {
		s.Start()
		<-ctx.Done()
		<-s.Stop().Done()
		return ctx.Err()
	})
}

type job struct {
	s    *Scheduler
	name string
	fn   func(ctx context.Context) error
	opts jobOptions
}

// Run 实现 cron.Job。调度器停止后触发的执行直接丢弃。
func (j *job) Run() {
	if j.s.ctx.Err() != nil {
		return
	}
	j.run(j.s.ctx)
}

func (j *job) run(ctx context.Context) {
	s := j.s
	unlock, ok, err := s.opts.locker.TryLock(ctx, j.name)
	if err != nil {
		s.opts.logger.Warn(ctx, "cron lock failed", xlog.Operation(j.name), xlog.Err(err))
		s.stats.recordSkip(j.name)
		return
	}
	if !ok {
		s.opts.logger.Debug(ctx, "cron job still running, skipped", xlog.Operation(j.name))
		s.stats.recordSkip(j.name)
		return
	}
	defer unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer context.AfterFunc(s.ctx, cancel)()

	if j.opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.opts.timeout)
		defer cancel()
	}
	ctx, span := xmetrics.Start(ctx, s.opts.observer, xmetrics.SpanOptions{
		Component: "cron",
		Operation: j.name,
		Kind:      xmetrics.KindInternal,
	})

	start := time.Now()
	err = j.call(ctx)
	d := time.Since(start)
	span.End(xmetrics.Result{Err: err})
	s.stats.recordRun(j.name, start, d, err)

	if err != nil {
		s.opts.logger.Error(ctx, "cron job failed", xlog.Operation(j.name), xlog.Duration(d), xlog.Err(err))
		return
	}
	s.opts.logger.Debug(ctx, "cron job done", xlog.Operation(j.name), xlog.Duration(d))
}

func (j *job) call(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("xcron: job %s panic: %v", j.name, r)
		}
	}()
	return j.fn(ctx)
}
