package xinit

import (
	"errors"
	"fmt"
)

var (
	ErrNilAcquirer = errors.New("xinit: nil acquirer")
	ErrNilChecker  = errors.New("xinit: nil liveness checker")
	ErrNilContext  = errors.New("xinit: nil context")
	ErrNilGuard    = errors.New("xinit: nil guard")

	// ErrExhausted 重试预算用尽或遇到永久性错误。具体信息见 *ExhaustedError。
	ErrExhausted = errors.New("xinit: initialization attempts exhausted")

	// ErrCanceled ctx 在两次尝试之间被取消。具体信息见 *CanceledError。
	ErrCanceled = errors.New("xinit: initialization canceled")
)

// ExhaustedError 初始化最终失败。Unwrap 返回最后一次 acquire 的错误。
type ExhaustedError struct {
	Resource string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("xinit: %s: initialization failed after %d attempt(s): %v", e.Resource, e.Attempts, e.Last)
}

func (e *ExhaustedError) Is(target error) bool { return target == ErrExhausted }

func (e *ExhaustedError) Unwrap() error { return e.Last }

// CanceledError 初始化被 ctx 中止。Unwrap 返回 ctx.Err()，
// 因此 errors.Is(err, context.Canceled) 或 DeadlineExceeded 同样成立。
type CanceledError struct {
	Resource string
	Attempts int
	Cause    error
}

func (e *CanceledError) Error() string {
	return fmt.Sprintf("xinit: %s: initialization canceled after %d attempt(s): %v", e.Resource, e.Attempts, e.Cause)
}

func (e *CanceledError) Is(target error) bool { return target == ErrCanceled }

func (e *CanceledError) Unwrap() error { return e.Cause }

// IsUnavailable 资源暂不可用（耗尽或取消），上层通常映射为 503。
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrExhausted) || errors.Is(err, ErrCanceled)
}
