package xretry

import (
	"errors"

	retry "github.com/avast/retry-go/v5"
)

var (
	// ErrNilRetryer 表示在 nil *Retryer 上调用方法。
	ErrNilRetryer = errors.New("xretry: nil retryer")

	// ErrNilContext 表示传入的 context 为 nil。
	ErrNilContext = errors.New("xretry: nil context")

	// ErrNilFunc 表示传入的执行函数为 nil。
	ErrNilFunc = errors.New("xretry: nil function")

	// ErrUnknownBackoff 表示配置了未知的退避策略名称。
	ErrUnknownBackoff = errors.New("xretry: unknown backoff")
)

// RetryableError 由错误自身声明是否值得重试。
type RetryableError interface {
	error
	Retryable() bool
}

// PermanentError 永久性错误，不再重试。
type PermanentError struct {
	Err error
}

// NewPermanentError 创建永久性错误。
func NewPermanentError(err error) *PermanentError {
	return &PermanentError{Err: err}
}

func (e *PermanentError) Error() string {
	if e.Err == nil {
		return "permanent error"
	}
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error   { return e.Err }
func (e *PermanentError) Retryable() bool { return false }

// IsRetryable 判断错误是否可重试。
// nil 不需要重试；实现 RetryableError 的按其声明；其余一律视为可重试。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var re RetryableError
	if errors.As(err, &re) {
		return re.Retryable()
	}
	return true
}

// IsPermanent 判断错误是否为永久性错误。
func IsPermanent(err error) bool {
	return err != nil && !IsRetryable(err)
}

// Unrecoverable 用 retry-go 的方式把错误标记为不可恢复。
func Unrecoverable(err error) error {
	return retry.Unrecoverable(err)
}

// IsRecoverable 判断错误是否未被 Unrecoverable 标记。
func IsRecoverable(err error) bool {
	return retry.IsRecoverable(err)
}
